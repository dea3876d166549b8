package stomp

import (
	"sort"
	"sync"

	"github.com/woutdenolf/coilmq/shared/utils"

	"github.com/prometheus/client_golang/prometheus"
)

// TopicManager owns the topic side of the broker. Delivery is a synchronous
// fan out to the subscribers registered at send time: nothing is stored, a
// frame published while nobody listens is gone. Ack modes play no role here.
type TopicManager struct {
	metrics *Metrics

	basicLock   sync.Mutex
	subscribers map[string]map[Connection]*Subscription
}

func NewTopicManager(metrics *Metrics) *TopicManager {
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry())
	}
	return &TopicManager{
		metrics:     metrics,
		subscribers: make(map[string]map[Connection]*Subscription),
	}
}

// Subscribe registers the connection on the destination. Subscribing twice
// keeps the first registration.
func (m *TopicManager) Subscribe(destination string, conn Connection) error {
	m.basicLock.Lock()
	defer m.basicLock.Unlock()

	subs := m.subscribers[destination]
	if _, ok := subs[conn]; ok {
		_topicLogger.Debugf("connection [%s] already subscribed to [%s]", conn.Session(), destination)
		return nil
	}
	sub := newSubscription(conn, destination, AckModeAuto)
	m.subscribers = utils.CopyAddMap(m.subscribers, destination, utils.CopyAddMap(subs, conn, sub))
	return nil
}

func (m *TopicManager) Unsubscribe(destination string, conn Connection) error {
	m.basicLock.Lock()
	defer m.basicLock.Unlock()

	subs := m.subscribers[destination]
	if _, ok := subs[conn]; !ok {
		return nil
	}
	m.removeSubscriptionLocked(destination, conn, subs)
	return nil
}

// Send fans the frame out as one MESSAGE, with one fresh message-id shared by
// every receiver. With zero subscribers the frame is dropped.
func (m *TopicManager) Send(destination string, frame *Frame) error {
	m.basicLock.Lock()
	defer m.basicLock.Unlock()

	subs := m.subscribers[destination]
	if len(subs) == 0 {
		m.metrics.IncMessagesDropped(DropReasonNoSubscriber)
		return nil
	}

	message := asMessageFrame(frame, destination)
	for _, sub := range subs {
		if sub.Connection().SendFrame(message) {
			m.metrics.IncMessagesDelivered()
		} else {
			m.metrics.IncMessagesDropped(DropReasonSlowSubscriber)
			_topicLogger.Warnf("handoff to [%s] failed, dropped topic message on [%s]",
				sub.Connection().Session(), destination)
		}
	}
	return nil
}

// Disconnect drops every registration of the connection.
func (m *TopicManager) Disconnect(conn Connection) error {
	m.basicLock.Lock()
	defer m.basicLock.Unlock()

	for destination, subs := range m.subscribers {
		if _, ok := subs[conn]; !ok {
			continue
		}
		m.removeSubscriptionLocked(destination, conn, subs)
	}
	return nil
}

func (m *TopicManager) removeSubscriptionLocked(destination string, conn Connection, subs map[Connection]*Subscription) {
	remaining := utils.CopyDelMap(subs, conn)
	if len(remaining) == 0 {
		m.subscribers = utils.CopyDelMap(m.subscribers, destination)
	} else {
		m.subscribers = utils.CopyAddMap(m.subscribers, destination, remaining)
	}
}

// TopicInfo describes one live topic destination on the management surface.
type TopicInfo struct {
	Destination string `json:"destination"`
	Subscribers int    `json:"subscribers"`
}

// TopicInfos reports every destination with at least one subscriber, sorted
// by destination.
func (m *TopicManager) TopicInfos() []TopicInfo {
	m.basicLock.Lock()
	defer m.basicLock.Unlock()

	infos := make([]TopicInfo, 0, len(m.subscribers))
	for destination, subs := range m.subscribers {
		infos = append(infos, TopicInfo{
			Destination: destination,
			Subscribers: len(subs),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Destination < infos[j].Destination })
	return infos
}
