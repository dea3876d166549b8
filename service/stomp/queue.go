package stomp

import (
	"fmt"
	"sort"
	"sync"

	"github.com/woutdenolf/coilmq/shared/timesupplier"
	"github.com/woutdenolf/coilmq/shared/utils"

	"github.com/prometheus/client_golang/prometheus"
)

// QueueManager owns the queue side of the broker: subscriber registrations
// per destination, the store of pending frames and the in flight deliveries
// waiting for an ACK. Every operation serializes behind basicLock; the
// dispatch cycle runs inside that lock and hands frames to connections
// without blocking, so one manager call never waits on a slow consumer.
type QueueManager struct {
	store               Store
	subscriberScheduler SubscriberScheduler
	queueScheduler      QueueScheduler
	metrics             *Metrics

	basicLock   sync.Mutex
	subscribers map[string]map[Connection]*Subscription
	inflight    map[string]*Subscription
}

// NewQueueManager builds a manager around the given store and policies.
// A nil metrics gets a private registry so embedded and test setups need no
// wiring.
func NewQueueManager(store Store, subscriberScheduler SubscriberScheduler, queueScheduler QueueScheduler, metrics *Metrics) *QueueManager {
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry())
	}
	return &QueueManager{
		store:               store,
		subscriberScheduler: subscriberScheduler,
		queueScheduler:      queueScheduler,
		metrics:             metrics,
		subscribers:         make(map[string]map[Connection]*Subscription),
		inflight:            make(map[string]*Subscription),
	}
}

// Subscribe registers the connection on the destination and starts a
// dispatch cycle. Subscribing twice keeps the first registration.
func (m *QueueManager) Subscribe(destination string, conn Connection, ackMode string) error {
	m.basicLock.Lock()
	defer m.basicLock.Unlock()

	subs := m.subscribers[destination]
	if _, ok := subs[conn]; ok {
		_queueLogger.Debugf("connection [%s] already subscribed to [%s]", conn.Session(), destination)
		return nil
	}
	sub := newSubscription(conn, destination, ackMode)
	m.subscribers = utils.CopyAddMap(m.subscribers, destination, utils.CopyAddMap(subs, conn, sub))

	return m.dispatchLocked()
}

// Unsubscribe drops the registration. An in flight delivery of the dropped
// subscription goes back to the front of the store for redelivery.
func (m *QueueManager) Unsubscribe(destination string, conn Connection) error {
	m.basicLock.Lock()
	defer m.basicLock.Unlock()

	subs := m.subscribers[destination]
	sub, ok := subs[conn]
	if !ok {
		return nil
	}
	m.removeSubscriptionLocked(destination, conn, subs)
	if err := m.requeueInflightLocked(sub); err != nil {
		return err
	}
	return m.dispatchLocked()
}

// Send stores the frame as a MESSAGE with a fresh message-id and starts a
// dispatch cycle. The caller's frame is not mutated.
func (m *QueueManager) Send(destination string, frame *Frame) error {
	m.basicLock.Lock()
	defer m.basicLock.Unlock()

	message := asMessageFrame(frame, destination)
	if err := m.store.Enqueue(destination, message); err != nil {
		return fmt.Errorf("enqueue to %s: %w", destination, err)
	}
	m.metrics.IncMessagesEnqueued()

	return m.dispatchLocked()
}

// Ack completes the in flight delivery of messageId and frees the
// subscription for its next frame. Unknown, duplicate or foreign message ids
// are tolerated with a warning since late ACKs are expected under
// redelivery.
func (m *QueueManager) Ack(conn Connection, messageId string) error {
	m.basicLock.Lock()
	defer m.basicLock.Unlock()

	sub, ok := m.inflight[messageId]
	if !ok {
		_queueLogger.Warnf("ignore ACK of unknown message [%s] from [%s]", messageId, conn.Session())
		return nil
	}
	if sub.Connection() != conn {
		_queueLogger.Warnf("ignore ACK of message [%s] from [%s]: delivered to [%s]",
			messageId, conn.Session(), sub.Connection().Session())
		return nil
	}
	sub.inflight = nil
	m.inflight = utils.CopyDelMap(m.inflight, messageId)
	m.metrics.IncMessagesAcked()

	return m.dispatchLocked()
}

// Disconnect drops every registration of the connection across destinations
// and requeues its in flight deliveries.
func (m *QueueManager) Disconnect(conn Connection) error {
	m.basicLock.Lock()
	defer m.basicLock.Unlock()

	for destination, subs := range m.subscribers {
		sub, ok := subs[conn]
		if !ok {
			continue
		}
		m.removeSubscriptionLocked(destination, conn, subs)
		if err := m.requeueInflightLocked(sub); err != nil {
			return err
		}
	}
	return m.dispatchLocked()
}

func (m *QueueManager) removeSubscriptionLocked(destination string, conn Connection, subs map[Connection]*Subscription) {
	remaining := utils.CopyDelMap(subs, conn)
	if len(remaining) == 0 {
		m.subscribers = utils.CopyDelMap(m.subscribers, destination)
	} else {
		m.subscribers = utils.CopyAddMap(m.subscribers, destination, remaining)
	}
}

func (m *QueueManager) requeueInflightLocked(sub *Subscription) error {
	pending := sub.inflight
	if pending == nil {
		return nil
	}
	sub.inflight = nil
	m.inflight = utils.CopyDelMap(m.inflight, pending.MessageId)
	if err := m.store.Requeue(pending.Destination, pending.Frame); err != nil {
		return fmt.Errorf("requeue message %s to %s: %w", pending.MessageId, pending.Destination, err)
	}
	m.metrics.IncMessagesRedelivered()
	_queueLogger.Infof("requeued message [%s] on [%s] delivered to [%s]",
		pending.MessageId, pending.Destination, pending.DeliveredTo)
	return nil
}

// dispatchLocked pushes pending frames to eligible subscribers until no
// destination and subscriber pair is selectable. Callers hold basicLock.
func (m *QueueManager) dispatchLocked() error {
	// A subscription whose handoff failed and a destination the subscriber
	// policy declined are excluded for the rest of the cycle, so every loop
	// iteration makes progress and the cycle terminates.
	stalled := make(map[*Subscription]bool)
	skipped := make(map[string]bool)

	for {
		var candidates []string
		for destination, subs := range m.subscribers {
			if skipped[destination] || !hasEligibleSubscription(subs, stalled) {
				continue
			}
			has, err := m.store.HasFrames(destination)
			if err != nil {
				return fmt.Errorf("query pending frames of %s: %w", destination, err)
			}
			if has {
				candidates = append(candidates, destination)
			}
		}
		destination, ok := m.queueScheduler.Choose(candidates)
		if !ok {
			return nil
		}

		var subscriptions []*Subscription
		for _, sub := range m.subscribers[destination] {
			if !stalled[sub] {
				subscriptions = append(subscriptions, sub)
			}
		}
		sub, ok := m.subscriberScheduler.Choose(destination, subscriptions)
		if !ok {
			skipped[destination] = true
			continue
		}

		frame, err := m.store.Dequeue(destination)
		if err != nil {
			return fmt.Errorf("dequeue from %s: %w", destination, err)
		}
		if frame == nil {
			skipped[destination] = true
			continue
		}
		m.deliverLocked(destination, sub, frame, stalled)
	}
}

// deliverLocked hands one dequeued frame to the chosen subscription. A failed
// handoff requeues the frame for client ack subscriptions and drops it for
// auto ack ones; either way the subscription sits out the rest of the cycle.
func (m *QueueManager) deliverLocked(destination string, sub *Subscription, frame *Frame, stalled map[*Subscription]bool) {
	messageId, _ := frame.Headers.Get(HeaderMessageId)

	if !sub.Connection().SendFrame(frame) {
		stalled[sub] = true
		if sub.AckMode() == AckModeClient {
			if err := m.store.Requeue(destination, frame); err != nil {
				_queueLogger.Errorf("requeue message [%s] to [%s] failed: %s", messageId, destination, err)
				return
			}
			m.metrics.IncMessagesRedelivered()
			_queueLogger.Warnf("handoff of message [%s] to [%s] failed, requeued on [%s]",
				messageId, sub.Connection().Session(), destination)
		} else {
			m.metrics.IncMessagesDropped(DropReasonSlowSubscriber)
			_queueLogger.Warnf("handoff of message [%s] to [%s] failed, dropped from [%s]",
				messageId, sub.Connection().Session(), destination)
		}
		return
	}

	m.metrics.IncMessagesDelivered()
	if sub.AckMode() == AckModeClient {
		sub.inflight = &PendingMessage{
			Frame:       frame,
			Destination: destination,
			MessageId:   messageId,
			DeliveredTo: sub.Connection().Session(),
			DeliveredAt: timesupplier.CachedTime(),
		}
		m.inflight = utils.CopyAddMap(m.inflight, messageId, sub)
	}
}

func hasEligibleSubscription(subs map[Connection]*Subscription, stalled map[*Subscription]bool) bool {
	for _, sub := range subs {
		if stalled[sub] {
			continue
		}
		if sub.AckMode() == AckModeClient && sub.Busy() {
			continue
		}
		return true
	}
	return false
}

// asMessageFrame clones a SEND frame into the MESSAGE frame that is stored
// and delivered. Message ids are assigned here so redeliveries keep the id of
// the first delivery.
func asMessageFrame(frame *Frame, destination string) *Frame {
	message := &Frame{
		Command: CmdMessage,
		Headers: frame.Headers.clone(),
		Body:    frame.Body,
	}
	message.Headers.Set(HeaderDestination, destination)
	message.Headers.Set(HeaderMessageId, newMessageId())
	return message
}

// QueueInfo describes one queue destination on the management surface.
type QueueInfo struct {
	Destination string `json:"destination"`
	PendingSize int    `json:"pending_size"`
	Subscribers int    `json:"subscribers"`
	InFlight    int    `json:"in_flight"`
}

// QueueInfos reports every destination that currently has pending frames or
// subscribers, sorted by destination.
func (m *QueueManager) QueueInfos() ([]QueueInfo, error) {
	m.basicLock.Lock()
	defer m.basicLock.Unlock()

	destinations, err := m.store.Destinations()
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool)
	for _, destination := range destinations {
		set[destination] = true
	}
	for destination := range m.subscribers {
		set[destination] = true
	}

	infos := make([]QueueInfo, 0, len(set))
	for destination := range set {
		size, err := m.store.Size(destination)
		if err != nil {
			return nil, err
		}
		inflightCount := 0
		for _, sub := range m.subscribers[destination] {
			if sub.Busy() {
				inflightCount++
			}
		}
		infos = append(infos, QueueInfo{
			Destination: destination,
			PendingSize: size,
			Subscribers: len(m.subscribers[destination]),
			InFlight:    inflightCount,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Destination < infos[j].Destination })
	return infos, nil
}
