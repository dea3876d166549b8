package stomp

import (
	"fmt"
	"math/rand"
)

// QueueScheduler picks the destination a dispatch cycle serves next. Policies
// are pure selection: no side effects, no mutation of manager state.
type QueueScheduler interface {
	// Choose returns one of candidates, or ok false when the policy declines
	// all of them. Candidates already hold at least one pending frame and at
	// least one eligible subscriber.
	Choose(candidates []string) (string, bool)
}

// SubscriberScheduler picks the subscription on a destination that receives
// the next frame. Candidates carry their own delivery state: a client ack
// subscription with Busy set already has a message in flight and must not be
// chosen.
type SubscriberScheduler interface {
	Choose(destination string, candidates []*Subscription) (*Subscription, bool)
}

// NewQueueScheduler builds the queue policy with the given configuration
// name. The store is consulted by backlog aware policies.
func NewQueueScheduler(name string, store Store) (QueueScheduler, error) {
	switch name {
	case "random":
		return RandomQueueScheduler{}, nil
	case "most_backlog":
		return NewMostBacklogQueueScheduler(store), nil
	default:
		return nil, fmt.Errorf("unknown queue_scheduler: %s", name)
	}
}

// NewSubscriberScheduler builds the subscriber policy with the given
// configuration name.
func NewSubscriberScheduler(name string) (SubscriberScheduler, error) {
	switch name {
	case "favor_reliable":
		return FavorReliableSubscriberScheduler{}, nil
	case "random":
		return RandomSubscriberScheduler{}, nil
	default:
		return nil, fmt.Errorf("unknown subscriber_scheduler: %s", name)
	}
}

// RandomQueueScheduler selects uniformly among the candidate destinations.
type RandomQueueScheduler struct{}

func (RandomQueueScheduler) Choose(candidates []string) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	return candidates[rand.Intn(len(candidates))], true
}

// MostBacklogQueueScheduler selects the candidate with the largest stored
// backlog so deep queues drain first. Ties break uniformly.
type MostBacklogQueueScheduler struct {
	store Store
}

func NewMostBacklogQueueScheduler(store Store) *MostBacklogQueueScheduler {
	return &MostBacklogQueueScheduler{store: store}
}

func (s *MostBacklogQueueScheduler) Choose(candidates []string) (string, bool) {
	var best []string
	bestSize := -1
	for _, destination := range candidates {
		size, err := s.store.Size(destination)
		if err != nil {
			_schedulerLogger.Warnf("skip destination [%s]: size query failed: %s", destination, err)
			continue
		}
		if size > bestSize {
			best = append(best[:0], destination)
			bestSize = size
		} else if size == bestSize {
			best = append(best, destination)
		}
	}
	if len(best) == 0 {
		return "", false
	}
	return best[rand.Intn(len(best))], true
}

// FavorReliableSubscriberScheduler prefers client ack subscriptions with
// nothing in flight so acknowledged delivery is not starved by auto ack
// consumers. Within the preferred set the pick is uniform; auto ack
// subscriptions are the fallback.
type FavorReliableSubscriberScheduler struct{}

func (FavorReliableSubscriberScheduler) Choose(destination string, candidates []*Subscription) (*Subscription, bool) {
	var reliable, fallback []*Subscription
	for _, sub := range candidates {
		switch {
		case sub.AckMode() == AckModeClient && !sub.Busy():
			reliable = append(reliable, sub)
		case sub.AckMode() == AckModeAuto:
			fallback = append(fallback, sub)
		}
	}
	if len(reliable) > 0 {
		return reliable[rand.Intn(len(reliable))], true
	}
	if len(fallback) > 0 {
		return fallback[rand.Intn(len(fallback))], true
	}
	return nil, false
}

// RandomSubscriberScheduler selects uniformly among all eligible
// subscriptions regardless of ack mode.
type RandomSubscriberScheduler struct{}

func (RandomSubscriberScheduler) Choose(destination string, candidates []*Subscription) (*Subscription, bool) {
	var eligible []*Subscription
	for _, sub := range candidates {
		if sub.AckMode() == AckModeClient && sub.Busy() {
			continue
		}
		eligible = append(eligible, sub)
	}
	if len(eligible) == 0 {
		return nil, false
	}
	return eligible[rand.Intn(len(eligible))], true
}
