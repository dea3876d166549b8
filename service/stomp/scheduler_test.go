package stomp

import (
	"testing"
)

func TestNewSchedulerUnknownNames(t *testing.T) {
	if _, err := NewQueueScheduler("bogus", NewMemoryStore()); err == nil {
		t.Fatal("expect error for unknown queue scheduler")
	}
	if _, err := NewSubscriberScheduler("bogus"); err == nil {
		t.Fatal("expect error for unknown subscriber scheduler")
	}
}

func TestRandomQueueScheduler(t *testing.T) {
	s := RandomQueueScheduler{}

	if _, ok := s.Choose(nil); ok {
		t.Fatal("no candidates must choose nothing")
	}

	candidates := []string{"/queue/a", "/queue/b", "/queue/c"}
	for i := 0; i < 50; i++ {
		picked, ok := s.Choose(candidates)
		if !ok {
			t.Fatal("expect a pick")
		}
		if picked != "/queue/a" && picked != "/queue/b" && picked != "/queue/c" {
			t.Fatal("picked a non candidate:", picked)
		}
	}
}

func TestMostBacklogQueueScheduler(t *testing.T) {
	store := NewMemoryStore()
	sizes := map[string]int{"/queue/small": 1, "/queue/big": 5, "/queue/mid": 3}
	for destination, n := range sizes {
		for i := 0; i < n; i++ {
			if err := store.Enqueue(destination, testMessage("x")); err != nil {
				t.Fatal(err)
			}
		}
	}

	s := NewMostBacklogQueueScheduler(store)
	picked, ok := s.Choose([]string{"/queue/small", "/queue/big", "/queue/mid"})
	if !ok || picked != "/queue/big" {
		t.Fatal("expect the deepest queue:", picked, ok)
	}

	if _, ok := s.Choose(nil); ok {
		t.Fatal("no candidates must choose nothing")
	}
}

func TestFavorReliableSubscriberScheduler(t *testing.T) {
	s := FavorReliableSubscriberScheduler{}

	autoSub := newSubscription(newFakeConn("auto"), "/queue/a", AckModeAuto)
	idleClient := newSubscription(newFakeConn("idle"), "/queue/a", AckModeClient)
	busyClient := newSubscription(newFakeConn("busy"), "/queue/a", AckModeClient)
	busyClient.inflight = &PendingMessage{MessageId: "m1"}

	picked, ok := s.Choose("/queue/a", []*Subscription{autoSub, idleClient, busyClient})
	if !ok || picked != idleClient {
		t.Fatal("expect the idle reliable subscription")
	}

	picked, ok = s.Choose("/queue/a", []*Subscription{autoSub, busyClient})
	if !ok || picked != autoSub {
		t.Fatal("expect the auto ack fallback")
	}

	if _, ok := s.Choose("/queue/a", []*Subscription{busyClient}); ok {
		t.Fatal("a busy reliable subscription alone is not eligible")
	}

	if _, ok := s.Choose("/queue/a", nil); ok {
		t.Fatal("no candidates must choose nothing")
	}
}

func TestRandomSubscriberScheduler(t *testing.T) {
	s := RandomSubscriberScheduler{}

	busyClient := newSubscription(newFakeConn("busy"), "/queue/a", AckModeClient)
	busyClient.inflight = &PendingMessage{MessageId: "m1"}
	autoSub := newSubscription(newFakeConn("auto"), "/queue/a", AckModeAuto)

	picked, ok := s.Choose("/queue/a", []*Subscription{busyClient, autoSub})
	if !ok || picked != autoSub {
		t.Fatal("busy reliable subscriptions must be skipped")
	}

	if _, ok := s.Choose("/queue/a", []*Subscription{busyClient}); ok {
		t.Fatal("expect no pick when everyone is busy")
	}
}
