package stomp

import (
	"github.com/woutdenolf/coilmq/shared/priorityqueue"
)

type memoryDestination struct {
	frames *priorityqueue.PriorityQueue[*Frame]

	// enqueue walks back upward, requeue walks front downward, so a requeued
	// frame always sorts before every newer one
	front int64
	back  int64
}

// MemoryStore is the reference Store. Nothing survives a restart. It relies
// on the manager's locking discipline and holds no lock of its own.
type MemoryStore struct {
	destinations map[string]*memoryDestination
	closed       bool
}

var _ Store = new(MemoryStore)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		destinations: make(map[string]*memoryDestination),
	}
}

func (m *MemoryStore) destination(destination string) *memoryDestination {
	d, ok := m.destinations[destination]
	if !ok {
		d = &memoryDestination{
			frames: priorityqueue.NewMinPriorityQueue[*Frame](priorityqueue.WithPreallocateSize[*Frame](16)),
		}
		m.destinations[destination] = d
	}
	return d
}

func (m *MemoryStore) Enqueue(destination string, frame *Frame) error {
	if m.closed {
		return ErrStoreClosed
	}
	d := m.destination(destination)
	d.back++
	d.frames.Push(frame, d.back)
	return nil
}

func (m *MemoryStore) Dequeue(destination string) (*Frame, error) {
	if m.closed {
		return nil, ErrStoreClosed
	}
	d, ok := m.destinations[destination]
	if !ok || d.frames.IsEmpty() {
		return nil, nil
	}
	return d.frames.Pop(), nil
}

func (m *MemoryStore) Requeue(destination string, frame *Frame) error {
	if m.closed {
		return ErrStoreClosed
	}
	d := m.destination(destination)
	d.front--
	d.frames.Push(frame, d.front)
	return nil
}

func (m *MemoryStore) HasFrames(destination string) (bool, error) {
	d, ok := m.destinations[destination]
	return ok && !d.frames.IsEmpty(), nil
}

func (m *MemoryStore) Size(destination string) (int, error) {
	d, ok := m.destinations[destination]
	if !ok {
		return 0, nil
	}
	return d.frames.Size(), nil
}

func (m *MemoryStore) Destinations() ([]string, error) {
	var dests []string
	for name, d := range m.destinations {
		if !d.frames.IsEmpty() {
			dests = append(dests, name)
		}
	}
	return dests, nil
}

func (m *MemoryStore) Close() error {
	m.destinations = nil
	m.closed = true
	return nil
}
