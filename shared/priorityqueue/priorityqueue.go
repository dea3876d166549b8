package priorityqueue

import (
	"container/heap"
)

type Option[T any] func(queue *PriorityQueue[T])

// PriorityQueue pops the item with the smallest priority first. Items pushed
// with equal priority come out in unspecified order.
type PriorityQueue[T any] struct {
	priorityQueue priorityQueue[T]
}

func WithPreallocateSize[T any](n int) Option[T] {
	return func(queue *PriorityQueue[T]) {
		queue.priorityQueue = make(priorityQueue[T], 0, n)
	}
}

func NewMinPriorityQueue[T any](options ...Option[T]) *PriorityQueue[T] {
	p := new(PriorityQueue[T])
	for _, option := range options {
		option(p)
	}
	heap.Init(&p.priorityQueue)
	return p
}

func (p *PriorityQueue[T]) Push(value T, priority int64) {
	heap.Push(&p.priorityQueue, &item[T]{
		value:    value,
		priority: priority,
	})
}

func (p *PriorityQueue[T]) Pop() T {
	it := heap.Pop(&p.priorityQueue).(*item[T])
	return it.value
}

func (p *PriorityQueue[T]) Peek() T {
	return p.priorityQueue[0].value
}

func (p *PriorityQueue[T]) IsEmpty() bool {
	return p.priorityQueue.Len() == 0
}

func (p *PriorityQueue[T]) Size() int {
	return p.priorityQueue.Len()
}

type item[T any] struct {
	value    T
	priority int64

	index int
}

type priorityQueue[T any] []*item[T]

func (pq priorityQueue[T]) Len() int { return len(pq) }

func (pq priorityQueue[T]) Less(i, j int) bool {
	return pq[i].priority < pq[j].priority
}

func (pq priorityQueue[T]) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue[T]) Push(x any) {
	it := x.(*item[T])
	it.index = len(*pq)
	*pq = append(*pq, it)
}

func (pq *priorityQueue[T]) Pop() any {
	old := *pq
	n := len(old)
	it := old[n-1]
	it.index = -1 // for safety
	old[n-1] = nil // avoid memory leak
	*pq = old[0 : n-1]
	return it
}
