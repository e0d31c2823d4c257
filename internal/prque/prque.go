// Package prque implements the min-priority queue the engine needs: keyed
// by job index, it backs both the inbound (ready-to-issue) and outbound
// (completed-awaiting-emit) heaps of C2; keyed by deadline, it backs the
// engine's timeout heap.
//
// The shape mirrors go-ethereum's own common/prque (Push/Pop/Peek/Size over a
// generic container/heap.Interface), adapted to the narrower need here: Pop
// always returns the value with the lowest priority (the lowest-numbered
// job, or the earliest deadline).
package prque

import "container/heap"

// Prque is a priority queue where lower priority values come out first.
type Prque[P int | int64, V any] struct {
	cont *sstack[P, V]
}

// New creates a new priority queue.
func New[P int | int64, V any]() *Prque[P, V] {
	return &Prque[P, V]{cont: &sstack[P, V]{}}
}

// Push adds an item with the given priority.
func (p *Prque[P, V]) Push(data V, priority P) {
	heap.Push(p.cont, &item[P, V]{data, priority})
}

// Peek returns the value with the lowest priority without removing it.
func (p *Prque[P, V]) Peek() (V, P) {
	it := p.cont.items[0]
	return it.value, it.priority
}

// Pop removes and returns the value with the lowest priority.
func (p *Prque[P, V]) Pop() (V, P) {
	it := heap.Pop(p.cont).(*item[P, V])
	return it.value, it.priority
}

// PopItem pops the value only, discarding the priority. Convenience wrapper
// used where the caller only cares about the job.
func (p *Prque[P, V]) PopItem() V {
	v, _ := p.Pop()
	return v
}

// Size returns the number of elements in the queue.
func (p *Prque[P, V]) Size() int { return len(p.cont.items) }

// Empty returns whether the queue is empty.
func (p *Prque[P, V]) Empty() bool { return len(p.cont.items) == 0 }

// Reset clears the contents of the queue.
func (p *Prque[P, V]) Reset() { p.cont.items = nil }

type item[P int | int64, V any] struct {
	value    V
	priority P
}

// sstack is the internal heap.Interface implementation backing Prque.
type sstack[P int | int64, V any] struct {
	items []*item[P, V]
}

func (s *sstack[P, V]) Len() int { return len(s.items) }

func (s *sstack[P, V]) Less(i, j int) bool {
	return s.items[i].priority < s.items[j].priority
}

func (s *sstack[P, V]) Swap(i, j int) {
	s.items[i], s.items[j] = s.items[j], s.items[i]
}

func (s *sstack[P, V]) Push(x any) {
	s.items = append(s.items, x.(*item[P, V]))
}

func (s *sstack[P, V]) Pop() any {
	n := len(s.items)
	it := s.items[n-1]
	s.items[n-1] = nil
	s.items = s.items[:n-1]
	return it
}
