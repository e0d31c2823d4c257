package prque

import (
	"math/rand"
	"testing"
)

func TestPrque(t *testing.T) {
	size := 128
	prio := rand.Perm(size)
	data := make([]int, size)
	for i := 0; i < size; i++ {
		data[i] = rand.Int()
	}
	queue := New[int, int]()

	for i := 0; i < size; i++ {
		queue.Push(data[i], prio[i])
		if queue.Size() != i+1 {
			t.Fatalf("queue size mismatch: have %v, want %v", queue.Size(), i+1)
		}
	}
	dict := make(map[int]int)
	for i := 0; i < size; i++ {
		dict[prio[i]] = data[i]
	}

	prevPrio := -1
	for !queue.Empty() {
		val, prio := queue.Pop()
		if prio < prevPrio {
			t.Fatalf("invalid priority order: %v before %v", prio, prevPrio)
		}
		prevPrio = prio
		if val != dict[prio] {
			t.Fatalf("push/pop mismatch: have %v, want %v", val, dict[prio])
		}
	}
}

func TestPeekDoesNotRemove(t *testing.T) {
	queue := New[int, string]()
	queue.Push("b", 2)
	queue.Push("a", 1)

	v, p := queue.Peek()
	if v != "a" || p != 1 {
		t.Fatalf("peek returned %v/%v, want a/1", v, p)
	}
	if queue.Size() != 2 {
		t.Fatalf("peek must not remove, size=%d", queue.Size())
	}
	v, p = queue.Pop()
	if v != "a" || p != 1 {
		t.Fatalf("pop returned %v/%v, want a/1", v, p)
	}
	if queue.Size() != 1 {
		t.Fatalf("pop must remove, size=%d", queue.Size())
	}
}
