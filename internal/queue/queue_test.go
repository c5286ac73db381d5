package queue

import (
	"testing"
	"time"
)

func TestPriorityThenFIFO(t *testing.T) {
	q := New(10)
	now := time.Now()
	if err := q.Enqueue("a", 1, now); err != nil {
		t.Fatalf("enqueue a: %v", err)
	}
	if err := q.Enqueue("b", 5, now); err != nil {
		t.Fatalf("enqueue b: %v", err)
	}
	if err := q.Enqueue("c", 5, now.Add(time.Millisecond)); err != nil {
		t.Fatalf("enqueue c: %v", err)
	}

	first, ok := q.Dequeue()
	if !ok || first.RequestID != "b" {
		t.Fatalf("expected b first, got %+v ok=%v", first, ok)
	}
	second, ok := q.Dequeue()
	if !ok || second.RequestID != "c" {
		t.Fatalf("expected c second, got %+v ok=%v", second, ok)
	}
	third, ok := q.Dequeue()
	if !ok || third.RequestID != "a" {
		t.Fatalf("expected a third, got %+v ok=%v", third, ok)
	}
}

func TestQueueFullError(t *testing.T) {
	q := New(2)
	now := time.Now()
	if err := q.Enqueue("a", 1, now); err != nil {
		t.Fatalf("enqueue a: %v", err)
	}
	if err := q.Enqueue("b", 1, now); err != nil {
		t.Fatalf("enqueue b: %v", err)
	}
	if err := q.Enqueue("c", 1, now); err == nil {
		t.Fatalf("expected QueueFullError, got nil")
	}
	if _, ok := q.Dequeue(); !ok {
		t.Fatalf("expected a dequeue to succeed")
	}
	if err := q.Enqueue("d", 1, now); err != nil {
		t.Fatalf("enqueue after pop should succeed: %v", err)
	}
}
