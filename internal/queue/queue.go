// Package queue implements the bounded priority+FIFO holding area of
// spec §4.2: a container/heap binary heap keyed (-priority, created_at,
// seq), the ordering spec §9's design note prescribes. The atomically
// incrementing seq breaks exact-time ties so heap.Fix/Push never has to
// compare equal items.
package queue

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yungbote/browserjobs-backend/internal/platform/apierr"
)

// Item is one holding-area entry. RequestID and the ordering fields are
// all the queue needs; the Job Store row is the source of truth for
// everything else.
type Item struct {
	RequestID string
	Priority  int
	CreatedAt time.Time
	seq       int64
}

type innerHeap []*Item

func (h innerHeap) Len() int { return len(h) }
func (h innerHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority // higher priority first
	}
	if !h[i].CreatedAt.Equal(h[j].CreatedAt) {
		return h[i].CreatedAt.Before(h[j].CreatedAt) // earlier submission first
	}
	return h[i].seq < h[j].seq
}
func (h innerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *innerHeap) Push(x interface{}) { *h = append(*h, x.(*Item)) }
func (h *innerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Queue is a bounded, mutex-guarded priority queue. A single mutex
// guards the whole structure; per spec §4.3 this is fine because work
// units are long (seconds) relative to lock hold time (a heap push/pop).
type Queue struct {
	mu       sync.Mutex
	heap     innerHeap
	capacity int
	seq      atomic.Int64
}

func New(capacity int) *Queue {
	q := &Queue{
		heap:     make(innerHeap, 0, capacity),
		capacity: capacity,
	}
	heap.Init(&q.heap)
	return q
}

// Enqueue is the in-memory half of §4.2's two-step commit point; the
// caller is responsible for the Job Store insert happening first (or for
// running the startup recovery sweep if it can't be one transaction).
// It fails fast with QueueFullError at capacity rather than blocking.
func (q *Queue) Enqueue(requestID string, priority int, createdAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.heap) >= q.capacity {
		return apierr.QueueFullError(errFull)
	}
	heap.Push(&q.heap, &Item{
		RequestID: requestID,
		Priority:  priority,
		CreatedAt: createdAt,
		seq:       q.seq.Add(1),
	})
	return nil
}

// Dequeue pops the highest-priority, earliest-submitted item, or returns
// ok=false if the queue is currently empty. Workers combine this with a
// wait/ticker loop rather than blocking forever inside Dequeue itself, so
// shutdown can observe a stop flag between polls (§4.3).
func (q *Queue) Dequeue() (*Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.heap) == 0 {
		return nil, false
	}
	item := heap.Pop(&q.heap).(*Item)
	return item, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

// Snapshot returns up to limit items in dequeue order without mutating
// the queue, for /queue/status's advisory top-N listing (§6).
func (q *Queue) Snapshot(limit int) []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	cp := make(innerHeap, len(q.heap))
	copy(cp, q.heap)
	heap.Init(&cp)
	out := make([]Item, 0, limit)
	for len(cp) > 0 && len(out) < limit {
		item := heap.Pop(&cp).(*Item)
		out = append(out, *item)
	}
	return out
}

var errFull = queueFullErr{}

type queueFullErr struct{}

func (queueFullErr) Error() string { return "queue is at capacity" }
