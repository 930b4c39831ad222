package scheduler

import (
	"container/heap"
	"sort"
	"time"

	"github.com/nhle/remindme/internal/model"
)

// queueEntry is a heap slot. seq records insertion order so entries sharing
// a fire time pop first-in first-out.
type queueEntry struct {
	n     model.Notification
	seq   uint64
	index int
}

// dueHeap implements container/heap.Interface for queueEntry,
// sorted by FireAt, earliest first.
type dueHeap []*queueEntry

func (h dueHeap) Len() int { return len(h) }

func (h dueHeap) Less(i, j int) bool {
	if h[i].n.FireAt.Equal(h[j].n.FireAt) {
		return h[i].seq < h[j].seq
	}
	return h[i].n.FireAt.Before(h[j].n.FireAt)
}

func (h dueHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *dueHeap) Push(x any) {
	e := x.(*queueEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *dueHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// DueQueue is the ordered, deduplicated working set of pending
// notifications, keyed by LocalID. It is not safe for concurrent use;
// the scheduler worker owns it.
type DueQueue struct {
	h       dueHeap
	byID    map[string]*queueEntry
	nextSeq uint64
}

// NewDueQueue returns an empty queue.
func NewDueQueue() *DueQueue {
	return &DueQueue{byID: make(map[string]*queueEntry)}
}

// Offer inserts n unless a notification with the same LocalID is already
// tracked. It returns false for duplicates and for unpersisted notifications.
func (q *DueQueue) Offer(n model.Notification) bool {
	if !n.IsPersisted() {
		return false
	}
	if _, ok := q.byID[n.LocalID]; ok {
		return false
	}

	e := &queueEntry{n: n, seq: q.nextSeq}
	q.nextSeq++
	heap.Push(&q.h, e)
	q.byID[n.LocalID] = e
	return true
}

// PeekDue reports whether the earliest notification fires at or before now+delta.
func (q *DueQueue) PeekDue(now time.Time, delta time.Duration) bool {
	if len(q.h) == 0 {
		return false
	}
	return !q.h[0].n.FireAt.After(now.Add(delta))
}

// DrainDue removes and returns every due notification, earliest first.
func (q *DueQueue) DrainDue(now time.Time, delta time.Duration) []model.Notification {
	var due []model.Notification
	for q.PeekDue(now, delta) {
		e := heap.Pop(&q.h).(*queueEntry)
		delete(q.byID, e.n.LocalID)
		due = append(due, e.n)
	}
	return due
}

// Remove drops the notification with the given LocalID. It reports whether
// an entry was removed.
func (q *DueQueue) Remove(localID string) bool {
	e, ok := q.byID[localID]
	if !ok {
		return false
	}
	heap.Remove(&q.h, e.index)
	delete(q.byID, localID)
	return true
}

// Get returns the tracked notification with the given LocalID.
func (q *DueQueue) Get(localID string) (model.Notification, bool) {
	e, ok := q.byID[localID]
	if !ok {
		return model.Notification{}, false
	}
	return e.n, true
}

// Len returns the number of tracked notifications.
func (q *DueQueue) Len() int {
	return len(q.h)
}

// Snapshot returns a copy of the tracked notifications in firing order.
func (q *DueQueue) Snapshot() []model.Notification {
	entries := make([]*queueEntry, len(q.h))
	copy(entries, q.h)
	sort.Slice(entries, func(i, j int) bool {
		return dueHeap(entries).Less(i, j)
	})

	out := make([]model.Notification, len(entries))
	for i, e := range entries {
		out[i] = e.n
	}
	return out
}
