package browserpool

import (
	"container/list"
	"sync"
	"time"

	"github.com/browsercore/browsercore/internal/coreerr"
)

// Priority orders waiters within the acquisition queue; higher values are
// served first, FIFO within a priority tier.
type Priority int

const (
	PriorityLow    Priority = 0
	PriorityNormal Priority = 5
	PriorityHigh   Priority = 10
)

type waiter struct {
	sessionID  string
	enqueuedAt time.Time
	deadline   time.Time
	resultCh   chan waitResult
}

type waitResult struct {
	instance  *Instance
	sessionID string
	err       error
}

// Stats summarizes the queue's current backlog, used for pool metrics.
type Stats struct {
	Count         int
	OldestWaitAge time.Duration
}

// AcquisitionQueue is a FIFO-within-priority waitlist for sessions blocked on
// browser acquisition. Each priority tier is its own list so popNext can
// always serve the highest tier's oldest waiter in O(1).
type AcquisitionQueue struct {
	mu      sync.Mutex
	tiers   map[Priority]*list.List
	order   []Priority // descending priority, populated lazily
}

// NewAcquisitionQueue constructs an empty queue.
func NewAcquisitionQueue() *AcquisitionQueue {
	return &AcquisitionQueue{tiers: make(map[Priority]*list.List)}
}

func (q *AcquisitionQueue) tierFor(p Priority) *list.List {
	l, ok := q.tiers[p]
	if !ok {
		l = list.New()
		q.tiers[p] = l
		q.order = append(q.order, p)
		sortDescending(q.order)
	}
	return l
}

func sortDescending(ps []Priority) {
	for i := 1; i < len(ps); i++ {
		for j := i; j > 0 && ps[j] > ps[j-1]; j-- {
			ps[j], ps[j-1] = ps[j-1], ps[j]
		}
	}
}

// Enqueue blocks the calling goroutine until a browser is handed to it via
// popNext, the deadline elapses (Timeout), or the queue is cleared
// (Unavailable).
func (q *AcquisitionQueue) Enqueue(sessionID string, priority Priority, timeout time.Duration) (*Instance, error) {
	now := time.Now()
	w := &waiter{sessionID: sessionID, enqueuedAt: now, deadline: now.Add(timeout), resultCh: make(chan waitResult, 1)}

	q.mu.Lock()
	elem := q.tierFor(priority).PushBack(w)
	q.mu.Unlock()

	select {
	case res := <-w.resultCh:
		return res.instance, res.err
	case <-time.After(timeout):
		q.remove(priority, elem)
		select {
		case res := <-w.resultCh:
			return res.instance, res.err
		default:
			return nil, coreerr.New(coreerr.Timeout, "acquisition queue wait exceeded deadline")
		}
	}
}

func (q *AcquisitionQueue) remove(priority Priority, elem *list.Element) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if l, ok := q.tiers[priority]; ok {
		l.Remove(elem)
	}
}

// popNext removes and returns the oldest waiter in the highest-priority
// non-empty tier, skipping (and rejecting with Timeout) any waiter already
// past its deadline. Returns nil if no waiter is waiting. The caller is
// responsible for running the same lease bookkeeping AcquireBrowser's direct
// path runs (state/sessionID/useCount, needsRestart) before handing the
// waiter its instance via resultCh — popNext only dequeues.
func (q *AcquisitionQueue) popNext() *waiter {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, p := range q.order {
		l := q.tiers[p]
		for l.Len() > 0 {
			front := l.Front()
			l.Remove(front)
			w := front.Value.(*waiter)
			if time.Now().After(w.deadline) {
				w.resultCh <- waitResult{err: coreerr.New(coreerr.Timeout, "acquisition queue wait exceeded deadline")}
				continue
			}
			return w
		}
	}
	return nil
}

// reap expires every waiter past its deadline. Intended to run on a ticker
// so a waiter whose timer already fired client-side but whose entry wasn't
// removed (a lost race with popNext) doesn't linger indefinitely.
func (q *AcquisitionQueue) reap() {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := time.Now()
	for _, l := range q.tiers {
		for e := l.Front(); e != nil; {
			next := e.Next()
			w := e.Value.(*waiter)
			if now.After(w.deadline) {
				l.Remove(e)
				select {
				case w.resultCh <- waitResult{err: coreerr.New(coreerr.Timeout, "acquisition queue wait exceeded deadline")}:
				default:
				}
			}
			e = next
		}
	}
}

// clear rejects every waiter with Unavailable, used on pool shutdown.
func (q *AcquisitionQueue) clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, l := range q.tiers {
		for e := l.Front(); e != nil; e = e.Next() {
			w := e.Value.(*waiter)
			select {
			case w.resultCh <- waitResult{err: coreerr.New(coreerr.Unavailable, "pool is shutting down")}:
			default:
			}
		}
		l.Init()
	}
}

// getStats reports the queue's current backlog for pool metrics.
func (q *AcquisitionQueue) getStats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	var count int
	var oldest time.Time
	for _, l := range q.tiers {
		count += l.Len()
		for e := l.Front(); e != nil; e = e.Next() {
			w := e.Value.(*waiter)
			if oldest.IsZero() || w.enqueuedAt.Before(oldest) {
				oldest = w.enqueuedAt
			}
		}
	}
	if count == 0 {
		return Stats{}
	}
	return Stats{Count: count, OldestWaitAge: time.Since(oldest)}
}
