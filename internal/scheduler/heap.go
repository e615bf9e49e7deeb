package scheduler

import (
	"context"
	"time"
)

// Job is a recurring unit of work
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
	// RunOnStart makes the job due immediately instead of one interval
	// after it is scheduled
	RunOnStart bool
	// StartAt, when set, is the first run time. It takes precedence
	// over RunOnStart.
	StartAt time.Time
}

// entry is a scheduled job and its bookkeeping
type entry struct {
	job      Job
	next     time.Time
	lastRun  time.Time
	lastErr  error
	runs     int
	failures int
	index    int // index in the heap (for heap.Interface)
}

// jobHeap is a min-heap of entries ordered by next run time
type jobHeap []*entry

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	return h[i].next.Before(h[j].next)
}

func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *jobHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[0 : n-1]
	return e
}
