// Package scheduler runs recurring jobs one at a time from a single
// polling loop.
package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/smukkama/carbon-monitor/internal/metrics"
)

// DefaultPollInterval is how often the loop checks for due jobs
const DefaultPollInterval = time.Minute

// Scheduler keeps recurring jobs in a min-heap keyed by their next run
// time. Due jobs run synchronously on the scheduler's goroutine, so jobs
// never overlap and a slow job delays the next check.
type Scheduler struct {
	mu      sync.Mutex
	heap    jobHeap
	jobs    map[string]*entry
	poll    time.Duration
	now     func() time.Time
	metrics *metrics.Metrics

	started bool
	stopped bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a scheduler polling every poll interval. m may be nil.
func New(poll time.Duration, m *metrics.Metrics) *Scheduler {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	s := &Scheduler{
		heap:    make(jobHeap, 0),
		jobs:    make(map[string]*entry),
		poll:    poll,
		now:     time.Now,
		metrics: m,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	heap.Init(&s.heap)
	return s
}

// Schedule registers a recurring job
func (s *Scheduler) Schedule(job Job) error {
	if job.Name == "" || job.Run == nil || job.Interval <= 0 {
		return fmt.Errorf("invalid job %q: name, run func and positive interval required", job.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSchedulerStopped
	}
	if _, ok := s.jobs[job.Name]; ok {
		return ErrDuplicateJob
	}

	e := &entry{job: job, next: s.now().Add(job.Interval)}
	switch {
	case !job.StartAt.IsZero():
		e.next = job.StartAt
	case job.RunOnStart:
		e.next = s.now()
	}
	heap.Push(&s.heap, e)
	s.jobs[job.Name] = e
	return nil
}

// Cancel removes a job. A job that is currently running finishes and is
// not rescheduled.
func (s *Scheduler) Cancel(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[name]
	if !ok {
		return false
	}
	if e.index >= 0 {
		heap.Remove(&s.heap, e.index)
	}
	delete(s.jobs, name)
	return true
}

// RunPending runs every job that is due, earliest first, and returns the
// number of jobs run. Each job is rescheduled one interval after it
// finishes.
func (s *Scheduler) RunPending(ctx context.Context) int {
	s.mu.Lock()
	now := s.now()
	var due []*entry
	for s.heap.Len() > 0 && !s.heap[0].next.After(now) {
		due = append(due, heap.Pop(&s.heap).(*entry))
	}
	s.mu.Unlock()

	for _, e := range due {
		err := s.execute(ctx, e)

		s.mu.Lock()
		e.runs++
		e.lastRun = now
		e.lastErr = err
		if err != nil {
			e.failures++
		}
		if s.jobs[e.job.Name] == e {
			e.next = s.now().Add(e.job.Interval)
			heap.Push(&s.heap, e)
		}
		s.mu.Unlock()
	}
	return len(due)
}

// execute runs one job, turning a panic into an error
func (s *Scheduler) execute(ctx context.Context, e *entry) (err error) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}

		status := "success"
		if err != nil {
			status = "error"
			log.Printf("scheduler: job %s failed: %v", e.job.Name, err)
		}
		s.metrics.RecordJob(e.job.Name, status, time.Since(started))
	}()

	return e.job.Run(ctx)
}

// Start runs the polling loop in its own goroutine until Stop is called
// or ctx is done
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSchedulerStopped
	}
	if s.started {
		return nil
	}
	s.started = true

	log.Printf("scheduler: started with %d jobs, polling every %v", len(s.jobs), s.poll)
	go s.run(ctx)
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		s.RunPending(ctx)

		select {
		case <-ticker.C:
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends the polling loop, waiting for a running job to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	close(s.stopCh)
	s.mu.Unlock()

	if started {
		<-s.doneCh
	}
	log.Println("scheduler: stopped")
}

// Stats returns statistics about the scheduled jobs
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{Jobs: make([]JobStats, 0, len(s.jobs))}
	for _, e := range s.jobs {
		js := JobStats{
			Name:     e.job.Name,
			Interval: e.job.Interval,
			NextRun:  e.next,
			Runs:     e.runs,
			Failures: e.failures,
		}
		if !e.lastRun.IsZero() {
			lastRun := e.lastRun
			js.LastRun = &lastRun
		}
		if e.lastErr != nil {
			js.LastError = e.lastErr.Error()
		}
		stats.Jobs = append(stats.Jobs, js)
	}
	sort.Slice(stats.Jobs, func(i, j int) bool { return stats.Jobs[i].Name < stats.Jobs[j].Name })
	return stats
}

// Stats contains statistics about the scheduler
type Stats struct {
	Jobs []JobStats `json:"jobs"`
}

// JobStats describes one scheduled job
type JobStats struct {
	Name      string        `json:"name"`
	Interval  time.Duration `json:"interval"`
	NextRun   time.Time     `json:"next_run"`
	LastRun   *time.Time    `json:"last_run,omitempty"` // nil until the first run
	Runs      int           `json:"runs"`
	Failures  int           `json:"failures"`
	LastError string        `json:"last_error,omitempty"`
}

var (
	ErrSchedulerStopped = &SchedulerError{"scheduler is stopped"}
	ErrDuplicateJob     = &SchedulerError{"job is already scheduled"}
)

// SchedulerError represents a scheduler error
type SchedulerError struct {
	msg string
}

func (e *SchedulerError) Error() string {
	return e.msg
}
