// Package dispatch runs historical backfills in the background on a
// bounded queue drained by a fixed worker pool.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smukkama/carbon-monitor/internal/database"
	"github.com/smukkama/carbon-monitor/internal/generation"
	"github.com/smukkama/carbon-monitor/internal/jobstate"
	"github.com/smukkama/carbon-monitor/internal/metrics"
)

// Backfiller runs one backfill
type Backfiller interface {
	Backfill(ctx context.Context, zoneID int64, req generation.Request) (generation.Result, error)
}

// Tracker records job progress
type Tracker interface {
	Update(ctx context.Context, st jobstate.Status) error
}

// Job is a queued backfill request
type Job struct {
	ID         string
	ZoneID     int64
	Request    generation.Request
	EnqueuedAt time.Time
}

// Dispatcher hands backfill jobs to a pool of workers
type Dispatcher struct {
	backfiller Backfiller
	tracker    Tracker
	metrics    *metrics.Metrics

	jobQueue    chan *Job
	workerCount int

	mu      sync.RWMutex
	started bool
	stopped bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a dispatcher. tracker and m may be nil.
func New(backfiller Backfiller, tracker Tracker, m *metrics.Metrics, workerCount, queueSize int) *Dispatcher {
	if workerCount <= 0 {
		workerCount = 2
	}
	if queueSize <= 0 {
		queueSize = 256
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		backfiller:  backfiller,
		tracker:     tracker,
		metrics:     m,
		jobQueue:    make(chan *Job, queueSize),
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the workers
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true

	for i := 0; i < d.workerCount; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	log.Printf("dispatch: started %d workers (queue size %d)", d.workerCount, cap(d.jobQueue))
}

// Dispatch queues a backfill and returns its job id without waiting for
// it to run. It fails with ErrQueueFull when the queue has no room.
func (d *Dispatcher) Dispatch(zoneID int64, req generation.Request) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		return "", ErrDispatcherStopped
	}

	job := &Job{
		ID:         uuid.New().String(),
		ZoneID:     zoneID,
		Request:    req,
		EnqueuedAt: time.Now().UTC(),
	}

	select {
	case d.jobQueue <- job:
	default:
		d.metrics.RecordDispatchRejected()
		log.Printf("dispatch: queue full, dropping backfill of zone %d", zoneID)
		return "", ErrQueueFull
	}

	d.metrics.SetQueueDepth(len(d.jobQueue))
	d.track(job, jobstate.StateQueued, 0, nil)
	return job.ID, nil
}

// Stop stops accepting jobs and waits for the queued ones to finish.
// When ctx ends first, running backfills are cancelled.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.jobQueue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	defer d.cancel()
	select {
	case <-done:
		log.Println("dispatch: stopped")
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return fmt.Errorf("dispatcher stop: %w", ctx.Err())
	}
}

// QueueDepth returns the number of jobs waiting for a worker
func (d *Dispatcher) QueueDepth() int {
	return len(d.jobQueue)
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	for job := range d.jobQueue {
		d.metrics.SetQueueDepth(len(d.jobQueue))
		d.process(id, job)
	}
}

func (d *Dispatcher) process(workerID int, job *Job) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("backfill panicked: %v", r)
			log.Printf("dispatch: worker %d job %s zone %d: %v", workerID, job.ID, job.ZoneID, err)
			d.track(job, jobstate.StateFailed, 0, err)
		}
	}()

	d.track(job, jobstate.StateRunning, 0, nil)

	res, err := d.backfiller.Backfill(d.ctx, job.ZoneID, job.Request)
	switch {
	case errors.Is(err, database.ErrZoneNotFound):
		log.Printf("dispatch: zone %d no longer exists, skipping job %s", job.ZoneID, job.ID)
		d.track(job, jobstate.StateFailed, 0, err)
	case err != nil:
		log.Printf("dispatch: job %s zone %d failed: %v", job.ID, job.ZoneID, err)
		d.track(job, jobstate.StateFailed, res.Generated, err)
	case res.Skipped:
		d.track(job, jobstate.StateSkipped, 0, nil)
	default:
		d.track(job, jobstate.StateCompleted, res.Generated, nil)
	}
}

func (d *Dispatcher) track(job *Job, state jobstate.State, count int, jobErr error) {
	if d.tracker == nil {
		return
	}

	st := jobstate.Status{
		JobID:         job.ID,
		ZoneID:        job.ZoneID,
		State:         state,
		Days:          job.Request.Days,
		IntervalHours: job.Request.IntervalHours,
		Force:         job.Request.Force,
		Count:         count,
		QueuedAt:      job.EnqueuedAt,
	}
	if jobErr != nil {
		st.Error = jobErr.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.tracker.Update(ctx, st); err != nil {
		log.Printf("dispatch: failed to record %s state of job %s: %v", state, job.ID, err)
	}
}

var (
	ErrQueueFull         = &DispatchError{"backfill queue is full"}
	ErrDispatcherStopped = &DispatchError{"dispatcher is stopped"}
)

// DispatchError represents a dispatcher error
type DispatchError struct {
	msg string
}

func (e *DispatchError) Error() string {
	return e.msg
}
