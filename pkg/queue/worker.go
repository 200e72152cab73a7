package queue

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/config"
)

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// WorkerHealth is one worker's health snapshot.
type WorkerHealth struct {
	ID            string       `json:"id"`
	Status        WorkerStatus `json:"status"`
	CurrentJobID  string       `json:"currentJobId,omitempty"`
	JobsProcessed int          `json:"jobsProcessed"`
	LastActivity  time.Time    `json:"lastActivity"`
}

// rateGate is the shared per-second job-start throttle.
type rateGate interface {
	acquire(stopCh <-chan struct{}) bool
}

// Worker is a single queue worker that polls for and processes jobs.
type Worker struct {
	id        string
	queue     *Queue
	cfg       *config.QueueConfig
	processor Processor
	gate      rateGate
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup

	mu            sync.RWMutex
	status        WorkerStatus
	currentJobID  string
	jobsProcessed int
	lastActivity  time.Time
}

// NewWorker creates a queue worker.
func NewWorker(id string, queue *Queue, cfg *config.QueueConfig, processor Processor, gate rateGate) *Worker {
	return &Worker{
		id:           id,
		queue:        queue,
		cfg:          cfg,
		processor:    processor,
		gate:         gate,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker polling loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for the current job to finish.
// Safe to call multiple times.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health returns the current worker health snapshot.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:            w.id,
		Status:        w.status,
		CurrentJobID:  w.currentJobID,
		JobsProcessed: w.jobsProcessed,
		LastActivity:  w.lastActivity,
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id, "queue", w.queue.Name())
	log.Info("Worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("Worker shutting down")
			return
		case <-ctx.Done():
			log.Info("Context cancelled, worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, ErrNoJobsAvailable) {
					w.sleep(w.pollInterval())
					continue
				}
				log.Error("Error processing job", "error", err)
				w.sleep(time.Second)
			}
		}
	}
}

// sleep waits for the given duration or until stop is signalled.
func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// pollAndProcess claims one job, runs it under the job timeout with a lock
// heartbeat, and settles the outcome.
func (w *Worker) pollAndProcess(ctx context.Context) error {
	job, err := w.queue.Claim(ctx, w.id)
	if err != nil {
		return err
	}

	// Per-second burst cap applies after the claim so an idle queue never
	// consumes tokens.
	if !w.gate.acquire(w.stopCh) {
		// Shutting down: hand the job back without consuming an attempt.
		return w.queue.Requeue(ctx, job)
	}

	log := slog.With("worker_id", w.id, "job_id", job.ID, "attempt", job.Attempts+1)
	log.Info("Job claimed")

	w.setStatus(WorkerStatusWorking, job.ID)
	defer w.setStatus(WorkerStatusIdle, "")

	jobCtx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()

	heartbeatCtx, cancelHeartbeat := context.WithCancel(jobCtx)
	defer cancelHeartbeat()
	go w.runHeartbeat(heartbeatCtx, job.ID)

	procErr := w.processor.Process(jobCtx, job)
	cancelHeartbeat()

	// Timeouts follow the retry policy like any transient failure.
	if procErr == nil && jobCtx.Err() != nil {
		procErr = Retryable(jobCtx.Err())
	}

	// Settle using the parent context: the job context may be dead.
	if procErr != nil {
		retryable := IsRetryable(procErr)
		final, failErr := w.queue.Fail(ctx, job, procErr, retryable)
		if failErr != nil {
			return failErr
		}
		log.Error("Job failed",
			"error", procErr, "retryable", retryable, "isFinalFailure", final)
		jobsFailed.WithLabelValues(w.queue.Name()).Inc()
		if final {
			jobsDeadLettered.WithLabelValues(w.queue.Name()).Inc()
		}
		return nil
	}

	if err := w.queue.Complete(ctx, job); err != nil {
		return err
	}

	w.mu.Lock()
	w.jobsProcessed++
	w.mu.Unlock()
	jobsProcessed.WithLabelValues(w.queue.Name()).Inc()

	log.Info("Job processed")
	return nil
}

// runHeartbeat extends the job lock at a third of its duration so stalled
// detection only fires for genuinely dead workers.
func (w *Worker) runHeartbeat(ctx context.Context, jobID string) {
	interval := w.cfg.LockDuration / 3
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.queue.ExtendLock(ctx, jobID); err != nil {
				slog.Warn("Lock heartbeat failed", "job_id", jobID, "error", err)
			}
		}
	}
}

// pollInterval returns the poll duration with jitter.
func (w *Worker) pollInterval() time.Duration {
	base := w.cfg.PollInterval
	jitter := w.cfg.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

func (w *Worker) setStatus(status WorkerStatus, jobID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentJobID = jobID
	w.lastActivity = time.Now()
}
