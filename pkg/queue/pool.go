package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/config"
)

// PoolHealth is the pool's health snapshot.
type PoolHealth struct {
	IsHealthy     bool           `json:"isHealthy"`
	PodID         string         `json:"podId"`
	ActiveWorkers int            `json:"activeWorkers"`
	TotalWorkers  int            `json:"totalWorkers"`
	Stats         *Stats         `json:"stats,omitempty"`
	StatsError    string         `json:"statsError,omitempty"`
	WorkerStats   []WorkerHealth `json:"workerStats"`
}

// WorkerPool manages the queue workers plus the delayed-job promoter and
// stalled-job detector background loops.
type WorkerPool struct {
	podID     string
	queue     *Queue
	cfg       *config.QueueConfig
	processor Processor
	workers   []*Worker
	gate      *tokenGate
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	started   bool
}

// NewWorkerPool creates a worker pool.
func NewWorkerPool(podID string, queue *Queue, cfg *config.QueueConfig, processor Processor) *WorkerPool {
	return &WorkerPool{
		podID:     podID,
		queue:     queue,
		cfg:       cfg,
		processor: processor,
		workers:   make([]*Worker, 0, cfg.Concurrency),
		gate:      newTokenGate(cfg.RatePerSecond),
		stopCh:    make(chan struct{}),
	}
}

// Start spawns worker goroutines and the background maintenance loops. Safe
// to call multiple times; subsequent calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) {
	if p.started {
		slog.Warn("Worker pool already started, ignoring duplicate Start call", "pod_id", p.podID)
		return
	}
	p.started = true

	slog.Info("Starting worker pool",
		"pod_id", p.podID,
		"queue", p.queue.Name(),
		"worker_count", p.cfg.Concurrency,
		"rate_per_second", p.cfg.RatePerSecond)

	p.gate.start(p.stopCh)

	for i := 0; i < p.cfg.Concurrency; i++ {
		workerID := fmt.Sprintf("%s-worker-%d", p.podID, i)
		worker := NewWorker(workerID, p.queue, p.cfg, p.processor, p.gate)
		p.workers = append(p.workers, worker)
		worker.Start(ctx)
	}

	p.wg.Add(2)
	go func() {
		defer p.wg.Done()
		p.runPromoter(ctx)
	}()
	go func() {
		defer p.wg.Done()
		p.runStalledDetection(ctx)
	}()

	slog.Info("Worker pool started")
}

// Stop signals all workers to stop and waits for them to finish their
// current jobs (graceful shutdown).
func (p *WorkerPool) Stop() {
	slog.Info("Stopping worker pool gracefully")
	for _, worker := range p.workers {
		worker.Stop()
	}
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
	slog.Info("Worker pool stopped gracefully")
}

// runPromoter moves due delayed jobs to the waiting list every second.
func (p *WorkerPool) runPromoter(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.queue.PromoteDelayed(ctx); err != nil {
				slog.Error("Delayed promotion failed", "queue", p.queue.Name(), "error", err)
			}
		}
	}
}

// runStalledDetection scans for lapsed locks on the configured interval.
func (p *WorkerPool) runStalledDetection(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.StalledCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			recovered, err := p.queue.RecoverStalled(ctx)
			if err != nil {
				slog.Error("Stalled recovery failed", "queue", p.queue.Name(), "error", err)
				continue
			}
			if recovered > 0 {
				slog.Warn("Recovered stalled jobs", "queue", p.queue.Name(), "count", recovered)
			}
		}
	}
}

// Health returns the pool health snapshot.
func (p *WorkerPool) Health(ctx context.Context) *PoolHealth {
	stats, err := p.queue.Stats(ctx)

	workerStats := make([]WorkerHealth, len(p.workers))
	activeWorkers := 0
	for i, worker := range p.workers {
		workerStats[i] = worker.Health()
		if workerStats[i].Status == WorkerStatusWorking {
			activeWorkers++
		}
	}

	health := &PoolHealth{
		IsHealthy:     len(p.workers) > 0 && err == nil,
		PodID:         p.podID,
		ActiveWorkers: activeWorkers,
		TotalWorkers:  len(p.workers),
		Stats:         stats,
		WorkerStats:   workerStats,
	}
	if err != nil {
		health.StatsError = err.Error()
	}
	return health
}

// tokenGate refills RatePerSecond tokens each second; workers take one token
// per job start.
type tokenGate struct {
	tokens chan struct{}
	rate   int
}

func newTokenGate(rate int) *tokenGate {
	if rate <= 0 {
		rate = 1
	}
	g := &tokenGate{tokens: make(chan struct{}, rate), rate: rate}
	for i := 0; i < rate; i++ {
		g.tokens <- struct{}{}
	}
	return g
}

func (g *tokenGate) start(stopCh <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				for i := 0; i < g.rate; i++ {
					select {
					case g.tokens <- struct{}{}:
					default:
					}
				}
			}
		}
	}()
}

// acquire blocks until a token is available or stop is signalled; it returns
// false on shutdown.
func (g *tokenGate) acquire(stopCh <-chan struct{}) bool {
	select {
	case <-g.tokens:
		return true
	case <-stopCh:
		return false
	}
}
