package export

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"metricql/internal/domain"
)

// Result is the outcome of a pooled export job.
type Result struct {
	File *domain.CSVFile
	Err  error
}

// Job produces one CSV file.
type Job func(ctx context.Context) (*domain.CSVFile, error)

// WorkerPool runs large exports off the request goroutine with bounded
// concurrency.
type WorkerPool struct {
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewWorkerPool creates a pool running at most concurrency jobs at once.
func NewWorkerPool(concurrency int, logger *slog.Logger) *WorkerPool {
	if concurrency <= 0 {
		concurrency = DefaultWorkerConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{
		sem:    semaphore.NewWeighted(int64(concurrency)),
		logger: logger,
	}
}

// Submit schedules job and returns a channel that receives exactly one Result.
// The job observes ctx; a cancelled ctx while waiting for a slot yields ctx.Err().
func (p *WorkerPool) Submit(ctx context.Context, job Job) <-chan Result {
	out := make(chan Result, 1)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.sem.Acquire(ctx, 1); err != nil {
			out <- Result{Err: err}
			return
		}
		defer p.sem.Release(1)

		file, err := job(ctx)
		if err != nil {
			p.logger.Warn("export job failed", "error", err)
		}
		out <- Result{File: file, Err: err}
	}()
	return out
}

// Wait blocks until every submitted job has finished.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}
