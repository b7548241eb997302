package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/juju/clock"
	"go.uber.org/zap"

	"github.com/accountops/account-deletion/internal/jobs"
	"github.com/accountops/account-deletion/internal/observability"
)

// HandlerFunc processes one job. A returned error schedules a retry.
type HandlerFunc func(ctx context.Context, job jobs.Job) error

// Options tunes polling and retries.
type Options struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	RetryBackoff time.Duration
}

// Runner polls the queue and dispatches due jobs to registered handlers.
// Delivery is at-least-once: handlers must tolerate repeats.
type Runner struct {
	queue    jobs.Queue
	handlers map[jobs.Type]HandlerFunc
	opts     Options
	clock    clock.Clock
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewRunner builds a runner.
func NewRunner(queue jobs.Queue, opts Options, clk clock.Clock, metrics *observability.Metrics, logger *zap.Logger) *Runner {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 10
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 30 * time.Second
	}
	if clk == nil {
		clk = clock.WallClock
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		queue:    queue,
		handlers: make(map[jobs.Type]HandlerFunc),
		opts:     opts,
		clock:    clk,
		metrics:  metrics,
		logger:   logger,
	}
}

// Register binds a handler to a job type.
func (r *Runner) Register(jobType jobs.Type, handler HandlerFunc) {
	r.handlers[jobType] = handler
}

// Run polls until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("job runner started", zap.Duration("poll_interval", r.opts.PollInterval))
	for {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("job poll failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			r.logger.Info("job runner stopped")
			return ctx.Err()
		case <-r.clock.After(r.opts.PollInterval):
		}
	}
}

// RunOnce claims and processes one batch of due jobs and reports how many were
// claimed.
func (r *Runner) RunOnce(ctx context.Context) (int, error) {
	claimed, err := r.queue.ClaimDue(ctx, r.clock.Now(), r.opts.BatchSize)
	if err != nil {
		return 0, err
	}

	for _, job := range claimed {
		start := r.clock.Now()
		err := r.Dispatch(ctx, job)
		elapsed := r.clock.Now().Sub(start)

		if err == nil {
			r.metrics.RecordJob(string(job.Type), "ok", elapsed)
			if ackErr := r.queue.Ack(ctx, job); ackErr != nil {
				r.logger.Warn("job ack failed", zap.String("job_key", job.Key), zap.Error(ackErr))
			}
			continue
		}

		job.Attempts++
		fields := []zap.Field{
			zap.String("job_key", job.Key),
			zap.String("job_type", string(job.Type)),
			zap.Int("attempts", job.Attempts),
			zap.Error(err),
		}
		if job.Attempts >= r.opts.MaxAttempts {
			r.metrics.RecordJob(string(job.Type), "dropped", elapsed)
			r.logger.Error("job dropped after max attempts", fields...)
			if ackErr := r.queue.Ack(ctx, job); ackErr != nil {
				r.logger.Warn("job ack failed", zap.String("job_key", job.Key), zap.Error(ackErr))
			}
			continue
		}

		r.metrics.RecordJob(string(job.Type), "retry", elapsed)
		r.logger.Warn("job failed, retrying", fields...)
		retryAt := r.clock.Now().Add(r.opts.RetryBackoff * time.Duration(job.Attempts))
		if retryErr := r.queue.Retry(ctx, job, retryAt); retryErr != nil {
			r.logger.Error("job retry registration failed", zap.String("job_key", job.Key), zap.Error(retryErr))
		}
	}
	return len(claimed), nil
}

// Dispatch runs the handler for job. Atomic batches run their steps in order
// and stop at the first failure.
func (r *Runner) Dispatch(ctx context.Context, job jobs.Job) error {
	if job.Type == jobs.TypeAtomic {
		var batch jobs.AtomicPayload
		if err := job.Decode(&batch); err != nil {
			return err
		}
		for i, step := range batch.Execute {
			if step.Type == jobs.TypeAtomic {
				return errors.New("nested atomic batch")
			}
			sub := jobs.Job{Key: job.Key, Type: step.Type, Payload: step.Payload, RunAt: job.RunAt, Attempts: job.Attempts}
			if err := r.Dispatch(ctx, sub); err != nil {
				return fmt.Errorf("step %d (%s): %w", i, step.Type, err)
			}
		}
		return nil
	}

	handler, ok := r.handlers[job.Type]
	if !ok {
		return fmt.Errorf("no handler for job type %q", job.Type)
	}
	return handler(ctx, job)
}
