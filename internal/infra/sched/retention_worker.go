package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ai-chat-backend/internal/domain/ports/repository"
	"ai-chat-backend/internal/infra/metrics"
	"ai-chat-backend/internal/infra/worker"
	"ai-chat-backend/internal/usecase"
)

// sweepBatchSize bounds one sweep so a huge backlog of idle threads cannot
// monopolize the pool.
const sweepBatchSize = 256

// RetentionWorker periodically purges threads idle past the retention window.
// Each purge takes the thread lock first so a sweep never races an in-flight
// turn on the same thread.
type RetentionWorker struct {
	maxIdle  time.Duration
	interval time.Duration
	threads  repository.ThreadRepository
	locks    *usecase.ThreadLocks
	pool     *worker.Pool
	log      *zerolog.Logger
}

func NewRetentionWorker(maxIdle, interval time.Duration, threads repository.ThreadRepository, locks *usecase.ThreadLocks, pool *worker.Pool, logger *zerolog.Logger) *RetentionWorker {
	retLog := logger.With().Str("component", "RetentionWorker").Logger()
	return &RetentionWorker{
		maxIdle:  maxIdle,
		interval: interval,
		threads:  threads,
		locks:    locks,
		pool:     pool,
		log:      &retLog,
	}
}

func (w *RetentionWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("max_idle", w.maxIdle).Msg("Starting retention worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping retention worker")
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *RetentionWorker) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-w.maxIdle)
	ids, err := w.threads.FindIdleThreads(ctx, cutoff, sweepBatchSize)
	if err != nil {
		w.log.Error().Err(err).Msg("retention sweep query failed")
		return
	}
	if len(ids) == 0 {
		return
	}
	w.log.Info().Int("count", len(ids)).Msg("purging idle threads")

	for _, id := range ids {
		threadID := id
		err := w.pool.Submit(func(ctx context.Context) error {
			unlock := w.locks.Lock(threadID)
			defer unlock()
			if err := w.threads.DeleteThread(ctx, threadID); err != nil {
				return err
			}
			metrics.AddRetentionPurged(1)
			return nil
		})
		if err != nil {
			w.log.Warn().Err(err).Str("thread_id", threadID).Msg("purge not scheduled")
		}
	}
}
