package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/pulseline/pulseline-server/pkg/errors"
)

// Store is the slice of the persistence layer the worker needs. ClaimPending
// must transition matched rows pending → in_progress atomically so that no
// two workers ever hold the same entry. RequeueStale returns in_progress
// entries older than cutoff to pending; it is how entries orphaned by a
// crashed worker become claimable again.
type Store interface {
	ClaimPending(ctx context.Context, limit int, now time.Time) ([]*Entry, error)
	RequeueStale(ctx context.Context, cutoff time.Time) (int, error)
	UpdateEntry(ctx context.Context, e *Entry) error
}

// Enricher computes and persists derived features for one activity.
type Enricher interface {
	EnrichActivity(ctx context.Context, activityID string) error
}

// Worker pulls due entries from the queue and drives them through the
// transition table. Workers share no in-memory state; any number of them can
// run against the same store.
type Worker struct {
	store        Store
	enricher     Enricher
	batchSize    int
	pollEvery    time.Duration
	leaseTimeout time.Duration
	backoff      BackoffPolicy
	logger       *slog.Logger
}

// WorkerConfig tunes a worker. Zero values fall back to modest defaults.
type WorkerConfig struct {
	BatchSize int
	PollEvery time.Duration
	// LeaseTimeout is how long an entry may sit in_progress before it is
	// presumed orphaned by a dead worker and returned to pending.
	LeaseTimeout time.Duration
	Backoff      BackoffPolicy
}

func NewWorker(store Store, enricher Enricher, cfg WorkerConfig, logger *slog.Logger) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 5 * time.Second
	}
	if cfg.LeaseTimeout <= 0 {
		cfg.LeaseTimeout = 15 * time.Minute
	}
	if cfg.Backoff.Base <= 0 {
		cfg.Backoff.Base = 30 * time.Second
	}
	if cfg.Backoff.Cap <= 0 {
		cfg.Backoff.Cap = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		store:        store,
		enricher:     enricher,
		batchSize:    cfg.BatchSize,
		pollEvery:    cfg.PollEvery,
		leaseTimeout: cfg.LeaseTimeout,
		backoff:      cfg.Backoff,
		logger:       logger.With("component", "queue-worker"),
	}
}

// Run polls for due entries until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollEvery)
	defer ticker.Stop()

	for {
		processed, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("Queue poll failed", "error", err)
		} else if processed > 0 {
			w.logger.Info("Processed queue batch", "count", processed)
			// More work may be waiting; skip the idle wait.
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce sweeps expired leases, then claims and processes one batch,
// returning the number of entries handled.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	requeued, err := w.store.RequeueStale(ctx, now.Add(-w.leaseTimeout))
	if err != nil {
		return 0, err
	}
	if requeued > 0 {
		w.logger.Warn("Requeued stale entries", "count", requeued)
	}

	entries, err := w.store.ClaimPending(ctx, w.batchSize, now)
	if err != nil {
		return 0, err
	}

	for _, e := range entries {
		w.process(ctx, e)
	}
	return len(entries), nil
}

func (w *Worker) process(ctx context.Context, e *Entry) {
	logger := w.logger.With("entry_id", e.ID, "activity_id", e.ActivityID, "attempts", e.Attempts)

	start := time.Now()
	runErr := w.enricher.EnrichActivity(ctx, e.ActivityID)
	durationMs := time.Since(start).Milliseconds()

	outcome := classify(runErr)
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}

	Apply(e, outcome, errMsg, time.Now().UTC(), w.backoff)

	switch outcome {
	case OutcomeSuccess:
		logger.Info("Enrichment completed", "duration_ms", durationMs)
	default:
		logger.Error("Enrichment failed", "error", runErr, "duration_ms", durationMs, "status", e.Status, "next_retry_at", e.NextRetryAt)
	}

	if err := w.store.UpdateEntry(ctx, e); err != nil {
		// The row stays in_progress until the stale-lease sweep returns it
		// to pending with its attempt count intact.
		logger.Error("Failed to persist entry transition", "error", err)
	}
}

func classify(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}
	if errors.IsRetryable(err) {
		return OutcomeTransientFailure
	}
	return OutcomePermanentFailure
}
