package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/pulseline/pulseline-server/pkg/errors"
	"github.com/pulseline/pulseline-server/pkg/queue"
)

type fakeStore struct {
	pending      []*queue.Entry
	updated      []*queue.Entry
	staleCutoffs []time.Time
}

func (s *fakeStore) ClaimPending(ctx context.Context, limit int, now time.Time) ([]*queue.Entry, error) {
	var claimed []*queue.Entry
	for _, e := range s.pending {
		if len(claimed) == limit {
			break
		}
		if e.Ready(now) {
			e.Status = queue.StatusInProgress
			claimed = append(claimed, e)
		}
	}
	return claimed, nil
}

func (s *fakeStore) RequeueStale(ctx context.Context, cutoff time.Time) (int, error) {
	s.staleCutoffs = append(s.staleCutoffs, cutoff)
	requeued := 0
	for _, e := range s.pending {
		if e.Status == queue.StatusInProgress && e.UpdatedAt.Before(cutoff) {
			e.Status = queue.StatusPending
			requeued++
		}
	}
	return requeued, nil
}

func (s *fakeStore) UpdateEntry(ctx context.Context, e *queue.Entry) error {
	s.updated = append(s.updated, e)
	return nil
}

type fakeEnricher struct {
	err   error
	calls []string
}

func (f *fakeEnricher) EnrichActivity(ctx context.Context, activityID string) error {
	f.calls = append(f.calls, activityID)
	return f.err
}

func entry(id int64, activityID string) *queue.Entry {
	return &queue.Entry{ID: id, ActivityID: activityID, Status: queue.StatusPending, MaxAttempts: 3}
}

func TestWorker_RunOnce_Success(t *testing.T) {
	store := &fakeStore{pending: []*queue.Entry{entry(1, "act-1"), entry(2, "act-2")}}
	enricher := &fakeEnricher{}
	w := queue.NewWorker(store, enricher, queue.WorkerConfig{BatchSize: 10}, nil)

	n, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("processed %d entries, want 2", n)
	}
	if len(enricher.calls) != 2 {
		t.Fatalf("enricher called %d times", len(enricher.calls))
	}
	for _, e := range store.updated {
		if e.Status != queue.StatusDone {
			t.Errorf("entry %d status = %s, want done", e.ID, e.Status)
		}
	}
}

func TestWorker_RunOnce_TransientFailureRequeues(t *testing.T) {
	store := &fakeStore{pending: []*queue.Entry{entry(1, "act-1")}}
	enricher := &fakeEnricher{err: errors.ErrEnrichmentCompute.WithMessage("store hiccup")}
	w := queue.NewWorker(store, enricher, queue.WorkerConfig{BatchSize: 1}, nil)

	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	e := store.updated[0]
	if e.Status != queue.StatusPending {
		t.Errorf("status = %s, want pending", e.Status)
	}
	if e.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", e.Attempts)
	}
	if e.NextRetryAt == nil {
		t.Error("expected a scheduled retry")
	}
	if e.LastError == "" {
		t.Error("expected last_error to be recorded")
	}
}

func TestWorker_RunOnce_PermanentFailureTerminates(t *testing.T) {
	store := &fakeStore{pending: []*queue.Entry{entry(1, "act-1")}}
	enricher := &fakeEnricher{err: errors.ErrValidation.WithMessage("activity has no stream ref")}
	w := queue.NewWorker(store, enricher, queue.WorkerConfig{BatchSize: 1}, nil)

	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	e := store.updated[0]
	if e.Status != queue.StatusFailed {
		t.Errorf("status = %s, want failed", e.Status)
	}
}

func TestWorker_RunOnce_RespectsBatchSize(t *testing.T) {
	store := &fakeStore{pending: []*queue.Entry{entry(1, "a"), entry(2, "b"), entry(3, "c")}}
	w := queue.NewWorker(store, &fakeEnricher{}, queue.WorkerConfig{BatchSize: 2}, nil)

	n, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if n != 2 {
		t.Errorf("processed %d, want batch size 2", n)
	}
}

func TestWorker_RunOnce_SweepsExpiredLeasesFirst(t *testing.T) {
	// An entry left in_progress by a worker that died mid-run. Its lease
	// expired long ago, so the next poll must make it claimable again.
	orphan := entry(1, "act-1")
	orphan.Status = queue.StatusInProgress
	orphan.Attempts = 1
	orphan.UpdatedAt = time.Now().UTC().Add(-time.Hour)

	store := &fakeStore{pending: []*queue.Entry{orphan}}
	enricher := &fakeEnricher{}
	w := queue.NewWorker(store, enricher, queue.WorkerConfig{BatchSize: 10, LeaseTimeout: 15 * time.Minute}, nil)

	n, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if len(store.staleCutoffs) != 1 {
		t.Fatalf("expected one lease sweep, got %d", len(store.staleCutoffs))
	}
	if age := time.Since(store.staleCutoffs[0]); age < 14*time.Minute || age > 16*time.Minute {
		t.Errorf("sweep cutoff %v does not reflect the lease timeout", store.staleCutoffs[0])
	}
	if n != 1 || len(enricher.calls) != 1 {
		t.Fatalf("requeued entry was not processed: n=%d calls=%d", n, len(enricher.calls))
	}
	if orphan.Attempts != 1 {
		t.Errorf("attempts = %d, the crash must not reset the retry budget", orphan.Attempts)
	}
	if store.updated[0].Status != queue.StatusDone {
		t.Errorf("status = %s, want done after successful rerun", store.updated[0].Status)
	}
}
