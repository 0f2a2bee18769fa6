package syncer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	shared "github.com/pulseline/pulseline-server/pkg"
	"github.com/pulseline/pulseline-server/pkg/domain/activity"
	"github.com/pulseline/pulseline-server/pkg/domain/stream"
	pipeerrors "github.com/pulseline/pulseline-server/pkg/errors"
	"github.com/pulseline/pulseline-server/pkg/testing/mocks"
)

func f64(v float64) *float64 { return &v }

// rawActivity builds a fetched activity with n records spaced 1s apart and a
// constant heart rate, optionally carrying GPS.
func rawActivity(externalID, actType string, start time.Time, n int, gps bool) shared.RawActivity {
	recs := make([]stream.RawRecord, 0, n)
	for i := 0; i < n; i++ {
		r := stream.RawRecord{
			Timestamp:    start.Add(time.Duration(i) * time.Second),
			HeartRateBPM: f64(140),
		}
		if gps {
			lat := int32(1 << 29)
			lon := int32(i * 100)
			r.LatSemicircle = &lat
			r.LonSemicircle = &lon
		}
		recs = append(recs, r)
	}
	return shared.RawActivity{ExternalID: externalID, Type: actType, Records: recs}
}

func TestOrchestrator_Run_InsertsAndEnqueues(t *testing.T) {
	start := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)
	source := &mocks.MockSource{
		NameValue: "strava",
		FetchActivitiesFunc: func(ctx context.Context, athleteID string) ([]shared.RawActivity, error) {
			return []shared.RawActivity{
				rawActivity("ext-1", "Run", start, 300, true),
				rawActivity("ext-2", "trail_run", start.Add(2*time.Hour), 300, true),
			}, nil
		},
	}

	var inserted []*activity.Activity
	store := &mocks.MockStore{
		InsertActivityFunc: func(ctx context.Context, act *activity.Activity, cs *stream.CanonicalStream, maxAttempts int) error {
			if cs == nil || len(cs.Samples) != 300 {
				t.Fatalf("expected 300 samples persisted, got %+v", cs)
			}
			if maxAttempts != 3 {
				t.Fatalf("expected default max attempts 3, got %d", maxAttempts)
			}
			inserted = append(inserted, act)
			return nil
		},
	}
	cache := &mocks.MockDedupCache{}

	o := NewOrchestrator(source, store, cache, Config{}, nil)
	summary, err := o.Run(context.Background(), "ath-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Fetched != 2 || summary.Inserted != 2 || summary.Duplicates != 0 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(inserted) != 2 {
		t.Fatalf("expected 2 inserts, got %d", len(inserted))
	}

	first := inserted[0]
	if first.ID == "" || first.StreamRef != "stream-"+first.ID {
		t.Errorf("bad identifiers: %+v", first)
	}
	if first.AthleteID != "ath-1" || first.Source != "strava" || first.ExternalID != "ext-1" {
		t.Errorf("bad provenance: %+v", first)
	}
	if first.Type != activity.TypeRun || inserted[1].Type != activity.TypeTrailRun {
		t.Errorf("bad type mapping: %v, %v", first.Type, inserted[1].Type)
	}
	if first.DurationS != 299 {
		t.Errorf("expected duration 299s, got %v", first.DurationS)
	}
	if first.DistanceM <= 0 {
		t.Errorf("expected positive GPS distance, got %v", first.DistanceM)
	}
	if len(cache.Remembered) != 2 {
		t.Errorf("expected both activities remembered, got %d", len(cache.Remembered))
	}
}

func TestOrchestrator_Run_SkipsAlreadyIngestedExternalID(t *testing.T) {
	start := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)
	source := &mocks.MockSource{
		NameValue: "garmin",
		FetchActivitiesFunc: func(ctx context.Context, athleteID string) ([]shared.RawActivity, error) {
			return []shared.RawActivity{rawActivity("ext-1", "run", start, 200, false)}, nil
		},
	}
	store := &mocks.MockStore{
		HasActivityFunc: func(ctx context.Context, src, externalID string) (bool, error) {
			if src != "garmin" || externalID != "ext-1" {
				t.Fatalf("unexpected lookup: %s/%s", src, externalID)
			}
			return true, nil
		},
		InsertActivityFunc: func(ctx context.Context, act *activity.Activity, cs *stream.CanonicalStream, maxAttempts int) error {
			t.Fatal("insert should not be reached for a known external id")
			return nil
		},
	}

	o := NewOrchestrator(source, store, nil, Config{}, nil)
	summary, err := o.Run(context.Background(), "ath-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Duplicates != 1 || summary.Inserted != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestOrchestrator_Run_DetectsNearDuplicateFromStore(t *testing.T) {
	start := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)
	source := &mocks.MockSource{
		NameValue: "strava",
		FetchActivitiesFunc: func(ctx context.Context, athleteID string) ([]shared.RawActivity, error) {
			return []shared.RawActivity{rawActivity("ext-9", "run", start, 200, false)}, nil
		},
	}
	existing := &activity.Activity{
		ID:        "existing-1",
		AthleteID: "ath-1",
		Source:    "garmin",
		// 2 minutes earlier, same distance: inside both tolerances.
		StartedAt: start.Add(-2 * time.Minute),
		DistanceM: 0,
	}
	store := &mocks.MockStore{
		ListActivitiesNearFunc: func(ctx context.Context, athleteID string, around time.Time, window time.Duration) ([]*activity.Activity, error) {
			return []*activity.Activity{existing}, nil
		},
		InsertActivityFunc: func(ctx context.Context, act *activity.Activity, cs *stream.CanonicalStream, maxAttempts int) error {
			t.Fatal("near-duplicate must not be inserted")
			return nil
		},
	}

	o := NewOrchestrator(source, store, nil, Config{}, nil)
	summary, err := o.Run(context.Background(), "ath-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Duplicates != 1 || summary.Inserted != 0 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestOrchestrator_Run_CacheFastPathAvoidsStoreScan(t *testing.T) {
	start := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)
	source := &mocks.MockSource{
		FetchActivitiesFunc: func(ctx context.Context, athleteID string) ([]shared.RawActivity, error) {
			return []shared.RawActivity{rawActivity("ext-1", "run", start, 200, false)}, nil
		},
	}
	store := &mocks.MockStore{
		ListActivitiesNearFunc: func(ctx context.Context, athleteID string, around time.Time, window time.Duration) ([]*activity.Activity, error) {
			t.Fatal("store scan should be skipped when the cache answers")
			return nil, nil
		},
	}
	cache := &mocks.MockDedupCache{
		RecentActivitiesFunc: func(ctx context.Context, athleteID string) ([]*activity.Activity, bool) {
			return []*activity.Activity{{
				ID:        "cached-1",
				AthleteID: athleteID,
				StartedAt: start.Add(30 * time.Second),
				DistanceM: 0,
			}}, true
		},
	}

	o := NewOrchestrator(source, store, cache, Config{}, nil)
	summary, err := o.Run(context.Background(), "ath-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Duplicates != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestOrchestrator_Run_WarmCacheWithoutMatchStillScansStore(t *testing.T) {
	start := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)
	source := &mocks.MockSource{
		FetchActivitiesFunc: func(ctx context.Context, athleteID string) ([]shared.RawActivity, error) {
			return []shared.RawActivity{rawActivity("ext-1", "run", start, 200, false)}, nil
		},
	}
	// The duplicate lives in the store but outside the cache's burst window.
	store := &mocks.MockStore{
		ListActivitiesNearFunc: func(ctx context.Context, athleteID string, around time.Time, window time.Duration) ([]*activity.Activity, error) {
			return []*activity.Activity{{
				ID:        "older-1",
				AthleteID: athleteID,
				StartedAt: start.Add(-90 * time.Second),
				DistanceM: 0,
			}}, nil
		},
		InsertActivityFunc: func(ctx context.Context, act *activity.Activity, cs *stream.CanonicalStream, maxAttempts int) error {
			t.Fatal("near-duplicate must not be inserted")
			return nil
		},
	}
	cache := &mocks.MockDedupCache{
		RecentActivitiesFunc: func(ctx context.Context, athleteID string) ([]*activity.Activity, bool) {
			// Warm, but holds only an unrelated activity.
			return []*activity.Activity{{
				ID:        "cached-other",
				AthleteID: athleteID,
				StartedAt: start.Add(-8 * time.Hour),
				DistanceM: 12000,
			}}, true
		},
	}

	o := NewOrchestrator(source, store, cache, Config{}, nil)
	summary, err := o.Run(context.Background(), "ath-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Duplicates != 1 || summary.Inserted != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestOrchestrator_Run_IsolatesPerActivityFailures(t *testing.T) {
	start := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)
	bad := shared.RawActivity{ExternalID: "ext-bad", Type: "run"} // no records
	source := &mocks.MockSource{
		FetchActivitiesFunc: func(ctx context.Context, athleteID string) ([]shared.RawActivity, error) {
			return []shared.RawActivity{
				rawActivity("ext-1", "run", start, 200, false),
				bad,
				rawActivity("ext-2", "ride", start.Add(3*time.Hour), 200, false),
			}, nil
		},
	}
	store := &mocks.MockStore{}

	o := NewOrchestrator(source, store, nil, Config{}, nil)
	summary, err := o.Run(context.Background(), "ath-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Inserted != 2 || summary.Failed != 1 {
		t.Fatalf("expected the bad activity isolated, got %+v", summary)
	}
}

func TestOrchestrator_Run_FetchFailureIsRetryable(t *testing.T) {
	source := &mocks.MockSource{
		FetchActivitiesFunc: func(ctx context.Context, athleteID string) ([]shared.RawActivity, error) {
			return nil, fmt.Errorf("upstream 503")
		},
	}

	o := NewOrchestrator(source, &mocks.MockStore{}, nil, Config{}, nil)
	_, err := o.Run(context.Background(), "ath-1")
	if err == nil {
		t.Fatal("expected fetch error")
	}
	if !errors.Is(err, pipeerrors.ErrTransientFetch) {
		t.Errorf("expected transient fetch error, got %v", err)
	}
	if !pipeerrors.IsRetryable(err) {
		t.Error("fetch failures should be retryable")
	}
}

func TestOrchestrator_Run_StopsOnCancelledContext(t *testing.T) {
	start := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)
	source := &mocks.MockSource{
		FetchActivitiesFunc: func(ctx context.Context, athleteID string) ([]shared.RawActivity, error) {
			return []shared.RawActivity{rawActivity("ext-1", "run", start, 200, false)}, nil
		},
	}
	store := &mocks.MockStore{
		InsertActivityFunc: func(ctx context.Context, act *activity.Activity, cs *stream.CanonicalStream, maxAttempts int) error {
			t.Fatal("no work should happen after cancellation")
			return nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := NewOrchestrator(source, store, nil, Config{}, nil)
	summary, err := o.Run(ctx, "ath-1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if summary == nil || summary.Inserted != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}
