// Package shared declares the narrow interfaces the pipeline core uses to
// talk to its collaborators, plus service-level constants. Concrete
// implementations live under pkg/infrastructure.
package shared

import (
	"context"
	"time"

	"github.com/pulseline/pulseline-server/pkg/domain/activity"
	"github.com/pulseline/pulseline-server/pkg/domain/stream"
	"github.com/pulseline/pulseline-server/pkg/features"
	"github.com/pulseline/pulseline-server/pkg/queue"
)

// --- Source Interfaces ---

// RawActivity is one activity as fetched from an external source: metadata
// plus the raw device records.
type RawActivity struct {
	ExternalID string
	Type       string
	Records    []stream.RawRecord
}

// Source fetches a batch of raw activities for one athlete. Failures are
// transient and retried at the batch level, never per record.
type Source interface {
	Name() string
	FetchActivities(ctx context.Context, athleteID string) ([]RawActivity, error)
}

// --- Persistence Interfaces ---

// Store is the full relational persistence surface. It must support atomic
// claim-updates (status transitions with a WHERE guard) for queue correctness
// and ordered athlete+date range reads for recurrence replay.
type Store interface {
	// Activities and streams. InsertActivity writes the activity, its stream
	// and a pending enrichment entry atomically; a persisted activity always
	// has a queue row.
	InsertActivity(ctx context.Context, act *activity.Activity, cs *stream.CanonicalStream, maxAttempts int) error
	GetActivity(ctx context.Context, id string) (*activity.Activity, error)
	GetStream(ctx context.Context, ref string) (*stream.CanonicalStream, error)
	HasActivity(ctx context.Context, source, externalID string) (bool, error)
	ListActivitiesNear(ctx context.Context, athleteID string, around time.Time, window time.Duration) ([]*activity.Activity, error)
	ListActivitiesOn(ctx context.Context, athleteID string, day time.Time) ([]*activity.Activity, error)
	ActivityDateRange(ctx context.Context, athleteID string) (first, last time.Time, ok bool, err error)

	// Enrichment queue
	ClaimPending(ctx context.Context, limit int, now time.Time) ([]*queue.Entry, error)
	RequeueStale(ctx context.Context, cutoff time.Time) (int, error)
	UpdateEntry(ctx context.Context, e *queue.Entry) error
	ListEntries(ctx context.Context, status queue.Status) ([]*queue.Entry, error)

	// Derived features
	UpsertSegmentFeatures(ctx context.Context, activityID string, rows []features.SegmentFeatures) error
	GetTrainingLoad(ctx context.Context, athleteID string, date time.Time) (*features.TrainingLoad, error)
	UpsertTrainingLoads(ctx context.Context, rows []features.TrainingLoad) error
	ListTrainingLoads(ctx context.Context, athleteID string, from, to time.Time) ([]*features.TrainingLoad, error)

	Close() error
}

// --- Cache Interfaces ---

// DedupCache is the optional fast-path lookup for recent dedup candidates.
// Absence or failure degrades to a full store query, never a hard failure.
type DedupCache interface {
	RecentActivities(ctx context.Context, athleteID string) ([]*activity.Activity, bool)
	Remember(ctx context.Context, act *activity.Activity)
}
