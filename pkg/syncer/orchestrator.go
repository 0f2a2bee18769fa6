package syncer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	shared "github.com/pulseline/pulseline-server/pkg"
	"github.com/pulseline/pulseline-server/pkg/dedup"
	"github.com/pulseline/pulseline-server/pkg/domain/activity"
	"github.com/pulseline/pulseline-server/pkg/domain/stream"
	pipeerrors "github.com/pulseline/pulseline-server/pkg/errors"
)

// Config tunes a sync run. Zero values fall back to sensible defaults.
type Config struct {
	// MaxAttempts is carried onto each enrichment queue entry.
	MaxAttempts int
	// DedupWindow bounds how far around a candidate's start time the store is
	// searched for near-duplicates.
	DedupWindow time.Duration
}

// Summary reports what one sync run did.
type Summary struct {
	Fetched    int
	Inserted   int
	Duplicates int
	Failed     int
}

// Orchestrator pulls activities from one source, decodes them into canonical
// streams, filters duplicates and persists the survivors with a queued
// enrichment entry. One failing activity never aborts the run.
type Orchestrator struct {
	source      shared.Source
	store       shared.Store
	cache       shared.DedupCache
	logger      *slog.Logger
	maxAttempts int
	dedupWindow time.Duration
}

func NewOrchestrator(source shared.Source, store shared.Store, cache shared.DedupCache, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		source:      source,
		store:       store,
		cache:       cache,
		logger:      logger,
		maxAttempts: cfg.MaxAttempts,
		dedupWindow: cfg.DedupWindow,
	}
}

// Run fetches everything the source has for the athlete and processes each
// activity independently. A fetch failure aborts the run with a retryable
// error; per-activity failures are counted and logged instead.
func (o *Orchestrator) Run(ctx context.Context, athleteID string) (*Summary, error) {
	raws, err := o.source.FetchActivities(ctx, athleteID)
	if err != nil {
		return nil, pipeerrors.ErrTransientFetch.
			WithCause(err).
			WithMetadata("source", o.source.Name()).
			WithMetadata("athlete_id", athleteID)
	}

	summary := &Summary{Fetched: len(raws)}
	for i := range raws {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		act, err := o.processOne(ctx, athleteID, &raws[i])
		switch {
		case err == nil:
			summary.Inserted++
			o.logger.Info("Activity ingested",
				"activity_id", act.ID,
				"source", o.source.Name(),
				"type", act.Type)
		case errors.Is(err, pipeerrors.ErrDuplicateDetected):
			summary.Duplicates++
			o.logger.Debug("Duplicate activity skipped",
				"source", o.source.Name(),
				"external_id", raws[i].ExternalID)
		default:
			summary.Failed++
			o.logger.Error("Activity ingestion failed",
				"source", o.source.Name(),
				"external_id", raws[i].ExternalID,
				"error", err)
		}
	}

	o.logger.Info("Sync run complete",
		"source", o.source.Name(),
		"athlete_id", athleteID,
		"fetched", summary.Fetched,
		"inserted", summary.Inserted,
		"duplicates", summary.Duplicates,
		"failed", summary.Failed)
	return summary, nil
}

// processOne takes a raw activity through decode, mapping, dedup and persist.
// Duplicates are reported via ErrDuplicateDetected so the caller can count
// them apart from real failures.
func (o *Orchestrator) processOne(ctx context.Context, athleteID string, raw *shared.RawActivity) (*activity.Activity, error) {
	if raw.ExternalID != "" {
		seen, err := o.store.HasActivity(ctx, o.source.Name(), raw.ExternalID)
		if err != nil {
			return nil, pipeerrors.ErrStorage.WithCause(err)
		}
		if seen {
			return nil, pipeerrors.ErrDuplicateDetected.
				WithMetadata("external_id", raw.ExternalID)
		}
	}

	cs, err := stream.Decode(raw.Records)
	if err != nil {
		return nil, err
	}

	act := &activity.Activity{
		ID:         uuid.NewString(),
		AthleteID:  athleteID,
		Source:     o.source.Name(),
		ExternalID: raw.ExternalID,
		Type:       activity.MapExternalType(raw.Type),
		StartedAt:  cs.StartedAt,
		DurationS:  cs.DurationS(),
		DistanceM:  cs.TotalDistanceM(),
	}
	act.StreamRef = "stream-" + act.ID

	if dup, err := o.findNearDuplicate(ctx, act); err != nil {
		return nil, err
	} else if dup != nil {
		return nil, pipeerrors.ErrDuplicateDetected.
			WithMetadata("existing_id", dup.ID)
	}

	if err := o.store.InsertActivity(ctx, act, cs, o.maxAttempts); err != nil {
		return nil, pipeerrors.ErrStorage.WithCause(err)
	}
	if o.cache != nil {
		o.cache.Remember(ctx, act)
	}
	return act, nil
}

// findNearDuplicate checks the in-memory cache first and short-circuits on a
// hit there. A cache miss proves nothing, since the cache only holds a recent
// burst window, so the bounded store scan around the candidate's start time
// always runs before an activity is accepted.
func (o *Orchestrator) findNearDuplicate(ctx context.Context, act *activity.Activity) (*activity.Activity, error) {
	if o.cache != nil {
		if recent, ok := o.cache.RecentActivities(ctx, act.AthleteID); ok {
			if dup := dedup.FindDuplicate(act, recent); dup != nil {
				return dup, nil
			}
		}
	}
	near, err := o.store.ListActivitiesNear(ctx, act.AthleteID, act.StartedAt, o.dedupWindow)
	if err != nil {
		return nil, pipeerrors.ErrStorage.WithCause(err)
	}
	return dedup.FindDuplicate(act, near), nil
}
