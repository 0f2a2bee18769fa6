package features

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pulseline/pulseline-server/pkg/domain/activity"
	"github.com/pulseline/pulseline-server/pkg/domain/stream"
	"github.com/pulseline/pulseline-server/pkg/errors"
)

// Store is the slice of the persistence layer the engine needs: activity and
// stream reads, feature writes, and the ordered per-day reads that make the
// recurrence replay possible.
type Store interface {
	GetActivity(ctx context.Context, id string) (*activity.Activity, error)
	GetStream(ctx context.Context, ref string) (*stream.CanonicalStream, error)
	UpsertSegmentFeatures(ctx context.Context, activityID string, rows []SegmentFeatures) error

	ListActivitiesOn(ctx context.Context, athleteID string, day time.Time) ([]*activity.Activity, error)
	ActivityDateRange(ctx context.Context, athleteID string) (first, last time.Time, ok bool, err error)
	GetTrainingLoad(ctx context.Context, athleteID string, date time.Time) (*TrainingLoad, error)
	UpsertTrainingLoads(ctx context.Context, rows []TrainingLoad) error
}

// Segmenter is the external collaborator that splits a stream into laps or
// slope-homogeneous sections.
type Segmenter interface {
	Segment(cs *stream.CanonicalStream) []Segment
}

// PhysiologyFeed supplies daily resting heart rate. May be nil, in which case
// the RHR delta metric stays null.
type PhysiologyFeed interface {
	RestingHeartRate(ctx context.Context, athleteID string, date time.Time) (*float64, error)
}

// Engine computes derived features for activities popped off the enrichment
// queue. Segment metrics are independent per activity. The per-day load
// recurrence reads and rewrites a whole per-athlete day sequence, so it must
// never run concurrently for one athlete; the queue guarantees that by
// claiming at most one entry per athlete at a time, which holds across
// worker processes. The engine itself keeps no cross-call state.
type Engine struct {
	store     Store
	segmenter Segmenter
	physio    PhysiologyFeed
	params    Params
	logger    *slog.Logger
}

func NewEngine(store Store, segmenter Segmenter, physio PhysiologyFeed, params Params, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:     store,
		segmenter: segmenter,
		physio:    physio,
		params:    params.withDefaults(),
		logger:    logger.With("component", "features-engine"),
	}
}

// EnrichActivity runs both computation families for one activity: segment
// features from its stream, then the training-load replay from its day
// forward. Errors are classified so the queue can decide between retry and
// terminal failure.
func (e *Engine) EnrichActivity(ctx context.Context, activityID string) error {
	act, err := e.store.GetActivity(ctx, activityID)
	if err != nil {
		return errors.ErrStorage.WithMessage("load activity").WithCause(err)
	}
	if act == nil {
		// The activity row is gone for good; retrying cannot help.
		return errors.ErrEntryNotFound.WithMessage(fmt.Sprintf("activity %s not found", activityID))
	}

	cs, err := e.store.GetStream(ctx, act.StreamRef)
	if err != nil {
		return errors.ErrStorage.WithMessage("load stream").WithCause(err)
	}
	if cs == nil {
		return errors.ErrEntryNotFound.WithMessage(fmt.Sprintf("stream %s not found", act.StreamRef))
	}

	if err := e.computeSegments(ctx, act, cs); err != nil {
		return err
	}
	return e.RecomputeLoads(ctx, act.AthleteID, act.Date())
}

func (e *Engine) computeSegments(ctx context.Context, act *activity.Activity, cs *stream.CanonicalStream) error {
	segments := e.segmenter.Segment(cs)
	if len(segments) == 0 {
		e.logger.Info("No segments produced", "activity_id", act.ID)
		return nil
	}

	rows := make([]SegmentFeatures, 0, len(segments))
	for _, seg := range segments {
		row := ComputeSegmentFeatures(cs, seg, e.params)
		row.ActivityID = act.ID
		rows = append(rows, row)
	}

	if err := e.store.UpsertSegmentFeatures(ctx, act.ID, rows); err != nil {
		return errors.ErrEnrichmentCompute.WithMessage("persist segment features").WithCause(err)
	}
	e.logger.Info("Segment features computed", "activity_id", act.ID, "segments", len(rows))
	return nil
}

// RecomputeLoads replays the training-load recurrence for one athlete from
// the earliest affected day forward. Inserting or correcting a historical day
// invalidates every later day, so the whole tail is refolded rather than
// patching a single row.
func (e *Engine) RecomputeLoads(ctx context.Context, athleteID string, affected time.Time) error {
	first, last, ok, err := e.store.ActivityDateRange(ctx, athleteID)
	if err != nil {
		return errors.ErrStorage.WithMessage("activity date range").WithCause(err)
	}
	if !ok {
		return nil
	}

	from := affected.UTC().Truncate(24 * time.Hour)
	if from.Before(first) {
		from = first
	}

	// Seed with the day before the replay window. If that row is missing the
	// history has a hole, so fall back to a full replay from day one.
	var prior *TrainingLoad
	if from.After(first) {
		prior, err = e.store.GetTrainingLoad(ctx, athleteID, from.AddDate(0, 0, -1))
		if err != nil {
			return errors.ErrStorage.WithMessage("load prior training load").WithCause(err)
		}
		if prior == nil {
			from = first
		}
	}

	var days []DayInput
	for day := from; !day.After(last); day = day.AddDate(0, 0, 1) {
		input, err := e.dayInput(ctx, athleteID, day)
		if err != nil {
			return err
		}
		days = append(days, input)
	}

	priorRHR, err := e.trailingRHR(ctx, athleteID, from)
	if err != nil {
		return err
	}

	rows := ComputeLoads(athleteID, days, prior, priorRHR, e.params)
	if err := e.store.UpsertTrainingLoads(ctx, rows); err != nil {
		return errors.ErrEnrichmentCompute.WithMessage("persist training loads").WithCause(err)
	}

	e.logger.Info("Training load replayed", "athlete_id", athleteID, "from", from.Format("2006-01-02"), "days", len(rows))
	return nil
}

func (e *Engine) dayInput(ctx context.Context, athleteID string, day time.Time) (DayInput, error) {
	input := DayInput{Date: day}

	acts, err := e.store.ListActivitiesOn(ctx, athleteID, day)
	if err != nil {
		return input, errors.ErrStorage.WithMessage("list day activities").WithCause(err)
	}
	for _, act := range acts {
		cs, err := e.store.GetStream(ctx, act.StreamRef)
		if err != nil {
			return input, errors.ErrStorage.WithMessage("load stream for trimp").WithCause(err)
		}
		if cs == nil {
			continue
		}
		input.TRIMP += SessionTRIMP(cs, e.params.MaxHeartRate)
	}

	if e.physio != nil {
		rhr, err := e.physio.RestingHeartRate(ctx, athleteID, day)
		if err != nil {
			// The feed is optional; a gap degrades the RHR metric, never the
			// load computation.
			e.logger.Warn("Physiology feed unavailable", "athlete_id", athleteID, "date", day.Format("2006-01-02"), "error", err)
		} else {
			input.RestingHR = rhr
		}
	}
	return input, nil
}

func (e *Engine) trailingRHR(ctx context.Context, athleteID string, from time.Time) ([]RHRReading, error) {
	if e.physio == nil {
		return nil, nil
	}
	var out []RHRReading
	for i := e.params.RHRWindowDays; i >= 1; i-- {
		day := from.AddDate(0, 0, -i)
		rhr, err := e.physio.RestingHeartRate(ctx, athleteID, day)
		if err != nil || rhr == nil {
			continue
		}
		out = append(out, RHRReading{Date: day, Value: *rhr})
	}
	return out, nil
}
