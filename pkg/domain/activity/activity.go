// Package activity holds the canonical activity model and the mapping from
// external provider vocabularies into the internal activity taxonomy.
package activity

import (
	"time"
)

// Type is the internal activity taxonomy. External providers each speak their
// own vocabulary; everything entering the pipeline is normalized to one of
// these.
type Type string

const (
	TypeRun      Type = "run"
	TypeTrailRun Type = "trail_run"
	TypeRide     Type = "ride"
	TypeSwim     Type = "swim"
	TypeWalk     Type = "walk"
	TypeHike     Type = "hike"
	TypeRow      Type = "row"
	TypeStrength Type = "strength"
	TypeYoga     Type = "yoga"
	TypeOther    Type = "other"
)

// Activity is one recorded workout. Created by the sync orchestrator once the
// dedup check passes; afterwards only enrichment results are attached, it is
// never otherwise mutated and never deleted by the pipeline.
type Activity struct {
	ID         string
	AthleteID  string
	Source     string
	ExternalID string
	Type       Type
	StartedAt  time.Time
	DurationS  float64
	DistanceM  float64
	StreamRef  string
}

// Date returns the UTC calendar day the activity belongs to, which is the
// grouping key for the per-day training load model.
func (a *Activity) Date() time.Time {
	return a.StartedAt.UTC().Truncate(24 * time.Hour)
}
