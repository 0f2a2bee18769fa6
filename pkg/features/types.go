// Package features computes derived metrics from canonical streams: per-segment
// biomechanical features and the per-day training load model (TRIMP, CTL/ATL
// EWMA recurrence, TSB, resting-HR delta).
package features

import (
	"time"
)

// Domain defaults. Overridable through Params; named here so every consumer
// agrees on the published model constants.
const (
	DefaultCTLDays            = 42
	DefaultATLDays            = 7
	DefaultRHRWindowDays      = 7
	DefaultMinSegmentDuration = 120.0
	DefaultMaxHeartRate       = 190.0
)

// Params tunes the engine. Zero fields fall back to the defaults above.
type Params struct {
	CTLDays            int
	ATLDays            int
	RHRWindowDays      int
	MinSegmentDuration float64
	MaxHeartRate       float64
}

func (p Params) withDefaults() Params {
	if p.CTLDays <= 0 {
		p.CTLDays = DefaultCTLDays
	}
	if p.ATLDays <= 0 {
		p.ATLDays = DefaultATLDays
	}
	if p.RHRWindowDays <= 0 {
		p.RHRWindowDays = DefaultRHRWindowDays
	}
	if p.MinSegmentDuration <= 0 {
		p.MinSegmentDuration = DefaultMinSegmentDuration
	}
	if p.MaxHeartRate <= 0 {
		p.MaxHeartRate = DefaultMaxHeartRate
	}
	return p
}

// Segment references a sample range of a canonical stream, produced by the
// external segmentation collaborator (laps or slope-homogeneous sections).
// EndIndex is exclusive.
type Segment struct {
	ID         string
	StartIndex int
	EndIndex   int
}

// SegmentFeatures is the per-segment metric row. Nil fields mean the metric
// was not estimable for this segment (too short, missing channel); that is a
// result, not an error.
type SegmentFeatures struct {
	SegmentID        string
	ActivityID       string
	MinettiCost      *float64
	GradeVariability *float64
	EfficiencyFactor *float64
	CardiacDrift     *float64
	CadenceDecay     *float64
}

// TrainingLoad is the per-day load row for one athlete. CTL and ATL are
// recurrence-based: a day's values depend on the previous day's, so rows are
// only ever produced by an ordered forward fold.
type TrainingLoad struct {
	AthleteID string
	Date      time.Time
	TRIMP     float64
	CTL       float64
	ATL       float64
	TSB       float64
	RHRDelta  *float64
}

// DayInput is one calendar day's raw input to the load fold. Rest days carry
// TRIMP 0; RestingHR is nil when the physiology feed has no reading.
type DayInput struct {
	Date      time.Time
	TRIMP     float64
	RestingHR *float64
}

// RHRReading is one dated resting-heart-rate observation. The date matters:
// the trailing average only admits readings from the configured window of
// calendar days, not the last N readings regardless of age.
type RHRReading struct {
	Date  time.Time
	Value float64
}
