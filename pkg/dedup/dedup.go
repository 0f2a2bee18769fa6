// Package dedup decides whether a newly ingested activity is the same
// real-world event as an already persisted one. Pure decision logic, no I/O,
// so it is independently testable against fixture pairs.
package dedup

import (
	"time"

	"github.com/pulseline/pulseline-server/pkg/domain/activity"
)

// Tolerances for calling two recordings the same workout. Sized to catch the
// same session captured by two devices or synced through two providers.
const (
	TimeToleranceS     = 300
	DistanceToleranceM = 50.0
)

// IsDuplicate reports whether candidate and existing record the same workout:
// start times within the time tolerance AND total distances within the
// distance tolerance. Both bounds are inclusive and the check is symmetric.
func IsDuplicate(candidate, existing *activity.Activity) bool {
	dt := candidate.StartedAt.Sub(existing.StartedAt)
	if dt < 0 {
		dt = -dt
	}
	if dt > TimeToleranceS*time.Second {
		return false
	}

	dd := candidate.DistanceM - existing.DistanceM
	if dd < 0 {
		dd = -dd
	}
	return dd <= DistanceToleranceM
}

// FindDuplicate scans the existing activities for the first one that matches
// the candidate. The caller supplies the window (same athlete, same day) and
// keeps the earliest-recorded source when a match is found.
func FindDuplicate(candidate *activity.Activity, existing []*activity.Activity) *activity.Activity {
	for _, e := range existing {
		if IsDuplicate(candidate, e) {
			return e
		}
	}
	return nil
}
