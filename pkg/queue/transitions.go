package queue

import (
	"time"
)

// Outcome is the typed result of one enrichment run. The worker classifies
// errors into outcomes and the transition table below does the rest; no retry
// logic ever rides on thrown control flow.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeTransientFailure
	OutcomePermanentFailure
)

// BackoffPolicy computes the retry delay for a failed attempt. Exponential,
// seeded by the attempt count and capped.
type BackoffPolicy struct {
	Base time.Duration
	Cap  time.Duration
}

// Delay returns the wait before retry number attempts+1. The first failure
// (attempts=1) waits Base, each further failure doubles it up to Cap.
func (p BackoffPolicy) Delay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := p.Base
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= p.Cap {
			return p.Cap
		}
	}
	if d > p.Cap {
		return p.Cap
	}
	return d
}

// Apply advances an in_progress entry according to the run outcome:
//
//	in_progress → done                       (success)
//	in_progress → pending  + next_retry_at   (transient failure, attempts left)
//	in_progress → failed                     (attempts exhausted or permanent)
//
// Attempts are incremented on every failure and never reset; failed is
// terminal. The entry keeps last_error so failures never silently vanish.
func Apply(e *Entry, outcome Outcome, errMsg string, now time.Time, policy BackoffPolicy) {
	e.UpdatedAt = now

	switch outcome {
	case OutcomeSuccess:
		e.Status = StatusDone
		e.NextRetryAt = nil
		e.LastError = ""

	case OutcomePermanentFailure:
		e.Attempts++
		e.Status = StatusFailed
		e.NextRetryAt = nil
		e.LastError = errMsg

	case OutcomeTransientFailure:
		e.Attempts++
		e.LastError = errMsg
		if e.Attempts >= e.MaxAttempts {
			e.Status = StatusFailed
			e.NextRetryAt = nil
			return
		}
		retryAt := now.Add(policy.Delay(e.Attempts))
		e.Status = StatusPending
		e.NextRetryAt = &retryAt
	}
}
