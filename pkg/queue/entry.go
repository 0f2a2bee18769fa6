// Package queue implements the durable, retryable work queue that schedules
// derived-feature computation per activity. Entries are persisted rows; all
// worker coordination happens through the store's atomic status transitions,
// never through shared memory.
package queue

import (
	"time"
)

// Status is the persisted state of a queue entry.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// Entry is one unit of enrichment work. Created when an activity is
// persisted, mutated only by the queue worker, never deleted: done and failed
// entries remain queryable as an audit trail.
type Entry struct {
	ID          int64
	ActivityID  string
	Status      Status
	Attempts    int
	MaxAttempts int
	NextRetryAt *time.Time
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Ready reports whether a pending entry is due for claiming at now.
func (e *Entry) Ready(now time.Time) bool {
	if e.Status != StatusPending {
		return false
	}
	return e.NextRetryAt == nil || !e.NextRetryAt.After(now)
}

// Terminal reports whether the entry can never run again.
func (e *Entry) Terminal() bool {
	return e.Status == StatusDone || e.Status == StatusFailed
}
