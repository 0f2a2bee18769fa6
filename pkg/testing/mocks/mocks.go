package mocks

import (
	"context"
	"fmt"
	"time"

	shared "github.com/pulseline/pulseline-server/pkg"
	"github.com/pulseline/pulseline-server/pkg/domain/activity"
	"github.com/pulseline/pulseline-server/pkg/domain/stream"
	"github.com/pulseline/pulseline-server/pkg/features"
	"github.com/pulseline/pulseline-server/pkg/queue"
)

// --- Mock Store ---
type MockStore struct {
	InsertActivityFunc        func(ctx context.Context, act *activity.Activity, cs *stream.CanonicalStream, maxAttempts int) error
	GetActivityFunc           func(ctx context.Context, id string) (*activity.Activity, error)
	GetStreamFunc             func(ctx context.Context, ref string) (*stream.CanonicalStream, error)
	HasActivityFunc           func(ctx context.Context, source, externalID string) (bool, error)
	ListActivitiesNearFunc    func(ctx context.Context, athleteID string, around time.Time, window time.Duration) ([]*activity.Activity, error)
	ListActivitiesOnFunc      func(ctx context.Context, athleteID string, day time.Time) ([]*activity.Activity, error)
	ActivityDateRangeFunc     func(ctx context.Context, athleteID string) (time.Time, time.Time, bool, error)
	ClaimPendingFunc          func(ctx context.Context, limit int, now time.Time) ([]*queue.Entry, error)
	RequeueStaleFunc          func(ctx context.Context, cutoff time.Time) (int, error)
	UpdateEntryFunc           func(ctx context.Context, e *queue.Entry) error
	ListEntriesFunc           func(ctx context.Context, status queue.Status) ([]*queue.Entry, error)
	UpsertSegmentFeaturesFunc func(ctx context.Context, activityID string, rows []features.SegmentFeatures) error
	GetTrainingLoadFunc       func(ctx context.Context, athleteID string, date time.Time) (*features.TrainingLoad, error)
	UpsertTrainingLoadsFunc   func(ctx context.Context, rows []features.TrainingLoad) error
	ListTrainingLoadsFunc     func(ctx context.Context, athleteID string, from, to time.Time) ([]*features.TrainingLoad, error)
	CloseFunc                 func() error
}

func (m *MockStore) InsertActivity(ctx context.Context, act *activity.Activity, cs *stream.CanonicalStream, maxAttempts int) error {
	if m.InsertActivityFunc != nil {
		return m.InsertActivityFunc(ctx, act, cs, maxAttempts)
	}
	return nil
}

func (m *MockStore) GetActivity(ctx context.Context, id string) (*activity.Activity, error) {
	if m.GetActivityFunc != nil {
		return m.GetActivityFunc(ctx, id)
	}
	return nil, fmt.Errorf("activity not found")
}

func (m *MockStore) GetStream(ctx context.Context, ref string) (*stream.CanonicalStream, error) {
	if m.GetStreamFunc != nil {
		return m.GetStreamFunc(ctx, ref)
	}
	return nil, fmt.Errorf("stream not found")
}

func (m *MockStore) HasActivity(ctx context.Context, source, externalID string) (bool, error) {
	if m.HasActivityFunc != nil {
		return m.HasActivityFunc(ctx, source, externalID)
	}
	return false, nil
}

func (m *MockStore) ListActivitiesNear(ctx context.Context, athleteID string, around time.Time, window time.Duration) ([]*activity.Activity, error) {
	if m.ListActivitiesNearFunc != nil {
		return m.ListActivitiesNearFunc(ctx, athleteID, around, window)
	}
	return nil, nil
}

func (m *MockStore) ListActivitiesOn(ctx context.Context, athleteID string, day time.Time) ([]*activity.Activity, error) {
	if m.ListActivitiesOnFunc != nil {
		return m.ListActivitiesOnFunc(ctx, athleteID, day)
	}
	return nil, nil
}

func (m *MockStore) ActivityDateRange(ctx context.Context, athleteID string) (time.Time, time.Time, bool, error) {
	if m.ActivityDateRangeFunc != nil {
		return m.ActivityDateRangeFunc(ctx, athleteID)
	}
	return time.Time{}, time.Time{}, false, nil
}

func (m *MockStore) RequeueStale(ctx context.Context, cutoff time.Time) (int, error) {
	if m.RequeueStaleFunc != nil {
		return m.RequeueStaleFunc(ctx, cutoff)
	}
	return 0, nil
}

func (m *MockStore) ClaimPending(ctx context.Context, limit int, now time.Time) ([]*queue.Entry, error) {
	if m.ClaimPendingFunc != nil {
		return m.ClaimPendingFunc(ctx, limit, now)
	}
	return nil, nil
}

func (m *MockStore) UpdateEntry(ctx context.Context, e *queue.Entry) error {
	if m.UpdateEntryFunc != nil {
		return m.UpdateEntryFunc(ctx, e)
	}
	return nil
}

func (m *MockStore) ListEntries(ctx context.Context, status queue.Status) ([]*queue.Entry, error) {
	if m.ListEntriesFunc != nil {
		return m.ListEntriesFunc(ctx, status)
	}
	return nil, nil
}

func (m *MockStore) UpsertSegmentFeatures(ctx context.Context, activityID string, rows []features.SegmentFeatures) error {
	if m.UpsertSegmentFeaturesFunc != nil {
		return m.UpsertSegmentFeaturesFunc(ctx, activityID, rows)
	}
	return nil
}

func (m *MockStore) GetTrainingLoad(ctx context.Context, athleteID string, date time.Time) (*features.TrainingLoad, error) {
	if m.GetTrainingLoadFunc != nil {
		return m.GetTrainingLoadFunc(ctx, athleteID, date)
	}
	return nil, nil
}

func (m *MockStore) UpsertTrainingLoads(ctx context.Context, rows []features.TrainingLoad) error {
	if m.UpsertTrainingLoadsFunc != nil {
		return m.UpsertTrainingLoadsFunc(ctx, rows)
	}
	return nil
}

func (m *MockStore) ListTrainingLoads(ctx context.Context, athleteID string, from, to time.Time) ([]*features.TrainingLoad, error) {
	if m.ListTrainingLoadsFunc != nil {
		return m.ListTrainingLoadsFunc(ctx, athleteID, from, to)
	}
	return nil, nil
}

func (m *MockStore) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// --- Mock Source ---
type MockSource struct {
	NameValue           string
	FetchActivitiesFunc func(ctx context.Context, athleteID string) ([]shared.RawActivity, error)
}

func (m *MockSource) Name() string {
	if m.NameValue != "" {
		return m.NameValue
	}
	return "mock"
}

func (m *MockSource) FetchActivities(ctx context.Context, athleteID string) ([]shared.RawActivity, error) {
	if m.FetchActivitiesFunc != nil {
		return m.FetchActivitiesFunc(ctx, athleteID)
	}
	return nil, nil
}

// --- Mock DedupCache ---
type MockDedupCache struct {
	RecentActivitiesFunc func(ctx context.Context, athleteID string) ([]*activity.Activity, bool)
	RememberFunc         func(ctx context.Context, act *activity.Activity)

	Remembered []*activity.Activity
}

func (m *MockDedupCache) RecentActivities(ctx context.Context, athleteID string) ([]*activity.Activity, bool) {
	if m.RecentActivitiesFunc != nil {
		return m.RecentActivitiesFunc(ctx, athleteID)
	}
	return nil, false
}

func (m *MockDedupCache) Remember(ctx context.Context, act *activity.Activity) {
	if m.RememberFunc != nil {
		m.RememberFunc(ctx, act)
		return
	}
	m.Remembered = append(m.Remembered, act)
}
