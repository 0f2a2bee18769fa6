// Package sqlite is the relational persistence layer behind shared.Store.
// One database holds activities, canonical streams, the enrichment queue and
// the derived training loads; queue claims are WHERE-guarded updates so
// concurrent workers never process the same entry twice.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pulseline/pulseline-server/pkg/domain/activity"
	"github.com/pulseline/pulseline-server/pkg/domain/stream"
	"github.com/pulseline/pulseline-server/pkg/features"
	"github.com/pulseline/pulseline-server/pkg/queue"
)

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for an ephemeral store in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if strings.Contains(path, ":memory:") {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// --- Activities and streams ---

// InsertActivity persists the activity, its canonical stream and a pending
// enrichment entry in one transaction. A crash can therefore never leave an
// activity without its samples, nor a persisted activity without a queue row.
func (s *Store) InsertActivity(ctx context.Context, act *activity.Activity, cs *stream.CanonicalStream, maxAttempts int) error {
	samples, err := json.Marshal(cs.Samples)
	if err != nil {
		return fmt.Errorf("failed to encode samples: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO streams (ref, started_at, samples) VALUES (?, ?, ?)",
		act.StreamRef, cs.StartedAt.UTC(), string(samples),
	)
	if err != nil {
		return fmt.Errorf("failed to insert stream: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO activities (id, athlete_id, source, external_id, type, started_at, duration_s, distance_m, stream_ref)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		act.ID, act.AthleteID, act.Source, nullString(act.ExternalID),
		string(act.Type), act.StartedAt.UTC(), act.DurationS, act.DistanceM, act.StreamRef,
	)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO enrichment_queue (activity_id, status, attempts, max_attempts, created_at, updated_at)
		 VALUES (?, ?, 0, ?, ?, ?)`,
		act.ID, string(queue.StatusPending), maxAttempts, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue activity: %w", err)
	}

	return tx.Commit()
}

const activitySelectCols = "id, athlete_id, source, external_id, type, started_at, duration_s, distance_m, stream_ref"

func scanActivity(scanner interface{ Scan(dest ...any) error }) (*activity.Activity, error) {
	var (
		act        activity.Activity
		externalID sql.NullString
		actType    string
		startedAt  time.Time
	)
	err := scanner.Scan(
		&act.ID, &act.AthleteID, &act.Source, &externalID, &actType,
		&startedAt, &act.DurationS, &act.DistanceM, &act.StreamRef,
	)
	if err != nil {
		return nil, err
	}
	act.ExternalID = externalID.String
	act.Type = activity.Type(actType)
	act.StartedAt = startedAt.UTC()
	return &act, nil
}

// GetActivity returns nil without error when the id is unknown.
func (s *Store) GetActivity(ctx context.Context, id string) (*activity.Activity, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+activitySelectCols+" FROM activities WHERE id = ?", id)
	act, err := scanActivity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	return act, nil
}

// GetStream returns nil without error when the ref is unknown.
func (s *Store) GetStream(ctx context.Context, ref string) (*stream.CanonicalStream, error) {
	var (
		startedAt time.Time
		samples   string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT started_at, samples FROM streams WHERE ref = ?", ref,
	).Scan(&startedAt, &samples)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stream: %w", err)
	}

	cs := &stream.CanonicalStream{StartedAt: startedAt.UTC()}
	if err := json.Unmarshal([]byte(samples), &cs.Samples); err != nil {
		return nil, fmt.Errorf("failed to decode samples: %w", err)
	}
	return cs, nil
}

func (s *Store) HasActivity(ctx context.Context, source, externalID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM activities WHERE source = ? AND external_id = ?",
		source, externalID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check activity: %w", err)
	}
	return n > 0, nil
}

func (s *Store) ListActivitiesNear(ctx context.Context, athleteID string, around time.Time, window time.Duration) ([]*activity.Activity, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+activitySelectCols+" FROM activities WHERE athlete_id = ? AND started_at BETWEEN ? AND ? ORDER BY started_at",
		athleteID, around.Add(-window).UTC(), around.Add(window).UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()
	return collectActivities(rows)
}

func (s *Store) ListActivitiesOn(ctx context.Context, athleteID string, day time.Time) ([]*activity.Activity, error) {
	start := day.UTC().Truncate(24 * time.Hour)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+activitySelectCols+" FROM activities WHERE athlete_id = ? AND started_at >= ? AND started_at < ? ORDER BY started_at",
		athleteID, start, start.AddDate(0, 0, 1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()
	return collectActivities(rows)
}

func collectActivities(rows *sql.Rows) ([]*activity.Activity, error) {
	var acts []*activity.Activity
	for rows.Next() {
		act, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		acts = append(acts, act)
	}
	return acts, rows.Err()
}

// ActivityDateRange returns the first and last tracked days for the athlete,
// truncated to UTC dates. ok is false when no activities exist.
func (s *Store) ActivityDateRange(ctx context.Context, athleteID string) (time.Time, time.Time, bool, error) {
	var first, last time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT started_at FROM activities WHERE athlete_id = ? ORDER BY started_at ASC LIMIT 1", athleteID,
	).Scan(&first)
	if err == sql.ErrNoRows {
		return time.Time{}, time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("failed to get first activity: %w", err)
	}
	err = s.db.QueryRowContext(ctx,
		"SELECT started_at FROM activities WHERE athlete_id = ? ORDER BY started_at DESC LIMIT 1", athleteID,
	).Scan(&last)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("failed to get last activity: %w", err)
	}
	return first.UTC().Truncate(24 * time.Hour), last.UTC().Truncate(24 * time.Hour), true, nil
}

// --- Enrichment queue ---

// RequeueStale returns in_progress entries whose lease expired to pending.
// A worker that dies after claiming leaves its entries in_progress with a
// stale updated_at; the next worker sweep makes them claimable again.
// Attempts and last_error are preserved, so a crash does not reset the retry
// budget. Returns the number of entries requeued.
func (s *Store) RequeueStale(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE enrichment_queue SET status = ?, updated_at = ?
		 WHERE status = ? AND updated_at < ?`,
		string(queue.StatusPending), time.Now().UTC(),
		string(queue.StatusInProgress), cutoff.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue stale entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

const entrySelectCols = "id, activity_id, status, attempts, max_attempts, next_retry_at, last_error, created_at, updated_at"

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*queue.Entry, error) {
	var (
		e           queue.Entry
		status      string
		nextRetryAt sql.NullTime
		lastError   sql.NullString
		createdAt   time.Time
		updatedAt   time.Time
	)
	err := scanner.Scan(
		&e.ID, &e.ActivityID, &status, &e.Attempts, &e.MaxAttempts,
		&nextRetryAt, &lastError, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Status = queue.Status(status)
	if nextRetryAt.Valid {
		t := nextRetryAt.Time.UTC()
		e.NextRetryAt = &t
	}
	e.LastError = lastError.String
	e.CreatedAt = createdAt.UTC()
	e.UpdatedAt = updatedAt.UTC()
	return &e, nil
}

// ClaimPending atomically moves up to limit due entries from pending to
// in_progress and returns them. Each transition is guarded on the current
// status, so a row claimed by a concurrent worker is skipped, not stolen.
//
// At most one entry per athlete is ever in flight across all workers: the
// select skips athletes that already hold an in_progress entry and hands out
// only the earliest due entry per athlete. The training-load recurrence reads
// and rewrites a whole per-athlete day sequence, so two concurrent
// enrichments of the same athlete would race on it.
func (s *Store) ClaimPending(ctx context.Context, limit int, now time.Time) ([]*queue.Entry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT MIN(q.id) FROM enrichment_queue q
		 JOIN activities a ON a.id = q.activity_id
		 WHERE q.status = ? AND (q.next_retry_at IS NULL OR q.next_retry_at <= ?)
		   AND a.athlete_id NOT IN (
			SELECT a2.athlete_id FROM enrichment_queue q2
			JOIN activities a2 ON a2.id = q2.activity_id
			WHERE q2.status = ?)
		 GROUP BY a.athlete_id
		 ORDER BY MIN(q.id) LIMIT ?`,
		string(queue.StatusPending), now.UTC(), string(queue.StatusInProgress), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to select due entries: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan entry id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var claimed []*queue.Entry
	for _, id := range ids {
		res, err := tx.ExecContext(ctx,
			"UPDATE enrichment_queue SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
			string(queue.StatusInProgress), now.UTC(), id, string(queue.StatusPending),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to claim entry %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n != 1 {
			continue
		}
		entry, err := scanEntry(tx.QueryRowContext(ctx,
			"SELECT "+entrySelectCols+" FROM enrichment_queue WHERE id = ?", id))
		if err != nil {
			return nil, fmt.Errorf("failed to read claimed entry %d: %w", id, err)
		}
		claimed = append(claimed, entry)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}
	return claimed, nil
}

func (s *Store) UpdateEntry(ctx context.Context, e *queue.Entry) error {
	var nextRetryAt sql.NullTime
	if e.NextRetryAt != nil {
		nextRetryAt = sql.NullTime{Time: e.NextRetryAt.UTC(), Valid: true}
	}
	var lastError sql.NullString
	if e.LastError != "" {
		lastError = sql.NullString{String: e.LastError, Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE enrichment_queue
		 SET status = ?, attempts = ?, next_retry_at = ?, last_error = ?, updated_at = ?
		 WHERE id = ?`,
		string(e.Status), e.Attempts, nextRetryAt, lastError, e.UpdatedAt.UTC(), e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("entry %d not found", e.ID)
	}
	return nil
}

func (s *Store) ListEntries(ctx context.Context, status queue.Status) ([]*queue.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+entrySelectCols+" FROM enrichment_queue WHERE status = ? ORDER BY id",
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []*queue.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- Derived features ---

// UpsertSegmentFeatures replaces the full segment set for an activity.
// Re-enrichment may change the segmentation, so stale rows are dropped rather
// than merged.
func (s *Store) UpsertSegmentFeatures(ctx context.Context, activityID string, rows []features.SegmentFeatures) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM segment_features WHERE activity_id = ?", activityID); err != nil {
		return fmt.Errorf("failed to clear segment features: %w", err)
	}
	for i := range rows {
		r := &rows[i]
		_, err := tx.ExecContext(ctx,
			`INSERT INTO segment_features (activity_id, segment_id, minetti_cost, grade_variability, efficiency_factor, cardiac_drift, cadence_decay)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			activityID, r.SegmentID, nullFloat(r.MinettiCost), nullFloat(r.GradeVariability),
			nullFloat(r.EfficiencyFactor), nullFloat(r.CardiacDrift), nullFloat(r.CadenceDecay),
		)
		if err != nil {
			return fmt.Errorf("failed to insert segment features: %w", err)
		}
	}
	return tx.Commit()
}

// ListSegmentFeatures returns the stored segment rows for an activity in
// segment order.
func (s *Store) ListSegmentFeatures(ctx context.Context, activityID string) ([]features.SegmentFeatures, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT segment_id, minetti_cost, grade_variability, efficiency_factor, cardiac_drift, cadence_decay
		 FROM segment_features WHERE activity_id = ? ORDER BY rowid`,
		activityID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list segment features: %w", err)
	}
	defer rows.Close()

	var out []features.SegmentFeatures
	for rows.Next() {
		var (
			r                                      features.SegmentFeatures
			minetti, gradeVar, ef, drift, cadDecay sql.NullFloat64
		)
		if err := rows.Scan(&r.SegmentID, &minetti, &gradeVar, &ef, &drift, &cadDecay); err != nil {
			return nil, fmt.Errorf("failed to scan segment features: %w", err)
		}
		r.ActivityID = activityID
		r.MinettiCost = floatPtr(minetti)
		r.GradeVariability = floatPtr(gradeVar)
		r.EfficiencyFactor = floatPtr(ef)
		r.CardiacDrift = floatPtr(drift)
		r.CadenceDecay = floatPtr(cadDecay)
		out = append(out, r)
	}
	return out, rows.Err()
}

const dateLayout = "2006-01-02"

// GetTrainingLoad returns nil without error for untracked days.
func (s *Store) GetTrainingLoad(ctx context.Context, athleteID string, date time.Time) (*features.TrainingLoad, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT date, trimp, ctl, atl, tsb, rhr_delta_7d
		 FROM training_loads WHERE athlete_id = ? AND date = ?`,
		athleteID, date.UTC().Format(dateLayout),
	)
	load, err := scanTrainingLoad(row, athleteID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get training load: %w", err)
	}
	return load, nil
}

func scanTrainingLoad(scanner interface{ Scan(dest ...any) error }, athleteID string) (*features.TrainingLoad, error) {
	var (
		load     features.TrainingLoad
		day      string
		rhrDelta sql.NullFloat64
	)
	err := scanner.Scan(&day, &load.TRIMP, &load.CTL, &load.ATL, &load.TSB, &rhrDelta)
	if err != nil {
		return nil, err
	}
	date, err := time.ParseInLocation(dateLayout, day, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("failed to parse load date %q: %w", day, err)
	}
	load.AthleteID = athleteID
	load.Date = date
	load.RHRDelta = floatPtr(rhrDelta)
	return &load, nil
}

func (s *Store) UpsertTrainingLoads(ctx context.Context, rows []features.TrainingLoad) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range rows {
		r := &rows[i]
		_, err := tx.ExecContext(ctx,
			`INSERT INTO training_loads (athlete_id, date, trimp, ctl, atl, tsb, rhr_delta_7d)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(athlete_id, date) DO UPDATE SET
				trimp = excluded.trimp,
				ctl = excluded.ctl,
				atl = excluded.atl,
				tsb = excluded.tsb,
				rhr_delta_7d = excluded.rhr_delta_7d`,
			r.AthleteID, r.Date.UTC().Format(dateLayout),
			r.TRIMP, r.CTL, r.ATL, r.TSB, nullFloat(r.RHRDelta),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert training load: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) ListTrainingLoads(ctx context.Context, athleteID string, from, to time.Time) ([]*features.TrainingLoad, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, trimp, ctl, atl, tsb, rhr_delta_7d
		 FROM training_loads WHERE athlete_id = ? AND date >= ? AND date <= ?
		 ORDER BY date`,
		athleteID, from.UTC().Format(dateLayout), to.UTC().Format(dateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list training loads: %w", err)
	}
	defer rows.Close()

	var out []*features.TrainingLoad
	for rows.Next() {
		load, err := scanTrainingLoad(rows, athleteID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan training load: %w", err)
		}
		out = append(out, load)
	}
	return out, rows.Err()
}

// --- helpers ---

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
