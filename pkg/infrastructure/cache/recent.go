// Package cache holds the in-memory fast path for dedup candidate lookup.
// It exists for the common burst case where one sync run fetches overlapping
// pages of the same activities; a miss always degrades to a store scan.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/pulseline/pulseline-server/pkg/domain/activity"
)

const (
	DefaultTTL        = 15 * time.Minute
	DefaultMaxEntries = 64
)

type entry struct {
	act      *activity.Activity
	storedAt time.Time
}

// RecentCache remembers the activities ingested most recently per athlete.
// Entries expire after a TTL and the per-athlete list is capped, so the cache
// only ever answers for athletes it has seen during the current burst.
type RecentCache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	byAthlete  map[string][]entry
	now        func() time.Time
}

func NewRecentCache(ttl time.Duration, maxEntries int) *RecentCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &RecentCache{
		ttl:        ttl,
		maxEntries: maxEntries,
		byAthlete:  make(map[string][]entry),
		now:        time.Now,
	}
}

// RecentActivities returns the live entries for the athlete. ok is false for
// a cold athlete, telling the caller to fall back to the store.
func (c *RecentCache) RecentActivities(ctx context.Context, athleteID string) ([]*activity.Activity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.prune(athleteID)
	if len(entries) == 0 {
		return nil, false
	}
	acts := make([]*activity.Activity, len(entries))
	for i, e := range entries {
		acts[i] = e.act
	}
	return acts, true
}

// Remember records a freshly ingested activity.
func (c *RecentCache) Remember(ctx context.Context, act *activity.Activity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := append(c.prune(act.AthleteID), entry{act: act, storedAt: c.now()})
	if len(entries) > c.maxEntries {
		entries = entries[len(entries)-c.maxEntries:]
	}
	c.byAthlete[act.AthleteID] = entries
}

// prune drops expired entries for the athlete and returns the survivors.
// Caller must hold the lock.
func (c *RecentCache) prune(athleteID string) []entry {
	cutoff := c.now().Add(-c.ttl)
	entries := c.byAthlete[athleteID]
	live := entries[:0]
	for _, e := range entries {
		if e.storedAt.After(cutoff) {
			live = append(live, e)
		}
	}
	if len(live) == 0 {
		delete(c.byAthlete, athleteID)
		return nil
	}
	c.byAthlete[athleteID] = live
	return live
}
