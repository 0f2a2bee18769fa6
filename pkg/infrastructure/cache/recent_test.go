package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pulseline/pulseline-server/pkg/domain/activity"
)

func TestRecentCache_ColdAthleteMisses(t *testing.T) {
	c := NewRecentCache(0, 0)
	if _, ok := c.RecentActivities(context.Background(), "ath-1"); ok {
		t.Fatal("cold athlete should miss")
	}
}

func TestRecentCache_RememberAndRecall(t *testing.T) {
	c := NewRecentCache(time.Minute, 8)
	ctx := context.Background()

	c.Remember(ctx, &activity.Activity{ID: "act-1", AthleteID: "ath-1"})
	c.Remember(ctx, &activity.Activity{ID: "act-2", AthleteID: "ath-1"})
	c.Remember(ctx, &activity.Activity{ID: "act-3", AthleteID: "ath-2"})

	acts, ok := c.RecentActivities(ctx, "ath-1")
	if !ok || len(acts) != 2 {
		t.Fatalf("expected 2 entries, got ok=%v n=%d", ok, len(acts))
	}
	if acts[0].ID != "act-1" || acts[1].ID != "act-2" {
		t.Errorf("bad order: %+v", acts)
	}

	acts, ok = c.RecentActivities(ctx, "ath-2")
	if !ok || len(acts) != 1 || acts[0].ID != "act-3" {
		t.Errorf("athlete isolation broken: ok=%v %+v", ok, acts)
	}
}

func TestRecentCache_EntriesExpire(t *testing.T) {
	c := NewRecentCache(time.Minute, 8)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	c.now = func() time.Time { return now }

	c.Remember(ctx, &activity.Activity{ID: "act-1", AthleteID: "ath-1"})
	now = base.Add(30 * time.Second)
	c.Remember(ctx, &activity.Activity{ID: "act-2", AthleteID: "ath-1"})

	now = base.Add(70 * time.Second)
	acts, ok := c.RecentActivities(ctx, "ath-1")
	if !ok || len(acts) != 1 || acts[0].ID != "act-2" {
		t.Fatalf("expected only the younger entry, got ok=%v %+v", ok, acts)
	}

	now = base.Add(5 * time.Minute)
	if _, ok := c.RecentActivities(ctx, "ath-1"); ok {
		t.Fatal("fully expired athlete should miss")
	}
}

func TestRecentCache_CapsPerAthlete(t *testing.T) {
	c := NewRecentCache(time.Hour, 3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		c.Remember(ctx, &activity.Activity{ID: fmt.Sprintf("act-%d", i), AthleteID: "ath-1"})
	}

	acts, ok := c.RecentActivities(ctx, "ath-1")
	if !ok || len(acts) != 3 {
		t.Fatalf("expected cap of 3, got ok=%v n=%d", ok, len(acts))
	}
	if acts[0].ID != "act-2" || acts[2].ID != "act-4" {
		t.Errorf("expected newest entries kept, got %+v", acts)
	}
}
