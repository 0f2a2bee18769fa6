package fitdir

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pulseline/pulseline-server/pkg/domain/activity"
	"github.com/pulseline/pulseline-server/pkg/domain/file_generators"
	"github.com/pulseline/pulseline-server/pkg/domain/stream"
)

func writeFitFile(t *testing.T, dir, name string, actType activity.Type, start time.Time) {
	t.Helper()
	hr := 140.0
	cs := &stream.CanonicalStream{
		StartedAt: start,
		Samples: []stream.Sample{
			{OffsetS: 0, HeartRateBPM: &hr},
			{OffsetS: 1, HeartRateBPM: &hr},
		},
	}
	act := &activity.Activity{ID: name, Type: actType, StartedAt: start, DurationS: 1}
	data, err := file_generators.GenerateFitFile(act, cs)
	if err != nil {
		t.Fatalf("failed to build fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
}

func TestSource_FetchActivities(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)
	writeFitFile(t, dir, "morning.fit", activity.TypeRun, start)
	writeFitFile(t, dir, "evening.FIT", activity.TypeRide, start.Add(10*time.Hour))
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a fit file"), 0644); err != nil {
		t.Fatal(err)
	}

	s := New(dir, nil)
	if s.Name() != "fit-file" {
		t.Errorf("unexpected source name %q", s.Name())
	}

	raws, err := s.FetchActivities(context.Background(), "ath-1")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(raws) != 2 {
		t.Fatalf("expected 2 fit files, got %d", len(raws))
	}

	byID := map[string]int{}
	for i, r := range raws {
		byID[r.ExternalID] = i
	}
	run, ok := byID["morning.fit"]
	if !ok {
		t.Fatalf("morning.fit missing from %+v", byID)
	}
	if raws[run].Type != "running" {
		t.Errorf("expected sport token carried through, got %q", raws[run].Type)
	}
	if len(raws[run].Records) != 2 {
		t.Errorf("expected 2 records, got %d", len(raws[run].Records))
	}
	if activity.MapExternalType(raws[run].Type) != activity.TypeRun {
		t.Errorf("sport token %q does not map back to run", raws[run].Type)
	}
}

func TestSource_CorruptFileIsReturnedEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.fit"), []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}

	raws, err := New(dir, nil).FetchActivities(context.Background(), "ath-1")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(raws) != 1 || raws[0].ExternalID != "broken.fit" || len(raws[0].Records) != 0 {
		t.Fatalf("expected empty raw for corrupt file, got %+v", raws)
	}
}

func TestSource_MissingDirectoryFails(t *testing.T) {
	if _, err := New("/nonexistent/path", nil).FetchActivities(context.Background(), "ath-1"); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
