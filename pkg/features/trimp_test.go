package features_test

import (
	"math"
	"testing"
	"time"

	"github.com/pulseline/pulseline-server/pkg/domain/stream"
	"github.com/pulseline/pulseline-server/pkg/features"
)

func hrStream(durationS float64, hr float64) *stream.CanonicalStream {
	cs := &stream.CanonicalStream{StartedAt: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	for offset := 0.0; offset <= durationS; offset += 1 {
		v := hr
		cs.Samples = append(cs.Samples, stream.Sample{OffsetS: offset, HeartRateBPM: &v})
	}
	return cs
}

func TestSessionTRIMP(t *testing.T) {
	const maxHR = 200.0

	tests := []struct {
		name     string
		stream   *stream.CanonicalStream
		expected float64
	}{
		// 30 minutes at 75% of max is zone 3: 30 × 3 = 90.
		{name: "Zone 3 steady state", stream: hrStream(1800, 150), expected: 90},
		// 10 minutes at 95% is zone 5: 10 × 5 = 50.
		{name: "Zone 5 interval", stream: hrStream(600, 190), expected: 50},
		// Below 50% of max scores nothing.
		{name: "Recovery spin", stream: hrStream(1800, 90), expected: 0},
		{name: "Empty stream", stream: &stream.CanonicalStream{}, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := features.SessionTRIMP(tt.stream, maxHR)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("SessionTRIMP = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSessionTRIMP_NoHeartRateScoresZero(t *testing.T) {
	cs := &stream.CanonicalStream{}
	for offset := 0.0; offset <= 600; offset += 1 {
		cs.Samples = append(cs.Samples, stream.Sample{OffsetS: offset})
	}
	if got := features.SessionTRIMP(cs, 200); got != 0 {
		t.Errorf("expected 0 for a stream without heart rate, got %v", got)
	}
}
