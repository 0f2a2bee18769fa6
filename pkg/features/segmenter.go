package features

import (
	"fmt"

	"github.com/pulseline/pulseline-server/pkg/domain/stream"
)

// FixedWindowSegmenter splits a stream into consecutive fixed-duration
// windows. It stands in for the real lap/grade segmentation service in the
// CLI and in tests; anything implementing Segmenter can replace it.
type FixedWindowSegmenter struct {
	WindowS float64
}

func (s *FixedWindowSegmenter) Segment(cs *stream.CanonicalStream) []Segment {
	window := s.WindowS
	if window <= 0 {
		window = 600
	}
	if len(cs.Samples) == 0 {
		return nil
	}

	var out []Segment
	start := 0
	boundary := cs.Samples[0].OffsetS + window
	for i := range cs.Samples {
		if cs.Samples[i].OffsetS >= boundary {
			out = append(out, Segment{
				ID:         fmt.Sprintf("win-%d", len(out)),
				StartIndex: start,
				EndIndex:   i,
			})
			start = i
			boundary = cs.Samples[i].OffsetS + window
		}
	}
	if len(cs.Samples)-start >= 2 {
		out = append(out, Segment{
			ID:         fmt.Sprintf("win-%d", len(out)),
			StartIndex: start,
			EndIndex:   len(cs.Samples),
		})
	}
	return out
}
