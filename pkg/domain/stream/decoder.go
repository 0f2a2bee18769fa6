package stream

import (
	"fmt"
	"sort"
	"time"

	"github.com/pulseline/pulseline-server/pkg/errors"
)

// SemicircleToDeg converts the fixed-point angular unit used by device
// firmwares into degrees: 180 / 2^31.
const SemicircleToDeg = 180.0 / 2147483648.0

// outOfOrderTolerance bounds how far a record may sit behind the running
// maximum timestamp before the record set is considered unsortable garbage
// rather than ordinary jitter.
const outOfOrderTolerance = 5 * time.Second

// Decode converts an ordered raw record set into a canonical stream.
//
// Position values are converted from semicircles to degrees. Records out of
// order within the jitter tolerance are sorted; records sharing a timestamp
// keep the first occurrence. Records lacking position (indoor activities)
// propagate as samples with nil position fields rather than being dropped.
//
// Returns errors.ErrDecode when any record lacks a timestamp, when records
// are out of order beyond the tolerance, or when the record set is empty.
func Decode(records []RawRecord) (*CanonicalStream, error) {
	if len(records) == 0 {
		return nil, errors.ErrDecode.WithMessage("record set is empty")
	}

	var maxSeen time.Time
	for i := range records {
		ts := records[i].Timestamp
		if ts.IsZero() {
			return nil, errors.ErrDecode.WithMessage(fmt.Sprintf("record %d has no timestamp", i))
		}
		if !maxSeen.IsZero() && maxSeen.Sub(ts) > outOfOrderTolerance {
			return nil, errors.ErrDecode.WithMessage(fmt.Sprintf("record %d is %s out of order", i, maxSeen.Sub(ts)))
		}
		if ts.After(maxSeen) {
			maxSeen = ts
		}
	}

	sorted := make([]RawRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	start := sorted[0].Timestamp
	out := &CanonicalStream{StartedAt: start, Samples: make([]Sample, 0, len(sorted))}

	var prev time.Time
	for i := range sorted {
		rec := &sorted[i]
		if i > 0 && rec.Timestamp.Equal(prev) {
			// Duplicate timestamp: first record wins.
			continue
		}
		prev = rec.Timestamp

		sample := Sample{
			OffsetS:      rec.Timestamp.Sub(start).Seconds(),
			ElevationM:   rec.ElevationM,
			HeartRateBPM: rec.HeartRateBPM,
			PowerW:       rec.PowerW,
			CadenceRPM:   rec.CadenceRPM,
		}
		// Geographic fields are all-or-nothing per sample. A record with only
		// one coordinate is treated as having no fix at all.
		if rec.LatSemicircle != nil && rec.LonSemicircle != nil {
			lat := SemicircleToDegrees(*rec.LatSemicircle)
			lon := SemicircleToDegrees(*rec.LonSemicircle)
			sample.LatDeg = &lat
			sample.LonDeg = &lon
		}
		out.Samples = append(out.Samples, sample)
	}

	return out, nil
}

// SemicircleToDegrees converts the device fixed-point angular unit to degrees.
func SemicircleToDegrees(v int32) float64 {
	return float64(v) * SemicircleToDeg
}
