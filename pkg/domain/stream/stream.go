// Package stream converts raw device record sets into the canonical
// multi-channel time series consumed by segmentation and feature computation.
package stream

import (
	"math"
	"time"
)

// RawRecord is a single record as it arrives from a device or provider API.
// Position is expressed in device semicircles. Channels are sparse: any field
// other than the timestamp may be absent.
type RawRecord struct {
	Timestamp     time.Time
	LatSemicircle *int32
	LonSemicircle *int32
	ElevationM    *float64
	HeartRateBPM  *float64
	PowerW        *float64
	CadenceRPM    *float64
}

// Sample is one entry of a canonical stream. The field set is identical for
// indoor and outdoor activities; indoor samples simply carry nil position
// fields, so downstream segmentation code needs no branching.
type Sample struct {
	OffsetS      float64
	LatDeg       *float64
	LonDeg       *float64
	ElevationM   *float64
	HeartRateBPM *float64
	PowerW       *float64
	CadenceRPM   *float64
}

// HasPosition reports whether the sample carries GPS coordinates. Latitude and
// longitude are always set together.
func (s *Sample) HasPosition() bool {
	return s.LatDeg != nil && s.LonDeg != nil
}

// CanonicalStream is the ordered, immutable time series for one activity.
// Offsets are seconds since StartedAt and strictly increasing.
type CanonicalStream struct {
	StartedAt time.Time
	Samples   []Sample
}

// DurationS returns the covered time span in seconds.
func (c *CanonicalStream) DurationS() float64 {
	if len(c.Samples) == 0 {
		return 0
	}
	return c.Samples[len(c.Samples)-1].OffsetS
}

// earthRadiusM is the mean earth radius used for haversine distances.
const earthRadiusM = 6371000.0

// HaversineM returns the great-circle distance in meters between two
// coordinates given in degrees.
func HaversineM(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadiusM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// TotalDistanceM sums the haversine distance over consecutive samples that
// both carry a position. Streams without GPS report zero.
func (c *CanonicalStream) TotalDistanceM() float64 {
	var total float64
	var prev *Sample
	for i := range c.Samples {
		s := &c.Samples[i]
		if !s.HasPosition() {
			continue
		}
		if prev != nil {
			total += HaversineM(*prev.LatDeg, *prev.LonDeg, *s.LatDeg, *s.LonDeg)
		}
		prev = s
	}
	return total
}
