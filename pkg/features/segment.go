package features

import (
	"math"

	"github.com/pulseline/pulseline-server/pkg/domain/stream"
)

// ComputeSegmentFeatures derives the biomechanical metrics for one segment of
// a canonical stream. Segments shorter than the minimum duration yield
// all-null features: a variance or slope estimate over a handful of samples
// is noise, not signal. Individual metrics also come back nil when the
// channel they need is absent, so an indoor segment still gets its HR and
// cadence metrics.
func ComputeSegmentFeatures(cs *stream.CanonicalStream, seg Segment, p Params) SegmentFeatures {
	p = p.withDefaults()
	out := SegmentFeatures{SegmentID: seg.ID}

	if seg.StartIndex < 0 || seg.EndIndex > len(cs.Samples) || seg.EndIndex-seg.StartIndex < 2 {
		return out
	}
	samples := cs.Samples[seg.StartIndex:seg.EndIndex]

	duration := samples[len(samples)-1].OffsetS - samples[0].OffsetS
	if duration < p.MinSegmentDuration {
		return out
	}

	grades, distanceM := gradeSeries(samples)
	if len(grades) >= 2 {
		avg := mean(grades)
		cost := minettiCost(avg)
		out.MinettiCost = &cost
		sd := stddev(grades)
		out.GradeVariability = &sd
	}

	out.EfficiencyFactor = efficiencyFactor(samples, distanceM, duration)
	out.CardiacDrift = cardiacDrift(samples)
	out.CadenceDecay = cadenceDecay(samples)

	return out
}

// minettiCost is the metabolic cost of running on gradient i (rise over run),
// in J/kg/m, after Minetti et al. 2002. The polynomial is only validated for
// |i| <= 0.45; steeper grades are clamped.
func minettiCost(i float64) float64 {
	if i > 0.45 {
		i = 0.45
	} else if i < -0.45 {
		i = -0.45
	}
	return 155.4*math.Pow(i, 5) - 30.4*math.Pow(i, 4) - 43.3*math.Pow(i, 3) + 46.3*math.Pow(i, 2) + 19.5*i + 3.6
}

// gradeSeries returns the instantaneous grade between consecutive samples
// that carry both position and elevation, plus the total horizontal distance
// covered by the segment. Indoor streams produce no grades and zero distance.
func gradeSeries(samples []stream.Sample) ([]float64, float64) {
	var grades []float64
	var totalM float64

	for i := 1; i < len(samples); i++ {
		a, b := &samples[i-1], &samples[i]
		if !a.HasPosition() || !b.HasPosition() {
			continue
		}
		horiz := stream.HaversineM(*a.LatDeg, *a.LonDeg, *b.LatDeg, *b.LonDeg)
		totalM += horiz
		if horiz < 0.5 || a.ElevationM == nil || b.ElevationM == nil {
			// Standing still or no elevation: no grade estimate.
			continue
		}
		grades = append(grades, (*b.ElevationM-*a.ElevationM)/horiz)
	}
	return grades, totalM
}

// efficiencyFactor is output per heartbeat: average power (or, without a
// power meter, average speed in m/min as a pace equivalent) over average
// heart rate. Nil when heart rate is absent or no output measure exists.
func efficiencyFactor(samples []stream.Sample, distanceM, duration float64) *float64 {
	hr, hrOK := channelMean(samples, func(s *stream.Sample) *float64 { return s.HeartRateBPM })
	if !hrOK || hr <= 0 {
		return nil
	}

	if power, ok := channelMean(samples, func(s *stream.Sample) *float64 { return s.PowerW }); ok {
		ef := power / hr
		return &ef
	}
	if distanceM > 0 && duration > 0 {
		ef := (distanceM / duration * 60.0) / hr
		return &ef
	}
	return nil
}

// cardiacDrift is the relative rise in heart rate between the first and
// second half of the segment; positive drift at matched effort flags aerobic
// fatigue.
func cardiacDrift(samples []stream.Sample) *float64 {
	mid := samples[0].OffsetS + (samples[len(samples)-1].OffsetS-samples[0].OffsetS)/2

	var first, second []stream.Sample
	for i := range samples {
		if samples[i].OffsetS < mid {
			first = append(first, samples[i])
		} else {
			second = append(second, samples[i])
		}
	}

	h1, ok1 := channelMean(first, func(s *stream.Sample) *float64 { return s.HeartRateBPM })
	h2, ok2 := channelMean(second, func(s *stream.Sample) *float64 { return s.HeartRateBPM })
	if !ok1 || !ok2 || h1 <= 0 {
		return nil
	}
	drift := (h2 - h1) / h1
	return &drift
}

// cadenceDecay is the linear-regression slope of cadence over time, in rpm
// per minute. Negative values indicate fatigue-driven cadence loss.
func cadenceDecay(samples []stream.Sample) *float64 {
	var xs, ys []float64
	for i := range samples {
		if samples[i].CadenceRPM != nil {
			xs = append(xs, samples[i].OffsetS)
			ys = append(ys, *samples[i].CadenceRPM)
		}
	}
	slope, ok := olsSlope(xs, ys)
	if !ok {
		return nil
	}
	perMin := slope * 60.0
	return &perMin
}

func channelMean(samples []stream.Sample, get func(*stream.Sample) *float64) (float64, bool) {
	var sum float64
	var n int
	for i := range samples {
		if v := get(&samples[i]); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func mean(vs []float64) float64 {
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func stddev(vs []float64) float64 {
	m := mean(vs)
	var ss float64
	for _, v := range vs {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(vs)))
}

// olsSlope fits y = a + b*x and returns b. Needs at least two distinct x
// values.
func olsSlope(xs, ys []float64) (float64, bool) {
	if len(xs) < 2 {
		return 0, false
	}
	mx, my := mean(xs), mean(ys)
	var num, den float64
	for i := range xs {
		num += (xs[i] - mx) * (ys[i] - my)
		den += (xs[i] - mx) * (xs[i] - mx)
	}
	if den == 0 {
		return 0, false
	}
	return num / den, true
}
