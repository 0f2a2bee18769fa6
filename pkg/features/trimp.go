package features

import (
	"github.com/pulseline/pulseline-server/pkg/domain/stream"
)

// trimpZones are the lower bounds of the five heart-rate zones as fractions
// of maximum heart rate. Time in zone z contributes with weight z+1; time
// below zone 1 contributes nothing.
var trimpZones = [5]float64{0.5, 0.6, 0.7, 0.8, 0.9}

// SessionTRIMP scores one activity as heart-rate-zone-weighted duration:
// sum over samples of zone_weight × minutes. Streams without heart-rate data
// score zero.
func SessionTRIMP(cs *stream.CanonicalStream, maxHeartRate float64) float64 {
	if cs == nil || len(cs.Samples) < 2 || maxHeartRate <= 0 {
		return 0
	}

	var trimp float64
	for i := 1; i < len(cs.Samples); i++ {
		prev := &cs.Samples[i-1]
		if prev.HeartRateBPM == nil {
			continue
		}
		dt := cs.Samples[i].OffsetS - prev.OffsetS
		if dt <= 0 {
			continue
		}
		w := zoneWeight(*prev.HeartRateBPM / maxHeartRate)
		trimp += float64(w) * dt / 60.0
	}
	return trimp
}

func zoneWeight(fraction float64) int {
	weight := 0
	for z, lower := range trimpZones {
		if fraction >= lower {
			weight = z + 1
		}
	}
	return weight
}
