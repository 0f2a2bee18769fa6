package features

// ComputeLoads folds ordered per-day inputs into the full training-load
// sequence. It is pure: given the same ordered history and seed it always
// produces the identical output, which is what makes retroactive replay safe.
//
// The recurrence per day d with time constant N:
//
//	ewma[d] = ewma[d-1] + (trimp[d] - ewma[d-1]) / N
//
// seeded with the athlete's first tracked day: ewma[d0] = trimp[d0]. TSB is
// CTL minus ATL.
//
// prior is the training-load row of the day immediately before days[0], or nil
// when days[0] is the athlete's first tracked day. priorRHR is the resting-HR
// readings from the RHRWindowDays days before days[0], ordered oldest first;
// it only seeds the trailing-average window.
func ComputeLoads(athleteID string, days []DayInput, prior *TrainingLoad, priorRHR []RHRReading, p Params) []TrainingLoad {
	p = p.withDefaults()
	out := make([]TrainingLoad, 0, len(days))

	var ctl, atl float64
	seeded := false
	if prior != nil {
		ctl, atl = prior.CTL, prior.ATL
		seeded = true
	}

	window := append([]RHRReading(nil), priorRHR...)

	for _, day := range days {
		if !seeded {
			ctl = day.TRIMP
			atl = day.TRIMP
			seeded = true
		} else {
			ctl += (day.TRIMP - ctl) / float64(p.CTLDays)
			atl += (day.TRIMP - atl) / float64(p.ATLDays)
		}

		row := TrainingLoad{
			AthleteID: athleteID,
			Date:      day.Date,
			TRIMP:     day.TRIMP,
			CTL:       ctl,
			ATL:       atl,
			TSB:       ctl - atl,
		}

		// Readings age out of the window by calendar day. A reading from
		// before a long gap never leaks into today's trailing average.
		cutoff := day.Date.AddDate(0, 0, -p.RHRWindowDays)
		for len(window) > 0 && window[0].Date.Before(cutoff) {
			window = window[1:]
		}

		if day.RestingHR != nil && len(window) > 0 {
			var sum float64
			for _, r := range window {
				sum += r.Value
			}
			delta := *day.RestingHR - sum/float64(len(window))
			row.RHRDelta = &delta
		}

		if day.RestingHR != nil {
			window = append(window, RHRReading{Date: day.Date, Value: *day.RestingHR})
		}

		out = append(out, row)
	}

	return out
}
