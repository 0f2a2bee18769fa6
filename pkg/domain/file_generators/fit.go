// Package file_generators turns canonical streams back into device file
// formats, currently FIT only. Export is the inverse of ingestion: a
// generated file re-imported through the decoder yields the same samples.
package file_generators

import (
	"bytes"
	"fmt"
	"time"

	"github.com/muktihari/fit/encoder"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"
	"github.com/muktihari/fit/proto"

	"github.com/pulseline/pulseline-server/pkg/domain/activity"
	"github.com/pulseline/pulseline-server/pkg/domain/stream"
)

// GenerateFitFile encodes an activity and its canonical stream as a FIT
// activity file.
func GenerateFitFile(act *activity.Activity, cs *stream.CanonicalStream) ([]byte, error) {
	if act == nil {
		return nil, fmt.Errorf("activity cannot be nil")
	}
	if cs == nil || len(cs.Samples) == 0 {
		return nil, fmt.Errorf("stream cannot be empty")
	}

	startTime := cs.StartedAt
	sport := sportFor(act.Type)

	fit := &proto.FIT{
		Messages: []proto.Message{},
	}

	fileId := mesgdef.NewFileId(nil).
		SetType(typedef.FileActivity).
		SetManufacturer(typedef.ManufacturerDevelopment).
		SetProduct(1).
		SetTimeCreated(startTime)
	fit.Messages = append(fit.Messages, fileId.ToMesg(nil))

	for i := range cs.Samples {
		s := &cs.Samples[i]
		recordMsg := mesgdef.NewRecord(nil).
			SetTimestamp(startTime.Add(time.Duration(s.OffsetS * float64(time.Second))))
		if s.HasPosition() {
			recordMsg.SetPositionLat(int32(*s.LatDeg / stream.SemicircleToDeg))
			recordMsg.SetPositionLong(int32(*s.LonDeg / stream.SemicircleToDeg))
		}
		if s.ElevationM != nil {
			// FIT altitude: scale 5, offset 500.
			recordMsg.SetAltitude(clampU16((*s.ElevationM + 500.0) * 5.0))
		}
		if s.HeartRateBPM != nil {
			recordMsg.SetHeartRate(clampU8(*s.HeartRateBPM))
		}
		if s.PowerW != nil {
			recordMsg.SetPower(clampU16(*s.PowerW))
		}
		if s.CadenceRPM != nil {
			recordMsg.SetCadence(clampU8(*s.CadenceRPM))
		}
		fit.Messages = append(fit.Messages, recordMsg.ToMesg(nil))
	}

	elapsedMs := uint32(cs.DurationS() * 1000)

	lapMsg := mesgdef.NewLap(nil).
		SetTimestamp(startTime).
		SetStartTime(startTime).
		SetSport(sport).
		SetMessageIndex(0).
		SetTotalElapsedTime(elapsedMs).
		SetTotalTimerTime(elapsedMs)
	fit.Messages = append(fit.Messages, lapMsg.ToMesg(nil))

	sessionMsg := mesgdef.NewSession(nil).
		SetTimestamp(startTime).
		SetStartTime(startTime).
		SetSport(sport).
		SetTotalElapsedTime(elapsedMs).
		SetTotalTimerTime(elapsedMs).
		SetTotalDistance(uint32(act.DistanceM * 100))
	fit.Messages = append(fit.Messages, sessionMsg.ToMesg(nil))

	activityMsg := mesgdef.NewActivity(nil).
		SetTimestamp(startTime).
		SetType(typedef.ActivityManual).
		SetNumSessions(1)
	fit.Messages = append(fit.Messages, activityMsg.ToMesg(nil))

	var buf bytes.Buffer
	enc := encoder.New(&buf)
	if err := enc.Encode(fit); err != nil {
		return nil, fmt.Errorf("failed to encode FIT file: %w", err)
	}
	return buf.Bytes(), nil
}

// clampU8 and clampU16 pin a value to the field's encodable range before
// narrowing. The all-ones patterns are the FIT invalid markers, so the usable
// range stops one short of the type maximum. Unchecked conversion would wrap
// out-of-range values silently.
func clampU8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 254 {
		return 254
	}
	return uint8(v)
}

func clampU16(v float64) uint16 {
	if v < 0 {
		return 0
	}
	if v > 65534 {
		return 65534
	}
	return uint16(v)
}

func sportFor(t activity.Type) typedef.Sport {
	switch t {
	case activity.TypeRun, activity.TypeTrailRun:
		return typedef.SportRunning
	case activity.TypeRide:
		return typedef.SportCycling
	case activity.TypeSwim:
		return typedef.SportSwimming
	case activity.TypeWalk:
		return typedef.SportWalking
	case activity.TypeHike:
		return typedef.SportHiking
	case activity.TypeRow:
		return typedef.SportRowing
	case activity.TypeStrength, activity.TypeYoga:
		return typedef.SportTraining
	default:
		return typedef.SportGeneric
	}
}
