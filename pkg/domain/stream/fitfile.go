package stream

import (
	"bytes"

	"github.com/muktihari/fit/decoder"
	"github.com/muktihari/fit/profile/basetype"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"

	"github.com/pulseline/pulseline-server/pkg/errors"
)

// FitActivity is the raw content of one FIT activity file: the session sport
// token plus the record series, still in device encoding.
type FitActivity struct {
	Sport   string
	Records []RawRecord
}

// ParseFitFile extracts the session sport and record messages of a raw FIT
// activity file, preserving the device's semicircle position encoding and
// leaving absent channels nil. Conversion to the canonical stream happens in
// Decode.
func ParseFitFile(data []byte) (*FitActivity, error) {
	dec := decoder.New(bytes.NewReader(data))
	fitData, err := dec.Decode()
	if err != nil {
		return nil, errors.ErrDecode.WithMessage("fit file unreadable").WithCause(err)
	}

	out := &FitActivity{}
	for i := range fitData.Messages {
		msg := &fitData.Messages[i]
		switch msg.Num {
		case typedef.MesgNumSession:
			session := mesgdef.NewSession(msg)
			if session.Sport != typedef.SportInvalid {
				out.Sport = session.Sport.String()
			}
		case typedef.MesgNumRecord:
			rec := mesgdef.NewRecord(msg)

			raw := RawRecord{Timestamp: rec.Timestamp}

			if rec.PositionLat != basetype.Sint32Invalid && rec.PositionLong != basetype.Sint32Invalid {
				lat := rec.PositionLat
				lon := rec.PositionLong
				raw.LatSemicircle = &lat
				raw.LonSemicircle = &lon
			}
			if rec.Altitude != basetype.Uint16Invalid {
				// FIT altitude: scale 5, offset 500.
				elev := float64(rec.Altitude)/5.0 - 500.0
				raw.ElevationM = &elev
			}
			if rec.HeartRate != basetype.Uint8Invalid {
				hr := float64(rec.HeartRate)
				raw.HeartRateBPM = &hr
			}
			if rec.Power != basetype.Uint16Invalid {
				pw := float64(rec.Power)
				raw.PowerW = &pw
			}
			if rec.Cadence != basetype.Uint8Invalid {
				cad := float64(rec.Cadence)
				raw.CadenceRPM = &cad
			}

			out.Records = append(out.Records, raw)
		}
	}

	if len(out.Records) == 0 {
		return nil, errors.ErrDecode.WithMessage("fit file contains no record messages")
	}
	return out, nil
}

// ParseFitRecords extracts only the record series of a FIT activity file.
func ParseFitRecords(data []byte) ([]RawRecord, error) {
	fa, err := ParseFitFile(data)
	if err != nil {
		return nil, err
	}
	return fa.Records, nil
}
