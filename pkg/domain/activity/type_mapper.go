package activity

import "strings"

// externalTypes is the fixed lookup table from external provider tokens to the
// internal taxonomy. Keys are lowercase; lookup is case-insensitive.
var externalTypes = map[string]Type{
	"run":               TypeRun,
	"running":           TypeRun,
	"virtualrun":        TypeRun,
	"treadmill":         TypeRun,
	"trail_run":         TypeTrailRun,
	"trailrun":          TypeTrailRun,
	"ride":              TypeRide,
	"cycling":           TypeRide,
	"biking":            TypeRide,
	"bike":              TypeRide,
	"virtualride":       TypeRide,
	"swim":              TypeSwim,
	"swimming":          TypeSwim,
	"open_water_swim":   TypeSwim,
	"walk":              TypeWalk,
	"walking":           TypeWalk,
	"hike":              TypeHike,
	"hiking":            TypeHike,
	"rowing":            TypeRow,
	"indoor_rowing":     TypeRow,
	"weight_training":   TypeStrength,
	"weighttraining":    TypeStrength,
	"weights":           TypeStrength,
	"strength":          TypeStrength,
	"strength_training": TypeStrength,
	"yoga":              TypeYoga,
}

// MapExternalType normalizes an external activity-type token into the internal
// taxonomy. Unknown tokens map to TypeOther rather than failing, so vocabulary
// drift on a provider's side never stalls ingestion.
func MapExternalType(token string) Type {
	if t, ok := externalTypes[strings.ToLower(strings.TrimSpace(token))]; ok {
		return t
	}
	return TypeOther
}

// FriendlyName returns a human-readable label for an internal type, for CLI
// summaries and operator logs.
func FriendlyName(t Type) string {
	switch t {
	case TypeRun:
		return "Run"
	case TypeTrailRun:
		return "Trail Run"
	case TypeRide:
		return "Ride"
	case TypeSwim:
		return "Swim"
	case TypeWalk:
		return "Walk"
	case TypeHike:
		return "Hike"
	case TypeRow:
		return "Row"
	case TypeStrength:
		return "Strength Training"
	case TypeYoga:
		return "Yoga"
	default:
		return "Workout"
	}
}
