package shared

const (
	// DefaultDBPath is where the relational store lives unless overridden by
	// PULSELINE_DB.
	DefaultDBPath = "pulseline.db"

	// Source identifiers as persisted on activities.
	SourceFitFile = "fit-file"
	SourceStrava  = "strava"
	SourceGarmin  = "garmin"
)
