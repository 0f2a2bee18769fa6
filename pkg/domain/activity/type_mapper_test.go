package activity_test

import (
	"testing"

	"github.com/pulseline/pulseline-server/pkg/domain/activity"
)

func TestMapExternalType(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		expected activity.Type
	}{
		{name: "Exact token", token: "run", expected: activity.TypeRun},
		{name: "Case-insensitive", token: "Running", expected: activity.TypeRun},
		{name: "Provider alias", token: "VirtualRide", expected: activity.TypeRide},
		{name: "Snake case token", token: "weight_training", expected: activity.TypeStrength},
		{name: "Surrounding whitespace", token: "  hike ", expected: activity.TypeHike},
		{name: "Unknown token maps to other", token: "underwater_basket_weaving", expected: activity.TypeOther},
		{name: "Empty token maps to other", token: "", expected: activity.TypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := activity.MapExternalType(tt.token); got != tt.expected {
				t.Errorf("MapExternalType(%q) = %v, want %v", tt.token, got, tt.expected)
			}
		})
	}
}

func TestFriendlyName(t *testing.T) {
	if got := activity.FriendlyName(activity.TypeTrailRun); got != "Trail Run" {
		t.Errorf("expected Trail Run, got %s", got)
	}
	if got := activity.FriendlyName(activity.TypeOther); got != "Workout" {
		t.Errorf("expected Workout fallback, got %s", got)
	}
}
