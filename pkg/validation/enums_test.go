package validation

import (
	"testing"

	"github.com/rentzentro/platform/pkg/models"
)

func TestNormalizeMaintenancePriority(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"low", models.MaintenancePriorityLow, true},
		{"", models.MaintenancePriorityNormal, true},
		{"medium", models.MaintenancePriorityNormal, true},
		{"High", models.MaintenancePriorityHigh, true},
		{"urgent", models.MaintenancePriorityUrgent, true},
		{"EMERGENCY", models.MaintenancePriorityUrgent, true},
		{" emergency ", models.MaintenancePriorityUrgent, true},
		{"asap", "", false},
	}
	for _, tc := range cases {
		got, err := NormalizeMaintenancePriority(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("%q unexpected error: %v", tc.in, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
		if got != tc.want {
			t.Fatalf("%q: got %q want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeMaintenanceStatus(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"new", models.MaintenanceStatusNew, true},
		{"open", models.MaintenanceStatusNew, true},
		{"in_progress", models.MaintenanceStatusInProgress, true},
		{"in-progress", models.MaintenanceStatusInProgress, true},
		{"Resolved", models.MaintenanceStatusCompleted, true},
		{"done", models.MaintenanceStatusCompleted, true},
		{"", "", false},
		{"archived", "", false},
	}
	for _, tc := range cases {
		got, err := NormalizeMaintenanceStatus(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("%q unexpected error: %v", tc.in, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
		if got != tc.want {
			t.Fatalf("%q: got %q want %q", tc.in, got, tc.want)
		}
	}
}

func TestValidMaintenanceTransition(t *testing.T) {
	cases := []struct {
		from string
		to   string
		ok   bool
	}{
		{models.MaintenanceStatusNew, models.MaintenanceStatusInProgress, true},
		{models.MaintenanceStatusNew, models.MaintenanceStatusCompleted, true},
		{models.MaintenanceStatusInProgress, models.MaintenanceStatusCompleted, true},
		{models.MaintenanceStatusInProgress, models.MaintenanceStatusInProgress, true},
		{models.MaintenanceStatusCompleted, models.MaintenanceStatusInProgress, false},
		{models.MaintenanceStatusCompleted, models.MaintenanceStatusNew, false},
		{"bogus", models.MaintenanceStatusNew, false},
	}
	for _, tc := range cases {
		if got := ValidMaintenanceTransition(tc.from, tc.to); got != tc.ok {
			t.Fatalf("%s -> %s: got %v want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}
