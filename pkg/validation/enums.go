package validation

import (
	"fmt"
	"strings"

	"github.com/rentzentro/platform/pkg/models"
)

// Maintenance enum normalization. Earlier portal builds accepted a wider
// vocabulary ("emergency", "open", "resolved"); inputs are folded onto the
// canonical set here so stored rows stay uniform.

// NormalizeMaintenancePriority maps raw portal input onto the canonical
// priority set. Empty input defaults to normal.
func NormalizeMaintenancePriority(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "normal", "medium":
		return models.MaintenancePriorityNormal, nil
	case "low":
		return models.MaintenancePriorityLow, nil
	case "high":
		return models.MaintenancePriorityHigh, nil
	case "urgent", "emergency":
		return models.MaintenancePriorityUrgent, nil
	}
	return "", fmt.Errorf("unknown maintenance priority %q", raw)
}

// NormalizeMaintenanceStatus maps raw input onto the canonical status set.
func NormalizeMaintenanceStatus(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "new", "open":
		return models.MaintenanceStatusNew, nil
	case "in_progress", "in-progress":
		return models.MaintenanceStatusInProgress, nil
	case "completed", "resolved", "done":
		return models.MaintenanceStatusCompleted, nil
	}
	return "", fmt.Errorf("unknown maintenance status %q", raw)
}

// ValidMaintenanceTransition reports whether a ticket may move between the
// two canonical statuses. Tickets only move forward; writing the current
// status again is allowed so retried updates stay idempotent.
func ValidMaintenanceTransition(from, to string) bool {
	rank := map[string]int{
		models.MaintenanceStatusNew:        0,
		models.MaintenanceStatusInProgress: 1,
		models.MaintenanceStatusCompleted:  2,
	}
	fr, ok := rank[from]
	if !ok {
		return false
	}
	tr, ok := rank[to]
	if !ok {
		return false
	}
	return tr >= fr
}
