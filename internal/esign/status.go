package esign

import (
	"strings"

	"github.com/rentzentro/platform/pkg/models"
)

// statusRules maps provider event-type keywords to envelope statuses.
// Matching is substring-based so provider naming variants resolve
// without per-name cases. Order matters: "signed" occurs inside more
// specific event names, so the narrower keywords are tried first.
var statusRules = []struct {
	keyword string
	status  string
}{
	{"declin", models.EnvelopeStatusDeclined},
	{"cancel", models.EnvelopeStatusCancelled},
	{"all_signed", models.EnvelopeStatusCompleted},
	{"signed", models.EnvelopeStatusCompleted},
	{"sent", models.EnvelopeStatusSent},
}

// MapEventStatus translates a provider event type into an envelope
// status. The first matching rule wins. Event types that match no rule
// return false; the webhook handler acknowledges those without a state
// change.
func MapEventStatus(eventType string) (string, bool) {
	et := strings.ToLower(eventType)
	for _, rule := range statusRules {
		if strings.Contains(et, rule.keyword) {
			return rule.status, true
		}
	}
	return "", false
}
