package validation

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// EsignEventType enumerates the e-sign provider callback events this
// platform acts on. The provider emits more; anything not listed is
// acknowledged without a state change.
type EsignEventType string

const (
	// Envelope delivered to the signer
	EsignRequestSent EsignEventType = "signature_request_sent"
	// One signer finished; more may remain
	EsignRequestSigned EsignEventType = "signature_request_signed"
	// Every signer finished
	EsignRequestAllSigned EsignEventType = "signature_request_all_signed"
	// Signer refused
	EsignRequestDeclined EsignEventType = "signature_request_declined"
	// Sender withdrew the request
	EsignRequestCancelled EsignEventType = "signature_request_canceled"
	// Provider endpoint verification ping; carries no request
	EsignCallbackTest EsignEventType = "callback_test"
)

// RequestScoped reports whether this event type concerns a specific
// signature request and therefore must carry one in the payload.
func (t EsignEventType) RequestScoped() bool {
	switch t {
	case EsignRequestSent, EsignRequestSigned, EsignRequestAllSigned,
		EsignRequestDeclined, EsignRequestCancelled:
		return true
	}
	return false
}

// EsignEvent is the provider's callback envelope: event metadata plus the
// signature request it concerns, when the event is request-scoped.
type EsignEvent struct {
	Event            EsignEventInfo        `json:"event"`
	SignatureRequest *SignatureRequestInfo `json:"signature_request,omitempty"`
}

// EsignEventInfo carries the event metadata common to every callback.
type EsignEventInfo struct {
	EventType string `json:"event_type" validate:"required"`
	EventTime string `json:"event_time"`
	EventHash string `json:"event_hash"`
}

// SignatureRequestInfo identifies the envelope the event refers to.
type SignatureRequestInfo struct {
	SignatureRequestID string `json:"signature_request_id" validate:"required"`
	Title              string `json:"title"`
	IsComplete         bool   `json:"is_complete"`
	IsDeclined         bool   `json:"is_declined"`
}

// WebhookValidator performs structural and event-type-specific validation
// on inbound provider callbacks before any state is written. Signature
// verification happens earlier, on the raw body.
type WebhookValidator struct {
	validator *validator.Validate
}

// NewWebhookValidator constructs a WebhookValidator with standard struct validation.
func NewWebhookValidator() *WebhookValidator {
	return &WebhookValidator{
		validator: validator.New(),
	}
}

// ParseEsignEvent unmarshals and validates a raw e-sign callback body.
// Unknown event types parse successfully so the handler can acknowledge
// and log them; known request-scoped types must name their request.
func (v *WebhookValidator) ParseEsignEvent(body []byte) (*EsignEvent, error) {
	var event EsignEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("parse esign event: %w", err)
	}

	if err := v.validator.Struct(&event); err != nil {
		return nil, fmt.Errorf("esign event validation failed: %w", err)
	}

	if EsignEventType(event.Event.EventType).RequestScoped() {
		if event.SignatureRequest == nil || event.SignatureRequest.SignatureRequestID == "" {
			return nil, fmt.Errorf("signature_request_id is required for %s events", event.Event.EventType)
		}
	}

	return &event, nil
}
