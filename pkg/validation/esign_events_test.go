package validation

import (
	"testing"
)

func TestParseEsignEvent_AllSigned(t *testing.T) {
	v := NewWebhookValidator()
	body := []byte(`{
		"event": {"event_type": "signature_request_all_signed", "event_time": "1700000000", "event_hash": "abc"},
		"signature_request": {"signature_request_id": "req_123", "title": "Lease", "is_complete": true}
	}`)
	event, err := v.ParseEsignEvent(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.SignatureRequest.SignatureRequestID != "req_123" {
		t.Fatalf("unexpected request id: %s", event.SignatureRequest.SignatureRequestID)
	}
}

func TestParseEsignEvent_RequestScopedMissingRequest(t *testing.T) {
	v := NewWebhookValidator()
	body := []byte(`{"event": {"event_type": "signature_request_declined"}}`)
	if _, err := v.ParseEsignEvent(body); err == nil {
		t.Fatalf("expected error for missing signature_request")
	}
}

func TestParseEsignEvent_CallbackTestWithoutRequest(t *testing.T) {
	v := NewWebhookValidator()
	body := []byte(`{"event": {"event_type": "callback_test"}}`)
	if _, err := v.ParseEsignEvent(body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseEsignEvent_UnknownTypeAccepted(t *testing.T) {
	// Unrecognized events must parse so the handler can ack and log them.
	v := NewWebhookValidator()
	body := []byte(`{"event": {"event_type": "signature_request_remind"}}`)
	event, err := v.ParseEsignEvent(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if EsignEventType(event.Event.EventType).RequestScoped() {
		t.Fatalf("remind should not be request scoped")
	}
}

func TestParseEsignEvent_TableDriven(t *testing.T) {
	cases := []struct {
		name string
		body string
		ok   bool
	}{
		{"malformed json", `{"event": `, false},
		{"missing event_type", `{"event": {"event_time": "1700000000"}}`, false},
		{"sent ok", `{"event": {"event_type": "signature_request_sent"}, "signature_request": {"signature_request_id": "r1"}}`, true},
		{"signed missing id", `{"event": {"event_type": "signature_request_signed"}, "signature_request": {"title": "x"}}`, false},
		{"cancelled ok", `{"event": {"event_type": "signature_request_canceled"}, "signature_request": {"signature_request_id": "r2"}}`, true},
	}
	v := NewWebhookValidator()
	for _, tc := range cases {
		_, err := v.ParseEsignEvent([]byte(tc.body))
		if tc.ok && err != nil {
			t.Fatalf("%s unexpected error: %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%s expected error", tc.name)
		}
	}
}
