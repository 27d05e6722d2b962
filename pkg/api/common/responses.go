package common

// ErrorResponse is the standard error body returned by every handler.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse acknowledges state-changing requests that have no
// richer body to return (deletes, webhook acks).
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// BlockedResponse is returned with 402/403 when an authenticated caller
// is not entitled to the action. Reason is machine-readable so the UI
// can route to the right fix (billing page, upsell, support).
type BlockedResponse struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}
