// Package esign wraps the e-signature provider: an outbound REST call
// to create signature requests, HMAC verification for its webhook, and
// the event-type to envelope-status mapping.
package esign

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rentzentro/platform/pkg/config"
	"github.com/rentzentro/platform/pkg/logging"
)

// APIError reports a non-2xx provider response.
type APIError struct {
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("e-sign provider returned status %d", e.StatusCode)
}

// Client wraps the e-signature provider's REST API. The provider
// downloads the document from a presigned URL, emails the signer, and
// reports progress through the signed webhook consumed by the handlers
// package.
type Client struct {
	baseURL       string
	apiKey        string
	webhookSecret string
	httpClient    *http.Client
	logger        logging.Logger
}

// Config for creating an e-sign client.
type Config struct {
	BaseURL       string // ESIGN_API_URL
	APIKey        string // ESIGN_API_KEY
	WebhookSecret string // ESIGN_WEBHOOK_SECRET; empty skips webhook verification
	Logger        logging.Logger
}

// ConfigFromEnv builds a Config from environment variables.
func ConfigFromEnv(logger logging.Logger) Config {
	return Config{
		BaseURL:       config.GetEnv("ESIGN_API_URL", ""),
		APIKey:        config.GetEnv("ESIGN_API_KEY", ""),
		WebhookSecret: config.GetEnv("ESIGN_WEBHOOK_SECRET", ""),
		Logger:        logger,
	}
}

// NewClient creates an e-sign client.
func NewClient(cfg Config) *Client {
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		webhookSecret: cfg.WebhookSecret,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		logger:        cfg.Logger,
	}
}

// IsConfigured reports whether outbound provider calls can be made.
// Webhook verification only needs the secret and works either way.
func (c *Client) IsConfigured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

// HasWebhookSecret returns true when webhook signature verification is
// configured.
func (c *Client) HasWebhookSecret() bool {
	return c.webhookSecret != ""
}

// VerifyWebhook checks the HMAC-SHA256 signature over the raw webhook
// body using constant-time comparison. With no secret configured it
// returns true; the caller must log that permissive mode.
func (c *Client) VerifyWebhook(payload []byte, signature string) bool {
	if c.webhookSecret == "" {
		return true
	}

	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expected))
}

// CreateSignatureRequestParams describes one envelope to send.
type CreateSignatureRequestParams struct {
	Title       string
	SignerName  string
	SignerEmail string
	DocumentURL string // presigned GET the provider downloads once
	Metadata    map[string]string
}

// SignatureRequest is the provider's view of a created envelope. ID
// keys every later webhook delivery for this envelope.
type SignatureRequest struct {
	ID     string `json:"signature_request_id"`
	Status string `json:"status"`
}

type signerPayload struct {
	Name  string `json:"name"`
	Email string `json:"email_address"`
}

type createSignatureRequestPayload struct {
	Title    string            `json:"title"`
	FileURL  string            `json:"file_url"`
	Signers  []signerPayload   `json:"signers"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// CreateSignatureRequest asks the provider to email the signer.
func (c *Client) CreateSignatureRequest(ctx context.Context, params CreateSignatureRequestParams) (*SignatureRequest, error) {
	if !c.IsConfigured() {
		return nil, fmt.Errorf("e-sign provider not configured")
	}

	payload, err := json.Marshal(createSignatureRequestPayload{
		Title:    params.Title,
		FileURL:  params.DocumentURL,
		Signers:  []signerPayload{{Name: params.SignerName, Email: params.SignerEmail}},
		Metadata: params.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode signature request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/signature_requests", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build signature request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("e-sign provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.WithFields(logging.Fields{
			"status":       resp.StatusCode,
			"signer_email": params.SignerEmail,
		}).Warn("E-sign provider rejected signature request")
		return nil, &APIError{StatusCode: resp.StatusCode}
	}

	var created SignatureRequest
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("failed to decode signature request response: %w", err)
	}
	if created.ID == "" {
		return nil, fmt.Errorf("e-sign provider returned no signature_request_id")
	}

	c.logger.WithFields(logging.Fields{
		"signature_request_id": created.ID,
		"signer_email":         params.SignerEmail,
	}).Info("Created e-sign signature request")

	return &created, nil
}
