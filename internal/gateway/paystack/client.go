// Package paystack wraps the Paystack REST API for collecting retailer
// repayments.
package paystack

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/joinamana/amana-backend/pkg/config"
)

// Client talks to Paystack. Amounts cross the wire in kobo.
type Client interface {
	InitializeTransaction(ctx context.Context, input InitializeInput) (*InitializeResult, error)
	VerifyTransaction(ctx context.Context, reference string) (*VerifyResult, error)
	// VerifyWebhookSignature checks the x-paystack-signature header against
	// the raw body.
	VerifyWebhookSignature(body []byte, signature string) bool
}

// InitializeInput starts a hosted checkout session.
type InitializeInput struct {
	Email     string
	Amount    float64
	Reference string
	Metadata  map[string]any
}

// InitializeResult carries the checkout handoff.
type InitializeResult struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// VerifyResult is the settled state of a transaction. Metadata echoes back
// whatever was attached at initialize.
type VerifyResult struct {
	Reference string
	Status    string
	Amount    float64
	Channel   string
	PaidAt    string
	Metadata  map[string]any
}

// WebhookEvent is the envelope Paystack posts to the webhook endpoint.
type WebhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string         `json:"reference"`
		Status    string         `json:"status"`
		Amount    int64          `json:"amount"`
		Channel   string         `json:"channel"`
		PaidAt    string         `json:"paid_at"`
		Metadata  map[string]any `json:"metadata"`
	} `json:"data"`
}

type client struct {
	http      *resty.Client
	secretKey string
}

// New builds a Paystack client from configuration.
func New(cfg config.PaystackConfig) (Client, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("paystack secret key required")
	}
	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.SecretKey).
		SetHeader("Content-Type", "application/json")
	return &client{http: http, secretKey: cfg.SecretKey}, nil
}

type apiEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type verifyData struct {
	Reference string         `json:"reference"`
	Status    string         `json:"status"`
	Amount    int64          `json:"amount"`
	Channel   string         `json:"channel"`
	PaidAt    string         `json:"paid_at"`
	Metadata  map[string]any `json:"metadata"`
}

func (c *client) InitializeTransaction(ctx context.Context, input InitializeInput) (*InitializeResult, error) {
	if input.Email == "" || input.Amount <= 0 {
		return nil, fmt.Errorf("email and positive amount required")
	}

	body := map[string]any{
		"email":  input.Email,
		"amount": toKobo(input.Amount),
	}
	if input.Reference != "" {
		body["reference"] = input.Reference
	}
	if len(input.Metadata) > 0 {
		body["metadata"] = input.Metadata
	}

	envelope := apiEnvelope{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&envelope).
		Post("/transaction/initialize")
	if err != nil {
		return nil, fmt.Errorf("initialize transaction: %w", err)
	}
	if resp.IsError() || !envelope.Status {
		return nil, fmt.Errorf("initialize transaction: %s (status %d)", envelope.Message, resp.StatusCode())
	}

	var data initializeData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, fmt.Errorf("decode initialize response: %w", err)
	}
	return &InitializeResult{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        data.Reference,
	}, nil
}

func (c *client) VerifyTransaction(ctx context.Context, reference string) (*VerifyResult, error) {
	if reference == "" {
		return nil, fmt.Errorf("reference required")
	}

	envelope := apiEnvelope{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&envelope).
		Get("/transaction/verify/" + reference)
	if err != nil {
		return nil, fmt.Errorf("verify transaction: %w", err)
	}
	if resp.IsError() || !envelope.Status {
		return nil, fmt.Errorf("verify transaction: %s (status %d)", envelope.Message, resp.StatusCode())
	}

	var data verifyData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, fmt.Errorf("decode verify response: %w", err)
	}
	return &VerifyResult{
		Reference: data.Reference,
		Status:    data.Status,
		Amount:    fromKobo(data.Amount),
		Channel:   data.Channel,
		PaidAt:    data.PaidAt,
		Metadata:  data.Metadata,
	}, nil
}

func (c *client) VerifyWebhookSignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(c.secretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ParseWebhookEvent decodes a verified webhook body.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("decode webhook event: %w", err)
	}
	return &event, nil
}

// AmountNaira converts the kobo amount on a webhook event.
func (e *WebhookEvent) AmountNaira() float64 {
	return fromKobo(e.Data.Amount)
}

func toKobo(naira float64) int64 {
	return int64(naira*100 + 0.5)
}

func fromKobo(kobo int64) float64 {
	return float64(kobo) / 100
}
