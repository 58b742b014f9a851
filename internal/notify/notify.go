// Package notify delivers operational alerts to the back office. Delivery is
// best effort; callers log failures and move on.
package notify

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/joinamana/amana-backend/pkg/config"
	"github.com/joinamana/amana-backend/pkg/db/models"
	"github.com/joinamana/amana-backend/pkg/logger"
)

// Notifier sends operational alerts.
type Notifier interface {
	// PurchaseExpiryAlert flags fund-disbursed purchases whose delivery
	// window closed without a delivery claim.
	PurchaseExpiryAlert(ctx context.Context, purchases []models.AgentPurchase) error
	// Broadcast sends a free-form message to the back office.
	Broadcast(ctx context.Context, subject, message string) error
}

const sendgridMailURL = "https://api.sendgrid.com/v3/mail/send"

type emailNotifier struct {
	client     *resty.Client
	from       string
	adminEmail string
}

type logNotifier struct {
	log *logger.Logger
}

// New picks an email notifier when Sendgrid is configured and falls back to
// structured logging otherwise, so dev environments need no API key.
func New(cfg config.SendgridConfig, adminEmail string, log *logger.Logger) Notifier {
	if cfg.APIKey == "" || adminEmail == "" {
		return &logNotifier{log: log}
	}
	client := resty.New().
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json")
	return &emailNotifier{
		client:     client,
		from:       cfg.DefaultFrom,
		adminEmail: adminEmail,
	}
}

type mailPayload struct {
	Personalizations []personalization `json:"personalizations"`
	From             emailAddress      `json:"from"`
	Subject          string            `json:"subject"`
	Content          []mailContent     `json:"content"`
}

type personalization struct {
	To []emailAddress `json:"to"`
}

type emailAddress struct {
	Email string `json:"email"`
}

type mailContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (n *emailNotifier) PurchaseExpiryAlert(ctx context.Context, purchases []models.AgentPurchase) error {
	if len(purchases) == 0 {
		return nil
	}

	body := fmt.Sprintf("%d agent purchase(s) expired without a delivery claim:\n", len(purchases))
	for _, p := range purchases {
		body += fmt.Sprintf("- %s: %s (%s), disbursed %.2f\n", p.ID, p.Description, p.VendorName, p.DisbursedAmount)
	}

	subject := fmt.Sprintf("[amana] %d expired agent purchase(s)", len(purchases))
	if err := n.send(ctx, subject, body); err != nil {
		return fmt.Errorf("send expiry alert: %w", err)
	}
	return nil
}

func (n *emailNotifier) Broadcast(ctx context.Context, subject, message string) error {
	if err := n.send(ctx, subject, message); err != nil {
		return fmt.Errorf("send broadcast: %w", err)
	}
	return nil
}

func (n *emailNotifier) send(ctx context.Context, subject, body string) error {
	payload := mailPayload{
		Personalizations: []personalization{{To: []emailAddress{{Email: n.adminEmail}}}},
		From:             emailAddress{Email: n.from},
		Subject:          subject,
		Content:          []mailContent{{Type: "text/plain", Value: body}},
	}

	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post(sendgridMailURL)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("status %d", resp.StatusCode())
	}
	return nil
}

func (n *logNotifier) PurchaseExpiryAlert(ctx context.Context, purchases []models.AgentPurchase) error {
	if len(purchases) == 0 {
		return nil
	}
	ctx = n.log.WithField(ctx, "expired_count", len(purchases))
	n.log.Warn(ctx, "agent purchases expired without delivery claims")
	return nil
}

func (n *logNotifier) Broadcast(ctx context.Context, subject, message string) error {
	ctx = n.log.WithFields(ctx, map[string]any{"subject": subject, "message": message})
	n.log.Info(ctx, "broadcast")
	return nil
}
