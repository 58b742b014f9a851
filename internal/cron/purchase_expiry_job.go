package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/joinamana/amana-backend/internal/notify"
	"github.com/joinamana/amana-backend/pkg/db/models"
	"github.com/joinamana/amana-backend/pkg/logger"
)

// purchaseExpirer flips overdue fund-disbursed purchases and returns the rows
// it touched.
type purchaseExpirer interface {
	ExpireOverdue(ctx context.Context, now time.Time) ([]models.AgentPurchase, error)
}

// PurchaseExpiryJob expires agent purchases whose disbursement window closed
// without a delivery claim and alerts the back office about the batch.
type PurchaseExpiryJob struct {
	repo     purchaseExpirer
	notifier notify.Notifier
	logg     *logger.Logger
}

// NewPurchaseExpiryJob builds the expiry sweep job.
func NewPurchaseExpiryJob(repo purchaseExpirer, notifier notify.Notifier, logg *logger.Logger) (*PurchaseExpiryJob, error) {
	if repo == nil {
		return nil, fmt.Errorf("purchase repository required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &PurchaseExpiryJob{repo: repo, notifier: notifier, logg: logg}, nil
}

// Name implements Job.
func (j *PurchaseExpiryJob) Name() string { return "purchase-expiry" }

// Run implements Job.
func (j *PurchaseExpiryJob) Run(ctx context.Context) error {
	expired, err := j.repo.ExpireOverdue(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("expire overdue purchases: %w", err)
	}
	if len(expired) == 0 {
		return nil
	}

	ctx = j.logg.WithField(ctx, "expired_count", len(expired))
	j.logg.Info(ctx, "expired overdue agent purchases")

	// Alert failure does not fail the sweep; the status flip already landed.
	if err := j.notifier.PurchaseExpiryAlert(ctx, expired); err != nil {
		j.logg.Error(ctx, "failed to send expiry alert", err)
	}
	return nil
}
