package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/joinamana/amana-backend/pkg/logger"
)

// orderDefaulter marks overdue unpaid orders as defaulted.
type orderDefaulter interface {
	MarkDefaulted(ctx context.Context, now time.Time) (int64, error)
}

// OrderDefaulterJob sweeps delivered orders past their due date into the
// defaulted state so collections can pick them up.
type OrderDefaulterJob struct {
	repo orderDefaulter
	logg *logger.Logger
}

// NewOrderDefaulterJob builds the defaulter sweep job.
func NewOrderDefaulterJob(repo orderDefaulter, logg *logger.Logger) (*OrderDefaulterJob, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &OrderDefaulterJob{repo: repo, logg: logg}, nil
}

// Name implements Job.
func (j *OrderDefaulterJob) Name() string { return "order-defaulter" }

// Run implements Job.
func (j *OrderDefaulterJob) Run(ctx context.Context) error {
	flipped, err := j.repo.MarkDefaulted(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("mark defaulted orders: %w", err)
	}
	if flipped > 0 {
		ctx = j.logg.WithField(ctx, "defaulted_count", flipped)
		j.logg.Warn(ctx, "marked overdue orders as defaulted")
	}
	return nil
}
