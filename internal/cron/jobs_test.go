package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/joinamana/amana-backend/pkg/db/models"
	"github.com/joinamana/amana-backend/pkg/logger"
)

type fakeExpirer struct {
	expired []models.AgentPurchase
	err     error
}

func (f *fakeExpirer) ExpireOverdue(ctx context.Context, now time.Time) ([]models.AgentPurchase, error) {
	return f.expired, f.err
}

type fakeNotifier struct {
	batches [][]models.AgentPurchase
	err     error
}

func (f *fakeNotifier) PurchaseExpiryAlert(ctx context.Context, purchases []models.AgentPurchase) error {
	f.batches = append(f.batches, purchases)
	return f.err
}

func (f *fakeNotifier) Broadcast(ctx context.Context, subject, message string) error {
	return f.err
}

func TestPurchaseExpiryJobAlertsOnBatch(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	expirer := &fakeExpirer{expired: []models.AgentPurchase{{ID: uuid.New()}, {ID: uuid.New()}}}
	notifier := &fakeNotifier{}
	job, err := NewPurchaseExpiryJob(expirer, notifier, logg)
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(notifier.batches) != 1 || len(notifier.batches[0]) != 2 {
		t.Fatalf("expected one alert for 2 purchases, got %+v", notifier.batches)
	}
}

func TestPurchaseExpiryJobSkipsAlertWhenNothingExpired(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	notifier := &fakeNotifier{}
	job, err := NewPurchaseExpiryJob(&fakeExpirer{}, notifier, logg)
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(notifier.batches) != 0 {
		t.Fatal("empty sweep must not alert")
	}
}

func TestPurchaseExpiryJobSurvivesAlertFailure(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	expirer := &fakeExpirer{expired: []models.AgentPurchase{{ID: uuid.New()}}}
	notifier := &fakeNotifier{err: errors.New("smtp down")}
	job, err := NewPurchaseExpiryJob(expirer, notifier, logg)
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	// the status flips already landed, so the run itself succeeds
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run must not fail on alert error: %v", err)
	}
}

type fakeDefaulter struct {
	flipped int64
	err     error
}

func (f *fakeDefaulter) MarkDefaulted(ctx context.Context, now time.Time) (int64, error) {
	return f.flipped, f.err
}

func TestOrderDefaulterJobPropagatesRepoError(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	job, err := NewOrderDefaulterJob(&fakeDefaulter{err: errors.New("db down")}, logg)
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error from failed sweep")
	}
}

func TestOrderDefaulterJobRuns(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	job, err := NewOrderDefaulterJob(&fakeDefaulter{flipped: 3}, logg)
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if job.Name() != "order-defaulter" {
		t.Fatalf("unexpected name %q", job.Name())
	}
}
