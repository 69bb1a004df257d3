//go:build integration

package notify

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/commandgrid/pmt/internal/model"
	"github.com/commandgrid/pmt/internal/repository"
	"github.com/commandgrid/pmt/internal/testutil"
)

func TestIntegrationOutbox_ClaimAndMark(t *testing.T) {
	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	pgRepo, err := repository.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("create repository: %v", err)
	}
	defer pgRepo.Close()

	unlock, err := testutil.AcquireDBLock(ctx, pgRepo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	defer func() { _ = unlock() }()

	if err := testutil.ResetSchema(ctx, pgRepo.Pool()); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	company := testutil.NewTestCompany(t)
	if err := pgRepo.CreateCompany(ctx, company); err != nil {
		t.Fatalf("create company: %v", err)
	}
	user := testutil.NewTestUser(t, company.ID)
	if err := pgRepo.CreateUser(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	pub := NewPublisher(pgRepo, discardLogger(), 3)
	email := &model.Notification{UserID: user.ID, Title: "Hello", Message: "World"}
	if err := pub.Enqueue(ctx, email); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := pub.Enqueue(ctx, &model.Notification{UserID: user.ID, Title: "In app", Channel: model.ChannelInApp}); err != nil {
		t.Fatalf("enqueue in-app: %v", err)
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("open sql: %v", err)
	}
	defer db.Close()
	outbox := NewRepository(db)

	depth, err := outbox.QueueDepth(ctx)
	if err != nil {
		t.Fatalf("queue depth: %v", err)
	}
	if depth != 1 {
		t.Fatalf("expected depth 1, got %d", depth)
	}

	claimed, err := outbox.ClaimPending(ctx, 10, time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(claimed) != 1 {
		t.Fatalf("expected 1 claimed delivery, got %d", len(claimed))
	}
	d := claimed[0]
	if d.Notification.ID != email.ID || d.RecipientEmail != user.Email || d.RecipientName != user.Name {
		t.Fatalf("unexpected delivery: %+v", d)
	}
	if !d.Preferences.EnableEmail || d.Preferences.MinPriorityLevel != model.PriorityLevelDefault {
		t.Fatalf("expected default preferences, got %+v", d.Preferences)
	}

	again, err := outbox.ClaimPending(ctx, 10, time.Minute)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("leased delivery was claimed twice")
	}

	if err := outbox.MarkFailure(ctx, email.ID, "boom", time.Now().Add(-time.Second), false); err != nil {
		t.Fatalf("mark failure: %v", err)
	}
	retry, err := outbox.ClaimPending(ctx, 10, time.Minute)
	if err != nil {
		t.Fatalf("retry claim: %v", err)
	}
	if len(retry) != 1 || retry[0].Notification.AttemptCount != 1 {
		t.Fatalf("expected failed delivery to be due again with 1 attempt, got %+v", retry)
	}

	if err := outbox.MarkSent(ctx, email.ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	stored, err := pgRepo.GetNotification(ctx, user.ID, email.ID)
	if err != nil {
		t.Fatalf("get notification: %v", err)
	}
	if stored.DeliveryStatus != model.DeliverySent || stored.SentAt == nil || stored.AttemptCount != 2 {
		t.Fatalf("unexpected stored notification: %+v", stored)
	}
}
