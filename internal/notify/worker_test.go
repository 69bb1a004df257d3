package notify

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commandgrid/pmt/internal/metrics"
	"github.com/commandgrid/pmt/internal/model"
)

type outcome struct {
	status    string
	exhausted bool
	next      time.Time
}

type fakeStore struct {
	pending  []*Delivery
	outcomes map[string]outcome
	depth    int64
}

func (f *fakeStore) ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]*Delivery, error) {
	out := f.pending
	f.pending = nil
	return out, nil
}

func (f *fakeStore) MarkSent(ctx context.Context, id string) error {
	f.outcomes[id] = outcome{status: model.DeliverySent}
	return nil
}

func (f *fakeStore) MarkSkipped(ctx context.Context, id, reason string) error {
	f.outcomes[id] = outcome{status: model.DeliverySkipped}
	return nil
}

func (f *fakeStore) MarkFailure(ctx context.Context, id, errMsg string, next time.Time, exhausted bool) error {
	status := model.DeliveryFailed
	if exhausted {
		status = model.DeliveryExhausted
	}
	f.outcomes[id] = outcome{status: status, exhausted: exhausted, next: next}
	return nil
}

func (f *fakeStore) QueueDepth(ctx context.Context) (int64, error) { return f.depth, nil }

type fakeMailer struct {
	sent []Email
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, email Email) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, email)
	return nil
}

func delivery(id string, priority, attempts int, prefs *model.NotificationPreferences) *Delivery {
	return &Delivery{
		Notification: &model.Notification{
			ID:           id,
			UserID:       "U1",
			Type:         model.NotificationGeneric,
			Title:        "Heads up",
			Message:      "Something happened",
			Priority:     priority,
			AttemptCount: attempts,
			MaxAttempts:  5,
		},
		RecipientEmail: "sam@example.com",
		RecipientName:  "Sam",
		Preferences:    prefs,
	}
}

func newWorkerUnderTest(t *testing.T, store Store, mailer Mailer) (*Worker, *metrics.InMemoryRecorder) {
	t.Helper()
	renderer, err := NewRenderer("")
	require.NoError(t, err)
	rec := metrics.NewInMemory()
	return NewWorker(store, mailer, renderer, discardLogger(), rec), rec
}

func TestWorker_SendsAndSkips(t *testing.T) {
	muted := model.DefaultNotificationPreferences("U1")
	muted.MutedTypes = []string{model.NotificationGeneric}
	noEmail := model.DefaultNotificationPreferences("U1")
	noEmail.EnableEmail = false

	store := &fakeStore{
		outcomes: map[string]outcome{},
		depth:    4,
		pending: []*Delivery{
			delivery("sent", 2, 0, model.DefaultNotificationPreferences("U1")),
			delivery("low", 1, 0, model.DefaultNotificationPreferences("U1")),
			delivery("muted", 3, 0, muted),
			delivery("disabled", 3, 0, noEmail),
		},
	}
	mailer := &fakeMailer{}
	w, rec := newWorkerUnderTest(t, store, mailer)

	require.NoError(t, w.processOnce(context.Background()))

	assert.Equal(t, model.DeliverySent, store.outcomes["sent"].status)
	assert.Equal(t, model.DeliverySkipped, store.outcomes["low"].status)
	assert.Equal(t, model.DeliverySkipped, store.outcomes["muted"].status)
	assert.Equal(t, model.DeliverySkipped, store.outcomes["disabled"].status)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "sam@example.com", mailer.sent[0].To)
	assert.Equal(t, "Heads up", mailer.sent[0].Subject)

	snap := rec.Snapshot()
	assert.EqualValues(t, 1, snap.NotificationsSent)
	assert.EqualValues(t, 3, snap.NotificationsSkipped)
	assert.EqualValues(t, 4, snap.NotificationQueueSize)
}

func TestWorker_RetriesThenExhausts(t *testing.T) {
	store := &fakeStore{
		outcomes: map[string]outcome{},
		pending: []*Delivery{
			delivery("first", 2, 0, nil),
			delivery("last", 2, 4, nil),
		},
	}
	w, rec := newWorkerUnderTest(t, store, &fakeMailer{err: errors.New("connection refused")})

	before := time.Now()
	require.NoError(t, w.processOnce(context.Background()))

	first := store.outcomes["first"]
	assert.Equal(t, model.DeliveryFailed, first.status)
	assert.WithinDuration(t, before.Add(30*time.Second), first.next, 8*time.Second)

	assert.Equal(t, model.DeliveryExhausted, store.outcomes["last"].status)

	snap := rec.Snapshot()
	assert.EqualValues(t, 1, snap.NotificationsFailed)
	assert.EqualValues(t, 1, snap.NotificationsExhaust)
}

func TestWorker_MissingRecipientExhausts(t *testing.T) {
	d := delivery("orphan", 2, 0, nil)
	d.RecipientEmail = ""
	store := &fakeStore{outcomes: map[string]outcome{}, pending: []*Delivery{d}}
	w, _ := newWorkerUnderTest(t, store, &fakeMailer{})

	require.NoError(t, w.processOnce(context.Background()))
	assert.True(t, store.outcomes["orphan"].exhausted)
}

func TestWorker_RejectedMessageExhausts(t *testing.T) {
	store := &fakeStore{outcomes: map[string]outcome{}, pending: []*Delivery{delivery("bounced", 2, 0, nil)}}
	w, rec := newWorkerUnderTest(t, store, &fakeMailer{err: fmt.Errorf("%w: resend status 422", ErrRejected)})

	require.NoError(t, w.processOnce(context.Background()))
	assert.Equal(t, model.DeliveryExhausted, store.outcomes["bounced"].status)
	assert.EqualValues(t, 1, rec.Snapshot().NotificationsExhaust)
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	w, _ := newWorkerUnderTest(t, &fakeStore{outcomes: map[string]outcome{}}, &fakeMailer{})
	w.SetPollInterval(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := w.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Error(t, w.Run(context.Background()), "second Run must fail")
}
