package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/taskflow/taskcore/internal/events"
	"github.com/taskflow/taskcore/internal/model"
)

type fakeSender struct {
	err       error
	failUntil int
	calls     int
	sentTo    []string
}

func (f *fakeSender) Send(ctx context.Context, to, subject, body string) error {
	f.calls++
	f.sentTo = append(f.sentTo, to)
	if f.calls <= f.failUntil {
		return fmt.Errorf("transient: %w", model.ErrUpstreamTransient)
	}
	return f.err
}

type fakeProcessedEvents struct {
	seen map[string]bool
}

func newFakeProcessedEvents() *fakeProcessedEvents {
	return &fakeProcessedEvents{seen: map[string]bool{}}
}

func (f *fakeProcessedEvents) MarkProcessed(ctx context.Context, consumer, eventID string) (bool, error) {
	key := consumer + ":" + eventID
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func envelopeFor(t *testing.T, payload events.ReminderDuePayload) events.Envelope {
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return events.Envelope{
		EventID:   "evt-" + payload.TaskID,
		EventType: events.TypeReminderDue,
		EmittedAt: time.Now().UTC(),
		OwnerID:   payload.OwnerID,
		Payload:   raw,
	}
}

func TestHandleReminderDue_SendsAndAcknowledges(t *testing.T) {
	sender := &fakeSender{}
	processed := newFakeProcessedEvents()
	w := NewWorker(sender, processed, RetryConfig{}, zerolog.Nop())

	evt := envelopeFor(t, events.ReminderDuePayload{TaskID: "t1", OwnerID: "u1", OwnerEmail: "a@example.com", Title: "pay rent"})
	require.NoError(t, w.HandleReminderDue(context.Background(), evt))
	require.Equal(t, []string{"a@example.com"}, sender.sentTo)
}

func TestHandleReminderDue_DuplicateEventSkipsSend(t *testing.T) {
	sender := &fakeSender{}
	processed := newFakeProcessedEvents()
	w := NewWorker(sender, processed, RetryConfig{}, zerolog.Nop())

	evt := envelopeFor(t, events.ReminderDuePayload{TaskID: "t1", OwnerID: "u1", OwnerEmail: "a@example.com", Title: "pay rent"})
	require.NoError(t, w.HandleReminderDue(context.Background(), evt))
	require.NoError(t, w.HandleReminderDue(context.Background(), evt))
	require.Equal(t, 1, sender.calls)
}

func TestHandleReminderDue_NoOwnerEmailAcknowledgesWithoutSend(t *testing.T) {
	sender := &fakeSender{}
	processed := newFakeProcessedEvents()
	w := NewWorker(sender, processed, RetryConfig{}, zerolog.Nop())

	evt := envelopeFor(t, events.ReminderDuePayload{TaskID: "t1", OwnerID: "u1", Title: "pay rent"})
	require.NoError(t, w.HandleReminderDue(context.Background(), evt))
	require.Zero(t, sender.calls)
}

func TestHandleReminderDue_PermanentFailureAcknowledges(t *testing.T) {
	sender := &fakeSender{err: fmt.Errorf("bad address: %w", model.ErrUpstreamPermanent)}
	processed := newFakeProcessedEvents()
	w := NewWorker(sender, processed, RetryConfig{MaxAttempts: 1}, zerolog.Nop())

	evt := envelopeFor(t, events.ReminderDuePayload{TaskID: "t1", OwnerID: "u1", OwnerEmail: "bad@", Title: "pay rent"})
	require.NoError(t, w.HandleReminderDue(context.Background(), evt))
	require.Equal(t, 1, sender.calls)
}

func TestHandleReminderDue_TransientFailureReturnsErrorForRedelivery(t *testing.T) {
	sender := &fakeSender{err: fmt.Errorf("still down: %w", model.ErrUpstreamTransient), failUntil: 99}
	processed := newFakeProcessedEvents()
	w := NewWorker(sender, processed, RetryConfig{MaxAttempts: 2, BaseInterval: time.Millisecond, MaxInterval: time.Millisecond}, zerolog.Nop())

	evt := envelopeFor(t, events.ReminderDuePayload{TaskID: "t1", OwnerID: "u1", OwnerEmail: "a@example.com", Title: "pay rent"})
	err := w.HandleReminderDue(context.Background(), evt)
	require.Error(t, err)
	require.Equal(t, 2, sender.calls)
}

func TestHandleReminderDue_RetriesThenSucceeds(t *testing.T) {
	sender := &fakeSender{failUntil: 1}
	processed := newFakeProcessedEvents()
	w := NewWorker(sender, processed, RetryConfig{MaxAttempts: 3, BaseInterval: time.Millisecond, MaxInterval: time.Millisecond}, zerolog.Nop())

	evt := envelopeFor(t, events.ReminderDuePayload{TaskID: "t1", OwnerID: "u1", OwnerEmail: "a@example.com", Title: "pay rent"})
	require.NoError(t, w.HandleReminderDue(context.Background(), evt))
	require.Equal(t, 2, sender.calls)
}

func TestHandleReminderDue_PoisonPayloadAcknowledges(t *testing.T) {
	sender := &fakeSender{}
	processed := newFakeProcessedEvents()
	w := NewWorker(sender, processed, RetryConfig{}, zerolog.Nop())

	evt := events.Envelope{EventID: "evt-bad", EventType: events.TypeReminderDue, Payload: []byte("not json")}
	require.NoError(t, w.HandleReminderDue(context.Background(), evt))
	require.Zero(t, sender.calls)
}
