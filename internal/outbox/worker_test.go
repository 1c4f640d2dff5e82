package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/taskflow/taskcore/internal/events"
	"github.com/taskflow/taskcore/internal/model"
	"github.com/taskflow/taskcore/internal/store"
)

type fakeOutbox struct {
	rows      []store.OutboxRow
	done      []int64
	failed    []int64
	leaseErr  error
}

func (f *fakeOutbox) Enqueue(ctx context.Context, topic, eventID string, payload []byte) error {
	f.rows = append(f.rows, store.OutboxRow{ID: int64(len(f.rows) + 1), Topic: topic, EventID: eventID, Payload: payload})
	return nil
}

func (f *fakeOutbox) LeaseBatch(ctx context.Context, limit int) ([]store.OutboxRow, error) {
	if f.leaseErr != nil {
		return nil, f.leaseErr
	}
	out := f.rows
	f.rows = nil
	return out, nil
}

func (f *fakeOutbox) MarkDone(ctx context.Context, id int64) error {
	f.done = append(f.done, id)
	return nil
}

func (f *fakeOutbox) MarkFailed(ctx context.Context, id int64) error {
	f.failed = append(f.failed, id)
	return nil
}

type fakeBus struct {
	err      error
	received []events.Envelope
}

func (b *fakeBus) Publish(ctx context.Context, topic string, evt events.Envelope) error {
	b.received = append(b.received, evt)
	return b.err
}

func envelopeBytes(t *testing.T, evt events.Envelope) []byte {
	b, err := json.Marshal(evt)
	require.NoError(t, err)
	return b
}

func TestWorker_ProcessOnce_MarksDoneOnSuccess(t *testing.T) {
	ob := &fakeOutbox{}
	bus := &fakeBus{}
	require.NoError(t, ob.Enqueue(context.Background(), events.TopicTaskEvents, "e1",
		envelopeBytes(t, events.Envelope{EventID: "e1", EventType: events.TypeTaskCompleted})))

	w := NewWorker(ob, bus, Config{}, zerolog.Nop())
	require.NoError(t, w.processOnce(context.Background()))

	require.Len(t, bus.received, 1)
	require.Equal(t, "e1", bus.received[0].EventID)
	require.Equal(t, []int64{1}, ob.done)
	require.Empty(t, ob.failed)
}

func TestWorker_ProcessOnce_RetriesOnTransientFailure(t *testing.T) {
	ob := &fakeOutbox{}
	bus := &fakeBus{err: model.ErrUpstreamTransient}
	require.NoError(t, ob.Enqueue(context.Background(), events.TopicReminders, "e2",
		envelopeBytes(t, events.Envelope{EventID: "e2", EventType: events.TypeReminderDue})))

	w := NewWorker(ob, bus, Config{}, zerolog.Nop())
	require.NoError(t, w.processOnce(context.Background()))

	require.Equal(t, []int64{1}, ob.failed)
	require.Empty(t, ob.done)
}

func TestWorker_ProcessOnce_DiscardsOnPermanentFailure(t *testing.T) {
	ob := &fakeOutbox{}
	bus := &fakeBus{err: model.ErrUpstreamPermanent}
	require.NoError(t, ob.Enqueue(context.Background(), events.TopicTaskEvents, "e3",
		envelopeBytes(t, events.Envelope{EventID: "e3", EventType: events.TypeTaskCompleted})))

	w := NewWorker(ob, bus, Config{}, zerolog.Nop())
	require.NoError(t, w.processOnce(context.Background()))

	require.Equal(t, []int64{1}, ob.done)
	require.Empty(t, ob.failed)
}

func TestWorker_ProcessOnce_DiscardsPoisonPayload(t *testing.T) {
	ob := &fakeOutbox{}
	bus := &fakeBus{}
	require.NoError(t, ob.Enqueue(context.Background(), events.TopicTaskEvents, "e4", []byte("not json")))

	w := NewWorker(ob, bus, Config{}, zerolog.Nop())
	require.NoError(t, w.processOnce(context.Background()))

	require.Empty(t, bus.received)
	require.Equal(t, []int64{1}, ob.done)
}

func TestWorker_Run_StopsOnContextCancel(t *testing.T) {
	ob := &fakeOutbox{}
	bus := &fakeBus{}
	w := NewWorker(ob, bus, Config{Interval: 5 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := w.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
