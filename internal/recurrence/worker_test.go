package recurrence

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/taskflow/taskcore/internal/events"
	"github.com/taskflow/taskcore/internal/model"
	"github.com/taskflow/taskcore/internal/services/taskcore"
)

type fakeTaskCore struct {
	tasks    map[string]*model.Task
	created  []taskcore.CreateTaskInput
	createOwner string
}

func (f *fakeTaskCore) GetTask(_ context.Context, ownerID, taskID string) (*model.Task, error) {
	task, ok := f.tasks[taskID]
	if !ok || task.OwnerID != ownerID {
		return nil, model.ErrNotFound
	}
	return task, nil
}

func (f *fakeTaskCore) CreateTask(_ context.Context, ownerID string, in taskcore.CreateTaskInput) (*model.Task, error) {
	f.created = append(f.created, in)
	f.createOwner = ownerID
	return &model.Task{TaskID: "successor", OwnerID: ownerID, Title: in.Title}, nil
}

type fakeProcessedEvents struct {
	seen map[string]bool
}

func newFakeProcessedEvents() *fakeProcessedEvents { return &fakeProcessedEvents{seen: map[string]bool{}} }

func (f *fakeProcessedEvents) MarkProcessed(_ context.Context, consumer, eventID string) (bool, error) {
	key := consumer + ":" + eventID
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func envelopeFor(t *testing.T, taskID, ownerID string, emittedAt time.Time) events.Envelope {
	payload, err := json.Marshal(events.TaskCompletedPayload{TaskID: taskID})
	require.NoError(t, err)
	return events.Envelope{EventID: "evt-" + taskID, EventType: events.TypeTaskCompleted, EmittedAt: emittedAt, OwnerID: ownerID, Payload: payload}
}

func TestHandleTaskCompleted_SkipsNonRecurring(t *testing.T) {
	tc := &fakeTaskCore{tasks: map[string]*model.Task{
		"t1": {TaskID: "t1", OwnerID: "u1", Recurrence: model.RecurrenceNone},
	}}
	w := NewWorker(tc, newFakeProcessedEvents(), zerolog.Nop())

	err := w.HandleTaskCompleted(context.Background(), envelopeFor(t, "t1", "u1", time.Now()))
	require.NoError(t, err)
	require.Empty(t, tc.created)
}

func TestHandleTaskCompleted_DedupesByEventID(t *testing.T) {
	tc := &fakeTaskCore{tasks: map[string]*model.Task{
		"t1": {TaskID: "t1", OwnerID: "u1", Recurrence: model.RecurrenceDaily},
	}}
	w := NewWorker(tc, newFakeProcessedEvents(), zerolog.Nop())
	evt := envelopeFor(t, "t1", "u1", time.Now())

	require.NoError(t, w.HandleTaskCompleted(context.Background(), evt))
	require.NoError(t, w.HandleTaskCompleted(context.Background(), evt))
	require.Len(t, tc.created, 1)
}

func TestComputeNextDueAt_MonthlyClampsToLastDay(t *testing.T) {
	base := time.Date(2024, time.January, 31, 9, 0, 0, 0, time.UTC)
	now := time.Date(2024, time.January, 31, 10, 0, 0, 0, time.UTC)

	got := computeNextDueAt(base, model.RecurrenceMonthly, now)
	require.Equal(t, time.Date(2024, time.February, 29, 9, 0, 0, 0, time.UTC), got, "2024 is a leap year")
}

func TestComputeNextDueAt_MonthlyClampsToLastDayNonLeapYear(t *testing.T) {
	base := time.Date(2025, time.January, 31, 9, 0, 0, 0, time.UTC)
	now := time.Date(2025, time.January, 31, 10, 0, 0, 0, time.UTC)

	got := computeNextDueAt(base, model.RecurrenceMonthly, now)
	require.Equal(t, time.Date(2025, time.February, 28, 9, 0, 0, 0, time.UTC), got)
}

func TestComputeNextDueAt_AdvancesUntilStrictlyFuture(t *testing.T) {
	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC)

	got := computeNextDueAt(base, model.RecurrenceDaily, now)
	require.True(t, got.After(now))
	require.Equal(t, time.Date(2025, time.January, 11, 0, 0, 0, 0, time.UTC), got)
}

func TestHandleTaskCompleted_AdvancesPastBacklog(t *testing.T) {
	// A daily task due long in the past must produce a due date strictly
	// after now, not the literal day-after-due (which would itself be past).
	dueAt := time.Now().UTC().AddDate(0, 0, -30)
	tc := &fakeTaskCore{tasks: map[string]*model.Task{
		"t1": {TaskID: "t1", OwnerID: "u1", Recurrence: model.RecurrenceDaily, DueAt: &dueAt},
	}}
	w := NewWorker(tc, newFakeProcessedEvents(), zerolog.Nop())

	require.NoError(t, w.HandleTaskCompleted(context.Background(), envelopeFor(t, "t1", "u1", time.Now())))
	require.Len(t, tc.created, 1)
	require.True(t, tc.created[0].DueAt.After(time.Now().UTC()))
}

func TestHandleTaskCompleted_PreservesRemindOffset(t *testing.T) {
	dueAt := time.Now().UTC().AddDate(0, 0, 1)
	remindAt := dueAt.Add(-2 * time.Hour)
	tc := &fakeTaskCore{tasks: map[string]*model.Task{
		"t1": {TaskID: "t1", OwnerID: "u1", Recurrence: model.RecurrenceDaily, DueAt: &dueAt, RemindAt: &remindAt},
	}}
	w := NewWorker(tc, newFakeProcessedEvents(), zerolog.Nop())

	require.NoError(t, w.HandleTaskCompleted(context.Background(), envelopeFor(t, "t1", "u1", time.Now())))
	require.Len(t, tc.created, 1)
	require.NotNil(t, tc.created[0].RemindAt)
	require.Equal(t, -2*time.Hour, tc.created[0].RemindAt.Sub(*tc.created[0].DueAt))
}

func TestHandleTaskCompleted_SetsParentTaskID(t *testing.T) {
	tc := &fakeTaskCore{tasks: map[string]*model.Task{
		"t1": {TaskID: "t1", OwnerID: "u1", Recurrence: model.RecurrenceDaily},
	}}
	w := NewWorker(tc, newFakeProcessedEvents(), zerolog.Nop())

	require.NoError(t, w.HandleTaskCompleted(context.Background(), envelopeFor(t, "t1", "u1", time.Now())))
	require.Equal(t, "t1", *tc.created[0].ParentTaskID)
}

func TestHandleTaskCompleted_SourceGoneAcknowledges(t *testing.T) {
	tc := &fakeTaskCore{tasks: map[string]*model.Task{}}
	w := NewWorker(tc, newFakeProcessedEvents(), zerolog.Nop())

	err := w.HandleTaskCompleted(context.Background(), envelopeFor(t, "missing", "u1", time.Now()))
	require.NoError(t, err)
}
