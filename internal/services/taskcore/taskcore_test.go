package taskcore

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/taskflow/taskcore/internal/model"
	"github.com/taskflow/taskcore/internal/store"
)

// --- Fakes, grounded on the teacher's services/vault_test.go fake-store shape ---

type fakeStore struct {
	tasks map[string]*model.Task
	tags  map[string]*model.Tag
	taskTags map[string]map[string]bool // taskID -> tagID set
	outboxRows []store.OutboxRow
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tasks:    map[string]*model.Task{},
		tags:     map[string]*model.Tag{},
		taskTags: map[string]map[string]bool{},
	}
}

func (f *fakeStore) Users() store.Users                 { panic("unused") }
func (f *fakeStore) Tasks() store.Tasks                 { return &fakeTasks{f} }
func (f *fakeStore) Tags() store.Tags                   { return &fakeTags{f} }
func (f *fakeStore) Conversations() store.Conversations { panic("unused") }
func (f *fakeStore) Messages() store.Messages           { panic("unused") }
func (f *fakeStore) ProcessedEvents() store.ProcessedEvents { panic("unused") }
func (f *fakeStore) Outbox() store.Outbox               { return &fakeOutbox{f} }

type fakeTasks struct{ p *fakeStore }

func (t *fakeTasks) Create(_ context.Context, task *model.Task) (*model.Task, error) {
	t.p.tasks[task.TaskID] = task
	return task, nil
}
func (t *fakeTasks) GetByID(_ context.Context, ownerID, taskID string) (*model.Task, error) {
	task, ok := t.p.tasks[taskID]
	if !ok || task.OwnerID != ownerID {
		return nil, model.ErrNotFound
	}
	return task, nil
}
func (t *fakeTasks) List(context.Context, string, model.TaskFilter) ([]*model.Task, error) {
	panic("unused")
}
func (t *fakeTasks) Update(_ context.Context, ownerID, taskID string, partial model.TaskPartial) (*model.Task, error) {
	task, err := t.GetByID(context.Background(), ownerID, taskID)
	if err != nil {
		return nil, err
	}
	if partial.Title != nil {
		task.Title = *partial.Title
	}
	if partial.RemindAt != nil {
		task.RemindAt = partial.RemindAt
		task.ReminderSent = false
	}
	return task, nil
}
func (t *fakeTasks) Delete(_ context.Context, ownerID, taskID string) error {
	delete(t.p.tasks, taskID)
	return nil
}
func (t *fakeTasks) SetCompleted(_ context.Context, ownerID, taskID string, completed bool) (*model.Task, error) {
	task, err := t.GetByID(context.Background(), ownerID, taskID)
	if err != nil {
		return nil, err
	}
	task.Completed = completed
	return task, nil
}
func (t *fakeTasks) ClaimDueReminders(context.Context, time.Time, int) ([]*model.Task, error) {
	panic("unused")
}

type fakeTags struct{ p *fakeStore }

func (g *fakeTags) GetOrCreate(_ context.Context, ownerID, name string) (*model.Tag, error) {
	key := ownerID + ":" + name
	if tag, ok := g.p.tags[key]; ok {
		return tag, nil
	}
	tag := &model.Tag{TagID: key, OwnerID: ownerID, Name: name}
	g.p.tags[key] = tag
	return tag, nil
}
func (g *fakeTags) AddToTask(_ context.Context, ownerID, taskID, tagID string) error {
	if g.p.taskTags[taskID] == nil {
		g.p.taskTags[taskID] = map[string]bool{}
	}
	g.p.taskTags[taskID][tagID] = true
	return nil
}
func (g *fakeTags) RemoveFromTask(_ context.Context, ownerID, taskID, tagID string) error {
	delete(g.p.taskTags[taskID], tagID)
	return nil
}
func (g *fakeTags) ListForTask(_ context.Context, ownerID, taskID string) ([]string, error) {
	var out []string
	for id := range g.p.taskTags[taskID] {
		out = append(out, id)
	}
	return out, nil
}

type fakeOutbox struct{ p *fakeStore }

func (o *fakeOutbox) Enqueue(_ context.Context, topic, eventID string, payload []byte) error {
	o.p.outboxRows = append(o.p.outboxRows, store.OutboxRow{Topic: topic, EventID: eventID, Payload: payload})
	return nil
}
func (o *fakeOutbox) LeaseBatch(context.Context, int) ([]store.OutboxRow, error) { panic("unused") }
func (o *fakeOutbox) MarkDone(context.Context, int64) error                     { panic("unused") }
func (o *fakeOutbox) MarkFailed(context.Context, int64) error                   { panic("unused") }

// --- Tests ---

func TestCreateTask_ValidatesTitle(t *testing.T) {
	svc := New(newFakeStore(), zerolog.Nop())
	_, err := svc.CreateTask(context.Background(), "u1", CreateTaskInput{Title: "   "})
	require.ErrorIs(t, err, model.ErrValidation)
}

func TestCreateTask_DefaultsPriorityAndRecurrence(t *testing.T) {
	svc := New(newFakeStore(), zerolog.Nop())
	task, err := svc.CreateTask(context.Background(), "u1", CreateTaskInput{Title: "buy milk"})
	require.NoError(t, err)
	require.Equal(t, model.PriorityMedium, task.Priority)
	require.Equal(t, model.RecurrenceNone, task.Recurrence)
	require.Equal(t, "u1", task.OwnerID)
}

func TestCreateTask_UpsertsTags(t *testing.T) {
	fs := newFakeStore()
	svc := New(fs, zerolog.Nop())
	task, err := svc.CreateTask(context.Background(), "u1", CreateTaskInput{Title: "t", Tags: []string{"home", "urgent"}})
	require.NoError(t, err)
	require.Len(t, fs.taskTags[task.TaskID], 2)
}

func TestToggleComplete_PublishesOnlyOnFalseToTrue(t *testing.T) {
	fs := newFakeStore()
	now := time.Now().UTC()
	fs.tasks["t1"] = &model.Task{TaskID: "t1", OwnerID: "u1", Title: "x", Recurrence: model.RecurrenceNone, CreationTime: now, UpdateTime: now}
	svc := New(fs, zerolog.Nop())

	task, err := svc.ToggleComplete(context.Background(), "u1", "t1")
	require.NoError(t, err)
	require.True(t, task.Completed)
	require.Len(t, fs.outboxRows, 1)

	task, err = svc.ToggleComplete(context.Background(), "u1", "t1")
	require.NoError(t, err)
	require.False(t, task.Completed)
	require.Len(t, fs.outboxRows, 1, "no event enqueued on true->false transition")
}

func TestSetReminder_RejectsPastTime(t *testing.T) {
	fs := newFakeStore()
	fs.tasks["t1"] = &model.Task{TaskID: "t1", OwnerID: "u1"}
	svc := New(fs, zerolog.Nop())

	_, err := svc.SetReminder(context.Background(), "u1", "t1", time.Now().Add(-time.Hour))
	require.ErrorIs(t, err, model.ErrValidation)
}

func TestSetReminder_ClearsReminderSent(t *testing.T) {
	fs := newFakeStore()
	fs.tasks["t1"] = &model.Task{TaskID: "t1", OwnerID: "u1", ReminderSent: true}
	svc := New(fs, zerolog.Nop())

	task, err := svc.SetReminder(context.Background(), "u1", "t1", time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.False(t, task.ReminderSent)
}

func TestGetTask_UnknownOwnerIsNotFound(t *testing.T) {
	fs := newFakeStore()
	fs.tasks["t1"] = &model.Task{TaskID: "t1", OwnerID: "u1"}
	svc := New(fs, zerolog.Nop())

	_, err := svc.GetTask(context.Background(), "u2", "t1")
	require.ErrorIs(t, err, model.ErrNotFound)
}
