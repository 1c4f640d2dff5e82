package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/taskflow/taskcore/internal/events"
	"github.com/taskflow/taskcore/internal/model"
)

type fakeTasksStore struct {
	claimed []*model.Task
	claimErr error
}

func (f *fakeTasksStore) Create(context.Context, *model.Task) (*model.Task, error) { panic("unused") }
func (f *fakeTasksStore) GetByID(context.Context, string, string) (*model.Task, error) {
	panic("unused")
}
func (f *fakeTasksStore) List(context.Context, string, model.TaskFilter) ([]*model.Task, error) {
	panic("unused")
}
func (f *fakeTasksStore) Update(context.Context, string, string, model.TaskPartial) (*model.Task, error) {
	panic("unused")
}
func (f *fakeTasksStore) Delete(context.Context, string, string) error { panic("unused") }
func (f *fakeTasksStore) SetCompleted(context.Context, string, string, bool) (*model.Task, error) {
	panic("unused")
}
func (f *fakeTasksStore) ClaimDueReminders(context.Context, time.Time, int) ([]*model.Task, error) {
	return f.claimed, f.claimErr
}

type fakeUserLookup struct{ email string }

func (f fakeUserLookup) GetUser(context.Context, string) (*model.User, error) {
	return &model.User{Email: f.email}, nil
}

type fakeBus struct{ published []events.Envelope }

func (b *fakeBus) Publish(_ context.Context, topic string, evt events.Envelope) error {
	b.published = append(b.published, evt)
	return nil
}

func TestSweepOnce_PublishesOneEventPerClaimedRow(t *testing.T) {
	remindAt := time.Now().UTC()
	tasks := &fakeTasksStore{claimed: []*model.Task{
		{TaskID: "t1", OwnerID: "u1", Title: "a", RemindAt: &remindAt},
		{TaskID: "t2", OwnerID: "u2", Title: "b", RemindAt: &remindAt},
	}}
	bus := &fakeBus{}
	s := NewScheduler(tasks, fakeUserLookup{email: "a@example.com"}, bus, Config{}, zerolog.Nop())

	n, err := s.sweepOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Len(t, bus.published, 2)
	require.Equal(t, events.TopicReminders, events.TopicReminders)
	require.NotEmpty(t, bus.published[0].EventID)
	require.NotEqual(t, bus.published[0].EventID, bus.published[1].EventID)
}

func TestSweepOnce_NoRowsPublishesNothing(t *testing.T) {
	tasks := &fakeTasksStore{}
	bus := &fakeBus{}
	s := NewScheduler(tasks, nil, bus, Config{}, zerolog.Nop())

	n, err := s.sweepOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
	require.Empty(t, bus.published)
}

func TestSweepOnce_ClaimErrorPropagates(t *testing.T) {
	tasks := &fakeTasksStore{claimErr: context.DeadlineExceeded}
	s := NewScheduler(tasks, nil, &fakeBus{}, Config{}, zerolog.Nop())

	_, err := s.sweepOnce(context.Background())
	require.Error(t, err)
}

func TestSweepOnce_ExportedWrapperDelegates(t *testing.T) {
	remindAt := time.Now().UTC()
	tasks := &fakeTasksStore{claimed: []*model.Task{
		{TaskID: "t1", OwnerID: "u1", Title: "a", RemindAt: &remindAt},
	}}
	bus := &fakeBus{}
	s := NewScheduler(tasks, nil, bus, Config{}, zerolog.Nop())

	n, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Len(t, bus.published, 1)
}

func TestNewScheduler_DefaultsCadenceAndBatch(t *testing.T) {
	s := NewScheduler(&fakeTasksStore{}, nil, &fakeBus{}, Config{}, zerolog.Nop())
	require.Equal(t, 60*time.Second, s.cfg.Interval)
	require.Equal(t, 200, s.cfg.BatchSize)
}
