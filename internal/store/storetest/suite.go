// Package storetest runs a common compliance suite against any
// store.Store implementation, so the sqlite and postgres adapters are
// exercised by the same assertions.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/taskflow/taskcore/internal/model"
	"github.com/taskflow/taskcore/internal/store"
)

// Run exercises every store.Store sub-interface against a fresh,
// implementation-provided instance.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()
	s := makeStore(t)
	ctx := context.Background()

	t.Run("Users", func(t *testing.T) { testUsers(t, ctx, s) })
	t.Run("Tasks", func(t *testing.T) { testTasks(t, ctx, s) })
	t.Run("TaskReminders", func(t *testing.T) { testTaskReminders(t, ctx, s) })
	t.Run("Tags", func(t *testing.T) { testTags(t, ctx, s) })
	t.Run("Conversations", func(t *testing.T) { testConversations(t, ctx, s) })
	t.Run("ProcessedEvents", func(t *testing.T) { testProcessedEvents(t, ctx, s) })
	t.Run("Outbox", func(t *testing.T) { testOutbox(t, ctx, s) })
}

func newUser(t *testing.T, ctx context.Context, s store.Store) *model.User {
	t.Helper()
	email := "u-" + uuid.New().String() + "@example.test"
	u, err := s.Users().Create(ctx, &model.User{Email: email, PasswordHash: "hash", DisplayName: "Test User"})
	require.NoError(t, err)
	return u
}

func testUsers(t *testing.T, ctx context.Context, s store.Store) {
	u := newUser(t, ctx, s)
	require.NotEmpty(t, u.UserID)

	got, err := s.Users().GetByID(ctx, u.UserID)
	require.NoError(t, err)
	require.Equal(t, u.Email, got.Email)

	byEmail, err := s.Users().GetByEmail(ctx, u.Email)
	require.NoError(t, err)
	require.Equal(t, u.UserID, byEmail.UserID)

	// Case-insensitive lookup (spec §3 "unique, case-insensitively, by email").
	upper, err := s.Users().GetByEmail(ctx, upperCase(u.Email))
	require.NoError(t, err)
	require.Equal(t, u.UserID, upper.UserID)

	_, err = s.Users().Create(ctx, &model.User{Email: u.Email, PasswordHash: "x"})
	require.ErrorIs(t, err, model.ErrConflict)

	_, err = s.Users().GetByID(ctx, "does-not-exist")
	require.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, s.Users().Delete(ctx, u.UserID))
	_, err = s.Users().GetByID(ctx, u.UserID)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func testTasks(t *testing.T, ctx context.Context, s store.Store) {
	u := newUser(t, ctx, s)

	due := time.Now().UTC().Add(24 * time.Hour)
	task, err := s.Tasks().Create(ctx, &model.Task{
		OwnerID:  u.UserID,
		Title:    "Write quarterly report",
		Priority: model.PriorityHigh,
		DueAt:    &due,
	})
	require.NoError(t, err)
	require.NotEmpty(t, task.TaskID)
	require.Equal(t, model.RecurrenceNone, task.Recurrence)

	got, err := s.Tasks().GetByID(ctx, u.UserID, task.TaskID)
	require.NoError(t, err)
	require.Equal(t, "Write quarterly report", got.Title)

	_, err = s.Tasks().GetByID(ctx, "someone-else", task.TaskID)
	require.ErrorIs(t, err, model.ErrNotFound)

	newTitle := "Write and circulate quarterly report"
	updated, err := s.Tasks().Update(ctx, u.UserID, task.TaskID, model.TaskPartial{Title: &newTitle})
	require.NoError(t, err)
	require.Equal(t, newTitle, updated.Title)

	flipped, err := s.Tasks().SetCompleted(ctx, u.UserID, task.TaskID, true)
	require.NoError(t, err)
	require.True(t, flipped.Completed)

	low := model.PriorityLow
	second, err := s.Tasks().Create(ctx, &model.Task{OwnerID: u.UserID, Title: "Buy groceries", Priority: low})
	require.NoError(t, err)

	list, err := s.Tasks().List(ctx, u.UserID, model.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)

	completed := true
	onlyDone, err := s.Tasks().List(ctx, u.UserID, model.TaskFilter{Completed: &completed})
	require.NoError(t, err)
	require.Len(t, onlyDone, 1)
	require.Equal(t, task.TaskID, onlyDone[0].TaskID)

	byPriority, err := s.Tasks().List(ctx, u.UserID, model.TaskFilter{SortKey: model.SortPriority, SortDesc: true})
	require.NoError(t, err)
	require.Equal(t, task.TaskID, byPriority[0].TaskID) // high ranks above low

	require.NoError(t, s.Tasks().Delete(ctx, u.UserID, second.TaskID))
	_, err = s.Tasks().GetByID(ctx, u.UserID, second.TaskID)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func testTaskReminders(t *testing.T, ctx context.Context, s store.Store) {
	u := newUser(t, ctx, s)
	past := time.Now().UTC().Add(-time.Minute)
	task, err := s.Tasks().Create(ctx, &model.Task{OwnerID: u.UserID, Title: "Call dentist", RemindAt: &past})
	require.NoError(t, err)

	claimed, err := s.Tasks().ClaimDueReminders(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.Equal(t, task.TaskID, claimed[0].TaskID)
	require.True(t, claimed[0].ReminderSent)

	// Already-claimed rows must not be claimed a second time.
	again, err := s.Tasks().ClaimDueReminders(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)
	require.Empty(t, again)
}

func testTags(t *testing.T, ctx context.Context, s store.Store) {
	u := newUser(t, ctx, s)
	task, err := s.Tasks().Create(ctx, &model.Task{OwnerID: u.UserID, Title: "Renew passport"})
	require.NoError(t, err)

	tag, err := s.Tags().GetOrCreate(ctx, u.UserID, "Errands")
	require.NoError(t, err)
	require.NotEmpty(t, tag.TagID)

	// Case-folded idempotent upsert: differently-cased name returns the same row.
	same, err := s.Tags().GetOrCreate(ctx, u.UserID, "errands")
	require.NoError(t, err)
	require.Equal(t, tag.TagID, same.TagID)

	require.NoError(t, s.Tags().AddToTask(ctx, u.UserID, task.TaskID, tag.TagID))
	// Adding the same tag twice is idempotent (spec P4), not an error.
	require.NoError(t, s.Tags().AddToTask(ctx, u.UserID, task.TaskID, tag.TagID))

	names, err := s.Tags().ListForTask(ctx, u.UserID, task.TaskID)
	require.NoError(t, err)
	require.Equal(t, []string{"Errands"}, names)

	require.NoError(t, s.Tags().RemoveFromTask(ctx, u.UserID, task.TaskID, tag.TagID))
	require.NoError(t, s.Tags().RemoveFromTask(ctx, u.UserID, task.TaskID, tag.TagID)) // idempotent

	names, err = s.Tags().ListForTask(ctx, u.UserID, task.TaskID)
	require.NoError(t, err)
	require.Empty(t, names)
}

func testConversations(t *testing.T, ctx context.Context, s store.Store) {
	u := newUser(t, ctx, s)
	conv, err := s.Conversations().Create(ctx, &model.Conversation{OwnerID: u.UserID})
	require.NoError(t, err)
	require.NotEmpty(t, conv.ConversationID)

	title := "Planning my week"
	require.NoError(t, s.Conversations().SetTitle(ctx, u.UserID, conv.ConversationID, title))

	got, err := s.Conversations().GetByID(ctx, u.UserID, conv.ConversationID)
	require.NoError(t, err)
	require.Equal(t, &title, got.Title)

	list, err := s.Conversations().List(ctx, u.UserID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	m1, err := s.Messages().Append(ctx, &model.Message{ConversationID: conv.ConversationID, Role: model.RoleUser, Content: "remind me to call mom"})
	require.NoError(t, err)
	m2, err := s.Messages().Append(ctx, &model.Message{ConversationID: conv.ConversationID, Role: model.RoleAssistant, Content: "done"})
	require.NoError(t, err)

	msgs, err := s.Messages().List(ctx, conv.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, m1.MessageID, msgs[0].MessageID)
	require.Equal(t, m2.MessageID, msgs[1].MessageID)
}

func testProcessedEvents(t *testing.T, ctx context.Context, s store.Store) {
	eventID := uuid.New().String()

	first, err := s.ProcessedEvents().MarkProcessed(ctx, "recurrence-worker", eventID)
	require.NoError(t, err)
	require.True(t, first)

	second, err := s.ProcessedEvents().MarkProcessed(ctx, "recurrence-worker", eventID)
	require.NoError(t, err)
	require.False(t, second, "duplicate event id for the same consumer must not be reported as new")

	// A different consumer's namespace is independent.
	otherConsumer, err := s.ProcessedEvents().MarkProcessed(ctx, "notification-worker", eventID)
	require.NoError(t, err)
	require.True(t, otherConsumer)
}

func testOutbox(t *testing.T, ctx context.Context, s store.Store) {
	require.NoError(t, s.Outbox().Enqueue(ctx, "task.completed", uuid.New().String(), []byte(`{"taskId":"t1"}`)))

	batch, err := s.Outbox().LeaseBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)

	// A leased row must not be leased again until it fails back to pending.
	empty, err := s.Outbox().LeaseBatch(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, empty)

	require.NoError(t, s.Outbox().MarkFailed(ctx, batch[0].ID))

	// MarkFailed's retry backoff means the row is not immediately re-leasable,
	// but it is once more in the 'pending' pool for the next attempt.
	require.NoError(t, s.Outbox().MarkDone(ctx, batch[0].ID))
}

func upperCase(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c >= 'a' && c <= 'z' {
			out[i] = c - 'a' + 'A'
		}
	}
	return string(out)
}
