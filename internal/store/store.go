// Package store exposes the persistence operations required by TaskCore
// and the workers. Implementations live under internal/store/<driver>/.
package store

import (
	"context"
	"time"

	"github.com/taskflow/taskcore/internal/model"
)

// Store aggregates the per-aggregate sub-stores. Implementations must
// serialize mutations to a single task through the underlying row lock
// (spec §5, "Within TaskCore, all mutations to one task serialize through
// the Store's row lock").
type Store interface {
	Users() Users
	Tasks() Tasks
	Tags() Tags
	Conversations() Conversations
	Messages() Messages
	ProcessedEvents() ProcessedEvents
	Outbox() Outbox
}

type Users interface {
	Create(ctx context.Context, u *model.User) (*model.User, error)
	GetByID(ctx context.Context, userID string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Delete(ctx context.Context, userID string) error
}

// Tasks exposes row-level task operations, every method scoped to the
// passed ownerID. Service-principal callers (RecurrenceWorker) learn the
// owner id from the triggering event's envelope and pass it through like
// any other caller; they never bypass the ownership scope (see I1).
type Tasks interface {
	Create(ctx context.Context, t *model.Task) (*model.Task, error)
	GetByID(ctx context.Context, ownerID, taskID string) (*model.Task, error)
	List(ctx context.Context, ownerID string, filter model.TaskFilter) ([]*model.Task, error)
	Update(ctx context.Context, ownerID, taskID string, partial model.TaskPartial) (*model.Task, error)
	Delete(ctx context.Context, ownerID, taskID string) error

	// SetCompleted flips the completed flag and returns the task's state
	// after the flip, atomically relative to other writers of the same row.
	SetCompleted(ctx context.Context, ownerID, taskID string, completed bool) (*model.Task, error)

	// ClaimDueReminders locks and returns up to limit rows matching the
	// reminder-pending predicate (remindAt<=asOf, reminderSent=false,
	// completed=false), flips reminderSent=true on each, and returns the
	// post-flip rows. Implementations MUST prevent two concurrent callers
	// from claiming the same row (spec §4.4 step 1-2).
	ClaimDueReminders(ctx context.Context, asOf time.Time, limit int) ([]*model.Task, error)
}

type Tags interface {
	// GetOrCreate upserts by case-folded name and returns the canonical Tag.
	GetOrCreate(ctx context.Context, ownerID, name string) (*model.Tag, error)
	AddToTask(ctx context.Context, ownerID, taskID, tagID string) error
	RemoveFromTask(ctx context.Context, ownerID, taskID, tagID string) error
	ListForTask(ctx context.Context, ownerID, taskID string) ([]string, error)
}

type Conversations interface {
	Create(ctx context.Context, c *model.Conversation) (*model.Conversation, error)
	GetByID(ctx context.Context, ownerID, conversationID string) (*model.Conversation, error)
	List(ctx context.Context, ownerID string) ([]*model.Conversation, error)
	SetTitle(ctx context.Context, ownerID, conversationID, title string) error
}

type Messages interface {
	Append(ctx context.Context, m *model.Message) (*model.Message, error)
	List(ctx context.Context, conversationID string) ([]*model.Message, error)
}

// ProcessedEvents is the per-consumer idempotency ledger (spec §4.3 step 1,
// §4.5, Glossary "Processed-events set"). consumer namespaces the set so
// RecurrenceWorker and NotificationWorker do not collide on event ids.
type ProcessedEvents interface {
	// MarkProcessed records eventID as handled by consumer. It returns
	// (true, nil) if this call newly recorded it, or (false, nil) if it was
	// already present (the caller must then treat the event as a duplicate
	// and not repeat its side effect).
	MarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
}

// Outbox is the durable publish-intent ledger used by the outbox-discipline
// variant of event publication (spec §4.2). A row committed in the same
// transaction as a state change is later drained by a separate publisher.
type Outbox interface {
	Enqueue(ctx context.Context, topic string, eventID string, payload []byte) error
	LeaseBatch(ctx context.Context, limit int) ([]OutboxRow, error)
	MarkDone(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64) error
}

type OutboxRow struct {
	ID      int64
	Topic   string
	EventID string
	Payload []byte
}
