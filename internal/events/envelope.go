// Package events implements the in-process and HTTP-delivered publish
// paths for task.completed and reminder.due, and the CloudEvents-shaped
// wire envelope both topics share.
package events

import (
	"encoding/json"
	"time"
)

const (
	TopicTaskEvents = "task-events"
	TopicReminders  = "reminders"

	TypeTaskCompleted EventType = "task.completed"
	TypeReminderDue    EventType = "reminder.due"
)

type EventType string

// Envelope is the framed wire format both topics share: eventId (the
// consumer's idempotency key), eventType, emittedAt (UTC), ownerId, and a
// payload whose shape is topic-specific. Simplified from the teacher's
// original full CloudEvents field set to just what consumers need.
type Envelope struct {
	EventID   string          `json:"eventId"`
	EventType EventType       `json:"eventType"`
	EmittedAt time.Time       `json:"emittedAt"`
	OwnerID   string          `json:"ownerId"`
	Payload   json.RawMessage `json:"payload"`
}

// TaskCompletedPayload is the payload carried by a task.completed event:
// task-id, owner-id, title, priority, recurrence, optional dueAt, optional
// parentTaskId. Owner-id is repeated from the Envelope's OwnerID. The
// completion instant is not a payload field: it is carried only as the
// Envelope's EmittedAt, which is what RecurrenceWorker reads.
type TaskCompletedPayload struct {
	TaskID       string     `json:"taskId"`
	OwnerID      string     `json:"ownerId"`
	Title        string     `json:"title"`
	Priority     string     `json:"priority"`
	Recurrence   string     `json:"recurrence"`
	DueAt        *time.Time `json:"dueAt,omitempty"`
	ParentTaskID string     `json:"parentTaskId,omitempty"`
}

// ReminderDuePayload is the payload carried by a reminder.due event: per
// spec §4.2, task-id, owner-id, owner-email, title, remindAt, optional
// dueAt (event-id and the completion/emission instant live on the
// Envelope itself).
type ReminderDuePayload struct {
	TaskID     string     `json:"taskId"`
	OwnerID    string     `json:"ownerId"`
	OwnerEmail string     `json:"ownerEmail"`
	Title      string     `json:"title"`
	RemindAt   time.Time  `json:"remindAt"`
	DueAt      *time.Time `json:"dueAt,omitempty"`
}
