package model

import "time"

// Priority ranks a Task's urgency. The zero value is invalid; CreateTask
// defaults an unset priority to PriorityMedium.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank orders priorities numerically for sort keys (low < medium < high).
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityHigh:
		return 2
	default:
		return 1
	}
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Recurrence governs whether completing a Task spawns a successor.
type Recurrence string

const (
	RecurrenceNone    Recurrence = "none"
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
)

func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return true
	}
	return false
}

// User is the identity principal. See spec §3.
type User struct {
	UserID       string    `json:"userId"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	DisplayName  string    `json:"displayName"`
	AvatarURL    *string   `json:"avatarUrl,omitempty"`
	CreationTime time.Time `json:"creationTime"`
	UpdateTime   time.Time `json:"updateTime"`
}

// Task is the unit of work owned by exactly one User. See spec §3, I1-I6.
type Task struct {
	TaskID       string     `json:"taskId"`
	OwnerID      string     `json:"ownerId"`
	Title        string     `json:"title"`
	Description  *string    `json:"description,omitempty"`
	Completed    bool       `json:"completed"`
	Priority     Priority   `json:"priority"`
	DueAt        *time.Time `json:"dueAt,omitempty"`
	RemindAt     *time.Time `json:"remindAt,omitempty"`
	ReminderSent bool       `json:"reminderSent"`
	Recurrence   Recurrence `json:"recurrence"`
	ParentTaskID *string    `json:"parentTaskId,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
	CreationTime time.Time  `json:"creationTime"`
	UpdateTime   time.Time  `json:"updateTime"`
}

// Tag is a per-user label, unique per (owner, case-folded name). See spec §3.
type Tag struct {
	TagID        string    `json:"tagId"`
	OwnerID      string    `json:"ownerId"`
	Name         string    `json:"name"`
	CreationTime time.Time `json:"creationTime"`
}

// Conversation is a chat session between a User and the Agent. See spec §3, §4.6.
type Conversation struct {
	ConversationID string    `json:"conversationId"`
	OwnerID        string    `json:"ownerId"`
	Title          *string   `json:"title,omitempty"`
	CreationTime   time.Time `json:"creationTime"`
	UpdateTime     time.Time `json:"updateTime"`
}

// MessageRole distinguishes user turns from assistant turns.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is one turn within a Conversation, ordered by CreationTime then MessageID.
type Message struct {
	MessageID      string      `json:"messageId"`
	ConversationID string      `json:"conversationId"`
	Role           MessageRole `json:"role"`
	Content        string      `json:"content"`
	CreationTime   time.Time   `json:"creationTime"`
}

// TaskFilter captures ListTasks' optional, ANDed predicates. See spec §4.1.
type TaskFilter struct {
	Priority  *Priority
	Tag       *string // case-folded
	Completed *bool
	Overdue   bool // dueAt < now AND completed=false
	Query     *string // case-insensitive substring over title/description, for SearchTasks

	SortKey  SortKey
	SortDesc bool
}

type SortKey string

const (
	SortCreatedAt SortKey = "createdAt"
	SortUpdatedAt SortKey = "updatedAt"
	SortDueAt     SortKey = "dueAt"
	SortPriority  SortKey = "priority"
	SortTitle     SortKey = "title"
)

// TaskPartial carries optional overrides for UpdateTask; a nil field leaves
// the current value unchanged. ClearRemindAt distinguishes "leave remindAt
// alone" from "set remindAt to null", since *time.Time cannot express both.
type TaskPartial struct {
	Title         *string
	Description   *string
	ClearDesc     bool
	Priority      *Priority
	DueAt         *time.Time
	ClearDueAt    bool
	Recurrence    *Recurrence
	RemindAt      *time.Time
	ClearRemindAt bool
}
