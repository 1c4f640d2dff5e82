// Package taskcore is the sole authority for task state: every mutation a
// user or a trusted worker makes to a Task flows through it.
package taskcore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/taskflow/taskcore/internal/events"
	"github.com/taskflow/taskcore/internal/model"
	"github.com/taskflow/taskcore/internal/store"
)

const (
	titleMaxLen = 500
	descMaxLen  = 2000
	tagMaxLen   = 100
)

// Service orchestrates task/tag/reminder use cases. Grounded on the
// teacher's services.VaultService/MemoryService shape: a thin struct
// wrapping store.Store plus validation and whatever durable side effect
// (there: a search-index update; here: an outbox row) the use case needs.
type Service struct {
	store store.Store
	log   zerolog.Logger
}

// New builds a Service. It does not take an events.Bus: TaskCore only
// durably records the publish-intent (Outbox().Enqueue); a separate
// internal/outbox.Worker drains and publishes it, per the outbox
// discipline in spec §4.2.
func New(s store.Store, log zerolog.Logger) *Service {
	return &Service{store: s, log: log}
}

// CreateTaskInput carries CreateTask's optional fields. ParentTaskID is
// set only by RecurrenceWorker when creating a successor task; user-facing
// callers leave it nil.
type CreateTaskInput struct {
	Title        string
	Description  *string
	Priority     model.Priority
	DueAt        *time.Time
	Recurrence   model.Recurrence
	Tags         []string
	ParentTaskID *string
	RemindAt     *time.Time
}

func (s *Service) CreateTask(ctx context.Context, ownerID string, in CreateTaskInput) (*model.Task, error) {
	title, err := validateTitle(in.Title)
	if err != nil {
		return nil, err
	}
	if in.Description != nil {
		if err := validateDescription(*in.Description); err != nil {
			return nil, err
		}
	}
	priority := in.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("priority %q: %w", priority, model.ErrValidation)
	}
	recurrence := in.Recurrence
	if recurrence == "" {
		recurrence = model.RecurrenceNone
	}
	if !recurrence.Valid() {
		return nil, fmt.Errorf("recurrence %q: %w", recurrence, model.ErrValidation)
	}
	if in.RemindAt != nil {
		if err := validateRemindAt(*in.RemindAt); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	task := &model.Task{
		TaskID:       uuid.NewString(),
		OwnerID:      ownerID,
		Title:        title,
		Description:  in.Description,
		Priority:     priority,
		DueAt:        in.DueAt,
		RemindAt:     in.RemindAt,
		Recurrence:   recurrence,
		ParentTaskID: in.ParentTaskID,
		CreationTime: now,
		UpdateTime:   now,
	}
	created, err := s.store.Tasks().Create(ctx, task)
	if err != nil {
		return nil, err
	}

	for _, name := range in.Tags {
		if err := s.AddTag(ctx, ownerID, created.TaskID, name); err != nil {
			return nil, err
		}
	}
	created.Tags = in.Tags
	return created, nil
}

func (s *Service) GetTask(ctx context.Context, ownerID, taskID string) (*model.Task, error) {
	return s.store.Tasks().GetByID(ctx, ownerID, taskID)
}

func (s *Service) ListTasks(ctx context.Context, ownerID string, filter model.TaskFilter) ([]*model.Task, error) {
	return s.store.Tasks().List(ctx, ownerID, filter)
}

// SearchTasks is a case-insensitive substring match over title and
// description, ordered by createdAt descending.
func (s *Service) SearchTasks(ctx context.Context, ownerID, query string) ([]*model.Task, error) {
	q := query
	filter := model.TaskFilter{Query: &q, SortKey: model.SortCreatedAt, SortDesc: true}
	return s.store.Tasks().List(ctx, ownerID, filter)
}

func (s *Service) UpdateTask(ctx context.Context, ownerID, taskID string, partial model.TaskPartial) (*model.Task, error) {
	if partial.Title != nil {
		title, err := validateTitle(*partial.Title)
		if err != nil {
			return nil, err
		}
		partial.Title = &title
	}
	if partial.Description != nil {
		if err := validateDescription(*partial.Description); err != nil {
			return nil, err
		}
	}
	if partial.Priority != nil && !partial.Priority.Valid() {
		return nil, fmt.Errorf("priority %q: %w", *partial.Priority, model.ErrValidation)
	}
	if partial.Recurrence != nil && !partial.Recurrence.Valid() {
		return nil, fmt.Errorf("recurrence %q: %w", *partial.Recurrence, model.ErrValidation)
	}
	if partial.RemindAt != nil {
		if err := validateRemindAt(*partial.RemindAt); err != nil {
			return nil, err
		}
	}
	// Clearing remindAt also clears reminderSent, since a fresh reminder may
	// later be set; the store layer owns flipping reminderSent on ClearRemindAt.
	return s.store.Tasks().Update(ctx, ownerID, taskID, partial)
}

func (s *Service) DeleteTask(ctx context.Context, ownerID, taskID string) error {
	return s.store.Tasks().Delete(ctx, ownerID, taskID)
}

// ToggleComplete flips completed and, on the false->true transition,
// enqueues a task.completed event in the same logical unit of work as the
// flip (outbox discipline, spec §4.2) so a bus outage never loses the state
// change, only delays its publication.
func (s *Service) ToggleComplete(ctx context.Context, ownerID, taskID string) (*model.Task, error) {
	current, err := s.store.Tasks().GetByID(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}
	wasCompleted := current.Completed
	updated, err := s.store.Tasks().SetCompleted(ctx, ownerID, taskID, !wasCompleted)
	if err != nil {
		return nil, err
	}

	if !wasCompleted && updated.Completed {
		if err := s.publishTaskCompleted(ctx, updated); err != nil {
			s.log.Error().Err(err).Str("taskId", taskID).Msg("enqueue task.completed failed")
		}
	}
	return updated, nil
}

func (s *Service) publishTaskCompleted(ctx context.Context, t *model.Task) error {
	payload, err := json.Marshal(events.TaskCompletedPayload{
		TaskID:       t.TaskID,
		OwnerID:      t.OwnerID,
		Title:        t.Title,
		Priority:     string(t.Priority),
		Recurrence:   string(t.Recurrence),
		DueAt:        t.DueAt,
		ParentTaskID: derefString(t.ParentTaskID),
	})
	if err != nil {
		return err
	}
	envelope := events.Envelope{
		EventID:   uuid.NewString(),
		EventType: events.TypeTaskCompleted,
		EmittedAt: time.Now().UTC(),
		OwnerID:   t.OwnerID,
		Payload:   payload,
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	return s.store.Outbox().Enqueue(ctx, events.TopicTaskEvents, envelope.EventID, raw)
}

func (s *Service) AddTag(ctx context.Context, ownerID, taskID, name string) error {
	tag, err := validateTagName(name)
	if err != nil {
		return err
	}
	t, err := s.store.Tags().GetOrCreate(ctx, ownerID, tag)
	if err != nil {
		return err
	}
	return s.store.Tags().AddToTask(ctx, ownerID, taskID, t.TagID)
}

func (s *Service) RemoveTag(ctx context.Context, ownerID, taskID, name string) error {
	tag, err := validateTagName(name)
	if err != nil {
		return err
	}
	t, err := s.store.Tags().GetOrCreate(ctx, ownerID, tag)
	if err != nil {
		return err
	}
	return s.store.Tags().RemoveFromTask(ctx, ownerID, taskID, t.TagID)
}

// SetReminder requires remindAt strictly in the future (I2) and resets
// reminderSent so the scheduler will pick it up again.
func (s *Service) SetReminder(ctx context.Context, ownerID, taskID string, remindAt time.Time) (*model.Task, error) {
	if err := validateRemindAt(remindAt); err != nil {
		return nil, err
	}
	return s.store.Tasks().Update(ctx, ownerID, taskID, model.TaskPartial{RemindAt: &remindAt})
}

func validateTitle(title string) (string, error) {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return "", fmt.Errorf("title must be non-empty after trimming: %w", model.ErrValidation)
	}
	if len(trimmed) > titleMaxLen {
		return "", fmt.Errorf("title exceeds %d characters: %w", titleMaxLen, model.ErrValidation)
	}
	return trimmed, nil
}

func validateDescription(desc string) error {
	if len(desc) > descMaxLen {
		return fmt.Errorf("description exceeds %d characters: %w", descMaxLen, model.ErrValidation)
	}
	return nil
}

func validateTagName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fmt.Errorf("tag name must be non-empty after trimming: %w", model.ErrValidation)
	}
	if len(trimmed) > tagMaxLen {
		return "", fmt.Errorf("tag name exceeds %d characters: %w", tagMaxLen, model.ErrValidation)
	}
	return trimmed, nil
}

func validateRemindAt(remindAt time.Time) error {
	if !remindAt.After(time.Now().UTC()) {
		return fmt.Errorf("remindAt must be strictly in the future: %w", model.ErrValidation)
	}
	return nil
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
