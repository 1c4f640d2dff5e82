// Package recurrence implements the worker that, on task.completed,
// creates the next occurrence of a recurring task.
package recurrence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskflow/taskcore/internal/events"
	"github.com/taskflow/taskcore/internal/model"
	"github.com/taskflow/taskcore/internal/services/taskcore"
	"github.com/taskflow/taskcore/internal/store"
)

const consumerName = "recurrence-worker"

// taskCoreClient is the slice of taskcore.Service the worker needs,
// narrowed so a fake can stand in for tests without a real Store.
type taskCoreClient interface {
	GetTask(ctx context.Context, ownerID, taskID string) (*model.Task, error)
	CreateTask(ctx context.Context, ownerID string, in taskcore.CreateTaskInput) (*model.Task, error)
}

// Worker consumes task.completed and creates a successor task for
// recurring, uncanceled sources. Grounded on the teacher's
// internal/outbox/worker.go consumer loop, restructured as an
// events.Handler so it can be wired to either an InProcessBus
// subscription or an HTTP delivery endpoint.
type Worker struct {
	taskCore  taskCoreClient
	processed store.ProcessedEvents
	log       zerolog.Logger
}

func NewWorker(tc taskCoreClient, processed store.ProcessedEvents, log zerolog.Logger) *Worker {
	return &Worker{taskCore: tc, processed: processed, log: log}
}

// HandleTaskCompleted implements events.Handler.
func (w *Worker) HandleTaskCompleted(ctx context.Context, evt events.Envelope) error {
	isNew, err := w.processed.MarkProcessed(ctx, consumerName, evt.EventID)
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	if !isNew {
		return nil
	}

	var payload events.TaskCompletedPayload
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		w.log.Error().Err(err).Str("eventId", evt.EventID).Msg("poison task.completed payload, acknowledging")
		return nil
	}

	source, err := w.taskCore.GetTask(ctx, evt.OwnerID, payload.TaskID)
	if err != nil {
		if isPermanentTaskCoreError(err) {
			w.log.Info().Str("eventId", evt.EventID).Str("taskId", payload.TaskID).Msg("source task gone, acknowledging")
			return nil
		}
		return fmt.Errorf("fetch source task: %w", err)
	}
	if source.Recurrence == model.RecurrenceNone {
		return nil
	}

	nextDueAt := computeNextDueAt(baseInstant(source, evt.EmittedAt), source.Recurrence, time.Now().UTC())
	var nextRemindAt *time.Time
	if source.RemindAt != nil && source.DueAt != nil {
		offset := source.RemindAt.Sub(*source.DueAt)
		remind := nextDueAt.Add(offset)
		nextRemindAt = &remind
	}

	parentID := source.TaskID
	_, err = w.taskCore.CreateTask(ctx, source.OwnerID, taskcore.CreateTaskInput{
		Title:        source.Title,
		Description:  source.Description,
		Priority:     source.Priority,
		DueAt:        &nextDueAt,
		Recurrence:   source.Recurrence,
		Tags:         source.Tags,
		ParentTaskID: &parentID,
		RemindAt:     nextRemindAt,
	})
	if err != nil {
		if isPermanentTaskCoreError(err) {
			w.log.Warn().Err(err).Str("eventId", evt.EventID).Msg("successor creation rejected, acknowledging")
			return nil
		}
		return fmt.Errorf("create successor task: %w", err)
	}
	if nextRemindAt != nil {
		w.log.Debug().Time("nextRemindAt", *nextRemindAt).Msg("computed successor reminder offset")
	}
	return nil
}

func baseInstant(source *model.Task, completedAt time.Time) time.Time {
	if source.DueAt != nil {
		return *source.DueAt
	}
	return completedAt
}

// computeNextDueAt advances base by one recurrence increment, then by
// further increments until the result is strictly after now. This
// prevents runaway backlog creation for a task long past due when
// re-completed.
func computeNextDueAt(base time.Time, recurrence model.Recurrence, now time.Time) time.Time {
	next := advanceOnce(base, recurrence)
	for !next.After(now) {
		next = advanceOnce(next, recurrence)
	}
	return next
}

func advanceOnce(t time.Time, recurrence model.Recurrence) time.Time {
	switch recurrence {
	case model.RecurrenceDaily:
		return t.AddDate(0, 0, 1)
	case model.RecurrenceWeekly:
		return t.AddDate(0, 0, 7)
	case model.RecurrenceMonthly:
		return addMonthClamped(t)
	default:
		return t
	}
}

// addMonthClamped moves t to the same day next month, or the last day of
// that month if the source day does not exist there (Jan 31 -> Feb 28/29).
func addMonthClamped(t time.Time) time.Time {
	year, month, day := t.Date()
	targetYear, targetMonth := year, month+1
	if targetMonth > 12 {
		targetMonth = 1
		targetYear++
	}
	if day > lastDayOfMonth(targetYear, targetMonth) {
		day = lastDayOfMonth(targetYear, targetMonth)
	}
	return time.Date(targetYear, targetMonth, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func isPermanentTaskCoreError(err error) bool {
	return errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrValidation)
}
