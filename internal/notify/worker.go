// Package notify implements the consumer that turns a reminder.due event
// into an outbound email notification.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/taskflow/taskcore/internal/events"
	"github.com/taskflow/taskcore/internal/model"
	"github.com/taskflow/taskcore/internal/store"
)

const consumerName = "notification-worker"

// RetryConfig bounds the backoff applied to EmailSender.Send before a
// transient failure is surfaced to the bus for redelivery. Grounded on
// the teacher's shardqueue.shardExecutor exponential-backoff retry loop.
type RetryConfig struct {
	MaxAttempts  int
	BaseInterval time.Duration
	MaxInterval  time.Duration
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseInterval <= 0 {
		c.BaseInterval = 200 * time.Millisecond
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 2 * time.Second
	}
	return c
}

// Worker consumes reminder.due and hands each to EmailSender.
// Grounded structurally on recurrence.Worker's dedup/unmarshal/dispatch
// shape, with EmailSender in place of taskCoreClient.
type Worker struct {
	sender    EmailSender
	processed store.ProcessedEvents
	retry     RetryConfig
	log       zerolog.Logger
}

func NewWorker(sender EmailSender, processed store.ProcessedEvents, retry RetryConfig, log zerolog.Logger) *Worker {
	return &Worker{sender: sender, processed: processed, retry: retry.withDefaults(), log: log}
}

// HandleReminderDue implements events.Handler.
func (w *Worker) HandleReminderDue(ctx context.Context, evt events.Envelope) error {
	isNew, err := w.processed.MarkProcessed(ctx, consumerName, evt.EventID)
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	if !isNew {
		return nil
	}

	var payload events.ReminderDuePayload
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		w.log.Error().Err(err).Str("eventId", evt.EventID).Msg("poison reminder.due payload, acknowledging")
		return nil
	}

	if payload.OwnerEmail == "" {
		w.log.Warn().Str("eventId", evt.EventID).Str("taskId", payload.TaskID).Msg("no owner email on record, acknowledging")
		return nil
	}

	subject, body := render(payload)
	err = w.sendWithRetry(ctx, payload.OwnerEmail, subject, body)
	if err == nil {
		return nil
	}
	if isPermanentSendError(err) {
		w.log.Warn().Err(err).Str("eventId", evt.EventID).Msg("notification send rejected, acknowledging")
		return nil
	}
	return fmt.Errorf("send reminder notification: %w", err)
}

func render(p events.ReminderDuePayload) (subject, body string) {
	subject = fmt.Sprintf("Reminder: %s", p.Title)
	if p.DueAt != nil {
		body = fmt.Sprintf("%q is due at %s.", p.Title, p.DueAt.Format(time.RFC1123))
	} else {
		body = fmt.Sprintf("%q is due.", p.Title)
	}
	return subject, body
}

func (w *Worker) sendWithRetry(ctx context.Context, to, subject, body string) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = w.retry.BaseInterval
	exp.MaxInterval = w.retry.MaxInterval
	exp.Reset()

	var lastErr error
	for attempt := 0; attempt < w.retry.MaxAttempts; attempt++ {
		lastErr = w.sender.Send(ctx, to, subject, body)
		if lastErr == nil {
			return nil
		}
		if isPermanentSendError(lastErr) {
			return lastErr
		}
		if attempt == w.retry.MaxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(exp.NextBackOff()):
		}
	}
	return lastErr
}

func isPermanentSendError(err error) bool {
	return errors.Is(err, model.ErrUpstreamPermanent)
}
