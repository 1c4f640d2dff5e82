// Package reminder implements the fixed-cadence sweep that promotes
// matured reminders into reminder.due events.
package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/taskflow/taskcore/internal/events"
	"github.com/taskflow/taskcore/internal/model"
	"github.com/taskflow/taskcore/internal/store"
)

// Config controls sweep cadence and batch size.
type Config struct {
	Interval  time.Duration
	BatchSize int
}

// UserLookup resolves an owner id to the email address reminder.due
// carries, per §4.2's "owner-email" field.
type UserLookup interface {
	GetUser(ctx context.Context, userID string) (*model.User, error)
}

// Scheduler sweeps for due reminders on a fixed cadence and publishes
// reminder.due once per row, relying on Tasks.ClaimDueReminders' flip
// happening before publish for the at-most-once guarantee spec §4.4
// names as the default (non-outbox) strategy: a crash between claim and
// publish loses at most one reminder rather than duplicating it.
// Grounded on the teacher's internal/outbox/worker.go ticker-driven
// poll loop, restructured around Tasks.ClaimDueReminders instead of a
// generic lease/markDone pair since the claim call itself performs the
// flip that makes re-delivery impossible.
type Scheduler struct {
	tasks  store.Tasks
	users  UserLookup
	bus    events.Bus
	cfg    Config
	log    zerolog.Logger
}

func NewScheduler(tasks store.Tasks, users UserLookup, bus events.Bus, cfg Config, log zerolog.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	return &Scheduler{tasks: tasks, users: users, bus: bus, cfg: cfg, log: log}
}

func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info().Dur("interval", s.cfg.Interval).Int("batch", s.cfg.BatchSize).Msg("reminder scheduler starting")
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("reminder scheduler stopping")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.sweepOnce(ctx); err != nil {
				s.log.Error().Err(err).Msg("reminder sweep")
			}
		}
	}
}

// sweepOnce reads now once for the whole batch, per §4.4's "the
// scheduler's now is read once per sweep to avoid within-batch drift".
func (s *Scheduler) sweepOnce(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	due, err := s.tasks.ClaimDueReminders(ctx, now, s.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("claim due reminders: %w", err)
	}

	for _, task := range due {
		if err := s.publish(ctx, task); err != nil {
			// The row is already flipped reminderSent=true; a publish
			// failure here loses at most this one reminder, per the
			// at-most-once tradeoff the scheduler's doc comment names.
			s.log.Error().Err(err).Str("taskId", task.TaskID).Msg("publish reminder.due failed")
		}
	}
	return len(due), nil
}

// SweepOnce runs a single sweep outside the ticker loop, for cmd/taskctl's
// manual "reminders sweep" operator command, and returns how many
// reminders were claimed (a claimed reminder whose publish failed is
// still counted).
func (s *Scheduler) SweepOnce(ctx context.Context) (int, error) {
	return s.sweepOnce(ctx)
}

func (s *Scheduler) publish(ctx context.Context, task *model.Task) error {
	ownerEmail := ""
	if s.users != nil {
		if u, err := s.users.GetUser(ctx, task.OwnerID); err == nil {
			ownerEmail = u.Email
		}
	}

	var remindAt time.Time
	if task.RemindAt != nil {
		remindAt = *task.RemindAt
	}
	payload, err := json.Marshal(events.ReminderDuePayload{
		TaskID:     task.TaskID,
		OwnerID:    task.OwnerID,
		OwnerEmail: ownerEmail,
		Title:      task.Title,
		RemindAt:   remindAt,
		DueAt:      task.DueAt,
	})
	if err != nil {
		return err
	}
	envelope := events.Envelope{
		EventID:   uuid.NewString(),
		EventType: events.TypeReminderDue,
		EmittedAt: time.Now().UTC(),
		OwnerID:   task.OwnerID,
		Payload:   payload,
	}
	return s.bus.Publish(ctx, events.TopicReminders, envelope)
}
