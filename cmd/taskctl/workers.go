package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/taskflow/taskcore/internal/events"
	"github.com/taskflow/taskcore/internal/notify"
	"github.com/taskflow/taskcore/internal/recurrence"
	"github.com/taskflow/taskcore/internal/services/taskcore"
	"github.com/taskflow/taskcore/internal/store/sqlite"
)

// init registers "taskctl workers", which hand-delivers a single event to
// RecurrenceWorker or NotificationWorker against a direct store connection,
// distinct from cmd/recurrence-worker/cmd/notification-worker which serve
// an HTTP subscription endpoint continuously. Useful to replay or retry one
// known event without standing up the worker's HTTP surface.
func init() {
	workersCmd := &cobra.Command{Use: "workers", Short: "Hand-deliver one event to a worker's handler directly"}

	recurrenceCmd := &cobra.Command{
		Use:   "recurrence EVENT_ID OWNER_ID PAYLOAD_JSON",
		Short: "Hand-deliver one task.completed event to RecurrenceWorker",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := sqlite.Open(dbFlag)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer func() { _ = db.Close() }()
			s := sqlite.New(db)
			tasks := taskcore.New(s, zerolog.Nop())
			worker := recurrence.NewWorker(tasks, s.ProcessedEvents(), zerolog.Nop())

			env, err := buildEnvelope(events.TypeTaskCompleted, args[0], args[1], []byte(args[2]))
			if err != nil {
				return err
			}
			if err := worker.HandleTaskCompleted(context.Background(), env); err != nil {
				return fmt.Errorf("handle task.completed: %w", err)
			}
			fmt.Fprintln(os.Stdout, "delivered")
			return nil
		},
	}
	workersCmd.AddCommand(recurrenceCmd)

	var emailBaseURL string
	notificationCmd := &cobra.Command{
		Use:   "notification EVENT_ID OWNER_ID PAYLOAD_JSON",
		Short: "Hand-deliver one reminder.due event to NotificationWorker",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := sqlite.Open(dbFlag)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer func() { _ = db.Close() }()
			s := sqlite.New(db)
			sender := notify.NewHTTPEmailSender(emailBaseURL)
			worker := notify.NewWorker(sender, s.ProcessedEvents(), notify.RetryConfig{}, zerolog.Nop())

			env, err := buildEnvelope(events.TypeReminderDue, args[0], args[1], []byte(args[2]))
			if err != nil {
				return err
			}
			if err := worker.HandleReminderDue(context.Background(), env); err != nil {
				return fmt.Errorf("handle reminder.due: %w", err)
			}
			fmt.Fprintln(os.Stdout, "delivered")
			return nil
		},
	}
	notificationCmd.Flags().StringVar(&emailBaseURL, "email-url", "http://localhost:11600", "transactional email service base URL")
	workersCmd.AddCommand(notificationCmd)

	rootCmd.AddCommand(workersCmd)
}
