package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/taskflow/taskcore/internal/auth"
	"github.com/taskflow/taskcore/internal/events"
	"github.com/taskflow/taskcore/internal/reminder"
	"github.com/taskflow/taskcore/internal/services/taskcore"
	"github.com/taskflow/taskcore/internal/store/sqlite"
)

func init() {
	remindersCmd := &cobra.Command{Use: "reminders", Short: "Reminder scheduler operations"}

	var signingSecret, notifyURL string
	var batch int
	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one reminder sweep immediately, outside the scheduler's cadence",
		RunE: func(cmd *cobra.Command, args []string) error {
			if signingSecret == "" {
				return fmt.Errorf("--signing-secret required")
			}
			db, err := sqlite.Open(dbFlag)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer func() { _ = db.Close() }()
			s := sqlite.New(db)

			signer := auth.NewSigner(signingSecret, time.Hour)
			users := taskcore.NewUserService(s, signer, 1)

			serviceToken, err := signer.Issue("taskctl", auth.RoleService)
			if err != nil {
				return fmt.Errorf("mint service credential: %w", err)
			}
			httpClient := resty.New().SetHeader("Authorization", "Bearer "+serviceToken)
			bus := events.NewHTTPBus(httpClient, map[string]string{
				events.TopicReminders: notifyURL,
			})

			scheduler := reminder.NewScheduler(s.Tasks(), users, bus, reminder.Config{BatchSize: batch}, zerolog.Nop())
			n, err := scheduler.SweepOnce(context.Background())
			if err != nil {
				return fmt.Errorf("sweep: %w", err)
			}
			fmt.Fprintf(os.Stdout, "swept %d reminder(s)\n", n)
			return nil
		},
	}
	sweepCmd.Flags().StringVar(&signingSecret, "signing-secret", "", "TaskCore's HMAC signing secret (required)")
	sweepCmd.Flags().StringVar(&notifyURL, "notify-url", "http://localhost:8082/events/reminder-due", "notification-worker's subscription endpoint")
	sweepCmd.Flags().IntVar(&batch, "batch", 200, "maximum reminders to claim in this sweep")
	remindersCmd.AddCommand(sweepCmd)

	rootCmd.AddCommand(remindersCmd)
}
