package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskflow/taskcore/internal/events"
	"github.com/taskflow/taskcore/internal/store/sqlite"
)

func buildEnvelope(eventType events.EventType, eventID, ownerID string, payload []byte) (events.Envelope, error) {
	if !json.Valid(payload) {
		return events.Envelope{}, fmt.Errorf("payload is not valid JSON")
	}
	return events.Envelope{
		EventID:   eventID,
		EventType: eventType,
		EmittedAt: time.Now().UTC(),
		OwnerID:   ownerID,
		Payload:   json.RawMessage(payload),
	}, nil
}

// init registers "taskctl events replay", which re-enqueues a known
// payload onto the outbox directly, for an operator who has a failed
// event's topic/id/payload on hand (from logs or a dead-letter capture)
// and wants the outbox worker to redeliver it on its next drain.
func init() {
	eventsCmd := &cobra.Command{Use: "events", Short: "Event replay operations"}

	var topic string
	replayCmd := &cobra.Command{
		Use:   "replay EVENT_ID PAYLOAD_JSON",
		Short: "Re-enqueue a known event payload onto the outbox for redelivery",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if topic == "" {
				return fmt.Errorf("--topic required")
			}
			if !json.Valid([]byte(args[1])) {
				return fmt.Errorf("payload is not valid JSON")
			}
			db, err := sqlite.Open(dbFlag)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer func() { _ = db.Close() }()
			s := sqlite.New(db)

			if err := s.Outbox().Enqueue(context.Background(), topic, args[0], []byte(args[1])); err != nil {
				return fmt.Errorf("enqueue: %w", err)
			}
			fmt.Fprintln(os.Stdout, "enqueued")
			return nil
		},
	}
	replayCmd.Flags().StringVar(&topic, "topic", events.TopicTaskEvents, "outbox topic ("+events.TopicTaskEvents+" or "+events.TopicReminders+")")
	eventsCmd.AddCommand(replayCmd)

	rootCmd.AddCommand(eventsCmd)
}
