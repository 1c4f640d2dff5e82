// Package outbox drains durably-enqueued task.completed and reminder.due
// events onto an events.Bus. Generalized from the teacher's vector-upsert
// outbox worker: same lease/handle/markDone-or-markFailed loop, different
// payload and a real Bus instead of a vector index as the delivery target.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskflow/taskcore/internal/events"
	"github.com/taskflow/taskcore/internal/model"
	"github.com/taskflow/taskcore/internal/store"
)

// Config controls batch size and polling cadence.
type Config struct {
	BatchSize int
	Interval  time.Duration
}

// Worker drains store.Outbox onto an events.Bus.
type Worker struct {
	outbox store.Outbox
	bus    events.Bus
	cfg    Config
	log    zerolog.Logger
}

func NewWorker(outbox store.Outbox, bus events.Bus, cfg Config, log zerolog.Logger) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	return &Worker{outbox: outbox, bus: bus, cfg: cfg, log: log}
}

// Run starts the polling loop until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info().Int("batch", w.cfg.BatchSize).Dur("interval", w.cfg.Interval).Msg("outbox worker starting")
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("outbox worker stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := w.processOnce(ctx); err != nil {
				w.log.Error().Err(err).Msg("outbox processOnce")
			}
		}
	}
}

func (w *Worker) processOnce(ctx context.Context) error {
	batch, err := w.outbox.LeaseBatch(ctx, w.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("lease batch: %w", err)
	}

	for _, row := range batch {
		var evt events.Envelope
		// Enqueue stores the full marshaled Envelope as the row payload;
		// unmarshal it back rather than re-wrapping row.Payload as a payload.
		if unmarshalErr := json.Unmarshal(row.Payload, &evt); unmarshalErr != nil {
			w.log.Error().Err(unmarshalErr).Int64("id", row.ID).Msg("poison outbox row, discarding")
			if e := w.outbox.MarkDone(ctx, row.ID); e != nil {
				w.log.Error().Err(e).Int64("id", row.ID).Msg("markDone on poison row")
			}
			continue
		}

		pubErr := w.bus.Publish(ctx, row.Topic, evt)
		switch {
		case pubErr == nil:
			if e := w.outbox.MarkDone(ctx, row.ID); e != nil {
				w.log.Error().Err(e).Int64("id", row.ID).Msg("markDone")
			}
		case isPermanent(pubErr):
			w.log.Error().Err(pubErr).Int64("id", row.ID).Msg("permanent delivery failure, discarding")
			if e := w.outbox.MarkDone(ctx, row.ID); e != nil {
				w.log.Error().Err(e).Int64("id", row.ID).Msg("markDone after permanent failure")
			}
		default:
			w.log.Warn().Err(pubErr).Int64("id", row.ID).Msg("transient delivery failure, will retry")
			if e := w.outbox.MarkFailed(ctx, row.ID); e != nil {
				w.log.Error().Err(e).Int64("id", row.ID).Msg("markFailed")
			}
		}
	}
	return nil
}

func isPermanent(err error) bool {
	return errors.Is(err, model.ErrUpstreamPermanent)
}
