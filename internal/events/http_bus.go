package events

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/taskflow/taskcore/internal/model"
)

// HTTPBus delivers one event per request to a subscriber endpoint, per
// spec: "Endpoints accept a single event per request and return success
// for acknowledgment, retryable failure for redelivery, and permanent
// failure for discard." 2xx is acknowledgment; 5xx/429 is retryable;
// any other non-2xx is permanent.
type HTTPBus struct {
	client    *resty.Client
	endpoints map[string]string // topic -> subscriber URL
}

func NewHTTPBus(client *resty.Client, endpoints map[string]string) *HTTPBus {
	return &HTTPBus{client: client, endpoints: endpoints}
}

func (b *HTTPBus) Publish(ctx context.Context, topic string, evt Envelope) error {
	url, ok := b.endpoints[topic]
	if !ok {
		return fmt.Errorf("no subscriber endpoint configured for topic %q: %w", topic, model.ErrUpstreamPermanent)
	}

	resp, err := b.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(evt).
		Post(url)
	if err != nil {
		return fmt.Errorf("delivering %s to %s: %w", evt.EventType, url, model.ErrUpstreamTransient)
	}

	switch {
	case resp.StatusCode() >= 200 && resp.StatusCode() < 300:
		return nil
	case resp.StatusCode() == 429 || resp.StatusCode() >= 500:
		return fmt.Errorf("subscriber %s returned %d: %w", url, resp.StatusCode(), model.ErrUpstreamTransient)
	default:
		return fmt.Errorf("subscriber %s returned %d: %w", url, resp.StatusCode(), model.ErrUpstreamPermanent)
	}
}
