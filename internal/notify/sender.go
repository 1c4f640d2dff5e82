package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/taskflow/taskcore/internal/model"
)

// EmailSender delivers a rendered reminder notification to an address.
// Implementations classify failure as transient (the worker returns
// failure to the bus for redelivery) or permanent (logged and
// acknowledged without retry), per §4.5.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// HTTPEmailSender posts to a transactional-email HTTP API. Grounded on
// the teacher's indexer-prototype.OllamaProvider: a thin resty.Client
// wrapper with a fixed base URL and JSON body, no bespoke HTTP plumbing.
type HTTPEmailSender struct {
	client *resty.Client
}

func NewHTTPEmailSender(baseURL string) *HTTPEmailSender {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(10 * time.Second)
	return &HTTPEmailSender{client: c}
}

type sendEmailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (s *HTTPEmailSender) Send(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return fmt.Errorf("recipient address is empty: %w", model.ErrUpstreamPermanent)
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(sendEmailRequest{To: to, Subject: subject, Body: body}).
		Post("/v1/send")
	if err != nil {
		return fmt.Errorf("email provider request: %w: %w", err, model.ErrUpstreamTransient)
	}
	switch {
	case resp.StatusCode() == http.StatusOK || resp.StatusCode() == http.StatusAccepted:
		return nil
	case resp.StatusCode() == http.StatusBadRequest || resp.StatusCode() == http.StatusUnprocessableEntity:
		return fmt.Errorf("email provider rejected address %q (status %d): %w", to, resp.StatusCode(), model.ErrUpstreamPermanent)
	default:
		return fmt.Errorf("email provider status %d: %w", resp.StatusCode(), model.ErrUpstreamTransient)
	}
}
