package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/taskflow/taskcore/internal/api/respond"
	"github.com/taskflow/taskcore/internal/events"
	"github.com/taskflow/taskcore/internal/model"
)

// EventDeliveryHandler adapts one events.Handler into the HTTP
// subscription endpoint contract the bus sidecar calls: "Endpoints accept
// a single event per request and return success for acknowledgment,
// retryable failure for redelivery, and permanent failure for discard."
// Grounded structurally on events.HTTPBus's reverse direction (the
// publisher side already encodes this exact status-code contract).
type EventDeliveryHandler struct {
	handle events.Handler
}

func NewEventDeliveryHandler(handle events.Handler) *EventDeliveryHandler {
	return &EventDeliveryHandler{handle: handle}
}

func (h *EventDeliveryHandler) Deliver(w http.ResponseWriter, r *http.Request) {
	var evt events.Envelope
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		respond.WriteBadRequest(w, "invalid event envelope")
		return
	}

	err := h.handle(r.Context(), evt)
	switch {
	case err == nil:
		respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "acknowledged"})
	case errors.Is(err, model.ErrUpstreamPermanent):
		respond.WriteBadRequest(w, err.Error())
	default:
		respond.WriteError(w, http.StatusServiceUnavailable, err.Error())
	}
}
