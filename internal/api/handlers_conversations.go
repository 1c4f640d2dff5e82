package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/taskflow/taskcore/internal/agent"
	"github.com/taskflow/taskcore/internal/api/respond"
	"github.com/taskflow/taskcore/internal/api/validate"
	"github.com/taskflow/taskcore/internal/services/taskcore"
)

// ConversationHandler exposes the chat surface: creating/listing
// conversations and posting a message drives one Agent.HandleTurn per
// §4.6's turn-taking state machine.
type ConversationHandler struct {
	conversations *taskcore.ConversationService
	agent         *agent.Agent
}

func NewConversationHandler(conversations *taskcore.ConversationService, a *agent.Agent) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, agent: a}
}

func (h *ConversationHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	ownerID, err := resolveOwnerID(r)
	if err != nil {
		respond.WriteForbidden(w, err.Error())
		return
	}
	conv, err := h.conversations.CreateConversation(r.Context(), ownerID)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, conv)
}

func (h *ConversationHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	ownerID, err := resolveOwnerID(r)
	if err != nil {
		respond.WriteForbidden(w, err.Error())
		return
	}
	convs, err := h.conversations.ListConversations(r.Context(), ownerID)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, convs)
}

func (h *ConversationHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	ownerID, err := resolveOwnerID(r)
	if err != nil {
		respond.WriteForbidden(w, err.Error())
		return
	}
	conversationID := mux.Vars(r)["conversationId"]
	if _, err := h.conversations.GetConversation(r.Context(), ownerID, conversationID); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	messages, err := h.conversations.ListMessages(r.Context(), conversationID)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, messages)
}

type postMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

// PostMessage is the one HTTP-reachable entry point into the agent's turn
// loop: decode, validate, hand off to Agent.HandleTurn, return the
// committed assistant reply.
func (h *ConversationHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	ownerID, err := resolveOwnerID(r)
	if err != nil {
		respond.WriteForbidden(w, err.Error())
		return
	}
	var in postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	if err := validate.Struct(in); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	conversationID := mux.Vars(r)["conversationId"]
	if _, err := h.conversations.GetConversation(r.Context(), ownerID, conversationID); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	reply, err := h.agent.HandleTurn(r.Context(), ownerID, conversationID, in.Content)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, reply)
}
