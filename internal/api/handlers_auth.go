package api

import (
	"encoding/json"
	"net/http"

	"github.com/taskflow/taskcore/internal/api/respond"
	"github.com/taskflow/taskcore/internal/api/validate"
	"github.com/taskflow/taskcore/internal/services/taskcore"
)

// AuthHandler exposes registration and login, grounded on the teacher's
// UserHandler (handlers_user.go) extended with the credential issuance
// this domain's authentication substrate requires.
type AuthHandler struct {
	users *taskcore.UserService
}

func NewAuthHandler(users *taskcore.UserService) *AuthHandler { return &AuthHandler{users: users} }

type registerRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	DisplayName string `json:"displayName"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	if err := validate.Struct(in); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	user, err := h.users.Register(r.Context(), in.Email, in.Password, in.DisplayName)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	User  interface{} `json:"user"`
	Token string      `json:"token"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	if err := validate.Struct(in); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	user, token, err := h.users.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, loginResponse{User: user, Token: token})
}
