package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taskflow/taskcore/internal/model"
)

func TestHTTPEmailSender_Send_AcceptedStatusIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/send", r.URL.Path)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewHTTPEmailSender(srv.URL)
	require.NoError(t, s.Send(context.Background(), "a@example.com", "subj", "body"))
}

func TestHTTPEmailSender_Send_BadRequestIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewHTTPEmailSender(srv.URL)
	err := s.Send(context.Background(), "bad@", "subj", "body")
	require.ErrorIs(t, err, model.ErrUpstreamPermanent)
}

func TestHTTPEmailSender_Send_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewHTTPEmailSender(srv.URL)
	err := s.Send(context.Background(), "a@example.com", "subj", "body")
	require.ErrorIs(t, err, model.ErrUpstreamTransient)
}

func TestHTTPEmailSender_Send_EmptyRecipientIsPermanent(t *testing.T) {
	s := NewHTTPEmailSender("http://example.invalid")
	err := s.Send(context.Background(), "", "subj", "body")
	require.ErrorIs(t, err, model.ErrUpstreamPermanent)
}
