package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taskflow/taskcore/internal/model"
)

func TestHTTPLLMClient_ParsesFinalMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(planResponse{Message: "hello there"})
	}))
	defer srv.Close()

	client := NewHTTPLLMClient(srv.URL, "test-model", RetryConfig{MaxAttempts: 1})
	result, err := client.Plan(context.Background(), []model.Message{{Role: model.RoleUser, Content: "hi"}}, nil)
	require.NoError(t, err)
	require.Equal(t, "hello there", result.FinalMessage)
	require.Empty(t, result.ToolCalls)
}

func TestHTTPLLMClient_ParsesToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(planResponse{
			ToolCalls: []planResponseCall{{Name: "add_task", Arguments: map[string]any{"title": "buy milk"}}},
		})
	}))
	defer srv.Close()

	client := NewHTTPLLMClient(srv.URL, "test-model", RetryConfig{MaxAttempts: 1})
	result, err := client.Plan(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Len(t, result.ToolCalls, 1)
	require.Equal(t, "add_task", result.ToolCalls[0].Name)
	require.Equal(t, "buy milk", result.ToolCalls[0].Arguments["title"])
}

func TestHTTPLLMClient_RetriesOnServerErrorThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(planResponse{Message: "ok"})
	}))
	defer srv.Close()

	client := NewHTTPLLMClient(srv.URL, "test-model", RetryConfig{MaxAttempts: 3, BaseInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond})
	result, err := client.Plan(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Equal(t, "ok", result.FinalMessage)
	require.Equal(t, 2, attempts)
}

func TestHTTPLLMClient_PermanentFailureStopsWithoutRetrying(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewHTTPLLMClient(srv.URL, "test-model", RetryConfig{MaxAttempts: 3, BaseInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond})
	_, err := client.Plan(context.Background(), nil, nil)
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}
