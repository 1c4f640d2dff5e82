package respond

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taskflow/taskcore/internal/model"
)

func TestWriteJSON_SetsStatusAndContentType(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]string{"ok": "yes"})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), "yes")
}

func TestWriteDomainError_MapsSentinelErrorsToStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("bad: %w", model.ErrValidation), http.StatusBadRequest},
		{model.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("dup: %w", model.ErrConflict), http.StatusConflict},
		{model.ErrUnauthorized, http.StatusUnauthorized},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		WriteDomainError(rec, tc.err)
		require.Equal(t, tc.want, rec.Code, tc.err)
	}
}
