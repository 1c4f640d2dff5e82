package validate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type registerRequest struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

func TestStruct_RejectsMissingRequiredField(t *testing.T) {
	err := Struct(registerRequest{Email: "", Password: "longenough"})
	require.Error(t, err)
}

func TestStruct_RejectsMalformedEmail(t *testing.T) {
	err := Struct(registerRequest{Email: "not-an-email", Password: "longenough"})
	require.Error(t, err)
}

func TestStruct_AcceptsValidInput(t *testing.T) {
	err := Struct(registerRequest{Email: "a@b.com", Password: "longenough"})
	require.NoError(t, err)
}

func TestPriority(t *testing.T) {
	require.NoError(t, Priority(""))
	require.NoError(t, Priority("HIGH"))
	require.Error(t, Priority("urgent"))
}

func TestRecurrence(t *testing.T) {
	require.NoError(t, Recurrence(""))
	require.NoError(t, Recurrence("weekly"))
	require.Error(t, Recurrence("biweekly"))
}

func TestNonEmpty(t *testing.T) {
	require.Error(t, NonEmpty("title", "   "))
	require.NoError(t, NonEmpty("title", "buy milk"))
}
