package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not found with key", NewNotFoundError("conflict", "7"), `conflict "7" not found`},
		{"not found without key", NewNotFoundError("quote", ""), "quote not found"},
		{"conflict", NewConflictError("sync", "a synchronization cycle is already running"), "sync conflict: a synchronization cycle is already running"},
		{"validation on field", NewValidationError("quotes[2].text", "must be a non-empty string"), "validation failed for quotes[2].text: must be a non-empty string"},
		{"validation on input", NewValidationError("", "must be a JSON array"), "validation failed: must be a JSON array"},
		{"forbidden with reason", NewForbiddenError("post quote", "read only"), `operation "post quote" forbidden: read only`},
		{"forbidden bare", NewForbiddenError("post quote", ""), `operation "post quote" forbidden`},
		{"unavailable with reason", NewUnavailableError("remote-quotes", "max retries exceeded"), `service "remote-quotes" unavailable: max retries exceeded`},
		{"unavailable bare", NewUnavailableError("kvstore", ""), `service "kvstore" unavailable`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

// Each constructor must satisfy exactly one Is helper, through any number of wraps.
func TestErrorKinds(t *testing.T) {
	helpers := map[string]func(error) bool{
		"not_found":   IsNotFound,
		"conflict":    IsConflict,
		"validation":  IsValidation,
		"forbidden":   IsForbidden,
		"unavailable": IsUnavailable,
	}

	tests := map[string]error{
		"not_found":   NewNotFoundError("category", "poetry"),
		"conflict":    NewConflictError("sync", "busy"),
		"validation":  NewValidationError("text", "is required"),
		"forbidden":   NewForbiddenError("push", "denied"),
		"unavailable": NewUnavailableError("remote-quotes", "down"),
	}

	for kind, err := range tests {
		t.Run(kind, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", err))

			for name, is := range helpers {
				assert.Equal(t, name == kind, is(err), "%s on bare error", name)
				assert.Equal(t, name == kind, is(wrapped), "%s on wrapped error", name)
			}
		})
	}
}

func TestIsHelpers_NilAndForeign(t *testing.T) {
	for _, err := range []error{nil, errors.New("plain")} {
		assert.False(t, IsNotFound(err))
		assert.False(t, IsConflict(err))
		assert.False(t, IsValidation(err))
		assert.False(t, IsForbidden(err))
		assert.False(t, IsUnavailable(err))
	}
}

func TestErrorsAs_RecoversFields(t *testing.T) {
	err := fmt.Errorf("importing: %w", NewValidationError("quotes[0].category", "must be a non-empty string"))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "quotes[0].category", verr.Field)

	err = fmt.Errorf("fetching: %w", NewUnavailableError("remote-quotes", "circuit breaker open"))

	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "remote-quotes", unavailable.Service)
	assert.Equal(t, "circuit breaker open", unavailable.Reason)
}
