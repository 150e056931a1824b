package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestAppError tests the structured error type.
func TestAppError(t *testing.T) {
	t.Run("message formatting", func(t *testing.T) {
		err := InvalidInput("cvss score out of range")
		assert.Equal(t, "INVALID_INPUT: cvss score out of range", err.Error())
	})

	t.Run("wrapped cause appears in message and unwraps", func(t *testing.T) {
		cause := fmt.Errorf("connection refused")
		err := Collaborator(cause, "graph")

		assert.Contains(t, err.Error(), "graph collaborator failed")
		assert.Contains(t, err.Error(), "connection refused")
		assert.Equal(t, cause, err.Unwrap())
	})

	t.Run("code matching through wrapping", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", MissingData("no asset snapshot"))
		assert.True(t, Is(err, CodeMissingData))
		assert.False(t, Is(err, CodeInvalidInput))
		assert.False(t, Is(fmt.Errorf("plain"), CodeMissingData))
	})

	t.Run("details accumulate", func(t *testing.T) {
		err := Degenerate("zero stdev").WithDetail("series_len", 10)
		assert.Equal(t, 10, err.Details["series_len"])
	})
}
