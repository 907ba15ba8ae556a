package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorTypes_Unwrap(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		err := fmt.Errorf("lookup: %w", NewNotFoundError("paper", "2301.12345"))
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.True(t, IsNotFound(err))
		assert.Equal(t, "lookup: paper not found: 2301.12345", err.Error())
	})

	t.Run("rate limited", func(t *testing.T) {
		err := NewRateLimitError("Semantic Scholar", 30*time.Second)
		assert.True(t, IsRateLimited(err))
		assert.Contains(t, err.Error(), "retry after 30s")

		var rle *RateLimitError
		assert.True(t, errors.As(fmt.Errorf("wrap: %w", err), &rle))
		assert.Equal(t, 30*time.Second, rle.RetryAfter)
	})

	t.Run("external API error is transient", func(t *testing.T) {
		err := NewExternalAPIError("OpenAlex", 503, "unavailable", nil)
		assert.True(t, errors.Is(err, ErrTransient))
		assert.False(t, IsNotFound(err))
	})

	t.Run("external API error keeps cause", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := NewExternalAPIError("OpenAlex", 0, "request failed", cause)
		assert.True(t, errors.Is(err, cause))
		assert.True(t, errors.Is(err, ErrTransient))
		assert.Equal(t, "OpenAlex API error: request failed", err.Error())
	})

	t.Run("validation error is invalid input", func(t *testing.T) {
		err := NewValidationError("concurrency", "must be at least 1")
		assert.True(t, errors.Is(err, ErrInvalidInput))
	})

	t.Run("rejected error", func(t *testing.T) {
		err := NewRejectedError("OpenAlex", "zero citations")
		assert.True(t, errors.Is(err, ErrFallbackRejected))
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{name: "nil", err: nil, want: ErrorKindNone},
		{name: "not found", err: NewNotFoundError("paper", "x"), want: ErrorKindNotFound},
		{name: "rate limited", err: NewRateLimitError("s2", 0), want: ErrorKindRateLimited},
		{name: "wrapped rate limited", err: fmt.Errorf("attempt 2: %w", ErrRateLimited), want: ErrorKindRateLimited},
		{name: "api error", err: NewExternalAPIError("s2", 500, "boom", nil), want: ErrorKindTransient},
		{name: "unknown", err: errors.New("weird"), want: ErrorKindTransient},
		{name: "deadline is transient", err: context.DeadlineExceeded, want: ErrorKindTransient},
		{name: "canceled", err: context.Canceled, want: ErrorKindCancelled},
		{name: "rejected", err: NewRejectedError("oa", "no match"), want: ErrorKindRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
