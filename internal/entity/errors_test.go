package entity

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestErrorWrapsCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := NewError(KindExtraction, "both providers failed", cause)

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "extraction")
	require.Contains(t, err.Error(), "connection refused")
}

func TestRateLimitErrorCarriesRetryAfter(t *testing.T) {
	t.Parallel()

	err := NewRateLimitError(50 * time.Minute)
	require.Equal(t, KindRateLimited, err.Kind)
	require.Equal(t, 50*time.Minute, err.RetryAfter)
	require.Contains(t, err.Error(), "retry in")
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	require.Equal(t, KindValidation, KindOf(NewError(KindValidation, "url required", nil)))
	require.Equal(t, KindRateLimited, KindOf(fmt.Errorf("wrapped: %w", NewRateLimitError(time.Minute))))
	require.Equal(t, KindPersistence, KindOf(errors.New("plain")))
}
