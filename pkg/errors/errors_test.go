package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorMessage(t *testing.T) {
	err := New("TEST", "something broke", http.StatusBadRequest)
	assert.Equal(t, "something broke", err.Error())

	wrapped := err.WithInternal(errors.New("db down"))
	assert.Equal(t, "something broke: db down", wrapped.Error())
	assert.Equal(t, "something broke", err.Error(), "original must not be mutated")
}

func TestFromError(t *testing.T) {
	appErr := FromError(ErrInvalidChannel)
	require.NotNil(t, appErr)
	assert.Equal(t, "notification.invalid_channel", appErr.Code)

	wrapped := fmt.Errorf("outer: %w", ErrInvalidTransition)
	appErr = FromError(wrapped)
	assert.Equal(t, ErrInvalidTransition.Code, appErr.Code)

	appErr = FromError(errors.New("plain"))
	assert.Equal(t, ErrInternalServer.Code, appErr.Code)
	assert.EqualError(t, appErr.Unwrap(), "plain")

	assert.Nil(t, FromError(nil))
}

func TestWithInternalMatchesSentinel(t *testing.T) {
	wrapped := ErrInvalidChannel.WithInternal(errors.New("channel \"fax\" is not valid"))
	assert.True(t, errors.Is(wrapped, ErrInvalidChannel))
	assert.False(t, errors.Is(wrapped, ErrInvalidTransition))

	// The internal error stays reachable alongside the code match.
	doubly := fmt.Errorf("store: %w", wrapped)
	assert.True(t, errors.Is(doubly, ErrInvalidChannel))
}

func TestWrapKeepsInternal(t *testing.T) {
	inner := errors.New("boom")
	appErr := Wrap(inner, "engine failure")
	assert.True(t, errors.Is(appErr, inner))
	assert.Equal(t, http.StatusInternalServerError, appErr.StatusCode)
}
