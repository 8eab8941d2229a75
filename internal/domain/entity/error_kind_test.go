package entity

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, ErrorKind(""), KindOf(nil))
	assert.Equal(t, ErrUnknown, KindOf(errors.New("something odd")))

	err := Failf(ErrUserRejected, "user rejected the request")
	assert.Equal(t, ErrUserRejected, KindOf(err))

	wrapped := fmt.Errorf("connect: %w", err)
	assert.Equal(t, ErrUserRejected, KindOf(wrapped))
}

func TestClassifiedErrorUnwraps(t *testing.T) {
	cause := errors.New("rpc: connection refused")
	err := Fail(ErrProviderUnavailable, cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "provider_unavailable")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestValidationKinds(t *testing.T) {
	for _, kind := range []ErrorKind{
		ErrNotConnected, ErrInvalidRecipient, ErrInvalidAmount,
		ErrUnsupportedAsset, ErrInsufficientBalance, ErrTransferInProgress,
	} {
		assert.True(t, kind.Validation(), "kind %s", kind)
	}
	for _, kind := range []ErrorKind{
		ErrProviderUnavailable, ErrUserRejected, ErrInsufficientFunds,
		ErrBadRequest, ErrUnknown,
	} {
		assert.False(t, kind.Validation(), "kind %s", kind)
	}
}

func TestAttemptStateTerminal(t *testing.T) {
	assert.True(t, AttemptConfirmed.Terminal())
	assert.True(t, AttemptFailed.Terminal())
	assert.False(t, AttemptConfirming.Terminal())
	assert.False(t, AttemptValidating.Terminal())
}
