package entity

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure so callers can distinguish "fix your input"
// kinds from "the network or provider failed" kinds.
type ErrorKind string

const (
	ErrProviderUnavailable   ErrorKind = "provider_unavailable"
	ErrUserRejected          ErrorKind = "user_rejected"
	ErrNoAccounts            ErrorKind = "no_accounts"
	ErrNotConnected          ErrorKind = "not_connected"
	ErrInvalidRecipient      ErrorKind = "invalid_recipient"
	ErrInvalidAmount         ErrorKind = "invalid_amount"
	ErrUnsupportedAsset      ErrorKind = "unsupported_asset"
	ErrInsufficientBalance   ErrorKind = "insufficient_balance"
	ErrInsufficientFunds     ErrorKind = "insufficient_funds"
	ErrTransferInProgress    ErrorKind = "transfer_in_progress"
	ErrNetworkSwitchFailed   ErrorKind = "network_switch_failed"
	ErrEstimationUnavailable ErrorKind = "estimation_unavailable"
	// ErrBadRequest covers malformed request envelopes (unparseable body,
	// missing parameter), as opposed to a well-formed but invalid field.
	ErrBadRequest ErrorKind = "bad_request"
	ErrUnknown    ErrorKind = "unknown"
)

// Validation reports whether the kind is a local pre-flight failure the
// caller can correct, as opposed to a provider or network fault.
func (k ErrorKind) Validation() bool {
	switch k {
	case ErrNotConnected, ErrInvalidRecipient, ErrInvalidAmount,
		ErrUnsupportedAsset, ErrInsufficientBalance, ErrTransferInProgress:
		return true
	}
	return false
}

// ClassifiedError pairs an ErrorKind with its underlying cause.
type ClassifiedError struct {
	Kind  ErrorKind
	Cause error
}

func (e *ClassifiedError) Error() string {
	if e.Cause == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Cause
}

// Fail builds a ClassifiedError of the given kind.
func Fail(kind ErrorKind, cause error) *ClassifiedError {
	return &ClassifiedError{Kind: kind, Cause: cause}
}

// Failf builds a ClassifiedError with a formatted cause message.
func Failf(kind ErrorKind, format string, args ...any) *ClassifiedError {
	return &ClassifiedError{Kind: kind, Cause: fmt.Errorf(format, args...)}
}

// KindOf extracts the ErrorKind from err, or ErrUnknown when err carries no
// classification. A nil err has no kind and returns the empty string.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ErrUnknown
}
