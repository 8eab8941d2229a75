package gateway

import (
	"context"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"

	"wallet_orchestrator/internal/domain/entity"
)

// EIP-1193 / EIP-1474 provider error codes observed from wallet bridges.
const (
	codeUserRejected      = 4001
	codeUnauthorized      = 4100
	codeChainUnrecognized = 4902
)

// Classify maps a raw provider or RPC failure onto the error taxonomy.
// Unclassifiable failures come back as ErrUnknown.
func Classify(err error) entity.ErrorKind {
	if err == nil {
		return ""
	}

	var ce *entity.ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case codeUserRejected:
			return entity.ErrUserRejected
		case codeUnauthorized:
			return entity.ErrNoAccounts
		case codeChainUnrecognized:
			return entity.ErrNetworkSwitchFailed
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "user rejected"), strings.Contains(msg, "user denied"):
		return entity.ErrUserRejected
	case strings.Contains(msg, "insufficient funds"):
		return entity.ErrInsufficientFunds
	case errors.Is(err, context.DeadlineExceeded), strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "no such host"):
		return entity.ErrProviderUnavailable
	}
	return entity.ErrUnknown
}

// classified wraps err with its classification so callers can branch on the
// kind without re-parsing provider messages.
func classified(err error) error {
	if err == nil {
		return nil
	}
	return entity.Fail(Classify(err), err)
}

// ChainUnrecognized reports whether err is the provider's "chain not
// recognized" rejection, which prompts an AddChain fallback.
func ChainUnrecognized(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == codeChainUnrecognized {
		return true
	}
	return strings.Contains(strings.ToLower(errorText(err)), "unrecognized chain")
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
