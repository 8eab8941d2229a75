package port

import (
	"context"
	"math/big"

	"wallet_orchestrator/internal/domain/entity"
)

// EventHandler receives a provider-originated event payload. Handlers for a
// given gateway are invoked from a single dispatch goroutine in arrival
// order.
type EventHandler func(payload entity.ProviderEventPayload)

// WalletProviderGateway is the externally supplied wallet provider
// capability. The core consumes this contract; it never implements provider
// semantics itself.
type WalletProviderGateway interface {
	// IsAvailable reports whether a provider is present at all. When false,
	// Connect must surface ErrProviderUnavailable so the caller can prompt
	// installation.
	IsAvailable() bool

	// RequestAccounts asks the provider for account access, prompting the
	// user if required. Rejection classifies as ErrUserRejected.
	RequestAccounts(ctx context.Context) ([]string, error)

	// GetAccounts is the silent, non-prompting variant used by auto-reconnect.
	GetAccounts(ctx context.Context) ([]string, error)

	GetChainID(ctx context.Context) (uint64, error)
	GetNativeBalance(ctx context.Context, address string) (*big.Int, error)

	EstimateGas(ctx context.Context, params entity.TxParams) (uint64, error)
	GetFeeData(ctx context.Context) (entity.FeeData, error)

	// SupportsTransfers reports whether the provider exposes a working
	// submission path. Callers branch on this flag explicitly; a missing
	// capability is an error, never a simulated success.
	SupportsTransfers() bool

	SendTransaction(ctx context.Context, params entity.TxParams) (entity.TxHandle, error)
	AwaitConfirmation(ctx context.Context, handle entity.TxHandle) (entity.TxReceipt, error)

	// CallContractRead executes a read-only contract call described by an ABI
	// fragment (token balanceOf, decimals, symbol).
	CallContractRead(ctx context.Context, contractAddress string, abiJSON string, method string, args ...any) ([]any, error)

	// CallContractWrite submits a state-changing contract call (token
	// transfer). Overrides carry gas settings.
	CallContractWrite(ctx context.Context, contractAddress string, abiJSON string, method string, args []any, overrides entity.TxParams) (entity.TxHandle, error)

	// SwitchChain asks the provider to change the active chain. A
	// chain-not-recognized rejection prompts an AddChain fallback.
	SwitchChain(ctx context.Context, chainID uint64) error
	AddChain(ctx context.Context, profile entity.ChainProfile) error

	// Subscribe registers a handler for the named event and returns its
	// unsubscribe function.
	Subscribe(event entity.ProviderEvent, handler EventHandler) (unsubscribe func())
}
