package port

import (
	"context"

	"wallet_orchestrator/internal/domain/entity"
)

// SessionManager owns the wallet session state machine. All session
// mutations route through it; other components only read snapshots.
type SessionManager interface {
	// Connect requests account access and, on success, transitions the
	// session to Connected and triggers one balance poll.
	Connect(ctx context.Context) (entity.WalletSession, error)

	// Disconnect resets the session locally. Idempotent; never contacts the
	// gateway.
	Disconnect()

	// AutoReconnect silently restores a previously authorized session at
	// startup. Failures are logged, never surfaced.
	AutoReconnect(ctx context.Context)

	// SwitchChain asks the provider to change the active chain, falling back
	// to AddChain when the chain is unrecognized.
	SwitchChain(ctx context.Context, chainID uint64) error

	// Session returns a read copy of the current session state.
	Session() entity.WalletSession

	// LatestBalances returns the most recently accepted snapshot for the
	// current session identity, or nil when none has been accepted yet.
	LatestBalances() *entity.BalanceSnapshot

	// RefreshBalances issues a poll for the current identity. The resulting
	// snapshot is accepted only if the identity still matches on arrival.
	RefreshBalances(ctx context.Context)
}

// BalanceAggregator polls native and token balances for one (owner, chain)
// pair. Calls are not serialized against each other.
type BalanceAggregator interface {
	Refresh(ctx context.Context, ownerAddress string, chainID uint64) (*entity.BalanceSnapshot, error)
	// Cached returns the last produced snapshot for the pair, if any is
	// still within its TTL.
	Cached(ownerAddress string, chainID uint64) (*entity.BalanceSnapshot, bool)
}
