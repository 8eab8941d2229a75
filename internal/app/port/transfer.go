package port

import (
	"context"
	"math/big"

	"wallet_orchestrator/internal/domain/entity"
)

// TransferOrchestrator validates, estimates, submits and tracks a single
// value transfer. At most one attempt is live per session.
type TransferOrchestrator interface {
	// SubmitTransfer runs the full attempt state machine for one request.
	// All preconditions are checked before any gateway interaction.
	SubmitTransfer(ctx context.Context, req entity.TransferRequest) (entity.TransferReceipt, error)

	// PreviewFee requests a debounced, best-effort cost estimate. The result
	// is delivered to deliver; a newer preview for a different
	// (recipient, amount, asset) triple supersedes an older in-flight one.
	PreviewFee(req entity.TransferRequest, deliver func(entity.FeeEstimate))

	// MaxSendableNative returns the spendable native amount after the fee
	// reserve: max(0, balance - reserve).
	MaxSendableNative(balance *big.Int) *big.Int

	// History returns the session-scoped, insertion-ordered receipts.
	History() []entity.TransferReceipt

	// LiveAttempt returns the current attempt, if one is live.
	LiveAttempt() (entity.TransferAttempt, bool)
}

// PriceFeed is the advisory fiat price collaborator. Its absence or
// staleness never blocks a transfer.
type PriceFeed interface {
	GetPrices(ctx context.Context, symbols []string) (map[string]entity.PriceQuote, error)
}

// EventSink receives application events for fan-out to observers (the
// websocket stream). Publishing must never block the caller.
type EventSink interface {
	Publish(topic string, payload any)
}
