package entity

import (
	"math/big"
	"time"
)

// AssetKind distinguishes a chain's base asset from contract tokens.
type AssetKind string

const (
	// NativeAsset is the chain's base unit of value.
	NativeAsset AssetKind = "native"
	// TokenAsset is a contract-based fungible token, identified by symbol.
	TokenAsset AssetKind = "token"
)

// TransferRequest describes a single value transfer intent. It is built
// fresh per submission attempt and never mutated once estimation begins.
type TransferRequest struct {
	Asset            AssetKind `json:"asset"`
	TokenSymbol      string    `json:"tokenSymbol,omitempty"`
	RecipientAddress string    `json:"recipientAddress"`
	Amount           string    `json:"amount"`
	ChainID          uint64    `json:"chainId"`
	InitiatedAt      time.Time `json:"initiatedAt"`
}

// AttemptState is a phase of a live transfer attempt.
type AttemptState string

const (
	AttemptValidating        AttemptState = "validating"
	AttemptEstimating        AttemptState = "estimating"
	AttemptAwaitingSignature AttemptState = "awaiting_signature"
	AttemptSubmitted         AttemptState = "submitted"
	AttemptConfirming        AttemptState = "confirming"
	AttemptConfirmed         AttemptState = "confirmed"
	AttemptFailed            AttemptState = "failed"
)

// Terminal reports whether the state releases the one-live-attempt slot.
func (s AttemptState) Terminal() bool {
	return s == AttemptConfirmed || s == AttemptFailed
}

// TransferAttempt tracks the progress of one submitted transfer. At most one
// attempt is live per session.
type TransferAttempt struct {
	Request         TransferRequest `json:"request"`
	State           AttemptState    `json:"state"`
	TransactionHash string          `json:"transactionHash,omitempty"`
	StartedAt       time.Time       `json:"startedAt"`
}

// TransferStatus is the terminal outcome of a transfer attempt.
type TransferStatus string

const (
	TransferConfirmed TransferStatus = "confirmed"
	TransferFailed    TransferStatus = "failed"
)

// TransferReceipt is appended to the session-scoped history once an attempt
// reaches a terminal state. Receipts are never mutated after append.
type TransferReceipt struct {
	Request         TransferRequest `json:"request"`
	TransactionHash string          `json:"transactionHash,omitempty"`
	Status          TransferStatus  `json:"status"`
	FinalizedAt     time.Time       `json:"finalizedAt"`
	FailureKind     ErrorKind       `json:"failureKind,omitempty"`
}

// FeeEstimate is a best-effort cost preview for a transfer. Available is
// false when estimation degraded; submission proceeds regardless.
type FeeEstimate struct {
	Available    bool     `json:"available"`
	GasLimit     uint64   `json:"gasLimit,omitempty"`
	GasPriceWei  *big.Int `json:"-"`
	GasPrice     string   `json:"gasPrice,omitempty"`
	TotalFee     string   `json:"totalFee,omitempty"`
	NativeSymbol string   `json:"nativeSymbol,omitempty"`
}
