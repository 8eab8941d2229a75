package entity

import "math/big"

// TxParams carries the parameters for a gas estimate or a transaction
// submission. Amounts are in the chain's smallest unit.
type TxParams struct {
	From        string
	To          string
	ValueWei    *big.Int
	Data        []byte
	GasLimit    uint64
	GasPriceWei *big.Int
}

// FeeData is the provider's current fee quote.
type FeeData struct {
	GasPriceWei *big.Int
}

// TxHandle identifies a submitted transaction while it awaits confirmation.
type TxHandle struct {
	Hash    string
	ChainID uint64
}

// TxReceipt is the network's acknowledgment of an included transaction.
type TxReceipt struct {
	Hash        string
	Succeeded   bool
	BlockNumber uint64
	GasUsed     uint64
}

// ProviderEvent names an asynchronous provider-originated event.
type ProviderEvent string

const (
	EventAccountsChanged ProviderEvent = "accountsChanged"
	EventChainChanged    ProviderEvent = "chainChanged"
	EventDisconnect      ProviderEvent = "disconnect"
)

// ProviderEventPayload carries the data for a provider event. Accounts is set
// for accountsChanged, ChainIDHex for chainChanged.
type ProviderEventPayload struct {
	Accounts   []string
	ChainIDHex string
}
