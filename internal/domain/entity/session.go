package entity

// ConnectionState describes the lifecycle state of the wallet session.
type ConnectionState string

const (
	// Disconnected means no wallet is linked to the session.
	Disconnected ConnectionState = "disconnected"
	// Connecting means an account request is in flight with the provider.
	Connecting ConnectionState = "connecting"
	// Connected means an account is linked and an active chain is known.
	Connected ConnectionState = "connected"
)

// WalletSession is the single mutable piece of shared state in the system.
// Only the session manager mutates it; everyone else receives copies.
type WalletSession struct {
	ConnectionState ConnectionState `json:"connectionState"`
	AccountAddress  string          `json:"accountAddress,omitempty"`
	ChainID         uint64          `json:"chainId,omitempty"`
	LastError       ErrorKind       `json:"lastError,omitempty"`
}
