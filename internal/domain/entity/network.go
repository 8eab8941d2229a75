package entity

// ChainProfile holds the static description of a blockchain network.
// Profiles are defined at startup and never mutated.
type ChainProfile struct {
	ChainID         uint64   `json:"chainId" yaml:"chainId"`
	Name            string   `json:"name" yaml:"name"`
	NativeSymbol    string   `json:"nativeSymbol" yaml:"nativeSymbol"`
	NativeDecimals  uint8    `json:"nativeDecimals" yaml:"nativeDecimals"`
	ExplorerBaseURL string   `json:"explorerBaseUrl,omitempty" yaml:"explorerBaseUrl,omitempty"`
	RPCURL          string   `json:"rpcUrl,omitempty" yaml:"rpcUrl,omitempty"`
	FallbackRPCURLs []string `json:"fallbackRpcUrls,omitempty" yaml:"fallbackRpcUrls,omitempty"`
}

// UnknownNetworkName is the display name synthesized for chain ids that are
// not present in the registry. Lookups are total; an unrecognized id is not
// an error.
const UnknownNetworkName = "Unknown Network"
