package entity

// TokenDescriptor holds the details of a fungible token contract on a
// specific chain. The same symbol on two chains is a distinct asset.
type TokenDescriptor struct {
	ChainID         uint64 `json:"chainId" yaml:"chainId"`
	Symbol          string `json:"symbol" yaml:"symbol"`
	ContractAddress string `json:"contractAddress" yaml:"contractAddress"`
	Decimals        uint8  `json:"decimals" yaml:"decimals"`
	DisplayName     string `json:"displayName,omitempty" yaml:"displayName,omitempty"`
}
