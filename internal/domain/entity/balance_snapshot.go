package entity

import "time"

// BalanceSnapshot is the immutable result of one balance poll for a single
// (owner, chain) pair. A newer snapshot for the same pair supersedes an older
// one; snapshots are never merged. A snapshot whose identity no longer
// matches the live session is discarded at acceptance time.
type BalanceSnapshot struct {
	OwnerAddress   string               `json:"ownerAddress"`
	ChainID        uint64               `json:"chainId"`
	AsOf           time.Time            `json:"asOf"`
	NativeSymbol   string               `json:"nativeSymbol"`
	NativeBalance  string               `json:"nativeBalance"`
	TokenBalances  map[string]string    `json:"tokenBalances"`
	PerAssetErrors map[string]ErrorKind `json:"perAssetErrors,omitempty"`
}

// Matches reports whether the snapshot belongs to the given session identity.
func (s *BalanceSnapshot) Matches(owner string, chainID uint64) bool {
	return s != nil && s.OwnerAddress == owner && s.ChainID == chainID
}

// BalanceOf returns the recorded balance string for the given symbol,
// checking the native asset first.
func (s *BalanceSnapshot) BalanceOf(symbol string) (string, bool) {
	if s == nil {
		return "", false
	}
	if symbol == s.NativeSymbol {
		return s.NativeBalance, s.NativeBalance != ""
	}
	b, ok := s.TokenBalances[symbol]
	return b, ok
}
