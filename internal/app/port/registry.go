package port

import "wallet_orchestrator/internal/domain/entity"

// NetworkRegistry provides chain profiles. Lookups are total: an
// unrecognized chain id yields a synthesized "Unknown Network" profile.
type NetworkRegistry interface {
	ProfileFor(chainID uint64) entity.ChainProfile
	// RPCFor returns the RPC endpoint for the chain, if one is known.
	RPCFor(chainID uint64) (string, bool)
	AllProfiles() []entity.ChainProfile
}

// TokenRegistry provides per-chain token descriptors. Pure lookup, no
// network calls.
type TokenRegistry interface {
	DescriptorsFor(chainID uint64) []entity.TokenDescriptor
	Resolve(chainID uint64, symbol string) (entity.TokenDescriptor, bool)
}
