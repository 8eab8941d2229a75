package registry

import (
	"sort"

	"wallet_orchestrator/internal/app/port"
	"wallet_orchestrator/internal/domain/entity"
	"wallet_orchestrator/internal/infrastructure/configloader"
)

// Predefined chain profiles. Adding a chain is a data change here or in the
// config file, never a code change elsewhere.
var ( //nolint:gochecknoglobals // Global for definitions
	Ethereum = entity.ChainProfile{
		ChainID:         1,
		Name:            "Ethereum Mainnet",
		NativeSymbol:    "ETH",
		NativeDecimals:  18,
		ExplorerBaseURL: "https://etherscan.io",
		RPCURL:          "https://ethereum-rpc.publicnode.com",
		FallbackRPCURLs: []string{"https://rpc.ankr.com/eth", "https://ethereum.publicnode.com"},
	}
	BSC = entity.ChainProfile{
		ChainID:         56,
		Name:            "BNB Smart Chain",
		NativeSymbol:    "BNB",
		NativeDecimals:  18,
		ExplorerBaseURL: "https://bscscan.com",
		RPCURL:          "https://1rpc.io/bnb",
		FallbackRPCURLs: []string{"https://bsc-dataseed2.binance.org/", "https://bsc.publicnode.com"},
	}
	Polygon = entity.ChainProfile{
		ChainID:         137,
		Name:            "Polygon PoS",
		NativeSymbol:    "POL",
		NativeDecimals:  18,
		ExplorerBaseURL: "https://polygonscan.com",
		RPCURL:          "https://polygon-rpc.com/",
		FallbackRPCURLs: []string{"https://rpc.ankr.com/polygon", "https://polygon.publicnode.com"},
	}
	Arbitrum = entity.ChainProfile{
		ChainID:         42161,
		Name:            "Arbitrum One",
		NativeSymbol:    "ETH",
		NativeDecimals:  18,
		ExplorerBaseURL: "https://arbiscan.io",
		RPCURL:          "https://arb1.arbitrum.io/rpc",
		FallbackRPCURLs: []string{"https://arbitrum.llamarpc.com", "https://arbitrum.publicnode.com"},
	}
	Base = entity.ChainProfile{
		ChainID:         8453,
		Name:            "Base Mainnet",
		NativeSymbol:    "ETH",
		NativeDecimals:  18,
		ExplorerBaseURL: "https://basescan.org",
		RPCURL:          "https://1rpc.io/base",
		FallbackRPCURLs: []string{"https://base.publicnode.com", "https://base.llamarpc.com"},
	}
	Avalanche = entity.ChainProfile{
		ChainID:         43114,
		Name:            "Avalanche C-Chain",
		NativeSymbol:    "AVAX",
		NativeDecimals:  18,
		ExplorerBaseURL: "https://snowtrace.io",
		RPCURL:          "https://api.avax.network/ext/bc/C/rpc",
		FallbackRPCURLs: []string{"https://avalanche.public-rpc.com", "https://rpc.ankr.com/avalanche"},
	}
)

// NetworkRegistryImpl implements port.NetworkRegistry over a fixed map.
type NetworkRegistryImpl struct {
	profiles map[uint64]entity.ChainProfile
	logger   port.Logger
}

// NewNetworkRegistry builds the registry from the built-in profiles overlaid
// with config entries. Config entries win over built-ins for the same chain.
func NewNetworkRegistry(entries []configloader.NetworkEntry, logger port.Logger) port.NetworkRegistry {
	profiles := make(map[uint64]entity.ChainProfile)
	for _, p := range []entity.ChainProfile{Ethereum, BSC, Polygon, Arbitrum, Base, Avalanche} {
		profiles[p.ChainID] = p
	}

	for _, e := range entries {
		if e.ChainID == 0 {
			continue
		}
		profile := entity.ChainProfile{
			ChainID:         e.ChainID,
			Name:            e.Name,
			NativeSymbol:    e.NativeSymbol,
			NativeDecimals:  e.NativeDecimals,
			ExplorerBaseURL: e.ExplorerBaseURL,
			RPCURL:          e.RPCURL,
			FallbackRPCURLs: e.FallbackRPCURLs,
		}
		if builtin, exists := profiles[e.ChainID]; exists {
			if profile.Name == "" {
				profile.Name = builtin.Name
			}
			if profile.NativeSymbol == "" {
				profile.NativeSymbol = builtin.NativeSymbol
			}
			if profile.NativeDecimals == 0 {
				profile.NativeDecimals = builtin.NativeDecimals
			}
			if profile.ExplorerBaseURL == "" {
				profile.ExplorerBaseURL = builtin.ExplorerBaseURL
			}
			if profile.RPCURL == "" {
				profile.RPCURL = builtin.RPCURL
			}
			if len(profile.FallbackRPCURLs) == 0 {
				profile.FallbackRPCURLs = builtin.FallbackRPCURLs
			}
		}
		if profile.NativeDecimals == 0 {
			profile.NativeDecimals = 18
		}
		profiles[e.ChainID] = profile
	}

	logger.Info("Network registry initialized", "profile_count", len(profiles))
	return &NetworkRegistryImpl{profiles: profiles, logger: logger}
}

// ProfileFor returns the profile for the chain id. Total: unrecognized ids
// yield a synthesized Unknown Network profile with an empty explorer.
func (r *NetworkRegistryImpl) ProfileFor(chainID uint64) entity.ChainProfile {
	if profile, ok := r.profiles[chainID]; ok {
		return profile
	}
	r.logger.Debug("Synthesizing profile for unrecognized chain", "chain_id", chainID)
	return entity.ChainProfile{
		ChainID:        chainID,
		Name:           entity.UnknownNetworkName,
		NativeSymbol:   "ETH",
		NativeDecimals: 18,
	}
}

// RPCFor returns the RPC endpoint for the chain, if one is known.
func (r *NetworkRegistryImpl) RPCFor(chainID uint64) (string, bool) {
	profile, ok := r.profiles[chainID]
	if !ok || profile.RPCURL == "" {
		return "", false
	}
	return profile.RPCURL, true
}

// AllProfiles returns every registered profile, ordered by chain id.
func (r *NetworkRegistryImpl) AllProfiles() []entity.ChainProfile {
	all := make([]entity.ChainProfile, 0, len(r.profiles))
	for _, p := range r.profiles {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ChainID < all[j].ChainID })
	return all
}
