package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"wallet_orchestrator/internal/app/port"
	"wallet_orchestrator/internal/domain/entity"
)

// tokenFile is the on-disk shape of one per-chain token catalog.
type tokenFile struct {
	ChainID uint64                   `yaml:"chainId"`
	Tokens  []entity.TokenDescriptor `yaml:"tokens"`
}

// TokenRegistryImpl implements port.TokenRegistry over catalogs loaded once
// at startup. Lookups are chain-scoped and never touch the network.
type TokenRegistryImpl struct {
	byChain  map[uint64][]entity.TokenDescriptor
	bySymbol map[uint64]map[string]entity.TokenDescriptor
}

// NewTokenRegistry scans dirPath for YAML catalogs, validates chain ids and
// builds the lookup maps. A missing directory yields an empty registry, not
// an error; a token whose chainId contradicts its file is skipped.
func NewTokenRegistry(dirPath string, logger port.Logger) (port.TokenRegistry, error) {
	reg := &TokenRegistryImpl{
		byChain:  make(map[uint64][]entity.TokenDescriptor),
		bySymbol: make(map[uint64]map[string]entity.TokenDescriptor),
	}

	files, err := os.ReadDir(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("Token directory does not exist, no tokens will be loaded", "path", dirPath)
			return reg, nil
		}
		return nil, fmt.Errorf("failed to read token directory %s: %w", dirPath, err)
	}

	for _, file := range files {
		name := strings.ToLower(file.Name())
		if file.IsDir() || (!strings.HasSuffix(name, ".yml") && !strings.HasSuffix(name, ".yaml")) {
			continue
		}

		filePath := filepath.Join(dirPath, file.Name())
		data, err := os.ReadFile(filePath)
		if err != nil {
			logger.Warn("Failed to read token file, skipping file.", "path", filePath, "error", err)
			continue
		}

		var tf tokenFile
		if err := yaml.Unmarshal(data, &tf); err != nil {
			logger.Warn("Failed to unmarshal tokens from file, skipping file.", "path", filePath, "error", err)
			continue
		}
		if tf.ChainID == 0 {
			logger.Warn("Token file has no chainId, skipping file.", "path", filePath)
			continue
		}

		loaded := 0
		for _, token := range tf.Tokens {
			if token.ChainID == 0 {
				token.ChainID = tf.ChainID
			}
			if token.ChainID != tf.ChainID {
				logger.Warn("Token has mismatched chainId in file, skipping token.",
					"file", filePath, "token_symbol", token.Symbol,
					"token_chain_id", token.ChainID, "file_chain_id", tf.ChainID)
				continue
			}
			if token.Symbol == "" || token.ContractAddress == "" {
				logger.Warn("Token missing symbol or contract address, skipping token.",
					"file", filePath, "token_symbol", token.Symbol)
				continue
			}
			reg.add(token)
			loaded++
		}
		logger.Info("Loaded token catalog", "file", file.Name(), "chain_id", tf.ChainID, "count", loaded)
	}

	return reg, nil
}

func (r *TokenRegistryImpl) add(token entity.TokenDescriptor) {
	r.byChain[token.ChainID] = append(r.byChain[token.ChainID], token)
	if r.bySymbol[token.ChainID] == nil {
		r.bySymbol[token.ChainID] = make(map[string]entity.TokenDescriptor)
	}
	r.bySymbol[token.ChainID][strings.ToUpper(token.Symbol)] = token
}

// DescriptorsFor returns the descriptors for a chain, possibly empty.
func (r *TokenRegistryImpl) DescriptorsFor(chainID uint64) []entity.TokenDescriptor {
	descriptors := r.byChain[chainID]
	out := make([]entity.TokenDescriptor, len(descriptors))
	copy(out, descriptors)
	return out
}

// Resolve looks up a descriptor by chain and symbol. Symbols are compared
// case-insensitively; the same symbol on two chains is a distinct asset.
func (r *TokenRegistryImpl) Resolve(chainID uint64, symbol string) (entity.TokenDescriptor, bool) {
	chainTokens, ok := r.bySymbol[chainID]
	if !ok {
		return entity.TokenDescriptor{}, false
	}
	descriptor, ok := chainTokens[strings.ToUpper(symbol)]
	return descriptor, ok
}
