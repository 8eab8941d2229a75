package configloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, int64(500), cfg.Transfers.EstimateDebounceMillis)
	assert.Equal(t, 20, cfg.Transfers.GasMarginPercent)
	assert.Equal(t, "1000000000000000", cfg.Transfers.NativeFeeReserveWei)
	assert.Equal(t, "data/tokens", cfg.TokensDir)
	assert.Positive(t, cfg.Balances.MaxConcurrentRequests)
	assert.Positive(t, cfg.Gateway.RateLimitPerSecond)
}

func TestLoadEnforcesGasMarginFloor(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
transfers:
  gasMarginPercent: 5
`))
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Transfers.GasMarginPercent)

	cfg, err = Load(writeConfig(t, `
transfers:
  gasMarginPercent: 35
`))
	require.NoError(t, err)
	assert.Equal(t, 35, cfg.Transfers.GasMarginPercent)
}

func TestLoadParsesNetworks(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  port: "9090"
networks:
  - chainId: 1
    name: "Ethereum"
    nativeSymbol: "ETH"
    nativeDecimals: 18
    rpcUrl: "http://localhost:8545"
  - chainId: 56
    name: "BNB Smart Chain"
    nativeSymbol: "BNB"
`))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	require.Len(t, cfg.Networks, 2)
	assert.Equal(t, uint64(1), cfg.Networks[0].ChainID)
	assert.Equal(t, "http://localhost:8545", cfg.Networks[0].RPCURL)
	assert.Equal(t, "BNB", cfg.Networks[1].NativeSymbol)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestLoadMalformedYAMLErrors(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [not: a: map"))
	assert.Error(t, err)
}
