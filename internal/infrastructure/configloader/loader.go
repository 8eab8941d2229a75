package configloader

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds server-specific configurations.
type ServerConfig struct {
	Port         string `yaml:"port"`
	ReadTimeout  int    `yaml:"readTimeout"`
	WriteTimeout int    `yaml:"writeTimeout"`
	IdleTimeout  int    `yaml:"idleTimeout"`
}

// LoggingConfig holds logging-specific configurations.
type LoggingConfig struct {
	Level string `yaml:"level"` // e.g., "debug", "info", "warn", "error"
}

// GatewayConfig holds wallet provider gateway configurations.
type GatewayConfig struct {
	RPCURL               string   `yaml:"rpcURL"`
	FallbackRPCURLs      []string `yaml:"fallbackRpcURLs"`
	RequestTimeoutMillis int64    `yaml:"requestTimeoutMillis"`
	ConnectTimeoutMillis int64    `yaml:"connectTimeoutMillis"`
	EventPollMillis      int64    `yaml:"eventPollMillis"`
	RateLimitPerSecond   int      `yaml:"rateLimitPerSecond"`
	RateLimitBurst       int      `yaml:"rateLimitBurst"`
}

// BalancesConfig holds configuration for the balance aggregator.
type BalancesConfig struct {
	MaxConcurrentRequests int   `yaml:"maxConcurrentRequests"`
	SnapshotTTLMinutes    int   `yaml:"snapshotTTLMinutes"`
	CacheCleanupMinutes   int   `yaml:"cacheCleanupMinutes"`
	RefreshTimeoutMillis  int64 `yaml:"refreshTimeoutMillis"`
}

// TransfersConfig holds configuration for the transfer orchestrator.
type TransfersConfig struct {
	GasMarginPercent       int    `yaml:"gasMarginPercent"`
	EstimateDebounceMillis int64  `yaml:"estimateDebounceMillis"`
	NativeFeeReserveWei    string `yaml:"nativeFeeReserveWei"`
}

// PriceFeedConfig holds configuration for the advisory price feed client.
type PriceFeedConfig struct {
	BaseURL              string `yaml:"baseURL"`
	RequestTimeoutMillis int64  `yaml:"requestTimeoutMillis"`
	CacheTTLMinutes      int    `yaml:"cacheTTLMinutes"`
	MaxSymbolsPerRequest int    `yaml:"maxSymbolsPerRequest"`
}

// NetworkEntry describes one chain profile in the configuration file.
type NetworkEntry struct {
	ChainID         uint64   `yaml:"chainId"`
	Name            string   `yaml:"name"`
	NativeSymbol    string   `yaml:"nativeSymbol"`
	NativeDecimals  uint8    `yaml:"nativeDecimals"`
	ExplorerBaseURL string   `yaml:"explorerBaseUrl"`
	RPCURL          string   `yaml:"rpcUrl"`
	FallbackRPCURLs []string `yaml:"fallbackRpcUrls"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Balances  BalancesConfig  `yaml:"balances"`
	Transfers TransfersConfig `yaml:"transfers"`
	PriceFeed PriceFeedConfig `yaml:"priceFeed"`
	Networks  []NetworkEntry  `yaml:"networks"`
	TokensDir string          `yaml:"tokensDir"`
}

// Load reads the YAML configuration file from the given path, unmarshals it
// and applies defaults for unset values.
func Load(path string) (*Config, error) {
	logrus.Infof("Loading configuration from path: %s", path)
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.Errorf("Failed to read config file %s: %v", path, err)
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logrus.Errorf("Failed to unmarshal config data from %s: %v", path, err)
		return nil, fmt.Errorf("failed to unmarshal config data from %s: %w", path, err)
	}

	applyDefaults(&cfg)

	for _, network := range cfg.Networks {
		if network.ChainID == 0 {
			logrus.Warnf("Network %q is missing chainId in config; it will be unreachable", network.Name)
		}
		if network.RPCURL == "" {
			logrus.Warnf("Network %q (chain %d) has no rpcUrl; balance polling for it will fail", network.Name, network.ChainID)
		}
	}

	logrus.Info("Configuration loaded successfully.")
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if cfg.Gateway.RequestTimeoutMillis <= 0 {
		cfg.Gateway.RequestTimeoutMillis = 10000
	}
	if cfg.Gateway.ConnectTimeoutMillis <= 0 {
		cfg.Gateway.ConnectTimeoutMillis = 10000
	}
	if cfg.Gateway.EventPollMillis <= 0 {
		cfg.Gateway.EventPollMillis = 4000
	}
	if cfg.Gateway.RateLimitPerSecond <= 0 {
		cfg.Gateway.RateLimitPerSecond = 20
	}
	if cfg.Gateway.RateLimitBurst <= 0 {
		cfg.Gateway.RateLimitBurst = 40
	}

	if cfg.Balances.MaxConcurrentRequests <= 0 {
		cfg.Balances.MaxConcurrentRequests = 8
	}
	if cfg.Balances.SnapshotTTLMinutes <= 0 {
		cfg.Balances.SnapshotTTLMinutes = 5
	}
	if cfg.Balances.CacheCleanupMinutes <= 0 {
		cfg.Balances.CacheCleanupMinutes = 10
	}
	if cfg.Balances.RefreshTimeoutMillis <= 0 {
		cfg.Balances.RefreshTimeoutMillis = 15000
	}

	if cfg.Transfers.GasMarginPercent < 20 {
		// Token transfer gas cost is data-dependent; the margin floor keeps
		// on-chain out-of-gas failures rare.
		cfg.Transfers.GasMarginPercent = 20
	}
	if cfg.Transfers.EstimateDebounceMillis <= 0 {
		cfg.Transfers.EstimateDebounceMillis = 500
	}
	if cfg.Transfers.NativeFeeReserveWei == "" {
		cfg.Transfers.NativeFeeReserveWei = "1000000000000000" // 0.001 in 18-decimal native units
	}

	if cfg.PriceFeed.BaseURL == "" {
		cfg.PriceFeed.BaseURL = "https://api.dexscreener.com"
	}
	if cfg.PriceFeed.RequestTimeoutMillis <= 0 {
		cfg.PriceFeed.RequestTimeoutMillis = 10000
	}
	if cfg.PriceFeed.CacheTTLMinutes <= 0 {
		cfg.PriceFeed.CacheTTLMinutes = 5
	}
	if cfg.PriceFeed.MaxSymbolsPerRequest <= 0 {
		cfg.PriceFeed.MaxSymbolsPerRequest = 30
	}

	if cfg.TokensDir == "" {
		cfg.TokensDir = "data/tokens"
	}
}
