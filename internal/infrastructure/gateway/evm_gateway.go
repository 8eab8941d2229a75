package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"

	"wallet_orchestrator/internal/app/port"
	"wallet_orchestrator/internal/domain/entity"
	"wallet_orchestrator/internal/infrastructure/configloader"
	"wallet_orchestrator/internal/pkg/metrics"
)

const receiptPollInterval = 3 * time.Second

// EVMGateway implements port.WalletProviderGateway against an EVM
// provider endpoint. Signing stays with the provider; the gateway never
// holds key material.
type EVMGateway struct {
	ethClient  *ethclient.Client
	rpcTimeout time.Duration
	limiter    *rate.Limiter
	logger     port.Logger

	pollInterval time.Duration

	mu           sync.Mutex
	subs         []subscription
	nextSubID    int
	lastAccounts []string
	lastChainHex string
	pollFailures int

	abiCache sync.Map // abiJSON -> abi.ABI
}

type subscription struct {
	id      int
	event   entity.ProviderEvent
	handler port.EventHandler
}

// NewEVMGateway dials the configured endpoint, trying fallbacks in order.
func NewEVMGateway(cfg configloader.GatewayConfig, logger port.Logger) (*EVMGateway, error) {
	rpcURLs := append([]string{cfg.RPCURL}, cfg.FallbackRPCURLs...)
	connectTimeout := time.Duration(cfg.ConnectTimeoutMillis) * time.Millisecond

	var lastErr error
	for _, rpcURL := range rpcURLs {
		if rpcURL == "" {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		client, err := ethclient.DialContext(ctx, rpcURL)
		cancel()
		if err == nil {
			logger.Info("Connected to provider endpoint", "rpc_url", rpcURL)
			return &EVMGateway{
				ethClient:    client,
				rpcTimeout:   time.Duration(cfg.RequestTimeoutMillis) * time.Millisecond,
				limiter:      rate.NewLimiter(rate.Limit(cfg.RateLimitPerSecond), cfg.RateLimitBurst),
				logger:       logger,
				pollInterval: time.Duration(cfg.EventPollMillis) * time.Millisecond,
			}, nil
		}
		lastErr = fmt.Errorf("failed to connect to RPC %s: %w", rpcURL, err)
		logger.Warn("Provider endpoint unreachable, trying next", "rpc_url", rpcURL, "error", err)
	}
	return nil, fmt.Errorf("all provider connection attempts failed: %w", lastErr)
}

// IsAvailable reports whether a provider endpoint was dialed.
func (g *EVMGateway) IsAvailable() bool {
	return g != nil && g.ethClient != nil
}

func (g *EVMGateway) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, g.rpcTimeout)
}

func (g *EVMGateway) before(ctx context.Context, method string) error {
	metrics.GatewayCalls.WithLabelValues(method).Inc()
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter interrupted for %s: %w", method, err)
	}
	return nil
}

// RequestAccounts prompts the provider for account access.
func (g *EVMGateway) RequestAccounts(ctx context.Context) ([]string, error) {
	if err := g.before(ctx, "requestAccounts"); err != nil {
		return nil, err
	}
	callCtx, cancel := g.callCtx(ctx)
	defer cancel()

	var accounts []string
	if err := g.ethClient.Client().CallContext(callCtx, &accounts, "eth_requestAccounts"); err != nil {
		// Plain nodes expose only eth_accounts; treat "method not found" as
		// the silent path rather than a hard failure.
		if strings.Contains(strings.ToLower(err.Error()), "method not") {
			return g.GetAccounts(ctx)
		}
		metrics.GatewayCallErrors.WithLabelValues("requestAccounts").Inc()
		return nil, classified(err)
	}
	return accounts, nil
}

// GetAccounts is the silent account query used by auto-reconnect.
func (g *EVMGateway) GetAccounts(ctx context.Context) ([]string, error) {
	if err := g.before(ctx, "getAccounts"); err != nil {
		return nil, err
	}
	callCtx, cancel := g.callCtx(ctx)
	defer cancel()

	var accounts []string
	if err := g.ethClient.Client().CallContext(callCtx, &accounts, "eth_accounts"); err != nil {
		metrics.GatewayCallErrors.WithLabelValues("getAccounts").Inc()
		return nil, classified(err)
	}
	return accounts, nil
}

// GetChainID returns the provider's active chain id.
func (g *EVMGateway) GetChainID(ctx context.Context) (uint64, error) {
	if err := g.before(ctx, "getChainId"); err != nil {
		return 0, err
	}
	callCtx, cancel := g.callCtx(ctx)
	defer cancel()

	chainID, err := g.ethClient.ChainID(callCtx)
	if err != nil {
		metrics.GatewayCallErrors.WithLabelValues("getChainId").Inc()
		return 0, classified(err)
	}
	return chainID.Uint64(), nil
}

// GetNativeBalance returns the native balance in the smallest unit.
func (g *EVMGateway) GetNativeBalance(ctx context.Context, address string) (*big.Int, error) {
	if err := g.before(ctx, "getNativeBalance"); err != nil {
		return nil, err
	}
	callCtx, cancel := g.callCtx(ctx)
	defer cancel()

	balance, err := g.ethClient.BalanceAt(callCtx, common.HexToAddress(address), nil)
	if err != nil {
		metrics.GatewayCallErrors.WithLabelValues("getNativeBalance").Inc()
		return nil, classified(fmt.Errorf("failed to fetch native balance for %s: %w", address, err))
	}
	return balance, nil
}

// EstimateGas returns the provider's raw gas estimate for the transaction.
func (g *EVMGateway) EstimateGas(ctx context.Context, params entity.TxParams) (uint64, error) {
	if err := g.before(ctx, "estimateGas"); err != nil {
		return 0, err
	}
	callCtx, cancel := g.callCtx(ctx)
	defer cancel()

	msg := ethereum.CallMsg{
		From:  common.HexToAddress(params.From),
		Value: params.ValueWei,
		Data:  params.Data,
	}
	if params.To != "" {
		to := common.HexToAddress(params.To)
		msg.To = &to
	}
	gas, err := g.ethClient.EstimateGas(callCtx, msg)
	if err != nil {
		metrics.GatewayCallErrors.WithLabelValues("estimateGas").Inc()
		return 0, classified(err)
	}
	return gas, nil
}

// GetFeeData returns the provider's current gas price quote.
func (g *EVMGateway) GetFeeData(ctx context.Context) (entity.FeeData, error) {
	if err := g.before(ctx, "getFeeData"); err != nil {
		return entity.FeeData{}, err
	}
	callCtx, cancel := g.callCtx(ctx)
	defer cancel()

	gasPrice, err := g.ethClient.SuggestGasPrice(callCtx)
	if err != nil {
		metrics.GatewayCallErrors.WithLabelValues("getFeeData").Inc()
		return entity.FeeData{}, classified(err)
	}
	return entity.FeeData{GasPriceWei: gasPrice}, nil
}

// SupportsTransfers reports whether the provider accepts submissions. The
// endpoint owns the accounts, so a dialed provider implies a signing path;
// a missing capability is surfaced as an error on submission, never
// simulated around.
func (g *EVMGateway) SupportsTransfers() bool {
	return g.IsAvailable()
}

func (g *EVMGateway) txArgs(params entity.TxParams) map[string]any {
	args := map[string]any{
		"from": params.From,
	}
	if params.To != "" {
		args["to"] = params.To
	}
	if params.ValueWei != nil && params.ValueWei.Sign() > 0 {
		args["value"] = hexutil.EncodeBig(params.ValueWei)
	}
	if len(params.Data) > 0 {
		args["data"] = hexutil.Encode(params.Data)
	}
	if params.GasLimit > 0 {
		args["gas"] = hexutil.EncodeUint64(params.GasLimit)
	}
	if params.GasPriceWei != nil && params.GasPriceWei.Sign() > 0 {
		args["gasPrice"] = hexutil.EncodeBig(params.GasPriceWei)
	}
	return args
}

// SendTransaction delegates signing and submission to the provider and
// returns the transaction handle.
func (g *EVMGateway) SendTransaction(ctx context.Context, params entity.TxParams) (entity.TxHandle, error) {
	if err := g.before(ctx, "sendTransaction"); err != nil {
		return entity.TxHandle{}, err
	}
	callCtx, cancel := g.callCtx(ctx)
	defer cancel()

	var txHash common.Hash
	if err := g.ethClient.Client().CallContext(callCtx, &txHash, "eth_sendTransaction", g.txArgs(params)); err != nil {
		metrics.GatewayCallErrors.WithLabelValues("sendTransaction").Inc()
		return entity.TxHandle{}, classified(err)
	}
	return entity.TxHandle{Hash: txHash.Hex()}, nil
}

// AwaitConfirmation blocks until the network acknowledges inclusion. No
// local timeout: the wait is bounded only by ctx.
func (g *EVMGateway) AwaitConfirmation(ctx context.Context, handle entity.TxHandle) (entity.TxReceipt, error) {
	metrics.GatewayCalls.WithLabelValues("awaitConfirmation").Inc()
	hash := common.HexToHash(handle.Hash)
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		if err := g.limiter.Wait(ctx); err != nil {
			return entity.TxReceipt{}, classified(err)
		}
		receipt, err := g.ethClient.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return entity.TxReceipt{
				Hash:        handle.Hash,
				Succeeded:   receipt.Status == types.ReceiptStatusSuccessful,
				BlockNumber: receipt.BlockNumber.Uint64(),
				GasUsed:     receipt.GasUsed,
			}, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			g.logger.Warn("Receipt lookup failed, retrying", "tx_hash", handle.Hash, "error", err)
		}

		select {
		case <-ctx.Done():
			return entity.TxReceipt{}, classified(ctx.Err())
		case <-ticker.C:
		}
	}
}

func (g *EVMGateway) parsedABI(abiJSON string) (abi.ABI, error) {
	if cached, ok := g.abiCache.Load(abiJSON); ok {
		return cached.(abi.ABI), nil
	}
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse ABI fragment: %w", err)
	}
	g.abiCache.Store(abiJSON, parsed)
	return parsed, nil
}

// CallContractRead executes a read-only contract call and unpacks the result.
func (g *EVMGateway) CallContractRead(ctx context.Context, contractAddress string, abiJSON string, method string, args ...any) ([]any, error) {
	if err := g.before(ctx, "callContractRead"); err != nil {
		return nil, err
	}
	parsed, err := g.parsedABI(abiJSON)
	if err != nil {
		return nil, err
	}
	callData, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", method, err)
	}

	callCtx, cancel := g.callCtx(ctx)
	defer cancel()

	to := common.HexToAddress(contractAddress)
	raw, err := g.ethClient.CallContract(callCtx, ethereum.CallMsg{To: &to, Data: callData}, nil)
	if err != nil {
		metrics.GatewayCallErrors.WithLabelValues("callContractRead").Inc()
		return nil, classified(fmt.Errorf("contract read %s on %s failed: %w", method, contractAddress, err))
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("contract read %s on %s returned no data", method, contractAddress)
	}
	unpacked, err := parsed.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s result: %w. Raw: %s", method, err, hexutil.Encode(raw))
	}
	return unpacked, nil
}

// CallContractWrite packs a state-changing call and submits it through the
// provider's signing path.
func (g *EVMGateway) CallContractWrite(ctx context.Context, contractAddress string, abiJSON string, method string, args []any, overrides entity.TxParams) (entity.TxHandle, error) {
	parsed, err := g.parsedABI(abiJSON)
	if err != nil {
		return entity.TxHandle{}, err
	}
	callData, err := parsed.Pack(method, args...)
	if err != nil {
		return entity.TxHandle{}, fmt.Errorf("failed to pack %s call: %w", method, err)
	}

	params := overrides
	params.To = contractAddress
	params.Data = callData
	params.ValueWei = nil
	return g.SendTransaction(ctx, params)
}

// SwitchChain asks the provider to change its active chain.
func (g *EVMGateway) SwitchChain(ctx context.Context, chainID uint64) error {
	if err := g.before(ctx, "switchChain"); err != nil {
		return err
	}
	callCtx, cancel := g.callCtx(ctx)
	defer cancel()

	param := map[string]any{"chainId": hexutil.EncodeUint64(chainID)}
	if err := g.ethClient.Client().CallContext(callCtx, nil, "wallet_switchEthereumChain", param); err != nil {
		metrics.GatewayCallErrors.WithLabelValues("switchChain").Inc()
		if ChainUnrecognized(err) {
			return entity.Fail(entity.ErrNetworkSwitchFailed, err)
		}
		return classified(err)
	}
	return nil
}

// AddChain registers a chain profile with the provider, the fallback after a
// chain-unrecognized SwitchChain rejection.
func (g *EVMGateway) AddChain(ctx context.Context, profile entity.ChainProfile) error {
	if err := g.before(ctx, "addChain"); err != nil {
		return err
	}
	callCtx, cancel := g.callCtx(ctx)
	defer cancel()

	param := map[string]any{
		"chainId":   hexutil.EncodeUint64(profile.ChainID),
		"chainName": profile.Name,
		"nativeCurrency": map[string]any{
			"name":     profile.NativeSymbol,
			"symbol":   profile.NativeSymbol,
			"decimals": profile.NativeDecimals,
		},
	}
	if profile.RPCURL != "" {
		param["rpcUrls"] = append([]string{profile.RPCURL}, profile.FallbackRPCURLs...)
	}
	if profile.ExplorerBaseURL != "" {
		param["blockExplorerUrls"] = []string{profile.ExplorerBaseURL}
	}

	if err := g.ethClient.Client().CallContext(callCtx, nil, "wallet_addEthereumChain", param); err != nil {
		metrics.GatewayCallErrors.WithLabelValues("addChain").Inc()
		return classified(err)
	}
	return nil
}
