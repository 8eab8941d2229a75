package service

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"wallet_orchestrator/internal/app/port"
	"wallet_orchestrator/internal/domain/entity"
	"wallet_orchestrator/internal/infrastructure/configloader"
	"wallet_orchestrator/internal/pkg/utils"
)

// BalanceAggregatorImpl implements port.BalanceAggregator. Refreshes are not
// serialized against each other; the caller owns the freshness check on the
// resulting snapshot.
type BalanceAggregatorImpl struct {
	gateway        port.WalletProviderGateway
	networks       port.NetworkRegistry
	tokens         port.TokenRegistry
	logger         port.Logger
	maxConcurrent  int
	refreshTimeout time.Duration
	snapshots      *gocache.Cache
}

// NewBalanceAggregator creates an aggregator with bounded token fan-out and
// a TTL cache of the last snapshot per (owner, chain) pair.
func NewBalanceAggregator(
	gw port.WalletProviderGateway,
	networks port.NetworkRegistry,
	tokens port.TokenRegistry,
	l port.Logger,
	cfg configloader.BalancesConfig,
) *BalanceAggregatorImpl {
	maxConcurrent := cfg.MaxConcurrentRequests
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	refreshTimeout := time.Duration(cfg.RefreshTimeoutMillis) * time.Millisecond
	if refreshTimeout <= 0 {
		refreshTimeout = 15 * time.Second
	}
	return &BalanceAggregatorImpl{
		gateway:        gw,
		networks:       networks,
		tokens:         tokens,
		logger:         l,
		maxConcurrent:  maxConcurrent,
		refreshTimeout: refreshTimeout,
		snapshots: gocache.New(
			time.Duration(cfg.SnapshotTTLMinutes)*time.Minute,
			time.Duration(cfg.CacheCleanupMinutes)*time.Minute,
		),
	}
}

func snapshotKey(owner string, chainID uint64) string {
	return fmt.Sprintf("%s-%d", owner, chainID)
}

// Cached returns the last snapshot produced for the pair, if still within
// its TTL.
func (a *BalanceAggregatorImpl) Cached(owner string, chainID uint64) (*entity.BalanceSnapshot, bool) {
	if cached, ok := a.snapshots.Get(snapshotKey(owner, chainID)); ok {
		return cached.(*entity.BalanceSnapshot), true
	}
	return nil, false
}

// Refresh polls the native balance first, then every token on the chain
// independently. One bad asset never blanks the whole view: each failure is
// recorded per asset and the rest of the snapshot is still produced. An
// error is returned only when the poll as a whole was cut short.
func (a *BalanceAggregatorImpl) Refresh(ctx context.Context, ownerAddress string, chainID uint64) (*entity.BalanceSnapshot, error) {
	refreshCtx, cancel := context.WithTimeout(ctx, a.refreshTimeout)
	defer cancel()

	profile := a.networks.ProfileFor(chainID)
	snapshot := &entity.BalanceSnapshot{
		OwnerAddress:   ownerAddress,
		ChainID:        chainID,
		AsOf:           time.Now().UTC(),
		NativeSymbol:   profile.NativeSymbol,
		TokenBalances:  make(map[string]string),
		PerAssetErrors: make(map[string]entity.ErrorKind),
	}

	a.logger.Debug("Refreshing balances", "owner", ownerAddress, "chain_id", chainID, "network", profile.Name)

	nativeBalance, err := a.gateway.GetNativeBalance(refreshCtx, ownerAddress)
	if err != nil {
		snapshot.PerAssetErrors[profile.NativeSymbol] = failureKind(err)
		a.logger.Warn("Native balance fetch failed", "owner", ownerAddress, "chain_id", chainID, "error", err)
	} else {
		formatted, fmtErr := utils.FormatBigInt(nativeBalance, profile.NativeDecimals)
		if fmtErr != nil {
			snapshot.PerAssetErrors[profile.NativeSymbol] = entity.ErrUnknown
		} else {
			snapshot.NativeBalance = formatted
		}
	}

	descriptors := a.tokens.DescriptorsFor(chainID)
	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(refreshCtx)
	group.SetLimit(a.maxConcurrent)

	for _, descriptor := range descriptors {
		group.Go(func() error {
			balance, tokenErr := a.tokenBalance(groupCtx, descriptor, ownerAddress)
			mu.Lock()
			defer mu.Unlock()
			if tokenErr != nil {
				snapshot.PerAssetErrors[descriptor.Symbol] = failureKind(tokenErr)
				a.logger.Warn("Token balance fetch failed",
					"owner", ownerAddress, "chain_id", chainID,
					"token_symbol", descriptor.Symbol, "token_address", descriptor.ContractAddress,
					"error", tokenErr)
				return nil // per-asset failures never abort the group
			}
			snapshot.TokenBalances[descriptor.Symbol] = balance
			return nil
		})
	}
	_ = group.Wait()

	if ctx.Err() != nil {
		return nil, fmt.Errorf("balance refresh interrupted for %s on chain %d: %w", ownerAddress, chainID, ctx.Err())
	}

	a.snapshots.Set(snapshotKey(ownerAddress, chainID), snapshot, gocache.DefaultExpiration)
	a.logger.Debug("Balance refresh complete",
		"owner", ownerAddress, "chain_id", chainID,
		"token_count", len(snapshot.TokenBalances), "error_count", len(snapshot.PerAssetErrors))
	return snapshot, nil
}

func (a *BalanceAggregatorImpl) tokenBalance(ctx context.Context, descriptor entity.TokenDescriptor, ownerAddress string) (string, error) {
	unpacked, err := a.gateway.CallContractRead(ctx, descriptor.ContractAddress, erc20ReadABI, "balanceOf", utils.HexToAddress(ownerAddress))
	if err != nil {
		return "", err
	}
	if len(unpacked) == 0 {
		return "", fmt.Errorf("balanceOf returned no data for %s", descriptor.Symbol)
	}
	balance, ok := unpacked[0].(*big.Int)
	if !ok {
		return "", fmt.Errorf("failed to assert balanceOf result to *big.Int for %s. Got: %T", descriptor.Symbol, unpacked[0])
	}
	return utils.FormatBigInt(balance, descriptor.Decimals)
}

func failureKind(err error) entity.ErrorKind {
	if kind := entity.KindOf(err); kind != "" {
		return kind
	}
	return entity.ErrUnknown
}
