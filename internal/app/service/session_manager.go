package service

import (
	"context"
	"sync"

	"wallet_orchestrator/internal/app/port"
	"wallet_orchestrator/internal/domain/entity"
	"wallet_orchestrator/internal/pkg/metrics"
	"wallet_orchestrator/internal/pkg/utils"
)

// Event stream topics published by the session manager.
const (
	TopicSession  = "session"
	TopicBalances = "balances"
)

// SessionManagerImpl implements port.SessionManager. It is the only writer
// of the wallet session; every other component sees read copies.
type SessionManagerImpl struct {
	gateway  port.WalletProviderGateway
	networks port.NetworkRegistry
	balances port.BalanceAggregator
	events   port.EventSink
	logger   port.Logger

	mu      sync.Mutex
	session entity.WalletSession
	latest  *entity.BalanceSnapshot
	unsubs  []func()
	// epoch is bumped by every Disconnect so a connect resolving across the
	// provider prompt cannot resurrect a session that was reset meanwhile.
	epoch uint64

	// rootCtx bounds background work triggered by provider events, which
	// outlives any single caller's context.
	rootCtx context.Context
}

// NewSessionManager creates a session manager in the Disconnected state.
// Call Start to begin folding provider events into the session.
func NewSessionManager(
	gw port.WalletProviderGateway,
	networks port.NetworkRegistry,
	balances port.BalanceAggregator,
	events port.EventSink,
	l port.Logger,
) *SessionManagerImpl {
	return &SessionManagerImpl{
		gateway:  gw,
		networks: networks,
		balances: balances,
		events:   events,
		logger:   l,
		session:  entity.WalletSession{ConnectionState: entity.Disconnected},
		rootCtx:  context.Background(),
	}
}

// Start subscribes to provider events. Handlers are invoked by the gateway
// in arrival order; the session mutation happens synchronously in the
// handler and only the balance poll is detached.
func (m *SessionManagerImpl) Start(ctx context.Context) {
	m.mu.Lock()
	m.rootCtx = ctx
	m.mu.Unlock()

	if m.gateway == nil {
		m.logger.Warn("No wallet provider gateway present; session events disabled")
		return
	}
	m.unsubs = append(m.unsubs,
		m.gateway.Subscribe(entity.EventAccountsChanged, m.onAccountsChanged),
		m.gateway.Subscribe(entity.EventChainChanged, m.onChainChanged),
		m.gateway.Subscribe(entity.EventDisconnect, func(entity.ProviderEventPayload) {
			m.onProviderDisconnected()
		}),
	)
	m.logger.Info("Session manager subscribed to provider events")
}

// Stop unsubscribes the provider event handlers.
func (m *SessionManagerImpl) Stop() {
	for _, unsub := range m.unsubs {
		unsub()
	}
	m.unsubs = nil
}

// Session returns a read copy of the current session state.
func (m *SessionManagerImpl) Session() entity.WalletSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// LatestBalances returns the most recently accepted snapshot, or nil.
func (m *SessionManagerImpl) LatestBalances() *entity.BalanceSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest
}

func (m *SessionManagerImpl) setStateLocked(state entity.ConnectionState) {
	if m.session.ConnectionState != state {
		metrics.SessionTransitions.WithLabelValues(string(state)).Inc()
	}
	m.session.ConnectionState = state
}

func (m *SessionManagerImpl) publishSession() {
	if m.events != nil {
		m.events.Publish(TopicSession, m.Session())
	}
}

// Connect requests account access from the gateway and, on success, records
// the active account and chain and triggers one balance poll.
func (m *SessionManagerImpl) Connect(ctx context.Context) (entity.WalletSession, error) {
	if m.gateway == nil || !m.gateway.IsAvailable() {
		m.mu.Lock()
		m.session.LastError = entity.ErrProviderUnavailable
		session := m.session
		m.mu.Unlock()
		return session, entity.Failf(entity.ErrProviderUnavailable, "no wallet provider gateway present")
	}

	m.mu.Lock()
	switch m.session.ConnectionState {
	case entity.Connected:
		session := m.session
		m.mu.Unlock()
		return session, nil
	case entity.Connecting:
		session := m.session
		m.mu.Unlock()
		return session, entity.Failf(entity.ErrUnknown, "connect already in progress")
	}
	m.setStateLocked(entity.Connecting)
	startEpoch := m.epoch
	m.mu.Unlock()
	m.publishSession()

	// Connecting never resolves by abandonment: the gateway call is awaited
	// to completion or failure.
	accounts, err := m.gateway.RequestAccounts(ctx)
	if err != nil {
		return m.failConnect(entity.KindOf(err), err)
	}
	if len(accounts) == 0 {
		return m.failConnect(entity.ErrNoAccounts,
			entity.Failf(entity.ErrNoAccounts, "provider returned an empty account list"))
	}

	chainID, err := m.gateway.GetChainID(ctx)
	if err != nil {
		return m.failConnect(entity.KindOf(err), err)
	}

	m.mu.Lock()
	// The prompt can sit open for minutes; a Disconnect or provider
	// disconnect arriving in that window wins over the resolving connect.
	if m.session.ConnectionState != entity.Connecting || m.epoch != startEpoch {
		session := m.session
		m.mu.Unlock()
		m.logger.Info("Discarding connect result, session was reset while the prompt was open")
		return session, entity.Failf(entity.ErrNotConnected, "session was reset while connecting")
	}
	m.setStateLocked(entity.Connected)
	m.session.AccountAddress = accounts[0]
	m.session.ChainID = chainID
	m.session.LastError = ""
	session := m.session
	m.mu.Unlock()

	profile := m.networks.ProfileFor(chainID)
	m.logger.Info("Wallet connected", "account", session.AccountAddress, "chain_id", chainID, "network", profile.Name)
	m.publishSession()
	m.RefreshBalances(ctx)
	return session, nil
}

func (m *SessionManagerImpl) failConnect(kind entity.ErrorKind, err error) (entity.WalletSession, error) {
	m.mu.Lock()
	m.setStateLocked(entity.Disconnected)
	m.session.LastError = kind
	session := m.session
	m.mu.Unlock()

	m.logger.Warn("Wallet connect failed", "kind", string(kind), "error", err)
	m.publishSession()
	return session, err
}

// Disconnect resets the session locally. Idempotent; the injected provider
// has no reliable programmatic disconnect, so the gateway is not contacted.
func (m *SessionManagerImpl) Disconnect() {
	m.mu.Lock()
	m.epoch++
	wasConnected := m.session.ConnectionState != entity.Disconnected
	m.setStateLocked(entity.Disconnected)
	m.session.AccountAddress = ""
	m.session.ChainID = 0
	m.session.LastError = ""
	m.latest = nil
	m.mu.Unlock()

	if wasConnected {
		m.logger.Info("Wallet disconnected")
		m.publishSession()
	}
}

// AutoReconnect restores a previously authorized session without prompting.
// Best-effort: every failure is swallowed after logging.
func (m *SessionManagerImpl) AutoReconnect(ctx context.Context) {
	if m.gateway == nil || !m.gateway.IsAvailable() {
		m.logger.Debug("Auto-reconnect skipped: no provider gateway")
		return
	}

	m.mu.Lock()
	if m.session.ConnectionState != entity.Disconnected {
		m.mu.Unlock()
		return
	}
	startEpoch := m.epoch
	m.mu.Unlock()

	accounts, err := m.gateway.GetAccounts(ctx)
	if err != nil {
		m.logger.Debug("Auto-reconnect silent account query failed", "error", err)
		return
	}
	if len(accounts) == 0 {
		m.logger.Debug("Auto-reconnect found no authorized accounts")
		return
	}

	chainID, err := m.gateway.GetChainID(ctx)
	if err != nil {
		m.logger.Debug("Auto-reconnect chain query failed", "error", err)
		return
	}

	m.mu.Lock()
	// A Connect or Disconnect that happened while the silent queries ran
	// supersedes the restoration.
	if m.session.ConnectionState != entity.Disconnected || m.epoch != startEpoch {
		m.mu.Unlock()
		m.logger.Debug("Discarding auto-reconnect result, session changed while resolving")
		return
	}
	m.setStateLocked(entity.Connected)
	m.session.AccountAddress = accounts[0]
	m.session.ChainID = chainID
	m.session.LastError = ""
	session := m.session
	m.mu.Unlock()

	m.logger.Info("Session restored via auto-reconnect", "account", session.AccountAddress, "chain_id", chainID)
	m.publishSession()
	m.RefreshBalances(ctx)
}

// SwitchChain asks the provider to change the active chain, registering the
// chain profile first when the provider does not recognize it.
func (m *SessionManagerImpl) SwitchChain(ctx context.Context, chainID uint64) error {
	if m.gateway == nil || !m.gateway.IsAvailable() {
		return entity.Failf(entity.ErrProviderUnavailable, "no wallet provider gateway present")
	}

	err := m.gateway.SwitchChain(ctx, chainID)
	if err != nil && entity.KindOf(err) == entity.ErrNetworkSwitchFailed {
		profile := m.networks.ProfileFor(chainID)
		m.logger.Info("Provider does not recognize chain, registering it", "chain_id", chainID, "network", profile.Name)
		if addErr := m.gateway.AddChain(ctx, profile); addErr != nil {
			return entity.Fail(entity.ErrNetworkSwitchFailed, addErr)
		}
		err = m.gateway.SwitchChain(ctx, chainID)
	}
	if err != nil {
		return entity.Fail(entity.ErrNetworkSwitchFailed, err)
	}

	// The provider will also emit chainChanged; folding the new chain in now
	// keeps callers from reading a stale session in the interim.
	m.onChainChangedID(chainID)
	return nil
}

// onAccountsChanged folds a provider accounts event into the session. An
// empty list is equivalent to Disconnect; an unchanged first entry is a
// no-op, keeping the handler idempotent under duplicate events.
func (m *SessionManagerImpl) onAccountsChanged(payload entity.ProviderEventPayload) {
	if len(payload.Accounts) == 0 {
		m.logger.Info("Provider reported empty account list")
		m.Disconnect()
		return
	}

	next := payload.Accounts[0]
	m.mu.Lock()
	if m.session.ConnectionState != entity.Connected || m.session.AccountAddress == next {
		m.mu.Unlock()
		return
	}
	m.session.AccountAddress = next
	m.latest = nil
	rootCtx := m.rootCtx
	m.mu.Unlock()

	m.logger.Info("Active account changed", "account", next)
	m.publishSession()
	go m.RefreshBalances(rootCtx)
}

// onChainChanged folds a provider chain event into the session. An
// unrecognized chain id is never fatal; the registry synthesizes a profile.
func (m *SessionManagerImpl) onChainChanged(payload entity.ProviderEventPayload) {
	chainID, err := utils.ParseChainIDHex(payload.ChainIDHex)
	if err != nil {
		m.logger.Warn("Ignoring chain change with unparseable id", "raw", payload.ChainIDHex, "error", err)
		return
	}
	m.onChainChangedID(chainID)
}

func (m *SessionManagerImpl) onChainChangedID(chainID uint64) {
	m.mu.Lock()
	if m.session.ConnectionState != entity.Connected || m.session.ChainID == chainID {
		m.mu.Unlock()
		return
	}
	m.session.ChainID = chainID
	m.latest = nil
	rootCtx := m.rootCtx
	m.mu.Unlock()

	profile := m.networks.ProfileFor(chainID)
	m.logger.Info("Active chain changed", "chain_id", chainID, "network", profile.Name)
	m.publishSession()
	go m.RefreshBalances(rootCtx)
}

func (m *SessionManagerImpl) onProviderDisconnected() {
	m.logger.Info("Provider reported disconnect")
	m.Disconnect()
}

// RefreshBalances polls balances for the current identity and accepts the
// snapshot only if that identity is still current when the result arrives.
// Last-writer-wins is deliberately not used: a slow stale response must not
// clobber a newer view.
func (m *SessionManagerImpl) RefreshBalances(ctx context.Context) {
	m.mu.Lock()
	if m.session.ConnectionState != entity.Connected {
		m.mu.Unlock()
		return
	}
	owner := m.session.AccountAddress
	chainID := m.session.ChainID
	m.mu.Unlock()

	snapshot, err := m.balances.Refresh(ctx, owner, chainID)
	if err != nil {
		metrics.BalanceRefreshes.WithLabelValues("failed").Inc()
		m.logger.Warn("Balance refresh failed", "owner", owner, "chain_id", chainID, "error", err)
		return
	}
	m.acceptSnapshot(snapshot)
}

func (m *SessionManagerImpl) acceptSnapshot(snapshot *entity.BalanceSnapshot) {
	if snapshot == nil {
		return
	}

	m.mu.Lock()
	if m.session.ConnectionState != entity.Connected ||
		!snapshot.Matches(m.session.AccountAddress, m.session.ChainID) {
		m.mu.Unlock()
		metrics.BalanceRefreshes.WithLabelValues("discarded").Inc()
		m.logger.Debug("Discarding stale balance snapshot",
			"snapshot_owner", snapshot.OwnerAddress, "snapshot_chain", snapshot.ChainID)
		return
	}
	m.latest = snapshot
	m.mu.Unlock()

	metrics.BalanceRefreshes.WithLabelValues("accepted").Inc()
	if m.events != nil {
		m.events.Publish(TopicBalances, snapshot)
	}
}
