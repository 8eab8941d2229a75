package gateway

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"wallet_orchestrator/internal/app/port"
	"wallet_orchestrator/internal/domain/entity"
)

// Consecutive poll failures before a disconnect event is synthesized.
const disconnectFailureThreshold = 3

// Subscribe registers a handler for the named provider event and returns its
// unsubscribe function. Handlers run on the single poll goroutine, so events
// are delivered in arrival order and are never dropped.
func (g *EVMGateway) Subscribe(event entity.ProviderEvent, handler port.EventHandler) func() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nextSubID++
	id := g.nextSubID
	g.subs = append(g.subs, subscription{id: id, event: event, handler: handler})

	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		for i, sub := range g.subs {
			if sub.id == id {
				g.subs = append(g.subs[:i], g.subs[i+1:]...)
				return
			}
		}
	}
}

func (g *EVMGateway) dispatch(event entity.ProviderEvent, payload entity.ProviderEventPayload) {
	g.mu.Lock()
	handlers := make([]port.EventHandler, 0, len(g.subs))
	for _, sub := range g.subs {
		if sub.event == event {
			handlers = append(handlers, sub.handler)
		}
	}
	g.mu.Unlock()

	for _, h := range handlers {
		h(payload)
	}
}

// StartEventLoop polls the provider for account and chain changes and
// synthesizes accountsChanged / chainChanged / disconnect events. A browser
// provider pushes these; an RPC endpoint has to be diffed. Blocks until ctx
// is cancelled; run it on its own goroutine.
func (g *EVMGateway) StartEventLoop(ctx context.Context) {
	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	g.logger.Info("Provider event loop started", "poll_interval", g.pollInterval.String())
	for {
		select {
		case <-ctx.Done():
			g.logger.Info("Provider event loop stopped")
			return
		case <-ticker.C:
			g.pollOnce(ctx)
		}
	}
}

func (g *EVMGateway) pollOnce(ctx context.Context) {
	accounts, accErr := g.GetAccounts(ctx)
	chainID, chainErr := g.GetChainID(ctx)

	if accErr != nil || chainErr != nil {
		g.mu.Lock()
		g.pollFailures++
		failures := g.pollFailures
		g.mu.Unlock()

		g.logger.Warn("Provider poll failed", "failures", failures, "accounts_error", accErr, "chain_error", chainErr)
		if failures == disconnectFailureThreshold {
			g.dispatch(entity.EventDisconnect, entity.ProviderEventPayload{})
		}
		return
	}

	chainHex := hexutil.EncodeUint64(chainID)

	g.mu.Lock()
	g.pollFailures = 0
	accountsChanged := !equalAccounts(g.lastAccounts, accounts)
	chainChanged := g.lastChainHex != "" && g.lastChainHex != chainHex
	first := g.lastChainHex == ""
	g.lastAccounts = accounts
	g.lastChainHex = chainHex
	g.mu.Unlock()

	if first {
		return // baseline observation, nothing changed yet
	}
	// After a synthesized disconnect the session is reset; polling only
	// resumes the diff baseline, reconnecting stays an explicit operation.
	if accountsChanged {
		g.dispatch(entity.EventAccountsChanged, entity.ProviderEventPayload{Accounts: accounts})
	}
	if chainChanged {
		g.dispatch(entity.EventChainChanged, entity.ProviderEventPayload{ChainIDHex: chainHex})
	}
}

func equalAccounts(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
