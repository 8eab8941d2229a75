package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters for the orchestration core. Registered on the default registry
// and exposed through /metrics on the API router.
var (
	GatewayCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_gateway_calls_total",
		Help: "Wallet provider gateway calls by method.",
	}, []string{"method"})

	GatewayCallErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_gateway_call_errors_total",
		Help: "Failed wallet provider gateway calls by method.",
	}, []string{"method"})

	SessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_session_transitions_total",
		Help: "Wallet session state transitions by target state.",
	}, []string{"state"})

	BalanceRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_balance_refreshes_total",
		Help: "Balance refresh attempts by result (accepted, discarded, failed).",
	}, []string{"result"})

	TransferAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_transfer_attempts_total",
		Help: "Transfer attempts by terminal outcome or rejection kind.",
	}, []string{"outcome"})
)
