package restapi

import (
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"wallet_orchestrator/internal/app/port"
	"wallet_orchestrator/internal/domain/entity"
	"wallet_orchestrator/internal/pkg/utils"
)

// estimateWaitBudget bounds how long the estimate endpoint waits for a
// debounced preview before reporting it unavailable.
const estimateWaitBudget = 5 * time.Second

// APIError is the uniform error response body.
type APIError struct {
	Kind    entity.ErrorKind `json:"kind"`
	Message string           `json:"message"`
}

// Handler serves the orchestration endpoints.
type Handler struct {
	sessions  port.SessionManager
	transfers port.TransferOrchestrator
	balances  port.BalanceAggregator
	networks  port.NetworkRegistry
	tokens    port.TokenRegistry
	prices    port.PriceFeed
	logger    port.Logger
}

// NewHandler creates the endpoint handler set.
func NewHandler(
	sessions port.SessionManager,
	transfers port.TransferOrchestrator,
	balances port.BalanceAggregator,
	networks port.NetworkRegistry,
	tokens port.TokenRegistry,
	prices port.PriceFeed,
	l port.Logger,
) *Handler {
	return &Handler{
		sessions:  sessions,
		transfers: transfers,
		balances:  balances,
		networks:  networks,
		tokens:    tokens,
		prices:    prices,
		logger:    l,
	}
}

// statusFor maps an error classification onto an HTTP status code.
func statusFor(kind entity.ErrorKind) int {
	switch kind {
	case entity.ErrInvalidRecipient, entity.ErrInvalidAmount, entity.ErrUnsupportedAsset,
		entity.ErrInsufficientBalance, entity.ErrInsufficientFunds, entity.ErrNoAccounts,
		entity.ErrBadRequest:
		return http.StatusBadRequest
	case entity.ErrNotConnected, entity.ErrTransferInProgress, entity.ErrUserRejected:
		return http.StatusConflict
	case entity.ErrProviderUnavailable:
		return http.StatusServiceUnavailable
	case entity.ErrNetworkSwitchFailed, entity.ErrEstimationUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	kind := entity.KindOf(err)
	c.JSON(statusFor(kind), APIError{Kind: kind, Message: err.Error()})
}

// ConnectHandler initiates the wallet connection flow.
func (h *Handler) ConnectHandler(c *gin.Context) {
	session, err := h.sessions.Connect(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// DisconnectHandler resets the session locally.
func (h *Handler) DisconnectHandler(c *gin.Context) {
	h.sessions.Disconnect()
	c.JSON(http.StatusOK, h.sessions.Session())
}

// SessionResponse pairs the session with the live transfer attempt, if any.
type SessionResponse struct {
	Session     entity.WalletSession    `json:"session"`
	LiveAttempt *entity.TransferAttempt `json:"liveAttempt,omitempty"`
}

// GetSessionHandler returns the current session and live attempt.
func (h *Handler) GetSessionHandler(c *gin.Context) {
	resp := SessionResponse{Session: h.sessions.Session()}
	if attempt, ok := h.transfers.LiveAttempt(); ok {
		resp.LiveAttempt = &attempt
	}
	c.JSON(http.StatusOK, resp)
}

type switchChainRequest struct {
	ChainID uint64 `json:"chainId" binding:"required"`
}

// SwitchChainHandler asks the provider to change the active chain.
func (h *Handler) SwitchChainHandler(c *gin.Context) {
	var req switchChainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Kind: entity.ErrBadRequest, Message: "chainId is required"})
		return
	}
	if err := h.sessions.SwitchChain(c.Request.Context(), req.ChainID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sessions.Session())
}

// GetBalancesHandler returns the latest accepted snapshot, optionally forcing
// a fresh poll first. With no accepted snapshot it falls back to the
// aggregator's cache for the current identity.
func (h *Handler) GetBalancesHandler(c *gin.Context) {
	session := h.sessions.Session()
	if session.ConnectionState != entity.Connected {
		c.JSON(http.StatusConflict, APIError{Kind: entity.ErrNotConnected, Message: "no wallet is connected"})
		return
	}

	if c.Query("refresh") == "true" {
		h.sessions.RefreshBalances(c.Request.Context())
	}

	if snapshot := h.sessions.LatestBalances(); snapshot != nil {
		c.JSON(http.StatusOK, snapshot)
		return
	}
	if snapshot, ok := h.balances.Cached(session.AccountAddress, session.ChainID); ok {
		c.JSON(http.StatusOK, snapshot)
		return
	}
	c.JSON(http.StatusNotFound, APIError{Kind: entity.ErrUnknown, Message: "no balance snapshot available yet"})
}

// SubmitTransferHandler runs the full transfer attempt and blocks until it
// reaches a terminal state.
func (h *Handler) SubmitTransferHandler(c *gin.Context) {
	var req entity.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Kind: entity.ErrBadRequest, Message: "malformed transfer request: " + err.Error()})
		return
	}

	receipt, err := h.transfers.SubmitTransfer(c.Request.Context(), req)
	if err != nil {
		kind := entity.KindOf(err)
		if receipt.Status == entity.TransferFailed {
			// The attempt got past validation; the receipt carries the outcome.
			c.JSON(statusFor(kind), receipt)
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

// HistoryHandler returns the session-scoped transfer receipts.
func (h *Handler) HistoryHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"receipts": h.transfers.History()})
}

// EstimateHandler returns a debounced fee preview for a prospective transfer.
func (h *Handler) EstimateHandler(c *gin.Context) {
	var req entity.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Kind: entity.ErrBadRequest, Message: "malformed transfer request: " + err.Error()})
		return
	}

	delivered := make(chan entity.FeeEstimate, 1)
	h.transfers.PreviewFee(req, func(estimate entity.FeeEstimate) {
		delivered <- estimate
	})

	select {
	case estimate := <-delivered:
		c.JSON(http.StatusOK, estimate)
	case <-time.After(estimateWaitBudget):
		// Superseded by a newer preview or the provider is slow; either way
		// the caller gets a degraded estimate, never an error.
		c.JSON(http.StatusOK, entity.FeeEstimate{Available: false})
	case <-c.Request.Context().Done():
		c.Status(http.StatusRequestTimeout)
	}
}

// MaxNativeResponse carries the spendable native amount after the fee reserve.
type MaxNativeResponse struct {
	Available bool   `json:"available"`
	Amount    string `json:"amount,omitempty"`
	Symbol    string `json:"symbol,omitempty"`
}

// MaxNativeHandler returns the maximum sendable native amount for the
// current session, based on the latest accepted snapshot.
func (h *Handler) MaxNativeHandler(c *gin.Context) {
	session := h.sessions.Session()
	if session.ConnectionState != entity.Connected {
		c.JSON(http.StatusConflict, APIError{Kind: entity.ErrNotConnected, Message: "no wallet is connected"})
		return
	}
	snapshot := h.sessions.LatestBalances()
	if snapshot == nil || snapshot.NativeBalance == "" {
		c.JSON(http.StatusOK, MaxNativeResponse{Available: false})
		return
	}

	profile := h.networks.ProfileFor(session.ChainID)
	// A zero balance is a defined answer, not a parse failure: nothing is
	// spendable after the reserve either way.
	if rat, ok := new(big.Rat).SetString(snapshot.NativeBalance); ok && rat.Sign() == 0 {
		c.JSON(http.StatusOK, MaxNativeResponse{Available: true, Amount: "0", Symbol: profile.NativeSymbol})
		return
	}
	balanceWei, err := utils.ParseDecimalAmount(snapshot.NativeBalance, profile.NativeDecimals)
	if err != nil {
		c.JSON(http.StatusOK, MaxNativeResponse{Available: false})
		return
	}
	spendable := h.transfers.MaxSendableNative(balanceWei)
	formatted, err := utils.FormatBigInt(spendable, profile.NativeDecimals)
	if err != nil {
		c.JSON(http.StatusOK, MaxNativeResponse{Available: false})
		return
	}
	c.JSON(http.StatusOK, MaxNativeResponse{Available: true, Amount: formatted, Symbol: profile.NativeSymbol})
}

// PricesHandler returns advisory USD quotes for the requested symbols.
func (h *Handler) PricesHandler(c *gin.Context) {
	raw := c.Query("symbols")
	if raw == "" {
		c.JSON(http.StatusBadRequest, APIError{Kind: entity.ErrBadRequest, Message: "symbols query parameter is required"})
		return
	}
	symbols := strings.Split(raw, ",")
	quotes, err := h.prices.GetPrices(c.Request.Context(), symbols)
	if err != nil {
		h.logger.Warn("Price lookup failed", "symbols", raw, "error", err)
		c.JSON(http.StatusOK, gin.H{"quotes": map[string]entity.PriceQuote{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"quotes": quotes})
}

// NetworksHandler lists the known chain profiles.
func (h *Handler) NetworksHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"networks": h.networks.AllProfiles()})
}

// TokensHandler lists the token catalog for one chain.
func (h *Handler) TokensHandler(c *gin.Context) {
	chainID, err := strconv.ParseUint(c.Param("chainId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, APIError{Kind: entity.ErrBadRequest, Message: "chainId must be a decimal chain id"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"chainId": chainID,
		"tokens":  h.tokens.DescriptorsFor(chainID),
	})
}
