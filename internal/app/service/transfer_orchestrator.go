package service

import (
	"context"
	"math/big"
	"sync"
	"time"

	"wallet_orchestrator/internal/app/port"
	"wallet_orchestrator/internal/domain/entity"
	"wallet_orchestrator/internal/infrastructure/configloader"
	"wallet_orchestrator/internal/pkg/metrics"
	"wallet_orchestrator/internal/pkg/utils"
)

// TopicTransfers is the event stream topic for transfer attempt updates.
const TopicTransfers = "transfers"

// TransferOrchestratorImpl implements port.TransferOrchestrator. At most one
// attempt is live per session; a second submission fails fast rather than
// queuing.
type TransferOrchestratorImpl struct {
	sessions port.SessionManager
	tokens   port.TokenRegistry
	networks port.NetworkRegistry
	gateway  port.WalletProviderGateway
	events   port.EventSink
	logger   port.Logger

	gasMarginPercent int
	reserveWei       *big.Int
	estimator        *feeEstimator

	// rootCtx bounds the confirmation wait, which must outlive the caller:
	// a signed-and-submitted transfer resolves even if the initiating
	// request or session goes away.
	rootCtx context.Context

	mu      sync.Mutex
	live    *entity.TransferAttempt
	history []entity.TransferReceipt
}

// NewTransferOrchestrator creates the orchestrator. rootCtx should be the
// application lifetime context.
func NewTransferOrchestrator(
	rootCtx context.Context,
	sessions port.SessionManager,
	tokens port.TokenRegistry,
	networks port.NetworkRegistry,
	gw port.WalletProviderGateway,
	events port.EventSink,
	l port.Logger,
	cfg configloader.TransfersConfig,
) *TransferOrchestratorImpl {
	reserve, ok := new(big.Int).SetString(cfg.NativeFeeReserveWei, 10)
	if !ok || reserve.Sign() < 0 {
		reserve = big.NewInt(0)
		l.Warn("Invalid nativeFeeReserveWei in config, defaulting to zero", "value", cfg.NativeFeeReserveWei)
	}
	o := &TransferOrchestratorImpl{
		rootCtx:          rootCtx,
		sessions:         sessions,
		tokens:           tokens,
		networks:         networks,
		gateway:          gw,
		events:           events,
		logger:           l,
		gasMarginPercent: cfg.GasMarginPercent,
		reserveWei:       reserve,
	}
	o.estimator = newFeeEstimator(
		time.Duration(cfg.EstimateDebounceMillis)*time.Millisecond,
		o.runEstimate,
	)
	return o
}

// validated carries the results of the precondition checks into submission.
type validated struct {
	session    entity.WalletSession
	profile    entity.ChainProfile
	token      entity.TokenDescriptor
	isNative   bool
	unitAmount *big.Int
	symbol     string
	recipient  string
}

// validate runs the ordered precondition checks of a transfer, short-
// circuiting on the first failure. No gateway interaction happens here.
func (o *TransferOrchestratorImpl) validate(req *entity.TransferRequest) (*validated, error) {
	// 1. Session must be connected.
	session := o.sessions.Session()
	if session.ConnectionState != entity.Connected {
		return nil, entity.Failf(entity.ErrNotConnected, "no wallet is connected")
	}
	if o.gateway == nil || !o.gateway.SupportsTransfers() {
		return nil, entity.Failf(entity.ErrProviderUnavailable, "provider exposes no transfer capability")
	}
	if req.ChainID == 0 {
		req.ChainID = session.ChainID
	}

	// 2. Recipient must be syntactically valid for the addressing scheme.
	if !utils.IsValidAddress(req.RecipientAddress) {
		return nil, entity.Failf(entity.ErrInvalidRecipient, "recipient %q is not a valid address", req.RecipientAddress)
	}

	// 3. Amount must parse as a positive decimal.
	amountRat, ok := new(big.Rat).SetString(req.Amount)
	if !ok || amountRat.Sign() <= 0 {
		return nil, entity.Failf(entity.ErrInvalidAmount, "amount %q is not a positive decimal", req.Amount)
	}

	// 4. Token assets must resolve on the active chain; the same symbol on
	// another chain is a different asset.
	profile := o.networks.ProfileFor(req.ChainID)
	v := &validated{
		session:   session,
		profile:   profile,
		isNative:  req.Asset != entity.TokenAsset,
		symbol:    profile.NativeSymbol,
		recipient: req.RecipientAddress,
	}
	decimals := profile.NativeDecimals
	if !v.isNative {
		token, found := o.tokens.Resolve(req.ChainID, req.TokenSymbol)
		if !found {
			return nil, entity.Failf(entity.ErrUnsupportedAsset, "token %q is not known on chain %d", req.TokenSymbol, req.ChainID)
		}
		v.token = token
		v.symbol = token.Symbol
		decimals = token.Decimals
	}
	if req.ChainID != session.ChainID {
		return nil, entity.Failf(entity.ErrUnsupportedAsset, "request targets chain %d but the session is on chain %d", req.ChainID, session.ChainID)
	}

	unitAmount, err := utils.ParseDecimalAmount(req.Amount, decimals)
	if err != nil {
		return nil, entity.Fail(entity.ErrInvalidAmount, err)
	}
	v.unitAmount = unitAmount

	// 5. Advisory balance check against the latest snapshot. The snapshot
	// may be stale; the authoritative check is the network's and comes back
	// as InsufficientFunds if it fails there.
	snapshot := o.sessions.LatestBalances()
	if snapshot.Matches(session.AccountAddress, session.ChainID) {
		if available, found := snapshot.BalanceOf(v.symbol); found {
			if availRat, okAvail := new(big.Rat).SetString(available); okAvail && amountRat.Cmp(availRat) > 0 {
				return nil, entity.Failf(entity.ErrInsufficientBalance,
					"amount %s exceeds available balance %s %s", req.Amount, available, v.symbol)
			}
		}
	}

	return v, nil
}

// SubmitTransfer validates, estimates, submits and tracks a single value
// transfer. All preconditions resolve before any gateway interaction.
func (o *TransferOrchestratorImpl) SubmitTransfer(ctx context.Context, req entity.TransferRequest) (entity.TransferReceipt, error) {
	if req.InitiatedAt.IsZero() {
		req.InitiatedAt = time.Now().UTC()
	}

	v, err := o.validate(&req)
	if err != nil {
		kind := entity.KindOf(err)
		metrics.TransferAttempts.WithLabelValues(string(kind)).Inc()
		o.logger.Warn("Transfer rejected by precondition", "kind", string(kind), "error", err)
		return entity.TransferReceipt{}, err
	}

	// 6. One live attempt per session.
	o.mu.Lock()
	if o.live != nil {
		o.mu.Unlock()
		metrics.TransferAttempts.WithLabelValues(string(entity.ErrTransferInProgress)).Inc()
		return entity.TransferReceipt{}, entity.Failf(entity.ErrTransferInProgress, "another transfer attempt is live")
	}
	o.live = &entity.TransferAttempt{
		Request:   req,
		State:     entity.AttemptValidating,
		StartedAt: time.Now().UTC(),
	}
	o.mu.Unlock()
	o.publishAttempt()

	return o.runAttempt(ctx, req, v)
}

func (o *TransferOrchestratorImpl) runAttempt(ctx context.Context, req entity.TransferRequest, v *validated) (entity.TransferReceipt, error) {
	o.setAttemptState(entity.AttemptEstimating, "")
	params := o.buildTxParams(v, req)
	estimate := o.estimateOnce(ctx, params, v.profile)
	if estimate.Available {
		params.GasLimit = estimate.GasLimit
		params.GasPriceWei = estimate.GasPriceWei
	} else {
		// Estimation degraded; submission proceeds and the provider sizes
		// the gas itself.
		o.logger.Warn("Fee estimation unavailable, proceeding without cost preview",
			"recipient", req.RecipientAddress, "asset", v.symbol)
	}

	o.setAttemptState(entity.AttemptAwaitingSignature, "")
	handle, err := o.submit(ctx, v, params)
	if err != nil {
		kind := entity.KindOf(err)
		o.logger.Warn("Transfer submission failed", "kind", string(kind), "error", err)
		return o.finalize(req, "", entity.TransferFailed, kind), err
	}

	o.setAttemptState(entity.AttemptSubmitted, handle.Hash)
	o.logger.Info("Transfer submitted", "tx_hash", handle.Hash, "asset", v.symbol, "amount", req.Amount)

	// The wait runs on the application context, not the caller's: once a
	// transaction identifier exists the attempt must resolve, and no local
	// timeout is imposed on the network.
	o.setAttemptState(entity.AttemptConfirming, handle.Hash)
	txReceipt, err := o.gateway.AwaitConfirmation(o.rootCtx, handle)
	if err != nil {
		kind := entity.KindOf(err)
		o.logger.Error("Confirmation wait failed", "tx_hash", handle.Hash, "kind", string(kind), "error", err)
		return o.finalize(req, handle.Hash, entity.TransferFailed, kind), err
	}

	if !txReceipt.Succeeded {
		o.logger.Warn("Transfer reverted on chain", "tx_hash", handle.Hash, "block", txReceipt.BlockNumber)
		receipt := o.finalize(req, handle.Hash, entity.TransferFailed, entity.ErrUnknown)
		return receipt, entity.Failf(entity.ErrUnknown, "transaction %s reverted on chain", handle.Hash)
	}

	o.logger.Info("Transfer confirmed", "tx_hash", handle.Hash, "block", txReceipt.BlockNumber)
	receipt := o.finalize(req, handle.Hash, entity.TransferConfirmed, "")

	// Re-poll so displayed balances reflect the debit.
	o.sessions.RefreshBalances(o.rootCtx)
	return receipt, nil
}

func (o *TransferOrchestratorImpl) buildTxParams(v *validated, req entity.TransferRequest) entity.TxParams {
	if v.isNative {
		return entity.TxParams{
			From:     v.session.AccountAddress,
			To:       req.RecipientAddress,
			ValueWei: v.unitAmount,
		}
	}
	return entity.TxParams{
		From: v.session.AccountAddress,
		To:   v.token.ContractAddress,
		Data: utils.PackERC20Transfer(req.RecipientAddress, v.unitAmount),
	}
}

func (o *TransferOrchestratorImpl) submit(ctx context.Context, v *validated, params entity.TxParams) (entity.TxHandle, error) {
	if v.isNative {
		return o.gateway.SendTransaction(ctx, params)
	}
	overrides := entity.TxParams{
		From:        params.From,
		GasLimit:    params.GasLimit,
		GasPriceWei: params.GasPriceWei,
	}
	args := []any{utils.HexToAddress(v.recipient), v.unitAmount}
	return o.gateway.CallContractWrite(ctx, v.token.ContractAddress, erc20TransferABI, "transfer", args, overrides)
}

// estimateOnce queries gas and fee data once, best-effort. Failure degrades
// to an unavailable estimate rather than blocking submission.
func (o *TransferOrchestratorImpl) estimateOnce(ctx context.Context, params entity.TxParams, profile entity.ChainProfile) entity.FeeEstimate {
	rawGas, err := o.gateway.EstimateGas(ctx, params)
	if err != nil {
		o.logger.Debug("Gas estimation failed", "error", err)
		return entity.FeeEstimate{Available: false}
	}
	feeData, err := o.gateway.GetFeeData(ctx)
	if err != nil || feeData.GasPriceWei == nil {
		o.logger.Debug("Fee data unavailable", "error", err)
		return entity.FeeEstimate{Available: false}
	}

	// Token transfer gas cost is data-dependent and hard to predict; the
	// margin keeps on-chain out-of-gas failures rare.
	gasLimit := rawGas + rawGas*uint64(o.gasMarginPercent)/100

	totalWei := new(big.Int).Mul(new(big.Int).SetUint64(gasLimit), feeData.GasPriceWei)
	totalFormatted, fmtErr := utils.FormatBigInt(totalWei, profile.NativeDecimals)
	if fmtErr != nil {
		totalFormatted = totalWei.String()
	}
	return entity.FeeEstimate{
		Available:    true,
		GasLimit:     gasLimit,
		GasPriceWei:  feeData.GasPriceWei,
		GasPrice:     feeData.GasPriceWei.String(),
		TotalFee:     totalFormatted,
		NativeSymbol: profile.NativeSymbol,
	}
}

// PreviewFee requests a debounced cost estimate for the request. The result
// goes to deliver; a superseded preview is silently discarded.
func (o *TransferOrchestratorImpl) PreviewFee(req entity.TransferRequest, deliver func(entity.FeeEstimate)) {
	o.estimator.Request(req, deliver)
}

// runEstimate is the estimator's execution callback, invoked once a preview
// request survives the debounce window.
func (o *TransferOrchestratorImpl) runEstimate(req entity.TransferRequest, deliver func(entity.FeeEstimate)) {
	v, err := o.validate(&req)
	if err != nil {
		deliver(entity.FeeEstimate{Available: false})
		return
	}
	estimateCtx, cancel := context.WithTimeout(o.rootCtx, 10*time.Second)
	defer cancel()
	deliver(o.estimateOnce(estimateCtx, o.buildTxParams(v, req), v.profile))
}

// MaxSendableNative reserves room for the transfer's own fee: spending the
// literal full balance would make the transaction itself unaffordable.
func (o *TransferOrchestratorImpl) MaxSendableNative(balance *big.Int) *big.Int {
	if balance == nil {
		return big.NewInt(0)
	}
	spendable := new(big.Int).Sub(balance, o.reserveWei)
	if spendable.Sign() < 0 {
		return big.NewInt(0)
	}
	return spendable
}

// History returns a copy of the session-scoped, insertion-ordered receipts.
func (o *TransferOrchestratorImpl) History() []entity.TransferReceipt {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]entity.TransferReceipt, len(o.history))
	copy(out, o.history)
	return out
}

// LiveAttempt returns the current attempt, if one is live.
func (o *TransferOrchestratorImpl) LiveAttempt() (entity.TransferAttempt, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.live == nil {
		return entity.TransferAttempt{}, false
	}
	return *o.live, true
}

func (o *TransferOrchestratorImpl) setAttemptState(state entity.AttemptState, txHash string) {
	o.mu.Lock()
	if o.live != nil {
		o.live.State = state
		if txHash != "" {
			o.live.TransactionHash = txHash
		}
	}
	o.mu.Unlock()
	o.publishAttempt()
}

// finalize moves the live attempt to a terminal state, appends the receipt
// to history and releases the one-live-attempt slot.
func (o *TransferOrchestratorImpl) finalize(req entity.TransferRequest, txHash string, status entity.TransferStatus, failureKind entity.ErrorKind) entity.TransferReceipt {
	receipt := entity.TransferReceipt{
		Request:         req,
		TransactionHash: txHash,
		Status:          status,
		FinalizedAt:     time.Now().UTC(),
		FailureKind:     failureKind,
	}

	o.mu.Lock()
	if o.live != nil {
		if status == entity.TransferConfirmed {
			o.live.State = entity.AttemptConfirmed
		} else {
			o.live.State = entity.AttemptFailed
		}
	}
	o.live = nil
	o.history = append(o.history, receipt)
	o.mu.Unlock()

	metrics.TransferAttempts.WithLabelValues(string(status)).Inc()
	if o.events != nil {
		o.events.Publish(TopicTransfers, receipt)
	}
	return receipt
}

func (o *TransferOrchestratorImpl) publishAttempt() {
	if o.events == nil {
		return
	}
	if attempt, ok := o.LiveAttempt(); ok {
		o.events.Publish(TopicTransfers, attempt)
	}
}
