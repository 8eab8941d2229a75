package service

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet_orchestrator/internal/domain/entity"
	"wallet_orchestrator/internal/infrastructure/configloader"
	"wallet_orchestrator/internal/infrastructure/registry"
)

func testTransfersConfig() configloader.TransfersConfig {
	return configloader.TransfersConfig{
		GasMarginPercent:       20,
		EstimateDebounceMillis: 10,
		NativeFeeReserveWei:    "1000000000000000",
	}
}

const recipient = "0x9999999999999999999999999999999999999999"

func usdtDescriptor() entity.TokenDescriptor {
	return entity.TokenDescriptor{
		ChainID:         1,
		Symbol:          "USDT",
		ContractAddress: "0xdAC17F958D2ee523a2206206994597C13D831ec7",
		Decimals:        6,
	}
}

func newTestOrchestrator(t *testing.T, gw *fakeGateway) (*TransferOrchestratorImpl, *SessionManagerImpl, *fakeSink) {
	t.Helper()
	networks := registry.NewNetworkRegistry(nil, nopLogger{})
	tokens := &fakeTokens{descriptors: []entity.TokenDescriptor{usdtDescriptor()}}
	aggregator := NewBalanceAggregator(gw, networks, tokens, nopLogger{}, testBalancesConfig())
	sink := newFakeSink()
	sessions := NewSessionManager(gw, networks, aggregator, sink, nopLogger{})
	sessions.Start(context.Background())
	t.Cleanup(sessions.Stop)

	o := NewTransferOrchestrator(context.Background(), sessions, tokens, networks, gw, sink, nopLogger{}, testTransfersConfig())
	return o, sessions, sink
}

func connectFunded(t *testing.T, sessions *SessionManagerImpl, gw *fakeGateway, nativeWei *big.Int) {
	t.Helper()
	gw.nativeBalance = nativeWei
	_, err := sessions.Connect(context.Background())
	require.NoError(t, err)
}

func nativeRequest(amount string) entity.TransferRequest {
	return entity.TransferRequest{
		Asset:            entity.NativeAsset,
		RecipientAddress: recipient,
		Amount:           amount,
	}
}

func TestSubmitTransferNotConnected(t *testing.T) {
	gw := newFakeGateway()
	o, _, _ := newTestOrchestrator(t, gw)

	_, err := o.SubmitTransfer(context.Background(), nativeRequest("1.5"))
	require.Error(t, err)
	assert.Equal(t, entity.ErrNotConnected, entity.KindOf(err))
	assert.Zero(t, gw.totalCalls())
}

func TestSubmitTransferInvalidRecipient(t *testing.T) {
	gw := newFakeGateway()
	o, sessions, _ := newTestOrchestrator(t, gw)
	connectFunded(t, sessions, gw, big.NewInt(2_000_000_000_000_000_000))
	baseline := gw.totalCalls()

	req := nativeRequest("1.5")
	req.RecipientAddress = "not-an-address"
	_, err := o.SubmitTransfer(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, entity.ErrInvalidRecipient, entity.KindOf(err))
	assert.Equal(t, baseline, gw.totalCalls())
}

func TestSubmitTransferInvalidAmount(t *testing.T) {
	gw := newFakeGateway()
	o, sessions, _ := newTestOrchestrator(t, gw)
	connectFunded(t, sessions, gw, big.NewInt(2_000_000_000_000_000_000))
	baseline := gw.totalCalls()

	for _, amount := range []string{"0", "-1", "abc", ""} {
		_, err := o.SubmitTransfer(context.Background(), nativeRequest(amount))
		require.Error(t, err, "amount %q", amount)
		assert.Equal(t, entity.ErrInvalidAmount, entity.KindOf(err), "amount %q", amount)
	}
	assert.Equal(t, baseline, gw.totalCalls())
}

func TestSubmitTransferUnsupportedAsset(t *testing.T) {
	gw := newFakeGateway()
	o, sessions, _ := newTestOrchestrator(t, gw)
	connectFunded(t, sessions, gw, big.NewInt(2_000_000_000_000_000_000))
	baseline := gw.totalCalls()

	req := entity.TransferRequest{
		Asset:            entity.TokenAsset,
		TokenSymbol:      "USDT",
		RecipientAddress: recipient,
		Amount:           "10",
		ChainID:          137, // USDT is only cataloged on chain 1
	}
	_, err := o.SubmitTransfer(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, entity.ErrUnsupportedAsset, entity.KindOf(err))
	assert.Equal(t, baseline, gw.totalCalls())
}

func TestSubmitTransferInsufficientBalanceAdvisory(t *testing.T) {
	gw := newFakeGateway()
	o, sessions, _ := newTestOrchestrator(t, gw)
	connectFunded(t, sessions, gw, big.NewInt(1_000_000_000_000_000_000)) // 1 ETH
	baseline := gw.totalCalls()

	_, err := o.SubmitTransfer(context.Background(), nativeRequest("1.5"))
	require.Error(t, err)
	assert.Equal(t, entity.ErrInsufficientBalance, entity.KindOf(err))
	assert.Equal(t, baseline, gw.totalCalls())
}

func TestSubmitTransferNativeHappyPath(t *testing.T) {
	gw := newFakeGateway()
	o, sessions, _ := newTestOrchestrator(t, gw)
	connectFunded(t, sessions, gw, big.NewInt(2_000_000_000_000_000_000)) // 2 ETH
	refreshesBefore := gw.callCount("GetNativeBalance")

	receipt, err := o.SubmitTransfer(context.Background(), nativeRequest("1.5"))
	require.NoError(t, err)

	assert.Equal(t, entity.TransferConfirmed, receipt.Status)
	assert.Equal(t, "1.5", receipt.Request.Amount)
	assert.Equal(t, gw.sendHandle.Hash, receipt.TransactionHash)
	assert.Empty(t, receipt.FailureKind)

	assert.Equal(t, 1, gw.callCount("SendTransaction"))
	assert.Zero(t, gw.callCount("CallContractWrite"))

	history := o.History()
	require.Len(t, history, 1)
	assert.Equal(t, entity.TransferConfirmed, history[0].Status)

	_, live := o.LiveAttempt()
	assert.False(t, live)

	// A confirmed transfer re-polls balances so the debit is visible.
	assert.Greater(t, gw.callCount("GetNativeBalance"), refreshesBefore)
}

func TestSubmitTransferTokenUsesContractWrite(t *testing.T) {
	gw := newFakeGateway()
	o, sessions, _ := newTestOrchestrator(t, gw)
	gw.tokenBalances[usdtDescriptor().ContractAddress] = big.NewInt(50_000_000) // 50 USDT
	connectFunded(t, sessions, gw, big.NewInt(2_000_000_000_000_000_000))

	req := entity.TransferRequest{
		Asset:            entity.TokenAsset,
		TokenSymbol:      "USDT",
		RecipientAddress: recipient,
		Amount:           "10",
	}
	receipt, err := o.SubmitTransfer(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, entity.TransferConfirmed, receipt.Status)
	assert.Equal(t, 1, gw.callCount("CallContractWrite"))
	assert.Zero(t, gw.callCount("SendTransaction"))
}

func TestSubmitTransferOneLiveAttempt(t *testing.T) {
	gw := newFakeGateway()
	gw.awaitGate = make(chan struct{})
	o, sessions, _ := newTestOrchestrator(t, gw)
	connectFunded(t, sessions, gw, big.NewInt(2_000_000_000_000_000_000))

	firstDone := make(chan entity.TransferReceipt, 1)
	go func() {
		receipt, err := o.SubmitTransfer(context.Background(), nativeRequest("0.5"))
		if err == nil {
			firstDone <- receipt
		}
	}()

	require.Eventually(t, func() bool {
		return gw.callCount("SendTransaction") == 1
	}, 2*time.Second, 5*time.Millisecond)

	_, err := o.SubmitTransfer(context.Background(), nativeRequest("0.5"))
	require.Error(t, err)
	assert.Equal(t, entity.ErrTransferInProgress, entity.KindOf(err))
	assert.Equal(t, 1, gw.callCount("SendTransaction"))

	close(gw.awaitGate)
	select {
	case receipt := <-firstDone:
		assert.Equal(t, entity.TransferConfirmed, receipt.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("first attempt did not finish")
	}

	// The slot is released; a new attempt is accepted.
	require.Eventually(t, func() bool {
		_, live := o.LiveAttempt()
		return !live
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSubmitTransferUserRejectedSignature(t *testing.T) {
	gw := newFakeGateway()
	gw.sendErr = entity.Failf(entity.ErrUserRejected, "user rejected the request")
	o, sessions, _ := newTestOrchestrator(t, gw)
	connectFunded(t, sessions, gw, big.NewInt(2_000_000_000_000_000_000))

	receipt, err := o.SubmitTransfer(context.Background(), nativeRequest("0.5"))
	require.Error(t, err)
	assert.Equal(t, entity.ErrUserRejected, entity.KindOf(err))
	assert.Equal(t, entity.TransferFailed, receipt.Status)
	assert.Equal(t, entity.ErrUserRejected, receipt.FailureKind)

	history := o.History()
	require.Len(t, history, 1)
	assert.Equal(t, entity.TransferFailed, history[0].Status)

	_, live := o.LiveAttempt()
	assert.False(t, live)
}

func TestSubmitTransferRevertedOnChain(t *testing.T) {
	gw := newFakeGateway()
	gw.receipt = entity.TxReceipt{Hash: "0xabc", Succeeded: false, BlockNumber: 101}
	o, sessions, _ := newTestOrchestrator(t, gw)
	connectFunded(t, sessions, gw, big.NewInt(2_000_000_000_000_000_000))

	receipt, err := o.SubmitTransfer(context.Background(), nativeRequest("0.5"))
	require.Error(t, err)
	assert.Equal(t, entity.TransferFailed, receipt.Status)
	assert.Equal(t, "0xabc", receipt.TransactionHash)
}

func TestSubmitTransferEstimationDegrades(t *testing.T) {
	gw := newFakeGateway()
	gw.gasErr = entity.Failf(entity.ErrEstimationUnavailable, "node overloaded")
	o, sessions, _ := newTestOrchestrator(t, gw)
	connectFunded(t, sessions, gw, big.NewInt(2_000_000_000_000_000_000))

	// Estimation failure never blocks submission.
	receipt, err := o.SubmitTransfer(context.Background(), nativeRequest("0.5"))
	require.NoError(t, err)
	assert.Equal(t, entity.TransferConfirmed, receipt.Status)
}

func TestMaxSendableNative(t *testing.T) {
	gw := newFakeGateway()
	o, _, _ := newTestOrchestrator(t, gw)
	reserve := big.NewInt(1_000_000_000_000_000)

	assert.Zero(t, o.MaxSendableNative(nil).Sign())
	assert.Zero(t, o.MaxSendableNative(big.NewInt(5)).Sign())

	balance := big.NewInt(2_000_000_000_000_000_000)
	want := new(big.Int).Sub(balance, reserve)
	assert.Zero(t, want.Cmp(o.MaxSendableNative(balance)))
}

func TestPreviewFeeAppliesGasMargin(t *testing.T) {
	gw := newFakeGateway()
	gw.gasLimit = 21000
	gw.gasPrice = big.NewInt(2_000_000_000)
	o, sessions, _ := newTestOrchestrator(t, gw)
	connectFunded(t, sessions, gw, big.NewInt(2_000_000_000_000_000_000))

	delivered := make(chan entity.FeeEstimate, 1)
	o.PreviewFee(nativeRequest("0.5"), func(estimate entity.FeeEstimate) {
		delivered <- estimate
	})

	select {
	case estimate := <-delivered:
		require.True(t, estimate.Available)
		assert.Equal(t, uint64(25200), estimate.GasLimit) // 21000 + 20%
		assert.Equal(t, "ETH", estimate.NativeSymbol)
	case <-time.After(2 * time.Second):
		t.Fatal("estimate was not delivered")
	}
}

func TestPreviewFeeDisconnectedDegrades(t *testing.T) {
	gw := newFakeGateway()
	o, _, _ := newTestOrchestrator(t, gw)

	delivered := make(chan entity.FeeEstimate, 1)
	o.PreviewFee(nativeRequest("0.5"), func(estimate entity.FeeEstimate) {
		delivered <- estimate
	})

	select {
	case estimate := <-delivered:
		assert.False(t, estimate.Available)
	case <-time.After(2 * time.Second):
		t.Fatal("estimate was not delivered")
	}
}
