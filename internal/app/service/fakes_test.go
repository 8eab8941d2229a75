package service

import (
	"context"
	"math/big"
	"sync"

	"wallet_orchestrator/internal/app/port"
	"wallet_orchestrator/internal/domain/entity"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// fakeGateway scripts provider behavior per method and counts every call so
// tests can assert that validation short-circuits before any provider
// interaction.
type fakeGateway struct {
	mu    sync.Mutex
	calls map[string]int

	available     bool
	supportsXfers bool
	accounts      []string
	requestErr    error
	// requestGate, when set, blocks RequestAccounts until closed.
	requestGate    chan struct{}
	silentAccounts []string
	silentErr      error
	// silentGate, when set, blocks GetAccounts until closed.
	silentGate chan struct{}
	chainID    uint64
	chainErr   error

	nativeBalance *big.Int
	nativeErr     error
	tokenBalances map[string]*big.Int
	tokenErrs     map[string]error

	gasLimit uint64
	gasErr   error
	gasPrice *big.Int
	feeErr   error

	sendHandle entity.TxHandle
	sendErr    error
	receipt    entity.TxReceipt
	awaitErr   error
	// awaitGate, when set, blocks AwaitConfirmation until closed.
	awaitGate chan struct{}

	writeHandle entity.TxHandle
	writeErr    error

	switchErrs []error
	addErr     error

	handlers map[entity.ProviderEvent][]port.EventHandler
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		calls:         make(map[string]int),
		available:     true,
		supportsXfers: true,
		accounts:      []string{"0x1111111111111111111111111111111111111111"},
		chainID:       1,
		nativeBalance: big.NewInt(0),
		tokenBalances: make(map[string]*big.Int),
		tokenErrs:     make(map[string]error),
		gasLimit:      21000,
		gasPrice:      big.NewInt(1_000_000_000),
		sendHandle:    entity.TxHandle{Hash: "0xabc", ChainID: 1},
		writeHandle:   entity.TxHandle{Hash: "0xdef", ChainID: 1},
		receipt:       entity.TxReceipt{Hash: "0xabc", Succeeded: true, BlockNumber: 100},
		handlers:      make(map[entity.ProviderEvent][]port.EventHandler),
	}
}

func (f *fakeGateway) record(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
}

func (f *fakeGateway) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeGateway) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func (f *fakeGateway) IsAvailable() bool       { return f.available }
func (f *fakeGateway) SupportsTransfers() bool { return f.supportsXfers }

func (f *fakeGateway) RequestAccounts(context.Context) ([]string, error) {
	f.record("RequestAccounts")
	if f.requestGate != nil {
		<-f.requestGate
	}
	return f.accounts, f.requestErr
}

func (f *fakeGateway) GetAccounts(context.Context) ([]string, error) {
	f.record("GetAccounts")
	if f.silentGate != nil {
		<-f.silentGate
	}
	return f.silentAccounts, f.silentErr
}

func (f *fakeGateway) GetChainID(context.Context) (uint64, error) {
	f.record("GetChainID")
	return f.chainID, f.chainErr
}

func (f *fakeGateway) GetNativeBalance(context.Context, string) (*big.Int, error) {
	f.record("GetNativeBalance")
	return f.nativeBalance, f.nativeErr
}

func (f *fakeGateway) EstimateGas(context.Context, entity.TxParams) (uint64, error) {
	f.record("EstimateGas")
	return f.gasLimit, f.gasErr
}

func (f *fakeGateway) GetFeeData(context.Context) (entity.FeeData, error) {
	f.record("GetFeeData")
	return entity.FeeData{GasPriceWei: f.gasPrice}, f.feeErr
}

func (f *fakeGateway) SendTransaction(context.Context, entity.TxParams) (entity.TxHandle, error) {
	f.record("SendTransaction")
	return f.sendHandle, f.sendErr
}

func (f *fakeGateway) AwaitConfirmation(context.Context, entity.TxHandle) (entity.TxReceipt, error) {
	f.record("AwaitConfirmation")
	if f.awaitGate != nil {
		<-f.awaitGate
	}
	return f.receipt, f.awaitErr
}

func (f *fakeGateway) CallContractRead(_ context.Context, contractAddress string, _ string, method string, _ ...any) ([]any, error) {
	f.record("CallContractRead")
	if method != "balanceOf" {
		return nil, nil
	}
	if err, ok := f.tokenErrs[contractAddress]; ok {
		return nil, err
	}
	if balance, ok := f.tokenBalances[contractAddress]; ok {
		return []any{balance}, nil
	}
	return []any{big.NewInt(0)}, nil
}

func (f *fakeGateway) CallContractWrite(context.Context, string, string, string, []any, entity.TxParams) (entity.TxHandle, error) {
	f.record("CallContractWrite")
	return f.writeHandle, f.writeErr
}

func (f *fakeGateway) SwitchChain(context.Context, uint64) error {
	f.record("SwitchChain")
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.switchErrs) == 0 {
		return nil
	}
	err := f.switchErrs[0]
	f.switchErrs = f.switchErrs[1:]
	return err
}

func (f *fakeGateway) AddChain(context.Context, entity.ChainProfile) error {
	f.record("AddChain")
	return f.addErr
}

func (f *fakeGateway) Subscribe(event entity.ProviderEvent, handler port.EventHandler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[event] = append(f.handlers[event], handler)
	return func() {}
}

// emit delivers a synthesized provider event to the subscribed handlers.
func (f *fakeGateway) emit(event entity.ProviderEvent, payload entity.ProviderEventPayload) {
	f.mu.Lock()
	handlers := append([]port.EventHandler(nil), f.handlers[event]...)
	f.mu.Unlock()
	for _, h := range handlers {
		h(payload)
	}
}

// fakeSink records published events per topic.
type fakeSink struct {
	mu     sync.Mutex
	events map[string][]any
}

func newFakeSink() *fakeSink {
	return &fakeSink{events: make(map[string][]any)}
}

func (s *fakeSink) Publish(topic string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[topic] = append(s.events[topic], payload)
}

func (s *fakeSink) count(topic string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events[topic])
}

// fakeTokens is a chain-scoped token catalog for tests.
type fakeTokens struct {
	descriptors []entity.TokenDescriptor
}

func (t *fakeTokens) DescriptorsFor(chainID uint64) []entity.TokenDescriptor {
	var out []entity.TokenDescriptor
	for _, d := range t.descriptors {
		if d.ChainID == chainID {
			out = append(out, d)
		}
	}
	return out
}

func (t *fakeTokens) Resolve(chainID uint64, symbol string) (entity.TokenDescriptor, bool) {
	for _, d := range t.descriptors {
		if d.ChainID == chainID && d.Symbol == symbol {
			return d, true
		}
	}
	return entity.TokenDescriptor{}, false
}
