package service

import (
	"sync"
	"time"

	"wallet_orchestrator/internal/domain/entity"
)

// feeEstimator debounces fee preview requests so that keystroke-equivalent
// input changes do not flood the provider. A request only fires after the
// stability window passes with no newer request; a newer request supersedes
// an older one still in flight and discards its result.
type feeEstimator struct {
	window time.Duration
	run    func(req entity.TransferRequest, deliver func(entity.FeeEstimate))

	mu    sync.Mutex
	seq   uint64
	timer *time.Timer
}

func newFeeEstimator(window time.Duration, run func(entity.TransferRequest, func(entity.FeeEstimate))) *feeEstimator {
	return &feeEstimator{window: window, run: run}
}

// Request schedules an estimation for req after the stability window.
func (e *feeEstimator) Request(req entity.TransferRequest, deliver func(entity.FeeEstimate)) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.seq++
	mySeq := e.seq
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(e.window, func() {
		if !e.current(mySeq) {
			return
		}
		e.run(req, func(estimate entity.FeeEstimate) {
			// The estimate may resolve after yet another request arrived;
			// stale results are dropped, not delivered.
			if e.current(mySeq) {
				deliver(estimate)
			}
		})
	})
}

func (e *feeEstimator) current(seq uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq == seq
}
