package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet_orchestrator/internal/domain/entity"
)

func TestFeeEstimatorDebouncesBursts(t *testing.T) {
	var mu sync.Mutex
	var ran []string
	e := newFeeEstimator(30*time.Millisecond, func(req entity.TransferRequest, deliver func(entity.FeeEstimate)) {
		mu.Lock()
		ran = append(ran, req.Amount)
		mu.Unlock()
		deliver(entity.FeeEstimate{Available: true})
	})

	delivered := make(chan entity.FeeEstimate, 3)
	for _, amount := range []string{"1", "1.2", "1.25"} {
		e.Request(entity.TransferRequest{Amount: amount}, func(estimate entity.FeeEstimate) {
			delivered <- estimate
		})
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case estimate := <-delivered:
		assert.True(t, estimate.Available)
	case <-time.After(2 * time.Second):
		t.Fatal("no estimate delivered")
	}

	// Only the last request of the burst survives the stability window.
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, ran, 1)
	assert.Equal(t, "1.25", ran[0])
}

func TestFeeEstimatorDropsSupersededResult(t *testing.T) {
	release := make(chan struct{})
	e := newFeeEstimator(10*time.Millisecond, func(req entity.TransferRequest, deliver func(entity.FeeEstimate)) {
		if req.Amount == "1" {
			go func() {
				<-release
				deliver(entity.FeeEstimate{Available: true, TotalFee: "stale"})
			}()
			return
		}
		deliver(entity.FeeEstimate{Available: true, TotalFee: "fresh"})
	})

	results := make(chan entity.FeeEstimate, 2)
	capture := func(estimate entity.FeeEstimate) { results <- estimate }

	e.Request(entity.TransferRequest{Amount: "1"}, capture)
	// Let the first request fire and stall mid-estimation.
	time.Sleep(30 * time.Millisecond)
	e.Request(entity.TransferRequest{Amount: "2"}, capture)

	select {
	case estimate := <-results:
		assert.Equal(t, "fresh", estimate.TotalFee)
	case <-time.After(2 * time.Second):
		t.Fatal("fresh estimate was not delivered")
	}

	// The stale in-flight result resolves after being superseded and is
	// silently discarded.
	close(release)
	select {
	case estimate := <-results:
		t.Fatalf("stale estimate was delivered: %+v", estimate)
	case <-time.After(100 * time.Millisecond):
	}
}
