// Package worker implements background sealing for the ledger.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/safeguard/fraudledger/foundation/blockchain/state"
)

// Config represents the configuration for the worker. A zero SealInterval
// turns off sealing on a timer, sealing then only happens on a signal.
type Config struct {
	SealInterval time.Duration
}

// =============================================================================

// Worker manages the background sealing workflow for the ledger.
type Worker struct {
	state     *state.State
	wg        sync.WaitGroup
	ticker    *time.Ticker
	shut      chan struct{}
	shutOnce  sync.Once
	startSeal chan bool
	evHandler state.EventHandler

	// ctx is cancelled on shutdown to stop a seal that is running.
	ctx    context.Context
	cancel context.CancelFunc
}

// Run creates a worker, registers the worker with the state package, and
// starts up the background processes.
func Run(st *state.State, cfg Config, evHandler state.EventHandler) *Worker {
	if evHandler == nil {
		evHandler = func(v string, args ...any) {}
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := Worker{
		state:     st,
		ctx:       ctx,
		cancel:    cancel,
		shut:      make(chan struct{}),
		startSeal: make(chan bool, 1),
		evHandler: evHandler,
	}

	if cfg.SealInterval > 0 {
		w.ticker = time.NewTicker(cfg.SealInterval)
	}

	// Register this worker with the state package.
	st.Worker = &w

	w.wg.Add(1)

	// We don't want to return until we know the G is up and running.
	hasStarted := make(chan bool)

	go func() {
		defer w.wg.Done()
		hasStarted <- true
		w.sealOperations()
	}()

	<-hasStarted

	// Transactions left pending by a previous run follow the batch policy,
	// a full batch is sealed right away.
	if st.QueryMempoolLength() >= st.RetrieveBatchSize() {
		w.SignalSeal()
	}

	return &w
}

// =============================================================================
// These methods implement the state.Worker interface.

// Shutdown terminates the goroutine performing work. A seal that is running
// is cancelled and its transactions go back to the pool.
func (w *Worker) Shutdown() {
	w.shutOnce.Do(func() {
		w.evHandler("worker: shutdown: started")
		defer w.evHandler("worker: shutdown: completed")

		if w.ticker != nil {
			w.evHandler("worker: shutdown: stop ticker")
			w.ticker.Stop()
		}

		w.evHandler("worker: shutdown: signal cancel sealing")
		w.cancel()

		w.evHandler("worker: shutdown: terminate goroutines")
		close(w.shut)
		w.wg.Wait()
	})
}

// SignalSeal starts a seal operation. If there is already a signal pending in
// the channel, just return since a seal operation will start.
func (w *Worker) SignalSeal() {
	select {
	case w.startSeal <- true:
		w.evHandler("worker: SignalSeal: sealing signaled")
	default:
	}
}

// =============================================================================

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
