package worker

import (
	"errors"
	"time"

	"github.com/safeguard/fraudledger/foundation/blockchain/database"
	"github.com/safeguard/fraudledger/foundation/blockchain/state"
)

// sealOperations handles sealing on the timer and on a signal.
func (w *Worker) sealOperations() {
	w.evHandler("worker: sealOperations: G started")
	defer w.evHandler("worker: sealOperations: G completed")

	// A nil channel blocks forever which turns off the timer case.
	var tick <-chan time.Time
	if w.ticker != nil {
		tick = w.ticker.C
	}

	for {
		select {
		case <-tick:
			if !w.isShutdown() {
				w.runSealOperation()
			}
		case <-w.startSeal:
			if !w.isShutdown() {
				w.runSealOperation()
			}
		case <-w.shut:
			w.evHandler("worker: sealOperations: received shut signal")
			return
		}
	}
}

// runSealOperation seals every pending transaction into a new block.
func (w *Worker) runSealOperation() {
	length := w.state.QueryMempoolLength()
	if length == 0 {
		return
	}

	w.evHandler("worker: runSealOperation: MINING: started: Txs[%d]", length)
	defer w.evHandler("worker: runSealOperation: MINING: completed")

	// The worker context is cancelled by a shutdown.
	ctx := w.ctx

	t := time.Now()
	block, err := w.state.ForceSeal(ctx)
	duration := time.Since(t)

	w.evHandler("worker: runSealOperation: MINING: sealing duration[%v]", duration)

	if err != nil {
		switch {
		case errors.Is(err, database.ErrNoTransactions):
			w.evHandler("worker: runSealOperation: MINING: WARNING: no transactions in pool")
		case errors.Is(err, state.ErrPersist):
			w.evHandler("worker: runSealOperation: MINING: WARNING: %s sealed but not saved: %s", block, err)
		case ctx.Err() != nil:
			w.evHandler("worker: runSealOperation: MINING: CANCEL: complete")
		default:
			w.evHandler("worker: runSealOperation: MINING: ERROR: %s", err)
		}
		return
	}

	w.evHandler("worker: runSealOperation: MINING: SEALED: %s", block)
}
