package worker_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/safeguard/fraudledger/foundation/blockchain/database"
	"github.com/safeguard/fraudledger/foundation/blockchain/digest"
	"github.com/safeguard/fraudledger/foundation/blockchain/state"
	"github.com/safeguard/fraudledger/foundation/blockchain/storage/memory"
	"github.com/safeguard/fraudledger/foundation/blockchain/worker"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func Test_IntervalSeal(t *testing.T) {
	t.Log("Given the need to seal pending transactions on a timer.")
	{
		st := newState(t, 1)
		defer st.Shutdown()

		worker.Run(st, worker.Config{SealInterval: 20 * time.Millisecond}, nil)

		for i := 0; i < 2; i++ {
			if _, err := st.AddTransaction(context.Background(), newPrediction(t, i)); err != nil {
				t.Fatalf("\t%s\tShould be able to add: %v", failed, err)
			}
		}

		if !waitFor(func() bool { return len(st.RetrieveChain()) == 2 }) {
			t.Fatalf("\t%s\tShould seal a partial batch on the timer.", failed)
		}
		t.Logf("\t%s\tShould seal a partial batch on the timer.", success)

		if n := st.QueryMempoolLength(); n != 0 {
			t.Fatalf("\t%s\tShould leave the pool empty: got %d", failed, n)
		}
		t.Logf("\t%s\tShould leave the pool empty.", success)
	}
}

func Test_SignalSeal(t *testing.T) {
	t.Log("Given the need to seal pending transactions on a signal.")
	{
		st := newState(t, 1)
		defer st.Shutdown()

		w := worker.Run(st, worker.Config{}, nil)

		if _, err := st.AddTransaction(context.Background(), newPrediction(t, 0)); err != nil {
			t.Fatalf("\t%s\tShould be able to add: %v", failed, err)
		}

		time.Sleep(50 * time.Millisecond)
		if l := len(st.RetrieveChain()); l != 1 {
			t.Fatalf("\t%s\tShould not seal without a timer or a signal: blocks[%d]", failed, l)
		}
		t.Logf("\t%s\tShould not seal without a timer or a signal.", success)

		w.SignalSeal()

		if !waitFor(func() bool { return len(st.RetrieveChain()) == 2 }) {
			t.Fatalf("\t%s\tShould seal on a signal.", failed)
		}
		t.Logf("\t%s\tShould seal on a signal.", success)
	}
}

func Test_ShutdownCancelsSeal(t *testing.T) {
	t.Log("Given the need to shut down while a seal can't finish.")
	{
		st := newState(t, digest.Size)

		if _, err := st.AddTransaction(context.Background(), newPrediction(t, 0)); err != nil {
			t.Fatalf("\t%s\tShould be able to add: %v", failed, err)
		}

		w := worker.Run(st, worker.Config{}, nil)
		time.Sleep(50 * time.Millisecond)

		done := make(chan struct{})
		go func() {
			w.Shutdown()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("\t%s\tShould stop the worker in time.", failed)
		}
		t.Logf("\t%s\tShould stop the worker in time.", success)

		if n := st.QueryMempoolLength(); n != 1 {
			t.Fatalf("\t%s\tShould return the batch to the pool: got %d", failed, n)
		}
		t.Logf("\t%s\tShould return the batch to the pool.", success)

		if err := st.Shutdown(); err != nil {
			t.Fatalf("\t%s\tShould shut down the state: %v", failed, err)
		}
		t.Logf("\t%s\tShould shut down the state.", success)
	}
}

func Test_ReloadedPool(t *testing.T) {
	t.Log("Given the need to apply the batch policy to a reloaded pool.")
	{
		strg := memory.New()

		prev, err := state.New(state.Config{Storage: strg, Difficulty: 1, BatchSize: 10})
		if err != nil {
			t.Fatalf("unable to create state: %v", err)
		}
		for i := 0; i < 6; i++ {
			if _, err := prev.AddTransaction(context.Background(), newPrediction(t, i)); err != nil {
				t.Fatalf("\t%s\tShould be able to add: %v", failed, err)
			}
		}

		testID := 0
		t.Logf("\tTest %d:\tWhen the reloaded pool is below the batch size.", testID)
		{
			st, err := state.New(state.Config{Storage: strg, Difficulty: 1, BatchSize: 10})
			if err != nil {
				t.Fatalf("unable to create state: %v", err)
			}

			w := worker.Run(st, worker.Config{}, nil)
			time.Sleep(50 * time.Millisecond)
			w.Shutdown()

			if l, n := len(st.RetrieveChain()), st.QueryMempoolLength(); l != 1 || n != 6 {
				t.Fatalf("\t%s\tTest %d:\tShould keep the pool pending: blocks[%d] pending[%d]", failed, testID, l, n)
			}
			t.Logf("\t%s\tTest %d:\tShould keep the pool pending.", success, testID)
		}

		testID = 1
		t.Logf("\tTest %d:\tWhen the reloaded pool reaches the batch size.", testID)
		{
			st, err := state.New(state.Config{Storage: strg, Difficulty: 1, BatchSize: 5})
			if err != nil {
				t.Fatalf("unable to create state: %v", err)
			}

			w := worker.Run(st, worker.Config{}, nil)
			defer w.Shutdown()

			if !waitFor(func() bool { return len(st.RetrieveChain()) == 2 }) {
				t.Fatalf("\t%s\tTest %d:\tShould seal the full batch on start.", failed, testID)
			}
			if n := st.QueryMempoolLength(); n != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould seal every pending transaction: got %d", failed, testID, n)
			}
			t.Logf("\t%s\tTest %d:\tShould seal the full batch on start.", success, testID)
		}
	}
}

// =============================================================================

func newState(t *testing.T, difficulty uint) *state.State {
	t.Helper()

	st, err := state.New(state.Config{
		Storage:    memory.New(),
		Difficulty: difficulty,
		BatchSize:  5,
	})
	if err != nil {
		t.Fatalf("unable to create state: %v", err)
	}

	return st
}

func newPrediction(t *testing.T, i int) database.Tx {
	tx, err := database.NewPrediction(database.Prediction{
		Type:    "url",
		Input:   map[string]any{"url": fmt.Sprintf("http://prize-%d.test", i)},
		Verdict: database.Verdict{IsFraud: true, Confidence: 0.75, RiskScore: 9},
	})
	if err != nil {
		t.Fatalf("unable to build tx: %v", err)
	}

	return tx
}

func waitFor(f func() bool) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if f() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}

	return false
}
