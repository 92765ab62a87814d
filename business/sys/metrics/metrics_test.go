package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/safeguard/fraudledger/business/sys/metrics"
	"github.com/safeguard/fraudledger/foundation/blockchain/state"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

type ledger struct {
	calls atomic.Int32
}

func (l *ledger) QueryNetworkStatus() state.NetworkStatus {
	l.calls.Add(1)
	return state.NetworkStatus{ChainLength: 3, PendingTransactions: 2, IntegrityVerified: true}
}

func TestMetrics(t *testing.T) {
	t.Log("Given the need to expose ledger metrics to a scraper.")
	{
		m := metrics.New()
		var ldg ledger
		m.RegisterLedger(&ldg)
		m.Requests.WithLabelValues(http.MethodGet, "/v1/ledger/stats").Inc()

		w := httptest.NewRecorder()
		m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		body, _ := io.ReadAll(w.Body)
		for _, exp := range []string{
			"ledger_chain_length 3",
			"ledger_pending_transactions 2",
			"ledger_integrity_verified 1",
			`ledger_requests_total{method="GET",route="/v1/ledger/stats"} 1`,
		} {
			if !strings.Contains(string(body), exp) {
				t.Fatalf("\t%s\tShould expose %q:\n%s", failed, exp, body)
			}
		}
		t.Logf("\t%s\tShould expose the ledger and request metrics.", success)

		if n := ldg.calls.Load(); n != 1 {
			t.Fatalf("\t%s\tShould read the ledger status once per scrape: got %d", failed, n)
		}
		t.Logf("\t%s\tShould read the ledger status once per scrape.", success)
	}
}
