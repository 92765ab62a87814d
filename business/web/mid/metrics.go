package mid

import (
	"context"
	"net/http"
	"time"

	"github.com/dimfeld/httptreemux/v5"
	"github.com/safeguard/fraudledger/business/sys/metrics"
	"github.com/safeguard/fraudledger/foundation/web"
)

// Metrics updates program counters.
func Metrics(m *metrics.Metrics) web.Middleware {

	// This is the actual middleware function to be executed.
	mw := func(handler web.Handler) web.Handler {

		// Create the handler that will be attached in the middleware chain.
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			// The matched route keeps the label set small.
			route := r.URL.Path
			if data := httptreemux.ContextData(r.Context()); data != nil {
				route = data.Route()
			}

			start := time.Now()

			// Call the next handler.
			err := handler(ctx, w, r)

			// Increment the request and errors counters.
			m.Requests.WithLabelValues(r.Method, route).Inc()
			m.Latency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			if err != nil {
				m.Errors.WithLabelValues(r.Method, route).Inc()
			}

			// Return the error so it can be handled further up the chain.
			return err
		}

		return h
	}

	return mw
}
