package web_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/safeguard/fraudledger/foundation/web"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

type payload struct {
	Name string `json:"name"`
}

func (p payload) Validate() error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func TestApp(t *testing.T) {
	t.Log("Given the need to route requests through the web framework.")
	{
		shutdown := make(chan os.Signal, 1)

		var order []string
		mw := func(name string) web.Middleware {
			return func(handler web.Handler) web.Handler {
				return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
					order = append(order, name)
					return handler(ctx, w, r)
				}
			}
		}

		app := web.NewApp(shutdown, mw("app"))

		app.Handle(http.MethodGet, "v1", "/echo/:name", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			v, err := web.GetValues(ctx)
			if err != nil {
				return err
			}
			resp := map[string]string{"name": web.Param(r, "name"), "traceid": v.TraceID}
			return web.Respond(ctx, w, resp, http.StatusOK)
		}, mw("route"))

		app.Handle(http.MethodPost, "v1", "/decode", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			var p payload
			if err := web.Decode(r, &p); err != nil {
				return web.Respond(ctx, w, map[string]string{"error": err.Error()}, http.StatusBadRequest)
			}
			return web.Respond(ctx, w, p, http.StatusOK)
		})

		app.Handle(http.MethodGet, "", "/fatal", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			return web.NewShutdownError("integrity failure")
		})

		t.Logf("\tTest 0:\tWhen calling a route with a parameter.")
		{
			w := httptest.NewRecorder()
			app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/echo/bill", nil))

			if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"name":"bill"`) {
				t.Fatalf("\t%s\tTest 0:\tShould get the parameter back: %d %s", failed, w.Code, w.Body.String())
			}
			t.Logf("\t%s\tTest 0:\tShould get the parameter back.", success)

			if fmt.Sprint(order) != "[app route]" {
				t.Fatalf("\t%s\tTest 0:\tShould run app middleware first: %v", failed, order)
			}
			t.Logf("\t%s\tTest 0:\tShould run app middleware first.", success)
		}

		t.Logf("\tTest 1:\tWhen decoding a request body.")
		{
			w := httptest.NewRecorder()
			app.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/decode", strings.NewReader(`{"name":""}`)))
			if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "name is required") {
				t.Fatalf("\t%s\tTest 1:\tShould run the model validation: %d %s", failed, w.Code, w.Body.String())
			}
			t.Logf("\t%s\tTest 1:\tShould run the model validation.", success)

			w = httptest.NewRecorder()
			app.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/decode", strings.NewReader(`{"name":"a","extra":1}`)))
			if w.Code != http.StatusBadRequest {
				t.Fatalf("\t%s\tTest 1:\tShould reject unknown fields: %d", failed, w.Code)
			}
			t.Logf("\t%s\tTest 1:\tShould reject unknown fields.", success)
		}

		t.Logf("\tTest 2:\tWhen a handler reports an integrity failure.")
		{
			w := httptest.NewRecorder()
			app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fatal", nil))

			select {
			case <-shutdown:
				t.Logf("\t%s\tTest 2:\tShould signal a shutdown.", success)
			default:
				t.Fatalf("\t%s\tTest 2:\tShould signal a shutdown.", failed)
			}
		}
	}
}
