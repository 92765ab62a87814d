// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/safeguard/fraudledger/app/services/ledger/handlers/v1/ledgergrp"
	"github.com/safeguard/fraudledger/foundation/blockchain/state"
	"github.com/safeguard/fraudledger/foundation/events"
	"github.com/safeguard/fraudledger/foundation/web"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log         *zap.SugaredLogger
	State       *state.State
	Evts        *events.Events
	MaxPageSize int
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	lgh := ledgergrp.Handlers{
		Log:         cfg.Log,
		State:       cfg.State,
		WS:          websocket.Upgrader{},
		Evts:        cfg.Evts,
		MaxPageSize: cfg.MaxPageSize,
	}

	app.Handle(http.MethodGet, version, "/events", lgh.Events)
	app.Handle(http.MethodGet, version, "/ledger/status", lgh.Status)
	app.Handle(http.MethodGet, version, "/ledger/stats", lgh.Stats)
	app.Handle(http.MethodGet, version, "/ledger/verify", lgh.Verify)
	app.Handle(http.MethodGet, version, "/ledger/blocks/:from/:to", lgh.Blocks)
	app.Handle(http.MethodPost, version, "/ledger/seal", lgh.Seal)
	app.Handle(http.MethodGet, version, "/tx/pending", lgh.Pending)
	app.Handle(http.MethodGet, version, "/tx/:id", lgh.QueryTransaction)
	app.Handle(http.MethodPost, version, "/tx/prediction", lgh.AddPrediction)
	app.Handle(http.MethodPost, version, "/tx/fraud", lgh.AddFraudReport)
	app.Handle(http.MethodPost, version, "/tx/generic", lgh.AddGeneric)
	app.Handle(http.MethodGet, version, "/fraud/reports", lgh.FraudReports)
	app.Handle(http.MethodGet, version, "/predictions", lgh.Predictions)
}
