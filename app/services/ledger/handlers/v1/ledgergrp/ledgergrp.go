// Package ledgergrp maintains the group of handlers for ledger access.
package ledgergrp

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/safeguard/fraudledger/business/sys/validate"
	"github.com/safeguard/fraudledger/business/web/errs"
	"github.com/safeguard/fraudledger/foundation/blockchain/database"
	"github.com/safeguard/fraudledger/foundation/blockchain/state"
	"github.com/safeguard/fraudledger/foundation/events"
	"github.com/safeguard/fraudledger/foundation/web"
	"go.uber.org/zap"
)

// Set of transaction status values returned to the client.
const (
	statusPending = "pending"
	statusSealed  = "sealed"
)

// Handlers manages the set of ledger endpoints.
type Handlers struct {
	Log         *zap.SugaredLogger
	State       *state.State
	WS          websocket.Upgrader
	Evts        *events.Events
	MaxPageSize int
}

// Events handles a web socket to provide ledger events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// =============================================================================

// AddPrediction logs a fraud prediction.
func (h Handlers) AddPrediction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var np NewPrediction
	if err := web.Decode(r, &np); err != nil {
		return badRequest(err)
	}

	tx, err := np.toTx()
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	return h.add(ctx, w, tx)
}

// AddFraudReport records a fraud report. Fraud reports are sealed right away.
func (h Handlers) AddFraudReport(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var nfr NewFraudReport
	if err := web.Decode(r, &nfr); err != nil {
		return badRequest(err)
	}

	tx, err := nfr.toTx()
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	return h.add(ctx, w, tx)
}

// AddGeneric records an event of a kind the ledger has no dedicated
// payload for.
func (h Handlers) AddGeneric(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var ng NewGeneric
	if err := web.Decode(r, &ng); err != nil {
		return badRequest(err)
	}

	tx, err := ng.toTx()
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	return h.add(ctx, w, tx)
}

// add submits the transaction to the ledger and reports where it landed.
func (h Handlers) add(ctx context.Context, w http.ResponseWriter, tx database.Tx) error {
	stored, err := h.State.AddTransaction(ctx, tx)
	if stored.ID == "" {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	resp := TxResponse{
		ID:        stored.ID,
		Type:      string(stored.Kind),
		Timestamp: stored.Timestamp,
		Status:    statusPending,
	}

	// The transaction is in the ledger, a failed save or seal is reported
	// as a warning since the client must not submit it again.
	if err != nil {
		h.Log.Warnw("add transaction", "traceid", web.GetTraceID(ctx), "id", stored.ID, "ERROR", err)
		resp.Warning = err.Error()
	}

	if lookup, found := h.State.QueryTransaction(stored.ID); found {
		resp.Status = statusSealed
		resp.BlockIndex = &lookup.BlockIndex
	}

	return web.Respond(ctx, w, resp, http.StatusCreated)
}

// Seal seals the pending transactions into a new block. With async=true the
// request is handed to the background worker.
func (h Handlers) Seal(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		if h.State.Worker == nil {
			return errs.NewTrustedf(http.StatusServiceUnavailable, "background sealing is not running")
		}

		h.State.Worker.SignalSeal()
		return web.Respond(ctx, w, SealResponse{Status: "signaled"}, http.StatusAccepted)
	}

	block, err := h.State.ForceSeal(ctx)
	switch {
	case errors.Is(err, database.ErrNoTransactions):
		return errs.NewTrusted(err, http.StatusConflict)

	case errors.Is(err, state.ErrPersist):
		resp := SealResponse{
			Status:  statusSealed,
			Block:   &block,
			Warning: err.Error(),
		}
		return web.Respond(ctx, w, resp, http.StatusOK)

	case err != nil:
		return err
	}

	return web.Respond(ctx, w, SealResponse{Status: statusSealed, Block: &block}, http.StatusOK)
}

// =============================================================================

// Status returns a summary of the ledger health.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.QueryNetworkStatus(), http.StatusOK)
}

// Stats returns the transaction counts and the chain integrity.
func (h Handlers) Stats(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.QueryStats(), http.StatusOK)
}

// Verify checks the hash linkage of the whole chain.
func (h Handlers) Verify(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.VerifyChain(), http.StatusOK)
}

// Blocks returns the blocks in the index range. The to value can be the
// word latest.
func (h Handlers) Blocks(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	from, err := strconv.ParseUint(web.Param(r, "from"), 10, 64)
	if err != nil {
		return errs.NewTrustedf(http.StatusBadRequest, "invalid from index %q", web.Param(r, "from"))
	}

	to := h.State.RetrieveLatestBlock().Index
	if s := web.Param(r, "to"); s != "latest" {
		if to, err = strconv.ParseUint(s, 10, 64); err != nil {
			return errs.NewTrustedf(http.StatusBadRequest, "invalid to index %q", s)
		}
	}

	if from > to {
		return errs.NewTrustedf(http.StatusBadRequest, "from index %d is after to index %d", from, to)
	}

	return web.Respond(ctx, w, h.State.RetrieveBlocks(from, to), http.StatusOK)
}

// Pending returns the transactions waiting to be sealed.
func (h Handlers) Pending(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.RetrievePending(), http.StatusOK)
}

// QueryTransaction returns a sealed transaction by id.
func (h Handlers) QueryTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id := web.Param(r, "id")

	lookup, found := h.State.QueryTransaction(id)
	if !found {
		return errs.NotFound("transaction", id)
	}

	return web.Respond(ctx, w, lookup, http.StatusOK)
}

// FraudReports returns a page of sealed fraud reports.
func (h Handlers) FraudReports(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	limit, offset, err := h.page(r)
	if err != nil {
		return err
	}

	page := Page[state.FraudReportView]{
		Items:  h.State.QueryFraudReports(limit, offset),
		Limit:  limit,
		Offset: offset,
	}

	return web.Respond(ctx, w, page, http.StatusOK)
}

// Predictions returns a page of sealed predictions.
func (h Handlers) Predictions(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	limit, offset, err := h.page(r)
	if err != nil {
		return err
	}

	page := Page[state.PredictionView]{
		Items:  h.State.QueryPredictions(limit, offset),
		Limit:  limit,
		Offset: offset,
	}

	return web.Respond(ctx, w, page, http.StatusOK)
}

// =============================================================================

// page reads the limit and offset query values.
func (h Handlers) page(r *http.Request) (int, int, error) {
	limit, err := web.QueryInt(r, "limit", state.DefaultPageSize)
	if err != nil {
		return 0, 0, errs.NewTrusted(err, http.StatusBadRequest)
	}

	offset, err := web.QueryInt(r, "offset", 0)
	if err != nil {
		return 0, 0, errs.NewTrusted(err, http.StatusBadRequest)
	}

	if h.MaxPageSize > 0 && limit > h.MaxPageSize {
		limit = h.MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset, nil
}

// badRequest keeps validation errors intact for the error middleware and
// marks anything else as a client error.
func badRequest(err error) error {
	if validate.IsFieldErrors(err) {
		return err
	}

	return errs.NewTrusted(err, http.StatusBadRequest)
}
