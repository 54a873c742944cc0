package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fasthttp/router"
	"github.com/giveline/donation-ledger/internal/reconciler"
	xhttp "github.com/giveline/donation-ledger/pkg/http"
	"github.com/giveline/donation-ledger/pkg/logger"
)

const (
	defaultReconcileLimit = 100
	maxReconcileLimit     = 500
)

type ReconcileService interface {
	Reconcile(ctx context.Context, since time.Time, limit int) (*reconciler.Summary, error)
}

type ReconcileHandler struct {
	svc ReconcileService
}

func RegisterReconcileRoutes(e *router.Group, h *ReconcileHandler) {
	e.POST("/reconcile", h.Reconcile)
}

func NewReconcileHandler(reconcileService ReconcileService) *ReconcileHandler {
	return &ReconcileHandler{
		svc: reconcileService,
	}
}

type reconcileRequest struct {
	Since string `json:"since"`
	Limit int    `json:"limit"`
}

type reconcileResponse struct {
	Updated   int `json:"updated"`
	Processed int `json:"processed"`
}

/* --------------------------------- Routes ----------------------------------- */

// Reconcile triggers one batch run. The body is optional; a missing or
// malformed body is treated as an empty request so schedulers can POST
// with no payload.
func (h *ReconcileHandler) Reconcile(ctx *xhttp.RequestCtx) {
	var req reconcileRequest
	if body := ctx.PostBody(); len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			logger.Debug("Ignoring malformed reconcile request body", "error", err)
			req = reconcileRequest{}
		}
	}

	var since time.Time
	if req.Since != "" {
		if t, err := parseTime(req.Since); err == nil {
			since = t
		}
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultReconcileLimit
	}
	if limit > maxReconcileLimit {
		limit = maxReconcileLimit
	}

	summary, err := h.svc.Reconcile(ctx, since, limit)
	if err != nil {
		if errors.Is(err, reconciler.ErrRunInProgress) {
			writeError(ctx, 503, err.Error())
			return
		}
		writeError(ctx, 500, err.Error())
		return
	}

	writeJSON(ctx, 200, reconcileResponse{
		Updated:   summary.Updated,
		Processed: summary.Processed,
	})
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func parseTime(s string) (time.Time, error) {
	// Accept RFC3339 or YYYY-MM-DD
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
