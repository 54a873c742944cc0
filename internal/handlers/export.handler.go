package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/fasthttp/router"
	"github.com/giveline/donation-ledger/internal/export"
	"github.com/giveline/donation-ledger/internal/model"
	"github.com/giveline/donation-ledger/internal/services"
	xhttp "github.com/giveline/donation-ledger/pkg/http"
)

type ExportService interface {
	ExportCSV(ctx context.Context, kind model.ViewKind, dr model.DateRange) ([]byte, string, error)
}

type ExportHandler struct {
	svc ExportService
}

func RegisterExportRoutes(e *router.Group, h *ExportHandler) {
	e.GET("/ledger/export", h.ExportLedger)
}

func NewExportHandler(exportService ExportService) *ExportHandler {
	return &ExportHandler{
		svc: exportService,
	}
}

/* --------------------------------- Routes ----------------------------------- */

// ExportLedger streams one ledger view as a CSV download. type selects
// the view (daily by default), start/end bound the daily view by
// calendar day.
func (h *ExportHandler) ExportLedger(ctx *xhttp.RequestCtx) {
	kind := model.ViewDaily
	if v := query(ctx, "type"); v != "" {
		kind = model.ViewKind(v)
	}

	var dr model.DateRange
	if v := query(ctx, "start"); v != "" {
		if !validDay(v) {
			writeError(ctx, 400, "invalid start date, expected YYYY-MM-DD")
			return
		}
		dr.Start = v
	}
	if v := query(ctx, "end"); v != "" {
		if !validDay(v) {
			writeError(ctx, 400, "invalid end date, expected YYYY-MM-DD")
			return
		}
		dr.End = v
	}

	body, filename, err := h.svc.ExportCSV(ctx, kind, dr)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnknownViewKind):
			writeError(ctx, 400, err.Error())
		case errors.Is(err, export.ErrNoData):
			ctx.Response.Header.Set("Content-Type", "text/plain; charset=utf-8")
			ctx.Response.SetStatusCode(404)
			ctx.Response.SetBodyString("no data for the requested range")
		default:
			writeError(ctx, 500, err.Error())
		}
		return
	}

	ctx.Response.Header.Set("Content-Type", "text/csv; charset=utf-8")
	ctx.Response.Header.Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	ctx.Response.SetStatusCode(200)
	ctx.Response.SetBodyRaw(body)
}

func validDay(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}
