package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/giveline/donation-ledger/internal/export"
	"github.com/giveline/donation-ledger/internal/model"
	"github.com/giveline/donation-ledger/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockExportService struct {
	mock.Mock
}

func (m *MockExportService) ExportCSV(ctx context.Context, kind model.ViewKind, dr model.DateRange) ([]byte, string, error) {
	args := m.Called(ctx, kind, dr)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.String(1), args.Error(2)
}

func TestExportHandler_ExportLedger(t *testing.T) {
	t.Run("daily export with range", func(t *testing.T) {
		svc := new(MockExportService)
		handler := NewExportHandler(svc)

		csvBody := []byte("day,gross_cents,fee_cents,net_cents\n2024-03-01,15000,495,14505\n")
		svc.On("ExportCSV", mock.Anything, model.ViewDaily,
			model.DateRange{Start: "2024-03-01", End: "2024-03-31"}).
			Return(csvBody, "ledger_daily_2024-03-01_2024-03-31.csv", nil)

		ctx := setupTestContext("GET", "/ledger/export?start=2024-03-01&end=2024-03-31", nil)
		handler.ExportLedger(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		assert.Contains(t, string(ctx.Response.Header.Peek("Content-Type")), "text/csv")
		assert.Equal(t,
			`attachment; filename="ledger_daily_2024-03-01_2024-03-31.csv"`,
			string(ctx.Response.Header.Peek("Content-Disposition")))
		assert.Equal(t, csvBody, ctx.Response.Body())

		svc.AssertExpectations(t)
	})

	t.Run("type defaults to daily", func(t *testing.T) {
		svc := new(MockExportService)
		handler := NewExportHandler(svc)

		svc.On("ExportCSV", mock.Anything, model.ViewDaily, model.DateRange{}).
			Return([]byte("day\n"), "ledger_daily_all_.csv", nil)

		ctx := setupTestContext("GET", "/ledger/export", nil)
		handler.ExportLedger(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("campaign export", func(t *testing.T) {
		svc := new(MockExportService)
		handler := NewExportHandler(svc)

		svc.On("ExportCSV", mock.Anything, model.ViewCampaign, model.DateRange{}).
			Return([]byte("campaign_id\n"), "ledger_campaign_all_.csv", nil)

		ctx := setupTestContext("GET", "/ledger/export?type=campaign", nil)
		handler.ExportLedger(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("invalid start date", func(t *testing.T) {
		svc := new(MockExportService)
		handler := NewExportHandler(svc)

		ctx := setupTestContext("GET", "/ledger/export?start=03-01-2024", nil)
		handler.ExportLedger(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		svc.AssertNotCalled(t, "ExportCSV", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown view kind", func(t *testing.T) {
		svc := new(MockExportService)
		handler := NewExportHandler(svc)

		svc.On("ExportCSV", mock.Anything, model.ViewKind("weekly"), model.DateRange{}).
			Return(nil, "", services.ErrUnknownViewKind)

		ctx := setupTestContext("GET", "/ledger/export?type=weekly", nil)
		handler.ExportLedger(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})

	t.Run("empty view is not found", func(t *testing.T) {
		svc := new(MockExportService)
		handler := NewExportHandler(svc)

		svc.On("ExportCSV", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, "", export.ErrNoData)

		ctx := setupTestContext("GET", "/ledger/export?start=2030-01-01&end=2030-01-31", nil)
		handler.ExportLedger(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
		assert.Contains(t, string(ctx.Response.Header.Peek("Content-Type")), "text/plain")
	})

	t.Run("service failure", func(t *testing.T) {
		svc := new(MockExportService)
		handler := NewExportHandler(svc)

		svc.On("ExportCSV", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, "", errors.New("db is down"))

		ctx := setupTestContext("GET", "/ledger/export", nil)
		handler.ExportLedger(ctx)

		assert.Equal(t, 500, ctx.Response.StatusCode())

		var response map[string]string
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.Equal(t, "db is down", response["error"])
	})
}

func TestHealthHandler(t *testing.T) {
	handler := NewHealthHandler()

	ctx := setupTestContext("GET", "/health", nil)
	handler.GetHealth(ctx)

	assert.Equal(t, "success", string(ctx.Response.Body()))
}
