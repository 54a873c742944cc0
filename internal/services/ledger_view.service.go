package services

import (
	"context"

	"github.com/pkg/errors"

	"github.com/giveline/donation-ledger/internal/export"
	"github.com/giveline/donation-ledger/internal/model"
	"github.com/giveline/donation-ledger/pkg/logger"
)

// ErrUnknownViewKind rejects anything that is not a defined view.
var ErrUnknownViewKind = errors.New("unknown ledger view kind")

// LedgerViewReader is the aggregation surface the service consumes.
type LedgerViewReader interface {
	Daily(ctx context.Context, dr model.DateRange) ([]*model.DailyLedgerRow, error)
	Campaign(ctx context.Context) ([]*model.CampaignLedgerRow, error)
}

// LedgerViewService resolves a view kind to its rows and serializes them
// for download. The daily view honors the date range; the campaign view
// is a lifetime aggregate and ignores it.
type LedgerViewService struct {
	views LedgerViewReader
}

func NewLedgerViewService(views LedgerViewReader) *LedgerViewService {
	return &LedgerViewService{views: views}
}

// GetView returns the rows of one view as export records, preserving the
// repository's ordering.
func (s *LedgerViewService) GetView(ctx context.Context, kind model.ViewKind, dr model.DateRange) ([]export.Record, error) {
	switch kind {
	case model.ViewDaily:
		rows, err := s.views.Daily(ctx, dr)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load daily ledger view")
		}
		records := make([]export.Record, 0, len(rows))
		for _, r := range rows {
			records = append(records, *r)
		}
		return records, nil

	case model.ViewCampaign:
		rows, err := s.views.Campaign(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load campaign ledger view")
		}
		records := make([]export.Record, 0, len(rows))
		for _, r := range rows {
			records = append(records, *r)
		}
		return records, nil
	}

	return nil, errors.Wrapf(ErrUnknownViewKind, "%q", kind)
}

// ExportCSV renders one view as a CSV document plus its download name.
func (s *LedgerViewService) ExportCSV(ctx context.Context, kind model.ViewKind, dr model.DateRange) ([]byte, string, error) {
	records, err := s.GetView(ctx, kind, dr)
	if err != nil {
		return nil, "", err
	}

	body, err := export.ToCSV(kind, records)
	if err != nil {
		return nil, "", err
	}

	// the campaign view ignores the range, so its filename must not
	// carry dates that had no effect
	nameRange := dr
	if kind == model.ViewCampaign {
		nameRange = model.DateRange{}
	}

	logger.Info("Ledger view exported",
		"kind", kind,
		"start", dr.Start,
		"end", dr.End,
		"rows", len(records))

	return body, export.Filename(kind, nameRange), nil
}
