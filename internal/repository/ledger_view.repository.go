package repository

import (
	"context"

	"github.com/giveline/donation-ledger/internal/model"
	"github.com/giveline/donation-ledger/pkg/pg"
	"gorm.io/gorm"
)

// LedgerViewRepository reads the two derived reporting views. Both are
// plain aggregations over the donations table; this layer owns only the
// read contract, not the storage. All sums are integer cents.
type LedgerViewRepository struct {
	*pg.DB
}

func NewLedgerViewRepository(db *pg.DB) *LedgerViewRepository {
	return &LedgerViewRepository{
		db,
	}
}

// Daily returns one row per UTC calendar day, ascending. The range
// filters inclusively on day; a zero range returns every day.
func (r *LedgerViewRepository) Daily(ctx context.Context, dr model.DateRange) ([]*model.DailyLedgerRow, error) {
	q := r.buildDailyQuery(ctx)
	if dr.Start != "" {
		q = q.Where("date(created_at) >= ?", dr.Start)
	}
	if dr.End != "" {
		q = q.Where("date(created_at) <= ?", dr.End)
	}

	var rows []*model.DailyLedgerRow
	err := q.Group("date(created_at)").
		Order("day ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Campaign returns lifetime totals per campaign, descending by gross.
// There is no date filtering here on purpose; the view is a lifetime
// aggregate.
func (r *LedgerViewRepository) Campaign(ctx context.Context) ([]*model.CampaignLedgerRow, error) {
	var rows []*model.CampaignLedgerRow
	err := r.Read(ctx).Model(&DonationEntity{}).
		Select(`
            campaign_id                              AS campaign_id,
            SUM(gross_amount_cents)                  AS gross_cents,
            SUM(fee_cents)                           AS fee_cents,
            SUM(gross_amount_cents - fee_cents)      AS net_cents,
            COUNT(*)                                 AS donation_count
        `).
		Group("campaign_id").
		Order("gross_cents DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *LedgerViewRepository) buildDailyQuery(ctx context.Context) *gorm.DB {
	return r.Read(ctx).Model(&DonationEntity{}).
		Select(`
            CAST(date(created_at) AS TEXT)           AS day,
            SUM(gross_amount_cents)                  AS gross_cents,
            SUM(fee_cents)                           AS fee_cents,
            SUM(gross_amount_cents - fee_cents)      AS net_cents
        `)
}
