package model

import "strconv"

type ViewKind string

const (
	ViewDaily    ViewKind = "daily"
	ViewCampaign ViewKind = "campaign"
)

// DateRange filters the daily view inclusively on calendar day
// (YYYY-MM-DD, UTC). The campaign view ignores it.
type DateRange struct {
	Start string
	End   string
}

// DailyLedgerRow is one UTC calendar day summed across all campaigns.
type DailyLedgerRow struct {
	Day        string `json:"day"         gorm:"column:day"`
	GrossCents int64  `json:"gross_cents" gorm:"column:gross_cents"`
	FeeCents   int64  `json:"fee_cents"   gorm:"column:fee_cents"`
	NetCents   int64  `json:"net_cents"   gorm:"column:net_cents"`
}

func (DailyLedgerRow) CSVHeader() []string {
	return []string{"day", "gross_cents", "fee_cents", "net_cents"}
}

func (r DailyLedgerRow) CSVRecord() []string {
	return []string{
		r.Day,
		strconv.FormatInt(r.GrossCents, 10),
		strconv.FormatInt(r.FeeCents, 10),
		strconv.FormatInt(r.NetCents, 10),
	}
}

// CampaignLedgerRow is a lifetime per-campaign aggregate.
type CampaignLedgerRow struct {
	CampaignID    string `json:"campaign_id"    gorm:"column:campaign_id"`
	GrossCents    int64  `json:"gross_cents"    gorm:"column:gross_cents"`
	FeeCents      int64  `json:"fee_cents"      gorm:"column:fee_cents"`
	NetCents      int64  `json:"net_cents"      gorm:"column:net_cents"`
	DonationCount int64  `json:"donation_count" gorm:"column:donation_count"`
}

func (CampaignLedgerRow) CSVHeader() []string {
	return []string{"campaign_id", "gross_cents", "fee_cents", "net_cents", "donation_count"}
}

func (r CampaignLedgerRow) CSVRecord() []string {
	return []string{
		r.CampaignID,
		strconv.FormatInt(r.GrossCents, 10),
		strconv.FormatInt(r.FeeCents, 10),
		strconv.FormatInt(r.NetCents, 10),
		strconv.FormatInt(r.DonationCount, 10),
	}
}
