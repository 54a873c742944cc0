package repository

import (
	"github.com/giveline/donation-ledger/internal/model"
	"github.com/giveline/donation-ledger/pkg/pg"
)

type DonationEntity struct {
	pg.Model
	CampaignID          string  `db:"campaign_id"           gorm:"column:campaign_id;not null;index"`
	ConnectedAccountRef string  `db:"connected_account_ref" gorm:"column:connected_account_ref;not null"`
	PaymentIntentRef    string  `db:"payment_intent_ref"    gorm:"column:payment_intent_ref;not null;uniqueIndex"`
	ChargeRef           *string `db:"charge_ref"            gorm:"column:charge_ref"`
	BalanceTxnRef       *string `db:"balance_txn_ref"       gorm:"column:balance_txn_ref"`
	FeeCents            int64   `db:"fee_cents"             gorm:"column:fee_cents;not null;default:0"`
	GrossAmountCents    int64   `db:"gross_amount_cents"    gorm:"column:gross_amount_cents;not null"`
	DonorEmail          *string `db:"donor_email"           gorm:"column:donor_email"`
}

func (DonationEntity) TableName() string {
	return "donations"
}

func toDonationEntity(d *model.Donation) *DonationEntity {
	if d == nil {
		return nil
	}
	e := &DonationEntity{
		CampaignID:          d.CampaignID,
		ConnectedAccountRef: d.ConnectedAccountRef,
		PaymentIntentRef:    d.PaymentIntentRef,
		ChargeRef:           d.ChargeRef,
		BalanceTxnRef:       d.BalanceTxnRef,
		FeeCents:            d.FeeCents,
		GrossAmountCents:    d.GrossAmountCents,
		DonorEmail:          d.DonorEmail,
	}
	e.ID = d.ID
	e.CreatedAt = d.CreatedAt
	return e
}

func toDonationModel(e *DonationEntity) *model.Donation {
	if e == nil {
		return nil
	}
	return &model.Donation{
		ID:                  e.ID,
		CampaignID:          e.CampaignID,
		ConnectedAccountRef: e.ConnectedAccountRef,
		PaymentIntentRef:    e.PaymentIntentRef,
		ChargeRef:           e.ChargeRef,
		BalanceTxnRef:       e.BalanceTxnRef,
		FeeCents:            e.FeeCents,
		GrossAmountCents:    e.GrossAmountCents,
		DonorEmail:          e.DonorEmail,
		CreatedAt:           e.CreatedAt,
	}
}
