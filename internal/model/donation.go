package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// SettlementState is the derived lifecycle position of a donation. It is
// never stored; it falls out of which processor references are known.
// Transitions only move forward: Pending -> ChargeKnown -> Settled.
type SettlementState string

const (
	SettlementPending     SettlementState = "pending"
	SettlementChargeKnown SettlementState = "charge_known"
	SettlementSettled     SettlementState = "settled"
)

type Donation struct {
	ID                  uuid.UUID `json:"id"`
	CampaignID          string    `json:"campaign_id"`
	ConnectedAccountRef string    `json:"connected_account_ref"`
	PaymentIntentRef    string    `json:"payment_intent_ref"`
	ChargeRef           *string   `json:"charge_ref,omitempty"`
	BalanceTxnRef       *string   `json:"balance_txn_ref,omitempty"`
	FeeCents            int64     `json:"fee_cents"`
	GrossAmountCents    int64     `json:"gross_amount_cents"`
	DonorEmail          *string   `json:"donor_email,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

func (d *Donation) SettlementState() SettlementState {
	switch {
	case d.ChargeRef == nil || *d.ChargeRef == "":
		return SettlementPending
	case d.BalanceTxnRef == nil || *d.BalanceTxnRef == "":
		return SettlementChargeKnown
	default:
		return SettlementSettled
	}
}

// NetAmountCents is always derived, never stored.
func (d *Donation) NetAmountCents() int64 {
	return d.GrossAmountCents - d.FeeCents
}

// DonationCreateRequest is the input for recording a new donation row.
// Campaign CRUD and payment capture live elsewhere; rows arrive here with
// at least a payment-intent reference.
type DonationCreateRequest struct {
	CampaignID          string
	ConnectedAccountRef string
	PaymentIntentRef    string
	GrossAmountCents    int64
	DonorEmail          *string
}

func (p DonationCreateRequest) Validate() error {
	if p.CampaignID == "" {
		return errors.New("campaign_id is required")
	}
	if p.ConnectedAccountRef == "" {
		return errors.New("connected_account_ref is required")
	}
	if p.PaymentIntentRef == "" {
		return errors.New("payment_intent_ref is required")
	}
	if p.GrossAmountCents <= 0 {
		return errors.New("gross_amount_cents must be positive")
	}
	return nil
}

// SettlementCandidate is one unsettled donation annotated with the
// context the processor lookup needs.
type SettlementCandidate struct {
	PaymentIntentRef    string `json:"payment_intent_ref"`
	CampaignID          string `json:"campaign_id"`
	ConnectedAccountRef string `json:"connected_account_ref"`
}

// SettlementUpdate is the write-back for one candidate, matched on the
// unique payment-intent reference. Overwrite semantics: applying the same
// externally observed values twice is a no-op in effect.
type SettlementUpdate struct {
	PaymentIntentRef string
	ChargeRef        string
	BalanceTxnRef    string
	FeeCents         int64
}
