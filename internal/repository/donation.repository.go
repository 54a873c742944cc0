package repository

import (
	"context"
	"errors"
	"time"

	"github.com/giveline/donation-ledger/internal/model"
	"github.com/giveline/donation-ledger/pkg/pg"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when no donation matches the given
	// payment-intent reference.
	ErrNotFound = errors.New("donation not found")
)

const MaxCandidateLimit = 500

type DonationRepository struct {
	*pg.DB
}

func NewDonationRepository(db *pg.DB) *DonationRepository {
	return &DonationRepository{
		db,
	}
}

func (r *DonationRepository) Create(ctx context.Context, d *model.Donation) (*model.Donation, error) {
	entity := toDonationEntity(d)
	if entity.ID == uuid.Nil {
		entity.ID = uuid.New()
	}

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toDonationModel(entity), nil
}

func (r *DonationRepository) GetByPaymentIntentRef(ctx context.Context, ref string) (*model.Donation, error) {
	var entity DonationEntity
	err := r.Read(ctx).Where("payment_intent_ref = ?", ref).First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toDonationModel(&entity), nil
}

// FindSettlementCandidates returns donations whose settlement is still
// incomplete: no balance transaction recorded yet. Rows in ChargeKnown are
// included so a fee that was unavailable last run is picked up on the
// next one; Settled rows never re-qualify, which is what keeps re-runs
// over an overlapping window idempotent.
func (r *DonationRepository) FindSettlementCandidates(ctx context.Context, since time.Time, limit int) ([]*model.SettlementCandidate, error) {
	if limit <= 0 || limit > MaxCandidateLimit {
		limit = MaxCandidateLimit
	}

	q := r.Read(ctx).Model(&DonationEntity{}).
		Where("balance_txn_ref IS NULL OR balance_txn_ref = ''")
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since)
	}

	var candidates []*model.SettlementCandidate
	err := q.Select("payment_intent_ref, campaign_id, connected_account_ref").
		Order("created_at ASC").
		Limit(limit).
		Scan(&candidates).Error
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

// UpdateSettlement overwrites the settlement fields of exactly one row,
// matched on the unique payment-intent reference. The state machine only
// moves forward: a row that already carries a different balance
// transaction is left untouched, and re-applying identical values is a
// no-op in effect.
func (r *DonationRepository) UpdateSettlement(ctx context.Context, u model.SettlementUpdate) error {
	var balanceTxnRef *string
	if u.BalanceTxnRef != "" {
		balanceTxnRef = &u.BalanceTxnRef
	}

	res := r.Write(ctx).Model(&DonationEntity{}).
		Where("payment_intent_ref = ?", u.PaymentIntentRef).
		Where("balance_txn_ref IS NULL OR balance_txn_ref = '' OR balance_txn_ref = ?", u.BalanceTxnRef).
		Updates(map[string]interface{}{
			"charge_ref":      u.ChargeRef,
			"balance_txn_ref": balanceTxnRef,
			"fee_cents":       u.FeeCents,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	// Nothing matched: either the row does not exist, or it is already
	// settled with a different balance transaction. The latter must not
	// regress, so it is not an error.
	var count int64
	if err := r.Read(ctx).Model(&DonationEntity{}).
		Where("payment_intent_ref = ?", u.PaymentIntentRef).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}
