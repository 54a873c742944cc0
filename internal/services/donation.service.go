package services

import (
	"context"
	"strings"

	"github.com/giveline/donation-ledger/internal/model"
)

type DonationRepository interface {
	Create(ctx context.Context, d *model.Donation) (*model.Donation, error)
	GetByPaymentIntentRef(ctx context.Context, ref string) (*model.Donation, error)
}

// DonationService records donation rows fed in by the platform's payment
// flow. Rows arrive already captured; the ledger only tracks them.
type DonationService struct {
	donationRepo DonationRepository
}

func NewDonationService(donationRepo DonationRepository) *DonationService {
	return &DonationService{
		donationRepo: donationRepo,
	}
}

func (s *DonationService) Create(ctx context.Context, p model.DonationCreateRequest) (*model.Donation, error) {
	p.CampaignID = strings.TrimSpace(p.CampaignID)
	p.ConnectedAccountRef = strings.TrimSpace(p.ConnectedAccountRef)
	p.PaymentIntentRef = strings.TrimSpace(p.PaymentIntentRef)

	if err := p.Validate(); err != nil {
		return nil, err
	}

	d := &model.Donation{
		CampaignID:          p.CampaignID,
		ConnectedAccountRef: p.ConnectedAccountRef,
		PaymentIntentRef:    p.PaymentIntentRef,
		GrossAmountCents:    p.GrossAmountCents,
		DonorEmail:          p.DonorEmail,
	}

	return s.donationRepo.Create(ctx, d)
}

func (s *DonationService) GetByPaymentIntentRef(ctx context.Context, ref string) (*model.Donation, error) {
	return s.donationRepo.GetByPaymentIntentRef(ctx, ref)
}
