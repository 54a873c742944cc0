package services

import (
	"context"
	"testing"

	"github.com/giveline/donation-ledger/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockDonationRepo struct {
	mock.Mock
}

func (m *mockDonationRepo) Create(ctx context.Context, d *model.Donation) (*model.Donation, error) {
	args := m.Called(ctx, d)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Donation), args.Error(1)
}

func (m *mockDonationRepo) GetByPaymentIntentRef(ctx context.Context, ref string) (*model.Donation, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Donation), args.Error(1)
}

func TestDonationService_Create(t *testing.T) {
	t.Run("trims and stores", func(t *testing.T) {
		repo := new(mockDonationRepo)
		svc := NewDonationService(repo)

		stored := &model.Donation{
			ID:               uuid.New(),
			CampaignID:       "c1",
			PaymentIntentRef: "pi_1",
			GrossAmountCents: 5000,
		}
		repo.On("Create", mock.Anything, mock.MatchedBy(func(d *model.Donation) bool {
			return d.CampaignID == "c1" && d.PaymentIntentRef == "pi_1" && d.GrossAmountCents == 5000
		})).Return(stored, nil)

		d, err := svc.Create(context.Background(), model.DonationCreateRequest{
			CampaignID:          "  c1 ",
			ConnectedAccountRef: "acct_1",
			PaymentIntentRef:    " pi_1",
			GrossAmountCents:    5000,
		})
		require.NoError(t, err)
		assert.Equal(t, "pi_1", d.PaymentIntentRef)

		repo.AssertExpectations(t)
	})

	t.Run("rejects invalid request", func(t *testing.T) {
		repo := new(mockDonationRepo)
		svc := NewDonationService(repo)

		_, err := svc.Create(context.Background(), model.DonationCreateRequest{
			CampaignID:       "c1",
			PaymentIntentRef: "pi_1",
			GrossAmountCents: 5000,
		})
		assert.Error(t, err)

		_, err = svc.Create(context.Background(), model.DonationCreateRequest{
			CampaignID:          "c1",
			ConnectedAccountRef: "acct_1",
			PaymentIntentRef:    "pi_1",
			GrossAmountCents:    0,
		})
		assert.Error(t, err)

		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}
