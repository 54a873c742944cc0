package reconciler

import (
	"context"
	"errors"
	"testing"
	"time"

	gateway "github.com/giveline/donation-ledger/internal/gateways"
	"github.com/giveline/donation-ledger/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) FindSettlementCandidates(ctx context.Context, since time.Time, limit int) ([]*model.SettlementCandidate, error) {
	args := m.Called(ctx, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.SettlementCandidate), args.Error(1)
}

func (m *mockStore) UpdateSettlement(ctx context.Context, u model.SettlementUpdate) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) GetPaymentIntent(ctx context.Context, ref string, accountRef string) (*gateway.PaymentIntent, error) {
	args := m.Called(ctx, ref, accountRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.PaymentIntent), args.Error(1)
}

func (m *mockProcessor) GetBalanceTransaction(ctx context.Context, ref string, accountRef string) (*gateway.BalanceTransaction, error) {
	args := m.Called(ctx, ref, accountRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.BalanceTransaction), args.Error(1)
}

func candidate(ref string) *model.SettlementCandidate {
	return &model.SettlementCandidate{
		PaymentIntentRef:    ref,
		CampaignID:          "c1",
		ConnectedAccountRef: "acct_1",
	}
}

func newTestService(store CandidateStore, processor ProcessorClient) *Service {
	return NewService(store, processor, nil, Config{Workers: 4, BatchTimeout: 5 * time.Second})
}

func TestService_Reconcile_FullSettlement(t *testing.T) {
	store := new(mockStore)
	processor := new(mockProcessor)
	svc := newTestService(store, processor)

	store.On("FindSettlementCandidates", mock.Anything, mock.Anything, 100).
		Return([]*model.SettlementCandidate{candidate("pi_123")}, nil)
	processor.On("GetPaymentIntent", mock.Anything, "pi_123", "acct_1").
		Return(&gateway.PaymentIntent{
			ID:      "pi_123",
			Status:  "succeeded",
			Charges: []gateway.Charge{{ID: "charge_1", BalanceTxnRef: "txn_1"}},
		}, nil)
	processor.On("GetBalanceTransaction", mock.Anything, "txn_1", "acct_1").
		Return(&gateway.BalanceTransaction{ID: "txn_1", Amount: 1000, FeeCents: 87, NetCents: 913}, nil)
	store.On("UpdateSettlement", mock.Anything, model.SettlementUpdate{
		PaymentIntentRef: "pi_123",
		ChargeRef:        "charge_1",
		BalanceTxnRef:    "txn_1",
		FeeCents:         87,
	}).Return(nil)

	summary, err := svc.Reconcile(context.Background(), time.Time{}, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)

	store.AssertExpectations(t)
	processor.AssertExpectations(t)
}

func TestService_Reconcile_NoChargeIsSkipped(t *testing.T) {
	store := new(mockStore)
	processor := new(mockProcessor)
	svc := newTestService(store, processor)

	store.On("FindSettlementCandidates", mock.Anything, mock.Anything, mock.Anything).
		Return([]*model.SettlementCandidate{candidate("pi_nocharge")}, nil)
	processor.On("GetPaymentIntent", mock.Anything, "pi_nocharge", "acct_1").
		Return(&gateway.PaymentIntent{ID: "pi_nocharge", Status: "requires_payment_method"}, nil)

	summary, err := svc.Reconcile(context.Background(), time.Time{}, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 0, summary.Updated)
	assert.Equal(t, 1, summary.Skipped)

	// no write must happen for a charge-less intent
	store.AssertNotCalled(t, "UpdateSettlement", mock.Anything, mock.Anything)
}

func TestService_Reconcile_BalanceLookupFailureIsPartial(t *testing.T) {
	store := new(mockStore)
	processor := new(mockProcessor)
	svc := newTestService(store, processor)

	store.On("FindSettlementCandidates", mock.Anything, mock.Anything, mock.Anything).
		Return([]*model.SettlementCandidate{candidate("pi_partial")}, nil)
	processor.On("GetPaymentIntent", mock.Anything, "pi_partial", "acct_1").
		Return(&gateway.PaymentIntent{
			ID:      "pi_partial",
			Charges: []gateway.Charge{{ID: "charge_p", BalanceTxnRef: "txn_p"}},
		}, nil)
	processor.On("GetBalanceTransaction", mock.Anything, "txn_p", "acct_1").
		Return(nil, errors.New("processor unavailable"))
	store.On("UpdateSettlement", mock.Anything, model.SettlementUpdate{
		PaymentIntentRef: "pi_partial",
		ChargeRef:        "charge_p",
		BalanceTxnRef:    "",
		FeeCents:         0,
	}).Return(nil)

	summary, err := svc.Reconcile(context.Background(), time.Time{}, 10)
	require.NoError(t, err)
	// the charge alone still advances the donation, so it counts as updated
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 0, summary.Failed)

	store.AssertExpectations(t)
}

func TestService_Reconcile_PerItemIsolation(t *testing.T) {
	store := new(mockStore)
	processor := new(mockProcessor)
	svc := newTestService(store, processor)

	store.On("FindSettlementCandidates", mock.Anything, mock.Anything, mock.Anything).
		Return([]*model.SettlementCandidate{
			candidate("pi_bad"),
			candidate("pi_good"),
		}, nil)

	processor.On("GetPaymentIntent", mock.Anything, "pi_bad", "acct_1").
		Return(nil, errors.New("connection reset"))
	processor.On("GetPaymentIntent", mock.Anything, "pi_good", "acct_1").
		Return(&gateway.PaymentIntent{
			ID:      "pi_good",
			Charges: []gateway.Charge{{ID: "charge_g", BalanceTxnRef: "txn_g"}},
		}, nil)
	processor.On("GetBalanceTransaction", mock.Anything, "txn_g", "acct_1").
		Return(&gateway.BalanceTransaction{ID: "txn_g", FeeCents: 30, NetCents: 970}, nil)
	store.On("UpdateSettlement", mock.Anything, mock.MatchedBy(func(u model.SettlementUpdate) bool {
		return u.PaymentIntentRef == "pi_good"
	})).Return(nil)

	summary, err := svc.Reconcile(context.Background(), time.Time{}, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.Failed)
}

func TestService_Reconcile_CommitFailureCountsAsFailed(t *testing.T) {
	store := new(mockStore)
	processor := new(mockProcessor)
	svc := newTestService(store, processor)

	store.On("FindSettlementCandidates", mock.Anything, mock.Anything, mock.Anything).
		Return([]*model.SettlementCandidate{candidate("pi_commit")}, nil)
	processor.On("GetPaymentIntent", mock.Anything, "pi_commit", "acct_1").
		Return(&gateway.PaymentIntent{
			ID:      "pi_commit",
			Charges: []gateway.Charge{{ID: "charge_c"}},
		}, nil)
	store.On("UpdateSettlement", mock.Anything, mock.Anything).
		Return(errors.New("deadlock detected"))

	summary, err := svc.Reconcile(context.Background(), time.Time{}, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Updated)
	assert.Equal(t, 1, summary.Failed)
}

func TestService_Reconcile_EmptyBatch(t *testing.T) {
	store := new(mockStore)
	processor := new(mockProcessor)
	svc := newTestService(store, processor)

	store.On("FindSettlementCandidates", mock.Anything, mock.Anything, mock.Anything).
		Return([]*model.SettlementCandidate{}, nil)

	summary, err := svc.Reconcile(context.Background(), time.Time{}, 10)
	require.NoError(t, err)
	assert.Equal(t, &Summary{}, summary)
}

func TestService_Reconcile_QueryErrorFailsTheRun(t *testing.T) {
	store := new(mockStore)
	processor := new(mockProcessor)
	svc := newTestService(store, processor)

	store.On("FindSettlementCandidates", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("db is down"))

	_, err := svc.Reconcile(context.Background(), time.Time{}, 10)
	assert.Error(t, err)
}

func TestService_Reconcile_SecondRunIsIdempotent(t *testing.T) {
	store := new(mockStore)
	processor := new(mockProcessor)
	svc := newTestService(store, processor)

	// First run sees one candidate, second run sees none because the
	// candidate query excludes settled rows.
	store.On("FindSettlementCandidates", mock.Anything, mock.Anything, mock.Anything).
		Return([]*model.SettlementCandidate{candidate("pi_once")}, nil).Once()
	store.On("FindSettlementCandidates", mock.Anything, mock.Anything, mock.Anything).
		Return([]*model.SettlementCandidate{}, nil).Once()

	processor.On("GetPaymentIntent", mock.Anything, "pi_once", "acct_1").
		Return(&gateway.PaymentIntent{
			ID:      "pi_once",
			Charges: []gateway.Charge{{ID: "charge_o", BalanceTxnRef: "txn_o"}},
		}, nil)
	processor.On("GetBalanceTransaction", mock.Anything, "txn_o", "acct_1").
		Return(&gateway.BalanceTransaction{ID: "txn_o", FeeCents: 55}, nil)
	store.On("UpdateSettlement", mock.Anything, mock.Anything).Return(nil).Once()

	first, err := svc.Reconcile(context.Background(), time.Time{}, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Updated)

	second, err := svc.Reconcile(context.Background(), time.Time{}, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Processed)
	assert.Equal(t, 0, second.Updated)

	store.AssertExpectations(t)
}

func TestServiceMetrics_RecordRun(t *testing.T) {
	m := NewServiceMetrics()

	m.RecordRun(&Summary{Processed: 5, Updated: 3, Skipped: 1, Failed: 1}, 200*time.Millisecond)
	m.RecordRun(&Summary{Processed: 2, Updated: 2}, 100*time.Millisecond)

	assert.Equal(t, int64(2), m.TotalRuns.Load())
	assert.Equal(t, int64(7), m.TotalProcessed.Load())
	assert.Equal(t, int64(5), m.TotalUpdated.Load())
	assert.Equal(t, int64(1), m.TotalSkipped.Load())
	assert.Equal(t, int64(1), m.TotalFailed.Load())
	assert.Equal(t, int64(150), m.AvgRunDurationMs())

	stats := m.GetStats()
	assert.Equal(t, int64(5), stats["total_updated"])
}
