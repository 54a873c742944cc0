package reconciler

import (
	"context"
	"fmt"
	"time"

	gateway "github.com/giveline/donation-ledger/internal/gateways"
	"github.com/giveline/donation-ledger/internal/model"
	"github.com/giveline/donation-ledger/pkg/logger"
	"github.com/giveline/donation-ledger/pkg/prom"
	"github.com/giveline/donation-ledger/pkg/worker"
)

const (
	DefaultWorkers      = 8
	DefaultBatchTimeout = 2 * time.Minute
)

// CandidateStore is the slice of the ledger the worker needs: an opaque,
// deterministic candidate query and an idempotent settlement write.
type CandidateStore interface {
	FindSettlementCandidates(ctx context.Context, since time.Time, limit int) ([]*model.SettlementCandidate, error)
	UpdateSettlement(ctx context.Context, u model.SettlementUpdate) error
}

// ProcessorClient is the read-only processor API surface.
type ProcessorClient interface {
	GetPaymentIntent(ctx context.Context, ref string, accountRef string) (*gateway.PaymentIntent, error)
	GetBalanceTransaction(ctx context.Context, ref string, accountRef string) (*gateway.BalanceTransaction, error)
}

type Outcome string

const (
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// candidateResult is the explicit per-item outcome. One candidate's fault
// is captured here and never unwinds the batch.
type candidateResult struct {
	ref     string
	outcome Outcome
	err     error
}

// Summary aggregates one reconciliation run. Processed counts candidates
// fetched; Updated counts successful commits, including partial
// settlements where only the charge could be recorded.
type Summary struct {
	Processed int `json:"processed"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

type Config struct {
	Workers      int
	BatchTimeout time.Duration
}

type Service struct {
	store        CandidateStore
	processor    ProcessorClient
	pool         *worker.Pool
	runLock      *RunLock
	batchTimeout time.Duration
	metrics      *ServiceMetrics
}

// NewService wires a reconciliation service. runLock may be nil; then
// overlapping invocations are only guarded by the callers.
func NewService(store CandidateStore, processor ProcessorClient, runLock *RunLock, cfg Config) *Service {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = DefaultBatchTimeout
	}
	return &Service{
		store:        store,
		processor:    processor,
		pool:         worker.NewPool(workers),
		runLock:      runLock,
		batchTimeout: batchTimeout,
		metrics:      NewServiceMetrics(),
	}
}

// Reconcile fetches up to limit unsettled donations created at or after
// since, then backfills their processor-side settlement data. Candidates
// are fetched once and partitioned over the pool; each commit is its own
// atomic unit, so a deadline cancels remaining lookups without touching
// rows already committed.
func (s *Service) Reconcile(ctx context.Context, since time.Time, limit int) (*Summary, error) {
	if s.processor == nil {
		return nil, gateway.ErrMissingCredentials
	}

	if s.runLock != nil {
		lease, err := s.runLock.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		defer lease.Release()
	}

	ctx, cancel := context.WithTimeout(ctx, s.batchTimeout)
	defer cancel()

	start := time.Now()

	candidates, err := s.store.FindSettlementCandidates(ctx, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query settlement candidates: %w", err)
	}

	results := make([]candidateResult, len(candidates))
	jobs := make([]interface{}, len(candidates))
	for i := range candidates {
		jobs[i] = i
	}

	s.pool.Run(ctx, jobs, func(_ int, job interface{}) {
		i := job.(int)
		results[i] = s.reconcileOne(ctx, candidates[i])
	})

	summary := &Summary{Processed: len(candidates)}
	for i, res := range results {
		switch res.outcome {
		case OutcomeUpdated:
			summary.Updated++
		case OutcomeSkipped:
			summary.Skipped++
		case OutcomeFailed:
			summary.Failed++
		default:
			// never handed to a worker: the batch deadline hit first
			summary.Failed++
			logger.Warn("Candidate not processed before deadline", "payment_intent_ref", candidates[i].PaymentIntentRef)
			prom.IncCandidateOutcome(string(OutcomeFailed))
		}
	}

	duration := time.Since(start)
	s.metrics.RecordRun(summary, duration)
	prom.AddReconcileRunDuration(duration.Seconds())

	logger.Info("Reconciliation run finished",
		"processed", summary.Processed,
		"updated", summary.Updated,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"duration", duration.String())

	return summary, nil
}

// reconcileOne resolves and commits settlement data for one candidate.
// Every failure path returns a result value; nothing propagates.
func (s *Service) reconcileOne(ctx context.Context, c *model.SettlementCandidate) candidateResult {
	intent, err := s.processor.GetPaymentIntent(ctx, c.PaymentIntentRef, c.ConnectedAccountRef)
	if err != nil {
		logger.Error("Failed to retrieve payment intent",
			"payment_intent_ref", c.PaymentIntentRef,
			"connected_account_ref", c.ConnectedAccountRef,
			"error", err)
		prom.IncCandidateOutcome(string(OutcomeFailed))
		return candidateResult{ref: c.PaymentIntentRef, outcome: OutcomeFailed, err: err}
	}

	charge := intent.FirstCharge()
	if charge == nil {
		// the intent has not produced a charge yet; it stays a candidate
		// and is re-examined on the next run
		logger.Info("Payment intent has no charge yet, skipping",
			"payment_intent_ref", c.PaymentIntentRef)
		prom.IncCandidateOutcome(string(OutcomeSkipped))
		return candidateResult{ref: c.PaymentIntentRef, outcome: OutcomeSkipped}
	}

	update := model.SettlementUpdate{
		PaymentIntentRef: c.PaymentIntentRef,
		ChargeRef:        charge.ID,
	}

	if charge.BalanceTxnRef != "" {
		txn, err := s.processor.GetBalanceTransaction(ctx, charge.BalanceTxnRef, c.ConnectedAccountRef)
		if err != nil {
			// partial settlement: record the charge now, the fee is
			// picked up on a later run
			logger.Warn("Balance transaction lookup failed, recording charge without fee",
				"payment_intent_ref", c.PaymentIntentRef,
				"balance_txn_ref", charge.BalanceTxnRef,
				"error", err)
		} else {
			update.BalanceTxnRef = charge.BalanceTxnRef
			update.FeeCents = txn.FeeCents
		}
	}

	if err := s.store.UpdateSettlement(ctx, update); err != nil {
		logger.Error("Failed to commit settlement update",
			"payment_intent_ref", c.PaymentIntentRef,
			"charge_ref", update.ChargeRef,
			"error", err)
		prom.IncCandidateOutcome(string(OutcomeFailed))
		return candidateResult{ref: c.PaymentIntentRef, outcome: OutcomeFailed, err: err}
	}

	logger.Info("Donation settlement committed",
		"payment_intent_ref", c.PaymentIntentRef,
		"charge_ref", update.ChargeRef,
		"balance_txn_ref", update.BalanceTxnRef,
		"fee_cents", update.FeeCents)
	prom.IncCandidateOutcome(string(OutcomeUpdated))
	return candidateResult{ref: c.PaymentIntentRef, outcome: OutcomeUpdated}
}

// Stats exposes lifetime service counters for the metrics reporter.
func (s *Service) Stats() map[string]interface{} {
	return s.metrics.GetStats()
}
