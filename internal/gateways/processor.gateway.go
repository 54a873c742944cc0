package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/giveline/donation-ledger/pkg/logger"
	"github.com/valyala/fasthttp"
)

var (
	ErrMissingCredentials = errors.New("processor credentials are not configured")
	ErrMissingAccount     = errors.New("connected account reference is required")
	ErrNotFound           = errors.New("processor object not found")
)

// AccountHeader scopes every read to the organizer's sub-account. Funds
// for different organizers live in logically separate sub-accounts;
// an unscoped lookup fails or answers for the wrong account.
const AccountHeader = "Processor-Account"

// PaymentIntent is the processor's view of an attempted charge.
type PaymentIntent struct {
	ID      string   `json:"id"`
	Status  string   `json:"status"`
	Charges []Charge `json:"charges"`
}

// FirstCharge returns the intent's first charge, or nil when the intent
// has not produced one yet.
func (pi *PaymentIntent) FirstCharge() *Charge {
	if len(pi.Charges) == 0 {
		return nil
	}
	return &pi.Charges[0]
}

type Charge struct {
	ID            string `json:"id"`
	BalanceTxnRef string `json:"balance_transaction"`
}

// BalanceTransaction is the processor's settlement record for a charge.
// All amounts are integer cents.
type BalanceTransaction struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	FeeCents int64  `json:"fee"`
	NetCents int64  `json:"net"`
}

// ClientMetrics tracks request outcomes for the processor client.
type ClientMetrics struct {
	TotalRequests    atomic.Int64
	SuccessfulReqs   atomic.Int64
	FailedReqs       atomic.Int64
	TotalLatencyMs   atomic.Int64
	LastLatencyMs    atomic.Int64
	ConsecutiveFails atomic.Int32
	LastErrorTime    atomic.Int64
	LastSuccessTime  atomic.Int64
}

func NewClientMetrics() *ClientMetrics {
	return &ClientMetrics{}
}

func (m *ClientMetrics) RecordSuccess(latencyMs int64) {
	m.TotalRequests.Add(1)
	m.SuccessfulReqs.Add(1)
	m.TotalLatencyMs.Add(latencyMs)
	m.LastLatencyMs.Store(latencyMs)
	m.ConsecutiveFails.Store(0)
	m.LastSuccessTime.Store(time.Now().Unix())
}

func (m *ClientMetrics) RecordFailure() {
	m.TotalRequests.Add(1)
	m.FailedReqs.Add(1)
	m.ConsecutiveFails.Add(1)
	m.LastErrorTime.Store(time.Now().Unix())
}

func (m *ClientMetrics) AvgLatencyMs() int64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 0
	}
	return m.TotalLatencyMs.Load() / total
}

func (m *ClientMetrics) SuccessRate() float64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 1.0
	}
	return float64(m.SuccessfulReqs.Load()) / float64(total)
}

type Config struct {
	BaseURL         string
	APIKey          string
	Timeout         time.Duration
	MaxRetries      int
	RetryDelay      time.Duration
	MaxConns        int
	ReadBufferSize  int
	WriteBufferSize int
}

// Client is a read-only processor API client. It never creates or
// mutates processor objects; reconciliation only observes them.
type Client struct {
	config  *Config
	client  *fasthttp.Client
	metrics *ClientMetrics
}

func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.BaseURL == "" || config.APIKey == "" {
		return nil, ErrMissingCredentials
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}

	httpClient := &fasthttp.Client{
		MaxConnsPerHost:     config.MaxConns,
		ReadTimeout:         config.Timeout,
		WriteTimeout:        config.Timeout,
		MaxIdleConnDuration: 60 * time.Second,
		ReadBufferSize:      config.ReadBufferSize,
		WriteBufferSize:     config.WriteBufferSize,
	}

	logger.Info("Processor client initialized", "base_url", config.BaseURL, "timeout", config.Timeout)

	return &Client{
		config:  config,
		client:  httpClient,
		metrics: NewClientMetrics(),
	}, nil
}

// GetPaymentIntent retrieves a payment intent scoped to the given
// connected account.
func (c *Client) GetPaymentIntent(ctx context.Context, ref string, accountRef string) (*PaymentIntent, error) {
	var intent PaymentIntent
	path := fmt.Sprintf("/v1/payment_intents/%s", ref)
	if err := c.getJSON(ctx, path, accountRef, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

// GetBalanceTransaction retrieves a charge's settlement record scoped to
// the given connected account.
func (c *Client) GetBalanceTransaction(ctx context.Context, ref string, accountRef string) (*BalanceTransaction, error) {
	var txn BalanceTransaction
	path := fmt.Sprintf("/v1/balance_transactions/%s", ref)
	if err := c.getJSON(ctx, path, accountRef, &txn); err != nil {
		return nil, err
	}
	return &txn, nil
}

func (c *Client) Metrics() *ClientMetrics {
	return c.metrics
}

func (c *Client) getJSON(ctx context.Context, path string, accountRef string, dst any) error {
	if accountRef == "" {
		return ErrMissingAccount
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		startTime := time.Now()
		body, err := c.doRequest(ctx, path, accountRef)
		latency := time.Since(startTime).Milliseconds()

		if err != nil {
			c.metrics.RecordFailure()
			if errors.Is(err, ErrNotFound) {
				// 404 is definitive, retrying cannot help
				return err
			}
			logger.Warn("Processor request failed, retrying", "error", err, "path", path, "attempt", attempt+1)
			lastErr = err
			continue
		}

		c.metrics.RecordSuccess(latency)

		if err := json.Unmarshal(body, dst); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
		return nil
	}

	return fmt.Errorf("failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

func (c *Client) doRequest(ctx context.Context, path string, accountRef string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.BaseURL + path)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set(AccountHeader, accountRef)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}

	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	statusCode := resp.StatusCode()
	if statusCode == fasthttp.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if statusCode != fasthttp.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", statusCode, resp.Body())
	}

	result := make([]byte, len(resp.Body()))
	copy(result, resp.Body())

	return result, nil
}
