package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const accountHeader = "Processor-Account"

// PaymentIntentResponse mirrors the processor's payment intent object
type PaymentIntentResponse struct {
	ID      string           `json:"id"`
	Status  string           `json:"status"`
	Charges []ChargeResponse `json:"charges"`
}

type ChargeResponse struct {
	ID                 string `json:"id"`
	BalanceTransaction string `json:"balance_transaction"`
}

// BalanceTransactionResponse mirrors the processor's settlement record,
// all amounts in integer cents
type BalanceTransactionResponse struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
	Fee    int64  `json:"fee"`
	Net    int64  `json:"net"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status      string    `json:"status"`
	ProcessorID string    `json:"processor_id"`
	Timestamp   time.Time `json:"timestamp"`
	ChargeRate  float64   `json:"charge_rate"`
	SettleRate  float64   `json:"settle_rate"`
}

// MockProcessor simulates the payment processor's read API. Responses
// are random per request; a given intent may gain a charge or a balance
// transaction between polls, which is exactly how settlement looks from
// the platform side.
type MockProcessor struct {
	chargeRate  float64
	settleRate  float64
	feeBps      int64
	feeFixed    int64
	minDelay    time.Duration
	maxDelay    time.Duration
	processorID string
	rng         *rand.Rand
}

func NewMockProcessor(chargeRate, settleRate float64, feeBps, feeFixed int64, minDelay, maxDelay time.Duration) *MockProcessor {
	return &MockProcessor{
		chargeRate:  chargeRate,
		settleRate:  settleRate,
		feeBps:      feeBps,
		feeFixed:    feeFixed,
		minDelay:    minDelay,
		maxDelay:    maxDelay,
		processorID: "MOCK_PSP_" + uuid.New().String()[:8],
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *MockProcessor) simulateIntent(intentRef string) *PaymentIntentResponse {
	time.Sleep(m.randomDelay())

	response := &PaymentIntentResponse{
		ID:     intentRef,
		Status: "processing",
	}

	if m.rng.Float64() >= m.chargeRate {
		log.Info().
			Str("payment_intent", intentRef).
			Msg("Intent has no charge yet")
		return response
	}

	charge := ChargeResponse{
		ID: "ch_" + uuid.New().String()[:12],
	}
	response.Status = "succeeded"

	if m.rng.Float64() < m.settleRate {
		charge.BalanceTransaction = "txn_" + uuid.New().String()[:12]
	}
	response.Charges = []ChargeResponse{charge}

	log.Info().
		Str("payment_intent", intentRef).
		Str("charge", charge.ID).
		Str("balance_transaction", charge.BalanceTransaction).
		Msg("Intent resolved")

	return response
}

func (m *MockProcessor) simulateBalanceTransaction(txnRef string) *BalanceTransactionResponse {
	time.Sleep(m.randomDelay())

	// random gross between $5.00 and $500.00
	amount := int64(m.rng.Intn(49500) + 500)
	fee := amount*m.feeBps/10000 + m.feeFixed

	return &BalanceTransactionResponse{
		ID:     txnRef,
		Amount: amount,
		Fee:    fee,
		Net:    amount - fee,
	}
}

func (m *MockProcessor) randomDelay() time.Duration {
	if m.maxDelay <= m.minDelay {
		return m.minDelay
	}
	delta := m.maxDelay - m.minDelay
	return m.minDelay + time.Duration(m.rng.Int63n(int64(delta)))
}

// Handler struct holds the mock processor and routes
type Handler struct {
	processor *MockProcessor
}

func NewHandler(processor *MockProcessor) *Handler {
	return &Handler{processor: processor}
}

// requireScope rejects requests without the connected account header,
// like the real processor does
func requireScope(c *gin.Context) bool {
	if c.GetHeader(accountHeader) == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": accountHeader + " header is required",
		})
		return false
	}
	return true
}

// GetPaymentIntent handles intent lookups
func (h *Handler) GetPaymentIntent(c *gin.Context) {
	if !requireScope(c) {
		return
	}

	intentRef := c.Param("id")
	if intentRef == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payment intent id is required"})
		return
	}

	c.JSON(http.StatusOK, h.processor.simulateIntent(intentRef))
}

// GetBalanceTransaction handles settlement record lookups
func (h *Handler) GetBalanceTransaction(c *gin.Context) {
	if !requireScope(c) {
		return
	}

	txnRef := c.Param("id")
	if txnRef == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "balance transaction id is required"})
		return
	}

	c.JSON(http.StatusOK, h.processor.simulateBalanceTransaction(txnRef))
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:      "healthy",
		ProcessorID: h.processor.processorID,
		Timestamp:   time.Now(),
		ChargeRate:  h.processor.chargeRate,
		SettleRate:  h.processor.settleRate,
	})
}

// UpdateConfig allows changing processor behavior at runtime
func (h *Handler) UpdateConfig(c *gin.Context) {
	var config struct {
		ChargeRate *float64 `json:"charge_rate"`
		SettleRate *float64 `json:"settle_rate"`
		FeeBps     *int64   `json:"fee_bps"`
	}

	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if config.ChargeRate != nil && *config.ChargeRate >= 0 && *config.ChargeRate <= 1.0 {
		h.processor.chargeRate = *config.ChargeRate
		log.Info().Float64("rate", *config.ChargeRate).Msg("Updated charge rate")
	}
	if config.SettleRate != nil && *config.SettleRate >= 0 && *config.SettleRate <= 1.0 {
		h.processor.settleRate = *config.SettleRate
		log.Info().Float64("rate", *config.SettleRate).Msg("Updated settle rate")
	}
	if config.FeeBps != nil && *config.FeeBps >= 0 {
		h.processor.feeBps = *config.FeeBps
		log.Info().Int64("fee_bps", *config.FeeBps).Msg("Updated fee")
	}

	c.JSON(http.StatusOK, gin.H{
		"charge_rate": h.processor.chargeRate,
		"settle_rate": h.processor.settleRate,
		"fee_bps":     h.processor.feeBps,
	})
}

// SetupRouter configures all routes
func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	// Add request logging middleware
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Msg("Request processed")
	})

	v1 := router.Group("/v1")
	{
		v1.GET("/payment_intents/:id", handler.GetPaymentIntent)
		v1.GET("/balance_transactions/:id", handler.GetBalanceTransaction)
	}

	router.GET("/health", handler.HealthCheck)
	router.PUT("/config", handler.UpdateConfig)

	return router
}

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Get configuration from environment
	port := getEnv("PORT", "8082")
	chargeRate := getEnvFloat("CHARGE_RATE", 0.9)
	settleRate := getEnvFloat("SETTLE_RATE", 0.8)
	feeBps := int64(getEnvFloat("FEE_BPS", 290))
	feeFixed := int64(getEnvFloat("FEE_FIXED_CENTS", 30))
	minDelay := getEnvDuration("MIN_DELAY", 50*time.Millisecond)
	maxDelay := getEnvDuration("MAX_DELAY", 300*time.Millisecond)

	log.Info().
		Str("port", port).
		Float64("charge_rate", chargeRate).
		Float64("settle_rate", settleRate).
		Int64("fee_bps", feeBps).
		Msg("Starting Mock Payment Processor")

	processor := NewMockProcessor(chargeRate, settleRate, feeBps, feeFixed, minDelay, maxDelay)
	handler := NewHandler(processor)
	router := SetupRouter(handler)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
