package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/giveline/donation-ledger/internal/config"
	gateway "github.com/giveline/donation-ledger/internal/gateways"
	"github.com/giveline/donation-ledger/internal/handlers"
	"github.com/giveline/donation-ledger/internal/reconciler"
	"github.com/giveline/donation-ledger/internal/repository"
	"github.com/giveline/donation-ledger/internal/services"
	xhttp "github.com/giveline/donation-ledger/pkg/http"
	"github.com/giveline/donation-ledger/pkg/logger"
	"github.com/giveline/donation-ledger/pkg/pg"
	"github.com/giveline/donation-ledger/pkg/prom"
	"github.com/giveline/donation-ledger/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	// transport (tcp for now)
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	// reconcile runs block until the batch commits, so the request
	// timeout must outlive the batch timeout
	s.Use(xhttp.TimeoutMiddleware(reconcileBatchTimeout() + 10*time.Second))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	if config.Get().AppDebugMetricsAddr != "" {
		if err := prom.Create(hostname(), config.Get().AppEnv, config.Get().PromNamespace); err != nil {
			logger.Error("failed to register metrics", "error", err)
		}
		go prom.ListenAndServer(config.Get().AppDebugMetricsAddr, config.Get().AppDebugMetricsURI)
	}

	processorClient, err := gateway.NewClient(&gateway.Config{
		BaseURL:    config.Get().ProcessorBaseUrl,
		APIKey:     config.Get().ProcessorApiKey,
		Timeout:    config.Get().ProcessorTimeout,
		MaxRetries: config.Get().ProcessorMaxRetries,
		RetryDelay: config.Get().ProcessorRetryDelay,
	})
	if err != nil {
		logger.Error("failed creating processor client", "error", err)
		return
	}

	donationRepo := repository.NewDonationRepository(db)
	viewRepo := repository.NewLedgerViewRepository(db)

	runLock := reconciler.NewRunLock(redisAdap, reconciler.RunLockConfig{
		TTL: config.Get().ReconcileLockTTL,
	})

	// services
	reconcileService := reconciler.NewService(donationRepo, processorClient, runLock, reconciler.Config{
		Workers:      config.Get().ReconcileWorkers,
		BatchTimeout: config.Get().ReconcileBatchTimeout,
	})
	viewService := services.NewLedgerViewService(viewRepo)
	donationService := services.NewDonationService(donationRepo)

	// v1 handlers
	reconcileHandler := handlers.NewReconcileHandler(reconcileService)
	exportHandler := handlers.NewExportHandler(viewService)
	donationHandler := handlers.NewDonationHandler(donationService)
	healthHandler := handlers.NewHealthHandler()

	g := s.Router.Group("/api/v1")
	handlers.RegisterReconcileRoutes(g, reconcileHandler)
	handlers.RegisterExportRoutes(g, exportHandler)
	handlers.RegisterDonationRoutes(g, donationHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	logger.Info("starting donation-ledger api", "version", version, "commit", commit, "built", date)

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	<-c
	s.Shutdown()
}

func reconcileBatchTimeout() time.Duration {
	if t := config.Get().ReconcileBatchTimeout; t > 0 {
		return t
	}
	return reconciler.DefaultBatchTimeout
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
