package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"

	"github.com/pharmos-erp/pharmos-erp/internal/app"
	"github.com/pharmos-erp/pharmos-erp/internal/bom"
	"github.com/pharmos-erp/pharmos-erp/internal/eopa"
	"github.com/pharmos-erp/pharmos-erp/internal/invoice"
	"github.com/pharmos-erp/pharmos-erp/internal/ledger"
	"github.com/pharmos-erp/pharmos-erp/internal/masterdata/materials"
	"github.com/pharmos-erp/pharmos-erp/internal/masterdata/medicines"
	"github.com/pharmos-erp/pharmos-erp/internal/masterdata/vendors"
	"github.com/pharmos-erp/pharmos-erp/internal/observability"
	"github.com/pharmos-erp/pharmos-erp/internal/platform/cache"
	"github.com/pharmos-erp/pharmos-erp/internal/platform/db"
	"github.com/pharmos-erp/pharmos-erp/internal/procurement"
	"github.com/pharmos-erp/pharmos-erp/internal/shared"
	"github.com/pharmos-erp/pharmos-erp/internal/sysconfig"
	"github.com/pharmos-erp/pharmos-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	validate := validator.New()
	auditLogger := shared.NewAuditLogger(pool)
	metrics := observability.NewMetrics()

	vendorRepo := vendors.NewRepository(pool)
	vendorService := vendors.NewService(vendorRepo)
	vendorHandler := vendors.NewHandler(logger, vendorService)
	materialRepo := materials.NewRepository(pool)
	medicineRepo := medicines.NewRepository(pool)

	orderRepo := eopa.NewRepository(pool)
	orderService := eopa.NewService(orderRepo, auditLogger)
	orderHandler := eopa.NewHandler(logger, orderService, validate)

	bomRepo := bom.NewRepository(pool)
	explosion := bom.NewEngine(orderRepo, bomRepo, materialRepo)

	procurementRepo := procurement.NewRepository(pool)
	procurementService := procurement.NewService(procurementRepo, orderRepo, explosion, vendorService, medicineRepo, auditLogger, logger)
	procurementHandler := procurement.NewHandler(logger, procurementService, validate, metrics)

	invoiceRepo := invoice.NewRepository(pool)
	invoiceService := invoice.NewService(invoiceRepo, auditLogger, shared.NewIdempotencyStore(pool), logger)
	invoiceHandler := invoice.NewHandler(logger, invoiceService, validate, metrics)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, logger)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	sysconfigRepo := sysconfig.NewRepository(pool)
	sysconfigCache := sysconfig.NewCache(redisClient, cfg.SysconfigCacheTTL)
	sysconfigService := sysconfig.NewService(sysconfigRepo, sysconfigCache, logger)
	sysconfigHandler := sysconfig.NewHandler(logger, sysconfigService, validate)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		OrderHandler:       orderHandler,
		ProcurementHandler: procurementHandler,
		InvoiceHandler:     invoiceHandler,
		LedgerHandler:      ledgerHandler,
		SysconfigHandler:   sysconfigHandler,
		VendorHandler:      vendorHandler,
		JobHandler:         jobHandler,
		Pool:               pool,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
