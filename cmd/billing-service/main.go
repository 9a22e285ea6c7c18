package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/nurpe/wcpms-billing/internal/auth"
	"github.com/nurpe/wcpms-billing/internal/config"
	"github.com/nurpe/wcpms-billing/internal/db"
	"github.com/nurpe/wcpms-billing/internal/excel"
	httphandler "github.com/nurpe/wcpms-billing/internal/http"
	"github.com/nurpe/wcpms-billing/internal/http/middleware"
	"github.com/nurpe/wcpms-billing/internal/logger"
	"github.com/nurpe/wcpms-billing/internal/notify"
	"github.com/nurpe/wcpms-billing/internal/pdf"
	"github.com/nurpe/wcpms-billing/internal/repository"
	"github.com/nurpe/wcpms-billing/internal/service"
	"github.com/nurpe/wcpms-billing/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	contractRepo := repository.NewContractRepository(database)
	customerRepo := repository.NewCustomerRepository(database)
	invoiceRepo := repository.NewInvoiceRepository(database)
	readingRepo := repository.NewReadingRepository(database)
	feeRepo := repository.NewFeeRepository(database)
	tariffRepo := repository.NewTariffRepository(database)
	requestRepo := repository.NewRequestRepository(database)
	auditRepo := repository.NewAuditRepository(database)

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	}
	dispatcher := notify.NewDispatcher(redisClient, log)

	contractService := service.NewContractService(contractRepo, customerRepo, auditRepo, dispatcher, cfg)
	approvalService := service.NewApprovalService(requestRepo, contractRepo, customerRepo, auditRepo, dispatcher)
	billingService := service.NewBillingService(invoiceRepo, readingRepo, feeRepo, contractRepo, tariffRepo, auditRepo, dispatcher, cfg)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(contractService, approvalService, billingService, excel.NewGenerator(), pdf.NewGenerator(), log)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	scheduler := worker.NewScheduler(contractService, billingService, cfg.Billing.SchedulerTick, log)
	scheduler.Start(ctx)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Msg("starting billing service")

	if err := router.Run(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
