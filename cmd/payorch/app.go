package main

import (
	"fmt"

	"go.uber.org/zap"

	"payment-orchestrator/internal/audit"
	"payment-orchestrator/internal/config"
	"payment-orchestrator/internal/database"
	"payment-orchestrator/internal/events"
	"payment-orchestrator/internal/gateway"
	"payment-orchestrator/internal/gateway/providers"
	applog "payment-orchestrator/internal/log"
	"payment-orchestrator/internal/repo"
	"payment-orchestrator/internal/service"
)

// app holds everything the subcommands share once config and the database are up.
type app struct {
	cfg      *config.Config
	logger   *zap.SugaredLogger
	db       database.Service
	registry *gateway.Registry

	charges    service.ChargeService
	webhooks   service.WebhookService
	lostOrders service.LostOrderService
}

func loadBase() (*config.Config, *zap.SugaredLogger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := applog.NewLogger(cfg.LogLevel, cfg.LogPath)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

func newApp() (*app, error) {
	cfg, logger, err := loadBase()
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}

	db, err := database.New(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	orders := repo.NewOrderRepo(db.DB())
	settings := gateway.NewSettingsStore(repo.NewSettingRepo(db.Gorm()))
	registry, err := providers.NewRegistry(settings, gateway.Deps{
		Orders:          orders,
		CallbackBaseURL: cfg.CallbackBaseURL,
		Timeout:         cfg.GatewayTimeout,
		Logger:          logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("build gateway registry: %w", err)
	}

	recorder := audit.NewRecorder(repo.NewAuditRepo(db.Gorm()), logger)
	return &app{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		registry:   registry,
		charges:    service.NewChargeService(registry, orders, recorder, logger),
		webhooks:   service.NewWebhookService(registry, orders, recorder, events.NewPGPublisher(db.DB()), logger),
		lostOrders: service.NewLostOrderService(registry, orders, nil),
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warnw("close database", "err", err)
	}
	_ = a.logger.Sync()
}
