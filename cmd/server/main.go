package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/amitoj1996/fieldops-web/internal/auth"
	"github.com/amitoj1996/fieldops-web/internal/budget"
	"github.com/amitoj1996/fieldops-web/internal/config"
	httpserver "github.com/amitoj1996/fieldops-web/internal/interfaces/http"
	"github.com/amitoj1996/fieldops-web/internal/ledger"
	"github.com/amitoj1996/fieldops-web/internal/notify"
	"github.com/amitoj1996/fieldops-web/internal/ocr"
	"github.com/amitoj1996/fieldops-web/internal/report"
	"github.com/amitoj1996/fieldops-web/internal/repository"
	"github.com/amitoj1996/fieldops-web/internal/service"
	"github.com/amitoj1996/fieldops-web/internal/storage"
	"github.com/amitoj1996/fieldops-web/internal/store"
	"github.com/amitoj1996/fieldops-web/internal/worker"
	"github.com/amitoj1996/fieldops-web/pkg/database"
	"github.com/amitoj1996/fieldops-web/pkg/utils"
)

func main() {
	gotenv.Load()

	cfg, err := config.Load(configPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting field operations service",
		zap.Int("port", cfg.Server.Port),
		zap.String("tenant", cfg.Server.DefaultTenant))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	docStore, err := store.NewSQLiteStore(db, logger)
	if err != nil {
		logger.Fatal("Failed to initialize document store", zap.Error(err))
	}

	taskRepo := repository.NewTaskRepository(docStore, logger)
	eventRepo := repository.NewEventRepository(docStore, logger)
	expenseRepo := repository.NewExpenseRepository(docStore, logger)
	productRepo := repository.NewProductRepository(docStore, logger)
	assigneeRepo := repository.NewAssigneeRepository(docStore, logger)

	eventLedger := ledger.New(eventRepo, logger)
	budgetCfg := budget.Config{DefaultLimit: cfg.Budget.DefaultLimit}
	evaluator := budget.NewEvaluator(budgetCfg)

	var notifier notify.Notifier = notify.NoopNotifier{}
	if cfg.Lark.Enabled {
		notifier = notify.NewLarkNotifier(notify.LarkConfig{
			AppID:        cfg.Lark.AppID,
			AppSecret:    cfg.Lark.AppSecret,
			ReviewChatID: cfg.Lark.ReviewChatID,
		}, logger)
	}

	taskService := service.NewTaskService(taskRepo, expenseRepo, eventRepo, eventLedger, budgetCfg, logger)
	expenseService := service.NewExpenseService(expenseRepo, taskRepo, evaluator, notifier, logger)
	productService := service.NewProductService(productRepo, logger)
	directoryService := service.NewDirectoryService(assigneeRepo, taskRepo, logger)
	aggregator := report.NewAggregator(taskRepo, expenseRepo, logger)

	analyzer := buildAnalyzer(cfg, logger)
	issuer, localBlobs, err := buildStorage(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize receipt storage", zap.Error(err))
	}

	var jwtParser *auth.JWTParser
	if cfg.Auth.JWTSecret != "" {
		jwtParser = auth.NewJWTParser(cfg.Auth.JWTSecret)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := worker.NewManager(logger)
	if cfg.Worker.ReminderEnabled {
		manager.Register(worker.NewReviewReminderPoller(
			expenseRepo, taskRepo, notifier,
			cfg.Server.DefaultTenant,
			cfg.Worker.ReminderInterval, cfg.Worker.ReminderStale,
			logger,
		))
	}
	if err := manager.StartAll(ctx); err != nil {
		logger.Fatal("Failed to start background workers", zap.Error(err))
	}
	defer manager.StopAll()

	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		ReadTimeout:   cfg.Server.ReadTimeout,
		WriteTimeout:  cfg.Server.WriteTimeout,
		DefaultTenant: cfg.Server.DefaultTenant,
		AllowOrigins:  cfg.Server.AllowOrigins,
	}, httpserver.Deps{
		Tasks:      taskService,
		Expenses:   expenseService,
		Products:   productService,
		Directory:  directoryService,
		Reports:    aggregator,
		Excel:      report.NewExcelWriter(logger),
		Issuer:     issuer,
		Analyzer:   analyzer,
		LocalBlobs: localBlobs,
		JWTParser:  jwtParser,
	}, logger)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("Shutting down...")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("Server exited with error", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "configs/config.yaml"
}

func buildAnalyzer(cfg *config.Config, logger *zap.Logger) ocr.Analyzer {
	if cfg.OCR.Provider == "openai" {
		return ocr.NewVisionAnalyzer(cfg.OCR.OpenAIKey, cfg.OCR.OpenAIModel, logger)
	}
	return ocr.NewDocIntelAnalyzer(ocr.DocIntelConfig{
		Endpoint:     cfg.OCR.DocIntelEndpoint,
		Key:          cfg.OCR.DocIntelKey,
		PollInterval: cfg.OCR.PollInterval,
		MaxPolls:     cfg.OCR.MaxPolls,
	}, logger)
}

func buildStorage(cfg *config.Config, logger *zap.Logger) (storage.SASIssuer, *storage.LocalBlobStore, error) {
	if cfg.Storage.Mode == "azure" {
		issuer, err := storage.NewAzureSASIssuer(
			cfg.Storage.Account, cfg.Storage.Container, cfg.Storage.AccessKey,
			cfg.Storage.TTL, logger)
		if err != nil {
			return nil, nil, err
		}
		return issuer, nil, nil
	}
	local := storage.NewLocalBlobStore(
		cfg.Storage.LocalDir, cfg.Storage.BaseURL, cfg.Storage.LocalSecret,
		cfg.Storage.TTL, logger)
	return local, local, nil
}
