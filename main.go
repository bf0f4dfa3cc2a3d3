package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"os/signal"
	"syscall"

	"signalTrackerBot/config"
	"signalTrackerBot/internal/adapters/binanceclient"
	"signalTrackerBot/internal/adapters/logger"
	"signalTrackerBot/internal/adapters/sqlite"
	"signalTrackerBot/internal/adapters/telegram"
	"signalTrackerBot/internal/app"
	"signalTrackerBot/internal/automation"
	"signalTrackerBot/internal/bot"
	"signalTrackerBot/internal/delivery"
	"signalTrackerBot/internal/risk"
	"signalTrackerBot/internal/scheduler"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()

	// 4. Initialize Telegram Transport
	transport, err := telegram.NewClient(telegram.Config{
		Token:  cfg.TelegramBotToken,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Telegram client")
		log.Fatalf("FATAL: Failed to initialize Telegram client: %v", err)
	}

	// 5. Initialize Exchange Client (Binance Adapter)
	exchange, err := binanceclient.New(binanceclient.Config{
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}

	// 6. Wire the notification pipeline and automation dispatcher
	pipeline, err := delivery.NewPipeline(transport, repo, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize delivery pipeline")
		log.Fatalf("FATAL: Failed to initialize delivery pipeline: %v", err)
	}

	dispatcher, err := automation.NewDispatcher(repo, repo, repo, repo, pipeline, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize automation dispatcher")
		log.Fatalf("FATAL: Failed to initialize automation dispatcher: %v", err)
	}

	// 7. Initialize Application Service
	calc := risk.NewCalculator(risk.Config{
		MinNotional: cfg.MinNotional,
		MinQuantity: cfg.MinQuantity,
	})
	svc, err := app.NewService(appLogger, repo, repo, dispatcher, calc)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize application service")
		log.Fatalf("FATAL: Failed to initialize application service: %v", err)
	}

	// 8. Start the operator command handler and the Scheduler
	sched, err := scheduler.New(scheduler.Config{
		TickInterval: cfg.TickInterval,
		BalanceEvery: cfg.BalanceEvery,
		PNLEvery:     cfg.PNLEvery,
	}, repo, repo, exchange, dispatcher, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize scheduler")
		log.Fatalf("FATAL: Failed to initialize scheduler: %v", err)
	}

	handler, err := bot.NewHandler(svc, transport, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize command handler")
		log.Fatalf("FATAL: Failed to initialize command handler: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handler.Run(ctx, transport.Updates())
	sched.Start(ctx)

	// 9. Wait for shutdown signal, then drain
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	appLogger.Info(ctx, "Shutdown signal received", map[string]interface{}{"signal": sig.String()})

	transport.StopUpdates()
	sched.Stop()
	sched.Wait()
	appLogger.Info(context.Background(), "Application finished gracefully.")
}
