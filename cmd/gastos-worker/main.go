package main

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"gastos/internal/amqp"
	"gastos/internal/cache"
	"gastos/internal/cli"
	"gastos/internal/config"
	applog "gastos/internal/log"
	gsheet "gastos/internal/sheets/google"
	"gastos/internal/worker"
)

const (
	dedupeCapacity  = 50_000
	cleanupInterval = 10 * time.Minute
	shutdownTimeout = 30 * time.Second
)

func main() {
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cli.LoadEnvFile(logger)

	cfg := config.Load()
	logger = cli.SetupLogger(cfg.LogLevel).WithComponent(applog.ComponentWorker)
	if err := cfg.ValidateWorker(); err != nil {
		cli.Fatal(logger, "Configuration validation failed", err)
	}

	logger.Info("Starting gastos-worker",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue,
		"sheet", cfg.GoogleSheetName)

	sheetsClient, err := gsheet.New(context.Background(), gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsFile: cfg.GoogleCredentialsFile,
		CredentialsJSON: cfg.GoogleCredentialsJSON,
	}, logger)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize Google Sheets client", err)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", err)
	}

	var closeOnce sync.Once
	closeAll := func() {
		closeOnce.Do(func() {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close failed", applog.FieldError, err)
			}
		})
	}
	defer closeAll()

	ctx, _ := cli.GracefulShutdown(logger, shutdownTimeout, closeAll)

	seen := cache.NewLRUCache[struct{}](dedupeCapacity, cfg.DedupeTTL)
	syncWorker := worker.NewSyncWorker(sheetsClient, seen, logger)

	year := time.Now().Year()
	for _, y := range []int{year - 1, year} {
		if _, err := syncWorker.Seed(ctx, sheetsClient, y); err != nil {
			logger.Warn("Could not seed exported message ids", "year", y, applog.FieldError, err)
		}
	}

	manager := cache.NewManager(logger)
	manager.Register(seen)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeMovements(gctx, syncWorker.HandleMovement)
	})
	g.Go(func() error {
		return manager.Run(gctx, cleanupInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		closeAll()
		cli.Fatal(logger, "Worker stopped", err)
	}
	logger.Info("Worker shutdown complete")
}
