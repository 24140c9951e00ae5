package backend

import (
	"context"
	"errors"
	"fmt"

	"gastos/internal/amqp"
	applog "gastos/internal/log"
	"gastos/internal/storage"
	"gastos/internal/storage/document"
	"gastos/internal/storage/relational"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(applog.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		gw  storage.Gateway
		err error
	)
	switch config.Type {
	case DocumentBackend:
		gw, err = f.createDocumentBackend(config)
	case SQLiteBackend:
		gw, err = f.createRelationalBackend(ctx, relational.DriverSQLite, config.SQLiteDBPath, config)
	case PostgresBackend:
		gw, err = f.createRelationalBackend(ctx, relational.DriverPostgres, config.PostgresDSN, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	result := &BackendResult{Gateway: gw}

	// AMQP is optional; the ledger works without movement events
	var amqpClient *amqp.Client
	if config.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without movement events",
				applog.FieldError, err)
		} else {
			result.Notifier = amqpClient
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	result.Cleanup = func() error {
		var errs []error
		if amqpClient != nil {
			errs = append(errs, amqpClient.Close())
		}
		errs = append(errs, gw.Close())
		return errors.Join(errs...)
	}
	return result, nil
}

func (f *DefaultFactory) createDocumentBackend(config Config) (storage.Gateway, error) {
	store, err := document.Open(config.DocumentPath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open document store: %w", err)
	}

	f.logger.Info("Initialized document backend", "path", config.DocumentPath)
	return store, nil
}

func (f *DefaultFactory) createRelationalBackend(ctx context.Context, driver, dsn string, config Config) (storage.Gateway, error) {
	store, err := relational.Open(ctx, relational.Config{
		Driver:          driver,
		DSN:             dsn,
		MaxOpenConns:    config.MaxOpenConns,
		MaxIdleConns:    config.MaxIdleConns,
		ConnMaxLifetime: config.ConnMaxLifetime,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s store: %w", driver, err)
	}

	f.logger.Info("Initialized relational backend", applog.FieldBackend, driver)
	return store, nil
}
