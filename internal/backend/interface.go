package backend

import (
	"context"
	"time"

	"gastos/internal/ledger"
	"gastos/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the gateway, the optional movement notifier and a
// cleanup function releasing both.
type BackendResult struct {
	Gateway  storage.Gateway
	Notifier ledger.Notifier // nil when AMQP is disabled
	Cleanup  CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Document specific
	DocumentPath string

	// Relational specific
	SQLiteDBPath    string
	PostgresDSN     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// Movement events, optional
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	DocumentBackend BackendType = "document"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case DocumentBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}
