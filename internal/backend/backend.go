// Package backend selects and constructs the record store configured
// for this deployment.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"expensebot/internal/config"
	"expensebot/internal/store"
	"expensebot/internal/store/csvfile"
	"expensebot/internal/store/postgres"
	"expensebot/internal/store/sqlite"
)

// CleanupFunc releases backend resources at shutdown.
type CleanupFunc func() error

type Result struct {
	Store   store.RecordStore
	Cleanup CleanupFunc
}

// Type is the configured record backend.
type Type string

const (
	CSVBackend      Type = "csv"
	SQLiteBackend   Type = "sqlite"
	PostgresBackend Type = "postgres"
)

func (t Type) IsValid() bool {
	switch t {
	case CSVBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}

// New creates the record store named by cfg.RecordBackend.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	t := Type(cfg.RecordBackend)
	switch t {
	case CSVBackend:
		s, err := csvfile.New(cfg.CSVPath)
		if err != nil {
			return nil, fmt.Errorf("initialize csv store: %w", err)
		}
		logger.Info("Initialized CSV record store", "path", cfg.CSVPath)
		return &Result{Store: s}, nil

	case SQLiteBackend:
		s, err := sqlite.New(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite store: %w", err)
		}
		logger.Info("Initialized SQLite record store", "db_path", cfg.SQLiteDBPath)
		return &Result{Store: s, Cleanup: s.Close}, nil

	case PostgresBackend:
		s, err := postgres.New(ctx, cfg.DatabaseURI)
		if err != nil {
			return nil, fmt.Errorf("initialize postgres store: %w", err)
		}
		logger.Info("Initialized Postgres record store")
		return &Result{Store: s, Cleanup: func() error { s.Close(); return nil }}, nil

	default:
		return nil, fmt.Errorf("unsupported record backend: %s", cfg.RecordBackend)
	}
}
