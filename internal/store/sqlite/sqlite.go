// Package sqlite provides a RecordStore backed by an embedded SQLite
// database. Schema changes run through embedded migrations at startup.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"expensebot/internal/core"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Append(ctx context.Context, r core.ExpenseRecord) error {
	if err := r.Validate(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO expense_records (user_id, amount, category, description, date)
		 VALUES (?, ?, ?, ?, ?)`,
		r.UserID, r.Amount, r.Category, r.Description, r.Date)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	slog.InfoContext(ctx, "Record saved to SQLite",
		"user_id", r.UserID,
		"amount", r.Amount,
		"category", r.Category,
		"date", r.Date)
	return nil
}

// Search scans the user's records in insertion order. The substring
// match is done in Go rather than SQL LIKE so that all backends share
// the exact same matching semantics (including quote stripping).
func (s *Store) Search(ctx context.Context, userID, term string) (core.SearchResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, amount, category, description, date
		 FROM expense_records WHERE user_id = ? ORDER BY id`,
		userID)
	if err != nil {
		return core.SearchResult{}, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	term = core.NormalizeTerm(term)
	var res core.SearchResult
	for rows.Next() {
		var rec core.ExpenseRecord
		if err := rows.Scan(&rec.UserID, &rec.Amount, &rec.Category, &rec.Description, &rec.Date); err != nil {
			return core.SearchResult{}, fmt.Errorf("scan record: %w", err)
		}
		if !rec.MatchesTerm(term) {
			continue
		}
		res.Total += rec.Amount
		res.Matches = append(res.Matches, rec)
	}
	if err := rows.Err(); err != nil {
		return core.SearchResult{}, fmt.Errorf("iterate records: %w", err)
	}

	return res, nil
}
