// Package postgres provides a RecordStore backed by PostgreSQL via pgx.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"expensebot/internal/core"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, uri string) (*Store, error) {
	pool, err := pgxpool.New(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS expense_records (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			amount DOUBLE PRECISION NOT NULL DEFAULT 0,
			category TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			date TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_expense_records_user_id ON expense_records(user_id);
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, r core.ExpenseRecord) error {
	if err := r.Validate(); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO expense_records (user_id, amount, category, description, date)
		 VALUES ($1, $2, $3, $4, $5)`,
		r.UserID, r.Amount, r.Category, r.Description, r.Date)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	slog.InfoContext(ctx, "Record saved to Postgres",
		"user_id", r.UserID,
		"amount", r.Amount,
		"category", r.Category,
		"date", r.Date)
	return nil
}

// Search filters in Go after fetching the user's records so matching
// semantics stay identical across backends.
func (s *Store) Search(ctx context.Context, userID, term string) (core.SearchResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, amount, category, description, date
		 FROM expense_records WHERE user_id = $1 ORDER BY id`,
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
