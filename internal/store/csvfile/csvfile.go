// Package csvfile persists expense records to an append-only CSV file
// with a fixed five-column schema. The header row is written once at
// initialization when the file does not exist yet.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"expensebot/internal/core"
)

var header = []string{"user_id", "amount", "category", "description", "date"}

type Store struct {
	mu   sync.Mutex
	path string
}

// New opens (or creates) the record file at path and ensures the header
// row is present.
func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create record directory: %w", err)
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("create record file: %w", err)
		}
		w := csv.NewWriter(f)
		if err := w.Write(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("flush header: %w", err)
		}
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("close record file: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat record file: %w", err)
	}

	return &Store{path: path}, nil
}

// Append writes one record as a single CSV line. The store mutex keeps
// concurrent appends line-atomic.
func (s *Store) Append(ctx context.Context, r core.ExpenseRecord) error {
	if err := r.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open record file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	row := []string{r.UserID, core.FormatAmount(r.Amount), r.Category, r.Description, r.Date}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush record: %w", err)
	}

	slog.InfoContext(ctx, "Record appended to CSV",
		"user_id", r.UserID,
		"amount", r.Amount,
		"category", r.Category,
		"date", r.Date)
	return nil
}

// Search scans all records in file order and sums the matching amounts.
func (s *Store) Search(ctx context.Context, userID, term string) (core.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		return core.SearchResult{}, fmt.Errorf("open record file: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = len(header)
	rows, err := cr.ReadAll()
	if err != nil {
		return core.SearchResult{}, fmt.Errorf("read records: %w", err)
	}

	term = core.NormalizeTerm(term)
	var res core.SearchResult
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		rec := core.ExpenseRecord{
			UserID:      row[0],
			Category:    row[2],
			Description: row[3],
			Date:        row[4],
		}
		rec.Amount, err = strconv.ParseFloat(row[1], 64)
		if err != nil {
			return core.SearchResult{}, fmt.Errorf("parse amount on line %d: %w", i+1, err)
		}

		if rec.UserID != userID || !rec.MatchesTerm(term) {
			continue
		}
		res.Total += rec.Amount
		res.Matches = append(res.Matches, rec)
	}

	return res, nil
}
