// Package store defines the persistence port for expense records.
package store

import (
	"context"

	"expensebot/internal/core"
)

// RecordStore is the append-only persistence port. Append is the only
// mutation; Search never mutates. Implementations provide at least
// line- or row-atomic appends so concurrent requests cannot corrupt the
// store; a search racing a concurrent append may or may not observe it.
type RecordStore interface {
	Append(ctx context.Context, r core.ExpenseRecord) error
	// Search returns the records of userID whose category, description
	// or date contains the normalized term, in insertion order, along
	// with the sum of their amounts.
	Search(ctx context.Context, userID, term string) (core.SearchResult, error)
}
