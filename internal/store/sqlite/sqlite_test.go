package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"expensebot/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendSearchRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := core.ExpenseRecord{UserID: "u1", Amount: 50, Category: "lunch", Description: "", Date: "2024-01-01"}
	if err := s.Append(ctx, rec); err != nil {
		t.Fatalf("append: %v", err)
	}

	res, err := s.Search(ctx, "u1", "lunch")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Total != 50 || len(res.Matches) != 1 {
		t.Fatalf("got %+v, want one match totalling 50", res)
	}
	if res.Matches[0] != rec {
		t.Fatalf("round trip mismatch: %+v", res.Matches[0])
	}
}

func TestSearchSemanticsMatchCSVBackend(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Append(ctx, core.ExpenseRecord{UserID: "u1", Amount: 30, Category: "Food", Date: "2024-01-01"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(ctx, core.ExpenseRecord{UserID: "u2", Amount: 99, Category: "Food", Date: "2024-01-01"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	res, err := s.Search(ctx, "u1", `"FOO"`)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Total != 30 || len(res.Matches) != 1 {
		t.Fatalf("case-insensitive quoted substring per user: got %+v", res)
	}
}

func TestSearchEmptyResult(t *testing.T) {
	s := newTestStore(t)

	res, err := s.Search(context.Background(), "nobody", "term")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Total != 0 || len(res.Matches) != 0 {
		t.Fatalf("got %+v, want empty", res)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	if err := RunMigrations(path); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := RunMigrations(path); err != nil {
		t.Fatalf("second run: %v", err)
	}
}
