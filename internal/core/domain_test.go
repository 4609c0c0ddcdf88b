package core

import "testing"

func TestExpenseRecordValidate(t *testing.T) {
	good := ExpenseRecord{UserID: "u1", Amount: 50, Category: "lunch", Date: "2024-01-01"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		r ExpenseRecord
	}{
		{ExpenseRecord{UserID: "", Amount: 1, Date: "2024-01-01"}},
		{ExpenseRecord{UserID: "  ", Amount: 1, Date: "2024-01-01"}},
		{ExpenseRecord{UserID: "u1", Amount: 1, Date: "yesterday"}},
		{ExpenseRecord{UserID: "u1", Amount: 1, Date: "2024-1-1"}},
		{ExpenseRecord{UserID: "u1", Amount: -1, Date: "2024-01-01"}},
	}
	for i, tc := range cases {
		if err := tc.r.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestMatchesTerm(t *testing.T) {
	r := ExpenseRecord{UserID: "u1", Amount: 12, Category: "Food", Description: "Business lunch meeting", Date: "2024-02-10"}

	cases := []struct {
		term string
		want bool
	}{
		{"foo", true},   // substring of category, case-insensitive
		{"lunch", true}, // substring of description
		{"2024-02", true},
		{"transport", false},
		{"", false},
	}
	for i, tc := range cases {
		if got := r.MatchesTerm(tc.term); got != tc.want {
			t.Fatalf("case %d (%q): got %v, want %v", i, tc.term, got, tc.want)
		}
	}
}

func TestNormalizeTerm(t *testing.T) {
	if got := NormalizeTerm(`  "Food" `); got != "food" {
		t.Fatalf("got %q, want food", got)
	}
	if got := NormalizeTerm("'Dustbin'"); got != "dustbin" {
		t.Fatalf("got %q, want dustbin", got)
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{200, "200"},
		{49.99, "49.99"},
		{0, "0"},
	}
	for i, tc := range cases {
		if got := FormatAmount(tc.in); got != tc.want {
			t.Fatalf("case %d: got %q, want %q", i, got, tc.want)
		}
	}
}
