package core

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

const DateLayout = "2006-01-02"

type (
	// Intent is the classified purpose of an inbound message.
	Intent string

	// ExpenseRecord is one persisted expense entry. Records are immutable
	// once written; there is no update or delete path.
	ExpenseRecord struct {
		UserID      string
		Amount      float64
		Category    string
		Description string
		Date        string // YYYY-MM-DD
	}

	// ExtractedExpense carries the fields pulled out of a free-text
	// message by the completion model. It is unvalidated; callers apply
	// defaults for whatever the model omitted.
	ExtractedExpense struct {
		Amount      float64
		Category    string
		Description string
		Date        string
	}

	// SearchResult holds the outcome of a record search: the matching
	// records in insertion order and the sum of their amounts.
	SearchResult struct {
		Total   float64
		Matches []ExpenseRecord
	}
)

const (
	IntentAdd     Intent = "add"
	IntentQuery   Intent = "query"
	IntentUnknown Intent = "unknown"
)

var (
	ErrEmptyUserID   = errors.New("empty user id")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidAmount = errors.New("invalid amount")
)

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// IsValidDate reports whether s is a syntactically valid YYYY-MM-DD
// string, the only date form records may carry.
func IsValidDate(s string) bool {
	return dateRe.MatchString(s)
}

// Validate checks the invariants every persisted record must hold: a
// sender identifier and a syntactically valid YYYY-MM-DD date. Amount
// defaults to zero upstream rather than being rejected here.
func (r ExpenseRecord) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return ErrEmptyUserID
	}
	if !dateRe.MatchString(r.Date) {
		return ErrInvalidDate
	}
	if r.Amount < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// FormatAmount renders an amount the way it is written to storage and
// into reply text: plain decimal notation without trailing zeros.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// NormalizeTerm prepares a search term for substring matching: strips
// the quotes the model tends to wrap terms in, trims and lowercases.
func NormalizeTerm(term string) string {
	term = strings.ReplaceAll(term, `"`, "")
	term = strings.ReplaceAll(term, "'", "")
	return strings.ToLower(strings.TrimSpace(term))
}

// MatchesTerm reports whether the already-normalized term is contained
// in the record's category, description or date, case-insensitively.
func (r ExpenseRecord) MatchesTerm(term string) bool {
	if term == "" {
		return false
	}
	return strings.Contains(strings.ToLower(r.Category), term) ||
		strings.Contains(strings.ToLower(r.Description), term) ||
		strings.Contains(strings.ToLower(r.Date), term)
}
