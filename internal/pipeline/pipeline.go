// Package pipeline orchestrates the handling of one inbound message:
// classify intent, branch to the add or query flow, persist or search,
// and dispatch exactly one reply.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"expensebot/internal/core"
	"expensebot/internal/whatsapp"
)

// Collaborators the pipeline orchestrates. The concrete implementations
// live in llm, whatsapp and store; tests substitute stubs.
type (
	IntentClassifier interface {
		ClassifyIntent(ctx context.Context, message string) (core.Intent, error)
	}

	TermExtractor interface {
		ExtractTerm(ctx context.Context, message string) (string, error)
	}

	ExpenseExtractor interface {
		ExtractExpense(ctx context.Context, message string, ref time.Time) (*core.ExtractedExpense, error)
	}

	RecordStore interface {
		Append(ctx context.Context, r core.ExpenseRecord) error
		Search(ctx context.Context, userID, term string) (core.SearchResult, error)
	}

	ReplyDispatcher interface {
		Send(ctx context.Context, recipient, text string) (*whatsapp.SendResult, error)
	}

	// EventPublisher announces persisted records. Optional; publishing
	// failures never fail the request.
	EventPublisher interface {
		PublishRecordCreated(ctx context.Context, r core.ExpenseRecord) error
	}
)

// Outcome is the business result of handling one message, kept separate
// from the notification result so a failed reply delivery does not
// disguise a completed (or skipped) storage write.
type Outcome string

const (
	OutcomeAdded         Outcome = "added"
	OutcomeExtractFailed Outcome = "extract_failed"
	OutcomeQueryAnswered Outcome = "query_answered"
	OutcomeTermMissing   Outcome = "term_missing"
	OutcomeUnrecognized  Outcome = "unrecognized"
)

// Result reports what happened to one inbound message. DeliveryErr is
// set when the terminal reply could not be dispatched; the business
// outcome stands regardless.
type Result struct {
	Outcome     Outcome
	Reply       string
	Record      *core.ExpenseRecord
	DeliveryErr error
}

const (
	replyAdded         = "Expense added successfully ✅"
	replyExtractFailed = "Could not extract expense details. Please try again."
	replyTermMissing   = "Could not identify expense category. Please try again."
	replyUnrecognized  = "Could not understand your request. Please try again."
)

type Pipeline struct {
	classifier IntentClassifier
	terms      TermExtractor
	expenses   ExpenseExtractor
	store      RecordStore
	dispatcher ReplyDispatcher
	events     EventPublisher // may be nil
	now        func() time.Time
}

func New(classifier IntentClassifier, terms TermExtractor, expenses ExpenseExtractor, store RecordStore, dispatcher ReplyDispatcher, events EventPublisher) *Pipeline {
	return &Pipeline{
		classifier: classifier,
		terms:      terms,
		expenses:   expenses,
		store:      store,
		dispatcher: dispatcher,
		events:     events,
		now:        time.Now,
	}
}

// Handle processes one normalized inbound message end to end. The
// returned error is a storage fault, fatal to the request; every other
// failure degrades to a user-facing reply. A delivery failure after a
// completed business action is reported in Result.DeliveryErr and never
// rolls anything back.
func (p *Pipeline) Handle(ctx context.Context, msg whatsapp.InboundMessage) (*Result, error) {
	intent, err := p.classifier.ClassifyIntent(ctx, msg.Text)
	if err != nil {
		slog.WarnContext(ctx, "Intent classification degraded",
			"error", err,
			"sender", msg.Sender)
	}
	slog.InfoContext(ctx, "Message classified", "intent", intent, "sender", msg.Sender)

	switch intent {
	case core.IntentAdd:
		return p.handleAdd(ctx, msg)
	case core.IntentQuery:
		return p.handleQuery(ctx, msg)
	default:
		return p.finish(ctx, msg.Sender, &Result{Outcome: OutcomeUnrecognized, Reply: replyUnrecognized}), nil
	}
}

func (p *Pipeline) handleAdd(ctx context.Context, msg whatsapp.InboundMessage) (*Result, error) {
	ref := p.now()

	extracted, err := p.expenses.ExtractExpense(ctx, msg.Text, ref)
	if err != nil {
		slog.WarnContext(ctx, "Expense extraction degraded", "error", err, "sender", msg.Sender)
	}
	if extracted == nil {
		return p.finish(ctx, msg.Sender, &Result{Outcome: OutcomeExtractFailed, Reply: replyExtractFailed}), nil
	}

	record := buildRecord(msg.Sender, extracted, ref)

	// Write before confirming: a storage fault must never be followed
	// by a success reply.
	if err := p.store.Append(ctx, record); err != nil {
		return nil, fmt.Errorf("append record: %w", err)
	}

	if p.events != nil {
		if err := p.events.PublishRecordCreated(ctx, record); err != nil {
			slog.ErrorContext(ctx, "Failed to publish record event",
				"error", err,
				"user_id", record.UserID)
			// Record is saved; the mirror catches up later.
		}
	}

	return p.finish(ctx, msg.Sender, &Result{Outcome: OutcomeAdded, Reply: replyAdded, Record: &record}), nil
}

func (p *Pipeline) handleQuery(ctx context.Context, msg whatsapp.InboundMessage) (*Result, error) {
	term, err := p.terms.ExtractTerm(ctx, msg.Text)
	if err != nil {
		slog.WarnContext(ctx, "Term extraction degraded", "error", err, "sender", msg.Sender)
	}
	if term == "" {
		return p.finish(ctx, msg.Sender, &Result{Outcome: OutcomeTermMissing, Reply: replyTermMissing}), nil
	}

	res, err := p.store.Search(ctx, msg.Sender, term)
	if err != nil {
		return nil, fmt.Errorf("search records: %w", err)
	}

	return p.finish(ctx, msg.Sender, &Result{
		Outcome: OutcomeQueryAnswered,
		Reply:   formatSummary(term, res),
	}), nil
}

// finish dispatches the terminal reply. Delivery is best-effort: the
// fault lands in the result for the transport layer to report, while
// the business outcome stands.
func (p *Pipeline) finish(ctx context.Context, recipient string, res *Result) *Result {
	if _, err := p.dispatcher.Send(ctx, recipient, res.Reply); err != nil {
		slog.ErrorContext(ctx, "Reply delivery failed",
			"error", err,
			"recipient", recipient,
			"outcome", res.Outcome)
		res.DeliveryErr = err
	}
	return res
}

// buildRecord applies the documented defaults for fields the extraction
// left absent: amount 0, category "Unknown", empty description, and the
// reference date when the model produced no usable date.
func buildRecord(userID string, e *core.ExtractedExpense, ref time.Time) core.ExpenseRecord {
	record := core.ExpenseRecord{
		UserID:      userID,
		Amount:      e.Amount,
		Category:    e.Category,
		Description: e.Description,
		Date:        e.Date,
	}
	if strings.TrimSpace(record.Category) == "" {
		record.Category = "Unknown"
	}
	if record.Amount < 0 {
		record.Amount = 0
	}
	// Resolve once more in case the extraction passed a relative phrase
	// through untouched; already-resolved dates come back unchanged.
	record.Date = core.ResolveRelativeDate(record.Date, ref)
	if !core.IsValidDate(record.Date) {
		record.Date = ref.Format(core.DateLayout)
	}
	return record
}

// formatSummary renders the human-readable query answer: the total,
// then one line per match with date, amount and description.
func formatSummary(term string, res core.SearchResult) string {
	if len(res.Matches) == 0 {
		return fmt.Sprintf("No expenses found for %s.", term)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You have spent a total of %s Rs on %s.\n", core.FormatAmount(res.Total), term)
	for _, m := range res.Matches {
		fmt.Fprintf(&sb, "- %s: %s Rs", m.Date, core.FormatAmount(m.Amount))
		if m.Description != "" {
			fmt.Fprintf(&sb, " (%s)", m.Description)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
