// Package worker mirrors stored expense records into Google Sheets as
// record-created events arrive.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"expensebot/internal/amqp"
	"expensebot/internal/core"
)

// SheetAppender writes one record as a spreadsheet row.
type SheetAppender interface {
	Append(ctx context.Context, rec core.ExpenseRecord) error
}

// MirrorWorker copies each record-created event to the configured
// sheet. The flat-file store stays the source of truth; the sheet is an
// eventually consistent mirror.
type MirrorWorker struct {
	sheet SheetAppender
}

func NewMirrorWorker(sheet SheetAppender) *MirrorWorker {
	return &MirrorWorker{sheet: sheet}
}

// HandleRecordCreated appends one event's record to the sheet. An
// error requeues the event.
func (w *MirrorWorker) HandleRecordCreated(ctx context.Context, msg *amqp.RecordCreatedMessage) error {
	slog.InfoContext(ctx, "Processing record event",
		"user_id", msg.Record.UserID,
		"category", msg.Record.Category,
		"date", msg.Record.Date)

	if err := w.sheet.Append(ctx, msg.Record); err != nil {
		return fmt.Errorf("mirror record to sheet: %w", err)
	}

	slog.InfoContext(ctx, "Mirrored record to sheet",
		"user_id", msg.Record.UserID,
		"amount", msg.Record.Amount)

	return nil
}
