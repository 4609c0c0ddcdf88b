package amqp

import (
	"testing"

	"expensebot/internal/core"
)

func TestRecordCreatedMessageRoundTrip(t *testing.T) {
	rec := core.ExpenseRecord{
		UserID:      "u1",
		Amount:      42.5,
		Category:    "groceries",
		Description: "weekly shop",
		Date:        "2024-03-14",
	}

	body, err := NewRecordCreatedMessage(rec).ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got, err := RecordCreatedMessageFromJSON(body)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Record != rec {
		t.Fatalf("record mismatch: %+v", got.Record)
	}
	if got.Timestamp.IsZero() {
		t.Fatal("timestamp not set")
	}
}

func TestRecordCreatedMessageFromJSONMalformed(t *testing.T) {
	if _, err := RecordCreatedMessageFromJSON([]byte("{bad")); err == nil {
		t.Fatal("expected error")
	}
}
