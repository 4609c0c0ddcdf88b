package amqp

import (
	"encoding/json"
	"time"

	"expensebot/internal/core"
)

// RecordCreatedMessage announces a newly appended expense record to
// downstream consumers (currently the sheet mirror worker). It carries
// the full record because the flat-file store has no row identifier a
// consumer could fetch by.
type RecordCreatedMessage struct {
	Record    core.ExpenseRecord `json:"record"`
	Timestamp time.Time          `json:"timestamp"`
}

func NewRecordCreatedMessage(r core.ExpenseRecord) *RecordCreatedMessage {
	return &RecordCreatedMessage{
		Record:    r,
		Timestamp: time.Now(),
	}
}

func (m *RecordCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RecordCreatedMessageFromJSON(data []byte) (*RecordCreatedMessage, error) {
	var msg RecordCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
