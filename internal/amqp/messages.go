package amqp

import (
	"encoding/json"
	"time"
)

// DatasetIngestedMessage announces that a KPI dataset was uploaded and mapped.
// It carries summary numbers only, never the uploaded rows themselves.
type DatasetIngestedMessage struct {
	SessionID  string    `json:"session_id"`
	Filename   string    `json:"filename"`
	Sheet      string    `json:"sheet"`
	Rows       int       `json:"rows"`
	Members    int       `json:"members"`
	DroppedRows int      `json:"dropped_rows"`
	IngestedAt time.Time `json:"ingested_at"`
}

// NewDatasetIngestedMessage stamps a message with the current time.
func NewDatasetIngestedMessage(sessionID, filename, sheet string, rows, members, droppedRows int) *DatasetIngestedMessage {
	return &DatasetIngestedMessage{
		SessionID:   sessionID,
		Filename:    filename,
		Sheet:       sheet,
		Rows:        rows,
		Members:     members,
		DroppedRows: droppedRows,
		IngestedAt:  time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *DatasetIngestedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DatasetIngestedMessageFromJSON parses a message from JSON bytes.
func DatasetIngestedMessageFromJSON(data []byte) (*DatasetIngestedMessage, error) {
	var msg DatasetIngestedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
