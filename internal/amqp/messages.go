package amqp

import (
	"encoding/json"
	"time"
)

// Operations carried by TransactionMessage.
const (
	OpSync   = "sync"
	OpDelete = "delete"
)

// TransactionMessage announces that a ledger row changed. It carries only
// the ID: consumers read the row itself from the database.
type TransactionMessage struct {
	Operation string    `json:"operation"`
	ID        int64     `json:"id"`
	Version   int64     `json:"version,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionSyncMessage(id, version int64) *TransactionMessage {
	return &TransactionMessage{Operation: OpSync, ID: id, Version: version, Timestamp: time.Now()}
}

func NewTransactionDeleteMessage(id int64) *TransactionMessage {
	return &TransactionMessage{Operation: OpDelete, ID: id, Timestamp: time.Now()}
}

func (m *TransactionMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionMessageFromJSON(data []byte) (*TransactionMessage, error) {
	var msg TransactionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// GenerateRequest asks the recurring worker to run a materialization pass.
// An empty AsOf means the worker's current date.
type GenerateRequest struct {
	AsOf        string    `json:"asOf,omitempty"`
	RequestedAt time.Time `json:"requestedAt"`
}

func (m *GenerateRequest) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func GenerateRequestFromJSON(data []byte) (*GenerateRequest, error) {
	var msg GenerateRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
