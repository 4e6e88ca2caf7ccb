package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// Operations carried by a ChangeMessage.
const (
	OpCreated = "created"
	OpUpdated = "updated"
	OpDeleted = "deleted"
)

var ErrInvalidMessage = errors.New("invalid change message")

// ChangeMessage announces that one document in a user's collection changed.
// It carries no document data; consumers read the current state from the store.
type ChangeMessage struct {
	UserID     string    `json:"userId"`
	Collection string    `json:"collection"`
	DocumentID string    `json:"documentId"`
	Operation  string    `json:"operation"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewChangeMessage(userID, collection, documentID, operation string) *ChangeMessage {
	return &ChangeMessage{
		UserID:     userID,
		Collection: collection,
		DocumentID: documentID,
		Operation:  operation,
		Timestamp:  time.Now().UTC(),
	}
}

func (m *ChangeMessage) Validate() error {
	if m.UserID == "" || m.Collection == "" || m.DocumentID == "" {
		return ErrInvalidMessage
	}
	switch m.Operation {
	case OpCreated, OpUpdated, OpDeleted:
		return nil
	default:
		return ErrInvalidMessage
	}
}

func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
