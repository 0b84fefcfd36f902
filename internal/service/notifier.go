package service

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types pushed to connected clients.
const (
	EventApplicationUpdated = "application_updated"
	EventDocumentUploaded   = "document_uploaded"
)

// Event is the payload delivered to an application's owner over the websocket.
type Event struct {
	Type              string    `json:"type"`
	ApplicationID     string    `json:"application_id"`
	ApplicationNumber string    `json:"application_number"`
	Status            string    `json:"status"`
	DocumentType      string    `json:"document_type,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// Notifier delivers a message to every live connection of one user.
type Notifier interface {
	NotifyUser(userID string, message []byte)
}

type nopNotifier struct{}

func (nopNotifier) NotifyUser(string, []byte) {}

func notify(n Notifier, userID uuid.UUID, ev Event) {
	if n == nil {
		return
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return
	}
	n.NotifyUser(userID.String(), raw)
}
