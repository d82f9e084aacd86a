package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a pass lifecycle event published through the outbox.
type EventType string

const (
	EventPassSubmitted     EventType = "pass_submitted"
	EventPassUpdated       EventType = "pass_updated"
	EventPassStatusChanged EventType = "pass_status_changed"
)

// Event is the payload written to the outbox in the same transaction as the
// change it describes.
type Event struct {
	ID             uuid.UUID `json:"id"`
	Type           EventType `json:"type"`
	PassID         int64     `json:"pass_id"`
	Status         Status    `json:"status"`
	PreviousStatus Status    `json:"previous_status,omitempty"`
	SubmitterEmail string    `json:"submitter_email,omitempty"`
	RequestID      string    `json:"request_id,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// OutboxEntry is a stored event awaiting publication.
type OutboxEntry struct {
	ID          int64
	Event       Event
	CreatedAt   time.Time
	PublishedAt *time.Time
}
