package models

import (
	"fmt"
	"strings"

	dErrors "mountpass/pkg/domain-errors"
)

// Status is the moderation state of a pass.
type Status string

const (
	StatusNew      Status = "new"
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

var allStatuses = []Status{StatusNew, StatusPending, StatusAccepted, StatusRejected}

// Statuses returns every status in workflow order.
func Statuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusNew, StatusPending, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// Label is the moderator-facing name of the status.
func (s Status) Label() string {
	switch s {
	case StatusNew:
		return "New"
	case StatusPending:
		return "Under moderation"
	case StatusAccepted:
		return "Accepted"
	case StatusRejected:
		return "Rejected"
	}
	return string(s)
}

func (s Status) String() string {
	return string(s)
}

// ParseStatus accepts only values of the closed enumeration.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.TrimSpace(raw))
	if s == "" {
		return "", dErrors.Validation("status is required", dErrors.FieldErrors{
			"status": {"this field is required"},
		})
	}
	if !s.IsValid() {
		msg := fmt.Sprintf("%q is not a valid choice", raw)
		return "", dErrors.Validation(msg, dErrors.FieldErrors{"status": {msg}})
	}
	return s, nil
}
