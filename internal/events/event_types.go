package events

import (
	"time"

	"github.com/spec-kit/account-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventAccountCreated   EventType = "account_created"
	EventSessionRefreshed EventType = "session_refreshed"
)

// Event represents a domain event emitted after a committed operation.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	AccountID int64       `json:"account_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// AccountCreatedPayload payload.
type AccountCreatedPayload struct {
	Email     string      `json:"email"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Role      domain.Role `json:"role"`
}

// SessionRefreshedPayload payload.
type SessionRefreshedPayload struct {
	Email string `json:"email"`
}
