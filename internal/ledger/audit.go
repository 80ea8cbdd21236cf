package ledger

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionAccountCreated     = "ACCOUNT_CREATED"
	ActionAccountDeactivated = "ACCOUNT_DEACTIVATED"
	ActionTransferExecuted   = "TRANSFER_EXECUTED"

	EntityAccount     = "Account"
	EntityTransaction = "Transaction"

	// SystemActor stands in for an authenticated principal.
	SystemActor = "SYSTEM"
)

// AuditLog is an append-only fact about a notable action.
type AuditLog struct {
	ID         uuid.UUID `json:"id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId"`
	Actor      string    `json:"userResponsible"`
	Timestamp  time.Time `json:"timestamp"`
	Details    string    `json:"details"`
}

// AuditFilter selects audit records; populated fields are combined with AND.
type AuditFilter struct {
	EntityType string
	EntityID   string
	Actor      string
}
