package entity

import (
	"time"

	"github.com/google/uuid"
)

// AuditStatus is the outcome recorded for an audited attempt.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailure AuditStatus = "failure"
)

// AuditEntry is an append-only record of one state-changing attempt.
type AuditEntry struct {
	ID         uuid.UUID      // Unique identifier of the entry.
	ActorID    *uuid.UUID     // Acting user, nil for anonymous attempts such as a failed login.
	Action     string         // e.g. "login", "update".
	Resource   string         // e.g. "auth", "user".
	ResourceID string         // Optional id of the affected record.
	Status     AuditStatus    // success or failure.
	IP         string         // Client IP when known.
	UserAgent  string         // Client user agent when known.
	Metadata   map[string]any // Extra context such as the failure reason. Never secrets.
	CreatedAt  time.Time
}
