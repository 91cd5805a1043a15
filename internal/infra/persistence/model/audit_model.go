package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AuditEntryModel mirrors the append-only 'audit_entries' table.
type AuditEntryModel struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ActorID    *uuid.UUID        `gorm:"type:uuid;index"`
	Action     string            `gorm:"type:varchar(50);not null;index:idx_audit_entries_resource_action"`
	Resource   string            `gorm:"type:varchar(50);not null;index:idx_audit_entries_resource_action"`
	ResourceID string            `gorm:"type:varchar(64)"`
	Status     string            `gorm:"type:varchar(16);not null"`
	IP         string            `gorm:"type:varchar(64)"`
	UserAgent  string            `gorm:"type:text"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt  time.Time         `gorm:"type:timestamptz;not null;default:now();index"`
}

// TableName explicitly sets the table name for GORM.
func (AuditEntryModel) TableName() string {
	return "audit_entries"
}
