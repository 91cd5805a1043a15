package repository

import (
	"context"

	"backoffice/internal/domain/entity"
)

// AuditRepository appends audit entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *entity.AuditEntry) error
}
