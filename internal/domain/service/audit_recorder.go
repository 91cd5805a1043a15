package service

import (
	"context"

	"backoffice/internal/domain/entity"
)

// AuditRecorder accepts audit entries on a best-effort basis. Record never blocks on
// the datastore and never reports failure to the caller.
type AuditRecorder interface {
	Record(ctx context.Context, entry *entity.AuditEntry)
}
