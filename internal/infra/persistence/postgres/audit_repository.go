package postgres

import (
	"context"

	"backoffice/internal/domain/entity"
	domainerrors "backoffice/internal/domain/errors"
	"backoffice/internal/domain/repository"
	"backoffice/internal/infra/persistence/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// auditRepository appends to audit_entries. Rows are never updated.
type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository returns an audit repository bound to db.
func NewAuditRepository(db *gorm.DB) repository.AuditRepository {
	return &auditRepository{db: db}
}

func (repo *auditRepository) Create(ctx context.Context, entry *entity.AuditEntry) error {
	entryM := &model.AuditEntryModel{
		ID:         entry.ID,
		ActorID:    entry.ActorID,
		Action:     entry.Action,
		Resource:   entry.Resource,
		ResourceID: entry.ResourceID,
		Status:     string(entry.Status),
		IP:         entry.IP,
		UserAgent:  entry.UserAgent,
		CreatedAt:  entry.CreatedAt,
	}
	if len(entry.Metadata) > 0 {
		entryM.Metadata = datatypes.JSONMap(entry.Metadata)
	}

	if err := repo.db.WithContext(ctx).Create(entryM).Error; err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to append audit entry")
	}

	entry.ID = entryM.ID

	return nil
}
