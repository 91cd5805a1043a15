// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"time"

	"backoffice/config"
	"backoffice/internal/domain/entity"
	domainerrors "backoffice/internal/domain/errors"
	"backoffice/internal/errors"
	"backoffice/internal/usecase"

	"github.com/google/uuid"
)

const defaultDatastoreTimeout = 5 * time.Second

func datastoreTimeout(cfg *config.Config) time.Duration {
	if cfg != nil && cfg.Auth != nil && cfg.Auth.DatastoreTimeout > 0 {
		return cfg.Auth.DatastoreTimeout
	}

	return defaultDatastoreTimeout
}

// boundedContext caps datastore work so no call in the core blocks indefinitely.
func boundedContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, timeout)
}

// errorCode extracts the business code of err for audit metadata.
func errorCode(err error) string {
	var appErr domainerrors.AppError
	if errors.As(err, &appErr) {
		return appErr.ErrorCode()
	}

	return domainerrors.ErrInternalError.ErrorCode()
}

// newAuditEntry builds the entry for one attempt. A non-nil err marks it failed and records its code.
func newAuditEntry(action, resource string, actorID *uuid.UUID, resourceID string, client usecase.ClientInfo, err error) *entity.AuditEntry {
	entry := &entity.AuditEntry{
		ID:         uuid.New(),
		ActorID:    actorID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Status:     entity.AuditStatusSuccess,
		IP:         client.IP,
		UserAgent:  client.UserAgent,
	}
	if err != nil {
		entry.Status = entity.AuditStatusFailure
		entry.Metadata = map[string]any{"reason": errorCode(err)}
	}

	return entry
}

func uuidPtr(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}

	return &id
}

// sanitizeUser strips the password hash before the user leaves the usecase layer.
func sanitizeUser(user *entity.User) *entity.User {
	if user == nil {
		return nil
	}
	out := *user
	out.PasswordHash = ""

	return &out
}
