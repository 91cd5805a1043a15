package postgres

import (
	"context"
	"time"

	"backoffice/internal/domain/entity"
	domainerrors "backoffice/internal/domain/errors"
	"backoffice/internal/domain/repository"
	"backoffice/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"
)

const liveSessionCondition = "revoked_at IS NULL AND expires_at > ?"

// sessionRepository implements repository.SessionRepository using GORM.
// Mutations are single UPDATE statements whose WHERE clause carries the liveness guard,
// so two racing revocations cannot both report success.
type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository returns a session repository bound to db, which may be a transaction.
func NewSessionRepository(db *gorm.DB) repository.SessionRepository {
	return &sessionRepository{db: db}
}

func (repo *sessionRepository) Create(ctx context.Context, session *entity.Session) error {
	sessionM := fromSessionDomain(session)

	if err := repo.db.WithContext(ctx).Create(sessionM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return repository.ErrSessionExists
		}
		if isForeignKeyConstraintViolation(err) {
			return repository.ErrUserNotFound
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create session")
	}

	session.ID = sessionM.ID
	session.CreatedAt = sessionM.CreatedAt

	return nil
}

// FindLive reads from the primary so a revocation committed a moment ago is always seen.
func (repo *sessionRepository) FindLive(ctx context.Context, userID uuid.UUID, jti string, now time.Time) (*entity.Session, error) {
	var sessionM model.SessionModel
	if err := repo.db.WithContext(ctx).
		Clauses(dbresolver.Write).
		Where("user_id = ? AND jti = ?", userID, jti).
		Where(liveSessionCondition, now).
		First(&sessionM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrSessionNotFound
		}

		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to find live session")
	}

	return toSessionDomain(&sessionM), nil
}

func (repo *sessionRepository) Revoke(ctx context.Context, sessionID, userID uuid.UUID, now time.Time) error {
	return repo.revokeOne(ctx, now, "id = ? AND user_id = ?", sessionID, userID)
}

func (repo *sessionRepository) RevokeByJTI(ctx context.Context, userID uuid.UUID, jti string, now time.Time) error {
	return repo.revokeOne(ctx, now, "user_id = ? AND jti = ?", userID, jti)
}

func (repo *sessionRepository) revokeOne(ctx context.Context, now time.Time, query string, args ...any) error {
	result := repo.db.WithContext(ctx).
		Model(&model.SessionModel{}).
		Where(query, args...).
		Where(liveSessionCondition, now).
		Update("revoked_at", now)
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to revoke session")
	}
	if result.RowsAffected == 0 {
		return repository.ErrSessionNotFound
	}

	return nil
}

func (repo *sessionRepository) RevokeAllByUserID(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	result := repo.db.WithContext(ctx).
		Model(&model.SessionModel{}).
		Where("user_id = ?", userID).
		Where(liveSessionCondition, now).
		Update("revoked_at", now)
	if result.Error != nil {
		return 0, domainerrors.NewDatabaseExecuteError(result.Error, "failed to revoke user sessions")
	}

	return result.RowsAffected, nil
}

func (repo *sessionRepository) ListLive(ctx context.Context, userID uuid.UUID, now time.Time, offset, limit int) ([]*entity.Session, int64, error) {
	live := func(db *gorm.DB) *gorm.DB {
		return db.Where("user_id = ?", userID).Where(liveSessionCondition, now)
	}

	var total int64
	if err := repo.db.WithContext(ctx).
		Model(&model.SessionModel{}).
		Scopes(live).
		Count(&total).Error; err != nil {
		return nil, 0, domainerrors.NewDatabaseExecuteError(err, "failed to count live sessions")
	}

	if total == 0 {
		return []*entity.Session{}, 0, nil
	}

	var sessionMs []*model.SessionModel
	if err := repo.db.WithContext(ctx).
		Scopes(live).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&sessionMs).Error; err != nil {
		return nil, 0, domainerrors.NewDatabaseExecuteError(err, "failed to list live sessions")
	}

	sessions := make([]*entity.Session, 0, len(sessionMs))
	for _, sessionM := range sessionMs {
		sessions = append(sessions, toSessionDomain(sessionM))
	}

	return sessions, total, nil
}

func (repo *sessionRepository) DeleteStale(ctx context.Context, now, revokedBefore time.Time) (int64, error) {
	result := repo.db.WithContext(ctx).
		Where("expires_at <= ? OR (revoked_at IS NOT NULL AND revoked_at < ?)", now, revokedBefore).
		Delete(&model.SessionModel{})
	if result.Error != nil {
		return 0, domainerrors.NewDatabaseExecuteError(result.Error, "failed to delete stale sessions")
	}

	return result.RowsAffected, nil
}

// --- Mapper Functions ---

func toSessionDomain(data *model.SessionModel) *entity.Session {
	if data == nil {
		return nil
	}

	return &entity.Session{
		ID:               data.ID,
		UserID:           data.UserID,
		JTI:              data.JTI,
		RefreshTokenHash: data.RefreshTokenHash,
		IP:               data.IP,
		UserAgent:        data.UserAgent,
		ExpiresAt:        data.ExpiresAt,
		RevokedAt:        data.RevokedAt,
		CreatedAt:        data.CreatedAt,
	}
}

func fromSessionDomain(data *entity.Session) *model.SessionModel {
	return &model.SessionModel{
		ID:               data.ID,
		UserID:           data.UserID,
		JTI:              data.JTI,
		RefreshTokenHash: data.RefreshTokenHash,
		IP:               data.IP,
		UserAgent:        data.UserAgent,
		ExpiresAt:        data.ExpiresAt,
		RevokedAt:        data.RevokedAt,
	}
}
