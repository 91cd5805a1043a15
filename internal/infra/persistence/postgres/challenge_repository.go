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
	"gorm.io/gorm/clause"
	"gorm.io/plugin/dbresolver"
)

const pendingChallengeCondition = "used_at IS NULL AND expires_at > ?"

// challengeRepository implements repository.ChallengeRepository using GORM.
type challengeRepository struct {
	db *gorm.DB
}

// NewChallengeRepository returns a challenge repository bound to db, which may be a transaction.
func NewChallengeRepository(db *gorm.DB) repository.ChallengeRepository {
	return &challengeRepository{db: db}
}

func (repo *challengeRepository) Create(ctx context.Context, challenge *entity.Challenge) error {
	challengeM := fromChallengeDomain(challenge)

	if err := repo.db.WithContext(ctx).Create(challengeM).Error; err != nil {
		if isForeignKeyConstraintViolation(err) {
			return repository.ErrUserNotFound
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create challenge")
	}

	challenge.ID = challengeM.ID
	challenge.CreatedAt = challengeM.CreatedAt

	return nil
}

func (repo *challengeRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Challenge, error) {
	var challengeM model.ChallengeModel
	if err := repo.db.WithContext(ctx).
		Clauses(dbresolver.Write).
		Where("id = ?", id).
		First(&challengeM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrChallengeNotFound
		}

		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to find challenge")
	}

	return toChallengeDomain(&challengeM), nil
}

func (repo *challengeRepository) InvalidatePending(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	result := repo.db.WithContext(ctx).
		Model(&model.ChallengeModel{}).
		Where("user_id = ? AND used_at IS NULL", userID).
		Update("used_at", now)
	if result.Error != nil {
		return 0, domainerrors.NewDatabaseExecuteError(result.Error, "failed to invalidate pending challenges")
	}

	return result.RowsAffected, nil
}

// RecordFailure increments attempts and, when the limit is reached, stamps used_at
// in the same statement. PostgreSQL evaluates every SET expression against the old row.
func (repo *challengeRepository) RecordFailure(ctx context.Context, id uuid.UUID, maxAttempts int, now time.Time) (*entity.Challenge, error) {
	var challengeM model.ChallengeModel
	result := repo.db.WithContext(ctx).
		Model(&challengeM).
		Clauses(clause.Returning{}).
		Where("id = ?", id).
		Where(pendingChallengeCondition, now).
		Updates(map[string]any{
			"attempts": gorm.Expr("attempts + 1"),
			"used_at":  gorm.Expr("CASE WHEN attempts + 1 >= ? THEN ?::timestamptz ELSE NULL END", maxAttempts, now),
		})
	if result.Error != nil {
		return nil, domainerrors.NewDatabaseExecuteError(result.Error, "failed to record challenge failure")
	}
	if result.RowsAffected == 0 {
		return nil, repo.notPending(ctx, id)
	}

	return toChallengeDomain(&challengeM), nil
}

func (repo *challengeRepository) Consume(ctx context.Context, id uuid.UUID, now time.Time) error {
	result := repo.db.WithContext(ctx).
		Model(&model.ChallengeModel{}).
		Where("id = ?", id).
		Where(pendingChallengeCondition, now).
		Update("used_at", now)
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to consume challenge")
	}
	if result.RowsAffected == 0 {
		return repo.notPending(ctx, id)
	}

	return nil
}

// notPending tells a missing challenge apart from one that was used or expired.
func (repo *challengeRepository) notPending(ctx context.Context, id uuid.UUID) error {
	if _, err := repo.FindByID(ctx, id); err != nil {
		return err
	}

	return repository.ErrChallengeNotPending
}

func (repo *challengeRepository) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	result := repo.db.WithContext(ctx).
		Where("expires_at < ? OR used_at < ?", cutoff, cutoff).
		Delete(&model.ChallengeModel{})
	if result.Error != nil {
		return 0, domainerrors.NewDatabaseExecuteError(result.Error, "failed to delete stale challenges")
	}

	return result.RowsAffected, nil
}

// --- Mapper Functions ---

func toChallengeDomain(data *model.ChallengeModel) *entity.Challenge {
	if data == nil {
		return nil
	}

	return &entity.Challenge{
		ID:        data.ID,
		UserID:    data.UserID,
		CodeHash:  data.CodeHash,
		ExpiresAt: data.ExpiresAt,
		UsedAt:    data.UsedAt,
		Attempts:  data.Attempts,
		CreatedAt: data.CreatedAt,
	}
}

func fromChallengeDomain(data *entity.Challenge) *model.ChallengeModel {
	return &model.ChallengeModel{
		ID:        data.ID,
		UserID:    data.UserID,
		CodeHash:  data.CodeHash,
		ExpiresAt: data.ExpiresAt,
		UsedAt:    data.UsedAt,
		Attempts:  data.Attempts,
	}
}
