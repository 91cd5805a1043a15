package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"backoffice/internal/domain/entity"
	"backoffice/internal/domain/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Discard,
	})
	require.NoError(t, err)

	return db, mock
}

func TestSessionRepository_RevokeIsConditional(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSessionRepository(db)
	ctx := context.Background()
	now := time.Now()
	sessionID, userID := uuid.New(), uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "sessions" SET "revoked_at"=$1 WHERE (id = $2 AND user_id = $3) AND (revoked_at IS NULL AND expires_at > $4)`)).
		WithArgs(now, sessionID, userID, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "sessions" SET "revoked_at"=$1`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Revoke(ctx, sessionID, userID, now))

	err := repo.Revoke(ctx, sessionID, userID, now)
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_RevokeAllReturnsCount(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "sessions" SET "revoked_at"=$1 WHERE user_id = $2 AND (revoked_at IS NULL AND expires_at > $3)`)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	revoked, err := repo.RevokeAllByUserID(context.Background(), uuid.New(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(3), revoked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_FindLive(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSessionRepository(db)
	now := time.Now()
	sessionID, userID := uuid.New(), uuid.New()

	rows := sqlmock.NewRows([]string{"id", "user_id", "jti", "refresh_token_hash", "ip", "user_agent", "expires_at", "revoked_at", "created_at"}).
		AddRow(sessionID, userID, "jti-1", "hash", "10.0.0.1", "curl", now.Add(time.Hour), nil, now)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "sessions" WHERE (user_id = $1 AND jti = $2) AND (revoked_at IS NULL AND expires_at > $3)`)).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "sessions"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	session, err := repo.FindLive(context.Background(), userID, "jti-1", now)
	require.NoError(t, err)
	assert.Equal(t, sessionID, session.ID)
	assert.True(t, session.IsLive(now))

	_, err = repo.FindLive(context.Background(), userID, "jti-2", now)
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_ListLiveSkipsPageWhenEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSessionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "sessions"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	sessions, total, err := repo.ListLive(context.Background(), uuid.New(), time.Now(), 0, 20)
	require.NoError(t, err)
	assert.Empty(t, sessions)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChallengeRepository_ConsumeDistinguishesMissingFromUsed(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChallengeRepository(db)
	ctx := context.Background()
	now := time.Now()
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "tfa_challenges" SET "used_at"=$1 WHERE id = $2 AND (used_at IS NULL AND expires_at > $3)`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "tfa_challenges" WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "code_hash", "expires_at", "used_at", "attempts", "created_at"}).
			AddRow(id, uuid.New(), "hash", now.Add(time.Minute), now, 1, now))

	err := repo.Consume(ctx, id, now)
	assert.ErrorIs(t, err, repository.ErrChallengeNotPending)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "tfa_challenges" SET "used_at"=$1`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "tfa_challenges" WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	err = repo.Consume(ctx, id, now)
	assert.ErrorIs(t, err, repository.ErrChallengeNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChallengeRepository_RecordFailureReturnsUpdatedRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChallengeRepository(db)
	now := time.Now()
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE "tfa_challenges" SET "attempts"=attempts + 1,"used_at"=CASE WHEN attempts + 1 >= $1 THEN $2::timestamptz ELSE NULL END`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "code_hash", "expires_at", "used_at", "attempts", "created_at"}).
			AddRow(id, uuid.New(), "hash", now.Add(time.Minute), now, 5, now))

	challenge, err := repo.RecordFailure(context.Background(), id, 5, now)
	require.NoError(t, err)
	assert.Equal(t, 5, challenge.Attempts)
	assert.False(t, challenge.IsPending(now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_DeactivateReportsTransition(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "users" SET "is_active"=$1,"updated_at"=$2 WHERE id = $3 AND is_active = $4`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "users" SET "is_active"=$1`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := repo.Deactivate(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.Deactivate(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_FindByIDForUpdateLocksRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE id = $1`) + `.*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindByIDForUpdate(context.Background(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UpdateNamesLeavesActiveFlag(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	user := &entity.User{ID: uuid.New(), FirstName: "Ada", LastName: "Lovelace", IsActive: true}

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "users" SET "first_name"=$1,"last_name"=$2,"updated_at"=$3 WHERE id = $4`)).
		WithArgs("Ada", "Lovelace", sqlmock.AnyArg(), user.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateNames(context.Background(), user))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_FindActiveByEmailNormalizes(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE email = $1 AND is_active = $2`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindActiveByEmail(context.Background(), "  Admin@Example.COM ")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAuditRepository(db)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "audit_entries"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id))

	entry := &entity.AuditEntry{
		Action:   "login",
		Resource: "auth",
		Status:   entity.AuditStatusFailure,
		Metadata: map[string]any{"reason": "invalid_credentials"},
	}
	require.NoError(t, repo.Create(context.Background(), entry))
	assert.Equal(t, id, entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
