package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionModel mirrors the 'sessions' table. (user_id, jti) is unique.
type SessionModel struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID           uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_sessions_user_jti"`
	JTI              string     `gorm:"column:jti;type:varchar(64);not null;uniqueIndex:idx_sessions_user_jti"`
	RefreshTokenHash string     `gorm:"type:char(64);not null"`
	IP               string     `gorm:"type:varchar(64)"`
	UserAgent        string     `gorm:"type:text"`
	ExpiresAt        time.Time  `gorm:"type:timestamptz;not null;index"`
	RevokedAt        *time.Time `gorm:"type:timestamptz;index"`
	CreatedAt        time.Time  `gorm:"type:timestamptz;not null;default:now()"`
}

// TableName explicitly sets the table name for GORM.
func (SessionModel) TableName() string {
	return "sessions"
}
