package model

import (
	"time"

	"github.com/google/uuid"
)

// ChallengeModel mirrors the 'tfa_challenges' table.
type ChallengeModel struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index:idx_tfa_challenges_user_used"`
	CodeHash  string     `gorm:"type:varchar(255);not null"`
	ExpiresAt time.Time  `gorm:"type:timestamptz;not null;index"`
	UsedAt    *time.Time `gorm:"type:timestamptz;index:idx_tfa_challenges_user_used"`
	Attempts  int        `gorm:"not null;default:0"`
	CreatedAt time.Time  `gorm:"type:timestamptz;not null;default:now()"`
}

// TableName explicitly sets the table name for GORM.
func (ChallengeModel) TableName() string {
	return "tfa_challenges"
}
