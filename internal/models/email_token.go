package models

import (
	"time"

	"github.com/google/uuid"
)

// EmailVerificationToken is a single-use secret confirming email ownership.
// Consuming it also flips the owning User's EmailVerified flag.
type EmailVerificationToken struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email      string    `gorm:"type:varchar(255);not null;index"`
	Token      string    `gorm:"type:varchar(500);uniqueIndex;not null"`
	ExpiresAt  time.Time `gorm:"not null"`
	VerifiedAt *time.Time
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

// Expired reports whether the token's validity window has passed.
func (t *EmailVerificationToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
