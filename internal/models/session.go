package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is the audit record of an issued refresh-token grant.
//
// Tokens are stored as fixed-length SHA-256 fingerprints, never verbatim.
// The fingerprint is the lookup key for selective logout; JWT validity is
// not checked against this table.
type Session struct {
	ID                      uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID                  uuid.UUID `gorm:"type:uuid;not null;index"`
	TokenFingerprint        string    `gorm:"type:char(64);uniqueIndex;not null"`
	RefreshTokenFingerprint string    `gorm:"type:char(64);uniqueIndex;not null"`
	UserAgent               *string   `gorm:"type:text"`
	IPAddress               *string   `gorm:"type:varchar(45)"`
	ExpiresAt               time.Time `gorm:"not null;index"`
	CreatedAt               time.Time `gorm:"autoCreateTime"`

	User User `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID"`
}
