package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents an end user of the TrendPulse platform.
//
// PasswordHash is nullable: accounts created through a future federated
// login flow carry no local password and must never pass password login.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash *string   `gorm:"type:varchar(255)"`
	Name         *string   `gorm:"type:varchar(100)"`
	AvatarURL    *string   `gorm:"type:text"`

	EmailVerified   bool `gorm:"not null;default:false"`
	EmailVerifiedAt *time.Time

	IsActive bool `gorm:"not null;default:true"`

	PreferredLanguage string  `gorm:"type:varchar(10);not null;default:en"`
	DefaultNiche      *string `gorm:"type:varchar(30)"`
	DefaultRegion     string  `gorm:"type:varchar(10);default:worldwide"`
	DigestFrequency   string  `gorm:"type:varchar(20);default:daily"`

	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
	LastLoginAt *time.Time
}
