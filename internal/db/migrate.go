package db

import (
	"context"

	"gorm.io/gorm"

	"trendpulse/internal/models"
)

// Migrate performs schema migrations for the persistent models. The unique
// indexes created here (user email, token columns) are the race arbiters for
// concurrent duplicate writes; application-level pre-checks are advisory.
func Migrate(ctx context.Context, database *gorm.DB) error {
	return database.WithContext(ctx).AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.PasswordResetToken{},
		&models.EmailVerificationToken{},
		&models.TrendSnapshot{},
	)
}
