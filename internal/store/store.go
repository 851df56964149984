// Package store persists the auth data model. The interface exists so the
// auth orchestrator can be exercised against an in-memory implementation in
// tests; the production implementation is GORM over PostgreSQL.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"trendpulse/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a unique constraint.
	ErrDuplicate = errors.New("duplicate record")
)

// Store is the persistence boundary of the auth core. Every operation
// re-fetches by identifier or token; no long-lived entity references are
// held across requests.
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error

	CreateSession(ctx context.Context, session *models.Session) error
	SessionsForUser(ctx context.Context, userID uuid.UUID) ([]models.Session, error)
	DeleteSessionByFingerprint(ctx context.Context, userID uuid.UUID, refreshFingerprint string) (int64, error)
	DeleteSessionsForUser(ctx context.Context, userID uuid.UUID) (int64, error)

	CreateResetToken(ctx context.Context, token *models.PasswordResetToken) error
	UnusedResetToken(ctx context.Context, secret string) (*models.PasswordResetToken, error)
	ConsumeResetToken(ctx context.Context, id uuid.UUID, usedAt time.Time) error

	CreateVerificationToken(ctx context.Context, token *models.EmailVerificationToken) error
	UnusedVerificationToken(ctx context.Context, secret string) (*models.EmailVerificationToken, error)
	ConsumeVerificationToken(ctx context.Context, id uuid.UUID, verifiedAt time.Time) error

	FreshSnapshot(ctx context.Context, provider, requestKey string, notBefore time.Time) ([]byte, error)
	SaveSnapshot(ctx context.Context, snapshot *models.TrendSnapshot) error
}
