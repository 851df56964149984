package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"trendpulse/internal/models"
)

// queryTimeout bounds every store call so a hung connection cannot pin a
// request past the transport deadline.
const queryTimeout = 5 * time.Second

// Gorm implements Store on top of a *gorm.DB.
type Gorm struct {
	db *gorm.DB
}

// NewGorm wraps database in a Store implementation.
func NewGorm(database *gorm.DB) *Gorm {
	return &Gorm{db: database}
}

func (s *Gorm) session(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	return s.db.WithContext(ctx), cancel
}

// translate maps driver errors onto the store sentinels. Unique-index
// violations (SQLSTATE 23505) become ErrDuplicate so the database remains
// the arbiter for concurrent duplicate inserts.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (s *Gorm) CreateUser(ctx context.Context, user *models.User) error {
	db, cancel := s.session(ctx)
	defer cancel()
	return translate(db.Create(user).Error)
}

func (s *Gorm) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	db, cancel := s.session(ctx)
	defer cancel()

	var user models.User
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Gorm) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	db, cancel := s.session(ctx)
	defer cancel()

	var user models.User
	if err := db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Gorm) UpdateUser(ctx context.Context, user *models.User) error {
	db, cancel := s.session(ctx)
	defer cancel()
	return translate(db.Save(user).Error)
}

func (s *Gorm) CreateSession(ctx context.Context, session *models.Session) error {
	db, cancel := s.session(ctx)
	defer cancel()
	return translate(db.Create(session).Error)
}

func (s *Gorm) SessionsForUser(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	db, cancel := s.session(ctx)
	defer cancel()

	var sessions []models.Session
	if err := db.Where("user_id = ?", userID).Find(&sessions).Error; err != nil {
		return nil, translate(err)
	}
	return sessions, nil
}

func (s *Gorm) DeleteSessionByFingerprint(ctx context.Context, userID uuid.UUID, refreshFingerprint string) (int64, error) {
	db, cancel := s.session(ctx)
	defer cancel()

	res := db.Where("user_id = ? AND refresh_token_fingerprint = ?", userID, refreshFingerprint).
		Delete(&models.Session{})
	return res.RowsAffected, translate(res.Error)
}

func (s *Gorm) DeleteSessionsForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	db, cancel := s.session(ctx)
	defer cancel()

	res := db.Where("user_id = ?", userID).Delete(&models.Session{})
	return res.RowsAffected, translate(res.Error)
}

func (s *Gorm) CreateResetToken(ctx context.Context, token *models.PasswordResetToken) error {
	db, cancel := s.session(ctx)
	defer cancel()
	return translate(db.Create(token).Error)
}

func (s *Gorm) UnusedResetToken(ctx context.Context, secret string) (*models.PasswordResetToken, error) {
	db, cancel := s.session(ctx)
	defer cancel()

	var token models.PasswordResetToken
	if err := db.Where("token = ? AND used_at IS NULL", secret).First(&token).Error; err != nil {
		return nil, translate(err)
	}
	return &token, nil
}

func (s *Gorm) ConsumeResetToken(ctx context.Context, id uuid.UUID, usedAt time.Time) error {
	db, cancel := s.session(ctx)
	defer cancel()

	res := db.Model(&models.PasswordResetToken{}).
		Where("id = ? AND used_at IS NULL", id).
		Update("used_at", usedAt)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Gorm) CreateVerificationToken(ctx context.Context, token *models.EmailVerificationToken) error {
	db, cancel := s.session(ctx)
	defer cancel()
	return translate(db.Create(token).Error)
}

func (s *Gorm) UnusedVerificationToken(ctx context.Context, secret string) (*models.EmailVerificationToken, error) {
	db, cancel := s.session(ctx)
	defer cancel()

	var token models.EmailVerificationToken
	if err := db.Where("token = ? AND verified_at IS NULL", secret).First(&token).Error; err != nil {
		return nil, translate(err)
	}
	return &token, nil
}

func (s *Gorm) ConsumeVerificationToken(ctx context.Context, id uuid.UUID, verifiedAt time.Time) error {
	db, cancel := s.session(ctx)
	defer cancel()

	res := db.Model(&models.EmailVerificationToken{}).
		Where("id = ? AND verified_at IS NULL", id).
		Update("verified_at", verifiedAt)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Gorm) FreshSnapshot(ctx context.Context, provider, requestKey string, notBefore time.Time) ([]byte, error) {
	db, cancel := s.session(ctx)
	defer cancel()

	var snapshot models.TrendSnapshot
	err := db.Where("provider = ? AND request_key = ? AND fetched_at >= ?", provider, requestKey, notBefore).
		Order("fetched_at DESC").
		First(&snapshot).Error
	if err != nil {
		return nil, translate(err)
	}
	return []byte(snapshot.Payload), nil
}

func (s *Gorm) SaveSnapshot(ctx context.Context, snapshot *models.TrendSnapshot) error {
	db, cancel := s.session(ctx)
	defer cancel()
	return translate(db.Create(snapshot).Error)
}

var _ Store = (*Gorm)(nil)
