// Package auth implements registration, login, token refresh, logout, and
// the password-reset and email-verification flows. It owns no transport or
// storage details: persistence goes through store.Store, crypto through the
// security package, and email through the Mailer.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trendpulse/internal/models"
	"trendpulse/internal/security"
	"trendpulse/internal/store"
)

// Options carries the token lifetimes the service hands to the codec and
// stamps on stored secrets.
type Options struct {
	RefreshTTL      time.Duration
	RememberMeTTL   time.Duration
	ResetTTL        time.Duration
	VerificationTTL time.Duration
}

// Service orchestrates the auth flows.
type Service struct {
	store  store.Store
	hasher *security.Hasher
	codec  *security.TokenCodec
	mailer Mailer
	bus    Publisher
	log    zerolog.Logger
	opts   Options

	// decoyHash is verified against when the account lookup fails so a
	// missing account costs the same as a wrong password.
	decoyHash string

	now func() time.Time
}

// NewService wires the auth orchestrator. bus may be nil; events are then
// skipped.
func NewService(st store.Store, hasher *security.Hasher, codec *security.TokenCodec, mailer Mailer, bus Publisher, log zerolog.Logger, opts Options) (*Service, error) {
	decoy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("prepare decoy hash: %w", err)
	}
	return &Service{
		store:     st,
		hasher:    hasher,
		codec:     codec,
		mailer:    mailer,
		bus:       bus,
		log:       log,
		opts:      opts,
		decoyHash: decoy,
		now:       time.Now,
	}, nil
}

// RegisterInput is the payload for Register.
type RegisterInput struct {
	Email    string
	Password string
	Name     *string
}

// Register creates an account and queues a verification email. The unique
// index on users.email is the arbiter for concurrent registrations; a
// duplicate insert surfaces as ErrEmailTaken regardless of which request
// hit storage first.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if _, err := s.store.UserByEmail(ctx, in.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("look up email: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Email:        in.Email,
		PasswordHash: &hash,
		Name:         in.Name,
		IsActive:     true,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := s.issueVerification(ctx, user.Email); err != nil {
		// The account exists; verification can be re-sent later.
		s.log.Error().Err(err).Str("email", user.Email).Msg("issue verification token")
	}

	s.publish("trendpulse.auth.registered", map[string]string{"user_id": user.ID.String()})
	return user, nil
}

// LoginInput is the payload for Login. UserAgent and IP are recorded on the
// session for audit.
type LoginInput struct {
	Email      string
	Password   string
	RememberMe bool
	UserAgent  *string
	IPAddress  *string
}

// LoginResult carries the issued token pair.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	User         *models.User
}

// Login verifies credentials and issues an access/refresh token pair,
// recording a session row keyed by token fingerprints. All failure modes
// collapse to ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	user, err := s.store.UserByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn a verification anyway to keep timing flat.
			_, _ = s.hasher.Verify(in.Password, s.decoyHash)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("look up email: %w", err)
	}

	if user.PasswordHash == nil {
		_, _ = s.hasher.Verify(in.Password, s.decoyHash)
		return nil, ErrInvalidCredentials
	}
	ok, err := s.hasher.Verify(in.Password, *user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok || !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	refreshTTL := s.opts.RefreshTTL
	if in.RememberMe {
		refreshTTL = s.opts.RememberMeTTL
	}

	access, err := s.codec.IssueAccess(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.codec.IssueRefresh(user.ID, user.Email, refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	now := s.now().UTC()
	session := &models.Session{
		UserID:                  user.ID,
		TokenFingerprint:        security.Fingerprint(access),
		RefreshTokenFingerprint: security.Fingerprint(refresh),
		UserAgent:               in.UserAgent,
		IPAddress:               in.IPAddress,
		ExpiresAt:               now.Add(refreshTTL),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("record session: %w", err)
	}

	user.LastLoginAt = &now
	if err := s.store.UpdateUser(ctx, user); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID.String()).Msg("stamp last login")
	}

	s.publish("trendpulse.auth.logged_in", map[string]string{"user_id": user.ID.String()})
	return &LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.codec.AccessTTL().Seconds()),
		User:         user,
	}, nil
}

// RefreshResult carries the re-issued access token.
type RefreshResult struct {
	AccessToken string
	ExpiresIn   int64
}

// Refresh mints a new access token from a valid refresh token. The refresh
// token itself is not rotated: it stays valid until its own expiry, and
// verification is purely cryptographic with no session lookup.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	claims, err := s.codec.Verify(refreshToken, security.TokenRefresh)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.store.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("look up user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrInvalidRefreshToken
	}

	access, err := s.codec.IssueAccess(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	return &RefreshResult{
		AccessToken: access,
		ExpiresIn:   int64(s.codec.AccessTTL().Seconds()),
	}, nil
}

// Logout deletes session records: the one matching refreshToken's
// fingerprint, or every session for the user when allDevices is set. It is
// idempotent and reports how many sessions were removed. Outstanding JWTs
// remain cryptographically valid until they expire.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID, refreshToken string, allDevices bool) (int64, error) {
	if allDevices {
		n, err := s.store.DeleteSessionsForUser(ctx, userID)
		if err != nil {
			return 0, fmt.Errorf("delete sessions: %w", err)
		}
		return n, nil
	}
	if refreshToken == "" {
		return 0, nil
	}
	n, err := s.store.DeleteSessionByFingerprint(ctx, userID, security.Fingerprint(refreshToken))
	if err != nil {
		return 0, fmt.Errorf("delete session: %w", err)
	}
	return n, nil
}

// ForgotPassword issues a reset token if an account exists. It returns nil
// for unknown addresses so responses cannot be used to enumerate accounts;
// only storage failures surface.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("look up email: %w", err)
	}

	secret, err := security.NewSecret()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	token := &models.PasswordResetToken{
		Email:     user.Email,
		Token:     secret,
		ExpiresAt: s.now().UTC().Add(s.opts.ResetTTL),
	}
	if err := s.store.CreateResetToken(ctx, token); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	s.mailer.SendPasswordReset(ctx, user.Email, secret)
	return nil
}

// ResetPassword spends a reset token and replaces the account password.
// Existing sessions and outstanding JWTs are left untouched: token validity
// is purely cryptographic and a reset does not revoke them.
func (s *Service) ResetPassword(ctx context.Context, secret, newPassword string) error {
	token, err := s.store.UnusedResetToken(ctx, secret)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrTokenInvalidOrUsed
		}
		return fmt.Errorf("look up reset token: %w", err)
	}
	now := s.now().UTC()
	if token.Expired(now) {
		return ErrTokenExpired
	}

	user, err := s.store.UserByEmail(ctx, token.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrTokenInvalidOrUsed
		}
		return fmt.Errorf("look up user: %w", err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = &hash
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	// Mark the token spent after the password change so a storage failure
	// leaves it reusable rather than burning the user's only link.
	if err := s.store.ConsumeResetToken(ctx, token.ID, now); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("consume reset token: %w", err)
	}

	s.publish("trendpulse.auth.password_reset", map[string]string{"user_id": user.ID.String()})
	return nil
}

// VerifyEmail spends a verification token and marks the account's email
// confirmed.
func (s *Service) VerifyEmail(ctx context.Context, secret string) error {
	token, err := s.store.UnusedVerificationToken(ctx, secret)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrTokenInvalidOrUsed
		}
		return fmt.Errorf("look up verification token: %w", err)
	}
	now := s.now().UTC()
	if token.Expired(now) {
		return ErrTokenExpired
	}

	user, err := s.store.UserByEmail(ctx, token.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrTokenInvalidOrUsed
		}
		return fmt.Errorf("look up user: %w", err)
	}

	if !user.EmailVerified {
		user.EmailVerified = true
		user.EmailVerifiedAt = &now
		if err := s.store.UpdateUser(ctx, user); err != nil {
			return fmt.Errorf("mark email verified: %w", err)
		}
	}

	if err := s.store.ConsumeVerificationToken(ctx, token.ID, now); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("consume verification token: %w", err)
	}

	s.publish("trendpulse.auth.email_verified", map[string]string{"user_id": user.ID.String()})
	return nil
}

// ResendVerification issues a fresh verification token for an unverified
// account. Unlike ForgotPassword this endpoint requires the address to
// exist, matching its use from a logged-in onboarding screen.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	user, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrEmailNotFound
		}
		return fmt.Errorf("look up email: %w", err)
	}
	if user.EmailVerified {
		return ErrAlreadyVerified
	}
	return s.issueVerification(ctx, user.Email)
}

func (s *Service) issueVerification(ctx context.Context, email string) error {
	secret, err := security.NewSecret()
	if err != nil {
		return fmt.Errorf("generate verification token: %w", err)
	}
	token := &models.EmailVerificationToken{
		Email:     email,
		Token:     secret,
		ExpiresAt: s.now().UTC().Add(s.opts.VerificationTTL),
	}
	if err := s.store.CreateVerificationToken(ctx, token); err != nil {
		return fmt.Errorf("store verification token: %w", err)
	}
	s.mailer.SendVerification(ctx, email, secret)
	return nil
}

func (s *Service) publish(subject string, payload map[string]string) {
	if s.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := s.bus.Publish(subject, data); err != nil {
		s.log.Warn().Err(err).Str("subject", subject).Msg("publish auth event")
	}
}
