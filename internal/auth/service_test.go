package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendpulse/internal/models"
	"trendpulse/internal/security"
	"trendpulse/internal/store"
)

type sentMail struct {
	template string
	to       string
	token    string
}

type memMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *memMailer) SendVerification(_ context.Context, email, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{template: "verify-email", to: email, token: token})
}

func (m *memMailer) SendPasswordReset(_ context.Context, email, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{template: "reset-password", to: email, token: token})
}

func (m *memMailer) last() (sentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMail{}, false
	}
	return m.sent[len(m.sent)-1], true
}

func (m *memMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type fixture struct {
	svc    *Service
	store  *store.Memory
	mailer *memMailer
	codec  *security.TokenCodec
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemory()
	mailer := &memMailer{}
	codec := security.NewTokenCodec("test-signing-key", 15*time.Minute)
	svc, err := NewService(st, security.NewHasher(), codec, mailer, nil, zerolog.Nop(), Options{
		RefreshTTL:      7 * 24 * time.Hour,
		RememberMeTTL:   30 * 24 * time.Hour,
		ResetTTL:        time.Hour,
		VerificationTTL: 24 * time.Hour,
	})
	require.NoError(t, err)
	return &fixture{svc: svc, store: st, mailer: mailer, codec: codec}
}

func (f *fixture) register(t *testing.T, email, password string) *models.User {
	t.Helper()
	user, err := f.svc.Register(context.Background(), RegisterInput{Email: email, Password: password})
	require.NoError(t, err)
	return user
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	name := "Ada"
	user, err := f.svc.Register(ctx, RegisterInput{Email: "ada@example.com", Password: "correct horse", Name: &name})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.True(t, user.IsActive)
	assert.False(t, user.EmailVerified)
	require.NotNil(t, user.PasswordHash)
	assert.NotContains(t, *user.PasswordHash, "correct horse")

	mail, ok := f.mailer.last()
	require.True(t, ok)
	assert.Equal(t, "verify-email", mail.template)
	assert.Equal(t, "ada@example.com", mail.to)

	_, err = f.svc.Register(ctx, RegisterInput{Email: "ada@example.com", Password: "other password"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterDuplicateRace(t *testing.T) {
	// When the pre-check misses (concurrent insert), the store's unique
	// constraint still surfaces as ErrEmailTaken.
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.CreateUser(ctx, &models.User{Email: "race@example.com"}))

	_, err := f.svc.Register(ctx, RegisterInput{Email: "race@example.com", Password: "whatever pw"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "bob@example.com", "hunter2hunter2")

	ua := "test-agent"
	res, err := f.svc.Login(ctx, LoginInput{Email: "bob@example.com", Password: "hunter2hunter2", UserAgent: &ua})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.NotEqual(t, res.AccessToken, res.RefreshToken)
	assert.Equal(t, int64(900), res.ExpiresIn)
	require.NotNil(t, res.User.LastLoginAt)

	claims, err := f.codec.Verify(res.AccessToken, security.TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", claims.Email)

	sessions, err := f.store.SessionsForUser(ctx, res.User.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, security.Fingerprint(res.RefreshToken), sessions[0].RefreshTokenFingerprint)
	assert.NotEqual(t, res.RefreshToken, sessions[0].RefreshTokenFingerprint)
	require.NotNil(t, sessions[0].UserAgent)
	assert.Equal(t, ua, *sessions[0].UserAgent)
}

func TestLoginFailuresCollapse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "carol@example.com", "sufficiently long")

	tests := []struct {
		name  string
		setup func(t *testing.T)
		in    LoginInput
	}{
		{
			name: "wrong password",
			in:   LoginInput{Email: "carol@example.com", Password: "not the password"},
		},
		{
			name: "unknown email",
			in:   LoginInput{Email: "nobody@example.com", Password: "sufficiently long"},
		},
		{
			name: "deactivated account",
			setup: func(t *testing.T) {
				u, err := f.store.UserByID(ctx, user.ID)
				require.NoError(t, err)
				u.IsActive = false
				require.NoError(t, f.store.UpdateUser(ctx, u))
			},
			in: LoginInput{Email: "carol@example.com", Password: "sufficiently long"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup(t)
			}
			_, err := f.svc.Login(ctx, tt.in)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestLoginRememberMe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "dave@example.com", "remembered pass")

	res, err := f.svc.Login(ctx, LoginInput{Email: "dave@example.com", Password: "remembered pass", RememberMe: true})
	require.NoError(t, err)

	claims, err := f.codec.Verify(res.RefreshToken, security.TokenRefresh)
	require.NoError(t, err)
	assert.InDelta(t, 30*24*time.Hour.Seconds(), time.Until(claims.ExpiresAt.Time).Seconds(), 60)

	sessions, err := f.store.SessionsForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.InDelta(t, 30*24*time.Hour.Seconds(), time.Until(sessions[0].ExpiresAt).Seconds(), 60)
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "erin@example.com", "refresh me pls")

	res, err := f.svc.Login(ctx, LoginInput{Email: "erin@example.com", Password: "refresh me pls"})
	require.NoError(t, err)

	refreshed, err := f.svc.Refresh(ctx, res.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.Equal(t, int64(900), refreshed.ExpiresIn)

	claims, err := f.codec.Verify(refreshed.AccessToken, security.TokenAccess)
	require.NoError(t, err)
	got, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, user.ID, got)
}

func TestRefreshRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "frank@example.com", "cannot refresh")

	res, err := f.svc.Login(ctx, LoginInput{Email: "frank@example.com", Password: "cannot refresh"})
	require.NoError(t, err)

	t.Run("access token is not a refresh token", func(t *testing.T) {
		_, err := f.svc.Refresh(ctx, res.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := f.svc.Refresh(ctx, "not.a.jwt")
		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	})

	t.Run("deactivated account", func(t *testing.T) {
		u, err := f.store.UserByID(ctx, user.ID)
		require.NoError(t, err)
		u.IsActive = false
		require.NoError(t, f.store.UpdateUser(ctx, u))

		_, err = f.svc.Refresh(ctx, res.RefreshToken)
		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	})
}

func TestLogoutSelective(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "gina@example.com", "two devices!")

	first, err := f.svc.Login(ctx, LoginInput{Email: "gina@example.com", Password: "two devices!"})
	require.NoError(t, err)
	second, err := f.svc.Login(ctx, LoginInput{Email: "gina@example.com", Password: "two devices!"})
	require.NoError(t, err)

	n, err := f.svc.Logout(ctx, user.ID, first.RefreshToken, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	sessions, err := f.store.SessionsForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, security.Fingerprint(second.RefreshToken), sessions[0].RefreshTokenFingerprint)

	// Idempotent: the same logout again removes nothing and does not error.
	n, err = f.svc.Logout(ctx, user.ID, first.RefreshToken, false)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLogoutAllDevicesKeepsTokensValid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "hank@example.com", "stateless jwts")

	res, err := f.svc.Login(ctx, LoginInput{Email: "hank@example.com", Password: "stateless jwts"})
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, LoginInput{Email: "hank@example.com", Password: "stateless jwts"})
	require.NoError(t, err)

	n, err := f.svc.Logout(ctx, user.ID, "", true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	sessions, err := f.store.SessionsForUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	// Token validity is cryptographic: the old refresh token still mints
	// access tokens after logout removed its session record.
	refreshed, err := f.svc.Refresh(ctx, res.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
}

func TestForgotPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "iris@example.com", "forgettable pw")
	sentBefore := f.mailer.count()

	t.Run("unknown email succeeds silently", func(t *testing.T) {
		require.NoError(t, f.svc.ForgotPassword(ctx, "ghost@example.com"))
		assert.Equal(t, sentBefore, f.mailer.count())
	})

	t.Run("known email gets a token", func(t *testing.T) {
		require.NoError(t, f.svc.ForgotPassword(ctx, "iris@example.com"))
		mail, ok := f.mailer.last()
		require.True(t, ok)
		assert.Equal(t, "reset-password", mail.template)
		assert.Equal(t, "iris@example.com", mail.to)
		assert.NotEmpty(t, mail.token)
	})
}

func TestResetPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "judy@example.com", "old password!")

	res, err := f.svc.Login(ctx, LoginInput{Email: "judy@example.com", Password: "old password!"})
	require.NoError(t, err)

	require.NoError(t, f.svc.ForgotPassword(ctx, "judy@example.com"))
	mail, ok := f.mailer.last()
	require.True(t, ok)

	require.NoError(t, f.svc.ResetPassword(ctx, mail.token, "new password!!"))

	// Old password no longer works, new one does.
	_, err = f.svc.Login(ctx, LoginInput{Email: "judy@example.com", Password: "old password!"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, LoginInput{Email: "judy@example.com", Password: "new password!!"})
	require.NoError(t, err)

	// Sessions from before the reset survive: a reset does not revoke, so
	// both the pre-reset login and the fresh one are on record.
	sessions, err := f.store.SessionsForUser(ctx, res.User.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	// Single use.
	err = f.svc.ResetPassword(ctx, mail.token, "third password!")
	assert.ErrorIs(t, err, ErrTokenInvalidOrUsed)
}

func TestResetPasswordTokenStates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "kate@example.com", "expiring soon")

	t.Run("unknown token", func(t *testing.T) {
		err := f.svc.ResetPassword(ctx, "no-such-token", "whatever next")
		assert.ErrorIs(t, err, ErrTokenInvalidOrUsed)
	})

	t.Run("expired token", func(t *testing.T) {
		secret, err := security.NewSecret()
		require.NoError(t, err)
		require.NoError(t, f.store.CreateResetToken(ctx, &models.PasswordResetToken{
			Email:     "kate@example.com",
			Token:     secret,
			ExpiresAt: time.Now().UTC().Add(-time.Minute),
		}))

		err = f.svc.ResetPassword(ctx, secret, "whatever next")
		assert.ErrorIs(t, err, ErrTokenExpired)
	})
}

func TestVerifyEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "liam@example.com", "verify my mail")

	mail, ok := f.mailer.last()
	require.True(t, ok)
	require.Equal(t, "verify-email", mail.template)

	require.NoError(t, f.svc.VerifyEmail(ctx, mail.token))

	verified, err := f.store.UserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, verified.EmailVerified)
	assert.NotNil(t, verified.EmailVerifiedAt)

	// Single use.
	err = f.svc.VerifyEmail(ctx, mail.token)
	assert.ErrorIs(t, err, ErrTokenInvalidOrUsed)
}

func TestVerifyEmailExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "mona@example.com", "too slow to click")

	secret, err := security.NewSecret()
	require.NoError(t, err)
	require.NoError(t, f.store.CreateVerificationToken(ctx, &models.EmailVerificationToken{
		Email:     "mona@example.com",
		Token:     secret,
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
	}))

	err = f.svc.VerifyEmail(ctx, secret)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestResendVerification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "nina@example.com", "resend please!")

	t.Run("unknown email", func(t *testing.T) {
		err := f.svc.ResendVerification(ctx, "ghost@example.com")
		assert.ErrorIs(t, err, ErrEmailNotFound)
	})

	t.Run("unverified account gets a fresh token", func(t *testing.T) {
		before := f.mailer.count()
		require.NoError(t, f.svc.ResendVerification(ctx, "nina@example.com"))
		assert.Equal(t, before+1, f.mailer.count())
	})

	t.Run("already verified", func(t *testing.T) {
		mail, ok := f.mailer.last()
		require.True(t, ok)
		require.NoError(t, f.svc.VerifyEmail(ctx, mail.token))

		err := f.svc.ResendVerification(ctx, "nina@example.com")
		assert.ErrorIs(t, err, ErrAlreadyVerified)
	})
}
