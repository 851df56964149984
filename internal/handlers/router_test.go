package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"trendpulse/internal/auth"
	"trendpulse/internal/models"
	"trendpulse/internal/security"
	"trendpulse/internal/store"
	"trendpulse/internal/trends"
)

type capturedMail struct {
	template string
	to       string
	token    string
}

type captureMailer struct {
	mu   sync.Mutex
	sent []capturedMail
}

func (m *captureMailer) SendVerification(_ context.Context, email, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, capturedMail{template: "verify-email", to: email, token: token})
}

func (m *captureMailer) SendPasswordReset(_ context.Context, email, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, capturedMail{template: "reset-password", to: email, token: token})
}

func (m *captureMailer) last(t *testing.T) capturedMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	return m.sent[len(m.sent)-1]
}

type apiFixture struct {
	router http.Handler
	store  *store.Memory
	mailer *captureMailer
	codec  *security.TokenCodec
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	st := store.NewMemory()
	mailer := &captureMailer{}
	codec := security.NewTokenCodec("test-signing-key", 15*time.Minute)

	authService, err := auth.NewService(st, security.NewHasher(), codec, mailer, nil, zerolog.Nop(), auth.Options{
		RefreshTTL:      7 * 24 * time.Hour,
		RememberMeTTL:   30 * 24 * time.Hour,
		ResetTTL:        time.Hour,
		VerificationTTL: 24 * time.Hour,
	})
	require.NoError(t, err)

	// No connector has credentials and no upstream is reachable; trend tests
	// exercise validation, auth, and the snapshot cache only.
	trendService := trends.NewService(st, 6*time.Hour, zerolog.Nop(),
		trends.NewGoogleClient(zerolog.Nop()),
		trends.NewYouTubeClient("", zerolog.Nop()),
		trends.NewRedditClient("test-agent", zerolog.Nop()),
		trends.NewExaClient("", zerolog.Nop()),
		trends.NewTwitterClient("", zerolog.Nop()),
	)

	api := New(Options{
		Auth:         authService,
		Trends:       trendService,
		Store:        st,
		Codec:        codec,
		Log:          zerolog.Nop(),
		AvatarBucket: "avatars",
	})

	return &apiFixture{
		router: api.Router(RouterOptions{RateLimitEnabled: false}),
		store:  st,
		mailer: mailer,
		codec:  codec,
	}
}

func (f *apiFixture) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func (f *apiFixture) registerAndLogin(t *testing.T, email, password string) (access, refresh string) {
	t.Helper()

	rec := f.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"email": email, "password": password,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email": email, "password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	return body["access_token"].(string), body["refresh_token"].(string)
}

func TestHealthAndRoot(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "running", decodeBody(t, rec)["status"])
}

func TestRegisterEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"email": "ada@example.com", "password": "correct horse", "name": "Ada",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	user := body["user"].(map[string]any)
	assert.Equal(t, "ada@example.com", user["email"])
	assert.Equal(t, "Ada", user["name"])
	assert.Equal(t, false, user["email_verified"])
	assert.NotContains(t, rec.Body.String(), "password")

	mail := f.mailer.last(t)
	assert.Equal(t, "verify-email", mail.template)

	t.Run("duplicate email", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
			"email": "ada@example.com", "password": "another pass",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("short password", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
			"email": "bob@example.com", "password": "short",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing body", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/register", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLoginAndCurrentUser(t *testing.T) {
	f := newAPIFixture(t)
	access, refresh := f.registerAndLogin(t, "bob@example.com", "hunter2hunter2")

	rec := f.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email": "bob@example.com", "password": "hunter2hunter2",
	})
	body := decodeBody(t, rec)
	assert.Equal(t, "bearer", body["token_type"])
	assert.Equal(t, float64(900), body["expires_in"])

	rec = f.do(t, http.MethodGet, "/api/users/me", access, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	user := decodeBody(t, rec)["user"].(map[string]any)
	assert.Equal(t, "bob@example.com", user["email"])
	assert.NotNil(t, user["last_login_at"])

	t.Run("wrong password", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{
			"email": "bob@example.com", "password": "not the password",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown email", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{
			"email": "ghost@example.com", "password": "hunter2hunter2",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("refresh token rejected as bearer", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/users/me", refresh, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestBearerRejections(t *testing.T) {
	f := newAPIFixture(t)
	access, _ := f.registerAndLogin(t, "carol@example.com", "sufficiently long")

	t.Run("no header", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/users/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/users/me", "not.a.jwt", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("deactivated account", func(t *testing.T) {
		ctx := context.Background()
		user, err := f.store.UserByEmail(ctx, "carol@example.com")
		require.NoError(t, err)
		user.IsActive = false
		require.NoError(t, f.store.UpdateUser(ctx, user))

		rec := f.do(t, http.MethodGet, "/api/users/me", access, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRefreshEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	_, refresh := f.registerAndLogin(t, "dave@example.com", "refresh me pls")

	rec := f.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]any{
		"refresh_token": refresh,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["access_token"])
	assert.Equal(t, "bearer", body["token_type"])

	t.Run("garbage token", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]any{
			"refresh_token": "not.a.jwt",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing field", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLogoutEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	access, refresh := f.registerAndLogin(t, "erin@example.com", "two devices!")

	t.Run("requires auth", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/logout", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	rec := f.do(t, http.MethodPost, "/api/auth/logout", access, map[string]any{
		"refresh_token": refresh,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(1), decodeBody(t, rec)["sessions_removed"])

	// Logout is idempotent and the body optional.
	rec = f.do(t, http.MethodPost, "/api/auth/logout", access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decodeBody(t, rec)["sessions_removed"])
}

func TestLogoutAllDevices(t *testing.T) {
	f := newAPIFixture(t)
	access, _ := f.registerAndLogin(t, "gina@example.com", "many devices!")

	rec := f.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email": "gina@example.com", "password": "many devices!",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/auth/logout", access, map[string]any{
		"logout_all_devices": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decodeBody(t, rec)["sessions_removed"])
}

func TestPasswordResetFlow(t *testing.T) {
	f := newAPIFixture(t)
	f.registerAndLogin(t, "judy@example.com", "old password!")

	rec := f.do(t, http.MethodPost, "/api/auth/forgot-password", "", map[string]any{
		"email": "judy@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	t.Run("unknown email gets the same response", func(t *testing.T) {
		known := rec.Body.String()
		rec := f.do(t, http.MethodPost, "/api/auth/forgot-password", "", map[string]any{
			"email": "ghost@example.com",
		})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, known, rec.Body.String())
	})

	mail := f.mailer.last(t)
	require.Equal(t, "reset-password", mail.template)

	rec = f.do(t, http.MethodPost, "/api/auth/reset-password", "", map[string]any{
		"token": mail.token, "new_password": "new password!!",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email": "judy@example.com", "password": "old password!",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email": "judy@example.com", "password": "new password!!",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	t.Run("token is single use", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/reset-password", "", map[string]any{
			"token": mail.token, "new_password": "third password!",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestVerifyEmailEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"email": "liam@example.com", "password": "verify my mail",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	mail := f.mailer.last(t)

	rec = f.do(t, http.MethodGet, "/api/auth/verify-email?token="+mail.token, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	user, err := f.store.UserByEmail(context.Background(), "liam@example.com")
	require.NoError(t, err)
	assert.True(t, user.EmailVerified)

	t.Run("token is single use", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/auth/verify-email?token="+mail.token, "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/auth/verify-email", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("resend for verified account", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/resend-verification?email=liam@example.com", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("resend for unknown account", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/resend-verification?email=ghost@example.com", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAvatarUploadWithoutStorage(t *testing.T) {
	f := newAPIFixture(t)
	access, _ := f.registerAndLogin(t, "mona@example.com", "picture perfect")

	rec := f.do(t, http.MethodPost, "/api/users/me/avatar", access, map[string]any{
		"content_type": "image/png",
	})
	assert.Equal(t, http.StatusFailedDependency, rec.Code)
}

func TestTrendEndpointGuards(t *testing.T) {
	f := newAPIFixture(t)
	access, _ := f.registerAndLogin(t, "nina@example.com", "trends please!")

	t.Run("requires auth", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/trends/google", "", map[string]any{
			"action": "trending_searches",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown action", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/trends/google", access, map[string]any{
			"action": "explode",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("keyword_interest needs a keyword", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/trends/google", access, map[string]any{
			"action": "keyword_interest",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("search_trending needs a query", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/trends/exa", access, map[string]any{
			"action": "search_trending",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("twitter without credentials", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/trends/twitter", access, map[string]any{
			"action": "trends",
		})
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestTrendSnapshotRelay(t *testing.T) {
	f := newAPIFixture(t)
	access, _ := f.registerAndLogin(t, "omar@example.com", "cache me please")

	payload := fmt.Sprintf(`{"success":true,"count":1,"timestamp":%q,"trending_searches":[{"rank":1,"keyword":"solar eclipse","traffic":"2M+"}]}`,
		time.Now().UTC().Format(time.RFC3339))
	require.NoError(t, f.store.SaveSnapshot(context.Background(), &models.TrendSnapshot{
		Provider:   "google",
		RequestKey: "trending_searches:united_states",
		Payload:    datatypes.JSON(payload),
		FetchedAt:  time.Now().UTC(),
	}))

	rec := f.do(t, http.MethodPost, "/api/trends/google", access, map[string]any{
		"action": "trending_searches",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, payload, rec.Body.String())
}
