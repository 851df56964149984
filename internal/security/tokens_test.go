package security

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerifyAccess(t *testing.T) {
	codec := NewTokenCodec("test-signing-key", 15*time.Minute)
	userID := uuid.New()

	token, err := codec.IssueAccess(userID, "a@x.com")
	require.NoError(t, err)

	claims, err := codec.Verify(token, TokenAccess)
	require.NoError(t, err)

	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, TokenAccess, claims.TokenType)

	got, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	// exp should land ~15 minutes out.
	remaining := time.Until(claims.ExpiresAt.Time)
	assert.InDelta(t, (15 * time.Minute).Seconds(), remaining.Seconds(), 5)
}

func TestRefreshLifetimes(t *testing.T) {
	codec := NewTokenCodec("test-signing-key", 15*time.Minute)
	userID := uuid.New()

	tests := []struct {
		name string
		ttl  time.Duration
	}{
		{name: "standard", ttl: 7 * 24 * time.Hour},
		{name: "remember me", ttl: 30 * 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := codec.IssueRefresh(userID, "a@x.com", tt.ttl)
			require.NoError(t, err)

			claims, err := codec.Verify(token, TokenRefresh)
			require.NoError(t, err)
			assert.Equal(t, TokenRefresh, claims.TokenType)

			remaining := time.Until(claims.ExpiresAt.Time)
			assert.InDelta(t, tt.ttl.Seconds(), remaining.Seconds(), 5)
		})
	}
}

func TestVerifyRejectsTypeMismatch(t *testing.T) {
	codec := NewTokenCodec("test-signing-key", 15*time.Minute)
	userID := uuid.New()

	access, err := codec.IssueAccess(userID, "a@x.com")
	require.NoError(t, err)
	refresh, err := codec.IssueRefresh(userID, "a@x.com", 7*24*time.Hour)
	require.NoError(t, err)

	_, err = codec.Verify(access, TokenRefresh)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = codec.Verify(refresh, TokenAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpired(t *testing.T) {
	codec := NewTokenCodec("test-signing-key", -1*time.Minute)

	token, err := codec.IssueAccess(uuid.New(), "a@x.com")
	require.NoError(t, err)

	_, err = codec.Verify(token, TokenAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	codec := NewTokenCodec("test-signing-key", 15*time.Minute)
	other := NewTokenCodec("another-signing-key", 15*time.Minute)

	token, err := other.IssueAccess(uuid.New(), "a@x.com")
	require.NoError(t, err)

	_, err = codec.Verify(token, TokenAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = codec.Verify("not-a-jwt", TokenAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewSecret(t *testing.T) {
	seen := make(map[string]bool)
	for range 32 {
		s, err := NewSecret()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(s), 43) // 32 bytes, unpadded base64url
		assert.NotContains(t, s, "+")
		assert.NotContains(t, s, "/")
		assert.False(t, seen[s], "secrets must not repeat")
		seen[s] = true
	}
}

func TestFingerprint(t *testing.T) {
	fp := Fingerprint("some-token")
	assert.Len(t, fp, 64)
	assert.Equal(t, fp, Fingerprint("some-token"))
	assert.NotEqual(t, fp, Fingerprint("some-token2"))
}
