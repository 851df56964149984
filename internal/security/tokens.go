package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType distinguishes access from refresh tokens inside the claims.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// ErrInvalidToken is returned for any token that fails verification:
// bad signature, wrong type claim, or past expiry.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims carried by both token kinds. Subject is the user ID.
type Claims struct {
	jwt.RegisteredClaims
	Email     string    `json:"email"`
	TokenType TokenType `json:"type"`
}

// TokenCodec issues and verifies HS256-signed JWTs. It is stateless:
// verification is purely computational and never consults storage.
type TokenCodec struct {
	secret    []byte
	accessTTL time.Duration
}

// NewTokenCodec returns a codec signing with secret. accessTTL bounds access
// tokens; refresh lifetimes are chosen per call.
func NewTokenCodec(secret string, accessTTL time.Duration) *TokenCodec {
	return &TokenCodec{secret: []byte(secret), accessTTL: accessTTL}
}

// AccessTTL reports the configured access-token lifetime.
func (c *TokenCodec) AccessTTL() time.Duration {
	return c.accessTTL
}

// IssueAccess mints an access token for the user, expiring accessTTL from now.
func (c *TokenCodec) IssueAccess(userID uuid.UUID, email string) (string, error) {
	return c.issue(userID, email, TokenAccess, c.accessTTL)
}

// IssueRefresh mints a refresh token with the caller-chosen lifetime
// (standard or extended for remember-me logins).
func (c *TokenCodec) IssueRefresh(userID uuid.UUID, email string, ttl time.Duration) (string, error) {
	return c.issue(userID, email, TokenRefresh, ttl)
}

func (c *TokenCodec) issue(userID uuid.UUID, email string, typ TokenType, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email:     email,
		TokenType: typ,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Verify parses tokenString, checking signature and expiry, and rejects
// tokens whose type claim does not match want. On success the decoded claims
// always carry a parseable subject.
func (c *TokenCodec) Verify(tokenString string, want TokenType) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != want {
		return nil, ErrInvalidToken
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// UserID returns the user the claims were issued for.
func (cl *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(cl.Subject)
}
