// Package handlers exposes the REST surface: auth flows under /api/auth,
// the user profile under /api/users, and the trend proxy under /api/trends.
// Business errors from the orchestrator map 1:1 to HTTP statuses here;
// anything unexpected becomes a generic 500 with the cause logged.
package handlers

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"trendpulse/internal/auth"
	"trendpulse/internal/models"
	"trendpulse/internal/security"
	"trendpulse/internal/storage"
	"trendpulse/internal/store"
	"trendpulse/internal/trends"
)

// API bundles the dependencies of the HTTP layer.
type API struct {
	auth     *auth.Service
	trends   *trends.Service
	store    store.Store
	codec    *security.TokenCodec
	storage  *storage.Client
	validate *validator.Validate
	log      zerolog.Logger

	avatarBucket string
}

// Options configure New.
type Options struct {
	Auth         *auth.Service
	Trends       *trends.Service
	Store        store.Store
	Codec        *security.TokenCodec
	Storage      *storage.Client
	Log          zerolog.Logger
	AvatarBucket string
}

// New assembles the API handler set.
func New(opts Options) *API {
	return &API{
		auth:         opts.Auth,
		trends:       opts.Trends,
		store:        opts.Store,
		codec:        opts.Codec,
		storage:      opts.Storage,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		log:          opts.Log,
		avatarBucket: opts.AvatarBucket,
	}
}

// userView is the public projection of a user record. The password hash and
// account flags never leave the service.
type userView struct {
	ID                string     `json:"id"`
	Email             string     `json:"email"`
	Name              *string    `json:"name"`
	AvatarURL         *string    `json:"avatar_url"`
	EmailVerified     bool       `json:"email_verified"`
	PreferredLanguage string     `json:"preferred_language"`
	DefaultNiche      *string    `json:"default_niche"`
	DefaultRegion     string     `json:"default_region"`
	DigestFrequency   string     `json:"digest_frequency"`
	CreatedAt         time.Time  `json:"created_at"`
	LastLoginAt       *time.Time `json:"last_login_at"`
}

func viewUser(u *models.User) userView {
	return userView{
		ID:                u.ID.String(),
		Email:             u.Email,
		Name:              u.Name,
		AvatarURL:         u.AvatarURL,
		EmailVerified:     u.EmailVerified,
		PreferredLanguage: u.PreferredLanguage,
		DefaultNiche:      u.DefaultNiche,
		DefaultRegion:     u.DefaultRegion,
		DigestFrequency:   u.DigestFrequency,
		CreatedAt:         u.CreatedAt,
		LastLoginAt:       u.LastLoginAt,
	}
}
