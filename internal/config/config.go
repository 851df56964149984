package config

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds runtime configuration for the TrendPulse API service.
type Config struct {
	Addr           string   `env:"ADDR,default=:8080"`
	AppURL         string   `env:"APP_URL,default=http://localhost:3000"`
	DBDSN          string   `env:"DB_DSN,required"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:3000"`
	OTLPEndpoint   string   `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	JWTSigningKey   string        `env:"JWT_SIGNING_KEY,required"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL,default=15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL,default=168h"`
	RememberMeTTL   time.Duration `env:"REMEMBER_ME_TTL,default=720h"`

	ResetTokenTTL        time.Duration `env:"RESET_TOKEN_TTL,default=1h"`
	VerificationTokenTTL time.Duration `env:"VERIFICATION_TOKEN_TTL,default=24h"`

	RateLimitPerMinute int  `env:"RATE_LIMIT_PER_MINUTE,default=100"`
	RateLimitEnabled   bool `env:"RATE_LIMIT_ENABLED,default=true"`

	NATSURL string `env:"NATS_URL"`

	S3Endpoint   string `env:"S3_ENDPOINT"`
	S3AccessKey  string `env:"S3_ACCESS_KEY"`
	S3SecretKey  string `env:"S3_SECRET_KEY"`
	S3Region     string `env:"S3_REGION,default=us-east-1"`
	AvatarBucket string `env:"AVATAR_BUCKET,default=trendpulse-avatars"`

	YouTubeAPIKey   string        `env:"YOUTUBE_API_KEY"`
	RedditUserAgent string        `env:"REDDIT_USER_AGENT,default=TrendPulse/1.0"`
	ExaAPIKey       string        `env:"EXA_API_KEY"`
	TwitterBearer   string        `env:"TWITTER_BEARER_TOKEN"`
	TrendCacheTTL   time.Duration `env:"TREND_CACHE_TTL,default=6h"`
}

// Load returns a Config populated from environment variables.
func Load(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
