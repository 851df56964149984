package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"trendpulse/internal/auth"
	"trendpulse/internal/bus"
	"trendpulse/internal/config"
	"trendpulse/internal/db"
	"trendpulse/internal/handlers"
	"trendpulse/internal/otel"
	"trendpulse/internal/security"
	"trendpulse/internal/storage"
	"trendpulse/internal/store"
	"trendpulse/internal/trends"
	"trendpulse/internal/version"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           version.Name,
		Short:         "TrendPulse authentication and trend aggregation API",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newMigrateCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			_ = godotenv.Load()
			cfg, err := config.Load(ctx)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			database, err := db.Connect(ctx, cfg.DBDSN)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer func() { _ = db.Close(database) }()

			return db.Migrate(ctx, database)
		},
	}
}

func serve() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cleanup, err := otel.Init(ctx, version.Name, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("init otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cleanup(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown otel")
		}
	}()

	database, err := db.Connect(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := db.Close(database); err != nil {
			log.Error().Err(err).Msg("close database")
		}
	}()

	if err := db.Migrate(ctx, database); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	st := store.NewGorm(database)

	eventBus, err := bus.Connect(cfg.NATSURL)
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	defer eventBus.Close()
	if eventBus == nil {
		log.Warn().Msg("NATS_URL unset, auth events and email jobs will only be logged")
	}

	objects, err := storage.NewClient(ctx, storage.Options{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Region:    cfg.S3Region,
	})
	if err != nil {
		return fmt.Errorf("init object storage: %w", err)
	}
	if objects == nil {
		log.Warn().Msg("S3_ENDPOINT unset, avatar uploads disabled")
	}

	codec := security.NewTokenCodec(cfg.JWTSigningKey, cfg.AccessTokenTTL)
	mailer := auth.NewBusMailer(log.Logger, eventBus, cfg.AppURL)

	authService, err := auth.NewService(st, security.NewHasher(), codec, mailer, eventBus, log.Logger, auth.Options{
		RefreshTTL:      cfg.RefreshTokenTTL,
		RememberMeTTL:   cfg.RememberMeTTL,
		ResetTTL:        cfg.ResetTokenTTL,
		VerificationTTL: cfg.VerificationTokenTTL,
	})
	if err != nil {
		return fmt.Errorf("init auth service: %w", err)
	}

	trendService := trends.NewService(st, cfg.TrendCacheTTL, log.Logger,
		trends.NewGoogleClient(log.Logger),
		trends.NewYouTubeClient(cfg.YouTubeAPIKey, log.Logger),
		trends.NewRedditClient(cfg.RedditUserAgent, log.Logger),
		trends.NewExaClient(cfg.ExaAPIKey, log.Logger),
		trends.NewTwitterClient(cfg.TwitterBearer, log.Logger),
	)

	api := handlers.New(handlers.Options{
		Auth:         authService,
		Trends:       trendService,
		Store:        st,
		Codec:        codec,
		Storage:      objects,
		Log:          log.Logger,
		AvatarBucket: cfg.AvatarBucket,
	})

	r := api.Router(handlers.RouterOptions{
		AllowedOrigins:     cfg.AllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		RateLimitEnabled:   cfg.RateLimitEnabled,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Str("version", version.Version).Msg("starting trendpulse-api")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown server")
	}
	return nil
}
