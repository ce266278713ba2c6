package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sifan077/PowerImage/config"
	appmarker "github.com/sifan077/PowerImage/internal/app/marker"
	appmodel "github.com/sifan077/PowerImage/internal/app/model"
	"github.com/sifan077/PowerImage/internal/app/permission"
	apprepository "github.com/sifan077/PowerImage/internal/app/repository"
	appserver "github.com/sifan077/PowerImage/internal/app/server"
	appservice "github.com/sifan077/PowerImage/internal/app/service"
	"github.com/sifan077/PowerImage/internal/http/middleware"
	"github.com/sifan077/PowerImage/internal/http/util"
	"github.com/sifan077/PowerImage/internal/infra/logger"
	infraNATS "github.com/sifan077/PowerImage/internal/infra/nats"
	infraPostgres "github.com/sifan077/PowerImage/internal/infra/postgres"
	infraPrometheus "github.com/sifan077/PowerImage/internal/infra/prometheus"
	infraRedis "github.com/sifan077/PowerImage/internal/infra/redis"
	"github.com/sifan077/PowerImage/internal/infra/storage"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var errMissingSigningSecret = errors.New("local storage needs storage.signing_secret or auth.jwt_secret")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logCfg := logger.ConfigFromEnv("powerimage")
	log := logger.MustInit(logCfg)
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Configuration loaded successfully",
		zap.String("addr", cfg.App.Addr),
		zap.String("base_url", cfg.App.BaseURL),
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.String("redis_host", cfg.Redis.Host),
		zap.String("marker_backend", cfg.Marker.Backend),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Bool("nats_enabled", cfg.NATS.Enabled),
	)

	sqlDB, err := infraPostgres.OpenDB(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer sqlDB.Close()
	log.Info("Connected to Postgres successfully")

	gormDB, err := infraPostgres.NewGorm(sqlDB, log)
	if err != nil {
		log.Fatal("Failed to open GORM connection", zap.Error(err))
	}

	if err := infraPostgres.AutoMigrate(ctx, gormDB,
		&appmodel.Permission{},
		&appmodel.Group{},
		&appmodel.User{},
		&appmodel.Image{},
		&appmodel.ExpiringLink{},
		&appmodel.LinkAccessEvent{},
	); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	permRepo := apprepository.NewPermissionRepository(gormDB)
	if cfg.App.SeedTiers {
		if err := permission.SeedDefaultTiers(ctx, permRepo); err != nil {
			log.Fatal("Failed to seed permission tiers", zap.Error(err))
		}
		log.Info("Permission tiers seeded")
	}

	redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("Connected to Redis successfully")

	markers, stopMarkers := buildMarkers(cfg.Marker, redisClient, log)
	defer stopMarkers()

	files, thumbnails, signer, err := buildStorage(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialise storage", zap.Error(err))
	}

	deps := appserver.Dependencies{
		Logger:      log,
		Postgres:    sqlDB,
		Redis:       redisClient,
		Images:      apprepository.NewImageRepository(gormDB),
		Links:       apprepository.NewLinkRepository(gormDB),
		Permissions: permRepo,
		Markers:     markers,
		Files:       files,
		Thumbnails:  thumbnails,
		ServeMedia:  signer != nil,
		MediaPrefix: cfg.Storage.MediaLocation,
		MediaSigner: signer,
		Tokens:      util.NewTokenIssuer([]byte(cfg.Auth.JWTSecret), parseDuration(cfg.Auth.TokenTTL, 24*time.Hour)),
		BaseURL:     cfg.App.BaseURL,
		RateLimit:   middleware.RateLimitFromConfig(cfg.RateLimit, "ratelimit:link"),
	}

	if cfg.NATS.Enabled {
		natsConn, js, err := infraNATS.Connect(cfg.NATS)
		if err != nil {
			log.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer natsConn.Drain()

		consumer := appservice.NewAccessConsumer(js, log.Named("access"), apprepository.NewAccessEventRepository(gormDB))
		if err := consumer.Start(ctx); err != nil {
			log.Fatal("Failed to start access consumer", zap.Error(err))
		}
		deps.JetStream = js
		log.Info("Connected to NATS successfully")
	}

	if !logCfg.Development {
		promServer := infraPrometheus.NewServer(cfg.Prometheus, nil)
		go func() {
			log.Info("Starting Prometheus metrics server", zap.String("addr", promServer.Addr))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	} else {
		log.Info("Skipping Prometheus metrics server in development mode")
	}

	server := appserver.New(deps)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("Fiber shutdown failed", zap.Error(err))
		}
	}()

	log.Info("Starting HTTP server", zap.String("addr", cfg.App.Addr))
	if err := server.Listen(cfg.App.Addr); err != nil {
		log.Error("Fiber server exited", zap.Error(err))
	}
}

// buildMarkers returns the configured marker store and a func releasing its
// background resources.
func buildMarkers(cfg config.MarkerConfig, client redis.UniversalClient, log *zap.Logger) (appmarker.Store, func()) {
	if strings.EqualFold(cfg.Backend, "memory") {
		log.Warn("Using in-process link markers; links will not resolve across instances")
		store := appmarker.NewMemoryStore(log.Named("markers"),
			appmarker.WithSweepInterval(parseDuration(cfg.SweepInterval, 30*time.Second)))
		store.Start()
		return store, store.Stop
	}
	return appmarker.NewRedisStore(client, cfg.KeyPrefix), func() {}
}

// buildStorage returns the file store and thumbnail URL generator. The signer
// is non-nil only for the local backend, whose files are served under /media.
func buildStorage(ctx context.Context, cfg *config.Config) (storage.Storage, storage.ThumbnailURLGenerator, *storage.MediaSigner, error) {
	if strings.EqualFold(cfg.Storage.Backend, "s3") {
		client, err := storage.NewS3Client(ctx, cfg.S3)
		if err != nil {
			return nil, nil, nil, err
		}
		ttl := storage.PresignTTL(cfg.S3)
		thumbBucket := cfg.S3.ThumbnailBucket
		if thumbBucket == "" {
			thumbBucket = cfg.S3.Bucket
		}
		return storage.NewS3Storage(client, cfg.S3.Bucket, cfg.Storage.MediaLocation, ttl),
			storage.NewS3Thumbnails(client, thumbBucket, ttl),
			nil, nil
	}

	secret := cfg.Storage.SigningSecret
	if secret == "" {
		secret = cfg.Auth.JWTSecret
	}
	if secret == "" {
		return nil, nil, nil, errMissingSigningSecret
	}
	signer := storage.NewMediaSigner([]byte(secret), parseDuration(cfg.Storage.URLTTL, 15*time.Minute))

	publicURL := strings.TrimRight(cfg.App.BaseURL, "/") + "/" + strings.Trim(cfg.Storage.MediaLocation, "/")
	files, err := storage.NewLocalStorage(cfg.Storage.LocalRoot, publicURL, signer)
	if err != nil {
		return nil, nil, nil, err
	}
	return files, storage.NewLocalThumbnails(publicURL, signer), signer, nil
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
