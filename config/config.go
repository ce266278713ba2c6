package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// HTTP application
	App AppConfig `mapstructure:"app"`

	// Bearer token verification
	Auth AuthConfig `mapstructure:"auth"`

	// PostgreSQL
	Postgres PostgresConfig `mapstructure:"postgres"`

	// Redis
	Redis RedisConfig `mapstructure:"redis"`

	// Link validity markers
	Marker MarkerConfig `mapstructure:"marker"`

	// Image storage
	Storage StorageConfig `mapstructure:"storage"`
	S3      S3Config      `mapstructure:"s3"`

	// NATS
	NATS NATSConfig `mapstructure:"nats"`

	// Prometheus
	Prometheus PrometheusConfig `mapstructure:"prometheus"`

	// Public link rate limiting
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type AppConfig struct {
	Addr      string `mapstructure:"addr"`
	BaseURL   string `mapstructure:"base_url"`
	Env       string `mapstructure:"env"`
	SeedTiers bool   `mapstructure:"seed_tiers"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	TokenTTL  string `mapstructure:"token_ttl"`
}

type PostgresConfig struct {
	Host            string `mapstructure:"host"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	Port            int    `mapstructure:"port"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxConns        int32  `mapstructure:"max_conns"`
	MinConns        int32  `mapstructure:"min_conns"`
	MaxConnLifetime string `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime string `mapstructure:"max_conn_idle_time"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MarkerConfig struct {
	// Backend is "redis" or "memory". Memory markers only work for a single instance.
	Backend       string `mapstructure:"backend"`
	KeyPrefix     string `mapstructure:"key_prefix"`
	SweepInterval string `mapstructure:"sweep_interval"`
}

type StorageConfig struct {
	// Backend is "local" or "s3".
	Backend       string `mapstructure:"backend"`
	LocalRoot     string `mapstructure:"local_root"`
	MediaLocation string `mapstructure:"media_location"`
	// SigningSecret signs local media URLs; empty falls back to auth.jwt_secret.
	SigningSecret string `mapstructure:"signing_secret"`
	URLTTL        string `mapstructure:"url_ttl"`
}

type S3Config struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	ThumbnailBucket string `mapstructure:"thumbnail_bucket"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	PresignTTL      string `mapstructure:"presign_ttl"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

type NATSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

type PrometheusConfig struct {
	Port int `mapstructure:"port"`
}

type RateLimitConfig struct {
	MaxRequests int    `mapstructure:"max_requests"`
	Window      string `mapstructure:"window"`
}

func Load() (*Config, error) {
	// Load local .env for development (ignored when missing).
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	// Search for config/config.yaml (plus root for overrides).
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Allow environment variables to override YAML entries.
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Preserve legacy env variable names.
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.addr", ":8080")
	v.SetDefault("app.base_url", "http://localhost:8080")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.seed_tiers", true)

	v.SetDefault("auth.token_ttl", "24h")

	v.SetDefault("marker.backend", "redis")
	v.SetDefault("marker.key_prefix", "link")
	v.SetDefault("marker.sweep_interval", "30s")

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local_root", "./media")
	v.SetDefault("storage.media_location", "media")
	v.SetDefault("storage.url_ttl", "15m")

	v.SetDefault("s3.presign_ttl", "15m")

	v.SetDefault("rate_limit.max_requests", 100)
	v.SetDefault("rate_limit.window", "1m")
}

func bindEnvVars(v *viper.Viper) {
	// Application
	v.BindEnv("app.addr", "APP_ADDR")
	v.BindEnv("app.base_url", "APP_BASE_URL")
	v.BindEnv("app.env", "APP_ENV")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("storage.signing_secret", "MEDIA_SIGNING_SECRET")

	// PostgreSQL
	v.BindEnv("postgres.host", "PG_HOST")
	v.BindEnv("postgres.user", "PG_USER")
	v.BindEnv("postgres.password", "PG_PASSWORD")
	v.BindEnv("postgres.database", "PG_DB")
	v.BindEnv("postgres.port", "PG_PORT")
	v.BindEnv("postgres.sslmode", "PG_SSLMODE")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	// S3
	v.BindEnv("s3.region", "AWS_REGION")
	v.BindEnv("s3.bucket", "AWS_STORAGE_BUCKET_NAME")
	v.BindEnv("s3.thumbnail_bucket", "AWS_THUMBNAIL_ACCESS_POINT_ARN")
	v.BindEnv("s3.endpoint", "AWS_S3_ENDPOINT_URL")
	v.BindEnv("s3.access_key_id", "AWS_ACCESS_KEY_ID")
	v.BindEnv("s3.secret_access_key", "AWS_SECRET_ACCESS_KEY")

	// NATS
	v.BindEnv("nats.enabled", "NATS_ENABLED")
	v.BindEnv("nats.host", "NATS_HOST")
	v.BindEnv("nats.port", "NATS_PORT")
	v.BindEnv("nats.user", "NATS_USER")
	v.BindEnv("nats.password", "NATS_PASSWORD")

	// Prometheus
	v.BindEnv("prometheus.port", "PROM_PORT")
}
