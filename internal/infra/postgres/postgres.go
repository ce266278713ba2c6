package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/sifan077/PowerImage/config"
)

const (
	defaultDialTimeout = 5 * time.Second
	applicationName    = "powerimage"
)

// PoolSettings are the database/sql pool limits derived from config.
type PoolSettings struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// Pool maps the pool options in cfg onto database/sql limits. Unparseable
// durations keep the default.
func Pool(cfg config.PostgresConfig) PoolSettings {
	settings := PoolSettings{
		MaxLifetime: 5 * time.Minute,
	}
	if cfg.MaxConns > 0 {
		settings.MaxOpen = int(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		settings.MaxIdle = int(cfg.MinConns)
	}
	if cfg.MaxConnLifetime != "" {
		if duration, err := time.ParseDuration(cfg.MaxConnLifetime); err == nil {
			settings.MaxLifetime = duration
		}
	}
	if cfg.MaxConnIdleTime != "" {
		if duration, err := time.ParseDuration(cfg.MaxConnIdleTime); err == nil {
			settings.MaxIdleTime = duration
		}
	}
	return settings
}

// Apply sets the limits on db.
func (p PoolSettings) Apply(db *sql.DB) {
	if p.MaxOpen > 0 {
		db.SetMaxOpenConns(p.MaxOpen)
	}
	if p.MaxIdle > 0 {
		db.SetMaxIdleConns(p.MaxIdle)
	}
	db.SetConnMaxLifetime(p.MaxLifetime)
	db.SetConnMaxIdleTime(p.MaxIdleTime)
}

// ConnConfig parses cfg into a pgx connection config tagged with the
// application name.
func ConnConfig(cfg config.PostgresConfig) (*pgx.ConnConfig, error) {
	connCfg, err := pgx.ParseConfig(ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if connCfg.ConnectTimeout == 0 {
		connCfg.ConnectTimeout = defaultDialTimeout
	}
	connCfg.RuntimeParams["application_name"] = applicationName
	return connCfg, nil
}

// OpenDB opens the pgx-backed *sql.DB shared by GORM and health checks and
// verifies connectivity.
func OpenDB(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	connCfg, err := ConnConfig(cfg)
	if err != nil {
		return nil, err
	}

	db := stdlib.OpenDB(*connCfg)
	Pool(cfg).Apply(db)

	pingCtx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return db, nil
}

type connParts struct {
	host     string
	port     int
	user     string
	password string
	database string
	sslMode  string
}

// ConnString renders cfg as a postgres:// URL, filling in local defaults.
func ConnString(cfg config.PostgresConfig) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return buildConnString(connParts{
		host:     host,
		port:     port,
		user:     cfg.User,
		password: cfg.Password,
		database: cfg.Database,
		sslMode:  sslMode,
	})
}

func buildConnString(parts connParts) string {
	user := url.PathEscape(parts.user)
	password := url.PathEscape(parts.password)
	database := url.PathEscape(parts.database)

	credentials := user
	if password != "" {
		credentials = fmt.Sprintf("%s:%s", user, password)
	}

	return fmt.Sprintf("postgres://%s@%s:%d/%s?sslmode=%s",
		credentials,
		parts.host,
		parts.port,
		database,
		parts.sslMode,
	)
}
