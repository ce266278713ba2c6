// Command token registers a user, optionally places them in a tier group, and
// prints a bearer token for calling the API during development.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sifan077/PowerImage/config"
	apprepository "github.com/sifan077/PowerImage/internal/app/repository"
	"github.com/sifan077/PowerImage/internal/http/util"
	"github.com/sifan077/PowerImage/internal/infra/logger"
	infraPostgres "github.com/sifan077/PowerImage/internal/infra/postgres"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	var (
		userID   uint
		username string
		tier     string
		grants   []string
		ttl      time.Duration
	)
	pflag.UintVar(&userID, "user-id", 0, "user ID to issue the token for (required)")
	pflag.StringVar(&username, "username", "", "username stored on first use (defaults to user-<id>)")
	pflag.StringVar(&tier, "tier", "", "group to add the user to, e.g. EnterpriseTierUsers")
	pflag.StringSliceVar(&grants, "grant", nil, "permission codename to grant directly; repeatable")
	pflag.DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to auth.token_ttl)")
	pflag.Parse()

	if userID == 0 {
		fmt.Fprintln(os.Stderr, "--user-id is required")
		pflag.Usage()
		os.Exit(2)
	}
	if username == "" {
		username = fmt.Sprintf("user-%d", userID)
	}

	log := logger.MustInit(logger.ConfigFromEnv("powerimage-token"))
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	ctx := context.Background()
	sqlDB, err := infraPostgres.OpenDB(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer sqlDB.Close()

	db, err := infraPostgres.NewGorm(sqlDB, log)
	if err != nil {
		log.Fatal("Failed to open GORM connection", zap.Error(err))
	}

	perms := apprepository.NewPermissionRepository(db)
	if _, err := perms.EnsureUser(ctx, userID, username); err != nil {
		log.Fatal("Failed to ensure user", zap.Uint("user_id", userID), zap.Error(err))
	}
	if tier != "" {
		if err := perms.AddUserToGroup(ctx, userID, tier); err != nil {
			log.Fatal("Failed to add user to group", zap.String("group", tier), zap.Error(err))
		}
	}
	for _, codename := range grants {
		if err := perms.GrantUserPermission(ctx, userID, codename); err != nil {
			log.Fatal("Failed to grant permission", zap.String("codename", codename), zap.Error(err))
		}
	}

	if ttl <= 0 {
		ttl, err = time.ParseDuration(cfg.Auth.TokenTTL)
		if err != nil || ttl <= 0 {
			ttl = 24 * time.Hour
		}
	}

	token, err := util.NewTokenIssuer([]byte(cfg.Auth.JWTSecret), ttl).Issue(userID, username)
	if err != nil {
		log.Fatal("Failed to issue token", zap.Error(err))
	}
	fmt.Println(token)
}
