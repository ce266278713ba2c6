package main

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/sifan077/PowerImage/config"
	appmarker "github.com/sifan077/PowerImage/internal/app/marker"
	"github.com/sifan077/PowerImage/internal/infra/storage"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestBuildMarkers_MemoryStopsSweeper(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	store, stop := buildMarkers(config.MarkerConfig{Backend: "memory", SweepInterval: "1h"}, nil, zap.New(core))
	require.IsType(t, &appmarker.MemoryStore{}, store)

	stop()
	stop()
	require.Eventually(t, func() bool {
		return logs.FilterMessage("marker sweeper stopped").Len() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestBuildMarkers_RedisHasNoopStop(t *testing.T) {
	store, stop := buildMarkers(config.MarkerConfig{Backend: "redis", KeyPrefix: "link"}, nil, zap.NewNop())
	require.IsType(t, &appmarker.RedisStore{}, store)
	stop()
}

func TestBuildStorage_LocalSignsURLs(t *testing.T) {
	cfg := &config.Config{
		App:  config.AppConfig{BaseURL: "http://img.test/"},
		Auth: config.AuthConfig{JWTSecret: "fallback"},
		Storage: config.StorageConfig{
			Backend:       "local",
			LocalRoot:     t.TempDir(),
			MediaLocation: "/media/",
			URLTTL:        "5m",
		},
	}

	files, thumbs, signer, err := buildStorage(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, signer)

	raw, err := thumbs.Generate(context.Background(), "1/original/a.png", 200)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(raw, "http://img.test/media/1/original/a.png@200?"))

	u, err := url.Parse(raw)
	require.NoError(t, err)
	require.NoError(t, signer.Verify("1/original/a.png@200", u.Query().Get(storage.SignatureParam)))

	original, err := files.URL(context.Background(), "1/original/a.png")
	require.NoError(t, err)
	require.Contains(t, original, storage.SignatureParam+"=")
}

func TestBuildStorage_LocalRequiresSecret(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Backend: "local", LocalRoot: t.TempDir()}}

	_, _, _, err := buildStorage(context.Background(), cfg)
	require.True(t, errors.Is(err, errMissingSigningSecret))
}

func TestParseDuration(t *testing.T) {
	require.Equal(t, 2*time.Second, parseDuration("2s", time.Minute))
	require.Equal(t, time.Minute, parseDuration("", time.Minute))
	require.Equal(t, time.Minute, parseDuration("-1s", time.Minute))
}
