package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sifan077/PowerImage/config"
	"github.com/stretchr/testify/require"
)

func offlineClient() *s3.Client {
	return s3.New(s3.Options{
		Region:      "eu-central-1",
		Credentials: credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", ""),
	})
}

func TestS3Thumbnails_PresignsSizedKey(t *testing.T) {
	g := NewS3Thumbnails(offlineClient(), "thumbs", time.Minute)

	url, err := g.Generate(context.Background(), "media/1/original/a.jpg", 200)
	require.NoError(t, err)
	require.Contains(t, url, "thumbs")
	require.Contains(t, url, "a.jpg")
	require.True(t, strings.Contains(url, "@200") || strings.Contains(url, "%40200"), url)
	require.Contains(t, url, "X-Amz-Signature=")
}

func TestS3Storage_ObjectKeyAndURL(t *testing.T) {
	s := NewS3Storage(offlineClient(), "originals", "media", time.Minute)
	require.Equal(t, "media/1/original/a.jpg", s.ObjectKey("1/original/a.jpg"))

	url, err := s.URL(context.Background(), "1/original/a.jpg")
	require.NoError(t, err)
	require.Contains(t, url, "media/1/original/a.jpg")
	require.Contains(t, url, "X-Amz-Expires=60")
}

func TestPresignTTL(t *testing.T) {
	require.Equal(t, 5*time.Minute, PresignTTL(config.S3Config{PresignTTL: "5m"}))
	require.Equal(t, defaultPresignTTL, PresignTTL(config.S3Config{PresignTTL: "bogus"}))
}
