package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sifan077/PowerImage/config"
)

const defaultPresignTTL = 15 * time.Minute

// NewS3Client builds an S3 client from application config. Static keys are
// used when provided; otherwise the default AWS credential chain applies.
func NewS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// PresignTTL parses cfg.PresignTTL, falling back to 15 minutes.
func PresignTTL(cfg config.S3Config) time.Duration {
	if d, err := time.ParseDuration(cfg.PresignTTL); err == nil && d > 0 {
		return d
	}
	return defaultPresignTTL
}

// S3Storage stores originals in a bucket under an optional key prefix.
type S3Storage struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	prefix    string
	ttl       time.Duration
}

// NewS3Storage returns an S3-backed Storage.
func NewS3Storage(client *s3.Client, bucket, prefix string, presignTTL time.Duration) *S3Storage {
	return &S3Storage{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
		prefix:    prefix,
		ttl:       presignTTL,
	}
}

func (s *S3Storage) ObjectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

func (s *S3Storage) Save(ctx context.Context, key string, r io.Reader, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.ObjectKey(key)),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("storage: put %s: %w", key, err)
	}
	return nil
}

func (s *S3Storage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.ObjectKey(key)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("storage: get %s: %w", key, err)
	}
	return out.Body, nil
}

func (s *S3Storage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.ObjectKey(key)),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, fmt.Errorf("storage: head %s: %w", key, err)
	}
	return true, nil
}

func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.ObjectKey(key)),
	})
	if err != nil {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

func (s *S3Storage) URL(ctx context.Context, key string) (string, error) {
	return presignGet(ctx, s.presigner, s.bucket, s.ObjectKey(key), s.ttl)
}

// S3Thumbnails presigns GETs for "<key>@<height>" objects on the thumbnail
// bucket or access point, where a resize function produces them on demand.
type S3Thumbnails struct {
	presigner *s3.PresignClient
	bucket    string
	ttl       time.Duration
}

// NewS3Thumbnails returns a ThumbnailURLGenerator for bucket.
func NewS3Thumbnails(client *s3.Client, bucket string, presignTTL time.Duration) *S3Thumbnails {
	return &S3Thumbnails{
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
		ttl:       presignTTL,
	}
}

func (g *S3Thumbnails) Generate(ctx context.Context, storageKey string, height int) (string, error) {
	return presignGet(ctx, g.presigner, g.bucket, ThumbnailKey(storageKey, height), g.ttl)
}

func presignGet(ctx context.Context, p *s3.PresignClient, bucket, key string, ttl time.Duration) (string, error) {
	req, err := p.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("storage: presign %s: %w", key, err)
	}
	return req.URL, nil
}
