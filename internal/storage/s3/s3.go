// Package s3 implements storage.ContentStore on AWS S3 or an S3-compatible
// service such as MinIO. PutObject is already atomic per key, so the
// temp-and-rename dance of the filesystem store is not needed here.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/jchook/retrace/internal/config"
	"github.com/jchook/retrace/internal/observability"
	"github.com/jchook/retrace/internal/storage"
)

// Store implements storage.ContentStore backed by an S3 bucket.
type Store struct {
	client  *awss3.Client
	bucket  string
	logger  observability.Logger
	metrics observability.Metrics
}

// NewStore creates an S3 content store and verifies the bucket is reachable.
func NewStore(cfg *config.S3Config, logger observability.Logger, metrics observability.Metrics) (*Store, error) {
	awsCfg, err := buildAWSConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})

	s := &Store{
		client:  client,
		bucket:  cfg.Bucket,
		logger:  logger.WithFields(map[string]interface{}{"component": "s3_store"}),
		metrics: metrics.WithTags(map[string]string{"storage": "s3"}),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := client.HeadBucket(ctx, &awss3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		logger.Error("failed to verify bucket", "bucket", cfg.Bucket, "error", err)
		return nil, fmt.Errorf("failed to verify bucket %s: %w", cfg.Bucket, err)
	}

	logger.Info("S3 content store initialized", "bucket", cfg.Bucket, "region", cfg.Region)
	return s, nil
}

// EnsureDir is a no-op: S3 keys are flat and need no directories.
func (s *Store) EnsureDir(ctx context.Context, dir string) error {
	return nil
}

func (s *Store) Write(ctx context.Context, key string, r io.Reader) (storage.WriteResult, error) {
	start := time.Now()
	s.metrics.IncrementCounter("storage.write.attempts", nil)

	// Hash while buffering; nothing is sent to S3 if the source fails,
	// so the final key is never partially written.
	buf := &bytes.Buffer{}
	hw := storage.NewHashingWriter(buf)
	if _, err := io.Copy(hw, r); err != nil {
		s.metrics.IncrementCounter("storage.write.errors", map[string]string{"error": "read"})
		return storage.WriteResult{}, fmt.Errorf("failed to read content for %s: %w", key, err)
	}

	_, err := s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(buf.Bytes()),
	})
	if err != nil {
		s.logger.Error("failed to put object", "key", key, "error", err)
		s.metrics.IncrementCounter("storage.write.errors", map[string]string{"error": "put"})
		return storage.WriteResult{}, fmt.Errorf("failed to put object %s: %w", key, err)
	}

	result := storage.WriteResult{
		BytesWritten: hw.BytesWritten(),
		Checksum:     hw.Sum(),
	}

	duration := time.Since(start)
	s.logger.Info("object stored",
		"key", key,
		"bytes", result.BytesWritten,
		"duration_ms", duration.Milliseconds())
	s.metrics.IncrementCounter("storage.write.success", nil)
	s.metrics.RecordHistogram("storage.write.bytes", float64(result.BytesWritten), nil)

	return result, nil
}

func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("object not found: %s", key)
		}
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	return out.Body, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *s3types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to head object %s: %w", key, err)
	}
	return true, nil
}

func buildAWSConfig(cfg *config.S3Config) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	return awsconfig.LoadDefaultConfig(context.Background(), opts...)
}
