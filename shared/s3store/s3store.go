// Package s3store wraps the AWS S3 client for the project's "exo-nasa"
// bucket: dataset uploads, downloads, and log archival.
package s3store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const DefaultBucket = "exo-nasa"

type Client struct {
	api    *s3.Client
	bucket string
}

// New builds a client from the default AWS credential chain
// (AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY env vars, shared config, ...).
func New(ctx context.Context, region, bucket string) (*Client, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Client{api: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

// NewWithAPI is used by tests to inject a fake S3 API.
func NewWithAPI(api *s3.Client, bucket string) *Client {
	return &Client{api: api, bucket: bucket}
}

func (c *Client) Bucket() string {
	return c.bucket
}

// Upload stores a local file under key. An empty key defaults to the file's
// base name, matching the behavior of the original upload script.
func (c *Client) Upload(ctx context.Context, localPath, key string) error {
	if key == "" {
		key = filepath.Base(localPath)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	slog.InfoContext(ctx, "s3 upload started", "file", localPath, "bucket", c.bucket, "key", key)

	_, err = c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", c.bucket, key, err)
	}

	slog.InfoContext(ctx, "s3 upload complete", "bucket", c.bucket, "key", key)
	return nil
}

// Download fetches an object into localPath, creating parent directories.
func (c *Client) Download(ctx context.Context, key, localPath string) error {
	slog.InfoContext(ctx, "s3 download started", "bucket", c.bucket, "key", key, "file", localPath)

	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("get s3://%s/%s: %w", c.bucket, key, err)
	}
	defer out.Body.Close()

	if dir := filepath.Dir(localPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", localPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, out.Body); err != nil {
		return fmt.Errorf("write %s: %w", localPath, err)
	}

	slog.InfoContext(ctx, "s3 download complete", "bucket", c.bucket, "key", key)
	return nil
}

// SaveLog archives a text payload under a timestamped key beneath prefix,
// e.g. logs/app/app_20251005_143000.log. Returns the object key.
func (c *Client) SaveLog(ctx context.Context, data, prefix string) (string, error) {
	if prefix == "" {
		prefix = "logs/app"
	}
	stamp := time.Now().UTC().Format("20060102_150405")
	key := fmt.Sprintf("%s/%s_%s.log", prefix, filepath.Base(prefix), stamp)

	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(data),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return "", fmt.Errorf("put log s3://%s/%s: %w", c.bucket, key, err)
	}

	slog.InfoContext(ctx, "log archived", "bucket", c.bucket, "key", key)
	return key, nil
}
