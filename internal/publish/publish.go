// Package publish uploads the loader's JSON documents to S3 compatible
// object storage.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/onnwee/legvotes/internal/config"
	"github.com/onnwee/legvotes/internal/tracing"
)

const (
	contentTypeJSON = "application/json"
	cacheControl    = "public, max-age=300"
)

// ErrNoBucket is returned when a Publisher is created without a bucket.
var ErrNoBucket = errors.New("bucket name is required")

// ObjectPutter is the part of the S3 client a Publisher needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Publisher uploads documents to one bucket.
type Publisher struct {
	client ObjectPutter
	bucket string
	prefix string
	logger *slog.Logger
}

// NewS3Client creates a path-style S3 client with static credentials, which
// works for AWS as well as R2 and MinIO endpoints.
func NewS3Client(cfg *config.Config) *s3.Client {
	return s3.New(s3.Options{
		Region: cfg.S3Region,
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKeyID,
			cfg.S3SecretAccessKey,
			"",
		)),
		BaseEndpoint: aws.String(cfg.S3Endpoint),
		UsePathStyle: true,
	})
}

// New creates a Publisher. Object keys are placed under prefix when it is
// not empty.
func New(client ObjectPutter, bucket, prefix string, logger *slog.Logger) (*Publisher, error) {
	if bucket == "" {
		return nil, ErrNoBucket
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
	}, nil
}

// Key returns the object key for a file at rel, relative to the published
// directory.
func (p *Publisher) Key(rel string) string {
	key := filepath.ToSlash(rel)
	if p.prefix == "" {
		return key
	}
	return path.Join(p.prefix, key)
}

// PublishDir uploads every .json file under dir and returns how many were
// uploaded. It stops at the first failed upload.
func (p *Publisher) PublishDir(ctx context.Context, dir string) (n int, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "publish.dir")
	defer func() { endSpan(err) }()

	err = filepath.WalkDir(dir, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(name) != ".json" {
			return nil
		}
		rel, err := filepath.Rel(dir, name)
		if err != nil {
			return err
		}
		if err := p.putFile(ctx, name, p.Key(rel)); err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		return n, err
	}

	p.logger.Info("published documents",
		slog.String("bucket", p.bucket),
		slog.String("prefix", p.prefix),
		slog.Int("count", n))
	return n, nil
}

func (p *Publisher) putFile(ctx context.Context, name, key string) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentType:   aws.String(contentTypeJSON),
		ContentLength: aws.Int64(info.Size()),
		CacheControl:  aws.String(cacheControl),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	p.logger.Debug("uploaded object", slog.String("key", key), slog.Int64("size", info.Size()))
	return nil
}
