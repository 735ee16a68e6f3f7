package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/septivank/meter-report-service/internal/export"
	"go.uber.org/zap"
)

// Archiver stores a copy of every generated export
type Archiver interface {
	Archive(ctx context.Context, file *export.File) error
}

// Config holds S3 archive settings
type Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string // S3 compatible endpoint, empty for AWS
	AccessKeyID     string
	SecretAccessKey string
}

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver uploads exports to an S3 bucket
type S3Archiver struct {
	client putObjectAPI
	bucket string
	prefix string
	logger *zap.Logger
}

// New returns an S3Archiver when a bucket is configured, NopArchiver otherwise
func New(ctx context.Context, cfg Config, logger *zap.Logger) (Archiver, error) {
	if cfg.Bucket == "" {
		logger.Info("export archive disabled")
		return NopArchiver{}, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	logger.Info("export archive enabled",
		zap.String("bucket", cfg.Bucket),
		zap.String("prefix", cfg.Prefix),
		zap.String("endpoint", cfg.Endpoint),
	)

	return newS3Archiver(client, cfg.Bucket, cfg.Prefix, logger), nil
}

func newS3Archiver(client putObjectAPI, bucket, prefix string, logger *zap.Logger) *S3Archiver {
	return &S3Archiver{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
	}
}

// Key returns the object key for a file name
func (a *S3Archiver) Key(fileName string) string {
	if a.prefix == "" {
		return fileName
	}
	return path.Join(a.prefix, fileName)
}

// Archive uploads the export
func (a *S3Archiver) Archive(ctx context.Context, file *export.File) error {
	key := a.Key(file.FileName)

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(file.Data),
		ContentType: aws.String(file.ContentType),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}

	a.logger.Debug("export archived",
		zap.String("bucket", a.bucket),
		zap.String("key", key),
		zap.Int("bytes", len(file.Data)),
	)
	return nil
}

// NopArchiver discards exports
type NopArchiver struct{}

func (NopArchiver) Archive(context.Context, *export.File) error { return nil }
