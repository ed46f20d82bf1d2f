package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Uploader persists staged artifacts in durable object storage and
// returns the remote URI the loader will read from.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// UploadError wraps object storage failures so the pipeline can attribute
// them to the upload stage.
type UploadError struct {
	Path string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("failed to upload %s: %v", e.Path, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// S3Uploader uploads staged files to S3 using multipart uploads, which
// survive retries of individual parts on flaky links.
type S3Uploader struct {
	uploader *manager.Uploader
	bucket   string
	prefix   string
	logger   *slog.Logger
}

// S3Config configures the uploader destination.
type S3Config struct {
	Bucket string
	Prefix string
	Region string
}

// NewS3Uploader builds an uploader from the default AWS credential chain.
func NewS3Uploader(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3Uploader, error) {
	region := cfg.Region
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	if logger == nil {
		logger = slog.Default()
	}

	return &S3Uploader{
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
		logger:   logger,
	}, nil
}

// Upload implements Uploader. The object key keeps the staging layout's
// ingest_date partition directory so the bucket stays queryable by date.
func (u *S3Uploader) Upload(ctx context.Context, localPath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", &UploadError{Path: localPath, Err: err}
	}
	defer file.Close()

	key := u.objectKey(localPath)
	u.logger.Info("uploading artifact",
		slog.String("path", localPath),
		slog.String("bucket", u.bucket),
		slog.String("key", key))

	_, err = u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   file,
	})
	if err != nil {
		return "", &UploadError{Path: localPath, Err: err}
	}

	uri := fmt.Sprintf("s3://%s/%s", u.bucket, key)
	u.logger.Info("upload complete", slog.String("uri", uri))
	return uri, nil
}

func (u *S3Uploader) objectKey(localPath string) string {
	partition := filepath.Base(filepath.Dir(localPath))
	name := filepath.Base(localPath)

	key := path.Join(partition, name)
	if u.prefix != "" {
		key = path.Join(u.prefix, key)
	}
	return key
}

var _ Uploader = (*S3Uploader)(nil)
