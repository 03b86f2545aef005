package media

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/koios/matrx-widgets/internal/config"
)

// S3Backend uploads library files to a bucket fronted by LIBRARY_BASE_URL
type S3Backend struct {
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewS3Backend loads the shared AWS configuration and creates an uploader
func NewS3Backend(ctx context.Context, cfg config.LibraryConfig) (*S3Backend, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("no s3 bucket provided in LIBRARY_S3_BUCKET")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.AWSProfile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.AWSProfile))
	}

	ctxCfg, cancelCfg := context.WithTimeout(ctx, 3*time.Second)
	awsCfg, err := awsconfig.LoadDefaultConfig(ctxCfg, opts...)
	cancelCfg()
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)

	return &S3Backend{
		uploader: manager.NewUploader(client),
		bucket:   cfg.S3Bucket,
		prefix:   cfg.S3Prefix,
	}, nil
}

// ObjectKey is the bucket key a library name is uploaded to
func (b *S3Backend) ObjectKey(name string) string {
	return path.Join(b.prefix, name)
}

func (b *S3Backend) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	key := b.ObjectKey(name)

	input := &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   r,
	}
	if contentType := mime.TypeByExtension(path.Ext(name)); contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := b.uploader.Upload(ctx, input); err != nil {
		return "", fmt.Errorf("unable to upload object to s3, %s, %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", b.bucket, key), nil
}
