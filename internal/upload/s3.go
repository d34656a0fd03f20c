package upload

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/clipr/internal/errs"
)

const (
	s3PartSize    = 16 * 1024 * 1024
	s3Concurrency = 4
)

// ObjectPutter is the part of the manager uploader S3 needs.
type ObjectPutter interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type S3 struct {
	Bucket   string
	Prefix   string
	uploader ObjectPutter
}

// NewS3 loads credentials from the shared AWS config. profile falls back to
// AWS_PROFILE, then "default".
func NewS3(ctx context.Context, bucket, prefix, profile, region string) (*S3, error) {
	const op = "upload/s3"
	if bucket == "" {
		return nil, errs.Errorf(errs.InvalidInput, op, "an s3 bucket is required")
	}
	if profile == "" {
		profile = os.Getenv("AWS_PROFILE")
	}
	if profile == "" {
		profile = "default"
	}
	opts := []func(*config.LoadOptions) error{
		config.WithSharedConfigProfile(profile),
		config.WithRetryMode("adaptive"),
	}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errs.E(errs.DependencyMissing, op, fmt.Errorf("error loading AWS config: %w", err))
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.DisableLogOutputChecksumValidationSkipped = true
	})
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = s3PartSize
		u.Concurrency = s3Concurrency
	})
	return NewS3WithUploader(bucket, prefix, uploader), nil
}

func NewS3WithUploader(bucket, prefix string, uploader ObjectPutter) *S3 {
	return &S3{Bucket: bucket, Prefix: strings.Trim(prefix, "/"), uploader: uploader}
}

func (u *S3) Target() string { return TargetS3 }

func (u *S3) Key(file string) string {
	return path.Join(u.Prefix, filepath.Base(file))
}

func (u *S3) Upload(ctx context.Context, file string) (Result, error) {
	const op = "upload/s3"
	size, err := stat(op, file, 0)
	if err != nil {
		return Result{}, err
	}
	f, err := os.Open(file)
	if err != nil {
		return Result{}, errs.E(errs.InvalidInput, op, err)
	}
	defer f.Close()
	key := u.Key(file)
	log.Debug().Str("op", op).Msgf("uploading %s to s3://%s/%s", file, u.Bucket, key)
	out, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.Bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return Result{}, errs.E(errs.TransientToolFailure, op, fmt.Errorf("error uploading to s3://%s/%s: %w", u.Bucket, key, err))
	}
	location := fmt.Sprintf("s3://%s/%s", u.Bucket, key)
	if out != nil && out.Location != "" {
		location = out.Location
	}
	return newResult(file, location, TargetS3, size), nil
}
