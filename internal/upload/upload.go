// Package upload sends finished files to a remote host and reports where
// they ended up.
package upload

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/tanq16/clipr/internal/errs"
)

const (
	TargetCatbox = "catbox"
	TargetS3     = "s3"
)

// Result describes one successful upload.
type Result struct {
	ID      string
	File    string
	URL     string
	Target  string
	Size    int64
	Created time.Time
}

type Uploader interface {
	Target() string
	Upload(ctx context.Context, path string) (Result, error)
}

// Settings selects and configures an Uploader.
type Settings struct {
	Target   string `yaml:"target"`
	UserHash string `yaml:"catbox_userhash"`
	Bucket   string `yaml:"s3_bucket"`
	Prefix   string `yaml:"s3_prefix"`
	Profile  string `yaml:"s3_profile"`
	Region   string `yaml:"s3_region"`
}

// New builds the uploader named by s.Target; an empty target means catbox.
func New(ctx context.Context, s Settings) (Uploader, error) {
	switch s.Target {
	case "", TargetCatbox:
		return NewCatbox(s.UserHash, nil), nil
	case TargetS3:
		return NewS3(ctx, s.Bucket, s.Prefix, s.Profile, s.Region)
	}
	return nil, errs.Errorf(errs.InvalidInput, "upload/new", "unknown upload target %q", s.Target)
}

// stat checks that path is a regular file no larger than limit (0 for no
// limit) and returns its size.
func stat(op, path string, limit int64) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, errs.E(errs.InvalidInput, op, fmt.Errorf("error reading %s: %w", path, err))
	}
	if !info.Mode().IsRegular() {
		return 0, errs.Errorf(errs.InvalidInput, op, "%s is not a regular file", path)
	}
	if limit > 0 && info.Size() > limit {
		return 0, errs.Errorf(errs.InvalidInput, op, "%s is %d bytes, over the %d byte limit", path, info.Size(), limit)
	}
	return info.Size(), nil
}

func newResult(path, url, target string, size int64) Result {
	return Result{
		ID:      uuid.New().String(),
		File:    path,
		URL:     url,
		Target:  target,
		Size:    size,
		Created: time.Now(),
	}
}
