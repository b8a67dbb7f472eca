package docsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/uvdose/uvdose/internal/config"
)

// MaxDocumentSize bounds a downloaded specification document.
const MaxDocumentSize = 32 << 20

// ErrTooLarge is returned when a remote document exceeds MaxDocumentSize.
var ErrTooLarge = errors.New("docsource: document exceeds size limit")

// GetObjectAPI is the subset of *s3.Client used here.
type GetObjectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ParseS3URL splits s3://bucket/key. ok is false for anything else.
func ParseS3URL(src string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(src, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return "", "", false
	}
	return bucket, key, true
}

// NewClient builds an S3 client from cfg. optFns are passed to
// LoadDefaultConfig after the region.
func NewClient(ctx context.Context, cfg config.S3Config, optFns ...func(*awsconfig.LoadOptions) error) (*s3.Client, error) {
	region := cfg.Region
	if region == "" {
		region = config.DefaultS3Region
	}
	loadOpts := append([]func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}, optFns...)
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("docsource: aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// Resolve returns a local path to the specification document named by
// cfg.Source. Local paths are returned unchanged; s3:// sources are
// downloaded into cfg.CacheDir with a client built by NewClient.
func Resolve(ctx context.Context, cfg config.SpecificationConfig) (string, error) {
	bucket, key, ok := ParseS3URL(cfg.Source)
	if !ok {
		if strings.HasPrefix(cfg.Source, "s3://") {
			return "", fmt.Errorf("docsource: malformed s3 url %q", cfg.Source)
		}
		return cfg.Source, nil
	}
	client, err := NewClient(ctx, cfg.S3)
	if err != nil {
		return "", err
	}
	return Download(ctx, client, bucket, key, cfg.CacheDir)
}

// Download fetches bucket/key into dir (the OS temp dir when empty) and
// returns the written path. The file is replaced atomically.
func Download(ctx context.Context, client GetObjectAPI, bucket, key, dir string) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("docsource: cache dir: %w", err)
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return "", fmt.Errorf("docsource: get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	tmp, err := os.CreateTemp(dir, ".spec-*")
	if err != nil {
		return "", fmt.Errorf("docsource: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	n, err := io.Copy(tmp, io.LimitReader(out.Body, MaxDocumentSize+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("docsource: read s3://%s/%s: %w", bucket, key, err)
	}
	if n > MaxDocumentSize {
		return "", fmt.Errorf("%w: s3://%s/%s", ErrTooLarge, bucket, key)
	}

	dst := filepath.Join(dir, path.Base(key))
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("docsource: %w", err)
	}
	slog.Info("docsource: downloaded specification", "source", "s3://"+bucket+"/"+key, "path", dst, "bytes", n)
	return dst, nil
}
