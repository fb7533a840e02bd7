// Package s3 provides an uploads transport backed by an S3-compatible bucket.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/fruitsalade/uploadsfs/internal/logging"
	"github.com/fruitsalade/uploadsfs/internal/metrics"
	"github.com/fruitsalade/uploadsfs/internal/storage/lines"
)

// Config holds S3 transport settings.
type Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string

	// KeyPrefix is prepended to every object key.
	KeyPrefix string
	// StripPrefix is removed from absolute paths to form keys, normally
	// the uploads root.
	StripPrefix string
}

// Transport implements storage.Transport using S3/MinIO.
type Transport struct {
	client      *s3.Client
	bucket      string
	keyPrefix   string
	stripPrefix string
}

// New creates a new S3 transport.
func New(ctx context.Context, cfg Config) (*Transport, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
			// S3-compatible stores often reject streaming checksums.
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		}
	})

	return &Transport{
		client:      client,
		bucket:      cfg.Bucket,
		keyPrefix:   strings.Trim(cfg.KeyPrefix, "/"),
		stripPrefix: strings.TrimRight(cfg.StripPrefix, "/"),
	}, nil
}

func (t *Transport) key(p string) string {
	k := strings.TrimLeft(strings.TrimPrefix(p, t.stripPrefix), "/")
	if t.keyPrefix == "" {
		return k
	}
	return path.Join(t.keyPrefix, k)
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	if errors.As(err, &nf) || errors.As(err, &nsk) {
		return true
	}
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}

// GetContents downloads an object.
func (t *Transport) GetContents(ctx context.Context, p string) ([]byte, error) {
	start := time.Now()
	key := t.key(p)

	out, err := t.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		metrics.RecordS3Operation("get_object", time.Since(start), false)
		if isNotFound(err) {
			return nil, fmt.Errorf("get object %s: %w", key, os.ErrNotExist)
		}
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	metrics.RecordS3Operation("get_object", time.Since(start), err == nil)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return data, nil
}

// GetContentsArray downloads an object as lines.
func (t *Transport) GetContentsArray(ctx context.Context, p string) ([]string, error) {
	data, err := t.GetContents(ctx, p)
	if err != nil {
		return nil, err
	}
	return lines.Split(data), nil
}

// PutContents uploads an object. mode is ignored.
func (t *Transport) PutContents(ctx context.Context, p string, contents []byte, _ os.FileMode) error {
	start := time.Now()
	key := t.key(p)

	input := &s3.PutObjectInput{
		Bucket:        aws.String(t.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(contents),
		ContentLength: aws.Int64(int64(len(contents))),
	}
	if ct := mime.TypeByExtension(filepath.Ext(p)); ct != "" {
		input.ContentType = aws.String(ct)
	}

	if _, err := t.client.PutObject(ctx, input); err != nil {
		metrics.RecordS3Operation("put_object", time.Since(start), false)
		return fmt.Errorf("put object %s: %w", key, err)
	}

	metrics.RecordS3Operation("put_object", time.Since(start), true)
	logging.Debug("S3 put object", zap.String("key", key), zap.Int("size", len(contents)))
	return nil
}

// Delete removes an object.
func (t *Transport) Delete(ctx context.Context, p string) error {
	start := time.Now()
	key := t.key(p)

	_, err := t.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		metrics.RecordS3Operation("delete_object", time.Since(start), false)
		return fmt.Errorf("delete object %s: %w", key, err)
	}

	metrics.RecordS3Operation("delete_object", time.Since(start), true)
	logging.Debug("S3 delete object", zap.String("key", key))
	return nil
}

func (t *Transport) head(ctx context.Context, p string) (*s3.HeadObjectOutput, error) {
	start := time.Now()
	out, err := t.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(t.key(p)),
	})
	metrics.RecordS3Operation("head_object", time.Since(start), err == nil || isNotFound(err))
	return out, err
}

// Size returns the object's content length.
func (t *Transport) Size(ctx context.Context, p string) (int64, error) {
	out, err := t.head(ctx, p)
	if err != nil {
		if isNotFound(err) {
			return 0, fmt.Errorf("head object %s: %w", t.key(p), os.ErrNotExist)
		}
		return 0, fmt.Errorf("head object %s: %w", t.key(p), err)
	}
	return aws.ToInt64(out.ContentLength), nil
}

// Exists checks if an object exists.
func (t *Transport) Exists(ctx context.Context, p string) (bool, error) {
	if _, err := t.head(ctx, p); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("head object %s: %w", t.key(p), err)
	}
	return true, nil
}

func (t *Transport) IsFile(ctx context.Context, p string) (bool, error) {
	return t.Exists(ctx, p)
}

// IsDir is always false: buckets have no directories.
func (t *Transport) IsDir(context.Context, string) (bool, error) {
	return false, nil
}

func (t *Transport) IsReadable(ctx context.Context, p string) (bool, error) {
	return t.Exists(ctx, p)
}

func (t *Transport) IsWritable(context.Context, string) (bool, error) {
	return true, nil
}

// Type returns "s3".
func (t *Transport) Type() string { return "s3" }
