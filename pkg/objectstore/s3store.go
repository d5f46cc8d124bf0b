package objectstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/cenkalti/backoff/v4"
)

// BackoffConfig controls the retry policy around every S3 call S3Store
// makes. It is a plain struct, not a dependency on internal/runtimeconfig,
// so this package stays usable independent of the CLI's config layer; the
// caller maps its own tunables into this shape.
type BackoffConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxRetries      int
}

func (c BackoffConfig) orDefaults() BackoffConfig {
	if c.InitialInterval <= 0 {
		c.InitialInterval = 500 * time.Millisecond
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 30 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	return c
}

// S3Store is the production Store backed by aws-sdk-go-v2, grounded on the
// teacher's client construction (pkg/s3/replay_list.go's
// config.LoadDefaultConfig + s3.NewFromConfig) and bugfender's
// makeAwsConfigWithEnvExtensions for endpoint overrides used by
// S3-compatible test doubles.
type S3Store struct {
	client  *s3.Client
	backoff func() backoff.BackOff
}

// NewS3Store loads the default AWS config (environment, shared config,
// shared credentials, in that order) and constructs a Store. backoffCfg
// controls the retry policy applied to every call; zero fields are filled
// in by orDefaults (500ms initial interval, 30s max interval, 5 retries).
func NewS3Store(ctx context.Context, backoffCfg BackoffConfig) (*S3Store, error) {
	backoffCfg = backoffCfg.orDefaults()

	optFns := make([]func(*config.LoadOptions) error, 0)
	if endpoint := os.Getenv("AWS_ENDPOINT_URL_S3"); endpoint != "" {
		optFns = append(optFns, config.WithBaseEndpoint(endpoint))
	}
	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return &S3Store{
		client: s3.NewFromConfig(cfg),
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = backoffCfg.InitialInterval
			b.MaxInterval = backoffCfg.MaxInterval
			b.MaxElapsedTime = 0 // bounded by MaxRetries below, not wall clock
			return backoff.WithMaxRetries(b, uint64(backoffCfg.MaxRetries))
		},
	}, nil
}

func toSummaries(bucket string, versions []s3types.ObjectVersion, markers []s3types.DeleteMarkerEntry) []VersionSummary {
	out := make([]VersionSummary, 0, len(versions)+len(markers))
	for _, v := range versions {
		out = append(out, VersionSummary{
			Key:          aws.ToString(v.Key),
			BucketName:   bucket,
			VersionID:    v.VersionId,
			LastModified: v.LastModified,
			DeleteMarker: false,
		})
	}
	for _, d := range markers {
		out = append(out, VersionSummary{
			Key:          aws.ToString(d.Key),
			BucketName:   bucket,
			VersionID:    d.VersionId,
			LastModified: d.LastModified,
			DeleteMarker: true,
		})
	}
	return out
}

func (s *S3Store) listOnce(ctx context.Context, bucket, prefix string, pageSize int32, cursor pageCursor) (*s3.ListObjectVersionsOutput, error) {
	var out *s3.ListObjectVersionsOutput
	op := func() error {
		resp, err := s.client.ListObjectVersions(ctx, &s3.ListObjectVersionsInput{
			Bucket:          aws.String(bucket),
			Prefix:          aws.String(prefix),
			MaxKeys:         aws.Int32(pageSize),
			KeyMarker:       cursor.keyMarker,
			VersionIdMarker: cursor.versionIDMarker,
		})
		if err != nil {
			if IsPermanent(err) {
				return backoff.Permanent(err)
			}
			slog.Debug("retrying list-versions", "bucket", bucket, "prefix", prefix, "error", err)
			return err
		}
		out = resp
		return nil
	}
	if err := backoff.Retry(op, s.backoff()); err != nil {
		return nil, err
	}
	return out, nil
}

// ListVersions issues the first paged list-versions call. Page size is
// capped at 1000 per spec.md §4.2.
func (s *S3Store) ListVersions(ctx context.Context, bucket, prefix string, pageSize int32) (*ListPage, error) {
	if pageSize <= 0 || pageSize > 1000 {
		pageSize = 1000
	}
	return s.listPage(ctx, bucket, prefix, pageSize, pageCursor{})
}

// ListNextBatch resumes listing using the cursor captured in prev.
func (s *S3Store) ListNextBatch(ctx context.Context, bucket, prefix string, prev *ListPage) (*ListPage, error) {
	if !prev.Truncated {
		return nil, fmt.Errorf("ListNextBatch called on a non-truncated page")
	}
	return s.listPage(ctx, bucket, prefix, 1000, prev.cursor)
}

func (s *S3Store) listPage(ctx context.Context, bucket, prefix string, pageSize int32, cursor pageCursor) (*ListPage, error) {
	resp, err := s.listOnce(ctx, bucket, prefix, pageSize, cursor)
	if err != nil {
		return nil, fmt.Errorf("listing object versions in s3://%s/%s: %w", bucket, prefix, err)
	}
	page := &ListPage{
		Summaries: toSummaries(bucket, resp.Versions, resp.DeleteMarkers),
		Truncated: aws.ToBool(resp.IsTruncated),
		cursor: pageCursor{
			keyMarker:       resp.NextKeyMarker,
			versionIDMarker: resp.NextVersionIdMarker,
		},
	}
	return page, nil
}

// CopyObject copies one specific version (or the current version, if
// SrcVersionID is nil) into the destination.
func (s *S3Store) CopyObject(ctx context.Context, in CopyInput) error {
	source := fmt.Sprintf("%s/%s", in.SrcBucket, in.SrcKey)
	if in.SrcVersionID != nil {
		source = fmt.Sprintf("%s?versionId=%s", source, *in.SrcVersionID)
	}
	op := func() error {
		_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:     aws.String(in.DestBucket),
			Key:        aws.String(in.DestKey),
			CopySource: aws.String(source),
		})
		if err != nil && IsPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := backoff.Retry(op, s.backoff()); err != nil {
		return fmt.Errorf("copying %s to s3://%s/%s: %w", source, in.DestBucket, in.DestKey, err)
	}
	return nil
}

// DeleteObject deletes key in bucket. A not-found response is treated as
// success (spec.md §4.5's idempotence requirement).
func (s *S3Store) DeleteObject(ctx context.Context, bucket, key string) error {
	op := func() error {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey" {
			return nil
		}
		if err != nil && IsPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := backoff.Retry(op, s.backoff()); err != nil {
		return fmt.Errorf("deleting s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}
