// Package objectstore wraps the versioned object-store API the pipeline
// consumes (spec.md §6): paged list-versions, copy-object, delete-object.
// The pipeline package only ever depends on the interfaces here, never on
// the AWS SDK directly.
package objectstore

import (
	"context"
	"time"
)

// VersionSummary is one entry the store returns from a list-versions call:
// either a real version or a delete marker.
type VersionSummary struct {
	Key          string
	BucketName   string
	VersionID    *string
	LastModified *time.Time
	DeleteMarker bool
}

// ListPage is the shape spec.md §6 assigns to both list_versions and
// list_next_batch_of_versions: a batch of summaries, whether more pages
// remain, and an opaque cursor to resume from.
type ListPage struct {
	Summaries []VersionSummary
	Truncated bool
	cursor    pageCursor
}

// pageCursor carries whatever state the concrete store needs to resume
// listing; it is opaque to callers, matching spec.md §6's "previous
// response" contract for list_next_batch_of_versions.
type pageCursor struct {
	keyMarker       *string
	versionIDMarker *string
}

// CopyInput names a copy-object request: source bucket/key/optional version
// id, and destination bucket/key.
type CopyInput struct {
	SrcBucket    string
	SrcKey       string
	SrcVersionID *string
	DestBucket   string
	DestKey      string
}

// Store is the object-store API surface the pipeline needs: paged version
// listing plus the two mutating operations the Restorer dispatches.
type Store interface {
	// ListVersions issues the first list-versions call for bucket/prefix,
	// with no delimiter and the given page size (spec.md §4.2 caps this at
	// 1000).
	ListVersions(ctx context.Context, bucket, prefix string, pageSize int32) (*ListPage, error)

	// ListNextBatch resumes listing from a previously-returned page. Callers
	// must not call this once prev.Truncated is false.
	ListNextBatch(ctx context.Context, bucket, prefix string, prev *ListPage) (*ListPage, error)

	// CopyObject copies one specific version of src into dest.
	CopyObject(ctx context.Context, in CopyInput) error

	// DeleteObject deletes a key in bucket. Deleting an absent key must not
	// be treated as an error by the caller (spec.md §4.5's idempotence
	// requirement) — implementations return nil for a not-found delete.
	DeleteObject(ctx context.Context, bucket, key string) error
}
