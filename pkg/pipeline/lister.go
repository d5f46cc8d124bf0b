package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/TheClimateCorporation/S3DistVersions/pkg/objectstore"
)

// Lister is the Version Lister stage (spec.md §4.2): for one input prefix,
// issues paged list-versions calls against src_bucket under the
// concatenated prefix src_prefix⊕P, and emits one shuffle Record per
// summary encountered.
type Lister struct {
	Store    objectstore.Store
	Config   RestoreConfig
	PageSize int32 // forwarded to objectstore.NewVersionPager; <= 0 falls back to the 1000-key cap
}

// List emits (key, encoded VersionRecord) for every version and delete
// marker under bucket/fullPrefix. It terminates the output channel when
// listing is exhausted. Transient errors are retried inside the Store; any
// error that still reaches the pager (a permanent one such as authorization
// or a missing bucket, or a transient one whose retries ran out) is sent on
// the returned error channel as a KindPermanent StageError and listing
// stops.
func (l Lister) List(ctx context.Context, prefix string) (<-chan Record, <-chan error) {
	out := make(chan Record, 256)
	errc := make(chan error, 1)

	fullPrefix := l.Config.SrcPrefix + prefix

	go func() {
		defer close(out)
		defer close(errc)

		pager := objectstore.NewVersionPager(l.Store, l.Config.SrcBucket, fullPrefix, l.PageSize)
		for {
			summary, idx, ok, err := pager.Next(ctx)
			if err != nil {
				slog.Error("listing versions failed", "bucket", l.Config.SrcBucket, "prefix", fullPrefix, "error", err)
				errc <- &StageError{Kind: KindPermanent, Err: fmt.Errorf("listing s3://%s/%s: %w", l.Config.SrcBucket, fullPrefix, err)}
				return
			}
			if !ok {
				return
			}

			rec := VersionRecord{
				Key:           summary.Key,
				BucketName:    summary.BucketName,
				VersionID:     summary.VersionID,
				LastModified:  summary.LastModified,
				DeleteMarker:  summary.DeleteMarker,
				emissionIndex: idx,
			}
			value := encodeVersionRecord(rec)

			select {
			case out <- Record{Key: rec.Key, Value: value}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, errc
}
