package pipeline

import (
	"context"
	"sort"
	"time"
)

// Selector is the Version Selector stage (spec.md §4.4). The orchestrator
// runs the listing+shuffle unit to completion before starting this stage
// (spec.md §4.6: "so the Selector sees all versions for its keys"), so
// Selector.Run can simply drain its input channel into a per-key grouping
// before computing target versions — the shuffle upstream only needed to
// preserve the record multiset (spec.md §8's shuffle-faithfulness
// property), not to pre-group by key.
type Selector struct {
	RestoreTime time.Time
}

// Run groups the shuffled version records by key, selects one target
// version per key per spec.md §4.4 steps 1–7, and emits (key, encoded
// target VersionRecord) on the returned channel.
func (s Selector) Run(ctx context.Context, in <-chan Record) (<-chan Record, <-chan error) {
	out := make(chan Record, 256)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		groups := make(map[string][]VersionRecord)
		var order []string // first-seen key order, for deterministic iteration

		for {
			select {
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			case rec, ok := <-in:
				if !ok {
					goto drained
				}
				v, err := decodeVersionRecord(rec.Value)
				if err != nil {
					errc <- &StageError{Kind: KindPermanent, Key: rec.Key, Err: err}
					return
				}
				if _, seen := groups[rec.Key]; !seen {
					order = append(order, rec.Key)
				}
				groups[rec.Key] = append(groups[rec.Key], v)
			}
		}

	drained:
		for _, key := range order {
			target := selectTarget(key, groups[key], s.RestoreTime)
			select {
			case out <- Record{Key: key, Value: encodeVersionRecord(target)}:
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
	}()

	return out, errc
}

// selectTarget implements spec.md §4.4 steps 2–6 for one key's full version
// history.
func selectTarget(key string, versions []VersionRecord, restoreTime time.Time) VersionRecord {
	sorted := make([]VersionRecord, len(versions))
	copy(sorted, versions)

	// Ascending last_modified; ties broken lexicographically on version_id,
	// matching hansmi-s3-object-cleanup's versionSeries ordering
	// (cmp.Or(lastModified, versionID)) — spec.md §9 leaves this tie-break
	// as an open question this implementation resolves explicitly.
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.LastModified.Equal(*b.LastModified) {
			return a.LastModified.Before(*b.LastModified)
		}
		return versionIDLess(a.VersionID, b.VersionID)
	})

	current := sorted[len(sorted)-1]

	var candidate *VersionRecord
	for i := range sorted {
		if !sorted[i].LastModified.After(restoreTime) {
			candidate = &sorted[i]
		}
	}

	var target VersionRecord
	if candidate != nil {
		target = *candidate
	} else {
		target = VersionRecord{
			Key:          key,
			BucketName:   current.BucketName,
			VersionID:    nil,
			LastModified: nil,
			DeleteMarker: true,
		}
	}

	target.IsCurrent = target.Equal(current)
	return target
}

// versionIDLess orders nil before any non-nil id, then lexicographically.
// Real (non-synthesized) records always carry a non-nil VersionID at this
// point; the nil case only guards against a malformed upstream record.
func versionIDLess(a, b *string) bool {
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	return *a < *b
}
