// Package pipeline implements the point-in-time restore dataflow: prefix
// fan-out, paged version listing, hash shuffle, per-key target-version
// selection, and idempotent action application.
package pipeline

import "time"

// VersionRecord is an immutable description of one historical version of
// one key in a versioned bucket.
type VersionRecord struct {
	Key           string     `json:"key"`
	BucketName    string     `json:"bucket_name"`
	VersionID     *string    `json:"version_id"`
	LastModified  *time.Time `json:"last_modified"`
	DeleteMarker  bool       `json:"delete_marker"`
	IsCurrent     bool       `json:"is_current"`
	emissionIndex int        // store-returned order, for stable tie-break
}

// Equal implements the "record equality" spec.md's is_current rule relies
// on: two records denote the same version iff they share a key, version ID
// (or both synthesized) and delete-marker-ness.
func (v VersionRecord) Equal(other VersionRecord) bool {
	if v.Key != other.Key || v.DeleteMarker != other.DeleteMarker {
		return false
	}
	switch {
	case v.VersionID == nil && other.VersionID == nil:
		return true
	case v.VersionID == nil || other.VersionID == nil:
		return false
	default:
		return *v.VersionID == *other.VersionID
	}
}

// IsSynthesized reports whether this record is a tombstone the Selector
// invented because no real version existed at or before the restore time.
func (v VersionRecord) IsSynthesized() bool {
	return v.VersionID == nil && v.DeleteMarker && v.LastModified == nil
}

// RestoreConfig is the immutable configuration for one pipeline run. It is
// constructed once by the CLI layer and passed by value (or via a
// read-only handle) into every worker; nothing in this package ever
// mutates it after construction.
type RestoreConfig struct {
	SrcBucket   string
	SrcPrefix   string
	DestBucket  string
	DestPrefix  string
	RestoreTime time.Time
	Delete      bool
}

// sameDestination reports whether this run writes back into the same
// bucket and prefix it reads from, the condition that makes a current
// version's restore action a no-op.
func (c RestoreConfig) sameDestination() bool {
	return c.SrcBucket == c.DestBucket && c.SrcPrefix == c.DestPrefix
}

// ActionKind enumerates the Restorer's possible side-effecting verbs. Noop
// is never actually emitted onto the "restored" stream; it is suppressed.
type ActionKind string

const (
	ActionCopy   ActionKind = "COPY"
	ActionDelete ActionKind = "DELETE"
	ActionNoop   ActionKind = "NOOP"
)

// Action is the Restorer's output for one key.
type Action struct {
	Kind         ActionKind `json:"kind"`
	Key          string     `json:"key"`
	SrcBucket    string     `json:"src_bucket,omitempty"`
	SrcKey       string     `json:"src_key,omitempty"`
	SrcVersionID *string    `json:"src_version_id,omitempty"`
	DestBucket   string     `json:"dest_bucket,omitempty"`
	DestKey      string     `json:"dest_key,omitempty"`
}
