package pipeline

import (
	"context"
	"log/slog"

	"github.com/TheClimateCorporation/S3DistVersions/pkg/objectstore"
)

// Restorer is the Restorer stage (spec.md §4.5): for one (key, target
// version) pair, emits at most one side-effecting Action against the
// destination.
type Restorer struct {
	Store  objectstore.Store
	Config RestoreConfig
	// DryRun, when true, makes Apply a no-op regardless of the decided
	// action's kind — Decide still runs in full so callers can report what
	// would have happened (spec.md §4.5's dry-run mode).
	DryRun bool
}

// Decide computes the Action for one target version without performing any
// I/O, implementing the dispatch table in spec.md §4.5. It returns
// (Action{}, err) only for a prefix-mismatch on key; ActionNoop results are
// returned (not nil) so callers can still report them, but Apply never
// sends a Noop to the store.
func (r Restorer) Decide(key string, target VersionRecord) (Action, error) {
	destKey, err := switchPrefixes(r.Config.SrcPrefix, r.Config.DestPrefix, key)
	if err != nil {
		return Action{}, err
	}

	inPlace := r.Config.sameDestination()

	switch {
	case inPlace && target.IsCurrent:
		return Action{Kind: ActionNoop, Key: key}, nil

	case target.DeleteMarker && r.Config.Delete:
		return Action{
			Kind:       ActionDelete,
			Key:        key,
			DestBucket: r.Config.DestBucket,
			DestKey:    destKey,
		}, nil

	case target.DeleteMarker:
		return Action{Kind: ActionNoop, Key: key}, nil

	default:
		return Action{
			Kind:         ActionCopy,
			Key:          key,
			SrcBucket:    r.Config.SrcBucket,
			SrcKey:       key,
			SrcVersionID: target.VersionID,
			DestBucket:   r.Config.DestBucket,
			DestKey:      destKey,
		}, nil
	}
}

// Apply performs the side effect (if any) for one decided Action. It is
// idempotent: a repeated Copy with the same source version id yields the
// same destination content, and a Delete on an already-absent key succeeds
// (spec.md §4.5).
func (r Restorer) Apply(ctx context.Context, a Action) error {
	if r.DryRun {
		return nil
	}
	switch a.Kind {
	case ActionNoop:
		return nil
	case ActionDelete:
		return r.Store.DeleteObject(ctx, a.DestBucket, a.DestKey)
	case ActionCopy:
		return r.Store.CopyObject(ctx, objectstore.CopyInput{
			SrcBucket:    a.SrcBucket,
			SrcKey:       a.SrcKey,
			SrcVersionID: a.SrcVersionID,
			DestBucket:   a.DestBucket,
			DestKey:      a.DestKey,
		})
	default:
		return nil
	}
}

// DecideAndApply combines Decide and Apply, used by the streaming worker
// pool in Orchestrator.restoreAll. Per-key failures are returned as a
// *StageError tagged KindTransient so the orchestrator can collect them
// into Result.Failures without aborting siblings; they are not written to
// the "restored" report — unless the underlying failure is itself credential-level, in
// which case it is tagged KindPermanent via objectstore.IsPermanent so the
// orchestrator aborts the run instead of burning through every remaining
// key against the same bad credentials.
func (r Restorer) DecideAndApply(ctx context.Context, key string, target VersionRecord) (Action, error) {
	action, err := r.Decide(key, target)
	if err != nil {
		return Action{}, err
	}
	if err := r.Apply(ctx, action); err != nil {
		slog.Error("applying action failed", "key", key, "kind", action.Kind, "error", err)
		kind := KindTransient
		if objectstore.IsPermanent(err) {
			kind = KindPermanent
		}
		return action, &StageError{Kind: kind, Key: key, Err: err}
	}
	return action, nil
}
