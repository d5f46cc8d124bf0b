package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/TheClimateCorporation/S3DistVersions/pkg/objectstore"
)

// Reducers controls the fan-out width of each of the pipeline's two
// shuffles. Spec.md ties these to cluster-size-relative multipliers; the
// orchestrator only needs the resolved counts.
type Reducers struct {
	Prefix  int // reducers for the prefix-listing shuffle
	Version int // reducers for the key-selection shuffle
}

// Orchestrator drives the four stages of spec.md §4 as a sequence of units
// run to completion, per spec.md §4.6: "Each unit is run to completion
// before the next begins." It never interleaves listing with selection, so
// the Selector always sees every version of every key in one unit.
type Orchestrator struct {
	Store       objectstore.Store
	Config      RestoreConfig
	Reducers    Reducers
	Restorer    Restorer
	PageSize    int32 // forwarded to the Lister/VersionPager; <= 0 falls back to the 1000-key cap
	Concurrency int   // restoreAll's worker pool width; <= 0 defaults to 16
	OnVersion   func(key string, v VersionRecord) // called for every selected target version
	OnAction    func(key string, a Action)         // called for every non-noop applied action
}

// Result summarizes one run: its key counts and every per-record failure
// captured along the way (spec.md §7: a run can finish
// with a non-empty failure set and still be considered partially
// successful, as long as no fatal error occurred).
type Result struct {
	KeysSelected int
	KeysRestored int
	Failures     []*StageError
}

// Run executes list → shuffle → select → restore for the given prefixes.
// It returns on the first fatal error (spec.md §7: usage, configuration, or
// permanent store errors abort the run); per-key failures are accumulated
// into Result.Failures instead.
func (o Orchestrator) Run(ctx context.Context, prefixes []string) (Result, error) {
	var res Result

	reshuffled, selErrc := o.selectAll(ctx, prefixes)
	restoreErrc := o.restoreAll(ctx, reshuffled, &res)

	for _, c := range []<-chan error{selErrc, restoreErrc} {
		if err := drainFatal(c, &res); err != nil {
			return res, err
		}
	}

	return res, nil
}

// SelectOnly runs stages 1–3 (list, prefix shuffle, select, version
// shuffle) without restoring anything, reporting every selected target
// version via o.OnVersion. It backs the listversions subcommand, which
// produces a "versions" report for a later, separate apply step (spec.md
// §4.6).
func (o Orchestrator) SelectOnly(ctx context.Context, prefixes []string) (Result, error) {
	var res Result

	reshuffled, selErrc := o.selectAll(ctx, prefixes)
	for rec := range reshuffled {
		v, err := decodeVersionRecord(rec.Value)
		if err != nil {
			return res, fmt.Errorf("decoding selected version: %w", err)
		}
		res.KeysSelected++
		if o.OnVersion != nil {
			o.OnVersion(rec.Key, v)
		}
	}

	if err := drainFatal(selErrc, &res); err != nil {
		return res, err
	}
	return res, nil
}

// ApplyOnly runs stage 4 against a set of already-selected target versions
// (typically loaded from a "versions" report via ReadVersions), skipping
// listing and selection entirely. It backs the apply subcommand's
// list-then-apply split (spec.md §4.6).
func (o Orchestrator) ApplyOnly(ctx context.Context, versions map[string]VersionRecord) (Result, error) {
	var res Result

	in := make(chan Record, 256)
	go func() {
		defer close(in)
		for key, v := range versions {
			select {
			case in <- Record{Key: key, Value: encodeVersionRecord(v)}:
			case <-ctx.Done():
				return
			}
		}
	}()

	restoreErrc := o.restoreAll(ctx, in, &res)
	if err := drainFatal(restoreErrc, &res); err != nil {
		return res, err
	}
	return res, nil
}

// selectAll runs stages 1–3 and returns the fully-selected, re-shuffled
// target-version stream plus its error channel.
func (o Orchestrator) selectAll(ctx context.Context, prefixes []string) (<-chan Record, <-chan error) {
	merged, errc := o.listAllPrefixes(ctx, prefixes)
	shuffled := Shuffle{Reducers: o.Reducers.Prefix}.Run(ctx, merged)

	selected, selErrc := (Selector{RestoreTime: o.Config.RestoreTime}).Run(ctx, shuffled)

	// The version-selection shuffle (Reducers.Version: 1x the worker count,
	// so 4 under the default tunables; a count below 1 falls back to 1) exists to let a multi-process deployment balance
	// restore work across workers; single-process runs still pass through
	// it so behavior does not change with topology.
	reshuffled := Shuffle{Reducers: maxInt(o.Reducers.Version, 1)}.Run(ctx, selected)

	merged2 := mergeErrors(errc, selErrc)
	return reshuffled, merged2
}

// mergeErrors fans two error channels into one, closing the output once
// both inputs are closed.
func mergeErrors(a, b <-chan error) <-chan error {
	out := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	for _, c := range []<-chan error{a, b} {
		c := c
		go func() {
			defer wg.Done()
			for err := range c {
				out <- err
			}
		}()
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// listAllPrefixes fans out one Lister unit per prefix, draining each to
// completion and merging their outputs onto a single channel. Every prefix
// gets its own listing goroutine and all of them run concurrently; the
// prefix list is not shuffled before listing. Within one prefix, listing
// is sequential page by page.
func (o Orchestrator) listAllPrefixes(ctx context.Context, prefixes []string) (<-chan Record, <-chan error) {
	out := make(chan Record, 256)
	errc := make(chan error, len(prefixes)+1)

	lister := Lister{Store: o.Store, Config: o.Config, PageSize: o.PageSize}

	go func() {
		defer close(out)
		defer close(errc)

		var wg sync.WaitGroup
		for _, prefix := range prefixes {
			prefix := prefix
			wg.Add(1)
			go func() {
				defer wg.Done()
				recs, lerrc := lister.List(ctx, prefix)
				for {
					select {
					case rec, ok := <-recs:
						if !ok {
							recs = nil
						} else {
							select {
							case out <- rec:
							case <-ctx.Done():
								return
							}
						}
					case err, ok := <-lerrc:
						if ok && err != nil {
							errc <- err
						}
						lerrc = nil
					}
					if recs == nil && lerrc == nil {
						return
					}
				}
			}()
		}
		wg.Wait()
	}()

	return out, errc
}

// restoreAll applies the Restorer to every selected target version
// concurrently, reporting every decoded target via o.OnVersion and every
// successful non-noop action via o.OnAction, and recording non-fatal
// failures into res.Failures.
func (o Orchestrator) restoreAll(ctx context.Context, in <-chan Record, res *Result) <-chan error {
	errc := make(chan error, 1)
	var mu sync.Mutex

	go func() {
		defer close(errc)
		workers := o.Concurrency
		if workers <= 0 {
			workers = 16
		}
		var wg sync.WaitGroup
		sem := make(chan struct{}, workers)

		for rec := range in {
			v, err := decodeVersionRecord(rec.Value)
			if err != nil {
				errc <- &StageError{Kind: KindPermanent, Key: rec.Key, Err: fmt.Errorf("decoding selected version: %w", err)}
				return
			}

			mu.Lock()
			res.KeysSelected++
			mu.Unlock()
			if o.OnVersion != nil {
				o.OnVersion(rec.Key, v)
			}

			key := rec.Key
			sem <- struct{}{}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-sem }()

				action, err := o.Restorer.DecideAndApply(ctx, key, v)
				if err != nil {
					var se *StageError
					if e, ok := err.(*StageError); ok {
						se = e
					} else {
						se = &StageError{Kind: KindTransient, Key: key, Err: err}
					}
					mu.Lock()
					res.Failures = append(res.Failures, se)
					mu.Unlock()
					if se.Fatal() {
						select {
						case errc <- se:
						default:
						}
					}
					return
				}

				mu.Lock()
				res.KeysRestored++
				mu.Unlock()
				if action.Kind != ActionNoop && o.OnAction != nil {
					o.OnAction(key, action)
				}
			}()
		}
		wg.Wait()
	}()

	return errc
}

func drainFatal(c <-chan error, res *Result) error {
	for err := range c {
		if err == nil {
			continue
		}
		if se, ok := err.(*StageError); ok {
			if !se.Fatal() {
				res.Failures = append(res.Failures, se)
				continue
			}
		}
		return err
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
