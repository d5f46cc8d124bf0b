package pipeline

import (
	"context"
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"
)

// Record is the shuffle's wire shape: a key and an opaque value. Encoding
// is length-delimited UTF-8 for the key and raw bytes for the value, per
// spec.md §9's "any length-delimited format; the only contract is
// bijectivity of (key, value) round trips".
type Record struct {
	Key   string
	Value []byte
}

// encode produces the bytes hashed to choose a reducer. It does not need to
// be decodable on its own — Record already carries both fields — it only
// has to be a faithful, order-sensitive digest input.
func (r Record) encode() []byte {
	buf := make([]byte, 4+len(r.Key)+len(r.Value))
	binary.BigEndian.PutUint32(buf, uint32(len(r.Key)))
	n := copy(buf[4:], r.Key)
	copy(buf[4+n:], r.Value)
	return buf
}

// Shuffle repartitions an input stream of Records across Reducers buckets
// by hash(key, value), then re-emits every record unchanged on the output
// side, per spec.md §4.3. Reducer count is the parallelism lever against
// the store's per-partition rate limits: spec.md ties it to "3.5x the
// cluster's map-slot count" for prefix shuffles and "1x" for version
// shuffles (see runtimeconfig.ShuffleConfig).
type Shuffle struct {
	Reducers int
}

// Run drains in, partitions by hash into s.Reducers buckets, and returns a
// channel emitting every record exactly once. The multiset of output
// records equals the multiset of input records (spec.md §8's "shuffle
// faithfulness" property) — partitioning changes only ordering and which
// goroutine observes which record, never the record set itself.
func (s Shuffle) Run(ctx context.Context, in <-chan Record) <-chan Record {
	reducers := s.Reducers
	if reducers < 1 {
		reducers = 1
	}

	buckets := make([]chan Record, reducers)
	for i := range buckets {
		buckets[i] = make(chan Record, 64)
	}
	out := make(chan Record, 64)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer func() {
			for _, b := range buckets {
				close(b)
			}
		}()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case rec, ok := <-in:
				if !ok {
					return nil
				}
				idx := bucketFor(rec, reducers)
				select {
				case buckets[idx] <- rec:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
		}
	})

	for _, b := range buckets {
		b := b
		g.Go(func() error {
			for rec := range b {
				select {
				case out <- rec:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(out)
	}()

	return out
}

func bucketFor(rec Record, reducers int) int {
	h := xxhash.Sum64(rec.encode())
	return int(h % uint64(reducers))
}
