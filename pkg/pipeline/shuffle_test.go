package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketFor_MatchesHashModReducers(t *testing.T) {
	rec := Record{Key: "path/to/key", Value: []byte("payload")}

	for _, reducers := range []int{1, 4, 7} {
		want := int(xxhash.Sum64(rec.encode()) % uint64(reducers))
		assert.Equal(t, want, bucketFor(rec, reducers))
	}
}

func TestBucketFor_IsDeterministic(t *testing.T) {
	rec := Record{Key: "same-key", Value: []byte("same-value")}

	first := bucketFor(rec, 5)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, bucketFor(rec, 5))
	}
}

// TestShuffle_Run_DistributesAcrossMultipleReducers drives Shuffle with
// Reducers > 1 over a fixture the hash spreads across more than one bucket,
// and confirms every input record is re-emitted exactly once with its value
// intact — a configuration orchestrator_test.go's Reducers: 1 cases never
// run.
func TestShuffle_Run_DistributesAcrossMultipleReducers(t *testing.T) {
	const reducers = 8
	records := make([]Record, 0, 200)
	for i := 0; i < 200; i++ {
		records = append(records, Record{
			Key:   keyFor(i),
			Value: []byte(keyFor(i) + "-value"),
		})
	}

	wantBucket := make(map[string]int, len(records))
	seenBuckets := map[int]bool{}
	for _, rec := range records {
		b := bucketFor(rec, reducers)
		wantBucket[rec.Key] = b
		seenBuckets[b] = true
	}
	require.Greaterf(t, len(seenBuckets), 1,
		"test fixture must hash across multiple buckets to be a meaningful test of Reducers > 1")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	in := make(chan Record, len(records))
	for _, rec := range records {
		in <- rec
	}
	close(in)

	out := (Shuffle{Reducers: reducers}).Run(ctx, in)

	got := make(map[string]Record, len(records))
	for rec := range out {
		got[rec.Key] = rec
	}

	require.Len(t, got, len(records), "every input record must be re-emitted exactly once")
	for _, rec := range records {
		outRec, ok := got[rec.Key]
		require.True(t, ok, "key %q missing from shuffle output", rec.Key)
		assert.Equal(t, rec.Value, outRec.Value)
		// The record itself carries no bucket tag; bucketFor is pure, so this
		// only confirms the emitted record still hashes to the bucket computed
		// from its input, not which reducer actually carried it.
		assert.Equal(t, wantBucket[rec.Key], bucketFor(outRec, reducers))
	}
}

func TestShuffle_Run_SingleReducerIsPassthrough(t *testing.T) {
	ctx := context.Background()
	in := make(chan Record, 2)
	in <- Record{Key: "a", Value: []byte("1")}
	in <- Record{Key: "b", Value: []byte("2")}
	close(in)

	out := (Shuffle{Reducers: 1}).Run(ctx, in)

	var got []Record
	for rec := range out {
		got = append(got, rec)
	}

	assert.Len(t, got, 2)
}

func TestShuffle_Run_ZeroOrNegativeReducersFallsBackToOne(t *testing.T) {
	ctx := context.Background()
	in := make(chan Record, 1)
	in <- Record{Key: "only", Value: []byte("v")}
	close(in)

	out := (Shuffle{Reducers: 0}).Run(ctx, in)

	var got []Record
	for rec := range out {
		got = append(got, rec)
	}

	require.Len(t, got, 1)
	assert.Equal(t, "only", got[0].Key)
}

func keyFor(i int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz"
	b := make([]byte, 0, 8)
	for i > 0 || len(b) == 0 {
		b = append(b, alphabet[i%len(alphabet)])
		i /= len(alphabet)
	}
	b = append(b, "-key"...)
	return string(b)
}
