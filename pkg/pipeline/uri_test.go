package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBucketAndPrefix(t *testing.T) {
	cases := []struct {
		uri        string
		wantBucket string
		wantPrefix string
		wantErr    bool
	}{
		{"s3://my-bucket", "my-bucket", "", false},
		{"s3://my-bucket/", "my-bucket", "", false},
		{"s3://my-bucket/some/prefix", "my-bucket", "some/prefix", false},
		{"s3n://legacy-bucket/prefix", "legacy-bucket", "prefix", false},
		{"not-a-uri", "", "", true},
		{"s3:///missing-bucket", "", "", true},
	}

	for _, c := range cases {
		bucket, prefix, err := BucketAndPrefix(c.uri)
		if c.wantErr {
			assert.Error(t, err, c.uri)
			continue
		}
		assert.NoError(t, err, c.uri)
		assert.Equal(t, c.wantBucket, bucket, c.uri)
		assert.Equal(t, c.wantPrefix, prefix, c.uri)
	}
}

func TestSwitchPrefixes(t *testing.T) {
	got, err := switchPrefixes("src/", "dst/", "src/a/b.txt")
	assert.NoError(t, err)
	assert.Equal(t, "dst/a/b.txt", got)

	_, err = switchPrefixes("src/", "dst/", "other/a/b.txt")
	assert.Error(t, err)
	var se *StageError
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, KindPrefixMismatch, se.Kind)
}

func TestSwitchPrefixes_EmptyPrefixesAreIdentity(t *testing.T) {
	got, err := switchPrefixes("", "", "any/key.txt")
	assert.NoError(t, err)
	assert.Equal(t, "any/key.txt", got)
}
