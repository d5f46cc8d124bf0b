package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrefixSource_EmptyPathYieldsWholeBucket(t *testing.T) {
	prefixes, err := (PrefixSource{}).Prefixes()

	assert.NoError(t, err)
	assert.Equal(t, []string{""}, prefixes)
}

func TestPrefixSource_ReadsNewlineSeparatedPrefixes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefixes.txt")
	assert.NoError(t, os.WriteFile(path, []byte("foo/\nbar/\nbaz/\n"), 0o644))

	prefixes, err := (PrefixSource{Path: path}).Prefixes()

	assert.NoError(t, err)
	assert.Equal(t, []string{"foo/", "bar/", "baz/"}, prefixes)
}

func TestPrefixSource_BlankLinesOnlyYieldsZeroPrefixes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blank.txt")
	assert.NoError(t, os.WriteFile(path, []byte("\n\n\n"), 0o644))

	prefixes, err := (PrefixSource{Path: path}).Prefixes()

	assert.NoError(t, err)
	assert.Len(t, prefixes, 0)
}

func TestPrefixSource_MissingFileFails(t *testing.T) {
	_, err := (PrefixSource{Path: filepath.Join(t.TempDir(), "missing.txt")}).Prefixes()

	assert.Error(t, err)
	var se *StageError
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, KindConfiguration, se.Kind)
}
