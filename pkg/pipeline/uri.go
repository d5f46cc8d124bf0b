package pipeline

import (
	"fmt"
	"regexp"
)

var s3URIPattern = regexp.MustCompile(`^s3n?://([^/]*)(/(.*))?$`)

// BucketAndPrefix parses an "s3://bucket[/prefix]" or "s3n://..." URI per
// spec.md §6's grammar: bucket is capture group 1, prefix is group 3 or "".
func BucketAndPrefix(uri string) (bucket, prefix string, err error) {
	m := s3URIPattern.FindStringSubmatch(uri)
	if m == nil {
		return "", "", fmt.Errorf("not a valid s3 URI: %q", uri)
	}
	bucket = m[1]
	prefix = m[3]
	if bucket == "" {
		return "", "", fmt.Errorf("s3 URI missing bucket: %q", uri)
	}
	return bucket, prefix, nil
}

// switchPrefixes reimplements spec.md §4.5's switch_prefixes: nil/absent
// prefixes are treated as "". If key does not start with srcPrefix, this
// fails with a prefix-mismatch StageError.
func switchPrefixes(srcPrefix, destPrefix, key string) (string, error) {
	if len(key) < len(srcPrefix) || key[:len(srcPrefix)] != srcPrefix {
		return "", newPrefixMismatchError(key, srcPrefix)
	}
	return destPrefix + key[len(srcPrefix):], nil
}
