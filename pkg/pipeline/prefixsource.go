package pipeline

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// PrefixSource produces the bounded sequence of prefix strings under the
// source bucket that make up the listing stage's sole unit of parallelism
// (spec.md §4.1).
type PrefixSource struct {
	// Path, if non-empty, names a text file of newline-separated prefixes.
	// An empty Path yields the single prefix "".
	Path string
}

// Prefixes reads and returns the prefix list. A missing/unreadable Path
// fails the whole run before any listing begins, per spec.md §4.1.
func (s PrefixSource) Prefixes() ([]string, error) {
	if s.Path == "" {
		return []string{""}, nil
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return nil, &StageError{Kind: KindConfiguration, Err: fmt.Errorf("opening prefix file %q: %w", s.Path, err)}
	}
	defer f.Close()

	var prefixes []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		prefixes = append(prefixes, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, &StageError{Kind: KindConfiguration, Err: fmt.Errorf("reading prefix file %q: %w", s.Path, err)}
	}
	// A file containing only blank lines yields zero prefixes, not the
	// whole-bucket default — the caller explicitly opted into a prefix
	// file, so an empty result set is honored rather than silently
	// expanded to "list everything".
	return prefixes, nil
}
