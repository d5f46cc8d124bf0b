package pipeline

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

// ReportWriter writes the pipeline's two stage-boundary reports — the
// "versions" file produced after selection and the "restored" file produced
// after restoration — as one "key<TAB>json" line per record. This mirrors
// the teacher's FileChangesWriter (pkg/s3/replay_list.go) in structure
// (buffered *os.File, a mutex guarding concurrent writers, Close flushing
// and closing the handle) but drops its single JSON-array framing: a
// restore over millions of keys must be appendable and greppable per line,
// not held together by one opening/closing bracket spec.md never requires.
type ReportWriter struct {
	file *os.File
	w    *bufio.Writer
	mu   sync.Mutex
}

// NewReportWriter creates (truncating) the report file at path.
func NewReportWriter(path string) (*ReportWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating report %q: %w", path, err)
	}
	return &ReportWriter{file: f, w: bufio.NewWriter(f)}, nil
}

// WriteVersion appends one selected target version, keyed by its original
// key, to the "versions" report.
func (w *ReportWriter) WriteVersion(key string, v VersionRecord) error {
	return w.writeLine(key, v)
}

// WriteAction appends one applied (non-noop) action to the "restored"
// report.
func (w *ReportWriter) WriteAction(key string, a Action) error {
	return w.writeLine(key, a)
}

func (w *ReportWriter) writeLine(key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding report line for key %q: %w", key, err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.w.WriteString(key); err != nil {
		return err
	}
	if err := w.w.WriteByte('\t'); err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// Close flushes buffered output and closes the underlying file.
func (w *ReportWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.w.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

// ReadVersions parses a "versions" report previously written by
// ReportWriter, for the apply-only stage (spec.md §4.6's list-then-apply
// split) to consume without re-running selection.
func ReadVersions(path string) (map[string]VersionRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening versions report %q: %w", path, err)
	}
	defer f.Close()

	out := make(map[string]VersionRecord)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		key, payload, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, fmt.Errorf("versions report %q line %d: missing tab delimiter", path, lineNo)
		}
		var v VersionRecord
		if err := json.Unmarshal([]byte(payload), &v); err != nil {
			return nil, fmt.Errorf("versions report %q line %d: %w", path, lineNo, err)
		}
		out[key] = v
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading versions report %q: %w", path, err)
	}
	return out, nil
}
