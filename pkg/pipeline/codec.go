package pipeline

import (
	"encoding/binary"
	"fmt"
	"time"
)

// encodeVersionRecord serializes a VersionRecord into the shuffle's opaque
// binary wire format: length-prefixed UTF-8 strings, integer-millisecond
// timestamps, per spec.md §9's guidance to avoid JSON (and its formatter
// coupling) for internal shuffle traffic.
func encodeVersionRecord(v VersionRecord) []byte {
	buf := make([]byte, 0, 64+len(v.Key)+len(v.BucketName))
	buf = appendString(buf, v.Key)
	buf = appendString(buf, v.BucketName)
	buf = appendOptionalString(buf, v.VersionID)
	buf = appendOptionalMillis(buf, v.LastModified)
	buf = append(buf, boolByte(v.DeleteMarker), boolByte(v.IsCurrent))
	buf = appendInt32(buf, int32(v.emissionIndex))
	return buf
}

func decodeVersionRecord(b []byte) (VersionRecord, error) {
	var v VersionRecord
	var ok bool
	var err error

	v.Key, b, ok = readString(b)
	if !ok {
		return v, fmt.Errorf("decoding version record: truncated key")
	}
	v.BucketName, b, ok = readString(b)
	if !ok {
		return v, fmt.Errorf("decoding version record: truncated bucket_name")
	}
	v.VersionID, b, ok = readOptionalString(b)
	if !ok {
		return v, fmt.Errorf("decoding version record: truncated version_id")
	}
	v.LastModified, b, err = readOptionalMillis(b)
	if err != nil {
		return v, fmt.Errorf("decoding version record: %w", err)
	}
	if len(b) < 2 {
		return v, fmt.Errorf("decoding version record: truncated flags")
	}
	v.DeleteMarker = b[0] != 0
	v.IsCurrent = b[1] != 0
	b = b[2:]
	idx, _, ok := readInt32(b)
	if !ok {
		return v, fmt.Errorf("decoding version record: truncated emission index")
	}
	v.emissionIndex = int(idx)
	return v, nil
}

func appendString(buf []byte, s string) []byte {
	buf = appendInt32(buf, int32(len(s)))
	return append(buf, s...)
}

func appendOptionalString(buf []byte, s *string) []byte {
	if s == nil {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	return appendString(buf, *s)
}

func appendOptionalMillis(buf []byte, t *time.Time) []byte {
	if t == nil {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	ms := make([]byte, 8)
	binary.BigEndian.PutUint64(ms, uint64(t.UnixMilli()))
	return append(buf, ms...)
}

func appendInt32(buf []byte, n int32) []byte {
	tmp := make([]byte, 4)
	binary.BigEndian.PutUint32(tmp, uint32(n))
	return append(buf, tmp...)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func readInt32(b []byte) (int32, []byte, bool) {
	if len(b) < 4 {
		return 0, b, false
	}
	return int32(binary.BigEndian.Uint32(b)), b[4:], true
}

func readString(b []byte) (string, []byte, bool) {
	n, rest, ok := readInt32(b)
	if !ok || len(rest) < int(n) {
		return "", b, false
	}
	return string(rest[:n]), rest[n:], true
}

func readOptionalString(b []byte) (*string, []byte, bool) {
	if len(b) < 1 {
		return nil, b, false
	}
	present := b[0]
	b = b[1:]
	if present == 0 {
		return nil, b, true
	}
	s, rest, ok := readString(b)
	if !ok {
		return nil, b, false
	}
	return &s, rest, true
}

func readOptionalMillis(b []byte) (*time.Time, []byte, error) {
	if len(b) < 1 {
		return nil, b, fmt.Errorf("truncated optional timestamp")
	}
	present := b[0]
	b = b[1:]
	if present == 0 {
		return nil, b, nil
	}
	if len(b) < 8 {
		return nil, b, fmt.Errorf("truncated timestamp")
	}
	ms := int64(binary.BigEndian.Uint64(b[:8]))
	t := time.UnixMilli(ms).UTC()
	return &t, b[8:], nil
}
