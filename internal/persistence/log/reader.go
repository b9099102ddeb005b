package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"

	"pipeworks/internal/sim/network"
)

// ReadJSONLZstd calls fn for every line of a .jsonl.zst file.
func ReadJSONLZstd(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if len(sc.Bytes()) == 0 {
			continue
		}
		if err := fn(sc.Bytes()); err != nil {
			return fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
	}
	return sc.Err()
}

// ReadSegments lists the segments recorded in dir's manifest, oldest first.
// A directory without a manifest has no segments.
func ReadSegments(dir string) ([]Segment, error) {
	f, err := os.Open(filepath.Join(dir, manifestName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Segment
	seen := map[string]bool{}
	sc := bufio.NewScanner(f)
	for lineNo := 1; sc.Scan(); lineNo++ {
		var seg Segment
		if err := json.Unmarshal(sc.Bytes(), &seg); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", manifestName, lineNo, err)
		}
		if !seen[seg.File] {
			seen[seg.File] = true
			out = append(out, seg)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FirstTick < out[j].FirstTick })
	return out, nil
}

// ReadAudit loads every audit entry under runDir in segment order.
func ReadAudit(runDir string) ([]network.AuditEntry, error) {
	dir := filepath.Join(runDir, "audit")
	segs, err := ReadSegments(dir)
	if err != nil {
		return nil, err
	}
	var out []network.AuditEntry
	for _, seg := range segs {
		err := ReadJSONLZstd(filepath.Join(dir, seg.File), func(line []byte) error {
			var e network.AuditEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return err
			}
			out = append(out, e)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
