package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"pipeworks/internal/sim/network"
)

// DefaultSpan is one hour of world time at 20 ticks per second.
const DefaultSpan uint64 = 20 * 3600

const manifestName = "segments.jsonl"

// Segment is one line of a log directory's segments.jsonl manifest.
type Segment struct {
	File      string    `json:"file"`
	RunID     string    `json:"run_id,omitempty"`
	FirstTick uint64    `json:"first_tick"`
	OpenedAt  time.Time `json:"opened_at"`
}

// SegmentWriter appends JSON lines to zstd segments under dir. Segments are
// cut on world ticks, not wall time: every span ticks a new file named
// <prefix>-<run>-<first tick>.jsonl.zst is opened and listed in the manifest.
type SegmentWriter struct {
	dir    string
	prefix string
	runID  string
	span   uint64

	mu    sync.Mutex
	first uint64
	f     *os.File
	enc   *zstd.Encoder
	buf   *bufio.Writer

	now func() time.Time
}

func NewSegmentWriter(dir, prefix, runID string, span uint64) *SegmentWriter {
	if span == 0 {
		span = DefaultSpan
	}
	return &SegmentWriter{dir: dir, prefix: prefix, runID: runID, span: span, now: time.Now}
}

// Write appends v to the segment holding tick. Ticks are expected to be
// non-decreasing; an older tick goes to the segment that is already open.
func (w *SegmentWriter) Write(tick uint64, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if first := tick - tick%w.span; w.f == nil || first > w.first {
		if err := w.openLocked(first); err != nil {
			return fmt.Errorf("open %s segment at tick %d: %w", w.prefix, first, err)
		}
	}
	b = append(b, '\n')
	if _, err := w.buf.Write(b); err != nil {
		return err
	}
	return w.buf.Flush()
}

func (w *SegmentWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *SegmentWriter) fileName(first uint64) string {
	if w.runID == "" {
		return fmt.Sprintf("%s-%012d.jsonl.zst", w.prefix, first)
	}
	return fmt.Sprintf("%s-%s-%012d.jsonl.zst", w.prefix, w.runID, first)
}

func (w *SegmentWriter) openLocked(first uint64) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	name := w.fileName(first)
	path := filepath.Join(w.dir, name)
	_, statErr := os.Stat(path)
	fresh := errors.Is(statErr, os.ErrNotExist)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	// Reopening an existing segment appends a new zstd frame.
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest), zstd.WithEncoderConcurrency(1))
	if err != nil {
		_ = f.Close()
		return err
	}
	if fresh {
		seg := Segment{File: name, RunID: w.runID, FirstTick: first, OpenedAt: w.now().UTC()}
		if err := appendManifest(w.dir, seg); err != nil {
			_ = enc.Close()
			_ = f.Close()
			return err
		}
	}
	w.f, w.enc, w.first = f, enc, first
	w.buf = bufio.NewWriterSize(enc, 64*1024)
	return nil
}

func (w *SegmentWriter) closeLocked() error {
	if w.f == nil {
		return nil
	}
	err := errors.Join(w.buf.Flush(), w.enc.Close(), w.f.Close())
	w.f, w.enc, w.buf = nil, nil, nil
	return err
}

func appendManifest(dir string, seg Segment) error {
	b, err := json.Marshal(seg)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, manifestName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	_, err = f.Write(append(b, '\n'))
	return errors.Join(err, f.Close())
}

// TickLogger writes one network summary per tick to <runDir>/ticks.
type TickLogger struct{ w *SegmentWriter }

func NewTickLogger(runDir, runID string, span uint64) *TickLogger {
	return &TickLogger{w: NewSegmentWriter(filepath.Join(runDir, "ticks"), "ticks", runID, span)}
}

func (l *TickLogger) WriteTick(e network.TickEntry) error { return l.w.Write(e.Tick, e) }
func (l *TickLogger) Close() error                        { return l.w.Close() }

// AuditLogger writes pipe insert, handoff, delivery and drop entries to
// <runDir>/audit.
type AuditLogger struct{ w *SegmentWriter }

func NewAuditLogger(runDir, runID string, span uint64) *AuditLogger {
	return &AuditLogger{w: NewSegmentWriter(filepath.Join(runDir, "audit"), "audit", runID, span)}
}

func (l *AuditLogger) WriteAudit(e network.AuditEntry) error { return l.w.Write(e.Tick, e) }
func (l *AuditLogger) Close() error                          { return l.w.Close() }
