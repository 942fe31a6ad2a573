package persistence

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/talgya/farm-season/internal/engine"
)

// TickEntry is one line of a tick log.
type TickEntry struct {
	SeasonID string             `json:"season_id"`
	Summary  engine.TickSummary `json:"summary"`
}

// TickLog writes one zstd-compressed JSONL file per season.
type TickLog struct {
	dir string

	mu     sync.Mutex
	season string
	f      *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer
}

// NewTickLog creates a log rooted at dir. Files are created lazily.
func NewTickLog(dir string) *TickLog {
	return &TickLog{dir: dir}
}

// Path returns the file a season's entries go to.
func (l *TickLog) Path(seasonID string) string {
	return filepath.Join(l.dir, fmt.Sprintf("season-%s.jsonl.zst", seasonID))
}

// Write appends a week. Switching season closes the previous file.
func (l *TickLog) Write(seasonID string, sum engine.TickSummary) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if seasonID != l.season {
		if err := l.rotateLocked(seasonID); err != nil {
			return err
		}
	}

	b, err := json.Marshal(TickEntry{SeasonID: seasonID, Summary: sum})
	if err != nil {
		return err
	}
	if _, err := l.w.Write(b); err != nil {
		return err
	}
	if err := l.w.WriteByte('\n'); err != nil {
		return err
	}
	return l.w.Flush()
}

// Close flushes and closes the current file.
func (l *TickLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeLocked()
}

func (l *TickLog) rotateLocked(seasonID string) error {
	if err := l.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.Path(seasonID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	l.f = f
	l.enc = enc
	l.w = bufio.NewWriterSize(enc, 64*1024)
	l.season = seasonID
	return nil
}

func (l *TickLog) closeLocked() error {
	var err error
	if l.w != nil {
		_ = l.w.Flush()
	}
	if l.enc != nil {
		err = l.enc.Close()
		l.enc = nil
	}
	if l.f != nil {
		_ = l.f.Close()
		l.f = nil
	}
	l.w = nil
	l.season = ""
	return err
}

// ReadTickLog decodes every entry in a tick log file.
func ReadTickLog(path string) ([]TickEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []TickEntry
	jd := json.NewDecoder(dec)
	for {
		var e TickEntry
		if err := jd.Decode(&e); err == io.EOF {
			break
		} else if err != nil {
			return out, fmt.Errorf("decode %s: %w", path, err)
		}
		out = append(out, e)
	}
	return out, nil
}
