package scoring

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ResultSink is the append-only JSONL log of per-turn outcomes. Every
// record is flushed as soon as it is written, so a killed process loses at
// most the record being written, not the file.
type ResultSink struct {
	f *os.File
	w *bufio.Writer
}

func NewResultSink(path string) (*ResultSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir output dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open result log: %w", err)
	}
	return &ResultSink{f: f, w: bufio.NewWriter(f)}, nil
}

// Append writes one record followed by a newline and flushes it.
func (s *ResultSink) Append(rec ScoreRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if _, err := s.w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return s.w.Flush()
}

func (s *ResultSink) Close() error {
	if err := s.w.Flush(); err != nil {
		_ = s.f.Close()
		return err
	}
	return s.f.Close()
}
