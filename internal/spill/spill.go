package spill

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Record is one spilled line: a resource tag plus the raw item.
type Record struct {
	Resource string          `json:"resource"`
	Data     json.RawMessage `json:"data"`
}

// RawPath returns the extract spill path for a workflow run.
func RawPath(dir, runID string) string {
	return filepath.Join(dir, fmt.Sprintf("etl-%s-raw.ndjson", runID))
}

// TransformedPath returns the transform output path for a workflow run.
func TransformedPath(dir, runID string) string {
	return filepath.Join(dir, fmt.Sprintf("etl-%s-transformed.json", runID))
}

// Writer appends records to an NDJSON spill file, one JSON object per line.
type Writer struct {
	f    *os.File
	bw   *bufio.Writer
	rows int64
}

func NewWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create spill dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create spill file: %w", err)
	}
	return &Writer{f: f, bw: bufio.NewWriterSize(f, 1<<20)}, nil
}

func (w *Writer) Write(resource string, data json.RawMessage) error {
	line, err := json.Marshal(Record{Resource: resource, Data: data})
	if err != nil {
		return fmt.Errorf("encode spill record: %w", err)
	}
	if _, err := w.bw.Write(line); err != nil {
		return err
	}
	if err := w.bw.WriteByte('\n'); err != nil {
		return err
	}
	w.rows++
	return nil
}

// Rows reports how many records have been written so far.
func (w *Writer) Rows() int64 { return w.rows }

// Close flushes and syncs the file. The extract activity must not report
// success until this has returned nil.
func (w *Writer) Close() error {
	if err := w.bw.Flush(); err != nil {
		w.f.Close()
		return err
	}
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// Reader scans a spill file leniently: malformed lines are counted and
// skipped rather than failing the scan, so a partially written tail cannot
// wedge the transform.
type Reader struct {
	f       *os.File
	sc      *bufio.Scanner
	skipped int64
}

func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open spill file: %w", err)
	}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &Reader{f: f, sc: sc}, nil
}

// Next returns the next well-formed record, or io.EOF at end of file.
func (r *Reader) Next() (*Record, error) {
	for r.sc.Scan() {
		line := r.sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil || rec.Resource == "" {
			r.skipped++
			continue
		}
		return &rec, nil
	}
	if err := r.sc.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Skipped reports how many malformed lines were dropped.
func (r *Reader) Skipped() int64 { return r.skipped }

func (r *Reader) Close() error { return r.f.Close() }
