package logstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// DefaultPath is the log file used when none is configured.
const DefaultPath = "device_info.json"

// FileStore keeps every record in one pretty-printed JSON array and rewrites
// the whole file on each mutation.
//
// Calls on one FileStore run one at a time. Separate processes sharing the
// file are not coordinated: concurrent writers can lose each other's updates.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a store backed by the file at path. The file is
// created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Append adds rec at the end of the log. A missing or unreadable log is
// replaced by a new one holding just rec.
func (s *FileStore) Append(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.load()
	records = append(records, rec)
	return s.write(records)
}

// ReadAll returns every record newest first. A missing or malformed file
// yields an empty result, never an error.
func (s *FileStore) ReadAll(_ context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.load()
	SortNewestFirst(records)
	return records, nil
}

// Delete removes the records at the given append-order positions and
// rewrites the file. Unknown and repeated positions are ignored. It returns
// the number of records removed.
func (s *FileStore) Delete(_ context.Context, positions []int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	drop := make(map[int]struct{}, len(positions))
	for _, p := range positions {
		drop[p] = struct{}{}
	}

	records := s.load()
	kept := make([]Record, 0, len(records))
	for _, r := range records {
		if _, ok := drop[r.Position]; ok {
			continue
		}
		kept = append(kept, r)
	}

	removed := len(records) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	if err := s.write(kept); err != nil {
		return 0, err
	}
	return removed, nil
}

// Close is a no-op; the file is never held open between calls.
func (s *FileStore) Close() error {
	return nil
}

// load reads the log in append order with positions assigned.
func (s *FileStore) load() []Record {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("Log store: failed to read %s: %v (treating as empty)", s.path, err)
		}
		return []Record{}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return []Record{}
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		log.Printf("Log store: malformed log file %s: %v (treating as empty)", s.path, err)
		return []Record{}
	}

	for i := range records {
		records[i].Position = i
	}
	return records
}

// write replaces the log with records via a temporary file and rename, so a
// failed write leaves the previous file intact.
func (s *FileStore) write(records []Record) error {
	if records == nil {
		records = []Record{}
	}

	data, err := Encode(records)
	if err != nil {
		return fmt.Errorf("encode log file: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("write log file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()        //nolint:errcheck // Already failing
		os.Remove(tmpName) //nolint:errcheck // Best effort cleanup
		return fmt.Errorf("write log file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()        //nolint:errcheck // Already failing
		os.Remove(tmpName) //nolint:errcheck // Best effort cleanup
		return fmt.Errorf("sync log file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName) //nolint:errcheck // Best effort cleanup
		return fmt.Errorf("close log file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName) //nolint:errcheck // Best effort cleanup
		return fmt.Errorf("chmod log file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName) //nolint:errcheck // Best effort cleanup
		return fmt.Errorf("replace log file: %w", err)
	}
	return nil
}

// Encode renders records as the on-disk JSON array: two-space indent,
// non-ASCII and HTML characters written verbatim.
func Encode(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
