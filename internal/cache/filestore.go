package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// fileRecord is the on-disk layout: epoch seconds and the raw payload.
type fileRecord struct {
	Timestamp float64         `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// FileStore keeps one JSON file per (subject, source) in a directory, named
// subject_source.json with both parts escaped.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(subject, source string) string {
	return filepath.Join(s.dir, escapeName(subject)+"_"+escapeName(source)+".json")
}

func (s *FileStore) Load(_ context.Context, subject, source string) (*Entry, error) {
	data, err := os.ReadFile(s.path(subject, source))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode cache file: %w", err)
	}
	sec, frac := math.Modf(rec.Timestamp)
	return &Entry{
		Subject:   subject,
		Source:    source,
		Payload:   rec.Data,
		FetchedAt: time.Unix(int64(sec), int64(frac*1e9)),
	}, nil
}

// Save writes to a temporary file and renames it over the previous entry.
func (s *FileStore) Save(_ context.Context, e *Entry) error {
	rec := fileRecord{
		Timestamp: float64(e.FetchedAt.UnixNano()) / 1e9,
		Data:      e.Payload,
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	dst := s.path(e.Subject, e.Source)
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}

// escapeName keeps letters, digits, '-' and '.' and writes every other byte
// as ~HH, so the '_' joining subject and source never occurs inside either.
func escapeName(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '.':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "~%02X", c)
		}
	}
	return b.String()
}
