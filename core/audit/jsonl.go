package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// JSONLStore stores records as JSON lines. Decision ids already present in
// the file are loaded on open so that appends stay idempotent across
// restarts.
type JSONLStore struct {
	path string
	mu   sync.Mutex
	ids  map[string]struct{}
	// rotation is nil for a plain single-file store.
	rotation *lumberjack.Logger
}

// NewJSONLStore opens or creates the file at path.
func NewJSONLStore(path string) (*JSONLStore, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if cerr := f.Close(); cerr != nil {
		return nil, cerr
	}
	s := &JSONLStore{path: path, ids: make(map[string]struct{})}
	if err := s.loadIDs(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewRotatingJSONLStore creates a store that rotates the file once it grows
// beyond maxSizeMB, keeping maxBackups files for at most maxAgeDays.
func NewRotatingJSONLStore(path string, maxSizeMB, maxBackups, maxAgeDays int) (*JSONLStore, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	s := &JSONLStore{
		path: path,
		ids:  make(map[string]struct{}),
		rotation: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
		},
	}
	if err := s.loadIDs(); err != nil {
		return nil, err
	}
	return s, nil
}

func ensureDir(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		return os.MkdirAll(dir, 0o755)
	}
	return nil
}

// files lists the current file and its rotated backups, oldest first.
func (s *JSONLStore) files() ([]string, error) {
	if s.rotation == nil {
		return []string{s.path}, nil
	}
	ext := filepath.Ext(s.path)
	prefix := s.path[:len(s.path)-len(ext)]
	backups, err := filepath.Glob(prefix + "-*" + ext)
	if err != nil {
		return nil, err
	}
	sort.Strings(backups)
	return append(backups, s.path), nil
}

func (s *JSONLStore) loadIDs() error {
	return s.scan(func(r Record) {
		s.ids[r.DecisionID] = struct{}{}
	})
}

func (s *JSONLStore) scan(fn func(Record)) error {
	files, err := s.files()
	if err != nil {
		return err
	}
	for _, name := range files {
		f, err := os.Open(name)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return err
		}
		err = scanRecords(f, fn)
		_ = f.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func scanRecords(r io.Reader, fn func(Record)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		fn(rec)
	}
	return scanner.Err()
}

func (s *JSONLStore) Append(_ context.Context, rec Record) error {
	if rec.DecisionID == "" {
		return ErrMissingID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[rec.DecisionID]; ok {
		return nil
	}
	var w io.Writer = s.rotation
	if s.rotation == nil {
		f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	if err := json.NewEncoder(w).Encode(rec); err != nil {
		return err
	}
	s.ids[rec.DecisionID] = struct{}{}
	return nil
}

func (s *JSONLStore) Query(_ context.Context, q Query) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []Record
	err := s.scan(func(r Record) {
		if q.Match(r) {
			res = append(res, r)
		}
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the rotating writer, if any.
func (s *JSONLStore) Close() error {
	if s.rotation != nil {
		return s.rotation.Close()
	}
	return nil
}
