// Package filestore persists ledgers, daily aggregate records and the income
// log as plain files under a single data directory.
package filestore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
)

// Store owns the data directory. Each file is guarded by an in-process
// mutex and an advisory lock under .locks, so the server and the CLI never
// interleave writes. JSON documents are replaced atomically.
type Store struct {
	dir   string
	locks *pathLocks
	log   zerolog.Logger
}

const lockDir = ".locks"

// New creates the data directory if needed.
func New(dir string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, lockDir), 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{
		dir:   dir,
		locks: &pathLocks{dir: filepath.Join(dir, lockDir), m: make(map[string]*pathLock)},
		log:   log.With().Str("component", "filestore").Logger(),
	}, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

type pathLock struct {
	mu   sync.Mutex
	file *flock.Flock
}

type pathLocks struct {
	dir string
	mu  sync.Mutex
	m   map[string]*pathLock
}

// lock takes the lock of the data file at path and returns its release.
func (p *pathLocks) lock(path string) (func(), error) {
	name := filepath.Base(path)

	p.mu.Lock()
	l, ok := p.m[name]
	if !ok {
		l = &pathLock{file: flock.New(filepath.Join(p.dir, name+".lock"))}
		p.m[name] = l
	}
	p.mu.Unlock()

	l.mu.Lock()
	if err := l.file.Lock(); err != nil {
		l.mu.Unlock()
		return nil, fmt.Errorf("lock %s: %w", name, err)
	}
	return func() {
		_ = l.file.Unlock()
		l.mu.Unlock()
	}, nil
}

// readJSON decodes path into v. A missing file leaves v untouched and returns
// (false, nil); undecodable content returns (true, nil) so callers can start
// over from an empty document.
func readJSON(path string, v any) (corrupt bool, err error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, nil
	}
	return false, nil
}

// writeJSON replaces path with the indented encoding of v.
func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	if err := renameio.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
