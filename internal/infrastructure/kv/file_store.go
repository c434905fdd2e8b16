package kv

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"

	"stmap/internal/errs"
	"stmap/internal/ports"
)

// FileStore keeps every slot in one TOML document on local disk:
//
//	[slots.mappings]
//	value = '[...]'
//	updated_at = '2026-02-14T09:30:00Z'
//
// Writes replace the whole file through a temp file and rename.
type FileStore struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

var _ ports.KVStore = (*FileStore)(nil)

const (
	lockPollInterval = 20 * time.Millisecond
	staleLockAge     = 30 * time.Second
)

type fileDocument struct {
	Slots map[string]fileSlot `toml:"slots"`
}

type fileSlot struct {
	Value     string `toml:"value"`
	UpdatedAt string `toml:"updated_at"`
}

func NewFileStore(path string) (*FileStore, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, errors.New("file store path is required")
	}
	return &FileStore{path: trimmed, now: time.Now}, nil
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(ctx context.Context, key string) (string, bool, error) {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return "", false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return "", false, err
	}
	slot, ok := doc.Slots[trimmedKey]
	if !ok {
		return "", false, nil
	}
	return slot.Value, true, nil
}

// CompareAndSwap rewrites the file only while the slot still holds old (or is still
// absent when oldFound is false). A lock file next to the store serialises writers from
// other processes; mu covers goroutines of this one.
func (s *FileStore) CompareAndSwap(ctx context.Context, key string, old string, oldFound bool, value string) (bool, error) {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.lock(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	doc, err := s.read()
	if err != nil {
		return false, err
	}
	current, found := doc.Slots[trimmedKey]
	if found != oldFound || (found && current.Value != old) {
		return false, nil
	}

	doc.Slots[trimmedKey] = fileSlot{
		Value:     value,
		UpdatedAt: s.now().UTC().Format(time.RFC3339Nano),
	}
	if err := s.write(doc); err != nil {
		return false, err
	}
	return true, nil
}

func (s *FileStore) lockPath() string { return s.path + ".lock" }

// lock creates the lock file exclusively, polling until it is free or ctx ends. A lock
// older than staleLockAge is left over from a crashed writer and is removed.
func (s *FileStore) lock(ctx context.Context) (func(), error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrapf(err, "create kv directory %q", dir)
	}

	path := s.lockPath()
	for {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_ = file.Close()
			return func() { _ = os.Remove(path) }, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, errs.Wrapf(err, "create kv lock %q", path)
		}

		if info, statErr := os.Stat(path); statErr == nil && s.now().Sub(info.ModTime()) > staleLockAge {
			_ = os.Remove(path)
			continue
		}

		timer := time.NewTimer(lockPollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errs.Wrapf(ctx.Err(), "wait for kv lock %q", path)
		case <-timer.C:
		}
	}
}

func (s *FileStore) read() (fileDocument, error) {
	doc := fileDocument{Slots: make(map[string]fileSlot)}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return doc, nil
		}
		return fileDocument{}, errs.Wrapf(err, "read kv file %q", s.path)
	}
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return fileDocument{}, errs.Wrapf(err, "decode kv file %q", s.path)
	}
	if doc.Slots == nil {
		doc.Slots = make(map[string]fileSlot)
	}
	return doc, nil
}

func (s *FileStore) write(doc fileDocument) error {
	raw, err := toml.Marshal(doc)
	if err != nil {
		return errs.Wrap(err, "encode kv file")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrapf(err, "create kv directory %q", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errs.Wrap(err, "create kv temp file")
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return errs.Wrap(err, "write kv temp file")
	}
	if err := tmp.Close(); err != nil {
		return errs.Wrap(err, "close kv temp file")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return errs.Wrapf(err, "replace kv file %q", s.path)
	}
	return nil
}
