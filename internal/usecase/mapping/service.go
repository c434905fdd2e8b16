package mapping

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"stmap/internal/bootstrap/logging"
	domainmapping "stmap/internal/domain/mapping"
	"stmap/internal/errs"
	"stmap/internal/ports"
)

const DefaultStorageKey = "mappings"

type Options struct {
	// StorageKey names the KV slot holding the whole list. Defaults to DefaultStorageKey.
	StorageKey string
	TimeFormat domainmapping.TimeFormat
	Now        func() time.Time
	NewID      func() string
}

// maxCommitAttempts bounds how often a mutation is re-applied after another writer
// changed the slot between our read and our write.
const maxCommitAttempts = 5

var errSlotContended = errors.New("kv slot kept changing under concurrent writers")

// Service owns the ordered mapping list and keeps the KV slot in step with it.
// Every operation holds mu for its whole duration and starts from a fresh read of the
// slot, so several processes can share one store.
type Service struct {
	kv         ports.KVStore
	key        string
	timeFormat domainmapping.TimeFormat
	now        func() time.Time
	newID      func() string

	mu    sync.Mutex
	items []domainmapping.Mapping
	// raw and found describe the slot as last read; writes are conditional on them.
	raw   string
	found bool
}

func NewService(kv ports.KVStore, options Options) *Service {
	key := strings.TrimSpace(options.StorageKey)
	if key == "" {
		key = DefaultStorageKey
	}
	now := options.Now
	if now == nil {
		now = time.Now
	}
	newID := options.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	return &Service{
		kv:         kv,
		key:        key,
		timeFormat: options.TimeFormat,
		now:        now,
		newID:      newID,
	}
}

// Load replaces the in-memory list with the content of the KV slot. A missing slot
// yields an empty list.
func (s *Service) Load(ctx context.Context) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *Service) loadLocked(ctx context.Context) error {
	if s.kv == nil {
		return errors.New("mapping kv store is required")
	}

	raw, found, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return &domainmapping.PersistenceError{Op: "load", Err: err}
	}

	items := make([]domainmapping.Mapping, 0)
	if found && strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return &domainmapping.PersistenceError{Op: "decode", Err: err}
		}
	}

	s.items = items
	s.raw = raw
	s.found = found
	logging.Debug(
		logging.WithComponent(ctx, "usecase.mapping"),
		"mappings loaded",
		slog.String("key", s.key),
		slog.Int("count", len(items)),
	)
	return nil
}

// mutateLocked runs change on the current list and writes the result only if the slot
// still holds what was last read. When another writer got there first the slot is
// reloaded and change runs again on the fresh list. The in-memory list is replaced only
// after a successful write.
func (s *Service) mutateLocked(ctx context.Context, change func(current []domainmapping.Mapping) ([]domainmapping.Mapping, error)) error {
	for attempt := 1; ; attempt++ {
		next, err := change(s.items)
		if err != nil {
			return err
		}

		raw, err := json.Marshal(next)
		if err != nil {
			return &domainmapping.PersistenceError{Op: "encode", Err: err}
		}
		swapped, err := s.kv.CompareAndSwap(ctx, s.key, s.raw, s.found, string(raw))
		if err != nil {
			return &domainmapping.PersistenceError{Op: "save", Err: err}
		}
		if swapped {
			s.items = next
			s.raw = string(raw)
			s.found = true
			return nil
		}

		if attempt == maxCommitAttempts {
			return &domainmapping.PersistenceError{Op: "save", Err: errSlotContended}
		}
		logging.Warn(
			logging.WithComponent(ctx, "usecase.mapping"),
			"mapping slot changed by another writer, retrying",
			slog.String("key", s.key),
			slog.Int("attempt", attempt),
		)
		if err := s.loadLocked(ctx); err != nil {
			return err
		}
	}
}

func (s *Service) indexOfLocked(id string) int {
	return indexOf(s.items, id)
}

func indexOf(items []domainmapping.Mapping, id string) int {
	for i, item := range items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func (s *Service) snapshotLocked(filter func(domainmapping.Mapping) bool) []domainmapping.Mapping {
	out := make([]domainmapping.Mapping, 0, len(s.items))
	for _, item := range s.items {
		if filter != nil && !filter(item) {
			continue
		}
		out = append(out, item.Clone())
	}
	return out
}

// begin validates ctx, takes the lock, and reloads the list from the slot.
// The returned func releases the lock.
func (s *Service) begin(ctx context.Context) (func(), error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if s.kv == nil {
		return nil, errors.New("mapping kv store is required")
	}

	s.mu.Lock()
	if err := s.loadLocked(ctx); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	return s.mu.Unlock, nil
}

func checkContext(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	return nil
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC()
}

// TimeFormat is the layout and zone used when timestamps are rendered for export.
func (s *Service) TimeFormat() domainmapping.TimeFormat {
	return s.timeFormat
}
