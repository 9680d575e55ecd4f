// Package store provides the key-value persistence boundary for the LumeIQ
// core. Engines read and write JSON-serializable blobs keyed by string and
// never assume atomicity; bounded-log behavior is applied explicitly by the
// callers through the list helpers in this package.
package store

import (
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrNilStore is returned by helpers when no store was supplied.
var ErrNilStore = errors.New("nil store")

// Store is opaque key-value storage with no atomicity guarantee.
// Get returns (nil, nil) for a missing key.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// MemoryStore is the in-process Store used by tests and demo flows.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get returns the stored value for key, or nil when absent.
func (m *MemoryStore) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Set stores value under key, replacing any previous value.
func (m *MemoryStore) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = v
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

var _ Store = (*MemoryStore)(nil)

// LoadJSON reads key and unmarshals it into out. A missing key or a corrupt
// value degrades to "no data": out is left untouched and ok is false.
func LoadJSON(s Store, key string, out any, log *zap.Logger) (ok bool) {
	if s == nil {
		return false
	}
	raw, err := s.Get(key)
	if err != nil {
		logWarn(log, "store get failed", key, err)
		return false
	}
	if raw == nil {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		logWarn(log, "store value corrupt", key, err)
		return false
	}
	return true
}

// SaveJSON marshals v and writes it under key. Failures are logged and
// swallowed so a full or broken store never blocks the calling flow.
func SaveJSON(s Store, key string, v any, log *zap.Logger) {
	if s == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		logWarn(log, "store marshal failed", key, err)
		return
	}
	if err := s.Set(key, raw); err != nil {
		logWarn(log, "store set failed", key, err)
	}
}

// LoadList reads a JSON array under key. Missing or corrupt data reads as
// an empty list.
func LoadList[T any](s Store, key string, log *zap.Logger) []T {
	var items []T
	LoadJSON(s, key, &items, log)
	return items
}

// AppendBounded appends item to the JSON list under key and trims the list
// to its last maxLen entries before writing it back.
func AppendBounded[T any](s Store, key string, item T, maxLen int, log *zap.Logger) []T {
	items := LoadList[T](s, key, log)
	items = append(items, item)
	items = TrimToLast(items, maxLen)
	SaveJSON(s, key, items, log)
	return items
}

// TrimToLast returns the last n items of list, or list unchanged when it
// already fits.
func TrimToLast[T any](list []T, n int) []T {
	if n <= 0 || len(list) <= n {
		return list
	}
	return list[len(list)-n:]
}

func logWarn(log *zap.Logger, msg, key string, err error) {
	if log == nil {
		return
	}
	log.Warn(msg, zap.String("key", key), zap.Error(err))
}
