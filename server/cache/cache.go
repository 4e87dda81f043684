// Package cache is a small key/value store for advisory client-side data
// (battle history, leaderboard snapshots). Values expire after a TTL.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"fantasyrpg/shared/protocol"
)

// DefaultTTL matches the leaderboard cache lifetime.
const DefaultTTL = protocol.DefaultCacheTTL

// Cache stores JSON-encodable values. A ttl <= 0 never expires.
type Cache interface {
	Get(key string, dst any) (bool, error)
	Put(key string, v any, ttl time.Duration) error
	Delete(key string) error
}

// item is the stored envelope. Timestamp and TTL are milliseconds.
type item struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	TTL       int64           `json:"ttl"`
}

func (it item) expired(now time.Time) bool {
	return it.TTL > 0 && now.UnixMilli()-it.Timestamp > it.TTL
}

func newItem(v any, ttl time.Duration, now time.Time) (item, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return item{}, fmt.Errorf("encode cache value: %w", err)
	}
	return item{Data: b, Timestamp: now.UnixMilli(), TTL: ttl.Milliseconds()}, nil
}

/* ------------------- memory ------------------- */

// Memory is an in-process Cache.
type Memory struct {
	mu    sync.Mutex
	items map[string]item
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{items: map[string]item{}, now: time.Now}
}

// SetClock overrides the time source (tests).
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

func (m *Memory) Get(key string, dst any) (bool, error) {
	m.mu.Lock()
	it, ok := m.items[key]
	if ok && it.expired(m.now()) {
		delete(m.items, key)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(it.Data, dst); err != nil {
		// corrupt entries read as misses
		return false, nil
	}
	return true, nil
}

func (m *Memory) Put(key string, v any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, err := newItem(v, ttl, m.now())
	if err != nil {
		return err
	}
	m.items[key] = it
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

/* ------------------- files (one JSON file per key) ------------------- */

// File persists each key as dir/<safe key>.json, written atomically.
type File struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &File{dir: dir, now: time.Now}, nil
}

func (f *File) SetClock(now func() time.Time) {
	f.mu.Lock()
	f.now = now
	f.mu.Unlock()
}

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9_\-]+`)

func (f *File) path(key string) string {
	s := unsafeKeyChars.ReplaceAllString(key, "_")
	if s == "" {
		s = "_"
	}
	return filepath.Join(f.dir, s+".json")
}

func (f *File) Get(key string, dst any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := f.path(key)
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read cache %s: %w", key, err)
	}
	var it item
	if err := json.Unmarshal(b, &it); err != nil {
		return false, nil
	}
	if it.expired(f.now()) {
		_ = os.Remove(path)
		return false, nil
	}
	if err := json.Unmarshal(it.Data, dst); err != nil {
		return false, nil
	}
	return true, nil
}

func (f *File) Put(key string, v any, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, err := newItem(v, ttl, f.now())
	if err != nil {
		return err
	}
	b, err := json.Marshal(it)
	if err != nil {
		return fmt.Errorf("encode cache item: %w", err)
	}
	path := f.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write cache %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename cache %s: %w", key, err)
	}
	return nil
}

func (f *File) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete cache %s: %w", key, err)
	}
	return nil
}
