// Package cache keeps computed JSON payloads (the dashboard summary) so
// page loads do not rescan the sales table.
package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const (
	DefaultMaxAge = 24 * time.Hour
	stampKey      = "_cached_at"
	DashboardKey  = "dashboard"
)

// Cache stores JSON objects by key. Read reports false on a miss and,
// unless allowStale is set, for entries older than the max age.
type Cache interface {
	Read(ctx context.Context, key string, allowStale bool) (map[string]interface{}, bool)
	Write(ctx context.Context, key string, data map[string]interface{}) error
	CachedAt(ctx context.Context, key string) *time.Time
	Delete(ctx context.Context, key string) error
}

func stamp(data map[string]interface{}, now time.Time) ([]byte, error) {
	payload := make(map[string]interface{}, len(data)+1)
	for k, v := range data {
		payload[k] = v
	}
	payload[stampKey] = now.UTC().Format(time.RFC3339)
	return json.MarshalIndent(payload, "", "  ")
}

func parseStamp(m map[string]interface{}) (time.Time, bool) {
	ts, ok := m[stampKey].(string)
	if !ok || ts == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		t, err = time.Parse("2006-01-02T15:04:05.999999", ts)
		if err != nil {
			return time.Time{}, false
		}
	}
	return t, true
}

// decode parses a stored payload and applies the freshness rule.
func decode(data []byte, allowStale bool, maxAge time.Duration, now time.Time) (map[string]interface{}, bool) {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, false
	}
	cachedAt, ok := parseStamp(m)
	if !ok {
		return nil, false
	}
	if !allowStale && now.Sub(cachedAt) > maxAge {
		return nil, false
	}
	return m, true
}

// File keeps one JSON file per key under a directory.
type File struct {
	dir    string
	maxAge time.Duration
	now    func() time.Time
	mu     sync.RWMutex
}

func NewFile(dir string, maxAge time.Duration) *File {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &File{dir: dir, maxAge: maxAge, now: time.Now}
}

func (f *File) path(key string) string {
	name := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == '.' {
			return '_'
		}
		return r
	}, key)
	return filepath.Join(f.dir, name+"_cache.json")
}

func (f *File) Read(_ context.Context, key string, allowStale bool) (map[string]interface{}, bool) {
	f.mu.RLock()
	data, err := os.ReadFile(f.path(key))
	f.mu.RUnlock()
	if err != nil {
		return nil, false
	}
	return decode(data, allowStale, f.maxAge, f.now())
}

func (f *File) Write(_ context.Context, key string, data map[string]interface{}) error {
	body, err := stamp(data, f.now())
	if err != nil {
		return errors.Wrap(err, "cache Marshal")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return errors.Wrap(err, "cache MkdirAll")
	}
	return errors.Wrap(os.WriteFile(f.path(key), body, 0600), "cache WriteFile")
}

func (f *File) CachedAt(ctx context.Context, key string) *time.Time {
	m, ok := f.Read(ctx, key, true)
	if !ok {
		return nil
	}
	t, _ := parseStamp(m)
	return &t
}

func (f *File) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := os.Remove(f.path(key))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "cache Remove")
	}
	return nil
}
