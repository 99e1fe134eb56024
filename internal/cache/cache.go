// Package cache provides a two-tier (memory + disk) memoization cache.
//
// Values are keyed by a fingerprint of (namespace, args...). The cache is
// strictly advisory: a miss or a failed write only costs time, never
// correctness. Keys that incorporate a file's modification time naturally
// miss after the file is rebuilt.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/twmb/murmur3"
)

const memSize = 512

type Cache struct {
	dir     string
	enabled bool
	mem     *lru.Cache[string, json.RawMessage]
}

// New creates a cache rooted at dir. If enabled is false every Get misses
// and every Set is a no-op.
func New(dir string, enabled bool) (*Cache, error) {
	if enabled {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache dir %s: %w", dir, err)
		}
	}
	mem, err := lru.New[string, json.RawMessage](memSize)
	if err != nil {
		return nil, err
	}
	return &Cache{
		dir:     dir,
		enabled: enabled,
		mem:     mem,
	}, nil
}

// Fingerprint derives a fixed-length key from a namespace and its arguments.
func Fingerprint(namespace string, args ...string) string {
	h1, h2 := murmur3.StringSum128(namespace + ":" + strings.Join(args, ":"))
	return fmt.Sprintf("%016x%016x", h1, h2)
}

// Get looks up (namespace, args...) and unmarshals the cached payload into v.
// It returns false on any miss or decode failure.
func (c *Cache) Get(v any, namespace string, args ...string) bool {
	if !c.enabled {
		return false
	}

	key := Fingerprint(namespace, args...)

	if raw, ok := c.mem.Get(key); ok {
		if err := json.Unmarshal(raw, v); err == nil {
			return true
		}
		c.mem.Remove(key)
	}

	data, err := os.ReadFile(c.path(key))
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		// stale or corrupt entry, drop it
		os.Remove(c.path(key))
		return false
	}
	c.mem.Add(key, json.RawMessage(data))
	return true
}

// Set stores v under (namespace, args...). Failures are swallowed; the disk
// tier is best-effort persistence only.
func (c *Cache) Set(v any, namespace string, args ...string) {
	if !c.enabled {
		return
	}

	key := Fingerprint(namespace, args...)

	data, err := json.Marshal(v)
	if err != nil {
		log.WithError(err).Debugf("failed to marshal cache entry %s", namespace)
		return
	}

	c.mem.Add(key, json.RawMessage(data))

	if err := os.WriteFile(c.path(key), data, 0o644); err != nil {
		log.WithError(err).Debugf("failed to persist cache entry %s", namespace)
	}
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key+".json")
}
