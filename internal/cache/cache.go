// Package cache keeps projected graphs on disk so that large mindmaps are
// not re-projected every time the same document is rendered or served.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/recera/perplexia/pkg/mindmap"
)

const indexVersion = "2"

// Cache stores projected graphs keyed by the hash of their input
type Cache struct {
	mu       sync.Mutex
	dir      string
	index    *Index
	maxSize  int64
	maxAge   time.Duration
	strategy EvictionStrategy
	stats    Stats
	logger   *zap.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

// Index tracks all cached entries
type Index struct {
	Version string            `json:"version"`
	Entries map[string]*Entry `json:"entries"`
	Updated time.Time         `json:"updated"`
}

// Entry is one cached graph
type Entry struct {
	Key         string    `json:"key"`
	Title       string    `json:"title,omitempty"`
	File        string    `json:"file"`
	Size        int64     `json:"size"`
	Created     time.Time `json:"created"`
	LastAccess  time.Time `json:"last_access"`
	AccessCount int       `json:"access_count"`
}

// Stats tracks cache performance
type Stats struct {
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Evictions  int64 `json:"evictions"`
	TotalSize  int64 `json:"total_size"`
	EntryCount int   `json:"entry_count"`
}

// EvictionStrategy defines which entry goes first when the cache is full
type EvictionStrategy int

const (
	// LRU removes least recently used entries
	LRU EvictionStrategy = iota
	// FIFO removes oldest entries first
	FIFO
)

// Config holds cache configuration
type Config struct {
	Dir      string
	MaxSize  int64         // bytes, 0 means unbounded
	MaxAge   time.Duration // 0 means entries never expire
	Strategy EvictionStrategy
	Logger   *zap.Logger
}

// DefaultConfig returns the default cache configuration
func DefaultConfig() Config {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return Config{
		Dir:      filepath.Join(dir, "perplexia"),
		MaxSize:  64 << 20,
		MaxAge:   7 * 24 * time.Hour,
		Strategy: LRU,
	}
}

// New opens the cache in config.Dir, loading any existing index
func New(config Config) (*Cache, error) {
	if config.Dir == "" {
		d := DefaultConfig()
		config.Dir = d.Dir
	}
	if err := os.MkdirAll(filepath.Join(config.Dir, "graphs"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Cache{
		dir:      config.Dir,
		index:    newIndex(),
		maxSize:  config.MaxSize,
		maxAge:   config.MaxAge,
		strategy: config.Strategy,
		logger:   logger.Named("cache"),
		stopCh:   make(chan struct{}),
	}

	if err := c.loadIndex(); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("discarding unreadable cache index", zap.Error(err))
		c.index = newIndex()
	}
	c.mu.Lock()
	c.expireLocked()
	c.mu.Unlock()

	go c.cleanup()
	return c, nil
}

func newIndex() *Index {
	return &Index{
		Version: indexVersion,
		Entries: make(map[string]*Entry),
		Updated: time.Now(),
	}
}

// Key derives a cache key from the raw mindmap document and the palette it
// is projected with
func Key(raw []byte, palette *mindmap.Palette) string {
	h := sha256.New()
	h.Write(raw)
	if palette != nil {
		p, _ := json.Marshal(palette)
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a cached graph
func (c *Cache) Get(key string) (mindmap.Graph, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.index.Entries[key]
	if !ok {
		c.stats.Misses++
		return mindmap.Graph{}, false
	}
	if c.isExpired(entry) {
		c.removeLocked(key, entry)
		c.stats.Misses++
		return mindmap.Graph{}, false
	}

	data, err := os.ReadFile(filepath.Join(c.dir, "graphs", entry.File))
	var g mindmap.Graph
	if err == nil {
		err = json.Unmarshal(data, &g)
	}
	if err != nil {
		c.logger.Debug("dropping unreadable cache entry", zap.String("key", key), zap.Error(err))
		c.removeLocked(key, entry)
		c.stats.Misses++
		return mindmap.Graph{}, false
	}

	entry.LastAccess = time.Now()
	entry.AccessCount++
	c.stats.Hits++
	return g, true
}

// Put stores a graph under key, evicting entries to stay within MaxSize
func (c *Cache) Put(key string, g mindmap.Graph) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to encode graph: %w", err)
	}
	size := int64(len(data))

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.index.Entries[key]; ok {
		c.removeLocked(key, old)
	}
	c.ensureSpaceLocked(size)

	file := key + ".json"
	if err := os.WriteFile(filepath.Join(c.dir, "graphs", file), data, 0o644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	now := time.Now()
	c.index.Entries[key] = &Entry{
		Key:        key,
		Title:      g.Title,
		File:       file,
		Size:       size,
		Created:    now,
		LastAccess: now,
	}
	c.stats.TotalSize += size
	c.stats.EntryCount = len(c.index.Entries)
	c.index.Updated = now

	return c.saveIndexLocked()
}

// Project returns the projection of m, consulting the cache first. raw is
// the document m was decoded from and is what the key is derived from.
func (c *Cache) Project(raw []byte, m *mindmap.RawMindmap, palette *mindmap.Palette) mindmap.Graph {
	key := Key(raw, palette)
	if g, ok := c.Get(key); ok {
		return g
	}
	g := mindmap.Project(m, palette)
	if err := c.Put(key, g); err != nil {
		c.logger.Warn("failed to cache graph", zap.String("title", g.Title), zap.Error(err))
	}
	return g
}

// ProjectMindmap is Project for callers holding only the decoded mindmap.
// The key is taken from m's canonical JSON encoding.
func (c *Cache) ProjectMindmap(m *mindmap.RawMindmap, palette *mindmap.Palette) mindmap.Graph {
	if m == nil {
		return mindmap.Project(nil, palette)
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return mindmap.Project(m, palette)
	}
	return c.Project(raw, m, palette)
}

// Delete removes an entry
func (c *Cache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.index.Entries[key]
	if !ok {
		return nil
	}
	c.removeLocked(key, entry)
	return c.saveIndexLocked()
}

// Clear removes every entry and resets the statistics
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	graphs := filepath.Join(c.dir, "graphs")
	if err := os.RemoveAll(graphs); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	if err := os.MkdirAll(graphs, 0o755); err != nil {
		return fmt.Errorf("failed to recreate cache directory: %w", err)
	}
	c.index = newIndex()
	c.stats = Stats{}
	return c.saveIndexLocked()
}

// GetStats returns a snapshot of the statistics
func (c *Cache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Close stops background cleanup and writes the index
func (c *Cache) Close() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveIndexLocked()
}

func (c *Cache) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(c.dir, "index.json"))
	if err != nil {
		return err
	}

	var index Index
	if err := json.Unmarshal(data, &index); err != nil {
		return err
	}
	if index.Version != indexVersion {
		return fmt.Errorf("index version %q, want %q", index.Version, indexVersion)
	}
	if index.Entries == nil {
		index.Entries = make(map[string]*Entry)
	}
	c.index = &index

	for _, entry := range c.index.Entries {
		c.stats.TotalSize += entry.Size
	}
	c.stats.EntryCount = len(c.index.Entries)
	return nil
}

func (c *Cache) saveIndexLocked() error {
	data, err := json.MarshalIndent(c.index, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.dir, "index.json"), data, 0o644)
}

func (c *Cache) isExpired(entry *Entry) bool {
	if c.maxAge <= 0 {
		return false
	}
	return time.Since(entry.Created) > c.maxAge
}

func (c *Cache) ensureSpaceLocked(needed int64) {
	if c.maxSize <= 0 {
		return
	}

	for c.stats.TotalSize+needed > c.maxSize && len(c.index.Entries) > 0 {
		var (
			evictKey   string
			evictEntry *Entry
		)
		for key, entry := range c.index.Entries {
			if evictEntry == nil || c.older(entry, evictEntry) {
				evictKey, evictEntry = key, entry
			}
		}
		c.removeLocked(evictKey, evictEntry)
		c.stats.Evictions++
	}
}

// older reports whether a should be evicted before b
func (c *Cache) older(a, b *Entry) bool {
	if c.strategy == FIFO {
		return a.Created.Before(b.Created)
	}
	return a.LastAccess.Before(b.LastAccess)
}

func (c *Cache) expireLocked() int {
	n := 0
	for key, entry := range c.index.Entries {
		if c.isExpired(entry) {
			c.removeLocked(key, entry)
			n++
		}
	}
	return n
}

func (c *Cache) cleanup() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			if c.expireLocked() > 0 {
				c.index.Updated = time.Now()
				if err := c.saveIndexLocked(); err != nil {
					c.logger.Warn("failed to save cache index", zap.Error(err))
				}
			}
			c.mu.Unlock()
		case <-c.stopCh:
			return
		}
	}
}

func (c *Cache) removeLocked(key string, entry *Entry) {
	path := filepath.Join(c.dir, "graphs", entry.File)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("failed to remove cache file", zap.String("path", path), zap.Error(err))
	}
	delete(c.index.Entries, key)
	c.stats.TotalSize -= entry.Size
	c.stats.EntryCount = len(c.index.Entries)
}
