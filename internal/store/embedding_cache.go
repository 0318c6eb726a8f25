package store

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/gofrs/flock"

	"github.com/Aman-CERP/ragcontext/internal/errors"
)

// CacheVersion is the on-disk format version of the embedding cache.
const CacheVersion = 1

// cacheFile is the JSON layout of the cache.
type cacheFile struct {
	Version     int                  `json:"version"`
	Model       string               `json:"model"`
	Fingerprint *string              `json:"fingerprint"`
	Items       map[string][]float32 `json:"items"`
}

// EmbeddingCache maps chunk ids to embedding vectors and persists them.
//
// A cache file is trusted only if its version, model and corpus fingerprint
// all match; otherwise it is ignored in full. Writes go to path+".tmp" and
// are renamed over path under a cross-process file lock, so readers never
// observe a partial file.
type EmbeddingCache struct {
	path        string
	model       string
	fingerprint *string

	mu         sync.RWMutex
	items      map[int][]float32
	gen        uint64 // bumped by every Put
	flushedGen uint64 // gen covered by the last successful Flush

	flushMu  sync.Mutex
	lock     *flock.Flock
	detached bool // guarded by flushMu
}

// NewEmbeddingCache creates an empty cache bound to a model and corpus
// revision. An empty path disables persistence.
func NewEmbeddingCache(path, model string, fingerprint *string) *EmbeddingCache {
	c := &EmbeddingCache{
		path:        path,
		model:       model,
		fingerprint: fingerprint,
		items:       make(map[int][]float32),
	}
	if path != "" {
		c.lock = flock.New(path + ".lock")
	}
	return c
}

// Path returns the cache file path.
func (c *EmbeddingCache) Path() string { return c.path }

// Model returns the model the cache is bound to.
func (c *EmbeddingCache) Model() string { return c.model }

// Fingerprint returns the corpus fingerprint the cache is bound to.
func (c *EmbeddingCache) Fingerprint() *string { return c.fingerprint }

// Load reads the cache file. A missing file is not an error. On any other
// failure, including a single malformed entry, the cache stays empty and a
// typed error is returned for logging.
func (c *EmbeddingCache) Load() error {
	if c.path == "" {
		return nil
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return errors.New(errors.ErrCodeCacheCorrupt, "cannot read embedding cache", err).
			WithDetail("path", c.path)
	}

	var file cacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		return errors.New(errors.ErrCodeCacheCorrupt, "embedding cache is not valid JSON", err).
			WithDetail("path", c.path)
	}

	switch {
	case file.Version != CacheVersion:
		return staleCache(c.path, "version", strconv.Itoa(file.Version))
	case file.Model != c.model:
		return staleCache(c.path, "model", file.Model)
	case !sameFingerprint(file.Fingerprint, c.fingerprint):
		return staleCache(c.path, "fingerprint", deref(file.Fingerprint))
	}

	items := make(map[int][]float32, len(file.Items))
	for key, vec := range file.Items {
		id, err := strconv.Atoi(key)
		if err != nil || id < 0 {
			return errors.New(errors.ErrCodeCacheCorrupt,
				fmt.Sprintf("embedding cache has an invalid chunk id %q", key), err).
				WithDetail("path", c.path)
		}
		if len(vec) == 0 {
			return errors.New(errors.ErrCodeCacheCorrupt,
				fmt.Sprintf("embedding cache has an empty vector for chunk %d", id), nil).
				WithDetail("path", c.path)
		}
		items[id] = vec
	}

	c.mu.Lock()
	c.items = items
	c.mu.Unlock()
	return nil
}

func staleCache(path, field, got string) error {
	return errors.New(errors.ErrCodeCacheStale,
		fmt.Sprintf("embedding cache %s does not match (found %q)", field, got), nil).
		WithDetail("path", path)
}

func sameFingerprint(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func deref(s *string) string {
	if s == nil {
		return "null"
	}
	return *s
}

// Get returns the vector of a chunk.
func (c *EmbeddingCache) Get(id int) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[id]
	return v, ok
}

// Put stores a vector and marks the cache dirty. Empty vectors are ignored.
func (c *EmbeddingCache) Put(id int, vec []float32) {
	if len(vec) == 0 {
		return
	}
	c.mu.Lock()
	c.items[id] = vec
	c.gen++
	c.mu.Unlock()
}

// Missing returns the ids without a vector, in input order.
func (c *EmbeddingCache) Missing(ids []int) []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []int
	for _, id := range ids {
		if _, ok := c.items[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// Len returns the number of cached vectors.
func (c *EmbeddingCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Dirty reports whether entries were added since the last successful flush.
func (c *EmbeddingCache) Dirty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen != c.flushedGen
}

// Flush writes the cache when dirty. On failure the cache stays dirty so a
// later flush retries; entries added while writing keep it dirty as well.
func (c *EmbeddingCache) Flush() error {
	if c.path == "" {
		return nil
	}

	c.flushMu.Lock()
	defer c.flushMu.Unlock()
	if c.detached {
		return nil
	}

	c.mu.RLock()
	if c.gen == c.flushedGen {
		c.mu.RUnlock()
		return nil
	}
	gen := c.gen
	file := cacheFile{
		Version:     CacheVersion,
		Model:       c.model,
		Fingerprint: c.fingerprint,
		Items:       make(map[string][]float32, len(c.items)),
	}
	for id, vec := range c.items {
		file.Items[strconv.Itoa(id)] = vec
	}
	c.mu.RUnlock()

	data, err := json.Marshal(file)
	if err != nil {
		return errors.New(errors.ErrCodeCacheWriteFailed, "cannot encode embedding cache", err)
	}

	if err := c.writeAtomic(data); err != nil {
		return errors.New(errors.ErrCodeCacheWriteFailed, "cannot write embedding cache", err).
			WithDetail("path", c.path)
	}

	c.mu.Lock()
	if gen > c.flushedGen {
		c.flushedGen = gen
	}
	c.mu.Unlock()
	return nil
}

// Detach stops writing to the cache file. Vectors stay readable in memory
// and later flushes are no-ops. A flush in progress completes first.
func (c *EmbeddingCache) Detach() {
	c.flushMu.Lock()
	c.detached = true
	c.flushMu.Unlock()
}

func (c *EmbeddingCache) writeAtomic(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	if err := c.lock.Lock(); err != nil {
		return fmt.Errorf("acquire cache lock: %w", err)
	}
	defer func() { _ = c.lock.Unlock() }()

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// IDs returns the cached chunk ids in ascending order.
func (c *EmbeddingCache) IDs() []int {
	c.mu.RLock()
	ids := make([]int, 0, len(c.items))
	for id := range c.items {
		ids = append(ids, id)
	}
	c.mu.RUnlock()
	sort.Ints(ids)
	return ids
}
