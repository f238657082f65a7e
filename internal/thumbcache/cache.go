// Package thumbcache stores generated thumbnails in two tiers: a bounded
// in-memory LRU in front of a directory on disk.
package thumbcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultCapacity is the number of thumbnails kept in memory.
const DefaultCapacity = 100

var (
	// ErrInvalidPath is returned when a key resolves outside the cache root.
	ErrInvalidPath = errors.New("thumbnail path outside cache root")
	// ErrNotCached is returned by Thumbnail on a miss with no Generator.
	ErrNotCached = errors.New("thumbnail not cached")
)

// Generator produces thumbnail bytes for a source file.
type Generator interface {
	Generate(ctx context.Context, sourcePath string, size int) ([]byte, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, sourcePath string, size int) ([]byte, error)

func (f GeneratorFunc) Generate(ctx context.Context, sourcePath string, size int) ([]byte, error) {
	return f(ctx, sourcePath, size)
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithGenerator sets the generator used by Thumbnail on a miss.
func WithGenerator(g Generator) Option {
	return func(c *Cache) { c.gen = g }
}

// Cache is safe for concurrent use.
type Cache struct {
	dir    string
	mem    *lru.Cache[string, []byte]
	gen    Generator
	group  singleflight.Group
	logger *zap.Logger
}

// Key derives the cache key for a source file at a thumbnail size.
func Key(sourcePath string, size int) string {
	sum := sha256.Sum256([]byte(sourcePath + ":" + strconv.Itoa(size)))
	return hex.EncodeToString(sum[:]) + ".webp"
}

// New creates a cache rooted at dir. The directory is created on first write.
func New(dir string, capacity int, opts ...Option) (*Cache, error) {
	if dir == "" {
		return nil, errors.New("thumbnail cache dir is required")
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve cache dir: %w", err)
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	mem, err := lru.New[string, []byte](capacity)
	if err != nil {
		return nil, fmt.Errorf("create memory tier: %w", err)
	}
	c := &Cache{dir: root, mem: mem, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Dir returns the cache root.
func (c *Cache) Dir() string {
	return c.dir
}

// Get returns cached bytes for key. Memory is checked first, then disk; a
// disk hit is promoted into memory. Unreadable files and invalid keys are
// reported as misses.
func (c *Cache) Get(_ context.Context, key string) ([]byte, bool) {
	if data, ok := c.mem.Get(key); ok {
		return data, true
	}
	path, err := c.Resolve(key)
	if err != nil {
		c.logger.Warn("thumbnail key rejected", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.logger.Debug("thumbnail read failed", zap.String("path", path), zap.Error(err))
		}
		return nil, false
	}
	c.mem.Add(key, data)
	return data, true
}

// Put stores data under key, in memory first and then on disk.
func (c *Cache) Put(_ context.Context, key string, data []byte) error {
	path, err := c.Resolve(key)
	if err != nil {
		return err
	}
	c.mem.Add(key, data)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create thumbnail dir: %w", err)
	}
	if err := c.checkDir(dir); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp thumbnail: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write temp thumbnail: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp thumbnail: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename temp thumbnail: %w", err)
	}
	return nil
}

// Thumbnail returns the cached thumbnail for sourcePath at size, generating
// and storing it on a miss. Concurrent misses for the same key share one
// generation.
func (c *Cache) Thumbnail(ctx context.Context, sourcePath string, size int) ([]byte, error) {
	key := Key(sourcePath, size)
	if data, ok := c.Get(ctx, key); ok {
		return data, nil
	}
	if c.gen == nil {
		return nil, ErrNotCached
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		data, err := c.gen.Generate(ctx, sourcePath, size)
		if err != nil {
			return nil, fmt.Errorf("generate thumbnail: %w", err)
		}
		if err := c.Put(ctx, key, data); err != nil {
			c.logger.Warn("thumbnail not persisted", zap.String("key", key), zap.Error(err))
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Resolve maps key to a file path directly under the cache root. Keys are
// flat file names: after unescaping, anything containing a separator, a NUL
// or resolving through a symlink to outside the root is rejected.
func (c *Cache) Resolve(key string) (string, error) {
	if k, err := url.PathUnescape(key); err == nil {
		key = k
	}
	if key == "" || key == "." || key == ".." || strings.ContainsRune(key, 0) || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, key)
	}
	path := filepath.Join(c.dir, key)
	if !within(c.dir, path) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, key)
	}
	if realRoot, err := filepath.EvalSymlinks(c.dir); err == nil {
		if realPath, err := filepath.EvalSymlinks(path); err == nil && !within(realRoot, realPath) {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, key)
		}
	}
	return path, nil
}

// checkDir verifies that dir, once created, is the cache root itself.
func (c *Cache) checkDir(dir string) error {
	realRoot, err := filepath.EvalSymlinks(c.dir)
	if err != nil {
		return fmt.Errorf("resolve thumbnail root: %w", err)
	}
	realDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return fmt.Errorf("resolve thumbnail dir: %w", err)
	}
	if realDir != realRoot {
		return fmt.Errorf("%w: %q", ErrInvalidPath, dir)
	}
	return nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Len returns the number of thumbnails held in memory.
func (c *Cache) Len() int {
	return c.mem.Len()
}

// Reset empties the memory tier. Disk contents are left alone.
func (c *Cache) Reset() {
	c.mem.Purge()
}
