package thumbcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

func newCache(t *testing.T, capacity int, opts ...Option) *Cache {
	t.Helper()
	c, err := New(filepath.Join(t.TempDir(), "thumbs"), capacity, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestKey(t *testing.T) {
	k := Key("/a/IMG_1.heic", 256)
	if !strings.HasSuffix(k, ".webp") || len(k) != 64+len(".webp") {
		t.Errorf("Key = %q, want 64 hex chars + .webp", k)
	}
	if k != Key("/a/IMG_1.heic", 256) {
		t.Error("Key is not deterministic")
	}
	if k == Key("/a/IMG_1.heic", 512) {
		t.Error("different sizes must produce different keys")
	}
	sum := sha256.Sum256([]byte("x:1"))
	if got, want := Key("x", 1), hex.EncodeToString(sum[:])+".webp"; got != want {
		t.Errorf("Key(x, 1) = %q, want %q", got, want)
	}
}

func TestPutGet(t *testing.T) {
	c := newCache(t, 10)
	ctx := context.Background()
	key := Key("/src.jpg", 128)

	if _, ok := c.Get(ctx, key); ok {
		t.Fatal("expected miss on empty cache")
	}
	if err := c.Put(ctx, key, []byte("thumb")); err != nil {
		t.Fatal(err)
	}
	data, ok := c.Get(ctx, key)
	if !ok || string(data) != "thumb" {
		t.Errorf("Get = %q, %v", data, ok)
	}
	if _, err := os.Stat(filepath.Join(c.Dir(), key)); err != nil {
		t.Errorf("disk tier missing file: %v", err)
	}
}

func TestDiskHitPromotesToMemory(t *testing.T) {
	c := newCache(t, 10)
	ctx := context.Background()
	key := Key("/src.jpg", 128)
	if err := c.Put(ctx, key, []byte("thumb")); err != nil {
		t.Fatal(err)
	}

	c.Reset()
	if c.Len() != 0 {
		t.Fatalf("Len after Reset = %d", c.Len())
	}
	if data, ok := c.Get(ctx, key); !ok || string(data) != "thumb" {
		t.Fatalf("disk hit = %q, %v", data, ok)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1 after promotion", c.Len())
	}

	// Served from memory even after the file is gone.
	if err := os.Remove(filepath.Join(c.Dir(), key)); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get(ctx, key); !ok {
		t.Error("expected memory hit")
	}
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := newCache(t, 2)
	ctx := context.Background()
	for _, k := range []string{"a.webp", "b.webp"} {
		if err := c.Put(ctx, k, []byte(k)); err != nil {
			t.Fatal(err)
		}
	}
	c.Get(ctx, "a.webp") // a is now most recent
	if err := c.Put(ctx, "c.webp", []byte("c")); err != nil {
		t.Fatal(err)
	}

	// b was evicted from memory; remove disk copies to observe the memory tier.
	for _, k := range []string{"a.webp", "b.webp", "c.webp"} {
		_ = os.Remove(filepath.Join(c.Dir(), k))
	}
	if _, ok := c.Get(ctx, "b.webp"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.Get(ctx, "a.webp"); !ok {
		t.Error("a should still be cached")
	}
	if _, ok := c.Get(ctx, "c.webp"); !ok {
		t.Error("c should still be cached")
	}
}

func TestInvalidPath(t *testing.T) {
	c := newCache(t, 10)
	ctx := context.Background()

	outside := filepath.Join(filepath.Dir(c.Dir()), "escaped.webp")
	for _, key := range []string{
		"../escaped.webp",
		"..%2fescaped.webp",
		"%2e%2e/escaped.webp",
		"a/../../escaped.webp",
		"sub/nested.webp",
		"sub%2fnested.webp",
		`sub\nested.webp`,
		"..",
		"",
		".",
	} {
		t.Run(key, func(t *testing.T) {
			if err := c.Put(ctx, key, []byte("x")); !errors.Is(err, ErrInvalidPath) {
				t.Errorf("Put(%q) err = %v, want ErrInvalidPath", key, err)
			}
			if _, ok := c.Get(ctx, key); ok {
				t.Errorf("Get(%q) hit, want miss", key)
			}
		})
	}
	if _, err := os.Stat(outside); !os.IsNotExist(err) {
		t.Errorf("file written outside root: %v", err)
	}
}

func TestSymlinkEscape(t *testing.T) {
	c := newCache(t, 10)
	ctx := context.Background()
	if err := os.MkdirAll(c.Dir(), 0o700); err != nil {
		t.Fatal(err)
	}
	secret := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(secret, []byte("secret"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(secret, filepath.Join(c.Dir(), "link.webp")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if _, ok := c.Get(ctx, "link.webp"); ok {
		t.Error("symlink outside root should be a miss")
	}
}

func TestSymlinkedSubdirWriteRejected(t *testing.T) {
	c := newCache(t, 10)
	ctx := context.Background()
	if err := os.MkdirAll(c.Dir(), 0o700); err != nil {
		t.Fatal(err)
	}
	outside := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(c.Dir(), "sub")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	for _, key := range []string{"sub/pwn.webp", "sub%2Fpwn.webp"} {
		if err := c.Put(ctx, key, []byte("x")); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Put(%q) err = %v, want ErrInvalidPath", key, err)
		}
	}
	entries, err := os.ReadDir(outside)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("wrote %d files outside the cache root", len(entries))
	}
}

func TestSymlinkedRootIsAllowed(t *testing.T) {
	target := t.TempDir()
	root := filepath.Join(t.TempDir(), "thumbs")
	if err := os.Symlink(target, root); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	c, err := New(root, 10)
	if err != nil {
		t.Fatal(err)
	}
	key := Key("/a.jpg", 64)
	if err := c.Put(context.Background(), key, []byte("x")); err != nil {
		t.Fatalf("Put through symlinked root: %v", err)
	}
	if _, err := os.Stat(filepath.Join(target, key)); err != nil {
		t.Errorf("thumbnail not in real root: %v", err)
	}
}

func TestUnreadableFileIsSoftMiss(t *testing.T) {
	c := newCache(t, 10)
	ctx := context.Background()
	// A directory where a file is expected makes ReadFile fail.
	if err := os.MkdirAll(filepath.Join(c.Dir(), "dir.webp"), 0o700); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get(ctx, "dir.webp"); ok {
		t.Error("expected miss")
	}
}

func TestThumbnailGeneratesOnce(t *testing.T) {
	var calls atomic.Int32
	gen := GeneratorFunc(func(ctx context.Context, src string, size int) ([]byte, error) {
		calls.Add(1)
		return []byte(src), nil
	})
	c := newCache(t, 10, WithGenerator(gen))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := c.Thumbnail(ctx, "/photo.jpg", 64)
			if err != nil || string(data) != "/photo.jpg" {
				t.Errorf("Thumbnail = %q, %v", data, err)
			}
		}()
	}
	wg.Wait()
	if _, err := c.Thumbnail(ctx, "/photo.jpg", 64); err != nil {
		t.Fatal(err)
	}
	// Concurrent callers may race the first Put, but a warm cache never
	// regenerates.
	before := calls.Load()
	if _, err := c.Thumbnail(ctx, "/photo.jpg", 64); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != before {
		t.Error("warm cache regenerated")
	}
}

func TestThumbnailWithoutGenerator(t *testing.T) {
	c := newCache(t, 10)
	if _, err := c.Thumbnail(context.Background(), "/photo.jpg", 64); !errors.Is(err, ErrNotCached) {
		t.Errorf("err = %v, want ErrNotCached", err)
	}
}

func TestNewRequiresDir(t *testing.T) {
	if _, err := New("", 10); err == nil {
		t.Error("expected error for empty dir")
	}
}
