// Package thumbcache persists pre-scaled thumbnails on disk.
//
// The cache mirrors the absolute source path under a root directory: the
// thumbnail of /home/u/pics/a.jpg lives at <root>/home/u/pics/a.jpg,
// whatever its encoded format. An entry is valid iff its modification time
// equals the source's. There is no content hashing and no index.
//
// A [Cache] is owned by one goroutine (the driving loop). Writes are best
// effort: failures are logged at debug level and counted, never returned.
package thumbcache

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/calvinalkan/thumbs/internal/logger"
	"github.com/calvinalkan/thumbs/internal/metrics"
	"github.com/calvinalkan/thumbs/pkg/fs"
)

var (
	// ErrNoCacheDir is returned by [ResolveRoot] when neither
	// XDG_CACHE_HOME nor HOME is set.
	ErrNoCacheDir = errors.New("cache directory not found")

	// ErrRootNotAbsolute is returned by [New] for relative roots.
	ErrRootNotAbsolute = errors.New("cache root must be absolute")

	// ErrGCBusy is returned by [Cache.GC] when another collection holds the lock.
	ErrGCBusy = errors.New("garbage collection already running")
)

const (
	dirPerm  = 0o755
	filePerm = 0o644

	// lockName is the GC lock file inside the root. GC never deletes it.
	lockName = ".gc.lock"
)

// Codec encodes thumbnails into cache files and decodes them back.
type Codec interface {
	DecodeStream(r io.Reader) (image.Image, error)
	Encode(w io.Writer, img image.Image) (format string, err error)
}

// Metrics receives cache observations. *metrics.CacheMetrics implements it.
type Metrics interface {
	ObserveLookup(result string, d time.Duration)
	ObserveWrite(format string, bytes int64, err error)
	ObserveRemove()
	ObserveGC(removed, kept int)
}

// Options configures a [Cache].
type Options struct {
	// Root is the absolute cache directory. It need not exist yet.
	Root string

	// Private disables every write. Loads still work.
	Private bool

	// FS and Codec are required.
	FS    fs.FS
	Codec Codec

	Logger  *slog.Logger
	Metrics Metrics
}

// Cache is the thumbnail disk cache rooted at one directory.
type Cache struct {
	root    string
	private bool
	fs      fs.FS
	writer  *fs.AtomicWriter
	locker  *fs.Locker
	codec   Codec
	log     *slog.Logger
	metrics Metrics
}

// New returns a cache for opts. The root directory is created lazily on the
// first write.
func New(opts Options) (*Cache, error) {
	if opts.FS == nil {
		panic("thumbcache: FS is nil")
	}

	if opts.Codec == nil {
		panic("thumbcache: Codec is nil")
	}

	if !filepath.IsAbs(opts.Root) {
		return nil, fmt.Errorf("%w: %q", ErrRootNotAbsolute, opts.Root)
	}

	m := opts.Metrics
	if m == nil {
		m = (*metrics.CacheMetrics)(nil)
	}

	log := logger.OrDiscard(opts.Logger).With(logger.KeyCacheRoot, filepath.Clean(opts.Root))

	return &Cache{
		root:    filepath.Clean(opts.Root),
		private: opts.Private,
		fs:      opts.FS,
		writer:  fs.NewAtomicWriter(opts.FS),
		locker:  fs.NewLocker(opts.FS),
		codec:   opts.Codec,
		log:     log,
		metrics: m,
	}, nil
}

// Root returns the cleaned cache root.
func (c *Cache) Root() string { return c.root }

// Private reports whether writes are disabled.
func (c *Cache) Private() bool { return c.private }

// Translate maps an absolute source path to its cache file path. It reports
// false for relative paths and for anything at or under the cache root, so
// the cache never caches itself.
func (c *Cache) Translate(path string) (string, bool) {
	if !filepath.IsAbs(path) {
		return "", false
	}

	path = filepath.Clean(path)

	if path == c.root || strings.HasPrefix(path, c.root+string(os.PathSeparator)) {
		return "", false
	}

	return c.root + path, true
}

// Load returns the cached thumbnail for path.
//
// It returns (nil, false) when there is no usable entry (source or entry
// missing, path uncacheable, cached file undecodable) and (nil, true) when
// the entry exists but its mtime differs from the source's.
func (c *Cache) Load(path string) (image.Image, bool) {
	start := time.Now()

	img, result := c.load(path)
	c.metrics.ObserveLookup(result, time.Since(start))

	return img, result == metrics.LookupOutdated
}

func (c *Cache) load(path string) (image.Image, string) {
	srcInfo, err := c.fs.Stat(path)
	if err != nil {
		return nil, metrics.LookupMiss
	}

	cfile, ok := c.Translate(path)
	if !ok {
		return nil, metrics.LookupUncacheable
	}

	cacheInfo, err := c.fs.Stat(cfile)
	if err != nil {
		return nil, metrics.LookupMiss
	}

	if !cacheInfo.ModTime().Equal(srcInfo.ModTime()) {
		return nil, metrics.LookupOutdated
	}

	f, err := c.fs.Open(cfile)
	if err != nil {
		c.log.Debug("cache open failed", logger.KeyCachePath, cfile, logger.Err(err))

		return nil, metrics.LookupMiss
	}
	defer f.Close()

	img, err := c.codec.DecodeStream(f)
	if err != nil {
		c.log.Debug("cache entry corrupt", logger.KeyCachePath, cfile, logger.Err(err))

		return nil, metrics.LookupCorrupt
	}

	return img, metrics.LookupHit
}

// Write stores img as the thumbnail of path. Unless force is set, an
// existing entry whose mtime matches the source is left alone. Nothing is
// written in private mode.
//
// The file is encoded into a temp file next to the target, stamped with the
// source mtime and renamed into place, so readers never see partial
// thumbnails or a fresh file with a stale timestamp.
func (c *Cache) Write(img image.Image, path string, force bool) {
	if c.private {
		return
	}

	srcInfo, err := c.fs.Stat(path)
	if err != nil {
		return
	}

	cfile, ok := c.Translate(path)
	if !ok {
		return
	}

	if !force {
		cacheInfo, err := c.fs.Stat(cfile)
		if err == nil && cacheInfo.ModTime().Equal(srcInfo.ModTime()) {
			return
		}
	}

	format, n, err := c.write(img, cfile, srcInfo.ModTime())
	c.metrics.ObserveWrite(format, n, err)

	if err != nil {
		c.log.Debug("cache write failed", logger.KeyPath, path, logger.KeyCachePath, cfile, logger.Err(err))

		return
	}

	c.log.Debug("cache write", logger.KeyPath, path, logger.KeyCachePath, cfile)
}

func (c *Cache) write(img image.Image, cfile string, mtime time.Time) (string, int64, error) {
	var buf bytes.Buffer

	format, err := c.codec.Encode(&buf, img)
	if err != nil {
		return format, 0, fmt.Errorf("encode: %w", err)
	}

	err = c.fs.MkdirAll(filepath.Dir(cfile), dirPerm)
	if err != nil {
		return format, 0, fmt.Errorf("create cache dir: %w", err)
	}

	n := int64(buf.Len())

	err = c.writer.Write(cfile, &buf, fs.AtomicWriteOptions{
		Perm:    filePerm,
		ModTime: mtime,
	})
	if err != nil {
		return format, 0, err
	}

	return format, n, nil
}

// Remove deletes the entry for path if there is one.
func (c *Cache) Remove(path string) {
	cfile, ok := c.Translate(path)
	if !ok {
		return
	}

	err := c.fs.Remove(cfile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.log.Debug("cache remove failed", logger.KeyCachePath, cfile, logger.Err(err))
		}

		return
	}

	c.metrics.ObserveRemove()
}
