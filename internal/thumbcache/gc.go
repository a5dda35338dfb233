package thumbcache

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/calvinalkan/thumbs/internal/logger"
	"github.com/calvinalkan/thumbs/pkg/fs"
)

// GCStats summarizes one garbage collection run.
type GCStats struct {
	Removed int // entries whose source no longer exists
	Kept    int // entries whose source exists (fresh or not)
	Failed  int // entries that could not be checked or removed
}

// GC deletes every cache entry whose source file no longer exists.
//
// It holds an exclusive lock on <root>/.gc.lock for the whole walk and
// returns [ErrGCBusy] if another process is collecting. A missing root is
// not an error. Cancellation is checked between entries; the stats gathered
// so far are returned with the context error.
func (c *Cache) GC(ctx context.Context) (GCStats, error) {
	var stats GCStats

	exists, err := c.fs.Exists(c.root)
	if err != nil {
		return stats, fmt.Errorf("stat cache root: %w", err)
	}

	if !exists {
		return stats, nil
	}

	lockPath := filepath.Join(c.root, lockName)

	lock, err := c.locker.TryLock(lockPath)
	if err != nil {
		if errors.Is(err, fs.ErrWouldBlock) {
			return stats, ErrGCBusy
		}

		return stats, fmt.Errorf("lock cache: %w", err)
	}

	defer func() {
		closeErr := lock.Close()
		if closeErr != nil {
			c.log.Warn("releasing gc lock", logger.Err(closeErr))
		}
	}()

	walkErr := fs.WalkDir(c.fs, c.root, func(path string, d iofs.DirEntry, err error) error {
		ctxErr := ctx.Err()
		if ctxErr != nil {
			return ctxErr
		}

		if err != nil {
			if path == c.root {
				return err
			}

			stats.Failed++
			c.log.Debug("gc walk", logger.KeyCachePath, path, logger.Err(err))

			return nil
		}

		if d.IsDir() || path == lockPath || fs.IsAtomicTempName(d.Name()) {
			return nil
		}

		c.collect(path, &stats)

		return nil
	})

	c.metrics.ObserveGC(stats.Removed, stats.Kept)

	if walkErr != nil {
		return stats, fmt.Errorf("walk cache: %w", walkErr)
	}

	return stats, nil
}

func (c *Cache) collect(cfile string, stats *GCStats) {
	source := strings.TrimPrefix(cfile, c.root)

	exists, err := c.fs.Exists(source)
	if err != nil {
		stats.Failed++
		c.log.Debug("gc stat source", logger.KeyPath, source, logger.Err(err))

		return
	}

	if exists {
		stats.Kept++

		return
	}

	err = c.fs.Remove(cfile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		stats.Failed++
		c.log.Debug("gc remove", logger.KeyCachePath, cfile, logger.Err(err))

		return
	}

	stats.Removed++
	c.log.Debug("gc removed orphan", logger.KeyCachePath, cfile)
}
