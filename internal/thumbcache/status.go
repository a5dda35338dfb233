package thumbcache

import "fmt"

// Status describes the cache entry of one source file.
type Status int

const (
	// StatusMissing means there is no entry.
	StatusMissing Status = iota
	// StatusFresh means the entry exists and its mtime matches the source.
	StatusFresh
	// StatusOutdated means the entry exists but the source changed.
	StatusOutdated
	// StatusUncacheable means the path can never be cached (relative, or
	// inside the cache root).
	StatusUncacheable
)

func (s Status) String() string {
	switch s {
	case StatusMissing:
		return "missing"
	case StatusFresh:
		return "fresh"
	case StatusOutdated:
		return "outdated"
	case StatusUncacheable:
		return "uncacheable"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Status reports the state of the entry for path without decoding it. The
// error is non-nil only when the source itself cannot be stat'ed.
func (c *Cache) Status(path string) (Status, error) {
	cfile, ok := c.Translate(path)
	if !ok {
		return StatusUncacheable, nil
	}

	srcInfo, err := c.fs.Stat(path)
	if err != nil {
		return StatusMissing, fmt.Errorf("stat source: %w", err)
	}

	cacheInfo, err := c.fs.Stat(cfile)
	if err != nil {
		return StatusMissing, nil //nolint:nilerr // a missing entry is a status, not a failure
	}

	if !cacheInfo.ModTime().Equal(srcInfo.ModTime()) {
		return StatusOutdated, nil
	}

	return StatusFresh, nil
}
