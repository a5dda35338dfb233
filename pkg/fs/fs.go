// Package fs provides filesystem abstractions for testing and fault injection.
//
// The main types are:
//   - [FS]: interface for filesystem operations
//   - [File]: interface for open files (satisfied by [os.File])
//   - [Real]: production implementation using [os] package
//   - [Chaos]: testing implementation that injects random failures
//   - [AtomicWriter]: temp file + rename writes on top of any [FS]
//   - [Locker]: advisory flock(2) locks on top of any [FS]
//
// Example usage:
//
//	fsys := fs.NewReal()
//	f, err := fsys.Open("thumb.png")
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
//
//	img, _, err := image.Decode(f)
package fs

import (
	"io"
	iofs "io/fs"
	"os"
	"time"
)

// File represents an OS-backed open file descriptor.
//
// This interface is satisfied by [os.File] and can be used with all
// standard library functions that accept [io.Reader], [io.Writer],
// [io.Seeker], or [io.Closer].
//
// Implementations must behave like [os.File], including that [File.Fd]
// returns a valid OS file descriptor usable with syscalls (for example
// flock) until the file is closed.
type File interface {
	io.ReadWriteCloser
	io.Seeker

	// Fd returns the file descriptor. See [os.File.Fd].
	Fd() uintptr

	// Stat returns the [os.FileInfo] for this file. See [os.File.Stat].
	Stat() (os.FileInfo, error)

	// Sync commits the file's contents to disk. See [os.File.Sync].
	Sync() error

	// Chmod changes the mode of the file. See [os.File.Chmod].
	Chmod(mode os.FileMode) error
}

// FS defines filesystem operations for reading, writing, and managing files.
//
// All methods mirror their [os] package equivalents but can be intercepted
// for testing with fault injection.
//
// Paths use OS semantics (like the os package and path/filepath), not the
// slash-separated paths used by the standard library io/fs package.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type FS interface {
	// Open opens a file for reading. See [os.Open].
	Open(path string) (File, error)

	// OpenFile opens a file with specified flags and permissions. See [os.OpenFile].
	OpenFile(path string, flag int, perm os.FileMode) (File, error)

	// ReadDir reads a directory and returns its entries. See [os.ReadDir].
	// Entries are sorted by name.
	ReadDir(path string) ([]os.DirEntry, error)

	// MkdirAll creates a directory and all parents. See [os.MkdirAll].
	// No error if the directory already exists.
	MkdirAll(path string, perm os.FileMode) error

	// Stat returns file info. See [os.Stat].
	// Returns [os.ErrNotExist] if file doesn't exist.
	Stat(path string) (os.FileInfo, error)

	// Exists reports whether a file or directory exists.
	// Returns (false, nil) if not found, (false, err) on other errors.
	Exists(path string) (bool, error)

	// Chtimes changes the access and modification times. See [os.Chtimes].
	Chtimes(path string, atime, mtime time.Time) error

	// Remove deletes a file or empty directory. See [os.Remove].
	Remove(path string) error

	// Rename moves/renames a file, replacing newpath if it exists.
	// Atomic on the same filesystem.
	Rename(oldpath, newpath string) error
}

// WalkDir walks the tree rooted at root through fsys, calling fn for every
// file and directory in lexical order, root included.
//
// It has the semantics of [filepath.WalkDir] (including [iofs.SkipDir] and
// [iofs.SkipAll]) but routes every directory read through [FS.ReadDir], so
// fault injection applies to walks too.
func WalkDir(fsys FS, root string, fn iofs.WalkDirFunc) error {
	info, err := fsys.Stat(root)
	if err != nil {
		err = fn(root, nil, err)
	} else {
		err = walkDir(fsys, root, iofs.FileInfoToDirEntry(info), fn)
	}

	if err == iofs.SkipDir || err == iofs.SkipAll { //nolint:errorlint // sentinel values, never wrapped
		return nil
	}

	return err
}

func walkDir(fsys FS, path string, entry iofs.DirEntry, fn iofs.WalkDirFunc) error {
	err := fn(path, entry, nil)
	if err != nil || !entry.IsDir() {
		if err == iofs.SkipDir && entry.IsDir() { //nolint:errorlint // sentinel value
			err = nil
		}

		return err
	}

	entries, readErr := fsys.ReadDir(path)
	if readErr != nil {
		// Second call reports the read error; the callback decides whether
		// it is fatal.
		err = fn(path, entry, readErr)
		if err != nil {
			if err == iofs.SkipDir { //nolint:errorlint // sentinel value
				err = nil
			}

			return err
		}
	}

	for _, child := range entries {
		childPath := path + string(os.PathSeparator) + child.Name()

		err = walkDir(fsys, childPath, child, fn)
		if err != nil {
			if err == iofs.SkipDir { //nolint:errorlint // sentinel value
				break
			}

			return err
		}
	}

	return nil
}

// Compile-time interface checks.
var _ File = (*os.File)(nil)
