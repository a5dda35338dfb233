package grid

import (
	"slices"
	"strings"
)

// FileFlags are per-file state bits.
type FileFlags uint8

const (
	// FlagWarn marks a file that failed to load at least once.
	FlagWarn FileFlags = 1 << iota

	// FlagMarked is the user selection mark. The engine only reports it.
	FlagMarked

	// FlagThumbInit is set once a thumbnail was produced for the file, even
	// if it was only written to the cache and not kept in memory.
	FlagThumbInit
)

// Has reports whether all bits of f are set.
func (fl FileFlags) Has(f FileFlags) bool {
	return fl&f == f
}

func (fl FileFlags) String() string {
	if fl == 0 {
		return "-"
	}

	var names []string

	for _, f := range []struct {
		bit  FileFlags
		name string
	}{{FlagWarn, "warn"}, {FlagMarked, "marked"}, {FlagThumbInit, "init"}} {
		if fl.Has(f.bit) {
			names = append(names, f.name)
		}
	}

	return strings.Join(names, ",")
}

// FileEntry is one image in the collection.
type FileEntry struct {
	// Path is the absolute source path. It is the cache key.
	Path string

	// Name is the display name. An entry without one is not loadable.
	Name string

	Flags FileFlags
}

// Collection is the ordered list of files the grid shows. The engine keeps
// its slots aligned with it; entries are only removed through
// [Engine.Remove], and swapping the whole list goes through [Engine.Replace].
type Collection interface {
	Len() int
	At(i int) *FileEntry
	Remove(i int)
}

// FileList is a slice-backed [Collection].
type FileList []FileEntry

// NewFileList builds a list with Name set to the path for every entry.
func NewFileList(paths ...string) *FileList {
	l := make(FileList, 0, len(paths))
	for _, p := range paths {
		l = append(l, FileEntry{Path: p, Name: p})
	}

	return &l
}

func (l *FileList) Len() int { return len(*l) }

func (l *FileList) At(i int) *FileEntry { return &(*l)[i] }

func (l *FileList) Remove(i int) { *l = slices.Delete(*l, i, i+1) }

var _ Collection = (*FileList)(nil)
