package fs

import (
	"errors"
	iofs "io/fs"
	"math/rand/v2"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// ChaosConfig controls fault injection probabilities.
// Each rate is a float64 from 0.0 (never) to 1.0 (always).
//
// The zero value disables all fault injection.
type ChaosConfig struct {
	// OpenFailRate controls how often FS.Open and FS.OpenFile fail.
	OpenFailRate float64

	// ReadFailRate controls how often File.Read fails, returning zero bytes
	// and EIO.
	ReadFailRate float64

	// WriteFailRate controls how often File.Write fails entirely, writing zero
	// bytes and returning EIO, ENOSPC, EDQUOT, or EROFS.
	WriteFailRate float64

	// SyncFailRate controls how often File.Sync fails.
	SyncFailRate float64

	// CloseFailRate controls how often File.Close reports an error. The
	// underlying descriptor is always closed.
	CloseFailRate float64

	// ChmodFailRate controls how often File.Chmod fails.
	ChmodFailRate float64

	// StatFailRate controls how often FS.Stat and FS.Exists fail.
	StatFailRate float64

	// ReadDirFailRate controls how often FS.ReadDir fails.
	ReadDirFailRate float64

	// MkdirAllFailRate controls how often FS.MkdirAll fails.
	MkdirAllFailRate float64

	// ChtimesFailRate controls how often FS.Chtimes fails.
	ChtimesFailRate float64

	// RemoveFailRate controls how often FS.Remove fails.
	RemoveFailRate float64

	// RenameFailRate controls how often FS.Rename fails. Returns an
	// *os.LinkError like [os.Rename].
	RenameFailRate float64
}

// ChaosMode controls how [Chaos] behaves.
type ChaosMode uint8

const (
	// ChaosModeActive enables fault-rate injection.
	// This is the default mode for a new [Chaos].
	ChaosModeActive ChaosMode = iota

	// ChaosModeNoOp passes every operation directly to the underlying FS.
	ChaosModeNoOp
)

// ChaosStats contains counts of injected faults.
type ChaosStats struct {
	OpenFails     int64
	ReadFails     int64
	WriteFails    int64
	SyncFails     int64
	CloseFails    int64
	ChmodFails    int64
	StatFails     int64
	ReadDirFails  int64
	MkdirAllFails int64
	ChtimesFails  int64
	RemoveFails   int64
	RenameFails   int64
}

// Total returns the sum of all counts.
func (s ChaosStats) Total() int64 {
	return s.OpenFails + s.ReadFails + s.WriteFails + s.SyncFails + s.CloseFails +
		s.ChmodFails + s.StatFails + s.ReadDirFails + s.MkdirAllFails +
		s.ChtimesFails + s.RemoveFails + s.RenameFails
}

// chaosError marks an error as intentionally injected by [Chaos].
//
// It wraps an [*iofs.PathError] or [*os.LinkError] carrying a real
// [syscall.Errno], so errors.Is and os.IsPermission keep working.
type chaosError struct {
	Err error
}

func (e *chaosError) Error() string {
	return "chaos: " + e.Err.Error()
}

func (e *chaosError) Unwrap() error {
	return e.Err
}

// IsChaosErr reports whether err (or any wrapped error) was injected by [Chaos].
func IsChaosErr(err error) bool {
	var injected *chaosError

	return errors.As(err, &injected)
}

// Chaos wraps an [FS] and injects random failures for testing.
//
// Each call independently decides whether to inject. Chaos never injects
// ENOENT, so any os.IsNotExist result comes from the wrapped [FS].
type Chaos struct {
	fs     FS
	config ChaosConfig
	mode   atomic.Uint32

	rngMu sync.Mutex
	rng   *rand.Rand

	openFails     atomic.Int64
	readFails     atomic.Int64
	writeFails    atomic.Int64
	syncFails     atomic.Int64
	closeFails    atomic.Int64
	chmodFails    atomic.Int64
	statFails     atomic.Int64
	readDirFails  atomic.Int64
	mkdirAllFails atomic.Int64
	chtimesFails  atomic.Int64
	removeFails   atomic.Int64
	renameFails   atomic.Int64
}

// NewChaos creates a new [Chaos] filesystem wrapping the given [FS].
// The seed controls random fault injection for reproducibility.
// Panics if underlying is nil.
func NewChaos(underlying FS, seed int64, config ChaosConfig) *Chaos {
	if underlying == nil {
		panic("underlying fs is nil")
	}

	return &Chaos{
		fs:     underlying,
		rng:    rand.New(rand.NewPCG(uint64(seed), uint64(seed))),
		config: config,
	}
}

// SetMode switches between [ChaosModeActive] and [ChaosModeNoOp].
// Safe to call concurrently with filesystem operations.
func (c *Chaos) SetMode(m ChaosMode) { c.mode.Store(uint32(m)) }

// Stats returns the current fault injection counts.
func (c *Chaos) Stats() ChaosStats {
	return ChaosStats{
		OpenFails:     c.openFails.Load(),
		ReadFails:     c.readFails.Load(),
		WriteFails:    c.writeFails.Load(),
		SyncFails:     c.syncFails.Load(),
		CloseFails:    c.closeFails.Load(),
		ChmodFails:    c.chmodFails.Load(),
		StatFails:     c.statFails.Load(),
		ReadDirFails:  c.readDirFails.Load(),
		MkdirAllFails: c.mkdirAllFails.Load(),
		ChtimesFails:  c.chtimesFails.Load(),
		RemoveFails:   c.removeFails.Load(),
		RenameFails:   c.renameFails.Load(),
	}
}

var (
	errnosOpen    = []syscall.Errno{syscall.EACCES, syscall.EIO, syscall.EMFILE, syscall.ENFILE}
	errnosWrite   = []syscall.Errno{syscall.EIO, syscall.ENOSPC, syscall.EDQUOT, syscall.EROFS}
	errnosMutate  = []syscall.Errno{syscall.EACCES, syscall.EPERM, syscall.EIO, syscall.EROFS}
	errnosRead    = []syscall.Errno{syscall.EIO}
	errnosStat    = []syscall.Errno{syscall.EACCES, syscall.EIO}
	errnosReadDir = []syscall.Errno{syscall.EACCES, syscall.EIO, syscall.EMFILE}
	errnosRename  = []syscall.Errno{syscall.EACCES, syscall.EIO, syscall.ENOSPC, syscall.EXDEV, syscall.EROFS}
)

// Open opens a file for reading with fault injection.
func (c *Chaos) Open(path string) (File, error) {
	err := c.inject("open", path, c.config.OpenFailRate, &c.openFails, errnosOpen)
	if err != nil {
		return nil, err
	}

	f, err := c.fs.Open(path)
	if err != nil {
		return nil, err
	}

	return &chaosFile{f: f, chaos: c, path: path}, nil
}

// OpenFile opens a file with fault injection. Write opens may also fail
// with ENOSPC, EDQUOT or EROFS.
func (c *Chaos) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	errnos := errnosOpen
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE) != 0 {
		errnos = append(errnos[:len(errnos):len(errnos)], errnosWrite...)
	}

	err := c.inject("open", path, c.config.OpenFailRate, &c.openFails, errnos)
	if err != nil {
		return nil, err
	}

	f, err := c.fs.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}

	return &chaosFile{f: f, chaos: c, path: path}, nil
}

// ReadDir reads a directory with fault injection.
func (c *Chaos) ReadDir(path string) ([]os.DirEntry, error) {
	err := c.inject("readdir", path, c.config.ReadDirFailRate, &c.readDirFails, errnosReadDir)
	if err != nil {
		return nil, err
	}

	return c.fs.ReadDir(path)
}

// MkdirAll creates directories with fault injection.
func (c *Chaos) MkdirAll(path string, perm os.FileMode) error {
	err := c.inject("mkdirall", path, c.config.MkdirAllFailRate, &c.mkdirAllFails,
		[]syscall.Errno{syscall.EACCES, syscall.EIO, syscall.ENOSPC, syscall.EROFS, syscall.ENOTDIR})
	if err != nil {
		return err
	}

	return c.fs.MkdirAll(path, perm)
}

// Stat returns file info with fault injection.
func (c *Chaos) Stat(path string) (os.FileInfo, error) {
	err := c.inject("stat", path, c.config.StatFailRate, &c.statFails, errnosStat)
	if err != nil {
		return nil, err
	}

	return c.fs.Stat(path)
}

// Exists checks existence with fault injection (shares StatFailRate).
func (c *Chaos) Exists(path string) (bool, error) {
	err := c.inject("stat", path, c.config.StatFailRate, &c.statFails, errnosStat)
	if err != nil {
		return false, err
	}

	return c.fs.Exists(path)
}

// Chtimes changes file times with fault injection.
func (c *Chaos) Chtimes(path string, atime, mtime time.Time) error {
	err := c.inject("chtimes", path, c.config.ChtimesFailRate, &c.chtimesFails, errnosMutate)
	if err != nil {
		return err
	}

	return c.fs.Chtimes(path, atime, mtime)
}

// Remove deletes a file with fault injection.
func (c *Chaos) Remove(path string) error {
	err := c.inject("remove", path, c.config.RemoveFailRate, &c.removeFails,
		append(errnosMutate[:len(errnosMutate):len(errnosMutate)], syscall.EBUSY))
	if err != nil {
		return err
	}

	return c.fs.Remove(path)
}

// Rename renames a file with fault injection.
func (c *Chaos) Rename(oldpath, newpath string) error {
	if c.should(c.config.RenameFailRate) {
		c.renameFails.Add(1)

		le := &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: c.pick(errnosRename)}

		return &chaosError{Err: le}
	}

	return c.fs.Rename(oldpath, newpath)
}

// inject returns an injected path error with probability rate.
func (c *Chaos) inject(op, path string, rate float64, counter *atomic.Int64, errnos []syscall.Errno) error {
	if !c.should(rate) {
		return nil
	}

	counter.Add(1)

	return &chaosError{Err: &iofs.PathError{Op: op, Path: path, Err: c.pick(errnos)}}
}

func (c *Chaos) should(rate float64) bool {
	if ChaosMode(c.mode.Load()) != ChaosModeActive || rate <= 0 {
		return false
	}

	c.rngMu.Lock()
	defer c.rngMu.Unlock()

	return c.rng.Float64() < rate
}

func (c *Chaos) pick(errnos []syscall.Errno) syscall.Errno {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()

	return errnos[c.rng.IntN(len(errnos))]
}

// chaosFile wraps a [File] and injects faults on handle operations.
type chaosFile struct {
	f     File
	chaos *Chaos
	path  string
}

var _ File = (*chaosFile)(nil)

func (cf *chaosFile) Read(buf []byte) (int, error) {
	c := cf.chaos

	err := c.inject("read", cf.path, c.config.ReadFailRate, &c.readFails, errnosRead)
	if err != nil {
		return 0, err
	}

	return cf.f.Read(buf)
}

func (cf *chaosFile) Write(data []byte) (int, error) {
	c := cf.chaos

	err := c.inject("write", cf.path, c.config.WriteFailRate, &c.writeFails, errnosWrite)
	if err != nil {
		return 0, err
	}

	return cf.f.Write(data)
}

func (cf *chaosFile) Close() error {
	c := cf.chaos
	injected := c.inject("close", cf.path, c.config.CloseFailRate, &c.closeFails, errnosRead)

	// Always release the descriptor.
	err := cf.f.Close()
	if err != nil {
		return err
	}

	return injected
}

func (cf *chaosFile) Seek(offset int64, whence int) (int64, error) {
	return cf.f.Seek(offset, whence)
}

func (cf *chaosFile) Fd() uintptr {
	return cf.f.Fd()
}

func (cf *chaosFile) Stat() (os.FileInfo, error) {
	return cf.f.Stat()
}

func (cf *chaosFile) Sync() error {
	c := cf.chaos

	err := c.inject("sync", cf.path, c.config.SyncFailRate, &c.syncFails, errnosWrite)
	if err != nil {
		return err
	}

	return cf.f.Sync()
}

func (cf *chaosFile) Chmod(mode os.FileMode) error {
	c := cf.chaos

	err := c.inject("chmod", cf.path, c.config.ChmodFailRate, &c.chmodFails, errnosMutate)
	if err != nil {
		return err
	}

	return cf.f.Chmod(mode)
}

// Compile-time interface check.
var _ FS = (*Chaos)(nil)
