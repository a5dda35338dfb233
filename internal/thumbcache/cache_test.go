package thumbcache_test

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/calvinalkan/thumbs/internal/imaging"
	"github.com/calvinalkan/thumbs/internal/thumbcache"
	"github.com/calvinalkan/thumbs/pkg/fs"
)

type fixture struct {
	cache *thumbcache.Cache
	root  string
	src   string
}

func newFixture(t *testing.T, fsys fs.FS, private bool) fixture {
	t.Helper()

	root := filepath.Join(t.TempDir(), "cache")
	srcDir := t.TempDir()

	cache, err := thumbcache.New(thumbcache.Options{
		Root:    root,
		Private: private,
		FS:      fsys,
		Codec:   imaging.NewCodec(fs.NewReal(), nil),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return fixture{cache: cache, root: root, src: srcDir}
}

// writeSource creates a source file with a fixed mtime. Its content is
// irrelevant to the cache.
func (f fixture) writeSource(t *testing.T, name string, mtime time.Time) string {
	t.Helper()

	path := filepath.Join(f.src, name)
	if err := os.WriteFile(path, []byte("source"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	return path
}

func opaque(w, h int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}

	return img
}

var testMtime = time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)

func Test_Cache_Load_Returns_Written_Thumbnail_When_Source_Unchanged(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fs.NewReal(), false)
	src := f.writeSource(t, "a.jpg", testMtime)

	f.cache.Write(opaque(40, 30), src, false)

	img, outdated := f.cache.Load(src)
	if img == nil {
		t.Fatal("Load returned nil after Write")
	}

	if outdated {
		t.Fatal("fresh entry reported outdated")
	}

	if got, want := img.Bounds().Size(), image.Pt(40, 30); got != want {
		t.Fatalf("size=%v, want=%v", got, want)
	}

	cfile, _ := f.cache.Translate(src)

	info, err := os.Stat(cfile)
	if err != nil {
		t.Fatalf("Stat(cache file): %v", err)
	}

	if !info.ModTime().Equal(testMtime) {
		t.Fatalf("cache mtime=%v, want=%v", info.ModTime(), testMtime)
	}

	st, err := f.cache.Status(src)
	if err != nil || st != thumbcache.StatusFresh {
		t.Fatalf("Status()=(%v, %v), want=(fresh, nil)", st, err)
	}
}

func Test_Cache_Load_Reports_Outdated_When_Source_Mtime_Changes(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fs.NewReal(), false)
	src := f.writeSource(t, "a.jpg", testMtime)

	f.cache.Write(opaque(8, 8), src, false)

	touched := testMtime.Add(time.Second)
	if err := os.Chtimes(src, touched, touched); err != nil {
		t.Fatal(err)
	}

	img, outdated := f.cache.Load(src)
	if img != nil || !outdated {
		t.Fatalf("Load()=(%v, %v), want=(nil, true)", img, outdated)
	}

	if st, _ := f.cache.Status(src); st != thumbcache.StatusOutdated {
		t.Fatalf("Status()=%v, want=%v", st, thumbcache.StatusOutdated)
	}
}

func Test_Cache_Load_Returns_Nothing_When_Entry_Missing_Or_Corrupt(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fs.NewReal(), false)
	src := f.writeSource(t, "a.jpg", testMtime)

	if img, outdated := f.cache.Load(src); img != nil || outdated {
		t.Fatalf("Load(missing)=(%v, %v), want=(nil, false)", img, outdated)
	}

	cfile, _ := f.cache.Translate(src)
	if err := os.MkdirAll(filepath.Dir(cfile), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(cfile, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := os.Chtimes(cfile, testMtime, testMtime); err != nil {
		t.Fatal(err)
	}

	if img, outdated := f.cache.Load(src); img != nil || outdated {
		t.Fatalf("Load(corrupt)=(%v, %v), want=(nil, false)", img, outdated)
	}
}

func Test_Cache_Write_Keeps_Fresh_Entry_When_Not_Forced(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fs.NewReal(), false)
	src := f.writeSource(t, "a.jpg", testMtime)

	f.cache.Write(opaque(10, 10), src, false)
	f.cache.Write(opaque(20, 20), src, false)

	img, _ := f.cache.Load(src)
	if got, want := img.Bounds().Dx(), 10; got != want {
		t.Fatalf("width=%d, want=%d (unforced write replaced fresh entry)", got, want)
	}

	f.cache.Write(opaque(20, 20), src, true)

	img, _ = f.cache.Load(src)
	if got, want := img.Bounds().Dx(), 20; got != want {
		t.Fatalf("width=%d, want=%d (forced write ignored)", got, want)
	}
}

func Test_Cache_Write_Stores_PNG_When_Thumbnail_Has_Alpha(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fs.NewReal(), false)
	src := f.writeSource(t, "a.png", testMtime)

	f.cache.Write(image.NewNRGBA(image.Rect(0, 0, 4, 4)), src, false)

	cfile, _ := f.cache.Translate(src)

	data, err := os.ReadFile(cfile)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if len(data) < 8 || string(data[1:4]) != "PNG" {
		t.Fatalf("cache file is not PNG: % x", data[:min(8, len(data))])
	}
}

func Test_Cache_Write_Does_Nothing_When_Private(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fs.NewReal(), true)
	src := f.writeSource(t, "a.jpg", testMtime)

	f.cache.Write(opaque(8, 8), src, true)

	if _, err := os.Stat(f.root); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("private cache created root: %v", err)
	}
}

func Test_Cache_Write_Swallows_Error_And_Leaves_No_Temp_When_Disk_Fails(t *testing.T) {
	t.Parallel()

	chaos := fs.NewChaos(fs.NewReal(), 42, fs.ChaosConfig{WriteFailRate: 1})
	f := newFixture(t, chaos, false)
	src := f.writeSource(t, "a.jpg", testMtime)

	f.cache.Write(opaque(8, 8), src, false)

	if chaos.Stats().WriteFails == 0 {
		t.Fatal("no write fault injected")
	}

	cfile, _ := f.cache.Translate(src)
	if _, err := os.Stat(cfile); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("cache file exists after failed write: %v", err)
	}

	entries, err := os.ReadDir(filepath.Dir(cfile))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}

	for _, e := range entries {
		t.Errorf("leftover file %q", e.Name())
	}
}

func Test_Cache_Remove_Deletes_Entry(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fs.NewReal(), false)
	src := f.writeSource(t, "a.jpg", testMtime)

	f.cache.Write(opaque(8, 8), src, false)
	f.cache.Remove(src)
	f.cache.Remove(src) // second call is a no-op

	if st, _ := f.cache.Status(src); st != thumbcache.StatusMissing {
		t.Fatalf("Status()=%v, want=%v", st, thumbcache.StatusMissing)
	}
}

func Test_Cache_Translate_Rejects_Paths_Inside_Root(t *testing.T) {
	t.Parallel()

	cache, err := thumbcache.New(thumbcache.Options{
		Root:  "/var/cache/thumbs",
		FS:    fs.NewReal(),
		Codec: imaging.NewCodec(fs.NewReal(), nil),
	})
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		path string
		want string
		ok   bool
	}{
		{path: "/home/u/a.jpg", want: "/var/cache/thumbs/home/u/a.jpg", ok: true},
		{path: "/var/cache/thumbs", ok: false},
		{path: "/var/cache/thumbs/home/u/a.jpg", ok: false},
		{path: "/var/cache/thumbs2/a.jpg", want: "/var/cache/thumbs/var/cache/thumbs2/a.jpg", ok: true},
		{path: "relative/a.jpg", ok: false},
	}

	for _, tc := range cases {
		got, ok := cache.Translate(tc.path)
		if got != tc.want || ok != tc.ok {
			t.Errorf("Translate(%q)=(%q, %v), want=(%q, %v)", tc.path, got, ok, tc.want, tc.ok)
		}
	}

	if st, _ := cache.Status("/var/cache/thumbs/x.jpg"); st != thumbcache.StatusUncacheable {
		t.Errorf("Status(inside root)=%v, want=%v", st, thumbcache.StatusUncacheable)
	}
}

func Test_New_Returns_Error_When_Root_Is_Relative(t *testing.T) {
	t.Parallel()

	_, err := thumbcache.New(thumbcache.Options{
		Root:  "cache",
		FS:    fs.NewReal(),
		Codec: imaging.NewCodec(fs.NewReal(), nil),
	})
	if !errors.Is(err, thumbcache.ErrRootNotAbsolute) {
		t.Fatalf("err=%v, want=%v", err, thumbcache.ErrRootNotAbsolute)
	}
}

func Test_Cache_GC_Removes_Orphans_And_Keeps_Live_Entries(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fs.NewReal(), false)
	live := f.writeSource(t, "live.jpg", testMtime)
	gone := f.writeSource(t, "gone.jpg", testMtime)

	f.cache.Write(opaque(8, 8), live, false)
	f.cache.Write(opaque(8, 8), gone, false)

	if err := os.Remove(gone); err != nil {
		t.Fatal(err)
	}

	stats, err := f.cache.GC(context.Background())
	if err != nil {
		t.Fatalf("GC: %v", err)
	}

	if stats.Removed != 1 || stats.Kept != 1 || stats.Failed != 0 {
		t.Fatalf("stats=%+v, want Removed=1 Kept=1 Failed=0", stats)
	}

	goneEntry, _ := f.cache.Translate(gone)
	if _, err := os.Stat(goneEntry); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("orphan still present: %v", err)
	}

	if st, _ := f.cache.Status(live); st != thumbcache.StatusFresh {
		t.Fatalf("live entry status=%v, want=fresh", st)
	}

	// A second run finds nothing to do and does not trip over its own lock file.
	stats, err = f.cache.GC(context.Background())
	if err != nil || stats.Removed != 0 || stats.Kept != 1 {
		t.Fatalf("second GC=(%+v, %v), want Removed=0 Kept=1", stats, err)
	}
}

func Test_Cache_GC_Returns_ErrGCBusy_When_Lock_Is_Held(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fs.NewReal(), false)
	src := f.writeSource(t, "a.jpg", testMtime)
	f.cache.Write(opaque(8, 8), src, false)

	lock, err := fs.NewLocker(fs.NewReal()).TryLock(filepath.Join(f.root, ".gc.lock"))
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	defer lock.Close()

	_, err = f.cache.GC(context.Background())
	if !errors.Is(err, thumbcache.ErrGCBusy) {
		t.Fatalf("err=%v, want=%v", err, thumbcache.ErrGCBusy)
	}
}

func Test_Cache_GC_Succeeds_When_Root_Does_Not_Exist(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fs.NewReal(), false)

	stats, err := f.cache.GC(context.Background())
	if err != nil || stats != (thumbcache.GCStats{}) {
		t.Fatalf("GC()=(%+v, %v), want zero stats", stats, err)
	}
}

func Test_Cache_GC_Stops_When_Context_Canceled(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fs.NewReal(), false)
	src := f.writeSource(t, "a.jpg", testMtime)
	f.cache.Write(opaque(8, 8), src, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.cache.GC(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want=%v", err, context.Canceled)
	}
}

func Test_ResolveRoot_Prefers_XDG_Then_HOME(t *testing.T) {
	t.Parallel()

	got, err := thumbcache.ResolveRoot(map[string]string{"XDG_CACHE_HOME": "/x", "HOME": "/h"})
	if err != nil || got != "/x/thumbs" {
		t.Fatalf("ResolveRoot(xdg)=(%q, %v), want=/x/thumbs", got, err)
	}

	got, err = thumbcache.ResolveRoot(map[string]string{"XDG_CACHE_HOME": "", "HOME": "/h"})
	if err != nil || got != "/h/.cache/thumbs" {
		t.Fatalf("ResolveRoot(home)=(%q, %v), want=/h/.cache/thumbs", got, err)
	}

	_, err = thumbcache.ResolveRoot(map[string]string{})
	if !errors.Is(err, thumbcache.ErrNoCacheDir) {
		t.Fatalf("err=%v, want=%v", err, thumbcache.ErrNoCacheDir)
	}
}

