package fs_test

import (
	iofs "io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/thumbs/pkg/fs"
)

func Test_WalkDir_Visits_Tree_In_Lexical_Order_When_Nested(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	for _, p := range []string{"b/x.jpg", "a/c/y.png", "a/z.jpg"} {
		full := filepath.Join(root, p)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}

		if err := os.WriteFile(full, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	var got []string

	err := fs.WalkDir(fs.NewReal(), root, func(path string, _ iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, _ := filepath.Rel(root, path)
		got = append(got, filepath.ToSlash(rel))

		return nil
	})
	if err != nil {
		t.Fatalf("WalkDir: %v", err)
	}

	want := []string{".", "a", "a/c", "a/c/y.png", "a/z.jpg", "b", "b/x.jpg"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("walk order mismatch (-want +got):\n%s", diff)
	}
}

func Test_WalkDir_Skips_Subtree_When_Callback_Returns_SkipDir(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	if err := os.MkdirAll(filepath.Join(root, "skip", "deep"), 0o755); err != nil {
		t.Fatal(err)
	}

	var visited []string

	err := fs.WalkDir(fs.NewReal(), root, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		visited = append(visited, d.Name())

		if d.Name() == "skip" {
			return iofs.SkipDir
		}

		return nil
	})
	if err != nil {
		t.Fatalf("WalkDir: %v", err)
	}

	for _, name := range visited {
		if name == "deep" {
			t.Fatalf("visited %q inside skipped directory", name)
		}
	}
}

func Test_WalkDir_Reports_Root_Error_When_Root_Is_Missing(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "nope")
	called := false

	err := fs.WalkDir(fs.NewReal(), missing, func(_ string, d iofs.DirEntry, err error) error {
		called = true

		if d != nil {
			t.Errorf("entry=%v, want nil", d)
		}

		return err
	})

	if !called {
		t.Fatal("callback not invoked for missing root")
	}

	if !os.IsNotExist(err) {
		t.Fatalf("err=%v, want not-exist", err)
	}
}
