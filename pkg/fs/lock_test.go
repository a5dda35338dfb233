package fs

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func Test_Locker_TryLock_Returns_ErrWouldBlock_When_Path_Is_Locked(t *testing.T) {
	t.Parallel()

	locker := NewLocker(NewReal())
	path := filepath.Join(t.TempDir(), "lock")

	lock1, err := locker.TryLock(path)
	if err != nil {
		t.Fatalf("TryLock(%q): %v", path, err)
	}
	t.Cleanup(func() { _ = lock1.Close() })

	lock2, err := locker.TryLock(path)
	if !errors.Is(err, ErrWouldBlock) {
		t.Fatalf("TryLock(%q) while locked: err=%v, want %v", path, err, ErrWouldBlock)
	}
	if lock2 != nil {
		_ = lock2.Close()
		t.Fatalf("TryLock(%q) while locked: want lock=nil, got non-nil", path)
	}

	if err := lock1.Close(); err != nil {
		t.Fatalf("Close(): %v", err)
	}

	lock3, err := locker.TryLock(path)
	if err != nil {
		t.Fatalf("TryLock(%q) after release: %v", path, err)
	}
	if err := lock3.Close(); err != nil {
		t.Fatalf("Close(): %v", err)
	}
}

func Test_Locker_Lock_Creates_Parent_Directories_When_Missing(t *testing.T) {
	t.Parallel()

	locker := NewLocker(NewReal())
	path := filepath.Join(t.TempDir(), "a", "b", ".gc.lock")

	lock, err := locker.Lock(path)
	if err != nil {
		t.Fatalf("Lock(%q): %v", path, err)
	}
	defer lock.Close()

	exists, err := NewReal().Exists(path)
	if err != nil || !exists {
		t.Fatalf("Exists(%q)=(%v, %v), want=(true, nil)", path, exists, err)
	}
}

func Test_Locker_Lock_Waits_Until_Holder_Releases_When_Contended(t *testing.T) {
	t.Parallel()

	locker := NewLocker(NewReal())
	path := filepath.Join(t.TempDir(), "lock")

	held, err := locker.Lock(path)
	if err != nil {
		t.Fatalf("Lock(%q): %v", path, err)
	}

	acquired := make(chan *Lock, 1)

	go func() {
		lk, err := locker.Lock(path)
		if err != nil {
			t.Errorf("second Lock: %v", err)
			close(acquired)

			return
		}

		acquired <- lk
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock returned while the first was held")
	case <-time.After(30 * time.Millisecond):
	}

	if err := held.Close(); err != nil {
		t.Fatalf("Close(): %v", err)
	}

	select {
	case lk := <-acquired:
		if lk != nil {
			_ = lk.Close()
		}
	case <-time.After(5 * time.Second):
		t.Fatal("second Lock did not acquire after release")
	}
}

func Test_Lock_Close_Is_Idempotent(t *testing.T) {
	t.Parallel()

	lock, err := NewLocker(NewReal()).Lock(filepath.Join(t.TempDir(), "lock"))
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	if err := lock.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}

	if err := lock.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
