package lock

import (
	"path/filepath"
	"testing"

	"github.com/hammersbald/hammersbald/internal/herr"
)

func TestAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")
	l, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestSecondAcquireFailsLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")
	l1, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer l1.Release()

	_, err = Acquire(path)
	if !herr.Locked.Has(err) {
		t.Fatalf("second Acquire error = %v, want herr.Locked", err)
	}
}

func TestReleaseThenReacquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")
	l1, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := l1.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	l2, err := Acquire(path)
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	defer l2.Release()
}
