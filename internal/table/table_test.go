package table

import (
	"path/filepath"
	"testing"

	"github.com/hammersbald/hammersbald/internal/pagefile"
)

func TestFreshTableHasInitialMeta(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.tbl")
	ts, err := Open(path, 16)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ts.Close()

	level, split, err := ts.GetMeta()
	if err != nil {
		t.Fatalf("GetMeta: %v", err)
	}
	if level != InitialLevel || split != 0 {
		t.Fatalf("GetMeta = (%d, %d), want (%d, 0)", level, split, InitialLevel)
	}
	n, err := ts.BucketCount()
	if err != nil {
		t.Fatalf("BucketCount: %v", err)
	}
	if want := uint64(1) << InitialLevel; n != want {
		t.Fatalf("BucketCount = %d, want %d", n, want)
	}
}

func TestPutAndGetBucket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.tbl")
	ts, err := Open(path, 16)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ts.Close()

	b := Bucket{DataRef: 12345, SpillRef: 6789}
	if err := ts.PutBucket(1000, b); err != nil {
		t.Fatalf("PutBucket: %v", err)
	}
	got, err := ts.GetBucket(1000)
	if err != nil {
		t.Fatalf("GetBucket: %v", err)
	}
	if got != b {
		t.Fatalf("GetBucket = %+v, want %+v", got, b)
	}

	// Neighboring, never-written buckets on the same page stay empty.
	neighbor, err := ts.GetBucket(1001)
	if err != nil {
		t.Fatalf("GetBucket(neighbor): %v", err)
	}
	if !neighbor.Empty() {
		t.Fatalf("neighbor bucket should be empty, got %+v", neighbor)
	}
}

func TestPutMetaRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.tbl")
	ts, err := Open(path, 16)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ts.Close()

	if err := ts.PutMeta(10, 37); err != nil {
		t.Fatalf("PutMeta: %v", err)
	}
	level, split, err := ts.GetMeta()
	if err != nil {
		t.Fatalf("GetMeta: %v", err)
	}
	if level != 10 || split != 37 {
		t.Fatalf("GetMeta = (%d, %d), want (10, 37)", level, split)
	}
}

func TestCaptureFuncCalledBeforeEachOverwriteNotOnAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.tbl")
	ts, err := Open(path, 16)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ts.Close()

	if err := ts.PutBucket(0, Bucket{DataRef: 1}); err != nil {
		t.Fatalf("PutBucket: %v", err)
	}

	var captured []pagefile.PageIndex
	ts.SetCaptureFunc(func(page pagefile.PageIndex, preImage []byte) error {
		captured = append(captured, page)
		return nil
	})

	if err := ts.PutBucket(0, Bucket{DataRef: 2}); err != nil {
		t.Fatalf("PutBucket: %v", err)
	}
	if err := ts.PutBucket(1, Bucket{DataRef: 3}); err != nil {
		t.Fatalf("PutBucket: %v", err)
	}
	if len(captured) != 2 {
		t.Fatalf("captured %d pages, want 2: %v", len(captured), captured)
	}

	// A brand-new page being appended (not yet existing) must not trigger
	// a capture: there is no pre-image to protect.
	if err := ts.PutBucket(10_000, Bucket{DataRef: 4}); err != nil {
		t.Fatalf("PutBucket: %v", err)
	}
	if len(captured) != 2 {
		t.Fatalf("captured grew on a fresh page append: %v", captured)
	}
}
