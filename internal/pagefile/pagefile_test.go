package pagefile

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestAppendAndReadPage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.dat")
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	buf := bytes.Repeat([]byte{0xAB}, Size)
	idx, err := f.AppendPage(buf)
	if err != nil {
		t.Fatalf("AppendPage: %v", err)
	}
	if idx != 0 {
		t.Fatalf("first page index = %d, want 0", idx)
	}
	if f.PageCount() != 1 {
		t.Fatalf("PageCount = %d, want 1", f.PageCount())
	}

	got, err := f.ReadPage(0)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if !bytes.Equal(got, buf) {
		t.Fatal("read page does not match written page")
	}
}

func TestReadPageNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.dat")
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	if _, err := f.ReadPage(0); err == nil {
		t.Fatal("expected error reading page from empty file")
	}
}

func TestTruncate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.dat")
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	for i := 0; i < 3; i++ {
		if _, err := f.AppendPage(bytes.Repeat([]byte{byte(i)}, Size)); err != nil {
			t.Fatalf("AppendPage: %v", err)
		}
	}
	if err := f.Truncate(Size); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	if f.PageCount() != 1 {
		t.Fatalf("PageCount after truncate = %d, want 1", f.PageCount())
	}
}

func TestReopenPreservesContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.dat")
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	buf := bytes.Repeat([]byte{0x42}, Size)
	if _, err := f.AppendPage(buf); err != nil {
		t.Fatalf("AppendPage: %v", err)
	}
	if err := f.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f2.Close()
	if f2.PageCount() != 1 {
		t.Fatalf("reopened PageCount = %d, want 1", f2.PageCount())
	}
	got, err := f2.ReadPage(0)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if !bytes.Equal(got, buf) {
		t.Fatal("reopened content mismatch")
	}
}
