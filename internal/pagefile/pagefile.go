// Package pagefile implements the uniform 4096-byte page abstraction that
// the data log, table store and write log are all built on: a single OS
// file viewed as a sequence of fixed-size pages addressed by index.
//
// It deliberately knows nothing about what a page means — no record
// framing, no bucket slots, no CRCs. Those conventions belong to the
// caller (datalog, table, wal). This mirrors the layering in this
// codebase's own pager: the low-level file/page I/O is generic, and
// typed page layouts are built on top of it.
package pagefile

import (
	"fmt"
	"os"

	"github.com/hammersbald/hammersbald/internal/herr"
)

// Size is the fixed page size in bytes. Every page of every Hammersbald
// file (.dat, .tbl, .log header page) is exactly this many bytes.
const Size = 4096

// PageIndex addresses a page within a File. It is logically 48 bits wide
// (PRef and table bucket pages never need more).
type PageIndex uint64

// File is a typed view of an *os.File as a sequence of Size-byte pages.
type File struct {
	f    *os.File
	path string
	// length is the current file length in bytes. It is not required to be
	// page-aligned (the data file may have a partial last page mid-batch);
	// the page count is floor(length/Size).
	length int64
}

// Open opens or creates path for page-oriented read/write access.
func Open(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, herr.Io.Wrap(fmt.Errorf("open %s: %w", path, err))
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, herr.Io.Wrap(fmt.Errorf("stat %s: %w", path, err))
	}
	return &File{f: f, path: path, length: fi.Size()}, nil
}

// Path returns the underlying file path.
func (pf *File) Path() string { return pf.path }

// Length returns the current file length in bytes (not necessarily
// page-aligned).
func (pf *File) Length() int64 { return pf.length }

// PageCount returns the number of complete pages currently in the file.
func (pf *File) PageCount() uint64 {
	return uint64(pf.length / Size)
}

// ReadPage reads the full Size-byte page at index n. It fails with
// herr.NotFound if n is beyond the current page count.
func (pf *File) ReadPage(n PageIndex) ([]byte, error) {
	if uint64(n) >= pf.PageCount() {
		return nil, herr.NotFound.Wrap(fmt.Errorf("page %d: %s has %d pages", n, pf.path, pf.PageCount()))
	}
	buf := make([]byte, Size)
	off := int64(n) * Size
	if _, err := pf.f.ReadAt(buf, off); err != nil {
		return nil, herr.Io.Wrap(fmt.Errorf("read page %d of %s: %w", n, pf.path, err))
	}
	return buf, nil
}

// WritePage overwrites the full Size-byte page at index n. n must already
// exist (use AppendPage to grow the file).
func (pf *File) WritePage(n PageIndex, buf []byte) error {
	if len(buf) != Size {
		return herr.Corrupt.Wrap(fmt.Errorf("write page %d: buffer is %d bytes, want %d", n, len(buf), Size))
	}
	off := int64(n) * Size
	if _, err := pf.f.WriteAt(buf, off); err != nil {
		return herr.Io.Wrap(fmt.Errorf("write page %d of %s: %w", n, pf.path, err))
	}
	if off+Size > pf.length {
		pf.length = off + Size
	}
	return nil
}

// AppendPage extends the file by exactly one Size-byte page and returns
// its index. If the underlying write only partially lands (a short
// write), the file is truncated back to its pre-append length so a
// failed append never leaves a corrupt partial page.
func (pf *File) AppendPage(buf []byte) (PageIndex, error) {
	if len(buf) != Size {
		return 0, herr.Corrupt.Wrap(fmt.Errorf("append page: buffer is %d bytes, want %d", len(buf), Size))
	}
	idx := PageIndex(pf.PageCount())
	preLen := pf.length
	// Append at a page-aligned offset even if the file currently has a
	// partial trailing page (the data file permits that mid-batch); the
	// new page always starts at the next full-page boundary.
	off := int64(idx) * Size
	n, err := pf.f.WriteAt(buf, off)
	if err != nil || n != Size {
		_ = pf.f.Truncate(preLen)
		pf.length = preLen
		if err == nil {
			err = fmt.Errorf("short write: %d of %d bytes", n, Size)
		}
		return 0, herr.Io.Wrap(fmt.Errorf("append page to %s: %w", pf.path, err))
	}
	pf.length = off + Size
	return idx, nil
}

// WriteAt writes arbitrary bytes at a raw byte offset, used by the
// write-ahead log, whose frames don't align to page boundaries. It
// never shrinks the recorded length and extends it if the write reaches
// past the current end.
func (pf *File) WriteAt(buf []byte, off int64) error {
	if _, err := pf.f.WriteAt(buf, off); err != nil {
		return herr.Io.Wrap(fmt.Errorf("write %s at %d: %w", pf.path, off, err))
	}
	if end := off + int64(len(buf)); end > pf.length {
		pf.length = end
	}
	return nil
}

// ReadAt reads arbitrary bytes at a raw byte offset.
func (pf *File) ReadAt(buf []byte, off int64) error {
	if off+int64(len(buf)) > pf.length {
		return herr.NotFound.Wrap(fmt.Errorf("read %s at %d: past end (%d)", pf.path, off, pf.length))
	}
	if _, err := pf.f.ReadAt(buf, off); err != nil {
		return herr.Io.Wrap(fmt.Errorf("read %s at %d: %w", pf.path, off, err))
	}
	return nil
}

// Truncate shortens the file to exactly size bytes. size need not be
// page-aligned.
func (pf *File) Truncate(size int64) error {
	if err := pf.f.Truncate(size); err != nil {
		return herr.Io.Wrap(fmt.Errorf("truncate %s to %d: %w", pf.path, size, err))
	}
	pf.length = size
	return nil
}

// Flush forces kernel and device durability for this file.
func (pf *File) Flush() error {
	if err := pf.f.Sync(); err != nil {
		return herr.Io.Wrap(fmt.Errorf("sync %s: %w", pf.path, err))
	}
	return nil
}

// Close releases the underlying file handle.
func (pf *File) Close() error {
	if err := pf.f.Close(); err != nil {
		return herr.Io.Wrap(fmt.Errorf("close %s: %w", pf.path, err))
	}
	return nil
}
