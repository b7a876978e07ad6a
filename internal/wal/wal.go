// Package wal implements the WriteLog: the write-ahead recovery journal
// that gives batches their atomicity. It is a small sequential file of its
// own rather than a grid of pagefile.Cache pages, because its records are
// not uniformly sized: a fixed header page followed by variably-many
// (page-index, page-preimage) frames, one per table page mutated during
// the open batch.
package wal

import (
	"fmt"

	"github.com/hammersbald/hammersbald/internal/herr"
	"github.com/hammersbald/hammersbald/internal/pagefile"
	"github.com/hammersbald/hammersbald/internal/u48"
)

// headerSize is page 0: last_good_data_size (u48) + last_good_table_size
// (u48) + zero padding, sized to one page for consistency with the rest of
// the on-disk format even though only 12 bytes are meaningful.
const headerSize = pagefile.Size

// frameSize is a captured table page: a 6-byte page index prefix making
// the page index recoverable from the frame itself, followed by the full
// verbatim page pre-image.
const frameSize = u48.Size + pagefile.Size

// Frame is one captured table-page pre-image read back during recovery.
type Frame struct {
	Page     pagefile.PageIndex
	PreImage []byte
}

// WriteLog is the batch journal.
type WriteLog struct {
	file     *pagefile.File
	captured map[pagefile.PageIndex]bool

	// preBatchTablePages is the table store's page count as of the most
	// recent BeginBatch. A page at or beyond this index did not exist
	// before the batch started, so recovery's truncate already discards
	// it — capturing or replaying a pre-image for it would instead
	// resurrect mid-batch content past the truncated boundary.
	preBatchTablePages pagefile.PageIndex
}

// Open opens (or creates) the write-ahead log at path.
func Open(path string) (*WriteLog, error) {
	f, err := pagefile.Open(path)
	if err != nil {
		return nil, err
	}
	return &WriteLog{file: f}, nil
}

// Close releases the underlying file handle.
func (wl *WriteLog) Close() error { return wl.file.Close() }

// Pending reports whether the journal holds a header page, meaning a batch
// was begun and never cleanly ended — the signal that recovery must run at
// open.
func (wl *WriteLog) Pending() bool { return wl.file.Length() > 0 }

// WellFormed validates the journal's length is either empty or a header
// page plus a whole number of frames. A length that fails this check is
// Corrupt and open must refuse to proceed rather than guess.
func (wl *WriteLog) WellFormed() bool {
	n := wl.file.Length()
	if n == 0 {
		return true
	}
	if n < headerSize {
		return false
	}
	return (n-headerSize)%frameSize == 0
}

// BeginBatch erases any leftover journal content and writes a fresh header
// page recording the pre-batch data and table file sizes, flushing it
// before any table or data mutation may proceed.
func (wl *WriteLog) BeginBatch(dataSize, tableSize int64) error {
	if err := wl.file.Truncate(0); err != nil {
		return err
	}
	buf := make([]byte, headerSize)
	u48.Put(buf[0:u48.Size], uint64(dataSize))
	u48.Put(buf[u48.Size:2*u48.Size], uint64(tableSize))
	if err := wl.file.WriteAt(buf, 0); err != nil {
		return err
	}
	if err := wl.file.Flush(); err != nil {
		return err
	}
	wl.captured = make(map[pagefile.PageIndex]bool)
	wl.preBatchTablePages = pagefile.PageIndex(tableSize / pagefile.Size)
	return nil
}

// CaptureIfNeeded appends preImage's frame the first time page is mutated
// in the current batch; subsequent calls for the same page within the same
// batch are no-ops, since the first captured pre-image is the one recovery
// needs to restore. Pages at or beyond preBatchTablePages are newly
// appended this batch — truncating the table file back to its pre-batch
// size during recovery already discards them, so they are never captured
// (capturing one would make recovery replay it back into existence).
func (wl *WriteLog) CaptureIfNeeded(page pagefile.PageIndex, preImage []byte) error {
	if page >= wl.preBatchTablePages {
		return nil
	}
	if wl.captured == nil {
		wl.captured = make(map[pagefile.PageIndex]bool)
	}
	if wl.captured[page] {
		return nil
	}
	if len(preImage) != pagefile.Size {
		return herr.Corrupt.Wrap(fmt.Errorf("capture page %d: pre-image is %d bytes, want %d", page, len(preImage), pagefile.Size))
	}
	frame := make([]byte, frameSize)
	u48.Put(frame[:u48.Size], uint64(page))
	copy(frame[u48.Size:], preImage)
	if err := wl.file.WriteAt(frame, wl.file.Length()); err != nil {
		return err
	}
	wl.captured[page] = true
	return nil
}

// EndBatch erases the journal, marking the batch durably complete.
func (wl *WriteLog) EndBatch() error {
	if err := wl.file.Truncate(0); err != nil {
		return err
	}
	wl.captured = nil
	return nil
}

// ReadHeader parses page 0, returning the pre-batch data and table file
// sizes it recorded.
func (wl *WriteLog) ReadHeader() (dataSize, tableSize int64, err error) {
	if wl.file.Length() < headerSize {
		return 0, 0, herr.Corrupt.Wrap(fmt.Errorf("write log header is %d bytes, want at least %d", wl.file.Length(), headerSize))
	}
	buf := make([]byte, headerSize)
	if err := wl.file.ReadAt(buf, 0); err != nil {
		return 0, 0, err
	}
	return int64(u48.Get(buf[0:u48.Size])), int64(u48.Get(buf[u48.Size : 2*u48.Size])), nil
}

// Frames returns every captured table-page pre-image, in the order they
// were written (which is also replay order: later frames for the same page
// cannot occur within one batch because CaptureIfNeeded only records the
// first).
func (wl *WriteLog) Frames() ([]Frame, error) {
	n := wl.file.Length()
	if n < headerSize {
		return nil, nil
	}
	count := int((n - headerSize) / frameSize)
	frames := make([]Frame, 0, count)
	for i := 0; i < count; i++ {
		off := headerSize + int64(i)*frameSize
		buf := make([]byte, frameSize)
		if err := wl.file.ReadAt(buf, off); err != nil {
			return nil, err
		}
		frames = append(frames, Frame{
			Page:     pagefile.PageIndex(u48.Get(buf[:u48.Size])),
			PreImage: append([]byte(nil), buf[u48.Size:]...),
		})
	}
	return frames, nil
}
