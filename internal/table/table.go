package table

import (
	"github.com/hammersbald/hammersbald/internal/pagefile"
	"github.com/hammersbald/hammersbald/internal/u48"
)

// metaPage is the reserved page index holding (L, S).
const metaPage pagefile.PageIndex = 0

// InitialLevel is L's starting value: an initial bucket count of 2^9=512.
const InitialLevel uint16 = 9

// CaptureFunc is invoked by TableStore immediately before every overwrite of
// an existing table page, receiving that page's pre-mutation content; pages
// appended to grow the table are not captured. TableStore does not track
// batches, so the callee decides whether a page was already captured. It is how the write-ahead log captures
// page pre-images (§4.5) without TableStore needing to know anything about
// journaling.
type CaptureFunc func(page pagefile.PageIndex, preImage []byte) error

// TableStore is the paged backing store for the linear-hash directory: page
// 0 carries (L, S) metadata, and page p>=1 carries SlotsPerPage consecutive
// buckets starting at logical bucket index SlotsPerPage*(p-1).
type TableStore struct {
	cache   *pagefile.Cache
	capture CaptureFunc
}

// Open opens (or creates) the table file at path with the given page cache
// capacity. A freshly created file is initialized with metadata page 0 set
// to (InitialLevel, 0).
func Open(path string, cachePages int) (*TableStore, error) {
	f, err := pagefile.Open(path)
	if err != nil {
		return nil, err
	}
	ts := &TableStore{cache: pagefile.NewCache(f, cachePages)}
	if f.PageCount() == 0 {
		if err := ts.PutMeta(InitialLevel, 0); err != nil {
			return nil, err
		}
	}
	return ts, nil
}

// SetCaptureFunc installs (or clears, with nil) the write-ahead-log
// pre-image hook. The engine installs it once, when it opens the store.
func (ts *TableStore) SetCaptureFunc(fn CaptureFunc) { ts.capture = fn }

// File exposes the underlying pagefile.File, e.g. for Flush/Close/size
// queries during recovery.
func (ts *TableStore) File() *pagefile.File { return ts.cache.File() }

// Flush forces the table file to durable media.
func (ts *TableStore) Flush() error { return ts.cache.File().Flush() }

// Close releases the underlying file handle.
func (ts *TableStore) Close() error { return ts.cache.File().Close() }

// InvalidateCache drops every cached page, forcing the next read to go to
// the underlying file. Used after a recovery truncate.
func (ts *TableStore) InvalidateCache() { ts.cache.InvalidateAll() }

// Truncate shortens the table file to exactly size bytes (always a
// multiple of pagefile.Size in practice) and drops cached pages beyond it.
// Used by recovery to roll back a failed batch's page growth before
// replaying captured pre-images.
func (ts *TableStore) Truncate(size int64) error {
	if err := ts.cache.File().Truncate(size); err != nil {
		return err
	}
	ts.cache.InvalidateAll()
	return nil
}

// WriteRawPage writes buf directly to page n of the underlying file,
// bypassing both the page cache and the capture hook. Used only by
// recovery to replay a write-ahead-log pre-image onto a page that already
// exists in the truncated file.
func (ts *TableStore) WriteRawPage(n pagefile.PageIndex, buf []byte) error {
	if err := ts.cache.File().WritePage(n, buf); err != nil {
		return err
	}
	ts.cache.Invalidate(n)
	return nil
}

func (ts *TableStore) zeroPage() []byte { return make([]byte, pagefile.Size) }

// readPage returns page n's content, or a zero page if it does not yet
// exist (used when growing the table).
func (ts *TableStore) readPage(n pagefile.PageIndex) ([]byte, error) {
	count := ts.cache.File().PageCount()
	if uint64(n) >= count {
		return ts.zeroPage(), nil
	}
	return ts.cache.ReadPage(n)
}

// writePage writes buf to page n, capturing n's pre-image first if the
// page already exists and a CaptureFunc is installed.
func (ts *TableStore) writePage(n pagefile.PageIndex, buf []byte) error {
	count := ts.cache.File().PageCount()
	if uint64(n) < count {
		if ts.capture != nil {
			pre, err := ts.cache.ReadPage(n)
			if err != nil {
				return err
			}
			if err := ts.capture(n, pre); err != nil {
				return err
			}
		}
		return ts.cache.WritePage(n, buf)
	}
	for uint64(n) > count {
		if _, err := ts.cache.AppendPage(ts.zeroPage()); err != nil {
			return err
		}
		count++
	}
	_, err := ts.cache.AppendPage(buf)
	return err
}

// GetMeta reads the current (L, S) pair from page 0.
func (ts *TableStore) GetMeta() (level uint16, split uint64, err error) {
	buf, err := ts.readPage(metaPage)
	if err != nil {
		return 0, 0, err
	}
	level = uint16(buf[0])<<8 | uint16(buf[1])
	split = u48.Get(buf[2:8])
	return level, split, nil
}

// PutMeta writes (L, S) to page 0.
func (ts *TableStore) PutMeta(level uint16, split uint64) error {
	buf, err := ts.readPage(metaPage)
	if err != nil {
		return err
	}
	buf[0] = byte(level >> 8)
	buf[1] = byte(level)
	u48.Put(buf[2:8], split)
	return ts.writePage(metaPage, buf)
}

// BucketCount returns N = 2^L + S, the number of buckets currently live.
func (ts *TableStore) BucketCount() (uint64, error) {
	level, split, err := ts.GetMeta()
	if err != nil {
		return 0, err
	}
	return uint64(1)<<level + split, nil
}

// GetBucket reads bucket i. Buckets on pages that do not yet exist read as
// empty (0,0), matching a freshly grown table.
func (ts *TableStore) GetBucket(i uint64) (Bucket, error) {
	page, off := slotOffset(i)
	buf, err := ts.readPage(pagefile.PageIndex(page))
	if err != nil {
		return Bucket{}, err
	}
	return decodeBucket(buf[off : off+SlotSize]), nil
}

// PutBucket writes bucket i, growing the table file with zero-initialized
// pages if its page does not exist yet.
func (ts *TableStore) PutBucket(i uint64, b Bucket) error {
	page, off := slotOffset(i)
	buf, err := ts.readPage(pagefile.PageIndex(page))
	if err != nil {
		return err
	}
	copy(buf[off:off+SlotSize], encodeBucket(b))
	return ts.writePage(pagefile.PageIndex(page), buf)
}
