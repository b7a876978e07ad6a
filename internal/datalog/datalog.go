// Package datalog implements the append-only data log: a sequence of
// typed DataRecords stored across pages of the .dat file and addressed
// by 48-bit byte offsets (PRef).
//
// Every page of the data file reserves its trailing 6 bytes to record the
// page's own physical byte offset, a lightweight self-identifying check
// against a torn or misdirected write. The remaining 4090 bytes of each
// page carry record bytes; DataLog addresses those bytes as one
// contiguous logical stream, transparently hopping the 6-byte footer
// whenever a record crosses a page boundary. This is a deliberate
// simplification of the source specification's "header never straddles a
// page boundary" convention: that rule exists to keep record-header
// parsing from having to special-case split reads across two page
// buffers, which the logical/physical split below already handles
// uniformly for headers and payload bytes alike.
package datalog

import (
	"fmt"

	"github.com/hammersbald/hammersbald/internal/herr"
	"github.com/hammersbald/hammersbald/internal/pagefile"
	"github.com/hammersbald/hammersbald/internal/u48"
)

// usable is the number of record-stream bytes per page; the remaining 6
// bytes hold the page's self-offset footer.
const usable = pagefile.Size - u48.Size

// DataLog is the append-only record stream. It owns no locking of its
// own: the engine serializes writers per §5, and reads of already
// committed PRefs commute with concurrent appends because this type
// never mutates a previously-completed page in place — only the current,
// possibly-partial tail page is rewritten as more bytes land in it.
type DataLog struct {
	cache  *pagefile.Cache
	cursor int64 // logical bytes appended so far
}

// Open opens (or creates) the data log at path with the given page cache
// capacity. The logical cursor is set to the end of the last whole page's
// usable area (page count * 4090), not to the end of the last record: any
// unused tail of that page reads as zero-length padding records. Recovery's
// Truncate sets the cursor back to an exact size.
func Open(path string, cachePages int) (*DataLog, error) {
	f, err := pagefile.Open(path)
	if err != nil {
		return nil, err
	}
	dl := &DataLog{cache: pagefile.NewCache(f, cachePages)}
	dl.cursor = logicalSize(f.PageCount())
	return dl, nil
}

// logicalSize converts a physical page count into the number of logical
// record-stream bytes it can hold.
func logicalSize(pages uint64) int64 {
	return int64(pages) * usable
}

// Size returns the logical cursor: the number of logical bytes appended so
// far, or, right after Open, the page-rounded size described there. It is
// the value a future Truncate call during recovery would restore.
func (dl *DataLog) Size() int64 { return dl.cursor }

// Close releases the underlying file handle.
func (dl *DataLog) Close() error { return dl.cache.File().Close() }

// Flush forces the data file to durable media.
func (dl *DataLog) Flush() error { return dl.cache.File().Flush() }

func pageAndWithin(logicalOff int64) (pagefile.PageIndex, int) {
	return pagefile.PageIndex(logicalOff / usable), int(logicalOff % usable)
}

// readLogical reads n logical bytes starting at off.
func (dl *DataLog) readLogical(off int64, n int) ([]byte, error) {
	out := make([]byte, n)
	pos := off
	for filled := 0; filled < n; {
		page, within := pageAndWithin(pos)
		chunk := usable - within
		if remain := n - filled; chunk > remain {
			chunk = remain
		}
		buf, err := dl.cache.ReadPage(page)
		if err != nil {
			return nil, err
		}
		copy(out[filled:filled+chunk], buf[within:within+chunk])
		filled += chunk
		pos += int64(chunk)
	}
	return out, nil
}

// writeLogical writes data starting at logical offset off, creating new
// physical pages as needed and stamping each touched page's self-offset
// footer.
func (dl *DataLog) writeLogical(off int64, data []byte) error {
	pos := off
	for written := 0; written < len(data); {
		page, within := pageAndWithin(pos)
		chunk := usable - within
		if remain := len(data) - written; chunk > remain {
			chunk = remain
		}

		count := dl.cache.File().PageCount()
		var buf []byte
		switch {
		case uint64(page) < count:
			b, err := dl.cache.ReadPage(page)
			if err != nil {
				return err
			}
			buf = b
		case uint64(page) == count:
			buf = make([]byte, pagefile.Size)
		default:
			return herr.Corrupt.Wrap(fmt.Errorf("data log write at page %d beyond current end %d", page, count))
		}

		copy(buf[within:within+chunk], data[written:written+chunk])
		u48.Put(buf[usable:], uint64(page)*pagefile.Size)

		if uint64(page) < count {
			if err := dl.cache.WritePage(page, buf); err != nil {
				return err
			}
		} else if _, err := dl.cache.AppendPage(buf); err != nil {
			return err
		}

		written += chunk
		pos += int64(chunk)
	}
	return nil
}

// Append writes a new record of the given type and payload at the
// current cursor and returns its PRef.
func (dl *DataLog) Append(recType byte, payload []byte) (PRef, error) {
	if len(payload) > MaxPayloadLen {
		return 0, herr.TooLarge.Wrap(fmt.Errorf("record payload is %d bytes, max %d", len(payload), MaxPayloadLen))
	}
	if dl.cursor == 0 {
		// PRef 0 is reserved as nil: an empty padding record (all-zero
		// header) fills offset 0 so no real record is ever addressed by it.
		if err := dl.writeLogical(0, make([]byte, headerSize)); err != nil {
			return 0, err
		}
		dl.cursor = headerSize
	}
	ref := PRef(dl.cursor)
	if uint64(dl.cursor)+uint64(headerSize+len(payload)) > u48.Max {
		return 0, herr.TooLarge.Wrap(fmt.Errorf("data log would exceed 48-bit address space"))
	}
	buf := make([]byte, headerSize+len(payload))
	putHeader(buf, recType, len(payload))
	copy(buf[headerSize:], payload)
	if err := dl.writeLogical(dl.cursor, buf); err != nil {
		return 0, err
	}
	dl.cursor += int64(len(buf))
	return ref, nil
}

// AppendApplication appends a type-1 application record holding key and
// value, returning its PRef.
func (dl *DataLog) AppendApplication(key, value []byte) (PRef, error) {
	payload, err := encodeApplication(key, value)
	if err != nil {
		return 0, err
	}
	return dl.Append(TypeApplication, payload)
}

// AppendSpillover appends a type-2 spill-over record chaining entries to
// next, returning its PRef.
func (dl *DataLog) AppendSpillover(entries []PRef, next PRef) (PRef, error) {
	payload, err := encodeSpillover(entries, next)
	if err != nil {
		return 0, err
	}
	return dl.Append(TypeSpillover, payload)
}

// Read performs a random-access read of the record at pref.
func (dl *DataLog) Read(pref PRef) (Record, error) {
	if int64(pref) >= dl.cursor {
		return Record{}, herr.NotFound.Wrap(fmt.Errorf("PRef %d is beyond data log end %d", pref, dl.cursor))
	}
	hdr, err := dl.readLogical(int64(pref), headerSize)
	if err != nil {
		return Record{}, err
	}
	recType := hdr[0]
	plen := getHeaderLen(hdr)
	if plen > MaxPayloadLen || int64(pref)+int64(headerSize)+int64(plen) > dl.cursor {
		return Record{}, herr.Corrupt.Wrap(fmt.Errorf("record at %d has impossible length %d", pref, plen))
	}
	payload, err := dl.readLogical(int64(pref)+headerSize, plen)
	if err != nil {
		return Record{}, err
	}
	return Record{Type: recType, Payload: payload}, nil
}

// ReadApplication reads the record at pref and requires it to be a
// type-1 application record, failing with herr.WrongType otherwise.
func (dl *DataLog) ReadApplication(pref PRef) (key, value []byte, err error) {
	rec, err := dl.Read(pref)
	if err != nil {
		return nil, nil, err
	}
	if rec.Type != TypeApplication {
		return nil, nil, herr.WrongType.Wrap(fmt.Errorf("record at %d has type %d, want application", pref, rec.Type))
	}
	return decodeApplication(rec.Payload)
}

// ReadSpillover reads the record at pref and requires it to be a type-2
// spill-over record.
func (dl *DataLog) ReadSpillover(pref PRef) (entries []PRef, next PRef, err error) {
	rec, err := dl.Read(pref)
	if err != nil {
		return nil, 0, err
	}
	if rec.Type != TypeSpillover {
		return nil, 0, herr.Corrupt.Wrap(fmt.Errorf("record at %d has type %d, want spill-over", pref, rec.Type))
	}
	return decodeSpillover(rec.Payload)
}

// Truncate shortens the data log to exactly size logical bytes, used by
// crash recovery to roll back an incomplete batch's appends.
func (dl *DataLog) Truncate(size int64) error {
	pages := (size + usable - 1) / usable
	if size == 0 {
		pages = 0
	}
	if err := dl.cache.File().Truncate(pages * pagefile.Size); err != nil {
		return err
	}
	dl.cache.InvalidateAll()
	dl.cursor = size
	return nil
}

// Walk scans every non-padding record from the beginning of the log in
// append order, invoking fn with each one's PRef. Used by the rebuild tool
// to reconstruct a table store from the data log alone.
func (dl *DataLog) Walk(fn func(pref PRef, rec Record) error) error {
	var pos int64
	for pos+headerSize <= dl.cursor {
		rec, err := dl.Read(PRef(pos))
		if err != nil {
			return err
		}
		if rec.Type != TypePadding {
			if err := fn(PRef(pos), rec); err != nil {
				return err
			}
		}
		pos += int64(headerSize + len(rec.Payload))
	}
	return nil
}
