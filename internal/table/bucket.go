// Package table implements TableStore: paged storage for the linear-hash
// directory's metadata and bucket slots.
package table

import "github.com/hammersbald/hammersbald/internal/u48"

// SlotsPerPage is the number of 12-byte bucket slots carried by each table
// page from page 1 onward: floor(4090/12), matching the data file's usable
// bytes per page. The remaining 16 bytes of the 4096-byte page (10 inside
// those 4090 plus the 6 where the data file keeps its self-offset footer)
// are left unused; table pages carry no footer.
const SlotsPerPage = 340

// SlotSize is the encoded width of one Bucket: two 48-bit PRefs.
const SlotSize = 2 * u48.Size

// Bucket is a single hash-table slot: the PRef of the most recently
// inserted application record hashing here, and the PRef heading the
// spill-over chain covering earlier collisions. The zero value (0,0) is
// the empty bucket.
type Bucket struct {
	DataRef  uint64
	SpillRef uint64
}

// Empty reports whether the bucket has never been written.
func (b Bucket) Empty() bool { return b.DataRef == 0 && b.SpillRef == 0 }

func encodeBucket(b Bucket) []byte {
	buf := make([]byte, SlotSize)
	u48.Put(buf[:u48.Size], b.DataRef)
	u48.Put(buf[u48.Size:], b.SpillRef)
	return buf
}

func decodeBucket(buf []byte) Bucket {
	return Bucket{
		DataRef:  u48.Get(buf[:u48.Size]),
		SpillRef: u48.Get(buf[u48.Size:]),
	}
}

// slotOffset returns the byte offset of bucket index i's slot within its
// page, and the page index it lives on (pages are 1-based for buckets;
// page 0 is reserved for metadata).
func slotOffset(i uint64) (page uint64, offsetInPage int) {
	return i/SlotsPerPage + 1, int(i%SlotsPerPage) * SlotSize
}
