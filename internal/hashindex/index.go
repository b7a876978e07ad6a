// Package hashindex implements the linear-hashing directory proper: bucket
// addressing, spill-over chain traversal, split-driven growth, and the
// lookup/insert algorithms built on top of the table store and data log.
package hashindex

import (
	"bytes"

	"github.com/hammersbald/hammersbald/internal/datalog"
	"github.com/hammersbald/hammersbald/internal/table"
)

// Index is the linear-hash directory. It owns no locking of its own — the
// engine serializes writers and lets readers run concurrently per the
// documented concurrency model.
type Index struct {
	table      *table.TableStore
	data       *datalog.DataLog
	fillTarget int
	onSplit    func()
}

// New builds an Index over an already-open table store and data log.
// fillTarget is the bucket-occupancy threshold (head plus spill entries)
// that triggers a split after an insert; values below 1 are treated as 1.
func New(ts *table.TableStore, dl *datalog.DataLog, fillTarget int) *Index {
	if fillTarget < 1 {
		fillTarget = 1
	}
	return &Index{table: ts, data: dl, fillTarget: fillTarget}
}

// SetSplitObserver registers fn to be called once per completed bucket
// split. It exists purely for instrumentation (see internal/metrics) — a nil
// observer, the default, costs nothing.
func (ix *Index) SetSplitObserver(fn func()) {
	ix.onSplit = fn
}

// bucketFor computes key's current bucket index from the table's live
// (L, S).
func (ix *Index) bucketFor(key []byte) (uint64, error) {
	level, split, err := ix.table.GetMeta()
	if err != nil {
		return 0, err
	}
	return bucketIndexFor(hashKey(key), level, split), nil
}

// chainRefs returns every application-record PRef reachable from bucket b,
// most-recently-inserted first: the head slot, then each spill-over
// record's entries in chain order.
func (ix *Index) chainRefs(b table.Bucket) ([]datalog.PRef, error) {
	var refs []datalog.PRef
	if b.DataRef != 0 {
		refs = append(refs, datalog.PRef(b.DataRef))
	}
	cur := b.SpillRef
	for cur != 0 {
		entries, next, err := ix.data.ReadSpillover(datalog.PRef(cur))
		if err != nil {
			return nil, err
		}
		refs = append(refs, entries...)
		cur = uint64(next)
	}
	return refs, nil
}

// Lookup returns the payload most recently stored under key, if any.
func (ix *Index) Lookup(key []byte) (pref datalog.PRef, payload []byte, ok bool, err error) {
	b, err := ix.bucketFor(key)
	if err != nil {
		return 0, nil, false, err
	}
	bucket, err := ix.table.GetBucket(b)
	if err != nil {
		return 0, nil, false, err
	}
	refs, err := ix.chainRefs(bucket)
	if err != nil {
		return 0, nil, false, err
	}
	for _, ref := range refs {
		k, v, err := ix.data.ReadApplication(ref)
		if err != nil {
			return 0, nil, false, err
		}
		if bytes.Equal(k, key) {
			return ref, v, true, nil
		}
	}
	return 0, nil, false, nil
}

// GetAt reads the application record at pref directly, bypassing the hash
// directory.
func (ix *Index) GetAt(pref datalog.PRef) (key, payload []byte, err error) {
	return ix.data.ReadApplication(pref)
}

// Insert appends a new application record for key and links it into its
// bucket's chain, shadowing any prior record for the same key. It may
// trigger a single bucket split if the bucket's occupancy now exceeds the
// configured fill target.
func (ix *Index) Insert(key, payload []byte) (datalog.PRef, error) {
	newRef, err := ix.data.AppendApplication(key, payload)
	if err != nil {
		return 0, err
	}
	if err := ix.link(key, newRef); err != nil {
		return 0, err
	}
	return newRef, nil
}

// Reinsert links an already-appended application record (key, ref) into
// the hash directory without writing anything to the data log. It is how
// the rebuild tool reconstructs a table store by replaying a data log's
// existing records in their original append order.
func (ix *Index) Reinsert(key []byte, ref datalog.PRef) error {
	return ix.link(key, ref)
}

// link shadows the bucket's current head (if any) behind a new spill-over
// entry, writes ref as the new head, and splits the bucket if it is now
// over the fill target.
func (ix *Index) link(key []byte, ref datalog.PRef) error {
	b, err := ix.bucketFor(key)
	if err != nil {
		return err
	}
	bucket, err := ix.table.GetBucket(b)
	if err != nil {
		return err
	}

	newSpill := bucket.SpillRef
	if bucket.DataRef != 0 {
		spillRef, err := ix.data.AppendSpillover([]datalog.PRef{datalog.PRef(bucket.DataRef)}, datalog.PRef(bucket.SpillRef))
		if err != nil {
			return err
		}
		newSpill = uint64(spillRef)
	}

	if err := ix.table.PutBucket(b, table.Bucket{DataRef: uint64(ref), SpillRef: newSpill}); err != nil {
		return err
	}

	occupancy, err := ix.occupancy(b)
	if err != nil {
		return err
	}
	if occupancy > ix.fillTarget {
		if err := ix.split(); err != nil {
			return err
		}
		if ix.onSplit != nil {
			ix.onSplit()
		}
	}
	return nil
}

func (ix *Index) occupancy(b uint64) (int, error) {
	bucket, err := ix.table.GetBucket(b)
	if err != nil {
		return 0, err
	}
	refs, err := ix.chainRefs(bucket)
	if err != nil {
		return 0, err
	}
	return len(refs), nil
}

// split performs one linear-hash growth step: bucket S is divided between
// itself and the newly allocated bucket S+2^L under the post-split
// addressing (L, S+1), and the split pointer advances (wrapping into a
// level increment when it reaches 2^L). Application records are never
// rewritten — only bucket slots and spill-over chains change, and the
// entries that do not move are re-chained into a freshly written spill-over
// record, leaving the old one inert but intact in the data log.
func (ix *Index) split() error {
	level, splitPtr, err := ix.table.GetMeta()
	if err != nil {
		return err
	}
	b := splitPtr
	bPrime := splitPtr + uint64(1)<<level

	oldBucket, err := ix.table.GetBucket(b)
	if err != nil {
		return err
	}
	refs, err := ix.chainRefs(oldBucket)
	if err != nil {
		return err
	}

	var keep, move []datalog.PRef
	for _, ref := range refs {
		key, _, err := ix.data.ReadApplication(ref)
		if err != nil {
			return err
		}
		target := bucketIndexFor(hashKey(key), level, splitPtr+1)
		if target == bPrime {
			move = append(move, ref)
		} else {
			keep = append(keep, ref)
		}
	}

	keepBucket, err := ix.rebuildBucket(keep)
	if err != nil {
		return err
	}
	moveBucket, err := ix.rebuildBucket(move)
	if err != nil {
		return err
	}

	if err := ix.table.PutBucket(b, keepBucket); err != nil {
		return err
	}
	if err := ix.table.PutBucket(bPrime, moveBucket); err != nil {
		return err
	}

	splitPtr++
	if splitPtr == uint64(1)<<level {
		splitPtr = 0
		level++
	}
	return ix.table.PutMeta(level, splitPtr)
}

// rebuildBucket writes refs (most-recent-first) as a fresh head-slot plus
// at most one spill-over record, discarding whatever spill-over records
// previously backed the chain.
func (ix *Index) rebuildBucket(refs []datalog.PRef) (table.Bucket, error) {
	if len(refs) == 0 {
		return table.Bucket{}, nil
	}
	if len(refs) == 1 {
		return table.Bucket{DataRef: uint64(refs[0])}, nil
	}
	spillRef, err := ix.data.AppendSpillover(refs[1:], datalog.Nil)
	if err != nil {
		return table.Bucket{}, err
	}
	return table.Bucket{DataRef: uint64(refs[0]), SpillRef: uint64(spillRef)}, nil
}
