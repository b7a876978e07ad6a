// Package engine orchestrates the storage layers into the public
// Hammersbald surface: open/recover, batch, put/get by key, put/get by
// offset, and shutdown.
package engine

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hammersbald/hammersbald/internal/datalog"
	"github.com/hammersbald/hammersbald/internal/hashindex"
	"github.com/hammersbald/hammersbald/internal/herr"
	"github.com/hammersbald/hammersbald/internal/lock"
	"github.com/hammersbald/hammersbald/internal/metrics"
	"github.com/hammersbald/hammersbald/internal/table"
	"github.com/hammersbald/hammersbald/internal/wal"
)

// PRef is an unsigned 48-bit byte offset into the data log, re-exported
// from datalog for callers that never need the lower layers directly.
type PRef = datalog.PRef

// Stats is a point-in-time snapshot of engine state, primarily for the
// stat/inspect CLI command.
type Stats struct {
	Level       uint16
	Split       uint64
	BucketCount uint64
	DataSize    int64
	TableSize   int64
}

// Engine is a single, exclusively-owned Hammersbald store: three sibling
// files (<name>.dat, <name>.tbl, <name>.log) plus the advisory lock that
// guards them for the process's lifetime.
//
// A single reader-writer lock serializes mutation: the writer holds it
// exclusively for the duration of each individual Put/PutUnkeyed call (not
// for the whole batch), and readers hold it shared, matching the
// documented concurrency model. PageCache synchronization is internal to
// pagefile.Cache.
type Engine struct {
	mu sync.RWMutex

	name string
	cfg  Config
	log  *zap.Logger

	fileLock *lock.Lock
	data     *datalog.DataLog
	tbl      *table.TableStore
	wal      *wal.WriteLog
	index    *hashindex.Index

	metrics *metrics.Metrics
	closed  bool
}

// UseMetrics wires m into the engine: every Put/PutUnkeyed, Get/GetAt, Batch
// and bucket split increments its corresponding counter. Passing nil (the
// default) disables instrumentation entirely.
func (e *Engine) UseMetrics(m *metrics.Metrics) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.metrics = m
	if e.index != nil {
		if m != nil {
			e.index.SetSplitObserver(m.Splits.Inc)
		} else {
			e.index.SetSplitObserver(nil)
		}
	}
}

// Open opens (creating if necessary) the store at name, running recovery
// first if an unfinished batch's journal is present, then begins the first
// batch.
func Open(name string, cfg Config, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	fileLock, err := lock.Acquire(name + ".lock")
	if err != nil {
		return nil, err
	}

	e := &Engine{name: name, cfg: cfg, log: log, fileLock: fileLock}
	if err := e.openFiles(); err != nil {
		fileLock.Release()
		return nil, err
	}

	if e.wal.Pending() {
		if !e.wal.WellFormed() {
			e.closeFiles()
			fileLock.Release()
			return nil, herr.Corrupt.Wrap(fmt.Errorf("%s.log is present but malformed", name))
		}
		log.Warn("recovering unfinished batch", zap.String("store", name))
		if err := e.recover(); err != nil {
			e.closeFiles()
			fileLock.Release()
			return nil, err
		}
	}

	e.index = hashindex.New(e.tbl, e.data, cfg.BucketFillTarget)
	e.tbl.SetCaptureFunc(e.wal.CaptureIfNeeded)

	if err := e.wal.BeginBatch(e.data.Size(), e.tbl.File().Length()); err != nil {
		e.closeFiles()
		fileLock.Release()
		return nil, err
	}

	return e, nil
}

func (e *Engine) openFiles() error {
	var err error
	if e.data, err = datalog.Open(e.name+".dat", e.cfg.CachePages); err != nil {
		return err
	}
	if e.tbl, err = table.Open(e.name+".tbl", e.cfg.CachePages); err != nil {
		e.data.Close()
		return err
	}
	if e.wal, err = wal.Open(e.name + ".log"); err != nil {
		e.data.Close()
		e.tbl.Close()
		return err
	}
	return nil
}

func (e *Engine) closeFiles() {
	if e.data != nil {
		e.data.Close()
	}
	if e.tbl != nil {
		e.tbl.Close()
	}
	if e.wal != nil {
		e.wal.Close()
	}
}

// recover restores the pre-batch data and table file sizes recorded in the
// journal's header, replays captured page pre-images onto the table file,
// then erases the journal.
func (e *Engine) recover() error {
	dataSize, tableSize, err := e.wal.ReadHeader()
	if err != nil {
		return err
	}
	if err := e.data.Truncate(dataSize); err != nil {
		return err
	}
	if err := e.tbl.Truncate(tableSize); err != nil {
		return err
	}
	frames, err := e.wal.Frames()
	if err != nil {
		return err
	}
	for _, f := range frames {
		if err := e.tbl.WriteRawPage(f.Page, f.PreImage); err != nil {
			return err
		}
	}
	if err := e.tbl.Flush(); err != nil {
		return err
	}
	return e.wal.EndBatch()
}

// Batch terminates the current batch — flushing the data and table files
// to durable media, then erasing the journal — and immediately begins a
// new one.
func (e *Engine) Batch() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.batchLocked()
}

func (e *Engine) batchLocked() error {
	if e.cfg.syncOnBatch() {
		if err := e.data.Flush(); err != nil {
			return err
		}
		if err := e.tbl.Flush(); err != nil {
			return err
		}
	}
	if err := e.wal.EndBatch(); err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.Batches.Inc()
	}
	return e.wal.BeginBatch(e.data.Size(), e.tbl.File().Length())
}

// Put validates key and payload lengths and inserts them into the hash
// directory, returning the PRef of the new application record.
func (e *Engine) Put(key, payload []byte) (PRef, error) {
	if len(key) > datalog.MaxKeyLen {
		return 0, herr.TooLarge.Wrap(fmt.Errorf("key is %d bytes, max %d", len(key), datalog.MaxKeyLen))
	}
	if len(payload) > datalog.MaxPayloadLen {
		return 0, herr.TooLarge.Wrap(fmt.Errorf("payload is %d bytes, max %d", len(payload), datalog.MaxPayloadLen))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.metrics != nil {
		e.metrics.Puts.Inc()
	}
	return e.index.Insert(key, payload)
}

// PutUnkeyed appends an application record with no key; the PRef is the
// only way to retrieve it.
func (e *Engine) PutUnkeyed(payload []byte) (PRef, error) {
	if len(payload) > datalog.MaxPayloadLen {
		return 0, herr.TooLarge.Wrap(fmt.Errorf("payload is %d bytes, max %d", len(payload), datalog.MaxPayloadLen))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.metrics != nil {
		e.metrics.Puts.Inc()
	}
	return e.data.AppendApplication(nil, payload)
}

// Get looks up key, reporting ok=false if no live record matches.
func (e *Engine) Get(key []byte) (pref PRef, payload []byte, ok bool, err error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.metrics != nil {
		e.metrics.Gets.Inc()
	}
	return e.index.Lookup(key)
}

// GetAt reads the application record at pref directly.
func (e *Engine) GetAt(pref PRef) (key, payload []byte, err error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.metrics != nil {
		e.metrics.Gets.Inc()
	}
	return e.index.GetAt(pref)
}

// Stats reports the current hash-directory level/split and file sizes.
func (e *Engine) Stats() (Stats, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	level, split, err := e.tbl.GetMeta()
	if err != nil {
		return Stats{}, err
	}
	count, err := e.tbl.BucketCount()
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{
		Level:       level,
		Split:       split,
		BucketCount: count,
		DataSize:    e.data.Size(),
		TableSize:   e.tbl.File().Length(),
	}
	if e.metrics != nil {
		e.metrics.SetGauges(stats.BucketCount, stats.DataSize, stats.TableSize)
	}
	return stats, nil
}

// Shutdown terminates the current batch, flushes, and releases every file
// handle including the advisory lock. Subsequent calls are no-ops.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	err := e.batchLocked()
	e.closeFiles()
	if relErr := e.fileLock.Release(); err == nil {
		err = relErr
	}
	return err
}
