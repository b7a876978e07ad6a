// Package hammersbald provides an embedded, single-writer, append-only
// key/value store built around a linear-hashing table layered over a
// paged data log, with a write-ahead log giving each batch of writes
// all-or-nothing durability.
//
// Hammersbald is designed for workloads that append far more than they
// overwrite — block and header storage being the motivating case — and
// that never need ordered iteration, deletion, or secondary indexes:
// only point lookups by key and by the byte offset (PRef) a prior Put
// returned.
//
// # Basic usage
//
//	e, err := hammersbald.Open("chain", hammersbald.DefaultConfig(), nil)
//	if err != nil {
//		// handle err
//	}
//	defer e.Shutdown()
//
//	ref, err := e.Put([]byte("block-000001"), blockBytes)
//	if err := e.Batch(); err != nil {
//		// handle err
//	}
//
//	_, payload, ok, err := e.Get([]byte("block-000001"))
//	key, payload, err := e.GetAt(ref)
//
// # Durability
//
// Writes are only durable after Batch returns; Shutdown implicitly
// finalizes the current batch before closing. A process that dies between
// Put calls and the following Batch call loses nothing committed by an
// earlier Batch: the next Open replays the write-ahead log and rolls the
// data and table files back to their last known-good sizes.
//
// # Concurrency
//
// A store is opened by exactly one process at a time — a second Open
// against the same name fails with an error in the Locked class. Within
// that process, one writer and many concurrent readers may use the same
// *Engine: Put and PutUnkeyed take the directory's writer lock for the
// duration of a single call, not for the whole batch, while Get and GetAt
// take it for shared read access.
package hammersbald

import (
	"go.uber.org/zap"

	"github.com/hammersbald/hammersbald/internal/blockref"
	"github.com/hammersbald/hammersbald/internal/engine"
	"github.com/hammersbald/hammersbald/internal/lrucache"
	"github.com/hammersbald/hammersbald/internal/metrics"
	"github.com/hammersbald/hammersbald/internal/rebuild"
)

// PRef is an unsigned 48-bit byte offset into the data log. The zero value
// is reserved to mean "nil" and is never returned by Put or PutUnkeyed.
type PRef = engine.PRef

// Config holds the store's tunables: PageCache capacity, the
// bucket-occupancy threshold that triggers a hash-table split, and whether
// a batch flushes to durable media before its journal is erased.
type Config = engine.Config

// Stats is a point-in-time snapshot of a store's hash-directory level and
// split pointer plus its file sizes.
type Stats = engine.Stats

// Engine is an open Hammersbald store.
type Engine = engine.Engine

// DefaultConfig returns Hammersbald's out-of-the-box tuning: 16 cache
// pages, a bucket fill target of 2, and SyncOnBatch enabled.
func DefaultConfig() Config {
	return engine.DefaultConfig()
}

// LoadConfig reads a JWCC (JSON-with-comments) configuration file,
// overlaying it on DefaultConfig. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	return engine.LoadConfigFile(path)
}

// SaveConfig writes cfg to path as JSON in a single atomic rename.
func SaveConfig(path string, cfg Config) error {
	return engine.SaveConfigFile(path, cfg)
}

// Open opens (creating if necessary) the store with the given basename:
// siblings "<name>.dat", "<name>.tbl" and "<name>.log" are created or
// reused. If log is nil, a no-op logger is used.
//
// If the write-ahead log shows a batch was left unfinished by a previous
// process, Open runs recovery before returning, restoring the state as of
// that batch's last successful commit.
func Open(name string, cfg Config, log *zap.Logger) (*Engine, error) {
	return engine.Open(name, cfg, log)
}

// RebuildResult reports how many data-log records Rebuild walked and how
// many keys it re-indexed.
type RebuildResult struct {
	RecordsWalked int
	KeysReindexed int
}

// Rebuild deletes name's table file and reconstructs it by replaying
// name's data log from the beginning, re-linking every keyed application
// record into a fresh hash directory. The store must not be open in this
// process while Rebuild runs.
func Rebuild(name string, cfg Config) (RebuildResult, error) {
	cfg = cfg.WithDefaults()
	r, err := rebuild.Run(name, cfg.CachePages, cfg.BucketFillTarget)
	return RebuildResult(r), err
}

// BlockStore is the optional Bitcoin block/header adaptor: a thin
// convenience layer over Engine that validates keys are 32-byte hashes.
type BlockStore = blockref.Store

// NewBlockStore wraps an already-open Engine for block/header storage.
func NewBlockStore(e *Engine) *BlockStore {
	return blockref.New(e)
}

// Cache is the optional bounded in-memory LRU over Engine.Get/Put,
// invalidated wholesale after every successful Batch.
type Cache = lrucache.Cache

// NewCache wraps an already-open Engine with an LRU cache of the given
// entry capacity.
func NewCache(e *Engine, capacity int) *Cache {
	return lrucache.New(e, capacity)
}

// Metrics is a self-registered set of Prometheus collectors for one store:
// put/get/batch/split counters plus directory-size gauges. Wire it into an
// Engine or Cache with their UseMetrics method, then serve Metrics.Registry
// however the host process prefers (promhttp.HandlerFor is the usual choice).
type Metrics = metrics.Metrics

// NewMetrics builds a fresh, self-registered Metrics instance.
func NewMetrics() *Metrics {
	return metrics.New()
}
