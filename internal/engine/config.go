package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"

	"github.com/hammersbald/hammersbald/internal/herr"
)

// Config holds the tunables the core engine exposes.
type Config struct {
	// CachePages is the PageCache capacity, in pages, given to each of the
	// data log's and the table store's separate caches. Must be >= 1.
	CachePages int `json:"cache_pages,omitempty"`

	// BucketFillTarget is the split-trigger threshold: once a bucket's
	// occupancy (head plus spill entries) exceeds this, one split runs
	// during the triggering insert.
	BucketFillTarget int `json:"bucket_fill_target,omitempty"`

	// SyncOnBatch controls whether batchLocked flushes the data and table
	// files to durable media before erasing the write-ahead log. Default
	// true. Setting it false trades crash durability for batch throughput,
	// the same trade a caller makes with BoltDB's DB.NoSync: a batch that
	// committed but was never fsynced can be lost (and silently rolled
	// back, per its own pre-batch sizes) on a power loss, but the files
	// are never left structurally corrupt, since nothing is ever declared
	// durable, and thus safe to discard the journal for, until it was
	// actually asked to be.
	SyncOnBatch *bool `json:"sync_on_batch,omitempty"`
}

// DefaultConfig returns Hammersbald's out-of-the-box tuning.
func DefaultConfig() Config {
	sync := true
	return Config{CachePages: 16, BucketFillTarget: 2, SyncOnBatch: &sync}
}

func (c Config) withDefaults() Config {
	return c.WithDefaults()
}

// WithDefaults fills any zero-valued field with DefaultConfig's value. It is
// exported so callers outside the engine package (the CLI, the root façade)
// can normalize a partially-specified Config the same way Open does.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.CachePages <= 0 {
		c.CachePages = d.CachePages
	}
	if c.BucketFillTarget <= 0 {
		c.BucketFillTarget = d.BucketFillTarget
	}
	if c.SyncOnBatch == nil {
		c.SyncOnBatch = d.SyncOnBatch
	}
	return c
}

// syncOnBatch reports the effective value, treating an unset pointer (only
// possible if a Config is used without ever passing through WithDefaults)
// as the documented default of true.
func (c Config) syncOnBatch() bool {
	return c.SyncOnBatch == nil || *c.SyncOnBatch
}

func (c Config) validate() error {
	if c.CachePages < 1 {
		return herr.Corrupt.Wrap(fmt.Errorf("cache_pages must be >= 1, got %d", c.CachePages))
	}
	if c.BucketFillTarget < 1 {
		return herr.Corrupt.Wrap(fmt.Errorf("bucket_fill_target must be >= 1, got %d", c.BucketFillTarget))
	}
	return nil
}

// LoadConfigFile reads a JWCC/JSON5-with-comments config file (via hujson)
// and overlays it on the defaults. A missing file is not an error — it
// simply yields DefaultConfig().
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, herr.Io.Wrap(fmt.Errorf("read config %s: %w", path, err))
	}

	standardized, err := hujson.Standardize(raw)
	if err != nil {
		return Config{}, herr.Corrupt.Wrap(fmt.Errorf("parse config %s: %w", path, err))
	}
	var overlay Config
	if err := json.Unmarshal(standardized, &overlay); err != nil {
		return Config{}, herr.Corrupt.Wrap(fmt.Errorf("decode config %s: %w", path, err))
	}

	if overlay.CachePages != 0 {
		cfg.CachePages = overlay.CachePages
	}
	if overlay.BucketFillTarget != 0 {
		cfg.BucketFillTarget = overlay.BucketFillTarget
	}
	if overlay.SyncOnBatch != nil {
		cfg.SyncOnBatch = overlay.SyncOnBatch
	}
	return cfg, nil
}

// SaveConfigFile writes cfg to path as indented JSON, replacing any existing
// file in one atomic rename so a reader never observes a partially written
// config (the same hazard the write-ahead log guards against for the table
// store, here applied to a plain config file).
func SaveConfigFile(path string, cfg Config) error {
	body, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return herr.Corrupt.Wrap(fmt.Errorf("encode config: %w", err))
	}
	body = append(body, '\n')
	if err := atomic.WriteFile(path, bytes.NewReader(body)); err != nil {
		return herr.Io.Wrap(fmt.Errorf("write config %s: %w", path, err))
	}
	return nil
}
