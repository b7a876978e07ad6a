// Package blockref is the optional Bitcoin block/header adaptor mentioned
// in the core's scope as an external collaborator: a thin, 32-byte-hash-key
// convenience layer over Engine, not part of the core hash-map engine
// itself.
package blockref

import (
	"fmt"

	"github.com/hammersbald/hammersbald/internal/engine"
	"github.com/hammersbald/hammersbald/internal/herr"
)

// HashLen is the width of a block or header hash key (e.g. a Bitcoin
// double-SHA256 block hash).
const HashLen = 32

// Store addresses block/header records by their 32-byte hash, using the
// underlying Engine's ordinary keyed put/get.
type Store struct {
	engine *engine.Engine
}

// New wraps an already-open Engine.
func New(e *engine.Engine) *Store {
	return &Store{engine: e}
}

// PutBlock stores raw block (or header) bytes under hash, which must be
// exactly HashLen bytes.
func (s *Store) PutBlock(hash, raw []byte) (engine.PRef, error) {
	if len(hash) != HashLen {
		return 0, herr.TooLarge.Wrap(fmt.Errorf("block hash is %d bytes, want %d", len(hash), HashLen))
	}
	return s.engine.Put(hash, raw)
}

// GetBlock retrieves the raw bytes last stored under hash.
func (s *Store) GetBlock(hash []byte) (raw []byte, ok bool, err error) {
	if len(hash) != HashLen {
		return nil, false, herr.TooLarge.Wrap(fmt.Errorf("block hash is %d bytes, want %d", len(hash), HashLen))
	}
	_, payload, ok, err := s.engine.Get(hash)
	return payload, ok, err
}

// GetBlockAt retrieves a block by its PRef rather than its hash, e.g. when
// following a previously-stored reference.
func (s *Store) GetBlockAt(pref engine.PRef) (hash, raw []byte, err error) {
	return s.engine.GetAt(pref)
}
