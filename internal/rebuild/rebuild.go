// Package rebuild implements the optional recovery-of-table-from-data
// tool: given a data log and a fresh (or deleted) table store, it replays
// every keyed application record in append order and re-links it into the
// hash directory, reconstructing an index that answers Get identically to
// the one that produced the data log.
package rebuild

import (
	"os"

	"github.com/hammersbald/hammersbald/internal/datalog"
	"github.com/hammersbald/hammersbald/internal/hashindex"
	"github.com/hammersbald/hammersbald/internal/table"
)

// Result reports how many records the rebuild walked and how many distinct
// keys it re-indexed (a key written several times counts once).
type Result struct {
	RecordsWalked int
	KeysReindexed int
}

// Run deletes name's existing table file (if any) and rebuilds it from
// scratch by replaying name's data log.
func Run(name string, cachePages, bucketFillTarget int) (Result, error) {
	if err := os.Remove(name + ".tbl"); err != nil && !os.IsNotExist(err) {
		return Result{}, err
	}

	dl, err := datalog.Open(name+".dat", cachePages)
	if err != nil {
		return Result{}, err
	}
	defer dl.Close()

	ts, err := table.Open(name+".tbl", cachePages)
	if err != nil {
		return Result{}, err
	}
	defer ts.Close()

	idx := hashindex.New(ts, dl, bucketFillTarget)

	var result Result
	seen := map[string]struct{}{}
	err = dl.Walk(func(pref datalog.PRef, rec datalog.Record) error {
		result.RecordsWalked++
		if rec.Type != datalog.TypeApplication {
			return nil
		}
		key, _, err := dl.ReadApplication(pref)
		if err != nil {
			return err
		}
		if len(key) == 0 {
			return nil
		}
		if err := idx.Reinsert(key, pref); err != nil {
			return err
		}
		if _, ok := seen[string(key)]; !ok {
			seen[string(key)] = struct{}{}
			result.KeysReindexed++
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	if err := ts.Flush(); err != nil {
		return Result{}, err
	}
	return result, nil
}
