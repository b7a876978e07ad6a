package engine

import (
	"bytes"
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	dto "github.com/prometheus/client_model/go"

	"github.com/hammersbald/hammersbald/internal/metrics"
	"github.com/hammersbald/hammersbald/internal/table"
)

func counterValue(m *dto.Metric) float64 {
	return m.GetCounter().GetValue()
}

func storeName(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "store")
}

func TestPutGetRoundTripAcrossReopen(t *testing.T) {
	name := storeName(t)
	e, err := Open(name, Config{CachePages: 16, BucketFillTarget: 2}, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, err := e.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := e.Put([]byte("b"), []byte("2")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := e.Batch(); err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if err := e.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	e2, err := Open(name, Config{CachePages: 16, BucketFillTarget: 2}, zap.NewNop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer e2.Shutdown()

	_, v, ok, err := e2.Get([]byte("a"))
	if err != nil || !ok || string(v) != "1" {
		t.Fatalf("Get(a) = (%q, %v, %v)", v, ok, err)
	}
	_, v, ok, err = e2.Get([]byte("b"))
	if err != nil || !ok || string(v) != "2" {
		t.Fatalf("Get(b) = (%q, %v, %v)", v, ok, err)
	}
}

func TestPutUnkeyedGetAt(t *testing.T) {
	name := storeName(t)
	e, err := Open(name, DefaultConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Shutdown()

	payload := bytes.Repeat([]byte{7}, 1_000_000)
	ref, err := e.PutUnkeyed(payload)
	if err != nil {
		t.Fatalf("PutUnkeyed: %v", err)
	}
	if err := e.Batch(); err != nil {
		t.Fatalf("Batch: %v", err)
	}
	key, val, err := e.GetAt(ref)
	if err != nil {
		t.Fatalf("GetAt: %v", err)
	}
	if len(key) != 0 {
		t.Fatalf("expected empty key, got %d bytes", len(key))
	}
	if !bytes.Equal(val, payload) {
		t.Fatal("unkeyed payload mismatch")
	}
}

func TestOverwriteKeepsOldByOffset(t *testing.T) {
	name := storeName(t)
	e, err := Open(name, DefaultConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Shutdown()

	ref1, err := e.Put([]byte("k"), []byte("v1"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := e.Put([]byte("k"), []byte("v2")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := e.Batch(); err != nil {
		t.Fatalf("Batch: %v", err)
	}

	_, v, ok, err := e.Get([]byte("k"))
	if err != nil || !ok || string(v) != "v2" {
		t.Fatalf("Get(k) = (%q, %v, %v), want v2", v, ok, err)
	}
	key, val, err := e.GetAt(ref1)
	if err != nil || string(key) != "k" || string(val) != "v1" {
		t.Fatalf("GetAt(ref1) = (%q, %q, %v), want (k, v1)", key, val, err)
	}
}

func TestSecondOpenFailsLocked(t *testing.T) {
	name := storeName(t)
	e, err := Open(name, DefaultConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Shutdown()

	_, err = Open(name, DefaultConfig(), zap.NewNop())
	if err == nil {
		t.Fatal("expected second Open to fail")
	}
}

// TestCrashMidBatchRollsBack simulates a process dying after Put calls but
// before Batch ever returns: the journal is left pending with captured
// page pre-images, and the next Open must restore exactly the prior
// batch's state.
func TestCrashMidBatchRollsBack(t *testing.T) {
	name := storeName(t)
	e, err := Open(name, Config{CachePages: 16, BucketFillTarget: 2}, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := e.Put([]byte("committed"), []byte("yes")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := e.Batch(); err != nil {
		t.Fatalf("Batch: %v", err)
	}

	preDataSize := e.data.Size()
	preTableSize := e.tbl.File().Length()

	for i := 0; i < 100; i++ {
		if _, err := e.Put([]byte(fmt.Sprintf("lost-%d", i)), []byte("no")); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	// Simulate a crash: close the raw file handles without ever calling
	// Batch/Shutdown, so the journal is left exactly as the in-flight
	// batch last wrote it.
	e.data.Close()
	e.tbl.Close()
	e.wal.Close()
	e.fileLock.Release()

	e2, err := Open(name, Config{CachePages: 16, BucketFillTarget: 2}, zap.NewNop())
	if err != nil {
		t.Fatalf("reopen after crash: %v", err)
	}
	defer e2.Shutdown()

	if e2.data.Size() != preDataSize {
		t.Fatalf("data size after recovery = %d, want %d", e2.data.Size(), preDataSize)
	}
	if e2.tbl.File().Length() != preTableSize {
		t.Fatalf("table size after recovery = %d, want %d", e2.tbl.File().Length(), preTableSize)
	}

	_, v, ok, err := e2.Get([]byte("committed"))
	if err != nil || !ok || string(v) != "yes" {
		t.Fatalf("Get(committed) = (%q, %v, %v), want (yes, true)", v, ok, err)
	}
	for i := 0; i < 100; i++ {
		_, _, ok, err := e2.Get([]byte(fmt.Sprintf("lost-%d", i)))
		if err != nil {
			t.Fatalf("Get(lost-%d): %v", i, err)
		}
		if ok {
			t.Fatalf("Get(lost-%d) unexpectedly found after crash recovery", i)
		}
	}
}

func TestManyInsertsSplitAndSurviveReopen(t *testing.T) {
	name := storeName(t)
	e, err := Open(name, Config{CachePages: 32, BucketFillTarget: 2}, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	const n = 1000
	r := rand.New(rand.NewSource(1))
	payloads := make([][]byte, n)
	for i := 0; i < n; i++ {
		p := make([]byte, 100)
		r.Read(p)
		payloads[i] = p
		if _, err := e.Put([]byte(fmt.Sprintf("key_%04d", i)), p); err != nil {
			t.Fatalf("Put(%d): %v", i, err)
		}
	}
	if err := e.Batch(); err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if err := e.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	e2, err := Open(name, Config{CachePages: 32, BucketFillTarget: 2}, zap.NewNop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer e2.Shutdown()

	for i := 0; i < n; i++ {
		_, v, ok, err := e2.Get([]byte(fmt.Sprintf("key_%04d", i)))
		if err != nil || !ok {
			t.Fatalf("Get(%d): ok=%v err=%v", i, ok, err)
		}
		if !bytes.Equal(v, payloads[i]) {
			t.Fatalf("Get(%d) payload mismatch", i)
		}
	}

	stats, err := e2.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.BucketCount <= uint64(1)<<table.InitialLevel {
		t.Fatalf("expected bucket growth after %d inserts at fill target 2, got %d buckets", n, stats.BucketCount)
	}
}

func TestUnkeyedPayloadLargerThanManyPages(t *testing.T) {
	name := storeName(t)
	e, err := Open(name, DefaultConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Shutdown()

	payload := bytes.Repeat([]byte{0x5A}, 1_000_000)
	ref, err := e.PutUnkeyed(payload)
	if err != nil {
		t.Fatalf("PutUnkeyed: %v", err)
	}
	if err := e.Batch(); err != nil {
		t.Fatalf("Batch: %v", err)
	}
	_, got, err := e.GetAt(ref)
	if err != nil {
		t.Fatalf("GetAt: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("1MB payload round-trip mismatch")
	}
}

func TestUseMetricsCountsPutsGetsBatchesAndSplits(t *testing.T) {
	name := storeName(t)
	e, err := Open(name, Config{CachePages: 16, BucketFillTarget: 1}, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Shutdown()

	m := metrics.New()
	e.UseMetrics(m)

	// k27 is the first of these keys to share an initial bucket with an
	// earlier one (k02), so 30 inserts at fill target 1 force a split.
	for i := 0; i < 30; i++ {
		if _, err := e.Put([]byte(fmt.Sprintf("k%02d", i)), []byte("v")); err != nil {
			t.Fatalf("Put(%d): %v", i, err)
		}
	}
	if _, _, _, err := e.Get([]byte("k00")); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := e.Batch(); err != nil {
		t.Fatalf("Batch: %v", err)
	}

	var dtoPuts, dtoGets, dtoBatches, dtoSplits dto.Metric
	if err := m.Puts.Write(&dtoPuts); err != nil {
		t.Fatalf("write puts: %v", err)
	}
	if err := m.Gets.Write(&dtoGets); err != nil {
		t.Fatalf("write gets: %v", err)
	}
	if err := m.Batches.Write(&dtoBatches); err != nil {
		t.Fatalf("write batches: %v", err)
	}
	if err := m.Splits.Write(&dtoSplits); err != nil {
		t.Fatalf("write splits: %v", err)
	}

	if got := counterValue(&dtoPuts); got != 30 {
		t.Fatalf("Puts = %v, want 30", got)
	}
	if got := counterValue(&dtoGets); got != 1 {
		t.Fatalf("Gets = %v, want 1", got)
	}
	if got := counterValue(&dtoBatches); got != 1 {
		t.Fatalf("Batches = %v, want 1", got)
	}
	if got := counterValue(&dtoSplits); got == 0 {
		t.Fatalf("Splits = %v, want > 0 with fill target 1 and 30 inserts", got)
	}
}

func TestSyncOnBatchFalseSkipsFlushButJournalStillAdvances(t *testing.T) {
	name := storeName(t)
	off := false
	e, err := Open(name, Config{CachePages: 16, BucketFillTarget: 2, SyncOnBatch: &off}, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Shutdown()

	if _, err := e.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := e.Batch(); err != nil {
		t.Fatalf("Batch: %v", err)
	}
	// Batch ends the journal's batch and begins the next one, whose header
	// records the data log size as of this commit.
	dataSize, _, err := e.wal.ReadHeader()
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if dataSize != e.data.Size() {
		t.Fatalf("journal header data size = %d, want %d: Batch must still advance the journal even with SyncOnBatch=false", dataSize, e.data.Size())
	}

	if _, _, ok, err := e.Get([]byte("k")); err != nil || !ok {
		t.Fatalf("Get(k) = (ok=%v, err=%v), want ok", ok, err)
	}
}
