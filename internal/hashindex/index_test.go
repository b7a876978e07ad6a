package hashindex

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/hammersbald/hammersbald/internal/datalog"
	"github.com/hammersbald/hammersbald/internal/table"
)

func openIndex(t *testing.T, fillTarget int) *Index {
	t.Helper()
	dir := t.TempDir()
	dl, err := datalog.Open(filepath.Join(dir, "x.dat"), 64)
	if err != nil {
		t.Fatalf("datalog.Open: %v", err)
	}
	ts, err := table.Open(filepath.Join(dir, "x.tbl"), 64)
	if err != nil {
		t.Fatalf("table.Open: %v", err)
	}
	t.Cleanup(func() {
		dl.Close()
		ts.Close()
	})
	return New(ts, dl, fillTarget)
}

func TestInsertAndLookup(t *testing.T) {
	ix := openIndex(t, 2)

	if _, err := ix.Insert([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := ix.Insert([]byte("b"), []byte("2")); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	_, v, ok, err := ix.Lookup([]byte("a"))
	if err != nil || !ok || string(v) != "1" {
		t.Fatalf("Lookup(a) = (%q, %v, %v)", v, ok, err)
	}
	_, v, ok, err = ix.Lookup([]byte("b"))
	if err != nil || !ok || string(v) != "2" {
		t.Fatalf("Lookup(b) = (%q, %v, %v)", v, ok, err)
	}
	_, _, ok, err = ix.Lookup([]byte("missing"))
	if err != nil || ok {
		t.Fatalf("Lookup(missing) = ok=%v err=%v, want not found", ok, err)
	}
}

func TestOverwriteKeepsOldRecordByOffset(t *testing.T) {
	ix := openIndex(t, 2)

	ref1, err := ix.Insert([]byte("k"), []byte("v1"))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := ix.Insert([]byte("k"), []byte("v2")); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	_, v, ok, err := ix.Lookup([]byte("k"))
	if err != nil || !ok || string(v) != "v2" {
		t.Fatalf("Lookup(k) = (%q, %v, %v), want v2", v, ok, err)
	}

	key, val, err := ix.GetAt(ref1)
	if err != nil {
		t.Fatalf("GetAt(ref1): %v", err)
	}
	if string(key) != "k" || string(val) != "v1" {
		t.Fatalf("GetAt(ref1) = (%q, %q), want (k, v1)", key, val)
	}
}

func TestManyInsertsTriggerSplitsAndStayFindable(t *testing.T) {
	ix := openIndex(t, 2)

	const n = 2000
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key-%04d", i))
		val := []byte(fmt.Sprintf("val-%04d", i))
		if _, err := ix.Insert(key, val); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key-%04d", i))
		want := fmt.Sprintf("val-%04d", i)
		_, v, ok, err := ix.Lookup(key)
		if err != nil || !ok {
			t.Fatalf("Lookup(%d): ok=%v err=%v", i, ok, err)
		}
		if string(v) != want {
			t.Fatalf("Lookup(%d) = %q, want %q", i, v, want)
		}
	}

	level, split, err := ix.table.GetMeta()
	if err != nil {
		t.Fatalf("GetMeta: %v", err)
	}
	if level == table.InitialLevel && split == 0 {
		t.Fatal("expected at least one split after 2000 inserts at fill target 2")
	}
}
