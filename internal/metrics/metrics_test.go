package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
)

type metric interface {
	Write(*dto.Metric) error
}

func value(m metric) float64 {
	var out dto.Metric
	if err := m.Write(&out); err != nil {
		return -1
	}
	if out.Counter != nil {
		return out.Counter.GetValue()
	}
	if out.Gauge != nil {
		return out.Gauge.GetValue()
	}
	return -1
}

func TestNewRegistersAllCollectors(t *testing.T) {
	m := New()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) != 9 {
		t.Fatalf("got %d metric families, want 9", len(families))
	}
}

func TestCountersIncrementIndependently(t *testing.T) {
	m := New()
	m.Puts.Inc()
	m.Puts.Inc()
	m.Gets.Inc()

	if got := value(m.Puts); got != 2 {
		t.Fatalf("Puts = %v, want 2", got)
	}
	if got := value(m.Gets); got != 1 {
		t.Fatalf("Gets = %v, want 1", got)
	}
	if got := value(m.Batches); got != 0 {
		t.Fatalf("Batches = %v, want 0", got)
	}
}

func TestSetGaugesUpdatesAllThree(t *testing.T) {
	m := New()
	m.SetGauges(17, 4096, 340*12+8)

	if got := value(m.BucketCount); got != 17 {
		t.Fatalf("BucketCount = %v, want 17", got)
	}
	if got := value(m.DataSize); got != 4096 {
		t.Fatalf("DataSize = %v, want 4096", got)
	}
	if got := value(m.TableSize); got != 340*12+8 {
		t.Fatalf("TableSize = %v, want %v", got, 340*12+8)
	}
}
