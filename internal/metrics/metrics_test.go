package metrics

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestResultSizeMax(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewResultSize(reg)

	m.Observe(100)
	if m.Max() != 100 {
		t.Fatalf("Max = %d, want 100", m.Max())
	}
	m.Observe(50)
	if m.Max() != 100 {
		t.Fatalf("Max went down to %d", m.Max())
	}
	m.Observe(2048)
	if m.Max() != 2048 {
		t.Fatalf("Max = %d, want 2048", m.Max())
	}
}

func TestResultSizeRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewResultSize(reg)
	m.Observe(4096)

	fams, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := map[string]bool{}
	for _, mf := range fams {
		found[mf.GetName()] = true
		switch mf.GetName() {
		case "query_result_size":
			if got := mf.GetMetric()[0].GetHistogram().GetSampleCount(); got != 1 {
				t.Fatalf("histogram count = %d, want 1", got)
			}
		case "query_result_max":
			if got := mf.GetMetric()[0].GetGauge().GetValue(); got != 4096 {
				t.Fatalf("gauge = %v, want 4096", got)
			}
		}
	}
	if !found["query_result_size"] || !found["query_result_max"] {
		t.Fatalf("metrics missing, gathered %v", found)
	}
}

func TestResultSizeConcurrentObserve(t *testing.T) {
	m := NewResultSize(prometheus.NewRegistry())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(base uint64) {
			defer wg.Done()
			for w := uint64(0); w < 1000; w++ {
				m.Observe(base*1000 + w)
			}
		}(uint64(i))
	}
	wg.Wait()

	if m.Max() != 7999 {
		t.Fatalf("Max = %d, want 7999", m.Max())
	}
}
