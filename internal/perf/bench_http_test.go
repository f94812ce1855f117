package perf

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/odyssey-erp/fincore/internal/report"
	"github.com/odyssey-erp/fincore/internal/shared"
)

func TestReportCacheLatencyTargets(t *testing.T) {
	cache := report.NewCache(report.DefaultTTL)
	country := int64(1)
	key := report.Key{Report: report.ReportSummary, Role: shared.RoleCountryAdmin, CountryID: &country}
	cold := func(ctx context.Context) (int, error) {
		time.Sleep(20 * time.Millisecond)
		return 42, nil
	}

	var coldSamples, cachedSamples []time.Duration
	for i := 0; i < 5; i++ {
		cache.InvalidateAll()
		start := time.Now()
		if _, err := report.Fetch(context.Background(), cache, key, cold); err != nil {
			t.Fatalf("cold fetch: %v", err)
		}
		coldSamples = append(coldSamples, time.Since(start))
	}
	for i := 0; i < 50; i++ {
		start := time.Now()
		v, err := report.Fetch(context.Background(), cache, key, cold)
		if err != nil || v != 42 {
			t.Fatalf("cached fetch: %v %v", v, err)
		}
		cachedSamples = append(cachedSamples, time.Since(start))
	}

	if p95 := percentile95(coldSamples); p95 > 2*time.Second {
		t.Fatalf("cold latency regression: p95=%s", p95)
	}
	if p95 := percentile95(cachedSamples); p95 > 5*time.Millisecond {
		t.Fatalf("cached latency regression: p95=%s", p95)
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
