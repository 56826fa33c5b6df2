package metrics

import (
	"math"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestCollector(maxPoints int) *Collector {
	return NewCollector(zap.NewNop().Sugar(), maxPoints)
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSeriesEviction(t *testing.T) {
	c := newTestCollector(5)

	for i := 1; i <= 8; i++ {
		c.RecordGauge("queue_depth", float64(i), nil)
	}

	points := c.History("queue_depth", 24)
	if len(points) != 5 {
		t.Fatalf("expected 5 retained points, got %d", len(points))
	}

	for i, p := range points {
		want := float64(i + 4)
		if p.Value != want {
			t.Errorf("point %d: expected value %g, got %g", i, want, p.Value)
		}
	}

	for i := 1; i < len(points); i++ {
		if points[i].Timestamp.Before(points[i-1].Timestamp) {
			t.Errorf("points out of chronological order at index %d", i)
		}
	}
}

func TestCounterAccumulation(t *testing.T) {
	c := newTestCollector(0)

	c.RecordCounter("api_calls", 1, nil)
	c.RecordCounter("api_calls", 2, nil)
	c.RecordCounter("api_calls", 3, nil)

	got, ok := c.CounterValue("api_calls")
	if !ok {
		t.Fatal("counter api_calls not found")
	}
	if got != 6 {
		t.Errorf("expected counter value 6, got %d", got)
	}

	summary, ok := c.Summary(time.Minute)["counter_api_calls"]
	if !ok {
		t.Fatal("series counter_api_calls not found in summary")
	}
	if summary.Count != 3 {
		t.Errorf("expected 3 points, got %d", summary.Count)
	}
	if !almostEqual(summary.Sum, 6) {
		t.Errorf("expected sum 6, got %g", summary.Sum)
	}
	if !almostEqual(summary.Latest, 3) {
		t.Errorf("expected latest 3, got %g", summary.Latest)
	}
}

func TestGaugeOverwrite(t *testing.T) {
	c := newTestCollector(0)

	c.RecordGauge("cache_hit_rate", 0.4, nil)
	c.RecordGauge("cache_hit_rate", 0.9, nil)

	got, ok := c.GaugeValue("cache_hit_rate")
	if !ok {
		t.Fatal("gauge cache_hit_rate not found")
	}
	if !almostEqual(got, 0.9) {
		t.Errorf("expected last value 0.9, got %g", got)
	}

	if points := c.History("cache_hit_rate", 24); len(points) != 2 {
		t.Errorf("expected 2 retained points, got %d", len(points))
	}
}

func TestSummaryAggregates(t *testing.T) {
	c := newTestCollector(0)

	for _, v := range []float64{2, 8, 5} {
		c.RecordGauge("db_response_time", v, nil)
	}

	summary, ok := c.Summary(time.Minute)["db_response_time"]
	if !ok {
		t.Fatal("series db_response_time not found in summary")
	}

	if summary.Count != 3 {
		t.Errorf("expected count 3, got %d", summary.Count)
	}
	if !almostEqual(summary.Min, 2) {
		t.Errorf("expected min 2, got %g", summary.Min)
	}
	if !almostEqual(summary.Max, 8) {
		t.Errorf("expected max 8, got %g", summary.Max)
	}
	if !almostEqual(summary.Sum, 15) {
		t.Errorf("expected sum 15, got %g", summary.Sum)
	}
	if !almostEqual(summary.Avg, 5) {
		t.Errorf("expected avg 5, got %g", summary.Avg)
	}
	if !almostEqual(summary.Latest, 5) {
		t.Errorf("expected latest 5, got %g", summary.Latest)
	}
}

func TestSummaryExcludesEmptySeries(t *testing.T) {
	c := newTestCollector(0)

	summary := c.Summary(time.Hour)
	if len(summary) != 0 {
		t.Errorf("expected empty summary, got %d entries", len(summary))
	}
}

func TestHistoryUnknownMetric(t *testing.T) {
	c := newTestCollector(0)

	points := c.History("no_such_metric", 24)
	if points == nil {
		t.Fatal("expected non-nil slice for unknown metric")
	}
	if len(points) != 0 {
		t.Errorf("expected empty history, got %d points", len(points))
	}
}

func TestRecordRequestTimeRetention(t *testing.T) {
	c := newTestCollector(0)

	for i := 0; i < maxResponseTimes+5; i++ {
		c.RecordRequestTime("/api/games", float64(i))
	}

	times := c.ResponseTimes("/api/games")
	if len(times) != maxResponseTimes {
		t.Fatalf("expected %d retained times, got %d", maxResponseTimes, len(times))
	}
	if !almostEqual(times[0], 5) {
		t.Errorf("expected oldest retained value 5, got %g", times[0])
	}
	if !almostEqual(times[len(times)-1], float64(maxResponseTimes+4)) {
		t.Errorf("expected newest value %d, got %g", maxResponseTimes+4, times[len(times)-1])
	}
}

func TestSlowOperationLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	c := NewCollector(zap.New(core).Sugar(), 0)

	c.RecordRequestTime("/api/slow_endpoint", 6.2)

	times := c.ResponseTimes("/api/slow_endpoint")
	if len(times) != 1 || !almostEqual(times[0], 6.2) {
		t.Fatalf("expected retained times [6.2], got %v", times)
	}

	entries := logs.FilterMessage("Slow operation").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 slow operation warning, got %d", len(entries))
	}

	fields := entries[0].ContextMap()
	if fields["endpoint"] != "/api/slow_endpoint" {
		t.Errorf("unexpected endpoint field: %v", fields["endpoint"])
	}
	if v, ok := fields["duration"].(float64); !ok || !almostEqual(v, 6.2) {
		t.Errorf("unexpected duration field: %v", fields["duration"])
	}
}

func TestFastOperationNotLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	c := NewCollector(zap.New(core).Sugar(), 0)

	c.RecordRequestTime("/api/fast_endpoint", 0.1)

	if n := logs.FilterMessage("Slow operation").Len(); n != 0 {
		t.Errorf("expected no slow operation warnings, got %d", n)
	}
}

func TestRecordError(t *testing.T) {
	c := newTestCollector(0)

	c.RecordError("api_timeout", "request to odds provider timed out")
	c.RecordError("api_timeout", "")

	errs := c.Errors()
	if errs["api_timeout"] != 2 {
		t.Errorf("expected 2 errors of type api_timeout, got %d", errs["api_timeout"])
	}

	points := c.History("error_api_timeout", 24)
	if len(points) != 2 {
		t.Fatalf("expected 2 error points, got %d", len(points))
	}
	if points[0].Tags["message"] != "request to odds provider timed out" {
		t.Errorf("unexpected first point tags: %v", points[0].Tags)
	}
	if points[1].Tags != nil {
		t.Errorf("expected nil tags for empty message, got %v", points[1].Tags)
	}
}

func TestHistoryWindowFiltersOldPoints(t *testing.T) {
	c := newTestCollector(0)

	c.RecordGauge("api_latency", 1.5, nil)
	c.RecordGauge("api_latency", 2.5, nil)

	// Первая точка состаривается на два часа, чтобы окно отсекало её,
	// а более широкое окно — включало.
	c.mu.Lock()
	c.series["api_latency"].buf[0].Timestamp = time.Now().Add(-2 * time.Hour)
	c.mu.Unlock()

	points := c.History("api_latency", 1)
	if len(points) != 1 {
		t.Fatalf("expected 1 point inside 1h window, got %d", len(points))
	}
	if points[0].Value != 2.5 {
		t.Errorf("expected recent point 2.5, got %g", points[0].Value)
	}

	points = c.History("api_latency", 3)
	if len(points) != 2 {
		t.Fatalf("expected 2 points inside 3h window, got %d", len(points))
	}
}

func TestSummaryWindowFiltersOldPoints(t *testing.T) {
	c := newTestCollector(0)

	c.RecordGauge("api_latency", 1.5, nil)
	c.RecordGauge("api_latency", 2.5, nil)

	c.mu.Lock()
	c.series["api_latency"].buf[0].Timestamp = time.Now().Add(-2 * time.Hour)
	c.mu.Unlock()

	sum, ok := c.Summary(time.Hour)["api_latency"]
	if !ok {
		t.Fatal("expected api_latency in 1h summary")
	}
	if sum.Count != 1 || !almostEqual(sum.Sum, 2.5) || !almostEqual(sum.Latest, 2.5) {
		t.Errorf("unexpected 1h summary: %+v", sum)
	}

	sum, ok = c.Summary(3 * time.Hour)["api_latency"]
	if !ok {
		t.Fatal("expected api_latency in 3h summary")
	}
	if sum.Count != 2 || !almostEqual(sum.Sum, 4.0) || !almostEqual(sum.Min, 1.5) || !almostEqual(sum.Max, 2.5) {
		t.Errorf("unexpected 3h summary: %+v", sum)
	}
}
