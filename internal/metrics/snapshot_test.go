package metrics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/levinOo/go-cache-project/internal/models"
	"go.uber.org/zap"
)

func TestSaveSnapshot(t *testing.T) {
	dir := t.TempDir()
	c := newTestCollector(0)

	c.RecordCounter("api_calls", 6, nil)
	c.RecordGauge("cache_hit_rate", 0.75, nil)
	c.RecordError("api_timeout", "timeout")

	if err := c.SaveSnapshot(dir); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read snapshot dir: %v", err)
	}

	var summaryFile, historyFile string
	for _, e := range entries {
		switch {
		case strings.HasPrefix(e.Name(), summaryFilePrefix):
			summaryFile = e.Name()
		case strings.HasPrefix(e.Name(), historyFilePrefix):
			historyFile = e.Name()
		}
	}

	if summaryFile == "" {
		t.Fatal("summary snapshot file not created")
	}
	if historyFile == "" {
		t.Fatal("history snapshot file not created")
	}

	data, err := os.ReadFile(filepath.Join(dir, summaryFile))
	if err != nil {
		t.Fatalf("failed to read summary file: %v", err)
	}

	var summary snapshotSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		t.Fatalf("failed to parse summary file: %v", err)
	}

	if summary.Application.Counters["api_calls"] != 6 {
		t.Errorf("expected counter api_calls=6, got %d", summary.Application.Counters["api_calls"])
	}
	if summary.Application.Gauges["cache_hit_rate"] != 0.75 {
		t.Errorf("expected gauge cache_hit_rate=0.75, got %g", summary.Application.Gauges["cache_hit_rate"])
	}
	if summary.Application.Errors["api_timeout"] != 1 {
		t.Errorf("expected 1 api_timeout error, got %d", summary.Application.Errors["api_timeout"])
	}
	if _, ok := summary.Metrics["counter_api_calls"]; !ok {
		t.Error("summary metrics missing counter_api_calls series")
	}

	data, err = os.ReadFile(filepath.Join(dir, historyFile))
	if err != nil {
		t.Fatalf("failed to read history file: %v", err)
	}

	var history map[string][]models.MetricPoint
	if err := json.Unmarshal(data, &history); err != nil {
		t.Fatalf("failed to parse history file: %v", err)
	}
	if len(history["cache_hit_rate"]) != 1 {
		t.Errorf("expected 1 point for cache_hit_rate, got %d", len(history["cache_hit_rate"]))
	}
}

func TestSaveSnapshotEmptyDir(t *testing.T) {
	c := newTestCollector(0)
	if err := c.SaveSnapshot(""); err != nil {
		t.Errorf("expected nil for empty dir, got %v", err)
	}
}

func TestCleanupOldFiles(t *testing.T) {
	dir := t.TempDir()
	c := NewCollector(zap.NewNop().Sugar(), 0)

	old := filepath.Join(dir, summaryFilePrefix+"20250101_120000.json")
	fresh := filepath.Join(dir, historyFilePrefix+"20260830_120000.json")
	other := filepath.Join(dir, "notes.txt")

	for _, path := range []string{old, fresh, other} {
		if err := os.WriteFile(path, []byte("{}"), 0644); err != nil {
			t.Fatalf("failed to create file %s: %v", path, err)
		}
	}

	stale := time.Now().AddDate(0, 0, -10)
	if err := os.Chtimes(old, stale, stale); err != nil {
		t.Fatalf("failed to age file: %v", err)
	}
	if err := os.Chtimes(other, stale, stale); err != nil {
		t.Fatalf("failed to age file: %v", err)
	}

	if err := c.CleanupOldFiles(dir, 7); err != nil {
		t.Fatalf("CleanupOldFiles failed: %v", err)
	}

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("expected old snapshot to be removed")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("expected fresh snapshot to survive: %v", err)
	}
	if _, err := os.Stat(other); err != nil {
		t.Errorf("expected unrelated file to survive: %v", err)
	}
}

func TestCleanupOldFilesMissingDir(t *testing.T) {
	c := newTestCollector(0)
	if err := c.CleanupOldFiles(filepath.Join(t.TempDir(), "missing"), 7); err != nil {
		t.Errorf("expected nil for missing dir, got %v", err)
	}
}
