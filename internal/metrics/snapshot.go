package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/levinOo/go-cache-project/internal/models"
)

const (
	summaryFilePrefix = "metrics_summary_"
	historyFilePrefix = "metrics_history_"

	// snapshotHistoryHours определяет окно истории, попадающее в снапшот.
	snapshotHistoryHours = 24
)

// snapshotSummary описывает формат файла metrics_summary_<ts>.json.
type snapshotSummary struct {
	Timestamp   time.Time                 `json:"timestamp"`
	Application appSection                `json:"application"`
	Metrics     map[string]models.Summary `json:"metrics"`
}

type appSection struct {
	Counters map[string]int64   `json:"counters"`
	Gauges   map[string]float64 `json:"gauges"`
	Errors   map[string]int64   `json:"errors"`
}

// SaveSnapshot сериализует текущие агрегаты и историю метрик за последние сутки
// в два файла с временной меткой в имени внутри каталога dir.
func (c *Collector) SaveSnapshot(dir string) error {
	if dir == "" {
		return nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create metrics dir %s: %w", dir, err)
	}

	stamp := time.Now().Format("20060102_150405")

	summary := snapshotSummary{
		Timestamp: time.Now(),
		Application: appSection{
			Counters: c.Counters(),
			Gauges:   c.Gauges(),
			Errors:   c.Errors(),
		},
		Metrics: c.Summary(time.Hour),
	}

	if err := writeJSON(filepath.Join(dir, summaryFilePrefix+stamp+".json"), summary); err != nil {
		return err
	}

	history := make(map[string][]models.MetricPoint)
	c.mu.Lock()
	names := make([]string, 0, len(c.series))
	for name := range c.series {
		names = append(names, name)
	}
	c.mu.Unlock()
	for _, name := range names {
		history[name] = c.History(name, snapshotHistoryHours)
	}

	return writeJSON(filepath.Join(dir, historyFilePrefix+stamp+".json"), history)
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(data); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}

	return nil
}

// CleanupOldFiles удаляет файлы снапшотов старше указанного количества дней.
// Ошибки удаления логируются и не прерывают обход каталога.
func (c *Collector) CleanupOldFiles(dir string, days int) error {
	if dir == "" || days <= 0 {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read metrics dir %s: %w", dir, err)
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	removed := 0

	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, summaryFilePrefix) && !strings.HasPrefix(name, historyFilePrefix) {
			continue
		}

		info, err := e.Info()
		if err != nil {
			c.logger.Errorw("Failed to stat snapshot file", "file", name, "error", err)
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			c.logger.Errorw("Failed to remove old snapshot", "file", name, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		c.logger.Infow("Old snapshots removed", "dir", dir, "count", removed)
	}
	return nil
}
