// Package alerting реализует пороговые алерты над последними значениями метрик.
// Правила проверяются по запросу; повторное срабатывание одного и того же
// условия подавляется окном cooldown.
package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/levinOo/go-cache-project/internal/metrics"
	"github.com/levinOo/go-cache-project/internal/models"
	"github.com/levinOo/go-cache-project/internal/repository"
	"go.uber.org/zap"
)

const (
	// DefaultCooldown задаёт минимальный интервал между срабатываниями одного правила.
	DefaultCooldown = 5 * time.Minute

	// maxHistory ограничивает размер истории сработавших алертов.
	maxHistory = 100
)

// Операторы сравнения значения метрики с порогом
const (
	OpAbove = "above"
	OpBelow = "below"
)

// Rule описывает пороговое правило алерта над последним значением измерителя.
type Rule struct {
	Name      string
	Metric    string
	Op        string
	Threshold float64
	Severity  string
	Cooldown  time.Duration
}

func (r Rule) breached(value float64) bool {
	if r.Op == OpBelow {
		return value < r.Threshold
	}
	return value > r.Threshold
}

func (r Rule) condition() string {
	return fmt.Sprintf("%s %s %g", r.Metric, r.Op, r.Threshold)
}

// Manager проверяет список правил против Collector и ведёт ограниченную
// историю сработавших алертов. Сработавшие алерты опционально сохраняются
// в долговременное хранилище.
type Manager struct {
	mu        *sync.Mutex
	collector *metrics.Collector
	store     repository.Storage
	logger    *zap.SugaredLogger
	rules     []Rule
	lastFired map[string]time.Time
	history   []models.Alert
}

// NewManager создает Manager с набором правил по умолчанию.
// store может быть nil, тогда алерты хранятся только в истории в памяти.
func NewManager(collector *metrics.Collector, store repository.Storage, logger *zap.SugaredLogger) *Manager {
	m := &Manager{
		mu:        &sync.Mutex{},
		collector: collector,
		store:     store,
		logger:    logger,
		lastFired: make(map[string]time.Time),
	}

	for _, r := range defaultRules() {
		m.AddRule(r)
	}

	return m
}

func defaultRules() []Rule {
	return []Rule{
		{Name: "high_error_rate", Metric: "error_rate", Op: OpAbove, Threshold: 0.05, Severity: models.SeverityCritical},
		{Name: "slow_api_calls", Metric: "api_response_time", Op: OpAbove, Threshold: 2.0, Severity: models.SeverityWarning},
		{Name: "slow_db_calls", Metric: "db_response_time", Op: OpAbove, Threshold: 1.0, Severity: models.SeverityWarning},
		{Name: "low_cache_hit_rate", Metric: "cache_hit_rate", Op: OpBelow, Threshold: 0.5, Severity: models.SeverityWarning},
		{Name: "high_memory_usage", Metric: "system_memory_percent", Op: OpAbove, Threshold: 90, Severity: models.SeverityCritical},
		{Name: "high_disk_usage", Metric: "system_disk_percent", Op: OpAbove, Threshold: 90, Severity: models.SeverityWarning},
	}
}

// AddRule добавляет правило. Правило без cooldown получает DefaultCooldown.
func (m *Manager) AddRule(r Rule) {
	if r.Cooldown <= 0 {
		r.Cooldown = DefaultCooldown
	}
	if r.Op == "" {
		r.Op = OpAbove
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, r)
}

// CheckAlerts проверяет все правила против последних значений измерителей
// и возвращает алерты, сработавшие именно в этом вызове. Правило внутри
// окна cooldown пропускается. Метрика без значения не считается нарушением.
func (m *Manager) CheckAlerts(ctx context.Context) []models.Alert {
	m.mu.Lock()
	rules := append([]Rule(nil), m.rules...)
	m.mu.Unlock()

	now := time.Now()
	fired := make([]models.Alert, 0)

	for _, r := range rules {
		value, ok := m.collector.GaugeValue(r.Metric)
		if !ok || !r.breached(value) {
			continue
		}

		m.mu.Lock()
		last, seen := m.lastFired[r.Name]
		inCooldown := seen && now.Sub(last) < r.Cooldown
		if !inCooldown {
			m.lastFired[r.Name] = now
		}
		m.mu.Unlock()

		if inCooldown {
			continue
		}

		alert := models.Alert{
			Name:         r.Name,
			Severity:     r.Severity,
			Condition:    r.condition(),
			Threshold:    r.Threshold,
			CurrentValue: value,
			Timestamp:    now,
		}
		fired = append(fired, alert)

		m.logger.Warnw("Alert triggered",
			"alert", r.Name,
			"severity", r.Severity,
			"condition", alert.Condition,
			"value", value,
		)

		m.collector.RecordCounter("alerts_fired", 1, map[string]string{"severity": r.Severity})

		if m.store != nil {
			if err := m.store.SaveAlert(ctx, alert); err != nil {
				m.logger.Errorw("Failed to persist alert", "alert", r.Name, "error", err)
			}
		}
	}

	if len(fired) > 0 {
		m.mu.Lock()
		m.history = append(m.history, fired...)
		if len(m.history) > maxHistory {
			m.history = m.history[len(m.history)-maxHistory:]
		}
		m.mu.Unlock()
	}

	return fired
}

// History возвращает копию истории сработавших алертов (самые старые первыми).
func (m *Manager) History() []models.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Alert, len(m.history))
	copy(out, m.history)
	return out
}
