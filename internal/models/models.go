// Package models содержит структуры данных, описывающие основные сущности предметной области.
// Пакет не содержит бизнес-логику и используется для передачи данных между слоями приложения.
package models

import "time"

// Константы типов метрик
const (
	// Counter представляет метрику-счётчик, значение которой только увеличивается.
	Counter = "counter"

	// Gauge представляет метрику-измеритель, значение которой может изменяться произвольно.
	Gauge = "gauge"

	// Timing представляет метрику длительности операции в секундах.
	Timing = "timing"
)

// Константы стратегий инвалидации кеша
const (
	// StrategyImmediate очищает записи кеша синхронно в момент срабатывания триггера.
	StrategyImmediate = "immediate"

	// StrategyDelayed откладывает очистку на заданный интервал.
	StrategyDelayed = "delayed"

	// StrategyBatch накапливает задачи и очищает уникальные префиксы одним проходом.
	StrategyBatch = "batch"

	// StrategyIntelligent выбирает между immediate и delayed по статистике попаданий кеша.
	StrategyIntelligent = "intelligent"
)

// Константы триггеров инвалидации
const (
	TriggerDataUpdate     = "data_update"
	TriggerTimeExpiry     = "time_expiry"
	TriggerMemoryPressure = "memory_pressure"
	TriggerManual         = "manual"
	TriggerSystemEvent    = "system_event"
)

// Константы уровней серьёзности алертов
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// MetricPoint представляет одно наблюдение метрики во времени.
// После записи в серию точка не изменяется.
type MetricPoint struct {
	// Name содержит имя метрики, к которой относится точка.
	Name string `json:"name"`

	// Value содержит числовое значение наблюдения.
	Value float64 `json:"value"`

	// Timestamp содержит момент записи наблюдения.
	Timestamp time.Time `json:"timestamp"`

	// Tags содержит произвольные пары ключ-значение, уточняющие наблюдение.
	Tags map[string]string `json:"labels,omitempty"`
}

// Metrics представляет отдельную метрику при передаче между агентом и сервером.
// Поддерживает три типа: gauge и timing (с полем Value) и counter (с полем Delta).
type Metrics struct {
	// ID содержит уникальное имя метрики.
	ID string `json:"id"`

	// MType определяет тип метрики: "gauge", "counter" или "timing".
	MType string `json:"type"`

	// Delta содержит значение для counter-метрик (изменение счётчика).
	// Используется только когда MType = "counter".
	Delta *int64 `json:"delta,omitempty"`

	// Value содержит значение для gauge- и timing-метрик.
	Value *float64 `json:"value,omitempty"`

	// Tags содержит произвольные метки наблюдения.
	Tags map[string]string `json:"tags,omitempty"`
}

// Reset очищает все поля метрики для повторного использования объекта в пуле.
func (m *Metrics) Reset() {
	m.ID = ""
	m.MType = ""
	m.Delta = nil
	m.Value = nil
	m.Tags = nil
}

// ListMetrics содержит список метрик для пакетной обработки.
type ListMetrics struct {
	// List содержит массив метрик для одновременной отправки или обработки.
	List []Metrics
}

// Summary содержит агрегаты по одной метрике за запрошенное временное окно.
type Summary struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Avg    float64 `json:"avg"`
	Sum    float64 `json:"sum"`
	Latest float64 `json:"latest"`
}

// Alert представляет один сработавший алерт.
// Записи не изменяются после создания и хранятся в ограниченной истории.
type Alert struct {
	// Name содержит имя правила алерта.
	Name string `json:"name"`

	// Severity определяет уровень серьёзности: "info", "warning" или "critical".
	Severity string `json:"severity"`

	// Condition содержит человекочитаемое описание условия срабатывания.
	Condition string `json:"condition"`

	// Threshold содержит пороговое значение правила.
	Threshold float64 `json:"threshold"`

	// CurrentValue содержит значение метрики в момент срабатывания.
	CurrentValue float64 `json:"current_value"`

	// Timestamp содержит момент срабатывания.
	Timestamp time.Time `json:"timestamp"`
}

// RuleView описывает правило инвалидации при выдаче наружу через API.
type RuleView struct {
	Name             string     `json:"name"`
	Pattern          string     `json:"pattern"`
	Strategy         string     `json:"strategy"`
	Triggers         []string   `json:"triggers"`
	TTLSeconds       int        `json:"ttl_seconds,omitempty"`
	Active           bool       `json:"is_active"`
	LastInvalidation *time.Time `json:"last_invalidation,omitempty"`
}

// InvalidationRequest описывает ручной запрос инвалидации через API.
type InvalidationRequest struct {
	// Pattern содержит ключ или шаблон ключа кеша.
	Pattern string `json:"pattern"`

	// Trigger содержит причину инвалидации. Пустое значение трактуется как "manual".
	Trigger string `json:"trigger,omitempty"`

	// DelaySeconds задаёт задержку для отложенной инвалидации.
	DelaySeconds int `json:"delay_seconds,omitempty"`
}

// Data представляет событие аудита выполненной инвалидации.
// Используется для логирования операций с кешем.
type Data struct {
	// TS содержит временную метку события в формате Unix timestamp.
	TS int64 `json:"ts"`

	// Pattern содержит шаблон, по которому выполнялась инвалидация.
	Pattern string `json:"pattern"`

	// Trigger содержит причину инвалидации.
	Trigger string `json:"trigger"`

	// Prefixes содержит список очищенных префиксов ключей.
	Prefixes []string `json:"prefixes"`
}

type DataList struct {
	Events []Data `json:"events"`
}
