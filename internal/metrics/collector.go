// Package metrics реализует сбор счётчиков, измерителей и временных серий наблюдений,
// а также агрегатные запросы по скользящему временному окну.
package metrics

import (
	"sync"
	"time"

	"github.com/levinOo/go-cache-project/internal/models"
	"go.uber.org/zap"
)

const (
	// DefaultMaxPoints ограничивает количество точек в серии одной метрики.
	DefaultMaxPoints = 1000

	// maxResponseTimes ограничивает список времён ответа на один endpoint.
	maxResponseTimes = 100

	// slowThreshold определяет длительность, начиная с которой операция считается медленной.
	slowThreshold = 5.0
)

// series хранит последние точки наблюдений метрики в кольцевом буфере фиксированной ёмкости.
// При переполнении вытесняется самая старая точка.
type series struct {
	buf   []models.MetricPoint
	head  int
	count int
}

func newSeries(capacity int) *series {
	return &series{buf: make([]models.MetricPoint, capacity)}
}

func (s *series) append(p models.MetricPoint) {
	if s.count < len(s.buf) {
		s.buf[(s.head+s.count)%len(s.buf)] = p
		s.count++
		return
	}

	s.buf[s.head] = p
	s.head = (s.head + 1) % len(s.buf)
}

// points возвращает удержанные точки в порядке записи.
func (s *series) points() []models.MetricPoint {
	out := make([]models.MetricPoint, 0, s.count)
	for i := 0; i < s.count; i++ {
		out = append(out, s.buf[(s.head+i)%len(s.buf)])
	}
	return out
}

// Collector накапливает счётчики, измерители и ограниченные серии точек наблюдений.
// Все операции записи всегда успешны; переполнение серии приводит к вытеснению
// самых старых точек, а не к ошибке.
type Collector struct {
	mu            *sync.Mutex
	logger        *zap.SugaredLogger
	maxPoints     int
	series        map[string]*series
	counters      map[string]int64
	gauges        map[string]float64
	errors        map[string]int64
	responseTimes map[string][]float64
}

// NewCollector создает Collector с указанной ёмкостью серий.
// При maxPoints <= 0 используется DefaultMaxPoints.
func NewCollector(logger *zap.SugaredLogger, maxPoints int) *Collector {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}

	return &Collector{
		mu:            &sync.Mutex{},
		logger:        logger,
		maxPoints:     maxPoints,
		series:        make(map[string]*series),
		counters:      make(map[string]int64),
		gauges:        make(map[string]float64),
		errors:        make(map[string]int64),
		responseTimes: make(map[string][]float64),
	}
}

func (c *Collector) appendPoint(name string, value float64, tags map[string]string) {
	s, ok := c.series[name]
	if !ok {
		s = newSeries(c.maxPoints)
		c.series[name] = s
	}

	s.append(models.MetricPoint{
		Name:      name,
		Value:     value,
		Timestamp: time.Now(),
		Tags:      tags,
	})
}

// RecordCounter увеличивает именованный счётчик на amount и записывает точку
// в серию "counter_<name>".
func (c *Collector) RecordCounter(name string, amount int64, tags map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counters[name] += amount
	c.appendPoint("counter_"+name, float64(amount), tags)
}

// RecordGauge перезаписывает именованный измеритель значением value
// и записывает точку в одноимённую серию.
func (c *Collector) RecordGauge(name string, value float64, tags map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gauges[name] = value
	c.appendPoint(name, value, tags)
}

// RecordRequestTime записывает длительность операции в секундах для endpoint.
// Список времён на endpoint ограничен; самые старые значения отбрасываются.
// Длительность выше порога логируется как медленная операция.
func (c *Collector) RecordRequestTime(endpoint string, seconds float64) {
	c.mu.Lock()

	times := append(c.responseTimes[endpoint], seconds)
	if len(times) > maxResponseTimes {
		times = times[len(times)-maxResponseTimes:]
	}
	c.responseTimes[endpoint] = times

	c.appendPoint("response_time_"+endpoint, seconds, nil)
	c.mu.Unlock()

	if seconds > slowThreshold {
		c.logger.Warnw("Slow operation", "endpoint", endpoint, "duration", seconds)
	}
}

// RecordError увеличивает счётчик ошибок указанного типа и записывает точку.
func (c *Collector) RecordError(errType, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.errors[errType]++

	var tags map[string]string
	if message != "" {
		tags = map[string]string{"message": message}
	}
	c.appendPoint("error_"+errType, 1, tags)
}

// CounterValue возвращает текущее значение счётчика.
func (c *Collector) CounterValue(name string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.counters[name]
	return v, ok
}

// GaugeValue возвращает последнее записанное значение измерителя.
func (c *Collector) GaugeValue(name string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.gauges[name]
	return v, ok
}

// Counters возвращает копию всех счётчиков.
func (c *Collector) Counters() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]int64, len(c.counters))
	for name, v := range c.counters {
		out[name] = v
	}
	return out
}

// Gauges возвращает копию всех измерителей.
func (c *Collector) Gauges() map[string]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]float64, len(c.gauges))
	for name, v := range c.gauges {
		out[name] = v
	}
	return out
}

// Errors возвращает копию счётчиков ошибок.
func (c *Collector) Errors() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]int64, len(c.errors))
	for name, v := range c.errors {
		out[name] = v
	}
	return out
}

// ResponseTimes возвращает удержанные времена ответа для endpoint.
func (c *Collector) ResponseTimes(endpoint string) []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	times := c.responseTimes[endpoint]
	out := make([]float64, len(times))
	copy(out, times)
	return out
}

// Summary возвращает агрегаты по каждой метрике, имеющей хотя бы одну точку
// внутри окна [now-window, now]. Агрегаты считаются линейным проходом
// по удержанным точкам серии.
func (c *Collector) Summary(window time.Duration) map[string]models.Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-window)
	out := make(map[string]models.Summary)

	for name, s := range c.series {
		var sum models.Summary
		for _, p := range s.points() {
			if p.Timestamp.Before(cutoff) {
				continue
			}
			if sum.Count == 0 || p.Value < sum.Min {
				sum.Min = p.Value
			}
			if sum.Count == 0 || p.Value > sum.Max {
				sum.Max = p.Value
			}
			sum.Sum += p.Value
			sum.Latest = p.Value
			sum.Count++
		}

		if sum.Count == 0 {
			continue
		}
		sum.Avg = sum.Sum / float64(sum.Count)
		out[name] = sum
	}

	return out
}

// History возвращает точки метрики за последние hours часов.
// Для неизвестной метрики возвращается пустой список.
func (c *Collector) History(name string, hours int) []models.MetricPoint {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.series[name]
	if !ok {
		return []models.MetricPoint{}
	}

	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)
	out := make([]models.MetricPoint, 0, s.count)
	for _, p := range s.points() {
		if !p.Timestamp.Before(cutoff) {
			out = append(out, p)
		}
	}
	return out
}
