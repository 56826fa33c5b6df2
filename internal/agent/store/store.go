package store

import (
	"log"
	"runtime"
	"strconv"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

type (
	Gauge   float64
	Counter int64
)

// Metrics содержит снимок метрик процесса агента и хост-системы,
// отправляемый на сервер координации пакетом.
type Metrics struct {
	Alloc         Gauge
	HeapAlloc     Gauge
	HeapInuse     Gauge
	HeapObjects   Gauge
	StackInuse    Gauge
	Sys           Gauge
	TotalAlloc    Gauge
	NumGC         Gauge
	PauseTotalNs  Gauge
	GCCPUFraction Gauge
	NumGoroutine  Gauge

	TotalMemory     Gauge
	FreeMemory      Gauge
	CPUutilization1 Gauge

	PollCount Counter
}

func NewMetricsStorage() *Metrics {
	return &Metrics{}
}

type Metric interface {
	String() string
	Type() string
}

func (g Gauge) String() string {
	return strconv.FormatFloat(float64(g), 'f', -1, 64)
}

func (g Gauge) Type() string {
	return "gauge"
}

func (c Counter) String() string {
	return strconv.FormatInt(int64(c), 10)
}

func (c Counter) Type() string {
	return "counter"
}

func (m *Metrics) ValuesAllTyped() map[string]Metric {
	result := make(map[string]Metric)
	for name, val := range m.ValuesGauge() {
		result[name] = val
	}
	for name, val := range m.ValuesCounter() {
		result[name] = val
	}
	return result
}

func (m *Metrics) ValuesGauge() map[string]Metric {
	return map[string]Metric{
		"Alloc":           m.Alloc,
		"HeapAlloc":       m.HeapAlloc,
		"HeapInuse":       m.HeapInuse,
		"HeapObjects":     m.HeapObjects,
		"StackInuse":      m.StackInuse,
		"Sys":             m.Sys,
		"TotalAlloc":      m.TotalAlloc,
		"NumGC":           m.NumGC,
		"PauseTotalNs":    m.PauseTotalNs,
		"GCCPUFraction":   m.GCCPUFraction,
		"NumGoroutine":    m.NumGoroutine,
		"TotalMemory":     m.TotalMemory,
		"FreeMemory":      m.FreeMemory,
		"CPUutilization1": m.CPUutilization1,
	}
}

func (m *Metrics) ValuesCounter() map[string]Metric {
	return map[string]Metric{
		"PollCount": m.PollCount,
	}
}

// CollectMetrics обновляет метрики рантайма процесса и увеличивает PollCount.
func (m *Metrics) CollectMetrics() {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	m.Alloc = Gauge(stats.Alloc)
	m.HeapAlloc = Gauge(stats.HeapAlloc)
	m.HeapInuse = Gauge(stats.HeapInuse)
	m.HeapObjects = Gauge(stats.HeapObjects)
	m.StackInuse = Gauge(stats.StackInuse)
	m.Sys = Gauge(stats.Sys)
	m.TotalAlloc = Gauge(stats.TotalAlloc)
	m.NumGC = Gauge(stats.NumGC)
	m.PauseTotalNs = Gauge(stats.PauseTotalNs)
	m.GCCPUFraction = Gauge(stats.GCCPUFraction)
	m.NumGoroutine = Gauge(runtime.NumGoroutine())
	m.PollCount++
}

// CollectAdditionalMetrics обновляет метрики хост-системы через gopsutil.
func (m *Metrics) CollectAdditionalMetrics() {
	memStat, err := mem.VirtualMemory()
	if err != nil {
		log.Printf("Error collecting memory metrics: %v", err)
	} else {
		m.TotalMemory = Gauge(memStat.Total)
		m.FreeMemory = Gauge(memStat.Available)
	}

	percents, err := cpu.Percent(0, false)
	if err != nil {
		log.Printf("Error collecting CPU metrics: %v", err)
	} else if len(percents) > 0 {
		m.CPUutilization1 = Gauge(percents[0])
	}
}
