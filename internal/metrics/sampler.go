package metrics

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// SystemSampler периодически записывает системные метрики (CPU, память, диск,
// сеть, собственный процесс) в Collector. Ошибка одного цикла сбора логируется,
// сбор продолжается на следующем интервале.
type SystemSampler struct {
	collector *Collector
	interval  time.Duration
	logger    *zap.SugaredLogger
	stopCh    chan struct{}
	done      chan struct{}
}

// NewSystemSampler создает SystemSampler с указанным интервалом сбора.
// Сбор необходимо запустить методом Start и остановить методом Stop.
func NewSystemSampler(collector *Collector, interval time.Duration, logger *zap.SugaredLogger) *SystemSampler {
	return &SystemSampler{
		collector: collector,
		interval:  interval,
		logger:    logger,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start запускает периодический сбор в фоновой горутине.
func (s *SystemSampler) Start() {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Infow("Starting system metrics collection", "interval", s.interval)

		for {
			select {
			case <-ticker.C:
				s.sample()
			case <-s.stopCh:
				s.logger.Debugw("Stopping system metrics collection")
				return
			}
		}
	}()
}

// Stop останавливает сбор и ожидает завершения фоновой горутины.
func (s *SystemSampler) Stop() {
	if s.stopCh != nil {
		close(s.stopCh)
		<-s.done
	}
}

func (s *SystemSampler) sample() {
	// cpu.Percent с ненулевым интервалом блокирует горутину на время замера.
	if percents, err := cpu.Percent(time.Second, false); err != nil {
		s.logger.Errorw("Failed to collect CPU metrics", "error", err)
	} else if len(percents) > 0 {
		s.collector.RecordGauge("system_cpu_percent", percents[0], nil)
	}

	if vm, err := mem.VirtualMemory(); err != nil {
		s.logger.Errorw("Failed to collect memory metrics", "error", err)
	} else {
		s.collector.RecordGauge("system_memory_percent", vm.UsedPercent, nil)
		s.collector.RecordGauge("system_memory_available_bytes", float64(vm.Available), nil)
	}

	if du, err := disk.Usage("/"); err != nil {
		s.logger.Errorw("Failed to collect disk metrics", "error", err)
	} else {
		s.collector.RecordGauge("system_disk_percent", du.UsedPercent, nil)
	}

	if counters, err := psnet.IOCounters(false); err != nil {
		s.logger.Errorw("Failed to collect network metrics", "error", err)
	} else if len(counters) > 0 {
		s.collector.RecordGauge("system_net_bytes_sent", float64(counters[0].BytesSent), nil)
		s.collector.RecordGauge("system_net_bytes_recv", float64(counters[0].BytesRecv), nil)
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err != nil {
		s.logger.Errorw("Failed to inspect own process", "error", err)
	} else if memInfo, err := proc.MemoryInfo(); err != nil {
		s.logger.Errorw("Failed to collect process memory", "error", err)
	} else {
		s.collector.RecordGauge("process_rss_bytes", float64(memInfo.RSS), nil)
	}

	s.collector.RecordGauge("process_goroutines", float64(runtime.NumGoroutine()), nil)
}
