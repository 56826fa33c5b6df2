package invalidation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/levinOo/go-cache-project/internal/audit"
	"github.com/levinOo/go-cache-project/internal/cache"
	"github.com/levinOo/go-cache-project/internal/metrics"
	"github.com/levinOo/go-cache-project/internal/models"
	"github.com/levinOo/go-cache-project/internal/repository"
	"go.uber.org/zap"
)

const (
	// DefaultDelayedTTL используется отложенной стратегией, когда правило не задаёт TTL.
	DefaultDelayedTTL = 5 * time.Minute

	// intelligentDelay используется стратегией intelligent для "горячих" шаблонов.
	intelligentDelay = 10 * time.Minute

	// batchHorizon задаёт горизонт готовности для пакетных задач.
	batchHorizon = 5 * time.Minute

	defaultDelayedPoll = time.Minute
	defaultBatchPoll   = 5 * time.Minute

	// workerBackoff применяется после ошибки итерации фонового воркера.
	workerBackoff = 5 * time.Minute
)

// Rule описывает именованное правило инвалидации: шаблон ключей, стратегию
// и множество триггеров, на которые правило реагирует.
type Rule struct {
	Name             string
	Pattern          string
	Strategy         string
	Triggers         []string
	TTL              time.Duration
	Active           bool
	LastInvalidation time.Time

	matcher KeyMatcher
}

// NewRule создает активное правило инвалидации.
func NewRule(name, pattern, strategy string, triggers []string, ttl time.Duration) Rule {
	return Rule{
		Name:     name,
		Pattern:  pattern,
		Strategy: strategy,
		Triggers: triggers,
		TTL:      ttl,
		Active:   true,
	}
}

func (r *Rule) hasTrigger(trigger string) bool {
	for _, t := range r.Triggers {
		if t == trigger {
			return true
		}
	}
	return false
}

// task представляет отложенную или пакетную задачу инвалидации.
// Задача удаляется из очереди в момент обработки и выполняется не более одного раза.
type task struct {
	pattern     string
	trigger     string
	scheduledAt time.Time
}

// Options настраивает интервалы опроса фоновых воркеров и назначения аудита.
type Options struct {
	// DelayedPoll задаёт период опроса очереди отложенных задач.
	DelayedPoll time.Duration

	// BatchPoll задаёт период опроса очереди пакетных задач.
	BatchPoll time.Duration

	// AuditFile и AuditURL передаются в события аудита (пустые значения отключают).
	AuditFile string
	AuditURL  string

	// Store, если задан, сохраняет каждую выполненную инвалидацию
	// в долговременное хранилище событий.
	Store repository.Storage
}

// Service диспетчеризует события инвалидации по зарегистрированным правилам
// и выполняет стратегии очистки поверх переданного хранилища кеша.
//
// Публичные методы не паникуют: ошибки логируются, вызывающему возвращается
// булев результат либо error.
type Service struct {
	mu        *sync.Mutex
	cache     cache.Store
	collector *metrics.Collector
	logger    *zap.SugaredLogger

	rules   map[string]*Rule
	delayed []task
	batch   []task

	delayedPoll time.Duration
	batchPoll   time.Duration
	auditFile   string
	auditURL    string
	events      repository.Storage

	started     bool
	stopDelayed chan struct{}
	doneDelayed chan struct{}
	stopBatch   chan struct{}
	doneBatch   chan struct{}
}

// NewService создает сервис инвалидации поверх указанного кеша.
// Воркеры отложенных и пакетных задач запускаются методом Start.
func NewService(store cache.Store, collector *metrics.Collector, logger *zap.SugaredLogger, opts Options) *Service {
	if opts.DelayedPoll <= 0 {
		opts.DelayedPoll = defaultDelayedPoll
	}
	if opts.BatchPoll <= 0 {
		opts.BatchPoll = defaultBatchPoll
	}

	return &Service{
		mu:          &sync.Mutex{},
		cache:       store,
		collector:   collector,
		logger:      logger,
		rules:       make(map[string]*Rule),
		delayedPoll: opts.DelayedPoll,
		batchPoll:   opts.BatchPoll,
		auditFile:   opts.AuditFile,
		auditURL:    opts.AuditURL,
		events:      opts.Store,
	}
}

// RegisterRule добавляет правило в реестр по имени.
// Повторная регистрация с тем же именем перезаписывает предыдущее правило.
func (s *Service) RegisterRule(r Rule) error {
	matcher, err := NewKeyMatcher(r.Pattern)
	if err != nil {
		s.logger.Errorw("Failed to register invalidation rule", "rule", r.Name, "error", err)
		return fmt.Errorf("rule %s: %w", r.Name, err)
	}
	r.matcher = matcher

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[r.Name] = &r

	s.logger.Infow("Invalidation rule registered", "rule", r.Name, "pattern", r.Pattern, "strategy", r.Strategy)
	return nil
}

// SetRuleActive включает или выключает правило. Возвращает false для неизвестного имени.
func (s *Service) SetRuleActive(name string, active bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rules[name]
	if !ok {
		return false
	}
	r.Active = active
	return true
}

// Rules возвращает снимок зарегистрированных правил, отсортированный по имени.
func (s *Service) Rules() []models.RuleView {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.RuleView, 0, len(s.rules))
	for _, r := range s.rules {
		view := models.RuleView{
			Name:       r.Name,
			Pattern:    r.Pattern,
			Strategy:   r.Strategy,
			Triggers:   append([]string(nil), r.Triggers...),
			TTLSeconds: int(r.TTL.Seconds()),
			Active:     r.Active,
		}
		if !r.LastInvalidation.IsZero() {
			t := r.LastInvalidation
			view.LastInvalidation = &t
		}
		out = append(out, view)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Trigger находит активные правила, чьё множество триггеров содержит trigger
// и чей шаблон сопоставляется с pattern, и выполняет стратегию каждого из них.
// Возвращает false, если выполнение хотя бы одной стратегии завершилось ошибкой.
func (s *Service) Trigger(ctx context.Context, pattern, trigger string) bool {
	s.mu.Lock()
	matched := make([]*Rule, 0)
	for _, r := range s.rules {
		if r.Active && r.hasTrigger(trigger) && r.matcher.Match(pattern) {
			matched = append(matched, r)
		}
	}
	s.mu.Unlock()

	s.collector.RecordCounter("invalidation_triggers", 1, map[string]string{"trigger": trigger})

	ok := true
	for _, r := range matched {
		if err := s.execute(ctx, r, pattern, trigger); err != nil {
			s.logger.Errorw("Invalidation strategy failed", "rule", r.Name, "pattern", pattern, "error", err)
			ok = false
			continue
		}

		s.mu.Lock()
		r.LastInvalidation = time.Now()
		s.mu.Unlock()
	}

	return ok
}

func (s *Service) execute(ctx context.Context, r *Rule, pattern, trigger string) error {
	switch r.Strategy {
	case models.StrategyImmediate:
		return s.InvalidateImmediate(ctx, pattern, trigger)
	case models.StrategyDelayed:
		delay := r.TTL
		if delay <= 0 {
			delay = DefaultDelayedTTL
		}
		s.InvalidateDelayed(pattern, trigger, delay)
		return nil
	case models.StrategyBatch:
		s.InvalidateBatch(pattern, trigger)
		return nil
	case models.StrategyIntelligent:
		return s.invalidateIntelligent(ctx, pattern, trigger)
	default:
		return fmt.Errorf("unknown strategy %q", r.Strategy)
	}
}

// InvalidateImmediate синхронно очищает записи кеша под префиксом шаблона.
// К моменту возврата ClearPrefix хранилища кеша завершён.
func (s *Service) InvalidateImmediate(ctx context.Context, pattern, trigger string) error {
	prefix := DerivePrefix(pattern)

	removed, err := s.cache.ClearPrefix(ctx, prefix)
	if err != nil {
		s.collector.RecordError("cache_invalidation", err.Error())
		return fmt.Errorf("clear prefix %s: %w", prefix, err)
	}

	s.collector.RecordCounter("cache_invalidations", 1, map[string]string{"strategy": models.StrategyImmediate})
	s.collector.RecordCounter("cache_keys_invalidated", int64(removed), nil)

	audit.NewInvalidationEvent(pattern, trigger, []string{prefix}, s.auditFile, s.auditURL)
	s.persistEvent(ctx, pattern, trigger, []string{prefix})

	s.logger.Debugw("Cache invalidated", "pattern", pattern, "prefix", prefix, "removed", removed)
	return nil
}

// persistEvent записывает выполненную инвалидацию в хранилище событий.
// Ошибка записи логируется и не влияет на результат инвалидации.
func (s *Service) persistEvent(ctx context.Context, pattern, trigger string, prefixes []string) {
	if s.events == nil {
		return
	}

	event := models.Data{
		TS:       time.Now().Unix(),
		Pattern:  pattern,
		Trigger:  trigger,
		Prefixes: prefixes,
	}
	if err := s.events.SaveInvalidation(ctx, event); err != nil {
		s.logger.Errorw("Failed to persist invalidation event", "pattern", pattern, "error", err)
	}
}

// InvalidateDelayed ставит задачу инвалидации в очередь с исполнением
// не ранее чем через delay. При delay <= 0 используется DefaultDelayedTTL.
func (s *Service) InvalidateDelayed(pattern, trigger string, delay time.Duration) {
	if delay <= 0 {
		delay = DefaultDelayedTTL
	}

	s.mu.Lock()
	s.delayed = append(s.delayed, task{
		pattern:     pattern,
		trigger:     trigger,
		scheduledAt: time.Now().Add(delay),
	})
	s.mu.Unlock()

	s.collector.RecordCounter("invalidations_scheduled", 1, map[string]string{"strategy": models.StrategyDelayed})
	s.logger.Debugw("Delayed invalidation scheduled", "pattern", pattern, "delay", delay)
}

// InvalidateBatch ставит задачу в пакетную очередь с фиксированным горизонтом готовности.
func (s *Service) InvalidateBatch(pattern, trigger string) {
	s.mu.Lock()
	s.batch = append(s.batch, task{
		pattern:     pattern,
		trigger:     trigger,
		scheduledAt: time.Now().Add(batchHorizon),
	})
	s.mu.Unlock()

	s.collector.RecordCounter("invalidations_scheduled", 1, map[string]string{"strategy": models.StrategyBatch})
	s.logger.Debugw("Batch invalidation scheduled", "pattern", pattern)
}

// invalidateIntelligent выбирает стратегию по статистике кеша: часто читаемый
// кеш (попаданий более чем вдвое больше промахов) инвалидируется отложенно,
// чтобы не выбивать горячие ключи; иначе — немедленно.
func (s *Service) invalidateIntelligent(ctx context.Context, pattern, trigger string) error {
	stats, err := s.cache.Stats(ctx)
	if err != nil {
		s.logger.Errorw("Failed to read cache stats, falling back to immediate", "error", err)
		return s.InvalidateImmediate(ctx, pattern, trigger)
	}

	if stats.Hits > 2*stats.Misses {
		s.InvalidateDelayed(pattern, trigger, intelligentDelay)
		return nil
	}
	return s.InvalidateImmediate(ctx, pattern, trigger)
}

// Start запускает воркеры отложенных и пакетных задач в фоновых горутинах.
// Сервис можно запускать повторно после Stop: каналы остановки создаются
// заново на каждый запуск.
func (s *Service) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.stopDelayed = make(chan struct{})
	s.doneDelayed = make(chan struct{})
	s.stopBatch = make(chan struct{})
	s.doneBatch = make(chan struct{})
	stopDelayed, doneDelayed := s.stopDelayed, s.doneDelayed
	stopBatch, doneBatch := s.stopBatch, s.doneBatch
	s.mu.Unlock()

	go s.runWorker("delayed", s.delayedPoll, s.processDelayed, stopDelayed, doneDelayed)
	go s.runWorker("batch", s.batchPoll, s.processBatch, stopBatch, doneBatch)
}

// Stop останавливает воркеры и ожидает завершения их горутин.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	stopDelayed, doneDelayed := s.stopDelayed, s.doneDelayed
	stopBatch, doneBatch := s.stopBatch, s.doneBatch
	s.mu.Unlock()

	close(stopDelayed)
	close(stopBatch)
	<-doneDelayed
	<-doneBatch
}

// runWorker крутит вечный цикл опроса очереди. Ошибка итерации логируется,
// после чего воркер засыпает на увеличенный интервал и продолжает работу.
func (s *Service) runWorker(name string, poll time.Duration, process func(context.Context) error, stopCh, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	s.logger.Infow("Invalidation worker started", "worker", name, "poll", poll)

	for {
		select {
		case <-ticker.C:
			if err := process(context.Background()); err != nil {
				s.logger.Errorw("Invalidation worker iteration failed", "worker", name, "error", err)
				select {
				case <-time.After(workerBackoff):
				case <-stopCh:
					return
				}
			}
		case <-stopCh:
			s.logger.Debugw("Invalidation worker stopped", "worker", name)
			return
		}
	}
}

// popReady атомарно извлекает из очереди задачи с наступившим временем исполнения.
func popReady(queue []task, now time.Time) (ready, rest []task) {
	for _, t := range queue {
		if t.scheduledAt.After(now) {
			rest = append(rest, t)
		} else {
			ready = append(ready, t)
		}
	}
	return ready, rest
}

func (s *Service) processDelayed(ctx context.Context) error {
	s.mu.Lock()
	ready, rest := popReady(s.delayed, time.Now())
	s.delayed = rest
	s.mu.Unlock()

	var firstErr error
	for _, t := range ready {
		if err := s.InvalidateImmediate(ctx, t.pattern, t.trigger); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// processBatch очищает уникальные префиксы всех готовых задач одним проходом:
// один вызов ClearPrefix на префикс, а не на задачу.
func (s *Service) processBatch(ctx context.Context) error {
	s.mu.Lock()
	ready, rest := popReady(s.batch, time.Now())
	s.batch = rest
	s.mu.Unlock()

	if len(ready) == 0 {
		return nil
	}

	prefixes := make([]string, 0, len(ready))
	seen := make(map[string]bool)
	for _, t := range ready {
		prefix := DerivePrefix(t.pattern)
		if !seen[prefix] {
			seen[prefix] = true
			prefixes = append(prefixes, prefix)
		}
	}

	var firstErr error
	removed := 0
	for _, prefix := range prefixes {
		n, err := s.cache.ClearPrefix(ctx, prefix)
		if err != nil {
			s.collector.RecordError("cache_invalidation", err.Error())
			if firstErr == nil {
				firstErr = fmt.Errorf("clear prefix %s: %w", prefix, err)
			}
			continue
		}
		removed += n
	}

	s.collector.RecordCounter("cache_invalidations", int64(len(prefixes)), map[string]string{"strategy": models.StrategyBatch})
	s.collector.RecordCounter("cache_keys_invalidated", int64(removed), nil)

	audit.NewInvalidationEvent("batch", models.TriggerSystemEvent, prefixes, s.auditFile, s.auditURL)
	s.persistEvent(ctx, "batch", models.TriggerSystemEvent, prefixes)

	s.logger.Infow("Batch invalidation executed", "tasks", len(ready), "prefixes", len(prefixes), "removed", removed)
	return firstErr
}

// QueueSizes возвращает текущие размеры очередей задач. Используется в метриках и тестах.
func (s *Service) QueueSizes() (delayed, batch int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delayed), len(s.batch)
}
