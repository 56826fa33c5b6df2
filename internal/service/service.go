// Package service предоставляет основной функционал сервера координации кеша.
// Пакет управляет жизненным циклом HTTP-сервера, фоновых воркеров инвалидации,
// сборщика системных метрик и периодическим сохранением снапшотов,
// а также корректным завершением работы при получении системных сигналов.
package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/levinOo/go-cache-project/internal/alerting"
	"github.com/levinOo/go-cache-project/internal/cache"
	"github.com/levinOo/go-cache-project/internal/config"
	"github.com/levinOo/go-cache-project/internal/cryptoutil"
	"github.com/levinOo/go-cache-project/internal/handler"
	"github.com/levinOo/go-cache-project/internal/invalidation"
	"github.com/levinOo/go-cache-project/internal/logger"
	"github.com/levinOo/go-cache-project/internal/metrics"
	"github.com/levinOo/go-cache-project/internal/models"
	"github.com/levinOo/go-cache-project/internal/repository"
	"github.com/levinOo/go-cache-project/migrations"
	"go.uber.org/zap"
)

// ServerComponents содержит все компоненты, необходимые для работы сервера.
type ServerComponents struct {
	server       *http.Server
	collector    *metrics.Collector
	sampler      *metrics.SystemSampler
	invalidation *invalidation.Service
	alerts       *alerting.Manager
	cacheStore   cache.Store
	store        repository.Storage
	logger       *zap.SugaredLogger
	dbConn       *sql.DB
}

// SnapshotSaver управляет автоматическим периодическим сохранением снапшотов
// метрик на диск и удалением устаревших файлов.
type SnapshotSaver struct {
	collector     *metrics.Collector
	dir           string
	interval      time.Duration
	retentionDays int
	logger        *zap.SugaredLogger
	stopCh        chan struct{}
	done          chan struct{}
}

// Serve инициализирует и запускает сервер координации кеша с указанной конфигурацией.
// Настраивает кеш (в памяти или Redis), хранилище событий (в памяти или база данных),
// регистрирует правила инвалидации, запускает фоновые воркеры, включает
// профилирование pprof и обрабатывает корректное завершение работы по SIGINT/SIGTERM.
func Serve(cfg config.Config) error {
	sugar := logger.NewLogger()

	server, err := setupServer(cfg, sugar)
	if err != nil {
		return err
	}
	saver := setupSnapshotSaver(cfg, server.collector, sugar)

	return runServerWithGracefulShutdown(server, saver, cfg)
}

func setupServer(cfg config.Config, sugar *zap.SugaredLogger) (*ServerComponents, error) {
	sugar.Infow("Starting server with config",
		"address", cfg.Addr,
		"metricsDir", cfg.MetricsDir,
		"snapshotInterval", cfg.SnapshotInterval,
		"collectInterval", cfg.CollectInterval,
		"redisAddr", cfg.RedisAddr,
		"addressDB", cfg.AddrDB,
	)

	if err := cryptoutil.EnsureKeypair(cfg.CryptoKeyPath); err != nil {
		sugar.Errorw("Failed to ensure keypair", "error", err)
	}

	var cacheStore cache.Store
	if cfg.RedisAddr != "" {
		redisStore, err := cache.NewRedisStore(cfg.RedisAddr)
		if err != nil {
			sugar.Errorw("Failed to connect to Redis, falling back to in-memory cache", "error", err)
			cacheStore = cache.NewMemStore()
		} else {
			cacheStore = redisStore
		}
	} else {
		cacheStore = cache.NewMemStore()
	}

	var storage repository.Storage
	var dbConn *sql.DB

	if cfg.AddrDB != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		conn, err := repository.ConnectDB(ctx, cfg.AddrDB)
		cancel()
		if err != nil {
			sugar.Errorw("Failed to connect to DB", "error", err)
			return nil, fmt.Errorf("failed to connect to DB: %w", err)
		}

		if err := migrations.RunMigrations(cfg.AddrDB, "migrations/sql"); err != nil {
			sugar.Fatalw("Failed to run migrations", "error", err)
		}

		dbConn = conn
		storage = repository.NewDBStorage(conn)
	} else {
		storage = repository.NewMemStorage()
	}

	collector := metrics.NewCollector(sugar, cfg.MaxPoints)

	collectInterval := time.Duration(cfg.CollectInterval) * time.Second
	if collectInterval <= 0 {
		collectInterval = 30 * time.Second
	}
	sampler := metrics.NewSystemSampler(collector, collectInterval, sugar)
	sampler.Start()

	invalidationSvc := invalidation.NewService(cacheStore, collector, sugar, invalidation.Options{
		AuditFile: cfg.AuditFile,
		AuditURL:  cfg.AuditURL,
		Store:     storage,
	})
	registerDefaultRules(invalidationSvc, sugar)
	invalidationSvc.Start()

	alerts := alerting.NewManager(collector, storage, sugar)

	router := handler.NewRouter(handler.Deps{
		Collector:     collector,
		Invalidation:  invalidationSvc,
		Alerts:        alerts,
		Cache:         cacheStore,
		Store:         storage,
		Logger:        sugar,
		CryptoKeyPath: cfg.CryptoKeyPath,
	})

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}

	return &ServerComponents{
		server:       srv,
		collector:    collector,
		sampler:      sampler,
		invalidation: invalidationSvc,
		alerts:       alerts,
		cacheStore:   cacheStore,
		store:        storage,
		logger:       sugar,
		dbConn:       dbConn,
	}, nil
}

// registerDefaultRules выполняет фиксированный шаг регистрации правил для
// классов данных приложения. Повторный запуск перезаписывает правила по именам.
func registerDefaultRules(svc *invalidation.Service, sugar *zap.SugaredLogger) {
	rules := []invalidation.Rule{
		invalidation.NewRule("user_data_invalidation", "user_data:*", models.StrategyImmediate,
			[]string{models.TriggerDataUpdate, models.TriggerManual}, 0),
		invalidation.NewRule("bet_data_invalidation", "bet_data:*", models.StrategyImmediate,
			[]string{models.TriggerDataUpdate, models.TriggerManual}, 0),
		invalidation.NewRule("game_data_invalidation", "game_data:*", models.StrategyDelayed,
			[]string{models.TriggerDataUpdate, models.TriggerTimeExpiry}, 5*time.Minute),
		invalidation.NewRule("stats_invalidation", "stats:*", models.StrategyBatch,
			[]string{models.TriggerDataUpdate, models.TriggerSystemEvent}, 0),
		invalidation.NewRule("api_response_invalidation", "api:*", models.StrategyIntelligent,
			[]string{models.TriggerDataUpdate, models.TriggerTimeExpiry, models.TriggerMemoryPressure}, 0),
	}

	for _, r := range rules {
		if err := svc.RegisterRule(r); err != nil {
			sugar.Errorw("Failed to register default rule", "rule", r.Name, "error", err)
		}
	}
}

func setupSnapshotSaver(cfg config.Config, collector *metrics.Collector, sugar *zap.SugaredLogger) *SnapshotSaver {
	if cfg.SnapshotInterval <= 0 || cfg.MetricsDir == "" {
		sugar.Infow("Periodic snapshots disabled", "snapshotInterval", cfg.SnapshotInterval)
		return nil
	}

	saver := NewSnapshotSaver(collector, cfg.MetricsDir, time.Duration(cfg.SnapshotInterval)*time.Second, cfg.RetentionDays, sugar)
	saver.Start()

	return saver
}

// NewSnapshotSaver создает новый экземпляр SnapshotSaver, который будет сохранять
// снапшоты метрик в указанный каталог с заданным интервалом. Сохранение необходимо
// запустить методом Start и остановить методом Stop когда оно больше не требуется.
func NewSnapshotSaver(collector *metrics.Collector, dir string, interval time.Duration, retentionDays int, logger *zap.SugaredLogger) *SnapshotSaver {
	return &SnapshotSaver{
		collector:     collector,
		dir:           dir,
		interval:      interval,
		retentionDays: retentionDays,
		logger:        logger,
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start запускает операцию периодического сохранения в фоновой горутине.
// Снапшоты будут сохраняться на диск с настроенным интервалом до вызова Stop.
func (ps *SnapshotSaver) Start() {
	go func() {
		defer close(ps.done)
		ticker := time.NewTicker(ps.interval)
		defer ticker.Stop()

		ps.logger.Infow("Starting periodic snapshots", "interval", ps.interval, "dir", ps.dir)

		for {
			select {
			case <-ticker.C:
				ps.logger.Debugw("Periodic snapshot triggered")
				if err := ps.collector.SaveSnapshot(ps.dir); err != nil {
					ps.logger.Errorw("Failed to save snapshot", "error", err)
				} else {
					ps.logger.Debugw("Snapshot saved successfully", "dir", ps.dir)
				}
				if err := ps.collector.CleanupOldFiles(ps.dir, ps.retentionDays); err != nil {
					ps.logger.Errorw("Failed to cleanup old snapshots", "error", err)
				}
			case <-ps.stopCh:
				ps.logger.Debugw("Stopping periodic snapshots")
				return
			}
		}
	}()
}

// Stop корректно останавливает операцию периодического сохранения и ожидает
// завершения фоновой горутины.
func (ps *SnapshotSaver) Stop() {
	if ps.stopCh != nil {
		close(ps.stopCh)
		<-ps.done
	}
}

func runServerWithGracefulShutdown(components *ServerComponents, saver *SnapshotSaver, cfg config.Config) error {
	server := components.server
	sugar := components.logger

	go func() {
		pprofAddr := "localhost:6060"
		sugar.Infow("pprof server started", "address", pprofAddr)
		if err := http.ListenAndServe(pprofAddr, nil); err != nil {
			sugar.Errorw("pprof server error", "error", err)
		}
	}()

	serverErr := make(chan error, 1)

	go func() {
		sugar.Infow("HTTP server started", "address", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			sugar.Errorw("Server error", "error", err)
			if saver != nil {
				saver.Stop()
			}
			return fmt.Errorf("server error: %w", err)
		}
	case <-quit:
		sugar.Infoln("Shutting down server...")
	}

	return gracefulShutdown(cfg, components, saver)
}

func gracefulShutdown(cfg config.Config, components *ServerComponents, saver *SnapshotSaver) error {
	sugar := components.logger

	if saver != nil {
		saver.Stop()
	}
	components.sampler.Stop()
	components.invalidation.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := components.server.Shutdown(ctx); err != nil {
		sugar.Errorw("Server shutdown error", "error", err)
	}

	if cfg.MetricsDir != "" {
		sugar.Infow("Performing final snapshot on shutdown", "dir", cfg.MetricsDir)
		if err := components.collector.SaveSnapshot(cfg.MetricsDir); err != nil {
			return fmt.Errorf("failed to save snapshot on shutdown: %w", err)
		}
	}

	if components.dbConn != nil {
		sugar.Infow("Closing database connection")
		if err := components.dbConn.Close(); err != nil {
			sugar.Errorw("Error closing database connection", "error", err)
		}
	}

	if err := components.cacheStore.Close(); err != nil {
		sugar.Errorw("Error closing cache store", "error", err)
	}

	sugar.Infoln("Snapshot saved and server stopped gracefully")
	return nil
}
