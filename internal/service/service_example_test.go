package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/levinOo/go-cache-project/internal/alerting"
	"github.com/levinOo/go-cache-project/internal/cache"
	"github.com/levinOo/go-cache-project/internal/handler"
	"github.com/levinOo/go-cache-project/internal/invalidation"
	"github.com/levinOo/go-cache-project/internal/metrics"
	"github.com/levinOo/go-cache-project/internal/models"
	"github.com/levinOo/go-cache-project/internal/repository"
	"github.com/levinOo/go-cache-project/internal/service"
	"go.uber.org/zap"
)

func exampleDeps() handler.Deps {
	sugar := zap.NewNop().Sugar()
	collector := metrics.NewCollector(sugar, 0)
	store := cache.NewMemStore()
	repo := repository.NewMemStorage()

	return handler.Deps{
		Collector:    collector,
		Invalidation: invalidation.NewService(store, collector, sugar, invalidation.Options{}),
		Alerts:       alerting.NewManager(collector, repo, sugar),
		Cache:        store,
		Store:        repo,
		Logger:       sugar,
	}
}

// Example_updateGaugeMetric демонстрирует обновление gauge-метрики через API.
func Example_updateGaugeMetric() {
	router := handler.NewRouter(exampleDeps())
	ts := httptest.NewServer(router)
	defer ts.Close()

	value := 0.87
	metric := models.Metrics{
		ID:    "cache_hit_rate",
		MType: "gauge",
		Value: &value,
	}

	body, _ := json.Marshal(metric)

	resp, err := http.Post(ts.URL+"/update/", "application/json", bytes.NewBuffer(body))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	fmt.Printf("Status: %d\n", resp.StatusCode)
	// Output: Status: 200
}

// Example_triggerInvalidation демонстрирует инвалидацию кеша по событию обновления данных.
func Example_triggerInvalidation() {
	deps := exampleDeps()
	ctx := context.Background()

	rule := invalidation.NewRule(
		"user_data_invalidation",
		"user_data:*",
		models.StrategyImmediate,
		[]string{models.TriggerDataUpdate},
		0,
	)
	if err := deps.Invalidation.RegisterRule(rule); err != nil {
		log.Fatal(err)
	}

	deps.Cache.Set(ctx, "user_data:42", []byte(`{"balance":150}`), 0)

	router := handler.NewRouter(deps)
	ts := httptest.NewServer(router)
	defer ts.Close()

	body := []byte(`{"pattern":"user_data:42","trigger":"data_update"}`)
	resp, err := http.Post(ts.URL+"/invalidate/", "application/json", bytes.NewBuffer(body))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	_, err = deps.Cache.Get(ctx, "user_data:42")
	fmt.Printf("Status: %d\n", resp.StatusCode)
	fmt.Printf("Key invalidated: %t\n", err != nil)
	// Output:
	// Status: 200
	// Key invalidated: true
}

// Example_metricsSummary демонстрирует агрегатный отчёт по метрикам за окно.
func Example_metricsSummary() {
	deps := exampleDeps()

	deps.Collector.RecordCounter("api_calls", 1, nil)
	deps.Collector.RecordCounter("api_calls", 2, nil)
	deps.Collector.RecordCounter("api_calls", 3, nil)

	router := handler.NewRouter(deps)
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics/summary?window=3600")
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	var summary map[string]models.Summary
	json.NewDecoder(resp.Body).Decode(&summary)

	s := summary["counter_api_calls"]
	fmt.Printf("Count: %d, Sum: %.0f\n", s.Count, s.Sum)
	// Output: Count: 3, Sum: 6
}

// Example_healthCheck демонстрирует проверку работоспособности сервера.
func Example_healthCheck() {
	router := handler.NewRouter(exampleDeps())
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/ping")
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	fmt.Printf("Status: %d\n", resp.StatusCode)
	// Output: Status: 200
}

// Example_snapshotSaver демонстрирует использование SnapshotSaver.
func Example_snapshotSaver() {
	sugar := zap.NewNop().Sugar()
	collector := metrics.NewCollector(sugar, 0)

	collector.RecordGauge("system_memory_percent", 42.0, nil)

	saver := service.NewSnapshotSaver(
		collector,
		"/tmp/cache_metrics_example",
		time.Second,
		7,
		sugar,
	)

	saver.Start()
	time.Sleep(1500 * time.Millisecond)
	saver.Stop()

	fmt.Println("Snapshot saver stopped")
	// Output: Snapshot saver stopped
}
