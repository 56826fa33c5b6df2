package handler

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/levinOo/go-cache-project/internal/alerting"
	"github.com/levinOo/go-cache-project/internal/cache"
	"github.com/levinOo/go-cache-project/internal/cryptoutil"
	"github.com/levinOo/go-cache-project/internal/invalidation"
	"github.com/levinOo/go-cache-project/internal/logger"
	"github.com/levinOo/go-cache-project/internal/metrics"
	"github.com/levinOo/go-cache-project/internal/models"
	"github.com/levinOo/go-cache-project/internal/pool"
	"github.com/levinOo/go-cache-project/internal/repository"
	"go.uber.org/zap"
)

type Deps struct {
	Collector    *metrics.Collector
	Invalidation *invalidation.Service
	Alerts       *alerting.Manager
	Cache        cache.Store
	Store        repository.Storage
	Logger       *zap.SugaredLogger

	// CryptoKeyPath указывает на приватный ключ для расшифровки пакетов агента.
	CryptoKeyPath string
}

func NewRouter(deps Deps) *chi.Mux {
	sugar := deps.Logger

	var privateKey *rsa.PrivateKey
	if deps.CryptoKeyPath != "" {
		key, err := cryptoutil.LoadPrivateKey(deps.CryptoKeyPath)
		if err != nil {
			sugar.Errorw("Failed to load private key, encrypted ingest disabled", "error", err)
		} else {
			privateKey = key
		}
	}

	metricsPool := pool.New[*models.Metrics](func() *models.Metrics {
		return &models.Metrics{}
	})

	r := chi.NewRouter()

	r.Get("/", LoggerFuncServer(GetListHandler(deps.Collector), deps.Collector, sugar))
	r.Get("/ping", LoggerFuncServer(PingHandler(deps.Store), deps.Collector, sugar))

	r.Route("/update", func(r chi.Router) {
		r.Post("/", LoggerFuncServer(DecompressMiddleware(UpdateJSONHandler(deps.Collector, metricsPool)), deps.Collector, sugar))
		r.Post("/{typeMetric}/{metric}/{value}", LoggerFuncServer(UpdateValueHandler(deps.Collector, sugar), deps.Collector, sugar))
	})

	r.Post("/updates", LoggerFuncServer(UpdatesBatchHandler(deps.Collector, privateKey, sugar), deps.Collector, sugar))

	r.Route("/metrics", func(r chi.Router) {
		r.Get("/summary", LoggerFuncServer(SummaryHandler(deps.Collector), deps.Collector, sugar))
		r.Get("/history/{metric}", LoggerFuncServer(HistoryHandler(deps.Collector), deps.Collector, sugar))
	})

	r.Route("/invalidate", func(r chi.Router) {
		r.Post("/", LoggerFuncServer(TriggerInvalidationHandler(deps.Invalidation), deps.Collector, sugar))
		r.Post("/immediate", LoggerFuncServer(ImmediateInvalidationHandler(deps.Invalidation), deps.Collector, sugar))
		r.Post("/delayed", LoggerFuncServer(DelayedInvalidationHandler(deps.Invalidation), deps.Collector, sugar))
		r.Post("/batch", LoggerFuncServer(BatchInvalidationHandler(deps.Invalidation), deps.Collector, sugar))
	})

	r.Route("/rules", func(r chi.Router) {
		r.Get("/", LoggerFuncServer(RulesHandler(deps.Invalidation), deps.Collector, sugar))
		r.Post("/{rule}/active", LoggerFuncServer(RuleActiveHandler(deps.Invalidation), deps.Collector, sugar))
	})

	r.Get("/alerts", LoggerFuncServer(AlertsHandler(deps.Alerts, deps.Store), deps.Collector, sugar))
	r.Get("/invalidations", LoggerFuncServer(InvalidationEventsHandler(deps.Store), deps.Collector, sugar))
	r.Get("/cache/stats", LoggerFuncServer(CacheStatsHandler(deps.Cache, deps.Collector), deps.Collector, sugar))

	return r
}

// LoggerFuncServer логирует запрос и записывает его длительность в Collector.
func LoggerFuncServer(h http.Handler, collector *metrics.Collector, sugar *zap.SugaredLogger) http.HandlerFunc {
	logFn := func(rw http.ResponseWriter, r *http.Request) {
		start := time.Now()

		responseData := &logger.ResponseData{
			Size:   0,
			Status: 0,
		}
		lw := logger.LoggingRW{
			ResponseWriter: rw,
			ResponseData:   responseData,
		}

		h.ServeHTTP(&lw, r)

		dur := time.Since(start)
		collector.RecordRequestTime(r.URL.Path, dur.Seconds())

		sugar.Infoln(
			"uri", r.RequestURI,
			"method", r.Method,
			"duration", dur,
			"status", responseData.Status,
			"size", responseData.Size,
		)
	}
	return http.HandlerFunc(logFn)
}

func DecompressMiddleware(h http.Handler) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Encoding") == "gzip" {
			gz, err := gzip.NewReader(r.Body)
			if err != nil {
				http.Error(rw, "Failed to decompress gzip body", http.StatusBadRequest)
				return
			}
			defer gz.Close()

			body, err := io.ReadAll(gz)
			if err != nil {
				http.Error(rw, "Failed to read decompressed body", http.StatusInternalServerError)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			r.ContentLength = int64(len(body))
		}
		h.ServeHTTP(rw, r)
	}
}

func PingHandler(store repository.Storage) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			http.Error(rw, "No connection with storage", http.StatusInternalServerError)
			return
		}

		rw.WriteHeader(http.StatusOK)
		rw.Write([]byte("Storage is reachable"))
	}
}

func applyMetric(collector *metrics.Collector, m *models.Metrics) error {
	switch m.MType {
	case models.Counter:
		if m.Delta == nil {
			return fmt.Errorf("counter %s has no delta", m.ID)
		}
		collector.RecordCounter(m.ID, *m.Delta, m.Tags)
	case models.Gauge:
		if m.Value == nil {
			return fmt.Errorf("gauge %s has no value", m.ID)
		}
		collector.RecordGauge(m.ID, *m.Value, m.Tags)
	case models.Timing:
		if m.Value == nil {
			return fmt.Errorf("timing %s has no value", m.ID)
		}
		collector.RecordRequestTime(m.ID, *m.Value)
	default:
		return fmt.Errorf("unknown type of metric: %s", m.MType)
	}
	return nil
}

func UpdateValueHandler(collector *metrics.Collector, sugar *zap.SugaredLogger) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		nameMetric := chi.URLParam(r, "metric")
		valueMetric := chi.URLParam(r, "value")
		typeMetric := chi.URLParam(r, "typeMetric")

		if nameMetric == "" {
			http.Error(rw, "Metric is empty", http.StatusNotFound)
			return
		}

		switch typeMetric {
		case models.Gauge:
			valueGauge, err := strconv.ParseFloat(valueMetric, 64)
			if err != nil {
				http.Error(rw, "Invalid type of value", http.StatusBadRequest)
				return
			}
			collector.RecordGauge(nameMetric, valueGauge, nil)
			sugar.Debugw("Set gauge metric", "name", nameMetric, "value", valueGauge)
		case models.Counter:
			valueCounter, err := strconv.ParseInt(valueMetric, 10, 64)
			if err != nil {
				http.Error(rw, "Invalid type of value", http.StatusBadRequest)
				return
			}
			collector.RecordCounter(nameMetric, valueCounter, nil)
			sugar.Debugw("Set counter metric", "name", nameMetric, "value", valueCounter)
		case models.Timing:
			seconds, err := strconv.ParseFloat(valueMetric, 64)
			if err != nil {
				http.Error(rw, "Invalid type of value", http.StatusBadRequest)
				return
			}
			collector.RecordRequestTime(nameMetric, seconds)
		default:
			http.Error(rw, "Unknown type of metric", http.StatusBadRequest)
			return
		}

		rw.WriteHeader(http.StatusOK)
		_, err := rw.Write([]byte("OK"))
		if err != nil {
			log.Printf("write status code error: %v", err)
		}
	}
}

func UpdateJSONHandler(collector *metrics.Collector, metricsPool *pool.Pool[*models.Metrics]) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		metric := metricsPool.Get()
		defer metricsPool.Put(metric)

		err := json.NewDecoder(r.Body).Decode(metric)
		if err != nil {
			http.Error(rw, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}

		if err := applyMetric(collector, metric); err != nil {
			http.Error(rw, err.Error(), http.StatusBadRequest)
			return
		}

		accept := r.Header.Get("Accept")

		if strings.Contains(accept, "application/json") {
			rw.Header().Set("Content-Type", "application/json")
			rw.WriteHeader(http.StatusOK)

			response := map[string]string{"status": "ok"}
			if err := json.NewEncoder(rw).Encode(response); err != nil {
				log.Printf("json encode error: %v", err)
			}
		} else {
			rw.Header().Set("Content-Type", "text/html")
			rw.WriteHeader(http.StatusOK)

			_, err = rw.Write([]byte("<html><body><h1>OK</h1></body></html>"))
			if err != nil {
				log.Printf("write html error: %v", err)
			}
		}
	}
}

func UpdatesBatchHandler(collector *metrics.Collector, privateKey *rsa.PrivateKey, sugar *zap.SugaredLogger) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(rw, "Failed to read body", http.StatusInternalServerError)
			return
		}

		if r.Header.Get("X-Encrypted") == "1" {
			if privateKey == nil {
				http.Error(rw, "Encrypted payloads are not configured", http.StatusBadRequest)
				return
			}
			body, err = cryptoutil.DecryptDataHybrid(privateKey, body)
			if err != nil {
				http.Error(rw, "Failed to decrypt body", http.StatusBadRequest)
				return
			}
		}

		if r.Header.Get("Content-Encoding") == "gzip" {
			gz, err := gzip.NewReader(bytes.NewReader(body))
			if err != nil {
				http.Error(rw, "Failed to decompress gzip body", http.StatusBadRequest)
				return
			}
			defer gz.Close()

			body, err = io.ReadAll(gz)
			if err != nil {
				http.Error(rw, "Failed to read decompressed body", http.StatusInternalServerError)
				return
			}
		}

		var list []models.Metrics
		if err := json.Unmarshal(body, &list); err != nil {
			http.Error(rw, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}

		applied := 0
		for i := range list {
			if err := applyMetric(collector, &list[i]); err != nil {
				sugar.Warnw("Skipping metric in batch", "id", list[i].ID, "error", err)
				continue
			}
			applied++
		}

		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(rw).Encode(map[string]int{"applied": applied}); err != nil {
			log.Printf("json encode error: %v", err)
		}
	}
}

func SummaryHandler(collector *metrics.Collector) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		window := time.Hour
		if raw := r.URL.Query().Get("window"); raw != "" {
			seconds, err := strconv.Atoi(raw)
			if err != nil || seconds <= 0 {
				http.Error(rw, "Invalid window", http.StatusBadRequest)
				return
			}
			window = time.Duration(seconds) * time.Second
		}

		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(rw).Encode(collector.Summary(window)); err != nil {
			log.Printf("response encode error: %v", err)
		}
	}
}

func HistoryHandler(collector *metrics.Collector) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "metric")

		hours := 24
		if raw := r.URL.Query().Get("hours"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v <= 0 {
				http.Error(rw, "Invalid hours", http.StatusBadRequest)
				return
			}
			hours = v
		}

		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(rw).Encode(collector.History(name, hours)); err != nil {
			log.Printf("response encode error: %v", err)
		}
	}
}

func decodeInvalidationRequest(rw http.ResponseWriter, r *http.Request) (models.InvalidationRequest, bool) {
	var req models.InvalidationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(rw, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return req, false
	}
	if req.Pattern == "" {
		http.Error(rw, "Pattern is empty", http.StatusBadRequest)
		return req, false
	}
	if req.Trigger == "" {
		req.Trigger = models.TriggerManual
	}
	return req, true
}

func TriggerInvalidationHandler(svc *invalidation.Service) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		req, ok := decodeInvalidationRequest(rw, r)
		if !ok {
			return
		}

		result := svc.Trigger(r.Context(), req.Pattern, req.Trigger)

		rw.Header().Set("Content-Type", "application/json")
		if !result {
			rw.WriteHeader(http.StatusInternalServerError)
		} else {
			rw.WriteHeader(http.StatusOK)
		}
		if err := json.NewEncoder(rw).Encode(map[string]bool{"ok": result}); err != nil {
			log.Printf("json encode error: %v", err)
		}
	}
}

func ImmediateInvalidationHandler(svc *invalidation.Service) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		req, ok := decodeInvalidationRequest(rw, r)
		if !ok {
			return
		}

		if err := svc.InvalidateImmediate(r.Context(), req.Pattern, req.Trigger); err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}

		rw.WriteHeader(http.StatusOK)
		rw.Write([]byte("OK"))
	}
}

func DelayedInvalidationHandler(svc *invalidation.Service) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		req, ok := decodeInvalidationRequest(rw, r)
		if !ok {
			return
		}

		svc.InvalidateDelayed(req.Pattern, req.Trigger, time.Duration(req.DelaySeconds)*time.Second)

		rw.WriteHeader(http.StatusAccepted)
		rw.Write([]byte("Scheduled"))
	}
}

func BatchInvalidationHandler(svc *invalidation.Service) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		req, ok := decodeInvalidationRequest(rw, r)
		if !ok {
			return
		}

		svc.InvalidateBatch(req.Pattern, req.Trigger)

		rw.WriteHeader(http.StatusAccepted)
		rw.Write([]byte("Scheduled"))
	}
}

func RulesHandler(svc *invalidation.Service) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(rw).Encode(svc.Rules()); err != nil {
			log.Printf("response encode error: %v", err)
		}
	}
}

func RuleActiveHandler(svc *invalidation.Service) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "rule")

		var req struct {
			Active bool `json:"active"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(rw, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}

		if !svc.SetRuleActive(name, req.Active) {
			http.Error(rw, "Unknown rule", http.StatusNotFound)
			return
		}

		rw.WriteHeader(http.StatusOK)
		rw.Write([]byte("OK"))
	}
}

func AlertsHandler(manager *alerting.Manager, store repository.Storage) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("source") == "db" {
			alerts, err := store.Alerts(r.Context(), 100)
			if err != nil {
				http.Error(rw, "Failed to read alerts", http.StatusInternalServerError)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			rw.WriteHeader(http.StatusOK)
			if err := json.NewEncoder(rw).Encode(alerts); err != nil {
				log.Printf("response encode error: %v", err)
			}
			return
		}

		fired := manager.CheckAlerts(r.Context())

		if strings.Contains(r.Header.Get("Accept"), "text/plain") {
			rw.Header().Set("Content-Type", "text/plain")
			rw.WriteHeader(http.StatusOK)
			_, err := rw.Write([]byte(repository.FormatConditions(manager.History())))
			if err != nil {
				log.Printf("write error: %v", err)
			}
			return
		}

		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(http.StatusOK)
		response := map[string]interface{}{
			"fired":   fired,
			"history": manager.History(),
		}
		if err := json.NewEncoder(rw).Encode(response); err != nil {
			log.Printf("response encode error: %v", err)
		}
	}
}

// InvalidationEventsHandler отдаёт историю выполненных инвалидаций
// из хранилища событий, самые свежие первыми.
func InvalidationEventsHandler(store repository.Storage) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		limit := 100
		if raw := r.URL.Query().Get("limit"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v <= 0 {
				http.Error(rw, "Invalid limit", http.StatusBadRequest)
				return
			}
			limit = v
		}

		events, err := store.Invalidations(r.Context(), limit)
		if err != nil {
			http.Error(rw, "Failed to read invalidation events", http.StatusInternalServerError)
			return
		}
		if events == nil {
			events = []models.Data{}
		}

		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(rw).Encode(events); err != nil {
			log.Printf("response encode error: %v", err)
		}
	}
}

func CacheStatsHandler(store cache.Store, collector *metrics.Collector) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		stats, err := store.Stats(r.Context())
		if err != nil {
			http.Error(rw, "Failed to read cache stats", http.StatusInternalServerError)
			return
		}

		if total := stats.Hits + stats.Misses; total > 0 {
			collector.RecordGauge("cache_hit_rate", float64(stats.Hits)/float64(total), nil)
		}

		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(rw).Encode(stats); err != nil {
			log.Printf("response encode error: %v", err)
		}
	}
}

func GetListHandler(collector *metrics.Collector) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		var sb strings.Builder

		accept := r.Header.Get("Accept")

		counters := collector.Counters()
		gauges := collector.Gauges()

		if strings.Contains(accept, "text/html") {
			sb.WriteString("<html><body>")
			sb.WriteString("<h1>Metrics</h1>")

			if len(gauges) > 0 {
				sb.WriteString("<h2>Gauges</h2><ul>")
				for name, val := range gauges {
					sb.WriteString(fmt.Sprintf("<li>%s: %f</li>", name, val))
				}
				sb.WriteString("</ul>")
			}

			if len(counters) > 0 {
				sb.WriteString("<h2>Counters</h2><ul>")
				for name, val := range counters {
					sb.WriteString(fmt.Sprintf("<li>%s: %d</li>", name, val))
				}
				sb.WriteString("</ul>")
			}

			sb.WriteString("</body></html>")
		} else {
			for name, val := range gauges {
				sb.WriteString(fmt.Sprintf("%s: %f\n", name, val))
			}
			for name, val := range counters {
				sb.WriteString(fmt.Sprintf("%s: %d\n", name, val))
			}
		}

		if strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			rw.Header().Set("Content-Encoding", "gzip")
			if strings.Contains(accept, "text/html") {
				rw.Header().Set("Content-Type", "text/html")
			} else {
				rw.Header().Set("Content-Type", "text/plain")
			}
			rw.WriteHeader(http.StatusOK)

			gz := gzip.NewWriter(rw)
			defer gz.Close()

			_, err := gz.Write([]byte(sb.String()))
			if err != nil {
				log.Printf("gzip write error: %v", err)
			}
		} else {
			if strings.Contains(accept, "text/html") {
				rw.Header().Set("Content-Type", "text/html")
			} else {
				rw.Header().Set("Content-Type", "text/plain")
			}

			_, err := rw.Write([]byte(sb.String()))
			if err != nil {
				log.Printf("write error: %v", err)
			}
		}
	}
}
