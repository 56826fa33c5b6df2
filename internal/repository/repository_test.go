package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/levinOo/go-cache-project/internal/models"
)

func TestDBStorageSaveAlert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	storage := NewDBStorage(db)

	alert := models.Alert{
		Name:         "high_memory_usage",
		Severity:     models.SeverityCritical,
		Condition:    "system_memory_percent above 90",
		Threshold:    90,
		CurrentValue: 95.5,
		Timestamp:    time.Now(),
	}

	mock.ExpectExec(`INSERT INTO alert_events`).
		WithArgs(alert.Name, alert.Severity, alert.Condition, alert.Threshold, alert.CurrentValue, alert.Timestamp).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := storage.SaveAlert(context.Background(), alert); err != nil {
		t.Fatalf("SaveAlert failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDBStorageAlerts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	storage := NewDBStorage(db)

	firedAt := time.Now()
	rows := sqlmock.NewRows([]string{"name", "severity", "condition", "threshold", "current_value", "fired_at"}).
		AddRow("slow_api_calls", models.SeverityWarning, "api_response_time above 2", 2.0, 3.7, firedAt)

	mock.ExpectQuery(`SELECT name, severity, condition, threshold, current_value, fired_at`).
		WithArgs(50).
		WillReturnRows(rows)

	alerts, err := storage.Alerts(context.Background(), 50)
	if err != nil {
		t.Fatalf("Alerts failed: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].Name != "slow_api_calls" {
		t.Errorf("expected slow_api_calls, got %s", alerts[0].Name)
	}
	if alerts[0].CurrentValue != 3.7 {
		t.Errorf("expected current value 3.7, got %g", alerts[0].CurrentValue)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDBStorageSaveInvalidation(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	storage := NewDBStorage(db)

	event := models.Data{
		TS:       time.Now().Unix(),
		Pattern:  "bet_data:*",
		Trigger:  models.TriggerDataUpdate,
		Prefixes: []string{"bet_data"},
	}

	mock.ExpectExec(`INSERT INTO cache_events`).
		WithArgs(event.TS, event.Pattern, event.Trigger, `["bet_data"]`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := storage.SaveInvalidation(context.Background(), event); err != nil {
		t.Fatalf("SaveInvalidation failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDBStorageInvalidations(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	storage := NewDBStorage(db)

	rows := sqlmock.NewRows([]string{"ts", "pattern", "trigger_name", "prefixes"}).
		AddRow(int64(1756500000), "bet_data:*", models.TriggerDataUpdate, `["bet_data"]`)

	mock.ExpectQuery(`SELECT ts, pattern, trigger_name, prefixes`).
		WithArgs(20).
		WillReturnRows(rows)

	events, err := storage.Invalidations(context.Background(), 20)
	if err != nil {
		t.Fatalf("Invalidations failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Pattern != "bet_data:*" {
		t.Errorf("expected pattern bet_data:*, got %q", events[0].Pattern)
	}
	if len(events[0].Prefixes) != 1 || events[0].Prefixes[0] != "bet_data" {
		t.Errorf("expected prefixes [bet_data], got %v", events[0].Prefixes)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMemStorageInvalidationsOrder(t *testing.T) {
	storage := NewMemStorage()
	ctx := context.Background()

	for i, pattern := range []string{"first:*", "second:*", "third:*"} {
		event := models.Data{
			TS:       int64(i + 1),
			Pattern:  pattern,
			Trigger:  models.TriggerManual,
			Prefixes: []string{pattern[:len(pattern)-2]},
		}
		if err := storage.SaveInvalidation(ctx, event); err != nil {
			t.Fatalf("SaveInvalidation failed: %v", err)
		}
	}

	events, err := storage.Invalidations(ctx, 2)
	if err != nil {
		t.Fatalf("Invalidations failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Pattern != "third:*" || events[1].Pattern != "second:*" {
		t.Errorf("expected newest first, got %s, %s", events[0].Pattern, events[1].Pattern)
	}
}

func TestMemStorageAlertsOrder(t *testing.T) {
	storage := NewMemStorage()
	ctx := context.Background()

	for _, name := range []string{"first", "second", "third"} {
		if err := storage.SaveAlert(ctx, models.Alert{Name: name, Timestamp: time.Now()}); err != nil {
			t.Fatalf("SaveAlert failed: %v", err)
		}
	}

	alerts, err := storage.Alerts(ctx, 2)
	if err != nil {
		t.Fatalf("Alerts failed: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(alerts))
	}
	if alerts[0].Name != "third" || alerts[1].Name != "second" {
		t.Errorf("expected newest first, got %s, %s", alerts[0].Name, alerts[1].Name)
	}
}

func BenchmarkSaveAlert(b *testing.B) {
	db, mock, err := sqlmock.New()
	if err != nil {
		b.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	storage := NewDBStorage(db)

	alert := models.Alert{
		Name:         "high_error_rate",
		Severity:     models.SeverityCritical,
		Condition:    "error_rate above 0.05",
		Threshold:    0.05,
		CurrentValue: 0.12,
		Timestamp:    time.Now(),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mock.ExpectExec(`INSERT INTO alert_events`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		if err := storage.SaveAlert(context.Background(), alert); err != nil {
			b.Fatalf("iteration %d failed: %v", i, err)
		}
	}
}
