package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/levinOo/go-cache-project/internal/models"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Storage определяет интерфейс долговременного хранилища событий подсистемы:
// сработавших алертов и выполненных инвалидаций.
type Storage interface {
	SaveAlert(ctx context.Context, alert models.Alert) error
	Alerts(ctx context.Context, limit int) ([]models.Alert, error)
	SaveInvalidation(ctx context.Context, event models.Data) error
	Invalidations(ctx context.Context, limit int) ([]models.Data, error)
	Ping(ctx context.Context) error
}

// ConnectDB открывает подключение к PostgreSQL по DSN и проверяет его.
func ConnectDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// --------------------- DBStorage ---------------------

type DBStorage struct {
	db *sql.DB
}

func NewDBStorage(db *sql.DB) *DBStorage {
	return &DBStorage{db: db}
}

func (d *DBStorage) SaveAlert(ctx context.Context, alert models.Alert) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO alert_events (name, severity, condition, threshold, current_value, fired_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, alert.Name, alert.Severity, alert.Condition, alert.Threshold, alert.CurrentValue, alert.Timestamp)
	return err
}

func (d *DBStorage) Alerts(ctx context.Context, limit int) ([]models.Alert, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT name, severity, condition, threshold, current_value, fired_at
		FROM alert_events
		ORDER BY fired_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var a models.Alert
		if err := rows.Scan(&a.Name, &a.Severity, &a.Condition, &a.Threshold, &a.CurrentValue, &a.Timestamp); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return alerts, nil
}

func (d *DBStorage) SaveInvalidation(ctx context.Context, event models.Data) error {
	prefixes, err := json.Marshal(event.Prefixes)
	if err != nil {
		log.Printf("Failed to marshal prefixes: %v", err)
		prefixes = []byte("[]")
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO cache_events (ts, pattern, trigger_name, prefixes)
		VALUES ($1, $2, $3, $4)
	`, event.TS, event.Pattern, event.Trigger, string(prefixes))
	return err
}

func (d *DBStorage) Invalidations(ctx context.Context, limit int) ([]models.Data, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT ts, pattern, trigger_name, prefixes
		FROM cache_events
		ORDER BY ts DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.Data
	for rows.Next() {
		var e models.Data
		var rawPrefixes string
		if err := rows.Scan(&e.TS, &e.Pattern, &e.Trigger, &rawPrefixes); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(rawPrefixes), &e.Prefixes); err != nil {
			log.Printf("Failed to unmarshal prefixes: %v", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

func (d *DBStorage) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// --------------------- MemStorage ---------------------

// MemStorage хранит события в памяти процесса. Используется, когда DSN базы
// данных не сконфигурирован.
type MemStorage struct {
	mu            *sync.Mutex
	alerts        []models.Alert
	invalidations []models.Data
}

func NewMemStorage() *MemStorage {
	return &MemStorage{
		mu: &sync.Mutex{},
	}
}

func (m *MemStorage) SaveAlert(ctx context.Context, alert models.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, alert)
	return nil
}

func (m *MemStorage) Alerts(ctx context.Context, limit int) ([]models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 || limit > len(m.alerts) {
		limit = len(m.alerts)
	}

	// Самые свежие первыми, как в SQL-запросе DBStorage.
	out := make([]models.Alert, 0, limit)
	for i := len(m.alerts) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.alerts[i])
	}
	return out, nil
}

func (m *MemStorage) SaveInvalidation(ctx context.Context, event models.Data) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidations = append(m.invalidations, event)
	return nil
}

func (m *MemStorage) Invalidations(ctx context.Context, limit int) ([]models.Data, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 || limit > len(m.invalidations) {
		limit = len(m.invalidations)
	}

	// Самые свежие первыми, как в SQL-запросе DBStorage.
	out := make([]models.Data, 0, limit)
	for i := len(m.invalidations) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.invalidations[i])
	}
	return out, nil
}

func (m *MemStorage) Ping(ctx context.Context) error {
	return nil
}

// FormatConditions возвращает человекочитаемое описание условий списка алертов,
// например для текстовой выдачи наружу.
func FormatConditions(alerts []models.Alert) string {
	var sb strings.Builder
	for _, a := range alerts {
		sb.WriteString(fmt.Sprintf("%s [%s]: %s (value=%g, threshold=%g)\n",
			a.Name, a.Severity, a.Condition, a.CurrentValue, a.Threshold))
	}
	return sb.String()
}
