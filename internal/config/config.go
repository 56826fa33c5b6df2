// Package config предоставляет функциональность для управления конфигурацией сервиса.
// Поддерживает загрузку настроек из переменных окружения, флагов командной строки
// и JSON-файла конфигурации, с приоритетом: окружение > флаги > файл.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/caarlos0/env/v11"
)

// ConfigStruct описывает формат JSON-файла конфигурации сервиса.
type ConfigStruct struct {
	Addr             string `json:"address"`
	MetricsDir       string `json:"metrics_dir"`
	SnapshotInterval int    `json:"snapshot_interval"`
	CollectInterval  int    `json:"collect_interval"`
	RetentionDays    int    `json:"retention_days"`
	MaxPoints        int    `json:"max_points"`
	RedisAddr        string `json:"redis_address"`
	AddrDB           string `json:"database_dsn"`
	CryptoKeyPath    string `json:"crypto_key"`
	AuditFile        string `json:"audit_file"`
	AuditURL         string `json:"audit_url"`
}

// Config содержит все параметры конфигурации сервиса координации кеша.
// Значения загружаются из переменных окружения (указаны в тегах env)
// или из флагов командной строки, если переменные окружения не установлены.
type Config struct {
	// Addr задает адрес и порт HTTP-сервера (например, "localhost:8080").
	Addr string `env:"ADDRESS"`

	// MetricsDir указывает каталог для снапшотов метрик на диске.
	MetricsDir string `env:"METRICS_DIR"`

	// SnapshotInterval определяет интервал в секундах между сохранениями снапшотов.
	// Значение 0 отключает периодическое сохранение.
	SnapshotInterval int `env:"SNAPSHOT_INTERVAL"`

	// CollectInterval определяет интервал в секундах между сборами системных метрик.
	CollectInterval int `env:"COLLECT_INTERVAL"`

	// RetentionDays определяет возраст снапшотов в днях, после которого они удаляются.
	RetentionDays int `env:"RETENTION_DAYS"`

	// MaxPoints ограничивает количество точек в серии одной метрики.
	MaxPoints int `env:"MAX_POINTS"`

	// RedisAddr содержит адрес Redis для кеша.
	// Если не указано, используется кеш в памяти.
	RedisAddr string `env:"REDIS_ADDRESS"`

	// AddrDB содержит строку подключения к базе данных PostgreSQL (DSN).
	// Если не указано, события алертов хранятся в памяти.
	AddrDB string `env:"DATABASE_DSN"`

	ConfigFilePath string `env:"CONFIG"`

	CryptoKeyPath string `env:"CRYPTO_KEY"`

	// AuditFile указывает путь к файлу для записи событий инвалидации.
	AuditFile string `env:"AUDIT_FILE"`

	// AuditURL содержит URL для отправки событий инвалидации на внешний сервис.
	AuditURL string `env:"AUDIT_URL"`
}

func NewConfigStruct() *ConfigStruct {
	return &ConfigStruct{}
}

// FlagSet группирует строковые значения флагов до сведения их с окружением и файлом.
type FlagSet struct {
	Addr             string
	MetricsDir       string
	SnapshotInterval string
	CollectInterval  string
	RetentionDays    string
	MaxPoints        string
	RedisAddr        string
	AddrDB           string
	ConfigFilePath   string
	CryptoKeyPath    string
	AuditFile        string
	AuditURL         string
}

// GetConfig загружает и возвращает конфигурацию сервиса.
// Сначала обрабатываются флаги командной строки и файл конфигурации,
// затем значения перекрываются переменными окружения.
//
// Поддерживаемые флаги:
//
//	-a: адрес сервера (по умолчанию "localhost:8080")
//	-m: каталог снапшотов метрик (по умолчанию "data/metrics")
//	-i: интервал сохранения снапшотов в секундах (по умолчанию "300")
//	-s: интервал сбора системных метрик в секундах (по умолчанию "30")
//	-t: срок хранения снапшотов в днях (по умолчанию "7")
//	-n: максимум точек в серии метрики (по умолчанию "1000")
//	-redis: адрес Redis (по умолчанию "")
//	-d: строка подключения к базе данных (по умолчанию "")
//	-c: путь к ключу шифрования
//	-p: путь к файлу аудита
//	-u: URL для аудита
//
// Соответствующие переменные окружения:
//
//	ADDRESS, METRICS_DIR, SNAPSHOT_INTERVAL, COLLECT_INTERVAL, RETENTION_DAYS,
//	MAX_POINTS, REDIS_ADDRESS, DATABASE_DSN, CRYPTO_KEY, AUDIT_FILE, AUDIT_URL
func GetConfig(flags FlagSet) (Config, error) {
	configStruct := NewConfigStruct()

	configPath := getConfigPath(flags.ConfigFilePath, os.Getenv("CONFIG"))
	if configPath != "" {
		data, err := os.Open(configPath)
		if err != nil {
			log.Printf("Не удалось открыть файл: %v", err)
		} else {
			defer data.Close()
			if err := json.NewDecoder(data).Decode(configStruct); err != nil {
				log.Printf("Не удалось разобрать файл конфигурации: %v", err)
			}
		}
	}

	cfg := Config{
		Addr:             getString(flags.Addr, configStruct.Addr),
		MetricsDir:       getString(flags.MetricsDir, configStruct.MetricsDir),
		SnapshotInterval: getInt(flags.SnapshotInterval, configStruct.SnapshotInterval),
		CollectInterval:  getInt(flags.CollectInterval, configStruct.CollectInterval),
		RetentionDays:    getInt(flags.RetentionDays, configStruct.RetentionDays),
		MaxPoints:        getInt(flags.MaxPoints, configStruct.MaxPoints),
		RedisAddr:        getString(flags.RedisAddr, configStruct.RedisAddr),
		AddrDB:           getString(flags.AddrDB, configStruct.AddrDB),
		ConfigFilePath:   configPath,
		CryptoKeyPath:    getString(flags.CryptoKeyPath, configStruct.CryptoKeyPath),
		AuditFile:        getString(flags.AuditFile, configStruct.AuditFile),
		AuditURL:         getString(flags.AuditURL, configStruct.AuditURL),
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("ошибка парсинга ENV: %w", err)
	}

	return cfg, nil
}

// getString возвращает значение флага, если оно непустое, иначе значение из файла.
func getString(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}

// getInt преобразует строковое значение флага в целое число.
// При пустом или некорректном значении возвращает значение из файла.
func getInt(flagValue string, configValue int) int {
	if flagValue != "" {
		if v, err := strconv.Atoi(flagValue); err == nil {
			return v
		}
	}
	return configValue
}

func getConfigPath(flagValue, envValue string) string {
	if envValue != "" {
		return envValue
	}
	return flagValue
}
