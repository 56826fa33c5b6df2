package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/levinOo/go-cache-project/internal/config"
	"github.com/levinOo/go-cache-project/internal/service"
)

var (
	buildVersion string = "N/A"
	buildDate    string = "N/A"
	buildCommit  string = "N/A"
)

func main() {
	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)

	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var flags config.FlagSet

	flag.StringVar(&flags.Addr, "a", "localhost:8080", "Адрес сервера")
	flag.StringVar(&flags.MetricsDir, "m", "data/metrics", "Каталог снапшотов метрик")
	flag.StringVar(&flags.SnapshotInterval, "i", "300", "Интервал сохранения снапшотов в секундах")
	flag.StringVar(&flags.CollectInterval, "s", "30", "Интервал сбора системных метрик в секундах")
	flag.StringVar(&flags.RetentionDays, "t", "7", "Срок хранения снапшотов в днях")
	flag.StringVar(&flags.MaxPoints, "n", "1000", "Максимум точек в серии метрики")
	flag.StringVar(&flags.RedisAddr, "redis", "", "Адрес Redis")
	flag.StringVar(&flags.AddrDB, "d", "", "Строка подключения к базе данных")
	flag.StringVar(&flags.ConfigFilePath, "config", "", "path to config file")
	flag.StringVar(&flags.CryptoKeyPath, "c", "", "Приватный ключ шифрования")
	flag.StringVar(&flags.AuditFile, "p", "", "Путь к файлу аудита инвалидаций")
	flag.StringVar(&flags.AuditURL, "u", "", "URL для отправки событий аудита")

	flag.Parse()

	cfg, err := config.GetConfig(flags)
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	return service.Serve(cfg)
}
