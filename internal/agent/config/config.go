package config

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"strconv"
)

type ConfigStruct struct {
	Addr          string `json:"address"`
	PollInterval  int    `json:"poll_interval"`
	ReqInterval   int    `json:"report_interval"`
	CryptoKeyPath string `json:"crypto_key"`
}

type Config struct {
	Addr          string `env:"ADDRESS"`
	PollInterval  int    `env:"POLL_INTERVAL"`
	ReqInterval   int    `env:"REPORT_INTERVAL"`
	CryptoKeyPath string `env:"CRYPTO_KEY"`
}

func NewConfigStruct() *ConfigStruct {
	return &ConfigStruct{}
}

func NewConfig() *Config {
	return &Config{}
}

func GetAgentConfig(cfg *Config) error {
	configStruct := NewConfigStruct()

	addr := flag.String("a", "localhost:8080", "Адрес координатора")
	configPathFlag := flag.String("config", "", "path to config file")
	cryptoKey := flag.String("c", "", "Публичный ключ шифрования")
	pollInterval := flag.String("p", "2", "Значение интервала сбора метрик в секундах")
	reqInterval := flag.String("r", "10", "Значение интервала отправки в секундах")

	flag.Parse()

	configPath := getConfigPath(*configPathFlag, os.Getenv("CONFIG"))
	if configPath != "" {
		data, err := os.Open(configPath)
		if err != nil {
			log.Printf("Не удалось открыть файл конфигурации: %v", err)
		} else {
			defer data.Close()
			if err := json.NewDecoder(data).Decode(configStruct); err != nil {
				log.Printf("Не удалось разобрать файл конфигурации: %v", err)
			}
		}
	}

	cfg.Addr = getString(os.Getenv("ADDRESS"), *addr, configStruct.Addr)
	cfg.CryptoKeyPath = getString(os.Getenv("CRYPTO_KEY"), *cryptoKey, configStruct.CryptoKeyPath)
	cfg.PollInterval = getInt(os.Getenv("POLL_INTERVAL"), *pollInterval, configStruct.PollInterval)
	cfg.ReqInterval = getInt(os.Getenv("REPORT_INTERVAL"), *reqInterval, configStruct.ReqInterval)

	return nil
}

func getString(envValue, flagValue, configValue string) string {
	if envValue != "" {
		return envValue
	} else if flagValue != "" {
		return flagValue
	}

	return configValue
}

func getInt(envValue, flagValue string, configValue int) int {
	if envValue != "" {
		if v, err := strconv.Atoi(envValue); err == nil {
			return v
		}
	} else if flagValue != "" {
		v, _ := strconv.Atoi(flagValue)
		return v
	}

	return configValue
}

func getConfigPath(flagValue, envValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return envValue
}
