package config

import (
	"encoding/json"
	"os"
)

// ReporterConfig - настройки репортера. Значения из файла перекрываются
// флагами и переменными окружения в main.
type ReporterConfig struct {
	Port          uint32 `json:"port"`
	ProbeAddr     string `json:"probe_addr"`
	WriteTimeout  int    `json:"write_timeout"`
	StatusAddress string `json:"status_address"`
	TrustedSubnet string `json:"trusted_subnet"`
	LogLevel      string `json:"log_level"`
}

// LoadReporterConfig читает конфигурацию из JSON-файла. Пустой путь
// возвращает значения по умолчанию.
func LoadReporterConfig(filePath string) (*ReporterConfig, error) {
	config := &ReporterConfig{
		Port:         1024,
		ProbeAddr:    "8.8.8.8:80",
		WriteTimeout: 5,
		LogLevel:     "info",
	}

	if filePath != "" {
		file, err := os.ReadFile(filePath)
		if err != nil {
			return nil, err
		}

		err = json.Unmarshal(file, config)
		if err != nil {
			return nil, err
		}
	}

	return config, nil
}
