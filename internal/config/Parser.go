package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"JMLogPump/internal/aggregate"
)

// EnvPrefix - префикс переменных окружения
const EnvPrefix = "JMLOG"

// readFile читает все байты из файла по пути
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// sanitize удаляет BOM и табуляции
func sanitize(data []byte) []byte {
	// Удаляем UTF-8 BOM
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	// Заменяем табы на два пробела
	data = bytes.ReplaceAll(data, []byte("\t"), []byte("  "))
	return data
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LogDirectories", []string{})
	v.SetDefault("FilePatterns", []string{"*.jtl", "*.csv", "*.xml", "*.log"})
	v.SetDefault("WindowSeconds", 60)
	v.SetDefault("Modes", []string{"art", "lat", "rpt", "bpt", "err", "errc", "vusers"})
	v.SetDefault("Trend", false)
	v.SetDefault("Workers", 4)
	v.SetDefault("BatchSize", 1000)
	v.SetDefault("BatchInterval", 5)
	v.SetDefault("RescanInterval", 30)
	v.SetDefault("SettleInterval", 5)

	v.SetDefault("Units.MegabytesPerSecond", false)
	v.SetDefault("Units.Seconds", false)

	v.SetDefault("ClickHouse.Address", "")
	v.SetDefault("ClickHouse.Username", "default")
	v.SetDefault("ClickHouse.Password", "")
	v.SetDefault("ClickHouse.Database", "")
	v.SetDefault("ClickHouse.Protocol", "native")
	v.SetDefault("ClickHouse.RecordsTable", "jmeter_records")
	v.SetDefault("ClickHouse.SeriesTable", "jmeter_series")

	v.SetDefault("ProcessedStorage", "file")
	v.SetDefault("ProcessedFile", "processed_files.json")
	v.SetDefault("Redis.Host", "localhost")
	v.SetDefault("Redis.Port", 6379)
	v.SetDefault("Redis.DB", 0)
	v.SetDefault("Redis.Password", "")
	v.SetDefault("Redis.Key", "jmlogpump:processed")

	v.SetDefault("Logging.Level", "info")
	v.SetDefault("Logging.Encoding", "console")
	v.SetDefault("Logging.LogFile", "")
	v.SetDefault("Logging.SentryDSN", "")
	v.SetDefault("Logging.EnableSentry", false)
	v.SetDefault("Metrics.Address", "")
}

// parseYAML парсит YAML-данные в структуру Config поверх значений по умолчанию
func parseYAML(data []byte) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет общие поля конфигурации
func (c *Config) Validate() error {
	if c.WindowSeconds <= 0 {
		return fmt.Errorf("WindowSeconds must be positive")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("Workers must be positive")
	}
	if len(c.Modes) == 0 {
		return fmt.Errorf("Modes must not be empty")
	}
	for _, m := range c.Modes {
		if _, err := aggregate.ParseMode(m); err != nil {
			return fmt.Errorf("Modes: %w", err)
		}
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("Logging.Level: %w", err)
	}
	switch c.Logging.Encoding {
	case "console", "json":
	default:
		return fmt.Errorf("Logging.Encoding must be \"console\" or \"json\", got %q", c.Logging.Encoding)
	}
	switch c.ProcessedStorage {
	case "file", "redis":
	default:
		return fmt.Errorf("ProcessedStorage must be \"file\" or \"redis\", got %q", c.ProcessedStorage)
	}
	return nil
}

// ValidatePump проверяет поля, необходимые для режима наблюдения за каталогами
func (c *Config) ValidatePump() error {
	if len(c.LogDirectories) == 0 {
		return fmt.Errorf("LogDirectories must not be empty")
	}
	if len(c.FilePatterns) == 0 {
		return fmt.Errorf("FilePatterns must not be empty")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("BatchSize must be positive")
	}
	if c.BatchInterval <= 0 {
		return fmt.Errorf("BatchInterval must be positive")
	}
	if c.RescanInterval <= 0 {
		return fmt.Errorf("RescanInterval must be positive")
	}
	if c.SettleInterval <= 0 {
		return fmt.Errorf("SettleInterval must be positive")
	}
	if c.ClickHouse.Address == "" {
		return fmt.Errorf("ClickHouse.Address must not be empty")
	}
	if c.ClickHouse.Database == "" {
		return fmt.Errorf("ClickHouse.Database must not be empty")
	}
	return nil
}

// ParsedModes возвращает метрики в виде перечисления
func (c *Config) ParsedModes() ([]aggregate.Mode, error) {
	out := make([]aggregate.Mode, 0, len(c.Modes))
	for _, name := range c.Modes {
		m, err := aggregate.ParseMode(name)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
