package config

import (
	"fmt"
	"time"
)

// ClickHouseConfig содержит настройки подключения и имена таблиц
// Поля обязательны для режима pump: Address, Database
type ClickHouseConfig struct {
	Address      string `mapstructure:"Address"`
	Username     string `mapstructure:"Username"`
	Password     string `mapstructure:"Password"`
	Database     string `mapstructure:"Database"`
	Protocol     string `mapstructure:"Protocol"` // "native" или "http"
	RecordsTable string `mapstructure:"RecordsTable"`
	SeriesTable  string `mapstructure:"SeriesTable"`
}

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Host     string `mapstructure:"Host"`
	Port     int    `mapstructure:"Port"`
	DB       int    `mapstructure:"DB"`
	Password string `mapstructure:"Password"`
	Key      string `mapstructure:"Key"`
}

// LoggingConfig содержит настройки логирования и интеграции с Sentry
type LoggingConfig struct {
	Level        string `mapstructure:"Level"`        // минимальный уровень консоли: debug, info, warn, error
	Encoding     string `mapstructure:"Encoding"`     // "console" или "json"
	LogFile      string `mapstructure:"LogFile"`      // путь к файлу логов (только ошибки)
	SentryDSN    string `mapstructure:"SentryDSN"`    // DSN для Sentry
	EnableSentry bool   `mapstructure:"EnableSentry"` // включить отправку ошибок в Sentry
}

// UnitsConfig - единицы отображения метрик
type UnitsConfig struct {
	MegabytesPerSecond bool `mapstructure:"MegabytesPerSecond"`
	Seconds            bool `mapstructure:"Seconds"`
}

// MetricsConfig - адрес для /metrics; пусто - не публиковать
type MetricsConfig struct {
	Address string `mapstructure:"Address"`
}

// Config описывает основные настройки сервиса
// Загружается из YAML, любое поле можно переопределить переменной JMLOG_<СЕКЦИЯ>_<ПОЛЕ>
// Пример конфигурации см. config.example.yaml
type Config struct {
	LogDirectories []string `mapstructure:"LogDirectories"`
	FilePatterns   []string `mapstructure:"FilePatterns"`
	WindowSeconds  int      `mapstructure:"WindowSeconds"`
	Modes          []string `mapstructure:"Modes"`
	Trend          bool     `mapstructure:"Trend"`
	Workers        int      `mapstructure:"Workers"`
	BatchSize      int      `mapstructure:"BatchSize"`
	BatchInterval  int      `mapstructure:"BatchInterval"`  // секунды
	RescanInterval int      `mapstructure:"RescanInterval"` // секунды
	SettleInterval int      `mapstructure:"SettleInterval"` // секунды без изменений файла до обработки

	Units            UnitsConfig      `mapstructure:"Units"`
	ClickHouse       ClickHouseConfig `mapstructure:"ClickHouse"`
	ProcessedStorage string           `mapstructure:"ProcessedStorage"` // "file" или "redis"
	ProcessedFile    string           `mapstructure:"ProcessedFile"`
	Redis            RedisConfig      `mapstructure:"Redis"`
	Logging          LoggingConfig    `mapstructure:"Logging"`
	Metrics          MetricsConfig    `mapstructure:"Metrics"`
}

// LoadConfig читает и парсит конфиг из YAML-файла по указанному пути.
// Шаги:
// 1. Чтение сырого файла
// 2. Очистка данных: удаление BOM, замена табуляций
// 3. Парсинг YAML поверх значений по умолчанию
// 4. Валидация обязательных полей
func LoadConfig(path string) (*Config, error) {
	// 1. Чтение
	raw, err := readFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// 2. Очистка
	sanitized := sanitize(raw)

	// 3. Парсинг
	cfg, err := parseYAML(sanitized)
	if err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	// 4. Валидация
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Default возвращает конфигурацию по умолчанию (с учётом переменных окружения)
func Default() (*Config, error) {
	cfg, err := parseYAML(nil)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) BatchPeriod() time.Duration {
	return time.Duration(c.BatchInterval) * time.Second
}

func (c *Config) RescanPeriod() time.Duration {
	return time.Duration(c.RescanInterval) * time.Second
}

func (c *Config) SettlePeriod() time.Duration {
	return time.Duration(c.SettleInterval) * time.Second
}
