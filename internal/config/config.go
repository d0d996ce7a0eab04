package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/annel0/deepmine/internal/mining"
	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации сервера шахт.
type Config struct {
	Mining    mining.Config   `yaml:"mining"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	RESTPort        int           `yaml:"rest_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig выбирает хранилище прогресса и путь к снимкам сетки.
// Backend: memory | redis | maria | mongo.
type StorageConfig struct {
	Backend  string `yaml:"backend"`
	RedisURL string `yaml:"redis_url"`
	MariaDSN string `yaml:"maria_dsn"`
	MongoURI string `yaml:"mongo_uri"`
	MongoDB  string `yaml:"mongo_db"`
	GridPath string `yaml:"grid_path"` // если пусто, сетка не сохраняется

	Cache ProgressCacheConfig `yaml:"cache"`
}

// ProgressCacheConfig: кеш прогресса перед внешним хранилищем
type ProgressCacheConfig struct {
	Enabled  bool          `yaml:"enabled"`
	TTL      time.Duration `yaml:"ttl"`
	MaxBytes int64         `yaml:"max_bytes"`
	RedisURL string        `yaml:"redis_url"` // если пусто, локальный кеш процесса
	NATSURL  string        `yaml:"nats_url"`  // если пусто, без инвалидаций между узлами
	NodeID   string        `yaml:"node_id"`
}

// EventBusConfig: при пустом URL используется шина в памяти.
type EventBusConfig struct {
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	Buffer    int    `yaml:"buffer"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type LoggingConfig struct {
	Level      string            `yaml:"level"`
	Dir        string            `yaml:"dir"`
	Components map[string]string `yaml:"components"` // уровни отдельных компонентов: mining: debug
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Mining: mining.DefaultConfig(),
		Server: ServerConfig{
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Backend: "memory",
			MongoDB: "deepmine",
			Cache: ProgressCacheConfig{
				TTL:      30 * time.Second,
				MaxBytes: 16 << 20,
			},
		},
		EventBus: EventBusConfig{
			Stream:    "MINING",
			Retention: 24,
			Buffer:    1024,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "deepmine",
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
	}
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "DEEPMINE_REST_PORT", 8088)
}

// GetJWTSecret возвращает секрет JWT: config -> env DEEPMINE_JWT_SECRET
func (a *AuthConfig) GetJWTSecret() string {
	if a.JWTSecret != "" {
		return a.JWTSecret
	}
	return os.Getenv("DEEPMINE_JWT_SECRET")
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", берётся ENV DEEPMINE_CONFIG; если и он пуст, возвращаются дефолты.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("DEEPMINE_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Mining.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}
