// Package config читает YAML-конфигурацию слоя репликации с
// fallback на переменные окружения.
package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации приложения.
type Config struct {
	Replication ReplicationConfig `yaml:"replication"`
	Server      ServerConfig      `yaml:"server"`
	EventBus    EventBusConfig    `yaml:"eventbus"`
}

// ReplicationConfig параметры слоя синхронизации состояния.
type ReplicationConfig struct {
	// DejitterBufferLength слотов во входящем буфере клиента и в
	// исходящей очереди сервера.
	DejitterBufferLength int `yaml:"dejitter_buffer_length"`

	// NetworkSendRate шаг тиков между отправляемыми снимками.
	NetworkSendRate int `yaml:"network_send_rate"`

	// TicksBeforeFreeze разрыв в тиках до заморозки удалённой
	// сущности; 0 отключает заморозку.
	TicksBeforeFreeze int `yaml:"ticks_before_freeze"`

	// ForceUpdates отправлять кадры даже с пустой dirty-маской.
	ForceUpdates bool `yaml:"force_updates"`

	// TickRate тиков симуляции в секунду.
	TickRate int `yaml:"tick_rate"`
}

// ServerConfig сетевые параметры хоста.
type ServerConfig struct {
	KCPAddr     string `yaml:"kcp_addr"`
	MetricsPort int    `yaml:"metrics_port"`
}

// EventBusConfig параметры шины событий жизненного цикла.
type EventBusConfig struct {
	BufferSize int `yaml:"buffer_size"`
}

// Defaults возвращает конфигурацию по умолчанию.
func Defaults() *Config {
	return &Config{
		Replication: ReplicationConfig{
			DejitterBufferLength: 30,
			NetworkSendRate:      3,
			TicksBeforeFreeze:    10,
			ForceUpdates:         true,
			TickRate:             30,
		},
		Server: ServerConfig{
			KCPAddr:     ":7778",
			MetricsPort: 2112,
		},
		EventBus: EventBusConfig{
			BufferSize: 256,
		},
	}
}

// GetKCPAddr возвращает адрес KCP с поддержкой fallback значений
func (s *ServerConfig) GetKCPAddr() string {
	if s.KCPAddr != "" {
		return s.KCPAddr
	}
	if addr := os.Getenv("NETSYNC_KCP_ADDR"); addr != "" {
		return addr
	}
	return ":7778"
}

// GetMetricsPort возвращает порт Prometheus метрик с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "NETSYNC_METRICS_PORT", 2112)
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
// Если path == "", пытается прочитать из ENV NETSYNC_CONFIG или
// возвращает дефолты.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv("NETSYNC_CONFIG")
		if path == "" {
			return cfg, nil // конфиг не задан — использовать дефолты
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
