package main

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mcdev12/planningpoker/go/internal/models"
	"github.com/mcdev12/planningpoker/go/internal/poker/gateway"
	"github.com/mcdev12/planningpoker/go/internal/poker/guard"
	"gopkg.in/yaml.v3"
)

// FileConfig is the optional YAML configuration named by POKER_CONFIG.
type FileConfig struct {
	Room       string           `yaml:"room"`
	Guard      guard.Config     `yaml:"guard"`
	Connection ConnectionConfig `yaml:"connection"`
	Tickets    []models.Ticket  `yaml:"tickets"`
}

// ConnectionConfig holds the WebSocket limits settable from the file.
type ConnectionConfig struct {
	MaxMessageSize int64         `yaml:"max_message_size"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
}

// Config is the resolved process configuration.
type Config struct {
	Port              string
	NATSURL           string
	NATSSubjectPrefix string
	NATSMaxReconnects int
	LogLevel          string
	LogFormat         string
	AllowedOrigins    []string
	SourceTimeout     time.Duration
	Gateway           gateway.Config
}

var roomNameRE = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func loadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config FileConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// loadConfig resolves defaults, then the YAML file, then the environment.
func loadConfig() (*Config, error) {
	cfg := &Config{
		Port:              getEnv("GATEWAY_PORT", "8080"),
		NATSURL:           os.Getenv("NATS_URL"),
		NATSSubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "poker.events"),
		NATSMaxReconnects: getEnvAsInt("NATS_MAX_RECONNECTS", -1),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "json"),
		AllowedOrigins:    splitList(getEnv("ALLOWED_ORIGINS", "*")),
		Gateway:           gateway.DefaultConfig(),
	}
	cfg.SourceTimeout = getEnvAsDuration("SOURCE_TIMEOUT", cfg.Gateway.CoordinatorConfig.SourceTimeout)

	if path := os.Getenv("POKER_CONFIG"); path != "" {
		file, err := loadFileConfig(path)
		if err != nil {
			return nil, err
		}
		applyFileConfig(&cfg.Gateway, file)
	}

	cfg.Gateway.CoordinatorConfig.SourceTimeout = cfg.SourceTimeout
	cfg.Gateway.CoordinatorConfig.Room = roomName(cfg.Gateway.CoordinatorConfig.Room)
	cfg.Gateway.ConnectionConfig.CheckOrigin = gateway.OriginChecker(cfg.AllowedOrigins)
	return cfg, nil
}

// applyFileConfig overlays the non-zero values of file onto cfg.
func applyFileConfig(cfg *gateway.Config, file *FileConfig) {
	coord := &cfg.CoordinatorConfig
	if file.Room != "" {
		coord.Room = file.Room
	}
	if file.Guard.RateWindow > 0 {
		coord.Guard.RateWindow = file.Guard.RateWindow
	}
	if file.Guard.MaxMessages > 0 {
		coord.Guard.MaxMessages = file.Guard.MaxMessages
	}
	if file.Guard.HeartbeatInterval > 0 {
		coord.Guard.HeartbeatInterval = file.Guard.HeartbeatInterval
	}
	if file.Guard.IdleTimeout > 0 {
		coord.Guard.IdleTimeout = file.Guard.IdleTimeout
	}
	if file.Connection.MaxMessageSize > 0 {
		cfg.ConnectionConfig.MaxMessageSize = file.Connection.MaxMessageSize
	}
	if file.Connection.WriteTimeout > 0 {
		cfg.ConnectionConfig.WriteTimeout = file.Connection.WriteTimeout
	}
	coord.SeedTickets = file.Tickets
}

// roomName makes the room usable as a NATS subject token.
func roomName(raw string) string {
	name := strings.Trim(roomNameRE.ReplaceAllString(raw, "-"), "-")
	if name == "" {
		return "default"
	}
	return name
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
