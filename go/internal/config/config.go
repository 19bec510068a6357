package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all server settings. Values come from the yaml config file,
// with environment variables taking precedence. Durations are whole
// seconds in the file; the accessor methods convert.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Auth      AuthConfig      `yaml:"auth"`
	WebSocket WebSocketConfig `yaml:"websocket"`
}

type ServerConfig struct {
	Host               string   `yaml:"host"`
	Port               int      `yaml:"port"`
	ShutdownTimeoutSec int      `yaml:"shutdown_timeout_sec"`
	AllowedOrigins     []string `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type AuthConfig struct {
	Secret string `yaml:"secret"`
}

type WebSocketConfig struct {
	WriteTimeoutSec int   `yaml:"write_timeout_sec"`
	ReadTimeoutSec  int   `yaml:"read_timeout_sec"`
	PingIntervalSec int   `yaml:"ping_interval_sec"`
	MaxMessageSize  int64 `yaml:"max_message_size"`
	SendBufferSize  int   `yaml:"send_buffer_size"`
}

// Default returns the built-in configuration used when no config file exists.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8080,
			ShutdownTimeoutSec: 10,
			AllowedOrigins:     []string{"*"},
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: false,
		},
		Auth: AuthConfig{
			Secret: "your-secret-key-change-in-production",
		},
		WebSocket: WebSocketConfig{
			WriteTimeoutSec: 10,
			ReadTimeoutSec:  60,
			PingIntervalSec: 30,
			MaxMessageSize:  4096,
			SendBufferSize:  256,
		},
	}
}

// Load reads the config file at path (if it exists) and applies environment
// overrides on top. A missing file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Host = getEnv("HOST", c.Server.Host)
	c.Server.Port = getEnvAsInt("PORT", c.Server.Port)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Auth.Secret = getEnv("JWT_SECRET", c.Auth.Secret)
}

// Addr returns the listen address in host:port form.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}

func (c WebSocketConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSec) * time.Second
}

func (c WebSocketConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSec) * time.Second
}

func (c WebSocketConfig) PingInterval() time.Duration {
	return time.Duration(c.PingIntervalSec) * time.Second
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
