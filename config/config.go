package config

import (
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level station console configuration.
type Config struct {
	mu sync.Mutex `yaml:"-"`

	Web      WebConfig      `yaml:"web"`
	API      APIConfig      `yaml:"api"`
	Broker   BrokerConfig   `yaml:"broker"`
	Session  SessionConfig  `yaml:"session"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Relay    RelayConfig    `yaml:"relay"`
	Guard    GuardConfig    `yaml:"guard"`
}

// WebConfig defines the station web server settings.
type WebConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	SessionSecret string `yaml:"session_secret"`
}

// APIConfig defines how the back-end API address is derived.
type APIConfig struct {
	Scheme       string        `yaml:"scheme"`
	Port         int           `yaml:"port"`
	FallbackHost string        `yaml:"fallback_host"` // used when no browser request is in scope
	Timeout      time.Duration `yaml:"timeout"`
}

// BrokerConfig defines the MQTT-over-WebSocket broker connection.
type BrokerConfig struct {
	URL             string        `yaml:"url"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	ClientPrefix    string        `yaml:"client_prefix"`
	Topics          []string      `yaml:"topics"`
	ProtocolVersion uint          `yaml:"protocol_version"`
	CleanSession    bool          `yaml:"clean_session"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	ReconnectPeriod time.Duration `yaml:"reconnect_period"`
}

// SessionConfig selects where the session slots live.
type SessionConfig struct {
	Storage     string `yaml:"storage"` // "database", "redis" or "memory"
	SealKey     string `yaml:"seal_key"`
	RedisPrefix string `yaml:"redis_prefix"`
}

type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RelayConfig defines the optional Kafka scan relay.
type RelayConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// GuardConfig defines the navigation guard tables.
type GuardConfig struct {
	LoginPath   string            `yaml:"login_path"`
	HomePath    string            `yaml:"home_path"`
	PublicPaths []string          `yaml:"public_paths"`
	Permissions map[string]string `yaml:"permissions"`
}

// DefaultTopics are the scan and scale topics every station listens on.
var DefaultTopics = []string{"scanner/+/scan", "scale-1", "scale-2", "scale-3"}

// Defaults returns a Config with sane defaults.
func Defaults() *Config {
	return &Config{
		Web: WebConfig{
			Host: "0.0.0.0",
			Port: 3000,
		},
		API: APIConfig{
			Scheme:       "http",
			Port:         8001,
			FallbackHost: "localhost",
			Timeout:      10 * time.Second,
		},
		Broker: BrokerConfig{
			URL:             "ws://152.42.166.150:15675/ws",
			Username:        "xMixingNode-1",
			Password:        "x123",
			ClientPrefix:    "xmixing-web-",
			Topics:          append([]string(nil), DefaultTopics...),
			ProtocolVersion: 4,
			CleanSession:    true,
			ConnectTimeout:  10 * time.Second,
			ReconnectPeriod: 5 * time.Second,
		},
		Session: SessionConfig{
			Storage:     "database",
			RedisPrefix: "xmixing:session",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{Path: "xmixing.db"},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "xmixing",
				User:     "xmixing",
				SSLMode:  "disable",
			},
		},
		Redis: RedisConfig{
			Address: "localhost:6379",
		},
		Relay: RelayConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "xmixing.scans",
		},
		Guard: GuardConfig{
			LoginPath:   "/x80-UserLogin",
			HomePath:    "/",
			PublicPaths: []string{"/x80-UserLogin", "/x81-UserRegister", "/", "/x99-About"},
			Permissions: map[string]string{
				"/x89-UserConfig":                  "admin",
				"/x10-IngredientIntake":            "ingredient_receipt",
				"/x11-IngredientConfig":            "ingredient_receipt",
				"/x12-WarehouseConfig":             "ingredient_receipt",
				"/x13-IngredientIntakeReport":      "ingredient_receipt",
				"/x20-Sku":                         "sku_management",
				"/x30-ProductionPlan":              "production_planning",
				"/x30-ProductionPlan/plant-config": "production_planning",
				"/x40-PreBatch":                    "prepare_batch",
				"/x50-PackingList":                 "production_list",
				"/x60-BatchRecheck":                "production_list",
				"/x90-ServerStatus":                "admin",
			},
		},
	}
}

// Load reads a YAML config file. If the file doesn't exist, defaults are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to a YAML file.
func (c *Config) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
