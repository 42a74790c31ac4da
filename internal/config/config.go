package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// HardMaxRoomCapacity is the upper bound for chat.max_room_capacity.
const HardMaxRoomCapacity = 1000

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Env             string        `yaml:"env"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	Driver       string `yaml:"driver"` // postgres, sqlite
	DSN          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

type JWTConfig struct {
	Secret string `yaml:"secret"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"` // pub/sub channel for cross-instance fan-out
	Prefix   string `yaml:"prefix"`  // key prefix for throttle keys
}

type ChatConfig struct {
	MinRoomCapacity  int           `yaml:"min_room_capacity"`
	MaxRoomCapacity  int           `yaml:"max_room_capacity"`
	MaxMessageLength int           `yaml:"max_message_length"`
	SendBuffer       int           `yaml:"send_buffer"`
	SendInterval     time.Duration `yaml:"send_interval"`
	TypingInterval   time.Duration `yaml:"typing_interval"`
	HistoryPageSize  int           `yaml:"history_page_size"`
}

type StorageConfig struct {
	Type      string `yaml:"type"`      // local, s3, cloudflare_r2
	BasePath  string `yaml:"base_path"` // local only
	BaseURL   string `yaml:"base_url"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Endpoint  string `yaml:"endpoint"`
}

type UploadConfig struct {
	MaxSize      int64    `yaml:"max_size"`
	AllowedTypes []string `yaml:"allowed_types"`
}

type WorkersConfig struct {
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	Redis    RedisConfig    `yaml:"redis"`
	Chat     ChatConfig     `yaml:"chat"`
	Storage  StorageConfig  `yaml:"storage"`
	Upload   UploadConfig   `yaml:"upload"`
	Workers  WorkersConfig  `yaml:"workers"`
}

var AppConfig *Config

// LoadConfig reads the config file (CONFIG_PATH or config/config.yaml), applies
// environment overrides and exits on error. When no file exists and DATABASE_URL
// is set, configuration comes from the environment alone.
func LoadConfig() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	AppConfig = cfg
}

// Load builds a Config from path. A missing file is allowed when DATABASE_URL is set.
func Load(path string) (*Config, error) {
	var cfg Config

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	case os.IsNotExist(err) && os.Getenv("DATABASE_URL") != "":
		log.Println("config file not found, using environment only")
	default:
		return nil, fmt.Errorf("open config file %s: %w", path, err)
	}

	applyEnv(&cfg)
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.Server.Env = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWT.Secret = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Env == "" {
		c.Server.Env = "development"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Redis.Channel == "" {
		c.Redis.Channel = "creatorhub:chat:events"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "creatorhub:throttle:"
	}
	if c.Chat.MinRoomCapacity == 0 {
		c.Chat.MinRoomCapacity = 2
	}
	if c.Chat.MaxRoomCapacity == 0 {
		c.Chat.MaxRoomCapacity = HardMaxRoomCapacity
	}
	if c.Chat.MaxMessageLength == 0 {
		c.Chat.MaxMessageLength = 4000
	}
	if c.Chat.SendBuffer == 0 {
		c.Chat.SendBuffer = 256
	}
	if c.Chat.SendInterval == 0 {
		c.Chat.SendInterval = 100 * time.Millisecond
	}
	if c.Chat.TypingInterval == 0 {
		c.Chat.TypingInterval = 2 * time.Second
	}
	if c.Chat.HistoryPageSize == 0 {
		c.Chat.HistoryPageSize = 50
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "local"
	}
	if c.Storage.BasePath == "" {
		c.Storage.BasePath = "./uploads"
	}
	if c.Storage.BaseURL == "" {
		c.Storage.BaseURL = "/uploads"
	}
	if c.Upload.MaxSize == 0 {
		c.Upload.MaxSize = 10 * 1024 * 1024
	}
	if len(c.Upload.AllowedTypes) == 0 {
		c.Upload.AllowedTypes = []string{
			"image/jpeg", "image/png", "image/gif", "image/webp",
			"application/pdf", "application/zip", "text/plain",
		}
	}
	if c.Workers.ReconcileInterval == 0 {
		c.Workers.ReconcileInterval = 5 * time.Minute
	}
}

func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database.url is required")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if c.Chat.MinRoomCapacity < 2 {
		return fmt.Errorf("chat.min_room_capacity must be at least 2")
	}
	if c.Chat.MaxRoomCapacity > HardMaxRoomCapacity || c.Chat.MaxRoomCapacity < c.Chat.MinRoomCapacity {
		return fmt.Errorf("chat.max_room_capacity must be within [%d, %d]", c.Chat.MinRoomCapacity, HardMaxRoomCapacity)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

func GetConfig() *Config {
	if AppConfig == nil {
		LoadConfig()
	}
	return AppConfig
}
