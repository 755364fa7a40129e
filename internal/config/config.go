// Package config loads server settings from an optional .env file, an
// optional YAML file and the environment, in that order of precedence
// (environment wins).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port          string         `yaml:"port"`
	MaxUploadSize int64          `yaml:"max_upload_size"`
	StorageDir    string         `yaml:"storage_dir"`
	Database      DatabaseConfig `yaml:"database"`
	Log           LogConfig      `yaml:"log"`
}

type DatabaseConfig struct {
	Type           string `yaml:"type"` // sqlite, postgres
	Path           string `yaml:"path"`
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	Name           string `yaml:"name"`
	MigrationsPath string `yaml:"migrations_path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

func Default() *Config {
	return &Config{
		Port:          "8080",
		MaxUploadSize: 32 << 20,
		StorageDir:    "./data",
		Database: DatabaseConfig{
			Type:           "sqlite",
			Path:           "./elbowtrack.db",
			Host:           "localhost",
			Port:           5432,
			User:           "elbowtrack",
			Password:       "elbowtrack_dev",
			Name:           "elbowtrack",
			MigrationsPath: "./migrations",
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration. envFile may be empty; a missing .env file
// is not an error.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Port, "PORT")
	setString(&cfg.StorageDir, "STORAGE_DIR")
	setString(&cfg.Database.Type, "DB_TYPE")
	setString(&cfg.Database.Path, "DB_PATH")
	setString(&cfg.Database.Host, "DB_HOST")
	setString(&cfg.Database.User, "DB_USER")
	setString(&cfg.Database.Password, "DB_PASSWORD")
	setString(&cfg.Database.Name, "DB_NAME")
	setString(&cfg.Database.MigrationsPath, "MIGRATIONS_PATH")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")

	if v := os.Getenv("MAX_UPLOAD_SIZE"); v != "" {
		size, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid MAX_UPLOAD_SIZE: %w", err)
		}
		cfg.MaxUploadSize = size
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DB_PORT: %w", err)
		}
		cfg.Database.Port = port
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func Validate(cfg *Config) error {
	switch cfg.Database.Type {
	case "sqlite":
		if cfg.Database.Path == "" {
			return errors.New("database path is required for sqlite")
		}
	case "postgres":
		if cfg.Database.Host == "" || cfg.Database.Name == "" {
			return errors.New("database host and name are required for postgres")
		}
		if cfg.Database.Port <= 0 {
			return fmt.Errorf("invalid database port: %d", cfg.Database.Port)
		}
	default:
		return fmt.Errorf("unsupported database type: %s", cfg.Database.Type)
	}

	if cfg.MaxUploadSize <= 0 {
		return fmt.Errorf("max upload size must be positive, got %d", cfg.MaxUploadSize)
	}
	if cfg.Port == "" {
		return errors.New("port is required")
	}
	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log format: %s", cfg.Log.Format)
	}
	return nil
}

func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return l, nil
}
