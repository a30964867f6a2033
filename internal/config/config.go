package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// Storage modes
const (
	StorageRelational  = "relational"
	StorageObjectStore = "objectstore"
	StorageFallback    = "fallback"
)

// Relational drivers
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

type Config struct {
	GinMode    string
	ServerPort string

	StorageMode string

	DBDriver   string
	SQLitePath string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	RedisHost      string
	RedisPort      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string

	SessionStore  string
	SessionSecret string

	SeedFile   string
	BcryptCost int

	LogLevel string
	LogFile  string

	CORSAllowedOrigins []string
}

// Load reads configuration from the environment, after loading a .env file
// from the working directory if one exists.
func Load() *Config {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("STORAGE_MODE", StorageRelational)
	v.SetDefault("DB_DRIVER", DriverSQLite)
	v.SetDefault("SQLITE_PATH", "data/task-monitor.sqlite")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DB_USER", "taskuser")
	v.SetDefault("DB_PASSWORD", "taskpassword")
	v.SetDefault("DB_NAME", "task_monitor")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_KEY_PREFIX", "taskmon")
	v.SetDefault("SESSION_STORE", "cookie")
	v.SetDefault("SESSION_SECRET", "default-secret-key-change-me")
	v.SetDefault("SEED_FILE", "")
	v.SetDefault("BCRYPT_COST", bcrypt.DefaultCost)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")

	return &Config{
		GinMode:            v.GetString("GIN_MODE"),
		ServerPort:         v.GetString("SERVER_PORT"),
		StorageMode:        strings.ToLower(v.GetString("STORAGE_MODE")),
		DBDriver:           strings.ToLower(v.GetString("DB_DRIVER")),
		SQLitePath:         v.GetString("SQLITE_PATH"),
		DBHost:             v.GetString("DB_HOST"),
		DBPort:             v.GetString("DB_PORT"),
		DBUser:             v.GetString("DB_USER"),
		DBPassword:         v.GetString("DB_PASSWORD"),
		DBName:             v.GetString("DB_NAME"),
		RedisHost:          v.GetString("REDIS_HOST"),
		RedisPort:          v.GetString("REDIS_PORT"),
		RedisPassword:      v.GetString("REDIS_PASSWORD"),
		RedisDB:            v.GetInt("REDIS_DB"),
		RedisKeyPrefix:     v.GetString("REDIS_KEY_PREFIX"),
		SessionStore:       strings.ToLower(v.GetString("SESSION_STORE")),
		SessionSecret:      v.GetString("SESSION_SECRET"),
		SeedFile:           v.GetString("SEED_FILE"),
		BcryptCost:         v.GetInt("BCRYPT_COST"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		LogFile:            v.GetString("LOG_FILE"),
		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
	}
}

// Validate reports configuration values the service cannot run with.
func (c *Config) Validate() error {
	switch c.StorageMode {
	case StorageRelational, StorageObjectStore, StorageFallback:
	default:
		return fmt.Errorf("unknown STORAGE_MODE %q", c.StorageMode)
	}

	switch c.DBDriver {
	case DriverSQLite, DriverMySQL, DriverPostgres:
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}

	switch c.SessionStore {
	case "cookie", "redis":
	default:
		return fmt.Errorf("unknown SESSION_STORE %q", c.SessionStore)
	}

	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	return nil
}

// RedisAddr returns the host:port pair for redis connections.
func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

// IsRelease reports whether gin runs in release mode.
func (c *Config) IsRelease() bool {
	return c.GinMode == "release"
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
