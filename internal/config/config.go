package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers understood by repository.OpenStores.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort      string
	StoreDriver     string
	MySQLDSN        string
	SQLitePath      string
	MongoURI        string
	MongoDatabase   string
	ResetDB         bool
	RedisAddr       string
	RedisDB         int
	RedisPass       string
	JWTSecret       string
	SwaggerHost     string
	CORSOrigins     []string
	AppEnv          string
	LogLevel        string
	ShutdownTimeout time.Duration
	ListCacheTTL    time.Duration
}

// Load builds Config from environment with sensible defaults.
func Load() *Config {
	return &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		StoreDriver:     strings.ToLower(getEnv("STORE_DRIVER", DriverMySQL)),
		MySQLDSN:        getEnv("MYSQL_DSN", "user:password@tcp(localhost:3306)/cards?charset=utf8mb4&parseTime=True&loc=UTC"),
		SQLitePath:      getEnv("SQLITE_PATH", "cardledger.db"),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:   getEnv("MONGO_DATABASE", "cardledger"),
		ResetDB:         os.Getenv("RESET_DB") == "true",
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		RedisPass:       os.Getenv("REDIS_PASSWORD"),
		JWTSecret:       getEnv("JWT_SECRET", "change-me"),
		SwaggerHost:     os.Getenv("SWAGGER_HOST"),
		CORSOrigins:     getEnvList("CORS_ORIGINS", []string{"http://localhost:3000"}),
		AppEnv:          getEnv("APP_ENV", "production"),
		LogLevel:        os.Getenv("LOG_LEVEL"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		ListCacheTTL:    getEnvDuration("LIST_CACHE_TTL", 5*time.Minute),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}

// getEnvList splits a comma separated value, dropping empty items.
func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
