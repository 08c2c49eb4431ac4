package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

func init() {
	godotenv.Load(".env")
}

func Get(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func GetBool(key, defaultVal string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		v = defaultVal
	}
	return v == "1" || v == "true" || v == "yes"
}

func GetInt(key string, defaultVal int) int {
	v := Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

const (
	MinLookbackDays = 7
	MaxLookbackDays = 90
	// MaxHorizonDays bounds how far ahead a forecast may project.
	MaxHorizonDays = 90
)

type Config struct {
	Port        string
	DataDir     string
	DBPath      string
	SecretsDir  string
	AdminAPIKey string
	LogLevel    string
	TraceStdout bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheMaxAge   time.Duration

	DefaultLookbackDays int
	HorizonDays         int
	DefaultStock        int
	TopN                int
}

func Load() *Config {
	dataDir := Get("KIRANA_DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}
	dbPath := Get("KIRANA_DB_PATH")
	if dbPath == "" {
		dbPath = filepath.Join(dataDir, "kirana.db")
	}
	port := Get("PORT")
	if port == "" {
		port = "8000"
	}
	cfg := &Config{
		Port:        port,
		DataDir:     dataDir,
		DBPath:      dbPath,
		SecretsDir:  Get("KIRANA_SECRETS_DIR"),
		AdminAPIKey: Get("ADMIN_API_KEY"),
		LogLevel:    strings.ToLower(Get("LOG_LEVEL")),
		TraceStdout: GetBool("TRACE_STDOUT", "false"),

		RedisAddr:     Get("REDIS_ADDR"),
		RedisPassword: Get("REDIS_PASSWORD"),
		RedisDB:       GetInt("REDIS_DB", 0),
		CacheMaxAge:   time.Duration(GetInt("CACHE_MAX_AGE_HOURS", 24)) * time.Hour,

		DefaultLookbackDays: ClampLookback(GetInt("DEFAULT_LOOKBACK_DAYS", 30)),
		HorizonDays:         GetInt("FORECAST_HORIZON_DAYS", 7),
		DefaultStock:        GetInt("DEFAULT_STOCK", 50),
		TopN:                GetInt("TOP_N", 5),
	}
	if cfg.HorizonDays < 1 || cfg.HorizonDays > MaxHorizonDays {
		cfg.HorizonDays = 7
	}
	if cfg.DefaultStock < 0 {
		cfg.DefaultStock = 0
	}
	return cfg
}

// ClampLookback forces a lookback window into the supported 7-90 days.
func ClampLookback(days int) int {
	if days < MinLookbackDays {
		return MinLookbackDays
	}
	if days > MaxLookbackDays {
		return MaxLookbackDays
	}
	return days
}
