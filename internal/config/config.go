package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port                   string
	AllowedOrigin          string
	DatabaseURL            string
	RedisAddr              string
	RedisPassword          string
	RedisDB                int
	ReportCacheTTLSeconds  int
	AuthSecret             string
	AccessTokenTTLMinutes  int
	LowStockThreshold      int
	ReportTimezone         string
	EnforceUniqueCustomers bool
	EnforceUniqueItems     bool
	SendgridAPIKey         string
	MailFrom               string
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	cacheTTL, err := strconv.Atoi(getEnv("REPORT_CACHE_TTL_SECONDS", "60"))
	if err != nil || cacheTTL < 1 {
		cacheTTL = 60
	}
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	lowStock, err := strconv.Atoi(getEnv("LOW_STOCK_THRESHOLD", "10"))
	if err != nil || lowStock < 0 {
		lowStock = 10
	}

	cfg := Config{
		Port:                   getEnv("PORT", "8080"),
		AllowedOrigin:          getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                redisDB,
		ReportCacheTTLSeconds:  cacheTTL,
		AuthSecret:             strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes:  tokenTTL,
		LowStockThreshold:      lowStock,
		ReportTimezone:         getEnv("REPORT_TIMEZONE", "UTC"),
		EnforceUniqueCustomers: getEnvBool("ENFORCE_UNIQUE_CUSTOMERS", true),
		EnforceUniqueItems:     getEnvBool("ENFORCE_UNIQUE_ITEMS", true),
		SendgridAPIKey:         strings.TrimSpace(os.Getenv("SENDGRID_API_KEY")),
		MailFrom:               getEnv("MAIL_FROM", "reports@shopledger.local"),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getEnvBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
