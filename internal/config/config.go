package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerPort     string
	DatabaseURL    string
	RabbitMQURL    string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	WebhookBaseURL string
	NotifyTimeout  time.Duration
	SendTimeout    time.Duration
	MaxRetries     int
	MetricsAddr    string
}

func Load() *Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	maxRetries, _ := strconv.Atoi(getEnv("QUEUE_MAX_RETRIES", "3"))

	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		RabbitMQURL:    getEnv("RABBITMQ_URL", ""),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        redisDB,
		WebhookBaseURL: getEnv("N8N_WEBHOOK_URL", "http://localhost:5678/webhook"),
		NotifyTimeout:  getDuration("NOTIFY_TIMEOUT", 5*time.Second),
		SendTimeout:    getDuration("SEND_TIMEOUT", 10*time.Second),
		MaxRetries:     maxRetries,
		MetricsAddr:    getEnv("METRICS_ADDR", ":9091"),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
