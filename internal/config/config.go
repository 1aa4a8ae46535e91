package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort string

	MySQLDSN        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	RedisAddr string

	KafkaBrokers []string // empty means the in-process queue
	KafkaTopic   string
	KafkaGroupID string

	WorkerCount int
	QueueSize   int

	ReservationTTL time.Duration
	SweepInterval  time.Duration
	SweepLockTTL   time.Duration

	GatewayTimeout time.Duration
}

func Load() *Config {
	godotenv.Load()

	return &Config{
		HTTPPort: getEnv("HTTP_PORT", ":8080"),

		MySQLDSN:        getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/orderpipeline?parseTime=true"),
		MaxOpenConns:    getEnvInt("MYSQL_MAX_OPEN_CONNS", 50),
		MaxIdleConns:    getEnvInt("MYSQL_MAX_IDLE_CONNS", 25),
		ConnMaxLifetime: getEnvDuration("MYSQL_CONN_MAX_LIFETIME", 5*time.Minute),

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),

		KafkaBrokers: getEnvList("KAFKA_BROKERS"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "stock-reservation-tasks"),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "order-pipeline-workers"),

		WorkerCount: getEnvInt("WORKER_COUNT", 10),
		QueueSize:   getEnvInt("QUEUE_SIZE", 10000),

		ReservationTTL: getEnvDuration("RESERVATION_TTL", 10*time.Minute),
		SweepInterval:  getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),
		SweepLockTTL:   getEnvDuration("SWEEP_LOCK_TTL", time.Minute),

		GatewayTimeout: getEnvDuration("GATEWAY_TIMEOUT", 10*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
