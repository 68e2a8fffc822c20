package config

import (
	"os"
	"strconv"
	"time"
)

// Config collects the environment-driven settings shared by every
// cmd/* entrypoint, the way each service main.go used to read its own
// os.Getenv calls individually.
type Config struct {
	Port        string
	NatsURL     string
	DatabaseURL string
	RedisURL    string
	EtcdURL     string
	InfluxURL   string
	InfluxToken string
	InfluxOrg   string
	InfluxBucket string
	JWTSecret   string
}

// Load reads configuration from the environment, applying the same
// defaults each service previously hardcoded inline.
func Load(defaultPort string) Config {
	return Config{
		Port:         getEnv("PORT", defaultPort),
		NatsURL:      getEnv("NATS_URL", "nats://localhost:4222"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		RedisURL:     getEnv("REDIS_URL", "localhost:6379"),
		EtcdURL:      getEnv("ETCD_URL", "localhost:2379"),
		InfluxURL:    getEnv("INFLUX_URL", "http://localhost:8086"),
		InfluxToken:  getEnv("INFLUX_TOKEN", ""),
		InfluxOrg:    getEnv("INFLUX_ORG", "routeforge"),
		InfluxBucket: getEnv("INFLUX_BUCKET", "dispatch"),
		JWTSecret:    getEnv("JWT_SECRET", "dev-secret"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// ReconnectWait and MaxReconnects mirror the NATS tuning each service
// passed to messaging.NewClient inline.
func (c Config) ReconnectWait() time.Duration { return getEnvDuration("NATS_RECONNECT_WAIT", time.Second) }
func (c Config) MaxReconnects() int            { return getEnvInt("NATS_MAX_RECONNECTS", 5) }
