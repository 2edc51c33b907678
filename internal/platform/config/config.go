package config

import (
	"os"
	"strings"
	"time"
)

// Config captures process-level configuration. Values come from the
// environment so main stays lean; empty optional values disable the
// corresponding backend (Postgres, Redis, Kafka).
type Config struct {
	Addr         string
	DatabaseURL  string
	RedisURL     string
	KafkaBrokers []string
	KafkaTopic   string

	// RuleCacheTTL bounds staleness of the active rule version cache.
	RuleCacheTTL time.Duration

	// SLASweepSpec is the cron spec for the periodic task SLA sweep.
	SLASweepSpec string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:         envOr("LENDGATE_ADDR", ":8080"),
		DatabaseURL:  os.Getenv("LENDGATE_DATABASE_URL"),
		RedisURL:     os.Getenv("LENDGATE_REDIS_URL"),
		KafkaTopic:   envOr("LENDGATE_KAFKA_AUDIT_TOPIC", "lendgate.audit"),
		RuleCacheTTL: durationOr("LENDGATE_RULE_CACHE_TTL", 5*time.Minute),
		SLASweepSpec: envOr("LENDGATE_SLA_SWEEP_SPEC", "@every 5m"),
	}
	if brokers := os.Getenv("LENDGATE_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
