package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Addr            string
	DatabaseURL     string
	UseMemoryStore  bool
	SeedCatalog     bool
	AllowDebugToken bool
	DebugToken      string
	JWTSecret       string
	KafkaBrokers    []string
	KafkaTopic      string
	ArchiveBucket   string
	ArchivePrefix   string
}

const (
	defaultAddr       = ":8070"
	defaultKafkaTopic = "journey-lifecycle"
)

func Load() (Config, error) {
	cfg := Config{
		Addr:            getEnv("JOURNEY_ADDR", defaultAddr),
		DatabaseURL:     firstNonEmpty(os.Getenv("JOURNEY_DATABASE_URL"), os.Getenv("DATABASE_URL")),
		UseMemoryStore:  getBool("JOURNEY_MEMORY_STORE", false),
		SeedCatalog:     getBool("JOURNEY_SEED_CATALOG", false),
		AllowDebugToken: getBool("JOURNEY_ALLOW_DEBUG_TOKEN", false),
		DebugToken:      os.Getenv("JOURNEY_DEBUG_TOKEN"),
		JWTSecret:       os.Getenv("JOURNEY_JWT_SECRET"),
		KafkaBrokers:    splitList(os.Getenv("JOURNEY_KAFKA_BROKERS")),
		KafkaTopic:      getEnv("JOURNEY_KAFKA_TOPIC", defaultKafkaTopic),
		ArchiveBucket:   os.Getenv("JOURNEY_ARCHIVE_BUCKET"),
		ArchivePrefix:   os.Getenv("JOURNEY_ARCHIVE_PREFIX"),
	}
	if cfg.DatabaseURL == "" && !cfg.UseMemoryStore {
		return Config{}, fmt.Errorf("DATABASE_URL or JOURNEY_DATABASE_URL required (or set JOURNEY_MEMORY_STORE=true)")
	}
	if cfg.AllowDebugToken && cfg.DebugToken == "" {
		return Config{}, fmt.Errorf("JOURNEY_DEBUG_TOKEN required when JOURNEY_ALLOW_DEBUG_TOKEN=true")
	}
	if !cfg.AllowDebugToken && cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JOURNEY_JWT_SECRET required when debug tokens are disabled")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
