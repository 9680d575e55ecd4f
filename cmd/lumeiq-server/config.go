package main

import (
	"log"
	"os"
	"time"
)

// Config holds all configurable values for the server.
type Config struct {
	Env             string
	Addr            string
	DBPath          string
	CatalogPath     string
	AssistantURL    string
	AssistantAPIKey string
	RequestTimeout  time.Duration
}

// LoadConfig reads environment variables and populates a Config struct.
func LoadConfig() *Config {
	timeout, err := time.ParseDuration(getEnv("REQUEST_TIMEOUT", "15s"))
	if err != nil {
		log.Panicf("Invalid REQUEST_TIMEOUT: %v", err)
	}

	return &Config{
		Env:             getEnv("ENV", "development"),
		Addr:            getEnv("ADDR", ":8080"),
		DBPath:          getEnv("DB_PATH", "lumeiq.db"),
		CatalogPath:     getEnv("CATALOG_PATH", ""),
		AssistantURL:    getEnv("ASSISTANT_URL", ""),
		AssistantAPIKey: getEnv("ASSISTANT_API_KEY", ""),
		RequestTimeout:  timeout,
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
