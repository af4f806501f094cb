// utils/env.go
package utils

import (
	"log"
	"os"
	"strconv"
)

// GetEnv returns the value of key, or fallback when unset.
func GetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// GetEnvInt parses key as an integer, falling back on absence or bad input.
func GetEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("⚠️ [ENV] %s=%q is not an integer, using %d", key, v, fallback)
		return fallback
	}
	return n
}
