package common

import (
	"os"
	"strconv"
)

// EnvStr returns the first non-empty value among the given environment
// variables, falling back to defaultValue.
func EnvStr(keys []string, defaultValue string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return defaultValue
}

// EnvInt returns the first positive integer value among the given
// environment variables, falling back to defaultValue.
func EnvInt(keys []string, defaultValue int) int {
	for _, key := range keys {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}
