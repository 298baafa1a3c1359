package config

import (
	"os"
	"strconv"
	"strings"
)

// Deployment-varying values (database URL, server address, Influx endpoint)
// come from the environment, optionally seeded from a .env file. Analysis
// knobs live in the YAML pipeline config instead; see config.go.

// LoadEnv seeds the process environment from the first .env file found in
// the working directory or its two parents. Variables already set in the
// environment always win over file values.
func LoadEnv() {
	for _, path := range []string{".env", "../.env", "../../.env"} {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		for key, value := range parseEnvFile(string(data)) {
			if os.Getenv(key) == "" {
				os.Setenv(key, value)
			}
		}
		return
	}
}

// parseEnvFile parses KEY=VALUE lines. Blank lines and #-comments are
// skipped, a leading "export " is tolerated, and single or double quotes
// around the value are stripped.
func parseEnvFile(data string) map[string]string {
	vars := make(map[string]string)
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		if key != "" {
			vars[key] = value
		}
	}
	return vars
}

// GetEnv gets a string environment variable with a default.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt gets an integer environment variable with a default.
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvFloat gets a float environment variable with a default.
func GetEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// GetEnvBool gets a boolean environment variable with a default.
func GetEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return defaultValue
}
