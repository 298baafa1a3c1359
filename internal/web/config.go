package web

import (
	"strings"

	"github.com/uidai-stress/internal/config"
)

// Config represents the web server configuration
type Config struct {
	Server   ServerConfig
	Data     DataConfig
	CORS     CORSConfig
	Auth     AuthConfig
	Features FeatureConfig
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string
	Port int
}

// DataConfig points the server at the pipeline output directory
type DataConfig struct {
	OutputDir string
}

// CORSConfig contains cross-origin settings for browser dashboards
type CORSConfig struct {
	AllowedOrigins []string
}

// AuthConfig contains authentication settings
type AuthConfig struct {
	APIKey string
}

// FeatureConfig contains feature toggles
type FeatureConfig struct {
	DownloadsEnabled  bool
	RunHistoryEnabled bool
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Data: DataConfig{
			OutputDir: "output",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		Features: FeatureConfig{
			DownloadsEnabled:  true,
			RunHistoryEnabled: true,
		},
	}
}

// ConfigFromEnv builds the configuration from WEB_* environment
// variables, falling back to the defaults.
func ConfigFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Host: config.GetEnv("WEB_HOST", "0.0.0.0"),
			Port: config.GetEnvInt("WEB_PORT", 8080),
		},
		Data: DataConfig{
			OutputDir: config.GetEnv("STRESS_OUTPUT_DIR", "output"),
		},
		CORS: CORSConfig{
			AllowedOrigins: strings.Split(config.GetEnv("WEB_ALLOWED_ORIGINS", "*"), ","),
		},
		Auth: AuthConfig{
			APIKey: config.GetEnv("WEB_API_KEY", ""),
		},
		Features: FeatureConfig{
			DownloadsEnabled:  config.GetEnvBool("ENABLE_DOWNLOADS", true),
			RunHistoryEnabled: config.GetEnvBool("ENABLE_RUN_HISTORY", true),
		},
	}
}
