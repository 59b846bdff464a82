package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"
)

// Config holds all application configuration values for the casting
// redirector. It covers the two HTTP listeners, the reverse-channel fetch
// protocol, the local player handoff, and the optional session persistence.
type Config struct {
	ControlPort     int           `json:"controlPort"`     // Port for the AirPlay control server (play/action/stop/...)
	MediaPort       int           `json:"mediaPort"`       // Port for the local media server that serves rewritten manifests
	MediaHost       string        `json:"mediaHost"`       // Host the rewritten manifests point at (host only, no port)
	LogLevel        string        `json:"logLevel"`        // Log level: DEBUG, INFO, WARN, ERROR
	Debug           bool          `json:"debug"`           // Enable debug logging shortcuts
	ObfuscateUrls   bool          `json:"obfuscateUrls"`   // Obfuscate media URLs in logs
	WorkerThreads   int           `json:"workerThreads"`   // Number of worker threads for background tasks
	FetchTimeout    time.Duration `json:"fetchTimeout"`    // How long a play attempt may wait on a client fetch response
	WatcherEnabled  bool          `json:"watcherEnabled"`  // Enable the session watchdog
	FetchesPerSec   int           `json:"fetchesPerSec"`   // Rate limit for reverse-channel fetch requests
	PersistSessions bool          `json:"persistSessions"` // Persist resolved sessions/resources to sqlite
	DatabasePath    string        `json:"databasePath"`    // Path of the sqlite database file
	PlayerCommand   []string      `json:"playerCommand"`   // External player command; playback URL is appended
}

// configFile mirrors Config for JSON decoding, with durations as strings
// so the file can say "30s" instead of nanosecond counts.
type configFile struct {
	ControlPort     int      `json:"controlPort"`
	MediaPort       int      `json:"mediaPort"`
	MediaHost       string   `json:"mediaHost"`
	LogLevel        string   `json:"logLevel"`
	Debug           bool     `json:"debug"`
	ObfuscateUrls   bool     `json:"obfuscateUrls"`
	WorkerThreads   int      `json:"workerThreads"`
	FetchTimeout    string   `json:"fetchTimeout"`
	WatcherEnabled  bool     `json:"watcherEnabled"`
	FetchesPerSec   int      `json:"fetchesPerSec"`
	PersistSessions bool     `json:"persistSessions"`
	DatabasePath    string   `json:"databasePath"`
	PlayerCommand   []string `json:"playerCommand"`
}

// MediaHostPort returns the host:port string the rewritten manifests and
// the final playback location point at.
func (c *Config) MediaHostPort() string {
	return fmt.Sprintf("%s:%d", c.MediaHost, c.MediaPort)
}

// LoadConfig loads configuration from the JSON config file if present,
// falling back to defaults for anything missing or invalid. The file path
// defaults to /settings/config.json and can be overridden with CONFIG_PATH.
func LoadConfig() *Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "/settings/config.json"
	}

	cfg, err := loadFromFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Error loading config from %s: %v (using defaults)", path, err)
		}
		cfg = getDefaultConfig()
	}

	validateAndSetDefaults(cfg)
	return cfg
}

// loadFromFile reads and decodes a JSON config file into a Config.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cf configFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("invalid config JSON: %w", err)
	}

	cfg := &Config{
		ControlPort:     cf.ControlPort,
		MediaPort:       cf.MediaPort,
		MediaHost:       cf.MediaHost,
		LogLevel:        cf.LogLevel,
		Debug:           cf.Debug,
		ObfuscateUrls:   cf.ObfuscateUrls,
		WorkerThreads:   cf.WorkerThreads,
		WatcherEnabled:  cf.WatcherEnabled,
		FetchesPerSec:   cf.FetchesPerSec,
		PersistSessions: cf.PersistSessions,
		DatabasePath:    cf.DatabasePath,
		PlayerCommand:   cf.PlayerCommand,
	}

	// Parse duration fields
	if cf.FetchTimeout != "" {
		if cfg.FetchTimeout, err = time.ParseDuration(cf.FetchTimeout); err != nil {
			return nil, fmt.Errorf("invalid fetchTimeout: %w", err)
		}
	}

	return cfg, nil
}

// getDefaultConfig returns a baseline configuration
// with sensible defaults when no file is present.
func getDefaultConfig() *Config {
	return &Config{
		ControlPort:     7000,             // AirPlay control port
		MediaPort:       7100,             // Local manifest server port
		MediaHost:       "localhost",      // Players pull from the same machine
		LogLevel:        "INFO",           // Default log level
		Debug:           false,            // Debug disabled
		ObfuscateUrls:   false,            // Do not obfuscate by default
		WorkerThreads:   8,                // Default worker threads
		FetchTimeout:    30 * time.Second, // Abandon stalled play attempts after 30s
		WatcherEnabled:  true,             // Watchdog on
		FetchesPerSec:   50,               // Reverse-channel send pacing
		PersistSessions: false,            // Persistence opt-in
		DatabasePath:    "/data/aircast.db",
	}
}

// validateAndSetDefaults ensures all config values are valid,
// filling in defaults for missing/invalid ones.
func validateAndSetDefaults(cfg *Config) {
	if cfg.ControlPort <= 0 || cfg.ControlPort > 65535 {
		cfg.ControlPort = 7000
	}
	if cfg.MediaPort <= 0 || cfg.MediaPort > 65535 {
		cfg.MediaPort = 7100
	}
	if cfg.MediaHost == "" {
		cfg.MediaHost = "localhost"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "INFO"
	}
	if cfg.WorkerThreads <= 0 {
		cfg.WorkerThreads = 8
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.FetchesPerSec <= 0 {
		cfg.FetchesPerSec = 50
	}
	if cfg.PersistSessions && cfg.DatabasePath == "" {
		cfg.DatabasePath = "/data/aircast.db"
	}
}
