package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"burrow/internal/dict"
)

// CurrentVersion is the only schema version Validate accepts.
const CurrentVersion = 1

// Config represents the complete burrow configuration
type Config struct {
	Version int `json:"version" mapstructure:"version"`

	Server      ServerConfig      `json:"server" mapstructure:"server"`
	Logging     LoggingConfig     `json:"logging" mapstructure:"logging"`
	Routes      RoutesConfig      `json:"routes" mapstructure:"routes"`
	Sessions    SessionsConfig    `json:"sessions" mapstructure:"sessions"`
	Compression CompressionConfig `json:"compression" mapstructure:"compression"`
	Auth        AuthConfig        `json:"auth" mapstructure:"auth"`
}

// ServerConfig contains listener and connection settings
type ServerConfig struct {
	Addr             string `json:"addr" mapstructure:"addr"`
	ReadTimeoutMs    int    `json:"readTimeoutMs" mapstructure:"readTimeoutMs"`
	WriteTimeoutMs   int    `json:"writeTimeoutMs" mapstructure:"writeTimeoutMs"`
	IdleTimeoutMs    int    `json:"idleTimeoutMs" mapstructure:"idleTimeoutMs"`
	MaxBodyBytes     string `json:"maxBodyBytes" mapstructure:"maxBodyBytes"`
	MaxResponseBytes string `json:"maxResponseBytes" mapstructure:"maxResponseBytes"`
	ReadChunkBytes   string `json:"readChunkBytes" mapstructure:"readChunkBytes"`
	KeepAlive        bool   `json:"keepAlive" mapstructure:"keepAlive"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format     string `json:"format" mapstructure:"format"`
	Level      string `json:"level" mapstructure:"level"`
	File       string `json:"file" mapstructure:"file"`
	MaxSize    string `json:"maxSize" mapstructure:"maxSize"`
	MaxBackups int    `json:"maxBackups" mapstructure:"maxBackups"`
}

// RoutesConfig points at the route table
type RoutesConfig struct {
	File string `json:"file" mapstructure:"file"`
}

// SessionsConfig selects the session store
type SessionsConfig struct {
	Enabled    bool   `json:"enabled" mapstructure:"enabled"`
	Backend    string `json:"backend" mapstructure:"backend"`
	Path       string `json:"path" mapstructure:"path"`
	TTLSeconds int    `json:"ttlSeconds" mapstructure:"ttlSeconds"`
	CookieName string `json:"cookieName" mapstructure:"cookieName"`
}

// CompressionConfig controls gzip of responses
type CompressionConfig struct {
	Enabled  bool `json:"enabled" mapstructure:"enabled"`
	MinBytes int  `json:"minBytes" mapstructure:"minBytes"`
}

// AuthConfig protects a path prefix with HTTP basic auth
type AuthConfig struct {
	Realm     string `json:"realm" mapstructure:"realm"`
	UsersFile string `json:"usersFile" mapstructure:"usersFile"`
	Pattern   string `json:"pattern" mapstructure:"pattern"`

	// AttemptsPerMinute throttles failed logins per client; 0 disables it.
	AttemptsPerMinute int `json:"attemptsPerMinute" mapstructure:"attemptsPerMinute"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Server: ServerConfig{
			Addr:             ":8080",
			ReadTimeoutMs:    15000,
			WriteTimeoutMs:   15000,
			IdleTimeoutMs:    60000,
			MaxBodyBytes:     "10MiB",
			MaxResponseBytes: "0",
			ReadChunkBytes:   "64KiB",
			KeepAlive:        true,
		},
		Logging: LoggingConfig{
			Format:     "human",
			Level:      "info",
			MaxSize:    "10MiB",
			MaxBackups: 3,
		},
		Routes: RoutesConfig{
			File: "routes.toml",
		},
		Sessions: SessionsConfig{
			Enabled:    false,
			Backend:    "memory",
			Path:       "sessions.db",
			TTLSeconds: 3600,
			CookieName: "sessionid",
		},
		Compression: CompressionConfig{
			Enabled:  true,
			MinBytes: 1024,
		},
		Auth: AuthConfig{
			Realm:             "burrow",
			AttemptsPerMinute: 10,
		},
	}
}

// LoadResult contains the loaded config and metadata about how it was loaded.
type LoadResult struct {
	Config       *Config
	ConfigPath   string
	UsedDefaults bool
	EnvOverrides []EnvOverride
}

// LoadConfig loads configuration from burrow.{json,yaml,toml} in dir
func LoadConfig(dir string) (*Config, error) {
	result, err := LoadConfigWithDetails(dir)
	if err != nil {
		return nil, err
	}
	return result.Config, nil
}

// LoadConfigWithDetails loads the configuration and reports where it came
// from. BURROW_CONFIG_PATH takes precedence over dir. Environment overrides
// are applied last.
func LoadConfigWithDetails(dir string) (*LoadResult, error) {
	result := &LoadResult{}

	if envPath := os.Getenv("BURROW_CONFIG_PATH"); envPath != "" {
		cfg, err := loadConfigFromPath(envPath)
		if err != nil {
			return nil, err
		}
		result.Config = cfg
		result.ConfigPath = envPath
	} else {
		v := viper.New()
		v.SetConfigName("burrow")
		v.AddConfigPath(dir)

		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, err
			}
			result.Config = DefaultConfig()
			result.UsedDefaults = true
		} else {
			cfg := DefaultConfig()
			if err := v.Unmarshal(cfg); err != nil {
				return nil, err
			}
			result.Config = cfg
			result.ConfigPath = v.ConfigFileUsed()
		}
	}

	result.EnvOverrides = applyEnvOverrides(result.Config)
	return result, nil
}

// LoadConfigFromFile loads one explicit file, then applies environment
// overrides.
func LoadConfigFromFile(path string) (*LoadResult, error) {
	cfg, err := loadConfigFromPath(path)
	if err != nil {
		return nil, err
	}
	result := &LoadResult{Config: cfg, ConfigPath: path}
	result.EnvOverrides = applyEnvOverrides(cfg)
	return result, nil
}

// loadConfigFromPath reads one explicit file; the format follows the
// extension.
func loadConfigFromPath(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Dict returns the configuration as an ordered dictionary, in field order.
func (c *Config) Dict() (*dict.Dict, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return dict.FromJSON(data)
}

// Save writes the configuration to path. The extension picks the format:
// .yaml/.yml, .toml, anything else JSON.
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".toml":
		var d *dict.Dict
		if d, err = c.Dict(); err != nil {
			return err
		}
		if strings.EqualFold(filepath.Ext(path), ".toml") {
			data, err = d.ToTOML()
		} else {
			data, err = d.ToYAML()
		}
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	if c.Server.Addr == "" {
		return &ConfigError{Field: "server.addr", Message: "must not be empty"}
	}
	for field, value := range map[string]string{
		"server.maxBodyBytes":     c.Server.MaxBodyBytes,
		"server.maxResponseBytes": c.Server.MaxResponseBytes,
		"server.readChunkBytes":   c.Server.ReadChunkBytes,
		"logging.maxSize":         c.Logging.MaxSize,
	} {
		if _, err := ParseSize(value); err != nil {
			return &ConfigError{Field: field, Message: "invalid size " + value}
		}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error", "silent":
	default:
		return &ConfigError{Field: "logging.level", Message: "unknown level " + c.Logging.Level}
	}
	switch c.Logging.Format {
	case "human", "json":
	default:
		return &ConfigError{Field: "logging.format", Message: "must be human or json"}
	}
	switch c.Sessions.Backend {
	case "memory":
	case "sqlite":
		if c.Sessions.Path == "" {
			return &ConfigError{Field: "sessions.path", Message: "sqlite backend needs a path"}
		}
	default:
		return &ConfigError{Field: "sessions.backend", Message: "must be memory or sqlite"}
	}
	if c.Sessions.TTLSeconds < 0 {
		return &ConfigError{Field: "sessions.ttlSeconds", Message: "must not be negative"}
	}
	if c.Compression.MinBytes < 0 {
		return &ConfigError{Field: "compression.minBytes", Message: "must not be negative"}
	}
	if c.Auth.AttemptsPerMinute < 0 {
		return &ConfigError{Field: "auth.attemptsPerMinute", Message: "must not be negative"}
	}
	if c.Auth.UsersFile != "" && c.Auth.Pattern == "" {
		return &ConfigError{Field: "auth.pattern", Message: "required when auth.usersFile is set"}
	}
	return nil
}

// ParseSize accepts byte counts such as "512", "64KiB" or "10 MB". Empty
// means zero.
func ParseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return humanize.ParseBytes(s)
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
