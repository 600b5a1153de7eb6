package config

import (
	"fmt"
	"log"
	"net"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/migadu/sievelint/helpers"
	"github.com/migadu/sievelint/sieve"
)

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Output    string `toml:"output"`     // Log output: "stderr", "stdout", "syslog", or file path
	Format    string `toml:"format"`     // Log format: "json" or "console"
	Level     string `toml:"level"`      // Log level: "debug", "info", "warn", "error"
	SyslogTag string `toml:"syslog_tag"` // Tag used when output is "syslog"
}

// SieveConfig holds the checker settings.
type SieveConfig struct {
	// SupportedExtensions is what require may name. Empty means the built-in
	// default list.
	SupportedExtensions []string `toml:"supported_extensions"`
	MaxNestingDepth     int      `toml:"max_nesting_depth"`
	MaxScriptSize       string   `toml:"max_script_size"` // e.g. "16kb"
	// StrictRequire reports extensions that are used without a matching
	// require. When false they are only listed in the report.
	StrictRequire bool `toml:"strict_require"`
	// CrossCheck also loads every script with go-sieve and reports
	// disagreement.
	CrossCheck bool `toml:"cross_check"`
	// RejectReason makes reject need the reject extension and a reason.
	RejectReason bool `toml:"reject_reason"`
}

// GetMaxScriptSize parses MaxScriptSize.
func (s *SieveConfig) GetMaxScriptSize() (int64, error) {
	if s.MaxScriptSize == "" {
		return DefaultMaxScriptSize, nil
	}
	return helpers.ParseSize(s.MaxScriptSize)
}

// CacheConfig holds the result cache settings.
type CacheConfig struct {
	Enabled    bool   `toml:"enabled"`
	MaxEntries int    `toml:"max_entries"`
	TTL        string `toml:"ttl"`
	Path       string `toml:"path"` // sqlite file; empty keeps results in memory only
}

// GetTTL parses TTL.
func (c *CacheConfig) GetTTL() (time.Duration, error) {
	if c.TTL == "" {
		return DefaultCacheTTL, nil
	}
	return helpers.ParseDuration(c.TTL)
}

// HTTPAPIConfig holds HTTP API server configuration
type HTTPAPIConfig struct {
	Start        bool     `toml:"start"`
	Addr         string   `toml:"addr"`
	APIKey       string   `toml:"api_key"`
	AllowedHosts []string `toml:"allowed_hosts"` // If empty, all hosts are allowed
	TLS          bool     `toml:"tls"`
	TLSCertFile  string   `toml:"tls_cert_file"`
	TLSKeyFile   string   `toml:"tls_key_file"`
}

// MetricsConfig holds metrics server configuration
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
	Path    string `toml:"path"`
}

// Config holds all configuration for the application.
type Config struct {
	Logging LoggingConfig `toml:"logging"`
	Sieve   SieveConfig   `toml:"sieve"`
	Cache   CacheConfig   `toml:"cache"`
	HTTPAPI HTTPAPIConfig `toml:"http_api"`
	Metrics MetricsConfig `toml:"metrics"`
}

const (
	DefaultMaxScriptSize = 16 * 1024
	DefaultCacheTTL      = 10 * time.Minute
)

// NewDefaultConfig creates a Config struct with default values.
func NewDefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Output:    "stderr",
			Format:    "console",
			Level:     "info",
			SyslogTag: "sievelint",
		},
		Sieve: SieveConfig{
			SupportedExtensions: append([]string(nil), sieve.DefaultSupportedExtensions...),
			MaxNestingDepth:     sieve.DefaultMaxNestingDepth,
			MaxScriptSize:       "16kb",
			StrictRequire:       true,
		},
		Cache: CacheConfig{
			Enabled:    true,
			MaxEntries: 1000,
			TTL:        "10m",
		},
		HTTPAPI: HTTPAPIConfig{
			Addr: "127.0.0.1:8080",
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
			Path: "/metrics",
		},
	}
}

// Validate checks the values that LoadConfigFromFile cannot check by type.
func (c *Config) Validate() error {
	if err := sieve.ValidateExtensions(c.Sieve.SupportedExtensions); err != nil {
		return fmt.Errorf("sieve.supported_extensions: %w", err)
	}
	if c.Sieve.MaxNestingDepth < 0 {
		return fmt.Errorf("sieve.max_nesting_depth: must not be negative, got %d", c.Sieve.MaxNestingDepth)
	}
	size, err := c.Sieve.GetMaxScriptSize()
	if err != nil {
		return fmt.Errorf("sieve.max_script_size: %w", err)
	}
	if size == 0 {
		return fmt.Errorf("sieve.max_script_size: must be greater than zero")
	}

	if c.Cache.Enabled {
		if c.Cache.MaxEntries <= 0 {
			return fmt.Errorf("cache.max_entries: must be greater than zero, got %d", c.Cache.MaxEntries)
		}
		ttl, err := c.Cache.GetTTL()
		if err != nil {
			return fmt.Errorf("cache.ttl: %w", err)
		}
		if ttl <= 0 {
			return fmt.Errorf("cache.ttl: must be greater than zero, got %s", ttl)
		}
	}

	if c.HTTPAPI.Start {
		if c.HTTPAPI.Addr == "" {
			return fmt.Errorf("http_api.addr: required when http_api.start is true")
		}
		if c.HTTPAPI.TLS && (c.HTTPAPI.TLSCertFile == "" || c.HTTPAPI.TLSKeyFile == "") {
			return fmt.Errorf("http_api: tls_cert_file and tls_key_file are required when tls is enabled")
		}
		for _, h := range c.HTTPAPI.AllowedHosts {
			if net.ParseIP(h) != nil {
				continue
			}
			if _, _, err := net.ParseCIDR(h); err != nil {
				return fmt.Errorf("http_api.allowed_hosts: %q is neither an IP address nor a CIDR", h)
			}
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Addr == "" {
			return fmt.Errorf("metrics.addr: required when metrics are enabled")
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return fmt.Errorf("metrics.path: must start with '/', got %q", c.Metrics.Path)
		}
	}
	return nil
}

// LoadConfigFromFile loads configuration from a TOML file and trims whitespace from all string fields
// This function is lenient with:
//   - Duplicate keys: logs warning and uses first occurrence
//   - Unknown keys: logs warning and ignores them
//
// All other syntax errors are returned with a hint.
func LoadConfigFromFile(configPath string, cfg *Config) error {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	metadata, err := toml.Decode(string(content), cfg)
	if err != nil {
		if !strings.Contains(err.Error(), "has already been defined") {
			return enhanceConfigError(err)
		}
		log.Printf("WARNING: Configuration file '%s' contains duplicate keys: %v", configPath, err)
		log.Printf("WARNING: Only the first occurrence of each key will be used.")

		metadata, err = toml.Decode(removeDuplicateKeysFromTOML(string(content)), cfg)
		if err != nil {
			return enhanceConfigError(err)
		}
	}

	if undecoded := metadata.Undecoded(); len(undecoded) > 0 {
		log.Printf("WARNING: Configuration file '%s' contains unknown keys that will be ignored:", configPath)
		for _, key := range undecoded {
			log.Printf("WARNING:   - %s", key)
		}
	}

	trimStringFields(reflect.ValueOf(cfg).Elem())
	return nil
}

// removeDuplicateKeysFromTOML comments out every repeated key of a table,
// keeping the first occurrence.
func removeDuplicateKeysFromTOML(content string) string {
	lines := strings.Split(content, "\n")
	seen := make(map[string]int)
	result := make([]string, 0, len(lines))
	section := ""

	for lineNum, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "" || strings.HasPrefix(trimmed, "#"):
		case strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]"):
			section = strings.TrimSpace(strings.Trim(trimmed, "[]"))
		default:
			key, _, found := strings.Cut(trimmed, "=")
			if !found {
				break
			}
			fullKey := strings.TrimSpace(key)
			if section != "" {
				fullKey = section + "." + fullKey
			}
			if prev, dup := seen[fullKey]; dup {
				log.Printf("WARNING: Duplicate key '%s' at line %d (first occurrence at line %d). Ignoring duplicate.",
					fullKey, lineNum+1, prev+1)
				result = append(result, "# DUPLICATE IGNORED: "+line)
				continue
			}
			seen[fullKey] = lineNum
		}
		result = append(result, line)
	}
	return strings.Join(result, "\n")
}

// enhanceConfigError adds a hint for the common TOML mistakes.
func enhanceConfigError(err error) error {
	msg := err.Error()

	if strings.Contains(msg, "expected value but found \"f\"") ||
		strings.Contains(msg, "expected value but found \"t\"") {
		return fmt.Errorf("%w\n\nHINT: Invalid boolean value in your TOML configuration file.\n"+
			"In TOML, boolean values must be exactly 'true' or 'false' (lowercase, unquoted)", err)
	}

	if strings.Contains(msg, "expected") || strings.Contains(msg, "invalid") {
		return fmt.Errorf("%w\n\nHINT: There is a syntax error in your TOML configuration file.\n"+
			"Please check:\n"+
			"  - All strings are properly quoted\n"+
			"  - All brackets are balanced\n"+
			"  - Section headers use [section] format", err)
	}
	return err
}

// trimStringFields recursively trims whitespace from all string fields in a struct
func trimStringFields(v reflect.Value) {
	if !v.IsValid() || !v.CanSet() {
		return
	}

	switch v.Kind() {
	case reflect.String:
		v.SetString(strings.TrimSpace(v.String()))
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			trimStringFields(v.Index(i))
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			trimStringFields(v.Field(i))
		}
	case reflect.Ptr:
		if !v.IsNil() {
			trimStringFields(v.Elem())
		}
	}
}
