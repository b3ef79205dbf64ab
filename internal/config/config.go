package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SaveCondition is one automatic snapshot trigger: save once at least
// Seconds have passed since the last snapshot and at least Changes write
// commands were logged.
type SaveCondition struct {
	Seconds int
	Changes int
}

// Config is the validated option bundle for the server and its
// persistence subsystem.
type Config struct {
	// Server settings
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`

	// AOF
	AOFEnabled    bool   `mapstructure:"aof_enabled"`
	AOFFilename   string `mapstructure:"aof_filename"`
	AOFSyncPolicy string `mapstructure:"aof_sync_policy"`

	// RDB snapshots
	RDBEnabled     bool   `mapstructure:"rdb_enabled"`
	RDBFilename    string `mapstructure:"rdb_filename"`
	RDBCompression bool   `mapstructure:"rdb_compression"`
	RDBChecksum    bool   `mapstructure:"rdb_checksum"`

	// Raw "sec changes" pairs, comma separated; parsed into SaveConditions.
	RDBSaveConditionsRaw string `mapstructure:"rdb_save_conditions"`
	SaveConditions       []SaveCondition

	// Directories
	DataDir string `mapstructure:"data_dir"`
	TempDir string `mapstructure:"temp_dir"`

	// General persistence switches
	PersistenceEnabled bool  `mapstructure:"persistence_enabled"`
	RecoveryOnStartup  bool  `mapstructure:"recovery_on_startup"`
	MaxMemoryUsage     int64 `mapstructure:"max_memory_usage"`

	// Background cadence
	CleanupInterval     time.Duration `mapstructure:"cleanup_interval"`
	PersistenceInterval time.Duration `mapstructure:"persistence_interval"`

	// Diagnostics
	SlowLogThreshold time.Duration `mapstructure:"slowlog_threshold"`
	MetricsAddr      string        `mapstructure:"metrics_addr"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Host:      "localhost",
		Port:      6379,
		LogLevel:  "info",
		LogFormat: "console",

		AOFEnabled:    true,
		AOFFilename:   "appendonly.aof",
		AOFSyncPolicy: "everysec",

		RDBEnabled:           true,
		RDBFilename:          "dump.rdb",
		RDBCompression:       true,
		RDBChecksum:          true,
		RDBSaveConditionsRaw: "900 1,300 10,60 10000",
		SaveConditions: []SaveCondition{
			{Seconds: 900, Changes: 1},
			{Seconds: 300, Changes: 10},
			{Seconds: 60, Changes: 10000},
		},

		DataDir: "./data",
		TempDir: "./data/temp",

		PersistenceEnabled: true,
		RecoveryOnStartup:  true,
		MaxMemoryUsage:     100 * 1024 * 1024,

		CleanupInterval:     100 * time.Millisecond,
		PersistenceInterval: 100 * time.Millisecond,

		SlowLogThreshold: 10 * time.Millisecond,
	}
}

// LoadConfig loads configuration from defaults, a config file and
// environment variables, in ascending priority.
func LoadConfig() (*Config, error) {
	defaults := DefaultConfig()

	viper.SetConfigName("minired")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/minired/")

	viper.SetEnvPrefix("MINIRED")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("host", defaults.Host)
	viper.SetDefault("port", defaults.Port)
	viper.SetDefault("log_level", defaults.LogLevel)
	viper.SetDefault("log_format", defaults.LogFormat)
	viper.SetDefault("log_file", defaults.LogFile)
	viper.SetDefault("aof_enabled", defaults.AOFEnabled)
	viper.SetDefault("aof_filename", defaults.AOFFilename)
	viper.SetDefault("aof_sync_policy", defaults.AOFSyncPolicy)
	viper.SetDefault("rdb_enabled", defaults.RDBEnabled)
	viper.SetDefault("rdb_filename", defaults.RDBFilename)
	viper.SetDefault("rdb_compression", defaults.RDBCompression)
	viper.SetDefault("rdb_checksum", defaults.RDBChecksum)
	viper.SetDefault("rdb_save_conditions", defaults.RDBSaveConditionsRaw)
	viper.SetDefault("data_dir", defaults.DataDir)
	viper.SetDefault("temp_dir", defaults.TempDir)
	viper.SetDefault("persistence_enabled", defaults.PersistenceEnabled)
	viper.SetDefault("recovery_on_startup", defaults.RecoveryOnStartup)
	viper.SetDefault("max_memory_usage", defaults.MaxMemoryUsage)
	viper.SetDefault("cleanup_interval", defaults.CleanupInterval)
	viper.SetDefault("persistence_interval", defaults.PersistenceInterval)
	viper.SetDefault("slowlog_threshold", defaults.SlowLogThreshold)
	viper.SetDefault("metrics_addr", defaults.MetricsAddr)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	conditions, err := ParseSaveConditions(config.RDBSaveConditionsRaw)
	if err != nil {
		return nil, err
	}
	config.SaveConditions = conditions

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ParseSaveConditions parses "900 1,300 10" into condition pairs.
func ParseSaveConditions(raw string) ([]SaveCondition, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	conditions := make([]SaveCondition, 0, 4)
	for _, part := range strings.Split(raw, ",") {
		fields := strings.Fields(part)
		if len(fields) != 2 {
			return nil, fmt.Errorf("invalid save condition %q: want \"<seconds> <changes>\"", part)
		}
		seconds, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("invalid save condition seconds %q", fields[0])
		}
		changes, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("invalid save condition changes %q", fields[1])
		}
		conditions = append(conditions, SaveCondition{Seconds: seconds, Changes: changes})
	}
	return conditions, nil
}

// Validate checks option values and relationships.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Port)
	}

	switch c.AOFSyncPolicy {
	case "always", "everysec", "no":
	default:
		return fmt.Errorf("invalid aof_sync_policy: %s (must be always, everysec or no)", c.AOFSyncPolicy)
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true, "fatal": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level: %s", c.LogLevel)
	}

	if c.RDBFilename == "" {
		return fmt.Errorf("rdb_filename cannot be empty")
	}
	if c.AOFEnabled && c.AOFFilename == "" {
		return fmt.Errorf("aof_filename cannot be empty")
	}
	return nil
}

// AOFPath resolves the AOF file under the data directory.
func (c *Config) AOFPath() string {
	return filepath.Join(c.DataDir, c.AOFFilename)
}

// RDBPath resolves the snapshot file under the data directory.
func (c *Config) RDBPath() string {
	return filepath.Join(c.DataDir, c.RDBFilename)
}

// RDBTempPath returns a staging path for a background snapshot.
func (c *Config) RDBTempPath() string {
	return filepath.Join(c.TempDir, fmt.Sprintf("temp-%d.rdb", time.Now().UnixNano()))
}

// EnsureDirectories creates the data and temp directories when absent.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return err
	}
	return os.MkdirAll(c.TempDir, 0o755)
}

// ShouldAutoSave reports whether any save condition is satisfied by the
// elapsed time since the last snapshot and the change count.
func (c *Config) ShouldAutoSave(changes int64, lastSave time.Time) bool {
	if !c.RDBEnabled || !c.PersistenceEnabled {
		return false
	}

	elapsed := time.Since(lastSave).Seconds()
	for _, cond := range c.SaveConditions {
		if elapsed >= float64(cond.Seconds) && changes >= int64(cond.Changes) {
			return true
		}
	}
	return false
}

// runtime-mutable parameters for CONFIG SET: only boolean-like and integer
// options may change while the server runs.
var mutableParams = map[string]bool{
	"aof_enabled":         true,
	"rdb_enabled":         true,
	"rdb_compression":     true,
	"rdb_checksum":        true,
	"persistence_enabled": true,
	"recovery_on_startup": true,
	"max_memory_usage":    true,
}

// GetParam returns the string rendering of a named parameter for
// CONFIG GET.
func (c *Config) GetParam(name string) (string, bool) {
	switch strings.ToLower(name) {
	case "host":
		return c.Host, true
	case "port":
		return strconv.Itoa(c.Port), true
	case "aof_enabled":
		return strconv.FormatBool(c.AOFEnabled), true
	case "aof_filename":
		return c.AOFFilename, true
	case "aof_sync_policy":
		return c.AOFSyncPolicy, true
	case "rdb_enabled":
		return strconv.FormatBool(c.RDBEnabled), true
	case "rdb_filename":
		return c.RDBFilename, true
	case "rdb_compression":
		return strconv.FormatBool(c.RDBCompression), true
	case "rdb_checksum":
		return strconv.FormatBool(c.RDBChecksum), true
	case "rdb_save_conditions":
		return c.RDBSaveConditionsRaw, true
	case "data_dir":
		return c.DataDir, true
	case "temp_dir":
		return c.TempDir, true
	case "persistence_enabled":
		return strconv.FormatBool(c.PersistenceEnabled), true
	case "recovery_on_startup":
		return strconv.FormatBool(c.RecoveryOnStartup), true
	case "max_memory_usage":
		return strconv.FormatInt(c.MaxMemoryUsage, 10), true
	}
	return "", false
}

// SetParam mutates a runtime-settable parameter from its string form.
func (c *Config) SetParam(name, value string) error {
	name = strings.ToLower(name)
	if !mutableParams[name] {
		if _, known := c.GetParam(name); known {
			return fmt.Errorf("parameter '%s' cannot be set at runtime", name)
		}
		return fmt.Errorf("unknown parameter '%s'", name)
	}

	switch name {
	case "max_memory_usage":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer value '%s'", value)
		}
		c.MaxMemoryUsage = n
	default:
		b := parseBool(value)
		switch name {
		case "aof_enabled":
			c.AOFEnabled = b
		case "rdb_enabled":
			c.RDBEnabled = b
		case "rdb_compression":
			c.RDBCompression = b
		case "rdb_checksum":
			c.RDBChecksum = b
		case "persistence_enabled":
			c.PersistenceEnabled = b
		case "recovery_on_startup":
			c.RecoveryOnStartup = b
		}
	}
	return nil
}

func parseBool(value string) bool {
	switch strings.ToLower(value) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}
