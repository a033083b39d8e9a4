package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
)

// Config is the root configuration for memosy.
type Config struct {
	General    GeneralConfig    `json:"general"`
	Telegram   TelegramConfig   `json:"telegram"`
	Downloader DownloaderConfig `json:"downloader"`
	Metrics    MetricsConfig    `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel string `json:"logLevel"`
	LogFile  string `json:"logFile,omitempty"` // optional log file path
	BusSize  int    `json:"busSize"`
}

type TelegramConfig struct {
	Token         string         `json:"token"`
	AdminID       string         `json:"adminId,omitempty"` // chat that gets the startup notice
	AllowFrom     FlexStringList `json:"allowFrom,omitempty"`
	NotifyStartup bool           `json:"notifyStartup"`
}

// DownloaderConfig describes where the yt-dlp binary lives and how it is run.
type DownloaderConfig struct {
	BinaryDir      string `json:"binaryDir"`
	BinaryName     string `json:"binaryName"`
	OutputDir      string `json:"outputDir"`
	ReleaseURL     string `json:"releaseUrl"`
	AutoInstall    bool   `json:"autoInstall"`
	Profile        string `json:"profile"`                // "basic" | "strict" | name from profilesFile
	ProfilesFile   string `json:"profilesFile,omitempty"` // YAML with extra profiles
	TimeoutSeconds int    `json:"timeoutSeconds"`         // 0 = no limit
	UpdateSchedule string `json:"updateSchedule"`         // cron spec, e.g. "@every 24h"
	UpdateOnStart  bool   `json:"updateOnStart"`
	IgnoreMarker   string `json:"ignoreMarker"`
}

// BinaryPath returns the full path of the downloader executable.
func (d DownloaderConfig) BinaryPath() string {
	return filepath.Join(d.BinaryDir, d.BinaryName)
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Listen   string `json:"listen"`
	Endpoint string `json:"endpoint"`
}

// FlexStringList is a []string that can unmarshal from JSON arrays containing
// both strings and numbers (e.g. ["123", 456] both become "123", "456").
type FlexStringList []string

func (f *FlexStringList) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			result = append(result, s)
			continue
		}
		var n float64
		if err := json.Unmarshal(item, &n); err == nil {
			result = append(result, strconv.FormatInt(int64(n), 10))
			continue
		}
		result = append(result, string(item))
	}
	*f = result
	return nil
}

// DefaultConfigDir returns the default config directory (~/.memosy).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".memosy"
	}
	return filepath.Join(home, ".memosy")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Load reads, expands and validates the config file at path.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}
	expandPaths(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Resolve loads the config file when it exists and falls back to defaults
// otherwise. Environment overrides are applied on top in both cases.
func Resolve(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg = Defaults()
		expandPaths(cfg)
	}
	ApplyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Environment variables consulted by ApplyEnv, first non-empty wins.
var (
	tokenEnvVars = []string{"TELOXIDE_TOKEN", "TELEGRAM_BOT_TOKEN"}
	adminEnvVars = []string{"ADMIN_ID"}
)

// ApplyEnv overrides the bot token and admin chat from the environment.
func ApplyEnv(cfg *Config) {
	if v := firstEnv(tokenEnvVars); v != "" {
		cfg.Telegram.Token = v
	}
	if v := firstEnv(adminEnvVars); v != "" {
		cfg.Telegram.AdminID = v
	}
}

func firstEnv(names []string) string {
	for _, name := range names {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if _, err := ParseLogLevel(cfg.General.LogLevel); err != nil {
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}
	if cfg.General.BusSize < 1 || cfg.General.BusSize > 10000 {
		errs = append(errs, "general.busSize must be between 1 and 10000")
	}

	d := cfg.Downloader
	if d.BinaryDir == "" || d.BinaryName == "" {
		errs = append(errs, "downloader.binaryDir and downloader.binaryName are required")
	}
	if d.OutputDir == "" {
		errs = append(errs, "downloader.outputDir is required")
	}
	if d.AutoInstall && d.ReleaseURL == "" {
		errs = append(errs, "downloader.releaseUrl is required when autoInstall is enabled")
	}
	if d.Profile == "" {
		errs = append(errs, "downloader.profile is required")
	}
	if d.TimeoutSeconds < 0 {
		errs = append(errs, "downloader.timeoutSeconds must be >= 0")
	}
	if _, err := cron.ParseStandard(d.UpdateSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("downloader.updateSchedule is not a valid cron spec: %v", err))
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		errs = append(errs, "metrics.listen is required when metrics are enabled")
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Endpoint, "/") {
		errs = append(errs, "metrics.endpoint must start with /")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ParseLogLevel maps a config log level onto slog.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

func expandPaths(cfg *Config) {
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.Downloader.BinaryDir = ExpandPath(cfg.Downloader.BinaryDir)
	cfg.Downloader.OutputDir = ExpandPath(cfg.Downloader.OutputDir)
	cfg.Downloader.ProfilesFile = ExpandPath(cfg.Downloader.ProfilesFile)
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
