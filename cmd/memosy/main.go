package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"memosy/internal/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     = slog.Default()
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// .env is optional; a malformed one is worth a warning.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("cannot load .env", "err", err)
	}

	root := &cobra.Command{
		Use:           "memosy",
		Short:         "memosy: relay linked videos into Telegram chats",
		Long:          "memosy watches Telegram chats for links, downloads the videos with yt-dlp and posts them back.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.memosy/config.json)")

	root.AddCommand(runCmd())
	root.AddCommand(updateCmd())
	root.AddCommand(fetchCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(initCmd())
	root.AddCommand(configCmd())
	root.AddCommand(serviceCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		logger.Error("command failed", "err", err)
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

// loadConfig resolves the config and reconfigures the global logger from it.
// The returned func closes the log file, if any.
func loadConfig() (*config.Config, func(), error) {
	cfg, err := config.Resolve(resolveConfigPath())
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	closeLog, err := configureLogger(cfg.General)
	if err != nil {
		return nil, nil, err
	}
	return cfg, closeLog, nil
}

// configureLogger replaces the global logger with one honouring the
// configured level, teeing into the log file when one is set.
func configureLogger(gc config.GeneralConfig) (func(), error) {
	level, err := config.ParseLogLevel(gc.LogLevel)
	if err != nil {
		return nil, err
	}

	var w io.Writer = os.Stderr
	closeLog := func() {}
	if gc.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(gc.LogFile), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(gc.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(os.Stderr, f)
		closeLog = func() { f.Close() }
	}

	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return closeLog, nil
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if _, err := os.Stat(cfgPath); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", cfgPath)
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. downloader.profile)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Resolve(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(config.Sanitize(cfg), args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. downloader.profile basic)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if err := setConfigValue(cfgPath, args[0], args[1]); err != nil {
				return err
			}
			logger.Info("config updated", "path", args[0], "value", args[1], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Resolve(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			data, _ := json.MarshalIndent(config.Sanitize(cfg), "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}

// setConfigValue updates one key in the config file. Nothing is written
// unless the result validates and its downloader profile resolves.
func setConfigValue(cfgPath, path, value string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.SetByPath(cfg, path, value); err != nil {
		return fmt.Errorf("set value: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	// profile names live in the profiles file, outside Validate's reach
	if _, err := newTool(cfg); err != nil {
		return err
	}
	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the memosy version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("memosy %s\n", version)
		},
	}
}
