package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"memosy/internal/config"
	"memosy/internal/downloader"

	"github.com/spf13/cobra"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your memosy installation",
		Long: `Verifies that memosy's configuration, Telegram token, yt-dlp binary and
output directory are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("memosy doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file
			if _, err := os.Stat(cfgPath); err != nil {
				printWarn("Config file", fmt.Sprintf("not found at %s, using defaults", cfgPath))
				warned++
			} else {
				printPass("Config file", cfgPath)
				passed++
			}

			// 2. Config loads and validates
			cfg, err := config.Resolve(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				failed++
				fmt.Printf("\n%d passed, %d failed\n", passed, failed)
				return fmt.Errorf("%d check(s) failed", failed)
			}
			printPass("Config validation", "valid")
			passed++

			// 3. Telegram token
			if cfg.Telegram.Token == "" {
				printFail("Telegram token", "not set (telegram.token, TELOXIDE_TOKEN or TELEGRAM_BOT_TOKEN)")
				failed++
			} else {
				printPass("Telegram token", config.Sanitize(cfg).Telegram.Token)
				passed++
			}
			if cfg.Telegram.AdminID == "" {
				printWarn("Admin chat", "not set, no startup notification will be sent")
				warned++
			} else {
				printPass("Admin chat", cfg.Telegram.AdminID)
				passed++
			}

			// 4. Downloader profile and binary
			tool, err := newTool(cfg)
			if err != nil {
				printFail("Downloader profile", err.Error())
				failed++
			} else {
				printPass("Downloader profile", tool.Profile().Name)
				passed++

				switch {
				case tool.Installed():
					ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
					v, err := tool.Version(ctx)
					cancel()
					if err != nil {
						printFail("yt-dlp", fmt.Sprintf("%s does not run: %v", tool.Binary(), err))
						failed++
					} else {
						printPass("yt-dlp", fmt.Sprintf("%s (%s)", v, tool.Binary()))
						passed++
					}
				case cfg.Downloader.AutoInstall:
					printWarn("yt-dlp", fmt.Sprintf("missing at %s, will be installed on start", tool.Binary()))
					warned++
				default:
					printFail("yt-dlp", fmt.Sprintf("missing at %s and autoInstall is disabled", tool.Binary()))
					failed++
				}
			}

			// 5. Output directory writable
			if err := checkWritable(cfg.Downloader.OutputDir); err != nil {
				printFail("Output directory", err.Error())
				failed++
			} else {
				printPass("Output directory", cfg.Downloader.OutputDir)
				passed++
			}

			// 6. Maintenance schedule
			if next, err := nextUpdate(cfg); err != nil {
				printFail("Update schedule", err.Error())
				failed++
			} else {
				printPass("Update schedule", fmt.Sprintf("%s (next %s)", cfg.Downloader.UpdateSchedule, next.Format(time.RFC3339)))
				passed++
			}

			// 7. Metrics port
			if cfg.Metrics.Enabled {
				if err := checkAddr(cfg.Metrics.Listen); err != nil {
					printWarn("Metrics listen", fmt.Sprintf("%s may be in use: %v", cfg.Metrics.Listen, err))
					warned++
				} else {
					printPass("Metrics listen", cfg.Metrics.Listen+cfg.Metrics.Endpoint)
					passed++
				}
			}

			// 8. Log file writable
			if cfg.General.LogFile != "" {
				if err := os.MkdirAll(filepath.Dir(cfg.General.LogFile), 0o755); err != nil {
					printWarn("Log file", fmt.Sprintf("cannot create log directory: %v", err))
					warned++
				} else {
					printPass("Log file", cfg.General.LogFile)
					passed++
				}
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running memosy.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\nmemosy should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! memosy is ready to run.\n")
			}
			return nil
		},
	}
}

// nextUpdate reports when the next scheduled self-update would run.
func nextUpdate(cfg *config.Config) (time.Time, error) {
	m, err := downloader.NewMaintainer(nil, downloader.MaintainerConfig{
		Schedule: cfg.Downloader.UpdateSchedule,
		Logger:   logger,
	})
	if err != nil {
		return time.Time{}, err
	}
	return m.Next(time.Now()), nil
}

// checkWritable creates dir if needed and probes it with a temp file.
func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	f.Close()
	return os.Remove(f.Name())
}

func checkAddr(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
