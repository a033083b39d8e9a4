package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

const (
	launchdLabel = "com.memosy.relay"
	systemdUnit  = "memosy.service"
)

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage memosy as a background service (launchd/systemd)",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Install memosy as a user service",
		Long: `Generates and installs a service file that runs 'memosy run' on login.
The current directory becomes the service's working directory, so relative
downloader paths (binaryDir, outputDir) resolve the same way they do now.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			execPath, err := os.Executable()
			if err != nil {
				return fmt.Errorf("cannot determine executable path: %w", err)
			}
			workDir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("cannot determine working directory: %w", err)
			}
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			vars := serviceVars{
				Exec:    execPath,
				Config:  resolveConfigPath(),
				WorkDir: workDir,
				LogDir:  filepath.Join(home, ".memosy", "logs"),
			}

			switch runtime.GOOS {
			case "darwin":
				return installLaunchd(home, vars)
			case "linux":
				return installSystemd(home, vars)
			default:
				return fmt.Errorf("unsupported OS: %s (supported: darwin, linux)", runtime.GOOS)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "uninstall",
		Short: "Remove the memosy user service",
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			var path string
			switch runtime.GOOS {
			case "darwin":
				path = launchdPath(home)
			case "linux":
				path = systemdPath(home)
			default:
				return fmt.Errorf("unsupported OS: %s", runtime.GOOS)
			}
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("remove service file: %w", err)
			}
			fmt.Printf("Service uninstalled: %s\n", path)
			return nil
		},
	})

	return cmd
}

type serviceVars struct {
	Exec    string
	Config  string
	WorkDir string
	LogDir  string
}

// render fills the {{...}} placeholders of a service template.
func (v serviceVars) render(tmpl string) string {
	return strings.NewReplacer(
		"{{EXEC}}", v.Exec,
		"{{CONFIG}}", v.Config,
		"{{WORKDIR}}", v.WorkDir,
		"{{LOG}}", filepath.Join(v.LogDir, "memosy.log"),
		"{{ERR_LOG}}", filepath.Join(v.LogDir, "memosy-error.log"),
		"{{LABEL}}", launchdLabel,
	).Replace(tmpl)
}

func launchdPath(home string) string {
	return filepath.Join(home, "Library", "LaunchAgents", launchdLabel+".plist")
}

func systemdPath(home string) string {
	return filepath.Join(home, ".config", "systemd", "user", systemdUnit)
}

func installLaunchd(home string, vars serviceVars) error {
	plistPath := launchdPath(home)
	if err := os.MkdirAll(vars.LogDir, 0o755); err != nil {
		return err
	}
	if err := writeServiceFile(plistPath, vars.render(launchdTemplate)); err != nil {
		return err
	}

	fmt.Printf("Service installed: %s\n", plistPath)
	fmt.Printf("To start: launchctl load %s\n", plistPath)
	fmt.Printf("To stop:  launchctl unload %s\n", plistPath)
	return nil
}

func installSystemd(home string, vars serviceVars) error {
	unitPath := systemdPath(home)
	if err := writeServiceFile(unitPath, vars.render(systemdTemplate)); err != nil {
		return err
	}

	fmt.Printf("Service installed: %s\n", unitPath)
	fmt.Printf("To start:  systemctl --user start memosy\n")
	fmt.Printf("To enable: systemctl --user enable memosy\n")
	fmt.Printf("To stop:   systemctl --user stop memosy\n")
	return nil
}

func writeServiceFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

const launchdTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{LABEL}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{EXEC}}</string>
        <string>run</string>
        <string>--config</string>
        <string>{{CONFIG}}</string>
    </array>
    <key>WorkingDirectory</key>
    <string>{{WORKDIR}}</string>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <true/>
    <key>StandardOutPath</key>
    <string>{{LOG}}</string>
    <key>StandardErrorPath</key>
    <string>{{ERR_LOG}}</string>
</dict>
</plist>`

const systemdTemplate = `[Unit]
Description=memosy video relay for Telegram
After=network-online.target

[Service]
Type=simple
WorkingDirectory={{WORKDIR}}
ExecStart={{EXEC}} run --config {{CONFIG}}
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target`
