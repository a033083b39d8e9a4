package downloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrDownloadFailed covers every way a download can fail: launch errors,
// non-zero exits, unsupported sites and missing formats alike.
var ErrDownloadFailed = errors.New("download failed")

const (
	stderrTailBytes    = 600
	defaultHTTPTimeout = 5 * time.Minute
	// waitDelay bounds how long a killed download may keep its pipes open
	// (yt-dlp forks ffmpeg for merges).
	waitDelay = 10 * time.Second
)

// Tool is the shared handle on the yt-dlp binary. Downloads run concurrently
// under the read lock; installs and self-updates rewrite the binary and take
// the write lock.
type Tool struct {
	binary     string
	profile    Profile
	timeout    time.Duration
	releaseURL string
	client     *http.Client
	logger     *slog.Logger

	mu sync.RWMutex
}

type ToolConfig struct {
	Binary     string
	Profile    Profile
	Timeout    time.Duration // 0 = no limit
	ReleaseURL string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func NewTool(cfg ToolConfig) *Tool {
	binary := cfg.Binary
	if abs, err := filepath.Abs(binary); err == nil {
		binary = abs
	}
	if cfg.Profile.Name == "" {
		cfg.Profile = StrictProfile
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Tool{
		binary:     binary,
		profile:    cfg.Profile,
		timeout:    cfg.Timeout,
		releaseURL: cfg.ReleaseURL,
		client:     cfg.HTTPClient,
		logger:     cfg.Logger,
	}
}

// Binary returns the absolute path of the executable.
func (t *Tool) Binary() string { return t.binary }

func (t *Tool) Profile() Profile { return t.profile }

// Download runs yt-dlp for req and waits for it to exit. On success it
// returns req.OutputPath.
func (t *Tool) Download(ctx context.Context, req Request) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	args := t.profile.Args(req)
	cmd := exec.CommandContext(ctx, t.binary, args...)
	cmd.WaitDelay = waitDelay
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	t.logger.Debug("running downloader", "url", req.URL, "output", req.OutputPath, "profile", t.profile.Name)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w (%v)", err, ctx.Err())
		}
		t.logger.Warn("downloader exited with error",
			"url", req.URL,
			"err", err,
			"stderr", tail(stderr.String(), stderrTailBytes),
		)
		return "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	return req.OutputPath, nil
}

// Update asks yt-dlp to replace itself with the latest release.
func (t *Tool) Update(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	out, err := exec.CommandContext(ctx, t.binary, "-U").CombinedOutput()
	if err != nil {
		return fmt.Errorf("downloader self-update: %w: %s", err, tail(string(out), stderrTailBytes))
	}
	t.logger.Debug("downloader update output", "output", tail(string(out), stderrTailBytes))
	return nil
}

// Version reports the installed yt-dlp version.
func (t *Tool) Version(ctx context.Context) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out, err := exec.CommandContext(ctx, t.binary, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("downloader version: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Installed reports whether the binary exists on disk.
func (t *Tool) Installed() bool {
	info, err := os.Stat(t.binary)
	return err == nil && !info.IsDir()
}

// EnsureInstalled fetches the release binary when it is missing. It reports
// whether a download took place.
func (t *Tool) EnsureInstalled(ctx context.Context) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Installed() {
		return false, nil
	}
	if t.releaseURL == "" {
		return false, fmt.Errorf("downloader binary %s is missing and no release URL is configured", t.binary)
	}

	dir := filepath.Dir(t.binary)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("create binary directory %s: %w", dir, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.releaseURL, nil)
	if err != nil {
		return false, fmt.Errorf("build release request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("fetch downloader release: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("fetch downloader release: unexpected status %s", resp.Status)
	}

	tmp, err := os.CreateTemp(dir, ".yt-dlp-*")
	if err != nil {
		return false, fmt.Errorf("create temp binary: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return false, fmt.Errorf("write downloader binary: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o755); err != nil {
		return false, fmt.Errorf("chmod downloader binary: %w", err)
	}
	if err := os.Rename(tmp.Name(), t.binary); err != nil {
		return false, fmt.Errorf("install downloader binary: %w", err)
	}

	t.logger.Info("downloader installed", "path", t.binary, "bytes", n, "source", t.releaseURL)
	return true, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
