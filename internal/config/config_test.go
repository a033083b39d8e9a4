package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// --- Validate ---

func TestValidate_ValidConfig(t *testing.T) {
	cfg := Defaults()
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := Defaults()
	cfg.General.LogLevel = "loud"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestValidate_BusSize(t *testing.T) {
	cfg := Defaults()
	cfg.General.BusSize = 0
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for busSize=0")
	}
	cfg.General.BusSize = 1
	if err := Validate(cfg); err != nil {
		t.Fatalf("busSize=1 should be valid: %v", err)
	}
}

func TestValidate_UpdateSchedule(t *testing.T) {
	for _, spec := range []string{"@every 24h", "@daily", "0 4 * * *"} {
		cfg := Defaults()
		cfg.Downloader.UpdateSchedule = spec
		if err := Validate(cfg); err != nil {
			t.Errorf("schedule %q should be valid: %v", spec, err)
		}
	}

	cfg := Defaults()
	cfg.Downloader.UpdateSchedule = "every day please"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestValidate_DownloaderPaths(t *testing.T) {
	cfg := Defaults()
	cfg.Downloader.BinaryName = ""
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for empty binaryName")
	}

	cfg = Defaults()
	cfg.Downloader.OutputDir = ""
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for empty outputDir")
	}
}

func TestValidate_NegativeTimeout(t *testing.T) {
	cfg := Defaults()
	cfg.Downloader.TimeoutSeconds = -1
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for negative timeout")
	}
	cfg.Downloader.TimeoutSeconds = 0
	if err := Validate(cfg); err != nil {
		t.Fatalf("timeout=0 (unlimited) should be valid: %v", err)
	}
}

func TestValidate_AutoInstallNeedsReleaseURL(t *testing.T) {
	cfg := Defaults()
	cfg.Downloader.ReleaseURL = ""
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for autoInstall without releaseUrl")
	}
	cfg.Downloader.AutoInstall = false
	if err := Validate(cfg); err != nil {
		t.Fatalf("releaseUrl is optional without autoInstall: %v", err)
	}
}

func TestValidate_Metrics(t *testing.T) {
	cfg := Defaults()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Endpoint = "metrics"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for endpoint without leading slash")
	}
}

// --- Load / Save ---

func TestLoadSave_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	original := Defaults()
	original.Downloader.Profile = "basic"

	if err := Save(path, original); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.Downloader.Profile != "basic" {
		t.Fatalf("expected 'basic', got %q", loaded.Downloader.Profile)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.json")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	os.WriteFile(path, []byte("{not json}"), 0o644)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestLoad_ValidatesConfig(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.json")
	content := `{"downloader": {"updateSchedule": "sometimes"}}`
	if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(cfgFile); err == nil {
		t.Fatal("expected validation error for bad schedule")
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.json")
	content := `{"downloader": {"profile": "basic"}}`
	if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgFile)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Downloader.Profile != "basic" {
		t.Errorf("profile: got %q", cfg.Downloader.Profile)
	}
	if cfg.Downloader.IgnoreMarker != DefaultIgnoreMark {
		t.Errorf("ignoreMarker should keep default, got %q", cfg.Downloader.IgnoreMarker)
	}
	if cfg.Downloader.UpdateSchedule != "@every 24h" {
		t.Errorf("updateSchedule should keep default, got %q", cfg.Downloader.UpdateSchedule)
	}
}

func TestLoad_WithEnvVarSubstitution(t *testing.T) {
	t.Setenv("TEST_MEMOSY_OUT", "/tmp/memosy-out")

	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.json")
	content := `{"downloader": {"outputDir": "${TEST_MEMOSY_OUT}", "binaryDir": "${TEST_MEMOSY_UNSET:-/opt/bin}"}}`
	if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgFile)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Downloader.OutputDir != "/tmp/memosy-out" {
		t.Errorf("outputDir: got %q", cfg.Downloader.OutputDir)
	}
	if cfg.Downloader.BinaryDir != "/opt/bin" {
		t.Errorf("binaryDir: got %q", cfg.Downloader.BinaryDir)
	}
}

// --- Resolve / ApplyEnv ---

func TestResolve_MissingFileUsesDefaultsAndEnv(t *testing.T) {
	t.Setenv("TELOXIDE_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("ADMIN_ID", "42")

	cfg, err := Resolve(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Errorf("token: got %q", cfg.Telegram.Token)
	}
	if cfg.Telegram.AdminID != "42" {
		t.Errorf("adminId: got %q", cfg.Telegram.AdminID)
	}
	if cfg.Downloader.BinaryPath() != filepath.Join("libs", "yt-dlp") {
		t.Errorf("binary path: got %q", cfg.Downloader.BinaryPath())
	}
}

func TestResolve_InvalidFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte("{"), 0o644)
	if _, err := Resolve(path); err == nil {
		t.Fatal("expected error for unparsable config")
	}
}

func TestApplyEnv_FallbackTokenVariable(t *testing.T) {
	t.Setenv("TELOXIDE_TOKEN", "")
	t.Setenv("TELEGRAM_BOT_TOKEN", "999:zzz")
	t.Setenv("ADMIN_ID", "")

	cfg := Defaults()
	cfg.Telegram.AdminID = "7"
	ApplyEnv(cfg)
	if cfg.Telegram.Token != "999:zzz" {
		t.Errorf("token: got %q", cfg.Telegram.Token)
	}
	if cfg.Telegram.AdminID != "7" {
		t.Errorf("empty ADMIN_ID must not clear config value, got %q", cfg.Telegram.AdminID)
	}
}

func TestParseLogLevel(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "", "warn", "WARNING", "error"} {
		if _, err := ParseLogLevel(lvl); err != nil {
			t.Errorf("level %q should parse: %v", lvl, err)
		}
	}
	if _, err := ParseLogLevel("trace"); err == nil {
		t.Error("expected error for trace")
	}
}

// --- Accessors ---

func TestGetByPath_ValidPaths(t *testing.T) {
	cfg := Defaults()
	val, err := GetByPath(cfg, "downloader.profile")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != "strict" {
		t.Fatalf("expected 'strict', got %v", val)
	}
}

func TestGetByPath_InvalidPath(t *testing.T) {
	cfg := Defaults()
	if _, err := GetByPath(cfg, "downloader.nope"); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestSetByPath_Conversions(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "downloader.timeoutSeconds", "30"); err != nil {
		t.Fatalf("set int: %v", err)
	}
	if cfg.Downloader.TimeoutSeconds != 30 {
		t.Errorf("timeout: got %d", cfg.Downloader.TimeoutSeconds)
	}
	if err := SetByPath(cfg, "metrics.enabled", "true"); err != nil {
		t.Fatalf("set bool: %v", err)
	}
	if !cfg.Metrics.Enabled {
		t.Error("metrics.enabled should be true")
	}
}

func TestSetByPath_FollowsFieldType(t *testing.T) {
	cfg := Defaults()

	// numeric-looking strings stay strings
	if err := SetByPath(cfg, "telegram.adminId", "123456"); err != nil {
		t.Fatalf("set adminId: %v", err)
	}
	if cfg.Telegram.AdminID != "123456" {
		t.Errorf("adminId: got %q", cfg.Telegram.AdminID)
	}

	if err := SetByPath(cfg, "telegram.allowFrom", "-1001, 42,"); err != nil {
		t.Fatalf("set allowFrom: %v", err)
	}
	if len(cfg.Telegram.AllowFrom) != 2 || cfg.Telegram.AllowFrom[0] != "-1001" || cfg.Telegram.AllowFrom[1] != "42" {
		t.Errorf("allowFrom: got %v", cfg.Telegram.AllowFrom)
	}
}

func TestSetByPath_Errors(t *testing.T) {
	cfg := Defaults()
	tests := map[string][2]string{
		"unknown key":      {"downloader.profle", "basic"},
		"bad bool":         {"metrics.enabled", "maybe"},
		"bad int":          {"downloader.timeoutSeconds", "ten"},
		"section":          {"downloader", "x"},
		"below a leaf key": {"downloader.profile.name", "x"},
	}
	for name, tc := range tests {
		if err := SetByPath(cfg, tc[0], tc[1]); err == nil {
			t.Errorf("%s: expected error for %s=%s", name, tc[0], tc[1])
		}
	}
	if cfg.Downloader.Profile != "strict" || cfg.Metrics.Enabled {
		t.Error("failed sets must not modify the config")
	}
}

func TestSanitize_MasksToken(t *testing.T) {
	cfg := Defaults()
	cfg.Telegram.Token = "123456789:ABCdefGHIjklMNOpqrSTUvwxyz"

	sanitized := Sanitize(cfg)

	if sanitized.Telegram.Token == cfg.Telegram.Token {
		t.Fatal("telegram token should be masked")
	}
	if cfg.Telegram.Token != "123456789:ABCdefGHIjklMNOpqrSTUvwxyz" {
		t.Fatal("original config should not be modified")
	}

	if got := sanitized.Telegram.Token; got != "123456789:****wxyz" {
		t.Errorf("masked token: got %q", got)
	}

	cfg.Telegram.AllowFrom = FlexStringList{"1"}
	Sanitize(cfg).Telegram.AllowFrom[0] = "2"
	if cfg.Telegram.AllowFrom[0] != "1" {
		t.Error("sanitized copy must not share the allow list")
	}

	cfg.Telegram.Token = "short"
	if got := Sanitize(cfg).Telegram.Token; got != "***" {
		t.Fatalf("short secret should be '***', got %q", got)
	}
}

func TestListPaths_ReturnsAllLeaves(t *testing.T) {
	paths := ListPaths(Defaults())
	for _, expected := range []string{"general.logLevel", "general.logFile", "telegram.adminId", "downloader.binaryDir", "metrics.enabled"} {
		if _, ok := paths[expected]; !ok {
			t.Errorf("missing expected path: %s", expected)
		}
	}
}

// --- FlexStringList ---

func TestFlexStringList_MixedTypes(t *testing.T) {
	var list FlexStringList
	if err := json.Unmarshal([]byte(`["hello", 123, -1001234567890]`), &list); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(list) != 3 || list[0] != "hello" || list[1] != "123" || list[2] != "-1001234567890" {
		t.Fatalf("unexpected: %v", list)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("MEMOSY_X", "1")
	t.Setenv("MEMOSY_EMPTY", "")
	tests := map[string]string{
		"${MEMOSY_X}":              "1",
		"${MEMOSY_EMPTY:-d}":       "d",
		"${MEMOSY_UNSET_VAR}":      "${MEMOSY_UNSET_VAR}",
		"$MEMOSY_X stays":          "$MEMOSY_X stays",
		"${MEMOSY_X}-${MEMOSY_X}": "1-1",
	}
	for in, want := range tests {
		if got := ExpandEnvVars(in); got != want {
			t.Errorf("ExpandEnvVars(%q) = %q, want %q", in, got, want)
		}
	}
}
