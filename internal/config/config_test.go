package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/platinummonkey/searchable/internal/layout"
	"github.com/platinummonkey/searchable/internal/pdfenhancer"
)

// isolate points HOME at a temp dir so a user's ~/.searchable.yaml is never read
func isolate(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	return tmpDir
}

func validConfig(t *testing.T) *Config {
	tmpDir := t.TempDir()
	return &Config{
		OutputDir:     tmpDir,
		Language:      "eng",
		MaxPages:      200,
		RenderDPI:     300,
		Writer:        "fpdf",
		LogLevel:      "info",
		LogFormat:     "console",
		WatchInterval: time.Minute,
		StateFile:     filepath.Join(tmpDir, "state.json"),
		Layout:        layout.DefaultOptions(),
		Placement:     pdfenhancer.DefaultPlacement(),
	}
}

func TestLoad_Defaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Language != "eng" {
		t.Errorf("expected Language = eng, got %s", cfg.Language)
	}
	if !cfg.PreserveImages {
		t.Error("expected PreserveImages = true")
	}
	if cfg.MaxPages != 200 {
		t.Errorf("expected MaxPages = 200, got %d", cfg.MaxPages)
	}
	if cfg.RenderDPI != 300 {
		t.Errorf("expected RenderDPI = 300, got %d", cfg.RenderDPI)
	}
	if cfg.Writer != "fpdf" {
		t.Errorf("expected Writer = fpdf, got %s", cfg.Writer)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "console" {
		t.Errorf("expected info/console logging, got %s/%s", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.WatchInterval != time.Minute {
		t.Errorf("expected WatchInterval = 1m, got %s", cfg.WatchInterval)
	}
	if cfg.StateFile != filepath.Join(home, ".searchable-state.json") {
		t.Errorf("unexpected StateFile %s", cfg.StateFile)
	}
	if cfg.Layout != layout.DefaultOptions() {
		t.Errorf("expected default layout options, got %+v", cfg.Layout)
	}
	if cfg.Placement != pdfenhancer.DefaultPlacement() {
		t.Errorf("expected default placement, got %+v", cfg.Placement)
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	tmpDir := isolate(t)

	t.Setenv("SEARCHABLE_OUTPUT_DIR", tmpDir)
	t.Setenv("SEARCHABLE_LANGUAGE", "eng+deu")
	t.Setenv("SEARCHABLE_MAX_PAGES", "10")
	t.Setenv("SEARCHABLE_PRESERVE_IMAGES", "false")
	t.Setenv("SEARCHABLE_LOG_LEVEL", "DEBUG")
	t.Setenv("SEARCHABLE_WRITER", "gopdf")
	t.Setenv("SEARCHABLE_LAYOUT_LINE_TOLERANCE", "0.75")

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.OutputDir != tmpDir {
		t.Errorf("expected OutputDir = %s, got %s", tmpDir, cfg.OutputDir)
	}
	if cfg.Language != "eng+deu" {
		t.Errorf("expected Language = eng+deu, got %s", cfg.Language)
	}
	if cfg.MaxPages != 10 {
		t.Errorf("expected MaxPages = 10, got %d", cfg.MaxPages)
	}
	if cfg.PreserveImages {
		t.Error("expected PreserveImages = false")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected LogLevel normalized to debug, got %s", cfg.LogLevel)
	}
	if cfg.Writer != "gopdf" {
		t.Errorf("expected Writer = gopdf, got %s", cfg.Writer)
	}
	if cfg.Layout.LineTolerance != 0.75 {
		t.Errorf("expected layout.line-tolerance = 0.75, got %v", cfg.Layout.LineTolerance)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	tmpDir := isolate(t)
	configFile := filepath.Join(tmpDir, "config.yaml")

	content := `output-dir: ` + tmpDir + `
language: fra
render-dpi: 200
watch-interval: 30s
layout:
  table-gap-word-factor: 2
placement:
  baseline-ratio: 0.25
`
	if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configFile, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Language != "fra" {
		t.Errorf("expected Language = fra, got %s", cfg.Language)
	}
	if cfg.RenderDPI != 200 {
		t.Errorf("expected RenderDPI = 200, got %d", cfg.RenderDPI)
	}
	if cfg.WatchInterval != 30*time.Second {
		t.Errorf("expected WatchInterval = 30s, got %s", cfg.WatchInterval)
	}
	if cfg.Layout.TableGapWordFactor != 2 {
		t.Errorf("expected table-gap-word-factor = 2, got %v", cfg.Layout.TableGapWordFactor)
	}
	if cfg.Layout.LineTolerance != layout.DefaultOptions().LineTolerance {
		t.Errorf("unset layout keys should keep defaults, got %+v", cfg.Layout)
	}
	if cfg.Placement.BaselineRatio != 0.25 {
		t.Errorf("expected baseline-ratio = 0.25, got %v", cfg.Placement.BaselineRatio)
	}
	if cfg.Placement.ReferenceSize != 12 {
		t.Errorf("unset placement keys should keep defaults, got %+v", cfg.Placement)
	}
}

func TestLoad_FlagsOverrideEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("SEARCHABLE_LANGUAGE", "deu")
	t.Setenv("SEARCHABLE_MAX_PAGES", "50")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("language", "eng", "")
	flags.Int("max-pages", 200, "")
	if err := flags.Parse([]string{"--language", "spa"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("", flags)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Language != "spa" {
		t.Errorf("flag should win: expected Language = spa, got %s", cfg.Language)
	}
	if cfg.MaxPages != 50 {
		t.Errorf("unset flag should not override env: expected 50, got %d", cfg.MaxPages)
	}
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	tmpDir := isolate(t)
	configFile := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configFile, []byte("language: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(configFile, nil); err == nil {
		t.Error("Load() should fail on malformed YAML")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	isolate(t)
	t.Setenv("SEARCHABLE_LANGUAGE", "english")

	_, err := Load("", nil)
	if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("Load() error = %v, want invalid configuration", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"empty output dir", func(c *Config) { c.OutputDir = "" }, "output-dir"},
		{"bad language", func(c *Config) { c.Language = "en" }, "invalid language"},
		{"negative max pages", func(c *Config) { c.MaxPages = -1 }, "max-pages"},
		{"unlimited pages", func(c *Config) { c.MaxPages = 0 }, ""},
		{"dpi too low", func(c *Config) { c.RenderDPI = 10 }, "render-dpi"},
		{"dpi too high", func(c *Config) { c.RenderDPI = 5000 }, "render-dpi"},
		{"unknown writer", func(c *Config) { c.Writer = "pdf-lib" }, "unknown PDF writer"},
		{"uppercase writer", func(c *Config) { c.Writer = "GOPDF" }, ""},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, "log-level"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "log-format"},
		{"negative interval", func(c *Config) { c.WatchInterval = -time.Second }, "watch-interval"},
		{"empty state file", func(c *Config) { c.StateFile = "" }, "state-file"},
		{"negative layout", func(c *Config) { c.Layout.WordGapRatio = -0.1 }, "layout.word-gap-ratio"},
		{"negative placement", func(c *Config) { c.Placement.MinFontSize = -4 }, "placement.min-font-size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ExpandsHome(t *testing.T) {
	home := isolate(t)
	cfg := validConfig(t)
	cfg.OutputDir = "~/out"
	cfg.StateFile = "~/state/state.json"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.OutputDir != filepath.Join(home, "out") {
		t.Errorf("OutputDir = %s", cfg.OutputDir)
	}
	if cfg.StateFile != filepath.Join(home, "state", "state.json") {
		t.Errorf("StateFile = %s", cfg.StateFile)
	}
}

func TestValidateLanguage(t *testing.T) {
	tests := []struct {
		language string
		valid    bool
	}{
		{"eng", true},
		{"eng+deu", true},
		{"eng+deu+fra", true},
		{"", false},
		{"en", false},
		{"ENG", false},
		{"eng+", false},
		{"eng deu", false},
		{"eng+de", false},
	}

	for _, tt := range tests {
		err := ValidateLanguage(tt.language)
		if (err == nil) != tt.valid {
			t.Errorf("ValidateLanguage(%q) error = %v, want valid = %v", tt.language, err, tt.valid)
		}
	}
}

func TestEnsureDirs(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := validConfig(t)
	cfg.OutputDir = filepath.Join(tmpDir, "a", "b")
	cfg.StateFile = filepath.Join(tmpDir, "c", "state.json")

	if err := cfg.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs() error = %v", err)
	}
	for _, dir := range []string{cfg.OutputDir, filepath.Dir(cfg.StateFile)} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("directory %s was not created", dir)
		}
	}
}

func TestString_RedactsLicenseKey(t *testing.T) {
	cfg := validConfig(t)
	cfg.UnipdfLicenseKey = "secret-license-key-1234"

	s := cfg.String()
	if strings.Contains(s, "secret-license") {
		t.Error("String() leaked the license key")
	}
	if !strings.Contains(s, "***1234") {
		t.Errorf("String() should show the redacted key suffix, got:\n%s", s)
	}
}
