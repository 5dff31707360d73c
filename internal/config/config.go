// Package config provides configuration management for searchable.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/platinummonkey/searchable/internal/layout"
	"github.com/platinummonkey/searchable/internal/pdfenhancer"
)

// Config holds all configuration settings for searchable.
// Configuration precedence: CLI flags > Environment variables > Config file > Defaults
type Config struct {
	// OutputDir is where converted documents are written
	OutputDir string

	// Language is the recognition language code (e.g., "eng", "eng+deu")
	Language string

	// PreserveImages keeps the original pages and overlays invisible text;
	// false produces a text-only document
	PreserveImages bool

	// MaxPages rejects larger documents before any page is processed (0 = unlimited)
	MaxPages int

	// RenderDPI is the rasterization resolution for recognition images
	RenderDPI int

	// Writer selects the PDF writer (fpdf, gopdf)
	Writer string

	// Optimize runs the output through pdfcpu's optimizer
	Optimize bool

	// LogLevel controls logging verbosity (debug, info, warn, error)
	LogLevel string

	// LogFormat is console or json
	LogFormat string

	// LogFile is an optional file receiving a copy of the log
	LogFile string

	// WatchDir is the inbox scanned in watch mode
	WatchDir string

	// WatchInterval is the time between full scans in watch mode (0 = file events only)
	WatchInterval time.Duration

	// StateFile is the path to the watch mode state file
	StateFile string

	// HealthAddr is the health check HTTP address in watch mode (empty = disabled)
	HealthAddr string

	// PIDFile is written in watch mode when set
	PIDFile string

	// UnipdfLicenseKey is the unidoc metered license key used for page rendering
	UnipdfLicenseKey string

	// Layout calibrates line reconstruction
	Layout layout.Options

	// Placement calibrates invisible text positioning
	Placement pdfenhancer.Placement
}

// Defaults
const (
	DefaultLanguage      = "eng"
	DefaultMaxPages      = 200
	DefaultRenderDPI     = 300
	DefaultWriter        = pdfenhancer.WriterFpdf
	DefaultWatchInterval = time.Minute
)

var languagePattern = regexp.MustCompile(`^[a-z]{3}(\+[a-z]{3})*$`)

// Load reads configuration from multiple sources and returns a Config instance.
// flags may be nil; only flags that were set on the command line override
// the other sources.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
			v.SetConfigName(".searchable")
			v.SetConfigType("yaml")
		}
	}

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("SEARCHABLE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	config := &Config{
		OutputDir:        v.GetString("output-dir"),
		Language:         v.GetString("language"),
		PreserveImages:   v.GetBool("preserve-images"),
		MaxPages:         v.GetInt("max-pages"),
		RenderDPI:        v.GetInt("render-dpi"),
		Writer:           v.GetString("writer"),
		Optimize:         v.GetBool("optimize"),
		LogLevel:         v.GetString("log-level"),
		LogFormat:        v.GetString("log-format"),
		LogFile:          v.GetString("log-file"),
		WatchDir:         v.GetString("watch-dir"),
		WatchInterval:    v.GetDuration("watch-interval"),
		StateFile:        v.GetString("state-file"),
		HealthAddr:       v.GetString("health-addr"),
		PIDFile:          v.GetString("pid-file"),
		UnipdfLicenseKey: v.GetString("unipdf-license-key"),
	}

	var tuning struct {
		Layout    layout.Options        `mapstructure:"layout"`
		Placement pdfenhancer.Placement `mapstructure:"placement"`
	}
	if err := v.Unmarshal(&tuning); err != nil {
		return nil, fmt.Errorf("failed to decode calibration settings: %w", err)
	}
	config.Layout = tuning.Layout
	config.Placement = tuning.Placement

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	v.SetDefault("output-dir", ".")
	v.SetDefault("language", DefaultLanguage)
	v.SetDefault("preserve-images", true)
	v.SetDefault("max-pages", DefaultMaxPages)
	v.SetDefault("render-dpi", DefaultRenderDPI)
	v.SetDefault("writer", DefaultWriter)
	v.SetDefault("optimize", false)
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "console")
	v.SetDefault("log-file", "")
	v.SetDefault("watch-dir", filepath.Join(home, "searchable", "inbox"))
	v.SetDefault("watch-interval", DefaultWatchInterval)
	v.SetDefault("state-file", filepath.Join(home, ".searchable-state.json"))
	v.SetDefault("health-addr", "")
	v.SetDefault("pid-file", "")
	v.SetDefault("unipdf-license-key", "")

	lo := layout.DefaultOptions()
	v.SetDefault("layout.line-tolerance", lo.LineTolerance)
	v.SetDefault("layout.min-line-tolerance", lo.MinLineTolerance)
	v.SetDefault("layout.word-gap-ratio", lo.WordGapRatio)
	v.SetDefault("layout.table-gap-word-factor", lo.TableGapWordFactor)
	v.SetDefault("layout.table-gap-line-factor", lo.TableGapLineFactor)

	pl := pdfenhancer.DefaultPlacement()
	v.SetDefault("placement.baseline-ratio", pl.BaselineRatio)
	v.SetDefault("placement.height-font-ratio", pl.HeightFontRatio)
	v.SetDefault("placement.min-font-size", pl.MinFontSize)
	v.SetDefault("placement.min-draw-size", pl.MinDrawSize)
	v.SetDefault("placement.reference-size", pl.ReferenceSize)
}

// Validate checks that the configuration is valid and internally consistent
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("output-dir cannot be empty")
	}
	outputDir, err := expandHome(c.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to expand home directory in output-dir: %w", err)
	}
	c.OutputDir = outputDir

	if err := ValidateLanguage(c.Language); err != nil {
		return err
	}

	if c.MaxPages < 0 {
		return fmt.Errorf("max-pages must be non-negative, got %d", c.MaxPages)
	}

	if c.RenderDPI < 36 || c.RenderDPI > 1200 {
		return fmt.Errorf("render-dpi must be between 36 and 1200, got %d", c.RenderDPI)
	}

	if _, err := pdfenhancer.WriterByName(c.Writer); err != nil {
		return err
	}
	c.Writer = strings.ToLower(c.Writer)

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid log-level %q, must be one of: debug, info, warn, error", c.LogLevel)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)

	if c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log-format %q, must be console or json", c.LogFormat)
	}

	if c.WatchInterval < 0 {
		return fmt.Errorf("watch-interval must be non-negative, got %s", c.WatchInterval)
	}

	if c.StateFile == "" {
		return fmt.Errorf("state-file cannot be empty")
	}
	for _, p := range []*string{&c.StateFile, &c.WatchDir, &c.LogFile, &c.PIDFile} {
		expanded, err := expandHome(*p)
		if err != nil {
			return fmt.Errorf("failed to expand home directory in %s: %w", *p, err)
		}
		*p = expanded
	}

	calibration := map[string]float64{
		"layout.line-tolerance":        c.Layout.LineTolerance,
		"layout.min-line-tolerance":    c.Layout.MinLineTolerance,
		"layout.word-gap-ratio":        c.Layout.WordGapRatio,
		"layout.table-gap-word-factor": c.Layout.TableGapWordFactor,
		"layout.table-gap-line-factor": c.Layout.TableGapLineFactor,
		"placement.baseline-ratio":     c.Placement.BaselineRatio,
		"placement.height-font-ratio":  c.Placement.HeightFontRatio,
		"placement.min-font-size":      c.Placement.MinFontSize,
		"placement.min-draw-size":      c.Placement.MinDrawSize,
		"placement.reference-size":     c.Placement.ReferenceSize,
	}
	for key, value := range calibration {
		if value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
			return fmt.Errorf("%s must be a non-negative number, got %v", key, value)
		}
	}

	return nil
}

// ValidateLanguage checks a recognition language code such as "eng" or "eng+deu"
func ValidateLanguage(language string) error {
	if !languagePattern.MatchString(language) {
		return fmt.Errorf("invalid language %q, expected three-letter codes joined by '+' (e.g. eng, eng+deu)", language)
	}
	return nil
}

// EnsureDirs creates the output directory and the state file's directory
func (c *Config) EnsureDirs() error {
	if err := os.MkdirAll(c.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", c.OutputDir, err)
	}

	stateDir := filepath.Dir(c.StateFile)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state file directory %s: %w", stateDir, err)
	}
	return nil
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, path[2:]), nil
}

// String returns a string representation of the configuration (with sensitive data redacted)
func (c *Config) String() string {
	licenseKey := "not set"
	if c.UnipdfLicenseKey != "" {
		if len(c.UnipdfLicenseKey) > 8 {
			licenseKey = "***" + c.UnipdfLicenseKey[len(c.UnipdfLicenseKey)-4:]
		} else {
			licenseKey = "***"
		}
	}

	return fmt.Sprintf(`Configuration:
  OutputDir: %s
  Language: %s
  PreserveImages: %t
  MaxPages: %d
  RenderDPI: %d
  Writer: %s
  Optimize: %t
  LogLevel: %s
  LogFormat: %s
  WatchDir: %s
  WatchInterval: %s
  StateFile: %s
  HealthAddr: %s
  PIDFile: %s
  UnipdfLicenseKey: %s
  Layout: %+v
  Placement: %+v`,
		c.OutputDir,
		c.Language,
		c.PreserveImages,
		c.MaxPages,
		c.RenderDPI,
		c.Writer,
		c.Optimize,
		c.LogLevel,
		c.LogFormat,
		c.WatchDir,
		c.WatchInterval,
		c.StateFile,
		c.HealthAddr,
		c.PIDFile,
		licenseKey,
		c.Layout,
		c.Placement,
	)
}
