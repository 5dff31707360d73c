package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/searchable/internal/batch"
	"github.com/platinummonkey/searchable/internal/config"
	"github.com/platinummonkey/searchable/internal/converter"
	"github.com/platinummonkey/searchable/internal/logger"
	"github.com/platinummonkey/searchable/internal/pdfenhancer"
	"github.com/platinummonkey/searchable/internal/pdfinfo"
)

var cfgFile string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "searchable",
	Short: "Make scanned PDFs searchable with an invisible OCR text layer",
	Long: `searchable turns image-only PDFs into searchable PDFs.

Pages that already carry selectable text are left alone; the others are
rendered, recognized with Tesseract and get an invisible text layer placed
over the original page, so the document looks the same but can be searched
and copied from.

Features:
  - Mixed documents: only image pages are recognized
  - Tables keep their columns when text is copied
  - Text-only export for copy-friendly output
  - Watch mode: convert every PDF dropped into an inbox directory`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.searchable.yaml)")
	flags.String("output-dir", "", "directory for converted documents")
	flags.String("language", config.DefaultLanguage, "recognition language, e.g. eng or eng+deu")
	flags.Bool("preserve-images", true, "keep original pages (false writes text-only pages)")
	flags.Int("max-pages", config.DefaultMaxPages, "reject documents with more pages (0 = unlimited)")
	flags.Int("render-dpi", config.DefaultRenderDPI, "rasterization resolution for recognition")
	flags.String("writer", config.DefaultWriter, "PDF writer (fpdf, gopdf)")
	flags.Bool("optimize", false, "optimize the output with pdfcpu")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "console", "log format (console, json)")
	flags.String("log-file", "", "also append logs to this file")
	flags.String("unipdf-license-key", "", "unidoc metered license key for page rendering")
}

// setup loads configuration with the command's flags on top and initializes logging
func setup(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Init(&logger.Config{
		Level:            cfg.LogLevel,
		Format:           cfg.LogFormat,
		OutputPath:       cfg.LogFile,
		EnableStacktrace: cfg.LogLevel == "debug",
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.Get()
	log.Debug(cfg.String())

	if cfg.UnipdfLicenseKey != "" {
		if err := converter.SetRenderLicense(cfg.UnipdfLicenseKey); err != nil {
			return nil, nil, fmt.Errorf("failed to set render license: %w", err)
		}
	}

	return cfg, log, nil
}

// newConverter wires the classifier and assembler configured by cfg
func newConverter(cfg *config.Config, log *logger.Logger) (*converter.Converter, error) {
	newWriter, err := pdfenhancer.WriterByName(cfg.Writer)
	if err != nil {
		return nil, err
	}

	return converter.New(&converter.Config{
		Logger:     log,
		Classifier: pdfinfo.New(&pdfinfo.Config{Logger: log}),
		Assembler: pdfenhancer.New(&pdfenhancer.Config{
			Logger:    log,
			Layout:    cfg.Layout,
			Placement: cfg.Placement,
			NewWriter: newWriter,
			Optimize:  cfg.Optimize,
		}),
	}), nil
}

// readInput reads a document and rejects anything without a PDF header
func readInput(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !pdfinfo.HasPDFHeader(data) {
		return nil, fmt.Errorf("%s: %w: missing %%PDF- header", path, pdfinfo.ErrInvalidDocument)
	}
	return data, nil
}

// defaultOutputPath places the output for input in outputDir
func defaultOutputPath(outputDir, input string) string {
	if outputDir == "" {
		outputDir = "."
	}
	return filepath.Join(outputDir, batch.OutputName(input))
}
