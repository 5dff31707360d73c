package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/searchable/internal/batch"
	"github.com/platinummonkey/searchable/internal/converter"
)

// convertCmd represents the convert command
var convertCmd = &cobra.Command{
	Use:   "convert <input.pdf>",
	Short: "Convert a PDF into a searchable PDF",
	Long: `Convert a scanned PDF into a searchable PDF.

This command:
1. Checks which pages already carry selectable text
2. Renders and recognizes the pages that do not
3. Places an invisible text layer over each recognized page
4. Writes the result (default: <output-dir>/searchable-<name>.pdf)

Examples:
  # Convert with defaults
  searchable convert scan.pdf

  # German and English text, explicit output path
  searchable convert scan.pdf --language eng+deu -o scan-ocr.pdf

  # Write a YAML report next to the output
  searchable convert scan.pdf --report scan.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringP("output", "o", "", "output file (default: <output-dir>/searchable-<name>.pdf)")
	convertCmd.Flags().String("report", "", "write a YAML conversion report to this file")
	convertCmd.Flags().Bool("progress", false, "print progress to stderr")
}

// conversionReport is the YAML document written by --report
type conversionReport struct {
	Input   string             `yaml:"input"`
	Output  string             `yaml:"output,omitempty"`
	Words   int                `yaml:"words"`
	Outcome *converter.Outcome `yaml:"outcome"`
	Pages   []pageReport       `yaml:"recognized_pages"`
}

type pageReport struct {
	Page       int     `yaml:"page"`
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	Words      int     `yaml:"words"`
	Confidence float64 `yaml:"confidence"`
}

func newReport(input, output string, outcome *converter.Outcome) *conversionReport {
	r := &conversionReport{
		Input:   input,
		Output:  output,
		Words:   outcome.WordCount(),
		Outcome: outcome,
		Pages:   make([]pageReport, 0, len(outcome.Pages)),
	}
	if !outcome.Success {
		r.Output = ""
	}
	for i := range outcome.Pages {
		page := &outcome.Pages[i]
		r.Pages = append(r.Pages, pageReport{
			Page:       page.PageNumber,
			Width:      page.Width,
			Height:     page.Height,
			Words:      len(page.Words),
			Confidence: page.Confidence(),
		})
	}
	return r
}

func writeReport(path string, report *conversionReport) error {
	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	return batch.WriteFileAtomic(path, data)
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() {
		_ = log.Sync()
	}()

	input := args[0]
	data, err := readInput(input)
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = defaultOutputPath(cfg.OutputDir, input)
	}
	reportPath, _ := cmd.Flags().GetString("report")
	showProgress, _ := cmd.Flags().GetBool("progress")

	conv, err := newConverter(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src := converter.NewRenderer(data, cfg.RenderDPI, log)
	opts := converter.Options{
		Language:       cfg.Language,
		PreserveImages: converter.Bool(cfg.PreserveImages),
		MaxPages:       cfg.MaxPages,
	}
	if showProgress {
		opts.Progress = func(p converter.Progress) {
			fmt.Fprintf(os.Stderr, "%-11s %3d%% (page %d/%d)\n", p.Stage, p.Percentage, p.CurrentPage, p.TotalPages)
		}
	}

	outcome := conv.Convert(ctx, data, src, opts)

	if reportPath != "" {
		if err := writeReport(reportPath, newReport(input, output, outcome)); err != nil {
			log.WithError(err).Warn("Failed to write report")
		}
	}

	if !outcome.Success {
		return fmt.Errorf("conversion failed: %w", outcome.Err)
	}

	if err := batch.WriteFileAtomic(output, outcome.Output); err != nil {
		return err
	}

	for _, warning := range outcome.Warnings {
		log.Warn(warning)
	}
	fmt.Printf("Wrote %s (%d pages, %d recognized, %d words, %v)\n",
		output, outcome.PageCount, len(outcome.Pages), outcome.WordCount(), outcome.Duration)
	return nil
}
