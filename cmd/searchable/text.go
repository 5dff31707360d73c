package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/searchable/internal/batch"
	"github.com/platinummonkey/searchable/internal/converter"
	"github.com/platinummonkey/searchable/internal/layout"
	"github.com/platinummonkey/searchable/internal/ocr"
	"github.com/platinummonkey/searchable/internal/pdfinfo"
)

// pageSeparator ends every page of the text export
const pageSeparator = "\f"

// textCmd represents the text command
var textCmd = &cobra.Command{
	Use:   "text <input.pdf>",
	Short: "Export the text of a PDF, recognizing scanned pages",
	Long: `Print the text of every page. Pages with selectable text are read
directly; the others are recognized. Recognized tables keep their columns
as tab-separated cells. Pages end with a form feed.

Examples:
  searchable text scan.pdf > scan.txt

  # Also write a text-only PDF
  searchable text scan.pdf --pdf scan-text.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: runText,
}

func init() {
	rootCmd.AddCommand(textCmd)

	textCmd.Flags().StringP("output", "o", "", "write text to this file instead of stdout")
	textCmd.Flags().String("pdf", "", "also write a text-only PDF of the recognized pages")
}

func runText(cmd *cobra.Command, args []string) error {
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

	conv, err := newConverter(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src := converter.NewRenderer(data, cfg.RenderDPI, log)
	outcome := conv.Convert(ctx, data, src, converter.Options{
		Language:       cfg.Language,
		PreserveImages: converter.Bool(false),
		MaxPages:       cfg.MaxPages,
	})
	if !outcome.Success {
		return fmt.Errorf("text export failed: %w", outcome.Err)
	}

	embedded, err := pdfinfo.LedongthucTextReader{}.TextFragments(data)
	if err != nil {
		log.WithError(err).Warn("Failed to read embedded text, only recognized pages are exported")
		embedded = nil
	}

	text := exportText(outcome.PageCount, outcome.Pages, embedded, layout.New(cfg.Layout))

	if path, _ := cmd.Flags().GetString("output"); path != "" {
		if err := batch.WriteFileAtomic(path, []byte(text)); err != nil {
			return err
		}
	} else if _, err := io.WriteString(cmd.OutOrStdout(), text); err != nil {
		return err
	}

	if path, _ := cmd.Flags().GetString("pdf"); path != "" {
		if err := batch.WriteFileAtomic(path, outcome.Output); err != nil {
			return err
		}
		log.WithFields("output", path, "pages", outcome.Stats.PagesCopied+outcome.Stats.TextLayers).Info("Wrote text-only PDF")
	}
	return nil
}

// exportText builds the text of pageCount pages. Recognized pages use the
// reconstructed copy-friendly stream; the rest use their embedded text.
func exportText(pageCount int, recognized []ocr.PageResult, embedded [][]string, r *layout.Reconstructor) string {
	byPage := make(map[int]*ocr.PageResult, len(recognized))
	for i := range recognized {
		byPage[recognized[i].PageNumber] = &recognized[i]
	}

	var sb strings.Builder
	for page := 1; page <= pageCount; page++ {
		if result, ok := byPage[page]; ok {
			sb.WriteString(layout.Join(r.Reconstruct(result.Words)))
		} else if page <= len(embedded) {
			sb.WriteString(strings.Join(embedded[page-1], ""))
		}
		sb.WriteString(pageSeparator)
	}
	return sb.String()
}
