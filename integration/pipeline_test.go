package integration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/searchable/internal/batch"
	"github.com/platinummonkey/searchable/internal/config"
	"github.com/platinummonkey/searchable/internal/converter"
	"github.com/platinummonkey/searchable/internal/logger"
	"github.com/platinummonkey/searchable/internal/ocr"
	"github.com/platinummonkey/searchable/internal/pdfenhancer"
	"github.com/platinummonkey/searchable/internal/pdfinfo"
	"github.com/platinummonkey/searchable/internal/state"
	"github.com/platinummonkey/searchable/internal/testutil"
)

// scriptedEngine recognizes the same invoice line on every page
type scriptedEngine struct{}

func (scriptedEngine) Recognize(_ context.Context, _ []byte) (*ocr.EngineOutput, error) {
	line := ocr.Line{Words: []ocr.Word{
		ocr.NewWord("Invoice", 96, ocr.NewBBox(10, 10, 70, 24)),
		ocr.NewWord("42", 91, ocr.NewBBox(200, 10, 220, 24)),
	}}
	return &ocr.EngineOutput{
		Text:   "Invoice 42",
		Blocks: []ocr.Block{{Paragraphs: []ocr.Paragraph{{Lines: []ocr.Line{line}}}}},
	}, nil
}

func (scriptedEngine) Close() error { return nil }

func scriptedFactory(string) (ocr.Engine, error) {
	return scriptedEngine{}, nil
}

// pageImages feeds one small image per page of the document
func pageImages(t *testing.T) batch.SourceFactory {
	return func(pdf []byte) converter.PageSource {
		dims, err := pdfinfo.PdfcpuReader{}.PageDims(pdf)
		require.NoError(t, err)
		images := make([][]byte, len(dims))
		for i := range images {
			images[i] = testutil.PNG(t, 150, 200)
		}
		return converter.NewSliceSource(images...)
	}
}

func loadConfig(t *testing.T, root string, extra string) *config.Config {
	t.Helper()
	t.Setenv("HOME", root)

	configPath := filepath.Join(root, "config.yaml")
	content := strings.Join([]string{
		"output-dir: " + filepath.Join(root, "out"),
		"watch-dir: " + filepath.Join(root, "inbox"),
		"state-file: " + filepath.Join(root, "state", "state.json"),
		"max-pages: 3",
		extra,
	}, "\n")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := config.Load(configPath, nil)
	require.NoError(t, err)
	require.NoError(t, cfg.EnsureDirs())
	require.NoError(t, os.MkdirAll(cfg.WatchDir, 0755))
	return cfg
}

func newPipeline(t *testing.T, cfg *config.Config) (*batch.Processor, *state.Manager) {
	t.Helper()
	log := logger.NewNop()

	newWriter, err := pdfenhancer.WriterByName(cfg.Writer)
	require.NoError(t, err)

	conv := converter.New(&converter.Config{
		Logger: log,
		Assembler: pdfenhancer.New(&pdfenhancer.Config{
			Logger:    log,
			Layout:    cfg.Layout,
			Placement: cfg.Placement,
			NewWriter: newWriter,
			Optimize:  cfg.Optimize,
		}),
		EngineFactory: scriptedFactory,
	})

	store, err := state.LoadOrCreate(cfg.StateFile)
	require.NoError(t, err)

	proc, err := batch.New(&batch.Config{
		Config:     cfg,
		Logger:     log,
		StateStore: store,
		Converter:  conv,
		NewSource:  pageImages(t),
	})
	require.NoError(t, err)
	return proc, store
}

// TestWatchPipeline converts an inbox end to end with everything but the engine real
func TestWatchPipeline(t *testing.T) {
	for _, writer := range pdfenhancer.WriterNames() {
		t.Run(writer, func(t *testing.T) {
			root := t.TempDir()
			cfg := loadConfig(t, root, "writer: "+writer)
			proc, store := newPipeline(t, cfg)

			scan := filepath.Join(cfg.WatchDir, "scan.pdf")
			require.NoError(t, os.WriteFile(scan, testutil.PDF(t, testutil.ScannedPage(t), testutil.ScannedPage(t)), 0644))
			mixed := filepath.Join(cfg.WatchDir, "mixed.pdf")
			require.NoError(t, os.WriteFile(mixed, testutil.PDF(t, testutil.TextPage("typed"), testutil.ScannedPage(t)), 0644))
			huge := filepath.Join(cfg.WatchDir, "huge.pdf")
			pages := make([]testutil.Page, 4)
			for i := range pages {
				pages[i] = testutil.ScannedPage(t)
			}
			require.NoError(t, os.WriteFile(huge, testutil.PDF(t, pages...), 0644))

			result, err := proc.Run(context.Background(), nil)
			require.NoError(t, err)
			assert.Equal(t, 3, result.TotalFiles)
			assert.Equal(t, 2, result.SuccessCount, result.Summary())
			assert.Equal(t, 1, result.SkippedCount, "page limit should reject huge.pdf")
			assert.False(t, result.HasFailures(), result.Summary())

			output := filepath.Join(cfg.OutputDir, "searchable-scan.pdf")
			data, err := os.ReadFile(output)
			require.NoError(t, err)

			classified, err := pdfinfo.New(&pdfinfo.Config{Logger: logger.NewNop()}).Classify(context.Background(), data)
			require.NoError(t, err)
			require.Len(t, classified.Pages, 2)
			for i, page := range classified.Pages {
				assert.InDelta(t, 612, page.Width, 0.5, "page %d width", i+1)
				assert.InDelta(t, 792, page.Height, 0.5, "page %d height", i+1)
				if writer == pdfenhancer.WriterFpdf {
					assert.True(t, page.HasSelectableText, "page %d should be searchable", i+1)
				}
			}

			absScan, err := filepath.Abs(scan)
			require.NoError(t, err)
			reloaded, err := state.LoadOrCreate(cfg.StateFile)
			require.NoError(t, err)
			fs := reloaded.GetFile(absScan)
			require.NotNil(t, fs)
			assert.Equal(t, state.ConversionStatusCompleted, fs.Status)
			assert.Equal(t, output, fs.OutputPath)

			// unchanged inbox is a no-op
			result, err = proc.Run(context.Background(), nil)
			require.NoError(t, err)
			assert.Equal(t, 3, result.UnchangedCount)
			assert.Equal(t, 0, result.ProcessedFiles)
			assert.Equal(t, 3, store.Count())
		})
	}
}

// TestTextOnlyPipeline builds text-only output pages sized from the images
func TestTextOnlyPipeline(t *testing.T) {
	root := t.TempDir()
	cfg := loadConfig(t, root, "preserve-images: false")
	proc, _ := newPipeline(t, cfg)

	require.NoError(t, os.WriteFile(filepath.Join(cfg.WatchDir, "scan.pdf"), testutil.PDF(t, testutil.ScannedPage(t)), 0644))

	result, err := proc.Run(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, result.SuccessCount, result.Summary())

	data, err := os.ReadFile(result.Successes[0].OutputPath)
	require.NoError(t, err)

	dims, err := pdfinfo.PdfcpuReader{}.PageDims(data)
	require.NoError(t, err)
	require.Len(t, dims, 1)
	assert.InDelta(t, 150, dims[0].Width, 0.5)
	assert.InDelta(t, 200, dims[0].Height, 0.5)
	assert.Equal(t, 2, result.Successes[0].Words)
}
