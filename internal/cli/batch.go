package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/ttpmap/internal/metrics"
	"github.com/ppiankov/ttpmap/internal/model"
	"github.com/ppiankov/ttpmap/internal/pipeline"
	"github.com/ppiankov/ttpmap/internal/render"
	"github.com/ppiankov/ttpmap/internal/util"
	"github.com/ppiankov/ttpmap/internal/worker"
)

var (
	outputDir             string
	batchFocus            string
	batchTimeout          time.Duration
	metricsFile           string
	batchFailOnUnverified bool
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Map many descriptions from a file in parallel",
	Long: `Batch runs one mapping session per line of the input file:
- One description per line; blank lines and # comments are skipped
- Duplicate lines are mapped once
- Sessions run in parallel and share the provider rate limit
- Each session writes a JSON and a Markdown report

Example:
  ttpmap batch incidents.txt
  ttpmap batch incidents.txt --concurrency 8 --output-dir ./reports --focus mitre
  ttpmap batch incidents.txt --metrics-file /var/lib/node_exporter/ttpmap.prom`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().Int("concurrency", 0, "number of concurrent sessions (default concurrency.workers)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./ttpmap-reports", "output directory for reports")
	batchCmd.Flags().StringVar(&batchFocus, "focus", "both", "frameworks to map: mitre, ksa or both")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics in textfile format to this path")
	batchCmd.Flags().BoolVar(&batchFailOnUnverified, "fail-on-unverified", false, "exit 2 when any session ends with unverified claims")

	_ = viper.BindPFlag("concurrency.workers", batchCmd.Flags().Lookup("concurrency"))
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	focus, err := model.ParseFocus(batchFocus)
	if err != nil {
		return codeError(exitConfig, err, "%s", err)
	}
	workers := cfg.Concurrency.Workers
	if workers < 1 {
		workers = 1
	}

	inputs, err := worker.ReadLinesFromFile(file)
	if err != nil {
		return fmt.Errorf("read inputs: %w", err)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  ttpmap Batch Mapping\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s (%d descriptions)\n", file, len(inputs))
	fmt.Fprintf(os.Stderr, "  Focus:        %s\n", focus)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", workers)
	fmt.Fprintf(os.Stderr, "  Generator:    %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	logger := newLogger(cfg)
	m := metrics.New()
	opts := append([]pipeline.Option{pipeline.WithLogger(logger), pipeline.WithMetrics(m)}, pipelineOptions...)
	p, err := pipeline.NewPipeline(cfg, opts...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	processor := worker.NewBatchProcessor(p, workers, logger)
	results := processor.ProcessInputs(ctx, inputs, focus)

	jsonRenderer, _ := render.NewRenderer("json")
	mdRenderer, _ := render.NewRenderer("md")

	accepted, exhausted, failed := 0, 0, 0
	var firstErr error
	fail := func(label string, err error) {
		failed++
		if firstErr == nil {
			firstErr = err
		}
		fmt.Fprintf(os.Stderr, "✗ %s: %v\n", label, err)
	}
	for i, result := range results {
		label := fmt.Sprintf("#%d %s", i+1, util.Truncate(strings.Join(strings.Fields(result.Input), " "), 50))
		if result.Error != nil {
			fail(label, result.Error)
			continue
		}

		base := filepath.Join(outputDir, fmt.Sprintf("%03d-%s", i+1, slugify(result.Input, 40)))
		if err := writeRendered(jsonRenderer, result.Report, base+".json"); err != nil {
			fail(label, err)
			continue
		}
		if err := writeRendered(mdRenderer, result.Report, base+".md"); err != nil {
			fail(label, err)
			continue
		}

		if result.Report.Verified() {
			accepted++
			fmt.Fprintf(os.Stderr, "✓ %s (grounding: %d/100)\n", label, result.Report.Score.Index)
		} else {
			exhausted++
			fmt.Fprintf(os.Stderr, "⚠ %s (grounding: %d/100, %d unverified)\n",
				label, result.Report.Score.Index, len(result.Report.Unresolved))
		}
	}

	if metricsFile != "" {
		if err := m.WriteTextfile(metricsFile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Wrote metrics: %s\n", metricsFile)
	}

	// Summary
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:       %d\n", len(inputs))
	fmt.Fprintf(os.Stderr, "  Accepted:    %d\n", accepted)
	fmt.Fprintf(os.Stderr, "  Unverified:  %d\n", exhausted)
	fmt.Fprintf(os.Stderr, "  Failures:    %d\n", failed)
	fmt.Fprintf(os.Stderr, "  Output:      %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if batchFailOnUnverified && exhausted > 0 {
		return fmt.Errorf("%w: %d of %d sessions ended with unverified claims", model.ErrExhausted, exhausted, len(inputs))
	}
	if failed > 0 && failed == len(results) {
		return fmt.Errorf("all %d sessions failed: %w", failed, firstErr)
	}
	return nil
}

func writeRendered(r render.Renderer, report *model.Report, path string) error {
	data, err := r.Render(report)
	if err != nil {
		return fmt.Errorf("render %s: %w", filepath.Ext(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// slugify turns the start of a description into a file-name-safe slug
func slugify(s string, n int) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if b.Len() >= n {
			break
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "session"
	}
	return slug
}
