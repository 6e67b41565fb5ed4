package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/ttpmap/internal/input"
	"github.com/ppiankov/ttpmap/internal/model"
	"github.com/ppiankov/ttpmap/internal/pipeline"
	"github.com/ppiankov/ttpmap/internal/render"
)

// pipelineOptions are appended to every pipeline the CLI builds
var pipelineOptions []pipeline.Option

var (
	mapFile          string
	mapFocus         string
	mapFormat        string
	outJSON          string
	outMD            string
	mapTimeout       time.Duration
	failOnUnverified bool
)

// mapCmd represents the map command
var mapCmd = &cobra.Command{
	Use:   "map [description...]",
	Short: "Map a description of cyber activity to ATT&CK and NICE codes",
	Long: `Map runs one generate-verify session:
- A language model drafts ATT&CK and/or NICE KSA mappings
- Every claimed code is looked up in the local corpus
- Claimed descriptions are compared with the canonical text
- Unknown codes and contradictions are fed back, up to max_attempts times
- Claims that never verify are flagged as UNVERIFIED

The description comes from the arguments, from --file (HTML files are reduced
to their visible text), or from an interactive prompt when neither is given.

Example:
  ttpmap map "The actor deleted volume shadow copies before encrypting hosts"
  ttpmap map --file incident.html --focus mitre --md report.md
  ttpmap map --focus ksa --format json "Analyst reverse engineered the loader" > report.json
  ttpmap map`,
	RunE: runMap,
}

func init() {
	rootCmd.AddCommand(mapCmd)

	// Input flags
	mapCmd.Flags().StringVarP(&mapFile, "file", "f", "", "read the description from a text or HTML file")
	mapCmd.Flags().StringVar(&mapFocus, "focus", "", "frameworks to map: mitre, ksa or both (prompted when interactive)")

	// Output flags
	mapCmd.Flags().StringVar(&mapFormat, "format", "text", "stdout format: "+strings.Join(render.Formats, ", "))
	mapCmd.Flags().StringVar(&outJSON, "json", "", "also write the JSON report to this path")
	mapCmd.Flags().StringVar(&outMD, "md", "", "also write the Markdown report to this path")
	mapCmd.Flags().BoolVar(&failOnUnverified, "fail-on-unverified", false, "exit 2 when claims remain unverified")

	mapCmd.Flags().DurationVar(&mapTimeout, "timeout", 5*time.Minute, "overall session timeout")
}

func runMap(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	renderer, err := render.NewRenderer(mapFormat)
	if err != nil {
		return codeError(exitConfig, err, "%s", err)
	}

	var focus model.Focus
	if mapFocus != "" {
		if focus, err = model.ParseFocus(mapFocus); err != nil {
			return codeError(exitConfig, err, "%s", err)
		}
	}

	// Resolve a one-shot description before paying for corpus loading
	var text string
	switch {
	case mapFile != "" && len(args) > 0:
		return codeError(exitConfig, nil, "give either a description or --file, not both")
	case mapFile != "":
		if text, err = input.ReadFile(mapFile, input.DefaultMaxBytes); err != nil {
			return fmt.Errorf("read input: %w", err)
		}
	case len(args) > 0:
		if text, err = input.FromArgs(args); err != nil {
			return codeError(exitConfig, err, "%s", err)
		}
	}

	opts := append([]pipeline.Option{pipeline.WithLogger(logger)}, pipelineOptions...)
	p, err := pipeline.NewPipeline(cfg, opts...)
	if err != nil {
		return err
	}
	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "✓ Loaded corpus: %d records\n", p.Corpus().Len())
		fmt.Fprintf(os.Stderr, "✓ Generator: %s/%s\n", p.ProviderName(), cfg.LLM.Model)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if text == "" {
		return runInteractive(ctx, cmd, p, renderer, focus)
	}
	if focus == "" {
		focus = model.FocusBoth
	}

	report, err := mapOnce(ctx, p, text, focus)
	if err != nil {
		return err
	}
	if err := writeReport(cmd.OutOrStdout(), renderer, report); err != nil {
		return err
	}
	if err := writeReportFiles(report, outJSON, outMD); err != nil {
		return err
	}

	if failOnUnverified && !report.Verified() {
		return fmt.Errorf("%w: %d of %d claims unverified after %d attempts",
			model.ErrExhausted, len(report.Unresolved), len(report.Results), report.Attempts)
	}
	return nil
}

func mapOnce(ctx context.Context, p *pipeline.Pipeline, text string, focus model.Focus) (*model.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, mapTimeout)
	defer cancel()

	if verbose {
		fmt.Fprintf(os.Stderr, "⚙️  Mapping (%s focus)...\n", focus)
	}
	report, err := p.Map(ctx, text, focus)
	if err != nil {
		return nil, err
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "✓ %s after %d attempt(s), grounding %d/100\n",
			report.Outcome, report.Attempts, report.Score.Index)
	}
	return report, nil
}

// runInteractive prompts for descriptions until exit, quit or end of input
func runInteractive(ctx context.Context, cmd *cobra.Command, p *pipeline.Pipeline, renderer render.Renderer, focus model.Focus) error {
	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "ttpmap interactive mode. Type 'file' to load a description from a file, 'exit' to quit.")
	for {
		line, ok := prompt(in, out, "\nDescribe the activity: ")
		if !ok {
			return nil
		}
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "file":
			path, ok := prompt(in, out, "Path: ")
			if !ok {
				return nil
			}
			text, err := input.ReadFile(path, input.DefaultMaxBytes)
			if err != nil {
				fmt.Fprintf(out, "✗ %v\n", err)
				continue
			}
			line = text
		}

		sessionFocus := focus
		if sessionFocus == "" {
			answer, ok := prompt(in, out, "Focus [mitre/ksa/both] (default both): ")
			if !ok {
				return nil
			}
			parsed, err := model.ParseFocus(answer)
			if err != nil {
				fmt.Fprintf(out, "✗ %v\n", err)
				continue
			}
			sessionFocus = parsed
		}

		report, err := mapOnce(ctx, p, line, sessionFocus)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			// a failed session does not end the interactive loop
			fmt.Fprintf(out, "✗ %v\n", err)
			continue
		}
		if err := writeReport(out, renderer, report); err != nil {
			return err
		}
	}
}

// prompt writes label and reads one trimmed line; ok is false at end of input
func prompt(in *bufio.Reader, out io.Writer, label string) (string, bool) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", false
	}
	return strings.TrimSpace(line), true
}

func writeReport(w io.Writer, renderer render.Renderer, report *model.Report) error {
	data, err := renderer.Render(report)
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// writeReportFiles writes the optional JSON and Markdown report files
func writeReportFiles(report *model.Report, jsonPath, mdPath string) error {
	for _, out := range []struct {
		format string
		path   string
	}{
		{"json", jsonPath},
		{"md", mdPath},
	} {
		if out.path == "" {
			continue
		}
		renderer, err := render.NewRenderer(out.format)
		if err != nil {
			return err
		}
		data, err := renderer.Render(report)
		if err != nil {
			return fmt.Errorf("render %s: %w", out.format, err)
		}
		if err := os.WriteFile(out.path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", out.path, err)
		}
		fmt.Fprintf(os.Stderr, "✓ Wrote %s: %s\n", strings.ToUpper(out.format), out.path)
	}
	return nil
}
