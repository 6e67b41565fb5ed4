package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/ttpmap/internal/corpus"
	"github.com/ppiankov/ttpmap/internal/model"
	"github.com/ppiankov/ttpmap/internal/pipeline"
	"github.com/ppiankov/ttpmap/internal/verify"
)

var (
	corpusJSON      bool
	corpusFramework string
	searchLimit     int
	importSTIX      string
	importNICE      string
)

// corpusCmd represents the corpus command
var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Inspect and maintain the knowledge corpus",
	Long: `The corpus is a directory of JSON or YAML files holding the authoritative
ATT&CK technique and NICE KSA records every claim is verified against.

Example:
  ttpmap corpus fetch
  ttpmap corpus import --stix enterprise-attack.json
  ttpmap corpus stats
  ttpmap corpus lookup T1490
  ttpmap corpus search shadow copy deletion --framework mitre`,
}

var corpusStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show record counts per framework and kind",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, c, err := loadCorpus()
		if err != nil {
			return err
		}
		st := c.Stats()
		out := cmd.OutOrStdout()
		if corpusJSON {
			return printJSON(out, st)
		}

		fmt.Fprintf(out, "Records:     %d\n", st.Total)
		for _, fw := range []model.Framework{model.FrameworkMITRE, model.FrameworkKSA} {
			fmt.Fprintf(out, "  %-9s  %d\n", fw, st.ByFramework[fw])
		}
		if len(st.ByKind) > 0 {
			kinds := make([]string, 0, len(st.ByKind))
			for k := range st.ByKind {
				kinds = append(kinds, string(k))
			}
			sort.Strings(kinds)
			fmt.Fprintf(out, "Kinds:\n")
			for _, k := range kinds {
				fmt.Fprintf(out, "  %-9s  %d\n", k, st.ByKind[model.RecordKind(k)])
			}
		}
		fmt.Fprintf(out, "Files:       %s\n", strings.Join(st.Files, ", "))
		fmt.Fprintf(out, "Skipped:     %d\n", st.Skipped)
		fmt.Fprintf(out, "Duplicates:  %d\n", st.Duplicates)
		return nil
	},
}

var corpusLookupCmd = &cobra.Command{
	Use:   "lookup <code>",
	Short: "Show the canonical record for a code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, c, err := loadCorpus()
		if err != nil {
			return err
		}
		frameworks, err := frameworksFlag()
		if err != nil {
			return err
		}

		var found []model.FrameworkRecord
		for _, fw := range frameworks {
			if rec, ok := c.Lookup(fw, args[0]); ok {
				found = append(found, rec)
			}
		}
		if len(found) == 0 {
			return fmt.Errorf("code %q not found in corpus", args[0])
		}

		out := cmd.OutOrStdout()
		if corpusJSON {
			return printJSON(out, found)
		}
		for _, rec := range found {
			printRecord(out, rec)
		}
		return nil
	},
}

var corpusSearchCmd = &cobra.Command{
	Use:   "search <terms...>",
	Short: "Keyword search over names and canonical text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, c, err := loadCorpus()
		if err != nil {
			return err
		}
		var fw model.Framework
		if corpusFramework != "" {
			parsed, ok := model.ParseFramework(corpusFramework)
			if !ok {
				return codeError(exitConfig, nil, "unknown framework %q (expected mitre or ksa)", corpusFramework)
			}
			fw = parsed
		}

		matches := c.Search(fw, args, searchLimit)
		out := cmd.OutOrStdout()
		if corpusJSON {
			return printJSON(out, matches)
		}
		if len(matches) == 0 {
			fmt.Fprintln(out, "No matching records.")
			return nil
		}
		for _, m := range matches {
			fmt.Fprintf(out, "%-12s %-5s [%d] %s\n", m.Record.Code, m.Record.Framework, m.Score,
				verify.Excerpt(m.Record.FullText()))
		}
		return nil
	},
}

var corpusImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Convert an ATT&CK STIX bundle or a NICE components export into corpus files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if importSTIX == "" && importNICE == "" {
			return codeError(exitConfig, nil, "give --stix and/or --nice")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		jobs := []struct {
			src     string
			file    string
			convert func(io.Reader) ([]model.FrameworkRecord, error)
		}{
			{importSTIX, pipeline.MITREFile, corpus.ImportSTIX},
			{importNICE, pipeline.NICEFile, corpus.ImportNICE},
		}
		for _, job := range jobs {
			if job.src == "" {
				continue
			}
			n, err := importFile(job.src, filepath.Join(cfg.Corpus.Dir, job.file), job.convert)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "✓ Imported %d records from %s into %s\n", n, job.src, job.file)
		}
		return nil
	},
}

var corpusFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the configured ATT&CK and NICE sources into the corpus",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "⚙️  Downloading corpus sources into %s...\n", cfg.Corpus.Dir)

		results, err := pipeline.UpdateCorpus(cmd.Context(), cfg, newLogger(cfg))
		if err != nil {
			return fmt.Errorf("fetch corpus: %w", err)
		}
		for _, res := range results {
			fmt.Fprintf(os.Stderr, "✓ %s: %d records (%d bytes) -> %s\n", res.Framework, res.Records, res.Bytes, res.Path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(corpusCmd)
	corpusCmd.AddCommand(corpusStatsCmd, corpusLookupCmd, corpusSearchCmd, corpusImportCmd, corpusFetchCmd)

	corpusCmd.PersistentFlags().BoolVar(&corpusJSON, "json", false, "print JSON instead of text")
	corpusLookupCmd.Flags().StringVar(&corpusFramework, "framework", "", "restrict to mitre or ksa")
	corpusSearchCmd.Flags().StringVar(&corpusFramework, "framework", "", "restrict to mitre or ksa")
	corpusSearchCmd.Flags().IntVar(&searchLimit, "limit", 10, "maximum number of results")
	corpusImportCmd.Flags().StringVar(&importSTIX, "stix", "", "ATT&CK STIX 2.x bundle (enterprise-attack.json)")
	corpusImportCmd.Flags().StringVar(&importNICE, "nice", "", "NICE Framework components JSON export")
}

func loadCorpus() (*model.Config, *corpus.Corpus, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	c, err := corpus.Load(cfg.Corpus.Dir, corpus.WithLogger(newLogger(cfg)))
	if err != nil {
		return nil, nil, codeError(exitConfig, err, "load corpus: %s", err)
	}
	return cfg, c, nil
}

func frameworksFlag() ([]model.Framework, error) {
	if corpusFramework == "" {
		return []model.Framework{model.FrameworkMITRE, model.FrameworkKSA}, nil
	}
	fw, ok := model.ParseFramework(corpusFramework)
	if !ok {
		return nil, codeError(exitConfig, nil, "unknown framework %q (expected mitre or ksa)", corpusFramework)
	}
	return []model.Framework{fw}, nil
}

func importFile(src, dst string, convert func(io.Reader) ([]model.FrameworkRecord, error)) (int, error) {
	f, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", src, err)
	}
	defer func() { _ = f.Close() }()

	records, err := convert(f)
	if err != nil {
		return 0, fmt.Errorf("import %s: %w", src, err)
	}
	if len(records) == 0 {
		return 0, fmt.Errorf("import %s: no records found", src)
	}
	if err := corpus.WriteRecords(dst, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

func printRecord(w io.Writer, rec model.FrameworkRecord) {
	fmt.Fprintf(w, "%s (%s)\n", rec.Code, rec.Framework)
	if rec.Name != "" {
		fmt.Fprintf(w, "  Name: %s\n", rec.Name)
	}
	if rec.Kind != "" {
		fmt.Fprintf(w, "  Kind: %s\n", rec.Kind)
	}
	if rec.URL != "" {
		fmt.Fprintf(w, "  URL:  %s\n", rec.URL)
	}
	fmt.Fprintf(w, "  %s\n", rec.CanonicalText)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
