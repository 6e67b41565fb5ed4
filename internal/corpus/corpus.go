package corpus

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/ttpmap/internal/model"
)

// Corpus is the in-memory index of authoritative framework records.
// It is immutable after Load and safe for concurrent readers.
type Corpus struct {
	index   map[model.RecordKey]model.FrameworkRecord
	ordered []model.FrameworkRecord // load order, first occurrence only

	files   []string
	skipped int
	dupes   int
}

// Stats summarizes what was loaded
type Stats struct {
	Total       int                      `json:"total"`
	ByFramework map[model.Framework]int  `json:"by_framework"`
	ByKind      map[model.RecordKind]int `json:"by_kind"`
	Files       []string                 `json:"files"`
	Skipped     int                      `json:"skipped"`
	Duplicates  int                      `json:"duplicates"`
}

type Option func(*loader)

// WithLogger sets the logger used for skipped files and records
func WithLogger(logger *slog.Logger) Option {
	return func(l *loader) {
		l.logger = logger
	}
}

type loader struct {
	logger *slog.Logger
}

// Load reads every .json, .yaml and .yml file directly under dir.
// Unparseable files and malformed records are skipped with a warning;
// only an unreadable directory is an error.
func Load(dir string, opts ...Option) (*Corpus, error) {
	l := &loader{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(l)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read corpus directory %s: %w", dir, err)
	}

	c := newCorpus()
	for _, entry := range entries {
		if entry.IsDir() || !isCorpusFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		records, skipped, err := readFile(path)
		if err != nil {
			l.logger.Warn("skipping corpus file", "path", path, "error", err)
			c.skipped++
			continue
		}
		for _, s := range skipped {
			l.logger.Warn("skipping corpus record", "path", path, "index", s.index, "reason", s.reason)
		}
		c.skipped += len(skipped)

		for _, rec := range records {
			if !c.add(rec) {
				l.logger.Debug("duplicate corpus record ignored", "path", path, "key", rec.Key().String())
			}
		}
		c.files = append(c.files, entry.Name())
	}

	l.logger.Info("corpus loaded",
		"dir", dir,
		"records", len(c.ordered),
		"files", len(c.files),
		"skipped", c.skipped,
	)
	return c, nil
}

// New builds a corpus from records already in memory. Codes are trimmed and
// later duplicates of a (framework, code) key are dropped.
func New(records []model.FrameworkRecord) *Corpus {
	c := newCorpus()
	for _, rec := range records {
		rec.Code = strings.TrimSpace(rec.Code)
		if rec.Code == "" || rec.Framework == "" {
			c.skipped++
			continue
		}
		c.add(rec)
	}
	return c
}

func newCorpus() *Corpus {
	return &Corpus{index: make(map[model.RecordKey]model.FrameworkRecord)}
}

func (c *Corpus) add(rec model.FrameworkRecord) bool {
	key := rec.Key()
	if _, exists := c.index[key]; exists {
		c.dupes++
		return false
	}
	c.index[key] = rec
	c.ordered = append(c.ordered, rec)
	return true
}

// Lookup is an exact, case-sensitive keyed access on (framework, code)
func (c *Corpus) Lookup(fw model.Framework, code string) (model.FrameworkRecord, bool) {
	rec, ok := c.index[model.RecordKey{Framework: fw, Code: code}]
	return rec, ok
}

// Len returns the number of indexed records
func (c *Corpus) Len() int {
	return len(c.ordered)
}

// Records returns the records of one framework in load order.
// An empty framework returns every record.
func (c *Corpus) Records(fw model.Framework) []model.FrameworkRecord {
	out := make([]model.FrameworkRecord, 0, len(c.ordered))
	for _, rec := range c.ordered {
		if fw == "" || rec.Framework == fw {
			out = append(out, rec)
		}
	}
	return out
}

// Stats returns per-framework and per-kind counts
func (c *Corpus) Stats() Stats {
	st := Stats{
		Total:       len(c.ordered),
		ByFramework: make(map[model.Framework]int),
		ByKind:      make(map[model.RecordKind]int),
		Files:       append([]string(nil), c.files...),
		Skipped:     c.skipped,
		Duplicates:  c.dupes,
	}
	for _, rec := range c.ordered {
		st.ByFramework[rec.Framework]++
		if rec.Kind != "" {
			st.ByKind[rec.Kind]++
		}
	}
	sort.Strings(st.Files)
	return st
}

func isCorpusFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}
