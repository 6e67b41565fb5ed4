package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/ttpmap/internal/corpus"
	"github.com/ppiankov/ttpmap/internal/model"
	"github.com/ppiankov/ttpmap/internal/worker"
)

// Corpus file names written by UpdateCorpus
const (
	MITREFile = "mitre_attack.json"
	NICEFile  = "nice_ksa.json"
)

// SourceResult describes one downloaded and converted source
type SourceResult struct {
	Framework model.Framework
	URL       string
	Path      string
	Records   int
	Bytes     int
}

type source struct {
	framework model.Framework
	url       string
	file      string
	convert   func(io.Reader) ([]model.FrameworkRecord, error)
}

// UpdateCorpus downloads the configured upstream sources in parallel and
// writes them as corpus files under cfg.Corpus.Dir. A failed source aborts
// the update; files already written by other sources are kept.
func UpdateCorpus(ctx context.Context, cfg *model.Config, logger *slog.Logger) ([]SourceResult, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var sources []source
	if cfg.Corpus.MITREURL != "" {
		sources = append(sources, source{model.FrameworkMITRE, cfg.Corpus.MITREURL, MITREFile, corpus.ImportSTIX})
	}
	if cfg.Corpus.NICEURL != "" {
		sources = append(sources, source{model.FrameworkKSA, cfg.Corpus.NICEURL, NICEFile, corpus.ImportNICE})
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no corpus sources configured (set corpus.mitre_url or corpus.nice_url)", model.ErrConfiguration)
	}

	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	fetcher := NewFetcher(
		time.Duration(cfg.Corpus.Timeout)*time.Second,
		cfg.Corpus.UserAgent,
		cfg.Corpus.MaxBytes,
		cfg.Corpus.RespectRobots,
		cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy,
		WithHostLimiter(limiter),
	)

	results := make([]SourceResult, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			res, err := updateSource(gctx, fetcher, cfg.Corpus.Dir, src)
			if err != nil {
				return fmt.Errorf("%s corpus: %w", src.framework, err)
			}
			logger.Info("corpus source updated",
				"framework", res.Framework,
				"records", res.Records,
				"bytes", res.Bytes,
				"path", res.Path,
			)
			results[i] = *res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func updateSource(ctx context.Context, fetcher *Fetcher, dir string, src source) (*SourceResult, error) {
	fetched, err := fetcher.FetchWithRetry(ctx, src.url)
	if err != nil {
		return nil, err
	}

	records, err := src.convert(strings.NewReader(fetched.Body))
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no records found in %s", src.url)
	}

	path := filepath.Join(dir, src.file)
	if err := corpus.WriteRecords(path, records); err != nil {
		return nil, err
	}

	return &SourceResult{
		Framework: src.framework,
		URL:       fetched.FinalURL,
		Path:      path,
		Records:   len(records),
		Bytes:     fetched.Meta.Bytes,
	}, nil
}
