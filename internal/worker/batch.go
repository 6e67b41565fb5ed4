package worker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ppiankov/ttpmap/internal/model"
)

// Mapper runs one mapping session
type Mapper interface {
	Map(ctx context.Context, input string, focus model.Focus) (*model.Report, error)
}

// MapJob represents one description to map
type MapJob struct {
	Input  string
	Focus  model.Focus
	Mapper Mapper
}

// Execute executes the mapping job
func (j *MapJob) Execute(ctx context.Context) Result {
	report, err := j.Mapper.Map(ctx, j.Input, j.Focus)
	return &MapResult{
		Input:  j.Input,
		Report: report,
		Error:  err,
	}
}

// MapResult represents the result of a mapping job
type MapResult struct {
	Input  string
	Report *model.Report
	Error  error
}

// GetError returns the error from the mapping result
func (r *MapResult) GetError() error {
	return r.Error
}

// BatchProcessor maps multiple descriptions concurrently. Sessions share
// the mapper's corpus and provider limiter; each session stays sequential.
type BatchProcessor struct {
	mapper      Mapper
	concurrency int
	logger      *slog.Logger
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(mapper Mapper, concurrency int, logger *slog.Logger) *BatchProcessor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &BatchProcessor{
		mapper:      mapper,
		concurrency: concurrency,
		logger:      logger,
	}
}

// ProcessInputs maps every input with focus and returns exactly one result
// per input, in input order. Sessions never started because ctx ended carry
// the context error.
func (b *BatchProcessor) ProcessInputs(ctx context.Context, inputs []string, focus model.Focus) []*MapResult {
	if len(inputs) == 0 {
		return []*MapResult{}
	}

	pool := NewPoolWithContext(ctx, b.concurrency)
	pool.Start()

	for _, input := range inputs {
		pool.Submit(&MapJob{
			Input:  input,
			Focus:  focus,
			Mapper: b.mapper,
		})
	}

	results := pool.Wait()

	mapResults := make([]*MapResult, len(inputs))
	completed, failed := 0, 0
	for i, input := range inputs {
		var mr *MapResult
		if i < len(results) && results[i] != nil {
			mr = results[i].(*MapResult)
			completed++
		} else {
			mr = &MapResult{Input: input, Error: fmt.Errorf("session not run: %w", contextErr(ctx))}
		}
		if mr.Error != nil {
			failed++
		}
		mapResults[i] = mr
	}

	b.logger.Info("batch finished", "inputs", len(inputs), "completed", completed, "failed", failed)
	return mapResults
}

func contextErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return context.Canceled
}

// ProcessFile reads descriptions from a file and maps them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string, focus model.Focus) ([]*MapResult, error) {
	inputs, err := ReadLinesFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read inputs: %w", err)
	}

	return b.ProcessInputs(ctx, inputs, focus), nil
}

// ReadLinesFromFile reads descriptions from a file (one per line)
func ReadLinesFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return ReadLines(file)
}

// ReadLines returns the non-empty, non-comment lines of r, de-duplicated
func ReadLines(r io.Reader) ([]string, error) {
	var lines []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			lines = append(lines, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return lines, nil
}
