package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/ttpmap/internal/model"
)

// MockMapper implements Mapper
type MockMapper struct {
	ShouldError bool

	mu     sync.Mutex
	inputs []string
}

func (m *MockMapper) Map(ctx context.Context, input string, focus model.Focus) (*model.Report, error) {
	time.Sleep(10 * time.Millisecond) // Simulate work
	m.mu.Lock()
	m.inputs = append(m.inputs, input)
	m.mu.Unlock()

	if m.ShouldError {
		return nil, errors.New("map error")
	}
	return &model.Report{
		Input:   input,
		Focus:   focus,
		Outcome: model.OutcomeAccepted,
	}, nil
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inputs.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBatchProcessor_ProcessInputs(t *testing.T) {
	mapper := &MockMapper{}
	processor := NewBatchProcessor(mapper, 2, nil)

	inputs := []string{"dumped lsass", "wiped shadow copies", "phished the helpdesk"}
	results := processor.ProcessInputs(context.Background(), inputs, model.FocusMITRE)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	for i, res := range results {
		if res.Error != nil {
			t.Errorf("unexpected error for %q: %v", res.Input, res.Error)
			continue
		}
		if res.Input != inputs[i] {
			t.Errorf("result %d: expected input %q, got %q", i, inputs[i], res.Input)
		}
		if res.Report == nil || res.Report.Focus != model.FocusMITRE {
			t.Errorf("result %d: expected report with mitre focus", i)
		}
	}
}

func TestBatchProcessor_ProcessInputs_Error(t *testing.T) {
	processor := NewBatchProcessor(&MockMapper{ShouldError: true}, 2, nil)

	results := processor.ProcessInputs(context.Background(), []string{"x"}, model.FocusBoth)

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Error == nil {
		t.Error("expected error, got nil")
	}
	if results[0].Report != nil {
		t.Error("expected nil report on error")
	}
}

func TestBatchProcessor_ProcessInputs_Empty(t *testing.T) {
	processor := NewBatchProcessor(&MockMapper{}, 2, nil)

	results := processor.ProcessInputs(context.Background(), []string{}, model.FocusBoth)
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestReadLines(t *testing.T) {
	content := `dumped lsass with procdump
# comment
wiped shadow copies
   
dumped lsass with procdump
  phished the helpdesk   `

	lines, err := ReadLines(strings.NewReader(content))
	if err != nil {
		t.Fatalf("ReadLines failed: %v", err)
	}

	expected := []string{"dumped lsass with procdump", "wiped shadow copies", "phished the helpdesk"}
	if len(lines) != len(expected) {
		t.Fatalf("expected %d lines, got %d", len(expected), len(lines))
	}
	for i, line := range lines {
		if line != expected[i] {
			t.Errorf("expected %q at index %d, got %q", expected[i], i, line)
		}
	}
}

func TestReadLinesFromFile_NonExistent(t *testing.T) {
	_, err := ReadLinesFromFile("non_existent_file.txt")
	if err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestMapResult_GetError(t *testing.T) {
	r1 := &MapResult{Input: "x", Error: nil}
	if r1.GetError() != nil {
		t.Errorf("expected nil error, got %v", r1.GetError())
	}

	expected := errors.New("map failed")
	r2 := &MapResult{Input: "x", Error: expected}
	if r2.GetError() != expected {
		t.Errorf("expected %v, got %v", expected, r2.GetError())
	}
}

func TestBatchProcessor_ProcessFile(t *testing.T) {
	path := writeTemp(t, "one\ntwo\n# comment\n\nthree\n")

	mapper := &MockMapper{}
	processor := NewBatchProcessor(mapper, 2, nil)

	results, err := processor.ProcessFile(context.Background(), path, model.FocusBoth)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("expected 3 results, got %d", len(results))
	}
	if len(mapper.inputs) != 3 {
		t.Errorf("expected 3 mapper calls, got %d", len(mapper.inputs))
	}
}

func TestBatchProcessor_ProcessFile_NonExistent(t *testing.T) {
	processor := NewBatchProcessor(&MockMapper{}, 2, nil)

	_, err := processor.ProcessFile(context.Background(), "no_such_file.txt", model.FocusBoth)
	if err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestBatchProcessor_ProcessFile_Empty(t *testing.T) {
	path := writeTemp(t, "")

	processor := NewBatchProcessor(&MockMapper{}, 2, nil)

	results, err := processor.ProcessFile(context.Background(), path, model.FocusBoth)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected 0 results for empty file, got %d", len(results))
	}
}

// slowMapper takes delay per session and honours cancellation
type slowMapper struct {
	delay time.Duration
}

func (m *slowMapper) Map(ctx context.Context, input string, focus model.Focus) (*model.Report, error) {
	select {
	case <-time.After(m.delay):
		return &model.Report{Input: input, Focus: focus, Outcome: model.OutcomeAccepted}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestBatchProcessor_ProcessInputs_TimeoutKeepsEveryInput(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 75*time.Millisecond)
	defer cancel()

	inputs := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	processor := NewBatchProcessor(&slowMapper{delay: 50 * time.Millisecond}, 1, nil)

	results := processor.ProcessInputs(ctx, inputs, model.FocusBoth)
	if len(results) != len(inputs) {
		t.Fatalf("expected %d results, got %d", len(inputs), len(results))
	}

	failed := 0
	for i, res := range results {
		if res.Input != inputs[i] {
			t.Errorf("result %d: expected input %q, got %q", i, inputs[i], res.Input)
		}
		if res.Error != nil {
			failed++
			if !errors.Is(res.Error, context.DeadlineExceeded) {
				t.Errorf("result %d: expected deadline error, got %v", i, res.Error)
			}
		}
	}
	if results[0].Error != nil {
		t.Errorf("expected first session to finish, got %v", results[0].Error)
	}
	if failed < 6 {
		t.Errorf("expected at least 6 failed sessions, got %d", failed)
	}
}
