// Package session drives the generate-verify-feedback loop for one mapping request.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/ttpmap/internal/generate"
	"github.com/ppiankov/ttpmap/internal/metrics"
	"github.com/ppiankov/ttpmap/internal/model"
	"github.com/ppiankov/ttpmap/internal/score"
)

// Verifier grounds claims against the corpus
type Verifier interface {
	Verify(claims []model.ClaimedMapping) []model.VerificationResult
}

// Runner executes sessions. It holds no per-session state and may be
// shared by concurrent callers when its collaborators are.
type Runner struct {
	generator   generate.Generator
	verifier    Verifier
	suggester   Suggester
	scorer      *score.Scorer
	maxAttempts int
	logger      *slog.Logger
	metrics     *metrics.Metrics

	newID func() string
	now   func() time.Time
}

type Option func(*Runner)

// WithMaxAttempts bounds generator invocations; values below 1 are ignored
func WithMaxAttempts(n int) Option {
	return func(r *Runner) {
		if n >= 1 {
			r.maxAttempts = n
		}
	}
}

// WithSuggester adds corpus replacements for unknown codes and records related
// to the activity to failing feedback
func WithSuggester(s Suggester) Option {
	return func(r *Runner) {
		r.suggester = s
	}
}

// WithLogger sets the session logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithMetrics records session outcomes
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// New creates a Runner
func New(gen generate.Generator, verifier Verifier, opts ...Option) *Runner {
	r := &Runner{
		generator:   gen,
		verifier:    verifier,
		scorer:      score.NewScorer(),
		maxAttempts: model.DefaultMaxAttempts,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		newID:       uuid.NewString,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// attempt is one generate-verify round
type attempt struct {
	number   int
	draft    *model.Draft
	results  []model.VerificationResult
	verified int
}

// Run maps input onto the frameworks selected by focus.
//
// It returns a report with outcome accepted when every in-focus claim of a
// draft verifies, or exhausted_failed carrying the best draft once the attempt
// bound is reached. Generator failures, malformed drafts and cancellation end
// the session immediately with an error wrapping model.ErrGeneration.
func (r *Runner) Run(ctx context.Context, input string, focus model.Focus) (*model.Report, error) {
	state := model.NewSessionState(r.newID(), r.maxAttempts)
	report := &model.Report{
		SessionID:   state.ID,
		Input:       input,
		Focus:       focus,
		MaxAttempts: state.MaxAttempts,
		StartedAt:   r.now().UTC(),
	}
	logger := r.logger.With("session", state.ID)
	logger.Info("session started", "focus", focus, "max_attempts", state.MaxAttempts)

	var best *attempt
	for {
		if err := advance(&state, model.StateGenerating); err != nil {
			return nil, err
		}
		state.AttemptCount++

		draft, err := r.generator.Generate(ctx, generate.Request{
			Input:    input,
			Focus:    focus,
			Feedback: state.LastFeedback,
			Attempt:  state.AttemptCount,
		})
		if err == nil {
			err = checkDraft(ctx, draft)
		}
		if err != nil {
			return nil, r.fail(&state, logger, err)
		}

		if err := advance(&state, model.StateVerifying); err != nil {
			return nil, err
		}
		claims := draft.FilterByFocus(focus)
		results := r.verifier.Verify(claims)
		cur := &attempt{
			number:   state.AttemptCount,
			draft:    draft,
			results:  results,
			verified: model.CountVerified(results),
		}
		// ties go to the later draft, which has seen more feedback
		if best == nil || cur.verified >= best.verified {
			best = cur
		}

		logger.Debug("attempt verified",
			"attempt", cur.number,
			"claims", len(claims),
			"verified", cur.verified,
			"ignored", len(draft.Mappings)-len(claims),
		)

		record := model.AttemptRecord{Attempt: cur.number, Claims: len(claims), Verified: cur.verified}

		if model.AllVerified(results) {
			report.History = append(report.History, record)
			if err := advance(&state, model.StateAccepted); err != nil {
				return nil, err
			}
			return r.finish(report, &state, cur, logger), nil
		}

		record.Feedback = BuildFeedback(input+"\n"+draft.Narrative, focus, results, r.suggester)
		report.History = append(report.History, record)

		if !state.CanRetry() {
			if err := advance(&state, model.StateExhausted); err != nil {
				return nil, err
			}
			return r.finish(report, &state, best, logger), nil
		}

		if err := advance(&state, model.StateRetrying); err != nil {
			return nil, err
		}
		state.LastFeedback = record.Feedback
		logger.Info("retrying with feedback",
			"attempt", cur.number,
			"unresolved", len(claims)-cur.verified,
		)
	}
}

// checkDraft rejects drafts that cannot be verified meaningfully
func checkDraft(ctx context.Context, draft *model.Draft) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if draft == nil {
		return &model.MalformedDraftError{Err: errors.New("generator returned no draft")}
	}
	return nil
}

func (r *Runner) fail(state *model.SessionState, logger *slog.Logger, err error) error {
	if tErr := advance(state, model.StateFailed); tErr != nil {
		return tErr
	}
	r.metrics.ObserveFailure()
	logger.Error("session failed", "attempt", state.AttemptCount, "error", err)

	if !errors.Is(err, model.ErrGeneration) {
		err = fmt.Errorf("%w: %w", model.ErrGeneration, err)
	}
	return fmt.Errorf("session %s attempt %d: %w", state.ID, state.AttemptCount, err)
}

func (r *Runner) finish(report *model.Report, state *model.SessionState, chosen *attempt, logger *slog.Logger) *model.Report {
	report.Outcome = state.Outcome
	report.Attempts = state.AttemptCount
	report.Draft = chosen.draft
	report.Results = chosen.results
	report.Unresolved = model.Unresolved(chosen.results)
	report.FinishedAt = r.now().UTC()
	report.Score = r.scorer.Calculate(chosen.results, state.AttemptCount, state.MaxAttempts, report.Focus)

	r.metrics.ObserveReport(report)
	logger.Info("session finished",
		"outcome", report.Outcome,
		"attempts", report.Attempts,
		"draft_attempt", chosen.number,
		"verified", chosen.verified,
		"claims", len(chosen.results),
	)
	return report
}
