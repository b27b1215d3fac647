// Package intent selects at most one registered hook for an utterance.
package intent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/rbright/voxhook/internal/hook"
	"github.com/rbright/voxhook/internal/nlu"
)

// ErrResolutionTimeout is returned when classification exceeds its deadline or the
// service is temporarily unavailable.
var ErrResolutionTimeout = errors.New("intent resolution timed out")

// DefaultMinConfidence is the candidate threshold when Options leaves it unset.
const DefaultMinConfidence = 0.5

const tieEpsilon = 1e-9

// MatchResult is NoMatch (zero value) or a matched hook with its confidence.
type MatchResult struct {
	HookID     string
	Confidence float64
}

// NoMatch is the empty match.
var NoMatch = MatchResult{}

// Matched reports whether a hook was selected.
func (m MatchResult) Matched() bool { return m.HookID != "" }

// Options tunes resolver behavior.
type Options struct {
	Timeout time.Duration
	// MinConfidence of zero selects DefaultMinConfidence; use a negative value to accept every candidate.
	MinConfidence float64
	Context       string
	Logger        *slog.Logger
}

// Resolver maps transcriptions onto registered hooks.
type Resolver struct {
	classifier    nlu.IntentClassifier
	timeout       time.Duration
	minConfidence float64
	context       string
	logger        *slog.Logger
}

// NewResolver creates a resolver backed by classifier.
func NewResolver(classifier nlu.IntentClassifier, opts Options) *Resolver {
	minConfidence := opts.MinConfidence
	switch {
	case minConfidence == 0:
		minConfidence = DefaultMinConfidence
	case minConfidence < 0:
		minConfidence = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{
		classifier:    classifier,
		timeout:       opts.Timeout,
		minConfidence: minConfidence,
		context:       opts.Context,
		logger:        logger,
	}
}

// Resolve classifies transcription against hooks.
func (r *Resolver) Resolve(ctx context.Context, transcription string, hooks []hook.Definition) (MatchResult, error) {
	if len(hooks) == 0 {
		return NoMatch, nil
	}
	if r.classifier == nil {
		return NoMatch, errors.New("intent classifier is not configured")
	}

	req := nlu.ClassifyRequest{
		Transcription: transcription,
		Context:       r.context,
		Hooks:         make([]nlu.HookSummary, 0, len(hooks)),
	}
	for _, def := range hooks {
		req.Hooks = append(req.Hooks, nlu.HookSummary{ID: def.ID, Task: def.Task, Matching: def.Matching})
	}

	callCtx := ctx
	cancel := context.CancelFunc(func() {})
	if r.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
	}
	defer cancel()

	started := time.Now()
	classification, err := r.classifier.Classify(callCtx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return NoMatch, ctxErr
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, nlu.ErrTransient) {
			return NoMatch, fmt.Errorf("%w: %w", ErrResolutionTimeout, err)
		}
		r.logger.Warn("intent classification failed; treating as no match",
			"error", err.Error(),
			"malformed", errors.Is(err, nlu.ErrMalformedResponse),
		)
		return NoMatch, nil
	}

	result := reduce(classification, hooks, r.minConfidence)
	r.logger.Debug("intent resolved",
		"hook", result.HookID,
		"confidence", result.Confidence,
		"candidates", len(classification.Candidates),
		"latency_ms", time.Since(started).Milliseconds(),
	)
	return result, nil
}

// reduce picks the best known candidate at or above threshold. Ties go to registration order.
func reduce(c nlu.Classification, hooks []hook.Definition, threshold float64) MatchResult {
	if c.NoMatch && len(c.Candidates) == 0 {
		return NoMatch
	}

	best := make(map[string]float64, len(c.Candidates))
	for _, cand := range c.Candidates {
		if math.IsNaN(cand.Confidence) {
			continue
		}
		if prev, seen := best[cand.HookID]; !seen || cand.Confidence > prev {
			best[cand.HookID] = cand.Confidence
		}
	}

	// Registration order: a later hook must beat the current winner by more than tieEpsilon.
	result := NoMatch
	for _, def := range hooks {
		confidence, ok := best[def.ID]
		if !ok || confidence < threshold {
			continue
		}
		if !result.Matched() || confidence > result.Confidence+tieEpsilon {
			result = MatchResult{HookID: def.ID, Confidence: confidence}
		}
	}
	return result
}
