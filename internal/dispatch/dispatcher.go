// Package dispatch routes transcriptions through intent resolution and argument extraction
// to exactly one hook callback.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rbright/voxhook/internal/fsm"
	"github.com/rbright/voxhook/internal/hook"
	"github.com/rbright/voxhook/internal/intent"
)

// HookSource lists the hooks available for matching.
type HookSource interface {
	List() []hook.Definition
}

// IntentResolver picks at most one hook.
type IntentResolver interface {
	Resolve(ctx context.Context, transcription string, hooks []hook.Definition) (intent.MatchResult, error)
}

// ArgumentExtractor builds typed arguments for a matched hook.
type ArgumentExtractor interface {
	Extract(ctx context.Context, transcription string, def hook.Definition) (hook.Arguments, error)
}

// Dispatcher orchestrates one utterance at a time.
type Dispatcher struct {
	hooks     HookSource
	resolver  IntentResolver
	extractor ArgumentExtractor
	logger    *slog.Logger
}

// New creates a dispatcher.
func New(hooks HookSource, resolver IntentResolver, extractor ArgumentExtractor, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{
		hooks:     hooks,
		resolver:  resolver,
		extractor: extractor,
		logger:    logger,
	}
}

// Dispatch resolves, extracts, and invokes synchronously.
func (d *Dispatcher) Dispatch(ctx context.Context, t Transcription) Outcome {
	inv, outcome := d.Prepare(ctx, t)
	if inv == nil {
		return outcome
	}
	return inv.Invoke(ctx)
}

// Prepare runs resolution and extraction. A nil invocation means the returned outcome is final.
func (d *Dispatcher) Prepare(ctx context.Context, t Transcription) (*Invocation, Outcome) {
	started := time.Now()
	logger := d.logger.With("utterance_id", t.ID)
	stage := fsm.StageReceived

	finish := func(o Outcome) Outcome {
		o.UtteranceID = t.ID
		o.Transcript = t.Text
		o.Elapsed = time.Since(started)
		logOutcome(logger, o)
		return o
	}
	advance := func(next fsm.Stage) {
		moved, err := fsm.Advance(stage, next)
		if err != nil {
			logger.Error("utterance stage violation", "error", err.Error())
		}
		stage = moved
	}

	text := strings.TrimSpace(t.Text)
	if text == "" {
		advance(fsm.StageSkipped)
		return nil, finish(Outcome{Kind: KindSkipped, Stage: stage, Reason: ReasonEmptyTranscription})
	}

	advance(fsm.StageResolving)
	hooks := d.hooks.List()
	match, err := d.resolver.Resolve(ctx, text, hooks)
	if err != nil {
		advance(fsm.StageResolutionFailed)
		return nil, finish(Outcome{Kind: KindFailed, Stage: stage, Err: abandonedOr(ctx, err)})
	}
	if !match.Matched() {
		advance(fsm.StageSkipped)
		return nil, finish(Outcome{Kind: KindSkipped, Stage: stage, Reason: ReasonNoMatch})
	}

	def, ok := findHook(hooks, match.HookID)
	if !ok {
		advance(fsm.StageSkipped)
		return nil, finish(Outcome{Kind: KindSkipped, Stage: stage, Reason: ReasonNoMatch})
	}

	advance(fsm.StageExtracting)
	args, err := d.extractor.Extract(ctx, text, def)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		advance(fsm.StageExtractionFailed)
		return nil, finish(Outcome{
			Kind:       KindFailed,
			Stage:      stage,
			HookID:     def.ID,
			Confidence: match.Confidence,
			Err:        abandonedOr(ctx, err),
		})
	}

	return &Invocation{
		def:        def,
		args:       args,
		utterance:  t,
		confidence: match.Confidence,
		started:    started,
		logger:     logger,
	}, Outcome{UtteranceID: t.ID, Transcript: t.Text, Stage: stage, HookID: def.ID, Confidence: match.Confidence}
}

// Invocation is a matched hook with extracted arguments, ready to run once.
type Invocation struct {
	def        hook.Definition
	args       hook.Arguments
	utterance  Transcription
	confidence float64
	started    time.Time
	logger     *slog.Logger
	ran        atomic.Bool
}

// HookID returns the matched hook.
func (inv *Invocation) HookID() string { return inv.def.ID }

// Arguments returns a copy of the extracted arguments.
func (inv *Invocation) Arguments() hook.Arguments { return inv.args.Clone() }

// Invoke runs the callback with a private copy of the arguments.
func (inv *Invocation) Invoke(ctx context.Context) (outcome Outcome) {
	outcome = Outcome{
		UtteranceID: inv.utterance.ID,
		Transcript:  inv.utterance.Text,
		Stage:       fsm.StageDispatched,
		HookID:      inv.def.ID,
		Confidence:  inv.confidence,
		Args:        inv.args.Clone(),
	}
	defer func() {
		outcome.Elapsed = time.Since(inv.started)
		logOutcome(inv.logger, outcome)
	}()

	if !inv.ran.CompareAndSwap(false, true) {
		outcome.Kind = KindFailed
		outcome.Err = ErrAlreadyInvoked
		return outcome
	}
	if err := ctx.Err(); err != nil {
		outcome.Kind = KindFailed
		outcome.Err = fmt.Errorf("%w: %w", ErrAbandoned, err)
		return outcome
	}

	if err := runCallback(ctx, inv.def, inv.args.Clone()); err != nil {
		outcome.Kind = KindFailed
		outcome.Err = err
		return outcome
	}
	outcome.Kind = KindInvoked
	return outcome
}

func runCallback(ctx context.Context, def hook.Definition, args hook.Arguments) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &CallbackError{
				HookID: def.ID,
				Panic:  r,
				Err:    fmt.Errorf("panic: %v\n%s", r, debug.Stack()),
			}
		}
	}()

	if cbErr := def.Callback.Invoke(ctx, args); cbErr != nil {
		return &CallbackError{HookID: def.ID, Err: cbErr}
	}
	return nil
}

func findHook(hooks []hook.Definition, id string) (hook.Definition, bool) {
	for _, def := range hooks {
		if def.ID == id {
			return def, true
		}
	}
	return hook.Definition{}, false
}

func abandonedOr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return fmt.Errorf("%w: %w", ErrAbandoned, err)
	}
	return err
}

func logOutcome(logger *slog.Logger, o Outcome) {
	attrs := []any{
		"kind", string(o.Kind),
		"stage", string(o.Stage),
		"elapsed_ms", o.Elapsed.Milliseconds(),
	}
	if o.HookID != "" {
		attrs = append(attrs, "hook", o.HookID, "confidence", o.Confidence)
	}
	if o.Reason != "" {
		attrs = append(attrs, "reason", o.Reason)
	}

	switch o.Kind {
	case KindFailed:
		attrs = append(attrs, "error", o.Err.Error())
		logger.Warn("utterance failed", attrs...)
	case KindInvoked:
		logger.Info("utterance dispatched", attrs...)
	case KindSkipped:
		logger.Info("utterance skipped", attrs...)
	}
}
