// Package session coordinates the listening lifecycle: recording, transcription, dispatch,
// and the IPC commands that drive them.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rbright/voxhook/internal/dispatch"
	"github.com/rbright/voxhook/internal/fsm"
	"github.com/rbright/voxhook/internal/hook"
	"github.com/rbright/voxhook/internal/ipc"
	"github.com/rbright/voxhook/internal/journal"
)

// ErrClosed is returned once the controller has shut down.
var ErrClosed = errors.New("session closed")

const (
	defaultHistoryLimit = 20
	releaseTimeout      = 2 * time.Second
	journalTimeout      = 2 * time.Second
)

// Preparer resolves and extracts one utterance.
type Preparer interface {
	Prepare(ctx context.Context, t dispatch.Transcription) (*dispatch.Invocation, dispatch.Outcome)
}

// Submitter queues a prepared invocation. done receives the callback outcome.
type Submitter interface {
	Submit(inv *dispatch.Invocation, done func(dispatch.Outcome)) error
}

// HookSource lists the registered hooks.
type HookSource interface {
	List() []hook.Definition
}

// Journal persists utterance outcomes.
type Journal interface {
	Append(ctx context.Context, r journal.Record) (journal.Record, error)
	Recent(ctx context.Context, limit int) ([]journal.Record, error)
}

// Indicator is the session-facing subset of indicator behavior.
type Indicator interface {
	ShowRecording(context.Context)
	ShowProcessing(context.Context)
	ShowNotice(context.Context, string)
	ShowError(context.Context, string)
	CueComplete(context.Context)
	CueCancel(context.Context)
	Hide(context.Context)
}

type noopIndicator struct{}

func (noopIndicator) ShowRecording(context.Context)      {}
func (noopIndicator) ShowProcessing(context.Context)     {}
func (noopIndicator) ShowNotice(context.Context, string) {}
func (noopIndicator) ShowError(context.Context, string)  {}
func (noopIndicator) CueComplete(context.Context)        {}
func (noopIndicator) CueCancel(context.Context)          {}
func (noopIndicator) Hide(context.Context)               {}

type noopJournal struct{}

func (noopJournal) Append(_ context.Context, r journal.Record) (journal.Record, error) { return r, nil }
func (noopJournal) Recent(context.Context, int) ([]journal.Record, error)             { return nil, nil }

// inlineSubmitter runs the callback on the caller's goroutine.
type inlineSubmitter struct{}

func (inlineSubmitter) Submit(inv *dispatch.Invocation, done func(dispatch.Outcome)) error {
	outcome := inv.Invoke(context.Background())
	if done != nil {
		done(outcome)
	}
	return nil
}

// Options wires controller collaborators. Only Dispatcher is required.
type Options struct {
	Logger      *slog.Logger
	Transcriber Transcriber
	Dispatcher  Preparer
	Executor    Submitter
	Hooks       HookSource
	Journal     Journal
	Indicator   Indicator
	// Release runs best-effort when recording stops, e.g. release_cmd.
	Release func(context.Context) error
	NewID   func() string
	Now     func() time.Time
}

// Controller owns session state and serves IPC commands.
type Controller struct {
	logger      *slog.Logger
	transcriber Transcriber
	dispatcher  Preparer
	executor    Submitter
	hooks       HookSource
	journal     Journal
	indicator   Indicator
	release     func(context.Context) error
	newID       func() string
	now         func() time.Time

	baseCtx  context.Context
	shutdown context.CancelFunc
	wg       sync.WaitGroup

	// op serializes lifecycle commands; mu guards the fields below it.
	op          sync.Mutex
	mu          sync.RWMutex
	state       fsm.State
	cancelWork  context.CancelFunc
	lastOutcome *journal.Record
}

// NewController constructs a controller with no-op fallbacks for optional collaborators.
func NewController(opts Options) *Controller {
	c := &Controller{
		logger:      opts.Logger,
		transcriber: opts.Transcriber,
		dispatcher:  opts.Dispatcher,
		executor:    opts.Executor,
		hooks:       opts.Hooks,
		journal:     opts.Journal,
		indicator:   opts.Indicator,
		release:     opts.Release,
		newID:       opts.NewID,
		now:         opts.Now,
		state:       fsm.StateIdle,
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.transcriber == nil {
		c.transcriber = PlaceholderTranscriber{}
	}
	if c.executor == nil {
		c.executor = inlineSubmitter{}
	}
	if c.journal == nil {
		c.journal = noopJournal{}
	}
	if c.indicator == nil {
		c.indicator = noopIndicator{}
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.baseCtx, c.shutdown = context.WithCancel(context.Background())
	return c
}

// State returns the current session state.
func (c *Controller) State() fsm.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// LastOutcome returns the most recently completed utterance, if any.
func (c *Controller) LastOutcome() (journal.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastOutcome == nil {
		return journal.Record{}, false
	}
	return *c.lastOutcome, true
}

// Run blocks until ctx is done, then abandons in-flight work and waits for it to unwind.
func (c *Controller) Run(ctx context.Context) error {
	<-ctx.Done()
	c.Close()
	return nil
}

// Close cancels recording and processing and waits for session goroutines.
func (c *Controller) Close() {
	c.shutdown()

	c.op.Lock()
	if c.State() == fsm.StateRecording {
		_ = c.transcriber.Cancel(context.Background())
		_ = c.transition(fsm.EventCancel)
	}
	c.op.Unlock()

	c.wg.Wait()
	c.indicator.Hide(context.Background())
}

// Start begins recording an utterance.
func (c *Controller) Start() error {
	c.op.Lock()
	defer c.op.Unlock()
	return c.startLocked()
}

func (c *Controller) startLocked() error {
	if c.baseCtx.Err() != nil {
		return ErrClosed
	}
	switch state := c.State(); state {
	case fsm.StateProcessing:
		return ErrBusy
	case fsm.StateRecording:
		return errors.New("already recording")
	}

	if err := c.transition(fsm.EventStart); err != nil {
		return err
	}
	if err := c.transcriber.Start(c.baseCtx); err != nil {
		c.indicator.ShowError(context.Background(), "Unable to start recording")
		c.failAndReset()
		return fmt.Errorf("start recording: %w", err)
	}
	c.indicator.ShowRecording(context.Background())
	c.logger.Info("recording started")
	return nil
}

// Stop ends recording and processes the utterance in the background.
func (c *Controller) Stop() error {
	c.op.Lock()
	defer c.op.Unlock()
	return c.stopLocked()
}

func (c *Controller) stopLocked() error {
	switch state := c.State(); state {
	case fsm.StateRecording:
	case fsm.StateProcessing:
		return ErrBusy
	default:
		return fmt.Errorf("cannot stop from state %s", state)
	}

	if err := c.transition(fsm.EventStop); err != nil {
		return err
	}
	ctx := c.beginWork()
	c.indicator.ShowProcessing(context.Background())
	c.runRelease()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.processVoice(ctx)
	}()
	return nil
}

// Toggle starts when idle and stops when recording.
func (c *Controller) Toggle() (string, error) {
	c.op.Lock()
	defer c.op.Unlock()

	if c.State() == fsm.StateRecording {
		return "stop requested", c.stopLocked()
	}
	return "recording", c.startLocked()
}

// Cancel discards an active recording or abandons the utterance being processed.
func (c *Controller) Cancel() (string, error) {
	c.op.Lock()
	defer c.op.Unlock()

	switch state := c.State(); state {
	case fsm.StateRecording:
		_ = c.transcriber.Cancel(context.Background())
		if err := c.transition(fsm.EventCancel); err != nil {
			return "", err
		}
		c.indicator.CueCancel(context.Background())
		c.indicator.Hide(context.Background())
		c.logger.Info("recording cancelled")
		return "recording cancelled", nil
	case fsm.StateProcessing:
		c.mu.RLock()
		cancel := c.cancelWork
		c.mu.RUnlock()
		if cancel != nil {
			cancel()
		}
		return "cancel requested", nil
	default:
		return "", fmt.Errorf("nothing to cancel in state %s", state)
	}
}

// Say dispatches text as if it had been spoken and waits for its outcome.
func (c *Controller) Say(ctx context.Context, text string) (journal.Record, error) {
	c.op.Lock()
	if c.baseCtx.Err() != nil {
		c.op.Unlock()
		return journal.Record{}, ErrClosed
	}
	switch state := c.State(); state {
	case fsm.StateIdle:
	case fsm.StateError:
		c.op.Unlock()
		return journal.Record{}, fmt.Errorf("cannot say from state %s", state)
	default:
		c.op.Unlock()
		return journal.Record{}, ErrBusy
	}
	if err := c.transition(fsm.EventSay); err != nil {
		c.op.Unlock()
		return journal.Record{}, err
	}
	workCtx := c.beginWork()
	c.wg.Add(1)
	c.op.Unlock()

	t := dispatch.Transcription{ID: c.newID(), Text: text, At: c.now()}
	reply := make(chan journal.Record, 1)

	go func() {
		defer c.wg.Done()
		c.dispatch(workCtx, t, journal.SourceSay, reply)
	}()

	select {
	case rec := <-reply:
		return rec, nil
	case <-ctx.Done():
		return journal.Record{}, ctx.Err()
	}
}

// processVoice finishes one spoken utterance: transcribe, then dispatch.
func (c *Controller) processVoice(ctx context.Context) {
	id := c.newID()
	at := c.now()

	result, err := c.transcriber.StopAndTranscribe(ctx)
	logger := c.logger.With("utterance_id", id)
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", dispatch.ErrAbandoned, err)
		}
		logger.Warn("transcription failed", "error", err.Error(), "audio_device", result.AudioDevice)
		c.complete(dispatch.Outcome{
			UtteranceID: id,
			Kind:        dispatch.KindFailed,
			Stage:       fsm.StageReceived,
			Err:         fmt.Errorf("transcribe: %w", err),
		}, journal.SourceVoice, nil)
		c.endWork(true)
		return
	}

	logger.Info("transcription complete",
		"audio_device", result.AudioDevice,
		"bytes_captured", result.BytesCaptured,
		"asr_latency_ms", result.ASRLatency.Milliseconds(),
		"transcript_chars", len(result.Transcript),
	)

	c.dispatch(ctx, dispatch.Transcription{
		ID:          id,
		Text:        result.Transcript,
		At:          at,
		AudioDevice: result.AudioDevice,
	}, journal.SourceVoice, nil)
}

// dispatch prepares t and hands the invocation to the executor. The session returns to idle
// once the invocation is queued; the callback outcome arrives on reply when set.
func (c *Controller) dispatch(ctx context.Context, t dispatch.Transcription, source string, reply chan<- journal.Record) {
	inv, outcome := c.dispatcher.Prepare(ctx, t)
	if inv == nil {
		c.complete(outcome, source, reply)
		c.endWork(outcome.Kind == dispatch.KindFailed)
		return
	}

	err := c.executor.Submit(inv, func(o dispatch.Outcome) {
		c.complete(o, source, reply)
	})
	if err != nil {
		outcome.Kind = dispatch.KindFailed
		outcome.Err = fmt.Errorf("queue %s: %w", inv.HookID(), err)
		c.complete(outcome, source, reply)
		c.endWork(true)
		return
	}
	c.endWork(false)
}

// complete journals o and surfaces it on the indicator.
func (c *Controller) complete(o dispatch.Outcome, source string, reply chan<- journal.Record) {
	rec := journal.FromOutcome(o, c.now(), source)

	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	stored, err := c.journal.Append(ctx, rec)
	cancel()
	if err != nil {
		c.logger.Warn("journal append failed", "utterance_id", o.UtteranceID, "error", err.Error())
	} else {
		rec = stored
	}

	c.mu.Lock()
	c.lastOutcome = &rec
	c.mu.Unlock()

	c.present(o)
	if reply != nil {
		reply <- rec
	}
}

func (c *Controller) present(o dispatch.Outcome) {
	ctx := context.Background()
	switch o.Kind {
	case dispatch.KindInvoked:
		c.indicator.CueComplete(ctx)
		c.indicator.Hide(ctx)
	case dispatch.KindSkipped:
		c.indicator.ShowNotice(ctx, skipNotice(o.Reason))
	case dispatch.KindFailed:
		if errors.Is(o.Err, dispatch.ErrAbandoned) {
			c.indicator.CueCancel(ctx)
			c.indicator.Hide(ctx)
			return
		}
		c.indicator.ShowError(ctx, failureNotice(o))
	}
}

func skipNotice(reason string) string {
	switch reason {
	case dispatch.ReasonEmptyTranscription:
		return "No speech detected"
	default:
		return "No matching command"
	}
}

func failureNotice(o dispatch.Outcome) string {
	switch o.Stage {
	case fsm.StageReceived:
		return "Speech recognition failed"
	case fsm.StageResolutionFailed:
		return "Could not understand the command"
	case fsm.StageExtractionFailed:
		return fmt.Sprintf("Missing details for %s", o.HookID)
	default:
		if o.HookID != "" {
			return fmt.Sprintf("%s failed", o.HookID)
		}
		return ""
	}
}

// beginWork derives the cancellable context for one utterance.
func (c *Controller) beginWork() context.Context {
	ctx, cancel := context.WithCancel(c.baseCtx)
	c.mu.Lock()
	c.cancelWork = cancel
	c.mu.Unlock()
	return ctx
}

// endWork returns the session to idle, through error when failed.
func (c *Controller) endWork(failed bool) {
	c.mu.Lock()
	cancel := c.cancelWork
	c.cancelWork = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	if failed {
		c.failAndReset()
		return
	}
	if err := c.transition(fsm.EventProcessed); err != nil {
		c.logger.Error("session state violation", "error", err.Error())
	}
}

func (c *Controller) runRelease() {
	if c.release == nil {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.baseCtx), releaseTimeout)
		defer cancel()
		if err := c.release(ctx); err != nil {
			c.logger.Warn("release command failed", "error", err.Error())
		}
	}()
}

func (c *Controller) transition(event fsm.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := fsm.Transition(c.state, event)
	if err != nil {
		return err
	}
	c.state = next
	return nil
}

// failAndReset passes through error back to idle.
func (c *Controller) failAndReset() {
	_ = c.transition(fsm.EventFail)
	_ = c.transition(fsm.EventReset)
}

// Handle serves IPC commands.
func (c *Controller) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		resp := c.reply("status")
		if last, ok := c.LastOutcome(); ok {
			resp.Outcome = &last
		}
		return resp
	case ipc.CommandStart:
		if err := c.Start(); err != nil {
			return c.failure(err)
		}
		return c.reply("recording")
	case ipc.CommandStop:
		if err := c.Stop(); err != nil {
			return c.failure(err)
		}
		return c.reply("stop requested")
	case ipc.CommandToggle:
		message, err := c.Toggle()
		if err != nil {
			return c.failure(err)
		}
		return c.reply(message)
	case ipc.CommandCancel:
		message, err := c.Cancel()
		if err != nil {
			return c.failure(err)
		}
		return c.reply(message)
	case ipc.CommandSay:
		if strings.TrimSpace(req.Text) == "" {
			return c.failure(errors.New("say requires text"))
		}
		rec, err := c.Say(ctx, req.Text)
		if err != nil {
			return c.failure(err)
		}
		resp := c.reply(rec.Summary())
		resp.Outcome = &rec
		return resp
	case ipc.CommandHooks:
		resp := c.reply(fmt.Sprintf("%d hooks", len(c.hookList())))
		resp.Hooks = Summaries(c.hookList())
		return resp
	case ipc.CommandHistory:
		limit := req.Limit
		if limit <= 0 {
			limit = defaultHistoryLimit
		}
		records, err := c.journal.Recent(ctx, limit)
		if err != nil {
			return c.failure(fmt.Errorf("read history: %w", err))
		}
		resp := c.reply(fmt.Sprintf("%d records", len(records)))
		resp.History = records
		return resp
	default:
		return c.failure(fmt.Errorf("unknown command: %s", req.Command))
	}
}

func (c *Controller) hookList() []hook.Definition {
	if c.hooks == nil {
		return nil
	}
	return c.hooks.List()
}

func (c *Controller) reply(message string) ipc.Response {
	return ipc.Response{OK: true, State: string(c.State()), Message: message}
}

func (c *Controller) failure(err error) ipc.Response {
	return ipc.Response{OK: false, State: string(c.State()), Error: err.Error()}
}

// Summaries describes hooks for the hooks command.
func Summaries(defs []hook.Definition) []ipc.HookSummary {
	out := make([]ipc.HookSummary, 0, len(defs))
	for _, def := range defs {
		params := make([]string, 0, len(def.Schema))
		for _, p := range def.Schema {
			label := fmt.Sprintf("%s:%s", p.Name, p.Type)
			if p.Required {
				label += "!"
			}
			params = append(params, label)
		}
		out = append(out, ipc.HookSummary{ID: def.ID, Task: def.Task, Matching: def.Matching, Params: params})
	}
	return out
}
