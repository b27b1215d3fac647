package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rbright/voxhook/internal/dispatch"
	"github.com/rbright/voxhook/internal/fsm"
	"github.com/rbright/voxhook/internal/hook"
	"github.com/rbright/voxhook/internal/intent"
	"github.com/rbright/voxhook/internal/ipc"
	"github.com/rbright/voxhook/internal/journal"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeResolver struct {
	calls atomic.Int32
	block chan struct{}
	match intent.MatchResult
}

func (f *fakeResolver) Resolve(ctx context.Context, _ string, _ []hook.Definition) (intent.MatchResult, error) {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return intent.NoMatch, ctx.Err()
		}
	}
	return f.match, nil
}

type fakeExtractor struct {
	args hook.Arguments
}

func (f fakeExtractor) Extract(context.Context, string, hook.Definition) (hook.Arguments, error) {
	return f.args, nil
}

type fakeTranscriber struct {
	startErr    error
	transcript  string
	stopErr     error
	starts      atomic.Int32
	cancelCalls atomic.Int32
}

func (f *fakeTranscriber) Start(context.Context) error {
	f.starts.Add(1)
	return f.startErr
}

func (f *fakeTranscriber) StopAndTranscribe(context.Context) (StopResult, error) {
	return StopResult{Transcript: f.transcript, AudioDevice: "test mic", BytesCaptured: 3200}, f.stopErr
}

func (f *fakeTranscriber) Cancel(context.Context) error {
	f.cancelCalls.Add(1)
	return nil
}

type fakeIndicator struct {
	recording atomic.Int32
	complete  atomic.Int32
	cancels   atomic.Int32
	errors    atomic.Int32

	mu      sync.Mutex
	notices []string
}

func (f *fakeIndicator) ShowRecording(context.Context)     { f.recording.Add(1) }
func (*fakeIndicator) ShowProcessing(context.Context)      {}
func (f *fakeIndicator) ShowError(context.Context, string) { f.errors.Add(1) }
func (f *fakeIndicator) CueComplete(context.Context)       { f.complete.Add(1) }
func (f *fakeIndicator) CueCancel(context.Context)         { f.cancels.Add(1) }
func (*fakeIndicator) Hide(context.Context)                {}

func (f *fakeIndicator) ShowNotice(_ context.Context, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, text)
}

type memoryJournal struct {
	mu      sync.Mutex
	records []journal.Record
}

func (m *memoryJournal) Append(_ context.Context, r journal.Record) (journal.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.Seq = uint64(len(m.records) + 1)
	m.records = append(m.records, r)
	return r, nil
}

func (m *memoryJournal) Recent(_ context.Context, limit int) ([]journal.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]journal.Record, 0, len(m.records))
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

func (m *memoryJournal) snapshot() []journal.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]journal.Record(nil), m.records...)
}

type rejectingSubmitter struct{}

func (rejectingSubmitter) Submit(*dispatch.Invocation, func(dispatch.Outcome)) error {
	return dispatch.ErrQueueFull
}

type harness struct {
	ctrl        *Controller
	resolver    *fakeResolver
	transcriber *fakeTranscriber
	indicator   *fakeIndicator
	journal     *memoryJournal
	invoked     chan hook.Arguments
	released    atomic.Int32
}

func newHarness(t *testing.T, configure func(*Options)) *harness {
	t.Helper()

	h := &harness{
		resolver:    &fakeResolver{match: intent.MatchResult{HookID: "INSERT_TEXT", Confidence: 0.9}},
		transcriber: &fakeTranscriber{transcript: "write hello world please"},
		indicator:   &fakeIndicator{},
		journal:     &memoryJournal{},
		invoked:     make(chan hook.Arguments, 4),
	}

	reg := hook.NewRegistry()
	require.NoError(t, reg.RegisterHook("INSERT_TEXT", "Insert text", "User dictates text to insert.",
		hook.Schema{{Name: "inserted_text", Type: hook.TypeString, Required: true}},
		hook.CallbackFunc(func(_ context.Context, args hook.Arguments) error {
			h.invoked <- args
			return nil
		}),
	))

	extractor := fakeExtractor{args: hook.Arguments{"inserted_text": hook.StringValue("hello world")}}
	executor := dispatch.NewExecutor(dispatch.ExecutorOptions{Workers: 1, QueueSize: 4})
	t.Cleanup(func() { require.NoError(t, executor.Close(context.Background())) })

	ids := atomic.Int32{}
	opts := Options{
		Transcriber: h.transcriber,
		Dispatcher:  dispatch.New(reg, h.resolver, extractor, nil),
		Executor:    executor,
		Hooks:       reg,
		Journal:     h.journal,
		Indicator:   h.indicator,
		Release: func(context.Context) error {
			h.released.Add(1)
			return nil
		},
		NewID: func() string { return "utt-" + string(rune('0'+ids.Add(1))) },
	}
	if configure != nil {
		configure(&opts)
	}
	h.ctrl = NewController(opts)
	t.Cleanup(h.ctrl.Close)
	return h
}

func waitForState(t *testing.T, ctrl *Controller, want fsm.State) {
	t.Helper()
	require.Eventually(t, func() bool { return ctrl.State() == want }, 2*time.Second, 5*time.Millisecond)
}

func waitForRecords(t *testing.T, j *memoryJournal, n int) []journal.Record {
	t.Helper()
	require.Eventually(t, func() bool { return len(j.snapshot()) >= n }, 2*time.Second, 5*time.Millisecond)
	return j.snapshot()
}

func TestSayInvokesMatchedHook(t *testing.T) {
	h := newHarness(t, nil)

	rec, err := h.ctrl.Say(context.Background(), "write hello world please")
	require.NoError(t, err)
	require.Equal(t, string(dispatch.KindInvoked), rec.Kind)
	require.Equal(t, "INSERT_TEXT", rec.HookID)
	require.Equal(t, journal.SourceSay, rec.Source)
	require.Equal(t, map[string]any{"inserted_text": "hello world"}, rec.Args)
	require.Equal(t, uint64(1), rec.Seq)

	args := <-h.invoked
	text, ok := args.String("inserted_text")
	require.True(t, ok)
	require.Equal(t, "hello world", text)

	waitForState(t, h.ctrl, fsm.StateIdle)
	require.Equal(t, int32(1), h.indicator.complete.Load())

	last, ok := h.ctrl.LastOutcome()
	require.True(t, ok)
	require.Equal(t, rec.UtteranceID, last.UtteranceID)
}

func TestSayRejectedWhileProcessing(t *testing.T) {
	h := newHarness(t, nil)
	h.resolver.block = make(chan struct{})

	done := make(chan journal.Record, 1)
	go func() {
		rec, _ := h.ctrl.Say(context.Background(), "write something")
		done <- rec
	}()
	waitForState(t, h.ctrl, fsm.StateProcessing)

	_, err := h.ctrl.Say(context.Background(), "write more")
	require.ErrorIs(t, err, ErrBusy)
	require.ErrorIs(t, h.ctrl.Start(), ErrBusy)

	resp := h.ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandStart})
	require.False(t, resp.OK)
	require.Equal(t, string(fsm.StateProcessing), resp.State)
	require.Contains(t, resp.Error, "busy")

	close(h.resolver.block)
	rec := <-done
	require.Equal(t, string(dispatch.KindInvoked), rec.Kind)
	require.Equal(t, int32(1), h.resolver.calls.Load())
}

func TestCancelAbandonsProcessingUtterance(t *testing.T) {
	h := newHarness(t, nil)
	h.resolver.block = make(chan struct{})
	defer close(h.resolver.block)

	done := make(chan journal.Record, 1)
	go func() {
		rec, _ := h.ctrl.Say(context.Background(), "write something")
		done <- rec
	}()
	waitForState(t, h.ctrl, fsm.StateProcessing)

	message, err := h.ctrl.Cancel()
	require.NoError(t, err)
	require.Equal(t, "cancel requested", message)

	rec := <-done
	require.Equal(t, string(dispatch.KindFailed), rec.Kind)
	require.Equal(t, string(fsm.StageResolutionFailed), rec.Stage)
	require.Contains(t, rec.Error, dispatch.ErrAbandoned.Error())
	require.Empty(t, h.invoked)
	require.Equal(t, int32(1), h.indicator.cancels.Load())

	waitForState(t, h.ctrl, fsm.StateIdle)
}

func TestVoiceUtteranceLifecycle(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.ctrl.Start())
	require.Equal(t, fsm.StateRecording, h.ctrl.State())
	require.Equal(t, int32(1), h.indicator.recording.Load())
	require.Error(t, h.ctrl.Start())

	require.NoError(t, h.ctrl.Stop())
	records := waitForRecords(t, h.journal, 1)
	require.Equal(t, journal.SourceVoice, records[0].Source)
	require.Equal(t, "write hello world please", records[0].Transcript)
	require.Equal(t, string(dispatch.KindInvoked), records[0].Kind)

	<-h.invoked
	waitForState(t, h.ctrl, fsm.StateIdle)
	require.Eventually(t, func() bool { return h.released.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestEmptyTranscriptIsSkipped(t *testing.T) {
	h := newHarness(t, nil)
	h.transcriber.transcript = "   "

	require.NoError(t, h.ctrl.Start())
	require.NoError(t, h.ctrl.Stop())

	records := waitForRecords(t, h.journal, 1)
	require.Equal(t, string(dispatch.KindSkipped), records[0].Kind)
	require.Equal(t, dispatch.ReasonEmptyTranscription, records[0].Reason)
	require.Zero(t, h.resolver.calls.Load())

	waitForState(t, h.ctrl, fsm.StateIdle)
	h.indicator.mu.Lock()
	require.Equal(t, []string{"No speech detected"}, h.indicator.notices)
	h.indicator.mu.Unlock()
}

func TestTranscriptionFailureIsJournaled(t *testing.T) {
	h := newHarness(t, nil)
	h.transcriber.stopErr = errors.New("asr unavailable")

	require.NoError(t, h.ctrl.Start())
	require.NoError(t, h.ctrl.Stop())

	records := waitForRecords(t, h.journal, 1)
	require.Equal(t, string(dispatch.KindFailed), records[0].Kind)
	require.Equal(t, string(fsm.StageReceived), records[0].Stage)
	require.Contains(t, records[0].Error, "asr unavailable")
	waitForState(t, h.ctrl, fsm.StateIdle)
	require.Equal(t, int32(1), h.indicator.errors.Load())
}

func TestStartFailureReturnsToIdle(t *testing.T) {
	h := newHarness(t, nil)
	h.transcriber.startErr = errors.New("no audio input devices found")

	err := h.ctrl.Start()
	require.ErrorContains(t, err, "start recording: no audio input devices found")
	require.Equal(t, fsm.StateIdle, h.ctrl.State())
	require.Equal(t, int32(1), h.indicator.errors.Load())
}

func TestCancelRecording(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.ctrl.Cancel()
	require.ErrorContains(t, err, "nothing to cancel")

	require.NoError(t, h.ctrl.Start())
	message, err := h.ctrl.Cancel()
	require.NoError(t, err)
	require.Equal(t, "recording cancelled", message)
	require.Equal(t, fsm.StateIdle, h.ctrl.State())
	require.Equal(t, int32(1), h.transcriber.cancelCalls.Load())
	require.Empty(t, h.journal.snapshot())
}

func TestToggle(t *testing.T) {
	h := newHarness(t, nil)

	message, err := h.ctrl.Toggle()
	require.NoError(t, err)
	require.Equal(t, "recording", message)
	require.Equal(t, fsm.StateRecording, h.ctrl.State())

	message, err = h.ctrl.Toggle()
	require.NoError(t, err)
	require.Equal(t, "stop requested", message)

	waitForRecords(t, h.journal, 1)
	<-h.invoked
}

func TestConcurrentTogglesStartOnce(t *testing.T) {
	h := newHarness(t, nil)

	const callers = 8
	var wg sync.WaitGroup
	var recording, stopping atomic.Int32
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			message, err := h.ctrl.Toggle()
			if err != nil {
				return
			}
			switch message {
			case "recording":
				recording.Add(1)
			case "stop requested":
				stopping.Add(1)
			}
		}()
	}
	wg.Wait()

	// Toggles alternate: every stop follows exactly one start.
	require.GreaterOrEqual(t, recording.Load(), int32(1))
	require.LessOrEqual(t, recording.Load()-stopping.Load(), int32(1))
	require.GreaterOrEqual(t, recording.Load()-stopping.Load(), int32(0))
	require.Equal(t, recording.Load(), h.transcriber.starts.Load())
}

func TestQueueFullFailsUtterance(t *testing.T) {
	h := newHarness(t, func(opts *Options) { opts.Executor = rejectingSubmitter{} })

	rec, err := h.ctrl.Say(context.Background(), "write hello world please")
	require.NoError(t, err)
	require.Equal(t, string(dispatch.KindFailed), rec.Kind)
	require.Equal(t, "INSERT_TEXT", rec.HookID)
	require.Contains(t, rec.Error, dispatch.ErrQueueFull.Error())
	require.Empty(t, h.invoked)
	waitForState(t, h.ctrl, fsm.StateIdle)
}

func TestSkippedUtteranceShowsNotice(t *testing.T) {
	h := newHarness(t, nil)
	h.resolver.match = intent.NoMatch

	rec, err := h.ctrl.Say(context.Background(), "what time is it")
	require.NoError(t, err)
	require.Equal(t, string(dispatch.KindSkipped), rec.Kind)
	require.Equal(t, dispatch.ReasonNoMatch, rec.Reason)

	h.indicator.mu.Lock()
	require.Equal(t, []string{"No matching command"}, h.indicator.notices)
	h.indicator.mu.Unlock()
}

func TestHandleCommands(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	resp := h.ctrl.Handle(ctx, ipc.Request{Command: ipc.CommandStatus})
	require.True(t, resp.OK)
	require.Equal(t, "idle", resp.State)
	require.Nil(t, resp.Outcome)

	resp = h.ctrl.Handle(ctx, ipc.Request{Command: ipc.CommandSay, Text: "  "})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "requires text")

	resp = h.ctrl.Handle(ctx, ipc.Request{Command: ipc.CommandSay, Text: "write hello world please"})
	require.True(t, resp.OK, resp.Error)
	require.Equal(t, "invoked INSERT_TEXT", resp.Message)
	require.NotNil(t, resp.Outcome)
	<-h.invoked

	resp = h.ctrl.Handle(ctx, ipc.Request{Command: ipc.CommandHooks})
	require.True(t, resp.OK)
	require.Equal(t, []ipc.HookSummary{{
		ID:       "INSERT_TEXT",
		Task:     "Insert text",
		Matching: "User dictates text to insert.",
		Params:   []string{"inserted_text:string!"},
	}}, resp.Hooks)

	resp = h.ctrl.Handle(ctx, ipc.Request{Command: ipc.CommandHistory, Limit: 5})
	require.True(t, resp.OK)
	require.Len(t, resp.History, 1)

	resp = h.ctrl.Handle(ctx, ipc.Request{Command: ipc.CommandStatus})
	require.NotNil(t, resp.Outcome)
	require.Equal(t, "INSERT_TEXT", resp.Outcome.HookID)

	resp = h.ctrl.Handle(ctx, ipc.Request{Command: ipc.CommandStop})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "cannot stop from state idle")

	resp = h.ctrl.Handle(ctx, ipc.Request{Command: "reboot"})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "unknown command")
}

func TestCloseCancelsRecordingAndRejectsWork(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.ctrl.Start())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.ctrl.Run(ctx) }()
	cancel()
	require.NoError(t, <-errCh)

	require.Equal(t, fsm.StateIdle, h.ctrl.State())
	require.Equal(t, int32(1), h.transcriber.cancelCalls.Load())
	require.ErrorIs(t, h.ctrl.Start(), ErrClosed)
	_, err := h.ctrl.Say(context.Background(), "write hello")
	require.ErrorIs(t, err, ErrClosed)
}

func TestPlaceholderTranscriber(t *testing.T) {
	ctrl := NewController(Options{})
	defer ctrl.Close()

	require.ErrorIs(t, ctrl.Start(), ErrPipelineUnavailable)
	require.Equal(t, fsm.StateIdle, ctrl.State())
}
