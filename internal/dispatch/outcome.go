package dispatch

import (
	"errors"
	"fmt"
	"time"

	"github.com/rbright/voxhook/internal/fsm"
	"github.com/rbright/voxhook/internal/hook"
)

var (
	// ErrAbandoned marks utterances whose context was cancelled before the callback ran.
	ErrAbandoned = errors.New("utterance abandoned")
	// ErrQueueFull is returned by Executor.Submit when no queue slot is free.
	ErrQueueFull = errors.New("dispatch queue is full")
	// ErrExecutorClosed is returned by Executor.Submit after Close.
	ErrExecutorClosed = errors.New("dispatch executor is closed")
	// ErrAlreadyInvoked is reported when an invocation is run twice.
	ErrAlreadyInvoked = errors.New("invocation already ran")
)

// Transcription is one utterance produced by speech recognition or typed input.
type Transcription struct {
	ID            string
	Text          string
	At            time.Time
	Confidence    float64
	HasConfidence bool
	AudioDevice   string
}

// Kind classifies a dispatch outcome.
type Kind string

const (
	KindInvoked Kind = "invoked"
	KindSkipped Kind = "skipped"
	KindFailed  Kind = "failed"
)

// Skip reasons.
const (
	ReasonNoMatch            = "no_match"
	ReasonEmptyTranscription = "empty_transcription"
)

// Outcome is the terminal result of one utterance.
type Outcome struct {
	UtteranceID string
	Transcript  string
	Kind        Kind
	Stage       fsm.Stage
	HookID      string
	Confidence  float64
	Reason      string
	Args        hook.Arguments
	Err         error
	Elapsed     time.Duration
}

// Summary is a one-line human description used in IPC replies and logs.
func (o Outcome) Summary() string {
	switch o.Kind {
	case KindInvoked:
		return fmt.Sprintf("invoked %s", o.HookID)
	case KindSkipped:
		return fmt.Sprintf("skipped: %s", o.Reason)
	case KindFailed:
		if o.HookID != "" {
			return fmt.Sprintf("failed %s at %s: %v", o.HookID, o.Stage, o.Err)
		}
		return fmt.Sprintf("failed at %s: %v", o.Stage, o.Err)
	default:
		return "pending"
	}
}

// CallbackError wraps an error returned or panic raised by a hook callback.
type CallbackError struct {
	HookID string
	Err    error
	Panic  any
}

func (e *CallbackError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("hook %s callback panicked: %v", e.HookID, e.Panic)
	}
	return fmt.Sprintf("hook %s callback failed: %v", e.HookID, e.Err)
}

func (e *CallbackError) Unwrap() error { return e.Err }
