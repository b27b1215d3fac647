// Package journal keeps a bounded, persistent history of dispatched utterances.
package journal

import (
	"time"

	"github.com/rbright/voxhook/internal/dispatch"
)

// Sources of an utterance.
const (
	SourceVoice = "voice"
	SourceSay   = "say"
)

// Record is one journaled utterance outcome.
type Record struct {
	Seq         uint64         `json:"seq"`
	UtteranceID string         `json:"utterance_id"`
	At          time.Time      `json:"at"`
	Source      string         `json:"source"`
	Transcript  string         `json:"transcript"`
	Kind        string         `json:"kind"`
	Stage       string         `json:"stage"`
	HookID      string         `json:"hook_id,omitempty"`
	Confidence  float64        `json:"confidence,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	Args        map[string]any `json:"args,omitempty"`
	Error       string         `json:"error,omitempty"`
	ElapsedMS   int64          `json:"elapsed_ms"`
}

// FromOutcome flattens a dispatch outcome into a record.
func FromOutcome(o dispatch.Outcome, at time.Time, source string) Record {
	r := Record{
		UtteranceID: o.UtteranceID,
		At:          at.UTC(),
		Source:      source,
		Transcript:  o.Transcript,
		Kind:        string(o.Kind),
		Stage:       string(o.Stage),
		HookID:      o.HookID,
		Confidence:  o.Confidence,
		Reason:      o.Reason,
		ElapsedMS:   o.Elapsed.Milliseconds(),
	}
	if len(o.Args) > 0 {
		r.Args = o.Args.Raw()
	}
	if o.Err != nil {
		r.Error = o.Err.Error()
	}
	return r
}

// Summary renders the record for `voxhook history`.
func (r Record) Summary() string {
	switch dispatch.Kind(r.Kind) {
	case dispatch.KindInvoked:
		return "invoked " + r.HookID
	case dispatch.KindSkipped:
		return "skipped: " + r.Reason
	default:
		if r.HookID != "" {
			return "failed " + r.HookID + " at " + r.Stage + ": " + r.Error
		}
		return "failed at " + r.Stage + ": " + r.Error
	}
}
