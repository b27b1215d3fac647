package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrPipelineUnavailable indicates no recording is active or no transcriber is wired.
	ErrPipelineUnavailable = errors.New("audio capture and transcription pipeline unavailable")
	// ErrEmptyTranscript indicates stop completed but no usable speech was recognized.
	ErrEmptyTranscript = errors.New("no speech recognized; check microphone input or mute state")
	// ErrBusy rejects start and say while an utterance is processing.
	ErrBusy = errors.New("busy processing an utterance")
)

// StopResult is the transcriber output consumed by the session controller.
type StopResult struct {
	Transcript    string
	AudioDevice   string
	BytesCaptured int64
	ASRLatency    time.Duration
}

// Transcriber abstracts capture and speech recognition.
type Transcriber interface {
	Start(context.Context) error
	StopAndTranscribe(context.Context) (StopResult, error)
	Cancel(context.Context) error
}

// PlaceholderTranscriber is wired when audio capture is unavailable; say still works.
type PlaceholderTranscriber struct{}

func (PlaceholderTranscriber) Start(context.Context) error {
	return ErrPipelineUnavailable
}

func (PlaceholderTranscriber) StopAndTranscribe(context.Context) (StopResult, error) {
	return StopResult{}, ErrPipelineUnavailable
}

func (PlaceholderTranscriber) Cancel(context.Context) error {
	return nil
}
