// Package pipeline records one utterance from the selected audio source and transcribes it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rbright/voxhook/internal/audio"
	"github.com/rbright/voxhook/internal/config"
	"github.com/rbright/voxhook/internal/session"
)

const wavMIME = "audio/wav"

// SpeechToText turns a WAV buffer into text.
type SpeechToText interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string, hints []string) (string, error)
}

// recorder is the part of audio.Capture the pipeline drives.
type recorder interface {
	Stop() (audio.Recording, error)
}

type startFunc func(ctx context.Context, cfg config.Config) (recorder, audio.Selection, error)

// Transcriber owns one capture -> ASR cycle at a time.
type Transcriber struct {
	cfg    config.Config
	asr    SpeechToText
	logger *slog.Logger
	start  startFunc

	mu       sync.Mutex
	active   recorder
	device   audio.Device
	hints    []string
	debugDir string
}

var _ session.Transcriber = (*Transcriber)(nil)

// NewTranscriber builds a pipeline that captures from PulseAudio and transcribes through asr.
func NewTranscriber(cfg config.Config, asr SpeechToText, logger *slog.Logger) *Transcriber {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Transcriber{cfg: cfg, asr: asr, logger: logger, start: startPulse}
}

func startPulse(ctx context.Context, cfg config.Config) (recorder, audio.Selection, error) {
	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return nil, audio.Selection{}, err
	}
	capture, err := audio.StartCapture(ctx, selection.Device, cfg.Audio.MaxDuration())
	if err != nil {
		return nil, selection, err
	}
	return capture, selection, nil
}

// Start selects the input device and begins recording. Cancelling ctx stops the capture.
func (t *Transcriber) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active != nil {
		return errors.New("transcriber already recording")
	}

	hints, _, err := config.BuildHints(t.cfg)
	if err != nil {
		return fmt.Errorf("build transcription hints: %w", err)
	}

	rec, selection, err := t.start(ctx, t.cfg)
	if err != nil {
		return err
	}
	if selection.Warning != "" {
		t.logger.Warn(selection.Warning)
	}

	t.active = rec
	t.device = selection.Device
	t.hints = config.HintPhrases(hints)
	return nil
}

// StopAndTranscribe ends the recording and returns its transcript.
func (t *Transcriber) StopAndTranscribe(ctx context.Context) (session.StopResult, error) {
	rec, device, hints, err := t.take()
	if err != nil {
		return session.StopResult{}, err
	}

	recording, err := rec.Stop()
	result := session.StopResult{
		AudioDevice:   describeDevice(device),
		BytesCaptured: int64(len(recording.PCM)),
	}
	switch {
	case errors.Is(err, audio.ErrRecordingTooLong):
		t.logger.Warn("recording truncated", "max_seconds", t.cfg.Audio.MaxSeconds)
	case err != nil:
		return result, fmt.Errorf("stop capture: %w", err)
	}
	t.writeDebugAudio(recording)

	if len(recording.PCM) == 0 {
		return result, nil
	}

	asrCtx, cancel := context.WithTimeout(ctx, t.cfg.ASR.Timeout())
	defer cancel()

	started := time.Now()
	text, err := t.asr.Transcribe(asrCtx, recording.WAV(), wavMIME, hints)
	result.ASRLatency = time.Since(started)
	if err != nil {
		return result, fmt.Errorf("transcribe audio: %w", err)
	}
	result.Transcript = strings.TrimSpace(text)
	return result, nil
}

// Cancel drops the active recording without transcribing it.
func (t *Transcriber) Cancel(context.Context) error {
	rec, _, _, err := t.take()
	if err != nil {
		return nil
	}
	recording, _ := rec.Stop()
	t.writeDebugAudio(recording)
	return nil
}

func (t *Transcriber) take() (recorder, audio.Device, []string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active == nil {
		return nil, audio.Device{}, nil, session.ErrPipelineUnavailable
	}
	rec, device, hints := t.active, t.device, t.hints
	t.active, t.device, t.hints = nil, audio.Device{}, nil
	return rec, device, hints, nil
}

// describeDevice formats device metadata for logs and session results.
func describeDevice(device audio.Device) string {
	description := strings.TrimSpace(device.Description)
	id := strings.TrimSpace(device.ID)
	if description == "" {
		return id
	}
	if id == "" {
		return description
	}
	return fmt.Sprintf("%s (%s)", description, id)
}

// writeDebugAudio stores the recording as WAV when debug.audio_dump is enabled.
func (t *Transcriber) writeDebugAudio(rec audio.Recording) {
	if !t.cfg.Debug.AudioDump || len(rec.PCM) == 0 {
		return
	}

	path, err := t.debugPath("audio", "wav")
	if err != nil {
		t.logger.Warn("unable to create debug audio dump", "error", err.Error())
		return
	}
	if err := os.WriteFile(path, rec.WAV(), 0o600); err != nil {
		t.logger.Warn("unable to write debug audio dump", "error", err.Error())
		return
	}
	t.logger.Debug("debug audio dump written", "path", path)
}

// debugPath returns a timestamped file under the voxhook state debug directory.
func (t *Transcriber) debugPath(prefix, extension string) (string, error) {
	dir := t.debugDir
	if dir == "" {
		stateDir, err := config.StateDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(stateDir, "debug")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create debug dir: %w", err)
	}
	timestamp := time.Now().Format("20060102-150405.000")
	return filepath.Join(dir, fmt.Sprintf("%s-%s.%s", prefix, timestamp, extension)), nil
}
