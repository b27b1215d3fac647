package pipeline

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/rbright/voxhook/internal/audio"
	"github.com/rbright/voxhook/internal/config"
	"github.com/rbright/voxhook/internal/session"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	rec   audio.Recording
	err   error
	stops atomic.Int32
}

func (f *fakeRecorder) Stop() (audio.Recording, error) {
	f.stops.Add(1)
	return f.rec, f.err
}

type fakeASR struct {
	text     string
	err      error
	calls    atomic.Int32
	gotMIME  string
	gotHints []string
	gotAudio []byte
}

func (f *fakeASR) Transcribe(_ context.Context, audio []byte, mimeType string, hints []string) (string, error) {
	f.calls.Add(1)
	f.gotAudio = audio
	f.gotMIME = mimeType
	f.gotHints = hints
	return f.text, f.err
}

func newTestTranscriber(cfg config.Config, asr *fakeASR, rec *fakeRecorder) *Transcriber {
	tr := NewTranscriber(cfg, asr, nil)
	tr.start = func(context.Context, config.Config) (recorder, audio.Selection, error) {
		return rec, audio.Selection{Device: audio.Device{ID: "mic-1", Description: "Test Mic"}}, nil
	}
	return tr
}

func TestStopAndTranscribe(t *testing.T) {
	cfg := config.Default()
	cfg.Vocab.GlobalSets = []string{"core"}
	cfg.Vocab.Sets["core"] = config.VocabSet{Name: "core", Boost: 5, Phrases: []string{"Hyprland"}}

	asr := &fakeASR{text: "  open the browser \n"}
	rec := &fakeRecorder{rec: audio.Recording{PCM: []byte{1, 0, 2, 0}}}
	tr := newTestTranscriber(cfg, asr, rec)

	require.NoError(t, tr.Start(context.Background()))
	require.Error(t, tr.Start(context.Background()))

	result, err := tr.StopAndTranscribe(context.Background())
	require.NoError(t, err)
	require.Equal(t, "open the browser", result.Transcript)
	require.Equal(t, "Test Mic (mic-1)", result.AudioDevice)
	require.Equal(t, int64(4), result.BytesCaptured)
	require.Equal(t, "audio/wav", asr.gotMIME)
	require.Equal(t, []string{"Hyprland"}, asr.gotHints)
	require.Equal(t, "RIFF", string(asr.gotAudio[:4]))

	_, err = tr.StopAndTranscribe(context.Background())
	require.ErrorIs(t, err, session.ErrPipelineUnavailable)
}

func TestStopWithoutAudioSkipsTranscription(t *testing.T) {
	asr := &fakeASR{text: "unused"}
	tr := newTestTranscriber(config.Default(), asr, &fakeRecorder{})

	require.NoError(t, tr.Start(context.Background()))
	result, err := tr.StopAndTranscribe(context.Background())
	require.NoError(t, err)
	require.Empty(t, result.Transcript)
	require.Zero(t, asr.calls.Load())
}

func TestTruncatedRecordingIsStillTranscribed(t *testing.T) {
	asr := &fakeASR{text: "long utterance"}
	rec := &fakeRecorder{rec: audio.Recording{PCM: []byte{1, 0}, Truncated: true}, err: audio.ErrRecordingTooLong}
	tr := newTestTranscriber(config.Default(), asr, rec)

	require.NoError(t, tr.Start(context.Background()))
	result, err := tr.StopAndTranscribe(context.Background())
	require.NoError(t, err)
	require.Equal(t, "long utterance", result.Transcript)
}

func TestStopErrors(t *testing.T) {
	tr := newTestTranscriber(config.Default(), &fakeASR{}, &fakeRecorder{err: errors.New("stream broke")})
	require.NoError(t, tr.Start(context.Background()))
	_, err := tr.StopAndTranscribe(context.Background())
	require.ErrorContains(t, err, "stop capture: stream broke")

	asr := &fakeASR{err: errors.New("quota")}
	tr = newTestTranscriber(config.Default(), asr, &fakeRecorder{rec: audio.Recording{PCM: []byte{1, 0}}})
	require.NoError(t, tr.Start(context.Background()))
	_, err = tr.StopAndTranscribe(context.Background())
	require.ErrorContains(t, err, "transcribe audio: quota")
}

func TestStartPropagatesCaptureFailure(t *testing.T) {
	tr := NewTranscriber(config.Default(), &fakeASR{}, nil)
	tr.start = func(context.Context, config.Config) (recorder, audio.Selection, error) {
		return nil, audio.Selection{}, errors.New("no audio input devices found")
	}
	require.ErrorContains(t, tr.Start(context.Background()), "no audio input devices")

	_, err := tr.StopAndTranscribe(context.Background())
	require.ErrorIs(t, err, session.ErrPipelineUnavailable)
}

func TestCancelStopsWithoutTranscribing(t *testing.T) {
	asr := &fakeASR{text: "unused"}
	rec := &fakeRecorder{rec: audio.Recording{PCM: []byte{1, 0}}}
	tr := newTestTranscriber(config.Default(), asr, rec)

	require.NoError(t, tr.Cancel(context.Background()))
	require.NoError(t, tr.Start(context.Background()))
	require.NoError(t, tr.Cancel(context.Background()))
	require.Equal(t, int32(1), rec.stops.Load())
	require.Zero(t, asr.calls.Load())
}

func TestDescribeDevice(t *testing.T) {
	require.Equal(t, "Elgato (alsa_input.wave3)", describeDevice(audio.Device{Description: "Elgato", ID: "alsa_input.wave3"}))
	require.Equal(t, "Elgato", describeDevice(audio.Device{Description: "Elgato"}))
	require.Equal(t, "alsa_input.wave3", describeDevice(audio.Device{ID: "alsa_input.wave3"}))
}

func TestWriteDebugAudio(t *testing.T) {
	cfg := config.Default()
	cfg.Debug.AudioDump = true
	tr := NewTranscriber(cfg, &fakeASR{}, nil)
	tr.debugDir = filepath.Join(t.TempDir(), "debug")

	pcm := []byte{0x01, 0x00, 0x02, 0x00}
	tr.writeDebugAudio(audio.Recording{PCM: pcm})

	entries, err := os.ReadDir(tr.debugDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, ".wav", filepath.Ext(entries[0].Name()))

	info, err := entries[0].Info()
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(filepath.Join(tr.debugDir, entries[0].Name()))
	require.NoError(t, err)
	require.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(data[40:44]))
	require.Equal(t, pcm, data[44:])
}

func TestDebugPathDefaultsToStateDir(t *testing.T) {
	state := t.TempDir()
	t.Setenv("XDG_STATE_HOME", state)

	tr := NewTranscriber(config.Default(), &fakeASR{}, nil)
	path, err := tr.debugPath("audio", "wav")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(state, "voxhook", "debug"), filepath.Dir(path))
}
