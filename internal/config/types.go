// Package config resolves, parses, validates, and defaults voxhook configuration.
package config

import "time"

// Config is the fully materialized runtime configuration.
type Config struct {
	LLM        LLMConfig
	ASR        ASRConfig
	Dispatch   DispatchConfig
	HooksFile  string
	Audio      AudioConfig
	Paste      PasteConfig
	Clipboard  CommandConfig
	PasteCmd   CommandConfig
	TypeCmd    CommandConfig
	ReleaseCmd CommandConfig
	Indicator  IndicatorConfig
	Journal    JournalConfig
	Vocab      VocabConfig
	Debug      DebugConfig
}

// LLMConfig selects the language-understanding backend.
type LLMConfig struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKeyEnv   string
	Temperature float64
}

// ASRConfig controls speech transcription requests.
type ASRConfig struct {
	Model        string
	LanguageCode string
	APIKeyEnv    string
	TimeoutMS    int
}

// Timeout returns the transcription request deadline.
func (c ASRConfig) Timeout() time.Duration { return time.Duration(c.TimeoutMS) * time.Millisecond }

// DispatchConfig bounds resolution, extraction, and callback execution.
type DispatchConfig struct {
	ResolveTimeoutMS  int
	ExtractTimeoutMS  int
	MinConfidence     float64
	Workers           int
	QueueSize         int
	CallbackTimeoutMS int
	Context           string
}

func (c DispatchConfig) ResolveTimeout() time.Duration {
	return time.Duration(c.ResolveTimeoutMS) * time.Millisecond
}

func (c DispatchConfig) ExtractTimeout() time.Duration {
	return time.Duration(c.ExtractTimeoutMS) * time.Millisecond
}

// CallbackTimeout is zero when callbacks are unbounded.
func (c DispatchConfig) CallbackTimeout() time.Duration {
	return time.Duration(c.CallbackTimeoutMS) * time.Millisecond
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input      string
	Fallback   string
	MaxSeconds int
}

// MaxDuration caps one recording.
func (c AudioConfig) MaxDuration() time.Duration { return time.Duration(c.MaxSeconds) * time.Second }

// PasteConfig controls the paste action.
type PasteConfig struct {
	Enable   bool
	Shortcut string
}

// IndicatorConfig controls visual indicator and audio cue behavior.
type IndicatorConfig struct {
	Enable            bool
	Backend           string
	DesktopAppName    string
	SoundEnable       bool
	SoundStartFile    string
	SoundStopFile     string
	SoundCompleteFile string
	SoundCancelFile   string
	SoundErrorFile    string
	TextRecording     string
	TextProcessing    string
	TextError         string
	ErrorTimeoutMS    int
}

// JournalConfig controls the dispatch history store.
type JournalConfig struct {
	Enable     bool
	Path       string
	MaxEntries int
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// VocabConfig controls enabled phrase sets used as transcription hints.
type VocabConfig struct {
	GlobalSets []string
	Sets       map[string]VocabSet
	MaxPhrases int
}

// VocabSet is one named phrase group with a shared boost value.
type VocabSet struct {
	Name    string
	Boost   float64
	Phrases []string
}

// DebugConfig controls optional debug output.
type DebugConfig struct {
	AudioDump bool
	Verbose   bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

// Hint is one vocabulary phrase passed to the transcription prompt.
type Hint struct {
	Phrase string
	Boost  float64
}
