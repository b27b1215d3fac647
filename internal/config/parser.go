package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

type filePayload struct {
	LLM        *llmPayload       `json:"llm"`
	ASR        *asrPayload       `json:"asr"`
	Dispatch   *dispatchPayload  `json:"dispatch"`
	HooksFile  *string           `json:"hooks_file"`
	Audio      *audioPayload     `json:"audio"`
	Paste      *pastePayload     `json:"paste"`
	Indicator  *indicatorPayload `json:"indicator"`
	Journal    *journalPayload   `json:"journal"`
	Vocab      *vocabPayload     `json:"vocab"`
	Debug      *debugPayload     `json:"debug"`
	Clipboard  *string           `json:"clipboard_cmd"`
	PasteCmd   *string           `json:"paste_cmd"`
	TypeCmd    *string           `json:"type_cmd"`
	ReleaseCmd *string           `json:"release_cmd"`
}

type llmPayload struct {
	Provider    *string  `json:"provider"`
	Model       *string  `json:"model"`
	BaseURL     *string  `json:"base_url"`
	APIKeyEnv   *string  `json:"api_key_env"`
	Temperature *float64 `json:"temperature"`
}

type asrPayload struct {
	Model        *string `json:"model"`
	LanguageCode *string `json:"language_code"`
	APIKeyEnv    *string `json:"api_key_env"`
	TimeoutMS    *int    `json:"timeout_ms"`
}

type dispatchPayload struct {
	ResolveTimeoutMS  *int     `json:"resolve_timeout_ms"`
	ExtractTimeoutMS  *int     `json:"extract_timeout_ms"`
	MinConfidence     *float64 `json:"min_confidence"`
	Workers           *int     `json:"workers"`
	QueueSize         *int     `json:"queue_size"`
	CallbackTimeoutMS *int     `json:"callback_timeout_ms"`
	Context           *string  `json:"context"`
}

type audioPayload struct {
	Input      *string `json:"input"`
	Fallback   *string `json:"fallback"`
	MaxSeconds *int    `json:"max_seconds"`
}

type pastePayload struct {
	Enable   *bool   `json:"enable"`
	Shortcut *string `json:"shortcut"`
}

type indicatorPayload struct {
	Enable            *bool   `json:"enable"`
	Backend           *string `json:"backend"`
	DesktopAppName    *string `json:"desktop_app_name"`
	SoundEnable       *bool   `json:"sound_enable"`
	SoundStartFile    *string `json:"sound_start_file"`
	SoundStopFile     *string `json:"sound_stop_file"`
	SoundCompleteFile *string `json:"sound_complete_file"`
	SoundCancelFile   *string `json:"sound_cancel_file"`
	SoundErrorFile    *string `json:"sound_error_file"`
	TextRecording     *string `json:"text_recording"`
	TextProcessing    *string `json:"text_processing"`
	TextError         *string `json:"text_error"`
	ErrorTimeoutMS    *int    `json:"error_timeout_ms"`
}

type journalPayload struct {
	Enable     *bool   `json:"enable"`
	Path       *string `json:"path"`
	MaxEntries *int    `json:"max_entries"`
}

type vocabPayload struct {
	Global     *stringList           `json:"global"`
	MaxPhrases *int                  `json:"max_phrases"`
	Sets       map[string]vocabEntry `json:"sets"`
}

type vocabEntry struct {
	Boost   *float64 `json:"boost"`
	Phrases []string `json:"phrases"`
}

type debugPayload struct {
	AudioDump *bool `json:"audio_dump"`
	Verbose   *bool `json:"verbose"`
}

// stringList accepts either a JSON array or a comma-delimited string.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = compactNames(list)
		return nil
	}

	var joined string
	if err := json.Unmarshal(data, &joined); err == nil {
		*l = compactNames(strings.Split(joined, ","))
		return nil
	}

	return fmt.Errorf("expected string array or comma-delimited string")
}

func compactNames(in []string) []string {
	out := make([]string, 0, len(in))
	for _, name := range in {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// Parse reads JSONC configuration content on top of base and validates the result.
func Parse(content string, base Config) (Config, []Warning, error) {
	cfg := base
	var warnings []Warning

	if strings.TrimSpace(content) != "" {
		normalized, err := normalizeJSONC(content)
		if err != nil {
			return Config{}, nil, err
		}

		var payload filePayload
		if err := decodeStrict(normalized, &payload); err != nil {
			return Config{}, nil, err
		}

		warnings, err = payload.applyTo(&cfg)
		if err != nil {
			return Config{}, nil, err
		}
	}

	validated, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, append(warnings, validated...), nil
}

func (p filePayload) applyTo(cfg *Config) ([]Warning, error) {
	var warnings []Warning

	if p.LLM != nil {
		warnings = append(warnings, p.LLM.applyTo(&cfg.LLM)...)
	}

	if p.ASR != nil {
		setString(&cfg.ASR.Model, p.ASR.Model)
		setString(&cfg.ASR.LanguageCode, p.ASR.LanguageCode)
		setString(&cfg.ASR.APIKeyEnv, p.ASR.APIKeyEnv)
		setInt(&cfg.ASR.TimeoutMS, p.ASR.TimeoutMS)
	}

	if d := p.Dispatch; d != nil {
		setInt(&cfg.Dispatch.ResolveTimeoutMS, d.ResolveTimeoutMS)
		setInt(&cfg.Dispatch.ExtractTimeoutMS, d.ExtractTimeoutMS)
		setInt(&cfg.Dispatch.Workers, d.Workers)
		setInt(&cfg.Dispatch.QueueSize, d.QueueSize)
		setInt(&cfg.Dispatch.CallbackTimeoutMS, d.CallbackTimeoutMS)
		if d.MinConfidence != nil {
			cfg.Dispatch.MinConfidence = *d.MinConfidence
		}
		if d.Context != nil {
			cfg.Dispatch.Context = strings.TrimSpace(*d.Context)
		}
	}

	setString(&cfg.HooksFile, p.HooksFile)

	if p.Audio != nil {
		setString(&cfg.Audio.Input, p.Audio.Input)
		setString(&cfg.Audio.Fallback, p.Audio.Fallback)
		setInt(&cfg.Audio.MaxSeconds, p.Audio.MaxSeconds)
	}

	if p.Paste != nil {
		setBool(&cfg.Paste.Enable, p.Paste.Enable)
		setString(&cfg.Paste.Shortcut, p.Paste.Shortcut)
	}

	if in := p.Indicator; in != nil {
		setBool(&cfg.Indicator.Enable, in.Enable)
		setString(&cfg.Indicator.Backend, in.Backend)
		setString(&cfg.Indicator.DesktopAppName, in.DesktopAppName)
		setBool(&cfg.Indicator.SoundEnable, in.SoundEnable)
		setString(&cfg.Indicator.SoundStartFile, in.SoundStartFile)
		setString(&cfg.Indicator.SoundStopFile, in.SoundStopFile)
		setString(&cfg.Indicator.SoundCompleteFile, in.SoundCompleteFile)
		setString(&cfg.Indicator.SoundCancelFile, in.SoundCancelFile)
		setString(&cfg.Indicator.SoundErrorFile, in.SoundErrorFile)
		setString(&cfg.Indicator.TextRecording, in.TextRecording)
		setString(&cfg.Indicator.TextProcessing, in.TextProcessing)
		setString(&cfg.Indicator.TextError, in.TextError)
		setInt(&cfg.Indicator.ErrorTimeoutMS, in.ErrorTimeoutMS)
	}

	if p.Journal != nil {
		setBool(&cfg.Journal.Enable, p.Journal.Enable)
		setString(&cfg.Journal.Path, p.Journal.Path)
		setInt(&cfg.Journal.MaxEntries, p.Journal.MaxEntries)
	}

	commands := []struct {
		key    string
		raw    *string
		target *CommandConfig
	}{
		{key: "clipboard_cmd", raw: p.Clipboard, target: &cfg.Clipboard},
		{key: "paste_cmd", raw: p.PasteCmd, target: &cfg.PasteCmd},
		{key: "type_cmd", raw: p.TypeCmd, target: &cfg.TypeCmd},
		{key: "release_cmd", raw: p.ReleaseCmd, target: &cfg.ReleaseCmd},
	}
	for _, c := range commands {
		if c.raw == nil {
			continue
		}
		argv, err := parseArgv(*c.raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", c.key, err)
		}
		*c.target = CommandConfig{Raw: *c.raw, Argv: argv}
	}

	if p.Vocab != nil {
		if err := p.Vocab.applyTo(&cfg.Vocab); err != nil {
			return nil, err
		}
	}

	if p.Debug != nil {
		setBool(&cfg.Debug.AudioDump, p.Debug.AudioDump)
		setBool(&cfg.Debug.Verbose, p.Debug.Verbose)
	}

	return warnings, nil
}

// applyTo switches provider defaults when the provider changes and the file leaves
// model, base_url, or api_key_env unset.
func (p llmPayload) applyTo(cfg *LLMConfig) []Warning {
	var warnings []Warning

	if p.Provider != nil {
		provider := strings.ToLower(strings.TrimSpace(*p.Provider))
		if provider != cfg.Provider {
			if defaults, ok := llmDefaults[provider]; ok {
				cfg.Model = defaults.model
				cfg.BaseURL = defaults.baseURL
				cfg.APIKeyEnv = defaults.apiKeyEnv
			}
		}
		cfg.Provider = provider
	}
	setString(&cfg.Model, p.Model)
	setString(&cfg.BaseURL, p.BaseURL)
	setString(&cfg.APIKeyEnv, p.APIKeyEnv)
	if p.Temperature != nil {
		cfg.Temperature = *p.Temperature
	}

	if cfg.Provider == ProviderOllama && cfg.APIKeyEnv != "" {
		warnings = append(warnings, Warning{Message: "llm.api_key_env is ignored for the ollama provider"})
	}
	return warnings
}

func (p vocabPayload) applyTo(cfg *VocabConfig) error {
	if p.Global != nil {
		cfg.GlobalSets = append([]string(nil), (*p.Global)...)
	}
	setInt(&cfg.MaxPhrases, p.MaxPhrases)

	if p.Sets == nil {
		return nil
	}
	sets := make(map[string]VocabSet, len(cfg.Sets)+len(p.Sets))
	for name, set := range cfg.Sets {
		sets[name] = set
	}
	cfg.Sets = sets
	for name, entry := range p.Sets {
		name = strings.TrimSpace(name)
		if name == "" {
			return fmt.Errorf("vocab.sets contains an empty set name")
		}
		set := VocabSet{Name: name, Phrases: append([]string(nil), entry.Phrases...)}
		if entry.Boost != nil {
			set.Boost = *entry.Boost
		}
		cfg.Sets[name] = set
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}
