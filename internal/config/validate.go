package config

import (
	"fmt"
	"sort"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	var warnings []Warning

	switch cfg.LLM.Provider {
	case ProviderGemini, ProviderOpenAI:
		if cfg.LLM.APIKeyEnv == "" {
			return nil, fmt.Errorf("llm.api_key_env must not be empty for provider %s", cfg.LLM.Provider)
		}
	case ProviderOllama:
	default:
		return nil, fmt.Errorf("llm.provider must be one of: gemini, openai, ollama")
	}
	if cfg.LLM.Model == "" {
		return nil, fmt.Errorf("llm.model must not be empty")
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		return nil, fmt.Errorf("llm.temperature must be between 0 and 2")
	}

	if cfg.ASR.Model == "" {
		return nil, fmt.Errorf("asr.model must not be empty")
	}
	if cfg.ASR.LanguageCode == "" {
		return nil, fmt.Errorf("asr.language_code must not be empty")
	}
	if cfg.ASR.APIKeyEnv == "" {
		return nil, fmt.Errorf("asr.api_key_env must not be empty")
	}
	if cfg.ASR.TimeoutMS <= 0 {
		return nil, fmt.Errorf("asr.timeout_ms must be > 0")
	}

	d := cfg.Dispatch
	if d.ResolveTimeoutMS <= 0 {
		return nil, fmt.Errorf("dispatch.resolve_timeout_ms must be > 0")
	}
	if d.ExtractTimeoutMS <= 0 {
		return nil, fmt.Errorf("dispatch.extract_timeout_ms must be > 0")
	}
	if d.MinConfidence < 0 || d.MinConfidence > 1 {
		return nil, fmt.Errorf("dispatch.min_confidence must be between 0 and 1")
	}
	if d.Workers < 1 {
		return nil, fmt.Errorf("dispatch.workers must be >= 1")
	}
	if d.QueueSize < 1 {
		return nil, fmt.Errorf("dispatch.queue_size must be >= 1")
	}
	if d.CallbackTimeoutMS < 0 {
		return nil, fmt.Errorf("dispatch.callback_timeout_ms must be >= 0")
	}
	if d.Workers > 1 {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("dispatch.workers=%d allows hook callbacks to overlap", d.Workers)})
	}

	if cfg.Audio.MaxSeconds <= 0 {
		return nil, fmt.Errorf("audio.max_seconds must be > 0")
	}

	backend := strings.ToLower(cfg.Indicator.Backend)
	if backend != "hypr" && backend != "desktop" {
		return nil, fmt.Errorf("indicator.backend must be one of: hypr, desktop")
	}
	if backend == "desktop" && cfg.Indicator.DesktopAppName == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.backend=desktop")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}

	if cfg.Journal.Enable && cfg.Journal.MaxEntries <= 0 {
		return nil, fmt.Errorf("journal.max_entries must be > 0 when journal.enable=true")
	}

	if len(cfg.Clipboard.Argv) == 0 {
		return nil, fmt.Errorf("clipboard_cmd must not be empty")
	}
	if len(cfg.TypeCmd.Argv) == 0 {
		return nil, fmt.Errorf("type_cmd must not be empty")
	}
	if cfg.Paste.Enable && cfg.PasteCmd.Raw != "" && len(cfg.PasteCmd.Argv) == 0 {
		return nil, fmt.Errorf("paste_cmd is configured but empty")
	}
	if cfg.Paste.Enable && len(cfg.PasteCmd.Argv) == 0 && cfg.Paste.Shortcut == "" {
		return nil, fmt.Errorf("paste.shortcut must not be empty when paste.enable=true and paste_cmd is unset")
	}

	if cfg.Vocab.MaxPhrases <= 0 {
		return nil, fmt.Errorf("vocab.max_phrases must be > 0")
	}
	_, vocabWarnings, err := BuildHints(cfg)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, vocabWarnings...)

	return warnings, nil
}

// BuildHints merges enabled vocab sets into transcription hints, highest boost first.
// A phrase present in several sets keeps its highest boost.
func BuildHints(cfg Config) ([]Hint, []Warning, error) {
	if len(cfg.Vocab.GlobalSets) == 0 {
		return nil, nil, nil
	}

	type source struct {
		boost float64
		set   string
	}

	var warnings []Warning
	selected := make(map[string]source)
	for _, name := range cfg.Vocab.GlobalSets {
		set, ok := cfg.Vocab.Sets[name]
		if !ok {
			return nil, nil, fmt.Errorf("vocab.global references unknown set %q", name)
		}
		for _, phrase := range set.Phrases {
			phrase = strings.TrimSpace(phrase)
			if phrase == "" {
				continue
			}
			prev, seen := selected[phrase]
			if !seen {
				selected[phrase] = source{boost: set.Boost, set: name}
				continue
			}
			if set.Boost > prev.boost {
				warnings = append(warnings, Warning{Message: fmt.Sprintf("phrase %q present in %q and %q; using higher boost %.2f", phrase, prev.set, name, set.Boost)})
				selected[phrase] = source{boost: set.Boost, set: name}
			}
		}
	}

	if len(selected) > cfg.Vocab.MaxPhrases {
		return nil, nil, fmt.Errorf("vocabulary phrase count %d exceeds vocab.max_phrases=%d", len(selected), cfg.Vocab.MaxPhrases)
	}

	hints := make([]Hint, 0, len(selected))
	for phrase, src := range selected {
		hints = append(hints, Hint{Phrase: phrase, Boost: src.boost})
	}
	sort.Slice(hints, func(i, j int) bool {
		if hints[i].Boost != hints[j].Boost {
			return hints[i].Boost > hints[j].Boost
		}
		return hints[i].Phrase < hints[j].Phrase
	})
	return hints, warnings, nil
}

// HintPhrases returns hint phrases in priority order.
func HintPhrases(hints []Hint) []string {
	out := make([]string, 0, len(hints))
	for _, h := range hints {
		out = append(out, h.Phrase)
	}
	return out
}
