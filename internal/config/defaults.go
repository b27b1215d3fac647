package config

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

type providerDefaults struct {
	model     string
	baseURL   string
	apiKeyEnv string
}

var llmDefaults = map[string]providerDefaults{
	ProviderGemini: {model: "gemini-2.5-flash", apiKeyEnv: "GEMINI_API_KEY"},
	ProviderOpenAI: {model: "gpt-4o-mini", apiKeyEnv: "OPENAI_API_KEY"},
	ProviderOllama: {model: "llama3.1", baseURL: "http://127.0.0.1:11434"},
}

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	clipboard := "wl-copy --trim-newline"
	typeCmd := "wtype -"
	gemini := llmDefaults[ProviderGemini]

	return Config{
		LLM: LLMConfig{
			Provider:  ProviderGemini,
			Model:     gemini.model,
			APIKeyEnv: gemini.apiKeyEnv,
		},
		ASR: ASRConfig{
			Model:        gemini.model,
			LanguageCode: "en-US",
			APIKeyEnv:    gemini.apiKeyEnv,
			TimeoutMS:    15000,
		},
		Dispatch: DispatchConfig{
			ResolveTimeoutMS:  8000,
			ExtractTimeoutMS:  8000,
			MinConfidence:     0.5,
			Workers:           1,
			QueueSize:         4,
			CallbackTimeoutMS: 30000,
		},
		Audio: AudioConfig{
			Input:      "default",
			Fallback:   "default",
			MaxSeconds: 60,
		},
		Paste:     PasteConfig{Enable: true, Shortcut: "CTRL,V"},
		Clipboard: CommandConfig{Raw: clipboard, Argv: mustParseArgv(clipboard)},
		TypeCmd:   CommandConfig{Raw: typeCmd, Argv: mustParseArgv(typeCmd)},
		Indicator: IndicatorConfig{
			Enable:         true,
			Backend:        "hypr",
			DesktopAppName: "voxhook",
			SoundEnable:    true,
			ErrorTimeoutMS: 1600,
		},
		Journal: JournalConfig{Enable: true, MaxEntries: 500},
		Vocab: VocabConfig{
			Sets:       map[string]VocabSet{},
			MaxPhrases: 256,
		},
	}
}
