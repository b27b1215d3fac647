package indicator

import (
	"strings"

	"github.com/rbright/voxhook/internal/config"
)

type messages struct {
	recording  string
	processing string
	errorText  string
}

var defaultMessages = messages{
	recording:  "Listening…",
	processing: "Working…",
	errorText:  "Voice command failed",
}

// messagesFor applies configured banner text over the defaults.
func messagesFor(cfg config.IndicatorConfig) messages {
	m := defaultMessages
	if text := strings.TrimSpace(cfg.TextRecording); text != "" {
		m.recording = text
	}
	if text := strings.TrimSpace(cfg.TextProcessing); text != "" {
		m.processing = text
	}
	if text := strings.TrimSpace(cfg.TextError); text != "" {
		m.errorText = text
	}
	return m
}
