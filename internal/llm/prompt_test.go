package llm

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/rbright/voxhook/internal/nlu"
)

func TestClassifyPromptListsHooks(t *testing.T) {
	prompt := classifyPrompt(nlu.ClassifyRequest{
		Transcription: "write hello world please",
		Context:       "The user is coding.",
		Hooks: []nlu.HookSummary{
			{ID: "INSERT_TEXT", Task: "Insert text", Matching: "the user dictates text"},
			{ID: "LOCK_SCREEN", Task: "Lock the screen"},
		},
	})

	require.Contains(t, prompt, "Context: The user is coding.")
	require.Contains(t, prompt, "- INSERT_TEXT: Insert text (use when: the user dictates text)")
	require.Contains(t, prompt, "- LOCK_SCREEN: Lock the screen\n")
	require.Contains(t, prompt, `Utterance: "write hello world please"`)
}

func TestExtractPromptDescribesFields(t *testing.T) {
	prompt := extractPrompt(nlu.ExtractRequest{
		Transcription: "set volume to 30",
		HookID:        "VOLUME",
		Task:          "Set the volume",
		Fields: []nlu.Field{
			{Name: "volume_level", Type: "number", Required: true, Description: "percent"},
			{Name: "device", Type: "enum", Enum: []string{"speakers", "headphones"}},
		},
	})

	require.Contains(t, prompt, "Hook: VOLUME (Set the volume)")
	require.Contains(t, prompt, "- volume_level (number, required): percent")
	require.Contains(t, prompt, "- device (enum) one of [speakers, headphones]")
	require.NotContains(t, prompt, "Context:")
}

func TestTranscribePromptIncludesHints(t *testing.T) {
	prompt := transcribePrompt("en-US", []string{"Hyprland", "voxhook"})
	require.Contains(t, prompt, "Transcribe the spoken audio")
	require.Contains(t, prompt, "language is en-US")
	require.Contains(t, prompt, "Hyprland, voxhook")
}

func TestExtractSchemaMapsTypes(t *testing.T) {
	s := extractSchema([]nlu.Field{
		{Name: "text", Type: "string"},
		{Name: "level", Type: "number"},
		{Name: "muted", Type: "boolean"},
		{Name: "mode", Type: "enum", Enum: []string{"a", "b"}},
	})

	require.Equal(t, genai.TypeObject, s.Type)
	require.Equal(t, []string{"text", "level", "muted", "mode"}, s.PropertyOrdering)
	require.Equal(t, genai.TypeString, s.Properties["text"].Type)
	require.Equal(t, genai.TypeNumber, s.Properties["level"].Type)
	require.Equal(t, genai.TypeBoolean, s.Properties["muted"].Type)
	require.Equal(t, []string{"a", "b"}, s.Properties["mode"].Enum)
	require.True(t, *s.Properties["mode"].Nullable)
}

func TestClassifySchemaRequiresMatches(t *testing.T) {
	s := classifySchema()
	require.Equal(t, []string{"matches", "none"}, s.Required)
	require.Equal(t, genai.TypeArray, s.Properties["matches"].Type)
}
