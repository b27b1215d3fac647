package llm

import (
	"fmt"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/bytedance/gg/gptr"
	"google.golang.org/genai"

	"github.com/rbright/voxhook/internal/nlu"
)

var classifyInstruction = heredoc.Doc(`
	You route spoken commands to registered hooks.
	Each hook has an identifier, a task, and a description of when it applies.
	Decide which hooks the utterance asks for and score each from 0 to 1.
	Only use identifiers from the list. If nothing applies, return no matches and set "none" to true.
	Respond with JSON only, in the form:
	{"matches": [{"hook": "HOOK_ID", "confidence": 0.0}], "none": false}
`)

var extractInstruction = heredoc.Doc(`
	You extract structured arguments for a voice command.
	Return one JSON object whose keys are the parameter names listed below.
	Copy text from the utterance verbatim where a parameter asks for text, without the command words around it.
	Use JSON numbers for number parameters, true or false for boolean parameters,
	and exactly one of the allowed values for enum parameters.
	Use null for any parameter the utterance does not provide. Do not invent values.
	Respond with JSON only.
`)

var transcribeInstruction = heredoc.Doc(`
	Transcribe the spoken audio exactly as said.
	Return only the transcript text with normal punctuation, no commentary.
	If the audio contains no speech, return an empty response.
`)

func classifyPrompt(req nlu.ClassifyRequest) string {
	var b strings.Builder
	if req.Context != "" {
		fmt.Fprintf(&b, "Context: %s\n\n", req.Context)
	}
	b.WriteString("Hooks:\n")
	for _, h := range req.Hooks {
		fmt.Fprintf(&b, "- %s: %s", h.ID, h.Task)
		if h.Matching != "" {
			fmt.Fprintf(&b, " (use when: %s)", h.Matching)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "\nUtterance: %q\n", req.Transcription)
	return b.String()
}

func extractPrompt(req nlu.ExtractRequest) string {
	var b strings.Builder
	if req.Context != "" {
		fmt.Fprintf(&b, "Context: %s\n\n", req.Context)
	}
	fmt.Fprintf(&b, "Hook: %s", req.HookID)
	if req.Task != "" {
		fmt.Fprintf(&b, " (%s)", req.Task)
	}
	b.WriteString("\nParameters:\n")
	for _, f := range req.Fields {
		fmt.Fprintf(&b, "- %s (%s", f.Name, f.Type)
		if f.Required {
			b.WriteString(", required")
		}
		b.WriteByte(')')
		if len(f.Enum) > 0 {
			fmt.Fprintf(&b, " one of [%s]", strings.Join(f.Enum, ", "))
		}
		if f.Description != "" {
			fmt.Fprintf(&b, ": %s", f.Description)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "\nUtterance: %q\n", req.Transcription)
	return b.String()
}

func transcribePrompt(languageCode string, hints []string) string {
	var b strings.Builder
	b.WriteString(transcribeInstruction)
	if languageCode != "" {
		fmt.Fprintf(&b, "The speaker's language is %s.\n", languageCode)
	}
	if len(hints) > 0 {
		fmt.Fprintf(&b, "Vocabulary that may appear: %s.\n", strings.Join(hints, ", "))
	}
	return b.String()
}

func classifySchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"matches": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"hook":       {Type: genai.TypeString},
						"confidence": {Type: genai.TypeNumber},
					},
					Required: []string{"hook", "confidence"},
				},
			},
			"none": {Type: genai.TypeBoolean},
		},
		Required: []string{"matches", "none"},
	}
}

func extractSchema(fields []nlu.Field) *genai.Schema {
	props := make(map[string]*genai.Schema, len(fields))
	order := make([]string, 0, len(fields))
	for _, f := range fields {
		s := &genai.Schema{Description: f.Description, Nullable: gptr.Of(true)}
		switch f.Type {
		case "number":
			s.Type = genai.TypeNumber
		case "boolean":
			s.Type = genai.TypeBoolean
		case "enum":
			s.Type = genai.TypeString
			s.Enum = append([]string(nil), f.Enum...)
		default:
			s.Type = genai.TypeString
		}
		props[f.Name] = s
		order = append(order, f.Name)
	}
	return &genai.Schema{
		Type:             genai.TypeObject,
		Properties:       props,
		PropertyOrdering: order,
	}
}
