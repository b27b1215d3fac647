// Package nlu defines the language-understanding service contract used by intent resolution
// and argument extraction.
package nlu

import (
	"context"
	"errors"
)

var (
	// ErrTransient marks rate-limited or temporarily unavailable service failures.
	ErrTransient = errors.New("language service temporarily unavailable")
	// ErrMalformedResponse marks responses that could not be decoded.
	ErrMalformedResponse = errors.New("malformed language service response")
)

// HookSummary is the per-hook view sent to the classifier.
type HookSummary struct {
	ID       string
	Task     string
	Matching string
}

// ClassifyRequest asks which hooks an utterance matches.
type ClassifyRequest struct {
	Transcription string
	Context       string
	Hooks         []HookSummary
}

// Candidate is one scored hook proposed by the classifier.
type Candidate struct {
	HookID     string
	Confidence float64
}

// Classification is the raw classifier answer before reduction.
type Classification struct {
	Candidates []Candidate
	NoMatch    bool
}

// Field describes one parameter for structured extraction.
type Field struct {
	Name        string
	Type        string
	Description string
	Required    bool
	Enum        []string
}

// ExtractRequest asks for structured arguments for one hook.
type ExtractRequest struct {
	Transcription string
	Context       string
	HookID        string
	Task          string
	Fields        []Field
}

// IntentClassifier scores hooks against an utterance.
type IntentClassifier interface {
	Classify(ctx context.Context, req ClassifyRequest) (Classification, error)
}

// StructuredExtractor returns field values decoded from a JSON object.
// Numbers are float64, booleans bool, strings string, absent or null fields nil or missing.
type StructuredExtractor interface {
	Extract(ctx context.Context, req ExtractRequest) (map[string]any, error)
}

// Service is a backend that implements both halves of the contract.
type Service interface {
	IntentClassifier
	StructuredExtractor
}
