package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"strings"

	"google.golang.org/genai"

	"github.com/rbright/voxhook/internal/nlu"
)

type classifyReply struct {
	Matches []struct {
		Hook       string   `json:"hook"`
		Confidence *float64 `json:"confidence"`
	} `json:"matches"`
	None bool `json:"none"`
}

// stripFences removes a surrounding markdown code fence some models add in JSON mode.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

func decodeClassification(text string) (nlu.Classification, error) {
	body := stripFences(text)
	if body == "" {
		return nlu.Classification{}, fmt.Errorf("%w: empty response", nlu.ErrMalformedResponse)
	}

	var reply classifyReply
	if err := json.Unmarshal([]byte(body), &reply); err != nil {
		return nlu.Classification{}, fmt.Errorf("%w: %v", nlu.ErrMalformedResponse, err)
	}

	out := nlu.Classification{NoMatch: reply.None}
	for _, m := range reply.Matches {
		id := strings.TrimSpace(m.Hook)
		if id == "" {
			continue
		}
		confidence := 1.0
		if m.Confidence != nil {
			confidence = math.Max(0, math.Min(1, *m.Confidence))
		}
		out.Candidates = append(out.Candidates, nlu.Candidate{HookID: id, Confidence: confidence})
	}
	return out, nil
}

func decodeFields(text string) (map[string]any, error) {
	body := stripFences(text)
	if body == "" {
		return nil, fmt.Errorf("%w: empty response", nlu.ErrMalformedResponse)
	}

	decoder := json.NewDecoder(bytes.NewReader([]byte(body)))
	var values map[string]any
	if err := decoder.Decode(&values); err != nil {
		return nil, fmt.Errorf("%w: %v", nlu.ErrMalformedResponse, err)
	}
	if values == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", nlu.ErrMalformedResponse)
	}
	return values, nil
}

// wrapServiceError tags rate-limit, overload, and network timeout failures as transient.
func wrapServiceError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if isTransient(err) {
		return fmt.Errorf("%s: %w: %w", op, nlu.ErrTransient, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isTransient(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return transientStatus(apiErr.Code)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return transientStatus(apiErrPtr.Code)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "503", "rate limit", "too many requests", "unavailable", "overloaded", "connection refused"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func transientStatus(code int) bool {
	switch code {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
