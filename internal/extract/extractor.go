// Package extract turns an utterance into typed arguments for one hook.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rbright/voxhook/internal/hook"
	"github.com/rbright/voxhook/internal/nlu"
)

var (
	ErrExtractionTimeout = errors.New("argument extraction timed out")
	ErrExtractionFailed  = errors.New("argument extraction failed")
)

// IncompleteExtractionError names every required parameter the service left empty.
type IncompleteExtractionError struct {
	HookID  string
	Missing []string
}

func (e *IncompleteExtractionError) Error() string {
	return fmt.Sprintf("hook %s: missing required arguments: %s", e.HookID, strings.Join(e.Missing, ", "))
}

// SchemaViolationError reports a value whose type does not match its declaration.
type SchemaViolationError struct {
	HookID   string
	Field    string
	Expected hook.ParamType
	Actual   string
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("hook %s: argument %q: expected %s, got %s", e.HookID, e.Field, e.Expected, e.Actual)
}

// Options tunes extractor behavior.
type Options struct {
	Timeout time.Duration
	Context string
	Logger  *slog.Logger
}

// Extractor produces schema-conforming arguments through a StructuredExtractor.
type Extractor struct {
	service nlu.StructuredExtractor
	timeout time.Duration
	context string
	logger  *slog.Logger
}

// NewExtractor creates an extractor backed by service.
func NewExtractor(service nlu.StructuredExtractor, opts Options) *Extractor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Extractor{
		service: service,
		timeout: opts.Timeout,
		context: opts.Context,
		logger:  logger,
	}
}

// Extract returns arguments for def, or an error and no arguments.
func (e *Extractor) Extract(ctx context.Context, transcription string, def hook.Definition) (hook.Arguments, error) {
	if len(def.Schema) == 0 {
		return hook.Arguments{}, nil
	}
	if e.service == nil {
		return nil, fmt.Errorf("%w: structured extractor is not configured", ErrExtractionFailed)
	}

	req := nlu.ExtractRequest{
		Transcription: transcription,
		Context:       e.context,
		HookID:        def.ID,
		Task:          def.Task,
		Fields:        make([]nlu.Field, 0, len(def.Schema)),
	}
	for _, p := range def.Schema {
		req.Fields = append(req.Fields, nlu.Field{
			Name:        p.Name,
			Type:        string(p.Type),
			Description: p.Description,
			Required:    p.Required,
			Enum:        append([]string(nil), p.Enum...),
		})
	}

	callCtx := ctx
	cancel := context.CancelFunc(func() {})
	if e.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
	}
	defer cancel()

	raw, err := e.service.Extract(callCtx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", ErrExtractionTimeout, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	if extra := unknownFields(raw, def.Schema); len(extra) > 0 {
		e.logger.Debug("ignoring fields outside hook schema", "hook", def.ID, "fields", extra)
	}
	return conform(def, raw)
}

// conform validates raw against the schema in declaration order.
func conform(def hook.Definition, raw map[string]any) (hook.Arguments, error) {
	args := make(hook.Arguments, len(def.Schema))
	var missing []string
	var violation *SchemaViolationError

	for _, p := range def.Schema {
		value, present := raw[p.Name]
		if !present || value == nil || isBlank(value) {
			if p.Required {
				missing = append(missing, p.Name)
				continue
			}
			args[p.Name] = hook.Absent(p.Type)
			continue
		}

		v, ok := coerce(p, value)
		if !ok {
			if violation == nil {
				violation = &SchemaViolationError{HookID: def.ID, Field: p.Name, Expected: p.Type, Actual: describe(p, value)}
			}
			continue
		}
		args[p.Name] = v
	}

	if len(missing) > 0 {
		return nil, &IncompleteExtractionError{HookID: def.ID, Missing: missing}
	}
	if violation != nil {
		return nil, violation
	}
	return args, nil
}

func coerce(p hook.Param, value any) (hook.Value, bool) {
	switch p.Type {
	case hook.TypeString:
		s, ok := value.(string)
		if !ok {
			return hook.Value{}, false
		}
		return hook.StringValue(strings.TrimSpace(s)), true
	case hook.TypeNumber:
		n, ok := asNumber(value)
		if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
			return hook.Value{}, false
		}
		return hook.NumberValue(n), true
	case hook.TypeBoolean:
		b, ok := value.(bool)
		if !ok {
			return hook.Value{}, false
		}
		return hook.BoolValue(b), true
	case hook.TypeEnum:
		s, ok := value.(string)
		if !ok {
			return hook.Value{}, false
		}
		for _, allowed := range p.Enum {
			if strings.EqualFold(strings.TrimSpace(s), allowed) {
				return hook.EnumValue(allowed), true
			}
		}
		return hook.Value{}, false
	default:
		return hook.Value{}, false
	}
}

func asNumber(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}

func isBlank(value any) bool {
	s, ok := value.(string)
	return ok && strings.TrimSpace(s) == ""
}

func describe(p hook.Param, value any) string {
	switch v := value.(type) {
	case string:
		if p.Type == hook.TypeEnum {
			return fmt.Sprintf("%q (allowed: %s)", v, strings.Join(p.Enum, ", "))
		}
		return fmt.Sprintf("string %q", v)
	case bool:
		return "boolean"
	case float64, float32, int, int32, int64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", value)
	}
}

func unknownFields(raw map[string]any, schema hook.Schema) []string {
	var extra []string
	for name := range raw {
		if _, ok := schema.Lookup(name); !ok {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return extra
}
