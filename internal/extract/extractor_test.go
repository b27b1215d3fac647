package extract

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/rbright/voxhook/internal/hook"
	"github.com/rbright/voxhook/internal/nlu"
)

type fakeService struct {
	calls  atomic.Int32
	values map[string]any
	err    error
	block  bool
	last   nlu.ExtractRequest
}

func (f *fakeService) Extract(ctx context.Context, req nlu.ExtractRequest) (map[string]any, error) {
	f.calls.Add(1)
	f.last = req
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.values, f.err
}

func noop(context.Context, hook.Arguments) error { return nil }

func insertText() hook.Definition {
	return hook.Definition{
		ID:   "INSERT_TEXT",
		Task: "insert text",
		Schema: hook.Schema{
			{Name: "inserted_text", Type: hook.TypeString, Description: "the text to insert", Required: true},
		},
		Callback: hook.CallbackFunc(noop),
	}
}

func mediaHook() hook.Definition {
	return hook.Definition{
		ID:   "MEDIA",
		Task: "control media",
		Schema: hook.Schema{
			{Name: "volume_level", Type: hook.TypeNumber, Required: true},
			{Name: "muted", Type: hook.TypeBoolean},
			{Name: "mode", Type: hook.TypeEnum, Enum: []string{"Play", "Pause"}},
			{Name: "player", Type: hook.TypeString},
		},
		Callback: hook.CallbackFunc(noop),
	}
}

func TestExtractEmptySchemaSkipsService(t *testing.T) {
	svc := &fakeService{}
	def := hook.Definition{ID: "LOCK_SCREEN", Task: "lock", Callback: hook.CallbackFunc(noop)}

	args, err := NewExtractor(svc, Options{}).Extract(context.Background(), "lock the screen", def)
	require.NoError(t, err)
	require.Empty(t, args)
	require.NotNil(t, args)
	require.Zero(t, svc.calls.Load())
}

func TestExtractInsertText(t *testing.T) {
	svc := &fakeService{values: map[string]any{"inserted_text": "hello world"}}

	args, err := NewExtractor(svc, Options{Context: "ctx"}).Extract(context.Background(), "write hello world please", insertText())
	require.NoError(t, err)
	if diff := cmp.Diff(hook.Arguments{"inserted_text": hook.StringValue("hello world")}, args); diff != "" {
		t.Fatalf("arguments mismatch (-want +got):\n%s", diff)
	}

	require.Equal(t, "INSERT_TEXT", svc.last.HookID)
	require.Equal(t, "ctx", svc.last.Context)
	require.Equal(t, []nlu.Field{{Name: "inserted_text", Type: "string", Description: "the text to insert", Required: true}}, svc.last.Fields)
}

func TestExtractTypedValuesAndOptionalAbsent(t *testing.T) {
	svc := &fakeService{values: map[string]any{
		"volume_level": 35.0,
		"mode":         "pause",
		"muted":        nil,
		"unrelated":    "ignored",
	}}

	args, err := NewExtractor(svc, Options{}).Extract(context.Background(), "pause and set volume to 35", mediaHook())
	require.NoError(t, err)

	want := hook.Arguments{
		"volume_level": hook.NumberValue(35),
		"muted":        hook.Absent(hook.TypeBoolean),
		"mode":         hook.EnumValue("Pause"),
		"player":       hook.Absent(hook.TypeString),
	}
	if diff := cmp.Diff(want, args); diff != "" {
		t.Fatalf("arguments mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractMissingRequiredFields(t *testing.T) {
	def := hook.Definition{
		ID: "SEND",
		Schema: hook.Schema{
			{Name: "recipient", Type: hook.TypeString, Required: true},
			{Name: "body", Type: hook.TypeString, Required: true},
			{Name: "urgent", Type: hook.TypeBoolean},
		},
		Callback: hook.CallbackFunc(noop),
	}

	tests := []struct {
		name    string
		values  map[string]any
		missing []string
	}{
		{name: "absent", values: map[string]any{}, missing: []string{"recipient", "body"}},
		{name: "null", values: map[string]any{"recipient": nil, "body": "hi"}, missing: []string{"recipient"}},
		{name: "blank", values: map[string]any{"recipient": "bob", "body": "   "}, missing: []string{"body"}},
		{name: "nil map", values: nil, missing: []string{"recipient", "body"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeService{values: tc.values}
			args, err := NewExtractor(svc, Options{}).Extract(context.Background(), "send it", def)
			require.Nil(t, args)

			var incomplete *IncompleteExtractionError
			require.ErrorAs(t, err, &incomplete)
			require.Equal(t, "SEND", incomplete.HookID)
			require.Equal(t, tc.missing, incomplete.Missing)
		})
	}
}

func TestExtractSchemaViolations(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]any
		field  string
	}{
		{name: "number as word", values: map[string]any{"volume_level": "loud"}, field: "volume_level"},
		{name: "number as numeric string", values: map[string]any{"volume_level": "35"}, field: "volume_level"},
		{name: "boolean as string", values: map[string]any{"volume_level": 1.0, "muted": "true"}, field: "muted"},
		{name: "enum outside set", values: map[string]any{"volume_level": 1.0, "mode": "stop"}, field: "mode"},
		{name: "string as number", values: map[string]any{"volume_level": 1.0, "player": 7.0}, field: "player"},
		{name: "first in schema order", values: map[string]any{"volume_level": "x", "muted": "y"}, field: "volume_level"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeService{values: tc.values}
			args, err := NewExtractor(svc, Options{}).Extract(context.Background(), "utterance", mediaHook())
			require.Nil(t, args)

			var violation *SchemaViolationError
			require.ErrorAs(t, err, &violation)
			require.Equal(t, tc.field, violation.Field)
			require.Contains(t, err.Error(), tc.field)
		})
	}
}

func TestExtractServiceFailures(t *testing.T) {
	t.Run("transient", func(t *testing.T) {
		svc := &fakeService{err: fmt.Errorf("503: %w", nlu.ErrTransient)}
		_, err := NewExtractor(svc, Options{}).Extract(context.Background(), "u", insertText())
		require.ErrorIs(t, err, ErrExtractionFailed)
		require.ErrorIs(t, err, nlu.ErrTransient)
	})

	t.Run("malformed", func(t *testing.T) {
		svc := &fakeService{err: fmt.Errorf("decode: %w", nlu.ErrMalformedResponse)}
		_, err := NewExtractor(svc, Options{}).Extract(context.Background(), "u", insertText())
		require.ErrorIs(t, err, ErrExtractionFailed)
		require.ErrorIs(t, err, nlu.ErrMalformedResponse)
	})

	t.Run("timeout", func(t *testing.T) {
		svc := &fakeService{block: true}
		_, err := NewExtractor(svc, Options{Timeout: 20 * time.Millisecond}).Extract(context.Background(), "u", insertText())
		require.ErrorIs(t, err, ErrExtractionTimeout)
	})

	t.Run("parent cancelled", func(t *testing.T) {
		svc := &fakeService{block: true}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewExtractor(svc, Options{Timeout: time.Second}).Extract(ctx, "u", insertText())
		require.True(t, errors.Is(err, context.Canceled))
	})
}
