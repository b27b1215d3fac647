package actions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/rbright/voxhook/internal/config"
	"github.com/rbright/voxhook/internal/hook"
	"github.com/rbright/voxhook/internal/hypr"
	"github.com/rbright/voxhook/internal/output"
)

// TextWriter delivers text to the focused window.
type TextWriter interface {
	Type(ctx context.Context, text string) error
	Paste(ctx context.Context, text string) error
}

// Env holds the side-effect functions callbacks run against. Nil fields use the real
// implementations.
type Env struct {
	Writer   TextWriter
	Run      func(ctx context.Context, argv []string, stdin string) error
	Dispatch func(ctx context.Context, dispatcher string, arg string) error
}

func (e Env) withDefaults() Env {
	if e.Run == nil {
		e.Run = output.RunCommand
	}
	if e.Dispatch == nil {
		e.Dispatch = hypr.Dispatch
	}
	return e
}

// Register builds every hook in f and registers it in file order.
func (f File) Register(reg *hook.Registry, env Env) error {
	env = env.withDefaults()
	for i, spec := range f.Hooks {
		def, err := Build(spec, env)
		if err != nil {
			return fmt.Errorf("hook %d (%s): %w", i+1, spec.ID, err)
		}
		if err := reg.Register(def); err != nil {
			return fmt.Errorf("hook %d (%s): %w", i+1, spec.ID, err)
		}
	}
	return nil
}

// Build converts one spec into a hook definition with its callback.
func Build(spec HookSpec, env Env) (hook.Definition, error) {
	env = env.withDefaults()

	schema := make(hook.Schema, 0, len(spec.Params))
	for _, p := range spec.Params {
		paramType := hook.ParamType(strings.TrimSpace(p.Type))
		if parsed, ok := hook.ParseParamType(p.Type); ok {
			paramType = parsed
		}
		schema = append(schema, hook.Param{
			Name:        strings.TrimSpace(p.Name),
			Type:        paramType,
			Description: p.Description,
			Required:    p.Required,
			Enum:        append([]string(nil), p.Enum...),
		})
	}

	cb, err := buildCallback(spec.Action, schema, env)
	if err != nil {
		return hook.Definition{}, fmt.Errorf("action: %w", err)
	}
	return hook.Definition{
		ID:       strings.TrimSpace(spec.ID),
		Task:     strings.TrimSpace(spec.Task),
		Matching: strings.TrimSpace(spec.Matching),
		Schema:   schema,
		Callback: cb,
	}, nil
}

func buildCallback(action ActionSpec, schema hook.Schema, env Env) (hook.Callback, error) {
	kind := strings.TrimSpace(action.Type)
	switch kind {
	case ActionType, ActionPaste:
		if env.Writer == nil {
			return nil, errors.New("no text writer configured")
		}
		text, err := textTemplate(action.Text, schema)
		if err != nil {
			return nil, err
		}
		deliver := env.Writer.Type
		if kind == ActionPaste {
			deliver = env.Writer.Paste
		}
		return hook.CallbackFunc(func(ctx context.Context, args hook.Arguments) error {
			rendered, err := render(text, args)
			if err != nil {
				return err
			}
			return deliver(ctx, rendered)
		}), nil

	case ActionCommand:
		argv, err := commandTemplates(action)
		if err != nil {
			return nil, err
		}
		stdin, err := compile("stdin", action.Stdin)
		if err != nil {
			return nil, err
		}
		return hook.CallbackFunc(func(ctx context.Context, args hook.Arguments) error {
			rendered := make([]string, len(argv))
			for i, tmpl := range argv {
				word, err := render(tmpl, args)
				if err != nil {
					return err
				}
				rendered[i] = word
			}
			input, err := render(stdin, args)
			if err != nil {
				return err
			}
			return env.Run(ctx, rendered, input)
		}), nil

	case ActionHypr:
		if strings.TrimSpace(action.Dispatcher) == "" {
			return nil, errors.New("hypr action requires a dispatcher")
		}
		arg, err := compile("arg", action.Arg)
		if err != nil {
			return nil, err
		}
		return hook.CallbackFunc(func(ctx context.Context, args hook.Arguments) error {
			rendered, err := render(arg, args)
			if err != nil {
				return err
			}
			return env.Dispatch(ctx, action.Dispatcher, rendered)
		}), nil

	case "":
		return nil, errors.New("type is required (type, paste, command, or hypr)")
	default:
		return nil, fmt.Errorf("unknown type %q (expected type, paste, command, or hypr)", action.Type)
	}
}

// textTemplate defaults to the first string parameter when no text template is given.
func textTemplate(raw string, schema hook.Schema) (*template.Template, error) {
	if strings.TrimSpace(raw) == "" {
		for _, p := range schema {
			if p.Type == hook.TypeString {
				raw = "{{." + p.Name + "}}"
				break
			}
		}
	}
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("text is required when the hook has no string parameter")
	}
	return compile("text", raw)
}

func commandTemplates(action ActionSpec) ([]*template.Template, error) {
	words := action.Argv
	if len(words) > 0 && strings.TrimSpace(action.Command) != "" {
		return nil, errors.New("set either argv or command, not both")
	}
	if len(words) == 0 {
		parsed, err := config.ParseArgv(action.Command)
		if err != nil {
			return nil, err
		}
		words = parsed
	}
	if len(words) == 0 {
		return nil, errors.New("command action requires argv or command")
	}

	out := make([]*template.Template, len(words))
	for i, w := range words {
		tmpl, err := compile(fmt.Sprintf("argv[%d]", i), w)
		if err != nil {
			return nil, err
		}
		out[i] = tmpl
	}
	return out, nil
}

func compile(name string, text string) (*template.Template, error) {
	tmpl, err := template.New(name).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("invalid %s template: %w", name, err)
	}
	return tmpl, nil
}

func render(tmpl *template.Template, args hook.Arguments) (string, error) {
	var b strings.Builder
	if err := tmpl.Execute(&b, args.Strings()); err != nil {
		return "", fmt.Errorf("render %s: %w", tmpl.Name(), err)
	}
	return b.String(), nil
}
