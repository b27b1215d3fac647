// Package hook defines voice-triggerable hooks, their parameter schemas, and the registry.
package hook

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// ParamType is the closed set of parameter types a hook schema may declare.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeEnum    ParamType = "enum"
)

// ParseParamType maps a declared type name onto a ParamType.
func ParseParamType(raw string) (ParamType, bool) {
	switch ParamType(strings.ToLower(strings.TrimSpace(raw))) {
	case TypeString:
		return TypeString, true
	case TypeNumber:
		return TypeNumber, true
	case TypeBoolean:
		return TypeBoolean, true
	case TypeEnum:
		return TypeEnum, true
	default:
		return "", false
	}
}

// Param is one named hook parameter.
type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
	Enum        []string
}

// Schema is the ordered parameter list of one hook.
type Schema []Param

// Clone returns a deep copy so registered schemas cannot be mutated by callers.
func (s Schema) Clone() Schema {
	if s == nil {
		return nil
	}
	out := make(Schema, len(s))
	for i, p := range s {
		p.Enum = append([]string(nil), p.Enum...)
		out[i] = p
	}
	return out
}

// Lookup returns the parameter named name.
func (s Schema) Lookup(name string) (Param, bool) {
	for _, p := range s {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Callback is the capability invoked once per matched utterance.
type Callback interface {
	Invoke(context.Context, Arguments) error
}

// CallbackFunc adapts a function to the Callback interface.
type CallbackFunc func(context.Context, Arguments) error

func (f CallbackFunc) Invoke(ctx context.Context, args Arguments) error {
	return f(ctx, args)
}

// Definition is one registered hook.
type Definition struct {
	ID       string
	Task     string
	Matching string
	Schema   Schema
	Callback Callback
}

var (
	hookIDPattern    = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)
	paramNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// validate checks identifier, callback, and schema invariants.
func (d Definition) validate() error {
	if !hookIDPattern.MatchString(d.ID) {
		return &InvalidHookError{ID: d.ID, Reason: "identifier must be upper-case letters, digits, and underscores"}
	}
	if d.Callback == nil {
		return &InvalidHookError{ID: d.ID, Reason: "callback is required"}
	}
	if strings.TrimSpace(d.Matching) == "" && strings.TrimSpace(d.Task) == "" {
		return &InvalidHookError{ID: d.ID, Reason: "task or matching description is required"}
	}
	return validateSchema(d.ID, d.Schema)
}

func validateSchema(hookID string, schema Schema) error {
	seen := make(map[string]struct{}, len(schema))
	for _, p := range schema {
		if !paramNamePattern.MatchString(p.Name) {
			return &InvalidSchemaError{HookID: hookID, Param: p.Name, Reason: "invalid parameter name"}
		}
		if _, dup := seen[p.Name]; dup {
			return &InvalidSchemaError{HookID: hookID, Param: p.Name, Reason: "duplicate parameter"}
		}
		seen[p.Name] = struct{}{}

		if _, ok := ParseParamType(string(p.Type)); !ok || ParamType(strings.ToLower(string(p.Type))) != p.Type {
			return &InvalidSchemaError{HookID: hookID, Param: p.Name, Reason: fmt.Sprintf("unrecognized type %q", p.Type)}
		}
		if p.Type == TypeEnum && len(p.Enum) == 0 {
			return &InvalidSchemaError{HookID: hookID, Param: p.Name, Reason: "enum requires at least one value"}
		}
		if p.Type != TypeEnum && len(p.Enum) > 0 {
			return &InvalidSchemaError{HookID: hookID, Param: p.Name, Reason: "values are only allowed on enum parameters"}
		}
		for _, v := range p.Enum {
			if strings.TrimSpace(v) == "" {
				return &InvalidSchemaError{HookID: hookID, Param: p.Name, Reason: "enum values must not be blank"}
			}
		}
	}
	return nil
}
