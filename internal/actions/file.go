// Package actions loads the hooks file and turns each entry into a registered hook whose
// callback types text, pastes, runs a command, or dispatches to Hyprland.
package actions

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the decoded hooks file.
type File struct {
	Hooks []HookSpec `yaml:"hooks"`
}

// HookSpec declares one hook.
type HookSpec struct {
	ID       string      `yaml:"id"`
	Task     string      `yaml:"task"`
	Matching string      `yaml:"matching"`
	Params   []ParamSpec `yaml:"params"`
	Action   ActionSpec  `yaml:"action"`
}

// ParamSpec declares one hook parameter.
type ParamSpec struct {
	Name        string   `yaml:"name"`
	Type        string   `yaml:"type"`
	Description string   `yaml:"description"`
	Required    bool     `yaml:"required"`
	Enum        []string `yaml:"enum"`
}

// ActionSpec selects what the hook does when invoked. Text, Argv, Command, Stdin, and Arg
// are text/template strings over the extracted arguments, e.g. "{{.inserted_text}}".
type ActionSpec struct {
	Type       string   `yaml:"type"`
	Text       string   `yaml:"text"`
	Argv       []string `yaml:"argv"`
	Command    string   `yaml:"command"`
	Stdin      string   `yaml:"stdin"`
	Dispatcher string   `yaml:"dispatcher"`
	Arg        string   `yaml:"arg"`
}

// Action types.
const (
	ActionType    = "type"
	ActionPaste   = "paste"
	ActionCommand = "command"
	ActionHypr    = "hypr"
)

// DefaultFile is used when no hooks file exists: dictated text is typed into the focused window.
func DefaultFile() File {
	return File{Hooks: []HookSpec{{
		ID:       "INSERT_TEXT",
		Task:     "Insert dictated text into the focused window.",
		Matching: "The user asks to write, type, insert, or dictate some text.",
		Params: []ParamSpec{{
			Name:        "inserted_text",
			Type:        "string",
			Description: "The exact text to insert, without the surrounding command words.",
			Required:    true,
		}},
		Action: ActionSpec{Type: ActionType, Text: "{{.inserted_text}}"},
	}}}
}

// Parse decodes hooks YAML. Unknown keys and multiple documents are errors.
func Parse(data []byte) (File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file File
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return File{}, errors.New("hooks file is empty")
		}
		return File{}, err
	}

	var extra any
	if err := dec.Decode(&extra); err == nil {
		return File{}, errors.New("multiple YAML documents are not supported")
	} else if !errors.Is(err, io.EOF) {
		return File{}, err
	}

	if len(file.Hooks) == 0 {
		return File{}, errors.New("hooks file declares no hooks")
	}
	return file, nil
}

// Load reads path, falling back to DefaultFile when it does not exist.
// The returned bool reports whether the file was read.
func Load(path string) (File, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultFile(), false, nil
		}
		return File{}, false, fmt.Errorf("read hooks file %s: %w", path, err)
	}

	file, err := Parse(data)
	if err != nil {
		return File{}, true, fmt.Errorf("parse hooks file %s: %w", path, err)
	}
	return file, true, nil
}
