// Package ipc carries one-line JSON requests between the voxhook CLI and the listen daemon
// over a unix socket.
package ipc

import (
	"errors"

	"github.com/rbright/voxhook/internal/journal"
)

// Commands accepted by the daemon.
const (
	CommandStart   = "start"
	CommandStop    = "stop"
	CommandToggle  = "toggle"
	CommandCancel  = "cancel"
	CommandStatus  = "status"
	CommandSay     = "say"
	CommandHooks   = "hooks"
	CommandHistory = "history"
)

// Request is one client command. Text is used by say, Limit by history.
type Request struct {
	Command string `json:"command"`
	Text    string `json:"text,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// Response is the daemon's reply.
type Response struct {
	OK      bool             `json:"ok"`
	State   string           `json:"state,omitempty"`
	Message string           `json:"message,omitempty"`
	Error   string           `json:"error,omitempty"`
	Outcome *journal.Record  `json:"outcome,omitempty"`
	History []journal.Record `json:"history,omitempty"`
	Hooks   []HookSummary    `json:"hooks,omitempty"`
}

// HookSummary describes one registered hook.
type HookSummary struct {
	ID       string   `json:"id"`
	Task     string   `json:"task,omitempty"`
	Matching string   `json:"matching,omitempty"`
	Params   []string `json:"params,omitempty"`
}

// Err returns the reply's error text as an error, nil when OK.
func (r Response) Err() error {
	if r.OK {
		return nil
	}
	if r.Error == "" {
		return errors.New("request failed")
	}
	return errors.New(r.Error)
}
