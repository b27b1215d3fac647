// Package cli defines the voxhook command tree and parses argv into one command.
package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
)

type Command string

const (
	CommandListen  Command = "listen"
	CommandStart   Command = "start"
	CommandStop    Command = "stop"
	CommandToggle  Command = "toggle"
	CommandCancel  Command = "cancel"
	CommandStatus  Command = "status"
	CommandSay     Command = "say"
	CommandHooks   Command = "hooks"
	CommandHistory Command = "history"
	CommandDevices Command = "devices"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

// DefaultHistoryLimit is the history --limit default.
const DefaultHistoryLimit = 20

type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool
	Text       string
	Limit      int
}

type subcommand struct {
	command Command
	short   string
	long    string
}

var simpleCommands = []subcommand{
	{command: CommandListen, short: "Run the voice command daemon", long: `
		Run the daemon that owns the microphone, the hook registry, and the dispatch journal.
		Bind "voxhook start" and "voxhook stop" to press and release of a compositor key.`},
	{command: CommandStart, short: "Start recording an utterance"},
	{command: CommandStop, short: "Stop recording and dispatch the utterance"},
	{command: CommandToggle, short: "Start recording, or stop when already recording"},
	{command: CommandCancel, short: "Discard the recording or abandon the utterance being processed"},
	{command: CommandStatus, short: "Print the daemon state"},
	{command: CommandHooks, short: "List registered hooks"},
	{command: CommandDevices, short: "List available input devices"},
	{command: CommandDoctor, short: "Run configuration and environment checks"},
	{command: CommandVersion, short: "Print version information"},
}

// Parse resolves args into one command. Errors are usage errors.
func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}
	root := newRoot(&parsed)
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)

	if err := root.Execute(); err != nil {
		return Parsed{}, err
	}
	return parsed, nil
}

// HelpText renders top-level usage.
func HelpText(binaryName string) string {
	var parsed Parsed
	root := newRoot(&parsed)
	root.Use = binaryName + " [--config PATH] <command>"

	var b bytes.Buffer
	root.SetOut(&b)
	_ = root.Help()
	return b.String()
}

func newRoot(parsed *Parsed) *cobra.Command {
	var showVersion bool

	root := &cobra.Command{
		Use:   "voxhook [--config PATH] <command>",
		Short: "Hold-to-talk voice commands for Wayland desktops",
		Long: heredoc.Doc(`
			voxhook turns a spoken utterance into exactly one hook invocation.

			The utterance is transcribed, matched against the hooks file, and the matched
			hook receives the arguments extracted from what was said.
		`),
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(*cobra.Command, []string) {
			if showVersion {
				parsed.Command = CommandVersion
				parsed.ShowHelp = false
			}
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().BoolVar(&showVersion, "version", false, "Show version")
	root.PersistentFlags().StringVar(&parsed.ConfigPath, "config", "", "Config file path (default: $XDG_CONFIG_HOME/voxhook/config.jsonc)")

	set := func(command Command) {
		parsed.Command = command
		parsed.ShowHelp = false
	}

	for _, sc := range simpleCommands {
		cmd := &cobra.Command{
			Use:   string(sc.command),
			Short: sc.short,
			Args:  cobra.NoArgs,
			Run:   func(*cobra.Command, []string) { set(sc.command) },
		}
		if sc.long != "" {
			cmd.Long = heredoc.Doc(sc.long)
		}
		root.AddCommand(cmd)
	}

	root.AddCommand(&cobra.Command{
		Use:   "say TEXT...",
		Short: "Dispatch text as if it had been spoken",
		Long: heredoc.Doc(`
			Dispatch TEXT through intent resolution and argument extraction without audio.
			The running daemon handles the request; without one it runs in-process.
		`),
		Args: cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return errors.New("say requires text")
			}
			set(CommandSay)
			parsed.Text = text
			return nil
		},
	})

	history := &cobra.Command{
		Use:   "history",
		Short: "Print recent dispatch outcomes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if parsed.Limit < 0 {
				return fmt.Errorf("--limit must be >= 0")
			}
			set(CommandHistory)
			return nil
		},
	}
	history.Flags().IntVar(&parsed.Limit, "limit", DefaultHistoryLimit, "Number of records to print (0 = all)")
	root.AddCommand(history)

	return root
}
