// Package cli is the one-shot command line: it edits the persisted settings
// and exits without starting the worker.
package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"cycleagent/internal/settings"
)

// Store is the settings surface the commands edit.
type Store interface {
	Snapshot() *settings.Settings
	Update(fn func(*settings.Settings)) error
	Save(force bool) error
	Path() string
}

type rootOptions struct {
	interval           time.Duration
	pause              time.Duration
	instrumentationKey string
	agentID            string
	senderType         string
	logLevel           string
}

// NewRootCommand builds the command tree.
func NewRootCommand(store Store, version string, out io.Writer) *cobra.Command {
	var opts rootOptions

	root := &cobra.Command{
		Use:   "cycleagent",
		Short: "Resource heartbeat agent",
		Long: "cycleagent collects host metrics on a fixed interval and sends them to a file, Kafka or Redis.\n" +
			"Run without arguments to start the agent. With flags, it updates the settings file and exits.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUpdate(cmd, store, &opts, out)
		},
	}

	flags := root.Flags()
	flags.DurationVar(&opts.interval, "interval", 0, "Cycle interval, e.g. 75s")
	flags.DurationVar(&opts.pause, "pause", 0, "Pause after each cycle, e.g. 10s (0 disables)")
	flags.StringVar(&opts.instrumentationKey, "instrumentation-key", "", "Telemetry instrumentation key")
	flags.StringVar(&opts.agentID, "agent-id", "", "Agent identifier (defaults to hostname)")
	flags.StringVar(&opts.senderType, "sender", "", "Sender type: file, kafka or redis")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(newShowCommand(store, out), newVersionCommand(version, out))
	return root
}

// Execute runs the command line and returns the process exit code:
// 0 on success or help, 1 on a parse or validation failure.
func Execute(args []string, store Store, version string, out, errOut io.Writer) int {
	root := NewRootCommand(store, version, out)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		fmt.Fprintf(errOut, "Run 'cycleagent --help' for usage.\n")
		return 1
	}
	return 0
}

func runUpdate(cmd *cobra.Command, store Store, opts *rootOptions, out io.Writer) error {
	flags := cmd.Flags()
	if flags.NFlag() == 0 {
		return cmd.Help()
	}

	if flags.Changed("interval") && opts.interval <= 0 {
		return fmt.Errorf("--interval must be positive, got %s", opts.interval)
	}
	if flags.Changed("pause") && opts.pause < 0 {
		return fmt.Errorf("--pause must not be negative, got %s", opts.pause)
	}
	if flags.Changed("log-level") {
		if _, err := zerolog.ParseLevel(strings.ToLower(opts.logLevel)); err != nil || opts.logLevel == "" {
			return fmt.Errorf("invalid --log-level %q", opts.logLevel)
		}
	}

	err := store.Update(func(s *settings.Settings) {
		if flags.Changed("interval") {
			s.Interval = opts.interval
		}
		if flags.Changed("pause") {
			s.PostCyclePause = opts.pause
		}
		if flags.Changed("instrumentation-key") {
			s.InstrumentationKey = opts.instrumentationKey
		}
		if flags.Changed("agent-id") {
			s.AgentID = opts.agentID
		}
		if flags.Changed("sender") {
			s.Sender.Type = strings.ToLower(opts.senderType)
		}
		if flags.Changed("log-level") {
			s.Logging.Level = strings.ToLower(opts.logLevel)
		}
	})
	if err != nil {
		return err
	}

	if err := store.Save(true); err != nil {
		return err
	}
	fmt.Fprintf(out, "Settings saved to %s\n", store.Path())
	return nil
}

func newShowCommand(store Store, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := store.Snapshot()
			s.InstrumentationKey = mask(s.InstrumentationKey)
			s.Sender.Kafka.SASLPassword = mask(s.Sender.Kafka.SASLPassword)
			s.Sender.Redis.Password = mask(s.Sender.Redis.Password)

			data, err := settings.Marshal(s)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "# %s\n%s\n", store.Path(), data)
			return nil
		},
	}
}

func newVersionCommand(version string, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(out, "cycleagent %s\n", version)
		},
	}
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "****"
}
