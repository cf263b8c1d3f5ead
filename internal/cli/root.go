// Package cli implements the osc-tap CLI.
package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/yosagi/osc-tap/internal/capture"
	"github.com/yosagi/osc-tap/internal/config"
	"github.com/yosagi/osc-tap/internal/logging"
	"github.com/yosagi/osc-tap/internal/matcher"
	"github.com/yosagi/osc-tap/internal/scanner"
	"github.com/yosagi/osc-tap/internal/session"
)

var (
	flagOutput   string
	flagMatchers []string
	flagConfig   string
	flagEchoOSC  bool
	flagVerbose  bool
)

// childExitCode is the wrapped command's exit status, set once the
// session finishes.
var childExitCode int

var rootCmd = &cobra.Command{
	Use:   "osc-tap [flags] -- command [args...]",
	Short: "Run a command under a pty and capture OSC sequences",
	Long: `osc-tap runs an interactive command under a pseudo-terminal, forwards
all terminal I/O transparently, and appends OSC escape-sequence payloads
matching the configured patterns to a JSON Lines log.`,
	Example:      `  osc-tap --output ./logs --matcher TITLE='0;(.*)' -- claude`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runRoot,
}

// Execute runs the CLI and returns the process exit code. On success the
// wrapper exits with the wrapped command's status.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return childExitCode
}

func init() {
	rootCmd.Flags().StringVarP(&flagOutput, "output", "o", ".", "log output directory")
	rootCmd.Flags().StringArrayVarP(&flagMatchers, "matcher", "m", nil, "matcher definition as NAME=PATTERN (repeatable)")
	rootCmd.Flags().StringVarP(&flagConfig, "config", "c", "", "YAML file with matcher definitions")
	rootCmd.Flags().BoolVar(&flagEchoOSC, "echo-osc", false, "forward captured OSC sequences to the terminal as well")
	rootCmd.Flags().BoolVar(&flagVerbose, "verbose", false, "enable debug diagnostics")

	// Stop flag parsing at the first non-flag argument so the wrapped
	// command's own flags survive untouched.
	rootCmd.Flags().SetInterspersed(false)

	rootCmd.AddCommand(versionCmd)
}

func runRoot(cmd *cobra.Command, args []string) error {
	logging.SetVerbose(flagVerbose)
	logger := logging.NewLogger("cli")

	defs, err := collectMatchers()
	if err != nil {
		return err
	}

	// Pattern problems are fatal before the child is ever spawned.
	set, err := matcher.Compile(defs)
	if err != nil {
		return err
	}
	if set.Len() == 0 {
		fmt.Fprintln(os.Stderr, styleWarning.Render("Warning: no matchers specified. No OSC sequences will be captured."))
	}

	// An unwritable log destination is not fatal: the interactive session
	// is never sacrificed for logging. Records are dropped.
	logFile, logPath, err := config.OpenLogFile(flagOutput, time.Now())
	if err != nil {
		fmt.Fprintln(os.Stderr, styleError.Render(fmt.Sprintf("Cannot open log destination: %v", err)))
	} else {
		defer logFile.Close()
		fmt.Fprintf(os.Stderr, "%s %s\n", styleLabel.Render("Logging to:"), styleValue.Render(logPath))
	}

	var emitter *capture.Emitter
	if logFile != nil {
		emitter = capture.NewEmitter(logFile)
	} else {
		emitter = capture.NewEmitter(nil)
	}

	pipeline := capture.NewPipeline(set, emitter)
	sc := scanner.New(scanner.Options{
		Out:       os.Stdout,
		OnPayload: pipeline.Payload,
		Echo:      flagEchoOSC,
	})

	sess, err := session.New(args, sc)
	if err != nil {
		return err
	}
	logger.WithField("session", sess.ID()).Debug("Starting wrapped command")

	code, err := sess.Run()
	if err != nil {
		return err
	}
	childExitCode = code
	return nil
}

// collectMatchers merges matcher definitions from the config file (first)
// and -m flags, preserving order for evaluation.
func collectMatchers() ([]matcher.Definition, error) {
	var defs []matcher.Definition

	if flagConfig != "" {
		fileDefs, err := config.LoadMatcherFile(flagConfig)
		if err != nil {
			return nil, err
		}
		defs = append(defs, fileDefs...)
	}

	for _, arg := range flagMatchers {
		name, pattern, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid matcher %q, expected NAME=PATTERN", arg)
		}
		defs = append(defs, matcher.Definition{Name: name, Pattern: pattern})
	}

	return defs, nil
}
