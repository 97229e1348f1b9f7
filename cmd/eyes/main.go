package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/eyes"
	"github.com/vango-dev/eyes/internal/config"
	"github.com/vango-dev/eyes/internal/errors"
)

// Version information set at build time.
var (
	version = eyes.Version
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// rootOptions holds the persistent flags.
type rootOptions struct {
	configPath  string
	noColor     bool
	errorFormat string
}

// execute runs the CLI with args and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	opts := &rootOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.Execute(); err != nil {
		reportError(stderr, err, opts)
		return 1
	}
	return 0
}

// reportError prints err in the format chosen by --error-format. Errors
// without a registered code, such as flag parsing errors, are reported
// as usage errors.
func reportError(w io.Writer, err error, opts *rootOptions) {
	if opts.noColor || os.Getenv("NO_COLOR") != "" {
		errors.DisableColors()
	}
	e := errors.FromError(err, errors.CodeUsage)
	switch opts.errorFormat {
	case "json":
		fmt.Fprintln(w, e.FormatJSON())
	case "compact":
		fmt.Fprintln(w, e.FormatCompact())
	default:
		errors.PrintError(w, e)
	}
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "eyes",
		Short: "Inspect and exercise the eyes reactive runtime",
		Long: `eyes is the command line companion of the eyes reactive runtime.

It computes array and lookup deltas for scripted mutations, measures
how much work incremental consumers save over full recomputation, and
serves a live feed of store accesses for an inspector UI.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to eyes.json (default: nearest eyes.json above the working directory)")
	rootCmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored error output")
	rootCmd.PersistentFlags().StringVar(&opts.errorFormat, "error-format", "text", "error output format: text, compact or json")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		switch opts.errorFormat {
		case "text", "compact", "json":
			return nil
		}
		return errors.New(errors.CodeUsage).
			WithDetailf("unknown error format %q", opts.errorFormat).
			WithSuggestion("Use text, compact or json")
	}

	load := func(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
		var (
			cfg *config.Config
			err error
		)
		if opts.configPath != "" {
			cfg, err = config.LoadFile(opts.configPath)
		} else {
			cfg, err = config.LoadOrDefault(".")
		}
		if err != nil {
			return nil, nil, err
		}
		return cfg, cfg.Log.Logger(cmd.ErrOrStderr()), nil
	}

	rootCmd.AddCommand(
		deltaCmd(load),
		benchCmd(load),
		inspectCmd(load),
		errorsCmd(),
		versionCmd(),
	)
	return rootCmd
}

// loader resolves the configuration and logger of a command.
type loader func(cmd *cobra.Command) (*config.Config, *slog.Logger, error)

// field prints one aligned "label: value" line.
func field(w io.Writer, label string, value any) {
	fmt.Fprintf(w, "%-10s%v\n", label+":", value)
}
