package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vango-dev/statetree/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the CLI and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	e := &env{stdout: stdout, stderr: stderr}
	root := rootCmd(e)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if terr := e.teardown(context.Background()); err == nil {
		err = terr
	}
	if err != nil {
		errors.Fprint(stderr, err)
		return 1
	}
	return 0
}

func rootCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "statetree",
		Short: "Inspect, validate and replay reactive state trees",
		Long: `statetree works with schema-described state documents.

It validates documents against YAML schemas, converts snapshots
between JSON and CBOR, fingerprints them, and replays recorded
diff streams through the validated write path:

  statetree check    --schema profile.yaml --state ada.json
  statetree snapshot --schema profile.yaml --state ada.json --format cbor --digest
  statetree diff     --schema profile.yaml --from ada.json --to grace.json
  statetree replay   --schema profile.yaml --state ada.json --diffs history.json`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return e.setup(cmd) },
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&e.flags.config, "config", "", "Configuration file (default ./statetree.yaml if present)")
	flags.StringVar(&e.flags.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.BoolVar(&e.flags.metrics, "metrics", false, "Print Prometheus metrics after the command")

	cmd.AddCommand(
		checkCmd(e),
		snapshotCmd(e),
		diffCmd(e),
		replayCmd(e),
		versionCmd(e),
	)
	return cmd
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
)

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	green.Fprint(w, "✓ ")
	fmt.Fprintf(w, format+"\n", args...)
}

// warn prints a warning message.
func warn(w io.Writer, format string, args ...any) {
	yellow.Fprint(w, "⚠ ")
	fmt.Fprintf(w, format+"\n", args...)
}
