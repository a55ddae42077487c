package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func versionCmd(e *env) *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if short {
				fmt.Fprintln(e.stdout, version)
				return
			}
			fmt.Fprintf(e.stdout, "statetree %s\n", version)
			fmt.Fprintf(e.stdout, "  Commit:     %s\n", commit)
			fmt.Fprintf(e.stdout, "  Built:      %s\n", date)
			fmt.Fprintf(e.stdout, "  Go version: %s\n", runtime.Version())
			fmt.Fprintf(e.stdout, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only the version number")
	return cmd
}
