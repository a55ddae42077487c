package main

import (
	"github.com/spf13/cobra"

	"github.com/vango-dev/statetree/pkg/codec"
	"github.com/vango-dev/statetree/pkg/observable"
)

func checkCmd(e *env) *cobra.Command {
	var schemaPath, statePath, format string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a state document against a schema",
		Long: `Validate a state document against a schema.

The document is attached to a new tree exactly as a program would
attach it: extraneous and missing properties, kind mismatches and
values matching no alternative are reported with their error code
and the path of the offending cell.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := e.format(format)
			if err != nil {
				return err
			}
			root, err := e.loadTree(schemaPath, statePath, f)
			if err != nil {
				return err
			}

			snap, err := root.Snapshot(observable.AsJSON())
			if err != nil {
				return err
			}
			digest, err := codec.Fingerprint(snap)
			if err != nil {
				return err
			}
			success(e.stdout, "%s is valid (%d properties, %s)", statePath, len(root.Keys()), digest)
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaPath, "schema", "", "Schema file (YAML)")
	cmd.Flags().StringVar(&statePath, "state", "", "State document")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Document format: json or cbor")
	_ = cmd.MarkFlagRequired("state")
	return cmd
}
