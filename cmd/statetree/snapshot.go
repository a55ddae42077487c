package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vango-dev/statetree/pkg/codec"
	"github.com/vango-dev/statetree/pkg/observable"
)

func snapshotCmd(e *env) *cobra.Command {
	var (
		schemaPath string
		statePath  string
		format     string
		outFormat  string
		out        output
		digest     bool
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Validate a document and write its canonical snapshot",
		Long: `Validate a document and write its canonical snapshot.

The document is loaded into a tree and snapshotted again, so the
output holds normalised values only. Use --to to convert between
JSON and CBOR and --digest to print the BLAKE3 fingerprint, which is
equal for equal snapshots in either format.

Examples:
  statetree snapshot --schema profile.yaml --state ada.json
  statetree snapshot --schema profile.yaml --state ada.json --to cbor --out ada.cbor --compress`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := e.format(format)
			if err != nil {
				return err
			}
			to := in
			if outFormat != "" {
				if to, err = codec.ParseFormat(outFormat); err != nil {
					return err
				}
			}
			root, err := e.loadTree(schemaPath, statePath, in)
			if err != nil {
				return err
			}

			snap, err := root.Snapshot(observable.AsJSON())
			if err != nil {
				return err
			}
			payload, err := codec.EncodeSnapshot(to, snap)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("compress") {
				out.compress = e.cfg.Snapshot.Compress
			}
			if err := e.write(out, to, payload); err != nil {
				return err
			}

			if digest || e.cfg.Snapshot.Digest {
				d, err := codec.Fingerprint(snap)
				if err != nil {
					return err
				}
				fmt.Fprintf(e.stderr, "digest %s\n", d)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaPath, "schema", "", "Schema file (YAML)")
	cmd.Flags().StringVar(&statePath, "state", "", "State document")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Input format: json or cbor")
	cmd.Flags().StringVar(&outFormat, "to", "", "Output format (default: the input format)")
	cmd.Flags().StringVarP(&out.path, "out", "o", "", "Output file (default: stdout)")
	cmd.Flags().BoolVar(&out.compress, "compress", false, "zstd-compress the output")
	cmd.Flags().BoolVar(&digest, "digest", false, "Print the snapshot fingerprint to stderr")
	_ = cmd.MarkFlagRequired("state")
	return cmd
}
