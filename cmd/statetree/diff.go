package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/statetree/pkg/codec"
	"github.com/vango-dev/statetree/pkg/observable"
	"github.com/vango-dev/statetree/pkg/schema"
)

func diffCmd(e *env) *cobra.Command {
	var (
		schemaPath string
		fromPath   string
		toPath     string
		format     string
		out        output
	)

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Print the diffs turning one document into another",
		Long: `Print the diffs turning one document into another.

The first document is loaded into a tree and the second is applied
to it as a snapshot. The diffs recorded on the way are printed; fed
to 'statetree replay' against the first document they reproduce the
second.

Applying a snapshot may change readonly properties; replay goes
through the validated write path and rejects those diffs. They are
still printed, and each one is reported as a warning.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := e.format(format)
			if err != nil {
				return err
			}
			root, err := e.loadTree(schemaPath, fromPath, f)
			if err != nil {
				return err
			}
			e.instrument(cmd.Context(), root)

			target, err := readDocument(toPath, f)
			if err != nil {
				return err
			}
			if err := root.ApplySnapshot(target, observable.AsJSON()); err != nil {
				return err
			}

			diffs := root.Diffs()
			payload, err := codec.EncodeDiffs(f, diffs)
			if err != nil {
				return err
			}
			if err := e.write(out, f, payload); err != nil {
				return err
			}
			if len(diffs) == 0 {
				warn(e.stderr, "documents are equal")
			}
			for _, p := range readonlyPaths(root.Descriptor(), diffs) {
				warn(e.stderr, "%s is readonly; replay will reject this diff", p)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaPath, "schema", "", "Schema file (YAML)")
	cmd.Flags().StringVar(&fromPath, "from", "", "Original document")
	cmd.Flags().StringVar(&toPath, "to", "", "Changed document")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Document and diff format: json or cbor")
	cmd.Flags().StringVarP(&out.path, "out", "o", "", "Output file (default: stdout)")
	cmd.Flags().BoolVar(&out.compress, "compress", false, "zstd-compress the output")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

// readonlyPaths returns the dotted paths of diffs landing on readonly
// properties.
func readonlyPaths(desc *schema.Descriptor, diffs []observable.Diff) []string {
	var paths []string
	for _, d := range diffs {
		if p := desc.Lookup(d.Path); p != nil && p.IsReadonly() {
			paths = append(paths, strings.Join(d.Path, "."))
		}
	}
	return paths
}
