package main

import (
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/statetree/pkg/codec"
	"github.com/vango-dev/statetree/pkg/observable"
)

func replayCmd(e *env) *cobra.Command {
	var (
		schemaPath string
		statePath  string
		diffsPath  string
		recordPath string
		format     string
		watch      []string
		out        output
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Apply a diff stream to a document",
		Long: `Apply a diff stream to a document.

Diffs are applied in order through the validated write path inside
one action. Replay stops at the first diff that fails validation;
the snapshot is not written in that case. Diffs on readonly
properties always fail, including those 'statetree diff' prints
when the documents differ in a readonly property. With --record
the diffs recorded by the replay itself are written too. Every --watch path is
read by a reaction before the replay; paths whose value changed are
printed once the replay is done.

Example:
  statetree replay --schema profile.yaml --state ada.json --diffs history.json --out grace.json`,
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
			e.instrument(cmd.Context(), root)

			data, err := readPayload(diffsPath)
			if err != nil {
				return err
			}
			diffs, err := codec.DecodeDiffs(f, data)
			if err != nil {
				return fmt.Errorf("%s: %w", diffsPath, err)
			}
			queue := observable.NewQueue()
			defer observable.SetScheduler(queue)()
			watchers := watchPaths(root, watch, e.stderr)

			if err := root.ApplyDiffs(diffs); err != nil {
				return err
			}
			ran := queue.Flush()
			runtime.KeepAlive(watchers)
			e.logger.Info("replayed", "diffs", len(diffs), "recorded", len(root.Diffs()), "reactions", ran)

			snap, err := root.Snapshot(observable.AsJSON())
			if err != nil {
				return err
			}
			payload, err := codec.EncodeSnapshot(f, snap)
			if err != nil {
				return err
			}
			if err := e.write(out, f, payload); err != nil {
				return err
			}

			if recordPath != "" {
				recorded, err := codec.EncodeDiffs(f, root.Diffs())
				if err != nil {
					return err
				}
				return e.write(output{path: recordPath}, f, recorded)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaPath, "schema", "", "Schema file (YAML)")
	cmd.Flags().StringVar(&statePath, "state", "", "Initial document")
	cmd.Flags().StringVar(&diffsPath, "diffs", "", "Diff stream to apply")
	cmd.Flags().StringVar(&recordPath, "record", "", "Write the diffs recorded during replay to this file")
	cmd.Flags().StringArrayVar(&watch, "watch", nil, "Dotted path to report when it changes (repeatable)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Document and diff format: json or cbor")
	cmd.Flags().StringVarP(&out.path, "out", "o", "", "Output file (default: stdout)")
	cmd.Flags().BoolVar(&out.compress, "compress", false, "zstd-compress the output snapshot")
	_ = cmd.MarkFlagRequired("state")
	_ = cmd.MarkFlagRequired("diffs")
	return cmd
}

// watchPaths starts one reaction per dotted path. Every run after the first
// prints the value read. The caller keeps the returned
// reactions alive for as long as they should fire.
func watchPaths(root *observable.Node, paths []string, w io.Writer) []*observable.Reaction {
	reactions := make([]*observable.Reaction, 0, len(paths))
	for _, p := range paths {
		keys := strings.Split(p, ".")
		first := true
		r := observable.NewReaction("watch "+p, func() {
			// Formatting reads the whole subtree, so it runs every time.
			line := p + " = "
			if v, err := readPath(root, keys); err != nil {
				line = p + ": " + err.Error()
			} else {
				line += formatValue(v)
			}
			if first {
				first = false
				return
			}
			fmt.Fprintln(w, line)
		})
		r.Run()
		reactions = append(reactions, r)
	}
	return reactions
}

func readPath(n *observable.Node, keys []string) (any, error) {
	for _, key := range keys[:len(keys)-1] {
		child := n.Child(key)
		if child == nil {
			return nil, nil
		}
		n = child
	}
	return n.Get(keys[len(keys)-1])
}

func formatValue(v any) string {
	if n, ok := v.(*observable.Node); ok {
		s, err := n.Snapshot(observable.AsString())
		if err == nil {
			return s.(string)
		}
	}
	return fmt.Sprintf("%v", v)
}
