package middleware

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/vango-dev/statetree/pkg/observable"
)

// Chain merges hooks so that each event reaches every non-nil field, in order.
func Chain(hooks ...observable.Hooks) observable.Hooks {
	var out observable.Hooks
	for _, h := range hooks {
		h := h
		if h.Stale != nil {
			prev := out.Stale
			out.Stale = func(n *observable.Node, key string) {
				if prev != nil {
					prev(n, key)
				}
				h.Stale(n, key)
			}
		}
		if h.Pruned != nil {
			prev := out.Pruned
			out.Pruned = func(n *observable.Node, key string, id uint64) {
				if prev != nil {
					prev(n, key, id)
				}
				h.Pruned(n, key, id)
			}
		}
		if h.Scheduled != nil {
			prev := out.Scheduled
			out.Scheduled = func(r *observable.Reaction) {
				if prev != nil {
					prev(r)
				}
				h.Scheduled(r)
			}
		}
		if h.Diff != nil {
			prev := out.Diff
			out.Diff = func(root *observable.Node, d observable.Diff) {
				if prev != nil {
					prev(root, d)
				}
				h.Diff(root, d)
			}
		}
	}
	return out
}

// LogHooks returns hooks writing one debug record per engine event.
func LogHooks(logger *slog.Logger) observable.Hooks {
	return observable.Hooks{
		Stale: func(n *observable.Node, key string) {
			logger.Debug("computed marked stale", "path", joinPath(n.Path(), key))
		},
		Scheduled: func(r *observable.Reaction) {
			logger.Debug("reaction scheduled", "reaction", r.Name(), "id", r.ID())
		},
		Diff: func(_ *observable.Node, d observable.Diff) {
			logger.Debug("diff recorded", "path", strings.Join(d.Path, "."), "kind", diffKind(d))
		},
	}
}

func joinPath(path []string, key string) string {
	return strings.Join(append(path, key), ".")
}

func formatValue(v any) string {
	if n, ok := v.(*observable.Node); ok {
		return "node:" + strings.Join(n.Path(), ".")
	}
	return fmt.Sprint(v)
}
