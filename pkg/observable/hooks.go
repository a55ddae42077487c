package observable

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

var idCounter uint64

// nextID returns the next unique id for a computation, reaction or middleware.
func nextID() uint64 {
	return atomic.AddUint64(&idCounter, 1)
}

var round uint64

// CurrentRound returns the process-wide round counter. It advances once per
// top-level mutation.
func CurrentRound() uint64 {
	return atomic.LoadUint64(&round)
}

func nextRound() uint64 {
	return atomic.AddUint64(&round, 1)
}

// Hooks observe the engine. Every field is optional. Hooks run synchronously
// on the mutating goroutine and must not write to observable nodes.
type Hooks struct {
	// Stale is called when the computation of (n, key) is marked stale.
	Stale func(n *Node, key string)

	// Pruned is called when an orphaned subscription edge on (n, key) is
	// removed instead of acted upon.
	Pruned func(n *Node, key string, subscriber uint64)

	// Scheduled is called for every reaction handed to the scheduler.
	Scheduled func(r *Reaction)

	// Diff is called for every diff recorded on any tree.
	Diff func(root *Node, d Diff)
}

var hooks atomic.Pointer[Hooks]

func init() {
	hooks.Store(&Hooks{})
}

// SetHooks installs process-wide hooks and returns a function restoring the
// previous ones.
func SetHooks(h Hooks) (restore func()) {
	old := hooks.Swap(&h)
	return func() { hooks.Store(old) }
}

func currentHooks() *Hooks {
	return hooks.Load()
}

var (
	loggerMu sync.RWMutex
	logger   = slog.New(slog.DiscardHandler)
)

// SetLogger sets the logger used for debug records (named actions, pruned
// subscription edges). The default logger discards everything.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

func log() *slog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

func debugEnabled() bool {
	return log().Enabled(context.Background(), slog.LevelDebug)
}
