package observable

import (
	"runtime"
	"sync"
)

// trackingContext holds the reactive state for one goroutine. The active
// computation and reaction are single slots: only one of each evaluates at a
// time on a call stack.
type trackingContext struct {
	// computation is the computed property currently being evaluated. Reads
	// register it against the read cell; writes are rejected while it is set.
	computation *Computation

	// reaction is the reaction currently being tracked.
	reaction *Reaction

	// untracked counts nested Untracked calls. Reads register nothing while
	// it is above zero.
	untracked int
}

var trackingContexts sync.Map

// getGoroutineID returns the id of the calling goroutine, parsed from the
// header of its stack trace ("goroutine <id> [...").
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] == ' ' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

func getTrackingContext() *trackingContext {
	gid := getGoroutineID()
	if ctx, ok := trackingContexts.Load(gid); ok {
		return ctx.(*trackingContext)
	}
	ctx := &trackingContext{}
	trackingContexts.Store(gid, ctx)
	return ctx
}

// computing reports whether a computed property is being evaluated on this
// goroutine.
func computing() bool {
	return getTrackingContext().computation != nil
}

// track registers the active reaction and computation against (n, key).
func track(n *Node, key string) {
	ctx := getTrackingContext()
	if ctx.untracked > 0 {
		return
	}
	if ctx.reaction == nil && ctx.computation == nil {
		return
	}

	c := cellOf(n, key)
	if r := ctx.reaction; r != nil {
		c.addReaction(r)
	}
	if comp := ctx.computation; comp != nil {
		c.addComputation(comp)
	}
}

// Untracked runs fn without registering any of its reads as dependencies.
//
// Example:
//
//	r := observable.NewReaction("log", func() {
//	    name, _ := user.Get("name") // subscribes
//	    observable.Untracked(func() {
//	        age, _ := user.Get("age") // does not subscribe
//	        log.Println(name, age)
//	    })
//	})
func Untracked(fn func()) {
	ctx := getTrackingContext()
	ctx.untracked++
	defer func() { ctx.untracked-- }()
	fn()
}

// ReleaseGoroutine drops the calling goroutine's tracking state. Contexts are
// small and reused when a goroutine id is recycled, so this is only needed by
// long-lived programs that spawn many short goroutines using the engine.
func ReleaseGoroutine() {
	trackingContexts.Delete(getGoroutineID())
}
