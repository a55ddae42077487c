package observable

import (
	"sync"
	"sync/atomic"
)

// Scheduler receives reactions whose dependencies changed. The engine only
// enqueues; when and whether to run a reaction is up to the scheduler.
//
// Schedule is called synchronously from the write path, before the write
// returns, so implementations must not mutate observable state inline.
type Scheduler interface {
	Schedule(r *Reaction)
}

type schedulerHolder struct{ s Scheduler }

var scheduler atomic.Pointer[schedulerHolder]

func init() {
	scheduler.Store(&schedulerHolder{s: DefaultQueue})
}

// DefaultQueue is the scheduler installed at startup.
var DefaultQueue = NewQueue()

// SetScheduler installs s as the process-wide scheduler and returns a function
// restoring the previous one. A nil s discards scheduled reactions.
func SetScheduler(s Scheduler) (restore func()) {
	old := scheduler.Swap(&schedulerHolder{s: s})
	return func() { scheduler.Store(old) }
}

func schedule(r *Reaction) {
	if s := scheduler.Load().s; s != nil {
		s.Schedule(r)
	}
}

// Queue is a deduplicating FIFO of pending reactions.
type Queue struct {
	mu      sync.Mutex
	pending []*Reaction
	queued  map[uint64]bool
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{queued: make(map[uint64]bool)}
}

// Schedule appends r unless it is already pending.
func (q *Queue) Schedule(r *Reaction) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.queued[r.id] {
		return
	}
	q.queued[r.id] = true
	q.pending = append(q.pending, r)
}

// Len returns the number of pending reactions.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Drain removes and returns the pending reactions in scheduling order.
func (q *Queue) Drain() []*Reaction {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	clear(q.queued)
	return out
}

// maxFlushPasses bounds Flush when reactions keep rescheduling each other.
const maxFlushPasses = 100

// Flush runs pending reactions until the queue is empty and returns how many
// ran. Reactions scheduled by reactions run in a later pass. Flush gives up
// after a fixed number of passes, leaving the rest pending.
func (q *Queue) Flush() int {
	ran := 0
	for pass := 0; pass < maxFlushPasses; pass++ {
		batch := q.Drain()
		if len(batch) == 0 {
			return ran
		}
		for _, r := range batch {
			r.Run()
			ran++
		}
	}
	log().Warn("reaction queue did not settle", "passes", maxFlushPasses, "pending", q.Len())
	return ran
}
