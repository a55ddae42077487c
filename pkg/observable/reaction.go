package observable

// Reaction is a side-effecting subscriber. Every cell it reads while tracking
// is registered against it; when one of those cells changes, the reaction is
// handed to the scheduler. Reactions have no staleness: running them again is
// the scheduler's decision.
//
// The dependency index holds reactions weakly. A reaction nobody references
// is dropped from every cell it read.
type Reaction struct {
	id    uint64
	name  string
	run   func()
	round uint64
	gen   uint64
}

// NewReaction creates a reaction. run is what Run tracks; it may be nil for
// reactions that only ever use Track.
func NewReaction(name string, run func()) *Reaction {
	return &Reaction{
		id:   nextID(),
		name: name,
		run:  run,
	}
}

// ID returns the reaction's identity.
func (r *Reaction) ID() uint64 { return r.id }

// Name returns the name given to NewReaction.
func (r *Reaction) Name() string { return r.name }

// Round returns the round the reaction last tracked in.
func (r *Reaction) Round() uint64 { return r.round }

// Track runs fn with r as the active reaction. Cells read by fn are registered
// against r for this run; cells read by earlier runs and not read again
// become orphaned edges and are pruned on their next change, even when both
// runs fall in the same round.
func (r *Reaction) Track(fn func()) {
	ctx := getTrackingContext()
	prev := ctx.reaction
	ctx.reaction = r
	defer func() { ctx.reaction = prev }()

	r.round = CurrentRound()
	r.gen++
	fn()
}

// Run tracks the function given to NewReaction.
func (r *Reaction) Run() {
	if r.run == nil {
		return
	}
	r.Track(r.run)
}
