package selftrain

// State is the controller's position in the self-training state machine:
// Initialized -> Iterating -> {Converged, Exhausted}. Both terminal states
// proceed identically to final evaluation.
type State int

const (
	StateInitialized State = iota
	StateIterating
	// StateConverged means the held-out pool was emptied by promotion.
	StateConverged
	// StateExhausted means the iteration budget ran out with samples still held out.
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateIterating:
		return "iterating"
	case StateConverged:
		return "converged"
	case StateExhausted:
		return "exhausted"
	}
	return "unknown"
}

// Terminal reports whether no further iterations can run.
func (s State) Terminal() bool {
	return s == StateConverged || s == StateExhausted
}
