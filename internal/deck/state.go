package deck

// State is where a Deck is in its lifecycle.
type State int32

const (
	// Unbound: no device found yet.
	Unbound State = iota
	// Bound: device open, no key map installed.
	Bound
	// Ready: key map and dependencies installed.
	Ready
	// Closed: shut down; terminal.
	Closed
)

func (s State) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case Bound:
		return "bound"
	case Ready:
		return "ready"
	case Closed:
		return "closed"
	}
	return "unknown"
}
