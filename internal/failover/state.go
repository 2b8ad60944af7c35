package failover

// State of the supervised member set.
type State int

const (
	StateUnknown State = iota
	StateStable
	StateDegraded
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateStable:
		return "stable"
	case StateDegraded:
		return "degraded"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
