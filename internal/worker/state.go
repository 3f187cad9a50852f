package worker

// State is a worker lifecycle state.
type State int32

const (
	Created State = iota
	Started
	Looping
	Idling
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Started:
		return "started"
	case Looping:
		return "looping"
	case Idling:
		return "idling"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}
