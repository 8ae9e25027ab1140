package indexer

// State is the position of a poller in its polling cycle.
type State int32

const (
	Idle State = iota
	FetchingHeight
	FetchingLogs
	Processing
	Checkpointing
	ShuttingDown
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case FetchingHeight:
		return "fetching_height"
	case FetchingLogs:
		return "fetching_logs"
	case Processing:
		return "processing"
	case Checkpointing:
		return "checkpointing"
	case ShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}
