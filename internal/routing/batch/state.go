package batch

// State is the executor's lifecycle state
type State int32

// State constants. A run moves Idle -> Planning -> Executing and ends in
// Completed, or in Failed when a permission error aborted it.
const (
	StateIdle State = iota
	StatePlanning
	StateExecuting
	StateCompleted
	StateFailed
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StatePlanning:
		return "Planning"
	case StateExecuting:
		return "Executing"
	case StateCompleted:
		return "Completed"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}
