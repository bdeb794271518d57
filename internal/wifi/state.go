package wifi

// State is a step of a single connection attempt.
type State string

const (
	StateIdle              State = "Idle"
	StateScanning          State = "Scanning"
	StateConfiguring       State = "Configuring"
	StateConnecting        State = "Connecting"
	StateWaitingForAddress State = "WaitingForAddress"
	StateConnected         State = "Connected"
	StateFailed            State = "Failed"
)

// Stage numbers the states for progress lights: 0 for Idle, 1..5 along the
// happy path and -1 for Failed.
func (s State) Stage() int {
	switch s {
	case StateScanning:
		return 1
	case StateConfiguring:
		return 2
	case StateConnecting:
		return 3
	case StateWaitingForAddress:
		return 4
	case StateConnected:
		return 5
	case StateFailed:
		return -1
	default:
		return 0
	}
}
