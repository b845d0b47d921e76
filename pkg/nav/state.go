// Package nav is the navigation orchestrator. It follows the line, stops
// at junctions to classify them from a static snapshot, and steers around
// obstacles. The caller reads one junction decision per stop and calls
// ResumeFollowing to continue.
package nav

// State is the navigation state.
type State int

const (
	FollowingLine State = iota
	MovingToStop
	StoppedForCheck
	VerifyingAllWhite
	AtJunction
	AvoidingRight
	AvoidingForward
	AvoidingLeft
	Stopped
	Error
)

var stateNames = [...]string{
	FollowingLine:     "following_line",
	MovingToStop:      "moving_to_stop",
	StoppedForCheck:   "stopped_for_check",
	VerifyingAllWhite: "verifying_all_white",
	AtJunction:        "at_junction",
	AvoidingRight:     "avoiding_right",
	AvoidingForward:   "avoiding_forward",
	AvoidingLeft:      "avoiding_left",
	Stopped:           "stopped",
	Error:             "error",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText renders the state by name in telemetry.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Avoiding reports whether an obstacle maneuver is running.
func (s State) Avoiding() bool {
	return s == AvoidingRight || s == AvoidingForward || s == AvoidingLeft
}

// Fault explains why the controller entered Error.
type Fault int

const (
	NoFault Fault = iota
	SensorFailure
	LineLost
)

func (f Fault) String() string {
	switch f {
	case SensorFailure:
		return "sensor_failure"
	case LineLost:
		return "line_lost"
	default:
		return "none"
	}
}
