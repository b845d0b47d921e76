// Package mission sequences the pick-and-place task: find an object,
// grasp it, read its color, deliver it to the matching zone, repeat, and
// return to base.
package mission

// State is a mission phase.
type State int

const (
	Initialized State = iota
	ObjectFind
	UltrasonicDetect
	ContinueSearch
	ObjectGrab
	ObjectPlacing
	CountIntersection
	ObjectRelease
	ErgodicJudge
	BackObjectFind
	ReturnBase
	BaseArrive
	End
	Error
)

var stateNames = [...]string{
	Initialized:       "initialized",
	ObjectFind:        "object_find",
	UltrasonicDetect:  "ultrasonic_detect",
	ContinueSearch:    "continue_search",
	ObjectGrab:        "object_grab",
	ObjectPlacing:     "object_placing",
	CountIntersection: "count_intersection",
	ObjectRelease:     "object_release",
	ErgodicJudge:      "ergodic_judge",
	BackObjectFind:    "back_object_find",
	ReturnBase:        "return_base",
	BaseArrive:        "base_arrive",
	End:               "end",
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

// Fault is the reason the mission entered Error. Non-fatal conditions
// (avoidance timeout, ambiguous junction, color read timeout) are logged
// and never become a Fault.
type Fault int

const (
	NoFault Fault = iota
	SensorFailure
	LineLost
	TurnTimeout
	GraspTimeout
	UnknownState
)

func (f Fault) String() string {
	switch f {
	case NoFault:
		return "none"
	case SensorFailure:
		return "sensor_failure"
	case LineLost:
		return "line_lost"
	case TurnTimeout:
		return "turn_timeout"
	case GraspTimeout:
		return "grasp_timeout"
	case UnknownState:
		return "unknown_state"
	default:
		return "unknown"
	}
}

// MarshalText renders the fault by name in telemetry.
func (f Fault) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// phase is the outer state of the machine. While suspended on a precise
// turn only the turn advances; the mission logic cannot run.
type phase interface {
	isPhase()
}

type running struct{}

// suspended waits for a precise turn, then enters resume.
type suspended struct {
	resume State
}

func (running) isPhase()   {}
func (suspended) isPhase() {}
