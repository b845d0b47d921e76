// Package line turns line-array snapshots into steering and junction
// decisions: the PID follower, the edge-trigger detector and the static
// junction classifier.
package line

// TriggerType is an asymmetric pattern that usually precedes a junction.
type TriggerType int

const (
	NoTrigger TriggerType = iota
	LeftEdge
	RightEdge
)

func (t TriggerType) String() string {
	switch t {
	case LeftEdge:
		return "left_edge"
	case RightEdge:
		return "right_edge"
	default:
		return "none"
	}
}

// JunctionType is the shape of the track under a stopped cart.
type JunctionType int

const (
	NoJunction JunctionType = iota
	TLeft
	TRight
	// TForward is the inverted T or stop bar: every sensor sees line.
	TForward
	Cross
	LeftTurn
	RightTurn
	EndOfLine
)

var junctionNames = [...]string{
	NoJunction: "none",
	TLeft:      "t_left",
	TRight:     "t_right",
	TForward:   "t_forward",
	Cross:      "cross",
	LeftTurn:   "left_turn",
	RightTurn:  "right_turn",
	EndOfLine:  "end_of_line",
}

func (j JunctionType) String() string {
	if j < 0 || int(j) >= len(junctionNames) {
		return "unknown"
	}
	return junctionNames[j]
}

// MarshalText renders the junction by name in telemetry.
func (j JunctionType) MarshalText() ([]byte, error) {
	return []byte(j.String()), nil
}

// BranchesLeft reports whether the junction offers a left exit.
func (j JunctionType) BranchesLeft() bool {
	return j == TLeft || j == LeftTurn || j == Cross
}

// BranchesRight reports whether the junction offers a right exit.
func (j JunctionType) BranchesRight() bool {
	return j == TRight || j == RightTurn || j == Cross
}
