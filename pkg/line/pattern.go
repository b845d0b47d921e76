package line

import (
	"math"

	"github.com/gwillem/linecart/pkg/robot"
)

// weight returns the position weight of sensor i: -100 for the leftmost,
// +100 for the rightmost, linear in between.
func weight(i int) float64 {
	return -100 + float64(i)*200/float64(robot.LineCount-1)
}

// ComputePosition returns the signed line position in [-100, 100] as the
// mean weight of the sensors that see line. ok is false when no sensor
// sees line.
func ComputePosition(r robot.LineReading) (pos int, ok bool) {
	var sum float64
	n := 0
	for i, v := range r {
		if v {
			sum += weight(i)
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return int(math.Round(sum / float64(n))), true
}

// DetectTrigger reports an edge trigger: the outermost sensor on one side
// plus at least one of its two neighbours see line while the far side is
// clear. Patterns matching both sides or neither report NoTrigger.
func DetectTrigger(r robot.LineReading) TriggerType {
	left := r[0] && count(r[0:3]) >= 2 && count(r[5:8]) == 0
	right := r[7] && count(r[5:8]) >= 2 && count(r[0:3]) == 0
	switch {
	case left && !right:
		return LeftEdge
	case right && !left:
		return RightEdge
	default:
		return NoTrigger
	}
}

func count(bits []bool) int {
	n := 0
	for _, b := range bits {
		if b {
			n++
		}
	}
	return n
}

// Sides splits a snapshot into the three sensor groups the classifier
// looks at: the outer pair on each side and the center pair.
func Sides(r robot.LineReading) (left, center, right bool) {
	return r[0] || r[1], r[3] || r[4], r[6] || r[7]
}

// Classify names the junction under a stopped cart. trigger is the edge
// trigger that caused the stop and biases one-sided patterns.
func Classify(r robot.LineReading, trigger TriggerType) JunctionType {
	if r.All() {
		return TForward
	}
	if !r.Any() {
		return EndOfLine
	}

	left, center, right := Sides(r)
	switch {
	case trigger == LeftEdge && left && !right:
		if center {
			return TLeft
		}
		return LeftTurn
	case trigger == RightEdge && right && !left:
		if center {
			return TRight
		}
		return RightTurn
	case left && center && right:
		return Cross
	}
	return NoJunction
}
