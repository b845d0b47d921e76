package robot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrBusFailure reports a failed sensor bus transaction.
	ErrBusFailure = errors.New("sensor bus failure")
	// ErrNoEcho means the ranger heard no echo before its timeout. It is a
	// valid reading, not a fault.
	ErrNoEcho = errors.New("no ranging echo")
	// ErrNoColor means the color sensor has no valid classification.
	ErrNoColor = errors.New("no color reading")
	// ErrNotConnected is returned by collaborators used before they are opened.
	ErrNotConnected = errors.New("not connected")
)

// LineCount is the number of photodiodes in the line array.
const LineCount = 8

// LineReading is one snapshot of the line array, leftmost sensor first.
// True means line present under that sensor.
type LineReading [LineCount]bool

// Count returns the number of sensors reporting line.
func (r LineReading) Count() int {
	n := 0
	for _, v := range r {
		if v {
			n++
		}
	}
	return n
}

// Any reports whether at least one sensor sees line.
func (r LineReading) Any() bool { return r.Count() > 0 }

// All reports whether every sensor sees line.
func (r LineReading) All() bool { return r.Count() == LineCount }

// Center reports whether either sensor of the center pair sees line.
func (r LineReading) Center() bool { return r[3] || r[4] }

func (r LineReading) String() string {
	var sb strings.Builder
	for _, v := range r {
		if v {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// ParseLineReading parses a string of eight '0'/'1' characters where '1'
// means line present.
func ParseLineReading(s string) (LineReading, bool) {
	var r LineReading
	if len(s) != LineCount {
		return r, false
	}
	for i := 0; i < LineCount; i++ {
		switch s[i] {
		case '1':
			r[i] = true
		case '0':
		default:
			return r, false
		}
	}
	return r, true
}

// ColorCode is the color classification of a grasped object.
type ColorCode int

const (
	ColorUnknown ColorCode = iota
	ColorRed
	ColorBlue
	ColorYellow
	ColorWhite
	ColorBlack
)

func (c ColorCode) String() string {
	switch c {
	case ColorRed:
		return "red"
	case ColorBlue:
		return "blue"
	case ColorYellow:
		return "yellow"
	case ColorWhite:
		return "white"
	case ColorBlack:
		return "black"
	default:
		return "unknown"
	}
}

// MarshalText renders the color by name.
func (c ColorCode) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText accepts a color name as written by MarshalText.
func (c *ColorCode) UnmarshalText(b []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(b)))
	for v := ColorUnknown; v <= ColorBlack; v++ {
		if v.String() == name {
			*c = v
			return nil
		}
	}
	return fmt.Errorf("unknown color %q", b)
}

// Valid reports whether c names a real color.
func (c ColorCode) Valid() bool { return c >= ColorRed && c <= ColorBlack }

// TargetCount is the number of right-hand intersections to pass before
// the delivery zone for this color. Zero for unknown colors.
func (c ColorCode) TargetCount() int {
	if !c.Valid() {
		return 0
	}
	return int(c)
}

// Speed of sound in cm per microsecond.
const soundCmPerMicro = 0.0343

// DistanceFromEcho converts an ultrasonic round-trip time into centimeters.
func DistanceFromEcho(echo time.Duration) float64 {
	return float64(echo.Microseconds()) * soundCmPerMicro / 2
}

// Sensors is the per-tick sensor service. Refresh performs one bus
// transaction; the getters return values cached by the last Refresh.
type Sensors interface {
	Refresh(ctx context.Context) error
	// LineSensors returns ErrBusFailure when the array could not be read.
	LineSensors() (LineReading, error)
	// Distance returns ErrNoEcho when the ranger got no echo.
	Distance() (float64, error)
	// Color returns ErrNoColor when there is no valid classification.
	Color() (ColorCode, error)
}

// Motion is the drive service. Every call supersedes the previous one.
type Motion interface {
	MoveForward(speed int)
	MoveBackward(speed int)
	TurnLeft(speed int)
	TurnRight(speed int)
	SpinLeft(speed int)
	SpinRight(speed int)
	LateralLeft(speed int)
	LateralRight(speed int)
	EmergencyStop()
}

// Pose is one arm command in normalized joint units [-100, 100].
type Pose struct {
	Base     float64 `json:"base"`
	Shoulder float64 `json:"shoulder"`
	Gripper  float64 `json:"gripper"`
}

// Manipulator is the gripper arm. AdjustArm issues one pose command and
// returns without waiting for the motion to finish.
type Manipulator interface {
	GraspReady() bool
	AdjustArm(p Pose)
	Reset()
}
