// Package robottest provides scripted collaborators for exercising the
// control stack without hardware.
package robottest

import (
	"context"

	"github.com/gwillem/linecart/pkg/robot"
)

// Sensors is a scripted sensor service. Tests set the fields between ticks.
type Sensors struct {
	Line     robot.LineReading
	LineErr  error
	Dist     float64
	DistErr  error
	Col      robot.ColorCode
	ColErr   error
	Refreshs int
}

// NewSensors returns sensors with no echo and no color.
func NewSensors() *Sensors {
	return &Sensors{DistErr: robot.ErrNoEcho, ColErr: robot.ErrNoColor}
}

func (s *Sensors) Refresh(ctx context.Context) error {
	s.Refreshs++
	return ctx.Err()
}

func (s *Sensors) LineSensors() (robot.LineReading, error) { return s.Line, s.LineErr }
func (s *Sensors) Distance() (float64, error)              { return s.Dist, s.DistErr }
func (s *Sensors) Color() (robot.ColorCode, error)         { return s.Col, s.ColErr }

// SetLine sets the line pattern from a string like "00011000".
func (s *Sensors) SetLine(pattern string) {
	r, ok := robot.ParseLineReading(pattern)
	if !ok {
		panic("robottest: bad line pattern " + pattern)
	}
	s.Line = r
	s.LineErr = nil
}

// SetDistance sets a valid ranging reading.
func (s *Sensors) SetDistance(cm float64) {
	s.Dist = cm
	s.DistErr = nil
}

// NoEcho makes the ranger report no echo.
func (s *Sensors) NoEcho() {
	s.Dist = 0
	s.DistErr = robot.ErrNoEcho
}

// Motion verbs recorded by Motion.
const (
	Forward      = "forward"
	Backward     = "backward"
	TurnLeft     = "turn_left"
	TurnRight    = "turn_right"
	SpinLeft     = "spin_left"
	SpinRight    = "spin_right"
	LateralLeft  = "lateral_left"
	LateralRight = "lateral_right"
	Stop         = "stop"
)

// Command is one recorded motion call.
type Command struct {
	Verb  string
	Speed int
}

// Motion records every drive command.
type Motion struct {
	Commands []Command
}

func (m *Motion) add(verb string, speed int) {
	m.Commands = append(m.Commands, Command{Verb: verb, Speed: speed})
}

func (m *Motion) MoveForward(speed int)  { m.add(Forward, speed) }
func (m *Motion) MoveBackward(speed int) { m.add(Backward, speed) }
func (m *Motion) TurnLeft(speed int)     { m.add(TurnLeft, speed) }
func (m *Motion) TurnRight(speed int)    { m.add(TurnRight, speed) }
func (m *Motion) SpinLeft(speed int)     { m.add(SpinLeft, speed) }
func (m *Motion) SpinRight(speed int)    { m.add(SpinRight, speed) }
func (m *Motion) LateralLeft(speed int)  { m.add(LateralLeft, speed) }
func (m *Motion) LateralRight(speed int) { m.add(LateralRight, speed) }
func (m *Motion) EmergencyStop()         { m.add(Stop, 0) }

// Last returns the most recent command, or the zero Command.
func (m *Motion) Last() Command {
	if len(m.Commands) == 0 {
		return Command{}
	}
	return m.Commands[len(m.Commands)-1]
}

// Count returns how many times verb was issued.
func (m *Motion) Count(verb string) int {
	n := 0
	for _, c := range m.Commands {
		if c.Verb == verb {
			n++
		}
	}
	return n
}

// Clear forgets all recorded commands.
func (m *Motion) Clear() { m.Commands = nil }

// Arm is a scripted manipulator.
type Arm struct {
	Ready  bool
	Poses  []robot.Pose
	Resets int
}

func (a *Arm) GraspReady() bool       { return a.Ready }
func (a *Arm) AdjustArm(p robot.Pose) { a.Poses = append(a.Poses, p) }
func (a *Arm) Reset()                 { a.Resets++ }

var (
	_ robot.Sensors     = (*Sensors)(nil)
	_ robot.Motion      = (*Motion)(nil)
	_ robot.Manipulator = (*Arm)(nil)
	_ robot.Sensors     = (*robot.Link)(nil)
	_ robot.Motion      = (*robot.Link)(nil)
	_ robot.Manipulator = (*robot.Arm)(nil)
)
