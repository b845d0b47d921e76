package mission

import (
	"time"

	"github.com/gwillem/linecart/pkg/robot"
)

// sequence plays a table of arm poses, one step per hold period. It is
// advanced once per tick and never blocks.
type sequence struct {
	arm       robot.Manipulator
	steps     []Step
	idx       int
	stepStart time.Time
}

func (s *sequence) start(arm robot.Manipulator, steps []Step, now time.Time) {
	s.arm = arm
	s.steps = steps
	s.idx = 0
	s.issue(now)
}

func (s *sequence) issue(now time.Time) {
	s.stepStart = now
	step := s.steps[s.idx]
	if step.Rest {
		s.arm.Reset()
		return
	}
	s.arm.AdjustArm(step.Pose)
}

// advance moves to the next step once the current one has been held
// long enough and reports whether the sequence is finished.
func (s *sequence) advance(now time.Time) bool {
	if s.idx >= len(s.steps) {
		return true
	}
	if now.Sub(s.stepStart) < s.steps[s.idx].Hold {
		return false
	}
	s.idx++
	if s.idx >= len(s.steps) {
		return true
	}
	s.issue(now)
	return false
}

// step returns the index of the pose being held.
func (s *sequence) step() int { return s.idx }
