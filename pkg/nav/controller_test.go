package nav

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/linecart/internal/clock"
	"github.com/gwillem/linecart/internal/robottest"
	"github.com/gwillem/linecart/pkg/line"
	"github.com/gwillem/linecart/pkg/robot"
)

const tick = 20 * time.Millisecond

type harness struct {
	c   *Controller
	s   *robottest.Sensors
	m   *robottest.Motion
	clk *clock.Manual
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	s := robottest.NewSensors()
	m := &robottest.Motion{}
	clk := clock.NewManual(time.Unix(0, 0))
	return &harness{c: New(s, m, DefaultConfig(), clk, nil), s: s, m: m, clk: clk}
}

func (h *harness) step() State {
	h.clk.Advance(tick)
	return h.c.Update()
}

// runUntil ticks until the controller reaches want, failing after limit ticks.
func (h *harness) runUntil(t *testing.T, want State, limit int) {
	t.Helper()
	for i := 0; i < limit; i++ {
		if h.step() == want {
			return
		}
	}
	t.Fatalf("state %s not reached, still %s", want, h.c.State())
}

func TestEdgeTriggerStopsAndClassifies(t *testing.T) {
	h := newHarness(t)
	h.s.SetLine("00011000")
	assert.Equal(t, FollowingLine, h.step())

	h.s.SetLine("11011000")
	assert.Equal(t, MovingToStop, h.step())
	assert.Equal(t, robottest.Command{Verb: robottest.Forward, Speed: 100}, h.m.Last())
	assert.Equal(t, line.NoJunction, h.c.Junction())

	h.runUntil(t, StoppedForCheck, 20)
	assert.Equal(t, robottest.Stop, h.m.Last().Verb)

	h.runUntil(t, AtJunction, 10)
	assert.Equal(t, line.TLeft, h.c.Junction())

	// holds until released
	h.step()
	assert.Equal(t, AtJunction, h.c.State())

	h.c.ResumeFollowing()
	assert.Equal(t, FollowingLine, h.c.State())
	assert.Equal(t, line.NoJunction, h.c.Junction())
}

func TestAllLineMidMotionIsTForward(t *testing.T) {
	h := newHarness(t)
	h.s.SetLine("11111111")

	assert.Equal(t, AtJunction, h.step())
	assert.Equal(t, line.TForward, h.c.Junction())
	assert.Equal(t, robottest.Stop, h.m.Last().Verb)
}

func TestAllClearStopIsVerified(t *testing.T) {
	tests := []struct {
		name     string
		trigger  string
		after    string
		want     line.JunctionType
		spinVerb string
	}{
		{"line reappears left", "11011000", "11000000", line.LeftTurn, robottest.SpinLeft},
		{"still clear keeps provisional", "11011000", "00000000", line.LeftTurn, robottest.SpinLeft},
		{"reappears as T", "00011011", "00011111", line.TRight, robottest.SpinRight},
		{"unclassifiable keeps provisional", "00011011", "00011000", line.RightTurn, robottest.SpinRight},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.s.SetLine(tt.trigger)
			require.Equal(t, MovingToStop, h.step())

			h.s.SetLine("00000000")
			h.runUntil(t, VerifyingAllWhite, 30)
			assert.Equal(t, tt.spinVerb, h.m.Last().Verb)

			h.s.SetLine(tt.after)
			h.runUntil(t, AtJunction, 10)
			assert.Equal(t, tt.want, h.c.Junction())
			assert.Equal(t, 1, h.m.Count(robottest.Stop)-1, "one stop after the pivot")
		})
	}
}

func TestObstacleAvoidanceLegs(t *testing.T) {
	h := newHarness(t)
	h.s.SetLine("00011000")
	h.s.SetDistance(8)

	assert.Equal(t, AvoidingRight, h.step())
	assert.Equal(t, robottest.Stop, h.m.Last().Verb)
	h.s.NoEcho()
	h.s.SetLine("00000000")

	assert.Equal(t, AvoidingRight, h.step())
	assert.Equal(t, robottest.LateralRight, h.m.Last().Verb)

	h.runUntil(t, AvoidingForward, 100)
	assert.Equal(t, robottest.Forward, h.m.Last().Verb)

	h.runUntil(t, AvoidingLeft, 200)
	assert.Equal(t, robottest.LateralLeft, h.m.Last().Verb)

	assert.Equal(t, AvoidingLeft, h.step())
	h.s.SetLine("00001000")
	assert.Equal(t, FollowingLine, h.step(), "exits on the first tick the center sees line")
}

func TestObstacleAvoidanceLastLegTimeout(t *testing.T) {
	h := newHarness(t)
	h.s.SetLine("00011000")
	h.s.SetDistance(5)
	h.step()
	h.s.NoEcho()
	h.s.SetLine("00000000")

	h.runUntil(t, AvoidingLeft, 300)
	h.runUntil(t, FollowingLine, 100)
	assert.Equal(t, robottest.Stop, h.m.Last().Verb)
}

func TestObstacleAvoidanceDisabled(t *testing.T) {
	h := newHarness(t)
	h.c.SetObstacleAvoidance(false)
	h.s.SetLine("00011000")
	h.s.SetDistance(5)

	assert.Equal(t, FollowingLine, h.step())
	assert.Equal(t, robottest.Forward, h.m.Last().Verb)
}

func TestLineLostIsFatal(t *testing.T) {
	h := newHarness(t)
	h.s.SetLine("00011000")
	h.step()

	h.s.SetLine("00000000")
	h.runUntil(t, Error, 200)
	assert.Equal(t, LineLost, h.c.Fault())
	assert.Equal(t, robottest.Stop, h.m.Last().Verb)
}

func TestSensorFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	h.s.LineErr = robot.ErrBusFailure

	for i := 0; i < 4; i++ {
		require.Equal(t, FollowingLine, h.step())
	}
	assert.Equal(t, Error, h.step())
	assert.Equal(t, SensorFailure, h.c.Fault())
}

func TestResumeFollowingWhileFollowingIssuesNoCommand(t *testing.T) {
	h := newHarness(t)
	h.c.ResumeFollowing()
	assert.Equal(t, FollowingLine, h.c.State())
	assert.Empty(t, h.m.Commands)
}

func TestResumeAfterHoldRestartsLostTimer(t *testing.T) {
	h := newHarness(t)
	h.s.SetLine("00011000")
	h.step()

	h.s.SetLine("00000000")
	for i := 0; i < 50; i++ {
		require.Equal(t, FollowingLine, h.step())
	}

	// the caller holds the cart still without ticking navigation
	h.clk.Advance(5 * time.Second)
	h.c.ResumeFollowing()
	assert.Equal(t, FollowingLine, h.step())

	for i := 0; i < 98; i++ {
		require.Equal(t, FollowingLine, h.step(), "tick %d", i)
	}
	h.runUntil(t, Error, 5)
	assert.Equal(t, LineLost, h.c.Fault())
}

func TestResumeIgnoresJunctionUnderArray(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		want    State
	}{
		{"stop bar", "11111111", AtJunction},
		{"right edge", "00011011", MovingToStop},
		{"left edge", "11011000", MovingToStop},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.s.SetLine(tt.pattern)
			h.c.Stop()
			h.c.ResumeFollowing()

			for i := 0; i < 100; i++ {
				require.Equal(t, FollowingLine, h.step(), "tick %d", i)
			}
			assert.NotEqual(t, robottest.Stop, h.m.Last().Verb)

			h.s.SetLine("00011000")
			h.step()
			h.s.SetLine(tt.pattern)
			assert.Equal(t, tt.want, h.step())
		})
	}
}

func TestDepartureWindowTimesOut(t *testing.T) {
	h := newHarness(t)
	h.s.SetLine("11111111")
	require.Equal(t, AtJunction, h.step())
	h.c.ResumeFollowing()

	for i := 1; i < 150; i++ {
		require.Equal(t, FollowingLine, h.step(), "tick %d", i)
	}
	assert.Equal(t, AtJunction, h.step())
	assert.Equal(t, line.TForward, h.c.Junction())
}

func TestStopAndResume(t *testing.T) {
	h := newHarness(t)
	h.c.Stop()
	assert.Equal(t, Stopped, h.c.State())
	assert.Equal(t, robottest.Stop, h.m.Last().Verb)

	h.s.SetLine("00011000")
	assert.Equal(t, Stopped, h.step())

	h.c.ResumeFollowing()
	assert.Equal(t, FollowingLine, h.step())
}

func TestInitClearsError(t *testing.T) {
	h := newHarness(t)
	h.s.LineErr = robot.ErrBusFailure
	h.runUntil(t, Error, 10)

	h.c.Init()
	assert.Equal(t, FollowingLine, h.c.State())
	assert.Equal(t, NoFault, h.c.Fault())
	assert.True(t, h.c.ObstacleAvoidance())
}
