package turn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/linecart/internal/clock"
	"github.com/gwillem/linecart/internal/robottest"
	"github.com/gwillem/linecart/pkg/robot"
)

const tick = 20 * time.Millisecond

func newTestTurn() (*AccurateTurn, *robottest.Sensors, *robottest.Motion, *clock.Manual) {
	s := robottest.NewSensors()
	m := &robottest.Motion{}
	clk := clock.NewManual(time.Unix(0, 0))
	return New(s, m, DefaultConfig(), clk, nil), s, m, clk
}

func TestTurnCompletesWhenCenterFindsLine(t *testing.T) {
	at, s, m, clk := newTestTurn()
	s.SetLine("00011000")

	require.True(t, at.StartLeft())
	assert.Equal(t, TurningLeft, at.State())
	assert.Equal(t, robottest.SpinLeft, m.Last().Verb)

	s.SetLine("00000000")
	for n := 1; n < 10; n++ {
		clk.Advance(tick)
		require.Equal(t, TurningLeft, at.Update(), "tick %d", n)
		assert.Equal(t, robottest.Command{Verb: robottest.SpinLeft, Speed: 150}, m.Last())
	}

	s.SetLine("00110000")
	clk.Advance(tick)
	assert.Equal(t, Completed, at.Update())
	assert.Equal(t, 1, m.Count(robottest.Stop))

	// terminal: no more commands
	n := len(m.Commands)
	clk.Advance(tick)
	assert.Equal(t, Completed, at.Update())
	assert.Len(t, m.Commands, n)
}

func TestTurnTimesOutWithoutLine(t *testing.T) {
	at, s, m, clk := newTestTurn()
	s.SetLine("00000000")
	at.StartRight()

	ticks := int(DefaultConfig().Timeout / tick)
	for n := 1; n < ticks; n++ {
		clk.Advance(tick)
		require.Equal(t, TurningRight, at.Update(), "tick %d", n)
	}
	clk.Advance(tick)
	assert.Equal(t, TimedOut, at.Update())
	assert.Equal(t, 1, m.Count(robottest.Stop))

	at.Update()
	assert.Equal(t, 1, m.Count(robottest.Stop))
}

func TestTurnIgnoresStartingLineUntilDeparture(t *testing.T) {
	at, s, _, clk := newTestTurn()
	s.SetLine("00011000")
	at.StartRight()

	// center still on the original line
	for elapsed := tick; elapsed < 500*time.Millisecond; elapsed += tick {
		clk.Advance(tick)
		require.Equal(t, TurningRight, at.Update())
	}
	clk.Advance(tick)
	assert.Equal(t, Completed, at.Update())
}

func TestTurnToleratesReadFailures(t *testing.T) {
	at, s, m, clk := newTestTurn()
	s.LineErr = robot.ErrBusFailure
	at.StartUTurn()

	for i := 0; i < 5; i++ {
		clk.Advance(tick)
		assert.Equal(t, TurningUTurn, at.Update())
	}
	assert.Equal(t, 0, m.Count(robottest.Stop))
	assert.Equal(t, robottest.SpinLeft, m.Last().Verb)

	s.SetLine("00001000")
	clk.Advance(time.Second)
	assert.Equal(t, Completed, at.Update())
}

func TestTurnStartIsNoOpUnlessIdle(t *testing.T) {
	at, s, m, clk := newTestTurn()
	s.SetLine("00000000")
	at.StartLeft()
	n := len(m.Commands)

	assert.False(t, at.StartRight())
	assert.Equal(t, TurningLeft, at.State())
	assert.Len(t, m.Commands, n)

	s.SetLine("00011000")
	clk.Advance(tick)
	require.Equal(t, Completed, at.Update())
	assert.False(t, at.StartLeft())
	assert.Equal(t, Completed, at.State())
}

func TestTurnReset(t *testing.T) {
	at, s, m, clk := newTestTurn()

	at.Reset()
	assert.Equal(t, Idle, at.State())
	assert.Empty(t, m.Commands)

	s.SetLine("00000000")
	at.StartLeft()
	clk.Advance(tick)
	s.SetLine("00011000")
	require.Equal(t, Completed, at.Update())

	at.Reset()
	assert.Equal(t, Idle, at.State())
	assert.True(t, at.StartRight())
}
