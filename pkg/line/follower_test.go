package line

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/linecart/internal/clock"
	"github.com/gwillem/linecart/internal/robottest"
	"github.com/gwillem/linecart/pkg/robot"
)

func newTestFollower() (*Follower, *robottest.Sensors, *robottest.Motion, *clock.Manual) {
	s := robottest.NewSensors()
	m := &robottest.Motion{}
	clk := clock.NewManual(time.Unix(0, 0))
	return NewFollower(s, m, DefaultConfig(), clk, nil), s, m, clk
}

func TestFollowerGoesStraightOnCenteredLine(t *testing.T) {
	f, s, m, _ := newTestFollower()
	s.SetLine("00011000")

	res := f.Update()
	assert.Equal(t, Tracking, res.Status)
	assert.Equal(t, 0, res.Position)
	assert.Equal(t, robottest.Command{Verb: robottest.Forward, Speed: 180}, m.Last())
	assert.Len(t, m.Commands, 1)
}

func TestFollowerPivotsTowardLine(t *testing.T) {
	f, s, m, _ := newTestFollower()

	s.SetLine("11000000")
	res := f.Update()
	assert.InDelta(t, -0.8, res.Turn, 1e-9)
	assert.Equal(t, robottest.Command{Verb: robottest.SpinLeft, Speed: 180}, m.Last())

	f.Reset()
	s.SetLine("00110000")
	res = f.Update()
	assert.InDelta(t, -0.58, res.Turn, 1e-9)
	last := m.Last()
	assert.Equal(t, robottest.SpinLeft, last.Verb)
	assert.InDelta(t, 147, last.Speed, 1)

	f.Reset()
	s.SetLine("00000011")
	f.Update()
	assert.Equal(t, robottest.SpinRight, m.Last().Verb)
}

func TestFollowerReportsTrigger(t *testing.T) {
	f, s, _, _ := newTestFollower()
	s.SetLine("11011000")
	assert.Equal(t, LeftEdge, f.Update().Trigger)
}

func TestFollowerSensorFailureCeiling(t *testing.T) {
	f, s, m, _ := newTestFollower()
	s.SetLine("00011000")
	f.Update()
	m.Clear()

	s.LineErr = robot.ErrBusFailure
	for i := 1; i < 5; i++ {
		res := f.Update()
		require.Equal(t, Coasting, res.Status, "failure %d", i)
		assert.Equal(t, robottest.Forward, m.Last().Verb)
	}
	res := f.Update()
	assert.Equal(t, SensorFault, res.Status)
	assert.Equal(t, robottest.Stop, m.Last().Verb)
	assert.Len(t, m.Commands, 5)

	// a good read clears the counter
	s.SetLine("00011000")
	assert.Equal(t, Tracking, f.Update().Status)
}

func TestFollowerLineLostAfterGrace(t *testing.T) {
	f, s, m, clk := newTestFollower()
	s.SetLine("00000011")
	f.Update()
	turn := m.Last()

	s.SetLine("00000000")
	assert.Equal(t, Coasting, f.Update().Status)
	assert.Equal(t, turn, m.Last())

	clk.Advance(1400 * time.Millisecond)
	assert.Equal(t, Coasting, f.Update().Status)

	clk.Advance(200 * time.Millisecond)
	assert.Equal(t, LineLost, f.Update().Status)
	assert.Equal(t, robottest.Stop, m.Last().Verb)

	s.SetLine("00011000")
	assert.Equal(t, Tracking, f.Update().Status)
}

func TestFollowerClearLostRestartsGrace(t *testing.T) {
	f, s, _, clk := newTestFollower()
	s.SetLine("00000000")
	assert.Equal(t, Coasting, f.Update().Status)

	clk.Advance(5 * time.Second)
	f.ClearLost()
	assert.Equal(t, Coasting, f.Update().Status)

	clk.Advance(1600 * time.Millisecond)
	assert.Equal(t, LineLost, f.Update().Status)
}

func TestFollowerIntegralAndTurnClamps(t *testing.T) {
	tests := []struct {
		name       string
		ki         float64
		wantTurn   float64
		wantUnwind float64
	}{
		{"integral saturates at 100", 0.5, 0.5, 0.43},
		{"turn saturates at 0.8", 1, 0.8, 0.8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := robottest.NewSensors()
			cfg := DefaultConfig()
			cfg.Kp, cfg.Ki, cfg.Kd = 0, tt.ki, 0
			f := NewFollower(s, &robottest.Motion{}, cfg, clock.NewManual(time.Unix(0, 0)), nil)

			// position 14, held long enough to wind the integral past 100
			s.SetLine("00011100")
			var res Result
			for i := 0; i < 20; i++ {
				res = f.Update()
			}
			require.Equal(t, 14, res.Position)
			assert.InDelta(t, 100, f.integral, 1e-9)
			assert.InDelta(t, tt.wantTurn, res.Turn, 1e-9)

			// the clamped integral unwinds from 100, not from 280
			s.SetLine("00111000")
			res = f.Update()
			require.Equal(t, -14, res.Position)
			assert.InDelta(t, 86, f.integral, 1e-9)
			assert.InDelta(t, tt.wantUnwind, res.Turn, 1e-9)
		})
	}
}

func TestFollowerBaseSpeed(t *testing.T) {
	f, s, m, _ := newTestFollower()
	f.SetBaseSpeed(100)
	s.SetLine("00011000")
	f.Update()
	assert.Equal(t, 100, m.Last().Speed)

	f.Reset()
	assert.Equal(t, 180, f.BaseSpeed())
}
