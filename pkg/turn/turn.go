// Package turn implements sensor-terminated precision turns: the cart
// spins in place until the center sensors find the line again.
package turn

import (
	"log/slog"
	"time"

	"github.com/gwillem/linecart/internal/clock"
	"github.com/gwillem/linecart/pkg/robot"
)

// State is the state of an AccurateTurn.
type State int

const (
	Idle State = iota
	TurningLeft
	TurningRight
	TurningUTurn
	Completed
	TimedOut
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case TurningLeft:
		return "turning_left"
	case TurningRight:
		return "turning_right"
	case TurningUTurn:
		return "turning_uturn"
	case Completed:
		return "completed"
	case TimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in telemetry.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Turning reports whether a turn is in progress.
func (s State) Turning() bool {
	return s == TurningLeft || s == TurningRight || s == TurningUTurn
}

// Done reports whether the turn reached a terminal state.
func (s State) Done() bool { return s == Completed || s == TimedOut }

// Config tunes precision turns.
type Config struct {
	Speed   int           `json:"speed"`
	Timeout time.Duration `json:"timeout"`
	// Departure is how long the center sensors are ignored after the
	// start unless they read clear earlier, so the turn cannot finish on
	// the line it started from.
	Departure time.Duration `json:"departure"`
}

// DefaultConfig returns the default turn tuning.
func DefaultConfig() Config {
	return Config{
		Speed:     150,
		Timeout:   10 * time.Second,
		Departure: 500 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Speed <= 0 {
		c.Speed = d.Speed
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.Departure < 0 {
		c.Departure = 0
	}
	return c
}

// AccurateTurn spins the cart until the center pair reacquires the line
// or the timeout elapses. While turning it issues a spin on every Update;
// on reaching a terminal state it issues exactly one stop.
type AccurateTurn struct {
	sensors robot.Sensors
	motion  robot.Motion
	clock   clock.Clock
	logger  *slog.Logger
	cfg     Config

	state   State
	started time.Time
	armed   bool
}

// New creates an idle AccurateTurn.
func New(sensors robot.Sensors, motion robot.Motion, cfg Config, clk clock.Clock, logger *slog.Logger) *AccurateTurn {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccurateTurn{
		sensors: sensors,
		motion:  motion,
		clock:   clock.OrSystem(clk),
		logger:  logger.With("component", "turn"),
		cfg:     cfg.withDefaults(),
	}
}

// State returns the current state.
func (t *AccurateTurn) State() State { return t.state }

// StartLeft begins a left spin. It is a no-op unless Idle.
func (t *AccurateTurn) StartLeft() bool { return t.start(TurningLeft) }

// StartRight begins a right spin. It is a no-op unless Idle.
func (t *AccurateTurn) StartRight() bool { return t.start(TurningRight) }

// StartUTurn begins a left spin that runs until the line behind the cart
// is found. It is a no-op unless Idle.
func (t *AccurateTurn) StartUTurn() bool { return t.start(TurningUTurn) }

func (t *AccurateTurn) start(s State) bool {
	if t.state != Idle {
		t.logger.Warn("turn request ignored", "requested", s, "state", t.state)
		return false
	}
	t.state = s
	t.started = t.clock.Now()
	t.armed = false
	t.spin()
	t.logger.Debug("turn started", "state", s)
	return true
}

func (t *AccurateTurn) spin() {
	switch t.state {
	case TurningRight:
		t.motion.SpinRight(t.cfg.Speed)
	case TurningLeft, TurningUTurn:
		t.motion.SpinLeft(t.cfg.Speed)
	}
}

// Update advances the turn by one tick and returns the resulting state.
// Unreadable snapshots are tolerated; the timeout bounds the turn.
func (t *AccurateTurn) Update() State {
	if !t.state.Turning() {
		return t.state
	}

	elapsed := t.clock.Now().Sub(t.started)
	if elapsed >= t.cfg.Timeout {
		t.finish(TimedOut)
		t.logger.Warn("turn timed out", "elapsed", elapsed)
		return t.state
	}

	if elapsed >= t.cfg.Departure {
		t.armed = true
	}
	if r, err := t.sensors.LineSensors(); err == nil {
		if !r.Center() {
			t.armed = true
		} else if t.armed {
			t.finish(Completed)
			t.logger.Debug("turn completed", "elapsed", elapsed)
			return t.state
		}
	}

	t.spin()
	return t.state
}

func (t *AccurateTurn) finish(s State) {
	t.state = s
	t.motion.EmergencyStop()
}

// Reset re-arms a finished turn. It is a no-op while Idle.
func (t *AccurateTurn) Reset() {
	if t.state == Idle {
		return
	}
	if t.state.Turning() {
		t.logger.Warn("turn reset while turning", "state", t.state)
	}
	t.state = Idle
	t.armed = false
}
