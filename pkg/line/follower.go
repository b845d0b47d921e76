package line

import (
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/gwillem/linecart/internal/clock"
	"github.com/gwillem/linecart/pkg/robot"
)

// Config tunes the PID follower.
type Config struct {
	Kp float64 `json:"kp"`
	Ki float64 `json:"ki"`
	Kd float64 `json:"kd"`

	BaseSpeed int `json:"base_speed"`
	// Gains applied to left and right pivot magnitudes.
	LeftGain  float64 `json:"left_gain"`
	RightGain float64 `json:"right_gain"`

	// FailureCeiling is the number of consecutive unreadable snapshots
	// after which the follower stops and reports a fault.
	FailureCeiling int `json:"failure_ceiling"`
	// LostGrace is how long the follower coasts without seeing line.
	LostGrace time.Duration `json:"lost_grace"`
}

// DefaultConfig returns the tuned follower defaults.
func DefaultConfig() Config {
	return Config{
		Kp:             1,
		Ki:             0,
		Kd:             1,
		BaseSpeed:      180,
		LeftGain:       1,
		RightGain:      1,
		FailureCeiling: 5,
		LostGrace:      1500 * time.Millisecond,
	}
}

const (
	integralLimit = 100
	turnLimit     = 0.8
	deadBand      = 0.2
)

// Status is the outcome of one follower tick.
type Status int

const (
	// Tracking means the line was seen and a fresh steering command issued.
	Tracking Status = iota
	// Coasting means the previous command was repeated because the
	// snapshot was unreadable or showed no line.
	Coasting
	// LineLost means the line has been gone longer than the grace period.
	LineLost
	// SensorFault means the failure ceiling was reached.
	SensorFault
)

func (s Status) String() string {
	switch s {
	case Tracking:
		return "tracking"
	case Coasting:
		return "coasting"
	case LineLost:
		return "line_lost"
	case SensorFault:
		return "sensor_fault"
	default:
		return "unknown"
	}
}

// Result describes one follower tick.
type Result struct {
	Status   Status
	Reading  robot.LineReading
	Readable bool
	Position int
	Turn     float64
	Trigger  TriggerType
}

type driveKind int

const (
	driveForward driveKind = iota
	driveSpinLeft
	driveSpinRight
	driveStop
)

type drive struct {
	kind  driveKind
	speed int
}

func (d drive) apply(m robot.Motion) {
	switch d.kind {
	case driveForward:
		m.MoveForward(d.speed)
	case driveSpinLeft:
		m.SpinLeft(d.speed)
	case driveSpinRight:
		m.SpinRight(d.speed)
	case driveStop:
		m.EmergencyStop()
	}
}

// Follower steers along the line with a PID loop on the line position.
// Every call to Update issues exactly one motion command.
type Follower struct {
	sensors robot.Sensors
	motion  robot.Motion
	clock   clock.Clock
	logger  *slog.Logger
	cfg     Config

	baseSpeed int
	lastError int
	integral  float64
	lastTurn  float64
	last      drive
	failures  int
	lostSince time.Time
	lost      bool
}

// NewFollower creates a follower. Zero gains and limits fall back to
// DefaultConfig.
func NewFollower(sensors robot.Sensors, motion robot.Motion, cfg Config, clk clock.Clock, logger *slog.Logger) *Follower {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Follower{
		sensors: sensors,
		motion:  motion,
		clock:   clock.OrSystem(clk),
		logger:  logger.With("component", "follower"),
		cfg:     cfg.WithDefaults(),
	}
	f.Reset()
	return f
}

// WithDefaults fills zero-valued fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.Kp == 0 && c.Ki == 0 && c.Kd == 0 {
		c.Kp, c.Ki, c.Kd = d.Kp, d.Ki, d.Kd
	}
	if c.BaseSpeed <= 0 {
		c.BaseSpeed = d.BaseSpeed
	}
	if c.LeftGain == 0 {
		c.LeftGain = d.LeftGain
	}
	if c.RightGain == 0 {
		c.RightGain = d.RightGain
	}
	if c.FailureCeiling <= 0 {
		c.FailureCeiling = d.FailureCeiling
	}
	if c.LostGrace <= 0 {
		c.LostGrace = d.LostGrace
	}
	return c
}

// Reset clears the PID state and failure counters and restores the
// configured base speed.
func (f *Follower) Reset() {
	f.baseSpeed = f.cfg.BaseSpeed
	f.lastError = 0
	f.integral = 0
	f.lastTurn = 0
	f.failures = 0
	f.lost = false
	f.last = drive{kind: driveForward, speed: f.baseSpeed}
}

// ClearLost restarts the line-lost grace period. Time spent holding
// still does not count toward it.
func (f *Follower) ClearLost() { f.lost = false }

// SetBaseSpeed changes the cruising speed until the next Reset.
func (f *Follower) SetBaseSpeed(speed int) {
	if speed > 0 {
		f.baseSpeed = speed
	}
}

// BaseSpeed returns the current cruising speed.
func (f *Follower) BaseSpeed() int { return f.baseSpeed }

// Update runs one follower tick against the snapshot of the current tick.
func (f *Follower) Update() Result {
	r, err := f.sensors.LineSensors()
	if err != nil {
		return f.onReadFailure(err)
	}
	f.failures = 0

	res := Result{Reading: r, Readable: true, Trigger: DetectTrigger(r)}
	pos, ok := ComputePosition(r)
	if !ok {
		res.Status = f.onNoLine()
		return res
	}
	f.lost = false

	res.Position = pos
	res.Turn = f.pid(pos)
	f.last = f.steer(res.Turn)
	f.last.apply(f.motion)
	res.Status = Tracking
	return res
}

func (f *Follower) onReadFailure(err error) Result {
	f.failures++
	if !errors.Is(err, robot.ErrBusFailure) {
		f.logger.Debug("unexpected line read error", "err", err)
	}
	if f.failures >= f.cfg.FailureCeiling {
		f.motion.EmergencyStop()
		f.last = drive{kind: driveStop}
		if f.failures == f.cfg.FailureCeiling {
			f.logger.Error("line sensors unreadable, stopping", "failures", f.failures, "err", err)
		}
		return Result{Status: SensorFault}
	}
	f.last.apply(f.motion)
	return Result{Status: Coasting}
}

func (f *Follower) onNoLine() Status {
	now := f.clock.Now()
	if !f.lost {
		f.lost = true
		f.lostSince = now
	}
	if now.Sub(f.lostSince) > f.cfg.LostGrace {
		f.motion.EmergencyStop()
		f.last = drive{kind: driveStop}
		return LineLost
	}
	f.last.apply(f.motion)
	return Coasting
}

func (f *Follower) pid(pos int) float64 {
	e := pos
	f.integral = clamp(f.integral+float64(e), -integralLimit, integralLimit)
	de := e - f.lastError
	f.lastError = e

	turn := (f.cfg.Kp*float64(e) + f.cfg.Ki*f.integral + f.cfg.Kd*float64(de)) / 100
	turn = clamp(turn, -turnLimit, turnLimit)
	f.lastTurn = turn
	return turn
}

// steer maps a turn magnitude onto a drive command. Small corrections go
// straight; larger ones pivot at a speed scaled from half to full base
// speed across the 0.2..0.8 band.
func (f *Follower) steer(turn float64) drive {
	if math.Abs(turn) < deadBand {
		return drive{kind: driveForward, speed: f.baseSpeed}
	}
	kind, gain := driveSpinRight, f.cfg.RightGain
	if turn < 0 {
		kind, gain = driveSpinLeft, f.cfg.LeftGain
	}
	mag := math.Abs(turn) * gain * 100
	half := f.baseSpeed / 2
	speed := float64(half) + (mag-20)*float64(f.baseSpeed-half)/60
	s := int(clamp(speed, float64(half), float64(f.baseSpeed)))
	return drive{kind: kind, speed: s}
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
