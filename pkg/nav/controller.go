package nav

import (
	"log/slog"
	"time"

	"github.com/gwillem/linecart/internal/clock"
	"github.com/gwillem/linecart/pkg/line"
	"github.com/gwillem/linecart/pkg/robot"
)

// Controller is the navigation state machine. Call Update once per tick
// after the sensors have been refreshed.
type Controller struct {
	sensors  robot.Sensors
	motion   robot.Motion
	clock    clock.Clock
	logger   *slog.Logger
	cfg      Config
	follower *line.Follower

	state      State
	phaseStart time.Time
	avoid      bool
	fault      Fault

	trigger     line.TriggerType
	junction    line.JunctionType
	provisional line.JunctionType
	pivotDone   bool
	readFails   int

	lost      bool
	lostSince time.Time
	last      line.Result

	departing   bool
	departSince time.Time
}

// New creates a controller in FollowingLine.
func New(sensors robot.Sensors, motion robot.Motion, cfg Config, clk clock.Clock, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	clk = clock.OrSystem(clk)
	cfg = cfg.withDefaults()
	c := &Controller{
		sensors:  sensors,
		motion:   motion,
		clock:    clk,
		logger:   logger.With("component", "nav"),
		cfg:      cfg,
		follower: line.NewFollower(sensors, motion, cfg.Follower, clk, logger),
	}
	c.Init()
	return c
}

// Init resets the controller to FollowingLine with avoidance set from the
// configuration.
func (c *Controller) Init() {
	c.follower.Reset()
	c.state = FollowingLine
	c.phaseStart = c.clock.Now()
	c.avoid = c.cfg.AvoidObstacles
	c.fault = NoFault
	c.clearDecision()
	c.lost = false
	c.departing = false
	c.last = line.Result{}
}

func (c *Controller) clearDecision() {
	c.trigger = line.NoTrigger
	c.junction = line.NoJunction
	c.provisional = line.NoJunction
	c.pivotDone = false
	c.readFails = 0
}

// State returns the current navigation state.
func (c *Controller) State() State { return c.state }

// Fault returns why the controller is in Error.
func (c *Controller) Fault() Fault { return c.fault }

// Junction returns the decision of the current stop, or NoJunction when
// the controller is not holding at a junction.
func (c *Controller) Junction() line.JunctionType {
	if c.state != AtJunction {
		return line.NoJunction
	}
	return c.junction
}

// LastFollow returns the follower result of the most recent tick.
func (c *Controller) LastFollow() line.Result { return c.last }

// SetObstacleAvoidance enables or disables the obstacle check.
func (c *Controller) SetObstacleAvoidance(on bool) { c.avoid = on }

// ObstacleAvoidance reports whether the obstacle check is enabled.
func (c *Controller) ObstacleAvoidance() bool { return c.avoid }

// SetBaseSpeed changes the line-following speed until Init.
func (c *Controller) SetBaseSpeed(speed int) { c.follower.SetBaseSpeed(speed) }

// ResetBaseSpeed restores the configured line-following speed.
func (c *Controller) ResetBaseSpeed() { c.follower.SetBaseSpeed(c.cfg.Follower.BaseSpeed) }

// BaseSpeed returns the line-following speed.
func (c *Controller) BaseSpeed() int { return c.follower.BaseSpeed() }

// ResumeFollowing releases a junction hold or a stop, or restarts
// following after the caller has held the cart still. Junction patterns
// are ignored until the array reads a plain line again or DepartTimeout
// elapses, so the cart drives off the junction it stopped at.
func (c *Controller) ResumeFollowing() {
	switch c.state {
	case FollowingLine:
	case AtJunction, Stopped:
		c.clearDecision()
		c.transition(FollowingLine)
	default:
		c.logger.Debug("resume ignored", "state", c.state)
		return
	}
	c.lost = false
	c.follower.ClearLost()
	c.departing = true
	c.departSince = c.clock.Now()
}

// Stop halts the cart and holds in Stopped until ResumeFollowing.
func (c *Controller) Stop() {
	c.motion.EmergencyStop()
	c.clearDecision()
	c.transition(Stopped)
}

func (c *Controller) transition(to State) {
	if to == c.state {
		return
	}
	c.logger.Debug("nav transition", "from", c.state, "to", to)
	c.state = to
	c.phaseStart = c.clock.Now()
}

func (c *Controller) fail(f Fault) {
	c.motion.EmergencyStop()
	c.fault = f
	c.logger.Error("navigation failed", "fault", f)
	c.transition(Error)
}

func (c *Controller) elapsed() time.Duration {
	return c.clock.Now().Sub(c.phaseStart)
}

// Update advances the controller by one tick.
func (c *Controller) Update() State {
	switch c.state {
	case FollowingLine:
		c.follow()
	case MovingToStop:
		c.moveToStop()
	case StoppedForCheck:
		c.check()
	case VerifyingAllWhite:
		c.verify()
	case AvoidingRight:
		c.leg(c.cfg.AvoidRight, c.motion.LateralRight, AvoidingForward)
	case AvoidingForward:
		c.leg(c.cfg.AvoidForward, c.motion.MoveForward, AvoidingLeft)
	case AvoidingLeft:
		c.avoidLeft()
	case AtJunction, Stopped, Error:
		// hold
	}
	return c.state
}

func (c *Controller) obstacleAhead() (float64, bool) {
	d, err := c.sensors.Distance()
	if err != nil {
		return 0, false
	}
	return d, d > 0 && d < c.cfg.ObstacleCm
}

func (c *Controller) follow() {
	if c.avoid {
		if d, ok := c.obstacleAhead(); ok {
			c.motion.EmergencyStop()
			c.logger.Info("obstacle ahead, avoiding", "distance_cm", d)
			c.transition(AvoidingRight)
			return
		}
	}

	res := c.follower.Update()
	c.last = res

	switch res.Status {
	case line.SensorFault:
		c.fail(SensorFailure)
		return
	case line.Tracking, line.Coasting, line.LineLost:
	}
	if !res.Readable {
		return
	}

	if !res.Reading.Any() {
		now := c.clock.Now()
		if !c.lost {
			c.lost = true
			c.lostSince = now
		}
		if now.Sub(c.lostSince) > c.cfg.LostTimeout {
			c.fail(LineLost)
		}
		return
	}
	c.lost = false

	if c.departing && !c.departed(res) {
		return
	}

	if res.Reading.All() {
		c.motion.EmergencyStop()
		c.junction = line.TForward
		c.logger.Info("junction", "junction", c.junction, "reading", res.Reading)
		c.transition(AtJunction)
		return
	}

	if res.Trigger != line.NoTrigger {
		c.trigger = res.Trigger
		c.motion.MoveForward(c.cfg.CreepSpeed)
		c.logger.Debug("edge trigger", "trigger", res.Trigger, "reading", res.Reading)
		c.transition(MovingToStop)
	}
}

// departed ends the departure window once the array reads a plain line
// or the window times out.
func (c *Controller) departed(res line.Result) bool {
	if !res.Reading.All() && res.Trigger == line.NoTrigger {
		c.departing = false
		return true
	}
	if c.clock.Now().Sub(c.departSince) < c.cfg.DepartTimeout {
		return false
	}
	c.logger.Warn("still on a junction after departing", "reading", res.Reading)
	c.departing = false
	return true
}

func (c *Controller) moveToStop() {
	if c.elapsed() >= c.cfg.Creep {
		c.motion.EmergencyStop()
		c.transition(StoppedForCheck)
		return
	}
	c.motion.MoveForward(c.cfg.CreepSpeed)
}

// staticReading samples the line array while stopped. Repeated read
// failures end in Error.
func (c *Controller) staticReading() (robot.LineReading, bool) {
	r, err := c.sensors.LineSensors()
	if err != nil {
		c.readFails++
		if c.readFails >= c.cfg.Follower.FailureCeiling {
			c.fail(SensorFailure)
		}
		return r, false
	}
	c.readFails = 0
	return r, true
}

func (c *Controller) check() {
	if c.elapsed() < c.cfg.Settle {
		return
	}
	r, ok := c.staticReading()
	if !ok {
		return
	}

	j := line.Classify(r, c.trigger)
	if !r.Any() && c.trigger != line.NoTrigger {
		// All clear after an edge trigger: the cart may have overshot a
		// plain turn. Pivot toward the trigger side and look again.
		c.provisional = line.LeftTurn
		if c.trigger == line.RightEdge {
			c.provisional = line.RightTurn
		}
		c.pivotDone = false
		c.logger.Debug("all clear at stop, verifying", "trigger", c.trigger)
		c.transition(VerifyingAllWhite)
		c.pivot()
		return
	}
	c.atJunction(j, r)
}

func (c *Controller) pivot() {
	if c.trigger == line.RightEdge {
		c.motion.SpinRight(c.cfg.CreepSpeed)
	} else {
		c.motion.SpinLeft(c.cfg.CreepSpeed)
	}
}

func (c *Controller) verify() {
	el := c.elapsed()
	if el < c.cfg.VerifyPivot {
		c.pivot()
		return
	}
	if !c.pivotDone {
		c.motion.EmergencyStop()
		c.pivotDone = true
	}
	if el < c.cfg.VerifyPivot+c.cfg.VerifySettle {
		return
	}

	j := c.provisional
	if r, err := c.sensors.LineSensors(); err == nil && r.Any() {
		if again := line.Classify(r, c.trigger); again != line.NoJunction && again != line.EndOfLine {
			j = again
		}
		c.atJunction(j, r)
		return
	}
	c.atJunction(j, robot.LineReading{})
}

func (c *Controller) atJunction(j line.JunctionType, r robot.LineReading) {
	c.junction = j
	c.logger.Info("junction", "junction", j, "trigger", c.trigger, "reading", r)
	c.transition(AtJunction)
}

func (c *Controller) leg(d time.Duration, drive func(int), next State) {
	if c.elapsed() < d {
		drive(c.cfg.AvoidSpeed)
		return
	}
	c.transition(next)
	c.Update()
}

func (c *Controller) avoidLeft() {
	if r, err := c.sensors.LineSensors(); err == nil && r.Center() {
		c.rejoin()
		return
	}
	if c.elapsed() >= c.cfg.AvoidLeft {
		c.logger.Warn("obstacle avoidance timed out without finding the line")
		c.rejoin()
		return
	}
	c.motion.LateralLeft(c.cfg.AvoidSpeed)
}

func (c *Controller) rejoin() {
	c.motion.EmergencyStop()
	c.lost = false
	c.follower.ClearLost()
	c.transition(FollowingLine)
}
