package mission

import (
	"log/slog"
	"math"
	"time"

	"github.com/gwillem/linecart/internal/clock"
	"github.com/gwillem/linecart/pkg/line"
	"github.com/gwillem/linecart/pkg/nav"
	"github.com/gwillem/linecart/pkg/robot"
	"github.com/gwillem/linecart/pkg/turn"
)

// Deps are the hardware collaborators of the mission.
type Deps struct {
	Sensors robot.Sensors
	Motion  robot.Motion
	Arm     robot.Manipulator
}

// Machine is the mission sequencer. It owns the navigation controller and
// the precision turn. Update must be called once per tick after the
// sensors have been refreshed; it is not safe for concurrent use.
type Machine struct {
	sensors robot.Sensors
	motion  robot.Motion
	arm     robot.Manipulator
	clock   clock.Clock
	logger  *slog.Logger
	cfg     Config

	nav  *nav.Controller
	turn *turn.AccurateTurn

	outer      phase
	state      State
	phaseStart time.Time
	sub        int
	subStart   time.Time
	seq        sequence
	pending    []Command
	fault      Fault

	zone         int
	colorCounter int
	blocks       int
	color        robot.ColorCode
	tees         int
	junction     line.JunctionType

	lastDistance float64
	haveDistance bool
}

// New creates a mission machine in Initialized.
func New(deps Deps, cfg Config, clk clock.Clock, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	clk = clock.OrSystem(clk)
	cfg = cfg.WithDefaults()
	m := &Machine{
		sensors: deps.Sensors,
		motion:  deps.Motion,
		arm:     deps.Arm,
		clock:   clk,
		logger:  logger.With("component", "mission"),
		cfg:     cfg,
		nav:     nav.New(deps.Sensors, deps.Motion, cfg.Nav, clk, logger),
		turn:    turn.New(deps.Sensors, deps.Motion, cfg.Turn, clk, logger),
	}
	m.init()
	return m
}

// init puts every component back to its starting state.
func (m *Machine) init() {
	m.turn.Reset()
	m.nav.Init()
	m.outer = running{}
	m.state = Initialized
	m.phaseStart = m.clock.Now()
	m.sub = 0
	m.fault = NoFault
	m.zone = 0
	m.colorCounter = 1
	m.blocks = 0
	m.color = robot.ColorUnknown
	m.tees = 0
	m.junction = line.NoJunction
	m.haveDistance = false
}

// State returns the current mission phase.
func (m *Machine) State() State { return m.state }

// Suspended reports whether the machine is waiting on a precise turn.
func (m *Machine) Suspended() bool {
	_, ok := m.outer.(suspended)
	return ok
}

// Fault returns why the mission is in Error.
func (m *Machine) Fault() Fault { return m.fault }

// Zone returns the number of search zones inspected.
func (m *Machine) Zone() int { return m.zone }

// ColorCounter returns the intersection count toward the delivery zone.
func (m *Machine) ColorCounter() int { return m.colorCounter }

// Blocks returns the number of objects delivered.
func (m *Machine) Blocks() int { return m.blocks }

// Color returns the color of the object being carried.
func (m *Machine) Color() robot.ColorCode { return m.color }

// NavState returns the navigation state.
func (m *Machine) NavState() nav.State { return m.nav.State() }

// TurnState returns the precision turn state.
func (m *Machine) TurnState() turn.State { return m.turn.State() }

// Submit queues a command for the top of the next Update.
func (m *Machine) Submit(c Command) {
	m.pending = append(m.pending, c)
}

// HandleCommand parses and queues a command by name.
func (m *Machine) HandleCommand(name string) error {
	c, err := ParseCommand(name)
	if err != nil {
		return err
	}
	m.Submit(c)
	return nil
}

func (m *Machine) applyCommands() {
	cmds := m.pending
	m.pending = nil
	for _, c := range cmds {
		switch c {
		case Start:
			m.start()
		case Stop:
			m.stop()
		case Reset:
			m.reset()
		default:
			m.logger.Warn("unknown command", "command", c)
		}
	}
}

func (m *Machine) start() {
	if m.state != Initialized || m.sub != 0 {
		m.logger.Info("start ignored", "state", m.state)
		return
	}
	m.logger.Info("start command")
	m.beginStartCreep()
}

func (m *Machine) stop() {
	m.logger.Info("stop command", "state", m.state)
	m.motion.EmergencyStop()
	m.nav.Stop()
	if m.Suspended() {
		m.turn.Reset()
		m.outer = running{}
	}
	m.transitionTo(End)
}

func (m *Machine) reset() {
	m.logger.Info("reset command", "state", m.state)
	m.motion.EmergencyStop()
	m.arm.Reset()
	m.init()
}

// Update runs one mission tick.
func (m *Machine) Update() {
	m.applyCommands()

	switch p := m.outer.(type) {
	case suspended:
		m.awaitTurn(p)
	case running:
		m.step()
	}
}

// awaitTurn advances the precise turn and resumes the mission once it
// has finished.
func (m *Machine) awaitTurn(p suspended) {
	switch m.turn.Update() {
	case turn.Completed:
		m.turn.Reset()
		m.outer = running{}
		m.nav.ResumeFollowing()
		m.transitionTo(p.resume)
		m.phaseStart = m.clock.Now()
	case turn.TimedOut:
		m.turn.Reset()
		m.outer = running{}
		m.fail(TurnTimeout)
	}
}

type turnDir int

const (
	turnLeft turnDir = iota
	turnRight
	turnAround
)

// preciseTurn starts a sensor-terminated turn and suspends the mission
// until it finishes, then enters next.
func (m *Machine) preciseTurn(d turnDir, next State) {
	m.turn.Reset()
	switch d {
	case turnLeft:
		m.turn.StartLeft()
	case turnRight:
		m.turn.StartRight()
	case turnAround:
		m.turn.StartUTurn()
	}
	m.outer = suspended{resume: next}
}

func (m *Machine) transitionTo(next State) {
	if next == m.state {
		return
	}
	prev := m.state
	m.logger.Info("mission transition", "from", prev, "to", next,
		"zone", m.zone, "color_counter", m.colorCounter, "blocks", m.blocks)

	// exit
	if prev == ObjectGrab {
		m.nav.SetObstacleAvoidance(m.cfg.Nav.AvoidObstacles)
		m.nav.ResetBaseSpeed()
	}

	m.state = next
	m.phaseStart = m.clock.Now()
	m.sub = 0

	// entry
	switch next {
	case ObjectFind:
		if prev != ErgodicJudge && prev != BackObjectFind {
			m.zone = 0
		}
	case ObjectGrab:
		m.nav.SetObstacleAvoidance(false)
		m.nav.SetBaseSpeed(m.cfg.GraspSpeed)
	case CountIntersection:
		m.colorCounter = 1
	case ObjectRelease:
		m.nav.ResumeFollowing()
	case ReturnBase:
		m.tees = 0
	case End:
		m.motion.EmergencyStop()
	case Error:
		m.motion.EmergencyStop()
		m.haveDistance = false
	}
}

func (m *Machine) fail(f Fault) {
	m.fault = f
	m.logger.Error("mission failed", "state", m.state, "fault", f)
	m.transitionTo(Error)
}

func (m *Machine) elapsed() time.Duration { return m.clock.Now().Sub(m.phaseStart) }

func (m *Machine) subElapsed() time.Duration { return m.clock.Now().Sub(m.subStart) }

func (m *Machine) nextSub() {
	m.sub++
	m.subStart = m.clock.Now()
}

// navigate runs the navigation controller for one tick and returns the
// junction decision if it stopped at one. Navigation errors move the
// mission to Error.
func (m *Machine) navigate() (line.JunctionType, bool) {
	switch m.nav.Update() {
	case nav.AtJunction:
		j := m.nav.Junction()
		m.junction = j
		m.logger.Info("at junction", "state", m.state, "junction", j)
		return j, true
	case nav.Error:
		switch m.nav.Fault() {
		case nav.SensorFailure:
			m.fail(SensorFailure)
		default:
			m.fail(LineLost)
		}
	}
	return line.NoJunction, false
}

func (m *Machine) distance() (float64, bool) {
	d, err := m.sensors.Distance()
	if err != nil {
		return 0, false
	}
	return d, true
}

func (m *Machine) step() {
	switch m.state {
	case Initialized:
		m.initialized()
	case ObjectFind:
		m.objectFind()
	case UltrasonicDetect:
		m.ultrasonicDetect()
	case ContinueSearch:
		m.continueSearch()
	case ObjectGrab:
		m.objectGrab()
	case ObjectPlacing:
		m.objectPlacing()
	case CountIntersection:
		m.countIntersection()
	case ObjectRelease:
		m.objectRelease()
	case ErgodicJudge:
		m.ergodicJudge()
	case BackObjectFind:
		m.backObjectFind()
	case ReturnBase:
		m.returnBase()
	case BaseArrive:
		m.baseArrive()
	case End:
	case Error:
		m.recover()
	default:
		m.fail(UnknownState)
	}
}

func (m *Machine) beginStartCreep() {
	m.motion.MoveForward(m.cfg.StartCreepSpeed)
	m.nextSub()
}

func (m *Machine) initialized() {
	if m.sub == 0 {
		if d, ok := m.distance(); ok && d > 0 && d < m.cfg.StartTriggerCm {
			m.logger.Info("start trigger", "distance_cm", d)
			m.beginStartCreep()
		}
		return
	}
	if m.subElapsed() < m.cfg.StartCreep {
		m.motion.MoveForward(m.cfg.StartCreepSpeed)
		return
	}
	m.transitionTo(ObjectFind)
}

func (m *Machine) objectFind() {
	j, ok := m.navigate()
	if !ok {
		return
	}
	switch j {
	case line.TLeft, line.LeftTurn:
		m.transitionTo(UltrasonicDetect)
	case line.RightTurn:
		m.preciseTurn(turnRight, ObjectFind)
	default:
		m.nav.ResumeFollowing()
	}
}

func (m *Machine) ultrasonicDetect() {
	if m.sub == 0 {
		m.zone++
		m.logger.Info("inspecting zone", "zone", m.zone)
		m.sub = 1
		m.preciseTurn(turnLeft, UltrasonicDetect)
		return
	}
	if d, ok := m.distance(); ok && d > 0 && d < m.cfg.ObjectCm {
		m.logger.Info("object found", "distance_cm", d, "zone", m.zone)
		m.transitionTo(ObjectGrab)
		return
	}
	if m.elapsed() >= m.cfg.ScanWindow {
		m.logger.Info("zone empty", "zone", m.zone)
		m.preciseTurn(turnRight, ContinueSearch)
	}
}

func (m *Machine) continueSearch() {
	j, ok := m.navigate()
	if !ok {
		return
	}
	switch j {
	case line.TLeft, line.LeftTurn:
		m.transitionTo(UltrasonicDetect)
	case line.RightTurn:
		m.preciseTurn(turnRight, ContinueSearch)
	default:
		m.nav.ResumeFollowing()
	}
}

// ObjectGrab sub-phases.
const (
	grabApproach = iota
	grabSequence
	grabColor
)

func (m *Machine) objectGrab() {
	switch m.sub {
	case grabApproach:
		if m.elapsed() > m.cfg.GraspTimeout {
			m.fail(GraspTimeout)
			return
		}
		if m.arm.GraspReady() {
			m.motion.EmergencyStop()
			m.logger.Info("grasping")
			m.nextSub()
			m.seq.start(m.arm, m.cfg.GraspSequence, m.clock.Now())
			return
		}
		if _, ok := m.navigate(); ok {
			m.nav.ResumeFollowing()
		}
	case grabSequence:
		if m.seq.advance(m.clock.Now()) {
			m.nextSub()
		}
	case grabColor:
		c, err := m.sensors.Color()
		switch {
		case err == nil && c.Valid():
			m.color = c
		case m.subElapsed() >= m.cfg.ColorTimeout:
			m.logger.Warn("color read timed out, using default", "color", m.cfg.DefaultColor)
			m.color = m.cfg.DefaultColor
		default:
			return
		}
		m.logger.Info("object color", "color", m.color, "target", m.color.TargetCount())
		m.preciseTurn(turnAround, ObjectPlacing)
	}
}

func (m *Machine) objectPlacing() {
	j, ok := m.navigate()
	if !ok {
		return
	}
	switch j {
	case line.RightTurn, line.TForward:
		m.preciseTurn(turnRight, ObjectPlacing)
	case line.LeftTurn:
		m.preciseTurn(turnLeft, ObjectPlacing)
	case line.TLeft:
		m.preciseTurn(turnLeft, CountIntersection)
	default:
		m.nav.ResumeFollowing()
	}
}

func (m *Machine) countIntersection() {
	j, ok := m.navigate()
	if !ok {
		return
	}
	if j != line.TRight && j != line.RightTurn {
		m.nav.ResumeFollowing()
		return
	}
	if m.colorCounter == m.color.TargetCount() {
		m.logger.Info("delivery zone reached", "color", m.color, "count", m.colorCounter)
		m.preciseTurn(turnRight, ObjectRelease)
		return
	}
	m.colorCounter++
	m.logger.Info("counting intersections", "count", m.colorCounter, "target", m.color.TargetCount())
	m.nav.ResumeFollowing()
}

// ObjectRelease sub-phases.
const (
	releaseApproach = iota
	releaseSequence
)

func (m *Machine) objectRelease() {
	switch m.sub {
	case releaseApproach:
		if m.elapsed() < m.cfg.ReleaseCreep {
			if _, ok := m.navigate(); ok {
				m.nav.ResumeFollowing()
			}
			return
		}
		m.motion.EmergencyStop()
		m.logger.Info("releasing")
		m.nextSub()
		m.seq.start(m.arm, m.cfg.ReleaseSequence, m.clock.Now())
	case releaseSequence:
		if !m.seq.advance(m.clock.Now()) {
			return
		}
		m.blocks++
		m.logger.Info("object delivered", "blocks", m.blocks)
		m.preciseTurn(turnAround, ErgodicJudge)
	}
}

func (m *Machine) ergodicJudge() {
	j, ok := m.navigate()
	if !ok {
		return
	}
	switch j {
	case line.TForward, line.LeftTurn, line.RightTurn:
		next := BackObjectFind
		if m.blocks >= m.cfg.Blocks {
			next = ReturnBase
		}
		m.preciseTurn(turnLeft, next)
	default:
		m.nav.ResumeFollowing()
	}
}

func (m *Machine) backObjectFind() {
	j, ok := m.navigate()
	if !ok {
		return
	}
	switch j {
	case line.TForward, line.LeftTurn, line.RightTurn:
		m.preciseTurn(turnRight, ObjectFind)
	default:
		m.nav.ResumeFollowing()
	}
}

func (m *Machine) returnBase() {
	j, ok := m.navigate()
	if !ok {
		return
	}
	switch j {
	case line.TForward:
		m.tees++
		if m.tees >= m.cfg.BaseTeeCount {
			m.preciseTurn(turnLeft, BaseArrive)
			return
		}
		m.preciseTurn(turnLeft, ReturnBase)
	case line.TLeft, line.LeftTurn, line.Cross:
		m.preciseTurn(turnLeft, ReturnBase)
	case line.RightTurn:
		m.preciseTurn(turnRight, ReturnBase)
	default:
		m.nav.ResumeFollowing()
	}
}

func (m *Machine) baseArrive() {
	r, err := m.sensors.LineSensors()
	if (err == nil && r.All()) || m.elapsed() >= m.cfg.BaseArriveTimeout {
		m.motion.EmergencyStop()
		m.logger.Info("arrived at base")
		m.transitionTo(End)
		return
	}
	m.motion.MoveForward(m.cfg.BaseArriveSpeed)
}

// recover waits in Error for the operator reset signal: a jump between
// consecutive ranging readings larger than ResetDeltaCm.
func (m *Machine) recover() {
	d, ok := m.distance()
	if !ok {
		return
	}
	if m.haveDistance && math.Abs(d-m.lastDistance) > m.cfg.ResetDeltaCm {
		m.logger.Info("reset signal", "from_cm", m.lastDistance, "to_cm", d)
		m.arm.Reset()
		m.init()
		return
	}
	m.lastDistance = d
	m.haveDistance = true
}
