// Package cart runs the mission stack on a fixed-rate control loop and
// fans its telemetry out to the dashboard, the recorder and the host
// bridge.
package cart

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gwillem/linecart/internal/clock"
	"github.com/gwillem/linecart/pkg/mission"
	"github.com/gwillem/linecart/pkg/robot"
)

// Sink receives the telemetry of every tick. Publish is called from the
// control loop and must not block for long.
type Sink interface {
	Publish(ctx context.Context, t mission.Telemetry) error
}

// Options configures a Controller.
type Options struct {
	Hz     int
	Clock  clock.Clock
	Logger *slog.Logger
	Sinks  []Sink
}

// Controller owns the mission machine and runs it once per tick: queued
// commands are applied, the sensors are refreshed, then the machine is
// updated.
type Controller struct {
	sensors robot.Sensors
	motion  robot.Motion
	machine *mission.Machine
	hz      int
	runID   string
	logger  *slog.Logger
	sinks   []Sink

	mu      sync.RWMutex
	running bool
	cmdCh   chan mission.Command
	stateCh chan mission.Telemetry
}

// NewController builds the mission stack on deps.
func NewController(deps mission.Deps, cfg mission.Config, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Hz <= 0 {
		opts.Hz = DefaultHz
	}
	runID := newRunID()
	logger := opts.Logger.With("run", runID)
	return &Controller{
		sensors: deps.Sensors,
		motion:  deps.Motion,
		machine: mission.New(deps, cfg, opts.Clock, logger),
		hz:      opts.Hz,
		runID:   runID,
		logger:  logger.With("component", "cart"),
		sinks:   opts.Sinks,
		cmdCh:   make(chan mission.Command, 8),
		stateCh: make(chan mission.Telemetry, 1),
	}
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// AddSink adds a telemetry consumer. It must be called before Start.
func (c *Controller) AddSink(s Sink) {
	c.sinks = append(c.sinks, s)
}

// RunID identifies this controller's run in recorded and published telemetry.
func (c *Controller) RunID() string { return c.runID }

// Hz returns the control frequency.
func (c *Controller) Hz() int { return c.hz }

// States returns a channel that receives the latest telemetry.
func (c *Controller) States() <-chan mission.Telemetry { return c.stateCh }

// Submit queues an operator command for the next tick. It is safe to call
// from any goroutine and reports false when the queue is full.
func (c *Controller) Submit(cmd mission.Command) bool {
	select {
	case c.cmdCh <- cmd:
		return true
	default:
		c.logger.Warn("command dropped, queue full", "command", cmd)
		return false
	}
}

// Start runs the control loop until ctx is done.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("already running")
	}
	c.running = true
	c.mu.Unlock()

	c.logger.Info("control loop started", "hz", c.hz)

	ticker := time.NewTicker(time.Second / time.Duration(c.hz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()
		case <-ticker.C:
			c.step(ctx)
		}
	}
}

func (c *Controller) drainCommands() {
	for {
		select {
		case cmd := <-c.cmdCh:
			c.machine.Submit(cmd)
		default:
			return
		}
	}
}

func (c *Controller) step(ctx context.Context) {
	c.drainCommands()

	if err := c.sensors.Refresh(ctx); err != nil {
		// The machine sees the failure through the sensor reads.
		c.logger.Debug("sensor refresh failed", "err", err)
	}
	c.machine.Update()

	t := c.machine.Snapshot()
	t.RunID = c.runID
	c.sendState(t)
	for _, s := range c.sinks {
		if err := s.Publish(ctx, t); err != nil {
			c.logger.Warn("telemetry sink failed", "err", err)
		}
	}
}

func (c *Controller) sendState(t mission.Telemetry) {
	select {
	case c.stateCh <- t:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-c.stateCh:
		default:
		}
		c.stateCh <- t
	}
}

func (c *Controller) shutdown() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()

	c.motion.EmergencyStop()
	c.logger.Info("control loop stopped", "mission", c.machine.State())
}
