package robot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
)

// Ranger reports the latest ranging distance in centimeters.
type Ranger interface {
	Distance() (float64, error)
}

// armWriteTimeout bounds a single pose write on the servo bus.
const armWriteTimeout = 50 * time.Millisecond

// Arm is the three-servo gripper arm. It implements Manipulator.
type Arm struct {
	bus         *feetech.Bus
	group       *feetech.ServoGroup
	calibration Calibration
	ranger      Ranger
	cfg         ArmConfig
	logger      *slog.Logger
}

// NewArm opens the servo bus and binds the arm to a ranger used for the
// grasp window check.
func NewArm(cfg ArmConfig, ranger Ranger, logger *slog.Logger) (*Arm, error) {
	if err := cfg.Calibration.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     cfg.Port,
		BaudRate: 1_000_000,
		Protocol: feetech.ProtocolSTS,
		Timeout:  armWriteTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open arm bus: %w", err)
	}

	group := feetech.NewServoGroupByIDs(bus, cfg.Calibration.MotorIDs()...)

	return &Arm{
		bus:         bus,
		group:       group,
		calibration: cfg.Calibration,
		ranger:      ranger,
		cfg:         cfg,
		logger:      logger.With("component", "arm"),
	}, nil
}

// Close closes the arm's bus connection.
func (a *Arm) Close() error {
	return a.bus.Close()
}

// Enable enables torque on all servos.
func (a *Arm) Enable(ctx context.Context) error {
	return a.group.EnableAll(ctx)
}

// Disable disables torque on all servos.
func (a *Arm) Disable(ctx context.Context) error {
	return a.group.DisableAll(ctx)
}

// ReadPositions reads current joint positions, normalized to [-100, 100].
func (a *Arm) ReadPositions(ctx context.Context) (map[MotorName]float64, error) {
	rawPositions, err := a.group.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}

	positions := make(map[MotorName]float64, len(rawPositions))
	for id, raw := range rawPositions {
		name, cal, ok := a.calibration.ByID(id)
		if !ok {
			continue
		}
		positions[name] = cal.Normalize(raw)
	}
	return positions, nil
}

// WritePositions writes normalized target positions with one sync write.
func (a *Arm) WritePositions(ctx context.Context, positions map[MotorName]float64) error {
	rawPositions := denormalizeAll(a.calibration, positions)
	if err := a.group.SetPositions(ctx, rawPositions); err != nil {
		return fmt.Errorf("write positions: %w", err)
	}
	return nil
}

// GraspReady reports whether the object sits inside the grasp window.
func (a *Arm) GraspReady() bool {
	return inGraspWindow(a.ranger, a.cfg.GraspMinCm, a.cfg.GraspMaxCm)
}

// AdjustArm commands a pose. Bus errors are logged; the next pose
// command supersedes this one anyway.
func (a *Arm) AdjustArm(p Pose) {
	ctx, cancel := context.WithTimeout(context.Background(), armWriteTimeout)
	defer cancel()
	if err := a.WritePositions(ctx, p.positions()); err != nil {
		a.logger.Warn("pose write failed", "pose", p, "err", err)
	}
}

// Reset moves the arm to its rest pose.
func (a *Arm) Reset() {
	a.AdjustArm(a.cfg.Rest)
}

func denormalizeAll(cal Calibration, positions map[MotorName]float64) feetech.PositionMap {
	raw := make(feetech.PositionMap, len(positions))
	for name, norm := range positions {
		mc, ok := cal[name]
		if !ok {
			continue
		}
		raw[mc.ID] = mc.Denormalize(norm)
	}
	return raw
}

func inGraspWindow(r Ranger, minCm, maxCm float64) bool {
	if r == nil {
		return false
	}
	d, err := r.Distance()
	if err != nil {
		return false
	}
	return d >= minCm && d <= maxCm
}
