package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gwillem/linecart/pkg/mission"
	"github.com/gwillem/linecart/pkg/robot"
)

// Hardware is the opened serial link and gripper arm of one cart.
type Hardware struct {
	Link *robot.Link
	Arm  *robot.Arm
}

// OpenHardware opens the link and the arm and enables arm torque.
func OpenHardware(ctx context.Context, cfg robot.Config, logger *slog.Logger) (*Hardware, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	link, err := robot.OpenLink(cfg.Link, logger)
	if err != nil {
		return nil, fmt.Errorf("open link: %w", err)
	}
	arm, err := robot.NewArm(cfg.Arm, link, logger)
	if err != nil {
		link.Close()
		return nil, fmt.Errorf("open arm: %w", err)
	}
	if err := arm.Enable(ctx); err != nil {
		arm.Close()
		link.Close()
		return nil, fmt.Errorf("enable arm: %w", err)
	}
	return &Hardware{Link: link, Arm: arm}, nil
}

// Deps returns the hardware as mission collaborators.
func (h *Hardware) Deps() mission.Deps {
	return mission.Deps{Sensors: h.Link, Motion: h.Link, Arm: h.Arm}
}

// Close stops the drive, relaxes the arm and closes both ports.
func (h *Hardware) Close() error {
	h.Link.EmergencyStop()
	var errs []error
	if err := h.Arm.Disable(context.Background()); err != nil {
		errs = append(errs, fmt.Errorf("disable arm: %w", err))
	}
	if err := h.Arm.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := h.Link.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
