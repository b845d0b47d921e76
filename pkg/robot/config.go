package robot

import (
	"fmt"
	"time"
)

// Config holds the hardware sections of the cart configuration.
type Config struct {
	Link LinkConfig `json:"link"`
	Arm  ArmConfig  `json:"arm"`
}

// LinkConfig configures the serial link to the motor controller.
type LinkConfig struct {
	Port     string `json:"port"`
	BaudRate int    `json:"baud_rate,omitempty"`
	// IRActiveLow is true when the controller reports a line under a
	// photodiode as '0'.
	IRActiveLow bool `json:"ir_active_low"`
	// StaleAfter is how long a sensor frame stays usable.
	StaleAfter time.Duration `json:"stale_after,omitempty"`
}

// ArmConfig holds configuration for the gripper arm.
type ArmConfig struct {
	Port        string      `json:"port"`
	Calibration Calibration `json:"calibration,omitempty"`
	Rest        Pose        `json:"rest"`
	// Grasp window on the ranging distance, in centimeters.
	GraspMinCm float64 `json:"grasp_min_cm,omitempty"`
	GraspMaxCm float64 `json:"grasp_max_cm,omitempty"`
}

// DefaultConfig returns a hardware configuration with no ports assigned.
func DefaultConfig() Config {
	return Config{
		Link: LinkConfig{
			BaudRate:    115200,
			IRActiveLow: true,
			StaleAfter:  200 * time.Millisecond,
		},
		Arm: ArmConfig{
			Rest:       Pose{Base: 0, Shoulder: 60, Gripper: -100},
			GraspMinCm: 3,
			GraspMaxCm: 10,
		},
	}
}

// WithDefaults fills zero-valued fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.Link.BaudRate == 0 {
		c.Link.BaudRate = d.Link.BaudRate
	}
	if c.Link.StaleAfter == 0 {
		c.Link.StaleAfter = d.Link.StaleAfter
	}
	if c.Arm.Rest == (Pose{}) {
		c.Arm.Rest = d.Arm.Rest
	}
	if c.Arm.GraspMaxCm == 0 {
		c.Arm.GraspMinCm = d.Arm.GraspMinCm
		c.Arm.GraspMaxCm = d.Arm.GraspMaxCm
	}
	return c
}

// IsCalibrated returns true if the arm has calibration data
func (a *ArmConfig) IsCalibrated() bool {
	return len(a.Calibration) > 0
}

// Validate checks that the configuration can drive real hardware.
func (c Config) Validate() error {
	if c.Link.Port == "" {
		return fmt.Errorf("link: port is required")
	}
	if c.Arm.Port == "" {
		return fmt.Errorf("arm: port is required")
	}
	if c.Arm.GraspMinCm < 0 || c.Arm.GraspMaxCm <= c.Arm.GraspMinCm {
		return fmt.Errorf("arm: invalid grasp window [%g, %g]", c.Arm.GraspMinCm, c.Arm.GraspMaxCm)
	}
	if !c.Arm.IsCalibrated() {
		return fmt.Errorf("arm: not calibrated, run setup")
	}
	return c.Arm.Calibration.Validate()
}
