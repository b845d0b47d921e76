package mission

import (
	"time"

	"github.com/gwillem/linecart/pkg/nav"
	"github.com/gwillem/linecart/pkg/robot"
	"github.com/gwillem/linecart/pkg/turn"
)

// Step is one pose of a timed arm sequence. Rest sends the arm to its
// rest pose instead of Pose.
type Step struct {
	Pose robot.Pose    `json:"pose"`
	Hold time.Duration `json:"hold"`
	Rest bool          `json:"rest,omitempty"`
}

// Config tunes the mission.
type Config struct {
	Nav  nav.Config  `json:"nav"`
	Turn turn.Config `json:"turn"`

	// A ranging reading closer than StartTriggerCm while Initialized
	// starts the mission.
	StartTriggerCm  float64       `json:"start_trigger_cm"`
	StartCreep      time.Duration `json:"start_creep"`
	StartCreepSpeed int           `json:"start_creep_speed"`

	ScanWindow time.Duration `json:"scan_window"`
	ObjectCm   float64       `json:"object_cm"`

	GraspSpeed    int           `json:"grasp_speed"`
	GraspTimeout  time.Duration `json:"grasp_timeout"`
	GraspSequence []Step        `json:"grasp_sequence"`

	ColorTimeout time.Duration   `json:"color_timeout"`
	DefaultColor robot.ColorCode `json:"default_color"`

	ReleaseCreep    time.Duration `json:"release_creep"`
	ReleaseSequence []Step        `json:"release_sequence"`

	Blocks            int           `json:"blocks"`
	BaseTeeCount      int           `json:"base_tee_count"`
	BaseArriveSpeed   int           `json:"base_arrive_speed"`
	BaseArriveTimeout time.Duration `json:"base_arrive_timeout"`

	// ResetDeltaCm is the jump between ranging readings that an operator
	// uses to reset the cart out of Error.
	ResetDeltaCm float64 `json:"reset_delta_cm"`
}

var (
	poseCarry = robot.Pose{Base: -20, Shoulder: 50, Gripper: 60}
	poseLower = robot.Pose{Base: 40, Shoulder: -70, Gripper: 60}
	poseOpen  = robot.Pose{Base: 40, Shoulder: -70, Gripper: -100}
)

// DefaultConfig returns the default mission tuning.
func DefaultConfig() Config {
	return Config{
		Nav:             nav.DefaultConfig(),
		Turn:            turn.DefaultConfig(),
		StartTriggerCm:  30,
		StartCreep:      500 * time.Millisecond,
		StartCreepSpeed: 180,
		ScanWindow:      time.Second,
		ObjectCm:        30,
		GraspSpeed:      100,
		GraspTimeout:    60 * time.Second,
		GraspSequence: []Step{
			{Pose: poseOpen, Hold: time.Second},
			{Pose: poseLower, Hold: time.Second},
			{Pose: poseCarry, Hold: time.Second},
		},
		ColorTimeout: 2 * time.Second,
		DefaultColor: robot.ColorRed,
		ReleaseCreep: 2 * time.Second,
		ReleaseSequence: []Step{
			{Pose: poseCarry, Hold: time.Second},
			{Pose: poseLower, Hold: time.Second},
			{Pose: poseOpen, Hold: time.Second},
			{Rest: true, Hold: time.Second},
		},
		Blocks:            2,
		BaseTeeCount:      2,
		BaseArriveSpeed:   180,
		BaseArriveTimeout: time.Second,
		ResetDeltaCm:      20,
	}
}

// WithDefaults fills zero-valued fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.StartTriggerCm <= 0 {
		c.StartTriggerCm = d.StartTriggerCm
	}
	if c.StartCreep <= 0 {
		c.StartCreep = d.StartCreep
	}
	if c.StartCreepSpeed <= 0 {
		c.StartCreepSpeed = d.StartCreepSpeed
	}
	if c.ScanWindow <= 0 {
		c.ScanWindow = d.ScanWindow
	}
	if c.ObjectCm <= 0 {
		c.ObjectCm = d.ObjectCm
	}
	if c.GraspSpeed <= 0 {
		c.GraspSpeed = d.GraspSpeed
	}
	if c.GraspTimeout <= 0 {
		c.GraspTimeout = d.GraspTimeout
	}
	if len(c.GraspSequence) == 0 {
		c.GraspSequence = d.GraspSequence
	}
	if c.ColorTimeout <= 0 {
		c.ColorTimeout = d.ColorTimeout
	}
	if !c.DefaultColor.Valid() {
		c.DefaultColor = d.DefaultColor
	}
	if c.ReleaseCreep <= 0 {
		c.ReleaseCreep = d.ReleaseCreep
	}
	if len(c.ReleaseSequence) == 0 {
		c.ReleaseSequence = d.ReleaseSequence
	}
	if c.Blocks <= 0 {
		c.Blocks = d.Blocks
	}
	if c.BaseTeeCount <= 0 {
		c.BaseTeeCount = d.BaseTeeCount
	}
	if c.BaseArriveSpeed <= 0 {
		c.BaseArriveSpeed = d.BaseArriveSpeed
	}
	if c.BaseArriveTimeout <= 0 {
		c.BaseArriveTimeout = d.BaseArriveTimeout
	}
	if c.ResetDeltaCm <= 0 {
		c.ResetDeltaCm = d.ResetDeltaCm
	}
	return c
}
