// Package robot provides the hardware collaborators of the line cart: the
// sensor and drive link to the motor controller and the gripper arm.
package robot

// MotorName identifies a servo in the gripper arm.
type MotorName string

// Joint names of the three-servo gripper arm.
const (
	Base     MotorName = "base"
	Shoulder MotorName = "shoulder"
	Gripper  MotorName = "gripper"
)

// AllMotors returns all joint names in order (matching servo IDs 1-3).
func AllMotors() []MotorName {
	return []MotorName{
		Base,
		Shoulder,
		Gripper,
	}
}

// positions maps a pose onto joint names.
func (p Pose) positions() map[MotorName]float64 {
	return map[MotorName]float64{
		Base:     p.Base,
		Shoulder: p.Shoulder,
		Gripper:  p.Gripper,
	}
}
