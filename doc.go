// Package linecart drives a line-following pick-and-place cart: it follows
// a taped line, detects and classifies junctions, finds objects with an
// ultrasonic ranger, grasps them with a three-servo arm, delivers each to
// the zone that matches its color and returns to base.
//
// # Installation
//
//	go install github.com/gwillem/linecart/cmd/linecart@latest
//
// # Usage
//
// First, run setup to find the motor controller and calibrate the arm:
//
//	linecart setup
//
// Then run the mission with a live dashboard:
//
//	linecart run --record runs.db
//
// Recorded runs can be reviewed with:
//
//	linecart history
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/linecart: CLI with setup, run and history commands
//   - pkg/robot: sensor and drive link, gripper arm, calibration, configuration
//   - pkg/line: line position, junction classification and the PID follower
//   - pkg/turn: sensor-terminated precision turns
//   - pkg/nav: junction stops and obstacle avoidance
//   - pkg/mission: the pick-and-place mission sequencer
//   - pkg/cart: fixed-rate control loop and configuration file
//   - pkg/bridge: MQTT command and telemetry bridge
//   - pkg/record: sqlite run history
package linecart
