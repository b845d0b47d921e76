package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.bug.st/serial"

	"github.com/gwillem/linecart/pkg/cart"
	"github.com/gwillem/linecart/pkg/robot"
)

var (
	headerStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
)

// armServoCount is the number of servos on the gripper arm bus (IDs 1-3).
const armServoCount = 3

type SetupCommand struct{}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("linecart setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━"))
	fmt.Println()

	cfg, err := cart.LoadConfigFrom(configPath())
	if errors.Is(err, os.ErrNotExist) {
		cfg = cart.DefaultConfig()
	} else if err != nil {
		return err
	}

	// Step 1: find the arm and the motor controller
	if err := scanPorts(cfg); err != nil {
		return err
	}
	if err := cfg.SaveTo(configPath()); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	// Step 2: calibrate the arm
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Calibrating Gripper Arm ━━━"))
	fmt.Println()
	if err := calibrateArm(&cfg.Arm); err != nil {
		return err
	}

	if err := cfg.SaveTo(configPath()); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", configPath())
	fmt.Println()
	fmt.Println("Start the cart with: " + headerStyle.Render("linecart run"))
	return nil
}

func scanPorts(cfg *cart.Config) error {
	fmt.Println("Scanning serial ports...")
	fmt.Println()

	ports, err := serial.GetPortsList()
	if err != nil {
		return fmt.Errorf("list ports: %w", err)
	}

	var armPort string
	var others []string
	for _, port := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(port, "Bluetooth") {
			continue
		}
		if armPort == "" && probeArm(port) {
			fmt.Printf("  Found gripper arm on %s\n", port)
			armPort = port
			continue
		}
		others = append(others, port)
	}

	if armPort == "" {
		fmt.Println("No gripper arm found.")
		fmt.Println("Make sure the arm is connected and powered on.")
		return errors.New("arm not found")
	}
	if len(others) == 0 {
		fmt.Println("No port left for the motor controller.")
		return errors.New("motor controller not found")
	}

	linkPort := others[0]
	activeLow := cfg.Link.IRActiveLow
	options := make([]huh.Option[string], 0, len(others))
	for _, p := range others {
		options = append(options, huh.NewOption(p, p))
	}
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which port is the motor controller on?").
				Description("It streams $DATA frames at 115200 baud").
				Options(options...).
				Value(&linkPort),
			huh.NewConfirm().
				Title("Do the line sensors read 0 over the line?").
				Affirmative("Yes (active low)").
				Negative("No").
				Value(&activeLow),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}

	cfg.Arm.Port = armPort
	cfg.Link.Port = linkPort
	cfg.Link.IRActiveLow = activeLow

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Ports assigned:"))
	fmt.Printf("  Arm:        %s\n", armPort)
	fmt.Printf("  Controller: %s\n", linkPort)
	return nil
}

func openArmBus(port string) (*feetech.Bus, error) {
	return feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: 1_000_000,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
}

// probeArm reports whether port hosts a feetech bus with servo IDs 1-3.
func probeArm(port string) bool {
	bus, err := openArmBus(port)
	if err != nil {
		return false
	}
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	servos, err := bus.Scan(ctx, 1, armServoCount)
	return err == nil && isGripperArm(servos)
}

func isGripperArm(servos []feetech.FoundServo) bool {
	if len(servos) != armServoCount {
		return false
	}
	ids := make(map[int]bool)
	for _, s := range servos {
		ids[s.ID] = true
	}
	for i := 1; i <= armServoCount; i++ {
		if !ids[i] {
			return false
		}
	}
	return true
}

func connectToArm(port string) (*feetech.Bus, []feetech.FoundServo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	bus, err := openArmBus(port)
	if err != nil {
		return nil, nil, err
	}
	servos, err := bus.Scan(ctx, 1, armServoCount)
	if err != nil {
		bus.Close()
		return nil, nil, err
	}
	if !isGripperArm(servos) {
		bus.Close()
		return nil, nil, fmt.Errorf("not a gripper arm (expected servos with IDs 1-%d)", armServoCount)
	}
	return bus, servos, nil
}

func calibrateArm(armConfig *robot.ArmConfig) error {
	fmt.Printf("Calibrating arm on %s\n", armConfig.Port)
	fmt.Println()

	bus, servos, err := connectToArm(armConfig.Port)
	if err != nil {
		return fmt.Errorf("connect to arm: %w", err)
	}
	defer bus.Close()

	servoMap := make(map[int]*feetech.Servo)
	for _, s := range servos {
		servoMap[s.ID] = feetech.NewServo(bus, s.ID, s.Model)
	}

	// Disable all servos so the joints move freely
	ctx := context.Background()
	for _, servo := range servoMap {
		servo.Disable(ctx)
	}

	fmt.Println(subHeaderStyle.Render("Record range of motion"))
	fmt.Println("Move the base, shoulder and gripper to both ends of their travel.")
	fmt.Println()

	motors := robot.AllMotors()
	cur := make(map[robot.MotorName]int)
	lo := make(map[robot.MotorName]int)
	hi := make(map[robot.MotorName]int)
	for i, name := range motors {
		pos, _ := servoMap[i+1].Position(ctx)
		cur[name], lo[name], hi[name] = pos, pos, pos
	}

	p := tea.NewProgram(newCalibrationModel(motors, servoMap, cur, lo, hi))
	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("calibration: %w", err)
	}
	cm := finalModel.(calibrationModel)

	calibration := make(robot.Calibration)
	for i, name := range motors {
		calibration[name] = robot.MotorCalibration{
			ID:       i + 1,
			RangeMin: cm.minPositions[name],
			RangeMax: cm.maxPositions[name],
		}
	}
	if err := calibration.Validate(); err != nil {
		return fmt.Errorf("calibration: %w", err)
	}
	armConfig.Calibration = calibration

	fmt.Println()
	fmt.Println("Arm calibrated.")
	return nil
}

// Calibration TUI model
type calibrationModel struct {
	motors       []robot.MotorName
	servoMap     map[int]*feetech.Servo
	curPositions map[robot.MotorName]int
	minPositions map[robot.MotorName]int
	maxPositions map[robot.MotorName]int
	quitting     bool
}

type tickMsg time.Time

func newCalibrationModel(
	motors []robot.MotorName,
	servoMap map[int]*feetech.Servo,
	curPositions, minPositions, maxPositions map[robot.MotorName]int,
) calibrationModel {
	return calibrationModel{
		motors:       motors,
		servoMap:     servoMap,
		curPositions: curPositions,
		minPositions: minPositions,
		maxPositions: maxPositions,
	}
}

func calibrationTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m calibrationModel) Init() tea.Cmd {
	return calibrationTick()
}

func (m calibrationModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter", "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		ctx := context.Background()
		for i, name := range m.motors {
			pos, err := m.servoMap[i+1].Position(ctx)
			if err != nil {
				continue
			}
			m.curPositions[name] = pos
			m.minPositions[name] = min(m.minPositions[name], pos)
			m.maxPositions[name] = max(m.maxPositions[name], pos)
		}
		return m, calibrationTick()
	}

	return m, nil
}

func (m calibrationModel) View() string {
	if m.quitting {
		return ""
	}

	motorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	currentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Padding(0, 1)
	rangeGoodStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	rangeLowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)

	rows := make([][]string, 0, len(m.motors))
	ranges := make([]int, 0, len(m.motors))
	for _, name := range m.motors {
		size := m.maxPositions[name] - m.minPositions[name]
		ranges = append(ranges, size)
		rows = append(rows, []string{
			string(name),
			fmt.Sprintf("%d", m.curPositions[name]),
			fmt.Sprintf("%d", m.minPositions[name]),
			fmt.Sprintf("%d", m.maxPositions[name]),
			fmt.Sprintf("%d", size),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Joint", "Current", "Min", "Max", "Range").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			switch col {
			case 0:
				return motorStyle
			case 1:
				return currentStyle
			case 4:
				if row >= 0 && row < len(ranges) && ranges[row] > 500 {
					return rangeGoodStyle
				}
				return rangeLowStyle
			default:
				return cellStyle
			}
		})

	return t.Render() + "\n\n" + dimStyle.Render("Press Enter when done")
}
