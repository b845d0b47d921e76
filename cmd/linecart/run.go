package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/linecart/pkg/bridge"
	"github.com/gwillem/linecart/pkg/cart"
	"github.com/gwillem/linecart/pkg/mission"
	"github.com/gwillem/linecart/pkg/record"
)

type RunCommand struct {
	Hz      int    `long:"hz" description:"Control loop frequency (defaults to hz in the config file)"`
	Record  string `long:"record" description:"Record state transitions to this sqlite file"`
	MQTT    bool   `long:"mqtt" description:"Bridge commands and telemetry over MQTT (see LINECART_MQTT_* env)"`
	LogFile string `long:"log-file" description:"Also write debug logs to this file"`
}

const (
	headerHeight = 2 // title + blank line
	legendHeight = 2 // legend row + blank
	statusHeight = 4 // status box
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

const (
	seriesPosition = "position"
	seriesDistance = "distance"
)

var seriesColors = map[string]string{
	seriesPosition: "51",  // cyan
	seriesDistance: "208", // orange
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	stateStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

type dashboardModel struct {
	ctrl     *cart.Controller
	logs     <-chan string
	chart    *streamlinechart.Model
	width    int
	height   int
	lines    []string
	state    mission.Telemetry
	hasState bool
	quitting bool
}

func (m *dashboardModel) addLog(msg string) {
	m.lines = append(m.lines, msg)
	if len(m.lines) > maxLogs {
		m.lines = m.lines[len(m.lines)-maxLogs:]
	}
}

// Messages from the controller
type stateMsg mission.Telemetry
type logMsg string

func waitForState(ctrl *cart.Controller) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-ctrl.States())
	}
}

func waitForLog(logs <-chan string) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-logs)
	}
}

func (m *dashboardModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 16 // default size before we know terminal size
	}
	width = max(m.width-borderSize-2, 40)
	height = max(m.height-headerHeight-legendHeight-statusHeight-footerHeight-borderSize, 8)
	return width, height
}

func newDashboardModel(ctrl *cart.Controller, logs <-chan string) dashboardModel {
	chart := streamlinechart.New(80, 16,
		streamlinechart.WithYRange(-100, 100),
	)
	for name, color := range seriesColors {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(color))
		chart.SetDataSetStyles(name, runes.ThinLineStyle, style)
	}
	return dashboardModel{ctrl: ctrl, logs: logs, chart: &chart}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.ctrl),
		waitForLog(m.logs),
	)
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.chart.Resize(m.chartSize())
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "s":
			m.ctrl.Submit(mission.Start)
		case "x", " ":
			m.ctrl.Submit(mission.Stop)
		case "r":
			m.ctrl.Submit(mission.Reset)
		}

	case stateMsg:
		t := mission.Telemetry(msg)
		m.chart.PushDataSet(seriesPosition, float64(t.Position))
		if t.HasDistance {
			// distance is plotted on the same axis, clipped to 100 cm
			m.chart.PushDataSet(seriesDistance, min(t.Distance, 100))
		}
		m.chart.DrawAll()
		m.state = t
		m.hasState = true
		return m, waitForState(m.ctrl)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.logs)
	}

	return m, nil
}

func (m dashboardModel) View() string {
	if m.quitting {
		return "Cart stopped.\n"
	}

	var sb strings.Builder

	sb.WriteString(titleStyle.Render("linecart"))
	sb.WriteString(fmt.Sprintf(" - %d Hz - run %s", m.ctrl.Hz(), m.ctrl.RunID()))
	sb.WriteString("\n\n")

	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")
	sb.WriteString(renderLegend())
	sb.WriteString("\n")
	sb.WriteString(m.renderStatus())
	sb.WriteString("\n")

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20))

	var logLines string
	if len(m.lines) == 0 {
		logLines = statusStyle.Render("s start  x stop  r reset  q quit")
	} else {
		logLines = strings.Join(m.lines, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func (m dashboardModel) renderStatus() string {
	if !m.hasState {
		return statusStyle.Render("waiting for first tick...")
	}
	t := m.state

	head := stateStyle.Render(t.Mission.String())
	if t.Fault != mission.NoFault {
		head = errorStyle.Render(t.Mission.String() + ": " + t.Fault.String())
	}
	if t.Suspended {
		head += statusStyle.Render(" (turn " + t.Turn.String() + ")")
	}

	dist := "-"
	if t.HasDistance {
		dist = fmt.Sprintf("%.1f cm", t.Distance)
	}
	line := t.Line
	if line == "" {
		line = "--------"
	}

	return fmt.Sprintf("%s\nnav %s  junction %s  line %s  distance %s\nzone %d  count %d  blocks %d  color %s",
		head, t.Navigation, t.Junction, line, dist,
		t.Zone, t.ColorCounter, t.Blocks, t.Color)
}

func renderLegend() string {
	var items []string
	for _, name := range []string{seriesPosition, seriesDistance} {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(seriesColors[name])).Bold(true)
		items = append(items, style.Render("━━")+" "+name)
	}
	return strings.Join(items, "  ")
}

// newLogger routes logs to the dashboard and, when path is set, to a file.
func newLogger(path string) (*cart.LogHandler, func(), error) {
	var next slog.Handler
	closeFn := func() {}
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, err
		}
		next = slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})
		closeFn = func() { f.Close() }
	}
	return cart.NewLogHandler(32, slog.LevelInfo, next), closeFn, nil
}

// loopHz prefers the --hz flag over the config file.
func (c *RunCommand) loopHz(cfg *cart.Config) int {
	if c.Hz > 0 {
		return c.Hz
	}
	return cfg.Hz
}

func (c *RunCommand) Execute(args []string) error {
	cfg, err := cart.LoadConfigFrom(configPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "No configuration found at %s. Run 'linecart setup' first.\n", configPath())
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration incomplete: %v. Run 'linecart setup' first.\n", err)
		os.Exit(1)
	}

	handler, closeLog, err := newLogger(c.LogFile)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer closeLog()
	logger := slog.New(handler)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hw, err := cart.OpenHardware(ctx, cfg.Config, logger)
	if err != nil {
		return err
	}
	defer hw.Close()

	ctrl := cart.NewController(hw.Deps(), cfg.Mission, cart.Options{Hz: c.loopHz(cfg), Logger: logger})

	if c.Record != "" {
		rec, err := record.Open(c.Record)
		if err != nil {
			return err
		}
		defer rec.Close()
		ctrl.AddSink(rec)
	}

	if c.MQTT {
		bcfg, err := bridge.LoadConfig()
		if err != nil {
			return err
		}
		b := bridge.New(bcfg, ctrl, logger)
		if err := b.Connect(ctx); err != nil {
			return err
		}
		defer b.Close()
		ctrl.AddSink(b)
	}

	done := make(chan error, 1)
	go func() {
		done <- ctrl.Start(ctx)
	}()

	p := tea.NewProgram(newDashboardModel(ctrl, handler.Lines()), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}

	cancel()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
