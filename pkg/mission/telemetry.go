package mission

import (
	"time"

	"github.com/gwillem/linecart/pkg/line"
	"github.com/gwillem/linecart/pkg/nav"
	"github.com/gwillem/linecart/pkg/robot"
	"github.com/gwillem/linecart/pkg/turn"
)

// Telemetry is a read-only snapshot of the machine for display and
// recording. Nothing in the control stack reads it back.
type Telemetry struct {
	RunID        string            `json:"run_id,omitempty"`
	Time         time.Time         `json:"time"`
	Mission      State             `json:"mission"`
	Suspended    bool              `json:"suspended"`
	Navigation   nav.State         `json:"navigation"`
	Turn         turn.State        `json:"turn"`
	Junction     line.JunctionType `json:"junction"`
	Position     int               `json:"position"`
	Line         string            `json:"line,omitempty"`
	Distance     float64           `json:"distance_cm"`
	HasDistance  bool              `json:"has_distance"`
	Zone         int               `json:"zone"`
	ColorCounter int               `json:"color_counter"`
	Blocks       int               `json:"blocks"`
	Color        robot.ColorCode   `json:"color"`
	Fault        Fault             `json:"fault"`
}

// Snapshot captures the current telemetry.
func (m *Machine) Snapshot() Telemetry {
	t := Telemetry{
		Time:         m.clock.Now(),
		Mission:      m.state,
		Suspended:    m.Suspended(),
		Navigation:   m.nav.State(),
		Turn:         m.turn.State(),
		Junction:     m.junction,
		Zone:         m.zone,
		ColorCounter: m.colorCounter,
		Blocks:       m.blocks,
		Color:        m.color,
		Fault:        m.fault,
	}
	if res := m.nav.LastFollow(); res.Readable {
		t.Position = res.Position
		t.Line = res.Reading.String()
	}
	if d, ok := m.distance(); ok {
		t.Distance = d
		t.HasDistance = true
	}
	return t
}

// Changed reports whether the mission-level fields differ between two
// snapshots. Position and distance are ignored.
func (t Telemetry) Changed(prev Telemetry) bool {
	return t.Mission != prev.Mission ||
		t.Suspended != prev.Suspended ||
		t.Navigation != prev.Navigation ||
		t.Turn != prev.Turn ||
		t.Junction != prev.Junction ||
		t.Zone != prev.Zone ||
		t.ColorCounter != prev.ColorCounter ||
		t.Blocks != prev.Blocks ||
		t.Color != prev.Color ||
		t.Fault != prev.Fault
}
