package robot

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestMotorCalibration_Normalize(t *testing.T) {
	cal := MotorCalibration{
		RangeMin: 1000,
		RangeMax: 3000,
	}

	tests := []struct {
		raw      int
		expected float64
	}{
		{1000, -100.0}, // min -> -100
		{3000, 100.0},  // max -> 100
		{2000, 0.0},    // mid -> 0
		{1500, -50.0},
		{2500, 50.0},
	}

	for _, tt := range tests {
		got := cal.Normalize(tt.raw)
		if math.Abs(got-tt.expected) > 0.001 {
			t.Errorf("Normalize(%d) = %f, want %f", tt.raw, got, tt.expected)
		}
	}
}

func TestMotorCalibration_Denormalize(t *testing.T) {
	cal := MotorCalibration{
		RangeMin: 1000,
		RangeMax: 3000,
	}

	tests := []struct {
		norm     float64
		expected int
	}{
		{-100.0, 1000},
		{100.0, 3000},
		{0.0, 2000},
		{-50.0, 1500},
		{150.0, 3000},  // clamped
		{-120.0, 1000}, // clamped
	}

	for _, tt := range tests {
		got := cal.Denormalize(tt.norm)
		if got != tt.expected {
			t.Errorf("Denormalize(%f) = %d, want %d", tt.norm, got, tt.expected)
		}
	}
}

func TestMotorCalibration_MirroredDriveMode(t *testing.T) {
	cal := MotorCalibration{RangeMin: 1000, RangeMax: 3000, DriveMode: 1}

	if got := cal.Normalize(1000); math.Abs(got-100) > 0.001 {
		t.Errorf("Normalize(1000) = %f, want 100", got)
	}
	if got := cal.Denormalize(100); got != 1000 {
		t.Errorf("Denormalize(100) = %d, want 1000", got)
	}
}

func TestMotorCalibration_RoundTrip(t *testing.T) {
	cal := MotorCalibration{
		RangeMin: 823,
		RangeMax: 3540,
	}

	for raw := cal.RangeMin; raw <= cal.RangeMax; raw += 100 {
		norm := cal.Normalize(raw)
		back := cal.Denormalize(norm)
		if math.Abs(float64(back-raw)) > 1 {
			t.Errorf("Round-trip failed: %d -> %f -> %d", raw, norm, back)
		}
	}
}

func TestCalibration_MotorIDs(t *testing.T) {
	cal := Calibration{
		Gripper:  MotorCalibration{ID: 3},
		Base:     MotorCalibration{ID: 1},
		Shoulder: MotorCalibration{ID: 2},
	}

	ids := cal.MotorIDs()
	expected := []int{1, 2, 3}

	if len(ids) != len(expected) {
		t.Fatalf("MotorIDs returned %d IDs, want %d", len(ids), len(expected))
	}
	for i, id := range ids {
		if id != expected[i] {
			t.Errorf("MotorIDs()[%d] = %d, want %d", i, id, expected[i])
		}
	}
}

func TestCalibration_ByID(t *testing.T) {
	cal := Calibration{
		Base:    MotorCalibration{ID: 1, RangeMin: 100, RangeMax: 200},
		Gripper: MotorCalibration{ID: 3, RangeMin: 300, RangeMax: 400},
	}

	name, mc, ok := cal.ByID(1)
	if !ok {
		t.Fatal("ByID(1) returned false")
	}
	if name != Base {
		t.Errorf("ByID(1) returned name %s, want base", name)
	}
	if mc.RangeMin != 100 {
		t.Errorf("ByID(1) returned wrong calibration: %+v", mc)
	}

	if _, _, ok = cal.ByID(99); ok {
		t.Error("ByID(99) should return false")
	}
}

func TestLoadCalibration(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	body := `{
  "base":     {"id": 1, "range_min": 500, "range_max": 3500},
  "shoulder": {"id": 2, "range_min": 400, "range_max": 3000},
  "gripper":  {"id": 3, "range_min": 1800, "range_max": 2600}
}`
	if err := os.WriteFile(good, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cal, err := LoadCalibration(good)
	if err != nil {
		t.Fatalf("LoadCalibration: %v", err)
	}
	if cal[Shoulder].RangeMax != 3000 {
		t.Errorf("shoulder range_max = %d, want 3000", cal[Shoulder].RangeMax)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"base": {"id": 1, "range_min": 10, "range_max": 10}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCalibration(bad); err == nil {
		t.Error("LoadCalibration accepted an incomplete calibration")
	}
}
