package robot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubRanger struct {
	cm  float64
	err error
}

func (s stubRanger) Distance() (float64, error) { return s.cm, s.err }

func TestInGraspWindow(t *testing.T) {
	tests := []struct {
		name   string
		ranger Ranger
		want   bool
	}{
		{"inside", stubRanger{cm: 6}, true},
		{"lower bound", stubRanger{cm: 3}, true},
		{"too far", stubRanger{cm: 12}, false},
		{"too close", stubRanger{cm: 1}, false},
		{"no echo", stubRanger{err: ErrNoEcho}, false},
		{"no ranger", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inGraspWindow(tt.ranger, 3, 10))
		})
	}
}

func TestDenormalizeAll(t *testing.T) {
	cal := Calibration{
		Base:     {ID: 1, RangeMin: 1000, RangeMax: 3000},
		Shoulder: {ID: 2, RangeMin: 0, RangeMax: 4000},
		Gripper:  {ID: 3, RangeMin: 2000, RangeMax: 2400},
	}
	raw := denormalizeAll(cal, Pose{Base: 0, Shoulder: 100, Gripper: -100}.positions())

	assert.Equal(t, 2000, raw[1])
	assert.Equal(t, 4000, raw[2])
	assert.Equal(t, 2000, raw[3])
}
