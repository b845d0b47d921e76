package nav

import (
	"time"

	"github.com/gwillem/linecart/pkg/line"
)

// Config tunes the navigation controller.
type Config struct {
	Follower line.Config `json:"follower"`

	// Creep is the slow forward run after an edge trigger that carries
	// the sensor array onto the junction center.
	CreepSpeed int           `json:"creep_speed"`
	Creep      time.Duration `json:"creep"`
	Settle     time.Duration `json:"settle"`
	// Verification micro-pivot used when a stop lands on all-clear.
	VerifyPivot  time.Duration `json:"verify_pivot"`
	VerifySettle time.Duration `json:"verify_settle"`
	// LostTimeout is how long the line may stay out of sight before the
	// controller gives up.
	LostTimeout time.Duration `json:"lost_timeout"`
	// DepartTimeout bounds how long a resumed cart ignores junction
	// patterns while it drives off the junction it stopped at.
	DepartTimeout time.Duration `json:"depart_timeout"`

	AvoidObstacles bool          `json:"avoid_obstacles"`
	ObstacleCm     float64       `json:"obstacle_cm"`
	AvoidSpeed     int           `json:"avoid_speed"`
	AvoidRight     time.Duration `json:"avoid_right"`
	AvoidForward   time.Duration `json:"avoid_forward"`
	AvoidLeft      time.Duration `json:"avoid_left"`
}

// DefaultConfig returns the default navigation tuning.
func DefaultConfig() Config {
	return Config{
		Follower:       line.DefaultConfig(),
		CreepSpeed:     100,
		Creep:          200 * time.Millisecond,
		Settle:         100 * time.Millisecond,
		VerifyPivot:    50 * time.Millisecond,
		VerifySettle:   50 * time.Millisecond,
		LostTimeout:    2 * time.Second,
		DepartTimeout:  3 * time.Second,
		AvoidObstacles: true,
		ObstacleCm:     10,
		AvoidSpeed:     100,
		AvoidRight:     1500 * time.Millisecond,
		AvoidForward:   3000 * time.Millisecond,
		AvoidLeft:      1700 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	c.Follower = c.Follower.WithDefaults()
	setInt := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	setDur := func(v *time.Duration, def time.Duration) {
		if *v <= 0 {
			*v = def
		}
	}
	setInt(&c.CreepSpeed, d.CreepSpeed)
	setInt(&c.AvoidSpeed, d.AvoidSpeed)
	setDur(&c.Creep, d.Creep)
	setDur(&c.Settle, d.Settle)
	setDur(&c.VerifyPivot, d.VerifyPivot)
	setDur(&c.VerifySettle, d.VerifySettle)
	setDur(&c.LostTimeout, d.LostTimeout)
	setDur(&c.DepartTimeout, d.DepartTimeout)
	setDur(&c.AvoidRight, d.AvoidRight)
	setDur(&c.AvoidForward, d.AvoidForward)
	setDur(&c.AvoidLeft, d.AvoidLeft)
	if c.ObstacleCm <= 0 {
		c.ObstacleCm = d.ObstacleCm
	}
	return c
}
