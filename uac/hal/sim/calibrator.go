package sim

import (
	"sync/atomic"

	"github.com/ardnew/uacbridge/uac/hal"
)

// Calibrator simulates a clock-sensitive measurement block such as
// capacitive touch sensing.
type Calibrator struct {
	j         *Journal
	busy      atomic.Int32
	baselines atomic.Uint32
}

// Verify interface compliance.
var _ hal.Calibrator = (*Calibrator)(nil)

// NewCalibrator creates an idle calibrator recording into j.
func NewCalibrator(j *Journal) *Calibrator {
	return &Calibrator{j: j}
}

// Measure starts a measurement that completes after polls calls to IsIdle.
// A negative value keeps the calibrator busy until Measure(0).
func (c *Calibrator) Measure(polls int) {
	c.busy.Store(int32(polls))
}

// IsIdle implements [hal.Calibrator]. Each call while busy advances the
// measurement by one poll.
func (c *Calibrator) IsIdle() bool {
	for {
		b := c.busy.Load()
		switch {
		case b == 0:
			return true
		case b < 0:
			return false
		}
		if c.busy.CompareAndSwap(b, b-1) {
			return false
		}
	}
}

// RecalibrateBaseline implements [hal.Calibrator].
func (c *Calibrator) RecalibrateBaseline() {
	c.baselines.Add(1)
	c.j.Record("calibration.baseline")
}

// Baselines returns the number of baseline rebuilds.
func (c *Calibrator) Baselines() uint32 {
	return c.baselines.Load()
}
