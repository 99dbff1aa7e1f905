package sim

import (
	"sync"
	"sync/atomic"

	"github.com/ardnew/uacbridge/uac/hal"
)

// Clock is a simulated master clock.
type Clock struct {
	j       *Journal
	hz      atomic.Uint32
	changes atomic.Uint32

	mutex sync.Mutex
	fail  error
}

// Verify interface compliance.
var _ hal.Clock = (*Clock)(nil)

// NewClock creates an unprogrammed clock recording into j.
func NewClock(j *Journal) *Clock {
	return &Clock{j: j}
}

// SetFrequency implements [hal.Clock].
func (c *Clock) SetFrequency(hz uint32) error {
	c.mutex.Lock()
	err := c.fail
	c.mutex.Unlock()

	if err != nil {
		c.j.Record("clock.fail %d", hz)
		return err
	}
	c.hz.Store(hz)
	c.changes.Add(1)
	c.j.Record("clock.set %d", hz)
	return nil
}

// Frequency returns the programmed frequency in Hz, or 0.
func (c *Clock) Frequency() uint32 {
	return c.hz.Load()
}

// Changes returns the number of successful SetFrequency calls.
func (c *Clock) Changes() uint32 {
	return c.changes.Load()
}

// SetFailure makes subsequent SetFrequency calls return err. Passing nil
// clears the failure.
func (c *Clock) SetFailure(err error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.fail = err
}
