package sim

import (
	"sync/atomic"

	"github.com/ardnew/uacbridge/uac/hal"
)

// Codec simulates the analog path.
type Codec struct {
	j      *Journal
	active atomic.Bool
}

// Verify interface compliance.
var _ hal.Codec = (*Codec)(nil)

// NewCodec creates an inactive codec recording into j.
func NewCodec(j *Journal) *Codec {
	return &Codec{j: j}
}

// Activate implements [hal.Codec].
func (c *Codec) Activate() error {
	c.active.Store(true)
	c.j.Record("codec.activate")
	return nil
}

// Deactivate implements [hal.Codec].
func (c *Codec) Deactivate() error {
	c.active.Store(false)
	c.j.Record("codec.deactivate")
	return nil
}

// Active reports whether the codec is active.
func (c *Codec) Active() bool {
	return c.active.Load()
}
