package uac

import (
	"context"
	"sync"
)

// eventBits are the bits of the bridge's event group.
type eventBits uint32

const (
	eventOut  eventBits = 1 << iota // Playback requested
	eventIn                         // Capture requested
	eventSync                       // Clock configured
	eventRate                       // Rate change pending
)

// eventGroup is a set of flags that tasks wait on, in the manner of an RTOS
// event group. Set wakes every waiter; waiters re-check their mask.
type eventGroup struct {
	mutex   sync.Mutex
	bits    eventBits
	changed chan struct{}
}

func newEventGroup() *eventGroup {
	return &eventGroup{changed: make(chan struct{})}
}

// Set raises bits and wakes all waiters.
func (g *eventGroup) Set(bits eventBits) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.bits |= bits
	close(g.changed)
	g.changed = make(chan struct{})
}

// Clear lowers bits.
func (g *eventGroup) Clear(bits eventBits) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.bits &^= bits
}

// IsSet reports whether all of bits are raised.
func (g *eventGroup) IsSet(bits eventBits) bool {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.bits&bits == bits
}

// WaitAll blocks until all of bits are raised or ctx is done. If clear is
// true the bits are lowered before returning.
func (g *eventGroup) WaitAll(ctx context.Context, bits eventBits, clear bool) error {
	for {
		g.mutex.Lock()
		if g.bits&bits == bits {
			if clear {
				g.bits &^= bits
			}
			g.mutex.Unlock()
			return nil
		}
		ch := g.changed
		g.mutex.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}
