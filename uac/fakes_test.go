package uac

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ardnew/uacbridge/uac/hal"
	"github.com/ardnew/uacbridge/uac/hal/ring"
)

// journal records collaborator calls in order.
type journal struct {
	mutex   sync.Mutex
	entries []string
}

func (j *journal) add(format string, args ...any) {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	j.entries = append(j.entries, fmt.Sprintf(format, args...))
}

func (j *journal) list() []string {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	return append([]string(nil), j.entries...)
}

func (j *journal) reset() {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	j.entries = nil
}

type fakeBus struct {
	j         *journal
	tx, rx    *ring.Buffer
	txRunning atomic.Bool
	rxRunning atomic.Bool
}

func newFakeBus(j *journal) *fakeBus {
	return &fakeBus{
		j:  j,
		tx: ring.New(BusGroupSize(2), 256),
		rx: ring.New(BusGroupSize(2), 256),
	}
}

func (b *fakeBus) StartTx() error  { b.j.add("bus.start_tx"); b.txRunning.Store(true); return nil }
func (b *fakeBus) StopTx() error   { b.j.add("bus.stop_tx"); b.txRunning.Store(false); return nil }
func (b *fakeBus) StartRx() error  { b.j.add("bus.start_rx"); b.rxRunning.Store(true); return nil }
func (b *fakeBus) StopRx() error   { b.j.add("bus.stop_rx"); b.rxRunning.Store(false); return nil }
func (b *fakeBus) TxRunning() bool { return b.txRunning.Load() }

func (b *fakeBus) fifo(dir hal.Direction) *ring.Buffer {
	if dir == hal.DirectionOut {
		return b.tx
	}
	return b.rx
}

func (b *fakeBus) ClearFIFO(dir hal.Direction) error {
	b.j.add("bus.clear_%s", dir)
	b.fifo(dir).Clear()
	return nil
}

func (b *fakeBus) Occupancy(dir hal.Direction) int  { return b.fifo(dir).Len() }
func (b *fakeBus) WriteBlock(p []byte) (int, error) { return b.tx.Write(p), nil }
func (b *fakeBus) ReadBlock(p []byte) (int, error)  { return b.rx.Read(p), nil }

type fakeTransport struct {
	mutex    sync.Mutex
	handler  hal.StreamHandler
	armed    map[hal.Direction]bool
	feedback [][]byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{armed: make(map[hal.Direction]bool)}
}

func (t *fakeTransport) Register(h hal.StreamHandler) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.handler = h
}

func (t *fakeTransport) Arm(dir hal.Direction) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.armed[dir] = true
	return nil
}

func (t *fakeTransport) isArmed(dir hal.Direction) bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.armed[dir]
}

func (t *fakeTransport) registered() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.handler != nil
}

func (t *fakeTransport) WriteFeedback(data []byte) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.feedback = append(t.feedback, append([]byte(nil), data...))
	return nil
}

func (t *fakeTransport) lastFeedback() []byte {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if len(t.feedback) == 0 {
		return nil
	}
	return t.feedback[len(t.feedback)-1]
}

var errClockFault = errors.New("pll did not lock")

type fakeClock struct {
	j     *journal
	hz    atomic.Uint32
	fail  atomic.Bool
	onSet func()
}

func (c *fakeClock) SetFrequency(hz uint32) error {
	if c.onSet != nil {
		c.onSet()
	}
	if c.fail.Load() {
		c.j.add("clock.fail")
		return errClockFault
	}
	c.j.add("clock.set %d", hz)
	c.hz.Store(hz)
	return nil
}

type fakeCalibrator struct {
	j       *journal
	busy    atomic.Int32 // Polls remaining before idle; negative is forever
	polls   atomic.Int32
	rebuilt atomic.Int32
}

func (c *fakeCalibrator) IsIdle() bool {
	c.polls.Add(1)
	b := c.busy.Load()
	switch {
	case b < 0:
		return false
	case b == 0:
		return true
	}
	c.busy.Add(-1)
	return false
}

func (c *fakeCalibrator) RecalibrateBaseline() {
	c.j.add("calibration.baseline")
	c.rebuilt.Add(1)
}

type fakeCodec struct {
	j      *journal
	active atomic.Bool
}

func (c *fakeCodec) Activate() error {
	c.j.add("codec.activate")
	c.active.Store(true)
	return nil
}

func (c *fakeCodec) Deactivate() error {
	c.j.add("codec.deactivate")
	c.active.Store(false)
	return nil
}

// rig bundles fakes for one test.
type rig struct {
	j          *journal
	bus        *fakeBus
	transport  *fakeTransport
	clock      *fakeClock
	calibrator *fakeCalibrator
	codec      *fakeCodec
}

func newRig() *rig {
	j := &journal{}
	return &rig{
		j:          j,
		bus:        newFakeBus(j),
		transport:  newFakeTransport(),
		clock:      &fakeClock{j: j},
		calibrator: &fakeCalibrator{j: j},
		codec:      &fakeCodec{j: j},
	}
}

func (r *rig) collaborators() Collaborators {
	return Collaborators{
		Bus:        r.bus,
		Transport:  r.transport,
		Clock:      r.clock,
		Calibrator: r.calibrator,
		Codec:      r.codec,
	}
}
