package uac

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ardnew/uacbridge/pkg"
	"github.com/ardnew/uacbridge/uac/hal"
)

// streamRequests records which directions the host has asked to stream.
type streamRequests struct {
	out atomic.Bool
	in  atomic.Bool
}

// playbackPath carries OUT packets through the realigner into the bus
// transmit FIFO.
type playbackPath struct {
	mutex     sync.Mutex
	bus       hal.Bus
	realigner *Realigner
	block     []byte
	groupSize int // Bus-native

	active  bool
	session uuid.UUID
	written uint64
	dropped uint64
}

func newPlaybackPath(cfg Config, bus hal.Bus) *playbackPath {
	return &playbackPath{
		bus:       bus,
		realigner: NewRealigner(cfg.WireGroupSize()),
		block:     make([]byte, 0, BusSize(cfg.MaxPacketSize()+cfg.WireGroupSize())),
		groupSize: cfg.BusGroupSize(),
	}
}

// start begins a playback session with an empty FIFO and no partial group.
// The transmitter is started by the first packet.
func (p *playbackPath) start() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.realigner.Reset()
	if err := p.bus.ClearFIFO(hal.DirectionOut); err != nil {
		return err
	}
	p.session = uuid.New()
	p.written = 0
	p.dropped = 0
	p.active = true
	pkg.LogInfo(pkg.ComponentPlayback, "session started", "session", p.session)
	return nil
}

func (p *playbackPath) stop() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.active {
		return
	}
	p.active = false
	pkg.LogInfo(pkg.ComponentPlayback, "session stopped",
		"session", p.session,
		"bytes", p.realigner.Received(),
		"groups", p.written,
		"dropped", p.dropped,
		"remainder", p.realigner.Remainder())
	p.realigner.Reset()
}

// receive handles one OUT packet. synced is re-checked under the path lock
// so that no packet reaches the bus once a reconfiguration has quiesced it.
func (p *playbackPath) receive(packet []byte, synced func() bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.active || !synced() {
		return
	}

	p.block = p.realigner.AppendTo(p.block[:0], packet)
	if len(p.block) > 0 {
		want := len(p.block) / p.groupSize
		n, err := p.bus.WriteBlock(p.block)
		if err != nil && !errors.Is(err, pkg.ErrOverrun) {
			pkg.LogWarn(pkg.ComponentPlayback, "bus write failed", "error", err)
		}
		p.written += uint64(n)
		if n < want {
			p.dropped += uint64(want - n)
			if pkg.Enabled(slog.LevelDebug) {
				pkg.LogDebug(pkg.ComponentPlayback, "tx overrun", "dropped", want-n)
			}
		}
	}

	if !p.bus.TxRunning() {
		if err := p.bus.StartTx(); err != nil {
			pkg.LogWarn(pkg.ComponentPlayback, "start tx failed", "error", err)
		}
	}
}

// resync drops the partial group and the queued samples of the previous
// clock so that nothing recorded at the old rate is played at the new one.
// The session stays active.
func (p *playbackPath) resync() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.active {
		return
	}
	p.realigner.Reset()
	if err := p.bus.ClearFIFO(hal.DirectionOut); err != nil {
		pkg.LogWarn(pkg.ComponentPlayback, "clear fifo failed", "error", err)
	}
}

// quiesce waits out any packet being handled.
func (p *playbackPath) quiesce() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
}

// capturePath sizes each IN packet from the receive FIFO occupancy and
// converts the samples to wire format.
type capturePath struct {
	mutex     sync.Mutex
	bus       hal.Bus
	sizer     *FrameSizer
	block     []byte
	groupBus  int
	groupWire int

	active    bool
	prime     bool // Next request sends one nominal frame of silence
	halted    bool // Receiver stopped on loss of sync
	session   uuid.UUID
	sent      uint64
	shortfall uint64
}

func newCapturePath(cfg Config, bus hal.Bus) *capturePath {
	limit := cfg.CaptureLimit()
	return &capturePath{
		bus:       bus,
		sizer:     NewFrameSizer(0, cfg.FrameDelta, limit),
		block:     make([]byte, limit*cfg.BusGroupSize()),
		groupBus:  cfg.BusGroupSize(),
		groupWire: cfg.WireGroupSize(),
	}
}

// start clears the receive FIFO and starts the receiver. The first request
// of the session is answered with silence while the FIFO fills.
func (c *capturePath) start() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := c.bus.ClearFIFO(hal.DirectionIn); err != nil {
		return err
	}
	if err := c.bus.StartRx(); err != nil {
		return err
	}
	c.session = uuid.New()
	c.sent = 0
	c.shortfall = 0
	c.active = true
	c.prime = true
	c.halted = false
	pkg.LogInfo(pkg.ComponentCapture, "session started", "session", c.session)
	return nil
}

// stop ends the session and stops the receiver.
func (c *capturePath) stop() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.active {
		return
	}
	c.active = false
	if err := c.bus.StopRx(); err != nil {
		pkg.LogWarn(pkg.ComponentCapture, "stop rx failed", "error", err)
	}
	pkg.LogInfo(pkg.ComponentCapture, "session stopped",
		"session", c.session, "groups", c.sent, "shortfall", c.shortfall)
}

// request fills buf with the next IN packet and returns its length.
//
// Losing sync stops the receiver and sends nothing. The first request after
// sync returns restarts the receiver from an empty FIFO and sends silence.
func (c *capturePath) request(buf []byte, synced func() bool) int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.active {
		return 0
	}
	if !synced() {
		if !c.halted {
			c.halted = true
			if err := c.bus.StopRx(); err != nil {
				pkg.LogWarn(pkg.ComponentCapture, "stop rx failed", "error", err)
			}
		}
		return 0
	}
	if c.halted {
		if err := c.restart(); err != nil {
			pkg.LogWarn(pkg.ComponentCapture, "restart failed", "error", err)
			return 0
		}
	}
	if c.prime {
		c.prime = false
		return c.silence(buf)
	}

	n := c.sizer.Next(c.bus.Occupancy(hal.DirectionIn))
	if limit := len(buf) / c.groupWire; n > limit {
		n = limit
	}
	if limit := len(c.block) / c.groupBus; n > limit {
		n = limit
	}
	if n == 0 {
		return 0
	}

	got, err := c.bus.ReadBlock(c.block[:n*c.groupBus])
	if err != nil {
		pkg.LogWarn(pkg.ComponentCapture, "bus read failed", "error", err)
	}
	c.sent += uint64(got)
	if got < n {
		c.shortfall += uint64(n - got)
	}
	return BusToWire(buf, c.block[:got*c.groupBus])
}

// restart resumes a halted receiver from an empty FIFO.
func (c *capturePath) restart() error {
	if err := c.bus.ClearFIFO(hal.DirectionIn); err != nil {
		return err
	}
	if err := c.bus.StartRx(); err != nil {
		return err
	}
	c.halted = false
	c.prime = true
	return nil
}

// silence fills buf with one nominal frame of zero samples.
func (c *capturePath) silence(buf []byte) int {
	n := min(c.sizer.Nominal(), len(buf)/c.groupWire) * c.groupWire
	clear(buf[:n])
	return n
}

// resync applies the nominal frame size of a new clock and discards samples
// received at the old one. An active session primes again with silence.
func (c *capturePath) resync(nominal int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.sizer.SetNominal(nominal)
	if !c.active {
		return
	}
	if err := c.bus.ClearFIFO(hal.DirectionIn); err != nil {
		pkg.LogWarn(pkg.ComponentCapture, "clear fifo failed", "error", err)
	}
	c.prime = true
}

func (c *capturePath) quiesce() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
}
