package sim

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ardnew/uacbridge/pkg"
	"github.com/ardnew/uacbridge/uac/hal"
)

// Feedback format understood by the simulated host.
const (
	feedbackFracBits = 14
	feedbackSize     = 3
	frameMask        = 0x7FF // 11-bit frame number
)

// HostConfig configures a simulated host.
type HostConfig struct {
	// Channels per sample-group. Zero selects stereo.
	Channels int

	// Rate is the host's nominal sample rate, used until the first
	// feedback value arrives. Zero selects 48000.
	Rate uint32

	// Jitter varies each OUT packet length by up to ± Jitter bytes while
	// preserving the long-term byte rate, so packets straddle group
	// boundaries.
	Jitter int

	// Source fills each OUT packet payload. Nil sends a byte counter.
	Source func(packet []byte)

	// Sink observes each IN packet payload.
	Sink func(packet []byte)

	// MaxPacket is the largest OUT packet and the IN request buffer size in
	// bytes. Zero derives it from Rate.
	MaxPacket int
}

// Host simulates the USB host side of the audio transport. It implements
// [hal.Transport].
type Host struct {
	cfg       HostConfig
	groupSize int

	mutex    sync.Mutex
	handler  hal.StreamHandler
	armed    [2]bool
	feedback uint32 // 10.14 groups per frame
	acc      uint32 // Fractional groups carried between frames
	owed     int    // Bytes due but not yet sent
	jitter   int
	frame    uint16
	counter  byte
	out      []byte
	in       []byte

	frames        atomic.Uint64
	sentBytes     atomic.Uint64
	receivedBytes atomic.Uint64
	feedbacks     atomic.Uint64
}

// Verify interface compliance.
var _ hal.Transport = (*Host)(nil)

// NewHost creates a host with no endpoints armed.
func NewHost(cfg HostConfig) *Host {
	if cfg.Channels <= 0 {
		cfg.Channels = 2
	}
	if cfg.Rate == 0 {
		cfg.Rate = 48000
	}
	gs := cfg.Channels * 3
	if cfg.MaxPacket <= 0 {
		cfg.MaxPacket = (int(cfg.Rate/1000)+2)*gs + 2*cfg.Jitter
	}
	h := &Host{
		cfg:       cfg,
		groupSize: gs,
		out:       make([]byte, cfg.MaxPacket),
		in:        make([]byte, cfg.MaxPacket),
	}
	h.feedback = nominal(cfg.Rate)
	return h
}

func nominal(rate uint32) uint32 {
	return uint32((uint64(rate) << feedbackFracBits) / 1000)
}

// Register implements [hal.Transport].
func (h *Host) Register(handler hal.StreamHandler) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.handler = handler
}

// Arm implements [hal.Transport].
func (h *Host) Arm(dir hal.Direction) error {
	if dir > hal.DirectionIn {
		return pkg.ErrInvalidParameter
	}
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if !h.armed[dir] {
		pkg.LogDebug(pkg.ComponentHAL, "endpoint armed", "dir", dir)
	}
	h.armed[dir] = true
	return nil
}

// Disarm stops traffic on dir, as when the host selects the zero-bandwidth
// alternate setting.
func (h *Host) Disarm(dir hal.Direction) {
	if dir > hal.DirectionIn {
		return
	}
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.armed[dir] = false
}

// Armed reports whether dir is armed.
func (h *Host) Armed(dir hal.Direction) bool {
	if dir > hal.DirectionIn {
		return false
	}
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.armed[dir]
}

// WriteFeedback implements [hal.Transport]. The host paces subsequent OUT
// packets from the value.
func (h *Host) WriteFeedback(data []byte) error {
	if len(data) < feedbackSize {
		return pkg.ErrBufferTooSmall
	}
	v := uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16

	h.mutex.Lock()
	h.feedback = v
	h.mutex.Unlock()

	h.feedbacks.Add(1)
	return nil
}

// SetRate changes the host's nominal rate, as after the host selects a new
// sampling frequency, and discards any pacing state.
func (h *Host) SetRate(rate uint32) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.cfg.Rate = rate
	h.feedback = nominal(rate)
	h.acc = 0
	h.owed = 0
}

// Feedback returns the last feedback value received, in 10.14 fixed point.
func (h *Host) Feedback() uint32 {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.feedback
}

// Step runs one transport frame: the frame-boundary notification, one OUT
// packet if armed, then one IN request if armed. Step must not be called
// concurrently with itself.
func (h *Host) Step() {
	h.mutex.Lock()
	handler := h.handler
	outArmed, inArmed := h.armed[hal.DirectionOut], h.armed[hal.DirectionIn]
	frame := h.frame
	h.frame = (h.frame + 1) & frameMask
	var packet []byte
	if outArmed {
		packet = h.nextPacket()
	}
	h.mutex.Unlock()

	h.frames.Add(1)
	if handler == nil {
		return
	}

	handler.OnFrameBoundary(frame)

	if outArmed {
		handler.OnPacketReceived(packet)
		h.sentBytes.Add(uint64(len(packet)))
	}

	if inArmed {
		n := handler.OnPacketRequest(h.in)
		if n > 0 {
			h.receivedBytes.Add(uint64(n))
			if h.cfg.Sink != nil {
				h.cfg.Sink(h.in[:n])
			}
		}
	}
}

// nextPacket sizes and fills the next OUT packet. Caller holds the mutex.
func (h *Host) nextPacket() []byte {
	h.acc += h.feedback
	groups := int(h.acc >> feedbackFracBits)
	h.acc &= 1<<feedbackFracBits - 1

	h.owed += groups * h.groupSize
	size := h.owed + h.nextJitter()
	if size < 0 {
		size = 0
	}
	if size > len(h.out) {
		size = len(h.out)
	}
	h.owed -= size

	packet := h.out[:size]
	if h.cfg.Source != nil {
		h.cfg.Source(packet)
	} else {
		for i := range packet {
			packet[i] = h.counter
			h.counter++
		}
	}
	return packet
}

// nextJitter cycles through -Jitter..+Jitter.
func (h *Host) nextJitter() int {
	if h.cfg.Jitter <= 0 {
		return 0
	}
	span := 2*h.cfg.Jitter + 1
	v := h.jitter%span - h.cfg.Jitter
	h.jitter++
	return v
}

// Run steps the host every period until ctx is cancelled.
func (h *Host) Run(ctx context.Context, period time.Duration) error {
	if period <= 0 {
		period = time.Millisecond
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			h.Step()
		}
	}
}

// Frames returns the number of frames stepped.
func (h *Host) Frames() uint64 { return h.frames.Load() }

// SentBytes returns the OUT payload bytes delivered.
func (h *Host) SentBytes() uint64 { return h.sentBytes.Load() }

// ReceivedBytes returns the IN payload bytes received.
func (h *Host) ReceivedBytes() uint64 { return h.receivedBytes.Load() }

// Feedbacks returns the number of feedback values received.
func (h *Host) Feedbacks() uint64 { return h.feedbacks.Load() }
