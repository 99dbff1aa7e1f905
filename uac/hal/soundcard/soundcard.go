package soundcard

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/ardnew/uacbridge/pkg"
	"github.com/ardnew/uacbridge/uac/hal"
	"github.com/ardnew/uacbridge/uac/hal/ring"
)

// Config configures a sound card bus.
type Config struct {
	// Channels per sample-group.
	Channels int

	// Capacity of each FIFO in sample-groups.
	Capacity int

	// MasterClockRatio divides the programmed master clock into the
	// device sample rate.
	MasterClockRatio uint32

	// PeriodMillis is the device callback period. Zero lets the backend
	// choose.
	PeriodMillis uint32
}

// DefaultConfig returns a stereo configuration with 20 ms FIFOs at 48 kHz.
func DefaultConfig() Config {
	return Config{
		Channels:         2,
		Capacity:         960,
		MasterClockRatio: 1152,
		PeriodMillis:     5,
	}
}

// Card is a sound card driven as an audio serial bus.
type Card struct {
	cfg       Config
	groupSize int
	tx, rx    *ring.Buffer

	mutex     sync.Mutex
	ctx       *malgo.AllocatedContext
	playback  *malgo.Device
	capture   *malgo.Device
	rate      uint32
	txRunning bool
	rxRunning bool

	underruns atomic.Uint64
	overruns  atomic.Uint64
}

// Verify interface compliance.
var (
	_ hal.Bus   = (*Card)(nil)
	_ hal.Clock = (*Card)(nil)
)

// New opens the audio backend. Devices are opened once a frequency is
// programmed and a direction is started.
func New(cfg Config) (*Card, error) {
	c, err := newCard(cfg)
	if err != nil {
		return nil, err
	}
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		pkg.LogDebug(pkg.ComponentHAL, "miniaudio", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	c.ctx = ctx
	return c, nil
}

func newCard(cfg Config) (*Card, error) {
	if cfg.Channels < 1 || cfg.Capacity < 1 || cfg.MasterClockRatio == 0 {
		return nil, pkg.ErrInvalidParameter
	}
	gs := cfg.Channels * 4
	return &Card{
		cfg:       cfg,
		groupSize: gs,
		tx:        ring.New(gs, cfg.Capacity),
		rx:        ring.New(gs, cfg.Capacity),
	}, nil
}

// Close stops both devices and releases the audio backend.
func (c *Card) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.closeDevices()
	c.txRunning = false
	c.rxRunning = false

	if c.ctx == nil {
		return nil
	}
	err := c.ctx.Uninit()
	c.ctx.Free()
	c.ctx = nil
	return err
}

// SampleRate returns the device sample rate, or 0 before a frequency is
// programmed.
func (c *Card) SampleRate() uint32 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.rate
}

// SetFrequency implements [hal.Clock]. Running directions are reopened at
// the new rate.
func (c *Card) SetFrequency(hz uint32) error {
	rate := hz / c.cfg.MasterClockRatio
	if rate == 0 {
		return fmt.Errorf("%w: %d Hz", pkg.ErrInvalidParameter, hz)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if rate == c.rate {
		return nil
	}
	c.closeDevices()
	c.rate = rate
	pkg.LogInfo(pkg.ComponentHAL, "sound card rate", "rate", rate, "mclk", hz)

	var errs []error
	if c.txRunning {
		errs = append(errs, c.startPlayback())
	}
	if c.rxRunning {
		errs = append(errs, c.startCapture())
	}
	return errors.Join(errs...)
}

// StartTx implements [hal.Bus].
func (c *Card) StartTx() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if err := c.startPlayback(); err != nil {
		return err
	}
	c.txRunning = true
	return nil
}

// StopTx implements [hal.Bus].
func (c *Card) StopTx() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.txRunning = false
	if c.playback == nil {
		return nil
	}
	return c.playback.Stop()
}

// StartRx implements [hal.Bus].
func (c *Card) StartRx() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if err := c.startCapture(); err != nil {
		return err
	}
	c.rxRunning = true
	return nil
}

// StopRx implements [hal.Bus].
func (c *Card) StopRx() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.rxRunning = false
	if c.capture == nil {
		return nil
	}
	return c.capture.Stop()
}

// TxRunning implements [hal.Bus].
func (c *Card) TxRunning() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.txRunning
}

func (c *Card) fifo(dir hal.Direction) *ring.Buffer {
	if dir == hal.DirectionOut {
		return c.tx
	}
	return c.rx
}

// ClearFIFO implements [hal.Bus].
func (c *Card) ClearFIFO(dir hal.Direction) error {
	c.fifo(dir).Clear()
	return nil
}

// Occupancy implements [hal.Bus].
func (c *Card) Occupancy(dir hal.Direction) int {
	return c.fifo(dir).Len()
}

// WriteBlock implements [hal.Bus].
func (c *Card) WriteBlock(block []byte) (int, error) {
	n := c.tx.Write(block)
	if want := len(block) / c.groupSize; n < want {
		c.overruns.Add(uint64(want - n))
		return n, pkg.ErrOverrun
	}
	return n, nil
}

// ReadBlock implements [hal.Bus].
func (c *Card) ReadBlock(block []byte) (int, error) {
	return c.rx.Read(block), nil
}

// Underruns returns the number of groups of silence played because the
// transmit FIFO was empty.
func (c *Card) Underruns() uint64 { return c.underruns.Load() }

// Overruns returns the number of groups refused by a full FIFO.
func (c *Card) Overruns() uint64 { return c.overruns.Load() }

// onPlayback is the playback device data callback.
func (c *Card) onPlayback(out []byte) {
	n := c.tx.Read(out)
	if rest := out[n*c.groupSize:]; len(rest) > 0 {
		clear(rest)
		c.underruns.Add(uint64(len(rest) / c.groupSize))
	}
}

// onCapture is the capture device data callback.
func (c *Card) onCapture(in []byte) {
	want := len(in) / c.groupSize
	if n := c.rx.Write(in); n < want {
		c.overruns.Add(uint64(want - n))
	}
}

func (c *Card) deviceConfig(kind malgo.DeviceType) malgo.DeviceConfig {
	cfg := malgo.DefaultDeviceConfig(kind)
	cfg.SampleRate = c.rate
	cfg.PeriodSizeInMilliseconds = c.cfg.PeriodMillis
	cfg.Alsa.NoMMap = 1
	switch kind {
	case malgo.Playback:
		cfg.Playback.Format = malgo.FormatS32
		cfg.Playback.Channels = uint32(c.cfg.Channels)
	case malgo.Capture:
		cfg.Capture.Format = malgo.FormatS32
		cfg.Capture.Channels = uint32(c.cfg.Channels)
	}
	return cfg
}

// startPlayback opens the playback device if needed and starts it. Caller
// holds the mutex.
func (c *Card) startPlayback() error {
	if c.playback == nil {
		dev, err := c.open(malgo.Playback, malgo.DeviceCallbacks{
			Data: func(out, _ []byte, _ uint32) { c.onPlayback(out) },
		})
		if err != nil {
			return err
		}
		c.playback = dev
	}
	return c.playback.Start()
}

// startCapture opens the capture device if needed and starts it. Caller
// holds the mutex.
func (c *Card) startCapture() error {
	if c.capture == nil {
		dev, err := c.open(malgo.Capture, malgo.DeviceCallbacks{
			Data: func(_, in []byte, _ uint32) { c.onCapture(in) },
		})
		if err != nil {
			return err
		}
		c.capture = dev
	}
	return c.capture.Start()
}

func (c *Card) open(kind malgo.DeviceType, callbacks malgo.DeviceCallbacks) (*malgo.Device, error) {
	if c.ctx == nil {
		return nil, pkg.ErrBusStopped
	}
	if c.rate == 0 {
		return nil, pkg.ErrNotConfigured
	}
	dev, err := malgo.InitDevice(c.ctx.Context, c.deviceConfig(kind), callbacks)
	if err != nil {
		return nil, fmt.Errorf("init device: %w", err)
	}
	pkg.LogDebug(pkg.ComponentHAL, "device opened", "rate", c.rate, "channels", c.cfg.Channels)
	return dev, nil
}

// closeDevices stops and releases both devices. Caller holds the mutex.
func (c *Card) closeDevices() {
	for _, dev := range []**malgo.Device{&c.playback, &c.capture} {
		if *dev == nil {
			continue
		}
		if err := (*dev).Stop(); err != nil {
			pkg.LogWarn(pkg.ComponentHAL, "device stop failed", "error", err)
		}
		(*dev).Uninit()
		*dev = nil
	}
}
