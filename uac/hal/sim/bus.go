package sim

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ardnew/uacbridge/pkg"
	"github.com/ardnew/uacbridge/uac/hal"
	"github.com/ardnew/uacbridge/uac/hal/ring"
)

// DefaultFIFOCapacity is the per-direction FIFO depth in sample-groups.
const DefaultFIFOCapacity = 256

// BusConfig configures a simulated bus.
type BusConfig struct {
	// Channels per sample-group. Zero selects stereo.
	Channels int

	// Capacity of each FIFO in sample-groups. Zero selects
	// DefaultFIFOCapacity.
	Capacity int

	// Loopback feeds transmitted samples (and underrun silence) back into
	// the receive FIFO.
	Loopback bool

	// Source fills received bus-native groups when Loopback is false.
	// Nil receives silence.
	Source func(block []byte)

	// Sink observes transmitted bus-native groups. Underrun silence is not
	// passed to Sink.
	Sink func(block []byte)

	// Journal records start, stop and clear calls.
	Journal *Journal
}

// Bus is a simulated audio serial bus.
type Bus struct {
	cfg       BusConfig
	groupSize int
	tx, rx    *ring.Buffer

	mutex     sync.Mutex
	txRunning bool
	rxRunning bool
	block     []byte

	clocked   atomic.Uint64
	underruns atomic.Uint64
	overruns  atomic.Uint64
}

// Verify interface compliance.
var _ hal.Bus = (*Bus)(nil)

// NewBus creates a stopped bus with empty FIFOs.
func NewBus(cfg BusConfig) *Bus {
	if cfg.Channels <= 0 {
		cfg.Channels = 2
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultFIFOCapacity
	}
	gs := cfg.Channels * 4
	return &Bus{
		cfg:       cfg,
		groupSize: gs,
		tx:        ring.New(gs, cfg.Capacity),
		rx:        ring.New(gs, cfg.Capacity),
	}
}

// GroupSize returns the bus-native group size in bytes.
func (b *Bus) GroupSize() int {
	return b.groupSize
}

// StartTx implements [hal.Bus].
func (b *Bus) StartTx() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.txRunning = true
	b.cfg.Journal.Record("bus.start_tx")
	return nil
}

// StopTx implements [hal.Bus].
func (b *Bus) StopTx() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.txRunning = false
	b.cfg.Journal.Record("bus.stop_tx")
	return nil
}

// StartRx implements [hal.Bus].
func (b *Bus) StartRx() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.rxRunning = true
	b.cfg.Journal.Record("bus.start_rx")
	return nil
}

// StopRx implements [hal.Bus].
func (b *Bus) StopRx() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.rxRunning = false
	b.cfg.Journal.Record("bus.stop_rx")
	return nil
}

// TxRunning implements [hal.Bus].
func (b *Bus) TxRunning() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.txRunning
}

// RxRunning reports whether the receiver is running.
func (b *Bus) RxRunning() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.rxRunning
}

func (b *Bus) fifo(dir hal.Direction) *ring.Buffer {
	if dir == hal.DirectionOut {
		return b.tx
	}
	return b.rx
}

// ClearFIFO implements [hal.Bus].
func (b *Bus) ClearFIFO(dir hal.Direction) error {
	b.fifo(dir).Clear()
	b.cfg.Journal.Record("bus.clear_%s", dir)
	return nil
}

// Occupancy implements [hal.Bus].
func (b *Bus) Occupancy(dir hal.Direction) int {
	return b.fifo(dir).Len()
}

// WriteBlock implements [hal.Bus].
func (b *Bus) WriteBlock(block []byte) (int, error) {
	n := b.tx.Write(block)
	if n < len(block)/b.groupSize {
		b.overruns.Add(uint64(len(block)/b.groupSize - n))
		return n, pkg.ErrOverrun
	}
	return n, nil
}

// ReadBlock implements [hal.Bus].
func (b *Bus) ReadBlock(block []byte) (int, error) {
	return b.rx.Read(block), nil
}

// Clock advances the bus by groups sample periods. A running transmitter
// drains groups from the transmit FIFO, substituting silence on underrun;
// a running receiver queues groups into the receive FIFO.
func (b *Bus) Clock(groups int) {
	if groups <= 0 {
		return
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	size := groups * b.groupSize
	if cap(b.block) < size {
		b.block = make([]byte, size)
	}
	block := b.block[:size]
	clear(block)

	if b.txRunning {
		n := b.tx.Read(block)
		if n > 0 && b.cfg.Sink != nil {
			b.cfg.Sink(block[:n*b.groupSize])
		}
		if n < groups {
			b.underruns.Add(uint64(groups - n))
			clear(block[n*b.groupSize:])
		}
	}

	if b.rxRunning {
		if !b.cfg.Loopback {
			clear(block)
			if b.cfg.Source != nil {
				b.cfg.Source(block)
			}
		}
		if n := b.rx.Write(block); n < groups {
			b.overruns.Add(uint64(groups - n))
		}
	}

	b.clocked.Add(uint64(groups))
}

// Run clocks the bus in real time from the frequency programmed into clk,
// divided by ratio, until ctx is cancelled.
func (b *Bus) Run(ctx context.Context, clk *Clock, ratio uint32) error {
	if ratio == 0 {
		return pkg.ErrInvalidParameter
	}

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	var acc uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		hz := clk.Frequency()
		if hz == 0 {
			continue
		}
		acc += uint64(hz / ratio)
		b.Clock(int(acc / 1000))
		acc %= 1000
	}
}

// Clocked returns the number of sample periods clocked.
func (b *Bus) Clocked() uint64 { return b.clocked.Load() }

// Underruns returns the number of groups of silence transmitted because
// the transmit FIFO was empty.
func (b *Bus) Underruns() uint64 { return b.underruns.Load() }

// Overruns returns the number of groups refused by a full FIFO.
func (b *Bus) Overruns() uint64 { return b.overruns.Load() }
