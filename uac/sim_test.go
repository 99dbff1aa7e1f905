package uac_test

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/uacbridge/uac"
	"github.com/ardnew/uacbridge/uac/hal"
	"github.com/ardnew/uacbridge/uac/hal/sim"
)

type simRig struct {
	journal    *sim.Journal
	bus        *sim.Bus
	host       *sim.Host
	clock      *sim.Clock
	calibrator *sim.Calibrator
	codec      *sim.Codec
	bridge     *uac.Bridge

	sent     []byte
	drained  []byte
	captured []byte
}

func newSimRig(t *testing.T, jitter int) *simRig {
	t.Helper()
	r := &simRig{journal: &sim.Journal{}}
	r.bus = sim.NewBus(sim.BusConfig{
		Channels: 2,
		Loopback: true,
		Journal:  r.journal,
		Sink:     func(b []byte) { r.drained = append(r.drained, b...) },
	})
	r.host = sim.NewHost(sim.HostConfig{
		Channels: 2,
		Rate:     uac.Rate48000,
		Jitter:   jitter,
		Source: func(p []byte) {
			for i := range p {
				p[i] = byte(len(r.sent) + i)
			}
			r.sent = append(r.sent, p...)
		},
		Sink: func(p []byte) { r.captured = append(r.captured, p...) },
	})
	r.clock = sim.NewClock(r.journal)
	r.calibrator = sim.NewCalibrator(r.journal)
	r.codec = sim.NewCodec(r.journal)

	b, err := uac.New(uac.DefaultConfig(), uac.Collaborators{
		Bus:        r.bus,
		Transport:  r.host,
		Clock:      r.clock,
		Calibrator: r.calibrator,
		Codec:      r.codec,
	})
	require.NoError(t, err)
	r.bridge = b

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	require.Eventually(t, b.Running, time.Second, time.Millisecond)
	return r
}

func (r *simRig) start(t *testing.T) {
	t.Helper()
	r.bridge.EnableOut()
	r.bridge.EnableIn()
	r.bridge.RequestRate(uac.Rate48000)
	require.Eventually(t, func() bool {
		return r.host.Armed(hal.DirectionOut) && r.host.Armed(hal.DirectionIn)
	}, time.Second, time.Millisecond)
}

func TestSimulatedLoopback(t *testing.T) {
	r := newSimRig(t, 1)
	r.start(t)

	maxOcc := 0
	for i := 0; i < 3000; i++ {
		r.host.Step()
		r.bus.Clock(48)
		if i > 500 {
			maxOcc = max(maxOcc, r.bus.Occupancy(hal.DirectionOut))
		}
	}

	s := r.bridge.Stats()
	assert.Zero(t, s.PlaybackDropped)
	assert.Less(t, maxOcc, 150, "feedback must keep the transmit FIFO bounded")

	fb := r.host.Feedback()
	nominal := uint32(uac.NominalFeedback(uac.Rate48000))
	assert.LessOrEqual(t, fb, nominal+uint32(uac.DefaultFeedbackSpan))
	assert.GreaterOrEqual(t, fb, nominal-uint32(uac.DefaultFeedbackSpan))

	// Every transmitted group is the sent stream, in order
	require.NotEmpty(t, r.drained)
	wire := uac.WireSize(len(r.drained))
	require.LessOrEqual(t, wire, len(r.sent))
	want := make([]byte, len(r.drained))
	uac.WireToBus(want, r.sent[:wire])
	assert.Equal(t, want, r.drained)

	// Capture returns whole groups at roughly the bus rate
	assert.Zero(t, len(r.captured)%6)
	assert.InDelta(t, 3000*48, len(r.captured)/6, 3*50)
}

func TestSimulatedRateSwitch(t *testing.T) {
	r := newSimRig(t, 0)
	r.start(t)
	for i := 0; i < 20; i++ {
		r.host.Step()
		r.bus.Clock(48)
	}
	require.True(t, r.bus.TxRunning())

	r.journal.Reset()
	r.calibrator.Measure(5)
	r.bridge.RequestRate(uac.Rate44100)
	r.host.SetRate(uac.Rate44100)
	require.Eventually(t, func() bool {
		return r.bridge.SampleRate() == uac.Rate44100 && r.bridge.State() == uac.StateStreaming
	}, time.Second, time.Millisecond)

	entries := r.journal.Entries()
	order := []string{
		"bus.stop_tx",
		"bus.stop_rx",
		"codec.deactivate",
		"clock.set 50803200",
		"codec.activate",
		"bus.start_tx",
		"bus.start_rx",
		"calibration.baseline",
	}
	last := -1
	for _, e := range order {
		i := slices.Index(entries, e)
		require.GreaterOrEqual(t, i, 0, "missing %q in %v", e, entries)
		assert.Greater(t, i, last, "%q out of order in %v", e, entries)
		last = i
	}
	assert.True(t, r.calibrator.IsIdle())
	assert.Equal(t, uint32(2), r.calibrator.Baselines())
	assert.True(t, r.codec.Active())

	for i := 0; i < 100; i++ {
		r.host.Step()
		r.bus.Clock(44)
	}
	s := r.bridge.Stats()
	assert.Equal(t, 44, s.Clock.FrameSize)
	assert.True(t, s.PlaybackActive)
	assert.True(t, s.CaptureActive)
	assert.Equal(t, uac.NominalFeedback(uac.Rate44100), s.Clock.Feedback)
}
