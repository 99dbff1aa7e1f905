package uac

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/uacbridge/pkg"
)

type seqHarness struct {
	*rig
	seq      *Sequencer
	events   *eventGroup
	requests *streamRequests
	feedback *FeedbackEstimator
	applied  []ClockConfig
}

func newSeqHarness(t *testing.T, modify func(*Config)) *seqHarness {
	t.Helper()
	cfg := DefaultConfig()
	if modify != nil {
		modify(&cfg)
	}
	require.NoError(t, cfg.Validate())

	h := &seqHarness{
		rig:      newRig(),
		events:   newEventGroup(),
		requests: &streamRequests{},
		feedback: NewFeedbackEstimator(cfg.Feedback),
	}
	h.seq = newSequencer(cfg, h.collaborators(), h.events, h.requests, h.feedback, sequencerHooks{
		apply: func(cc ClockConfig) {
			h.j.add("apply %d", cc.SampleRate)
			h.applied = append(h.applied, cc)
		},
	})
	return h
}

func TestSequencerOrder(t *testing.T) {
	h := newSeqHarness(t, nil)
	h.requests.out.Store(true)
	h.requests.in.Store(true)
	h.calibrator.busy.Store(3)

	h.clock.onSet = func() {
		assert.False(t, h.feedback.Enabled(), "feedback must be disabled while the clock moves")
		assert.False(t, h.events.IsSet(eventSync), "sync must be clear while the clock moves")
		assert.False(t, h.bus.txRunning.Load())
		assert.False(t, h.bus.rxRunning.Load())
		assert.False(t, h.codec.active.Load())
		assert.Zero(t, h.calibrator.busy.Load(), "calibration must be idle")
		assert.Equal(t, StateReconfiguring, h.seq.State())
	}

	require.NoError(t, h.seq.SetRate(context.Background(), Rate48000))

	assert.Equal(t, []string{
		"bus.stop_tx",
		"bus.stop_rx",
		"apply 48000",
		"codec.deactivate",
		"clock.set 55296000",
		"codec.activate",
		"bus.start_tx",
		"bus.start_rx",
		"calibration.baseline",
	}, h.j.list())

	assert.Equal(t, StateStreaming, h.seq.State())
	assert.True(t, h.feedback.Enabled())
	assert.True(t, h.events.IsSet(eventSync))
	assert.Equal(t, NominalFeedback(Rate48000), h.feedback.Estimate())
	assert.Equal(t, uint32(Rate48000), h.seq.ClockConfig().SampleRate)
	assert.Equal(t, uint64(1), h.seq.Changes())
	assert.GreaterOrEqual(t, h.calibrator.polls.Load(), int32(4))
}

func TestSequencerPreservesDirections(t *testing.T) {
	tests := []struct {
		name    string
		out, in bool
		want    []string
	}{
		{"none", false, false, nil},
		{"out only", true, false, []string{"bus.start_tx"}},
		{"in only", false, true, []string{"bus.start_rx"}},
		{"both", true, true, []string{"bus.start_tx", "bus.start_rx"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newSeqHarness(t, nil)
			h.requests.out.Store(tt.out)
			h.requests.in.Store(tt.in)

			require.NoError(t, h.seq.SetRate(context.Background(), Rate44100))

			var started []string
			for _, e := range h.j.list() {
				if e == "bus.start_tx" || e == "bus.start_rx" {
					started = append(started, e)
				}
			}
			assert.Equal(t, tt.want, started)
			assert.Equal(t, uint32(50803200), h.clock.hz.Load())
		})
	}
}

func TestSequencerDropsDirectionDisabledMidway(t *testing.T) {
	tests := []struct {
		name    string
		disable func(h *seqHarness)
		want    []string
	}{
		{"in", func(h *seqHarness) { h.requests.in.Store(false) }, []string{"bus.start_tx"}},
		{"out", func(h *seqHarness) { h.requests.out.Store(false) }, []string{"bus.start_rx"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newSeqHarness(t, nil)
			h.requests.out.Store(true)
			h.requests.in.Store(true)
			h.calibrator.busy.Store(-1)

			done := make(chan error, 1)
			go func() { done <- h.seq.SetRate(context.Background(), Rate44100) }()

			require.Eventually(t, func() bool { return h.calibrator.polls.Load() > 0 }, time.Second, time.Millisecond)
			tt.disable(h)
			h.calibrator.busy.Store(0)

			select {
			case err := <-done:
				require.NoError(t, err)
			case <-time.After(time.Second):
				t.Fatal("reconfiguration did not finish")
			}

			var started []string
			for _, e := range h.j.list() {
				if e == "bus.start_tx" || e == "bus.start_rx" {
					started = append(started, e)
				}
			}
			assert.Equal(t, tt.want, started)
			assert.Equal(t, StateStreaming, h.seq.State())
		})
	}
}

func TestSequencerUnsupportedRate(t *testing.T) {
	h := newSeqHarness(t, nil)
	require.NoError(t, h.seq.SetRate(context.Background(), Rate48000))
	h.j.reset()

	err := h.seq.SetRate(context.Background(), Rate32000)
	assert.ErrorIs(t, err, pkg.ErrUnsupportedRate)
	assert.Empty(t, h.j.list())
	assert.Equal(t, StateStreaming, h.seq.State())
	assert.Equal(t, uint32(Rate48000), h.seq.ClockConfig().SampleRate)
	assert.True(t, h.events.IsSet(eventSync))
}

func TestSequencerZeroRateIgnored(t *testing.T) {
	h := newSeqHarness(t, nil)
	require.NoError(t, h.seq.SetRate(context.Background(), 0))
	assert.Empty(t, h.j.list())
	assert.Equal(t, StateUnconfigured, h.seq.State())
}

func TestSequencerSameRate(t *testing.T) {
	h := newSeqHarness(t, nil)
	require.NoError(t, h.seq.SetRate(context.Background(), Rate48000))
	h.j.reset()

	h.feedback.Disable()
	h.events.Clear(eventSync)

	require.NoError(t, h.seq.SetRate(context.Background(), Rate48000))
	assert.Empty(t, h.j.list(), "same rate must not touch the clock or bus")
	assert.True(t, h.feedback.Enabled())
	assert.True(t, h.events.IsSet(eventSync))
	assert.Equal(t, uint64(1), h.seq.Changes())
}

func TestSequencerClockFailure(t *testing.T) {
	h := newSeqHarness(t, nil)
	h.requests.out.Store(true)
	h.clock.fail.Store(true)

	err := h.seq.SetRate(context.Background(), Rate48000)
	require.ErrorIs(t, err, pkg.ErrClockConfig)
	assert.ErrorIs(t, err, errClockFault)

	assert.Equal(t, StateReconfiguring, h.seq.State())
	assert.False(t, h.feedback.Enabled())
	assert.False(t, h.events.IsSet(eventSync))
	assert.False(t, h.bus.txRunning.Load(), "bus must stay stopped")
	assert.NotContains(t, h.j.list(), "codec.activate")

	h.clock.fail.Store(false)
	require.NoError(t, h.seq.SetRate(context.Background(), Rate48000))
	assert.Equal(t, StateStreaming, h.seq.State())
	assert.True(t, h.bus.txRunning.Load())
}

func TestSequencerCalibrationTimeout(t *testing.T) {
	h := newSeqHarness(t, func(c *Config) {
		c.CalibrationTimeout = 5 * time.Millisecond
	})
	h.calibrator.busy.Store(-1)

	err := h.seq.SetRate(context.Background(), Rate48000)
	assert.ErrorIs(t, err, pkg.ErrCalibrationTimeout)
	assert.True(t, isRetryable(err))
	assert.Zero(t, h.clock.hz.Load(), "clock must not move while calibration is busy")
	assert.Equal(t, StateReconfiguring, h.seq.State())
	assert.False(t, h.events.IsSet(eventSync))
}

func TestSequencerCalibrationCancel(t *testing.T) {
	h := newSeqHarness(t, nil)
	h.calibrator.busy.Store(-1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := h.seq.SetRate(ctx, Rate48000)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, isRetryable(err))
	assert.Zero(t, h.clock.hz.Load())
}

func TestSequencerOptionalCollaborators(t *testing.T) {
	r := newRig()
	cfg := DefaultConfig()
	c := Collaborators{Bus: r.bus, Transport: r.transport, Clock: r.clock}
	seq := newSequencer(cfg, c, newEventGroup(), &streamRequests{}, NewFeedbackEstimator(cfg.Feedback), sequencerHooks{})

	require.NoError(t, seq.SetRate(context.Background(), Rate44100))
	assert.Equal(t, []string{"bus.stop_tx", "bus.stop_rx", "clock.set 50803200"}, r.j.list())
	assert.Equal(t, StateStreaming, seq.State())
}

func TestSequencerRateSwitch(t *testing.T) {
	h := newSeqHarness(t, nil)
	require.NoError(t, h.seq.SetRate(context.Background(), Rate48000))
	require.NoError(t, h.seq.SetRate(context.Background(), Rate44100))

	require.Len(t, h.applied, 2)
	assert.Equal(t, 44, h.applied[1].FrameSize)
	assert.Equal(t, NominalFeedback(Rate44100), h.feedback.Estimate())
	assert.Equal(t, uint64(2), h.seq.Changes())
	assert.Equal(t, int32(2), h.calibrator.rebuilt.Load())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unconfigured", StateUnconfigured.String())
	assert.Equal(t, "streaming", StateStreaming.String())
	assert.Equal(t, "reconfiguring", StateReconfiguring.String())
	assert.Equal(t, "unknown", State(99).String())
}
