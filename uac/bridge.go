package uac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ardnew/uacbridge/pkg"
	"github.com/ardnew/uacbridge/uac/hal"
)

// Collaborators are the platform services a [Bridge] drives.
type Collaborators struct {
	Bus       hal.Bus
	Transport hal.Transport
	Clock     hal.Clock

	// Calibrator is optional; without it the sequencer skips the idle
	// wait and the baseline rebuild.
	Calibrator hal.Calibrator

	// Codec is optional; without it the sequencer skips the mute steps.
	Codec hal.Codec
}

// Bridge moves audio between a packetized transport and a synchronous
// serial bus in both directions.
//
// The host drives the bridge through EnableOut, DisableOut, EnableIn,
// DisableIn and RequestRate, typically from the transport's control
// request handling. Run executes the control, playback and capture tasks
// until its context is cancelled.
type Bridge struct {
	cfg Config
	hal Collaborators

	events   *eventGroup
	requests streamRequests
	feedback *FeedbackEstimator
	seq      *Sequencer
	playback *playbackPath
	capture  *capturePath

	pendingRate atomic.Uint32
	running     atomic.Bool
	frames      atomic.Uint64
	lastFrame   atomic.Uint32

	feedbackBuf [FeedbackSize]byte // Frame-boundary context only
}

// Verify interface compliance.
var _ hal.StreamHandler = (*Bridge)(nil)

// New creates a bridge over the given collaborators.
func New(cfg Config, c Collaborators) (*Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if c.Bus == nil || c.Transport == nil || c.Clock == nil {
		return nil, fmt.Errorf("%w: bus, transport and clock are required", pkg.ErrInvalidParameter)
	}

	b := &Bridge{
		cfg:      cfg,
		hal:      c,
		events:   newEventGroup(),
		feedback: NewFeedbackEstimator(cfg.Feedback),
		playback: newPlaybackPath(cfg, c.Bus),
		capture:  newCapturePath(cfg, c.Bus),
	}
	b.seq = newSequencer(cfg, c, b.events, &b.requests, b.feedback, sequencerHooks{
		quiesce: func() {
			b.playback.quiesce()
			b.capture.quiesce()
		},
		apply: func(cc ClockConfig) {
			b.playback.resync()
			b.capture.resync(cc.FrameSize)
		},
	})
	return b, nil
}

// Config returns the bridge configuration.
func (b *Bridge) Config() Config {
	return b.cfg
}

// Run registers the bridge with the transport and runs its tasks until ctx
// is cancelled or reconfiguration fails unrecoverably. It returns nil on
// cancellation.
func (b *Bridge) Run(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return pkg.ErrAlreadyRunning
	}
	defer b.running.Store(false)

	b.hal.Transport.Register(b)
	defer b.hal.Transport.Register(nil)

	if b.cfg.InitialRate != 0 {
		b.RequestRate(b.cfg.InitialRate)
	}

	pkg.LogInfo(pkg.ComponentBridge, "running",
		"channels", b.cfg.Channels,
		"rates", b.cfg.SupportedRates,
		"capture_limit", b.cfg.CaptureLimit())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.controlTask(ctx) })
	g.Go(func() error { return b.playbackTask(ctx) })
	g.Go(func() error { return b.captureTask(ctx) })

	err := g.Wait()

	b.playback.stop()
	b.capture.stop()
	if stopErr := b.hal.Bus.StopTx(); stopErr != nil {
		pkg.LogWarn(pkg.ComponentBridge, "stop tx failed", "error", stopErr)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		pkg.LogInfo(pkg.ComponentBridge, "stopped")
		return nil
	}
	return err
}

// Running reports whether Run is executing.
func (b *Bridge) Running() bool {
	return b.running.Load()
}

// controlTask applies rate requests.
func (b *Bridge) controlTask(ctx context.Context) error {
	for {
		if err := b.events.WaitAll(ctx, eventRate, true); err != nil {
			return err
		}
		err := b.seq.SetRate(ctx, b.pendingRate.Load())
		switch {
		case err == nil:
		case isRetryable(err):
			pkg.LogWarn(pkg.ComponentBridge, "rate change not applied", "error", err)
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			return err
		}
	}
}

// playbackTask starts a playback session each time the host requests one
// and the clock is configured.
func (b *Bridge) playbackTask(ctx context.Context) error {
	for {
		if err := b.events.WaitAll(ctx, eventOut|eventSync, false); err != nil {
			return err
		}
		b.events.Clear(eventOut)
		if !b.requests.out.Load() {
			continue
		}
		if err := b.playback.start(); err != nil {
			pkg.LogError(pkg.ComponentPlayback, "start failed", "error", err)
			continue
		}
		if err := b.hal.Transport.Arm(hal.DirectionOut); err != nil {
			pkg.LogError(pkg.ComponentPlayback, "arm failed", "error", err)
		}
	}
}

// captureTask starts a capture session each time the host requests one and
// the clock is configured.
func (b *Bridge) captureTask(ctx context.Context) error {
	for {
		if err := b.events.WaitAll(ctx, eventIn|eventSync, false); err != nil {
			return err
		}
		b.events.Clear(eventIn)
		if !b.requests.in.Load() {
			continue
		}
		if err := b.capture.start(); err != nil {
			pkg.LogError(pkg.ComponentCapture, "start failed", "error", err)
			continue
		}
		if err := b.hal.Transport.Arm(hal.DirectionIn); err != nil {
			pkg.LogError(pkg.ComponentCapture, "arm failed", "error", err)
		}
	}
}

// EnableOut requests playback streaming (host selected the operational
// OUT alternate setting).
func (b *Bridge) EnableOut() {
	b.requests.out.Store(true)
	b.events.Set(eventOut)
}

// DisableOut ends playback streaming and stops the transmitter.
func (b *Bridge) DisableOut() {
	b.requests.out.Store(false)
	b.events.Clear(eventOut)
	b.playback.stop()
	if err := b.hal.Bus.StopTx(); err != nil {
		pkg.LogWarn(pkg.ComponentPlayback, "stop tx failed", "error", err)
	}
}

// EnableIn requests capture streaming.
func (b *Bridge) EnableIn() {
	b.requests.in.Store(true)
	b.events.Set(eventIn)
}

// DisableIn ends capture streaming and stops the receiver.
func (b *Bridge) DisableIn() {
	b.requests.in.Store(false)
	b.events.Clear(eventIn)
	b.capture.stop()
}

// SetStreaming enables or disables dir.
func (b *Bridge) SetStreaming(dir hal.Direction, on bool) {
	switch {
	case dir == hal.DirectionOut && on:
		b.EnableOut()
	case dir == hal.DirectionOut:
		b.DisableOut()
	case on:
		b.EnableIn()
	default:
		b.DisableIn()
	}
}

// RequestRate asks the control task to configure rate. The last request
// wins if several arrive before the control task runs.
func (b *Bridge) RequestRate(rate uint32) {
	b.pendingRate.Store(rate)
	b.events.Set(eventRate)
}

// SetRate configures rate synchronously. It must not be called from a
// transport notification.
func (b *Bridge) SetRate(ctx context.Context, rate uint32) error {
	return b.seq.SetRate(ctx, rate)
}

// State returns the clock state.
func (b *Bridge) State() State {
	return b.seq.State()
}

// SampleRate returns the configured sample rate, or 0.
func (b *Bridge) SampleRate() uint32 {
	return b.seq.ClockConfig().SampleRate
}

// ClockConfig returns the active session clock configuration.
func (b *Bridge) ClockConfig() ClockConfig {
	return b.seq.ClockConfig()
}

// Feedback returns the current feedback estimate.
func (b *Bridge) Feedback() FeedbackValue {
	return b.feedback.Estimate()
}

func (b *Bridge) synced() bool {
	return b.events.IsSet(eventSync)
}

// OnPacketReceived implements [hal.StreamHandler].
func (b *Bridge) OnPacketReceived(packet []byte) {
	if !b.requests.out.Load() {
		return
	}
	b.playback.receive(packet, b.synced)
}

// OnPacketRequest implements [hal.StreamHandler].
func (b *Bridge) OnPacketRequest(buf []byte) int {
	if !b.requests.in.Load() {
		return 0
	}
	return b.capture.request(buf, b.synced)
}

// OnFrameBoundary implements [hal.StreamHandler]. It advances the feedback
// estimator from the transmit FIFO occupancy and hands the encoded value to
// the transport.
func (b *Bridge) OnFrameBoundary(frame uint16) {
	b.frames.Add(1)
	b.lastFrame.Store(uint32(frame))

	if !b.feedback.Enabled() {
		return
	}
	v, ok := b.feedback.Update(b.hal.Bus.Occupancy(hal.DirectionOut))
	if !ok {
		return
	}
	v.MarshalTo(b.feedbackBuf[:])
	if err := b.hal.Transport.WriteFeedback(b.feedbackBuf[:]); err != nil && pkg.Enabled(slog.LevelDebug) {
		pkg.LogDebug(pkg.ComponentFeedback, "write failed", "frame", frame, "error", err)
	}
}

// Stats is a snapshot of bridge counters.
type Stats struct {
	State           State
	Clock           ClockConfig
	Feedback        FeedbackValue
	FeedbackEnabled bool
	Frames          uint64
	ClockChanges    uint64

	PlaybackActive  bool
	PlaybackSession uuid.UUID
	PlaybackBytes   uint64
	PlaybackGroups  uint64
	PlaybackDropped uint64
	Remainder       int
	TxOccupancy     int

	CaptureActive    bool
	CaptureSession   uuid.UUID
	CaptureGroups    uint64
	CaptureShortfall uint64
	CaptureFrameSize int
	RxOccupancy      int
}

// Stats returns a snapshot of the bridge counters.
func (b *Bridge) Stats() Stats {
	s := Stats{
		State:           b.seq.State(),
		Clock:           b.seq.ClockConfig(),
		Feedback:        b.feedback.Estimate(),
		FeedbackEnabled: b.feedback.Enabled(),
		Frames:          b.frames.Load(),
		ClockChanges:    b.seq.Changes(),
		TxOccupancy:     b.hal.Bus.Occupancy(hal.DirectionOut),
		RxOccupancy:     b.hal.Bus.Occupancy(hal.DirectionIn),
	}

	b.playback.mutex.Lock()
	s.PlaybackActive = b.playback.active
	s.PlaybackSession = b.playback.session
	s.PlaybackBytes = b.playback.realigner.Received()
	s.PlaybackGroups = b.playback.written
	s.PlaybackDropped = b.playback.dropped
	s.Remainder = b.playback.realigner.Remainder()
	b.playback.mutex.Unlock()

	b.capture.mutex.Lock()
	s.CaptureActive = b.capture.active
	s.CaptureSession = b.capture.session
	s.CaptureGroups = b.capture.sent
	s.CaptureShortfall = b.capture.shortfall
	s.CaptureFrameSize = b.capture.sizer.Last()
	b.capture.mutex.Unlock()

	return s
}
