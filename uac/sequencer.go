package uac

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/ardnew/uacbridge/pkg"
	"github.com/ardnew/uacbridge/pkg/trace"
	"github.com/ardnew/uacbridge/uac/hal"
)

// State is the clock state of the bridge.
type State uint32

// Clock states.
const (
	StateUnconfigured  State = iota // No rate selected yet
	StateStreaming                  // Clock configured, streaming allowed
	StateReconfiguring              // Clock change in progress or failed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateStreaming:
		return "streaming"
	case StateReconfiguring:
		return "reconfiguring"
	default:
		return "unknown"
	}
}

// Sequencer changes the sample rate by running the fixed reconfiguration
// sequence:
//
//  1. disable feedback and clear the sync event
//  2. stop the bus in both directions, noting which were requested
//  3. deactivate the codec
//  4. wait for the calibration subsystem to go idle
//  5. program the master clock
//  6. activate the codec
//  7. restart the bus directions noted in step 2
//  8. recalibrate the calibration baseline
//  9. enable feedback and set the sync event
//
// The session clock configuration is replaced between steps 2 and 3, while
// neither direction is running. A failing step leaves the sequencer in
// [StateReconfiguring] with streaming paused; a later rate request retries.
type Sequencer struct {
	cfg        Config
	bus        hal.Bus
	clock      hal.Clock
	codec      hal.Codec
	calibrator hal.Calibrator

	events   *eventGroup
	requests *streamRequests
	feedback *FeedbackEstimator
	hooks    sequencerHooks

	mutex   sync.Mutex // Serializes SetRate
	state   atomic.Uint32
	current atomic.Pointer[ClockConfig]
	changes atomic.Uint64
}

// sequencerHooks connect the sequencer to the stream paths.
type sequencerHooks struct {
	// quiesce returns once no packet handler is in flight.
	quiesce func()

	// apply installs a new clock configuration while the bus is stopped.
	apply func(ClockConfig)
}

func newSequencer(cfg Config, c Collaborators, events *eventGroup, requests *streamRequests, feedback *FeedbackEstimator, hooks sequencerHooks) *Sequencer {
	s := &Sequencer{
		cfg:        cfg,
		bus:        c.Bus,
		clock:      c.Clock,
		codec:      c.Codec,
		calibrator: c.Calibrator,
		events:     events,
		requests:   requests,
		feedback:   feedback,
		hooks:      hooks,
	}
	s.current.Store(&ClockConfig{})
	return s
}

// State returns the current clock state.
func (s *Sequencer) State() State {
	return State(s.state.Load())
}

// ClockConfig returns the active session clock configuration.
func (s *Sequencer) ClockConfig() ClockConfig {
	return *s.current.Load()
}

// Changes returns the number of completed clock changes.
func (s *Sequencer) Changes() uint64 {
	return s.changes.Load()
}

// SetRate reconfigures the clock for rate.
//
// A rate of zero means the host has not selected a rate and is ignored.
// A rate outside the supported set returns [pkg.ErrUnsupportedRate] and
// changes nothing. Requesting the active rate while streaming re-enables
// feedback and the sync event without touching the clock.
func (s *Sequencer) SetRate(ctx context.Context, rate uint32) error {
	if rate == 0 {
		return nil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	prev := s.ClockConfig()
	if s.State() == StateStreaming && rate == prev.SampleRate {
		s.feedback.Enable()
		s.events.Set(eventSync)
		pkg.LogDebug(pkg.ComponentClock, "rate unchanged", "rate", rate)
		return nil
	}

	next, err := s.cfg.ClockConfig(rate)
	if err != nil {
		pkg.LogWarn(pkg.ComponentClock, "rate rejected", "rate", rate)
		return err
	}

	ctx, span := trace.StartSpan(ctx, "uac.reconfigure", oteltrace.WithAttributes(
		attribute.Int64("uac.rate.from", int64(prev.SampleRate)),
		attribute.Int64("uac.rate.to", int64(rate)),
		attribute.Int64("uac.mclk_hz", int64(next.MasterClockHz)),
	))
	defer span.End()

	start := time.Now()
	pkg.LogInfo(pkg.ComponentClock, "reconfiguring", "from", prev.SampleRate, "to", rate)

	if err := s.run(ctx, span, next); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		pkg.LogError(pkg.ComponentClock, "reconfiguration failed", "rate", rate, "error", err)
		return err
	}

	s.changes.Add(1)
	span.SetStatus(codes.Ok, "")
	pkg.LogInfo(pkg.ComponentClock, "reconfigured", "config", next.String(), "elapsed", time.Since(start))
	return nil
}

func (s *Sequencer) run(ctx context.Context, span oteltrace.Span, next ClockConfig) error {
	step := func(name string) {
		span.AddEvent(name)
		pkg.LogDebug(pkg.ComponentClock, "step", "name", name)
	}

	// 1. Quiesce feedback and streaming
	s.state.Store(uint32(StateReconfiguring))
	s.events.Clear(eventSync)
	s.feedback.Disable()
	if s.hooks.quiesce != nil {
		s.hooks.quiesce()
	}
	step("feedback.disable")

	// 2. Stop the bus
	out, in := s.requests.out.Load(), s.requests.in.Load()
	if err := s.bus.StopTx(); err != nil {
		return fmt.Errorf("stop tx: %w", err)
	}
	if err := s.bus.StopRx(); err != nil {
		return fmt.Errorf("stop rx: %w", err)
	}
	step("bus.stop")

	s.current.Store(&next)
	target := s.cfg.FeedbackTarget
	if target <= 0 {
		target = next.FrameSize
	}
	s.feedback.Configure(next.Feedback, target)
	if s.hooks.apply != nil {
		s.hooks.apply(next)
	}

	// 3. Mute the analog path
	if s.codec != nil {
		if err := s.codec.Deactivate(); err != nil {
			return fmt.Errorf("codec deactivate: %w", err)
		}
		step("codec.deactivate")
	}

	// 4. Let any measurement in progress finish
	if err := s.waitCalibration(ctx); err != nil {
		return err
	}
	step("calibration.idle")

	// 5. Move the clock
	if err := s.clock.SetFrequency(next.MasterClockHz); err != nil {
		return fmt.Errorf("%w: %d Hz: %w", pkg.ErrClockConfig, next.MasterClockHz, err)
	}
	step("clock.set")

	// 6. Unmute
	if s.codec != nil {
		if err := s.codec.Activate(); err != nil {
			return fmt.Errorf("codec activate: %w", err)
		}
		step("codec.activate")
	}

	// 7. Resume what was running and is still requested
	if out && s.requests.out.Load() {
		if err := s.bus.StartTx(); err != nil {
			return fmt.Errorf("start tx: %w", err)
		}
	}
	if in && s.requests.in.Load() {
		if err := s.bus.StartRx(); err != nil {
			return fmt.Errorf("start rx: %w", err)
		}
	}
	step("bus.resume")

	// 8. The reference clock moved under the calibration baseline
	if s.calibrator != nil {
		s.calibrator.RecalibrateBaseline()
		step("calibration.baseline")
	}

	// 9. Back to streaming
	s.state.Store(uint32(StateStreaming))
	s.feedback.Enable()
	s.events.Set(eventSync)
	step("sync")
	return nil
}

func (s *Sequencer) waitCalibration(ctx context.Context) error {
	if s.calibrator == nil || s.calibrator.IsIdle() {
		return nil
	}

	var deadline <-chan time.Time
	if s.cfg.CalibrationTimeout > 0 {
		timer := time.NewTimer(s.cfg.CalibrationTimeout)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(s.cfg.CalibrationPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			if s.calibrator.IsIdle() {
				return nil
			}
			return pkg.ErrCalibrationTimeout
		case <-ticker.C:
			if s.calibrator.IsIdle() {
				return nil
			}
		}
	}
}

// isRetryable reports whether a SetRate error leaves the bridge able to
// accept another rate request.
func isRetryable(err error) bool {
	return errors.Is(err, pkg.ErrUnsupportedRate) || errors.Is(err, pkg.ErrCalibrationTimeout)
}
