package uac

import (
	"fmt"
	"slices"
	"time"

	"github.com/ardnew/uacbridge/pkg"
)

// Config holds the static configuration of a [Bridge].
type Config struct {
	// Channels is the number of interleaved channels in both directions.
	Channels int

	// SupportedRates lists the sample rates the clock sequencer accepts.
	SupportedRates []uint32

	// InitialRate, if non-zero, is configured when the bridge starts.
	// Otherwise the bridge waits for the host to select a rate.
	InitialRate uint32

	// FrameDelta is the capture frame-size adjustment in sample-groups.
	FrameDelta int

	// MaxCaptureGroups clamps the capture frame size. Zero derives the
	// clamp from the highest supported rate plus FrameDelta.
	MaxCaptureGroups int

	// Feedback tunes the feedback estimator.
	Feedback FeedbackConfig

	// FeedbackTarget is the transmit FIFO occupancy the estimator steers
	// toward, in sample-groups. Zero uses the nominal frame size.
	FeedbackTarget int

	// MasterClockRatio is the master clock frequency divided by the sample
	// rate.
	MasterClockRatio uint32

	// CalibrationPoll is the interval between calibration idle checks.
	CalibrationPoll time.Duration

	// CalibrationTimeout bounds the wait for the calibration subsystem to
	// go idle. Zero waits indefinitely.
	CalibrationTimeout time.Duration
}

// DefaultConfig returns the stereo 48 kHz / 44.1 kHz configuration.
func DefaultConfig() Config {
	return Config{
		Channels:         DefaultChannels,
		SupportedRates:   []uint32{Rate48000, Rate44100},
		FrameDelta:       DefaultFrameDelta,
		Feedback:         DefaultFeedbackConfig(),
		MasterClockRatio: DefaultMasterClockRatio,
		CalibrationPoll:  time.Millisecond,
	}
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.Channels < 1 || c.Channels > MaxChannels {
		return fmt.Errorf("%w: channels %d", pkg.ErrInvalidParameter, c.Channels)
	}
	if len(c.SupportedRates) == 0 {
		return fmt.Errorf("%w: no supported rates", pkg.ErrInvalidParameter)
	}
	for _, r := range c.SupportedRates {
		if r < FramesPerSecond {
			return fmt.Errorf("%w: rate %d", pkg.ErrInvalidParameter, r)
		}
	}
	if c.InitialRate != 0 && !c.Supports(c.InitialRate) {
		return fmt.Errorf("%w: initial rate %d", pkg.ErrUnsupportedRate, c.InitialRate)
	}
	if c.FrameDelta < 0 {
		return fmt.Errorf("%w: frame delta %d", pkg.ErrInvalidParameter, c.FrameDelta)
	}
	if c.MasterClockRatio == 0 {
		return fmt.Errorf("%w: master clock ratio 0", pkg.ErrInvalidParameter)
	}
	if c.CalibrationPoll <= 0 {
		return fmt.Errorf("%w: calibration poll %v", pkg.ErrInvalidParameter, c.CalibrationPoll)
	}
	return nil
}

// Supports reports whether rate is in SupportedRates.
func (c Config) Supports(rate uint32) bool {
	return slices.Contains(c.SupportedRates, rate)
}

// WireGroupSize returns the transport size of one sample-group.
func (c Config) WireGroupSize() int {
	return WireGroupSize(c.Channels)
}

// BusGroupSize returns the bus-native size of one sample-group.
func (c Config) BusGroupSize() int {
	return BusGroupSize(c.Channels)
}

// CaptureLimit returns the capture frame-size clamp in sample-groups.
func (c Config) CaptureLimit() int {
	if c.MaxCaptureGroups > 0 {
		return c.MaxCaptureGroups
	}
	return NominalFrameSize(slices.Max(c.SupportedRates)) + c.FrameDelta
}

// MaxPacketSize returns the largest packet in bytes the bridge sends or
// expects in one frame.
func (c Config) MaxPacketSize() int {
	return c.CaptureLimit() * c.WireGroupSize()
}

// ClockConfig derives the session clock configuration for rate.
func (c Config) ClockConfig(rate uint32) (ClockConfig, error) {
	if !c.Supports(rate) {
		return ClockConfig{}, fmt.Errorf("%w: %d", pkg.ErrUnsupportedRate, rate)
	}
	return NewClockConfig(rate, c.MasterClockRatio), nil
}

// ClockConfig is the clock-derived configuration of a streaming session.
// It changes only inside a reconfiguration sequence.
type ClockConfig struct {
	SampleRate    uint32
	FrameSize     int           // Nominal sample-groups per frame
	Feedback      FeedbackValue // Nominal feedback value
	MasterClockHz uint32
}

// NewClockConfig derives the clock configuration for rate with the given
// master clock ratio.
func NewClockConfig(rate, ratio uint32) ClockConfig {
	return ClockConfig{
		SampleRate:    rate,
		FrameSize:     NominalFrameSize(rate),
		Feedback:      NominalFeedback(rate),
		MasterClockHz: rate * ratio,
	}
}

// IsZero reports whether no rate has been configured.
func (c ClockConfig) IsZero() bool {
	return c.SampleRate == 0
}

// String returns a human-readable summary.
func (c ClockConfig) String() string {
	if c.IsZero() {
		return "unconfigured"
	}
	return fmt.Sprintf("%d Hz (frame %d, feedback %s, mclk %d Hz)",
		c.SampleRate, c.FrameSize, c.Feedback, c.MasterClockHz)
}
