package uac

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ardnew/uacbridge/pkg"
)

// FeedbackValue is an unsigned 10.14 fixed-point count of sample-groups per
// transport frame, as sent on the explicit feedback endpoint.
type FeedbackValue uint32

// Feedback wire format.
const (
	FeedbackFracBits               = 14
	FeedbackIntBits                = 10
	FeedbackSize                   = 3 // Bytes on the wire, little-endian
	FeedbackMax      FeedbackValue = 1<<(FeedbackIntBits+FeedbackFracBits) - 1
)

// NominalFeedback returns floor(rate·2^14/1000), the feedback value matching
// rate exactly. 48 kHz gives 0x0C0000.
func NominalFeedback(rate uint32) FeedbackValue {
	v := (uint64(rate) << FeedbackFracBits) / FramesPerSecond
	if v > uint64(FeedbackMax) {
		return FeedbackMax
	}
	return FeedbackValue(v)
}

// Integer returns the whole sample-groups per frame.
func (v FeedbackValue) Integer() uint32 {
	return uint32(v) >> FeedbackFracBits
}

// Fraction returns the fractional part in units of 2^-14.
func (v FeedbackValue) Fraction() uint32 {
	return uint32(v) & (1<<FeedbackFracBits - 1)
}

// SamplesPerFrame returns the value as a floating-point rate.
func (v FeedbackValue) SamplesPerFrame() float64 {
	return float64(v) / (1 << FeedbackFracBits)
}

// MarshalTo writes the 3-byte little-endian encoding into buf and returns
// the number of bytes written, or 0 if buf is too small.
func (v FeedbackValue) MarshalTo(buf []byte) int {
	if len(buf) < FeedbackSize {
		return 0
	}
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v >> 16)
	return FeedbackSize
}

// ParseFeedbackValue decodes a 3-byte little-endian feedback value.
// Returns false if data is too short.
func ParseFeedbackValue(data []byte, out *FeedbackValue) bool {
	if len(data) < FeedbackSize {
		return false
	}
	*out = FeedbackValue(data[0]) | FeedbackValue(data[1])<<8 | FeedbackValue(data[2])<<16
	return true
}

// String returns the value as samples per frame.
func (v FeedbackValue) String() string {
	return fmt.Sprintf("%.4f", v.SamplesPerFrame())
}

// FeedbackConfig tunes the feedback estimator.
type FeedbackConfig struct {
	// Quantum is the per-frame adjustment step.
	Quantum FeedbackValue

	// DeadBand is the transmit occupancy tolerance around the target, in
	// sample-groups, inside which the estimate holds.
	DeadBand int

	// Span bounds the estimate to nominal ± Span.
	Span FeedbackValue
}

// DefaultFeedbackConfig returns the default estimator tuning.
func DefaultFeedbackConfig() FeedbackConfig {
	return FeedbackConfig{
		Quantum:  DefaultFeedbackQuantum,
		DeadBand: DefaultFeedbackDeadBand,
		Span:     DefaultFeedbackSpan,
	}
}

// FeedbackEstimator tracks the transmit-FIFO occupancy once per frame and
// nudges the advertised rate by one quantum toward keeping the FIFO at its
// target level.
//
// Update is called from the frame-boundary context. Configure, Enable and
// Disable come from the reconfiguration sequencer. The published estimate is
// readable at any time without locking.
type FeedbackEstimator struct {
	cfg FeedbackConfig

	mutex    sync.Mutex
	estimate FeedbackValue
	nominal  FeedbackValue
	min      FeedbackValue
	max      FeedbackValue
	target   int

	enabled   atomic.Bool
	published atomic.Uint32
	updates   atomic.Uint64
}

// NewFeedbackEstimator creates a disabled estimator.
func NewFeedbackEstimator(cfg FeedbackConfig) *FeedbackEstimator {
	if cfg.Quantum == 0 {
		cfg.Quantum = DefaultFeedbackQuantum
	}
	if cfg.DeadBand < 0 {
		cfg.DeadBand = 0
	}
	return &FeedbackEstimator{cfg: cfg}
}

// Configure resets the estimate to nominal and sets the occupancy target in
// sample-groups. The bounds become nominal ± Span, saturated to the
// representable range.
func (e *FeedbackEstimator) Configure(nominal FeedbackValue, target int) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.nominal = nominal
	e.estimate = nominal
	e.target = target
	e.min = subSat(nominal, e.cfg.Span, 0)
	e.max = addSat(nominal, e.cfg.Span, FeedbackMax)
	e.published.Store(uint32(nominal))

	pkg.LogDebug(pkg.ComponentFeedback, "configured",
		"nominal", nominal, "target", target, "min", e.min, "max", e.max)
}

// Enable starts per-frame updates.
func (e *FeedbackEstimator) Enable() {
	if !e.enabled.Swap(true) {
		pkg.LogDebug(pkg.ComponentFeedback, "enabled")
	}
}

// Disable stops per-frame updates; the estimate is held.
func (e *FeedbackEstimator) Disable() {
	if e.enabled.Swap(false) {
		pkg.LogDebug(pkg.ComponentFeedback, "disabled")
	}
}

// Enabled reports whether updates are enabled.
func (e *FeedbackEstimator) Enabled() bool {
	return e.enabled.Load()
}

// Update applies one frame's occupancy observation and returns the estimate
// to publish. It returns false, and leaves the estimate unchanged, while the
// estimator is disabled.
func (e *FeedbackEstimator) Update(occupancy int) (FeedbackValue, bool) {
	if !e.enabled.Load() {
		return e.Estimate(), false
	}

	e.mutex.Lock()
	defer e.mutex.Unlock()

	switch {
	case occupancy < e.target-e.cfg.DeadBand:
		e.estimate = addSat(e.estimate, e.cfg.Quantum, e.max)
	case occupancy > e.target+e.cfg.DeadBand:
		e.estimate = subSat(e.estimate, e.cfg.Quantum, e.min)
	}
	e.published.Store(uint32(e.estimate))
	e.updates.Add(1)
	return e.estimate, true
}

// Estimate returns the most recently published estimate.
func (e *FeedbackEstimator) Estimate() FeedbackValue {
	return FeedbackValue(e.published.Load())
}

// Nominal returns the configured nominal value.
func (e *FeedbackEstimator) Nominal() FeedbackValue {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.nominal
}

// Bounds returns the configured minimum and maximum estimate.
func (e *FeedbackEstimator) Bounds() (min, max FeedbackValue) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.min, e.max
}

// Updates returns the number of enabled updates applied.
func (e *FeedbackEstimator) Updates() uint64 {
	return e.updates.Load()
}

func addSat(v, d, limit FeedbackValue) FeedbackValue {
	if v >= limit || d >= limit-v {
		return limit
	}
	return v + d
}

func subSat(v, d, limit FeedbackValue) FeedbackValue {
	if v <= limit || d >= v-limit {
		return limit
	}
	return v - d
}
