package uac

// Sample widths in bytes per channel sample.
const (
	WireSampleSize = 3 // Transport: 24-bit little-endian
	BusSampleSize  = 4 // Bus: 32-bit word, 24-bit sample left-justified
)

// Channel limits.
const (
	DefaultChannels = 2 // Interleaved stereo
	MaxChannels     = 8
)

// FramesPerSecond is the transport frame rate (full-speed start-of-frame).
const FramesPerSecond = 1000

// Sample rates.
const (
	Rate48000 uint32 = 48000
	Rate44100 uint32 = 44100
	Rate32000 uint32 = 32000
	Rate22050 uint32 = 22050
	Rate16000 uint32 = 16000
)

// Defaults used by [DefaultConfig].
const (
	// DefaultFrameDelta is the capture frame adjustment in sample-groups.
	DefaultFrameDelta = 2

	// DefaultMasterClockRatio is the master clock to sample rate ratio
	// (48 kHz → 55.296 MHz, 44.1 kHz → 50.8032 MHz).
	DefaultMasterClockRatio = 1152

	// DefaultFeedbackQuantum is 1/8 sample per frame.
	DefaultFeedbackQuantum FeedbackValue = 0x000800

	// DefaultFeedbackDeadBand is the occupancy tolerance in sample-groups.
	DefaultFeedbackDeadBand = 1

	// DefaultFeedbackSpan bounds the estimate to nominal ± 1 sample per frame.
	DefaultFeedbackSpan FeedbackValue = 1 << FeedbackFracBits
)

// WireGroupSize returns the transport size of one sample-group in bytes.
func WireGroupSize(channels int) int {
	return channels * WireSampleSize
}

// BusGroupSize returns the bus-native size of one sample-group in bytes.
func BusGroupSize(channels int) int {
	return channels * BusSampleSize
}

// NominalFrameSize returns the number of sample-groups in one transport
// frame at rate.
func NominalFrameSize(rate uint32) int {
	return int(rate / FramesPerSecond)
}
