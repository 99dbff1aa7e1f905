package hal

// Direction identifies one of the two stream directions.
type Direction uint8

// Stream directions, named from the host's point of view.
const (
	DirectionOut Direction = iota // Playback: host to device to bus transmit
	DirectionIn                   // Capture: bus receive to device to host
)

// String returns a human-readable direction name.
func (d Direction) String() string {
	switch d {
	case DirectionOut:
		return "out"
	case DirectionIn:
		return "in"
	default:
		return "unknown"
	}
}

// Bus is the synchronous audio serial bus.
//
// Occupancy and block sizes are expressed in sample-groups. Blocks passed
// to WriteBlock and ReadBlock are bus-native and always contain whole
// sample-groups.
type Bus interface {
	// StartTx starts clocking samples out of the transmit FIFO.
	StartTx() error

	// StopTx stops the transmitter. FIFO contents are retained.
	StopTx() error

	// StartRx starts clocking samples into the receive FIFO.
	StartRx() error

	// StopRx stops the receiver. FIFO contents are retained.
	StopRx() error

	// TxRunning reports whether the transmitter is running.
	TxRunning() bool

	// ClearFIFO discards all samples queued in the FIFO for dir.
	ClearFIFO(dir Direction) error

	// Occupancy returns the number of sample-groups queued in the FIFO for
	// dir. It is a snapshot and never blocks.
	Occupancy(dir Direction) int

	// WriteBlock queues bus-native sample-groups for transmission and
	// returns the number of groups accepted.
	WriteBlock(block []byte) (int, error)

	// ReadBlock dequeues up to len(block) bytes of received sample-groups
	// and returns the number of groups read.
	ReadBlock(block []byte) (int, error)
}

// StreamHandler receives transport notifications. It is implemented by the
// streaming core and registered with a [Transport].
type StreamHandler interface {
	// OnPacketReceived is called when an OUT (playback) packet arrives.
	// The packet is only valid for the duration of the call.
	OnPacketReceived(packet []byte)

	// OnPacketRequest is called when the IN (capture) endpoint is ready
	// for its next packet. The handler fills buf and returns the number of
	// bytes to send; zero sends nothing.
	OnPacketRequest(buf []byte) int

	// OnFrameBoundary is called once per transport frame (start of frame).
	OnFrameBoundary(frame uint16)
}

// Transport is the packetized, host-paced audio transport.
type Transport interface {
	// Register installs the handler that receives packet and frame
	// notifications. Passing nil unregisters.
	Register(h StreamHandler)

	// Arm enables the endpoint for dir so that packet notifications start
	// flowing to the handler. Arming an armed endpoint is a no-op.
	Arm(dir Direction) error

	// WriteFeedback queues the 3-byte feedback value for the next feedback
	// endpoint poll.
	WriteFeedback(data []byte) error
}

// Clock programs the master clock that drives the bus.
type Clock interface {
	// SetFrequency reprograms the master clock to hz.
	SetFrequency(hz uint32) error
}

// Calibrator is a clock-sensitive subsystem (for example capacitive touch
// sensing) whose measurements must not straddle a clock change.
type Calibrator interface {
	// IsIdle reports whether no measurement is in progress.
	IsIdle() bool

	// RecalibrateBaseline rebuilds the measurement baseline after the
	// reference clock moved.
	RecalibrateBaseline()
}

// Codec is the downstream analog path.
type Codec interface {
	// Activate powers up the analog path.
	Activate() error

	// Deactivate mutes and powers down the analog path.
	Deactivate() error
}
