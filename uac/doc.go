// Package uac implements the streaming core of a USB Audio Class to audio
// serial bus bridge.
//
// A [Bridge] carries interleaved 24-bit PCM in two directions:
//
//   - Playback (OUT): host packets are reassembled into whole sample-groups
//     by a [Realigner], widened from 3-byte wire samples to 4-byte bus words
//     and queued on the bus transmit FIFO.
//   - Capture (IN): each frame a [FrameSizer] picks how many groups to send
//     from the receive FIFO occupancy, and the samples are narrowed back to
//     wire format.
//
// The host paces playback from an explicit feedback value produced once per
// frame by the [FeedbackEstimator]. Sample rate changes requested by the
// host run through the [Sequencer], which stops the bus, mutes the codec,
// waits for the clock-sensitive calibration subsystem, moves the master
// clock and brings everything back up in a fixed order.
//
// # Units
//
// A sample-group is one sample for every channel. Frame sizes, FIFO
// occupancies and feedback values are all expressed in sample-groups. At
// 48 kHz the nominal frame is 48 groups and the nominal feedback value is
// 0x0C0000 (48.0 in 10.14 fixed point).
//
// # Bus-Native Layout
//
// Each channel sample on the bus is a little-endian 32-bit word holding the
// 24-bit sample left-justified: byte 0 is zero padding, bytes 1 to 3 are the
// wire bytes in order. See [WireToBus] and [BusToWire].
//
// # Platform Services
//
// The bridge owns no hardware; it drives the interfaces in
// [github.com/ardnew/uacbridge/uac/hal]:
//
//	bus := sim.NewBus(sim.BusConfig{Channels: 2, Loopback: true})
//	host := sim.NewHost(sim.HostConfig{Channels: 2})
//
//	b, err := uac.New(uac.DefaultConfig(), uac.Collaborators{
//	    Bus:       bus,
//	    Transport: host,
//	    Clock:     sim.NewClock(nil),
//	})
//	if err != nil {
//	    return err
//	}
//	b.EnableOut()
//	b.RequestRate(uac.Rate48000)
//	return b.Run(ctx)
//
// # Concurrency
//
// [hal.StreamHandler] methods may be called from the transport's
// notification context concurrently with Run's tasks and with the control
// methods. Each stream path serializes its own packets; the sequencer
// quiesces both paths before it stops the bus.
package uac
