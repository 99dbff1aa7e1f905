// Package sim implements deterministic, in-memory collaborators for the
// uac streaming core.
//
// It is intended for tests and demos. Nothing here touches hardware or
// wall-clock time unless asked to: the bus advances only when [Bus.Clock]
// is called and the host only when [Host.Step] is called. [Bus.Run] and
// [Host.Run] drive the same steps from a ticker for interactive use.
//
// # Components
//
//   - [Bus]: transmit and receive FIFOs with an optional loopback from the
//     transmit side into the receive side
//   - [Host]: the USB host side of the audio transport; it paces OUT packets
//     from the feedback it receives, optionally jitters packet lengths so
//     they straddle sample-group boundaries, and polls the IN endpoint once
//     per frame
//   - [Clock], [Calibrator] and [Codec]: record their calls and let tests
//     inject busy periods and failures
//   - [Journal]: a shared, ordered record of collaborator calls
//
// # Usage
//
//	j := &sim.Journal{}
//	bus := sim.NewBus(sim.BusConfig{Channels: 2, Loopback: true, Journal: j})
//	host := sim.NewHost(sim.HostConfig{Channels: 2, Rate: 48000, Jitter: 1})
//	clock := sim.NewClock(j)
//
//	b, _ := uac.New(uac.DefaultConfig(), uac.Collaborators{
//	    Bus: bus, Transport: host, Clock: clock,
//	})
//	go b.Run(ctx)
//	b.EnableOut()
//	b.RequestRate(48000)
//
//	for i := 0; i < 1000; i++ {
//	    host.Step()
//	    bus.Clock(48)
//	}
package sim
