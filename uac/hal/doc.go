// Package hal defines the collaborator interfaces used by the uac streaming
// core.
//
// The core owns no hardware. Everything clock-, bus- or transport-specific
// is reached through the small interfaces declared here, which platform
// vendors implement for their audio serial bus, USB controller, PLL,
// touch-sense calibration block and analog codec.
//
// # Interface Overview
//
//   - [Bus]: the synchronous audio serial bus (I2S or similar) with a
//     transmit and a receive FIFO counted in sample-groups
//   - [Transport]: the packetized USB audio endpoints; it delivers
//     notifications to a registered [StreamHandler]
//   - [Clock]: the master clock / PLL feeding the bus
//   - [Calibrator]: a clock-sensitive subsystem that must be idle before
//     the clock moves and must rebuild its baseline afterwards
//   - [Codec]: the downstream analog path, muted across clock changes
//
// # Notification Context
//
// [StreamHandler] methods are invoked from the transport's completion and
// frame-boundary context. Implementations of the handler never block, and
// transports must not invoke the same handler method concurrently with
// itself.
//
// # Sample Layout
//
// Bus blocks are bus-native: 4 bytes per channel sample, little-endian,
// the 24-bit sample left-justified with byte 0 as padding. Channels are
// interleaved. A sample-group is one sample for every channel.
//
// Deterministic implementations for tests and demos are available in
// [github.com/ardnew/uacbridge/uac/hal/sim]; a sound-card backed bus is in
// [github.com/ardnew/uacbridge/uac/hal/soundcard].
package hal
