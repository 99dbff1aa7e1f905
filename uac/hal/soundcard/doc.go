// Package soundcard implements the bus and master clock collaborators on a
// host sound card through miniaudio (github.com/gen2brain/malgo).
//
// The sound card stands in for the audio serial bus: the transmit FIFO
// feeds the playback device and the capture device fills the receive FIFO.
// Both devices run in 32-bit signed format, which is the bus-native layout
// (24-bit samples left-justified in little-endian words), so no conversion
// happens in the audio callbacks.
//
// Programming the master clock reopens the devices at the sample rate the
// frequency implies (frequency divided by the master clock ratio).
//
// # Usage
//
//	card, err := soundcard.New(soundcard.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer card.Close()
//
//	b, err := uac.New(uac.DefaultConfig(), uac.Collaborators{
//	    Bus:       card,
//	    Clock:     card,
//	    Transport: transport,
//	})
package soundcard
