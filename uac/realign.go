package uac

import "slices"

// Realigner reassembles whole sample-groups from playback packets whose
// lengths need not be multiples of the group size.
//
// Bytes are emitted strictly in arrival order, so the only state carried
// between packets is the number of bytes already received toward the next
// group (the remainder) and those bytes themselves. After a packet of L
// bytes the remainder becomes (remainder+L) mod W and (remainder+L)/W
// groups are emitted, where W is the wire group size.
//
// A Realigner is not safe for concurrent use; the playback path serializes
// access to it.
type Realigner struct {
	groupSize int
	pending   [MaxChannels * WireSampleSize]byte
	remainder int

	received uint64 // wire bytes consumed
	groups   uint64 // sample-groups emitted
}

// NewRealigner creates a realigner for wire groups of groupSize bytes.
// A groupSize that is not a whole number of wire samples for 1 to
// MaxChannels channels selects the default stereo group size.
func NewRealigner(groupSize int) *Realigner {
	if groupSize < WireSampleSize || groupSize > MaxChannels*WireSampleSize || groupSize%WireSampleSize != 0 {
		groupSize = WireGroupSize(DefaultChannels)
	}
	return &Realigner{groupSize: groupSize}
}

// GroupSize returns the wire group size in bytes.
func (r *Realigner) GroupSize() int {
	return r.groupSize
}

// Remainder returns the number of bytes held toward an incomplete group.
// It is always in [0, GroupSize()).
func (r *Realigner) Remainder() int {
	return r.remainder
}

// Received returns the number of wire bytes consumed since the last Reset.
func (r *Realigner) Received() uint64 {
	return r.received
}

// Groups returns the number of sample-groups emitted since the last Reset.
func (r *Realigner) Groups() uint64 {
	return r.groups
}

// Reset discards any partial group and clears the counters. Call at the
// start and end of every streaming session.
func (r *Realigner) Reset() {
	r.remainder = 0
	r.received = 0
	r.groups = 0
}

// Completes returns the number of whole groups a packet of n bytes would
// emit given the current remainder.
func (r *Realigner) Completes(n int) int {
	if n <= 0 {
		return 0
	}
	return (r.remainder + n) / r.groupSize
}

// AppendTo consumes packet and appends every completed group to dst in
// bus-native form, returning the extended slice. Bytes that do not complete
// a group are held for the next call. A zero-length packet is a no-op.
//
// AppendTo does not allocate when dst has capacity for the emitted groups.
func (r *Realigner) AppendTo(dst, packet []byte) []byte {
	if len(packet) == 0 {
		return dst
	}

	w := r.groupSize
	groups := (r.remainder + len(packet)) / w
	r.received += uint64(len(packet))

	need := BusSize(groups * w)
	dst = slices.Grow(dst, need)
	out := dst[len(dst) : len(dst)+need]
	o := 0

	// Complete the pending group
	if r.remainder > 0 {
		fill := w - r.remainder
		if len(packet) < fill {
			r.remainder += copy(r.pending[r.remainder:w], packet)
			return dst
		}
		copy(r.pending[r.remainder:w], packet[:fill])
		o += WireToBus(out[o:], r.pending[:w])
		packet = packet[fill:]
	}

	// Whole groups convert straight from the packet
	whole := len(packet) / w * w
	o += WireToBus(out[o:], packet[:whole])

	// Hold the tail
	r.remainder = copy(r.pending[:], packet[whole:])
	r.groups += uint64(groups)

	return dst[:len(dst)+o]
}
