// Package ring implements a fixed-capacity FIFO of whole sample-groups.
//
// Bus implementations use it to model hardware FIFOs: writes beyond the
// capacity are refused rather than overwriting queued samples, and reads
// only ever return whole groups.
package ring

import "sync"

// Buffer is a fixed-capacity FIFO of sample-groups. It is safe for
// concurrent use.
type Buffer struct {
	buf       []byte
	groupSize int
	r         int // read position in bytes
	n         int // bytes stored
	mutex     sync.Mutex
}

// New creates a buffer holding up to capacity groups of groupSize bytes.
func New(groupSize, capacity int) *Buffer {
	if groupSize <= 0 {
		groupSize = 1
	}
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{
		buf:       make([]byte, groupSize*capacity),
		groupSize: groupSize,
	}
}

// GroupSize returns the size of one group in bytes.
func (b *Buffer) GroupSize() int {
	return b.groupSize
}

// Cap returns the capacity in groups.
func (b *Buffer) Cap() int {
	return len(b.buf) / b.groupSize
}

// Len returns the number of queued groups.
func (b *Buffer) Len() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.n / b.groupSize
}

// Free returns the number of groups that can be written without refusal.
func (b *Buffer) Free() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return (len(b.buf) - b.n) / b.groupSize
}

// Clear discards all queued groups.
func (b *Buffer) Clear() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.r = 0
	b.n = 0
}

// Write queues the whole groups in p and returns the number of groups
// accepted. Trailing partial groups and groups beyond the free space are
// dropped.
func (b *Buffer) Write(p []byte) int {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	groups := len(p) / b.groupSize
	if free := (len(b.buf) - b.n) / b.groupSize; groups > free {
		groups = free
	}
	size := groups * b.groupSize
	if size == 0 {
		return 0
	}

	w := (b.r + b.n) % len(b.buf)
	first := copy(b.buf[w:], p[:size])
	if first < size {
		copy(b.buf, p[first:size])
	}
	b.n += size
	return groups
}

// Read dequeues up to len(p)/GroupSize groups into p and returns the
// number of groups read.
func (b *Buffer) Read(p []byte) int {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	groups := len(p) / b.groupSize
	if avail := b.n / b.groupSize; groups > avail {
		groups = avail
	}
	size := groups * b.groupSize
	if size == 0 {
		return 0
	}

	first := copy(p[:size], b.buf[b.r:])
	if first < size {
		copy(p[first:size], b.buf)
	}
	b.r = (b.r + size) % len(b.buf)
	b.n -= size
	return groups
}

// Discard drops up to groups queued groups and returns the number dropped.
func (b *Buffer) Discard(groups int) int {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if avail := b.n / b.groupSize; groups > avail {
		groups = avail
	}
	if groups <= 0 {
		return 0
	}
	size := groups * b.groupSize
	b.r = (b.r + size) % len(b.buf)
	b.n -= size
	return groups
}
