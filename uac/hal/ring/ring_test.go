package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferWriteRead(t *testing.T) {
	b := New(4, 3)
	require.Equal(t, 3, b.Cap())
	require.Equal(t, 4, b.GroupSize())

	n := b.Write([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9})
	assert.Equal(t, 2, n, "trailing partial group must be dropped")
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, 1, b.Free())

	out := make([]byte, 8)
	assert.Equal(t, 2, b.Read(out))
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, out)
	assert.Equal(t, 0, b.Len())
}

func TestBufferRefusesOverflow(t *testing.T) {
	b := New(2, 2)
	assert.Equal(t, 2, b.Write([]byte{1, 1, 2, 2, 3, 3}))
	assert.Equal(t, 0, b.Write([]byte{4, 4}))

	out := make([]byte, 6)
	assert.Equal(t, 2, b.Read(out))
	assert.Equal(t, []byte{1, 1, 2, 2, 0, 0}, out)
}

func TestBufferWrapAround(t *testing.T) {
	b := New(2, 3)
	out := make([]byte, 4)

	require.Equal(t, 2, b.Write([]byte{1, 1, 2, 2}))
	require.Equal(t, 1, b.Read(out[:2]))
	require.Equal(t, 2, b.Write([]byte{3, 3, 4, 4}))
	require.Equal(t, 3, b.Len())

	all := make([]byte, 6)
	assert.Equal(t, 3, b.Read(all))
	assert.Equal(t, []byte{2, 2, 3, 3, 4, 4}, all)
}

func TestBufferDiscardAndClear(t *testing.T) {
	b := New(1, 8)
	b.Write([]byte{1, 2, 3, 4, 5})

	assert.Equal(t, 2, b.Discard(2))
	out := make([]byte, 1)
	b.Read(out)
	assert.Equal(t, byte(3), out[0])

	assert.Equal(t, 2, b.Discard(10))
	assert.Equal(t, 0, b.Len())

	b.Write([]byte{9, 9})
	b.Clear()
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 8, b.Free())
}

func TestBufferZeroCapacity(t *testing.T) {
	b := New(6, 0)
	assert.Equal(t, 0, b.Write(make([]byte, 6)))
	assert.Equal(t, 0, b.Read(make([]byte, 6)))
}
