package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferReadWriteRoundTrip(t *testing.T) {
	w := &writer{}
	w.writeUint8(0xAB)
	w.writeUint16(0x1234)
	w.writeUint32(0xDEADBEEF)
	w.writeBytes([]byte{1, 2, 3})

	b := newBuffer(w.buf)
	v8, err := b.readUint8()
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), v8)

	v16, err := b.readUint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), v16)

	v32, err := b.readUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), v32)

	bytes, err := b.readBytes(3)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, bytes)
}

func TestBufferReadPastEndFails(t *testing.T) {
	b := newBuffer([]byte{0x01})
	_, err := b.readUint16()
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestWriteNameRoot(t *testing.T) {
	w := &writer{}
	require.NoError(t, w.writeName(""))
	assert.Equal(t, []byte{0}, w.buf)

	w2 := &writer{}
	require.NoError(t, w2.writeName("."))
	assert.Equal(t, []byte{0}, w2.buf)
}

func TestWriteNameRejectsEmptyLabel(t *testing.T) {
	w := &writer{}
	err := w.writeName("foo..bar")
	assert.ErrorIs(t, err, ErrMalformed)
}
