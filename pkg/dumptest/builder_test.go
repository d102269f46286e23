package dumptest

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderBytes_ByteOrder(t *testing.T) {
	le := HeaderBytes(binary.LittleEndian, 3, 1, "etc")
	require.Len(t, le, HeaderLen)
	assert.Equal(t, []byte{3, 0, 0, 0, 1, 0, 0, 0, 0xff, 0xff, 'e', 't', 'c', 0}, le[:14])

	be := HeaderBytes(binary.BigEndian, 3, 1, "etc")
	require.Len(t, be, HeaderLen)
	assert.Equal(t, []byte{0, 0, 0, 3, 0, 0, 0, 1, 0xff, 0xff, 'e', 't', 'c', 0}, be[:14])
}

func TestBuilder_Layout(t *testing.T) {
	b := New().WithOrder(binary.BigEndian).Pad()
	at := b.Offset()
	b.File(1, "foo.txt", Content(10))

	data := b.Bytes()
	assert.Equal(t, int64(WindowLen), at)
	assert.Len(t, data, WindowLen+HeaderLen+WindowLen+10+WindowLen)
	assert.Equal(t, uint32(1), binary.BigEndian.Uint32(data[at:]))

	c := b.Cursor()
	assert.Equal(t, int64(len(data)), c.Size())
}
