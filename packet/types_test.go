package packet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLengthEncodedInteger(t *testing.T) {
	cases := []struct {
		v    uint64
		dump []byte
	}{
		{0, []byte{0x00}},
		{250, []byte{0xfa}},
		{251, []byte{0xfc, 0xfb, 0x00}},
		{0xffff, []byte{0xfc, 0xff, 0xff}},
		{0x10000, []byte{0xfd, 0x00, 0x00, 0x01}},
		{0x1000000, []byte{0xfe, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00}},
	}
	for _, c := range cases {
		dump := LengthEncodedInteger.Dump(c.v)
		assert.Equal(t, c.dump, dump)

		v, err := LengthEncodedInteger.Get(bytes.NewBuffer(dump))
		require.NoError(t, err)
		assert.Equal(t, c.v, v)
	}
}

func TestLengthEncodedIntegerInvalidPrefix(t *testing.T) {
	_, err := LengthEncodedInteger.Get(bytes.NewBuffer([]byte{0xff}))
	assert.ErrorIs(t, err, ErrPacketData)

	_, err = LengthEncodedInteger.Get(bytes.NewBuffer([]byte{0xfd, 0x01}))
	assert.Error(t, err)
}

func TestNulTerminatedString(t *testing.T) {
	buf := bytes.NewBuffer(NulTerminatedString.Dump([]byte("mysql")))
	buf.WriteByte(0x07)

	s, err := NulTerminatedString.Get(buf)
	require.NoError(t, err)
	assert.Equal(t, "mysql", string(s))
	assert.Equal(t, []byte{0x07}, buf.Bytes())
}

func TestFixedLengthInteger(t *testing.T) {
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, FixedLengthInteger.Dump(0x030201, 3))
	assert.Equal(t, uint32(0x030201), FixedLengthInteger.Uint32([]byte{0x01, 0x02, 0x03}))
	assert.Empty(t, FixedLengthInteger.Dump(1, 9))
}
