package packet

import (
	"encoding/binary"
	"fmt"
	"io"
)

var FixedLengthInteger fixedLengthInteger

// https://dev.mysql.com/doc/internals/en/integer.html#fixed-length-integer
type fixedLengthInteger struct{}

// Get returns the little endian value of bs. bs may be 1 to 8 bytes long.
func (fixedLengthInteger) Get(bs []byte) uint64 {
	return binary.LittleEndian.Uint64(byteAlignment(bs, 8))
}

func (fixedLengthInteger) Uint16(bs []byte) uint16 {
	return uint16(FixedLengthInteger.Get(bs))
}

func (fixedLengthInteger) Uint32(bs []byte) uint32 {
	return uint32(FixedLengthInteger.Get(bs))
}

func (fixedLengthInteger) Uint64(bs []byte) uint64 {
	return FixedLengthInteger.Get(bs)
}

// Dump returns the lowest len bytes of v in little endian order.
func (fixedLengthInteger) Dump(v uint64, len int) []byte {
	if len <= 0 || len > 8 {
		return []byte{}
	}
	bs := make([]byte, len)
	for i := 0; i < len; i++ {
		bs[i] = byte(v >> (8 * i))
	}
	return bs
}

var LengthEncodedInteger lengthEncodedInteger

// https://dev.mysql.com/doc/internals/en/integer.html#length-encoded-integer
type lengthEncodedInteger struct{}

func (lengthEncodedInteger) Get(r io.Reader) (uint64, error) {
	bs := make([]byte, 1)
	if _, err := io.ReadFull(r, bs); err != nil {
		return 0, err
	}

	var size int
	switch val := bs[0]; {
	case val < 0xfb:
		return uint64(val), nil
	case val == 0xfc:
		size = 2
	case val == 0xfd:
		size = 3
	case val == 0xfe:
		size = 8
	default:
		return 0, fmt.Errorf("%w: invalid length encoded integer prefix 0x%02x", ErrPacketData, val)
	}

	bs = make([]byte, size)
	if _, err := io.ReadFull(r, bs); err != nil {
		return 0, err
	}
	return FixedLengthInteger.Get(bs), nil
}

func (lengthEncodedInteger) Dump(v uint64) []byte {
	switch {
	case v < 0xfb:
		return []byte{byte(v)}
	case v <= 0xffff:
		return append([]byte{0xfc}, FixedLengthInteger.Dump(v, 2)...)
	case v <= 0xffffff:
		return append([]byte{0xfd}, FixedLengthInteger.Dump(v, 3)...)
	default:
		return append([]byte{0xfe}, FixedLengthInteger.Dump(v, 8)...)
	}
}

var NulTerminatedString nulTerminatedString

// https://dev.mysql.com/doc/internals/en/string.html#packet-Protocol::NulTerminatedString
type nulTerminatedString struct{}

func (nulTerminatedString) Get(r io.Reader) ([]byte, error) {
	var data []byte
	var bs = make([]byte, 1)
	for {
		if _, err := io.ReadFull(r, bs); err != nil {
			return nil, err
		}
		if bs[0] == 0x00 {
			break
		}
		data = append(data, bs[0])
	}
	return data, nil
}

func (nulTerminatedString) Dump(bs []byte) []byte {
	dump := make([]byte, len(bs)+1)
	copy(dump, bs)
	return dump
}

var LengthEncodedString lengthEncodedString

// https://dev.mysql.com/doc/internals/en/string.html#packet-Protocol::LengthEncodedString
type lengthEncodedString struct{}

func (lengthEncodedString) Get(r io.Reader) ([]byte, error) {
	l, err := LengthEncodedInteger.Get(r)
	if err != nil {
		return nil, err
	}
	bs := make([]byte, l)
	if _, err := io.ReadFull(r, bs); err != nil {
		return nil, err
	}
	return bs, nil
}

func (lengthEncodedString) Dump(bs []byte) []byte {
	dump := LengthEncodedInteger.Dump(uint64(len(bs)))
	return append(dump, bs...)
}

func byteAlignment(bs []byte, destLen int) []byte {
	dest := make([]byte, destLen)
	copy(dest, bs)
	return dest
}
