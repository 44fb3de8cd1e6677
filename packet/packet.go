package packet

import (
	"bytes"
	"errors"

	"github.com/vczyh/mysql-cdc/flag"
)

// MaxPayloadLen is the largest payload a single packet can carry. Longer
// payloads are split into several packets.
const MaxPayloadLen = 1<<24 - 1

var (
	ErrPacketData = errors.New("packet: data error")
)

// Packet is a client/server protocol packet. Dump returns the packet
// including its 4-byte header.
type Packet interface {
	SetSequence(int)
	Dump(flag.Capability) ([]byte, error)
}

type Header struct {
	Length uint32
	Seq    uint8
}

func (h *Header) Parse(buf *bytes.Buffer) error {
	if buf.Len() < 4 {
		return ErrPacketData
	}

	// Length
	h.Length = FixedLengthInteger.Uint32(buf.Next(3))

	// Sequence
	h.Seq = buf.Next(1)[0]
	return nil
}

func (h *Header) SetSequence(seq int) {
	h.Seq = uint8(seq)
}

func (h *Header) Dump(flag.Capability) ([]byte, error) {
	bs := FixedLengthInteger.Dump(uint64(h.Length), 3)
	bs = append(bs, h.Seq)
	return bs, nil
}

// wrap prefixes payload with the header.
func (h *Header) wrap(payload []byte) []byte {
	h.Length = uint32(len(payload))
	dump := make([]byte, 4+len(payload))
	copy(dump, FixedLengthInteger.Dump(uint64(h.Length), 3))
	dump[3] = h.Seq
	copy(dump[4:], payload)
	return dump
}

// Payload returns data without the packet header.
func Payload(data []byte) []byte {
	if len(data) < 4 {
		return nil
	}
	return data[4:]
}
