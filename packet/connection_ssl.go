package packet

import (
	"bytes"

	"github.com/vczyh/mysql-cdc/charset"
	"github.com/vczyh/mysql-cdc/flag"
)

// SSLRequest https://dev.mysql.com/doc/internals/en/connection-phase-packets.html#packet-Protocol::SSLRequest
type SSLRequest struct {
	Header

	ClientCapabilityFlags flag.Capability
	MaxPacketSize         uint32
	CharacterSet          *charset.Collation
}

func ParseSSLRequest(data []byte) (*SSLRequest, error) {
	var p SSLRequest
	var err error

	buf := bytes.NewBuffer(data)
	// Header
	if err = p.Parse(buf); err != nil {
		return nil, err
	}
	if buf.Len() < 4+4+1 {
		return nil, ErrPacketData
	}

	// Client Capability Flags
	p.ClientCapabilityFlags = flag.Capability(FixedLengthInteger.Uint32(buf.Next(4)))

	// Max Packet Size
	p.MaxPacketSize = FixedLengthInteger.Uint32(buf.Next(4))

	// Character Set
	if p.CharacterSet, err = charset.GetCollation(uint64(buf.Next(1)[0])); err != nil {
		return nil, err
	}

	return &p, nil
}

func (p *SSLRequest) Dump(flag.Capability) ([]byte, error) {
	var payload bytes.Buffer
	// Client Capability Flags
	payload.Write(FixedLengthInteger.Dump(uint64(p.ClientCapabilityFlags), 4))

	// Max Packet Size
	payload.Write(FixedLengthInteger.Dump(uint64(p.MaxPacketSize), 4))

	// Character Set
	payload.WriteByte(byte(p.CharacterSet.Id()))

	// Reserved
	payload.Write(make([]byte, 23))

	return p.wrap(payload.Bytes()), nil
}
