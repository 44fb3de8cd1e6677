package packet

import (
	"bytes"
	"fmt"

	"github.com/vczyh/mysql-cdc/code"
	"github.com/vczyh/mysql-cdc/flag"
)

// ERR https://dev.mysql.com/doc/internals/en/packet-ERR_Packet.html
type ERR struct {
	Header

	ERRHeader      uint8
	ErrorCode      code.Err
	SqlStateMarker byte
	SqlState       string
	ErrorMessage   string
}

func NewERR(c code.Err, sqlState, message string) *ERR {
	return &ERR{
		ERRHeader:      ErrPacketHeader,
		ErrorCode:      c,
		SqlStateMarker: '#',
		SqlState:       sqlState,
		ErrorMessage:   message,
	}
}

func ParseERR(bs []byte, capabilities flag.Capability) (*ERR, error) {
	var p ERR

	buf := bytes.NewBuffer(bs)
	// Header
	if err := p.Parse(buf); err != nil {
		return nil, err
	}

	// ERR Header
	if buf.Len() < 3 {
		return nil, ErrPacketData
	}
	p.ERRHeader = buf.Next(1)[0]

	// Error Code
	p.ErrorCode = code.Err(FixedLengthInteger.Uint16(buf.Next(2)))

	// SQL State. The marker is absent in errors sent before the handshake
	// completes.
	if capabilities&flag.ClientProtocol41 != 0 && buf.Len() >= 6 && buf.Bytes()[0] == '#' {
		p.SqlStateMarker = buf.Next(1)[0]
		p.SqlState = string(buf.Next(5))
	}

	// Error Message
	p.ErrorMessage = buf.String()

	return &p, nil
}

func (e *ERR) Dump(capabilities flag.Capability) ([]byte, error) {
	var payload bytes.Buffer
	// ERR Header
	payload.WriteByte(e.ERRHeader)

	// Error Code
	payload.Write(FixedLengthInteger.Dump(uint64(e.ErrorCode), 2))

	if capabilities&flag.ClientProtocol41 != 0 {
		payload.WriteByte(e.SqlStateMarker)
		payload.WriteString(e.SqlState)
	}

	payload.WriteString(e.ErrorMessage)

	return e.wrap(payload.Bytes()), nil
}

func (e *ERR) Error() string {
	return fmt.Sprintf("ERROR %d (%s): %s", e.ErrorCode, e.SqlState, e.ErrorMessage)
}
