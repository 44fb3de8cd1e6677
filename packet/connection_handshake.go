package packet

import (
	"bytes"

	"github.com/vczyh/mysql-cdc/auth"
	"github.com/vczyh/mysql-cdc/charset"
	"github.com/vczyh/mysql-cdc/flag"
)

// Handshake https://dev.mysql.com/doc/internals/en/connection-phase-packets.html#packet-Protocol::Handshake
type Handshake struct {
	Header

	ProtocolVersion         uint8
	ServerVersion           string
	ConnectionId            uint32
	Salt1                   []byte
	CapabilityFlags         flag.Capability
	CharacterSet            *charset.Collation
	StatusFlags             flag.Status
	ExtendedCapabilityFlags flag.Capability
	AuthPluginDataLen       uint8
	Salt2                   []byte
	AuthPlugin              auth.Method
}

// NewHandshake builds a protocol 10 handshake. salt must be 20 bytes.
func NewHandshake(serverVersion string, connId uint32, salt []byte, capabilities flag.Capability,
	collation *charset.Collation, method auth.Method) *Handshake {
	p := &Handshake{
		ProtocolVersion: 0x0a,
		ServerVersion:   serverVersion,
		ConnectionId:    connId,
		Salt1:           salt[:8],
		CharacterSet:    collation,
		StatusFlags:     flag.ServerStatusAutocommit,
		Salt2:           append(append([]byte{}, salt[8:]...), 0x00),
		AuthPlugin:      method,
	}
	p.SetCapabilities(capabilities)
	return p
}

func ParseHandshake(bs []byte) (*Handshake, error) {
	var p Handshake
	var err error

	buf := bytes.NewBuffer(bs)
	// Header
	if err := p.Parse(buf); err != nil {
		return nil, err
	}

	// Protocol Version
	if buf.Len() == 0 {
		return nil, ErrPacketData
	}
	p.ProtocolVersion = buf.Next(1)[0]

	// Server Version
	b, err := NulTerminatedString.Get(buf)
	if err != nil {
		return nil, err
	}
	p.ServerVersion = string(b)

	// Connection ID
	if buf.Len() < 4+8+1+2 {
		return nil, ErrPacketData
	}
	p.ConnectionId = FixedLengthInteger.Uint32(buf.Next(4))

	// Auth Plugin Data Part1
	p.Salt1 = append([]byte{}, buf.Next(8)...)

	// Filler
	buf.Next(1)

	// Capability Flags
	p.CapabilityFlags = flag.Capability(FixedLengthInteger.Uint16(buf.Next(2)))

	if buf.Len() == 0 {
		return &p, nil
	}

	// Character Set
	if p.CharacterSet, err = charset.GetCollation(uint64(buf.Next(1)[0])); err != nil {
		return nil, err
	}

	// Status Flags
	p.StatusFlags = flag.Status(FixedLengthInteger.Uint16(buf.Next(2)))

	// Extended Capability Flags
	p.ExtendedCapabilityFlags = flag.Capability(FixedLengthInteger.Uint16(buf.Next(2))) << 16

	capabilities := p.GetCapabilities()

	// Length of auth-plugin-data
	if buf.Len() == 0 {
		return nil, ErrPacketData
	}
	if capabilities&flag.ClientPluginAuth != 0 {
		p.AuthPluginDataLen = buf.Next(1)[0]
	} else {
		buf.Next(1)
	}

	// Reserved
	buf.Next(10)

	// Auth Plugin Data Part2
	if capabilities&flag.ClientSecureConnection != 0 {
		l := 13
		if int(p.AuthPluginDataLen)-8 > 13 {
			l = int(p.AuthPluginDataLen) - 8
		}
		p.Salt2 = append([]byte{}, buf.Next(l)...)
	}

	// Auth Plugin Name
	if capabilities&flag.ClientPluginAuth != 0 {
		pluginName, err := NulTerminatedString.Get(buf)
		if err != nil {
			return nil, err
		}
		if p.AuthPlugin, err = auth.ParseAuthenticationPlugin(string(pluginName)); err != nil {
			return nil, err
		}
	}

	return &p, nil
}

func (p *Handshake) GetCapabilities() flag.Capability {
	return p.CapabilityFlags | p.ExtendedCapabilityFlags
}

// GetAuthData returns the 20 byte scramble without its trailing nul.
func (p *Handshake) GetAuthData() []byte {
	salt2 := p.Salt2
	if n := len(salt2); n > 0 && salt2[n-1] == 0x00 {
		salt2 = salt2[:n-1]
	}
	salt := make([]byte, 0, len(p.Salt1)+len(salt2))
	salt = append(salt, p.Salt1...)
	return append(salt, salt2...)
}

func (p *Handshake) SetCapabilities(capabilities flag.Capability) {
	p.CapabilityFlags = capabilities & 0x0000ffff
	p.ExtendedCapabilityFlags = capabilities & 0xffff0000
}

func (p *Handshake) Dump(flag.Capability) ([]byte, error) {
	capabilities := p.GetCapabilities()

	var payload bytes.Buffer
	// Protocol Version
	payload.WriteByte(p.ProtocolVersion)

	// Server Version
	payload.Write(NulTerminatedString.Dump([]byte(p.ServerVersion)))

	// Connection ID
	payload.Write(FixedLengthInteger.Dump(uint64(p.ConnectionId), 4))

	// Auth Plugin Data Part1
	payload.Write(p.Salt1)

	// Filler
	payload.WriteByte(0x00)

	// Capability Flags
	payload.Write(FixedLengthInteger.Dump(uint64(p.CapabilityFlags), 2))

	// Character Set
	payload.WriteByte(byte(p.CharacterSet.Id()))

	// Status Flags
	payload.Write(FixedLengthInteger.Dump(uint64(p.StatusFlags), 2))

	// Extended Capability Flags
	payload.Write(FixedLengthInteger.Dump(uint64(p.ExtendedCapabilityFlags>>16), 2))

	// Length of auth-plugin-data
	if capabilities&flag.ClientPluginAuth != 0 {
		p.AuthPluginDataLen = uint8(len(p.Salt2) + 8)
	} else {
		p.AuthPluginDataLen = 0x00
	}
	payload.WriteByte(p.AuthPluginDataLen)

	// Reserved
	payload.Write(make([]byte, 10))

	// Auth Plugin Data Part2
	if capabilities&flag.ClientSecureConnection != 0 {
		payload.Write(p.Salt2)
	}

	// Auth Plugin Name
	if capabilities&flag.ClientPluginAuth != 0 {
		payload.Write(NulTerminatedString.Dump([]byte(p.AuthPlugin.String())))
	}

	return p.wrap(payload.Bytes()), nil
}

// HandshakeResponse https://dev.mysql.com/doc/internals/en/connection-phase-packets.html#packet-Protocol::HandshakeResponse
type HandshakeResponse struct {
	Header

	ClientCapabilityFlags flag.Capability
	MaxPacketSize         uint32
	CharacterSet          *charset.Collation
	Username              []byte
	AuthRes               []byte
	Database              []byte
	AuthPlugin            auth.Method

	AttributeLen uint64
	Attributes   []Attribute
}

type Attribute struct {
	Key string
	Val string
}

func ParseHandshakeResponse(bs []byte) (*HandshakeResponse, error) {
	var p HandshakeResponse
	var err error

	buf := bytes.NewBuffer(bs)
	// Header
	if err = p.Parse(buf); err != nil {
		return nil, err
	}

	if buf.Len() < 4+4+1+23 {
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

	// Reserved
	buf.Next(23)

	// Username
	if p.Username, err = NulTerminatedString.Get(buf); err != nil {
		return nil, err
	}

	// Auth Response
	if p.ClientCapabilityFlags&flag.ClientPluginAuthLenencClientData != 0 {
		if p.AuthRes, err = LengthEncodedString.Get(buf); err != nil {
			return nil, err
		}
	} else if p.ClientCapabilityFlags&flag.ClientSecureConnection != 0 {
		if buf.Len() == 0 {
			return nil, ErrPacketData
		}
		l := buf.Next(1)[0]
		p.AuthRes = append([]byte{}, buf.Next(int(l))...)
	} else {
		if p.AuthRes, err = NulTerminatedString.Get(buf); err != nil {
			return nil, err
		}
	}

	// Database
	if p.ClientCapabilityFlags&flag.ClientConnectWithDB != 0 {
		if p.Database, err = NulTerminatedString.Get(buf); err != nil {
			return nil, err
		}
	}

	// Auth Plugin Name
	if p.ClientCapabilityFlags&flag.ClientPluginAuth != 0 {
		pluginName, err := NulTerminatedString.Get(buf)
		if err != nil {
			return nil, err
		}
		if p.AuthPlugin, err = auth.ParseAuthenticationPlugin(string(pluginName)); err != nil {
			return nil, err
		}
	}

	// Attributes
	if p.ClientCapabilityFlags&flag.ClientConnectAttrs != 0 && buf.Len() > 0 {
		if p.AttributeLen, err = LengthEncodedInteger.Get(buf); err != nil {
			return nil, err
		}
		before := buf.Len()
		for before-buf.Len() < int(p.AttributeLen) {
			key, err := LengthEncodedString.Get(buf)
			if err != nil {
				return nil, err
			}
			val, err := LengthEncodedString.Get(buf)
			if err != nil {
				return nil, err
			}
			p.Attributes = append(p.Attributes, Attribute{string(key), string(val)})
		}
	}

	return &p, nil
}

func (p *HandshakeResponse) Dump(flag.Capability) ([]byte, error) {
	authResLenEncoded := LengthEncodedInteger.Dump(uint64(len(p.AuthRes)))
	if len(authResLenEncoded) > 1 {
		p.ClientCapabilityFlags |= flag.ClientPluginAuthLenencClientData
	}

	var payload bytes.Buffer
	// Client Capability Flags
	payload.Write(FixedLengthInteger.Dump(uint64(p.ClientCapabilityFlags), 4))

	// Max Packet Size
	payload.Write(FixedLengthInteger.Dump(uint64(p.MaxPacketSize), 4))

	// Character Set
	payload.WriteByte(byte(p.CharacterSet.Id()))

	// Reserved
	payload.Write(make([]byte, 23))

	// Username
	payload.Write(NulTerminatedString.Dump(p.Username))

	// Auth Response
	if p.ClientCapabilityFlags&flag.ClientPluginAuthLenencClientData != 0 {
		payload.Write(authResLenEncoded)
	} else {
		payload.WriteByte(byte(len(p.AuthRes)))
	}
	payload.Write(p.AuthRes)

	// Database
	if p.ClientCapabilityFlags&flag.ClientConnectWithDB != 0 {
		payload.Write(NulTerminatedString.Dump(p.Database))
	}

	// Auth Plugin Name
	if p.ClientCapabilityFlags&flag.ClientPluginAuth != 0 {
		payload.Write(NulTerminatedString.Dump([]byte(p.AuthPlugin.String())))
	}

	// Attributes
	if p.ClientCapabilityFlags&flag.ClientConnectAttrs != 0 {
		payload.Write(LengthEncodedInteger.Dump(p.AttributeLen))
		for _, attribute := range p.Attributes {
			payload.Write(LengthEncodedString.Dump([]byte(attribute.Key)))
			payload.Write(LengthEncodedString.Dump([]byte(attribute.Val)))
		}
	}

	return p.wrap(payload.Bytes()), nil
}

func (p *HandshakeResponse) AddAttribute(key string, val string) {
	p.Attributes = append(p.Attributes, Attribute{key, val})
	p.AttributeLen += uint64(len(LengthEncodedString.Dump([]byte(key))))
	p.AttributeLen += uint64(len(LengthEncodedString.Dump([]byte(val))))
}

func (p *HandshakeResponse) GetUsername() string {
	return string(p.Username)
}
