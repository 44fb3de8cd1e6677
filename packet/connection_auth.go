package packet

import (
	"bytes"

	"github.com/vczyh/mysql-cdc/auth"
	"github.com/vczyh/mysql-cdc/flag"
)

// AuthSwitchRequest https://dev.mysql.com/doc/internals/en/connection-phase-packets.html#packet-Protocol::AuthSwitchRequest
type AuthSwitchRequest struct {
	Header

	PayloadHeader uint8 // 0xfe
	AuthPlugin    auth.Method
	AuthData      []byte
}

func NewAuthSwitchRequest(method auth.Method, authData []byte) *AuthSwitchRequest {
	return &AuthSwitchRequest{
		PayloadHeader: AuthSwitchRequestPacketHeader,
		AuthPlugin:    method,
		AuthData:      authData,
	}
}

func ParseAuthSwitchRequest(data []byte) (*AuthSwitchRequest, error) {
	p := new(AuthSwitchRequest)

	buf := bytes.NewBuffer(data)
	if err := p.Parse(buf); err != nil {
		return nil, err
	}
	if buf.Len() == 0 {
		return nil, ErrPacketData
	}
	p.PayloadHeader = buf.Next(1)[0]

	pluginName, err := NulTerminatedString.Get(buf)
	if err != nil {
		return nil, err
	}
	if p.AuthPlugin, err = auth.ParseAuthenticationPlugin(string(pluginName)); err != nil {
		return nil, err
	}

	p.AuthData = buf.Bytes()

	return p, nil
}

// GetAuthData returns the scramble without its trailing nul.
func (p *AuthSwitchRequest) GetAuthData() []byte {
	if n := len(p.AuthData); n > 0 && p.AuthData[n-1] == 0x00 {
		return p.AuthData[:n-1]
	}
	return p.AuthData
}

func (p *AuthSwitchRequest) Dump(flag.Capability) ([]byte, error) {
	var payload bytes.Buffer

	payload.WriteByte(p.PayloadHeader)
	payload.Write(NulTerminatedString.Dump([]byte(p.AuthPlugin.String())))
	payload.Write(p.AuthData)

	return p.wrap(payload.Bytes()), nil
}

// https://dev.mysql.com/doc/internals/en/connection-phase-packets.html#packet-Protocol::AuthSwitchResponse

func NewAuthSwitchResponse(authRes []byte) *Simple {
	return NewSimple(authRes)
}

// https://dev.mysql.com/doc/internals/en/connection-phase-packets.html#packet-Protocol::AuthMoreData

func ParseAuthMoreData(data []byte) ([]byte, error) {
	if len(data) < 5 {
		return nil, ErrPacketData
	}
	return data[5:], nil
}

func NewAuthMoreData(pluginData []byte) *Simple {
	return NewSimple(append([]byte{AuthMoreDataPacketHeader}, pluginData...))
}
