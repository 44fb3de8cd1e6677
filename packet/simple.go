package packet

import (
	"github.com/vczyh/mysql-cdc/flag"
)

// Simple is a packet whose payload is already encoded.
type Simple struct {
	Header
	Payload []byte
}

func NewSimple(payload []byte) *Simple {
	return &Simple{
		Payload: payload,
	}
}

func (p *Simple) Dump(flag.Capability) ([]byte, error) {
	return p.wrap(p.Payload), nil
}
