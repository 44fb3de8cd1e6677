package mysql

import (
	"crypto/tls"
	"io"
	"net"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/vczyh/mysql-cdc/code"
	"github.com/vczyh/mysql-cdc/flag"
	"github.com/vczyh/mysql-cdc/packet"
)

// Conn frames MySQL packets over a net.Conn and tracks the sequence id.
type Conn interface {
	SetCapabilities(capabilities flag.Capability)

	ClientTLS(config *tls.Config) error
	ServerTLS(config *tls.Config) error
	TLSed() bool

	ConnectionId() uint32
	Capabilities() flag.Capability

	RemoteAddr() net.Addr
	SetReadDeadline(t time.Time) error

	// ReadPacket returns the next packet including its 4-byte header.
	// Payloads split over several packets are joined.
	ReadPacket() ([]byte, error)

	WritePacket(packet.Packet) error
	WriteCommandPacket(packet.Packet) error

	WriteEmptyOK() error
	WriteError(error) error

	Close() error
	Closed() bool
}

type mysqlConn struct {
	conn    net.Conn
	tlsConn *tls.Conn

	sequence int
	closed   atomic.Bool

	connId       uint32 // only for server
	capabilities flag.Capability
}

func NewClientConnection(conn net.Conn, capabilities flag.Capability) Conn {
	return &mysqlConn{
		conn:         conn,
		sequence:     -1,
		capabilities: capabilities,
	}
}

func NewServerConnection(conn net.Conn, connId uint32, capabilities flag.Capability) Conn {
	return &mysqlConn{
		conn:         conn,
		sequence:     -1,
		connId:       connId,
		capabilities: capabilities,
	}
}

func (c *mysqlConn) SetCapabilities(capabilities flag.Capability) {
	c.capabilities = capabilities
}

func (c *mysqlConn) ClientTLS(config *tls.Config) error {
	tlsConn := tls.Client(c.conn, config)
	if err := tlsConn.Handshake(); err != nil {
		return errors.Wrap(err, "tls handshake")
	}
	c.tlsConn = tlsConn
	return nil
}

func (c *mysqlConn) ServerTLS(config *tls.Config) error {
	tlsConn := tls.Server(c.conn, config)
	if err := tlsConn.Handshake(); err != nil {
		return errors.Wrap(err, "tls handshake")
	}
	c.tlsConn = tlsConn
	return nil
}

func (c *mysqlConn) TLSed() bool {
	return c.tlsConn != nil
}

func (c *mysqlConn) Capabilities() flag.Capability {
	return c.capabilities
}

func (c *mysqlConn) ConnectionId() uint32 {
	return c.connId
}

func (c *mysqlConn) RemoteAddr() net.Addr {
	return c.getConnection().RemoteAddr()
}

func (c *mysqlConn) SetReadDeadline(t time.Time) error {
	return c.getConnection().SetReadDeadline(t)
}

func (c *mysqlConn) ReadPacket() ([]byte, error) {
	var pktData []byte
	for {
		header, err := c.next(4)
		if err != nil {
			return nil, err
		}
		length := int(packet.FixedLengthInteger.Get(header[:3]))
		c.sequence = int(header[3])

		payload, err := c.next(length)
		if err != nil {
			return nil, err
		}

		if pktData == nil {
			pktData = append(header, payload...)
		} else {
			pktData = append(pktData, payload...)
		}

		if length < packet.MaxPayloadLen {
			return pktData, nil
		}
	}
}

func (c *mysqlConn) WritePacket(pkt packet.Packet) error {
	c.sequence++
	pkt.SetSequence(c.sequence)
	dump, err := pkt.Dump(c.capabilities)
	if err != nil {
		return err
	}
	return c.write(dump)
}

func (c *mysqlConn) WriteCommandPacket(pkt packet.Packet) error {
	c.sequence = -1
	return c.WritePacket(pkt)
}

// write sends dump, splitting payloads longer than packet.MaxPayloadLen.
func (c *mysqlConn) write(dump []byte) error {
	payload := packet.Payload(dump)
	if len(payload) < packet.MaxPayloadLen {
		_, err := c.getConnection().Write(dump)
		return err
	}

	for {
		n := len(payload)
		if n > packet.MaxPayloadLen {
			n = packet.MaxPayloadLen
		}
		frame := make([]byte, 4+n)
		copy(frame, packet.FixedLengthInteger.Dump(uint64(n), 3))
		frame[3] = byte(c.sequence)
		copy(frame[4:], payload[:n])
		if _, err := c.getConnection().Write(frame); err != nil {
			return err
		}
		payload = payload[n:]
		if n < packet.MaxPayloadLen {
			return nil
		}
		c.sequence++
	}
}

func (c *mysqlConn) WriteEmptyOK() error {
	return c.WritePacket(packet.NewOK(0, 0, flag.ServerStatusAutocommit))
}

// WriteError sends err to the peer as an ERR packet. Errors that do not
// carry an ERR packet are reported as ER_UNKNOWN_ERROR.
func (c *mysqlConn) WriteError(err error) error {
	if err == nil {
		return nil
	}
	var errPkt *packet.ERR
	if !errors.As(err, &errPkt) {
		errPkt = packet.NewERR(code.ErrUnknownError, "HY000", err.Error())
	}
	return c.WritePacket(errPkt)
}

func (c *mysqlConn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.getConnection().Close()
}

func (c *mysqlConn) Closed() bool {
	return c.closed.Load()
}

func (c *mysqlConn) getConnection() net.Conn {
	if c.tlsConn != nil {
		return c.tlsConn
	}
	return c.conn
}

func (c *mysqlConn) next(n int) ([]byte, error) {
	bs := make([]byte, n)
	if _, err := io.ReadFull(c.getConnection(), bs); err != nil {
		return nil, err
	}
	return bs, nil
}
