package client

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vczyh/mysql-cdc/auth"
	"github.com/vczyh/mysql-cdc/charset"
	"github.com/vczyh/mysql-cdc/flag"
	"github.com/vczyh/mysql-cdc/myerrors"
	"github.com/vczyh/mysql-cdc/mysql"
	"github.com/vczyh/mysql-cdc/packet"
)

const (
	DefaultPort        = 3306
	DefaultDialTimeout = 10 * time.Second

	maxPacketSize = packet.MaxPayloadLen
)

var (
	ErrUnsupportedProtocol = errors.New("client: unsupported protocol version")

	// ErrEndOfBinlog is returned by ReadBinlogEvent when a non-blocking
	// dump has sent the last event. It is not a connection error.
	ErrEndOfBinlog = errors.New("client: end of binlog")
)

// Conn is a client connection to a MySQL server.
type Conn struct {
	mysql.Conn

	host       string
	port       int
	user       string
	password   string
	database   string
	tlsMode    TLSMode
	sslCA      string
	sslCert    string
	sslKey     string
	serverName string
	tlsConfig  *tls.Config

	dialTimeout time.Duration
	logger      *zap.Logger

	collation *charset.Collation
	handshake *packet.Handshake
}

// CreateConnection dials and authenticates.
func CreateConnection(ctx context.Context, opts ...Option) (*Conn, error) {
	c, err := Dial(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if err := c.Authenticate(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Dial connects and reads the initial handshake. Every failure is a
// connection error.
func Dial(ctx context.Context, opts ...Option) (*Conn, error) {
	c := &Conn{
		host:        "127.0.0.1",
		port:        DefaultPort,
		dialTimeout: DefaultDialTimeout,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt.apply(c)
	}

	collation, err := charset.GetCollation(45)
	if err != nil {
		return nil, err
	}
	c.collation = collation

	addr := net.JoinHostPort(c.host, strconv.Itoa(c.port))
	dialer := net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, myerrors.NewConnection("dial", err)
	}
	c.Conn = mysql.NewClientConnection(conn, 0)

	if err := c.SetReadDeadline(time.Now().Add(c.dialTimeout)); err != nil {
		_ = c.Close()
		return nil, myerrors.NewConnection("dial", err)
	}
	if c.handshake, err = c.readHandshake(); err != nil {
		_ = c.Close()
		return nil, myerrors.NewConnection("read handshake", err)
	}
	if err := c.SetReadDeadline(time.Time{}); err != nil {
		_ = c.Close()
		return nil, myerrors.NewConnection("dial", err)
	}

	c.logger.Debug("connected",
		zap.String("addr", addr),
		zap.String("server_version", c.handshake.ServerVersion),
		zap.Uint32("connection_id", c.handshake.ConnectionId))
	return c, nil
}

func (c *Conn) readHandshake() (*packet.Handshake, error) {
	data, err := c.ReadPacket()
	if err != nil {
		return nil, err
	}
	if packet.IsErr(data) {
		return nil, c.handleOKERRPacket(data)
	}
	return packet.ParseHandshake(data)
}

// Authenticate negotiates capabilities, upgrades to TLS when the mode asks
// for it and runs the server's authentication plugin. Rejections are auth
// errors, network failures are connection errors.
func (c *Conn) Authenticate(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = c.Close()
	})
	defer stop()

	if deadline, ok := ctx.Deadline(); ok {
		if err := c.SetReadDeadline(deadline); err != nil {
			return myerrors.NewConnection("authenticate", err)
		}
		defer c.SetReadDeadline(time.Time{})
	}

	if err := c.authenticate(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return myerrors.NewConnection("authenticate", ctxErr)
		}
		if isNetworkError(err) {
			return myerrors.NewConnection("authenticate", err)
		}
		return myerrors.NewAuth("authenticate", err)
	}

	c.logger.Debug("authenticated",
		zap.String("user", c.user),
		zap.Bool("tls", c.TLSed()),
		zap.String("plugin", c.handshake.AuthPlugin.String()))
	return nil
}

func (c *Conn) authenticate() error {
	h := c.handshake
	if h.ProtocolVersion != 0x0a {
		return errors.Wrapf(ErrUnsupportedProtocol, "version %d", h.ProtocolVersion)
	}

	capabilities := flag.ClientLongPassword |
		flag.ClientLongFlag |
		flag.ClientProtocol41 |
		flag.ClientTransactions |
		flag.ClientSecureConnection |
		flag.ClientMultiResults |
		flag.ClientPluginAuth |
		flag.ClientPluginAuthLenencClientData |
		flag.ClientConnectAttrs
	if c.database != "" {
		capabilities |= flag.ClientConnectWithDB
	}
	capabilities &= h.GetCapabilities() | flag.ClientConnectWithDB
	c.SetCapabilities(capabilities)

	if err := c.handleTLS(); err != nil {
		return err
	}

	method := h.AuthPlugin
	authData := h.GetAuthData()
	if err := c.writeHandshakeResponsePacket(method, authData); err != nil {
		return err
	}
	return c.auth(method, authData)
}

func (c *Conn) writeHandshakeResponsePacket(method auth.Method, authData []byte) error {
	authRes, err := c.generateAuthRes(method, authData)
	if err != nil {
		return err
	}

	p := &packet.HandshakeResponse{
		ClientCapabilityFlags: c.Capabilities(),
		MaxPacketSize:         maxPacketSize,
		CharacterSet:          c.collation,
		Username:              []byte(c.user),
		AuthRes:               authRes,
		Database:              []byte(c.database),
		AuthPlugin:            method,
	}
	p.AddAttribute("_client_name", "mysql-cdc")
	p.AddAttribute("program_name", "binlogtail")
	return c.WritePacket(p)
}

// ServerVersion returns the version string of the handshake.
func (c *Conn) ServerVersion() string {
	return c.handshake.ServerVersion
}

// ServerConnectionId returns the connection id assigned by the server.
func (c *Conn) ServerConnectionId() uint32 {
	return c.handshake.ConnectionId
}

func (c *Conn) handleOKERRPacket(data []byte) error {
	switch {
	case packet.IsOK(data):
		_, err := packet.ParseOk(data, c.Capabilities())
		return err
	case packet.IsErr(data):
		errPkt, err := packet.ParseERR(data, c.Capabilities())
		if err != nil {
			return err
		}
		return errPkt
	default:
		return packet.ErrPacketData
	}
}

func (c *Conn) readOKERRPacket() error {
	data, err := c.ReadPacket()
	if err != nil {
		return err
	}
	return c.handleOKERRPacket(data)
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed)
}
