package server

import (
	"crypto/rsa"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/vczyh/mysql-cdc/auth"
	"github.com/vczyh/mysql-cdc/binlog"
	"github.com/vczyh/mysql-cdc/charset"
	"github.com/vczyh/mysql-cdc/flag"
	"github.com/vczyh/mysql-cdc/myerrors"
	"github.com/vczyh/mysql-cdc/mysql"
	"github.com/vczyh/mysql-cdc/packet"
)

const (
	DefaultVersion  = "8.0.36-mysql-cdc"
	DefaultServerId = 1
)

var ErrServerClosed = errors.New("server: closed")

// Server speaks enough of the MySQL protocol to act as a replication
// source: handshake and authentication, the queries a replica sends before
// a dump, and COM_BINLOG_DUMP / COM_BINLOG_DUMP_GTID served from a Binlog.
type Server struct {
	host              string
	port              int
	version           string
	defaultAuthMethod auth.Method

	userProvider UserProvider
	sha2Cache    SHA2Cache

	useSSL                 bool
	sslCA                  string
	sslCert                string
	sslKey                 string
	certsDir               string
	requireSecureTransport bool
	tlsConfig              *tls.Config
	caCert                 tls.Certificate
	serverCert             tls.Certificate
	clientCert             tls.Certificate

	rsaKeyPath     string
	privateKey     *rsa.PrivateKey
	publicKeyBytes []byte

	serverId   uint32
	serverUUID uuid.UUID
	checksum   binlog.ChecksumAlgorithm
	binlog     *Binlog

	h         Handler
	logger    *zap.Logger
	collation *charset.Collation

	l      net.Listener
	connId atomic.Uint32
	// heartbeats are not sent while set
	heartbeatsSuspended atomic.Bool

	mu     sync.Mutex
	conns  map[uint32]mysql.Conn
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

func NewServer(opts ...Option) *Server {
	s := &Server{
		host:              "127.0.0.1",
		version:           DefaultVersion,
		defaultAuthMethod: auth.CachingSha2Password,
		serverId:          DefaultServerId,
		checksum:          binlog.ChecksumAlgCRC32,
		logger:            zap.NewNop(),
		conns:             make(map[uint32]mysql.Conn),
		done:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt.apply(s)
	}
	return s
}

// Start listens and serves connections in the background.
func (s *Server) Start() error {
	if err := s.build(); err != nil {
		return err
	}

	l, err := net.Listen("tcp", net.JoinHostPort(s.host, strconv.Itoa(s.port)))
	if err != nil {
		return err
	}
	s.l = l
	s.logger.Info("server started",
		zap.String("addr", l.Addr().String()),
		zap.String("version", s.version),
		zap.Uint32("server_id", s.serverId),
		zap.Stringer("server_uuid", s.serverUUID))

	s.wg.Add(1)
	go s.serve()
	return nil
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.l.Accept()
		if err != nil {
			if s.isClosed() {
				return
			}
			s.logger.Warn("accept", zap.Error(err))
			continue
		}

		c := mysql.NewServerConnection(conn, s.connId.Inc(), s.defaultCapabilities())
		if !s.track(c) {
			_ = c.Close()
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(c)
		}()
	}
}

func (s *Server) build() error {
	if s.userProvider == nil {
		return fmt.Errorf("require UserProvider not nil")
	}
	if s.sha2Cache == nil {
		s.sha2Cache = NewDefaultSHA2Cache()
	}
	if s.serverUUID == uuid.Nil {
		s.serverUUID = uuid.New()
	}

	collation, err := charset.GetCollation(45)
	if err != nil {
		return err
	}
	s.collation = collation

	if s.binlog == nil {
		if s.binlog, err = NewBinlog(s.serverId, s.serverUUID, s.checksum, s.version); err != nil {
			return err
		}
	}
	if s.h == nil {
		s.h = NewSourceHandler(s.binlog, s.Variables())
	}

	if err := s.buildKeyPair(); err != nil {
		return err
	}
	return s.buildTLSConfig()
}

// Variables returns the global system variables the source reports.
func (s *Server) Variables() map[string]string {
	checksum := "NONE"
	if s.binlog.Checksum() == binlog.ChecksumAlgCRC32 {
		checksum = "CRC32"
	}
	return map[string]string{
		"version":                  s.version,
		"server_id":                strconv.FormatUint(uint64(s.serverId), 10),
		"server_uuid":              s.serverUUID.String(),
		"binlog_checksum":          checksum,
		"binlog_format":            "ROW",
		"binlog_row_image":         "FULL",
		"binlog_row_metadata":      "FULL",
		"gtid_mode":                "ON",
		"log_bin":                  "1",
		"require_secure_transport": onOff(s.requireSecureTransport),
	}
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

// Binlog returns the log the server streams from.
func (s *Server) Binlog() *Binlog {
	return s.binlog
}

func (s *Server) Addr() net.Addr {
	return s.l.Addr()
}

func (s *Server) Port() int {
	return s.l.Addr().(*net.TCPAddr).Port
}

// SuspendHeartbeats stops or resumes heartbeats on every dump, which looks
// like a silent network to the replicas.
func (s *Server) SuspendHeartbeats(suspend bool) {
	s.heartbeatsSuspended.Store(suspend)
}

// CloseConnections drops every client connection and keeps listening.
func (s *Server) CloseConnections() {
	s.mu.Lock()
	conns := make([]mysql.Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
}

// Close stops listening, drops every connection and waits for their
// goroutines.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrServerClosed
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	var err error
	if s.l != nil {
		err = s.l.Close()
	}
	s.CloseConnections()
	s.wg.Wait()
	return err
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) track(c mysql.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c.ConnectionId()] = c
	return true
}

func (s *Server) untrack(c mysql.Conn) {
	s.mu.Lock()
	delete(s.conns, c.ConnectionId())
	s.mu.Unlock()
}

func (s *Server) handleConnection(conn mysql.Conn) {
	logger := s.logger.With(zap.Uint32("connection_id", conn.ConnectionId()))
	defer s.untrack(conn)
	defer conn.Close()

	sess, err := s.auth(conn)
	if err != nil {
		logger.Debug("auth", zap.Error(err))
		if err := conn.WriteError(err); err != nil {
			logger.Debug("write error packet", zap.Error(err))
		}
		return
	}
	logger = logger.With(zap.String("user", sess.User()))
	s.h.OnConnect(sess)
	defer s.h.OnClose(sess)

	for !conn.Closed() {
		if err := s.handleCommand(sess, conn); err != nil {
			if !s.isClosed() && !conn.Closed() {
				logger.Debug("connection closed", zap.Error(err))
			}
			return
		}
	}
}

func (s *Server) handleCommand(sess *Session, conn mysql.Conn) error {
	data, err := conn.ReadPacket()
	if err != nil {
		return err
	}

	switch {
	case packet.IsPing(data):
		if err := s.h.Ping(sess); err != nil {
			return conn.WriteError(err)
		}
		return conn.WriteEmptyOK()

	case packet.IsQuery(data):
		rs, err := s.h.Query(sess, string(data[5:]))
		if err != nil {
			return conn.WriteError(err)
		}
		if rs == nil {
			return conn.WriteEmptyOK()
		}
		return rs.WriteText(conn)

	case packet.IsQuit(data):
		return conn.Close()

	case packet.IsCommand(data, packet.ComRegisterSlave):
		return s.handleRegisterReplica(sess, conn, data)

	case packet.IsCommand(data, packet.ComBinlogDump):
		return s.handleBinlogDump(sess, conn, data)

	case packet.IsCommand(data, packet.ComBinlogDumpGTID):
		return s.handleBinlogDumpGTID(sess, conn, data)

	default:
		var name string
		if len(data) > 4 {
			name = packet.Command(data[4]).String()
		}
		return conn.WriteError(myerrors.UnknownCommand.Build(name))
	}
}

func (s *Server) defaultCapabilities() flag.Capability {
	capabilities := flag.ClientLongPassword |
		flag.ClientFoundRows |
		flag.ClientLongFlag |
		flag.ClientConnectWithDB |
		flag.ClientNoSchema |
		flag.ClientODBC |
		flag.ClientLocalFiles |
		flag.ClientIgnoreSpace |
		flag.ClientProtocol41 |
		flag.ClientInteractive |
		flag.ClientIgnoreSigpipe |
		flag.ClientTransactions |
		flag.ClientSecureConnection |
		flag.ClientMultiStatements |
		flag.ClientMultiResults |
		flag.ClientPsMultiResults |
		flag.ClientPluginAuth |
		flag.ClientConnectAttrs |
		flag.ClientPluginAuthLenencClientData |
		flag.ClientCanHandleExpiredPasswords

	if s.useSSL {
		capabilities |= flag.ClientSSL
	}
	return capabilities
}

func clientHost(conn mysql.Conn) string {
	switch v := conn.RemoteAddr().(type) {
	case *net.TCPAddr:
		return v.IP.String()
	default:
		return ""
	}
}
