package replica

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"fmt"
	"math"
	"math/big"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/vczyh/mysql-cdc/binlog"
	"github.com/vczyh/mysql-cdc/client"
	"github.com/vczyh/mysql-cdc/flag"
	"github.com/vczyh/mysql-cdc/myerrors"
	"github.com/vczyh/mysql-cdc/packet"
	"github.com/vczyh/mysql-cdc/position"
)

var (
	ErrStarted         = errors.New("replica: already started")
	ErrClosed          = errors.New("replica: closed")
	ErrSameServerId    = errors.New("replica: source and replica have equal server id")
	ErrSameServerUUID  = errors.New("replica: source and replica have equal server uuid")
	ErrBinlogDisabled  = errors.New("replica: binary logging is disabled on the source")
	errMalformedResult = errors.New("replica: unexpected result set")
)

// Replica streams the binlog of a source server by registering as one of
// its replicas.
//
// A Replica moves through the states Disconnected, Connecting,
// Authenticating, Registering and Streaming. A blocking session that loses
// its connection goes to Reconnecting and resumes from the last accepted
// transaction boundary. Closed is final.
type Replica struct {
	host        string
	port        int
	user        string
	password    string
	tlsMode     client.TLSMode
	sslCA       string
	sslCert     string
	sslKey      string
	tlsConfig   *tls.Config
	dialTimeout time.Duration

	serverId   uint32
	uuid       string
	reportHost string
	reportPort uint16

	start              position.Position
	heartbeatInterval  time.Duration
	blocking           bool
	maxRetries         uint64
	backoffInitial     time.Duration
	backoffMax         time.Duration
	regressionPolicy   position.RegressionPolicy
	unknownTablePolicy UnknownTablePolicy
	location           *time.Location
	logger             *zap.Logger
	registerer         prometheus.Registerer

	state   atomic.Uint32
	metrics *metrics
	tracker *position.Tracker

	mu       sync.Mutex
	conn     *client.Conn
	cancel   context.CancelFunc
	done     chan struct{}
	closed   bool
	closeErr error

	// Owned by the read loop.
	parser   *binlog.Parser
	tables   *binlog.TableCache
	file     string
	gtid     *position.GTIDSet
	accepted *position.Position
	first    []byte
	firstErr error
}

func NewReplica(opts ...Option) *Replica {
	r := &Replica{
		host:              "127.0.0.1",
		port:              client.DefaultPort,
		dialTimeout:       client.DefaultDialTimeout,
		heartbeatInterval: DefaultHeartbeatInterval,
		blocking:          true,
		backoffInitial:    DefaultBackoffInitial,
		backoffMax:        DefaultBackoffMax,
		location:          time.UTC,
		logger:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt.apply(r)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.location == nil {
		r.location = time.UTC
	}

	addr := net.JoinHostPort(r.host, strconv.Itoa(r.port))
	r.logger = r.logger.With(zap.String("source", addr))
	r.metrics = newMetrics(r.registerer, addr)
	r.metrics.setState(StateDisconnected)
	r.tracker = position.NewTracker(r.start, r.regressionPolicy, r.logger)
	r.tables = binlog.NewTableCache()
	return r
}

func (r *Replica) State() State {
	return State(r.state.Load())
}

// Position returns the last accepted position, or the start position
// before anything was accepted.
func (r *Replica) Position() position.Position {
	return r.tracker.Snapshot()
}

// ServerId returns the id the replica registers with. It is only known
// after Start when it was not configured.
func (r *Replica) ServerId() uint32 {
	return r.serverId
}

func (r *Replica) setState(s State) {
	old := State(r.state.Swap(uint32(s)))
	if old == s {
		return
	}
	r.metrics.setState(s)
	r.logger.Debug("state changed", zap.Stringer("from", old), zap.Stringer("to", s))
}

// Start connects, registers and starts the binlog dump. Setup failures are
// returned here. Once streaming, errors end the returned Streamer.
//
// The session lives until ctx is done or Close is called.
func (r *Replica) Start(ctx context.Context) (*Streamer, error) {
	if !r.state.CompareAndSwap(uint32(StateDisconnected), uint32(StateConnecting)) {
		return nil, ErrStarted
	}
	r.metrics.setState(StateConnecting)

	if err := r.build(); err != nil {
		r.setState(StateClosed)
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		cancel()
		r.setState(StateClosed)
		return nil, ErrClosed
	}
	r.cancel = cancel
	r.done = make(chan struct{})
	r.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		_ = r.closeConn()
	})

	if err := r.connectWithRetry(ctx); err != nil {
		stop()
		cancel()
		_ = r.closeConn()
		r.setState(StateClosed)
		close(r.done)
		return nil, err
	}

	s := newStreamer()
	go r.run(ctx, cancel, stop, s)
	return s, nil
}

// Close stops the session and waits for the read loop to exit. A blocked
// read is interrupted by closing the connection.
func (r *Replica) Close() error {
	r.mu.Lock()
	r.closed = true
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	if cancel == nil {
		r.setState(StateClosed)
		return nil
	}
	cancel()
	<-done

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeErr
}

func (r *Replica) build() error {
	if r.serverId == 0 {
		n, err := rand.Int(rand.Reader, big.NewInt(math.MaxUint32))
		if err != nil {
			return err
		}
		r.serverId = uint32(n.Uint64()) + 1
	}

	if r.uuid == "" {
		id, err := uuid.NewRandom()
		if err != nil {
			return err
		}
		r.uuid = id.String()
	}
	return nil
}

func (r *Replica) run(ctx context.Context, cancel context.CancelFunc, stop func() bool, s *Streamer) {
	defer func() {
		stop()
		cancel()
		err := r.closeConn()

		r.mu.Lock()
		r.closeErr = err
		r.mu.Unlock()

		r.setState(StateClosed)
		close(s.done)
		close(r.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.requests:
		}

		if err := r.accept(); err != nil {
			s.err = err
			return
		}

		e, err := r.next(ctx)
		if err != nil {
			s.err = err
			return
		}
		if e == nil || ctx.Err() != nil {
			return
		}

		select {
		case s.events <- e:
		case <-ctx.Done():
			return
		}
	}
}

// accept advances the tracker to the boundary delivered last.
func (r *Replica) accept() error {
	if r.accepted == nil {
		return nil
	}
	p := *r.accepted
	r.accepted = nil
	return r.tracker.Advance(p)
}

// next returns the next event, reconnecting as needed. A nil event means
// the stream ended without error.
func (r *Replica) next(ctx context.Context) (binlog.Event, error) {
	for {
		raw, err := r.readFrame()
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil
			}
			if errors.Is(err, client.ErrEndOfBinlog) {
				r.logger.Info("reached the end of the binlog", zap.Stringer("position", r.tracker.Snapshot()))
				return nil, nil
			}
			if !r.blocking || !myerrors.Retryable(err) {
				return nil, err
			}
			if err := r.reconnect(ctx, err); err != nil {
				if ctx.Err() != nil {
					return nil, nil
				}
				return nil, err
			}
			continue
		}

		return r.handle(raw)
	}
}

func (r *Replica) readFrame() ([]byte, error) {
	if r.first != nil || r.firstErr != nil {
		raw, err := r.first, r.firstErr
		r.first, r.firstErr = nil, nil
		return raw, err
	}

	conn := r.currentConn()
	if conn == nil {
		return nil, myerrors.NewConnection("read binlog event", net.ErrClosed)
	}
	if r.heartbeatInterval > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(2 * r.heartbeatInterval)); err != nil {
			return nil, myerrors.NewConnection("read binlog event", err)
		}
	}

	raw, err := conn.ReadBinlogEvent()
	if err != nil {
		return nil, err
	}
	r.metrics.received(len(raw))
	return raw, nil
}

// handle decodes raw and updates the session state the following events
// depend on.
func (r *Replica) handle(raw []byte) (binlog.Event, error) {
	e, err := r.parser.Parse(raw, r.tables)
	if err != nil {
		if myerrors.Is(err, myerrors.UnknownTable) && r.unknownTablePolicy == UnknownTableSkip {
			r.logger.Warn("skip rows event", zap.Error(err))
			return r.parser.Unhandled(raw)
		}
		return nil, err
	}

	switch e := e.(type) {
	case *binlog.FormatDescriptionEvent:
		r.parser.SetFormat(e)
		if e.ChecksumAlg != binlog.ChecksumAlgUndefined {
			r.parser.SetChecksum(e.ChecksumAlg)
		}
	case *binlog.RotateEvent:
		r.file = e.Name
		// the rotate written at the end of a file moves the position to the
		// next one; the fake rotate only names the file being read
		if !e.IsFake() {
			r.accepted = &position.Position{Name: e.Name, Pos: uint32(e.Position)}
		}
	case *binlog.TableMapEvent:
		r.tables.Upsert(e)
	case *binlog.GTIDEvent:
		r.gtid = nil
		if !e.Anonymous {
			r.gtid = position.NewGTIDSet()
			r.gtid.AddGTID(e.SID, e.GNO)
		}
	case *binlog.XidEvent:
		r.boundary(&e.EventHeader)
	case *binlog.QueryEvent:
		if e.Kind.EndsTransaction() {
			r.boundary(&e.EventHeader)
		}
	}

	r.metrics.observe(e)
	return e, nil
}

func (r *Replica) boundary(h *binlog.EventHeader) {
	r.accepted = &position.Position{Name: r.file, Pos: h.LogPos, GTIDSet: r.gtid}
	r.gtid = nil
}

func (r *Replica) reconnect(ctx context.Context, cause error) error {
	r.setState(StateReconnecting)
	r.metrics.reconnected()
	_ = r.closeConn()

	r.logger.Warn("stream interrupted, reconnecting",
		zap.Error(cause),
		zap.Stringer("position", r.tracker.Snapshot()))
	return r.connectWithRetry(ctx)
}

func (r *Replica) newBackoff() backoff.BackOff {
	if !r.blocking {
		return &backoff.StopBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.backoffInitial
	b.MaxInterval = r.backoffMax
	b.MaxElapsedTime = 0
	if r.maxRetries > 0 {
		return backoff.WithMaxRetries(b, r.maxRetries)
	}
	return b
}

// connectWithRetry retries connection errors. Authentication and protocol
// errors are returned at once.
func (r *Replica) connectWithRetry(ctx context.Context) error {
	op := func() error {
		err := r.connect(ctx)
		if err == nil {
			return nil
		}
		_ = r.closeConn()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return backoff.Permanent(myerrors.NewConnection("connect", ctxErr))
		}
		if !myerrors.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, d time.Duration) {
		r.logger.Warn("connect failed", zap.Error(err), zap.Duration("retry_in", d))
	}
	return backoff.RetryNotify(op, backoff.WithContext(r.newBackoff(), ctx), notify)
}

func (r *Replica) connect(ctx context.Context) error {
	pos := r.tracker.Snapshot()

	r.setState(StateConnecting)
	conn, err := client.Dial(ctx, r.clientOptions()...)
	if err != nil {
		return err
	}
	r.setConn(ctx, conn)

	r.setState(StateAuthenticating)
	if err := conn.Authenticate(ctx); err != nil {
		return err
	}

	r.setState(StateRegistering)
	if err := r.register(conn, pos); err != nil {
		return err
	}

	r.setState(StateStreaming)
	r.logger.Info("streaming",
		zap.Uint32("server_id", r.serverId),
		zap.String("server_version", conn.ServerVersion()))
	return nil
}

func (r *Replica) clientOptions() []client.Option {
	opts := []client.Option{
		client.WithHost(r.host),
		client.WithPort(r.port),
		client.WithUser(r.user),
		client.WithPassword(r.password),
		client.WithTLSMode(r.tlsMode),
		client.WithSSLCA(r.sslCA),
		client.WithSSLCert(r.sslCert),
		client.WithSSLKey(r.sslKey),
		client.WithDialTimeout(r.dialTimeout),
		client.WithLogger(r.logger),
	}
	if r.tlsConfig != nil {
		opts = append(opts, client.WithTLSConfig(r.tlsConfig))
	}
	return opts
}

// register prepares the session the way a replica I/O thread does, then
// starts the dump from pos and reads its first frame.
func (r *Replica) register(conn *client.Conn, pos position.Position) error {
	if _, err := conn.Exec("SET @master_binlog_checksum = @@global.binlog_checksum"); err != nil {
		return setupError("set binlog checksum", err)
	}

	rs, err := conn.Query("SELECT @@GLOBAL.binlog_checksum, @@GLOBAL.server_id, @@GLOBAL.server_uuid")
	if err != nil {
		return setupError("query source variables", err)
	}
	if len(rs.Rows) != 1 || len(rs.Rows[0]) != 3 {
		return myerrors.NewProtocol("query source variables", errMalformedResult)
	}
	row := rs.Rows[0]
	checksum := binlog.ParseChecksumAlgorithm(row[0].String)
	sourceServerId, err := strconv.ParseUint(row[1].String, 10, 32)
	if err != nil {
		return myerrors.NewProtocol("query source variables", err)
	}
	if uint32(sourceServerId) == r.serverId {
		return myerrors.NewProtocol("register", ErrSameServerId)
	}
	if row[2].String == r.uuid {
		return myerrors.NewProtocol("register", ErrSameServerUUID)
	}

	if r.heartbeatInterval > 0 {
		period := r.heartbeatInterval.Nanoseconds()
		query := fmt.Sprintf("SET @master_heartbeat_period = %d, @source_heartbeat_period = %d", period, period)
		if _, err := conn.Exec(query); err != nil {
			return setupError("set heartbeat period", err)
		}
	}

	query := fmt.Sprintf("SET @slave_uuid = '%s', @replica_uuid = '%s'", r.uuid, r.uuid)
	if _, err := conn.Exec(query); err != nil {
		return setupError("set replica uuid", err)
	}

	if pos.IsZero() {
		if pos, err = r.binlogEnd(conn); err != nil {
			return err
		}
		if err := r.tracker.Advance(pos); err != nil {
			return err
		}
	}

	p := packet.NewRegisterReplica(r.serverId, r.reportHost, "", "", r.reportPort)
	if err := conn.RegisterReplica(p); err != nil {
		return err
	}

	var flags flag.BinlogDump
	if !r.blocking {
		flags |= flag.BinlogDumpNonBlock
	}
	if pos.IsGTID() {
		err = conn.BinlogDumpGTID(packet.NewBinlogDumpGTID(r.serverId, "", 4, pos.GTIDSet.Encode(), flags))
	} else {
		err = conn.BinlogDump(packet.NewBinlogDump(r.serverId, pos.Name, pos.Pos, flags))
	}
	if err != nil {
		return err
	}

	r.reset(checksum, pos)

	raw, err := r.readFrame()
	switch {
	case errors.Is(err, client.ErrEndOfBinlog):
		r.firstErr = err
	case err != nil:
		return err
	default:
		r.first = raw
	}

	r.logger.Info("binlog dump started",
		zap.Stringer("position", pos),
		zap.Stringer("checksum", checksum),
		zap.Stringer("flags", flags))
	return nil
}

// binlogEnd returns the current end of the source binlog.
func (r *Replica) binlogEnd(conn *client.Conn) (position.Position, error) {
	rs, err := conn.Query("SHOW MASTER STATUS")
	if err != nil {
		var errPkt *packet.ERR
		if !errors.As(err, &errPkt) {
			return position.Position{}, err
		}
		// renamed in 8.4
		if rs, err = conn.Query("SHOW BINARY LOG STATUS"); err != nil {
			return position.Position{}, setupError("show binary log status", err)
		}
	}

	file, ok := rs.Value(0, "File")
	if !ok || !file.Valid || file.String == "" {
		return position.Position{}, myerrors.NewProtocol("show binary log status", ErrBinlogDisabled)
	}
	pos, _ := rs.Value(0, "Position")
	offset, err := strconv.ParseUint(pos.String, 10, 32)
	if err != nil {
		return position.Position{}, myerrors.NewProtocol("show binary log status", err)
	}
	return position.Position{Name: file.String, Pos: uint32(offset)}, nil
}

// reset discards everything learned from the previous connection. Table
// ids and the format description are only valid within one dump.
func (r *Replica) reset(checksum binlog.ChecksumAlgorithm, pos position.Position) {
	r.parser = binlog.NewParser()
	r.parser.SetChecksum(checksum)
	r.parser.SetLocation(r.location)
	r.tables.Clear()
	r.file = pos.Name
	r.gtid = nil
	r.accepted = nil
	r.first, r.firstErr = nil, nil
}

// setupError classifies an error of a setup statement. Errors reported by
// the server are protocol errors.
func setupError(op string, err error) error {
	if myerrors.KindOf(err) != myerrors.Unknown {
		return err
	}
	return myerrors.NewProtocol(op, err)
}

func (r *Replica) currentConn() *client.Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn
}

func (r *Replica) setConn(ctx context.Context, conn *client.Conn) {
	r.mu.Lock()
	r.conn = conn
	r.mu.Unlock()

	// the session may have been cancelled before conn was visible
	if ctx.Err() != nil {
		_ = conn.Close()
	}
}

func (r *Replica) closeConn() error {
	conn := r.currentConn()
	if conn == nil {
		return nil
	}
	return conn.Close()
}
