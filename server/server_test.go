package server

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vczyh/mysql-cdc/auth"
	"github.com/vczyh/mysql-cdc/binlog"
	"github.com/vczyh/mysql-cdc/client"
	"github.com/vczyh/mysql-cdc/code"
	"github.com/vczyh/mysql-cdc/flag"
	"github.com/vczyh/mysql-cdc/myerrors"
	"github.com/vczyh/mysql-cdc/packet"
	"github.com/vczyh/mysql-cdc/position"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newUsers(t *testing.T) *MemoryUserProvider {
	users := NewMemoryUserProvider()
	for _, r := range []*CreateUserRequest{
		{User: "native", Password: "native-pw", Method: auth.MySQLNativePassword},
		{User: "sha256", Password: "sha256-pw", Method: auth.SHA256Password},
		{User: "sha2", Password: "sha2-pw", Method: auth.CachingSha2Password},
		{User: "empty", Method: auth.CachingSha2Password},
		{User: "secure", Password: "secure-pw", Method: auth.CachingSha2Password, TLSRequired: true},
	} {
		require.NoError(t, users.Create(r))
	}
	return users
}

func startServer(t *testing.T, opts ...Option) *Server {
	opts = append([]Option{WithPort(0), WithUserProvider(newUsers(t))}, opts...)
	s := NewServer(opts...)
	require.NoError(t, s.Start())
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func connect(t *testing.T, s *Server, user, password string, opts ...client.Option) (*client.Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opts = append([]client.Option{
		client.WithHost("127.0.0.1"),
		client.WithPort(s.Port()),
		client.WithUser(user),
		client.WithPassword(password),
	}, opts...)
	conn, err := client.CreateConnection(ctx, opts...)
	if err == nil {
		t.Cleanup(func() {
			_ = conn.Close()
		})
	}
	return conn, err
}

func TestAuthentication(t *testing.T) {
	certs := t.TempDir()
	s := startServer(t, WithUseSSL(true), WithCertsDir(certs))
	tlsOpts := []client.Option{
		client.WithTLSMode(client.TLSVerifyIdentity),
		client.WithSSLCA(filepath.Join(certs, CACertName)),
	}

	tests := []struct {
		name     string
		user     string
		password string
		opts     []client.Option
	}{
		{"native", "native", "native-pw", nil},
		{"sha256 public key", "sha256", "sha256-pw", nil},
		{"sha256 tls", "sha256", "sha256-pw", tlsOpts},
		{"caching sha2 full", "sha2", "sha2-pw", nil},
		// the previous login filled the cache
		{"caching sha2 fast", "sha2", "sha2-pw", nil},
		{"caching sha2 tls", "sha2", "sha2-pw", tlsOpts},
		{"empty password", "empty", "", nil},
		{"tls required", "secure", "secure-pw", tlsOpts},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			conn, err := connect(t, s, test.user, test.password, test.opts...)
			require.NoError(t, err)
			assert.Equal(t, DefaultVersion, conn.ServerVersion())
			assert.NoError(t, conn.Ping())
		})
	}
}

func TestAuthenticationDenied(t *testing.T) {
	s := startServer(t, WithUseSSL(true))

	tests := []struct {
		name     string
		user     string
		password string
		code     code.Err
	}{
		{"wrong native password", "native", "nope", code.ErrAccessDeniedError},
		{"wrong sha256 password", "sha256", "nope", code.ErrAccessDeniedError},
		{"wrong caching sha2 password", "sha2", "nope", code.ErrAccessDeniedError},
		{"unknown user", "ghost", "x", code.ErrAccessDeniedError},
		{"password for empty account", "empty", "x", code.ErrAccessDeniedError},
		{"tls required", "secure", "secure-pw", code.ErrAccessDeniedError},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := connect(t, s, test.user, test.password)
			require.Error(t, err)
			assert.True(t, myerrors.Is(err, myerrors.Auth), "%v", err)

			var errPkt *packet.ERR
			require.True(t, errors.As(err, &errPkt), "%v", err)
			assert.Equal(t, test.code, errPkt.ErrorCode)
		})
	}
}

func TestRequireSecureTransport(t *testing.T) {
	s := startServer(t, WithUseSSL(true), WithRequireSecureTransport(true))

	_, err := connect(t, s, "native", "native-pw")
	var errPkt *packet.ERR
	require.True(t, errors.As(err, &errPkt), "%v", err)
	assert.Equal(t, code.ErrSecureTransportRequired, errPkt.ErrorCode)

	_, err = connect(t, s, "native", "native-pw", client.WithTLSMode(client.TLSRequired))
	assert.NoError(t, err)
}

func TestSourceQueries(t *testing.T) {
	s := startServer(t, WithServerId(42))
	conn, err := connect(t, s, "sha2", "sha2-pw")
	require.NoError(t, err)

	_, err = conn.Exec("SET @master_binlog_checksum = @@global.binlog_checksum, @master_heartbeat_period = 1000000000")
	require.NoError(t, err)

	rs, err := conn.Query("SELECT @@GLOBAL.binlog_checksum, @@GLOBAL.server_id, @@GLOBAL.server_uuid, @master_binlog_checksum, @unset")
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
	row := rs.Rows[0]
	assert.Equal(t, "CRC32", row[0].String)
	assert.Equal(t, "42", row[1].String)
	assert.Equal(t, s.serverUUID.String(), row[2].String)
	assert.Equal(t, "CRC32", row[3].String)
	assert.False(t, row[4].Valid)
	assert.Equal(t, []string{"@@GLOBAL.binlog_checksum", "@@GLOBAL.server_id", "@@GLOBAL.server_uuid", "@master_binlog_checksum", "@unset"}, rs.ColumnNames())

	_, err = s.Binlog().Exec("shop", "CREATE TABLE t (id INT)")
	require.NoError(t, err)
	rs, err = conn.Query("SHOW MASTER STATUS")
	require.NoError(t, err)
	file, ok := rs.Value(0, "File")
	require.True(t, ok)
	assert.Equal(t, "mysql-bin.000001", file.String)
	gtids, ok := rs.Value(0, "Executed_Gtid_Set")
	require.True(t, ok)
	assert.Equal(t, s.serverUUID.String()+":1", gtids.String)

	var errPkt *packet.ERR
	_, err = conn.Query("SELECT @@GLOBAL.no_such_variable")
	require.True(t, errors.As(err, &errPkt), "%v", err)
	assert.Equal(t, code.ErrUnknownSystemVariable, errPkt.ErrorCode)

	_, err = conn.Query("SELECT * FROM t")
	require.True(t, errors.As(err, &errPkt), "%v", err)
	assert.Equal(t, code.ErrNotSupportedYet, errPkt.ErrorCode)

	// the connection survives errors
	assert.NoError(t, conn.Ping())
}

// readStream reads a non-blocking dump to its end. Like a replica, it
// knows the source checksum before the first event, the fake rotate
// carries a footer too.
func readStream(t *testing.T, conn *client.Conn, checksum binlog.ChecksumAlgorithm) []binlog.Event {
	p := binlog.NewParser()
	p.SetChecksum(checksum)
	tables := binlog.NewTableCache()

	var events []binlog.Event
	for {
		raw, err := conn.ReadBinlogEvent()
		if errors.Is(err, client.ErrEndOfBinlog) {
			return events
		}
		require.NoError(t, err)

		ev, err := p.Parse(raw, tables)
		require.NoError(t, err)
		switch e := ev.(type) {
		case *binlog.FormatDescriptionEvent:
			p.SetFormat(e)
			p.SetChecksum(e.ChecksumAlg)
		case *binlog.TableMapEvent:
			tables.Upsert(e)
		}
		events = append(events, ev)
	}
}

func eventTypes(events []binlog.Event) []binlog.EventType {
	types := make([]binlog.EventType, len(events))
	for i, e := range events {
		types[i] = e.Header().EventType
	}
	return types
}

func ordersTable() *binlog.TableMapEvent {
	return &binlog.TableMapEvent{
		TableId:  10,
		Database: "shop",
		Table:    "orders",
		Columns: []binlog.Column{
			{Type: flag.MySQLTypeLong, Name: "id"},
			{Type: flag.MySQLTypeVarchar, Meta: 200, Name: "note", CollationId: 45, Nullable: true},
		},
	}
}

func insert(table *binlog.TableMapEvent, id int32, note string) []binlog.Event {
	return []binlog.Event{
		table,
		&binlog.RowsEvent{
			Action:  binlog.ActionInsert,
			Version: 2,
			Table:   table,
			Rows:    []binlog.RowImage{{After: binlog.Row{id, note}}},
		},
	}
}

func TestBinlogDump(t *testing.T) {
	s := startServer(t)
	b := s.Binlog()
	_, err := b.Commit("shop", insert(ordersTable(), 1, "first")...)
	require.NoError(t, err)

	conn, err := connect(t, s, "sha2", "sha2-pw")
	require.NoError(t, err)
	require.NoError(t, conn.RegisterReplica(packet.NewRegisterReplica(100, "replica-1", "", "", 3306)))
	require.NoError(t, conn.BinlogDump(packet.NewBinlogDump(100, "mysql-bin.000001", 4, flag.BinlogDumpNonBlock)))

	events := readStream(t, conn, s.Binlog().Checksum())
	assert.Equal(t, []binlog.EventType{
		binlog.EventTypeRotate,
		binlog.EventTypeFormatDescription,
		binlog.EventTypePreviousGTIDs,
		binlog.EventTypeGTID,
		binlog.EventTypeQuery,
		binlog.EventTypeTableMap,
		binlog.EventTypeWriteRowsV2,
		binlog.EventTypeXid,
	}, eventTypes(events))

	rotate := events[0].(*binlog.RotateEvent)
	assert.True(t, rotate.IsFake())
	assert.Equal(t, "mysql-bin.000001", rotate.Name)

	rows := events[6].(*binlog.RowsEvent)
	assert.Equal(t, binlog.Row{int32(1), "first"}, rows.Rows[0].After)

	name, size, _ := b.Status()
	assert.Equal(t, "mysql-bin.000001", name)
	assert.Equal(t, size, events[7].Header().LogPos)
}

func TestBinlogDumpFromPosition(t *testing.T) {
	s := startServer(t, WithBinlogChecksum(binlog.ChecksumAlgOff))
	b := s.Binlog()
	_, err := b.Commit("shop", insert(ordersTable(), 1, "first")...)
	require.NoError(t, err)
	_, pos, _ := b.Status()
	require.NoError(t, b.Rotate())
	_, err = b.Commit("shop", insert(ordersTable(), 2, "second")...)
	require.NoError(t, err)

	conn, err := connect(t, s, "sha2", "sha2-pw")
	require.NoError(t, err)
	require.NoError(t, conn.BinlogDump(packet.NewBinlogDump(100, "mysql-bin.000001", pos, flag.BinlogDumpNonBlock)))

	events := readStream(t, conn, s.Binlog().Checksum())
	assert.Equal(t, []binlog.EventType{
		binlog.EventTypeRotate,
		// resent because the dump starts inside the file
		binlog.EventTypeFormatDescription,
		binlog.EventTypeRotate,
		binlog.EventTypeFormatDescription,
		binlog.EventTypePreviousGTIDs,
		binlog.EventTypeGTID,
		binlog.EventTypeQuery,
		binlog.EventTypeTableMap,
		binlog.EventTypeWriteRowsV2,
		binlog.EventTypeXid,
	}, eventTypes(events))

	rotate := events[2].(*binlog.RotateEvent)
	assert.False(t, rotate.IsFake())
	assert.Equal(t, "mysql-bin.000002", rotate.Name)
	assert.Equal(t, uint64(4), rotate.Position)

	rows := events[8].(*binlog.RowsEvent)
	assert.Equal(t, binlog.Row{int32(2), "second"}, rows.Rows[0].After)
}

func TestBinlogDumpGTID(t *testing.T) {
	s := startServer(t)
	b := s.Binlog()
	first, err := b.Commit("shop", insert(ordersTable(), 1, "first")...)
	require.NoError(t, err)
	_, err = b.Commit("shop", insert(ordersTable(), 2, "second")...)
	require.NoError(t, err)

	executed, err := position.ParseGTIDSet(first)
	require.NoError(t, err)

	conn, err := connect(t, s, "sha2", "sha2-pw")
	require.NoError(t, err)
	require.NoError(t, conn.BinlogDumpGTID(packet.NewBinlogDumpGTID(100, "", 4, executed.Encode(), flag.BinlogDumpNonBlock)))

	var gtids []string
	var ids []interface{}
	for _, ev := range readStream(t, conn, s.Binlog().Checksum()) {
		switch e := ev.(type) {
		case *binlog.GTIDEvent:
			gtids = append(gtids, e.GTID())
		case *binlog.RowsEvent:
			ids = append(ids, e.Rows[0].After[0])
		}
	}
	assert.Equal(t, []string{s.serverUUID.String() + ":2"}, gtids)
	assert.Equal(t, []interface{}{int32(2)}, ids)
}

func TestBinlogDumpErrors(t *testing.T) {
	s := startServer(t)
	b := s.Binlog()
	_, err := b.Exec("shop", "CREATE TABLE t (id INT)")
	require.NoError(t, err)
	require.NoError(t, b.Rotate())
	require.NoError(t, b.Purge("mysql-bin.000002"))
	assert.Equal(t, []string{"mysql-bin.000002"}, b.Files())

	dumpErr := func(dump func(*client.Conn) error) *packet.ERR {
		conn, err := connect(t, s, "sha2", "sha2-pw")
		require.NoError(t, err)
		require.NoError(t, dump(conn))
		_, err = conn.ReadBinlogEvent()
		require.True(t, myerrors.Is(err, myerrors.Protocol), "%v", err)
		var errPkt *packet.ERR
		require.True(t, errors.As(err, &errPkt), "%v", err)
		return errPkt
	}

	errPkt := dumpErr(func(c *client.Conn) error {
		return c.BinlogDump(packet.NewBinlogDump(100, "mysql-bin.000009", 4, 0))
	})
	assert.Equal(t, code.ErrMasterFatalErrorReadingBinlog, errPkt.ErrorCode)

	errPkt = dumpErr(func(c *client.Conn) error {
		return c.BinlogDump(packet.NewBinlogDump(100, "mysql-bin.000001", 4, 0))
	})
	assert.Equal(t, code.ErrMasterFatalErrorReadingBinlog, errPkt.ErrorCode)

	errPkt = dumpErr(func(c *client.Conn) error {
		return c.BinlogDump(packet.NewBinlogDump(100, "mysql-bin.000002", 1<<20, 0))
	})
	assert.Equal(t, code.ErrMasterFatalErrorReadingBinlog, errPkt.ErrorCode)

	errPkt = dumpErr(func(c *client.Conn) error {
		return c.BinlogDumpGTID(packet.NewBinlogDumpGTID(100, "", 4, position.NewGTIDSet().Encode(), 0))
	})
	assert.Equal(t, code.ErrMasterHasPurgedRequiredGTIDs, errPkt.ErrorCode)
}

func TestBinlogDumpBlocking(t *testing.T) {
	s := startServer(t)
	conn, err := connect(t, s, "sha2", "sha2-pw")
	require.NoError(t, err)
	_, err = conn.Exec("SET @master_heartbeat_period = 100000000")
	require.NoError(t, err)
	require.NoError(t, conn.BinlogDump(packet.NewBinlogDump(100, "mysql-bin.000001", 4, 0)))

	p := binlog.NewParser()
	next := func() binlog.Event {
		raw, err := conn.ReadBinlogEvent()
		require.NoError(t, err)
		ev, err := p.Parse(raw, nil)
		require.NoError(t, err)
		if fde, ok := ev.(*binlog.FormatDescriptionEvent); ok {
			p.SetFormat(fde)
			p.SetChecksum(fde.ChecksumAlg)
		}
		return ev
	}
	for i := 0; i < 3; i++ {
		next() // rotate, format description, previous gtids
	}

	hb, ok := next().(*binlog.HeartbeatEvent)
	require.True(t, ok)
	name, size, _ := s.Binlog().Status()
	assert.Equal(t, name, hb.LogIdent)
	assert.Equal(t, size, hb.LogPos)

	_, err = s.Binlog().Exec("shop", "DROP TABLE t")
	require.NoError(t, err)
	for {
		ev := next()
		if q, ok := ev.(*binlog.QueryEvent); ok {
			assert.Equal(t, "DROP TABLE t", q.Query)
			assert.Equal(t, binlog.QueryDDL, q.Kind)
			break
		}
		switch ev.(type) {
		case *binlog.HeartbeatEvent, *binlog.GTIDEvent:
		default:
			t.Fatalf("unexpected %T", ev)
		}
	}

	require.NoError(t, s.Close())
	_, err = conn.ReadBinlogEvent()
	assert.True(t, myerrors.Is(err, myerrors.Connection), "%v", err)
}

func TestBinlogRotateAndPurge(t *testing.T) {
	b, err := NewBinlog(1, [16]byte{1}, binlog.ChecksumAlgCRC32, DefaultVersion)
	require.NoError(t, err)

	name, size, executed := b.Status()
	assert.Equal(t, "mysql-bin.000001", name)
	assert.Greater(t, size, uint32(binlogStartPos))
	assert.True(t, executed.IsEmpty())

	gtid, err := b.Exec("", "CREATE DATABASE shop")
	require.NoError(t, err)
	assert.Equal(t, "01000000-0000-0000-0000-000000000000:1", gtid)

	require.NoError(t, b.Rotate())
	require.NoError(t, b.Rotate())
	assert.Equal(t, []string{"mysql-bin.000001", "mysql-bin.000002", "mysql-bin.000003"}, b.Files())

	require.NoError(t, b.Purge("mysql-bin.000003"))
	assert.Equal(t, []string{"mysql-bin.000003"}, b.Files())
	assert.Equal(t, "01000000-0000-0000-0000-000000000000:1", b.purgedGTIDs().String())

	assert.ErrorIs(t, b.Purge("mysql-bin.000001"), ErrLogPurged)
	assert.ErrorIs(t, b.Purge("mysql-bin.000099"), ErrLogNotFound)
}
