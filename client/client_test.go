package client_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vczyh/mysql-cdc/auth"
	"github.com/vczyh/mysql-cdc/client"
	"github.com/vczyh/mysql-cdc/code"
	"github.com/vczyh/mysql-cdc/flag"
	"github.com/vczyh/mysql-cdc/myerrors"
	"github.com/vczyh/mysql-cdc/packet"
	"github.com/vczyh/mysql-cdc/server"
)

func startServer(t *testing.T, opts ...server.Option) *server.Server {
	users := server.NewMemoryUserProvider()
	require.NoError(t, users.Create(&server.CreateUserRequest{
		User:     "root",
		Password: "root-pw",
		Method:   auth.MySQLNativePassword,
	}))

	opts = append([]server.Option{server.WithPort(0), server.WithUserProvider(users)}, opts...)
	s := server.NewServer(opts...)
	require.NoError(t, s.Start())
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func connect(t *testing.T, s *server.Server, opts ...client.Option) (*client.Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opts = append([]client.Option{
		client.WithPort(s.Port()),
		client.WithUser("root"),
		client.WithPassword("root-pw"),
	}, opts...)
	conn, err := client.CreateConnection(ctx, opts...)
	if err == nil {
		t.Cleanup(func() {
			_ = conn.Close()
		})
	}
	return conn, err
}

func TestExecAndQuery(t *testing.T) {
	s := startServer(t)
	conn, err := connect(t, s)
	require.NoError(t, err)
	assert.NotZero(t, conn.ServerConnectionId())

	res, err := conn.Exec("SET @a = 'x', @b = 2")
	require.NoError(t, err)
	assert.NotZero(t, res.Status&flag.ServerStatusAutocommit)

	rs, err := conn.Query("SELECT @a, @b, @c")
	require.NoError(t, err)
	assert.Equal(t, []string{"@a", "@b", "@c"}, rs.ColumnNames())
	require.Len(t, rs.Rows, 1)

	v, ok := rs.Value(0, "@a")
	require.True(t, ok)
	assert.Equal(t, "x", v.String)
	v, ok = rs.Value(0, "@b")
	require.True(t, ok)
	assert.Equal(t, "2", v.String)
	v, ok = rs.Value(0, "@c")
	require.True(t, ok)
	assert.False(t, v.Valid)

	_, ok = rs.Value(0, "@A")
	assert.False(t, ok)
	_, ok = rs.Value(1, "@a")
	assert.False(t, ok)
}

func TestServerErrors(t *testing.T) {
	s := startServer(t)
	conn, err := connect(t, s)
	require.NoError(t, err)

	_, err = conn.Query("SELEC 1")
	var errPkt *packet.ERR
	require.True(t, errors.As(err, &errPkt), "%v", err)
	assert.Equal(t, code.ErrSyntaxError, errPkt.ErrorCode)

	_, err = conn.Exec("SET GLOBAL server_id = 2")
	require.True(t, errors.As(err, &errPkt), "%v", err)
	assert.Equal(t, code.ErrNotSupportedYet, errPkt.ErrorCode)

	require.NoError(t, conn.Ping())
	require.NoError(t, conn.Quit())
	assert.True(t, conn.Closed())
}

func TestReadBinlogEvent(t *testing.T) {
	s := startServer(t)
	_, err := s.Binlog().Exec("shop", "CREATE TABLE t (id INT)")
	require.NoError(t, err)

	t.Run("end of binlog", func(t *testing.T) {
		conn, err := connect(t, s)
		require.NoError(t, err)
		require.NoError(t, conn.BinlogDump(packet.NewBinlogDump(100, "", 4, flag.BinlogDumpNonBlock)))

		n := 0
		for {
			raw, err := conn.ReadBinlogEvent()
			if errors.Is(err, client.ErrEndOfBinlog) {
				break
			}
			require.NoError(t, err)
			require.NotEmpty(t, raw)
			n++
		}
		// rotate, format description, previous gtids, gtid, query
		assert.Equal(t, 5, n)
	})

	t.Run("rejected dump", func(t *testing.T) {
		conn, err := connect(t, s)
		require.NoError(t, err)
		require.NoError(t, conn.BinlogDump(packet.NewBinlogDump(100, "mysql-bin.000099", 4, 0)))

		_, err = conn.ReadBinlogEvent()
		assert.True(t, myerrors.Is(err, myerrors.Protocol), "%v", err)
		assert.False(t, myerrors.Retryable(err))
	})

	t.Run("closed connection", func(t *testing.T) {
		conn, err := connect(t, s)
		require.NoError(t, err)
		require.NoError(t, conn.BinlogDump(packet.NewBinlogDump(100, "", 4, 0)))
		s.CloseConnections()

		for {
			_, err = conn.ReadBinlogEvent()
			if err != nil {
				break
			}
		}
		assert.True(t, myerrors.Retryable(err), "%v", err)
		assert.NotErrorIs(t, err, client.ErrEndOfBinlog)
	})
}

func TestRegisterReplicaRejected(t *testing.T) {
	s := startServer(t, server.WithServerId(9))
	conn, err := connect(t, s)
	require.NoError(t, err)

	err = conn.RegisterReplica(packet.NewRegisterReplica(9, "", "", "", 0))
	assert.True(t, myerrors.Is(err, myerrors.Protocol), "%v", err)
	require.NoError(t, conn.RegisterReplica(packet.NewRegisterReplica(10, "replica", "", "", 3306)))
}

func TestTLSNotSupported(t *testing.T) {
	s := startServer(t)
	_, err := connect(t, s, client.WithTLSMode(client.TLSRequired))
	assert.True(t, myerrors.Is(err, myerrors.Auth), "%v", err)
	assert.ErrorIs(t, err, client.ErrTLSNotSupported)
}

func TestDialFailure(t *testing.T) {
	s := startServer(t)
	port := s.Port()
	require.NoError(t, s.Close())

	_, err := client.Dial(context.Background(), client.WithPort(port), client.WithDialTimeout(time.Second))
	assert.True(t, myerrors.Is(err, myerrors.Connection), "%v", err)
}

func TestParseTLSMode(t *testing.T) {
	for s, want := range map[string]client.TLSMode{
		"":                client.TLSDisabled,
		"required":        client.TLSRequired,
		"VERIFY_IDENTITY": client.TLSVerifyIdentity,
	} {
		mode, err := client.ParseTLSMode(s)
		require.NoError(t, err)
		assert.Equal(t, want, mode)
	}
	_, err := client.ParseTLSMode("preferred")
	assert.Error(t, err)
}
