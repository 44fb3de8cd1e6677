package replica

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/vczyh/mysql-cdc/auth"
	"github.com/vczyh/mysql-cdc/binlog"
	"github.com/vczyh/mysql-cdc/flag"
	"github.com/vczyh/mysql-cdc/myerrors"
	"github.com/vczyh/mysql-cdc/position"
	"github.com/vczyh/mysql-cdc/server"
)

const firstFile = "mysql-bin.000001"

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startSource(t *testing.T, opts ...server.Option) *server.Server {
	users := server.NewMemoryUserProvider()
	require.NoError(t, users.Create(&server.CreateUserRequest{
		User:     "repl",
		Password: "repl-pw",
		Method:   auth.CachingSha2Password,
	}))

	opts = append([]server.Option{server.WithPort(0), server.WithUserProvider(users)}, opts...)
	s := server.NewServer(opts...)
	require.NoError(t, s.Start())
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func newReplica(t *testing.T, s *server.Server, opts ...Option) *Replica {
	opts = append([]Option{
		WithHost("127.0.0.1"),
		WithPort(s.Port()),
		WithUser("repl"),
		WithPassword("repl-pw"),
		WithServerId(100),
		WithBackoff(10*time.Millisecond, 50*time.Millisecond),
		WithLogger(zaptest.NewLogger(t)),
	}, opts...)
	r := NewReplica(opts...)
	t.Cleanup(func() {
		_ = r.Close()
	})
	return r
}

func start(t *testing.T, r *Replica) *Streamer {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	st, err := r.Start(ctx)
	require.NoError(t, err)
	return st
}

func next(t *testing.T, st *Streamer) binlog.Event {
	t.Helper()
	require.True(t, st.HasNext(), "stream ended: %v", st.Err())
	return st.Next()
}

// nextOf skips events until one of type T.
func nextOf[T binlog.Event](t *testing.T, st *Streamer) T {
	t.Helper()
	for {
		if e, ok := next(t, st).(T); ok {
			return e
		}
	}
}

func drain(st *Streamer) []binlog.Event {
	var events []binlog.Event
	for st.HasNext() {
		events = append(events, st.Next())
	}
	return events
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

func insertRows(table *binlog.TableMapEvent, id int32, note string) *binlog.RowsEvent {
	return &binlog.RowsEvent{
		Action:  binlog.ActionInsert,
		Version: 2,
		Table:   table,
		Rows:    []binlog.RowImage{{After: binlog.Row{id, note}}},
	}
}

func commitInsert(t *testing.T, s *server.Server, id int32, note string) string {
	table := ordersTable()
	gtid, err := s.Binlog().Commit("shop", table, insertRows(table, id, note))
	require.NoError(t, err)
	return gtid
}

func TestStreamNonBlocking(t *testing.T) {
	s := startSource(t)
	commitInsert(t, s, 1, "first")

	reg := prometheus.NewRegistry()
	r := newReplica(t, s, FromPosition(firstFile, 4), WithBlocking(false), WithRegisterer(reg))
	st := start(t, r)

	events := drain(st)
	require.NoError(t, st.Err())
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

	rows := events[6].(*binlog.RowsEvent)
	assert.Equal(t, "orders", rows.Table.Table)
	assert.Equal(t, binlog.Row{int32(1), "first"}, rows.Rows[0].After)

	// the end of the stream accepts the last transaction
	name, size, _ := s.Binlog().Status()
	assert.Equal(t, position.Position{Name: name, Pos: size}, r.Position())
	assert.Equal(t, StateClosed, r.State())
	assert.NoError(t, r.Close())

	source := r.metrics.source
	assert.Equal(t, float64(1), testutil.ToFloat64(r.metrics.events.WithLabelValues(source, binlog.EventTypeXid.String())))
	assert.Greater(t, testutil.ToFloat64(r.metrics.bytes.WithLabelValues(source)), float64(0))
	assert.Equal(t, float64(StateClosed), testutil.ToFloat64(r.metrics.state.WithLabelValues(source)))
	assert.Equal(t, float64(0), testutil.ToFloat64(r.metrics.reconnects.WithLabelValues(source)))
}

func TestStreamRowChanges(t *testing.T) {
	s := startSource(t)
	table := ordersTable()
	rows := func(action binlog.RowsAction, image binlog.RowImage) *binlog.RowsEvent {
		return &binlog.RowsEvent{Action: action, Version: 2, Table: table, Rows: []binlog.RowImage{image}}
	}
	_, err := s.Binlog().Commit("shop",
		table,
		rows(binlog.ActionInsert, binlog.RowImage{After: binlog.Row{int32(1), "a"}}),
		rows(binlog.ActionUpdate, binlog.RowImage{Before: binlog.Row{int32(1), "a"}, After: binlog.Row{int32(1), "b"}}),
		rows(binlog.ActionDelete, binlog.RowImage{Before: binlog.Row{int32(1), "b"}}))
	require.NoError(t, err)

	r := newReplica(t, s, FromPosition(firstFile, 4), WithBlocking(false))
	st := start(t, r)

	var changes []string
	for _, e := range drain(st) {
		switch e := e.(type) {
		case *binlog.TableMapEvent:
			changes = append(changes, "table "+e.Database+"."+e.Table)
		case *binlog.RowsEvent:
			for _, row := range e.Rows {
				changes = append(changes, fmt.Sprintf("%s %v -> %v", e.Action, row.Before, row.After))
			}
		}
	}
	require.NoError(t, st.Err())
	assert.Equal(t, []string{
		"table shop.orders",
		"INSERT [] -> [1 a]",
		"UPDATE [1 a] -> [1 b]",
		"DELETE [1 b] -> []",
	}, changes)
}

func TestStreamFromGTID(t *testing.T) {
	s := startSource(t)
	first := commitInsert(t, s, 1, "first")
	second := commitInsert(t, s, 2, "second")

	executed, err := position.ParseGTIDSet(first)
	require.NoError(t, err)
	r := newReplica(t, s, FromGTID(executed), WithBlocking(false))
	st := start(t, r)

	var gtids []string
	var ids []interface{}
	for _, ev := range drain(st) {
		switch e := ev.(type) {
		case *binlog.GTIDEvent:
			gtids = append(gtids, e.GTID())
		case *binlog.RowsEvent:
			ids = append(ids, e.Rows[0].After[0])
		}
	}
	require.NoError(t, st.Err())
	assert.Equal(t, []string{second}, gtids)
	assert.Equal(t, []interface{}{int32(2)}, ids)

	want, err := position.ParseGTIDSet(first + "," + second)
	require.NoError(t, err)
	pos := r.Position()
	require.True(t, pos.IsGTID())
	assert.True(t, want.Equal(pos.GTIDSet), "%s", pos.GTIDSet)
	assert.Equal(t, firstFile, pos.Name)
}

func TestStreamFromEnd(t *testing.T) {
	s := startSource(t)
	commitInsert(t, s, 1, "first")
	name, size, _ := s.Binlog().Status()

	r := newReplica(t, s, WithHeartbeatInterval(200*time.Millisecond))
	st := start(t, r)
	assert.Equal(t, position.Position{Name: name, Pos: size}, r.Position())
	assert.Equal(t, StateStreaming, r.State())

	commitInsert(t, s, 2, "second")
	rows := nextOf[*binlog.RowsEvent](t, st)
	assert.Equal(t, binlog.Row{int32(2), "second"}, rows.Rows[0].After)
	xid := nextOf[*binlog.XidEvent](t, st)

	// the next event, a heartbeat at the latest, accepts the transaction
	next(t, st)
	assert.Equal(t, position.Position{Name: name, Pos: xid.LogPos}, r.Position())
}

func TestHeartbeatTimeoutReconnects(t *testing.T) {
	s := startSource(t)
	reg := prometheus.NewRegistry()
	r := newReplica(t, s,
		FromPosition(firstFile, 4),
		WithHeartbeatInterval(200*time.Millisecond),
		WithRegisterer(reg))
	st := start(t, r)

	nextOf[*binlog.HeartbeatEvent](t, st)

	s.SuspendHeartbeats(true)
	// silence for two periods drops the connection, and the new dump
	// starts with a rotate
	rotate := nextOf[*binlog.RotateEvent](t, st)
	assert.True(t, rotate.IsFake())
	assert.Equal(t, float64(1), testutil.ToFloat64(r.metrics.reconnects.WithLabelValues(r.metrics.source)))
	assert.Equal(t, StateStreaming, r.State())

	s.SuspendHeartbeats(false)
	commitInsert(t, s, 1, "after reconnect")
	rows := nextOf[*binlog.RowsEvent](t, st)
	assert.Equal(t, binlog.Row{int32(1), "after reconnect"}, rows.Rows[0].After)
}

func TestReconnectResumesAfterLastTransaction(t *testing.T) {
	s := startSource(t)
	commitInsert(t, s, 1, "first")

	r := newReplica(t, s, FromPosition(firstFile, 4), WithHeartbeatInterval(0))
	st := start(t, r)
	rows := nextOf[*binlog.RowsEvent](t, st)
	assert.Equal(t, int32(1), rows.Rows[0].After[0])
	nextOf[*binlog.XidEvent](t, st)

	s.CloseConnections()
	commitInsert(t, s, 2, "second")

	// the first transaction was accepted, so it is not delivered again
	rows = nextOf[*binlog.RowsEvent](t, st)
	assert.Equal(t, int32(2), rows.Rows[0].After[0])
	assert.Equal(t, StateStreaming, r.State())
	assert.Equal(t, float64(1), testutil.ToFloat64(r.metrics.reconnects.WithLabelValues(r.metrics.source)))
}

func TestUnknownTable(t *testing.T) {
	s := startSource(t)
	// a rows event without its table map
	_, err := s.Binlog().Commit("shop", insertRows(ordersTable(), 1, "orphan"))
	require.NoError(t, err)

	t.Run("fail", func(t *testing.T) {
		r := newReplica(t, s, FromPosition(firstFile, 4), WithBlocking(false))
		st := start(t, r)

		events := drain(st)
		assert.Equal(t, binlog.EventTypeQuery, events[len(events)-1].Header().EventType)
		assert.True(t, myerrors.Is(st.Err(), myerrors.UnknownTable), "%v", st.Err())
	})

	t.Run("skip", func(t *testing.T) {
		r := newReplica(t, s, FromPosition(firstFile, 4), WithBlocking(false), WithUnknownTablePolicy(UnknownTableSkip))
		st := start(t, r)

		unhandled := nextOf[*binlog.UnhandledEvent](t, st)
		assert.Equal(t, binlog.EventTypeWriteRowsV2, unhandled.EventType)
		nextOf[*binlog.XidEvent](t, st)
		assert.False(t, st.HasNext())
		assert.NoError(t, st.Err())
	})
}

func TestCloseStopsBlockedStream(t *testing.T) {
	s := startSource(t)
	r := newReplica(t, s, FromPosition(firstFile, 4), WithHeartbeatInterval(0))
	st := start(t, r)
	nextOf[*binlog.PreviousGTIDsEvent](t, st)

	hasNext := make(chan bool)
	go func() {
		hasNext <- st.HasNext()
	}()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, r.Close())
	assert.False(t, <-hasNext)
	assert.NoError(t, st.Err())
	assert.Equal(t, StateClosed, r.State())
	// closing twice is harmless
	assert.NoError(t, r.Close())
}

func TestContextCancelStopsStream(t *testing.T) {
	s := startSource(t)
	r := newReplica(t, s, FromPosition(firstFile, 4), WithHeartbeatInterval(0))

	ctx, cancel := context.WithCancel(context.Background())
	st, err := r.Start(ctx)
	require.NoError(t, err)
	nextOf[*binlog.PreviousGTIDsEvent](t, st)

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	assert.False(t, st.HasNext())
	assert.NoError(t, st.Err())
	require.NoError(t, r.Close())
}

func TestStartErrors(t *testing.T) {
	id := uuid.New()
	s := startSource(t, server.WithServerId(7), server.WithServerUUID(id))

	t.Run("wrong password", func(t *testing.T) {
		r := newReplica(t, s, WithPassword("nope"))
		_, err := r.Start(context.Background())
		assert.True(t, myerrors.Is(err, myerrors.Auth), "%v", err)
		assert.Equal(t, StateClosed, r.State())
	})

	t.Run("same server id", func(t *testing.T) {
		r := newReplica(t, s, WithServerId(7))
		_, err := r.Start(context.Background())
		assert.ErrorIs(t, err, ErrSameServerId)
		assert.True(t, myerrors.Is(err, myerrors.Protocol), "%v", err)
	})

	t.Run("same server uuid", func(t *testing.T) {
		r := newReplica(t, s, WithUUID(id.String()))
		_, err := r.Start(context.Background())
		assert.ErrorIs(t, err, ErrSameServerUUID)
	})

	t.Run("purged file", func(t *testing.T) {
		r := newReplica(t, s, FromPosition("mysql-bin.000042", 4))
		_, err := r.Start(context.Background())
		assert.True(t, myerrors.Is(err, myerrors.Protocol), "%v", err)
	})

	t.Run("started twice", func(t *testing.T) {
		r := newReplica(t, s, WithHeartbeatInterval(0))
		start(t, r)
		_, err := r.Start(context.Background())
		assert.ErrorIs(t, err, ErrStarted)
	})
}

func TestConnectRetriesAreBounded(t *testing.T) {
	s := startSource(t)
	port := s.Port()
	require.NoError(t, s.Close())

	r := NewReplica(
		WithPort(port),
		WithUser("repl"),
		WithMaxRetries(2),
		WithBackoff(time.Millisecond, time.Millisecond))
	_, err := r.Start(context.Background())
	assert.True(t, myerrors.Is(err, myerrors.Connection), "%v", err)
	assert.True(t, myerrors.Retryable(err))
	assert.Equal(t, StateClosed, r.State())
	assert.NoError(t, r.Close())

	_, err = r.Start(context.Background())
	assert.ErrorIs(t, err, ErrStarted)
}

func TestSessionErrorKinds(t *testing.T) {
	err := setupError("set", errors.New("boom"))
	assert.True(t, myerrors.Is(err, myerrors.Protocol))

	err = setupError("set", myerrors.NewConnection("exec", errors.New("reset")))
	assert.True(t, myerrors.Is(err, myerrors.Connection))
}
