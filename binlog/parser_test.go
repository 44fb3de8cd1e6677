package binlog

import (
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vczyh/mysql-cdc/myerrors"
	"github.com/vczyh/mysql-cdc/position"
)

func TestFormatDescription(t *testing.T) {
	for _, alg := range []ChecksumAlgorithm{ChecksumAlgOff, ChecksumAlgCRC32} {
		t.Run(alg.String(), func(t *testing.T) {
			raw, err := NewEncoder(7, alg).Encode(&FormatDescriptionEvent{
				EventHeader:   EventHeader{Timestamp: 1700000000},
				ServerVersion: "8.0.36-log",
			}, 4)
			require.NoError(t, err)

			// the parser starts without checksums, the event brings its own
			ev, err := NewParser().Parse(raw, nil)
			require.NoError(t, err)
			fde, ok := ev.(*FormatDescriptionEvent)
			require.True(t, ok)

			assert.Equal(t, alg, fde.ChecksumAlg)
			assert.Equal(t, uint16(4), fde.BinlogVersion)
			assert.Equal(t, "8.0.36-log", fde.ServerVersion)
			assert.Equal(t, uint32(7), fde.ServerId)
			assert.Equal(t, uint32(len(raw)), fde.EventSize)
			assert.Equal(t, uint32(4+len(raw)), fde.LogPos)
			assert.Equal(t, defaultPostHeaderLens, fde.PostHeaderLens)
		})
	}
}

func TestChecksum(t *testing.T) {
	raw, err := NewEncoder(1, ChecksumAlgCRC32).Encode(&XidEvent{XID: 42}, 1000)
	require.NoError(t, err)
	require.Len(t, raw, EventHeaderLen+8+ChecksumLen)

	p := NewParser()
	p.SetChecksum(ChecksumAlgCRC32)
	ev, err := p.Parse(raw, nil)
	require.NoError(t, err)
	xid, ok := ev.(*XidEvent)
	require.True(t, ok)
	assert.Equal(t, uint64(42), xid.XID)
	assert.Equal(t, uint32(1031), xid.LogPos)

	raw[EventHeaderLen] ^= 0xff
	_, err = p.Parse(raw, nil)
	require.Error(t, err)
	assert.True(t, myerrors.Is(err, myerrors.Decode))
	assert.True(t, errors.Is(err, ErrChecksumMismatch))
}

func TestTruncatedEvent(t *testing.T) {
	_, err := NewParser().Parse([]byte{0x01, 0x02}, nil)
	assert.True(t, myerrors.Is(err, myerrors.Decode))

	raw, err := NewEncoder(1, ChecksumAlgOff).Encode(&XidEvent{XID: 42}, 1000)
	require.NoError(t, err)
	_, err = NewParser().Parse(raw[:len(raw)-3], nil)
	assert.True(t, myerrors.Is(err, myerrors.Decode))
}

func TestRotate(t *testing.T) {
	raw, err := NewEncoder(1, ChecksumAlgOff).Encode(&RotateEvent{Position: 4, Name: "mysql-bin.000002"}, 0)
	require.NoError(t, err)

	ev, err := NewParser().Parse(raw, nil)
	require.NoError(t, err)
	rotate, ok := ev.(*RotateEvent)
	require.True(t, ok)
	assert.Equal(t, uint64(4), rotate.Position)
	assert.Equal(t, "mysql-bin.000002", rotate.Name)
	assert.True(t, rotate.IsFake())
}

func TestQueryKind(t *testing.T) {
	p := NewParser()
	require.NotNil(t, p.sqlParser)
	tests := []struct {
		query string
		kind  QueryKind
	}{
		{"BEGIN", QueryBegin},
		{"COMMIT", QueryCommit},
		{"ROLLBACK", QueryRollback},
		{"CREATE TABLE t (id INT PRIMARY KEY)", QueryDDL},
		{"ALTER TABLE t ADD COLUMN c INT", QueryDDL},
		{"DROP TABLE IF EXISTS t", QueryDDL},
		{"TRUNCATE TABLE t", QueryDDL},
		{"INSERT INTO t VALUES (1)", QueryOther},
	}
	for _, test := range tests {
		assert.Equal(t, test.kind, p.classify(test.query), test.query)
	}

	assert.Equal(t, QueryDDL, classifyByKeyword("create definer=`root`@`%` trigger tr before insert on t for each row set @x = 1"))
	assert.Equal(t, QueryBegin, classifyByKeyword("  begin"))
	assert.Equal(t, QueryOther, classifyByKeyword("XA START 'x'"))

	assert.True(t, QueryCommit.EndsTransaction())
	assert.True(t, QueryDDL.EndsTransaction())
	assert.False(t, QueryBegin.EndsTransaction())
}

func TestQueryEvent(t *testing.T) {
	raw, err := NewEncoder(1, ChecksumAlgOff).Encode(&QueryEvent{
		ThreadId:      9,
		Database:      "shop",
		Query:         "ALTER TABLE orders ADD COLUMN note VARCHAR(255)",
		CharsetClient: 45,
		TimeZone:      "SYSTEM",
	}, 120)
	require.NoError(t, err)

	ev, err := NewParser().Parse(raw, nil)
	require.NoError(t, err)
	query, ok := ev.(*QueryEvent)
	require.True(t, ok)
	assert.Equal(t, uint32(9), query.ThreadId)
	assert.Equal(t, "shop", query.Database)
	assert.Equal(t, "ALTER TABLE orders ADD COLUMN note VARCHAR(255)", query.Query)
	assert.Equal(t, uint16(45), query.CharsetClient)
	assert.Equal(t, "SYSTEM", query.TimeZone)
	assert.Equal(t, QueryDDL, query.Kind)
}

func TestGTIDEvents(t *testing.T) {
	sid := uuid.MustParse("3E11FA47-71CA-11E1-9E33-C80AA9429562")
	enc := NewEncoder(1, ChecksumAlgCRC32)
	p := NewParser()
	p.SetChecksum(ChecksumAlgCRC32)

	raw, err := enc.Encode(&GTIDEvent{
		SID:                      sid,
		GNO:                      23,
		LastCommitted:            4,
		SequenceNumber:           5,
		ImmediateCommitTimestamp: 1700000000000000,
		TransactionLength:        300,
	}, 200)
	require.NoError(t, err)
	ev, err := p.Parse(raw, nil)
	require.NoError(t, err)
	gtid, ok := ev.(*GTIDEvent)
	require.True(t, ok)
	assert.Equal(t, "3e11fa47-71ca-11e1-9e33-c80aa9429562:23", gtid.GTID())
	assert.False(t, gtid.Anonymous)
	assert.Equal(t, int64(5), gtid.SequenceNumber)
	assert.Equal(t, uint64(1700000000000000), gtid.OriginalCommitTimestamp)
	assert.Equal(t, uint64(300), gtid.TransactionLength)
	assert.Equal(t, uint32(UndefinedServerVersion), gtid.OriginalServerVersion)

	set, err := position.ParseGTIDSet("3e11fa47-71ca-11e1-9e33-c80aa9429562:1-5:7")
	require.NoError(t, err)
	raw, err = enc.Encode(&PreviousGTIDsEvent{GTIDSet: set}, 150)
	require.NoError(t, err)
	ev, err = p.Parse(raw, nil)
	require.NoError(t, err)
	previous, ok := ev.(*PreviousGTIDsEvent)
	require.True(t, ok)
	assert.True(t, set.Equal(previous.GTIDSet))
}

func TestHeartbeat(t *testing.T) {
	enc := NewEncoder(1, ChecksumAlgOff)
	for _, eventType := range []EventType{EventTypeHeartbeat, EventTypeHeartbeatV2} {
		raw, err := enc.Encode(&HeartbeatEvent{
			EventHeader: EventHeader{EventType: eventType, LogPos: 1234},
			LogIdent:    "mysql-bin.000003",
		}, 0)
		require.NoError(t, err)

		ev, err := NewParser().Parse(raw, nil)
		require.NoError(t, err)
		heartbeat, ok := ev.(*HeartbeatEvent)
		require.True(t, ok)
		assert.Equal(t, eventType, heartbeat.EventType)
		assert.Equal(t, "mysql-bin.000003", heartbeat.LogIdent)
		assert.Equal(t, uint32(1234), heartbeat.LogPos)
	}
}

func TestUnhandledEvent(t *testing.T) {
	raw, err := NewEncoder(1, ChecksumAlgOff).Encode(&UnhandledEvent{
		EventHeader: EventHeader{EventType: EventTypeUserVar},
		Data:        []byte{1, 2, 3},
	}, 300)
	require.NoError(t, err)

	ev, err := NewParser().Parse(raw, nil)
	require.NoError(t, err)
	unhandled, ok := ev.(*UnhandledEvent)
	require.True(t, ok)
	assert.Equal(t, EventTypeUserVar, unhandled.EventType)
	assert.Equal(t, []byte{1, 2, 3}, unhandled.Data)
}

func TestEventVariantsOnly(t *testing.T) {
	var e interface{} = &RotateEvent{}
	_, ok := e.(Event)
	assert.True(t, ok)

	// embedding the header alone does not make an Event
	e = &struct{ EventHeader }{}
	_, ok = e.(Event)
	assert.False(t, ok)
}
