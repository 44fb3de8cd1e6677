package binlog

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vczyh/mysql-cdc/flag"
	"github.com/vczyh/mysql-cdc/myerrors"
	"github.com/vczyh/mysql-cdc/mysql"
)

func ordersTable() *TableMapEvent {
	return &TableMapEvent{
		TableId:  108,
		Database: "shop",
		Table:    "orders",
		Columns: []Column{
			{Type: flag.MySQLTypeLong, Name: "id", IsPrimaryKey: true},
			{Type: flag.MySQLTypeLong, Name: "qty", Unsigned: true, Nullable: true},
			{Type: flag.MySQLTypeVarchar, Meta: 1020, Name: "note", Nullable: true, CollationId: 45},
			{Type: flag.MySQLTypeNewDecimal, Meta: 10<<8 | 2, Name: "price"},
			{Type: flag.MySQLTypeDatetime2, Meta: 3, Name: "created_at"},
			{Type: flag.MySQLTypeEnum, Meta: 1, Name: "status", EnumValues: []string{"new", "paid"}},
			{Type: flag.MySQLTypeBlob, Meta: 2, Name: "body", CollationId: 63},
			{Type: flag.MySQLTypeTime2, Name: "wait"},
		},
	}
}

func decodeTableMap(t *testing.T, p *Parser, table *TableMapEvent) *TableMapEvent {
	raw, err := NewEncoder(1, ChecksumAlgOff).Encode(table, 200)
	require.NoError(t, err)
	ev, err := p.Parse(raw, nil)
	require.NoError(t, err)
	tm, ok := ev.(*TableMapEvent)
	require.True(t, ok)
	return tm
}

func TestTableMapRoundTrip(t *testing.T) {
	want := ordersTable()
	got := decodeTableMap(t, NewParser(), want)

	assert.Equal(t, want.TableId, got.TableId)
	assert.Equal(t, "shop", got.Database)
	assert.Equal(t, "orders", got.Table)
	require.Len(t, got.Columns, len(want.Columns))
	assert.Equal(t, []string{"id", "qty", "note", "price", "created_at", "status", "body", "wait"}, got.ColumnNames())

	for i, w := range want.Columns {
		g := got.Columns[i]
		assert.Equal(t, w.Type, g.Type, w.Name)
		assert.Equal(t, w.Nullable, g.Nullable, w.Name)
		assert.Equal(t, w.Unsigned, g.Unsigned, w.Name)
		assert.Equal(t, w.CollationId, g.CollationId, w.Name)
		assert.Equal(t, w.IsPrimaryKey, g.IsPrimaryKey, w.Name)
		assert.False(t, g.IsInvisible, w.Name)
	}

	assert.Equal(t, uint32(1020), got.Columns[2].Meta)
	assert.Equal(t, uint32(10<<8|2), got.Columns[3].Meta)
	assert.Equal(t, "utf8mb4", got.Columns[2].Charset().Name())
	assert.True(t, got.Columns[6].IsBinary())

	status := got.Columns[5]
	assert.Equal(t, flag.MySQLTypeString, status.BinlogType)
	assert.Equal(t, 1, status.packLength())
	assert.Equal(t, []string{"new", "paid"}, status.EnumValues)
}

func TestTableMapWithoutOptionalMetadata(t *testing.T) {
	table := &TableMapEvent{
		TableId:  7,
		Database: "db",
		Table:    "t",
		Columns: []Column{
			{Type: flag.MySQLTypeLongLong},
			{Type: flag.MySQLTypeString, Meta: 20},
			{Type: flag.MySQLTypeBit, Meta: 1<<8 | 4},
		},
	}
	got := decodeTableMap(t, NewParser(), table)

	require.Len(t, got.Columns, 3)
	assert.Equal(t, uint64(0), got.Columns[1].CollationId)
	assert.Nil(t, got.Columns[1].Charset())
	assert.Equal(t, 20, got.Columns[1].maxLength())
	assert.Equal(t, uint32(1<<8|4), got.Columns[2].Meta)
	assert.Equal(t, []string{"", "", ""}, got.ColumnNames())
}

func TestColumnVisibility(t *testing.T) {
	table := &TableMapEvent{
		TableId: 9,
		Columns: []Column{
			{Type: flag.MySQLTypeLong},
			{Type: flag.MySQLTypeLong, IsInvisible: true},
		},
	}
	got := decodeTableMap(t, NewParser(), table)
	assert.False(t, got.Columns[0].IsInvisible)
	assert.True(t, got.Columns[1].IsInvisible)
}

func TestRowsUnknownTable(t *testing.T) {
	raw, err := NewEncoder(1, ChecksumAlgOff).Encode(&RowsEvent{
		Action:  ActionInsert,
		Version: 2,
		Table:   ordersTable(),
		Rows:    []RowImage{{After: Row{int32(1)}}},
	}, 500)
	require.NoError(t, err)

	_, err = NewParser().Parse(raw, NewTableCache())
	require.Error(t, err)
	assert.True(t, myerrors.Is(err, myerrors.UnknownTable))

	_, err = NewParser().Parse(raw, nil)
	assert.True(t, myerrors.Is(err, myerrors.UnknownTable))
}

func TestRows(t *testing.T) {
	price, err := decimal.NewFromString("12.50")
	require.NoError(t, err)
	createdAt := time.Date(2024, 3, 1, 10, 20, 30, 123000000, time.UTC)
	wait := -(time.Hour + 2*time.Minute + 3*time.Second)

	before := Row{int32(1), uint32(5), "hello", price, createdAt, int64(1), []byte{0xde, 0xad}, wait}
	after := Row{int32(1), nil, "world", price, createdAt, int64(2), []byte{0xbe, 0xef}, time.Duration(0)}

	p := NewParser()
	cache := NewTableCache()
	cache.Upsert(decodeTableMap(t, p, ordersTable()))

	enc := NewEncoder(1, ChecksumAlgOff)
	tests := []struct {
		action  RowsAction
		version int
		image   RowImage
	}{
		{ActionInsert, 2, RowImage{After: before}},
		{ActionUpdate, 2, RowImage{Before: before, After: after}},
		{ActionDelete, 1, RowImage{Before: after}},
	}
	for _, test := range tests {
		t.Run(test.action.String(), func(t *testing.T) {
			raw, err := enc.Encode(&RowsEvent{
				Action:  test.action,
				Version: test.version,
				Flags:   RowsFlagStmtEnd,
				Table:   ordersTable(),
				Rows:    []RowImage{test.image, test.image},
			}, 500)
			require.NoError(t, err)

			ev, err := p.Parse(raw, cache)
			require.NoError(t, err)
			rows, ok := ev.(*RowsEvent)
			require.True(t, ok)

			assert.Equal(t, test.action, rows.Action)
			assert.Equal(t, test.version, rows.Version)
			assert.Equal(t, uint64(108), rows.TableId)
			assert.Equal(t, RowsFlagStmtEnd, rows.Flags)
			assert.Equal(t, "orders", rows.Table.Table)
			require.Len(t, rows.Rows, 2)

			assertRow(t, test.image.Before, rows.Rows[0].Before)
			assertRow(t, test.image.After, rows.Rows[0].After)
		})
	}
}

func assertRow(t *testing.T, want, got Row) {
	t.Helper()
	if want == nil {
		assert.Nil(t, got)
		return
	}
	require.Len(t, got, len(want))
	for i := range want {
		if d, ok := want[i].(decimal.Decimal); ok {
			g, ok := got[i].(decimal.Decimal)
			require.True(t, ok, "column %d", i)
			assert.True(t, d.Equal(g), "column %d: %s != %s", i, d, g)
			continue
		}
		assert.Equal(t, want[i], got[i], "column %d", i)
	}
}

func TestRowsPartialImage(t *testing.T) {
	p := NewParser()
	cache := NewTableCache()
	cache.Upsert(decodeTableMap(t, p, ordersTable()))

	// minimal row image: only the primary key is logged
	present, err := mysql.NewBitSet(8)
	require.NoError(t, err)
	present.Set(0)
	raw, err := NewEncoder(1, ChecksumAlgOff).Encode(&RowsEvent{
		Action:             ActionDelete,
		Version:            2,
		Table:              ordersTable(),
		ColumnsBeforeImage: present,
		Rows:               []RowImage{{Before: Row{int32(77)}}},
	}, 500)
	require.NoError(t, err)

	ev, err := p.Parse(raw, cache)
	require.NoError(t, err)
	rows := ev.(*RowsEvent)
	require.Len(t, rows.Rows, 1)
	assert.Equal(t, Row{int32(77), nil, nil, nil, nil, nil, nil, nil}, rows.Rows[0].Before)
}

func TestRowsMoreColumnsThanTable(t *testing.T) {
	p := NewParser()
	cache := NewTableCache()
	small := &TableMapEvent{TableId: 108, Columns: []Column{{Type: flag.MySQLTypeLong}}}
	cache.Upsert(decodeTableMap(t, p, small))

	raw, err := NewEncoder(1, ChecksumAlgOff).Encode(&RowsEvent{
		Action:  ActionInsert,
		Version: 2,
		Table:   ordersTable(),
		Rows:    []RowImage{{After: Row{int32(1)}}},
	}, 500)
	require.NoError(t, err)

	_, err = p.Parse(raw, cache)
	assert.True(t, myerrors.Is(err, myerrors.Decode))
}

func TestTableCache(t *testing.T) {
	cache := NewTableCache()
	_, ok := cache.Lookup(1)
	assert.False(t, ok)

	cache.Upsert(&TableMapEvent{TableId: 1, Table: "a"})
	cache.Upsert(&TableMapEvent{TableId: 1, Table: "b"})
	cache.Upsert(&TableMapEvent{TableId: 2, Table: "c"})
	assert.Equal(t, 2, cache.Len())

	tm, ok := cache.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, "b", tm.Table)

	cache.Clear()
	assert.Equal(t, 0, cache.Len())
}
