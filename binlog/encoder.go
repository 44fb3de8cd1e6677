package binlog

import (
	"hash/crc32"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vczyh/mysql-cdc/flag"
	"github.com/vczyh/mysql-cdc/mysql"
	"github.com/vczyh/mysql-cdc/packet"
)

// Encoder writes events in the binlog version 4 format, the way a source
// sends them on a dump connection.
type Encoder struct {
	serverId uint32
	checksum ChecksumAlgorithm
}

func NewEncoder(serverId uint32, checksum ChecksumAlgorithm) *Encoder {
	return &Encoder{serverId: serverId, checksum: checksum}
}

func (enc *Encoder) Checksum() ChecksumAlgorithm {
	return enc.checksum
}

// Encode returns the event bytes, header and checksum included, without the
// 0x00 packet marker. pos is the offset the event starts at in its binlog
// file. The header's LogPos becomes the offset of the next event, or 0 when
// pos is 0, which marks an artificial event.
func (enc *Encoder) Encode(ev Event, pos uint32) ([]byte, error) {
	h := *ev.Header()
	if h.ServerId == 0 {
		h.ServerId = enc.serverId
	}

	var body []byte
	var err error
	switch e := ev.(type) {
	case *FormatDescriptionEvent:
		h.EventType = EventTypeFormatDescription
		body = enc.formatDescriptionBody(e)
	case *RotateEvent:
		h.EventType = EventTypeRotate
		body = append(packet.FixedLengthInteger.Dump(e.Position, 8), e.Name...)
	case *PreviousGTIDsEvent:
		h.EventType = EventTypePreviousGTIDs
		if e.GTIDSet != nil {
			body = e.GTIDSet.Encode()
		} else {
			body = packet.FixedLengthInteger.Dump(0, 8)
		}
	case *GTIDEvent:
		h.EventType = EventTypeGTID
		if e.Anonymous {
			h.EventType = EventTypeAnonymousGTID
		}
		body = gtidBody(e)
	case *QueryEvent:
		h.EventType = EventTypeQuery
		body = queryBody(e)
	case *XidEvent:
		h.EventType = EventTypeXid
		body = packet.FixedLengthInteger.Dump(e.XID, 8)
	case *HeartbeatEvent:
		if h.EventType != EventTypeHeartbeatV2 {
			h.EventType = EventTypeHeartbeat
		}
		body = heartbeatBody(h, e)
	case *TableMapEvent:
		h.EventType = EventTypeTableMap
		body, err = tableMapBody(e)
	case *RowsEvent:
		h.EventType = rowsEventType(e.Action, e.Version)
		body, err = rowsBody(e)
	case *UnhandledEvent:
		body = e.Data
	default:
		return nil, errors.Errorf("binlog: cannot encode %T", ev)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s", h.EventType)
	}

	withChecksum := enc.checksum == ChecksumAlgCRC32 || h.EventType == EventTypeFormatDescription
	size := EventHeaderLen + len(body)
	if withChecksum {
		size += ChecksumLen
	}
	h.EventSize = uint32(size)
	if h.EventType != EventTypeHeartbeat && h.EventType != EventTypeHeartbeatV2 {
		h.LogPos = 0
		if pos != 0 {
			h.LogPos = pos + uint32(size)
		}
	}

	dump := make([]byte, 0, size)
	dump = append(dump, h.dump()...)
	dump = append(dump, body...)
	if withChecksum {
		var sum uint32
		if enc.checksum == ChecksumAlgCRC32 {
			sum = crc32.ChecksumIEEE(dump)
		}
		dump = append(dump, packet.FixedLengthInteger.Dump(uint64(sum), ChecksumLen)...)
	}
	return dump, nil
}

func (enc *Encoder) formatDescriptionBody(e *FormatDescriptionEvent) []byte {
	binlogVersion := e.BinlogVersion
	if binlogVersion == 0 {
		binlogVersion = 4
	}
	serverVersion := e.ServerVersion
	if serverVersion == "" {
		serverVersion = DefaultFormatDescription().ServerVersion
	}
	lens := e.PostHeaderLens
	if len(lens) == 0 {
		lens = defaultPostHeaderLens
	}

	version := make([]byte, serverVersionLen)
	copy(version, serverVersion)

	body := packet.FixedLengthInteger.Dump(uint64(binlogVersion), 2)
	body = append(body, version...)
	body = append(body, packet.FixedLengthInteger.Dump(uint64(e.CreateTimestamp), 4)...)
	body = append(body, EventHeaderLen)
	body = append(body, lens...)
	return append(body, byte(enc.checksum))
}

func gtidBody(e *GTIDEvent) []byte {
	body := []byte{e.Flags}
	body = append(body, e.SID[:]...)
	body = append(body, packet.FixedLengthInteger.Dump(uint64(e.GNO), 8)...)

	// logical timestamps
	body = append(body, 2)
	body = append(body, packet.FixedLengthInteger.Dump(uint64(e.LastCommitted), 8)...)
	body = append(body, packet.FixedLengthInteger.Dump(uint64(e.SequenceNumber), 8)...)

	if e.ImmediateCommitTimestamp == 0 {
		return body
	}
	if e.OriginalCommitTimestamp != 0 && e.OriginalCommitTimestamp != e.ImmediateCommitTimestamp {
		body = append(body, packet.FixedLengthInteger.Dump(e.ImmediateCommitTimestamp|1<<55, 7)...)
		body = append(body, packet.FixedLengthInteger.Dump(e.OriginalCommitTimestamp, 7)...)
	} else {
		body = append(body, packet.FixedLengthInteger.Dump(e.ImmediateCommitTimestamp, 7)...)
	}

	body = append(body, packet.LengthEncodedInteger.Dump(e.TransactionLength)...)

	immediate := e.ImmediateServerVersion
	if immediate == 0 {
		immediate = UndefinedServerVersion
	}
	if e.OriginalServerVersion != 0 && e.OriginalServerVersion != immediate {
		body = append(body, packet.FixedLengthInteger.Dump(uint64(immediate|1<<31), 4)...)
		body = append(body, packet.FixedLengthInteger.Dump(uint64(e.OriginalServerVersion), 4)...)
	} else {
		body = append(body, packet.FixedLengthInteger.Dump(uint64(immediate), 4)...)
	}
	return body
}

func queryBody(e *QueryEvent) []byte {
	statusVars := []byte{byte(QueryStatusVarsFlags2)}
	statusVars = append(statusVars, packet.FixedLengthInteger.Dump(uint64(e.Flags2), 4)...)
	statusVars = append(statusVars, byte(QueryStatusVarsSQLMode))
	statusVars = append(statusVars, packet.FixedLengthInteger.Dump(uint64(e.SQLMode), 8)...)
	if e.Catalog != "" {
		statusVars = append(statusVars, byte(QueryStatusVarsCatalogNz), byte(len(e.Catalog)))
		statusVars = append(statusVars, e.Catalog...)
	}
	if e.AutoIncrementIncrement > 1 || e.AutoIncrementOffset > 1 {
		statusVars = append(statusVars, byte(QueryStatusVarsAutoIncrement))
		statusVars = append(statusVars, packet.FixedLengthInteger.Dump(uint64(e.AutoIncrementIncrement), 2)...)
		statusVars = append(statusVars, packet.FixedLengthInteger.Dump(uint64(e.AutoIncrementOffset), 2)...)
	}
	if e.CharsetClient != 0 {
		statusVars = append(statusVars, byte(QueryStatusVarsCharset))
		statusVars = append(statusVars, packet.FixedLengthInteger.Dump(uint64(e.CharsetClient), 2)...)
		statusVars = append(statusVars, packet.FixedLengthInteger.Dump(uint64(e.CollationConnection), 2)...)
		statusVars = append(statusVars, packet.FixedLengthInteger.Dump(uint64(e.CollationServer), 2)...)
	}
	if e.TimeZone != "" {
		statusVars = append(statusVars, byte(QueryStatusVarsTimeZone), byte(len(e.TimeZone)))
		statusVars = append(statusVars, e.TimeZone...)
	}

	body := packet.FixedLengthInteger.Dump(uint64(e.ThreadId), 4)
	body = append(body, packet.FixedLengthInteger.Dump(uint64(e.ExecTime), 4)...)
	body = append(body, byte(len(e.Database)))
	body = append(body, packet.FixedLengthInteger.Dump(uint64(e.ErrCode), 2)...)
	body = append(body, packet.FixedLengthInteger.Dump(uint64(len(statusVars)), 2)...)
	body = append(body, statusVars...)
	body = append(body, e.Database...)
	body = append(body, 0x00)
	return append(body, e.Query...)
}

func heartbeatBody(h EventHeader, e *HeartbeatEvent) []byte {
	if h.EventType == EventTypeHeartbeat {
		return []byte(e.LogIdent)
	}
	body := []byte{heartbeatV2LogFilename}
	body = append(body, packet.LengthEncodedString.Dump([]byte(e.LogIdent))...)
	body = append(body, heartbeatV2LogPosition)
	return append(body, packet.LengthEncodedString.Dump(packet.LengthEncodedInteger.Dump(uint64(h.LogPos)))...)
}

func rowsEventType(action RowsAction, version int) EventType {
	v1 := version == 1
	switch action {
	case ActionInsert:
		if v1 {
			return EventTypeWriteRowsV1
		}
		return EventTypeWriteRowsV2
	case ActionUpdate:
		if v1 {
			return EventTypeUpdateRowsV1
		}
		return EventTypeUpdateRowsV2
	default:
		if v1 {
			return EventTypeDeleteRowsV1
		}
		return EventTypeDeleteRowsV2
	}
}

// binlogType returns the type written to the table map, ENUM and SET are
// logged as STRING.
func (c *Column) binlogType() flag.TableColumnType {
	if c.BinlogType != flag.MySQLTypeDecimal {
		return c.BinlogType
	}
	if c.Type.IsEnumSet() {
		return flag.MySQLTypeString
	}
	return c.Type
}

// binlogMeta returns Meta as logged, with the real type folded into the
// metadata of ENUM and SET columns.
func (c *Column) binlogMeta() uint32 {
	if c.Type.IsEnumSet() && c.Meta < 256 {
		return uint32(c.Type)<<8 | c.Meta
	}
	return c.Meta
}

func tableMapBody(e *TableMapEvent) ([]byte, error) {
	body := packet.FixedLengthInteger.Dump(e.TableId, 6)
	body = append(body, packet.FixedLengthInteger.Dump(uint64(e.Flags), 2)...)
	body = append(body, byte(len(e.Database)))
	body = append(body, packet.NulTerminatedString.Dump([]byte(e.Database))...)
	body = append(body, byte(len(e.Table)))
	body = append(body, packet.NulTerminatedString.Dump([]byte(e.Table))...)
	body = append(body, packet.LengthEncodedInteger.Dump(uint64(len(e.Columns)))...)

	var metadata []byte
	for i := range e.Columns {
		c := &e.Columns[i]
		t := c.binlogType()
		meta := c.binlogMeta()
		if c.IsArray {
			body = append(body, byte(flag.MySQLTypeTypedArray))
			metadata = append(metadata, byte(t))
		} else {
			body = append(body, byte(t))
		}

		switch t {
		case flag.MySQLTypeFloat,
			flag.MySQLTypeDouble,
			flag.MySQLTypeTime2,
			flag.MySQLTypeTimestamp2,
			flag.MySQLTypeDatetime2,
			flag.MySQLTypeBlob,
			flag.MySQLTypeTinyBlob,
			flag.MySQLTypeMediumBlob,
			flag.MySQLTypeLongBlob,
			flag.MySQLTypeGeometry,
			flag.MySQLTypeJson:
			metadata = append(metadata, byte(meta))
		case flag.MySQLTypeString,
			flag.MySQLTypeNewDecimal,
			flag.MySQLTypeEnum,
			flag.MySQLTypeSet:
			metadata = append(metadata, bigEndian(uint64(meta), 2)...)
		case flag.MySQLTypeBit:
			metadata = append(metadata, packet.FixedLengthInteger.Dump(uint64(meta), 2)...)
		case flag.MySQLTypeVarchar,
			flag.MySQLTypeVarString:
			if c.IsArray {
				metadata = append(metadata, packet.FixedLengthInteger.Dump(uint64(meta), 3)...)
			} else {
				metadata = append(metadata, packet.FixedLengthInteger.Dump(uint64(meta), 2)...)
			}
		}
	}
	body = append(body, packet.LengthEncodedString.Dump(metadata)...)

	nullable, err := mysql.NewBitSet(len(e.Columns))
	if err != nil {
		return nil, err
	}
	for i := range e.Columns {
		nullable.SetValue(i, e.Columns[i].Nullable)
	}
	body = append(body, nullable.Bytes()...)

	return append(body, e.optionalMetadata()...), nil
}

func (e *TableMapEvent) optionalMetadata() []byte {
	var dump []byte
	field := func(t OptionalMetadataFieldType, value []byte) {
		dump = append(dump, byte(t))
		dump = append(dump, packet.LengthEncodedString.Dump(value)...)
	}

	var signedness []bool
	var collations, names, enums, sets, primaryKey []byte
	var hasCollation, hasName, hasInvisible bool
	var visibility []bool
	for i := range e.Columns {
		c := &e.Columns[i]
		if c.Type.HasSignedness() {
			signedness = append(signedness, c.Unsigned)
		}
		if c.Type.IsCharacter() {
			hasCollation = hasCollation || c.CollationId != 0
			collations = append(collations, packet.LengthEncodedInteger.Dump(c.CollationId)...)
		}
		hasName = hasName || c.Name != ""
		names = append(names, packet.LengthEncodedString.Dump([]byte(c.Name))...)
		switch c.Type {
		case flag.MySQLTypeEnum:
			enums = append(enums, strValues(c.EnumValues)...)
		case flag.MySQLTypeSet:
			sets = append(sets, strValues(c.SetValues)...)
		}
		if c.IsPrimaryKey {
			primaryKey = append(primaryKey, packet.LengthEncodedInteger.Dump(uint64(i))...)
		}
		hasInvisible = hasInvisible || c.IsInvisible
		visibility = append(visibility, !c.IsInvisible)
	}

	if len(signedness) > 0 {
		field(OptionalMetadataFieldTypeSignedness, msbBits(signedness))
	}
	if hasCollation {
		field(OptionalMetadataFieldTypeColumnCharset, collations)
	}
	if hasName {
		field(OptionalMetadataFieldTypeColumnName, names)
	}
	if len(sets) > 0 {
		field(OptionalMetadataFieldTypeSetStrValue, sets)
	}
	if len(enums) > 0 {
		field(OptionalMetadataFieldTypeEnumStrValue, enums)
	}
	if len(primaryKey) > 0 {
		field(OptionalMetadataFieldTypePrimaryKey, primaryKey)
	}
	if hasInvisible {
		field(OptionalMetadataFieldTypeColumnVisibility, msbBits(visibility))
	}
	return dump
}

func strValues(values []string) []byte {
	dump := packet.LengthEncodedInteger.Dump(uint64(len(values)))
	for _, v := range values {
		dump = append(dump, packet.LengthEncodedString.Dump([]byte(v))...)
	}
	return dump
}

// msbBits is the inverse of columnBits.
func msbBits(bits []bool) []byte {
	p := make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		if b {
			p[i/8] |= 0x80 >> (i % 8)
		}
	}
	return p
}

func bigEndian(v uint64, n int) []byte {
	p := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		p[i] = byte(v)
		v >>= 8
	}
	return p
}

func rowsBody(e *RowsEvent) ([]byte, error) {
	if e.Table == nil {
		return nil, errors.New("rows event without table")
	}
	columnCnt := e.ColumnCnt
	if columnCnt == 0 {
		columnCnt = len(e.Table.Columns)
	}
	if columnCnt > len(e.Table.Columns) {
		return nil, errors.Errorf("%d columns, table has %d", columnCnt, len(e.Table.Columns))
	}

	allColumns, err := mysql.NewBitSet(columnCnt)
	if err != nil {
		return nil, err
	}
	for i := 0; i < columnCnt; i++ {
		allColumns.Set(i)
	}
	before, after := e.ColumnsBeforeImage, e.ColumnsAfterImage
	if before == nil {
		before = allColumns
	}
	if after == nil {
		after = before
		if e.Action == ActionUpdate {
			after = allColumns
		}
	}

	tableId := e.TableId
	if tableId == 0 {
		tableId = e.Table.TableId
	}
	body := packet.FixedLengthInteger.Dump(tableId, 6)
	body = append(body, packet.FixedLengthInteger.Dump(uint64(e.Flags), 2)...)
	if e.Version != 1 {
		// Extra data length, which counts itself.
		body = append(body, packet.FixedLengthInteger.Dump(2, 2)...)
	}
	body = append(body, packet.LengthEncodedInteger.Dump(uint64(columnCnt))...)
	body = append(body, before.Bytes()...)
	if e.Action == ActionUpdate {
		body = append(body, after.Bytes()...)
	}

	for _, r := range e.Rows {
		var err error
		switch e.Action {
		case ActionInsert:
			body, err = appendRow(body, e.Table, columnCnt, after, r.After)
		case ActionDelete:
			body, err = appendRow(body, e.Table, columnCnt, before, r.Before)
		case ActionUpdate:
			if body, err = appendRow(body, e.Table, columnCnt, before, r.Before); err == nil {
				body, err = appendRow(body, e.Table, columnCnt, after, r.After)
			}
		}
		if err != nil {
			return nil, err
		}
	}
	return body, nil
}

func appendRow(body []byte, table *TableMapEvent, columnCnt int, present *mysql.BitSet, row Row) ([]byte, error) {
	nulls, err := mysql.NewBitSet(present.Count())
	if err != nil {
		return nil, err
	}

	var values []byte
	index := 0
	for i := 0; i < columnCnt; i++ {
		if !present.Get(i) {
			continue
		}
		var v interface{}
		if i < len(row) {
			v = row[i]
		}
		if v == nil {
			nulls.Set(index)
		} else {
			p, err := encodeValue(&table.Columns[i], v)
			if err != nil {
				return nil, errors.Wrapf(err, "column %d", i)
			}
			values = append(values, p...)
		}
		index++
	}

	body = append(body, nulls.Bytes()...)
	return append(body, values...), nil
}

// encodeValue is the inverse of decodeValue. Integer columns accept any Go
// integer type.
func encodeValue(col *Column, v interface{}) ([]byte, error) {
	meta := col.Meta
	switch col.Type {
	case flag.MySQLTypeTiny, flag.MySQLTypeShort, flag.MySQLTypeInt24, flag.MySQLTypeLong, flag.MySQLTypeLongLong:
		n, ok := asUint64(v)
		if !ok {
			break
		}
		return packet.FixedLengthInteger.Dump(n, integerSize(col.Type)), nil

	case flag.MySQLTypeYear:
		n, ok := asUint64(v)
		if !ok {
			break
		}
		if n == 0 {
			return []byte{0}, nil
		}
		return []byte{byte(n - 1900)}, nil

	case flag.MySQLTypeFloat:
		switch f := v.(type) {
		case float32:
			return packet.FixedLengthInteger.Dump(uint64(math.Float32bits(f)), 4), nil
		case float64:
			return packet.FixedLengthInteger.Dump(uint64(math.Float32bits(float32(f))), 4), nil
		}

	case flag.MySQLTypeDouble:
		switch f := v.(type) {
		case float64:
			return packet.FixedLengthInteger.Dump(math.Float64bits(f), 8), nil
		case float32:
			return packet.FixedLengthInteger.Dump(math.Float64bits(float64(f)), 8), nil
		}

	case flag.MySQLTypeNewDecimal:
		switch d := v.(type) {
		case decimal.Decimal:
			return encodeDecimal(d, int(meta>>8), int(meta&0xff))
		case string:
			dec, err := decimal.NewFromString(d)
			if err != nil {
				return nil, err
			}
			return encodeDecimal(dec, int(meta>>8), int(meta&0xff))
		}

	case flag.MySQLTypeVarchar, flag.MySQLTypeVarString:
		if p, ok := asBytes(v); ok {
			return appendStringLength(nil, len(p), int(meta), p), nil
		}

	case flag.MySQLTypeString:
		if p, ok := asBytes(v); ok {
			return appendStringLength(nil, len(p), col.maxLength(), p), nil
		}

	case flag.MySQLTypeEnum, flag.MySQLTypeSet:
		if n, ok := asUint64(v); ok {
			return packet.FixedLengthInteger.Dump(n, col.packLength()), nil
		}

	case flag.MySQLTypeBit:
		if n, ok := asUint64(v); ok {
			bits := int(meta>>8)*8 + int(meta&0xff)
			return bigEndian(n, (bits+7)/8), nil
		}

	case flag.MySQLTypeBlob, flag.MySQLTypeTinyBlob, flag.MySQLTypeMediumBlob, flag.MySQLTypeLongBlob, flag.MySQLTypeGeometry:
		if p, ok := asBytes(v); ok {
			dump := packet.FixedLengthInteger.Dump(uint64(len(p)), int(meta))
			return append(dump, p...), nil
		}

	case flag.MySQLTypeDate:
		if t, ok := v.(time.Time); ok {
			var n uint64
			if !t.IsZero() {
				n = uint64(t.Year())<<9 | uint64(t.Month())<<5 | uint64(t.Day())
			}
			return packet.FixedLengthInteger.Dump(n, 3), nil
		}

	case flag.MySQLTypeDatetime:
		if t, ok := v.(time.Time); ok {
			var n uint64
			if !t.IsZero() {
				n = uint64(t.Year()*10000+int(t.Month())*100+t.Day())*1000000 +
					uint64(t.Hour()*10000+t.Minute()*100+t.Second())
			}
			return packet.FixedLengthInteger.Dump(n, 8), nil
		}

	case flag.MySQLTypeDatetime2:
		if t, ok := v.(time.Time); ok {
			packed := packDatetime(t)
			dump := bigEndian(uint64(packed>>packedFracBits+datetimefIntOfs), 5)
			return append(dump, fracBytes(packed%(1<<packedFracBits), int(meta))...), nil
		}

	case flag.MySQLTypeTimestamp:
		if t, ok := v.(time.Time); ok {
			var sec int64
			if !t.IsZero() {
				sec = t.Unix()
			}
			return packet.FixedLengthInteger.Dump(uint64(sec), 4), nil
		}

	case flag.MySQLTypeTimestamp2:
		if t, ok := v.(time.Time); ok {
			var sec, usec int64
			if !t.IsZero() {
				sec, usec = t.Unix(), int64(t.Nanosecond()/1000)
			}
			return append(bigEndian(uint64(sec), 4), fracBytes(usec, int(meta))...), nil
		}

	case flag.MySQLTypeTime:
		if d, ok := v.(time.Duration); ok {
			neg := d < 0
			if neg {
				d = -d
			}
			n := int64(d/time.Hour)*10000 + int64(d/time.Minute%60)*100 + int64(d/time.Second%60)
			if neg {
				n = -n
			}
			return packet.FixedLengthInteger.Dump(uint64(n), 3), nil
		}

	case flag.MySQLTypeTime2:
		if d, ok := v.(time.Duration); ok {
			return time2Bytes(packTime(d), int(meta)), nil
		}

	default:
		return nil, errors.Wrapf(ErrUnsupportedColumnType, "%s", col.Type)
	}
	return nil, errors.Errorf("cannot encode %T as %s", v, col.Type)
}

func integerSize(t flag.TableColumnType) int {
	switch t {
	case flag.MySQLTypeTiny:
		return 1
	case flag.MySQLTypeShort:
		return 2
	case flag.MySQLTypeInt24:
		return 3
	case flag.MySQLTypeLong:
		return 4
	default:
		return 8
	}
}

func appendStringLength(dump []byte, l, maxLength int, p []byte) []byte {
	if maxLength < 256 {
		dump = append(dump, byte(l))
	} else {
		dump = append(dump, packet.FixedLengthInteger.Dump(uint64(l), 2)...)
	}
	return append(dump, p...)
}

// fracBytes is the inverse of readFrac.
func fracBytes(usec int64, fsp int) []byte {
	switch fsp {
	case 1, 2:
		return []byte{byte(usec / 10000)}
	case 3, 4:
		return bigEndian(uint64(usec/100), 2)
	case 5, 6:
		return bigEndian(uint64(usec), 3)
	default:
		return nil
	}
}

// time2Bytes is the inverse of readTime2.
func time2Bytes(packed int64, fsp int) []byte {
	intPart := packed >> packedFracBits
	frac := packed % (1 << packedFracBits)
	switch fsp {
	case 1, 2:
		return append(bigEndian(uint64(intPart+timefIntOfs), 3), byte(frac/10000))
	case 3, 4:
		return append(bigEndian(uint64(intPart+timefIntOfs), 3), bigEndian(uint64(frac/100), 2)...)
	case 5, 6:
		return bigEndian(uint64(packed+timefOfs), 6)
	default:
		return bigEndian(uint64(intPart+timefIntOfs), 3)
	}
}

func asUint64(v interface{}) (uint64, bool) {
	switch n := v.(type) {
	case int:
		return uint64(n), true
	case int8:
		return uint64(n), true
	case int16:
		return uint64(n), true
	case int32:
		return uint64(n), true
	case int64:
		return uint64(n), true
	case uint:
		return uint64(n), true
	case uint8:
		return uint64(n), true
	case uint16:
		return uint64(n), true
	case uint32:
		return uint64(n), true
	case uint64:
		return n, true
	default:
		return 0, false
	}
}

func asBytes(v interface{}) ([]byte, bool) {
	switch s := v.(type) {
	case string:
		return []byte(s), true
	case []byte:
		return s, true
	default:
		return nil, false
	}
}
