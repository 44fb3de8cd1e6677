package binlog

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/vczyh/mysql-cdc/charset"
	"github.com/vczyh/mysql-cdc/flag"
	"github.com/vczyh/mysql-cdc/mysql"
	"github.com/vczyh/mysql-cdc/myerrors"
)

const binaryCollationId = 63

type TableMapEvent struct {
	EventHeader
	TableId  uint64
	Flags    TableMapFlag
	Database string
	Table    string
	Columns  []Column
}

type TableMapFlag uint16

const (
	TableMapFlagNoFlags     TableMapFlag = 0
	TableMapFlagBitLenExact TableMapFlag = 1 << (iota - 1)
	TableMapFlagReferredFKDB
)

type Column struct {
	// Type is the real type of the column. ENUM and SET columns are logged
	// as STRING with the real type in Meta.
	Type       flag.TableColumnType
	BinlogType flag.TableColumnType
	Meta       uint32
	Nullable   bool
	IsArray    bool

	//
	// when SET binlog_row_metadata=FULL
	//
	Unsigned bool
	// CollationId is 0 when the table map has no charset metadata.
	CollationId      uint64
	GeometryType     GeometryType
	Name             string
	EnumValues       []string
	SetValues        []string
	IsPrimaryKey     bool
	PrimaryKeyPrefix uint64
	IsInvisible      bool
}

type GeometryType uint8

const (
	Geometry GeometryType = iota
	Point
	Linestring
	Polygon
	MultiPoint
	MultiLinestring
	MultiPolygon
	GeometryCollection
)

// Charset returns the column charset, or nil when unknown.
func (c *Column) Charset() *charset.Charset {
	if c.CollationId == 0 {
		return nil
	}
	collation, err := charset.GetCollation(c.CollationId)
	if err != nil {
		return nil
	}
	return collation.Charset()
}

// IsBinary reports whether a character column uses the binary collation,
// as BINARY and VARBINARY do.
func (c *Column) IsBinary() bool {
	return c.CollationId == binaryCollationId
}

// HasTextCollation reports whether a BLOB column is known to be TEXT.
func (c *Column) HasTextCollation() bool {
	return c.CollationId != 0 && c.CollationId != binaryCollationId
}

// maxLength returns the declared length of a STRING column.
func (c *Column) maxLength() int {
	if c.Meta >= 256 {
		byte0 := c.Meta >> 8
		byte1 := c.Meta & 0xff
		if byte0&0x30 != 0x30 {
			return int(byte1 | ((byte0&0x30)^0x30)<<4)
		}
		return int(byte1)
	}
	return int(c.Meta)
}

// packLength returns the storage size of an ENUM or SET value.
func (c *Column) packLength() int {
	return int(c.Meta & 0xff)
}

type OptionalMetadataFieldType uint8

const (
	OptionalMetadataFieldTypeSignedness OptionalMetadataFieldType = iota + 1
	OptionalMetadataFieldTypeDefaultCharset
	OptionalMetadataFieldTypeColumnCharset
	OptionalMetadataFieldTypeColumnName
	OptionalMetadataFieldTypeSetStrValue
	OptionalMetadataFieldTypeEnumStrValue
	OptionalMetadataFieldTypeGeometryType
	OptionalMetadataFieldTypePrimaryKey
	OptionalMetadataFieldTypePrimaryKeyWithPrefix
	OptionalMetadataFieldTypeEnumAndSetDefaultCharset
	OptionalMetadataFieldTypeEnumAndSetColumnCharset
	OptionalMetadataFieldTypeColumnVisibility
)

func parseTableMapEvent(h EventHeader, buf *mysql.Buffer, fde *FormatDescriptionEvent) (*TableMapEvent, error) {
	e := &TableMapEvent{EventHeader: h}
	var err error

	if e.TableId, err = readTableId(buf, fde.PostHeaderLen(EventTypeTableMap)); err != nil {
		return nil, err
	}

	flags, err := buf.Uint16()
	if err != nil {
		return nil, err
	}
	e.Flags = TableMapFlag(flags)

	if e.Database, err = readShortString(buf); err != nil {
		return nil, err
	}
	if e.Table, err = readShortString(buf); err != nil {
		return nil, err
	}

	columnCnt, err := buf.LengthEncodedInt()
	if err != nil {
		return nil, err
	}
	columnTypes, err := buf.Next(columnCnt)
	if err != nil {
		return nil, err
	}
	e.Columns = make([]Column, columnCnt)
	for i, t := range columnTypes {
		e.Columns[i].BinlogType = flag.TableColumnType(t)
	}

	metadata, err := buf.LengthEncodedBytes()
	if err != nil {
		return nil, err
	}
	if err := e.parseColumnMetadata(metadata); err != nil {
		return nil, err
	}
	e.parseRealType()

	nullBits, err := buf.CreateBitmap(columnCnt)
	if err != nil {
		return nil, err
	}
	for i := range e.Columns {
		e.Columns[i].Nullable = nullBits.Get(i)
	}

	if err := e.parseOptionalMetadata(buf); err != nil {
		return nil, err
	}

	return e, nil
}

// readTableId reads the 6 byte table id, or the 4 byte one of binlog
// versions with a 6 byte post-header.
func readTableId(buf *mysql.Buffer, postHeaderLen uint8) (uint64, error) {
	if postHeaderLen == 6 {
		v, err := buf.Uint32()
		return uint64(v), err
	}
	return buf.Uint48()
}

// readShortString reads a one byte length, the string and a 0x00.
func readShortString(buf *mysql.Buffer) (string, error) {
	l, err := buf.Uint8()
	if err != nil {
		return "", err
	}
	s, err := buf.NextString(int(l))
	if err != nil {
		return "", err
	}
	return s, buf.Skip(1)
}

func (e *TableMapEvent) parseColumnMetadata(metadata []byte) error {
	buf := mysql.NewBuffer(metadata)

	for i := range e.Columns {
		column := &e.Columns[i]

		if column.BinlogType == flag.MySQLTypeTypedArray {
			t, err := buf.Uint8()
			if err != nil {
				return err
			}
			column.IsArray = true
			column.BinlogType = flag.TableColumnType(t)
		}

		switch column.BinlogType {
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

			// These types store a single byte.
			b, err := buf.Uint8()
			if err != nil {
				return err
			}
			column.Meta = uint32(b)

		case flag.MySQLTypeString,
			flag.MySQLTypeNewDecimal,
			flag.MySQLTypeEnum,
			flag.MySQLTypeSet:

			// Two bytes, big endian.
			v, err := buf.BUint16()
			if err != nil {
				return err
			}
			column.Meta = uint32(v)

		case flag.MySQLTypeBit:
			v, err := buf.Uint16()
			if err != nil {
				return err
			}
			column.Meta = uint32(v)

		case flag.MySQLTypeVarchar,
			flag.MySQLTypeVarString:
			if column.IsArray {
				v, err := buf.Uint24()
				if err != nil {
					return err
				}
				column.Meta = v
			} else {
				v, err := buf.Uint16()
				if err != nil {
					return err
				}
				column.Meta = uint32(v)
			}

		default:
			// These types have no meta.
		}
	}

	if buf.Len() != 0 {
		return errors.Wrapf(ErrInvalidData, "%d bytes of column metadata left", buf.Len())
	}
	return nil
}

func (e *TableMapEvent) parseRealType() {
	for i := range e.Columns {
		column := &e.Columns[i]
		column.Type = column.BinlogType

		if column.BinlogType == flag.MySQLTypeString && column.Meta >= 256 {
			byte0 := flag.TableColumnType(column.Meta >> 8)
			if byte0&0x30 != 0x30 {
				byte0 |= 0x30
			}
			if byte0.IsEnumSet() {
				column.Type = byte0
			}
		}
	}
}

func (e *TableMapEvent) parseOptionalMetadata(buf *mysql.Buffer) error {
	for buf.Len() > 0 {
		b, err := buf.Uint8()
		if err != nil {
			return err
		}

		length, err := buf.LengthEncodedInt()
		if err != nil {
			return err
		}
		field, err := buf.Next(length)
		if err != nil {
			return err
		}
		fb := mysql.NewBuffer(field)

		switch OptionalMetadataFieldType(b) {
		case OptionalMetadataFieldTypeSignedness:
			err = e.parseSignedness(field)
		case OptionalMetadataFieldTypeDefaultCharset:
			err = e.parseDefaultCharset(fb, isCharacterColumn)
		case OptionalMetadataFieldTypeColumnCharset:
			err = e.parseColumnCharset(fb, isCharacterColumn)
		case OptionalMetadataFieldTypeColumnName:
			err = e.parseColumnName(fb)
		case OptionalMetadataFieldTypeSetStrValue:
			err = e.parseEnumSetStrValue(fb, false)
		case OptionalMetadataFieldTypeEnumStrValue:
			err = e.parseEnumSetStrValue(fb, true)
		case OptionalMetadataFieldTypeGeometryType:
			err = e.parseGeometryType(fb)
		case OptionalMetadataFieldTypePrimaryKey:
			err = e.parseSimplePrimaryKey(fb)
		case OptionalMetadataFieldTypePrimaryKeyWithPrefix:
			err = e.parsePrimaryKeyWithPrefix(fb)
		case OptionalMetadataFieldTypeEnumAndSetDefaultCharset:
			err = e.parseDefaultCharset(fb, isEnumSetColumn)
		case OptionalMetadataFieldTypeEnumAndSetColumnCharset:
			err = e.parseColumnCharset(fb, isEnumSetColumn)
		case OptionalMetadataFieldTypeColumnVisibility:
			err = e.parseColumnVisibility(field)
		default:
			// Fields added by newer servers are skipped.
		}

		if err != nil {
			return errors.Wrapf(err, "optional metadata field %d", b)
		}
	}

	return nil
}

func isCharacterColumn(c *Column) bool {
	return c.Type.IsCharacter()
}

func isEnumSetColumn(c *Column) bool {
	return c.Type.IsEnumSet()
}

// columnBits expands a bitmap stored most significant bit first.
func columnBits(field []byte) []bool {
	bits := make([]bool, 0, len(field)*8)
	for _, b := range field {
		for c := uint8(0x80); c != 0; c >>= 1 {
			bits = append(bits, b&c != 0)
		}
	}
	return bits
}

func (e *TableMapEvent) parseSignedness(field []byte) error {
	signedness := columnBits(field)

	index := 0
	for i := range e.Columns {
		if !e.Columns[i].Type.HasSignedness() {
			continue
		}
		if index >= len(signedness) {
			return ErrInvalidData
		}
		e.Columns[i].Unsigned = signedness[index]
		index++
	}

	return nil
}

// parseDefaultCharset reads the default collation and the exceptions to it,
// each as (index among matching columns, collation).
func (e *TableMapEvent) parseDefaultCharset(buf *mysql.Buffer, match func(*Column) bool) error {
	defaultCollation, err := buf.LengthEncodedUint64()
	if err != nil {
		return err
	}

	exceptions := make(map[int]uint64)
	for buf.Len() > 0 {
		index, err := buf.LengthEncodedInt()
		if err != nil {
			return err
		}
		collation, err := buf.LengthEncodedUint64()
		if err != nil {
			return err
		}
		exceptions[index] = collation
	}

	index := 0
	for i := range e.Columns {
		if !match(&e.Columns[i]) {
			continue
		}
		e.Columns[i].CollationId = defaultCollation
		if c, ok := exceptions[index]; ok {
			e.Columns[i].CollationId = c
		}
		index++
	}

	return nil
}

func (e *TableMapEvent) parseColumnCharset(buf *mysql.Buffer, match func(*Column) bool) error {
	var collations []uint64
	for buf.Len() > 0 {
		collation, err := buf.LengthEncodedUint64()
		if err != nil {
			return err
		}
		collations = append(collations, collation)
	}

	index := 0
	for i := range e.Columns {
		if !match(&e.Columns[i]) {
			continue
		}
		if index >= len(collations) {
			return ErrInvalidData
		}
		e.Columns[i].CollationId = collations[index]
		index++
	}

	return nil
}

func (e *TableMapEvent) parseColumnName(buf *mysql.Buffer) error {
	for i := 0; buf.Len() > 0; i++ {
		if i >= len(e.Columns) {
			return ErrInvalidData
		}
		name, err := buf.LengthEncodedString()
		if err != nil {
			return err
		}
		e.Columns[i].Name = name
	}
	return nil
}

func (e *TableMapEvent) parseEnumSetStrValue(buf *mysql.Buffer, isEnum bool) error {
	var columnValues [][]string
	for buf.Len() > 0 {
		count, err := buf.LengthEncodedInt()
		if err != nil {
			return err
		}

		values := make([]string, 0, count)
		for i := 0; i < count; i++ {
			val, err := buf.LengthEncodedString()
			if err != nil {
				return err
			}
			values = append(values, val)
		}

		columnValues = append(columnValues, values)
	}

	want := flag.MySQLTypeSet
	if isEnum {
		want = flag.MySQLTypeEnum
	}

	index := 0
	for i := range e.Columns {
		if e.Columns[i].Type != want {
			continue
		}
		if index >= len(columnValues) {
			return ErrInvalidData
		}
		if isEnum {
			e.Columns[i].EnumValues = columnValues[index]
		} else {
			e.Columns[i].SetValues = columnValues[index]
		}
		index++
	}

	return nil
}

func (e *TableMapEvent) parseGeometryType(buf *mysql.Buffer) error {
	for i := range e.Columns {
		if e.Columns[i].Type != flag.MySQLTypeGeometry {
			continue
		}
		if buf.Len() == 0 {
			return ErrInvalidData
		}
		t, err := buf.LengthEncodedInt()
		if err != nil {
			return err
		}
		e.Columns[i].GeometryType = GeometryType(t)
	}
	return nil
}

func (e *TableMapEvent) parseSimplePrimaryKey(buf *mysql.Buffer) error {
	for buf.Len() > 0 {
		columnIndex, err := buf.LengthEncodedInt()
		if err != nil {
			return err
		}
		if columnIndex >= len(e.Columns) {
			return ErrInvalidData
		}
		e.Columns[columnIndex].IsPrimaryKey = true
	}
	return nil
}

func (e *TableMapEvent) parsePrimaryKeyWithPrefix(buf *mysql.Buffer) error {
	for buf.Len() > 0 {
		columnIndex, err := buf.LengthEncodedInt()
		if err != nil {
			return err
		}
		prefix, err := buf.LengthEncodedUint64()
		if err != nil {
			return err
		}
		if columnIndex >= len(e.Columns) {
			return ErrInvalidData
		}
		e.Columns[columnIndex].IsPrimaryKey = true
		e.Columns[columnIndex].PrimaryKeyPrefix = prefix
	}
	return nil
}

// parseColumnVisibility reads one bit per column, set for visible columns.
func (e *TableMapEvent) parseColumnVisibility(field []byte) error {
	visibility := columnBits(field)
	if len(visibility) < len(e.Columns) {
		return ErrInvalidData
	}
	for i := range e.Columns {
		e.Columns[i].IsInvisible = !visibility[i]
	}
	return nil
}

// ColumnNames returns the column names, which are empty unless the source
// logs full row metadata.
func (e *TableMapEvent) ColumnNames() []string {
	names := make([]string, len(e.Columns))
	for i, c := range e.Columns {
		names[i] = c.Name
	}
	return names
}

func (e *TableMapEvent) String() string {
	sb := new(strings.Builder)
	sb.WriteString(e.EventHeader.String())

	fmt.Fprintf(sb, "Table id: %d\n", e.TableId)
	fmt.Fprintf(sb, "Flags: %d\n", e.Flags)
	fmt.Fprintf(sb, "Database: %s\n", e.Database)
	fmt.Fprintf(sb, "Table: %s\n", e.Table)
	fmt.Fprintf(sb, "Column count: %d\n", len(e.Columns))

	columns := make([]string, len(e.Columns))
	for i, column := range e.Columns {
		columnInfo := []string{
			fmt.Sprintf("name(%s)", column.Name),
			fmt.Sprintf("binlog_type(%s)", column.BinlogType),
			fmt.Sprintf("real_type(%s)", column.Type),
			fmt.Sprintf("null(%t)", column.Nullable),
			fmt.Sprintf("meta(%d)", column.Meta),
		}
		if column.Type.HasSignedness() {
			columnInfo = append(columnInfo, fmt.Sprintf("unsigned(%t)", column.Unsigned))
		}
		if cs := column.Charset(); cs != nil {
			columnInfo = append(columnInfo, fmt.Sprintf("charset(%s)", cs.Name()))
		}
		columns[i] = strings.Join(columnInfo, " ")
	}
	fmt.Fprintf(sb, "Column info: [\n\t%s\n]\n", strings.Join(columns, "\n\t"))

	return sb.String()
}

// RowsAction is the kind of change a rows event applies.
type RowsAction uint8

const (
	ActionInsert RowsAction = iota + 1
	ActionUpdate
	ActionDelete
)

func (a RowsAction) String() string {
	switch a {
	case ActionInsert:
		return "INSERT"
	case ActionUpdate:
		return "UPDATE"
	case ActionDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

func rowsAction(t EventType) RowsAction {
	switch {
	case t == EventTypeWriteRowsV1, t == EventTypeWriteRowsV2:
		return ActionInsert
	case t.isUpdateRows():
		return ActionUpdate
	default:
		return ActionDelete
	}
}

type RowsFlag uint16

const (
	// RowsFlagStmtEnd indicates the last event of a statement.
	RowsFlagStmtEnd RowsFlag = 1 << iota

	// RowsFlagNoForeignKeyChecks indicates no foreign key checks.
	RowsFlagNoForeignKeyChecks

	// RowsFlagRelaxedUniqueChecks indicates no unique key checks.
	RowsFlagRelaxedUniqueChecks

	// RowsFlagCompleteRows indicates that rows in this event are complete, that is contain
	// values for all columns of the table.
	RowsFlagCompleteRows
)

type ExtraRowInfoTypeCode uint8

const (
	ExtraRowInfoTypeCodeNDB ExtraRowInfoTypeCode = iota
	ExtraRowInfoTypeCodePART
)

// Row holds one value per table column, in column order. NULL values and
// columns missing from the row image are nil.
type Row []interface{}

// RowImage is one changed row. Inserts only have After, deletes only have
// Before.
type RowImage struct {
	Before Row
	After  Row
}

type RowsEvent struct {
	EventHeader
	Action  RowsAction
	Version int
	TableId uint64
	Flags   RowsFlag

	ExtraRowNDBInfo []byte

	// For a row in a partitioned table.
	ExtraPartitionId uint16

	// It is the partition_id of the source partition in case
	// of Update Event, the target's partition id is PartitionId.
	// This variable is used only in case of Update Event.
	ExtraSourcePartitionId uint16

	ColumnCnt          int
	ColumnsBeforeImage *mysql.BitSet
	ColumnsAfterImage  *mysql.BitSet

	Table *TableMapEvent
	Rows  []RowImage
}

func parseRowsEvent(h EventHeader, buf *mysql.Buffer, fde *FormatDescriptionEvent, tables TableLookup, loc *time.Location) (*RowsEvent, error) {
	eventType := h.EventType
	e := &RowsEvent{
		EventHeader: h,
		Action:      rowsAction(eventType),
		Version:     1,
	}
	if eventType >= EventTypeWriteRowsV2 {
		e.Version = 2
	}
	var err error

	postHeaderLen := fde.PostHeaderLen(eventType)
	if e.TableId, err = readTableId(buf, postHeaderLen); err != nil {
		return nil, err
	}

	flags, err := buf.Uint16()
	if err != nil {
		return nil, err
	}
	e.Flags = RowsFlag(flags)

	if e.Version == 2 {
		if err := e.parseExtraData(buf); err != nil {
			return nil, err
		}
	}

	var table *TableMapEvent
	if tables != nil {
		table, _ = tables.Lookup(e.TableId)
	}
	if table == nil {
		return nil, myerrors.NewUnknownTable(e.TableId)
	}
	e.Table = table

	if e.ColumnCnt, err = buf.LengthEncodedInt(); err != nil {
		return nil, err
	}
	if e.ColumnCnt > len(table.Columns) {
		return nil, errors.Wrapf(ErrInvalidData, "rows event has %d columns, table %s.%s has %d",
			e.ColumnCnt, table.Database, table.Table, len(table.Columns))
	}

	if e.ColumnsBeforeImage, err = buf.CreateBitmap(e.ColumnCnt); err != nil {
		return nil, err
	}
	e.ColumnsAfterImage = e.ColumnsBeforeImage
	if e.Action == ActionUpdate {
		if e.ColumnsAfterImage, err = buf.CreateBitmap(e.ColumnCnt); err != nil {
			return nil, err
		}
	}

	for buf.Len() > 0 {
		var image RowImage
		switch e.Action {
		case ActionInsert:
			image.After, err = e.parseRow(buf, e.ColumnsAfterImage, loc)
		case ActionDelete:
			image.Before, err = e.parseRow(buf, e.ColumnsBeforeImage, loc)
		case ActionUpdate:
			if image.Before, err = e.parseRow(buf, e.ColumnsBeforeImage, loc); err == nil {
				image.After, err = e.parseRow(buf, e.ColumnsAfterImage, loc)
			}
		}
		if err != nil {
			return nil, err
		}
		e.Rows = append(e.Rows, image)
	}

	return e, nil
}

func (e *RowsEvent) parseExtraData(buf *mysql.Buffer) error {
	// The length includes its own two bytes.
	extraLen, err := buf.Uint16()
	if err != nil {
		return err
	}
	if extraLen < 2 {
		return errors.Wrapf(ErrInvalidData, "extra data length %d", extraLen)
	}
	extra, err := buf.Next(int(extraLen) - 2)
	if err != nil {
		return err
	}

	eb := mysql.NewBuffer(extra)
	for eb.Len() > 0 {
		code, err := eb.Uint8()
		if err != nil {
			return err
		}
		switch ExtraRowInfoTypeCode(code) {
		case ExtraRowInfoTypeCodeNDB:
			l, err := eb.Uint8()
			if err != nil {
				return err
			}
			info, err := eb.Next(int(l))
			if err != nil {
				return err
			}
			// NDB info len is part of the buffer to be copied below.
			e.ExtraRowNDBInfo = append([]byte{l}, info...)
		case ExtraRowInfoTypeCodePART:
			if e.ExtraPartitionId, err = eb.Uint16(); err != nil {
				return err
			}
			if e.Action == ActionUpdate {
				if e.ExtraSourcePartitionId, err = eb.Uint16(); err != nil {
					return err
				}
			}
		default:
			// Unknown extra row info, nothing after it can be located.
			return nil
		}
	}
	return nil
}

func (e *RowsEvent) parseRow(buf *mysql.Buffer, present *mysql.BitSet, loc *time.Location) (Row, error) {
	nullBits, err := buf.CreateBitmap(present.Count())
	if err != nil {
		return nil, err
	}

	row := make(Row, len(e.Table.Columns))
	index := 0
	for i := 0; i < e.ColumnCnt; i++ {
		if !present.Get(i) {
			continue
		}
		isNull := nullBits.Get(index)
		index++
		if isNull {
			continue
		}

		column := &e.Table.Columns[i]
		v, err := decodeValue(buf, column, loc)
		if err != nil {
			return nil, errors.Wrapf(err, "column %d (%s)", i, column.Type)
		}
		row[i] = v
	}
	return row, nil
}

func (e *RowsEvent) String() string {
	sb := new(strings.Builder)
	sb.WriteString(e.EventHeader.String())

	fmt.Fprintf(sb, "Table id: %d\n", e.TableId)
	fmt.Fprintf(sb, "Table: %s.%s\n", e.Table.Database, e.Table.Table)
	fmt.Fprintf(sb, "Action: %s\n", e.Action)
	fmt.Fprintf(sb, "Flags: %d\n", e.Flags)
	for _, r := range e.Rows {
		switch e.Action {
		case ActionInsert:
			fmt.Fprintf(sb, "Row: %v\n", r.After)
		case ActionDelete:
			fmt.Fprintf(sb, "Row: %v\n", r.Before)
		default:
			fmt.Fprintf(sb, "Row: %v -> %v\n", r.Before, r.After)
		}
	}

	return sb.String()
}
