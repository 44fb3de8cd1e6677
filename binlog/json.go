package binlog

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/vczyh/mysql-cdc/flag"
	"github.com/vczyh/mysql-cdc/mysql"
)

const (
	JsonbTypeSmallObject = 0x0
	JsonbTypeLargeObject = 0x1
	JsonbTypeSmallArray  = 0x2
	JsonbTypeLargeArray  = 0x3
	JsonbTypeLiteral     = 0x4
	JsonbTypeInt16       = 0x5
	JsonbTypeUint16      = 0x6
	JsonbTypeInt32       = 0x7
	JsonbTypeUint32      = 0x8
	JsonbTypeInt64       = 0x9
	JsonbTypeUint64      = 0xA
	JsonbTypeDouble      = 0xB
	JsonbTypeString      = 0xC
	JsonbTypeOpaque      = 0xF

	JsonbNullLiteral  = 0x0
	JsonbTrueLiteral  = 0x1
	JsonbFalseLiteral = 0x2

	// The size of offset or size fields in the small and the large storage
	// format for JSON objects and JSON arrays.

	SmallOffsetSize = 2
	LargeOffsetSize = 4

	// The size of key entries for objects. In the small format it is 4
	// bytes (2 bytes for key length and 2 bytes for key offset). In the
	// large format it is 6 (2 bytes for length, 4 bytes for offset).

	KeyEntrySizeSmall = 2 + SmallOffsetSize
	KeyEntrySizeLarge = 2 + LargeOffsetSize

	// The size of value entries for objects or arrays. It is 3 in the small
	// format (1 byte for type, 2 bytes for offset) and 5 in the large
	// format (1 byte for type, 4 bytes for offset).

	ValueEntrySizeSmall = 1 + SmallOffsetSize
	ValueEntrySizeLarge = 1 + LargeOffsetSize
)

var errJsonTruncated = errors.Wrap(ErrInvalidData, "json binary data length is not enough")

// DecodeJSON converts a document in the MySQL binary JSON format to JSON
// text.
//
// Each document should start with a one-byte type specifier, so an empty
// document is not valid binary JSON. Empty documents may appear due to
// inserts using the IGNORE keyword or with non-strict SQL mode, which will
// insert an empty string if the value NULL is inserted into a NOT NULL
// column. They are read as the JSON null literal.
func DecodeJSON(data []byte) (string, error) {
	if len(data) == 0 {
		return "null", nil
	}
	sb := new(strings.Builder)
	if err := writeJsonValue(sb, data[0], data[1:]); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func writeJsonValue(sb *strings.Builder, t byte, data []byte) error {
	switch t {
	case JsonbTypeSmallObject:
		return writeJsonContainer(sb, data, true, false)
	case JsonbTypeLargeObject:
		return writeJsonContainer(sb, data, true, true)
	case JsonbTypeSmallArray:
		return writeJsonContainer(sb, data, false, false)
	case JsonbTypeLargeArray:
		return writeJsonContainer(sb, data, false, true)
	default:
		return writeJsonScalar(sb, t, data)
	}
}

func writeJsonContainer(sb *strings.Builder, data []byte, object, large bool) error {
	// Make sure the document is long enough to contain the two length fields
	// (both number of elements or members, and number of bytes).
	offsetSize := offsetSize(large)
	if len(data) < 2*offsetSize {
		return errJsonTruncated
	}
	elementCnt := readOffsetOrSize(data, large)
	size := readOffsetOrSize(data[offsetSize:], large)
	if size > len(data) {
		return errJsonTruncated
	}
	data = data[:size]

	// The header consists of the two length fields, the key entries of an
	// object and the value entries.
	keyEntries := 2 * offsetSize
	valueEntries := keyEntries
	if object {
		valueEntries += elementCnt * keyEntrySize(large)
	}
	if valueEntries+elementCnt*valueEntrySize(large) > size {
		return errors.Wrap(ErrInvalidData, "json header larger than value")
	}

	if object {
		sb.WriteByte('{')
	} else {
		sb.WriteByte('[')
	}
	for i := 0; i < elementCnt; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}

		if object {
			entry := keyEntries + i*keyEntrySize(large)
			keyOffset := readOffsetOrSize(data[entry:], large)
			keyLength := int(binary.LittleEndian.Uint16(data[entry+offsetSize:]))
			if keyOffset+keyLength > size {
				return errJsonTruncated
			}
			writeJsonString(sb, data[keyOffset:keyOffset+keyLength])
			sb.WriteString(": ")
		}

		entry := valueEntries + i*valueEntrySize(large)
		t := data[entry]
		// Inlined scalars are stored in the entry right after the type byte.
		if isInlinedType(t, large) {
			if err := writeJsonScalar(sb, t, data[entry+1:entry+valueEntrySize(large)]); err != nil {
				return err
			}
			continue
		}
		valueOffset := readOffsetOrSize(data[entry+1:], large)
		if valueOffset >= size {
			return errJsonTruncated
		}
		if err := writeJsonValue(sb, t, data[valueOffset:]); err != nil {
			return err
		}
	}
	if object {
		sb.WriteByte('}')
	} else {
		sb.WriteByte(']')
	}
	return nil
}

func writeJsonScalar(sb *strings.Builder, t byte, data []byte) error {
	need := func(n int) error {
		if len(data) < n {
			return errJsonTruncated
		}
		return nil
	}

	switch t {
	case JsonbTypeLiteral:
		if err := need(1); err != nil {
			return err
		}
		switch data[0] {
		case JsonbNullLiteral:
			sb.WriteString("null")
		case JsonbTrueLiteral:
			sb.WriteString("true")
		case JsonbFalseLiteral:
			sb.WriteString("false")
		default:
			return errors.Wrapf(ErrInvalidData, "invalid json literal 0x%x", data[0])
		}
	case JsonbTypeInt16:
		if err := need(2); err != nil {
			return err
		}
		sb.WriteString(strconv.FormatInt(int64(int16(binary.LittleEndian.Uint16(data))), 10))
	case JsonbTypeUint16:
		if err := need(2); err != nil {
			return err
		}
		sb.WriteString(strconv.FormatUint(uint64(binary.LittleEndian.Uint16(data)), 10))
	case JsonbTypeInt32:
		if err := need(4); err != nil {
			return err
		}
		sb.WriteString(strconv.FormatInt(int64(int32(binary.LittleEndian.Uint32(data))), 10))
	case JsonbTypeUint32:
		if err := need(4); err != nil {
			return err
		}
		sb.WriteString(strconv.FormatUint(uint64(binary.LittleEndian.Uint32(data)), 10))
	case JsonbTypeInt64:
		if err := need(8); err != nil {
			return err
		}
		sb.WriteString(strconv.FormatInt(int64(binary.LittleEndian.Uint64(data)), 10))
	case JsonbTypeUint64:
		if err := need(8); err != nil {
			return err
		}
		sb.WriteString(strconv.FormatUint(binary.LittleEndian.Uint64(data), 10))
	case JsonbTypeDouble:
		if err := need(8); err != nil {
			return err
		}
		f := math.Float64frombits(binary.LittleEndian.Uint64(data))
		sb.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	case JsonbTypeString:
		l, n, err := readVariableLength(data)
		if err != nil {
			return err
		}
		if err := need(n + l); err != nil {
			return err
		}
		writeJsonString(sb, data[n:n+l])
	case JsonbTypeOpaque:
		// The field type of the opaque value, then its length.
		if err := need(1); err != nil {
			return err
		}
		fieldType := flag.TableColumnType(data[0])
		l, n, err := readVariableLength(data[1:])
		if err != nil {
			return err
		}
		if err := need(1 + n + l); err != nil {
			return err
		}
		return writeJsonOpaque(sb, fieldType, data[1+n:1+n+l])
	default:
		return errors.Wrapf(ErrInvalidData, "invalid json type 0x%x", t)
	}
	return nil
}

func writeJsonOpaque(sb *strings.Builder, fieldType flag.TableColumnType, data []byte) error {
	switch fieldType {
	case flag.MySQLTypeNewDecimal:
		if len(data) < 2 {
			return errJsonTruncated
		}
		d, err := decodeDecimal(mysql.NewBuffer(data[2:]), int(data[0]), int(data[1]))
		if err != nil {
			return err
		}
		sb.WriteString(d.String())
	case flag.MySQLTypeTime, flag.MySQLTypeDate, flag.MySQLTypeDatetime, flag.MySQLTypeTimestamp:
		if len(data) < 8 {
			return errJsonTruncated
		}
		s, err := formatTemporal(fieldType, int64(binary.LittleEndian.Uint64(data)))
		if err != nil {
			return err
		}
		writeJsonString(sb, []byte(s))
	default:
		// Same as JSON_QUOTE of an opaque value in MySQL.
		s := "base64:type" + strconv.Itoa(int(fieldType)) + ":" + base64.StdEncoding.EncodeToString(data)
		writeJsonString(sb, []byte(s))
	}
	return nil
}

func writeJsonString(sb *strings.Builder, s []byte) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(string(s))
	sb.Write(bytes.TrimRight(buf.Bytes(), "\n"))
}

// readVariableLength returns a length stored with 7 bits per byte, and the
// number of bytes it used.
func readVariableLength(data []byte) (int, int, error) {
	// It takes five bytes to represent UINT_MAX32, which is the largest
	// supported length, so don't look any further.
	maxBytes := len(data)
	if maxBytes > 5 {
		maxBytes = 5
	}

	var l uint64
	for i := 0; i < maxBytes; i++ {
		b := data[i]

		// Get the next 7 bits of the length.
		l |= uint64(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			// The length shouldn't exceed 32 bits.
			if l > math.MaxUint32 {
				return 0, 0, errors.Wrap(ErrInvalidData, "json length overflows")
			}
			return int(l), i + 1, nil
		}
	}

	return 0, 0, errJsonTruncated
}

func offsetSize(large bool) int {
	if large {
		return LargeOffsetSize
	}
	return SmallOffsetSize
}

func readOffsetOrSize(data []byte, large bool) int {
	if large {
		return int(binary.LittleEndian.Uint32(data))
	}
	return int(binary.LittleEndian.Uint16(data))
}

func keyEntrySize(large bool) int {
	if large {
		return KeyEntrySizeLarge
	}
	return KeyEntrySizeSmall
}

func valueEntrySize(large bool) int {
	if large {
		return ValueEntrySizeLarge
	}
	return ValueEntrySizeSmall
}

func isInlinedType(jsonbType byte, large bool) bool {
	switch jsonbType {
	case JsonbTypeLiteral,
		JsonbTypeInt16,
		JsonbTypeUint16:
		return true
	case JsonbTypeInt32,
		JsonbTypeUint32:
		return large
	default:
		return false
	}
}
