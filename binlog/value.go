package binlog

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/vczyh/mysql-cdc/flag"
	"github.com/vczyh/mysql-cdc/mysql"
)

var ErrUnsupportedColumnType = errors.New("binlog: unsupported column type")

// decodeValue reads one non-NULL column value of a rows event. The Go type
// depends on the column type:
//
//	TINY, SHORT, INT24, LONG, LONGLONG   int8..int64, or uint8..uint64 when unsigned
//	YEAR                                 int (0 or 1901..2155)
//	FLOAT, DOUBLE                        float32, float64
//	NEWDECIMAL                           decimal.Decimal
//	DATE, DATETIME, DATETIME2            time.Time in the parser location
//	TIMESTAMP, TIMESTAMP2                time.Time in the parser location
//	TIME, TIME2                          time.Duration
//	VARCHAR, VAR_STRING, STRING          string, or []byte for binary collations
//	ENUM                                 int64 member index, 1 based
//	SET                                  uint64 member bitmask
//	BIT                                  uint64
//	BLOB family                          []byte, or string for text collations
//	GEOMETRY                             []byte
//	JSON                                 string holding JSON text
func decodeValue(buf *mysql.Buffer, col *Column, loc *time.Location) (interface{}, error) {
	meta := col.Meta
	if col.IsArray {
		return nil, errors.Wrap(ErrUnsupportedColumnType, "typed array")
	}

	switch col.Type {
	case flag.MySQLTypeTiny:
		v, err := buf.Uint8()
		if col.Unsigned {
			return v, err
		}
		return int8(v), err

	case flag.MySQLTypeShort:
		v, err := buf.Uint16()
		if col.Unsigned {
			return v, err
		}
		return int16(v), err

	case flag.MySQLTypeInt24:
		if col.Unsigned {
			return buf.Uint24()
		}
		return buf.Int24()

	case flag.MySQLTypeLong:
		v, err := buf.Uint32()
		if col.Unsigned {
			return v, err
		}
		return int32(v), err

	case flag.MySQLTypeLongLong:
		v, err := buf.Uint64()
		if col.Unsigned {
			return v, err
		}
		return int64(v), err

	case flag.MySQLTypeYear:
		v, err := buf.Uint8()
		if err != nil || v == 0 {
			return 0, err
		}
		return 1900 + int(v), nil

	case flag.MySQLTypeFloat:
		v, err := buf.Uint32()
		return math.Float32frombits(v), err

	case flag.MySQLTypeDouble:
		v, err := buf.Uint64()
		return math.Float64frombits(v), err

	case flag.MySQLTypeNewDecimal:
		return decodeDecimal(buf, int(meta>>8), int(meta&0xff))

	case flag.MySQLTypeDate:
		v, err := buf.Uint24()
		if err != nil {
			return nil, err
		}
		return newTime(int(v>>9), int(v>>5&0x0f), int(v&0x1f), 0, 0, 0, 0, loc), nil

	case flag.MySQLTypeTime:
		v, err := buf.Int24()
		if err != nil {
			return nil, err
		}
		neg := v < 0
		if neg {
			v = -v
		}
		d := time.Duration(v/10000)*time.Hour + time.Duration(v/100%100)*time.Minute + time.Duration(v%100)*time.Second
		if neg {
			d = -d
		}
		return d, nil

	case flag.MySQLTypeTime2:
		packed, err := readTime2(buf, int(meta))
		if err != nil {
			return nil, err
		}
		return unpackTime(packed), nil

	case flag.MySQLTypeDatetime:
		v, err := buf.Uint64()
		if err != nil {
			return nil, err
		}
		d, t := v/1000000, v%1000000
		return newTime(int(d/10000), int(d%10000/100), int(d%100),
			int(t/10000), int(t%10000/100), int(t%100), 0, loc), nil

	case flag.MySQLTypeDatetime2:
		intPart, err := buf.BUint40()
		if err != nil {
			return nil, err
		}
		frac, err := readFrac(buf, int(meta))
		if err != nil {
			return nil, err
		}
		packed := (int64(intPart)-datetimefIntOfs)<<packedFracBits + frac
		return unpackDatetime(packed, loc), nil

	case flag.MySQLTypeTimestamp:
		sec, err := buf.Uint32()
		if err != nil {
			return nil, err
		}
		if sec == 0 {
			return time.Time{}, nil
		}
		return time.Unix(int64(sec), 0).In(loc), nil

	case flag.MySQLTypeTimestamp2:
		sec, err := buf.BUint32()
		if err != nil {
			return nil, err
		}
		frac, err := readFrac(buf, int(meta))
		if err != nil {
			return nil, err
		}
		if sec == 0 && frac == 0 {
			return time.Time{}, nil
		}
		return time.Unix(int64(sec), frac*1000).In(loc), nil

	case flag.MySQLTypeVarchar, flag.MySQLTypeVarString:
		return readString(buf, col, int(meta))

	case flag.MySQLTypeString:
		return readString(buf, col, col.maxLength())

	case flag.MySQLTypeEnum:
		switch col.packLength() {
		case 1:
			v, err := buf.Uint8()
			return int64(v), err
		case 2:
			v, err := buf.Uint16()
			return int64(v), err
		default:
			return nil, errors.Wrapf(ErrInvalidData, "invalid enum pack length %d", col.packLength())
		}

	case flag.MySQLTypeSet:
		p, err := buf.Next(col.packLength())
		if err != nil {
			return nil, err
		}
		var v uint64
		for i, b := range p {
			v |= uint64(b) << (8 * i)
		}
		return v, nil

	case flag.MySQLTypeBit:
		bits := int(meta>>8)*8 + int(meta&0xff)
		p, err := buf.Next((bits + 7) / 8)
		if err != nil {
			return nil, err
		}
		var v uint64
		for _, b := range p {
			v = v<<8 | uint64(b)
		}
		return v, nil

	case flag.MySQLTypeBlob, flag.MySQLTypeTinyBlob, flag.MySQLTypeMediumBlob, flag.MySQLTypeLongBlob:
		p, err := readBlob(buf, int(meta))
		if err != nil {
			return nil, err
		}
		if col.HasTextCollation() {
			return string(p), nil
		}
		return p, nil

	case flag.MySQLTypeGeometry:
		return readBlob(buf, int(meta))

	case flag.MySQLTypeJson:
		p, err := readBlob(buf, int(meta))
		if err != nil {
			return nil, err
		}
		return DecodeJSON(p)

	default:
		return nil, errors.Wrapf(ErrUnsupportedColumnType, "%s", col.Type)
	}
}

// readFrac reads the fractional seconds of TIMESTAMP2 and DATETIME2 and
// returns microseconds.
func readFrac(buf *mysql.Buffer, fsp int) (int64, error) {
	switch fsp {
	case 0:
		return 0, nil
	case 1, 2:
		v, err := buf.Uint8()
		return int64(v) * 10000, err
	case 3, 4:
		v, err := buf.BUint16()
		return int64(v) * 100, err
	case 5, 6:
		v, err := buf.BUint24()
		return int64(v), err
	default:
		return 0, errors.Wrapf(ErrInvalidData, "invalid fractional seconds precision %d", fsp)
	}
}

// readTime2 returns the packed value of a TIME2 column.
func readTime2(buf *mysql.Buffer, fsp int) (int64, error) {
	switch fsp {
	case 0:
		v, err := buf.BUint24()
		return (int64(v) - timefIntOfs) << packedFracBits, err
	case 1, 2:
		v, err := buf.BUint24()
		if err != nil {
			return 0, err
		}
		b, err := buf.Uint8()
		if err != nil {
			return 0, err
		}
		intPart, frac := int64(v)-timefIntOfs, int64(b)
		if intPart < 0 && frac != 0 {
			intPart++
			frac -= 0x100
		}
		return intPart<<packedFracBits + frac*10000, nil
	case 3, 4:
		v, err := buf.BUint24()
		if err != nil {
			return 0, err
		}
		f, err := buf.BUint16()
		if err != nil {
			return 0, err
		}
		intPart, frac := int64(v)-timefIntOfs, int64(f)
		if intPart < 0 && frac != 0 {
			intPart++
			frac -= 0x10000
		}
		return intPart<<packedFracBits + frac*100, nil
	case 5, 6:
		v, err := buf.BUint48()
		return int64(v) - timefOfs, err
	default:
		return 0, errors.Wrapf(ErrInvalidData, "invalid fractional seconds precision %d", fsp)
	}
}

func readString(buf *mysql.Buffer, col *Column, maxLength int) (interface{}, error) {
	var l int
	if maxLength < 256 {
		b, err := buf.Uint8()
		if err != nil {
			return nil, err
		}
		l = int(b)
	} else {
		v, err := buf.Uint16()
		if err != nil {
			return nil, err
		}
		l = int(v)
	}

	p, err := buf.Next(l)
	if err != nil {
		return nil, err
	}
	if col.IsBinary() {
		return p, nil
	}
	return string(p), nil
}

// readBlob reads a value prefixed with a little endian length of packLen
// bytes.
func readBlob(buf *mysql.Buffer, packLen int) ([]byte, error) {
	if packLen < 1 || packLen > 4 {
		return nil, errors.Wrapf(ErrInvalidData, "invalid blob pack length %d", packLen)
	}
	p, err := buf.Next(packLen)
	if err != nil {
		return nil, err
	}
	var l int
	for i, b := range p {
		l |= int(b) << (8 * i)
	}
	return buf.Next(l)
}
