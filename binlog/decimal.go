package binlog

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vczyh/mysql-cdc/mysql"
)

const digitsPerInteger = 9

// compressedBytes is the storage size of a group of 0 to 8 leading or
// trailing digits.
var compressedBytes = []int{0, 1, 1, 2, 2, 3, 3, 4, 4, 4}

type decimalLayout struct {
	uncompIntegral   int
	compIntegral     int
	uncompFractional int
	compFractional   int
}

func newDecimalLayout(precision, scale int) decimalLayout {
	integral := precision - scale
	l := decimalLayout{
		uncompIntegral:   integral / digitsPerInteger,
		uncompFractional: scale / digitsPerInteger,
	}
	l.compIntegral = integral - l.uncompIntegral*digitsPerInteger
	l.compFractional = scale - l.uncompFractional*digitsPerInteger
	return l
}

func (l decimalLayout) size() int {
	return l.uncompIntegral*4 + compressedBytes[l.compIntegral] +
		l.uncompFractional*4 + compressedBytes[l.compFractional]
}

// decodeDecimal reads a DECIMAL(precision, scale) in the binary format of
// the MySQL decimal2bin function.
func decodeDecimal(buf *mysql.Buffer, precision, scale int) (decimal.Decimal, error) {
	if precision <= 0 || scale < 0 || scale > precision {
		return decimal.Decimal{}, errors.Errorf("invalid decimal(%d,%d)", precision, scale)
	}
	l := newDecimalLayout(precision, scale)

	data, err := buf.Next(l.size())
	if err != nil {
		return decimal.Decimal{}, err
	}

	// The sign is the inverted high bit, negative values store all bits
	// inverted.
	negative := data[0]&0x80 == 0
	data[0] ^= 0x80
	if negative {
		for i := range data {
			data[i] ^= 0xff
		}
	}

	sb := new(strings.Builder)
	if negative {
		sb.WriteByte('-')
	}

	pos := 0
	group := func(bytes, digits int) {
		var v uint64
		for _, b := range data[pos : pos+bytes] {
			v = v<<8 | uint64(b)
		}
		pos += bytes
		s := strconv.FormatUint(v, 10)
		for i := len(s); i < digits; i++ {
			sb.WriteByte('0')
		}
		sb.WriteString(s)
	}

	if l.compIntegral == 0 && l.uncompIntegral == 0 {
		sb.WriteByte('0')
	}
	if size := compressedBytes[l.compIntegral]; size > 0 {
		group(size, l.compIntegral)
	}
	for i := 0; i < l.uncompIntegral; i++ {
		group(4, digitsPerInteger)
	}

	if scale > 0 {
		sb.WriteByte('.')
		for i := 0; i < l.uncompFractional; i++ {
			group(4, digitsPerInteger)
		}
		if size := compressedBytes[l.compFractional]; size > 0 {
			group(size, l.compFractional)
		}
	}

	d, err := decimal.NewFromString(sb.String())
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(ErrInvalidData, err.Error())
	}
	return d, nil
}

// encodeDecimal is the inverse of decodeDecimal.
func encodeDecimal(d decimal.Decimal, precision, scale int) ([]byte, error) {
	if precision <= 0 || scale < 0 || scale > precision {
		return nil, errors.Errorf("invalid decimal(%d,%d)", precision, scale)
	}
	l := newDecimalLayout(precision, scale)

	negative := d.Sign() < 0
	s := d.Abs().StringFixed(int32(scale))
	intPart, fracPart := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}
	integral := precision - scale
	if intPart == "0" {
		intPart = ""
	}
	if len(intPart) > integral {
		return nil, errors.Errorf("%s overflows decimal(%d,%d)", d, precision, scale)
	}
	intPart = strings.Repeat("0", integral-len(intPart)) + intPart

	data := make([]byte, 0, l.size())
	group := func(digits string, bytes int) {
		var v uint64
		for _, c := range digits {
			v = v*10 + uint64(c-'0')
		}
		for i := bytes - 1; i >= 0; i-- {
			data = append(data, byte(v>>(8*i)))
		}
	}

	pos := 0
	if size := compressedBytes[l.compIntegral]; size > 0 {
		group(intPart[:l.compIntegral], size)
		pos = l.compIntegral
	}
	for i := 0; i < l.uncompIntegral; i++ {
		group(intPart[pos:pos+digitsPerInteger], 4)
		pos += digitsPerInteger
	}
	pos = 0
	for i := 0; i < l.uncompFractional; i++ {
		group(fracPart[pos:pos+digitsPerInteger], 4)
		pos += digitsPerInteger
	}
	if size := compressedBytes[l.compFractional]; size > 0 {
		group(fracPart[pos:], size)
	}

	if negative {
		for i := range data {
			data[i] ^= 0xff
		}
	}
	data[0] ^= 0x80
	return data, nil
}
