package packet

import (
	"bytes"
	"database/sql"

	"github.com/vczyh/mysql-cdc/flag"
)

// TextResultSetRow https://dev.mysql.com/doc/internals/en/com-query-response.html#packet-ProtocolText::ResultsetRow
type TextResultSetRow struct {
	Header

	Values []sql.NullString
}

func NewTextResultSetRow(values ...sql.NullString) *TextResultSetRow {
	return &TextResultSetRow{Values: values}
}

// ParseTextResultSetRow decodes a row of columnCount text values. NULL is
// encoded as 0xfb.
func ParseTextResultSetRow(data []byte, columnCount int) (*TextResultSetRow, error) {
	p := new(TextResultSetRow)
	buf := bytes.NewBuffer(data)
	if err := p.Parse(buf); err != nil {
		return nil, err
	}

	p.Values = make([]sql.NullString, columnCount)
	for i := range p.Values {
		if buf.Len() == 0 {
			return nil, ErrPacketData
		}
		if buf.Bytes()[0] == 0xfb {
			buf.Next(1)
			continue
		}
		b, err := LengthEncodedString.Get(buf)
		if err != nil {
			return nil, err
		}
		p.Values[i] = sql.NullString{String: string(b), Valid: true}
	}

	return p, nil
}

func (p *TextResultSetRow) Dump(flag.Capability) ([]byte, error) {
	var payload bytes.Buffer
	for _, v := range p.Values {
		if !v.Valid {
			payload.WriteByte(0xfb)
			continue
		}
		payload.Write(LengthEncodedString.Dump([]byte(v.String)))
	}
	return p.wrap(payload.Bytes()), nil
}
