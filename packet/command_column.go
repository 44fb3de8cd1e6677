package packet

import (
	"bytes"

	"github.com/vczyh/mysql-cdc/charset"
	"github.com/vczyh/mysql-cdc/flag"
)

// ColumnDefinition https://dev.mysql.com/doc/internals/en/com-query-response.html#column-definition
type ColumnDefinition struct {
	Header

	Catalog      string // def
	Schema       string
	Table        string
	OrgTable     string
	Name         string
	OrgName      string
	NextLength   uint64 // 0x0c
	CharacterSet *charset.Collation
	ColumnLength uint32
	ColumnType   flag.TableColumnType
	Flags        flag.ColumnDefinition
	Decimals     uint8
}

// NewVarcharColumn describes a text result column, which is all SHOW and
// SELECT @@var responses need.
func NewVarcharColumn(name string) *ColumnDefinition {
	collation, _ := charset.GetCollation(33)
	return &ColumnDefinition{
		Name:         name,
		OrgName:      name,
		CharacterSet: collation,
		ColumnLength: 1024,
		ColumnType:   flag.MySQLTypeVarString,
	}
}

func ParseColumnDefinition(bs []byte) (*ColumnDefinition, error) {
	p := new(ColumnDefinition)
	buf := bytes.NewBuffer(bs)
	if err := p.Parse(buf); err != nil {
		return nil, err
	}

	for _, s := range []*string{&p.Catalog, &p.Schema, &p.Table, &p.OrgTable, &p.Name, &p.OrgName} {
		b, err := LengthEncodedString.Get(buf)
		if err != nil {
			return nil, err
		}
		*s = string(b)
	}

	var err error
	if p.NextLength, err = LengthEncodedInteger.Get(buf); err != nil {
		return nil, err
	}
	if buf.Len() < 10 {
		return nil, ErrPacketData
	}

	if p.CharacterSet, err = charset.GetCollation(FixedLengthInteger.Get(buf.Next(2))); err != nil {
		return nil, err
	}
	p.ColumnLength = FixedLengthInteger.Uint32(buf.Next(4))
	p.ColumnType = flag.TableColumnType(buf.Next(1)[0])
	p.Flags = flag.ColumnDefinition(FixedLengthInteger.Uint16(buf.Next(2)))
	p.Decimals = buf.Next(1)[0]

	// filler [00] [00]
	buf.Next(2)

	return p, nil
}

func (p *ColumnDefinition) Dump(flag.Capability) ([]byte, error) {
	var payload bytes.Buffer

	if p.Catalog == "" {
		p.Catalog = "def"
	}
	for _, s := range []string{p.Catalog, p.Schema, p.Table, p.OrgTable, p.Name, p.OrgName} {
		payload.Write(LengthEncodedString.Dump([]byte(s)))
	}

	if p.NextLength == 0 {
		p.NextLength = 0x0c
	}
	payload.Write(LengthEncodedInteger.Dump(p.NextLength))

	payload.Write(FixedLengthInteger.Dump(p.CharacterSet.Id(), 2))
	payload.Write(FixedLengthInteger.Dump(uint64(p.ColumnLength), 4))
	payload.WriteByte(byte(p.ColumnType))
	payload.Write(FixedLengthInteger.Dump(uint64(p.Flags), 2))
	payload.WriteByte(p.Decimals)

	payload.Write([]byte{0x00, 0x00})

	return p.wrap(payload.Bytes()), nil
}
