package client

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/vczyh/mysql-cdc/flag"
	"github.com/vczyh/mysql-cdc/myerrors"
	"github.com/vczyh/mysql-cdc/packet"
)

// Result is the OK packet of a statement without a result set.
type Result struct {
	AffectedRows uint64
	LastInsertId uint64
	Status       flag.Status
}

type ResultSet struct {
	Columns []*packet.ColumnDefinition
	Rows    [][]sql.NullString
}

func (rs *ResultSet) ColumnNames() []string {
	columns := make([]string, 0, len(rs.Columns))
	for _, column := range rs.Columns {
		columns = append(columns, column.Name)
	}
	return columns
}

// Value returns the named column of row i, case-sensitively.
func (rs *ResultSet) Value(i int, name string) (sql.NullString, bool) {
	if i < 0 || i >= len(rs.Rows) {
		return sql.NullString{}, false
	}
	for j, column := range rs.Columns {
		if column.Name == name {
			return rs.Rows[i][j], true
		}
	}
	return sql.NullString{}, false
}

// Exec is implement of the COM_QUERY for statements that do not return rows.
func (c *Conn) Exec(query string) (*Result, error) {
	if err := c.WriteCommandPacket(packet.NewQuery(query)); err != nil {
		return nil, myerrors.NewConnection("exec", err)
	}

	data, err := c.ReadPacket()
	if err != nil {
		return nil, myerrors.NewConnection("exec", err)
	}

	switch {
	case packet.IsOK(data):
		ok, err := packet.ParseOk(data, c.Capabilities())
		if err != nil {
			return nil, err
		}
		return &Result{AffectedRows: ok.AffectedRows, LastInsertId: ok.LastInsertId, Status: ok.StatusFlags}, nil
	case packet.IsErr(data):
		return nil, c.handleOKERRPacket(data)
	default:
		// a result set nobody asked for
		if _, err := c.handleResultSet(data); err != nil {
			return nil, err
		}
		return &Result{}, nil
	}
}

// Query is implement of the COM_QUERY
func (c *Conn) Query(query string) (*ResultSet, error) {
	if err := c.WriteCommandPacket(packet.NewQuery(query)); err != nil {
		return nil, myerrors.NewConnection("query", err)
	}

	data, err := c.ReadPacket()
	if err != nil {
		return nil, myerrors.NewConnection("query", err)
	}

	switch {
	case packet.IsOK(data):
		return &ResultSet{}, nil
	case packet.IsErr(data):
		return nil, c.handleOKERRPacket(data)
	case packet.IsLocalInfileRequest(data):
		return nil, errors.New("client: LOCAL INFILE request is not supported")
	default:
		return c.handleResultSet(data)
	}
}

func (c *Conn) handleResultSet(data []byte) (*ResultSet, error) {
	columnCount, err := packet.ParseColumnCount(data)
	if err != nil {
		return nil, err
	}

	rs := new(ResultSet)
	for i := 0; i < int(columnCount); i++ {
		data, err := c.ReadPacket()
		if err != nil {
			return nil, myerrors.NewConnection("read column", err)
		}
		column, err := packet.ParseColumnDefinition(data)
		if err != nil {
			return nil, err
		}
		rs.Columns = append(rs.Columns, column)
	}

	if c.Capabilities()&flag.ClientDeprecateEOF == 0 {
		data, err := c.ReadPacket()
		if err != nil {
			return nil, myerrors.NewConnection("read column", err)
		}
		if !packet.IsEOF(data) {
			return nil, packet.ErrPacketData
		}
	}

	for {
		data, err := c.ReadPacket()
		if err != nil {
			return nil, myerrors.NewConnection("read row", err)
		}
		switch {
		case packet.IsEOF(data), packet.IsOK(data) && c.Capabilities()&flag.ClientDeprecateEOF != 0:
			return rs, nil
		case packet.IsErr(data):
			return nil, c.handleOKERRPacket(data)
		}

		row, err := packet.ParseTextResultSetRow(data, int(columnCount))
		if err != nil {
			return nil, err
		}
		rs.Rows = append(rs.Rows, row.Values)
	}
}

// Ping is implement of the COM_PING
func (c *Conn) Ping() error {
	if err := c.WriteCommandPacket(packet.NewPing()); err != nil {
		return myerrors.NewConnection("ping", err)
	}
	return c.readOKERRPacket()
}

// Quit is implement of the COM_QUIT. The server answers by closing the
// connection.
func (c *Conn) Quit() error {
	err := c.WriteCommandPacket(packet.NewQuit())
	if closeErr := c.Close(); err == nil {
		err = closeErr
	}
	return err
}

// RegisterReplica is implement of the COM_REGISTER_SLAVE. A rejection is a
// protocol error.
func (c *Conn) RegisterReplica(p *packet.RegisterReplica) error {
	if err := c.WriteCommandPacket(p); err != nil {
		return myerrors.NewConnection("register replica", err)
	}
	data, err := c.ReadPacket()
	if err != nil {
		return myerrors.NewConnection("register replica", err)
	}
	if err := c.handleOKERRPacket(data); err != nil {
		return myerrors.NewProtocol("register replica", err)
	}
	return nil
}

// BinlogDump is implement of the COM_BINLOG_DUMP. The events follow via
// ReadBinlogEvent.
func (c *Conn) BinlogDump(p *packet.BinlogDump) error {
	if err := c.WriteCommandPacket(p); err != nil {
		return myerrors.NewConnection("binlog dump", err)
	}
	return nil
}

// BinlogDumpGTID is implement of the COM_BINLOG_DUMP_GTID.
func (c *Conn) BinlogDumpGTID(p *packet.BinlogDumpGTID) error {
	if err := c.WriteCommandPacket(p); err != nil {
		return myerrors.NewConnection("binlog dump gtid", err)
	}
	return nil
}

// ReadBinlogEvent reads the next frame of a binlog dump and returns the
// event without the OK marker. It returns ErrEndOfBinlog when a non-blocking
// dump reaches the end of the binlog and a protocol error when the server
// rejects the dump.
func (c *Conn) ReadBinlogEvent() ([]byte, error) {
	data, err := c.ReadPacket()
	if err != nil {
		return nil, myerrors.NewConnection("read binlog event", err)
	}

	switch {
	case len(data) > 4 && data[4] == packet.OKPacketHeader:
		return data[5:], nil
	case packet.IsEOF(data):
		return nil, ErrEndOfBinlog
	case packet.IsErr(data):
		return nil, myerrors.NewProtocol("read binlog event", c.handleOKERRPacket(data))
	default:
		return nil, myerrors.NewDecode("read binlog event", packet.ErrPacketData)
	}
}
