package server

import (
	"database/sql"
	"fmt"

	"github.com/vczyh/mysql-cdc/flag"
	"github.com/vczyh/mysql-cdc/mysql"
	"github.com/vczyh/mysql-cdc/packet"
)

// ResultSet is a text result set of VARCHAR columns.
type ResultSet struct {
	Columns []string
	Rows    [][]sql.NullString
}

func (rs *ResultSet) WriteText(conn mysql.Conn) error {
	for _, row := range rs.Rows {
		if len(row) != len(rs.Columns) {
			return fmt.Errorf("column num and row value num do not match")
		}
	}

	// column count packet
	if err := conn.WritePacket(packet.NewColumnCount(len(rs.Columns))); err != nil {
		return err
	}

	// columnCount * ColumnDefinition packet
	for _, name := range rs.Columns {
		if err := conn.WritePacket(packet.NewVarcharColumn(name)); err != nil {
			return err
		}
	}

	// CLIENT_DEPRECATE_EOF is never advertised
	if err := conn.WritePacket(packet.NewEOF(0, flag.ServerStatusAutocommit)); err != nil {
		return err
	}

	// columnCount * ResultSetRow packet
	for _, row := range rs.Rows {
		if err := conn.WritePacket(packet.NewTextResultSetRow(row...)); err != nil {
			return err
		}
	}

	return conn.WritePacket(packet.NewEOF(0, flag.ServerStatusAutocommit))
}
