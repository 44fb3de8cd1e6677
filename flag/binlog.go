package flag

import "strings"

// BinlogDump is the flags field of COM_BINLOG_DUMP and COM_BINLOG_DUMP_GTID.
type BinlogDump uint16

const (
	BinlogDumpNonBlock BinlogDump = 1 << iota
	BinlogThroughPosition
	BinlogThroughGTID
)

func (f BinlogDump) String() string {
	var names []string
	if f&BinlogDumpNonBlock != 0 {
		names = append(names, "BINLOG_DUMP_NON_BLOCK")
	}
	if f&BinlogThroughPosition != 0 {
		names = append(names, "BINLOG_THROUGH_POSITION")
	}
	if f&BinlogThroughGTID != 0 {
		names = append(names, "BINLOG_THROUGH_GTID")
	}
	return "[" + strings.Join(names, " ") + "]"
}
