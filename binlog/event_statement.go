package binlog

import (
	"fmt"
	"strings"
	"time"

	"github.com/pingcap/parser/ast"
	_ "github.com/pingcap/parser/test_driver"
	"github.com/vczyh/mysql-cdc/mysql"
)

// QueryKind tells how a statement affects transaction boundaries.
type QueryKind uint8

const (
	QueryOther QueryKind = iota
	QueryBegin
	QueryCommit
	QueryRollback
	QueryDDL
)

func (k QueryKind) String() string {
	switch k {
	case QueryBegin:
		return "BEGIN"
	case QueryCommit:
		return "COMMIT"
	case QueryRollback:
		return "ROLLBACK"
	case QueryDDL:
		return "DDL"
	default:
		return "OTHER"
	}
}

// EndsTransaction reports whether a statement of this kind closes a
// transaction, so the position after it is safe to resume from.
func (k QueryKind) EndsTransaction() bool {
	return k == QueryCommit || k == QueryRollback || k == QueryDDL
}

type QueryEvent struct {
	EventHeader
	ThreadId uint32
	ExecTime uint32
	ErrCode  uint16

	Flags2                 Option
	SQLMode                SQLMode
	Catalog                string
	AutoIncrementIncrement uint16
	AutoIncrementOffset    uint16
	CharsetClient          uint16
	CollationConnection    uint16
	CollationServer        uint16

	TimeZone                   string
	LcTimeNames                uint16
	CharsetDatabase            uint16
	TableMapForUpdate          uint64
	MasterDataWritten          uint32
	User                       string
	Host                       string
	MtsAccessedDBNames         []string
	ExplicitDefaultsTS         Ternary
	DDLXid                     uint64
	DefaultCollationForUtf8mb4 uint16
	SQLRequirePrimaryKey       uint8
	DefaultTableEncryption     uint8

	Database string
	Query    string
	Kind     QueryKind
}

const queryPostHeaderV3Len = 11

func parseQueryEvent(h EventHeader, buf *mysql.Buffer, fde *FormatDescriptionEvent) (*QueryEvent, error) {
	e := &QueryEvent{
		EventHeader:            h,
		AutoIncrementIncrement: 1,
		AutoIncrementOffset:    1,
	}
	var err error

	if e.ThreadId, err = buf.Uint32(); err != nil {
		return nil, err
	}
	if e.ExecTime, err = buf.Uint32(); err != nil {
		return nil, err
	}
	dbLen, err := buf.Uint8()
	if err != nil {
		return nil, err
	}
	if e.ErrCode, err = buf.Uint16(); err != nil {
		return nil, err
	}

	postHeaderLen := int(fde.PostHeaderLen(EventTypeQuery))
	var statusVarsLen uint16
	if postHeaderLen > queryPostHeaderV3Len {
		if statusVarsLen, err = buf.Uint16(); err != nil {
			return nil, err
		}
		if err := buf.Skip(postHeaderLen - queryPostHeaderV3Len - 2); err != nil {
			return nil, err
		}
	}

	statusVars, err := buf.Next(int(statusVarsLen))
	if err != nil {
		return nil, err
	}
	if err := e.parseStatusVars(mysql.NewBuffer(statusVars)); err != nil {
		return nil, err
	}

	if e.Database, err = buf.NextString(int(dbLen)); err != nil {
		return nil, err
	}

	// 0x00
	if err := buf.Skip(1); err != nil {
		return nil, err
	}

	e.Query = buf.String()

	return e, nil
}

// parseStatusVars stops at the first unknown status variable, later ones
// cannot be located without knowing its length.
func (e *QueryEvent) parseStatusVars(buf *mysql.Buffer) error {
	for buf.Len() > 0 {
		code, err := buf.Uint8()
		if err != nil {
			return err
		}

		switch QueryEventStatusVars(code) {
		case QueryStatusVarsFlags2:
			flags2, err := buf.Uint32()
			if err != nil {
				return err
			}
			e.Flags2 = Option(flags2)
		case QueryStatusVarsSQLMode:
			mode, err := buf.Uint64()
			if err != nil {
				return err
			}
			e.SQLMode = SQLMode(mode)
		case QueryStatusVarsCatalog:
			catalogLen, err := buf.Uint8()
			if err != nil {
				return err
			}
			if e.Catalog, err = buf.NextString(int(catalogLen)); err != nil {
				return err
			}
			if err := buf.Skip(1); err != nil {
				return err
			}
		case QueryStatusVarsAutoIncrement:
			if e.AutoIncrementIncrement, err = buf.Uint16(); err != nil {
				return err
			}
			if e.AutoIncrementOffset, err = buf.Uint16(); err != nil {
				return err
			}
		case QueryStatusVarsCharset:
			if e.CharsetClient, err = buf.Uint16(); err != nil {
				return err
			}
			if e.CollationConnection, err = buf.Uint16(); err != nil {
				return err
			}
			if e.CollationServer, err = buf.Uint16(); err != nil {
				return err
			}
		case QueryStatusVarsTimeZone:
			l, err := buf.Uint8()
			if err != nil {
				return err
			}
			if e.TimeZone, err = buf.NextString(int(l)); err != nil {
				return err
			}
		case QueryStatusVarsCatalogNz:
			l, err := buf.Uint8()
			if err != nil {
				return err
			}
			if e.Catalog, err = buf.NextString(int(l)); err != nil {
				return err
			}
		case QueryStatusVarsLcTimeNames:
			if e.LcTimeNames, err = buf.Uint16(); err != nil {
				return err
			}
		case QueryStatusVarsCharsetDatabase:
			if e.CharsetDatabase, err = buf.Uint16(); err != nil {
				return err
			}
		case QueryStatusVarsTableMapForUpdate:
			if e.TableMapForUpdate, err = buf.Uint64(); err != nil {
				return err
			}
		case QueryStatusVarsMasterDataWritten:
			if e.MasterDataWritten, err = buf.Uint32(); err != nil {
				return err
			}
		case QueryStatusVarsInvoker:
			userLen, err := buf.Uint8()
			if err != nil {
				return err
			}
			if e.User, err = buf.NextString(int(userLen)); err != nil {
				return err
			}
			hostLen, err := buf.Uint8()
			if err != nil {
				return err
			}
			if e.Host, err = buf.NextString(int(hostLen)); err != nil {
				return err
			}
		case QueryStatusVarsUpdatedDBNames:
			n, err := buf.Uint8()
			if err != nil {
				return err
			}
			// 254 means the statement touched too many databases to list.
			if n == 254 {
				continue
			}
			e.MtsAccessedDBNames = make([]string, n)
			for i := range e.MtsAccessedDBNames {
				if e.MtsAccessedDBNames[i], err = buf.NulTerminatedString(); err != nil {
					return err
				}
			}
		case QueryStatusVarsMicroseconds:
			if err := buf.Skip(3); err != nil {
				return err
			}
		case QueryStatusVarsCommitTS:
			if err := buf.Skip(8); err != nil {
				return err
			}
		case QueryStatusVarsExplicitDefaultsForTimestamp:
			val, err := buf.Uint8()
			if err != nil {
				return err
			}
			e.ExplicitDefaultsTS = TernaryOff
			if val != 0 {
				e.ExplicitDefaultsTS = TernaryOn
			}
		case QueryStatusVarsDDLLoggedWithXid:
			if e.DDLXid, err = buf.Uint64(); err != nil {
				return err
			}
		case QueryStatusVarsDefaultCollationForUtf8mb4:
			if e.DefaultCollationForUtf8mb4, err = buf.Uint16(); err != nil {
				return err
			}
		case QueryStatusVarsSQLRequirePrimaryKey:
			if e.SQLRequirePrimaryKey, err = buf.Uint8(); err != nil {
				return err
			}
		case QueryStatusVarsDefaultTableEncryption:
			if e.DefaultTableEncryption, err = buf.Uint8(); err != nil {
				return err
			}
		default:
			return nil
		}
	}
	return nil
}

func (e *QueryEvent) String() string {
	sb := new(strings.Builder)
	sb.WriteString(e.EventHeader.String())

	fmt.Fprintf(sb, "Thread id: %d\n", e.ThreadId)
	fmt.Fprintf(sb, "Execute time: %s\n", time.Duration(e.ExecTime)*time.Second)
	fmt.Fprintf(sb, "Error code: %d\n", e.ErrCode)

	fmt.Fprintf(sb, "Query options: ")
	fmt.Fprintf(sb, "foreign_key_checks=%d, ", boolToInt(e.Flags2&OptionNoForeignKeyChecks == 0))
	fmt.Fprintf(sb, "sql_auto_is_null=%d, ", boolToInt(e.Flags2&OptionAutoIsNull > 0))
	fmt.Fprintf(sb, "unique_checks=%d, ", boolToInt(e.Flags2&OptionRelaxedUniqueChecks == 0))
	fmt.Fprintf(sb, "autocommit=%d\n", boolToInt(e.Flags2&OptionNotAutocommit == 0))

	fmt.Fprintf(sb, "SQL mode: sql_mode=%d\n", e.SQLMode)
	fmt.Fprintf(sb, "Auto increment: auto_increment_increment=%d, auto_increment_offset=%d\n", e.AutoIncrementIncrement, e.AutoIncrementOffset)

	fmt.Fprintf(sb, "Database: %s\n", e.Database)
	fmt.Fprintf(sb, "Query: %s\n", e.Query)
	fmt.Fprintf(sb, "Kind: %s\n", e.Kind)

	return sb.String()
}

func (p *Parser) classify(query string) QueryKind {
	stmt, err := p.sqlParser.ParseOneStmt(query, "", "")
	if err != nil {
		return classifyByKeyword(query)
	}

	switch stmt.(type) {
	case *ast.BeginStmt:
		return QueryBegin
	case *ast.CommitStmt:
		return QueryCommit
	case *ast.RollbackStmt:
		return QueryRollback
	case ast.DDLNode:
		return QueryDDL
	default:
		return QueryOther
	}
}

// classifyByKeyword handles statements the SQL parser does not understand,
// such as MySQL specific DDL options.
func classifyByKeyword(query string) QueryKind {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return QueryOther
	}
	switch strings.ToUpper(strings.TrimRight(fields[0], ";")) {
	case "BEGIN":
		return QueryBegin
	case "COMMIT":
		return QueryCommit
	case "ROLLBACK":
		return QueryRollback
	case "CREATE", "ALTER", "DROP", "RENAME", "TRUNCATE":
		return QueryDDL
	default:
		return QueryOther
	}
}
