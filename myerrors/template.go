package myerrors

import (
	"fmt"

	"github.com/vczyh/mysql-cdc/code"
	"github.com/vczyh/mysql-cdc/packet"
)

const SQLStateDef = "HY000"

// https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
var (
	AccessDenied            = NewTemplate(code.ErrAccessDeniedError, "28000", "Access denied for user '%s'@'%s' (using password: %s)")
	SecureTransportRequired = NewTemplate(code.ErrSecureTransportRequired, SQLStateDef, "Connections using insecure transport are prohibited while --require_secure_transport=ON.")
	UnknownCommand          = NewTemplate(code.ErrUnknownComError, "08S01", "Unknown command %s")
	UnknownSystemVariable   = NewTemplate(code.ErrUnknownSystemVariable, SQLStateDef, "Unknown system variable '%s'")
	SyntaxError             = NewTemplate(code.ErrSyntaxError, "42000", "You have an error in your SQL syntax: %s")
	NotSupportedYet         = NewTemplate(code.ErrNotSupportedYet, "42000", "This version of MySQL doesn't yet support '%s'")
	FatalReadingBinlog      = NewTemplate(code.ErrMasterFatalErrorReadingBinlog, SQLStateDef, "Got fatal error 1236 from source when reading data from binary log: '%s'")
	PurgedRequiredGTIDs     = NewTemplate(code.ErrMasterHasPurgedRequiredGTIDs, SQLStateDef, "The replication receiver thread cannot start because the source has purged binary logs containing GTIDs that the replica requires.")
)

// Template builds server side ERR packets.
type Template struct {
	code     code.Err
	sqlState string
	format   string
}

func NewTemplate(c code.Err, state, format string) *Template {
	return &Template{
		code:     c,
		sqlState: state,
		format:   format,
	}
}

func (t *Template) Code() code.Err {
	return t.code
}

func (t *Template) Build(args ...interface{}) *packet.ERR {
	message := t.format
	if len(args) > 0 {
		message = fmt.Sprintf(t.format, args...)
	}
	return packet.NewERR(t.code, t.sqlState, message)
}
