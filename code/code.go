package code

import "fmt"

type Err uint16

// https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
// https://dev.mysql.com/doc/refman/8.0/en/error-message-elements.html

// 1,000 to 1,999: Server error codes reserved for messages sent to clients.
const (
	ErrHandshakeError                Err = 1043
	ErrDBAccessDeniedError           Err = 1044
	ErrAccessDeniedError             Err = 1045
	ErrUnknownComError               Err = 1047
	ErrUnknownError                  Err = 1105
	ErrSyntaxError                   Err = 1149
	ErrUnknownSystemVariable         Err = 1193
	ErrNotSupportedYet               Err = 1235
	ErrMasterFatalErrorReadingBinlog Err = 1236
	ErrAccessDeniedNoPassword        Err = 1698
	ErrMasterHasPurgedRequiredGTIDs  Err = 1789
)

// 3,000 to 4,999: Server error codes reserved for messages sent to clients.
const (
	ErrSecureTransportRequired Err = 3159
)

// IsAuthFailure reports whether c rejects the supplied credentials.
func (c Err) IsAuthFailure() bool {
	switch c {
	case ErrAccessDeniedError, ErrDBAccessDeniedError, ErrAccessDeniedNoPassword, ErrHandshakeError, ErrSecureTransportRequired:
		return true
	default:
		return false
	}
}

// IsPositionRejected reports whether c rejects a requested replication
// start position.
func (c Err) IsPositionRejected() bool {
	return c == ErrMasterFatalErrorReadingBinlog || c == ErrMasterHasPurgedRequiredGTIDs
}

func (c Err) String() string {
	return fmt.Sprintf("MY-%06d", uint16(c))
}
