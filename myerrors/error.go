package myerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a failure by how the caller should react to it.
type Kind uint8

const (
	Unknown Kind = iota
	// Connection is a network failure. Retryable.
	Connection
	// Auth is a credential, TLS or protocol version rejection.
	Auth
	// Protocol is a rejected replication request, such as a purged binlog
	// or an unknown GTID.
	Protocol
	// UnknownTable is a row event whose table id was never mapped.
	UnknownTable
	// Regression is a position that moves backward.
	Regression
	// Decode is a malformed event or packet.
	Decode
)

func (k Kind) String() string {
	switch k {
	case Connection:
		return "ConnectionError"
	case Auth:
		return "AuthError"
	case Protocol:
		return "ProtocolError"
	case UnknownTable:
		return "UnknownTableError"
	case Regression:
		return "RegressionError"
	case Decode:
		return "DecodeError"
	default:
		return "UnknownError"
	}
}

type Error struct {
	Kind Kind
	// Op names the operation that failed, e.g. "dial" or "decode rows".
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Cause() error {
	return e.Err
}

// Format prints the wrapped cause with its stack under %+v.
func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			if e.Op != "" {
				fmt.Fprintf(s, "%s: %s: %+v", e.Kind, e.Op, e.Err)
			} else {
				fmt.Fprintf(s, "%s: %+v", e.Kind, e.Err)
			}
			return
		}
		fallthrough
	case 's':
		fmt.Fprint(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}

// New wraps err with kind. A nil err yields nil. The cause keeps a stack
// trace.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: errors.WithStack(err)}
}

func Newf(kind Kind, op string, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Err: errors.Errorf(format, args...)}
}

func NewConnection(op string, err error) error {
	return New(Connection, op, err)
}

func NewAuth(op string, err error) error {
	return New(Auth, op, err)
}

func NewProtocol(op string, err error) error {
	return New(Protocol, op, err)
}

func NewDecode(op string, err error) error {
	return New(Decode, op, err)
}

// NewUnknownTable reports a row event for a table id with no preceding
// table map event.
func NewUnknownTable(tableId uint64) error {
	return Newf(UnknownTable, "decode rows", "table id %d not found in table map cache", tableId)
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err carries kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable reports whether reconnecting could make err go away.
func Retryable(err error) bool {
	return Is(err, Connection)
}
