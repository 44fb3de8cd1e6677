package replica

import "fmt"

// State is the lifecycle stage of a Replica.
type State uint32

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateRegistering
	StateStreaming
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateAuthenticating:
		return "Authenticating"
	case StateRegistering:
		return "Registering"
	case StateStreaming:
		return "Streaming"
	case StateReconnecting:
		return "Reconnecting"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// UnknownTablePolicy decides what happens to a rows event whose table map
// was never seen on the current connection.
type UnknownTablePolicy uint8

const (
	// UnknownTableFail ends the stream with the unknown table error.
	UnknownTableFail UnknownTablePolicy = iota
	// UnknownTableSkip logs the event and yields it undecoded as an
	// UnhandledEvent.
	UnknownTableSkip
)

func ParseUnknownTablePolicy(s string) (UnknownTablePolicy, error) {
	switch s {
	case "", "fail":
		return UnknownTableFail, nil
	case "skip":
		return UnknownTableSkip, nil
	default:
		return UnknownTableFail, fmt.Errorf("unknown table policy: %s", s)
	}
}

func (p UnknownTablePolicy) String() string {
	if p == UnknownTableSkip {
		return "skip"
	}
	return "fail"
}
