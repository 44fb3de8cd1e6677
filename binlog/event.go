package binlog

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/vczyh/mysql-cdc/mysql"
	"github.com/vczyh/mysql-cdc/packet"
)

const (
	// EventHeaderLen is the length of the v4 common header.
	EventHeaderLen = 19
	// ChecksumLen is the length of the CRC32 footer.
	ChecksumLen = 4
)

var (
	ErrInvalidData = errors.New("binlog: invalid event data")
)

// Event is one decoded binlog event. The set of implementations is closed:
// FormatDescriptionEvent, RotateEvent, PreviousGTIDsEvent, GTIDEvent,
// QueryEvent, XidEvent, TableMapEvent, RowsEvent, HeartbeatEvent and
// UnhandledEvent.
type Event interface {
	Header() *EventHeader
	isEvent()
}

type EventHeader struct {
	Timestamp uint32
	EventType EventType
	ServerId  uint32
	// EventSize covers header, post-header, body and checksum.
	EventSize uint32
	// LogPos is the position of the next event.
	LogPos uint32
	Flags  EventFlag
}

func (h *EventHeader) Header() *EventHeader {
	return h
}

func (*FormatDescriptionEvent) isEvent() {}
func (*RotateEvent) isEvent() {}
func (*PreviousGTIDsEvent) isEvent() {}
func (*GTIDEvent) isEvent() {}
func (*QueryEvent) isEvent() {}
func (*XidEvent) isEvent() {}
func (*TableMapEvent) isEvent() {}
func (*RowsEvent) isEvent() {}
func (*HeartbeatEvent) isEvent() {}
func (*UnhandledEvent) isEvent() {}

// Time returns the event timestamp.
func (h *EventHeader) Time() time.Time {
	return time.Unix(int64(h.Timestamp), 0)
}

func (h *EventHeader) String() string {
	sb := new(strings.Builder)

	fmt.Fprintf(sb, "### %s ###\n", h.EventType.String())
	fmt.Fprintf(sb, "Timestamp: %s\n", h.Time().Format(time.RFC3339))
	fmt.Fprintf(sb, "Server id: %d\n", h.ServerId)
	fmt.Fprintf(sb, "Event size: %d\n", h.EventSize)
	fmt.Fprintf(sb, "Log position: %d\n", h.LogPos)
	fmt.Fprintf(sb, "Flags: %s\n", h.Flags.String())

	return sb.String()
}

func parseEventHeader(buf *mysql.Buffer) (EventHeader, error) {
	var h EventHeader
	var err error

	if h.Timestamp, err = buf.Uint32(); err != nil {
		return h, err
	}

	b, err := buf.Uint8()
	if err != nil {
		return h, err
	}
	h.EventType = EventType(b)

	if h.ServerId, err = buf.Uint32(); err != nil {
		return h, err
	}

	// Event size (header, post-header, body)
	if h.EventSize, err = buf.Uint32(); err != nil {
		return h, err
	}

	// Position of the next event
	if h.LogPos, err = buf.Uint32(); err != nil {
		return h, err
	}

	flags, err := buf.Uint16()
	if err != nil {
		return h, err
	}
	h.Flags = EventFlag(flags)

	return h, nil
}

func (h *EventHeader) dump() []byte {
	dump := make([]byte, 0, EventHeaderLen)
	dump = append(dump, packet.FixedLengthInteger.Dump(uint64(h.Timestamp), 4)...)
	dump = append(dump, byte(h.EventType))
	dump = append(dump, packet.FixedLengthInteger.Dump(uint64(h.ServerId), 4)...)
	dump = append(dump, packet.FixedLengthInteger.Dump(uint64(h.EventSize), 4)...)
	dump = append(dump, packet.FixedLengthInteger.Dump(uint64(h.LogPos), 4)...)
	dump = append(dump, packet.FixedLengthInteger.Dump(uint64(h.Flags), 2)...)
	return dump
}

// UnhandledEvent carries an event whose type is not decoded. Data is the
// event body after the common header, without checksum.
type UnhandledEvent struct {
	EventHeader
	Data []byte
}

func boolToInt(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
