package binlog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vczyh/mysql-cdc/mysql"
	"github.com/vczyh/mysql-cdc/packet"
	"github.com/vczyh/mysql-cdc/position"
)

const (
	UndefinedServerVersion = 999999

	serverVersionLen = 50
	// binlog version, server version, create timestamp and header length.
	formatDescriptionFixedLen = 2 + serverVersionLen + 4 + 1
)

var (
	ChecksumVersionSplit   = []uint8{5, 6, 1}
	ChecksumVersionProduct = productVersion(ChecksumVersionSplit)

	leadingDigits = regexp.MustCompile(`^(\d+)`)
)

// defaultPostHeaderLens are the post-header lengths of binlog version 4 as
// written by MySQL 8.0, indexed by event type - 1.
var defaultPostHeaderLens = []uint8{
	56, 13, 0, 8, 0, 18, 0, 4, 4, 4, // START_V3 .. EXEC_LOAD
	4, 18, 0, 0, 98, 0, 4, 26, 8, 0, // DELETE_FILE .. WRITE_ROWS_V0
	0, 0, 8, 8, 8, 2, 0, 0, 0, 10, // UPDATE_ROWS_V0 .. WRITE_ROWS_V2
	10, 10, 42, 42, 0, 18, 52, 0, 10, 40, // UPDATE_ROWS_V2 .. TRANSACTION_PAYLOAD
	0, // HEARTBEAT_V2
}

type RotateEvent struct {
	EventHeader
	Position uint64
	Name     string
}

func parseRotateEvent(h EventHeader, buf *mysql.Buffer) (*RotateEvent, error) {
	e := &RotateEvent{EventHeader: h}

	// Start position of the next binlog
	pos, err := buf.Uint64()
	if err != nil {
		return nil, err
	}
	e.Position = pos

	// Name of the next binlog
	e.Name = string(buf.Bytes())

	return e, nil
}

// IsFake reports whether the source generated the event for the start of
// the dump instead of reading it from a binlog file.
func (e *RotateEvent) IsFake() bool {
	return e.Timestamp == 0 || e.LogPos == 0
}

func (e *RotateEvent) String() string {
	sb := new(strings.Builder)
	sb.WriteString(e.EventHeader.String())

	fmt.Fprintf(sb, "Position: %d\n", e.Position)
	fmt.Fprintf(sb, "Name: %s\n", e.Name)

	return sb.String()
}

type FormatDescriptionEvent struct {
	EventHeader
	BinlogVersion   uint16
	ServerVersion   string
	CreateTimestamp uint32
	HeaderLen       uint8
	// PostHeaderLens is indexed by event type - 1.
	PostHeaderLens []uint8
	ChecksumAlg    ChecksumAlgorithm
}

// DefaultFormatDescription describes binlog version 4 without checksums. It
// is used until the stream delivers its own format description.
func DefaultFormatDescription() *FormatDescriptionEvent {
	lens := make([]uint8, len(defaultPostHeaderLens))
	copy(lens, defaultPostHeaderLens)
	return &FormatDescriptionEvent{
		EventHeader:    EventHeader{EventType: EventTypeFormatDescription},
		BinlogVersion:  4,
		ServerVersion:  "8.0.0",
		HeaderLen:      EventHeaderLen,
		PostHeaderLens: lens,
		ChecksumAlg:    ChecksumAlgOff,
	}
}

// PostHeaderLen returns the post-header length of t, falling back to the
// version 4 default for types the description does not list.
func (e *FormatDescriptionEvent) PostHeaderLen(t EventType) uint8 {
	i := int(t) - 1
	if i >= 0 && i < len(e.PostHeaderLens) {
		return e.PostHeaderLens[i]
	}
	if i >= 0 && i < len(defaultPostHeaderLens) {
		return defaultPostHeaderLens[i]
	}
	return 0
}

// formatHasChecksum reports whether a raw format description event was
// written by a server that appends the checksum algorithm and footer.
func formatHasChecksum(raw []byte) bool {
	if len(raw) < EventHeaderLen+formatDescriptionFixedLen+1+ChecksumLen {
		return false
	}
	version := strings.TrimRight(string(raw[EventHeaderLen+2:EventHeaderLen+2+serverVersionLen]), "\x00")
	return productVersion(splitServerVersion(version)) >= ChecksumVersionProduct
}

// parseFormatDescriptionEvent expects the checksum footer to be removed
// already, the algorithm byte is the last byte of buf when present.
func parseFormatDescriptionEvent(h EventHeader, buf *mysql.Buffer) (*FormatDescriptionEvent, error) {
	e := &FormatDescriptionEvent{EventHeader: h}
	var err error

	if e.BinlogVersion, err = buf.Uint16(); err != nil {
		return nil, err
	}

	version, err := buf.Next(serverVersionLen)
	if err != nil {
		return nil, err
	}
	e.ServerVersion = strings.TrimRight(string(version), "\x00")

	if e.CreateTimestamp, err = buf.Uint32(); err != nil {
		return nil, err
	}

	if e.HeaderLen, err = buf.Uint8(); err != nil {
		return nil, err
	}
	if e.HeaderLen != EventHeaderLen {
		return nil, errors.Wrapf(ErrInvalidData, "unsupported event header length %d", e.HeaderLen)
	}

	// Post header lengths and checksum algorithm
	rest := buf.Bytes()
	if productVersion(splitServerVersion(e.ServerVersion)) >= ChecksumVersionProduct {
		if len(rest) == 0 {
			return nil, errors.Wrap(ErrInvalidData, "missing checksum algorithm")
		}
		e.ChecksumAlg = ChecksumAlgorithm(rest[len(rest)-1])
		rest = rest[:len(rest)-1]
	} else {
		e.ChecksumAlg = ChecksumAlgUndefined
	}
	e.PostHeaderLens = make([]uint8, len(rest))
	copy(e.PostHeaderLens, rest)

	return e, nil
}

func (e *FormatDescriptionEvent) String() string {
	sb := new(strings.Builder)
	sb.WriteString(e.EventHeader.String())

	fmt.Fprintf(sb, "Binlog version: %d\n", e.BinlogVersion)
	fmt.Fprintf(sb, "Server version: %s\n", e.ServerVersion)
	fmt.Fprintf(sb, "Create timestamp: %s\n", time.Unix(int64(e.CreateTimestamp), 0).Format(time.RFC3339))
	fmt.Fprintf(sb, "Header length: %d\n", e.HeaderLen)
	fmt.Fprintf(sb, "Event types number: %d\n", len(e.PostHeaderLens))
	fmt.Fprintf(sb, "Checksum: %s\n", e.ChecksumAlg)

	return sb.String()
}

type PreviousGTIDsEvent struct {
	EventHeader
	GTIDSet *position.GTIDSet
}

func parsePreviousGTIDsEvent(h EventHeader, buf *mysql.Buffer) (*PreviousGTIDsEvent, error) {
	set, err := position.DecodeGTIDSet(buf.Bytes())
	if err != nil {
		return nil, err
	}
	return &PreviousGTIDsEvent{EventHeader: h, GTIDSet: set}, nil
}

func (e *PreviousGTIDsEvent) String() string {
	sb := new(strings.Builder)
	sb.WriteString(e.EventHeader.String())

	fmt.Fprintf(sb, "GTID Set: %s\n", e.GTIDSet)

	return sb.String()
}

// GTIDEvent starts a transaction. For ANONYMOUS_GTID_EVENT the SID is zero
// and Anonymous is set.
type GTIDEvent struct {
	EventHeader
	Flags     uint8
	SID       uuid.UUID
	GNO       int64
	Anonymous bool

	LogicalTimestampTypeCode uint8
	LastCommitted            int64
	SequenceNumber           int64

	// Microseconds since epoch.
	ImmediateCommitTimestamp uint64
	OriginalCommitTimestamp  uint64

	TransactionLength uint64

	ImmediateServerVersion uint32
	OriginalServerVersion  uint32
}

func parseGTIDEvent(h EventHeader, buf *mysql.Buffer) (*GTIDEvent, error) {
	e := &GTIDEvent{
		EventHeader:            h,
		Anonymous:              h.EventType == EventTypeAnonymousGTID,
		ImmediateServerVersion: UndefinedServerVersion,
		OriginalServerVersion:  UndefinedServerVersion,
	}
	var err error

	if e.Flags, err = buf.Uint8(); err != nil {
		return nil, err
	}

	sid, err := buf.Next(16)
	if err != nil {
		return nil, err
	}
	copy(e.SID[:], sid)

	if e.GNO, err = buf.Int64(); err != nil {
		return nil, err
	}

	// Servers before 5.7 end here.
	if buf.Len() == 0 {
		return e, nil
	}
	if e.LogicalTimestampTypeCode, err = buf.Uint8(); err != nil {
		return nil, err
	}
	if e.LogicalTimestampTypeCode != 2 {
		return e, nil
	}

	if e.LastCommitted, err = buf.Int64(); err != nil {
		return nil, err
	}
	if e.SequenceNumber, err = buf.Int64(); err != nil {
		return nil, err
	}

	// Commit timestamps are written since 8.0.1. The high bit of the
	// immediate one tells whether the original one follows.
	if buf.Len() < 7 {
		return e, nil
	}
	if e.ImmediateCommitTimestamp, err = buf.Uint56(); err != nil {
		return nil, err
	}
	if e.ImmediateCommitTimestamp&(1<<55) != 0 {
		e.ImmediateCommitTimestamp &^= 1 << 55
		if e.OriginalCommitTimestamp, err = buf.Uint56(); err != nil {
			return nil, err
		}
	} else {
		// The transaction originated in the previous server.
		e.OriginalCommitTimestamp = e.ImmediateCommitTimestamp
	}

	if buf.Len() < 1 {
		return e, nil
	}
	if e.TransactionLength, err = buf.LengthEncodedUint64(); err != nil {
		return nil, err
	}

	if buf.Len() < 4 {
		return e, nil
	}
	if e.ImmediateServerVersion, err = buf.Uint32(); err != nil {
		return nil, err
	}
	if e.ImmediateServerVersion&(1<<31) != 0 {
		e.ImmediateServerVersion &^= 1 << 31
		if e.OriginalServerVersion, err = buf.Uint32(); err != nil {
			return nil, err
		}
	} else {
		e.OriginalServerVersion = e.ImmediateServerVersion
	}

	return e, nil
}

// GTID returns the transaction identifier as sid:gno.
func (e *GTIDEvent) GTID() string {
	return fmt.Sprintf("%s:%d", e.SID, e.GNO)
}

func (e *GTIDEvent) String() string {
	sb := new(strings.Builder)
	sb.WriteString(e.EventHeader.String())

	fmt.Fprintf(sb, "Flags: %d\n", e.Flags)
	fmt.Fprintf(sb, "SID: %s\n", e.SID)
	fmt.Fprintf(sb, "GNO: %d\n", e.GNO)
	fmt.Fprintf(sb, "Logical timestamp type code: %d\n", e.LogicalTimestampTypeCode)
	fmt.Fprintf(sb, "Last committed: %d\n", e.LastCommitted)
	fmt.Fprintf(sb, "Sequence number: %d\n", e.SequenceNumber)
	fmt.Fprintf(sb, "Immediate commit timestamp: %s\n", time.UnixMicro(int64(e.ImmediateCommitTimestamp)).Format(time.RFC3339Nano))
	fmt.Fprintf(sb, "Original commit timestamp: %s\n", time.UnixMicro(int64(e.OriginalCommitTimestamp)).Format(time.RFC3339Nano))
	fmt.Fprintf(sb, "Transaction length: %d\n", e.TransactionLength)
	fmt.Fprintf(sb, "Immediate server version: %d\n", e.ImmediateServerVersion)
	fmt.Fprintf(sb, "Original server version: %d\n", e.OriginalServerVersion)

	return sb.String()
}

// XidEvent commits a transaction on a transactional storage engine.
type XidEvent struct {
	EventHeader
	XID uint64
}

func parseXidEvent(h EventHeader, buf *mysql.Buffer) (*XidEvent, error) {
	xid, err := buf.Uint64()
	if err != nil {
		return nil, err
	}
	return &XidEvent{EventHeader: h, XID: xid}, nil
}

// HeartbeatEvent is sent by an idle source. LogIdent is the current binlog
// file, the header's LogPos the position in it.
type HeartbeatEvent struct {
	EventHeader
	LogIdent string
}

const (
	heartbeatV2LogFilename = 1
	heartbeatV2LogPosition = 2
)

func parseHeartbeatEvent(h EventHeader, buf *mysql.Buffer) (*HeartbeatEvent, error) {
	e := &HeartbeatEvent{EventHeader: h}
	if h.EventType == EventTypeHeartbeat {
		e.LogIdent = string(buf.Bytes())
		return e, nil
	}

	// Version 2 is a list of type, length, value fields.
	for buf.Len() > 0 {
		t, err := buf.Uint8()
		if err != nil {
			return nil, err
		}
		l, err := buf.LengthEncodedInt()
		if err != nil {
			return nil, err
		}
		v, err := buf.Next(l)
		if err != nil {
			return nil, err
		}
		switch t {
		case heartbeatV2LogFilename:
			e.LogIdent = string(v)
		case heartbeatV2LogPosition:
			pos, err := packet.LengthEncodedInteger.Get(mysql.NewBuffer(v))
			if err != nil {
				return nil, err
			}
			e.LogPos = uint32(pos)
		}
	}
	return e, nil
}

func splitServerVersion(version string) []uint8 {
	versionSplit := make([]uint8, 3)

	split := strings.SplitN(version, ".", 3)
	for i, s := range split {
		m := leadingDigits.FindString(s)
		if m == "" {
			return []uint8{0, 0, 0}
		}

		num, err := strconv.Atoi(m)
		if err != nil || num >= 256 {
			return []uint8{0, 0, 0}
		}
		versionSplit[i] = uint8(num)
	}

	return versionSplit
}

func productVersion(versionSplit []uint8) int {
	sum := int(versionSplit[0])*256 + int(versionSplit[1])
	sum = sum*256 + int(versionSplit[2])
	return sum
}
