package binlog

import (
	"hash/crc32"
	"time"

	"github.com/pingcap/parser"
	"github.com/pkg/errors"
	"github.com/vczyh/mysql-cdc/mysql"
	"github.com/vczyh/mysql-cdc/myerrors"
)

var ErrChecksumMismatch = errors.New("binlog: checksum mismatch")

// TableLookup resolves a table id to the table map event that defined it.
type TableLookup interface {
	Lookup(tableId uint64) (*TableMapEvent, bool)
}

// Parser decodes raw events. The format description and checksum algorithm
// are owned by the caller, which updates them as they change on the stream.
// A Parser is not safe for concurrent use.
type Parser struct {
	format   *FormatDescriptionEvent
	checksum ChecksumAlgorithm
	location *time.Location

	sqlParser *parser.Parser
}

func NewParser() *Parser {
	return &Parser{
		format:    DefaultFormatDescription(),
		checksum:  ChecksumAlgOff,
		location:  time.UTC,
		sqlParser: parser.New(),
	}
}

// SetFormat installs the format description used for post-header lengths.
func (p *Parser) SetFormat(fde *FormatDescriptionEvent) {
	if fde == nil {
		fde = DefaultFormatDescription()
	}
	p.format = fde
}

func (p *Parser) Format() *FormatDescriptionEvent {
	return p.format
}

func (p *Parser) SetChecksum(alg ChecksumAlgorithm) {
	p.checksum = alg
}

func (p *Parser) Checksum() ChecksumAlgorithm {
	return p.checksum
}

// SetLocation sets the zone of decoded TIMESTAMP, DATETIME and DATE values.
func (p *Parser) SetLocation(loc *time.Location) {
	if loc == nil {
		loc = time.UTC
	}
	p.location = loc
}

// Parse decodes raw, the event bytes following the 0x00 marker of the
// replication packet. Row events resolve their table through tables.
// Structural problems are returned as DecodeError, a row event for an
// unmapped table as UnknownTableError.
func (p *Parser) Parse(raw []byte, tables TableLookup) (Event, error) {
	if len(raw) < EventHeaderLen {
		return nil, myerrors.NewDecode("decode event header", errors.Wrapf(ErrInvalidData, "event length %d", len(raw)))
	}
	eventType := EventType(raw[4])
	op := "decode " + eventType.String()

	data, err := p.stripChecksum(eventType, raw)
	if err != nil {
		return nil, myerrors.NewDecode(op, err)
	}

	buf := mysql.NewBuffer(data)
	header, err := parseEventHeader(buf)
	if err != nil {
		return nil, myerrors.NewDecode(op, err)
	}

	e, err := p.parseBody(header, buf, tables)
	if err != nil {
		if myerrors.KindOf(err) != myerrors.Unknown {
			return nil, err
		}
		return nil, myerrors.NewDecode(op, err)
	}
	return e, nil
}

func (p *Parser) parseBody(h EventHeader, buf *mysql.Buffer, tables TableLookup) (Event, error) {
	switch h.EventType {
	case EventTypeFormatDescription:
		return parseFormatDescriptionEvent(h, buf)
	case EventTypeRotate:
		return parseRotateEvent(h, buf)
	case EventTypePreviousGTIDs:
		return parsePreviousGTIDsEvent(h, buf)
	case EventTypeGTID, EventTypeAnonymousGTID:
		return parseGTIDEvent(h, buf)
	case EventTypeXid:
		return parseXidEvent(h, buf)
	case EventTypeHeartbeat, EventTypeHeartbeatV2:
		return parseHeartbeatEvent(h, buf)
	case EventTypeQuery:
		e, err := parseQueryEvent(h, buf, p.format)
		if err != nil {
			return nil, err
		}
		e.Kind = p.classify(e.Query)
		return e, nil
	case EventTypeTableMap:
		return parseTableMapEvent(h, buf, p.format)
	case EventTypeWriteRowsV1, EventTypeUpdateRowsV1, EventTypeDeleteRowsV1,
		EventTypeWriteRowsV2, EventTypeUpdateRowsV2, EventTypeDeleteRowsV2:
		return parseRowsEvent(h, buf, p.format, tables, p.location)
	default:
		return &UnhandledEvent{EventHeader: h, Data: buf.Bytes()}, nil
	}
}

// stripChecksum verifies and removes the checksum footer. A format
// description event carries its own algorithm, and always has the footer
// when it was written by a server that knows checksums.
func (p *Parser) stripChecksum(eventType EventType, raw []byte) ([]byte, error) {
	alg := p.checksum
	if eventType == EventTypeFormatDescription {
		if !formatHasChecksum(raw) {
			return raw, nil
		}
		alg = ChecksumAlgorithm(raw[len(raw)-ChecksumLen-1])
		if alg != ChecksumAlgCRC32 {
			return raw[:len(raw)-ChecksumLen], nil
		}
	}

	if alg != ChecksumAlgCRC32 {
		return raw, nil
	}
	if len(raw) < EventHeaderLen+ChecksumLen {
		return nil, errors.Wrap(ErrInvalidData, "event too short for checksum")
	}

	n := len(raw) - ChecksumLen
	expected := uint32(raw[n]) | uint32(raw[n+1])<<8 | uint32(raw[n+2])<<16 | uint32(raw[n+3])<<24
	if actual := crc32.ChecksumIEEE(raw[:n]); actual != expected {
		return nil, errors.Wrapf(ErrChecksumMismatch, "expected 0x%08x, got 0x%08x", expected, actual)
	}
	return raw[:n], nil
}

// Unhandled returns raw as an UnhandledEvent without decoding its body.
// The checksum is still verified.
func (p *Parser) Unhandled(raw []byte) (*UnhandledEvent, error) {
	if len(raw) < EventHeaderLen {
		return nil, myerrors.NewDecode("decode event header", errors.Wrapf(ErrInvalidData, "event length %d", len(raw)))
	}
	data, err := p.stripChecksum(EventType(raw[4]), raw)
	if err != nil {
		return nil, myerrors.NewDecode("decode event header", err)
	}
	buf := mysql.NewBuffer(data)
	h, err := parseEventHeader(buf)
	if err != nil {
		return nil, myerrors.NewDecode("decode event header", err)
	}
	return &UnhandledEvent{EventHeader: h, Data: buf.Bytes()}, nil
}
