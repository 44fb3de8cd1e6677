package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/vczyh/mysql-cdc/binlog"
	"github.com/vczyh/mysql-cdc/position"
)

const (
	DefaultBinlogBaseName = "mysql-bin"

	binlogStartPos = 4
)

var (
	ErrLogNotFound      = errors.New("server: binary log not found")
	ErrLogPurged        = errors.New("server: binary log purged")
	ErrPositionPastFile = errors.New("server: position beyond the end of the binary log")
)

// Binlog is an in-memory binary log. Events are encoded as they are
// appended, so every replica reads the same bytes. It is safe for
// concurrent use.
type Binlog struct {
	mu       sync.Mutex
	encoder  *binlog.Encoder
	version  string
	baseName string
	sid      uuid.UUID
	nextGNO  int64
	nextXID  uint64

	files    []*binlogFile
	purged   int
	executed *position.GTIDSet

	// closed and replaced on every append
	appended chan struct{}
}

type binlogFile struct {
	name     string
	size     uint32
	previous *position.GTIDSet
	events   []*fileEvent
}

type fileEvent struct {
	pos  uint32
	raw  []byte
	gtid *position.GTIDSet
	// control events are sent even inside skipped transactions
	control bool
	format  bool
}

// NewBinlog creates a log with one empty file. sid is the server uuid its
// transactions are committed under.
func NewBinlog(serverId uint32, sid uuid.UUID, checksum binlog.ChecksumAlgorithm, version string) (*Binlog, error) {
	b := &Binlog{
		encoder:  binlog.NewEncoder(serverId, checksum),
		version:  version,
		baseName: DefaultBinlogBaseName,
		sid:      sid,
		nextGNO:  1,
		nextXID:  1,
		executed: position.NewGTIDSet(),
		appended: make(chan struct{}),
	}
	if err := b.openFile(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Binlog) Checksum() binlog.ChecksumAlgorithm {
	return b.encoder.Checksum()
}

// Status returns the current file, its size and the executed GTID set, as
// SHOW MASTER STATUS does.
func (b *Binlog) Status() (string, uint32, *position.GTIDSet) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f := b.current()
	return f.name, f.size, b.executed.Clone()
}

// Files returns the names of the files that are not purged.
func (b *Binlog) Files() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var names []string
	for _, f := range b.files[b.purged:] {
		names = append(names, f.name)
	}
	return names
}

// Append writes events to the current file. A zero header timestamp is
// set to now.
func (b *Binlog) Append(events ...binlog.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.append(events...)
}

// Commit writes one transaction: a GTID event, BEGIN, events and an XID
// event. It returns the GTID the transaction was committed with.
func (b *Binlog) Commit(database string, events ...binlog.Event) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	gtid := b.nextGTID()
	trx := make([]binlog.Event, 0, len(events)+3)
	trx = append(trx, gtid, &binlog.QueryEvent{Database: database, Query: "BEGIN", CharsetClient: 45, TimeZone: "SYSTEM"})
	trx = append(trx, events...)
	trx = append(trx, &binlog.XidEvent{XID: b.nextXID})
	if err := b.append(trx...); err != nil {
		return "", err
	}
	b.nextXID++
	return gtid.GTID(), nil
}

// Exec writes a statement that commits by itself, such as DDL, under a new
// GTID.
func (b *Binlog) Exec(database, query string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	gtid := b.nextGTID()
	err := b.append(gtid, &binlog.QueryEvent{Database: database, Query: query, CharsetClient: 45, TimeZone: "SYSTEM"})
	if err != nil {
		return "", err
	}
	return gtid.GTID(), nil
}

func (b *Binlog) nextGTID() *binlog.GTIDEvent {
	e := &binlog.GTIDEvent{SID: b.sid, GNO: b.nextGNO}
	b.nextGNO++
	return e
}

// Rotate ends the current file with a rotate event and opens the next one.
func (b *Binlog) Rotate() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	next := b.fileName(len(b.files) + 1)
	if err := b.append(&binlog.RotateEvent{Position: binlogStartPos, Name: next}); err != nil {
		return err
	}
	return b.openFile()
}

// Purge removes the files before name, as PURGE BINARY LOGS TO does.
func (b *Binlog) Purge(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	i, err := b.find(name)
	if err != nil {
		return err
	}
	b.purged = i
	return nil
}

func (b *Binlog) openFile() error {
	f := &binlogFile{
		name:     b.fileName(len(b.files) + 1),
		size:     binlogStartPos,
		previous: b.executed.Clone(),
	}
	b.files = append(b.files, f)

	now := uint32(time.Now().Unix())
	return b.append(
		&binlog.FormatDescriptionEvent{
			EventHeader:     binlog.EventHeader{Timestamp: now},
			ServerVersion:   b.version,
			CreateTimestamp: now,
		},
		&binlog.PreviousGTIDsEvent{GTIDSet: f.previous.Clone()},
	)
}

func (b *Binlog) append(events ...binlog.Event) error {
	f := b.current()
	for _, e := range events {
		h := e.Header()
		if h.Timestamp == 0 {
			h.Timestamp = uint32(time.Now().Unix())
		}

		raw, err := b.encoder.Encode(e, f.size)
		if err != nil {
			return err
		}

		fe := &fileEvent{pos: f.size, raw: raw}
		switch e := e.(type) {
		case *binlog.FormatDescriptionEvent:
			fe.format = true
			fe.control = true
		case *binlog.RotateEvent, *binlog.PreviousGTIDsEvent:
			fe.control = true
		case *binlog.GTIDEvent:
			if !e.Anonymous {
				fe.gtid = position.NewGTIDSet()
				fe.gtid.AddGTID(e.SID, e.GNO)
				b.executed.Merge(fe.gtid)
			}
		}
		f.events = append(f.events, fe)
		f.size += uint32(len(raw))
	}

	close(b.appended)
	b.appended = make(chan struct{})
	return nil
}

func (b *Binlog) current() *binlogFile {
	return b.files[len(b.files)-1]
}

func (b *Binlog) fileName(n int) string {
	return fmt.Sprintf("%s.%06d", b.baseName, n)
}

func (b *Binlog) find(name string) (int, error) {
	for i, f := range b.files {
		if f.name != name {
			continue
		}
		if i < b.purged {
			return 0, errors.Wrap(ErrLogPurged, name)
		}
		return i, nil
	}
	return 0, errors.Wrap(ErrLogNotFound, name)
}

// binlogCursor is the read position of one dump.
type binlogCursor struct {
	file  int
	index int
}

// seek returns a cursor at the first event starting at or after pos in
// the file name. An empty name means the first file.
func (b *Binlog) seek(name string, pos uint32) (*binlogCursor, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := b.purged
	if name != "" {
		var err error
		if i, err = b.find(name); err != nil {
			return nil, "", err
		}
	}
	f := b.files[i]
	if pos > f.size {
		return nil, "", errors.Wrapf(ErrPositionPastFile, "%s:%d", name, pos)
	}
	c := &binlogCursor{file: i}
	for c.index < len(f.events) && f.events[c.index].pos < pos {
		c.index++
	}
	return c, f.name, nil
}

// purgedGTIDs returns the transactions no longer available.
func (b *Binlog) purgedGTIDs() *position.GTIDSet {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.files[b.purged].previous.Clone()
}

// read returns the events after c and advances it. When there are none it
// returns a channel closed by the next append.
func (b *Binlog) read(c *binlogCursor) ([]*fileEvent, <-chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var events []*fileEvent
	for {
		f := b.files[c.file]
		events = append(events, f.events[c.index:]...)
		c.index = len(f.events)
		if c.file == len(b.files)-1 {
			break
		}
		c.file++
		c.index = 0
	}
	return events, b.appended
}

// end returns the file and size c is at.
func (b *Binlog) end(c *binlogCursor) (string, uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f := b.files[c.file]
	return f.name, f.size
}

// formatEvent returns the format description of the file c is in.
func (b *Binlog) formatEvent(c *binlogCursor) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.files[c.file].events {
		if e.format {
			return e.raw
		}
	}
	return nil
}

func (b *Binlog) encode(e binlog.Event) ([]byte, error) {
	return b.encoder.Encode(e, 0)
}
