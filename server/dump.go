package server

import (
	"net"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vczyh/mysql-cdc/binlog"
	"github.com/vczyh/mysql-cdc/flag"
	"github.com/vczyh/mysql-cdc/myerrors"
	"github.com/vczyh/mysql-cdc/mysql"
	"github.com/vczyh/mysql-cdc/packet"
	"github.com/vczyh/mysql-cdc/position"
)

// how often a waiting dump notices its connection was closed
const closePollInterval = 50 * time.Millisecond

type dumpRequest struct {
	serverId uint32
	file     string
	pos      uint32
	flags    flag.BinlogDump
	// nil for a file position dump
	gtids *position.GTIDSet
}

func (s *Server) handleRegisterReplica(sess *Session, conn mysql.Conn, data []byte) error {
	p, err := packet.ParseRegisterReplica(data)
	if err != nil {
		return err
	}
	if p.ServerId == s.serverId {
		return conn.WriteError(myerrors.FatalReadingBinlog.Build("replica has the same server id as the source"))
	}
	sess.setReplica(&ReplicaInfo{ServerId: p.ServerId, Host: p.Hostname, Port: p.Port})
	s.logger.Debug("replica registered",
		zap.Uint32("connection_id", sess.ConnectionId()),
		zap.Uint32("replica_server_id", p.ServerId),
		zap.String("report_host", p.Hostname))
	return conn.WriteEmptyOK()
}

func (s *Server) handleBinlogDump(sess *Session, conn mysql.Conn, data []byte) error {
	p, err := packet.ParseBinlogDump(data)
	if err != nil {
		return err
	}
	return s.dump(sess, conn, &dumpRequest{
		serverId: p.ServerId,
		file:     p.FileName,
		pos:      p.Position,
		flags:    p.Flags,
	})
}

func (s *Server) handleBinlogDumpGTID(sess *Session, conn mysql.Conn, data []byte) error {
	p, err := packet.ParseBinlogDumpGTID(data)
	if err != nil {
		return err
	}
	gtids := position.NewGTIDSet()
	if len(p.SIDBlock) > 0 {
		if gtids, err = position.DecodeGTIDSet(p.SIDBlock); err != nil {
			return conn.WriteError(myerrors.FatalReadingBinlog.Build("malformed GTID set"))
		}
	}
	return s.dump(sess, conn, &dumpRequest{
		serverId: p.ServerId,
		flags:    p.Flags,
		gtids:    gtids,
	})
}

// dump streams the binlog until the connection or the server closes. A
// non-blocking dump ends with EOF once it has sent every event.
func (s *Server) dump(sess *Session, conn mysql.Conn, req *dumpRequest) error {
	logger := s.logger.With(
		zap.Uint32("connection_id", sess.ConnectionId()),
		zap.Uint32("replica_server_id", req.serverId))

	var c *binlogCursor
	var name string
	var err error
	pos := req.pos
	if req.gtids != nil {
		if purged := s.binlog.purgedGTIDs(); !req.gtids.Contains(purged) {
			return conn.WriteError(myerrors.PurgedRequiredGTIDs.Build())
		}
		pos = binlogStartPos
		c, name, err = s.binlog.seek("", pos)
	} else {
		if pos < binlogStartPos {
			pos = binlogStartPos
		}
		c, name, err = s.binlog.seek(req.file, pos)
	}
	if err != nil {
		return conn.WriteError(myerrors.FatalReadingBinlog.Build(dumpErrorMessage(err)))
	}
	logger.Debug("binlog dump",
		zap.String("file", name),
		zap.Uint32("pos", pos),
		zap.Stringer("flags", req.flags))

	// the replica learns the file name from a rotate event
	rotate, err := s.binlog.encode(&binlog.RotateEvent{
		EventHeader: binlog.EventHeader{Flags: binlog.EventFlagArtificial},
		Position:    uint64(pos),
		Name:        name,
	})
	if err != nil {
		return err
	}
	if err := writeEvent(conn, rotate); err != nil {
		return err
	}
	if pos > binlogStartPos {
		if err := writeEvent(conn, s.binlog.formatEvent(c)); err != nil {
			return err
		}
	}

	period := sess.heartbeatPeriod()
	skipping := false
	for {
		events, appended := s.binlog.read(c)
		for _, e := range events {
			if req.gtids != nil && e.gtid != nil {
				skipping = req.gtids.Contains(e.gtid)
			}
			if skipping && !e.control {
				continue
			}
			if err := writeEvent(conn, e.raw); err != nil {
				return err
			}
		}

		if req.flags&flag.BinlogDumpNonBlock != 0 {
			return conn.WritePacket(packet.NewEOF(0, flag.ServerStatusAutocommit))
		}
		if err := s.wait(conn, c, appended, period); err != nil {
			return err
		}
	}
}

// wait blocks until appended is closed and sends heartbeats meanwhile.
func (s *Server) wait(conn mysql.Conn, c *binlogCursor, appended <-chan struct{}, period time.Duration) error {
	poll := time.NewTicker(closePollInterval)
	defer poll.Stop()

	last := time.Now()
	for {
		select {
		case <-appended:
			return nil
		case <-s.done:
			return ErrServerClosed
		case now := <-poll.C:
			if conn.Closed() {
				return net.ErrClosed
			}
			if period <= 0 || now.Sub(last) < period || s.heartbeatsSuspended.Load() {
				continue
			}
			last = now

			name, size := s.binlog.end(c)
			raw, err := s.binlog.encode(&binlog.HeartbeatEvent{
				EventHeader: binlog.EventHeader{LogPos: size, Flags: binlog.EventFlagArtificial},
				LogIdent:    name,
			})
			if err != nil {
				return err
			}
			if err := writeEvent(conn, raw); err != nil {
				return err
			}
		}
	}
}

func writeEvent(conn mysql.Conn, raw []byte) error {
	payload := make([]byte, 0, len(raw)+1)
	payload = append(payload, packet.OKPacketHeader)
	payload = append(payload, raw...)
	return conn.WritePacket(packet.NewSimple(payload))
}

func dumpErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrLogNotFound), errors.Is(err, ErrLogPurged):
		return "Could not find first log file name in binary log index file"
	case errors.Is(err, ErrPositionPastFile):
		return "Client requested source to start replication from position > file size"
	default:
		return err.Error()
	}
}
