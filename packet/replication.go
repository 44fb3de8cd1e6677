package packet

import (
	"bytes"

	"github.com/vczyh/mysql-cdc/flag"
)

// RegisterReplica https://dev.mysql.com/doc/internals/en/com-register-slave.html
type RegisterReplica struct {
	Header

	Command  Command
	ServerId uint32
	Hostname string
	User     string
	Password string
	Port     uint16
	Rank     uint32 // ignored
	SourceId uint32
}

func NewRegisterReplica(serverId uint32, hostname, user, password string, port uint16) *RegisterReplica {
	return &RegisterReplica{
		Command:  ComRegisterSlave,
		ServerId: serverId,
		Hostname: hostname,
		User:     user,
		Password: password,
		Port:     port,
	}
}

func ParseRegisterReplica(data []byte) (*RegisterReplica, error) {
	p := new(RegisterReplica)
	buf := bytes.NewBuffer(data)
	if err := p.Parse(buf); err != nil {
		return nil, err
	}
	if buf.Len() < 1+4 {
		return nil, ErrPacketData
	}
	p.Command = Command(buf.Next(1)[0])
	p.ServerId = FixedLengthInteger.Uint32(buf.Next(4))

	for _, s := range []*string{&p.Hostname, &p.User, &p.Password} {
		if buf.Len() == 0 {
			return nil, ErrPacketData
		}
		l := int(buf.Next(1)[0])
		if buf.Len() < l {
			return nil, ErrPacketData
		}
		*s = string(buf.Next(l))
	}

	if buf.Len() < 2+4+4 {
		return nil, ErrPacketData
	}
	p.Port = FixedLengthInteger.Uint16(buf.Next(2))
	p.Rank = FixedLengthInteger.Uint32(buf.Next(4))
	p.SourceId = FixedLengthInteger.Uint32(buf.Next(4))

	return p, nil
}

func (p *RegisterReplica) Dump(flag.Capability) ([]byte, error) {
	var payload bytes.Buffer
	payload.WriteByte(p.Command.Byte())

	// Server Id
	payload.Write(FixedLengthInteger.Dump(uint64(p.ServerId), 4))

	// Hostname
	payload.WriteByte(byte(len(p.Hostname)))
	payload.WriteString(p.Hostname)

	// User
	payload.WriteByte(byte(len(p.User)))
	payload.WriteString(p.User)

	// Password
	payload.WriteByte(byte(len(p.Password)))
	payload.WriteString(p.Password)

	// Port
	payload.Write(FixedLengthInteger.Dump(uint64(p.Port), 2))

	// Rank
	payload.Write(FixedLengthInteger.Dump(uint64(p.Rank), 4))

	// Source Id
	payload.Write(FixedLengthInteger.Dump(uint64(p.SourceId), 4))

	return p.wrap(payload.Bytes()), nil
}

// BinlogDump https://dev.mysql.com/doc/internals/en/com-binlog-dump.html
type BinlogDump struct {
	Header

	Command  Command
	Position uint32
	Flags    flag.BinlogDump
	ServerId uint32
	FileName string
}

func NewBinlogDump(serverId uint32, fileName string, position uint32, flags flag.BinlogDump) *BinlogDump {
	return &BinlogDump{
		Command:  ComBinlogDump,
		Position: position,
		Flags:    flags,
		ServerId: serverId,
		FileName: fileName,
	}
}

func ParseBinlogDump(data []byte) (*BinlogDump, error) {
	p := new(BinlogDump)
	buf := bytes.NewBuffer(data)
	if err := p.Parse(buf); err != nil {
		return nil, err
	}
	if buf.Len() < 1+4+2+4 {
		return nil, ErrPacketData
	}
	p.Command = Command(buf.Next(1)[0])
	p.Position = FixedLengthInteger.Uint32(buf.Next(4))
	p.Flags = flag.BinlogDump(FixedLengthInteger.Uint16(buf.Next(2)))
	p.ServerId = FixedLengthInteger.Uint32(buf.Next(4))
	p.FileName = buf.String()
	return p, nil
}

func (p *BinlogDump) Dump(flag.Capability) ([]byte, error) {
	var payload bytes.Buffer
	payload.WriteByte(p.Command.Byte())

	// Binlog Position
	payload.Write(FixedLengthInteger.Dump(uint64(p.Position), 4))

	// Flags
	payload.Write(FixedLengthInteger.Dump(uint64(p.Flags), 2))

	// Server Id
	payload.Write(FixedLengthInteger.Dump(uint64(p.ServerId), 4))

	// Binlog File Name
	payload.WriteString(p.FileName)

	return p.wrap(payload.Bytes()), nil
}

// BinlogDumpGTID https://dev.mysql.com/doc/internals/en/com-binlog-dump-gtid.html
//
// SIDBlock is the binary encoding of the GTID set the replica already
// has, as produced by an encoded GTID set.
type BinlogDumpGTID struct {
	Header

	Command  Command
	Flags    flag.BinlogDump
	ServerId uint32
	FileName string
	Position uint64
	SIDBlock []byte
}

func NewBinlogDumpGTID(serverId uint32, fileName string, position uint64, sidBlock []byte, flags flag.BinlogDump) *BinlogDumpGTID {
	return &BinlogDumpGTID{
		Command:  ComBinlogDumpGTID,
		Flags:    flags | flag.BinlogThroughGTID,
		ServerId: serverId,
		FileName: fileName,
		Position: position,
		SIDBlock: sidBlock,
	}
}

func ParseBinlogDumpGTID(data []byte) (*BinlogDumpGTID, error) {
	p := new(BinlogDumpGTID)
	buf := bytes.NewBuffer(data)
	if err := p.Parse(buf); err != nil {
		return nil, err
	}
	if buf.Len() < 1+2+4+4 {
		return nil, ErrPacketData
	}
	p.Command = Command(buf.Next(1)[0])
	p.Flags = flag.BinlogDump(FixedLengthInteger.Uint16(buf.Next(2)))
	p.ServerId = FixedLengthInteger.Uint32(buf.Next(4))

	nameLen := int(FixedLengthInteger.Uint32(buf.Next(4)))
	if buf.Len() < nameLen+8 {
		return nil, ErrPacketData
	}
	p.FileName = string(buf.Next(nameLen))
	p.Position = FixedLengthInteger.Uint64(buf.Next(8))

	if p.Flags&flag.BinlogThroughGTID != 0 {
		if buf.Len() < 4 {
			return nil, ErrPacketData
		}
		dataSize := int(FixedLengthInteger.Uint32(buf.Next(4)))
		if buf.Len() < dataSize {
			return nil, ErrPacketData
		}
		p.SIDBlock = append([]byte{}, buf.Next(dataSize)...)
	}
	return p, nil
}

func (p *BinlogDumpGTID) Dump(flag.Capability) ([]byte, error) {
	var payload bytes.Buffer
	payload.WriteByte(p.Command.Byte())

	// Flags
	payload.Write(FixedLengthInteger.Dump(uint64(p.Flags), 2))

	// Server Id
	payload.Write(FixedLengthInteger.Dump(uint64(p.ServerId), 4))

	// Binlog File Name
	payload.Write(FixedLengthInteger.Dump(uint64(len(p.FileName)), 4))
	payload.WriteString(p.FileName)

	// Binlog Position
	payload.Write(FixedLengthInteger.Dump(p.Position, 8))

	// SID Block
	if p.Flags&flag.BinlogThroughGTID != 0 {
		payload.Write(FixedLengthInteger.Dump(uint64(len(p.SIDBlock)), 4))
		payload.Write(p.SIDBlock)
	}

	return p.wrap(payload.Bytes()), nil
}
