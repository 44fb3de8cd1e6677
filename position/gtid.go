package position

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Interval is a half-open range [Start, Stop) of transaction numbers.
type Interval struct {
	Start int64
	Stop  int64
}

func (i Interval) String() string {
	if i.Stop == i.Start+1 {
		return strconv.FormatInt(i.Start, 10)
	}
	return fmt.Sprintf("%d-%d", i.Start, i.Stop-1)
}

func parseInterval(s string) (Interval, error) {
	var i Interval
	var err error
	start, stop, found := strings.Cut(s, "-")
	if i.Start, err = strconv.ParseInt(start, 10, 64); err != nil {
		return i, errors.Wrapf(err, "invalid interval %q", s)
	}
	i.Stop = i.Start
	if found {
		if i.Stop, err = strconv.ParseInt(stop, 10, 64); err != nil {
			return i, errors.Wrapf(err, "invalid interval %q", s)
		}
	}
	i.Stop++
	if i.Start < 1 || i.Stop <= i.Start {
		return i, errors.Errorf("invalid interval %q", s)
	}
	return i, nil
}

// normalize sorts and merges overlapping or adjacent intervals.
func normalize(intervals []Interval) []Interval {
	if len(intervals) <= 1 {
		return intervals
	}
	sort.Slice(intervals, func(i, j int) bool {
		return intervals[i].Start < intervals[j].Start
	})

	merged := intervals[:1]
	for _, in := range intervals[1:] {
		last := &merged[len(merged)-1]
		if in.Start <= last.Stop {
			if in.Stop > last.Stop {
				last.Stop = in.Stop
			}
			continue
		}
		merged = append(merged, in)
	}
	return merged
}

// UUIDSet is the transactions of one source server.
type UUIDSet struct {
	SID       uuid.UUID
	Intervals []Interval
}

func (s *UUIDSet) String() string {
	var buf strings.Builder
	buf.WriteString(s.SID.String())
	for _, in := range s.Intervals {
		buf.WriteByte(':')
		buf.WriteString(in.String())
	}
	return buf.String()
}

func (s *UUIDSet) contains(o *UUIDSet) bool {
	for _, oi := range o.Intervals {
		covered := false
		for _, si := range s.Intervals {
			if si.Start <= oi.Start && oi.Stop <= si.Stop {
				covered = true
				break
			}
		}
		if !covered {
			return false
		}
	}
	return true
}

func (s *UUIDSet) clone() *UUIDSet {
	c := &UUIDSet{SID: s.SID, Intervals: make([]Interval, len(s.Intervals))}
	copy(c.Intervals, s.Intervals)
	return c
}

// GTIDSet is a set of global transaction identifiers, keyed by source
// server UUID. The zero value is not usable, use NewGTIDSet.
type GTIDSet struct {
	sets map[uuid.UUID]*UUIDSet
}

func NewGTIDSet() *GTIDSet {
	return &GTIDSet{sets: make(map[uuid.UUID]*UUIDSet)}
}

// ParseGTIDSet parses the textual form used by @@gtid_executed, e.g.
// "3e11fa47-71ca-11e1-9e33-c80aa9429562:1-5:7,...". Whitespace is ignored.
func ParseGTIDSet(s string) (*GTIDSet, error) {
	set := NewGTIDSet()
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return set, nil
	}

	for _, part := range strings.Split(s, ",") {
		fields := strings.Split(part, ":")
		sid, err := uuid.Parse(fields[0])
		if err != nil {
			return nil, errors.Wrapf(err, "invalid sid %q", fields[0])
		}
		if len(fields) == 1 {
			return nil, errors.Errorf("gtid set %q has no interval", part)
		}
		for _, f := range fields[1:] {
			in, err := parseInterval(f)
			if err != nil {
				return nil, err
			}
			set.addInterval(sid, in)
		}
	}
	return set, nil
}

func (g *GTIDSet) addInterval(sid uuid.UUID, in Interval) {
	s, ok := g.sets[sid]
	if !ok {
		s = &UUIDSet{SID: sid}
		g.sets[sid] = s
	}
	s.Intervals = normalize(append(s.Intervals, in))
}

// AddGTID adds the single transaction sid:gno.
func (g *GTIDSet) AddGTID(sid uuid.UUID, gno int64) {
	g.addInterval(sid, Interval{Start: gno, Stop: gno + 1})
}

// Merge adds every transaction of o to g. Merging a set twice changes
// nothing.
func (g *GTIDSet) Merge(o *GTIDSet) {
	if o == nil {
		return
	}
	for sid, s := range o.sets {
		for _, in := range s.Intervals {
			g.addInterval(sid, in)
		}
	}
}

// Contains reports whether every transaction of o is in g.
func (g *GTIDSet) Contains(o *GTIDSet) bool {
	if o == nil {
		return true
	}
	for sid, os := range o.sets {
		s, ok := g.sets[sid]
		if !ok {
			if len(os.Intervals) == 0 {
				continue
			}
			return false
		}
		if !s.contains(os) {
			return false
		}
	}
	return true
}

func (g *GTIDSet) Equal(o *GTIDSet) bool {
	return g.Contains(o) && o.Contains(g)
}

func (g *GTIDSet) IsEmpty() bool {
	for _, s := range g.sets {
		if len(s.Intervals) > 0 {
			return false
		}
	}
	return true
}

func (g *GTIDSet) Clone() *GTIDSet {
	c := NewGTIDSet()
	for sid, s := range g.sets {
		c.sets[sid] = s.clone()
	}
	return c
}

// UUIDSets returns the per-server sets ordered by SID.
func (g *GTIDSet) UUIDSets() []*UUIDSet {
	sets := make([]*UUIDSet, 0, len(g.sets))
	for _, s := range g.sets {
		if len(s.Intervals) > 0 {
			sets = append(sets, s)
		}
	}
	sort.Slice(sets, func(i, j int) bool {
		return bytes.Compare(sets[i].SID[:], sets[j].SID[:]) < 0
	})
	return sets
}

func (g *GTIDSet) String() string {
	sets := g.UUIDSets()
	parts := make([]string, len(sets))
	for i, s := range sets {
		parts[i] = s.String()
	}
	return strings.Join(parts, ",")
}

// Encode returns the binary form used by COM_BINLOG_DUMP_GTID and
// PREVIOUS_GTIDS_LOG_EVENT.
func (g *GTIDSet) Encode() []byte {
	sets := g.UUIDSets()
	var buf bytes.Buffer
	writeUint64(&buf, uint64(len(sets)))
	for _, s := range sets {
		buf.Write(s.SID[:])
		writeUint64(&buf, uint64(len(s.Intervals)))
		for _, in := range s.Intervals {
			writeUint64(&buf, uint64(in.Start))
			writeUint64(&buf, uint64(in.Stop))
		}
	}
	return buf.Bytes()
}

// DecodeGTIDSet parses the binary form produced by Encode.
func DecodeGTIDSet(data []byte) (*GTIDSet, error) {
	set := NewGTIDSet()
	buf := bytes.NewReader(data)

	n, err := readUint64(buf)
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < n; i++ {
		var sid uuid.UUID
		if buf.Len() < len(sid) {
			return nil, errors.New("gtid set: truncated sid")
		}
		_, _ = buf.Read(sid[:])
		count, err := readUint64(buf)
		if err != nil {
			return nil, err
		}
		for j := uint64(0); j < count; j++ {
			start, err := readUint64(buf)
			if err != nil {
				return nil, err
			}
			stop, err := readUint64(buf)
			if err != nil {
				return nil, err
			}
			if stop <= start {
				return nil, errors.Errorf("gtid set: invalid interval %d-%d", start, stop)
			}
			set.addInterval(sid, Interval{Start: int64(start), Stop: int64(stop)})
		}
	}
	return set, nil
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if r.Len() < 8 {
		return 0, errors.New("gtid set: truncated data")
	}
	_, _ = r.Read(b[:])
	return binary.LittleEndian.Uint64(b[:]), nil
}
