package position

import (
	"fmt"
	"strings"
)

// Position is where a replica resumes reading. GTIDSet is nil when the
// session replicates by file and offset.
type Position struct {
	Name    string
	Pos     uint32
	GTIDSet *GTIDSet
}

// Compare orders positions by file name, lexicographically, then by offset.
// It returns -1, 0 or 1.
func (p Position) Compare(o Position) int {
	if c := strings.Compare(p.Name, o.Name); c != 0 {
		return c
	}
	switch {
	case p.Pos < o.Pos:
		return -1
	case p.Pos > o.Pos:
		return 1
	default:
		return 0
	}
}

func (p Position) IsGTID() bool {
	return p.GTIDSet != nil
}

// IsZero reports whether p names neither a file nor a GTID set, which
// means "start from the current end of the binlog".
func (p Position) IsZero() bool {
	return p.Name == "" && p.Pos == 0 && p.GTIDSet == nil
}

// Clone returns a deep copy.
func (p Position) Clone() Position {
	c := p
	if p.GTIDSet != nil {
		c.GTIDSet = p.GTIDSet.Clone()
	}
	return c
}

func (p Position) String() string {
	if p.GTIDSet != nil {
		return fmt.Sprintf("(%s, %d, %s)", p.Name, p.Pos, p.GTIDSet)
	}
	return fmt.Sprintf("(%s, %d)", p.Name, p.Pos)
}
