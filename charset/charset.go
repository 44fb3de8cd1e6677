package charset

import "fmt"

const (
	ASCII   = "ascii"
	Latin1  = "latin1"
	UTF8    = "utf8"
	UTF8MB4 = "utf8mb4"
	Binary  = "binary"
)

var charsetMap = map[string]*Charset{}

type Charset struct {
	name             string
	maxLen           int
	defaultCollation *Collation
}

func (c *Charset) Name() string {
	return c.name
}

// MaxLen returns the maximum number of bytes a single character takes.
func (c *Charset) MaxLen() int {
	return c.maxLen
}

func (c *Charset) DefaultCollation() *Collation {
	return c.defaultCollation
}

func Get(name string) (*Charset, error) {
	charset, ok := charsetMap[name]
	if !ok {
		return nil, fmt.Errorf("charset %q not found", name)
	}
	return charset, nil
}

func maxLen(charset string) int {
	switch charset {
	case UTF8:
		return 3
	case UTF8MB4:
		return 4
	default:
		return 1
	}
}
