package charset

import "fmt"

// https://dev.mysql.com/doc/internals/en/character-set.html#packet-Protocol::CharacterSet

const (
	Latin1SwedishCi  = "latin1_swedish_ci"
	Latin1Bin        = "latin1_bin"
	ASCIIGeneralCi   = "ascii_general_ci"
	UTF8GeneralCi    = "utf8_general_ci"
	UTF8Bin          = "utf8_bin"
	UTF8MB4GeneralCi = "utf8mb4_general_ci"
	UTF8MB4Bin       = "utf8mb4_bin"
	UTF8MB4UnicodeCi = "utf8mb4_unicode_ci"
	UTF8MB40900AiCi  = "utf8mb4_0900_ai_ci"
	UTF8MB40900Bin   = "utf8mb4_0900_bin"
)

var (
	collations = []*Collation{
		{Latin1, true, 8, Latin1SwedishCi},
		{ASCII, true, 11, ASCIIGeneralCi},
		{UTF8, true, 33, UTF8GeneralCi},
		{UTF8MB4, false, 45, UTF8MB4GeneralCi},
		{UTF8MB4, false, 46, UTF8MB4Bin},
		{Latin1, false, 47, Latin1Bin},
		{Binary, true, 63, Binary},
		{UTF8, false, 83, UTF8Bin},
		{UTF8MB4, false, 224, UTF8MB4UnicodeCi},
		{UTF8MB4, true, 255, UTF8MB40900AiCi},
		{UTF8MB4, false, 309, UTF8MB40900Bin},
	}

	collationNameMap = map[string]*Collation{}
	collationIdMap   = map[uint64]*Collation{}
)

func init() {
	for _, collation := range collations {
		collationNameMap[collation.name] = collation
		collationIdMap[collation.id] = collation

		if collation.isDefault {
			charsetMap[collation.charset] = &Charset{
				name:             collation.charset,
				maxLen:           maxLen(collation.charset),
				defaultCollation: collation,
			}
		}
	}
}

type Collation struct {
	charset   string
	isDefault bool
	id        uint64
	name      string
}

func (c *Collation) Id() uint64 {
	return c.id
}

func (c *Collation) Name() string {
	return c.name
}

func (c *Collation) Charset() *Charset {
	return charsetMap[c.charset]
}

// IsBinary reports whether values in this collation are raw bytes rather
// than text.
func (c *Collation) IsBinary() bool {
	return c.charset == Binary
}

func GetCollation(id uint64) (*Collation, error) {
	collation, ok := collationIdMap[id]
	if !ok {
		return nil, fmt.Errorf("collation id %d not found", id)
	}
	return collation, nil
}

func GetCollationByName(name string) (*Collation, error) {
	collation, ok := collationNameMap[name]
	if !ok {
		return nil, fmt.Errorf("collation %q not found", name)
	}
	return collation, nil
}
