package binlog

// TableCache maps table ids to the latest table map event seen for them.
// Table ids are only meaningful within one connection, so the cache must be
// cleared whenever the stream is reopened. It is not safe for concurrent
// use.
type TableCache struct {
	tables map[uint64]*TableMapEvent
}

func NewTableCache() *TableCache {
	return &TableCache{tables: make(map[uint64]*TableMapEvent)}
}

// Upsert records e, replacing any earlier mapping of its table id.
func (c *TableCache) Upsert(e *TableMapEvent) {
	c.tables[e.TableId] = e
}

func (c *TableCache) Lookup(tableId uint64) (*TableMapEvent, bool) {
	e, ok := c.tables[tableId]
	return e, ok
}

func (c *TableCache) Clear() {
	c.tables = make(map[uint64]*TableMapEvent)
}

func (c *TableCache) Len() int {
	return len(c.tables)
}
