package server

import "sync"

// SHA2Cache keeps SHA256(SHA256(password)) of the accounts that passed a
// caching_sha2_password full authentication, which enables the fast path
// on their next login.
type SHA2Cache interface {
	Put(key string, val []byte)

	Get(key string) []byte

	Delete(key string)

	Clear()
}

type DefaultSHA2Cache struct {
	mu sync.RWMutex
	m  map[string][]byte
}

func NewDefaultSHA2Cache() *DefaultSHA2Cache {
	return &DefaultSHA2Cache{m: make(map[string][]byte)}
}

func (c *DefaultSHA2Cache) Put(key string, val []byte) {
	c.mu.Lock()
	c.m[key] = append([]byte(nil), val...)
	c.mu.Unlock()
}

func (c *DefaultSHA2Cache) Get(key string) []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.m[key]
}

func (c *DefaultSHA2Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.m, key)
	c.mu.Unlock()
}

// Clear empties the cache, as FLUSH PRIVILEGES does.
func (c *DefaultSHA2Cache) Clear() {
	c.mu.Lock()
	c.m = make(map[string][]byte)
	c.mu.Unlock()
}
