package auth

import (
	"crypto/rand"
)

// RandomBytes returns n random bytes suitable for a handshake scramble.
// The bytes are printable ASCII without '$' so they survive
// nul-terminated encoding and authentication_string formatting.
func RandomBytes(n int) []byte {
	bs := make([]byte, n)
	if _, err := rand.Read(bs); err != nil {
		panic(err)
	}
	for i, b := range bs {
		b = b&0x7f | 0x20
		if b == '$' || b == 0x7f {
			b = '#'
		}
		bs[i] = b
	}
	return bs
}
