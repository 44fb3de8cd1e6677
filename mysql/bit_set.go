package mysql

import "fmt"

const (
	shift = 6
	mask  = 1<<6 - 1
)

// BitSet is a fixed size set of bits, used for the column bitmaps of
// row events.
type BitSet struct {
	words  []uint64
	bitLen int
}

func NewBitSet(bitLen int) (*BitSet, error) {
	if bitLen < 0 {
		return nil, fmt.Errorf("bitLen < 0")
	}

	b := &BitSet{bitLen: bitLen}
	if bitLen > 0 {
		b.words = make([]uint64, (bitLen-1)>>shift+1)
	}
	return b, nil
}

// Len returns the number of bits the set was created with.
func (bs *BitSet) Len() int {
	return bs.bitLen
}

func (bs *BitSet) Get(index int) bool {
	wi := wordIndex(index)
	return index >= 0 && wi < len(bs.words) &&
		(bs.words[wi]&(1<<(index&mask)) != 0)
}

func (bs *BitSet) Set(index int) {
	wi := wordIndex(index)
	if index < 0 || wi >= len(bs.words) {
		return
	}

	bs.words[wi] |= 1 << (index & mask)
}

func (bs *BitSet) SetValue(index int, val bool) {
	if val {
		bs.Set(index)
	} else {
		bs.Clear(index)
	}
}

func (bs *BitSet) Clear(index int) {
	wi := wordIndex(index)
	if index < 0 || wi >= len(bs.words) {
		return
	}

	bs.words[wi] &^= 1 << (index & mask)
}

// Count returns the number of set bits.
func (bs *BitSet) Count() int {
	n := 0
	for i := 0; i < bs.bitLen; i++ {
		if bs.Get(i) {
			n++
		}
	}
	return n
}

// Bytes returns the (Len()+7)/8 byte little endian bitmap, the inverse of
// Buffer.CreateBitmap.
func (bs *BitSet) Bytes() []byte {
	p := make([]byte, (bs.bitLen+7)/8)
	for i := 0; i < bs.bitLen; i++ {
		if bs.Get(i) {
			p[i/8] |= 1 << (i % 8)
		}
	}
	return p
}

func wordIndex(bitIndex int) int {
	return bitIndex >> shift
}
