package position

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sidA = "3e11fa47-71ca-11e1-9e33-c80aa9429562"
	sidB = "8a94f357-aab4-11df-86ab-c80aa9429562"
)

func TestParseGTIDSet(t *testing.T) {
	set, err := ParseGTIDSet(sidB + ":1-3:5,\n " + sidA + ":7:1-5:6")
	require.NoError(t, err)
	assert.Equal(t, sidA+":1-7,"+sidB+":1-3:5", set.String())

	empty, err := ParseGTIDSet("")
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())
	assert.Equal(t, "", empty.String())

	for _, bad := range []string{"not-a-uuid:1", sidA, sidA + ":0", sidA + ":5-3", sidA + ":x"} {
		_, err := ParseGTIDSet(bad)
		assert.Error(t, err, bad)
	}
}

func TestMergeIsIdempotentAndCommutative(t *testing.T) {
	a, err := ParseGTIDSet(sidA + ":1-5")
	require.NoError(t, err)
	b, err := ParseGTIDSet(sidA + ":4-9," + sidB + ":1")
	require.NoError(t, err)

	ab := a.Clone()
	ab.Merge(b)
	ba := b.Clone()
	ba.Merge(a)
	assert.True(t, ab.Equal(ba))
	assert.Equal(t, sidA+":1-9,"+sidB+":1", ab.String())

	again := ab.Clone()
	again.Merge(b)
	again.Merge(a)
	assert.Equal(t, ab.String(), again.String())

	// the inputs are untouched
	assert.Equal(t, sidA+":1-5", a.String())
}

func TestContains(t *testing.T) {
	set, err := ParseGTIDSet(sidA + ":1-5:8-10")
	require.NoError(t, err)

	sub, err := ParseGTIDSet(sidA + ":2-4:9")
	require.NoError(t, err)
	assert.True(t, set.Contains(sub))

	gap, err := ParseGTIDSet(sidA + ":5-8")
	require.NoError(t, err)
	assert.False(t, set.Contains(gap))

	other := NewGTIDSet()
	other.AddGTID(uuid.MustParse(sidB), 1)
	assert.False(t, set.Contains(other))
	assert.True(t, set.Contains(NewGTIDSet()))
}

func TestAddGTIDJoinsAdjacent(t *testing.T) {
	set := NewGTIDSet()
	sid := uuid.MustParse(sidA)
	set.AddGTID(sid, 3)
	set.AddGTID(sid, 1)
	set.AddGTID(sid, 2)
	assert.Equal(t, sidA+":1-3", set.String())
	require.Len(t, set.UUIDSets(), 1)
	assert.Equal(t, []Interval{{Start: 1, Stop: 4}}, set.UUIDSets()[0].Intervals)
}

func TestEncodeDecode(t *testing.T) {
	set, err := ParseGTIDSet(sidA + ":1-5:7," + sidB + ":1-100")
	require.NoError(t, err)

	data := set.Encode()
	// n_sids + 2 * (sid + n_intervals) + 3 intervals
	assert.Len(t, data, 8+2*(16+8)+3*16)

	decoded, err := DecodeGTIDSet(data)
	require.NoError(t, err)
	assert.True(t, set.Equal(decoded))

	_, err = DecodeGTIDSet(data[:30])
	assert.Error(t, err)

	assert.Len(t, NewGTIDSet().Encode(), 8)
}
