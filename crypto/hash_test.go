package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashHex(t *testing.T) {
	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", HashHex([]byte("abc")))
	assert.Len(t, HashHex(nil), DigestLength)
}

func TestHashParts(t *testing.T) {
	assert.Equal(t, HashHex([]byte("1abc2")), HashParts(uint64(1), "abc", 2))
	assert.Equal(t, HashHex([]byte("0.5x")), HashParts(0.5, "x"))
	assert.NotEqual(t, HashParts("a", "bc"), HashParts("a", "b"))
}

func TestIterateHex(t *testing.T) {
	assert.Equal(t, "seed", IterateHex("seed", 0))
	assert.Equal(t, HashHex([]byte("seed")), IterateHex("seed", 1))
	assert.Equal(t, HashHex([]byte(HashHex([]byte("seed")))), IterateHex("seed", 2))
}

func TestHasLeadingZeros(t *testing.T) {
	tests := []struct {
		digest string
		d      int
		want   bool
	}{
		{"00ab", 2, true},
		{"00ab", 3, false},
		{"abcd", 0, true},
		{"0", 2, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HasLeadingZeros(tt.digest, tt.d), "digest %s d %d", tt.digest, tt.d)
	}
}

func TestHexPrefixUint(t *testing.T) {
	v, err := HexPrefixUint("00000000000000ffabc", 16)
	require.NoError(t, err)
	assert.Equal(t, uint64(255), v)

	_, err = HexPrefixUint("abc", 8)
	assert.Error(t, err)
}

func TestSeededRandDeterministic(t *testing.T) {
	a := SeededRand("prev-hash")
	b := SeededRand("prev-hash")
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Uint64(), b.Uint64())
	}

	c := SeededRand("other")
	assert.NotEqual(t, SeededRand("prev-hash").Uint64(), c.Uint64())
}
