// Package crypto provides the digest and deterministic randomness helpers behind every proof.
package crypto

import (
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/cometbft/cometbft/crypto/tmhash"
)

// DigestLength is the length of a hex-encoded digest.
const DigestLength = tmhash.Size * 2

// Hash computes the SHA256 hash of data.
func Hash(data []byte) []byte {
	return tmhash.Sum(data)
}

// HashHex computes the SHA256 hash and returns it as a lowercase hex string.
func HashHex(data []byte) string {
	return hex.EncodeToString(Hash(data))
}

// HashParts concatenates the textual form of every part and digests the result.
// Integers print in decimal and floats in their shortest round-trip form.
func HashParts(parts ...interface{}) string {
	var sb strings.Builder
	for _, p := range parts {
		switch v := p.(type) {
		case string:
			sb.WriteString(v)
		case float64:
			sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		default:
			fmt.Fprint(&sb, v)
		}
	}
	return HashHex([]byte(sb.String()))
}

// IterateHex applies HashHex to input n times, feeding each output into the next round.
// n == 0 returns the input unchanged.
func IterateHex(input string, n uint64) string {
	out := input
	for i := uint64(0); i < n; i++ {
		out = HashHex([]byte(out))
	}
	return out
}

// HasLeadingZeros reports whether the digest starts with d '0' characters.
func HasLeadingZeros(digest string, d int) bool {
	if d <= 0 {
		return true
	}
	if len(digest) < d {
		return false
	}
	for i := 0; i < d; i++ {
		if digest[i] != '0' {
			return false
		}
	}
	return true
}

// HexPrefixUint parses the first n hex characters of s as an unsigned integer.
func HexPrefixUint(s string, n int) (uint64, error) {
	if n > len(s) {
		return 0, fmt.Errorf("digest %q shorter than %d characters", s, n)
	}
	return strconv.ParseUint(s[:n], 16, 64)
}

// SeededRand returns a generator whose stream is fully determined by seed.
// The seed is digested into the 32-byte key of a ChaCha8 source.
func SeededRand(seed string) *rand.Rand {
	var key [32]byte
	copy(key[:], Hash([]byte(seed)))
	return rand.New(rand.NewChaCha8(key))
}
