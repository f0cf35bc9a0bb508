// Package idgen generates stable content-hash identifiers for issues
// and clusters. IDs are base36-encoded SHA-256 prefixes: information-dense,
// lowercase, and safe for filenames.
package idgen

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// base36Alphabet is the character set for base36 encoding (0-9, a-z).
const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

const (
	// IssueIDLength is the length of a generated issue ID.
	IssueIDLength = 12
	// ClusterIDLength is the length of the hash portion of a cluster ID.
	ClusterIDLength = 8
	// ClusterIDPrefix marks cluster IDs apart from issue IDs.
	ClusterIDPrefix = "cluster-"
)

// EncodeBase36 converts a byte slice to a base36 string of the given length,
// zero-padded on the left and truncated to the least significant digits.
func EncodeBase36(data []byte, length int) string {
	num := new(big.Int).SetBytes(data)

	base := big.NewInt(36)
	zero := big.NewInt(0)
	mod := new(big.Int)

	chars := make([]byte, 0, length)
	for num.Cmp(zero) > 0 {
		num.DivMod(num, base, mod)
		chars = append(chars, base36Alphabet[mod.Int64()])
	}

	var b strings.Builder
	for i := len(chars) - 1; i >= 0; i-- {
		b.WriteByte(chars[i])
	}

	str := b.String()
	if len(str) < length {
		str = strings.Repeat("0", length-len(str)) + str
	}
	if len(str) > length {
		str = str[len(str)-length:]
	}
	return str
}

// IssueID creates a hash-based ID for an issue from its draft content and
// creation time. The nonce exists to resolve hash collisions: callers that
// detect a collision retry with nonce+1.
func IssueID(title, description string, created time.Time, nonce int) string {
	return hashID("", title, description, created, IssueIDLength, nonce)
}

// ClusterID creates a hash-based ID for a cluster from its theme and
// creation time.
func ClusterID(theme string, created time.Time, nonce int) string {
	return hashID(ClusterIDPrefix, theme, "", created, ClusterIDLength, nonce)
}

func hashID(prefix, title, body string, ts time.Time, length, nonce int) string {
	content := fmt.Sprintf("%s|%s|%d|%d", title, body, ts.UnixNano(), nonce)
	hash := sha256.Sum256([]byte(content))

	// 8 bytes of hash gives 64 bits, comfortably more entropy than a
	// 12-char base36 string can hold.
	return prefix + EncodeBase36(hash[:8], length)
}
