package picodb

import (
	"math/rand/v2"
	"time"
)

const idAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// GenerateID produces a document id: 8 characters derived from a
// seconds-granularity clock encoded in the alphanumeric alphabet above,
// followed by 4 characters from a uniform random source (spec.md §4.6).
// Collisions are not detected — callers needing collision resistance
// should supply their own id to CreateDocument.
func GenerateID() string {
	return encodeBase62Fixed(uint64(time.Now().Unix()), 8) + randomBase62(4)
}

func encodeBase62Fixed(v uint64, width int) string {
	buf := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		buf[i] = idAlphabet[v%uint64(len(idAlphabet))]
		v /= uint64(len(idAlphabet))
	}
	return string(buf)
}

func randomBase62(n int) string {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = idAlphabet[rand.IntN(len(idAlphabet))]
	}
	return string(buf)
}
