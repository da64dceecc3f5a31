// Package randsrc treats entropy as an injected capability: the
// string-encryption key and the flattener's optional block-id shuffle
// both draw from a Source rather than calling a package-level RNG
// directly, so tests can substitute a deterministic one.
package randsrc

import (
	crand "crypto/rand"
	"math/rand/v2"
)

// Source is the entropy capability every pass that needs randomness
// depends on.
type Source interface {
	// KeyByte returns a uniform random byte in [1, 255] (0 excluded: an
	// XOR key of 0 would leave strings in plaintext).
	KeyByte() byte
	// Shuffle permutes n elements via swap(i, j), the same contract as
	// math/rand's Shuffle, so the flattener's id-assignment shuffle can be driven by
	// either source.
	Shuffle(n int, swap func(i, j int))
}

// CryptoSource draws from crypto/rand. It is the default,
// non-deterministic source.
type CryptoSource struct{}

func (CryptoSource) KeyByte() byte {
	var buf [1]byte
	for {
		if _, err := crand.Read(buf[:]); err != nil {
			// crypto/rand failing to read is treated as fatal by every Go
			// program that depends on it; panicking here matches that
			// convention rather than silently degrading key strength.
			panic("randsrc: crypto/rand unavailable: " + err.Error())
		}
		if buf[0] != 0 {
			return buf[0]
		}
	}
}

func (CryptoSource) Shuffle(n int, swap func(i, j int)) {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		panic("randsrc: crypto/rand unavailable: " + err.Error())
	}
	r := rand.New(rand.NewChaCha8(seed))
	r.Shuffle(n, swap)
}

// SeededSource is a math/rand/v2-backed deterministic source: the same
// seed always produces the same KeyByte/Shuffle sequence, so a fixed seed
// reproduces output byte-for-byte.
type SeededSource struct {
	r *rand.Rand
}

// NewSeededSource builds a deterministic source from a 64-bit seed.
func NewSeededSource(seed int64) *SeededSource {
	return &SeededSource{r: rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9E3779B97F4A7C15))}
}

func (s *SeededSource) KeyByte() byte {
	for {
		b := byte(s.r.IntN(256))
		if b != 0 {
			return b
		}
	}
}

func (s *SeededSource) Shuffle(n int, swap func(i, j int)) {
	s.r.Shuffle(n, swap)
}
