// Copyright 2017, Kerby Shedden and the Muscato contributors.

// Package hashfam derives the k independent counter-array indices used by
// the window counter from a single 128-bit hash of a key, following the
// Kirsch-Mitzenmacher double hashing construction.
package hashfam

import (
	"math"

	"github.com/spaolacci/murmur3"
)

// Salt is the fixed 32-bit seed used for every hash computed by this
// package. It is a compile-time constant: there is no per-process
// randomisation, so the same key always yields the same index set across
// restarts (the same constant dablooms and the detector this package
// replaces both use).
const Salt uint32 = 0x97c29b3a

// Family derives k indices in [0, m) from a key.
type Family struct {
	K int
	M uint64
}

// New returns a Family with the given shape. k and m are assumed to already
// be validated by DeriveParams.
func New(k int, m uint64) Family {
	return Family{K: k, M: m}
}

// Indices computes the k counter-array indices for key, reusing dst if it
// has sufficient capacity.
func (f Family) Indices(key []byte, dst []uint64) []uint64 {
	if cap(dst) < f.K {
		dst = make([]uint64, f.K)
	}
	dst = dst[:f.K]

	// Only the low 32 bits of each 64-bit half are used as h1 and h2.
	h1, h2 := murmur3.Sum128WithSeed(key, Salt)
	h1, h2 = h1&0xffffffff, h2&0xffffffff
	for i := 0; i < f.K; i++ {
		dst[i] = (h1 + uint64(i)*h2) % f.M
	}
	return dst
}

// DeriveParams computes the number of hash functions k and the number of
// counters per function m for a target insertion capacity and false
// positive error rate, following the standard Bloom filter sizing
// formulas:
//
//	k = ceil(log2(1/e))
//	m = ceil(capacity * |ln(e)| / (k * (ln 2)^2))
//
// capacity must be >= 1 and errorRate must be in (0, 1).
func DeriveParams(capacity uint64, errorRate float64) (k int, m uint64) {
	if capacity < 1 {
		capacity = 1
	}
	if errorRate <= 0 || errorRate >= 1 {
		errorRate = 0.01
	}

	kf := math.Ceil(math.Log2(1 / errorRate))
	k = int(kf)
	if k < 1 {
		k = 1
	}

	ln2 := math.Ln2
	mf := math.Ceil(float64(capacity) * math.Abs(math.Log(errorRate)) / (float64(k) * ln2 * ln2))
	m = uint64(mf)
	if m < 1 {
		m = 1
	}
	return k, m
}
