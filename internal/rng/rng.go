// This file is part of Sleipnir.
//
// Sleipnir is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Sleipnir is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Sleipnir.  If not, see <https://www.gnu.org/licenses/>.

// Package rng is the single seeded pseudo-random source shared by the
// solver and the data-pattern generators, so that a given seed reproduces
// an identical run bit-for-bit.
package rng

import (
	"math/big"
	"math/rand/v2"
)

// Source wraps a math/rand/v2 generator seeded deterministically.
type Source struct {
	r *rand.Rand
}

// New seeds a Source from a 64-bit seed. The two halves of a PCG's 128-bit
// state are derived from the single seed so that the same seed always
// reproduces the same stream.
func New(seed int64) *Source {
	s := uint64(seed)
	return &Source{r: rand.New(rand.NewPCG(s, s^0x9E3779B97F4A7C15))}
}

// Uint64 returns the next 64 random bits.
func (s *Source) Uint64() uint64 { return s.r.Uint64() }

// IntN returns a random integer in [0, n).
func (s *Source) IntN(n int) int { return s.r.IntN(n) }

// BigInt returns a uniformly random value in [0, 2^bits).
func (s *Source) BigInt(bits int) *big.Int {
	if bits <= 0 {
		return new(big.Int)
	}
	nbytes := (bits + 7) / 8
	buf := make([]byte, nbytes)
	for i := range buf {
		buf[i] = byte(s.r.Uint64N(256))
	}
	v := new(big.Int).SetBytes(buf)
	mask := new(big.Int).Lsh(big.NewInt(1), uint(bits))
	mask.Sub(mask, big.NewInt(1))
	return v.And(v, mask)
}
