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

// Package frametype holds the immutable, language-neutral description of a
// Sleipnir command layout, as reconstructed from DWARF debug information by
// package dwarf. A Descriptor tree is pure data: it carries bit sizes and bit
// offsets only, and knows nothing about randomization or value storage. That
// is the job of package frame, which instantiates a mutable value tree from a
// Descriptor.
package frametype

import (
	"fmt"

	"github.com/cobaltfuzz/sleipnir/errors"
)

// Descriptor is the common interface implemented by every shape a command
// layout can take: BaseInt, Aggregate, Overlay and Array.
type Descriptor interface {
	// Size returns the size of the type in bits.
	Size() int

	descriptor()
}

// BaseInt is an unsigned integer leaf of width 8, 16, 32 or 64 bits.
type BaseInt struct {
	Bits int
}

func (b BaseInt) Size() int  { return b.Bits }
func (BaseInt) descriptor() {}

// NewBaseInt validates the width and returns a BaseInt descriptor.
func NewBaseInt(bits int) (BaseInt, error) {
	switch bits {
	case 8, 16, 32, 64:
		return BaseInt{Bits: bits}, nil
	default:
		return BaseInt{}, fmt.Errorf("unsupported base integer width: %d", bits)
	}
}

// Member is one named field of an Aggregate, along with its bit size and its
// bit offset (little-endian bit order) from the start of the aggregate.
type Member struct {
	Name      string
	Type      Descriptor
	BitSize   int
	BitOffset int
}

// Aggregate is an ordered collection of members occupying possibly
// non-contiguous bit ranges within a fixed total size (a C struct).
type Aggregate struct {
	Members  []Member
	SizeBits int
}

func (a Aggregate) Size() int  { return a.SizeBits }
func (Aggregate) descriptor() {}

// NewAggregate validates that every member fits within sizeBits before
// returning the Aggregate descriptor.
func NewAggregate(members []Member, sizeBits int) (Aggregate, error) {
	for _, m := range members {
		if m.BitOffset < 0 || m.BitSize < 0 || m.BitOffset+m.BitSize > sizeBits {
			return Aggregate{}, errors.Errorf(errors.MalformedDebugInfo,
				fmt.Sprintf("member %q (offset %d, size %d) exceeds aggregate size %d",
					m.Name, m.BitOffset, m.BitSize, sizeBits))
		}
		if m.BitSize > m.Type.Size() {
			return Aggregate{}, errors.Errorf(errors.MalformedDebugInfo,
				fmt.Sprintf("member %q bit-field size %d exceeds its type's natural width %d",
					m.Name, m.BitSize, m.Type.Size()))
		}
	}
	return Aggregate{Members: members, SizeBits: sizeBits}, nil
}

// Arm is one named alternative of an Overlay (a C union member).
type Arm struct {
	Name string
	Type Descriptor
}

// Overlay is a set of arms that all occupy the same bit range, save for
// BaseInt arms which may be wider than the overlay (and are zero-extended).
type Overlay struct {
	Arms     []Arm
	SizeBits int
}

func (o Overlay) Size() int  { return o.SizeBits }
func (Overlay) descriptor() {}

// NewOverlay validates arm sizes and determines the overlay's own size: the
// common size of every non-BaseInt arm. An overlay made up of BaseInt arms
// only is invalid, and any BaseInt arm narrower than that common size is
// invalid too.
func NewOverlay(arms []Arm) (Overlay, error) {
	size := -1
	for _, a := range arms {
		if _, ok := a.Type.(BaseInt); ok {
			continue
		}
		if size == -1 {
			size = a.Type.Size()
		} else if a.Type.Size() != size {
			return Overlay{}, errors.Errorf(errors.InvalidOverlay,
				fmt.Sprintf("arm %q has size %d, expected %d", a.Name, a.Type.Size(), size))
		}
	}
	if size == -1 {
		return Overlay{}, errors.Errorf(errors.InvalidOverlay, "no non-BaseInt arm to derive a size from")
	}
	for _, a := range arms {
		if b, ok := a.Type.(BaseInt); ok && b.Size() < size {
			return Overlay{}, errors.Errorf(errors.InvalidOverlay,
				fmt.Sprintf("arm %q (BaseInt, %d bits) is narrower than overlay size %d", a.Name, b.Size(), size))
		}
	}
	return Overlay{Arms: arms, SizeBits: size}, nil
}

// Array is a fixed-length, possibly nested, sequence of identically-typed
// elements (outer-major order for nested arrays).
type Array struct {
	Elem  Descriptor
	Count int
}

func (a Array) Size() int  { return a.Elem.Size() * a.Count }
func (Array) descriptor() {}

// Enumeration maps symbolic names to their integer values. It is not part of
// any layout; it is consulted only by constraint expressions.
type Enumeration struct {
	Name   string
	Values map[string]int64
}

// Equal reports whether two descriptors are structurally identical. Used by
// tests to compare extracted layouts against hand-built expectations.
func Equal(a, b Descriptor) bool {
	switch av := a.(type) {
	case BaseInt:
		bv, ok := b.(BaseInt)
		return ok && av.Bits == bv.Bits
	case Aggregate:
		bv, ok := b.(Aggregate)
		if !ok || av.SizeBits != bv.SizeBits || len(av.Members) != len(bv.Members) {
			return false
		}
		for i := range av.Members {
			if av.Members[i].Name != bv.Members[i].Name ||
				av.Members[i].BitSize != bv.Members[i].BitSize ||
				av.Members[i].BitOffset != bv.Members[i].BitOffset ||
				!Equal(av.Members[i].Type, bv.Members[i].Type) {
				return false
			}
		}
		return true
	case Overlay:
		bv, ok := b.(Overlay)
		if !ok || av.SizeBits != bv.SizeBits || len(av.Arms) != len(bv.Arms) {
			return false
		}
		for i := range av.Arms {
			if av.Arms[i].Name != bv.Arms[i].Name || !Equal(av.Arms[i].Type, bv.Arms[i].Type) {
				return false
			}
		}
		return true
	case Array:
		bv, ok := b.(Array)
		return ok && av.Count == bv.Count && Equal(av.Elem, bv.Elem)
	default:
		return false
	}
}
