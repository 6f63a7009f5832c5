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

// Package dwarf reconstructs frametype descriptors from the DWARF debug
// information embedded in an ELF image. It only understands the subset of
// DWARF needed to describe fixed-layout command structures: typedefs,
// structures, unions, arrays of integers, unsigned base types of 1/2/4/8/16
// bytes, and enumerations. Any other DIE tag is logged once per tag, and a
// named type that depends on one is left out of the result.
package dwarf

import (
	stddwarf "debug/dwarf"
	"debug/elf"
	"fmt"
	"io"

	"github.com/cobaltfuzz/sleipnir/errors"
	"github.com/cobaltfuzz/sleipnir/frametype"
	"github.com/cobaltfuzz/sleipnir/logger"
)

// Result is the pair of name-keyed tables produced by a parse.
type Result struct {
	Types       map[string]frametype.Descriptor
	Enumerators []frametype.Enumeration
}

// build holds the per-parse caches. A fresh build is created for every call
// to ParseFile so no state leaks between parses.
type build struct {
	data *stddwarf.Data

	byOffset map[stddwarf.Offset]frametype.Descriptor
	entries  map[stddwarf.Offset]*stddwarf.Entry
	order    []*stddwarf.Entry

	warned map[stddwarf.Tag]bool

	enums map[stddwarf.Offset]frametype.Enumeration
}

// ParseFile opens path as an ELF image and extracts every named structure,
// union, typedef and enumeration reachable from its DWARF debug info.
func ParseFile(path string) (*Result, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := f.DWARF()
	if err != nil {
		return nil, errors.Errorf(errors.NoDebugInfo)
	}

	return parse(data)
}

func parse(data *stddwarf.Data) (*Result, error) {
	bld := &build{
		data:     data,
		byOffset: make(map[stddwarf.Offset]frametype.Descriptor),
		entries:  make(map[stddwarf.Offset]*stddwarf.Entry),
		warned:   make(map[stddwarf.Tag]bool),
		enums:    make(map[stddwarf.Offset]frametype.Enumeration),
	}

	r := data.Reader()
	for {
		entry, err := r.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		if entry == nil {
			break
		}
		bld.order = append(bld.order, entry)
		bld.entries[entry.Offset] = entry
	}

	types := make(map[string]frametype.Descriptor)
	var enumerators []frametype.Enumeration

	for _, e := range bld.order {
		switch e.Tag {
		case stddwarf.TagTypedef:
			typeEntry, ok := bld.typeEntry(e)
			if !ok {
				continue
			}
			d, err := bld.resolve(typeEntry)
			if errors.Is(err, errors.UnsupportedDieTag) {
				continue
			}
			if err != nil {
				return nil, err
			}
			types[dieName(e)] = d
		case stddwarf.TagStructType, stddwarf.TagUnionType:
			if !dieHasName(e) {
				continue
			}
			d, err := bld.resolve(e)
			if errors.Is(err, errors.UnsupportedDieTag) {
				continue
			}
			if err != nil {
				return nil, err
			}
			types[dieName(e)] = d
		case stddwarf.TagEnumerationType:
			if !dieHasName(e) {
				continue
			}
			enum, err := bld.resolveEnum(e)
			if err != nil {
				return nil, err
			}
			enumerators = append(enumerators, enum)
		}
	}

	return &Result{Types: types, Enumerators: enumerators}, nil
}

// resolve extracts the descriptor for entry, consulting and populating the
// offset cache along the way.
func (b *build) resolve(entry *stddwarf.Entry) (frametype.Descriptor, error) {
	if d, ok := b.byOffset[entry.Offset]; ok {
		return d, nil
	}

	var d frametype.Descriptor
	var err error

	switch entry.Tag {
	case stddwarf.TagTypedef:
		typeEntry, ok := b.typeEntry(entry)
		if !ok {
			return nil, errors.Errorf(errors.MalformedDebugInfo, "typedef without DW_AT_type")
		}
		d, err = b.resolve(typeEntry)
	case stddwarf.TagStructType:
		d, err = b.resolveStruct(entry)
	case stddwarf.TagUnionType:
		d, err = b.resolveUnion(entry)
	case stddwarf.TagArrayType:
		d, err = b.resolveArray(entry)
	case stddwarf.TagBaseType:
		d, err = b.resolveBase(entry)
	case stddwarf.TagConstType, stddwarf.TagVolatileType:
		typeEntry, ok := b.typeEntry(entry)
		if !ok {
			return nil, errors.Errorf(errors.MalformedDebugInfo, "qualifier type without DW_AT_type")
		}
		d, err = b.resolve(typeEntry)
	default:
		if !b.warned[entry.Tag] {
			b.warned[entry.Tag] = true
			logger.Logf(logger.Allow, "dwarf", "unsupported DIE tag, skipping: %s", entry.Tag)
		}
		return nil, errors.Errorf(errors.UnsupportedDieTag, entry.Tag.String())
	}
	if err != nil {
		return nil, err
	}

	b.byOffset[entry.Offset] = d
	return d, nil
}

func (b *build) resolveStruct(entry *stddwarf.Entry) (frametype.Descriptor, error) {
	// entry's own size comes straight off its DW_AT_byte_size, the way
	// resolveBase reads a base type's size: entry is the struct currently
	// being resolved, so it isn't in b.byOffset yet, and routing through
	// typeSizeBits (which calls b.resolve) would dispatch straight back into
	// resolveStruct and recurse forever.
	sizeBits, err := dieByteSizeBits(entry)
	if err != nil {
		return nil, err
	}

	var members []frametype.Member
	for _, child := range b.children(entry) {
		if child.Tag != stddwarf.TagMember {
			continue
		}
		memberTypeEntry, ok := b.typeEntry(child)
		if !ok {
			return nil, errors.Errorf(errors.MalformedDebugInfo, "member without DW_AT_type")
		}
		memberType, err := b.resolve(memberTypeEntry)
		if err != nil {
			return nil, err
		}
		memberSizeBits, err := b.typeSizeBits(memberTypeEntry)
		if err != nil {
			return nil, err
		}

		byteOffset, _ := child.Val(stddwarf.AttrDataMemberLoc).(int64)

		var bitSize, bitOffset int
		if bitSizeAttr, ok := child.Val(stddwarf.AttrBitSize).(int64); ok {
			// DW_AT_bit_offset is a signed 64-bit two's complement value;
			// Go's int64 already represents it correctly, no separate
			// sign-extension step is needed the way it is in Python.
			containerBits := memberType.Size()
			dieBitOffset, _ := child.Val(stddwarf.AttrBitOffset).(int64)
			bitSize = int(bitSizeAttr)
			bitOffset = containerBits - bitSize - int(dieBitOffset) + 8*int(byteOffset)
			if bitSize > memberSizeBits {
				return nil, errors.Errorf(errors.MalformedDebugInfo,
					fmt.Sprintf("bit-field %s size %d exceeds container size %d", memberName(child), bitSize, memberSizeBits))
			}
		} else {
			bitSize = memberSizeBits
			bitOffset = 8 * int(byteOffset)
		}

		if bitOffset < 0 {
			return nil, errors.Errorf(errors.MalformedDebugInfo,
				fmt.Sprintf("member %s has negative bit offset %d", memberName(child), bitOffset))
		}

		members = append(members, frametype.Member{
			Name:      memberName(child),
			Type:      memberType,
			BitSize:   bitSize,
			BitOffset: bitOffset,
		})
	}

	return frametype.NewAggregate(members, sizeBits)
}

func (b *build) resolveUnion(entry *stddwarf.Entry) (frametype.Descriptor, error) {
	var arms []frametype.Arm
	for _, child := range b.children(entry) {
		if child.Tag != stddwarf.TagMember {
			continue
		}
		memberTypeEntry, ok := b.typeEntry(child)
		if !ok {
			return nil, errors.Errorf(errors.MalformedDebugInfo, "union member without DW_AT_type")
		}
		memberType, err := b.resolve(memberTypeEntry)
		if err != nil {
			return nil, err
		}
		arms = append(arms, frametype.Arm{Name: memberName(child), Type: memberType})
	}
	return frametype.NewOverlay(arms)
}

func (b *build) resolveArray(entry *stddwarf.Entry) (frametype.Descriptor, error) {
	elemTypeEntry, ok := b.typeEntry(entry)
	if !ok {
		return nil, errors.Errorf(errors.MalformedDebugInfo, "array without DW_AT_type")
	}
	elem, err := b.resolve(elemTypeEntry)
	if err != nil {
		return nil, err
	}

	var counts []int
	for _, child := range b.children(entry) {
		if child.Tag != stddwarf.TagSubrangeType {
			continue
		}
		if ub, ok := child.Val(stddwarf.AttrUpperBound).(int64); ok {
			if uint64(ub) == 0xFFFFFFFFFFFFFFFF {
				counts = append(counts, 0)
			} else {
				counts = append(counts, int(ub)+1)
			}
		} else if cnt, ok := child.Val(stddwarf.AttrCount).(int64); ok {
			counts = append(counts, int(cnt))
		}
	}

	d := elem
	for i := len(counts) - 1; i >= 0; i-- {
		d = frametype.Array{Elem: d, Count: counts[i]}
	}
	return d, nil
}

func (b *build) resolveBase(entry *stddwarf.Entry) (frametype.Descriptor, error) {
	byteSize, _ := entry.Val(stddwarf.AttrByteSize).(int64)
	switch byteSize {
	case 1, 2, 4, 8:
		return frametype.NewBaseInt(int(byteSize) * 8)
	case 16:
		u64, _ := frametype.NewBaseInt(64)
		return frametype.Array{Elem: u64, Count: 2}, nil
	default:
		return nil, errors.Errorf(errors.MalformedDebugInfo,
			fmt.Sprintf("unsupported base type byte size: %d", byteSize))
	}
}

func (b *build) resolveEnum(entry *stddwarf.Entry) (frametype.Enumeration, error) {
	if e, ok := b.enums[entry.Offset]; ok {
		return e, nil
	}
	values := make(map[string]int64)
	for _, child := range b.children(entry) {
		if child.Tag != stddwarf.TagEnumerator {
			continue
		}
		name, _ := child.Val(stddwarf.AttrName).(string)
		val, _ := child.Val(stddwarf.AttrConstValue).(int64)
		values[name] = val
	}
	enum := frametype.Enumeration{Name: dieName(entry), Values: values}
	b.enums[entry.Offset] = enum
	return enum, nil
}

// dieByteSizeBits reads entry's own DW_AT_byte_size attribute directly,
// without resolving entry's descriptor. Use this for a type DIE that may
// still be mid-resolution (eg. a struct computing its own size).
func dieByteSizeBits(entry *stddwarf.Entry) (int, error) {
	byteSize, ok := entry.Val(stddwarf.AttrByteSize).(int64)
	if !ok {
		return 0, errors.Errorf(errors.MalformedDebugInfo,
			fmt.Sprintf("%s has no DW_AT_byte_size", entry.Tag))
	}
	return int(byteSize) * 8, nil
}

// typeSizeBits returns the bit size of the type entry resolves to, following
// typedefs and qualifiers.
func (b *build) typeSizeBits(entry *stddwarf.Entry) (int, error) {
	d, err := b.resolve(entry)
	if err != nil {
		return 0, err
	}
	return d.Size(), nil
}

func (b *build) typeEntry(entry *stddwarf.Entry) (*stddwarf.Entry, bool) {
	off, ok := entry.Val(stddwarf.AttrType).(stddwarf.Offset)
	if !ok {
		return nil, false
	}
	e, ok := b.entries[off]
	return e, ok
}

// children returns entry's direct DWARF children. The debug/dwarf reader
// does not expose children directly once the stream has been fully consumed
// into bld.order, so a fresh Reader is positioned at entry's offset and
// walks the run of child entries that follows it, skipping grandchildren.
func (b *build) children(entry *stddwarf.Entry) []*stddwarf.Entry {
	r := b.data.Reader()
	r.Seek(entry.Offset)
	root, err := r.Next()
	if err != nil || root == nil || !root.Children {
		return nil
	}
	var out []*stddwarf.Entry
	for {
		child, err := r.Next()
		if err != nil || child == nil {
			break
		}
		if child.Tag == 0 {
			break // end of children marker
		}
		out = append(out, child)
		if child.Children {
			skipChildren(r)
		}
	}
	return out
}

func skipChildren(r *stddwarf.Reader) {
	depth := 1
	for depth > 0 {
		e, err := r.Next()
		if err != nil || e == nil {
			return
		}
		if e.Tag == 0 {
			depth--
			continue
		}
		if e.Children {
			depth++
		}
	}
}

func dieHasName(e *stddwarf.Entry) bool {
	_, ok := e.Val(stddwarf.AttrName).(string)
	return ok
}

func dieName(e *stddwarf.Entry) string {
	if name, ok := e.Val(stddwarf.AttrName).(string); ok {
		return name
	}
	return fmt.Sprintf("anon_%x", e.Offset)
}

func memberName(e *stddwarf.Entry) string {
	return dieName(e)
}
