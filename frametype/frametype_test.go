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

package frametype_test

import (
	"testing"

	"github.com/cobaltfuzz/sleipnir/frametype"
)

func TestNewBaseInt(t *testing.T) {
	for _, bits := range []int{8, 16, 32, 64} {
		if _, err := frametype.NewBaseInt(bits); err != nil {
			t.Errorf("NewBaseInt(%d): unexpected error: %v", bits, err)
		}
	}
	if _, err := frametype.NewBaseInt(24); err == nil {
		t.Error("NewBaseInt(24): expected error")
	}
}

func TestNewAggregateOverlap(t *testing.T) {
	u8, _ := frametype.NewBaseInt(8)
	members := []frametype.Member{
		{Name: "a", Type: u8, BitSize: 4, BitOffset: 0},
		{Name: "b", Type: u8, BitSize: 4, BitOffset: 4},
	}
	agg, err := frametype.NewAggregate(members, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if agg.Size() != 8 {
		t.Errorf("Size() = %d, want 8", agg.Size())
	}
}

func TestNewAggregateOutOfBounds(t *testing.T) {
	u32, _ := frametype.NewBaseInt(32)
	members := []frametype.Member{
		{Name: "a", Type: u32, BitSize: 32, BitOffset: 16},
	}
	if _, err := frametype.NewAggregate(members, 32); err == nil {
		t.Error("expected error for member exceeding aggregate size")
	}
}

func TestNewAggregateBitFieldWiderThanType(t *testing.T) {
	u8, _ := frametype.NewBaseInt(8)
	members := []frametype.Member{
		{Name: "a", Type: u8, BitSize: 9, BitOffset: 0},
	}
	if _, err := frametype.NewAggregate(members, 16); err == nil {
		t.Error("expected error for bit-field wider than its base type")
	}
}

func TestNewOverlayAllBaseIntRejected(t *testing.T) {
	u32, _ := frametype.NewBaseInt(32)
	arms := []frametype.Arm{
		{Name: "a", Type: u32},
		{Name: "b", Type: u32},
	}
	if _, err := frametype.NewOverlay(arms); err == nil {
		t.Error("expected error for overlay with only BaseInt arms")
	}
}

func TestNewOverlaySizeMismatch(t *testing.T) {
	u8, _ := frametype.NewBaseInt(8)
	u16, _ := frametype.NewBaseInt(16)
	arms := []frametype.Arm{
		{Name: "a", Type: mustAggregate(t, 16, u8)},
		{Name: "b", Type: mustAggregate(t, 32, u16)},
	}
	if _, err := frametype.NewOverlay(arms); err == nil {
		t.Error("expected error for mismatched non-BaseInt arm sizes")
	}
}

func TestNewOverlayNarrowBaseIntRejected(t *testing.T) {
	u8, _ := frametype.NewBaseInt(8)
	arms := []frametype.Arm{
		{Name: "a", Type: mustAggregate(t, 16, u8)},
		{Name: "b", Type: u8},
	}
	if _, err := frametype.NewOverlay(arms); err == nil {
		t.Error("expected error for BaseInt arm narrower than overlay size")
	}
}

func TestNewOverlayValid(t *testing.T) {
	u8, _ := frametype.NewBaseInt(8)
	u16, _ := frametype.NewBaseInt(16)
	arms := []frametype.Arm{
		{Name: "a", Type: mustAggregate(t, 16, u8)},
		{Name: "b", Type: u16},
	}
	ov, err := frametype.NewOverlay(arms)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ov.Size() != 16 {
		t.Errorf("Size() = %d, want 16", ov.Size())
	}
}

func TestArraySize(t *testing.T) {
	u8, _ := frametype.NewBaseInt(8)
	arr := frametype.Array{Elem: u8, Count: 4}
	if arr.Size() != 32 {
		t.Errorf("Size() = %d, want 32", arr.Size())
	}

	nested := frametype.Array{Elem: arr, Count: 2}
	if nested.Size() != 64 {
		t.Errorf("nested Size() = %d, want 64", nested.Size())
	}
}

func TestEqual(t *testing.T) {
	u8, _ := frametype.NewBaseInt(8)
	a := mustAggregate(t, 16, u8)
	b := mustAggregate(t, 16, u8)
	if !frametype.Equal(a, b) {
		t.Error("expected equal aggregates to compare equal")
	}

	u16, _ := frametype.NewBaseInt(16)
	c := mustAggregate(t, 16, u16)
	if frametype.Equal(a, c) {
		t.Error("expected different member types to compare unequal")
	}
}

func mustAggregate(t *testing.T, sizeBits int, elem frametype.BaseInt) frametype.Aggregate {
	t.Helper()
	agg, err := frametype.NewAggregate([]frametype.Member{
		{Name: "x", Type: elem, BitSize: elem.Size(), BitOffset: 0},
	}, sizeBits)
	if err != nil {
		t.Fatalf("mustAggregate: %v", err)
	}
	return agg
}
