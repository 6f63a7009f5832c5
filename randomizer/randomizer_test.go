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

package randomizer_test

import (
	"testing"

	"github.com/cobaltfuzz/sleipnir/constraint"
	"github.com/cobaltfuzz/sleipnir/enumtable"
	"github.com/cobaltfuzz/sleipnir/frametype"
	"github.com/cobaltfuzz/sleipnir/internal/rng"
	"github.com/cobaltfuzz/sleipnir/randomizer"
)

func testFrameDescriptor(t *testing.T) frametype.Aggregate {
	t.Helper()
	u8, _ := frametype.NewBaseInt(8)
	fields, err := frametype.NewAggregate([]frametype.Member{
		{Name: "type", Type: u8, BitSize: 8, BitOffset: 0},
		{Name: "count", Type: u8, BitSize: 8, BitOffset: 8},
		{Name: "width", Type: u8, BitSize: 8, BitOffset: 16},
		{Name: "height", Type: u8, BitSize: 8, BitOffset: 24},
		{Name: "depth", Type: u8, BitSize: 8, BitOffset: 32},
	}, 40)
	if err != nil {
		t.Fatalf("NewAggregate(fields): %v", err)
	}
	u32, _ := frametype.NewBaseInt(32)
	root, err := frametype.NewAggregate([]frametype.Member{
		{Name: "id", Type: u32, BitSize: 32, BitOffset: 0},
		{Name: "fields", Type: fields, BitSize: 40, BitOffset: 32},
	}, 72)
	if err != nil {
		t.Fatalf("NewAggregate(root): %v", err)
	}
	return root
}

func testCompiler(t *testing.T) *constraint.Compiler {
	t.Helper()
	enums := enumtable.New([]frametype.Enumeration{
		{Name: "frame_type_t", Values: map[string]int64{"FRAME_SINGLE": 0}},
	})
	c, err := constraint.NewCompiler(enums)
	if err != nil {
		t.Fatalf("NewCompiler: %v", err)
	}
	return c
}

func TestIteratorAssignsSequentialIDs(t *testing.T) {
	it, err := randomizer.NewIterator(testFrameDescriptor(t), testCompiler(t), rng.New(1), constraint.Config{}, 3)
	if err != nil {
		t.Fatalf("NewIterator: %v", err)
	}

	var idx int64
	for it.Next() {
		frame := it.Frame()
		id, err := frame.Root().Field(constraint.IDField)
		if err != nil {
			t.Fatalf("Field(id): %v", err)
		}
		if got := id.Value().Int64(); got != idx {
			t.Errorf("frame %d: id = %d, want %d", idx, got, idx)
		}
		idx++
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iterator error: %v", err)
	}
	if idx != 3 {
		t.Fatalf("produced %d frames, want 3", idx)
	}
}

func TestPerCommandConstraintOnlyAppliesToItsIndex(t *testing.T) {
	cfg := constraint.Config{
		PerCmdConstraintsFrame: map[int]map[string]string{
			1: {"fixed_count": "frame.fields.count == 5"},
		},
	}
	it, err := randomizer.NewIterator(testFrameDescriptor(t), testCompiler(t), rng.New(2), cfg, 3)
	if err != nil {
		t.Fatalf("NewIterator: %v", err)
	}

	var counts []int64
	for it.Next() {
		count, err := it.Frame().Root().Field("fields.count")
		if err != nil {
			t.Fatalf("Field(fields.count): %v", err)
		}
		counts = append(counts, count.Value().Int64())
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iterator error: %v", err)
	}
	if len(counts) != 3 {
		t.Fatalf("produced %d frames, want 3", len(counts))
	}
	if counts[1] != 5 {
		t.Errorf("frame 1 fields.count = %d, want 5", counts[1])
	}
}

func TestZeroFramesProducesNoOutput(t *testing.T) {
	it, err := randomizer.NewIterator(testFrameDescriptor(t), testCompiler(t), rng.New(3), constraint.Config{}, 0)
	if err != nil {
		t.Fatalf("NewIterator: %v", err)
	}
	if it.Next() {
		t.Error("expected no frames for n=0")
	}
	if it.Err() != nil {
		t.Fatalf("iterator error: %v", it.Err())
	}
}
