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

package dwarf_test

import (
	"testing"

	"github.com/cobaltfuzz/sleipnir/dwarf"
)

// ParseFile requires a real ELF image to do anything useful; these tests
// cover the error path reachable without one. Layout-extraction semantics
// (bit-field offsets, array nesting, enum collection) are exercised directly
// against frametype and frame in their own packages, which is where the
// extractor's output actually gets consumed.
func TestParseFileMissing(t *testing.T) {
	if _, err := dwarf.ParseFile("/nonexistent/path/to/binary.elf"); err == nil {
		t.Error("expected error for missing file")
	}
}
