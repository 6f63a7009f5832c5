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

// Package enumtable flattens every enumeration extracted from a target's
// debug information into one symbol table, so that constraint expressions
// can reference enumerator names (eg. CMD_READ) without qualifying them by
// the enum they came from.
package enumtable

import "github.com/cobaltfuzz/sleipnir/frametype"

// Table maps enumerator names to their integer values.
type Table struct {
	values map[string]int64
	source map[string]string // enumerator name -> owning enum name
}

// New builds a Table from a set of enumerations. When the same enumerator
// name appears in more than one enumeration, the first one encountered wins
// and later ones are silently dropped, mirroring how the original constraint
// generator folds enum symbols into one flat namespace.
func New(enums []frametype.Enumeration) *Table {
	t := &Table{
		values: make(map[string]int64),
		source: make(map[string]string),
	}
	for _, e := range enums {
		for name, val := range e.Values {
			if _, exists := t.values[name]; exists {
				continue
			}
			t.values[name] = val
			t.source[name] = e.Name
		}
	}
	return t
}

// Lookup returns the integer value of an enumerator name and whether it was
// found.
func (t *Table) Lookup(name string) (int64, bool) {
	v, ok := t.values[name]
	return v, ok
}

// Names returns every enumerator name known to the table, in no particular
// order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.values))
	for name := range t.values {
		names = append(names, name)
	}
	return names
}
