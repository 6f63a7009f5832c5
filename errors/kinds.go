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

package errors

// The Kind constants below are the complete vocabulary of fatal error kinds
// a generation run can raise (spec §7). Callers build one with
// Errorf(KindX, ...) and check its class downstream with Is/Has.
const (
	NoDebugInfo           Kind = "elf file has no debug info"
	MalformedDebugInfo    Kind = "malformed debug info: %s"
	UnknownType           Kind = "unknown type: %s"
	OverflowError         Kind = "value %d exceeds bit width %d"
	InvalidField          Kind = "invalid field name: %s"
	InvalidOverlay        Kind = "invalid overlay: %s"
	ConstraintCompile     Kind = "constraint compile error in %q: %s"
	ConstraintUnsat       Kind = "constraint unsat for command index %d"
	MissingConfigKey      Kind = "missing config key: %s"
	CustomDataFileMissing Kind = "custom data file missing: %s"
	UnsupportedDieTag     Kind = "unsupported die tag: %s"
)
