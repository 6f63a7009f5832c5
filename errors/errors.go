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

import (
	"fmt"
	"strings"
)

// Kind is one of the fatal error categories a generation run can raise
// (spec §7: NoDebugInfo, MalformedDebugInfo, ConstraintUnsat, and so on,
// declared in kinds.go). A Kind doubles as the printf-style template
// Errorf fills in, so the same string that classifies an error is also
// what renders it.
type Kind = string

// Values holds the arguments a curated error was built with, kept around
// (rather than pre-rendered into the message) so Has can walk into any of
// them that are themselves curated errors.
type Values []interface{}

// curated is an error tagged with the Kind it was raised as, so downstream
// code can classify it (Is, Has, Head) without pattern-matching the
// rendered message string.
type curated struct {
	kind   Kind
	values Values
}

// Errorf builds a curated error of the given kind, interpolating values
// into its message template the way fmt.Errorf would.
func Errorf(kind Kind, values ...interface{}) error {
	return curated{
		kind:   kind,
		values: values,
	}
}

// Error renders the curated message. When a curated error is wrapped
// inside another of the same kind (eg. a caller re-raising an error it
// received verbatim), the kind would otherwise appear twice back to back;
// Error collapses that one duplicate adjacent segment so chains stay
// readable.
//
// Implements the go language error interface.
func (e curated) Error() string {
	s := fmt.Errorf(e.kind, e.values...).Error()

	parts := strings.SplitN(s, ": ", 3)
	if len(parts) > 1 && parts[0] == parts[1] {
		return strings.Join(parts[1:], ": ")
	}
	return strings.Join(parts, ": ")
}

// Head returns err's Kind, or its plain Error() string if err isn't
// curated. Useful for switching on error category.
func Head(err error) string {
	e, ok := err.(curated)
	if !ok {
		return err.Error()
	}
	return e.kind
}

// IsAny reports whether err was built by Errorf.
func IsAny(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(curated)
	return ok
}

// Is reports whether err's own Kind is kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	e, ok := err.(curated)
	return ok && e.kind == kind
}

// Has reports whether kind appears anywhere in err's chain: either err's
// own Kind, or that of any curated error nested among its values.
func Has(err error, kind Kind) bool {
	if !IsAny(err) {
		return false
	}
	if Is(err, kind) {
		return true
	}
	for _, v := range err.(curated).values {
		if nested, ok := v.(curated); ok && Has(nested, kind) {
			return true
		}
	}
	return false
}
