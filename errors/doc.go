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

// Package errors is a helper package for the plain Go language error type. We
// think of these errors as curated errors. External to this package, curated
// errors are referenced as plain errors (ie. they implement the error
// interface).
//
// Internally, errors are thought of as being composed of parts, as described
// by The Go Programming Language (Donovan, Kernighan): "When the error is
// ultimately handled by the program's main function, it should provide a clear
// causal chain from the root of the problem to the overall failure".
//
// The Error() function implementation for curated errors ensures that this
// chain is normalised. Specifically, that the chain does not contain duplicate
// adjacent parts. The practical advantage of this is that it alleviates the
// problem of when and how to wrap errors. For example:
//
//	func Generate(path string) error {
//		err := parseConfig(path)
//		if err != nil {
//			return errors.Errorf("generate: %v", err)
//		}
//		return nil
//	}
//
//	func parseConfig(path string) error {
//		err := readSeed(path)
//		if err != nil {
//			return errors.Errorf("generate: %v", err)
//		}
//		return nil
//	}
//
//	func readSeed(path string) error {
//		return errors.Errorf(errors.MissingConfigKey, "seed")
//	}
//
// Propagating these errors as-is would print:
//
//	generate: generate: missing config key: seed
//
// The curated Error() implementation instead collapses the duplicate leading
// part, printing:
//
//	generate: missing config key: seed
//
// Kind constants for every fatal error a generation run can raise are
// declared in kinds.go; callers build one with Errorf(KindX, ...) and check
// its class downstream with Is/Has.
package errors
