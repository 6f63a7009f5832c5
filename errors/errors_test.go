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

package errors_test

import (
	"testing"

	"github.com/cobaltfuzz/sleipnir/errors"
)

const testError = "test error: %s"
const testErrorB = "test error B: %s"

func TestDuplicateErrors(t *testing.T) {
	e := errors.Errorf(testError, "foo")
	if e.Error() != "test error: foo" {
		t.Fatalf("unexpected message: %s", e.Error())
	}

	// packing errors of the same type next to each other causes
	// one of them to be dropped
	f := errors.Errorf(testError, e)
	if f.Error() != "test error: foo" {
		t.Fatalf("unexpected message: %s", f.Error())
	}
}

func TestIs(t *testing.T) {
	e := errors.Errorf(testError, "foo")
	if !errors.Is(e, testError) {
		t.Fatal("expected Is to succeed")
	}

	// Has() should fail because we haven't included testErrorB anywhere in the error
	if errors.Has(e, testErrorB) {
		t.Fatal("expected Has to fail")
	}

	f := errors.Errorf(testErrorB, e)
	if errors.Is(f, testError) {
		t.Fatal("expected Is to fail")
	}
	if !errors.Is(f, testErrorB) {
		t.Fatal("expected Is to succeed")
	}
	if !errors.Has(f, testError) {
		t.Fatal("expected Has to succeed")
	}
	if !errors.Has(f, testErrorB) {
		t.Fatal("expected Has to succeed")
	}

	if !errors.IsAny(e) {
		t.Fatal("expected IsAny to succeed")
	}
	if !errors.IsAny(f) {
		t.Fatal("expected IsAny to succeed")
	}
}

func TestPlainErrors(t *testing.T) {
	var err error
	if errors.IsAny(err) {
		t.Fatal("nil error should not be curated")
	}
	if errors.Is(err, testError) {
		t.Fatal("nil error should not match")
	}
	if errors.Has(err, testError) {
		t.Fatal("nil error should not match")
	}
}

func TestKinds(t *testing.T) {
	e := errors.Errorf(errors.ConstraintUnsat, 3)
	if !errors.Is(e, errors.ConstraintUnsat) {
		t.Fatalf("expected error to classify as %q, got %q", errors.ConstraintUnsat, errors.Head(e))
	}
}
