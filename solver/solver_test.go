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

package solver_test

import (
	"math/big"
	"testing"

	"github.com/cobaltfuzz/sleipnir/internal/rng"
	"github.com/cobaltfuzz/sleipnir/solver"
)

func TestSolveSatisfiesHardConstraint(t *testing.T) {
	s := solver.New(rng.New(7))
	s.DeclareRandom("x", 8)
	s.AddConstraint(solver.Constraint{
		Kind: solver.Hard,
		Eval: func(a map[string]*big.Int) (bool, error) {
			return a["x"].Cmp(big.NewInt(200)) >= 0, nil
		},
	})

	got, err := s.Solve()
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if got["x"].Cmp(big.NewInt(200)) < 0 {
		t.Fatalf("x = %s, want >= 200", got["x"].String())
	}
}

func TestSolveUnsatReturnsErrUnsat(t *testing.T) {
	s := solver.New(rng.New(7))
	s.DeclareRandom("x", 2)
	s.AddConstraint(solver.Constraint{
		Kind: solver.Hard,
		Eval: func(a map[string]*big.Int) (bool, error) {
			return a["x"].Cmp(big.NewInt(100)) >= 0, nil
		},
	})

	if _, err := s.Solve(); err != solver.ErrUnsat {
		t.Fatalf("Solve: got %v, want ErrUnsat", err)
	}
}

func TestDisabledBlockIsIgnored(t *testing.T) {
	s := solver.New(rng.New(3))
	s.DeclareRandom("x", 8)
	s.AddConstraint(solver.Constraint{
		Block: "idx0",
		Kind:  solver.Hard,
		Eval: func(a map[string]*big.Int) (bool, error) {
			return false, nil // would always fail if enabled
		},
	})

	if _, err := s.Solve(); err != nil {
		t.Fatalf("Solve: %v, want success since block is not enabled", err)
	}
}

func TestEnabledBlockIsEvaluated(t *testing.T) {
	s := solver.New(rng.New(3))
	s.DeclareRandom("x", 8)
	s.AddConstraint(solver.Constraint{
		Block: "idx0",
		Kind:  solver.Hard,
		Eval: func(a map[string]*big.Int) (bool, error) {
			return false, nil
		},
	})
	s.EnableBlock("idx0")

	if _, err := s.Solve(); err != solver.ErrUnsat {
		t.Fatalf("Solve: got %v, want ErrUnsat", err)
	}
}
