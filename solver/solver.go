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

// Package solver implements the constrained-random solving capability the
// randomizer depends on: declare a set of bit-width-bounded random
// variables, add hard and soft constraints scoped to named blocks, enable a
// subset of those blocks, and solve for an assignment satisfying every hard
// constraint (and as many soft ones as possible).
//
// No bundled SMT/SAT/CSP library is available, so Solve proceeds by rejection
// sampling: repeatedly draw a full assignment from the declared variables'
// domains and test it against the enabled constraints. This is adequate for
// the narrow, mostly-independent relational constraints frame expressions
// produce, and it keeps the solver dependency-free and fully deterministic
// under a seeded source.
package solver

import (
	stderrors "errors"
	"math/big"

	"github.com/cobaltfuzz/sleipnir/internal/rng"
)

// ErrUnsat is returned by Solve when no assignment satisfies every hard
// constraint within the attempt budget. Callers that know which command
// index they were solving for should wrap it with errors.ConstraintUnsat.
var ErrUnsat = stderrors.New("no satisfying assignment found")

// Kind distinguishes a constraint that must hold (Hard) from one that is
// only a preference (Soft).
type Kind int

const (
	Hard Kind = iota
	Soft
)

// Constraint is one relational formula over the declared variables' current
// assignment, scoped to a named block.
type Constraint struct {
	Block string
	Kind  Kind
	Eval  func(assignment map[string]*big.Int) (bool, error)
}

// maxAttempts bounds how many full assignments rejection sampling tries
// before giving up, first honoring every soft constraint, then falling back
// to hard constraints only.
const maxAttempts = 10000

// Solver declares random variables and named constraint blocks, then solves
// for a satisfying assignment.
type Solver struct {
	src     *rng.Source
	vars    []string
	bits    map[string]int
	cons    []Constraint
	enabled map[string]bool
}

// New returns a Solver drawing from src.
func New(src *rng.Source) *Solver {
	return &Solver{
		src:     src,
		bits:    make(map[string]int),
		enabled: make(map[string]bool),
	}
}

// DeclareRandom registers name as a free variable of the given bit width.
// Declaring the same name twice is a no-op keeping the first width.
func (s *Solver) DeclareRandom(name string, bits int) {
	if _, ok := s.bits[name]; ok {
		return
	}
	s.vars = append(s.vars, name)
	s.bits[name] = bits
}

// AddConstraint appends c to the solver's constraint set. Constraints in a
// block that is never enabled are never evaluated.
func (s *Solver) AddConstraint(c Constraint) {
	s.cons = append(s.cons, c)
}

// EnableBlock activates block for the next Solve call. Blocks stay enabled
// across calls until explicitly disabled.
func (s *Solver) EnableBlock(block string) {
	s.enabled[block] = true
}

// DisableBlock deactivates block.
func (s *Solver) DisableBlock(block string) {
	delete(s.enabled, block)
}

// active returns the constraints whose block is either "" (always active,
// used for the base frame constraints) or currently enabled.
func (s *Solver) active() []Constraint {
	var out []Constraint
	for _, c := range s.cons {
		if c.Block == "" || s.enabled[c.Block] {
			out = append(out, c)
		}
	}
	return out
}

// Solve draws assignments until one satisfies every hard constraint and, if
// possible within the attempt budget, every soft constraint too. It returns
// ErrUnsat if no hard-satisfying assignment is found.
func (s *Solver) Solve() (map[string]*big.Int, error) {
	active := s.active()

	var bestHardOnly map[string]*big.Int

	for attempt := 0; attempt < maxAttempts; attempt++ {
		assignment := make(map[string]*big.Int, len(s.vars))
		for _, name := range s.vars {
			assignment[name] = s.src.BigInt(s.bits[name])
		}

		hardOK, softOK, err := evaluate(active, assignment)
		if err != nil {
			return nil, err
		}
		if hardOK && softOK {
			return assignment, nil
		}
		if hardOK && bestHardOnly == nil {
			bestHardOnly = assignment
		}
	}

	if bestHardOnly != nil {
		return bestHardOnly, nil
	}
	return nil, ErrUnsat
}

func evaluate(cons []Constraint, assignment map[string]*big.Int) (hardOK, softOK bool, err error) {
	hardOK, softOK = true, true
	for _, c := range cons {
		ok, err := c.Eval(assignment)
		if err != nil {
			return false, false, err
		}
		if !ok {
			if c.Kind == Hard {
				hardOK = false
			} else {
				softOK = false
			}
		}
	}
	return hardOK, softOK, nil
}
