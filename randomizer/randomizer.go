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

// Package randomizer drives the constrained-random engine over a single
// reusable frame tree, yielding one immutable Frame snapshot per command
// index (component E of the generator). It composes package frame's
// pre/post-solve hooks with package constraint's solver wiring: pre_rand is
// called exactly once up front to fix overlay-arm selection for the whole
// run, and every subsequent solve reuses the same declared variables under a
// different enabled per-command-index block.
package randomizer

import (
	"math/big"

	"github.com/cobaltfuzz/sleipnir/constraint"
	"github.com/cobaltfuzz/sleipnir/errors"
	"github.com/cobaltfuzz/sleipnir/frame"
	"github.com/cobaltfuzz/sleipnir/frametype"
	"github.com/cobaltfuzz/sleipnir/internal/rng"
	"github.com/cobaltfuzz/sleipnir/solver"
)

// Driver holds the one persistent randomizer tree a generation run solves
// repeatedly, plus the solver and constraint wiring attached to it.
type Driver struct {
	descriptor frametype.Descriptor
	tree       *frame.Tree
	sv         *solver.Solver
	leaves     []frame.Node
	lastBlock  string
}

// New builds a Driver for descriptor: it instantiates one randomizer tree,
// applies cfg's id-disable and enables list, finalizes overlay-arm selection
// with PreRand, declares the resulting leaves to a fresh solver seeded from
// src, and attaches cfg's base and user constraint blocks. The returned
// Driver is ready for repeated calls to Next.
func New(descriptor frametype.Descriptor, compiler *constraint.Compiler, src *rng.Source, cfg constraint.Config) (*Driver, error) {
	tree, err := frame.Instantiate(descriptor)
	if err != nil {
		return nil, err
	}
	root := tree.Root()

	sv := solver.New(src)
	asm := constraint.NewAssembly(compiler, root, sv)

	if err := asm.ApplyRandModes(cfg); err != nil {
		return nil, err
	}

	leaves := root.PreRand()
	constraint.DeclareVars(sv, leaves)

	if err := asm.Attach(cfg); err != nil {
		return nil, err
	}

	return &Driver{descriptor: descriptor, tree: tree, sv: sv, leaves: leaves}, nil
}

// Next solves for command index idx, reconciles the solved assignment and
// every overlay's chosen arm back into the randomizer tree, then returns a
// freshly allocated, independent Frame tree carrying that solution with its
// id field overwritten to idx mod 2^32 (I6).
func (d *Driver) Next(idx int) (*frame.Tree, error) {
	block := constraint.IdxBlockName(idx)
	if d.lastBlock != "" && d.lastBlock != block {
		d.sv.DisableBlock(d.lastBlock)
	}
	d.sv.EnableBlock(block)
	d.lastBlock = block

	assignment, err := d.sv.Solve()
	if err != nil {
		if err == solver.ErrUnsat {
			return nil, errors.Errorf(errors.ConstraintUnsat, idx)
		}
		return nil, err
	}

	if err := constraint.ApplyAssignment(d.leaves, assignment); err != nil {
		return nil, err
	}
	if err := d.tree.Root().PostRand(); err != nil {
		return nil, err
	}

	out, err := frame.Instantiate(d.descriptor)
	if err != nil {
		return nil, err
	}
	if err := out.Root().SetVal(d.tree.Root().Value()); err != nil {
		return nil, err
	}

	idNode, err := out.Root().Field(constraint.IDField)
	if err != nil {
		return nil, err
	}
	if err := idNode.SetVal(big.NewInt(int64(uint32(idx)))); err != nil {
		return nil, err
	}

	return out, nil
}

// Iterator lazily produces one Frame snapshot per call to Next, in
// ascending command-index order, so a packer can consume the stream without
// holding every frame in memory at once.
type Iterator struct {
	driver *Driver
	idx    int
	n      int
	cur    *frame.Tree
	err    error
}

// NewIterator returns an Iterator that will produce n frames for descriptor
// under cfg, drawing from src.
func NewIterator(descriptor frametype.Descriptor, compiler *constraint.Compiler, src *rng.Source, cfg constraint.Config, n int) (*Iterator, error) {
	d, err := New(descriptor, compiler, src, cfg)
	if err != nil {
		return nil, err
	}
	return &Iterator{driver: d, n: n}, nil
}

// Next advances the iterator, reporting whether a frame was produced. Once
// it returns false, Err reports whether that was due to reaching n or an
// error partway through.
func (it *Iterator) Next() bool {
	if it.err != nil || it.idx >= it.n {
		return false
	}
	snap, err := it.driver.Next(it.idx)
	if err != nil {
		it.err = err
		return false
	}
	it.cur = snap
	it.idx++
	return true
}

// Frame returns the snapshot produced by the most recent call to Next.
func (it *Iterator) Frame() *frame.Tree { return it.cur }

// Err returns the first error encountered, if Next stopped early because of
// one.
func (it *Iterator) Err() error { return it.err }
