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

// Package constraint turns user-supplied text constraints and enable lists
// into solver.Constraint values, using github.com/google/cel-go to compile
// and evaluate the expressions. CEL was picked over hand-rolling an
// expression language because it already supports dotted field-path
// selection and rejects references to undeclared identifiers at compile
// time, which is exactly what frame expressions need.
package constraint

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/cobaltfuzz/sleipnir/enumtable"
	"github.com/cobaltfuzz/sleipnir/errors"
	"github.com/cobaltfuzz/sleipnir/frame"
	"github.com/cobaltfuzz/sleipnir/frametype"
	"github.com/cobaltfuzz/sleipnir/solver"
)

// Recognized configuration keys, matching the YAML test-suite schema.
const (
	FramePrefix               = "frame."
	selfPrefix                = "self."
	EnablesKey                = "enables"
	ConstraintsFrameKey       = "constraints_frame"
	PerCmdConstraintsFrameKey = "per_cmd_constraints_frame"
)

// IdxBlockName returns the solver block name for per-command-index
// constraints at idx.
func IdxBlockName(idx int) string {
	return fmt.Sprintf("constr_idx%d", idx)
}

// IDField is the member name of the root frame's command-index field. Its
// randomization is always disabled; the randomizer assigns it directly.
const IDField = "id"

// Config is one test entry's constraint configuration, as read from YAML.
type Config struct {
	Enables                []string                  `yaml:"enables"`
	ConstraintsFrame       map[string]string          `yaml:"constraints_frame"`
	PerCmdConstraintsFrame map[int]map[string]string  `yaml:"per_cmd_constraints_frame"`
}

// Compiler compiles frame constraint expressions against a fixed CEL
// environment: a dynamically-typed "self" referring to the frame snapshot,
// plus one integer constant per known enumerator symbol.
type Compiler struct {
	env *cel.Env
}

// NewCompiler builds a Compiler whose environment declares every enumerator
// name in enums as an int constant, so expressions like "self.mode ==
// FRAME_SINGLE" resolve without qualifying the enum.
func NewCompiler(enums *enumtable.Table) (*Compiler, error) {
	opts := []cel.EnvOption{
		cel.Variable("self", cel.DynType),
	}
	for _, name := range enums.Names() {
		val, _ := enums.Lookup(name)
		opts = append(opts, cel.Constant(name, cel.IntType, types.Int(val)))
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, err
	}
	return &Compiler{env: env}, nil
}

// Program is a compiled constraint expression ready to evaluate against a
// frame snapshot.
type Program struct {
	name string
	prg  cel.Program
}

// Compile rewrites the user-facing "frame." root reference to "self." and
// compiles the result. name is used only for error messages.
func (c *Compiler) Compile(name, expr string) (*Program, error) {
	rewritten := strings.ReplaceAll(expr, FramePrefix, selfPrefix)

	ast, iss := c.env.Compile(rewritten)
	if iss != nil && iss.Err() != nil {
		return nil, errors.Errorf(errors.ConstraintCompile, name, iss.Err().Error())
	}
	prg, err := c.env.Program(ast)
	if err != nil {
		return nil, errors.Errorf(errors.ConstraintCompile, name, err.Error())
	}
	return &Program{name: name, prg: prg}, nil
}

// Eval runs the compiled program against root's current values, treating
// assignment as overriding whatever leaf values it names (this is how the
// solver's candidate draws get tested before they're committed to the
// tree).
func (p *Program) Eval(root frame.Node, assignment map[string]*big.Int) (bool, error) {
	self := snapshot(root, "", assignment)
	out, _, err := p.prg.Eval(map[string]any{"self": self})
	if err != nil {
		return false, err
	}
	b, ok := out.(types.Bool)
	if !ok {
		return false, fmt.Errorf("constraint %q did not evaluate to a boolean", p.name)
	}
	return bool(b), nil
}

// AsSolverConstraint adapts p into a solver.Constraint scoped to block, to
// be evaluated against root on every candidate draw.
func (p *Program) AsSolverConstraint(root frame.Node, block string, kind solver.Kind) solver.Constraint {
	return solver.Constraint{
		Block: block,
		Kind:  kind,
		Eval: func(assignment map[string]*big.Int) (bool, error) {
			return p.Eval(root, assignment)
		},
	}
}

// snapshot walks n's tree building the nested self.* value CEL evaluates
// against. assignment overrides leaf values addressed by their dotted path;
// any leaf not present in assignment keeps its current tree value.
func snapshot(n frame.Node, path string, assignment map[string]*big.Int) any {
	switch n.Descriptor().(type) {
	case frametype.Aggregate, frametype.Overlay:
		m := make(map[string]any, len(n.Children()))
		for _, c := range n.Children() {
			m[c.Name()] = snapshot(c, join(path, c.Name()), assignment)
		}
		return m
	case frametype.Array:
		children := n.Children()
		arr := make([]any, len(children))
		for i, c := range children {
			arr[i] = snapshot(c, join(path, strconv.Itoa(i)), assignment)
		}
		return arr
	default:
		if v, ok := assignment[path]; ok {
			return v.Int64()
		}
		return n.Value().Int64()
	}
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

var _ ref.Val = types.Bool(false) // document the ref.Val dependency this package exercises

// baseConstraints are applied to every frame, ahead of any user expression.
// They are soft: the solver relaxes them rather than reporting Unsat when
// they conflict with a hard user constraint.
var baseConstraints = []struct{ name, expr string }{
	{"base_count", "frame.fields.count > 0"},
	{"base_width", "frame.fields.width > 0"},
	{"base_height", "frame.fields.height > 0"},
	{"base_depth", "frame.fields.depth > 0"},
	{"base_single_implies_count1", "frame.fields.type != FRAME_SINGLE || frame.fields.count == 1"},
}

// Assembly wires one frame tree's built-in and user-supplied constraint
// blocks into a solver.Solver.
type Assembly struct {
	compiler *Compiler
	root     frame.Node
	sv       *solver.Solver
}

// NewAssembly returns an Assembly that attaches constraints for root's tree
// to sv, compiling expressions with compiler.
func NewAssembly(compiler *Compiler, root frame.Node, sv *solver.Solver) *Assembly {
	return &Assembly{compiler: compiler, root: root, sv: sv}
}

// ApplyRandModes disables randomization of the id field and re-enables it
// for every path named in cfg.Enables. Call this before root.PreRand(), since
// PreRand derives each leaf's solver-variable status from its current
// rand_mode.
func (a *Assembly) ApplyRandModes(cfg Config) error {
	id, err := a.root.Field(IDField)
	if err != nil {
		return err
	}
	id.SetRandMode(false)

	for _, path := range cfg.Enables {
		node, err := a.root.Field(path)
		if err != nil {
			return errors.Errorf(errors.InvalidField, path)
		}
		node.SetRandMode(true)
	}
	return nil
}

// Attach compiles and registers the base frame constraints plus cfg's
// global and per-command-index user constraints against a.sv. Per-command
// constraints are scoped to the solver block IdxBlockName(idx) and only
// take effect while that block is enabled.
func (a *Assembly) Attach(cfg Config) error {
	for _, c := range baseConstraints {
		prog, err := a.compiler.Compile(c.name, c.expr)
		if err != nil {
			return err
		}
		a.sv.AddConstraint(prog.AsSolverConstraint(a.root, "", solver.Soft))
	}

	for name, expr := range cfg.ConstraintsFrame {
		prog, err := a.compiler.Compile(name, expr)
		if err != nil {
			return err
		}
		a.sv.AddConstraint(prog.AsSolverConstraint(a.root, "", solver.Hard))
	}

	for idx, exprs := range cfg.PerCmdConstraintsFrame {
		block := IdxBlockName(idx)
		for name, expr := range exprs {
			prog, err := a.compiler.Compile(name, expr)
			if err != nil {
				return err
			}
			a.sv.AddConstraint(prog.AsSolverConstraint(a.root, block, solver.Hard))
		}
	}
	return nil
}

// DeclareVars registers every leaf in leaves (as returned by
// frame.Node.PreRand) as a solver random variable, addressed by its dotted
// path from the tree's root so assignments line up with the paths
// Program.Eval's snapshot builds.
func DeclareVars(sv *solver.Solver, leaves []frame.Node) {
	for _, leaf := range leaves {
		sv.DeclareRandom(leaf.Path(), leaf.Descriptor().Size())
	}
}

// ApplyAssignment writes a solved assignment back into the leaves it was
// declared for, reconciling the solver's draw into the composite value
// tree; each SetVal also recomputes the leaf's ancestors. Callers still need
// root.PostRand() afterward so each overlay's non-selected arms take the
// value of its solved arm.
func ApplyAssignment(leaves []frame.Node, assignment map[string]*big.Int) error {
	for _, leaf := range leaves {
		v, ok := assignment[leaf.Path()]
		if !ok {
			continue
		}
		if err := leaf.SetVal(v); err != nil {
			return err
		}
	}
	return nil
}
