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

// Package frame instantiates a mutable value tree from a frametype.Descriptor
// and keeps it bit-exact: every write to a node, whether it originates from
// a leaf growing upward or an aggregate pushing a value down to its members,
// is propagated so that the concatenation of a node's children always equals
// the node's own value (see Tree's doc comment for the precise invariant).
//
// Nodes live in an arena and are addressed by NodeID rather than by pointer,
// so a child can hold a weak, non-owning reference back to its parent
// without creating a reference cycle for the garbage collector to chase.
package frame

import (
	"math/big"
	"strconv"

	"github.com/cobaltfuzz/sleipnir/errors"
	"github.com/cobaltfuzz/sleipnir/frametype"
)

// NodeID addresses a node within a Tree's arena. The root is always built
// first and so is NodeID 0; noParent marks the root's missing parent.
type NodeID int

const noParent NodeID = -1

// nodeState is the arena-resident state of one node. Descriptor is always
// set; Children is empty for BaseInt leaves.
type nodeState struct {
	descriptor frametype.Descriptor
	parent     NodeID
	memberName string // name this node is known by within its parent, if any
	children   []NodeID
	value      *big.Int

	// randMode mirrors the source's rand_mode flag: a user-facing override
	// of whether this leaf may be assigned by the solver. True by default;
	// package constraint turns it off for the id field and back on for any
	// path named in a config's "enables" list.
	randMode bool

	// isRand mirrors the source's is_rand flag: true once PreRand has
	// decided this leaf is reachable through the currently-selected overlay
	// arms and should be declared as a solver variable.
	isRand bool
}

// Tree is an arena of nodes built from a single root Descriptor.
//
// Invariant I1: for every non-leaf node, the node's value equals the
// little-endian bit concatenation of its children's values at their
// respective bit offsets. Writing to a leaf recomputes every ancestor up to
// the root (update_from_member); writing to a non-leaf node pushes the new
// value down into every child (set_val with from_parent set).
type Tree struct {
	nodes []nodeState
	root  NodeID
}

// Node is a handle to one node of a Tree.
type Node struct {
	tree *Tree
	id   NodeID
}

// Instantiate builds a new value tree rooted at a node of the given
// descriptor, with every value initialized to zero. It fails with
// InvalidField if any member or arm name in the descriptor tree begins with
// a reserved character (underscore).
func Instantiate(d frametype.Descriptor) (*Tree, error) {
	t := &Tree{}
	root, err := t.build(d, noParent, "")
	if err != nil {
		return nil, err
	}
	t.root = root
	return t, nil
}

func (t *Tree) build(d frametype.Descriptor, parent NodeID, name string) (NodeID, error) {
	if err := validateName(name); err != nil {
		return 0, err
	}

	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, nodeState{
		descriptor: d,
		parent:     parent,
		memberName: name,
		value:      new(big.Int),
		randMode:   true,
	})

	switch dv := d.(type) {
	case frametype.Aggregate:
		children := make([]NodeID, len(dv.Members))
		for i, m := range dv.Members {
			child, err := t.build(m.Type, id, m.Name)
			if err != nil {
				return 0, err
			}
			children[i] = child
		}
		t.nodes[id].children = children
	case frametype.Overlay:
		children := make([]NodeID, len(dv.Arms))
		for i, a := range dv.Arms {
			child, err := t.build(a.Type, id, a.Name)
			if err != nil {
				return 0, err
			}
			children[i] = child
		}
		t.nodes[id].children = children
	case frametype.Array:
		children := make([]NodeID, dv.Count)
		for i := 0; i < dv.Count; i++ {
			child, err := t.build(dv.Elem, id, "")
			if err != nil {
				return 0, err
			}
			children[i] = child
		}
		t.nodes[id].children = children
	}

	return id, nil
}

// validateName rejects member and arm names beginning with an underscore.
// Array elements and the root carry no name and are always valid.
func validateName(name string) error {
	if name != "" && name[0] == '_' {
		return errors.Errorf(errors.InvalidField, name)
	}
	return nil
}

// Root returns a handle to the tree's root node.
func (t *Tree) Root() Node {
	return Node{tree: t, id: t.root}
}

func (n Node) state() *nodeState { return &n.tree.nodes[n.id] }

// Descriptor returns the node's type descriptor.
func (n Node) Descriptor() frametype.Descriptor { return n.state().descriptor }

// Children returns handles to the node's direct children, in declaration
// order. A leaf node has no children.
func (n Node) Children() []Node {
	ids := n.state().children
	out := make([]Node, len(ids))
	for i, id := range ids {
		out[i] = Node{tree: n.tree, id: id}
	}
	return out
}

// Parent returns the node's parent and true, or the zero Node and false if
// n is the root.
func (n Node) Parent() (Node, bool) {
	p := n.state().parent
	if p == noParent {
		return Node{}, false
	}
	return Node{tree: n.tree, id: p}, true
}

// Name returns the member or arm name this node is known by within its
// parent, or "" for array elements and the root.
func (n Node) Name() string { return n.state().memberName }

// Value returns the node's current value.
func (n Node) Value() *big.Int {
	return new(big.Int).Set(n.state().value)
}

// SetVal overwrites the node's value and propagates the change: downward
// into every child, and upward to recompute every ancestor.
func (n Node) SetVal(v *big.Int) error {
	n.setVal(v)
	if parent, ok := n.Parent(); ok {
		return parent.updateFromMember(n)
	}
	return nil
}

// setVal assigns v to n's own value, masking to the node's bit width, and
// pushes the corresponding slice of v down into every child.
func (n Node) setVal(v *big.Int) {
	size := n.Descriptor().Size()
	masked := maskTo(v, size)
	n.state().value = masked

	switch d := n.Descriptor().(type) {
	case frametype.Aggregate:
		for i, m := range d.Members {
			child := n.Children()[i]
			child.setVal(extractBits(masked, m.BitOffset, m.BitSize))
		}
	case frametype.Overlay:
		for _, child := range n.Children() {
			child.setVal(maskTo(masked, child.Descriptor().Size()))
		}
	case frametype.Array:
		elemSize := d.Elem.Size()
		for i, child := range n.Children() {
			child.setVal(extractBits(masked, i*elemSize, elemSize))
		}
	}
}

// updateFromMember recomputes n's value given that trigger (one of n's
// direct children) just changed, then propagates the result up to the root.
// Aggregates and arrays recompute by re-concatenating every child; an
// overlay's value isn't a concatenation, it's a copy of whichever arm was
// last touched, so it takes trigger's value directly.
func (n Node) updateFromMember(trigger Node) error {
	switch d := n.Descriptor().(type) {
	case frametype.Aggregate:
		acc := new(big.Int)
		for i, m := range d.Members {
			child := n.Children()[i]
			acc = insertBits(acc, child.state().value, m.BitOffset, m.BitSize)
		}
		n.state().value = maskTo(acc, d.Size())
	case frametype.Overlay:
		n.state().value = maskTo(trigger.state().value, d.Size())
	case frametype.Array:
		elemSize := d.Elem.Size()
		acc := new(big.Int)
		for i, child := range n.Children() {
			acc = insertBits(acc, child.state().value, i*elemSize, elemSize)
		}
		n.state().value = maskTo(acc, d.Size())
	}

	if parent, ok := n.Parent(); ok {
		return parent.updateFromMember(n)
	}
	return nil
}

// ActiveArm returns the overlay arm selected by the deterministic tie-break
// policy described on PreRand. It panics if n is not an Overlay node.
func (n Node) ActiveArm() Node {
	ov := n.Descriptor().(frametype.Overlay)
	return n.Children()[selectArm(ov)]
}

// RandMode reports whether the solver is permitted to assign n (a BaseInt
// leaf). True by default for every leaf; package constraint turns it off for
// the id field and back on for any path named in a config's "enables" list.
func (n Node) RandMode() bool { return n.state().randMode }

// SetRandMode overrides whether the solver is permitted to assign n.
func (n Node) SetRandMode(v bool) { n.state().randMode = v }

// IsRand reports whether PreRand selected n as a solver variable: for a
// BaseInt leaf, that it is both rand-mode-enabled and reachable through every
// ancestor overlay's chosen arm.
func (n Node) IsRand() bool { return n.state().isRand }

// PreRand walks the tree ahead of a solve and returns the set of leaf nodes
// that the solver should declare as random variables: every rand-mode-
// enabled BaseInt leaf that is reachable through each overlay's selected arm
// only. Arms are preferred in this order: non-BaseInt, non-Array arms first;
// failing that, non-BaseInt Array arms; failing that, any BaseInt arm. Among
// equally preferred arms the first one in declaration order wins, so the
// choice is deterministic rather than random. Leaves behind the
// non-selected arm of an overlay have is_rand cleared, per the invariant
// that exactly one arm is randomizable at a time.
func (n Node) PreRand() []Node {
	var leaves []Node
	n.markRand(&leaves)
	return leaves
}

func (n Node) markRand(out *[]Node) {
	switch d := n.Descriptor().(type) {
	case frametype.BaseInt:
		n.state().isRand = n.state().randMode
		if n.state().isRand {
			*out = append(*out, n)
		}
	case frametype.Overlay:
		active := selectArm(d)
		for i, c := range n.Children() {
			if i == active {
				c.markRand(out)
			} else {
				c.clearRand()
			}
		}
	default:
		for _, c := range n.Children() {
			c.markRand(out)
		}
	}
}

// clearRand marks n and every descendant as not randomizable, used for
// overlay arms PreRand did not select.
func (n Node) clearRand() {
	n.state().isRand = false
	for _, c := range n.Children() {
		c.clearRand()
	}
}

// selectArm implements the tie-break policy described on PreRand.
func selectArm(ov frametype.Overlay) int {
	best := -1
	bestRank := 3
	for i, a := range ov.Arms {
		rank := armRank(a.Type)
		if rank < bestRank {
			bestRank = rank
			best = i
		}
	}
	return best
}

func armRank(d frametype.Descriptor) int {
	switch d.(type) {
	case frametype.BaseInt:
		return 2
	case frametype.Array:
		return 1
	default:
		return 0
	}
}

// PostRand first recurses into every child, then recomputes every overlay's
// value from its chosen arm and propagates the result back down into every
// arm (I3). Call this once a solve has assigned values to every leaf so
// overlay nodes, including their non-selected sibling arms, reflect
// whichever arm was actually solved.
func (n Node) PostRand() error {
	for _, c := range n.Children() {
		if err := c.PostRand(); err != nil {
			return err
		}
	}
	if ov, ok := n.Descriptor().(frametype.Overlay); ok {
		arm := n.Children()[selectArm(ov)]
		n.setVal(maskTo(arm.state().value, ov.Size()))
	}
	return nil
}

// Path returns n's dotted path from its tree's root, the inverse of Field
// called on the root. The root's own path is "".
func (n Node) Path() string {
	parent, ok := n.Parent()
	if !ok {
		return ""
	}
	seg := n.pathSegment(parent)
	parentPath := parent.Path()
	if parentPath == "" {
		return seg
	}
	return parentPath + "." + seg
}

// pathSegment returns how n is addressed from parent: its member or arm
// name, or its decimal index if parent is an Array.
func (n Node) pathSegment(parent Node) string {
	if name := n.Name(); name != "" {
		return name
	}
	for i, c := range parent.Children() {
		if c.id == n.id {
			return strconv.Itoa(i)
		}
	}
	return ""
}

// Field resolves a dotted path (eg. "header.length" or "payload.2.flags")
// relative to n. Array elements are indexed by their position in decimal.
func (n Node) Field(path string) (Node, error) {
	cur := n
	for _, part := range splitPath(path) {
		found := false
		switch d := cur.Descriptor().(type) {
		case frametype.Aggregate:
			for i, m := range d.Members {
				if m.Name == part {
					cur = cur.Children()[i]
					found = true
					break
				}
			}
		case frametype.Overlay:
			for i, a := range d.Arms {
				if a.Name == part {
					cur = cur.Children()[i]
					found = true
					break
				}
			}
		case frametype.Array:
			idx, ok := parseIndex(part)
			if ok && idx >= 0 && idx < d.Count {
				cur = cur.Children()[idx]
				found = true
			}
		}
		if !found {
			return Node{}, errors.Errorf(errors.InvalidField, path)
		}
	}
	return cur, nil
}

func splitPath(path string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			parts = append(parts, path[start:i])
			start = i + 1
		}
	}
	parts = append(parts, path[start:])
	return parts
}

func parseIndex(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

// maskTo returns v truncated to the low n bits.
func maskTo(v *big.Int, n int) *big.Int {
	if n <= 0 {
		return new(big.Int)
	}
	mask := new(big.Int).Lsh(big.NewInt(1), uint(n))
	mask.Sub(mask, big.NewInt(1))
	return new(big.Int).And(v, mask)
}

// extractBits returns bits [offset, offset+size) of v as its own value.
func extractBits(v *big.Int, offset, size int) *big.Int {
	shifted := new(big.Int).Rsh(v, uint(offset))
	return maskTo(shifted, size)
}

// insertBits returns acc with bits [offset, offset+size) of sub merged in.
func insertBits(acc, sub *big.Int, offset, size int) *big.Int {
	masked := maskTo(sub, size)
	shifted := new(big.Int).Lsh(masked, uint(offset))
	return new(big.Int).Or(acc, shifted)
}
