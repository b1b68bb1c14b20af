// Copyright 2024 The Castor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package memo

import (
	"fmt"

	"github.com/castorsql/castor/plan"
	"github.com/mitchellh/hashstructure"
)

// Memo is the Cascades search space: every group discovered while
// planning one statement, plus the multi-expressions that populate them.
type Memo struct {
	groups map[plan.GroupID]*Group
	exprs  map[MultiExprID]*MultiExpr
	// intern maps a (group, structural-hash-of-op) key to the
	// multi-expression id already occupying it, enforcing "each logical
	// operator appears at most once per group" (spec.md §3).
	intern map[string]MultiExprID

	nextGroup plan.GroupID
	nextExpr  MultiExprID
}

func New() *Memo {
	return &Memo{
		groups: make(map[plan.GroupID]*Group),
		exprs:  make(map[MultiExprID]*MultiExpr),
		intern: make(map[string]MultiExprID),
	}
}

func (m *Memo) Group(id plan.GroupID) *Group   { return m.groups[id] }
func (m *Memo) Expr(id MultiExprID) *MultiExpr { return m.exprs[id] }

func (m *Memo) internKey(gid plan.GroupID, op plan.Operator) string {
	h, err := hashstructure.Hash(op, nil)
	if err != nil {
		// hashstructure only fails on unhashable kinds (chans/funcs),
		// none of which appear in plan.Operator arms; a panic here means
		// a new operator arm broke that assumption.
		panic(fmt.Sprintf("memo: cannot hash operator %T: %v", op, err))
	}
	return fmt.Sprintf("%d:%x", gid, h)
}

// CopyIn interns op (whose direct inputs must already be plan.Leaf
// placeholders) into group gid. If an operator structurally equal to op
// is already in gid, returns its id and false; otherwise creates a fresh
// multi-expression, adds it to gid's logical or physical list, and
// returns true.
func (m *Memo) CopyIn(gid plan.GroupID, op plan.Operator) (MultiExprID, bool) {
	key := m.internKey(gid, op)
	if id, ok := m.intern[key]; ok {
		return id, false
	}
	m.nextExpr++
	id := m.nextExpr
	expr := newMultiExpr(id, gid, op)
	m.exprs[id] = expr
	m.intern[key] = id

	g := m.groups[gid]
	if isPhysical(op) {
		g.PhysicalMultiExprs = append(g.PhysicalMultiExprs, id)
	} else {
		g.LogicalMultiExprs = append(g.LogicalMultiExprs, id)
	}
	return id, true
}

// CopyInNew recursively memoizes op's entire input tree bottom-up,
// allocating a fresh group for every newly-seen subtree, and returns the
// group the whole tree now lives in; a plan.Leaf input already names its
// group and is referenced as is. Logical properties are computed as
// each fresh group is created, which is why this path ("copy_in_new") is
// distinct from CopyIn: CopyIn assumes its target group (and therefore its
// logical properties) already exists.
func (m *Memo) CopyInNew(op plan.Operator) plan.GroupID {
	if leaf, ok := op.(plan.Leaf); ok {
		return leaf.Group
	}
	inputs := op.Inputs()
	leafed := make([]plan.Operator, len(inputs))
	for i, in := range inputs {
		childGid := m.CopyInNew(in)
		leafed[i] = plan.Leaf{Group: childGid}
	}
	leafedOp := op.WithInputs(leafed)

	m.nextGroup++
	gid := m.nextGroup
	props := computeLogicalProps(m, leafedOp)
	m.groups[gid] = newGroup(gid, props)
	m.groups[gid].LowerBound = lowerBound(m, leafedOp)
	m.CopyIn(gid, leafedOp)
	return gid
}
