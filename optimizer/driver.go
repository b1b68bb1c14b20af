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

package optimizer

import (
	"github.com/castorsql/castor/memo"
	"github.com/castorsql/castor/plan"
	"gopkg.in/src-d/go-errors.v1"
)

// ErrNoWinner is returned when a group has no physical strategy meeting
// a required property — per spec.md §7, always a bug, never a user-
// facing condition, so callers should treat it as a panic-worthy
// invariant violation rather than something to retry.
var ErrNoWinner = errors.NewKind("optimizer: group %d has no winner for required property %s")

const ruleImplement = "implement"

// Optimizer drives Cascades-style search over a memo, following
// optimize_group/optimize_expr/optimize_inputs_and_cost exactly as laid
// out in spec.md §4.8.
type Optimizer struct {
	Memo *memo.Memo
}

// New wraps an already-populated memo (the caller has run m.CopyInNew on
// the rewritten logical plan) for cost-based search.
func New(m *memo.Memo) *Optimizer {
	return &Optimizer{Memo: m}
}

// Optimize runs optimize_group(gid, PropNone) and returns the winning
// physical plan, replacing every Leaf with its group's winning
// sub-plan (spec.md §4.8).
func (o *Optimizer) Optimize(gid plan.GroupID) (plan.Operator, error) {
	o.OptimizeGroup(gid, memo.PropNone)
	return o.winnerTree(gid, memo.PropNone)
}

// OptimizeGroup ensures gid has a winner for require, or proves none is
// achievable within its current upper bound.
func (o *Optimizer) OptimizeGroup(gid plan.GroupID, require memo.RequiredProperty) {
	g := o.Memo.Group(gid)
	if g.LowerBound >= g.UpperBound(require) {
		return
	}
	if _, ok := g.Winner(require); ok {
		return
	}
	if require != memo.PropNone {
		o.optimizeEnforced(gid, require)
		return
	}
	for _, mid := range append([]memo.MultiExprID(nil), g.PhysicalMultiExprs...) {
		o.optimizeInputsAndCost(mid, require)
	}
	for _, mid := range append([]memo.MultiExprID(nil), g.LogicalMultiExprs...) {
		o.optimizeExpr(mid, require)
	}
}

// optimizeEnforced handles every require != PropNone by first solving
// the group under PropNone, then wrapping that winner in the one
// enforcer operator that meets require (spec.md §4.8: "Enforcer
// operators ... are inserted during search to satisfy required
// properties"). This is a deliberate simplification of full Cascades
// enforcer search — see DESIGN.md — valid here because none of this
// engine's non-enforcer physical operators meet any property but None.
func (o *Optimizer) optimizeEnforced(gid plan.GroupID, require memo.RequiredProperty) {
	o.OptimizeGroup(gid, memo.PropNone)
	base, ok := o.Memo.Group(gid).Winner(memo.PropNone)
	if !ok {
		return
	}
	var enforcer plan.Operator
	switch require {
	case memo.PropBroadcast:
		enforcer = Broadcast{Input: plan.Leaf{Group: gid}}
	case memo.PropExchange:
		enforcer = Exchange{Input: plan.Leaf{Group: gid}}
	case memo.PropGather:
		enforcer = Gather{Input: plan.Leaf{Group: gid}}
	default:
		return
	}
	mid, _ := o.Memo.CopyIn(gid, enforcer)
	cost := PhysicalCost(o.Memo, mid) + base.Cost
	o.Memo.Group(gid).TrySetWinner(require, mid, cost)
}

// optimizeExpr applies the (single) implement rule to a logical
// multi-expression if it has not already fired, mirroring the teacher's
// one-pass-per-rule bookkeeping via MultiExpr.Fired.
func (o *Optimizer) optimizeExpr(mid memo.MultiExprID, require memo.RequiredProperty) {
	expr := o.Memo.Expr(mid)
	if expr.Fired[ruleImplement] {
		return
	}
	expr.Fired[ruleImplement] = true
	for _, candidate := range Implement(expr.Op) {
		cid, fresh := o.Memo.CopyIn(expr.Group, candidate)
		if !fresh {
			continue
		}
		o.optimizeInputsAndCost(cid, require)
	}
}

// optimizeInputsAndCost costs mid's physical operator, recursively
// solving each input under the property mid's head requires of it, and
// tries to install mid as the new winner of its group.
func (o *Optimizer) optimizeInputsAndCost(mid memo.MultiExprID, require memo.RequiredProperty) {
	expr := o.Memo.Expr(mid)
	if !Meets(expr.Op, require) {
		return
	}
	localCost := PhysicalCost(o.Memo, mid)
	inputs := expr.Op.Inputs()
	costs := make([]float64, len(inputs))
	for i, in := range inputs {
		leaf, ok := in.(plan.Leaf)
		if !ok {
			continue
		}
		childRequire := Required(expr.Op, i)
		o.OptimizeGroup(leaf.Group, childRequire)
		w, ok := o.Memo.Group(leaf.Group).Winner(childRequire)
		if !ok {
			return
		}
		costs[i] = w.Cost
	}
	total := localCost
	for _, c := range costs {
		total += c
	}
	o.Memo.Group(expr.Group).TrySetWinner(require, mid, total)
}

// winnerTree walks the installed winners, replacing every Leaf with the
// winning sub-plan for the property its parent required.
func (o *Optimizer) winnerTree(gid plan.GroupID, require memo.RequiredProperty) (plan.Operator, error) {
	w, ok := o.Memo.Group(gid).Winner(require)
	if !ok {
		return nil, ErrNoWinner.New(gid, require)
	}
	op := o.Memo.Expr(w.Expr).Op
	inputs := op.Inputs()
	if len(inputs) == 0 {
		return op, nil
	}
	rebuilt := make([]plan.Operator, len(inputs))
	for i, in := range inputs {
		leaf, ok := in.(plan.Leaf)
		if !ok {
			rebuilt[i] = in
			continue
		}
		childRequire := Required(op, i)
		sub, err := o.winnerTree(leaf.Group, childRequire)
		if err != nil {
			return nil, err
		}
		rebuilt[i] = sub
	}
	return op.WithInputs(rebuilt), nil
}
